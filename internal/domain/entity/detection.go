package entity

import "fmt"

// Пороги температурной метки: выше HotConfidence объект считается «горячим».
const (
	HotConfidence = 0.7

	TemperatureHot  = "hot"
	TemperatureWarm = "warm"
)

// BBox рамка объекта в процентах от ширины и высоты изображения.
type BBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Valid проверяет, что все координаты лежат в [0, 100].
func (b BBox) Valid() bool {
	for _, v := range []float64{b.X, b.Y, b.Width, b.Height} {
		if v < 0 || v > 100 {
			return false
		}
	}
	return true
}

// Detection один найденный объект.
type Detection struct {
	Label            string  `json:"label"`
	Confidence       float64 `json:"confidence"`
	BBox             BBox    `json:"bbox"`
	TemperatureLabel string  `json:"temperature"`
}

// TemperatureFor возвращает метку температуры так же, как её считает сервис детекции.
func TemperatureFor(confidence float64) string {
	if confidence > HotConfidence {
		return TemperatureHot
	}
	return TemperatureWarm
}

// NewDetection собирает детекцию и проверяет диапазоны значений.
func NewDetection(label string, confidence float64, box BBox, temperature string) (Detection, error) {
	if confidence < 0 || confidence > 1 {
		return Detection{}, fmt.Errorf("confidence %v out of [0,1]: %w", confidence, ErrMalformedResponse)
	}
	if !box.Valid() {
		return Detection{}, fmt.Errorf("bbox %+v out of [0,100]: %w", box, ErrMalformedResponse)
	}
	if temperature == "" {
		temperature = TemperatureFor(confidence)
	}

	return Detection{
		Label:            label,
		Confidence:       confidence,
		BBox:             box,
		TemperatureLabel: temperature,
	}, nil
}

// DetectionResult хранит итог одного запроса детекции.
// Count всегда равен len(Detections).
type DetectionResult struct {
	Detections     []Detection `json:"detections"`
	OutputImageURI string      `json:"output_image"`
	InputImageURI  string      `json:"input_image,omitempty"`
	Count          int         `json:"detection_count"`
}

// NewDetectionResult создаёт результат, сохраняя порядок детекций от сервера.
func NewDetectionResult(detections []Detection, outputImage, inputImage string) (*DetectionResult, error) {
	items := make([]Detection, len(detections))
	copy(items, detections)

	for i, d := range items {
		if _, err := NewDetection(d.Label, d.Confidence, d.BBox, d.TemperatureLabel); err != nil {
			return nil, fmt.Errorf("detection %d: %w", i, err)
		}
	}

	return &DetectionResult{
		Detections:     items,
		OutputImageURI: outputImage,
		InputImageURI:  inputImage,
		Count:          len(items),
	}, nil
}

// Labels возвращает метки детекций в исходном порядке.
func (r *DetectionResult) Labels() []string {
	labels := make([]string, 0, len(r.Detections))
	for _, d := range r.Detections {
		labels = append(labels, d.Label)
	}
	return labels
}
