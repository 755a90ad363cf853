package detectapi

import (
	"encoding/json"
	"fmt"

	"thermal-vision/internal/domain/entity"
)

const msgDetectionFailed = "Detection failed"

// reply тело ответа POST /detect. Указатели отличают отсутствующее поле от нулевого.
type reply struct {
	Success        *bool            `json:"success"`
	Detections     *[]wireDetection `json:"detections"`
	OutputImage    *string          `json:"output_image"`
	InputImage     *string          `json:"input_image"`
	DetectionCount *int             `json:"detection_count"`
	ModelMode      string           `json:"model_mode"`
	Error          *string          `json:"error"`
}

type wireDetection struct {
	Label       *string   `json:"label"`
	Confidence  *float64  `json:"confidence"`
	BBox        *wireBBox `json:"bbox"`
	Temperature *string   `json:"temperature"`
}

type wireBBox struct {
	X      *float64 `json:"x"`
	Y      *float64 `json:"y"`
	Width  *float64 `json:"width"`
	Height *float64 `json:"height"`
}

// failure тело ответа с ошибкой при любом статусе.
type failure struct {
	Error string `json:"error"`
}

func malformed(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, entity.ErrMalformedResponse)...)
}

// parseSuccess разбирает тело ответа со статусом 2xx.
func parseSuccess(body []byte) (*entity.DetectionResult, error) {
	var r reply
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, malformed("decode response: %v", err)
	}
	if r.Success == nil {
		return nil, malformed("field success is missing")
	}

	if !*r.Success {
		msg := msgDetectionFailed
		if r.Error != nil && *r.Error != "" {
			msg = *r.Error
		}
		return nil, &entity.DetectionServiceError{Message: msg}
	}

	if r.Detections == nil {
		return nil, malformed("field detections is missing")
	}
	if r.OutputImage == nil {
		return nil, malformed("field output_image is missing")
	}
	if r.DetectionCount != nil && *r.DetectionCount != len(*r.Detections) {
		return nil, malformed("detection_count %d does not match %d detections", *r.DetectionCount, len(*r.Detections))
	}

	detections := make([]entity.Detection, 0, len(*r.Detections))
	for i, wd := range *r.Detections {
		d, err := wd.toEntity()
		if err != nil {
			return nil, fmt.Errorf("detection %d: %w", i, err)
		}
		detections = append(detections, d)
	}

	input := ""
	if r.InputImage != nil {
		input = *r.InputImage
	}

	return entity.NewDetectionResult(detections, *r.OutputImage, input)
}

func (w wireDetection) toEntity() (entity.Detection, error) {
	if w.Label == nil || w.Confidence == nil || w.BBox == nil {
		return entity.Detection{}, malformed("label, confidence and bbox are required")
	}
	b := w.BBox
	if b.X == nil || b.Y == nil || b.Width == nil || b.Height == nil {
		return entity.Detection{}, malformed("bbox needs x, y, width and height")
	}

	temperature := ""
	if w.Temperature != nil {
		temperature = *w.Temperature
	}

	return entity.NewDetection(*w.Label, *w.Confidence, entity.BBox{
		X:      *b.X,
		Y:      *b.Y,
		Width:  *b.Width,
		Height: *b.Height,
	}, temperature)
}

// parseFailure достаёт поле error из тела неуспешного ответа, если оно есть.
func parseFailure(body []byte) string {
	var f failure
	if err := json.Unmarshal(body, &f); err != nil {
		return ""
	}
	return f.Error
}
