package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/disintegration/imaging"

	"thermal-vision/internal/domain/port"
)

// ImagingPreviewer строит JPEG-миниатюру в виде data URI.
type ImagingPreviewer struct {
	MaxSide int
	Quality int
}

// NewImagingPreviewer создаёт предпросмотр с ограничением по большей стороне.
func NewImagingPreviewer(maxSide int) *ImagingPreviewer {
	if maxSide <= 0 {
		maxSide = 512
	}
	return &ImagingPreviewer{
		MaxSide: maxSide,
		Quality: 85,
	}
}

// Preview декодирует изображение, уменьшает его и кодирует в data URI.
func (p *ImagingPreviewer) Preview(ctx context.Context, data []byte) (string, error) {
	if len(data) == 0 {
		return "", errors.New("empty image")
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("decode image: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	b := img.Bounds()
	if b.Dx() > p.MaxSide || b.Dy() > p.MaxSide {
		img = imaging.Fit(img, p.MaxSide, p.MaxSide, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(p.Quality)); err != nil {
		return "", fmt.Errorf("encode preview: %w", err)
	}

	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// Проверка реализации интерфейса
var _ port.Previewer = (*ImagingPreviewer)(nil)
