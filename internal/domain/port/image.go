package port

import (
	"context"
	"io"
)

// ImageFile файл, выбранный пользователем.
type ImageFile interface {
	Name() string
	// ContentType объявленный тип файла.
	ContentType() string
	Open() (io.ReadCloser, error)
}

// Previewer превращает байты изображения в представление для предпросмотра
type Previewer interface {
	Preview(ctx context.Context, data []byte) (string, error)
}
