package app

import (
	"context"
	"fmt"
	"io"
	"sync"

	"thermal-vision/internal/domain/entity"
	"thermal-vision/internal/domain/port"
	"thermal-vision/internal/logger"
)

// ImageIngest принимает выбранный файл и готовит его предпросмотр.
type ImageIngest struct {
	previewer port.Previewer
	store     *ResultStore
	maxBytes  int64
	log       *logger.Logger

	mu       sync.Mutex
	sequence uint64
	current  *entity.ImageAsset
}

func NewImageIngest(previewer port.Previewer, store *ResultStore, maxBytes int64, log *logger.Logger) *ImageIngest {
	return &ImageIngest{
		previewer: previewer,
		store:     store,
		maxBytes:  maxBytes,
		log:       log,
	}
}

// SelectFile проверяет тип файла, читает его и заменяет текущее изображение.
// При отказе состояние не меняется.
func (i *ImageIngest) SelectFile(ctx context.Context, file port.ImageFile) (*entity.ImageAsset, error) {
	if !entity.IsImageType(file.ContentType()) {
		return nil, fmt.Errorf("%q has type %q: %w", file.Name(), file.ContentType(), entity.ErrInvalidFileType)
	}

	i.mu.Lock()
	i.sequence++
	seq := i.sequence
	i.mu.Unlock()

	data, preview, err := i.decode(ctx, file)
	if err != nil {
		return nil, err
	}

	asset := &entity.ImageAsset{
		Name:     file.Name(),
		RawBytes: data,
		MimeType: file.ContentType(),
		Preview:  preview,
		Sequence: seq,
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	if seq != i.sequence {
		i.log.Info("dropping stale decode of %q (selection %d, latest %d)", asset.Name, seq, i.sequence)
		return nil, entity.ErrSelectionSuperseded
	}

	i.current = asset
	i.store.Clear()
	return asset, nil
}

// decode читает файл до конца и строит предпросмотр.
func (i *ImageIngest) decode(ctx context.Context, file port.ImageFile) ([]byte, string, error) {
	rc, err := file.Open()
	if err != nil {
		return nil, "", fmt.Errorf("open %q: %w", file.Name(), err)
	}
	defer rc.Close()

	var r io.Reader = rc
	if i.maxBytes > 0 {
		r = io.LimitReader(rc, i.maxBytes+1)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, "", fmt.Errorf("read %q: %w", file.Name(), err)
	}
	if i.maxBytes > 0 && int64(len(data)) > i.maxBytes {
		return nil, "", fmt.Errorf("%q is larger than %d bytes: %w", file.Name(), i.maxBytes, entity.ErrInvalidFileType)
	}
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}

	preview, err := i.previewer.Preview(ctx, data)
	if err != nil {
		return nil, "", fmt.Errorf("preview %q: %v: %w", file.Name(), err, entity.ErrInvalidFileType)
	}

	return data, preview, nil
}

// Current возвращает последнее принятое изображение или nil.
func (i *ImageIngest) Current() *entity.ImageAsset {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.current
}
