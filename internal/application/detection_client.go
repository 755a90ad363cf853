package app

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"strings"
	"sync"

	"thermal-vision/internal/domain/entity"
	"thermal-vision/internal/domain/port"
	"thermal-vision/internal/logger"
)

const (
	msgTransportFailure = "Detection service is unreachable"
	msgMalformed        = "Detection service returned an unreadable response"
)

// sessionHolder проверяет, что сессия, с которой начат запрос, всё ещё действует.
type sessionHolder interface {
	Holds(session *entity.Session) bool
}

// DetectionClient ведёт единственный запрос к сервису детекции.
type DetectionClient struct {
	endpoint port.DetectionEndpoint
	store    *ResultStore
	gate     sessionHolder
	log      *logger.Logger

	mu    sync.Mutex
	state entity.SubmitState
	last  entity.SubmitState
}

func NewDetectionClient(endpoint port.DetectionEndpoint, store *ResultStore, gate sessionHolder, log *logger.Logger) *DetectionClient {
	return &DetectionClient{
		endpoint: endpoint,
		store:    store,
		gate:     gate,
		log:      log,
		state:    entity.SubmitIdle,
		last:     entity.SubmitIdle,
	}
}

// State возвращает текущее состояние машины.
func (c *DetectionClient) State() entity.SubmitState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Submit отправляет изображение на детекцию. Пока запрос в полёте,
// повторный вызов сразу получает ErrAlreadyInProgress.
func (c *DetectionClient) Submit(ctx context.Context, asset *entity.ImageAsset, session *entity.Session) (*entity.DetectionResult, error) {
	if asset == nil {
		return nil, entity.ErrNoImageSelected
	}
	if session == nil {
		return nil, entity.ErrUnauthenticated
	}

	c.mu.Lock()
	if c.state == entity.SubmitSubmitting {
		c.mu.Unlock()
		return nil, entity.ErrAlreadyInProgress
	}
	c.state = entity.SubmitSubmitting
	c.mu.Unlock()

	generation := c.store.Generation()
	payload := buildPayload(asset)

	c.log.Info("submitting %q (%d bytes, %s) for user %s", payload.Filename, len(payload.Data), payload.ContentType, session.UserID)
	result, err := c.endpoint.Detect(ctx, payload)
	if err != nil {
		err = asServiceError(err)
		c.finish(entity.SubmitFailed)
		c.log.Warning("detection failed: %v", err)
		return nil, err
	}
	defer c.finish(entity.SubmitSucceeded)

	if !c.gate.Holds(session) {
		c.log.Info("discarding detection result: session of user %s ended", session.UserID)
		return nil, entity.ErrResultDiscarded
	}
	if !c.store.ReplaceIf(generation, result) {
		c.log.Info("discarding detection result: image selection changed")
		return nil, entity.ErrResultDiscarded
	}

	c.log.Info("detection succeeded: %d object(s)", result.Count)
	return result, nil
}

// lastOutcome возвращает исход последнего завершённого запроса.
func (c *DetectionClient) lastOutcome() entity.SubmitState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// finish фиксирует исход и сразу возвращает машину в Idle.
func (c *DetectionClient) finish(outcome entity.SubmitState) {
	c.mu.Lock()
	c.last = outcome
	c.state = entity.SubmitIdle
	c.mu.Unlock()
}

// buildPayload собирает тело загрузки; тип определяется по самим байтам.
func buildPayload(asset *entity.ImageAsset) entity.UploadPayload {
	contentType := http.DetectContentType(asset.RawBytes)
	if !entity.IsImageType(contentType) {
		// Форматы, которых нет в таблице сниффера (например, TIFF), отправляем как объявлены.
		contentType = asset.MimeType
	}

	name := filepath.Base(asset.Name)
	if name == "" || name == "." || name == string(filepath.Separator) {
		name = "image" + extensionFor(contentType)
	}

	return entity.UploadPayload{
		Filename:    name,
		ContentType: contentType,
		Data:        asset.RawBytes,
	}
}

func extensionFor(contentType string) string {
	switch strings.TrimPrefix(contentType, entity.ImageMIMEPrefix) {
	case "png":
		return ".png"
	case "gif":
		return ".gif"
	case "bmp":
		return ".bmp"
	case "webp":
		return ".webp"
	case "tiff":
		return ".tiff"
	default:
		return ".jpg"
	}
}

// asServiceError приводит любую ошибку обмена к *entity.DetectionServiceError.
func asServiceError(err error) error {
	var dse *entity.DetectionServiceError
	switch {
	case errors.As(err, &dse):
		return dse
	case errors.Is(err, entity.ErrMalformedResponse):
		return &entity.DetectionServiceError{Message: msgMalformed, Cause: err}
	default:
		return &entity.DetectionServiceError{Message: msgTransportFailure, Cause: err}
	}
}
