package port

import (
	"context"

	"thermal-vision/internal/domain/entity"
)

// DetectionEndpoint интерфейс удалённого сервиса детекции
type DetectionEndpoint interface {
	// Detect отправляет изображение и возвращает разобранный результат.
	// Отказ сервиса возвращается как *entity.DetectionServiceError,
	// неразборчивый ответ как ошибка, обёрнутая вокруг entity.ErrMalformedResponse.
	Detect(ctx context.Context, payload entity.UploadPayload) (*entity.DetectionResult, error)
}
