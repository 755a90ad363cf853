package port

import (
	"context"

	"thermal-vision/internal/domain/entity"
)

// HistoryRepository интерфейс хранилища истории детекций
type HistoryRepository interface {
	// Record сохраняет успешный результат и возвращает ID записи
	Record(ctx context.Context, userID string, result *entity.DetectionResult) (int64, error)

	// ListByUser возвращает последние записи пользователя, новые первыми
	ListByUser(ctx context.Context, userID string, limit int) ([]entity.HistoryEntry, error)
}
