package port

import (
	"context"

	"thermal-vision/internal/domain/entity"
)

// UserRepository хранит диалоговое состояние пользователей бота
type UserRepository interface {
	// Get возвращает пользователя чата; нового создаёт в состоянии signed_out
	Get(ctx context.Context, userID, chatID int64) (*entity.User, error)

	// Save сохраняет пользователя целиком
	Save(ctx context.Context, user *entity.User) error

	// CountByState считает пользователей в заданном состоянии
	CountByState(ctx context.Context, state entity.UserState) (int, error)
}
