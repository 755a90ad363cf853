package storage

import (
	"context"
	"sync"

	"thermal-vision/internal/domain/entity"
	"thermal-vision/internal/domain/port"
)

// MemoryUserRepository in-memory хранилище пользователей бота по чатам
type MemoryUserRepository struct {
	mu    sync.RWMutex
	users map[int64]*entity.User
}

// NewMemoryUserRepository создаёт новое in-memory хранилище
func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		users: make(map[int64]*entity.User),
	}
}

// Get возвращает копию пользователя чата, создаёт нового если не найден
func (r *MemoryUserRepository) Get(ctx context.Context, userID, chatID int64) (*entity.User, error) {
	r.mu.RLock()
	user, exists := r.users[chatID]
	r.mu.RUnlock()

	if exists {
		u := *user
		return &u, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Другой обработчик мог успеть создать пользователя
	if user, exists := r.users[chatID]; exists {
		u := *user
		return &u, nil
	}

	newUser := entity.NewUser(userID, chatID)
	r.users[chatID] = newUser

	u := *newUser
	return &u, nil
}

// Save сохраняет состояние пользователя
func (r *MemoryUserRepository) Save(ctx context.Context, user *entity.User) error {
	u := *user

	r.mu.Lock()
	r.users[user.ChatID] = &u
	r.mu.Unlock()

	return nil
}

// CountByState считает пользователей в состоянии state
func (r *MemoryUserRepository) CountByState(ctx context.Context, state entity.UserState) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, u := range r.users {
		if u.State == state {
			n++
		}
	}

	return n, nil
}

// Проверка реализации интерфейса
var _ port.UserRepository = (*MemoryUserRepository)(nil)
