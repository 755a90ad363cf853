package port

import (
	"context"

	"thermal-vision/internal/domain/entity"
)

// SessionListener получает текущую сессию после каждого изменения или nil, если сессии нет.
type SessionListener func(session *entity.Session)

// SessionSource доступ к внешнему провайдеру аутентификации для одного клиента.
type SessionSource interface {
	// Current возвращает текущую сессию или nil.
	Current(ctx context.Context) (*entity.Session, error)

	// Subscribe подписывает на изменения сессии и возвращает функцию отписки.
	Subscribe(listener SessionListener) (unsubscribe func())
}

// Redirector уводит пользователя на страницу входа.
type Redirector interface {
	RedirectToSignIn()
}

// Authenticator вход и выход по ключу клиента (cookie или чат).
type Authenticator interface {
	// SignIn открывает сессию. При неверном пароле возвращает entity.ErrInvalidCredentials.
	SignIn(key, userID, email, password string) (*entity.Session, error)
	SignOut(key string)
	Source(key string) SessionSource
}
