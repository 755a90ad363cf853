package entity

import "time"

// Session аутентифицированный пользователь, открывающий доступ к детекции.
type Session struct {
	UserID    string
	Email     string
	ExpiresAt time.Time // нулевое значение означает бессрочную сессию
}

// Active сообщает, действует ли сессия на момент now.
func (s *Session) Active(now time.Time) bool {
	if s == nil {
		return false
	}
	return s.ExpiresAt.IsZero() || now.Before(s.ExpiresAt)
}

// SameUser сравнивает владельцев двух сессий.
func (s *Session) SameUser(other *Session) bool {
	return s != nil && other != nil && s.UserID == other.UserID
}
