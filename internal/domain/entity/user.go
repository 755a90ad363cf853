package entity

import "strconv"

// UserState состояние пользователя в диалоге
type UserState string

const (
	StateSignedOut     UserState = "signed_out"     // Нет сессии, ждём /login
	StateMainMenu      UserState = "main_menu"      // В главном меню
	StateAwaitingPhoto UserState = "awaiting_photo" // Ожидание термоснимка
	StateReadyToDetect UserState = "ready"          // Снимок принят, ждём /detect
	StateProcessing    UserState = "processing"     // Запрос детекции в полёте
)

// User представляет пользователя бота
type User struct {
	ID     int64     // Telegram User ID
	ChatID int64     // Telegram Chat ID
	State  UserState // Текущее состояние пользователя
}

// NewUser создаёт нового пользователя; до входа он считается неаутентифицированным
func NewUser(userID, chatID int64) *User {
	return &User{
		ID:     userID,
		ChatID: chatID,
		State:  StateSignedOut,
	}
}

// SetState обновляет состояние пользователя
func (u *User) SetState(state UserState) {
	u.State = state
}

// SessionKey ключ сессии чата у провайдера аутентификации
func (u *User) SessionKey() string {
	return "tg:" + strconv.FormatInt(u.ChatID, 10)
}
