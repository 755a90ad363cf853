package port

import "thermal-vision/internal/domain/entity"

// Notifier доставляет события конвейера в интерфейс пользователя
type Notifier interface {
	Notify(event entity.Event)
}
