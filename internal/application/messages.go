package app

import (
	"errors"

	"thermal-vision/internal/domain/entity"
)

// UserMessage превращает ошибку конвейера в текст короткого уведомления.
func UserMessage(err error) string {
	var dse *entity.DetectionServiceError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &dse):
		return dse.Message
	case errors.Is(err, entity.ErrInvalidFileType):
		return "Please select a valid image file"
	case errors.Is(err, entity.ErrNoImageSelected):
		return "Please upload an image first"
	case errors.Is(err, entity.ErrUnauthenticated):
		return "Please sign in to run detection"
	case errors.Is(err, entity.ErrAlreadyInProgress):
		return "Detection is already running, please wait"
	default:
		return "Something went wrong, please try again"
	}
}

// silent ошибки, о которых пользователю не сообщаем.
func silent(err error) bool {
	return errors.Is(err, entity.ErrResultDiscarded) || errors.Is(err, entity.ErrSelectionSuperseded)
}
