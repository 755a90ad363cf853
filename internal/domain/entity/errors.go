package entity

import "errors"

var (
	ErrInvalidFileType   = errors.New("invalid file type")
	ErrNoImageSelected   = errors.New("no image selected")
	ErrUnauthenticated   = errors.New("unauthenticated")
	ErrAlreadyInProgress = errors.New("detection already in progress")
	ErrMalformedResponse = errors.New("malformed detection response")

	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrSelectionSuperseded декодирование завершилось после более нового выбора файла.
	ErrSelectionSuperseded = errors.New("selection superseded")
	// ErrResultDiscarded ответ пришёл, но сессия или выбор изображения уже сменились.
	ErrResultDiscarded = errors.New("detection result discarded")
)

// DetectionServiceError ошибка сервиса детекции с сообщением для пользователя.
type DetectionServiceError struct {
	Message string
	Cause   error
}

func (e *DetectionServiceError) Error() string {
	return "detection service: " + e.Message
}

func (e *DetectionServiceError) Unwrap() error {
	return e.Cause
}
