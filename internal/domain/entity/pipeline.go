package entity

import "time"

// SubmitState состояние клиента детекции
type SubmitState string

const (
	SubmitIdle       SubmitState = "idle"
	SubmitSubmitting SubmitState = "submitting"
	SubmitSucceeded  SubmitState = "succeeded"
	SubmitFailed     SubmitState = "failed"
)

// EventKind тип события конвейера, которое показывается пользователю
type EventKind string

const (
	EventResultReplaced EventKind = "result_replaced"
	EventResultCleared  EventKind = "result_cleared"
	EventNotice         EventKind = "notice"
	EventRedirect       EventKind = "redirect"
)

// Event уведомление для интерфейса (аналог всплывающего сообщения).
type Event struct {
	Kind    EventKind        `json:"type"`
	Message string           `json:"message,omitempty"`
	Result  *DetectionResult `json:"result,omitempty"`
}

// HistoryEntry сохранённый успешный запуск детекции.
type HistoryEntry struct {
	ID         int64
	UserID     string
	Count      int
	Labels     []string
	Detections []Detection
	CreatedAt  time.Time
}
