package container

import (
	app "thermal-vision/internal/application"
	"thermal-vision/internal/domain/port"
	"thermal-vision/internal/logger"
)

// Deps внешние зависимости, собранные в main.
type Deps struct {
	UserRepo       port.UserRepository
	Auth           port.Authenticator
	Endpoint       port.DetectionEndpoint
	Previewer      port.Previewer
	History        port.HistoryRepository
	MaxUploadBytes int64
	Log            *logger.Logger
}

type Container struct {
	UserService *app.UserService
	Auth        port.Authenticator
	History     port.HistoryRepository
	Log         *logger.Logger

	deps Deps
}

func New(d Deps) *Container {
	return &Container{
		UserService: app.NewUserService(d.UserRepo),
		Auth:        d.Auth,
		History:     d.History,
		Log:         d.Log,
		deps:        d,
	}
}

// NewPipeline собирает конвейер детекции для клиента с ключом сессии key.
// Конвейер ещё не открыт: вызывающий должен вызвать Open.
func (c *Container) NewPipeline(key string, redirector port.Redirector, notifier port.Notifier) *app.Pipeline {
	return app.NewPipeline(app.PipelineDeps{
		Source:         c.Auth.Source(key),
		Redirector:     redirector,
		Notifier:       notifier,
		Endpoint:       c.deps.Endpoint,
		Previewer:      c.deps.Previewer,
		History:        c.deps.History,
		MaxUploadBytes: c.deps.MaxUploadBytes,
		Log:            c.Log,
	})
}
