package app

import (
	"context"

	"thermal-vision/internal/domain/entity"
	"thermal-vision/internal/domain/port"
	"thermal-vision/internal/logger"
)

// PipelineDeps зависимости одного экземпляра конвейера.
type PipelineDeps struct {
	Source         port.SessionSource
	Redirector     port.Redirector
	Notifier       port.Notifier
	Endpoint       port.DetectionEndpoint
	Previewer      port.Previewer
	History        port.HistoryRepository // может быть nil
	MaxUploadBytes int64
	Log            *logger.Logger
}

// Pipeline состояние экрана детекции: сессия, выбранное изображение,
// клиент детекции и последний результат. Меняется только через свои методы.
type Pipeline struct {
	gate     *SessionGate
	ingest   *ImageIngest
	client   *DetectionClient
	store    *ResultStore
	notifier port.Notifier
	history  port.HistoryRepository
	log      *logger.Logger
}

func NewPipeline(d PipelineDeps) *Pipeline {
	notifier := d.Notifier
	if notifier == nil {
		notifier = nopNotifier{}
	}

	store := NewResultStore()
	gate := NewSessionGate(d.Source, d.Redirector, d.Log)

	return &Pipeline{
		gate:     gate,
		ingest:   NewImageIngest(d.Previewer, store, d.MaxUploadBytes, d.Log),
		client:   NewDetectionClient(d.Endpoint, store, gate, d.Log),
		store:    store,
		notifier: notifier,
		history:  d.History,
		log:      d.Log,
	}
}

// Open подключает шлюз сессии. Если сессии нет, редирект уже выполнен
// и возвращается ErrUnauthenticated.
func (p *Pipeline) Open(ctx context.Context) error {
	if err := p.gate.Open(ctx); err != nil {
		return err
	}
	if p.gate.Redirected() {
		return entity.ErrUnauthenticated
	}
	return nil
}

// Close освобождает подписку на сессию.
func (p *Pipeline) Close() {
	p.gate.Close()
}

// Closed сообщает, что экземпляр больше не обслуживает пользователя.
func (p *Pipeline) Closed() bool {
	return p.gate.Redirected()
}

// SelectFile принимает новое изображение и сбрасывает прошлый результат.
func (p *Pipeline) SelectFile(ctx context.Context, file port.ImageFile) (*entity.ImageAsset, error) {
	if _, err := p.gate.RequireSession(); err != nil {
		return nil, p.fail(err)
	}

	asset, err := p.ingest.SelectFile(ctx, file)
	if err != nil {
		return nil, p.fail(err)
	}

	p.notifier.Notify(entity.Event{Kind: entity.EventResultCleared})
	return asset, nil
}

// Submit запускает детекцию текущего изображения.
func (p *Pipeline) Submit(ctx context.Context) (*entity.DetectionResult, error) {
	asset := p.ingest.Current()
	session := p.gate.CurrentSession()

	result, err := p.client.Submit(ctx, asset, session)
	if err != nil {
		return nil, p.fail(err)
	}

	p.notifier.Notify(entity.Event{Kind: entity.EventResultReplaced, Result: result})
	p.record(ctx, session, result)
	return result, nil
}

// record сохраняет успешный результат в историю; ошибка только логируется.
func (p *Pipeline) record(ctx context.Context, session *entity.Session, result *entity.DetectionResult) {
	if p.history == nil {
		return
	}
	if _, err := p.history.Record(ctx, session.UserID, result); err != nil {
		p.log.Error("record detection history for %s: %v", session.UserID, err)
	}
}

// fail уведомляет пользователя об ошибке и возвращает её дальше.
func (p *Pipeline) fail(err error) error {
	if silent(err) {
		return err
	}
	p.notifier.Notify(entity.Event{Kind: entity.EventNotice, Message: UserMessage(err)})
	return err
}

func (p *Pipeline) Current() *entity.DetectionResult {
	return p.store.Current()
}

func (p *Pipeline) Asset() *entity.ImageAsset {
	return p.ingest.Current()
}

func (p *Pipeline) State() entity.SubmitState {
	return p.client.State()
}

func (p *Pipeline) Session() *entity.Session {
	return p.gate.CurrentSession()
}

type nopNotifier struct{}

func (nopNotifier) Notify(entity.Event) {}
