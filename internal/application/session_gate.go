package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"thermal-vision/internal/domain/entity"
	"thermal-vision/internal/domain/port"
	"thermal-vision/internal/logger"
)

// SessionGate следит за сессией и уводит на вход, когда она пропадает.
type SessionGate struct {
	source     port.SessionSource
	redirector port.Redirector
	log        *logger.Logger
	now        func() time.Time

	mu          sync.RWMutex
	session     *entity.Session
	unsubscribe func()
	closed      bool
	redirected  bool
}

func NewSessionGate(source port.SessionSource, redirector port.Redirector, log *logger.Logger) *SessionGate {
	return &SessionGate{
		source:     source,
		redirector: redirector,
		log:        log,
		now:        time.Now,
	}
}

// Open подписывается на изменения и затем запрашивает текущую сессию.
// Если сессии нет, сразу выполняет редирект.
func (g *SessionGate) Open(ctx context.Context) error {
	g.mu.RLock()
	closed := g.closed
	g.mu.RUnlock()
	if closed {
		return fmt.Errorf("open closed gate: %w", entity.ErrUnauthenticated)
	}

	// Сначала подписка: выход, случившийся до ответа Current, не потеряется.
	// Подписка вне блокировки, источник может сразу вызвать слушателя.
	unsubscribe := g.source.Subscribe(g.onChange)

	g.mu.Lock()
	if g.closed {
		// Редирект успел закрыть шлюз, пока шла подписка
		g.mu.Unlock()
		unsubscribe()
		return nil
	}
	g.unsubscribe = unsubscribe
	g.mu.Unlock()

	session, err := g.source.Current(ctx)
	if err != nil {
		g.Close()
		return fmt.Errorf("query session: %w", err)
	}

	g.onChange(session)
	return nil
}

func (g *SessionGate) onChange(session *entity.Session) {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return
	}
	g.session = session
	g.mu.Unlock()

	if !session.Active(g.now()) {
		g.redirect()
	}
}

// redirect срабатывает один раз и снимает подписку.
func (g *SessionGate) redirect() {
	g.mu.Lock()
	if g.redirected {
		g.mu.Unlock()
		return
	}
	g.redirected = true
	g.session = nil
	g.mu.Unlock()

	g.log.Info("session is gone, redirecting to sign-in")
	g.redirector.RedirectToSignIn()
	g.Close()
}

// CurrentSession возвращает действующую сессию или nil.
// Истёкшая сессия сразу приводит к редиректу, не дожидаясь оповещения источника.
func (g *SessionGate) CurrentSession() *entity.Session {
	g.mu.RLock()
	session, closed := g.session, g.closed
	g.mu.RUnlock()

	if closed || session == nil {
		return nil
	}
	if !session.Active(g.now()) {
		g.redirect()
		return nil
	}
	return session
}

func (g *SessionGate) RequireSession() (*entity.Session, error) {
	session := g.CurrentSession()
	if session == nil {
		return nil, entity.ErrUnauthenticated
	}
	return session, nil
}

// Holds сообщает, что тот же пользователь всё ещё вошёл.
func (g *SessionGate) Holds(session *entity.Session) bool {
	return g.CurrentSession().SameUser(session)
}

// Redirected сообщает, был ли выполнен редирект.
func (g *SessionGate) Redirected() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.redirected
}

// Close снимает подписку. Безопасно вызывать повторно.
func (g *SessionGate) Close() {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return
	}
	g.closed = true
	unsubscribe := g.unsubscribe
	g.unsubscribe = nil
	g.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}
