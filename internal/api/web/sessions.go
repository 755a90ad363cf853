package web

import (
	"context"
	"errors"
	"sync"

	app "thermal-vision/internal/application"
	"thermal-vision/internal/domain/entity"
)

const signInPath = "/login"

// sessionRegistry хранит открытые конвейеры по ключу cookie.
type sessionRegistry struct {
	mu        sync.Mutex
	pipelines map[string]*app.Pipeline
}

func newSessionRegistry() *sessionRegistry {
	return &sessionRegistry{pipelines: make(map[string]*app.Pipeline)}
}

func (r *sessionRegistry) get(key string) *app.Pipeline {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := r.pipelines[key]
	if p == nil || p.Closed() {
		return nil
	}
	return p
}

func (r *sessionRegistry) putIfAbsent(key string, p *app.Pipeline) (*app.Pipeline, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing := r.pipelines[key]; existing != nil && !existing.Closed() {
		return existing, false
	}
	r.pipelines[key] = p
	return p, true
}

func (r *sessionRegistry) drop(key string, p *app.Pipeline) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.pipelines[key] == p {
		delete(r.pipelines, key)
	}
}

func (r *sessionRegistry) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pipelines)
}

func (r *sessionRegistry) closeAll() {
	r.mu.Lock()
	pipelines := r.pipelines
	r.pipelines = make(map[string]*app.Pipeline)
	r.mu.Unlock()

	for _, p := range pipelines {
		p.Close()
	}
}

// hubNotifier отправляет события конвейера во вкладки браузера.
type hubNotifier struct {
	hub *Hub
	key string
}

func (n *hubNotifier) Notify(event entity.Event) {
	n.hub.Send(n.key, event)
}

// hubRedirector уводит вкладки сессии на страницу входа и освобождает конвейер.
type hubRedirector struct {
	server *Server
	key    string
	p      *app.Pipeline
}

func (r *hubRedirector) RedirectToSignIn() {
	r.server.sessions.drop(r.key, r.p)
	r.server.hub.Send(r.key, entity.Event{Kind: entity.EventRedirect, Message: signInPath})
}

// pipeline возвращает конвейер сессии key, открывая его при первом обращении.
func (s *Server) pipeline(ctx context.Context, key string) (*app.Pipeline, error) {
	if p := s.sessions.get(key); p != nil {
		return p, nil
	}

	redirector := &hubRedirector{server: s, key: key}
	p := s.container.NewPipeline(key, redirector, &hubNotifier{hub: s.hub, key: key})
	redirector.p = p

	if err := p.Open(ctx); err != nil {
		if !errors.Is(err, entity.ErrUnauthenticated) {
			s.log.Error("open pipeline: %v", err)
		}
		return nil, err
	}

	registered, ok := s.sessions.putIfAbsent(key, p)
	if !ok {
		p.Close()
	}
	return registered, nil
}
