package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"thermal-vision/internal/domain/entity"
	"thermal-vision/internal/domain/port"
	"thermal-vision/internal/logger"
)

// Provider выдаёт сессии по общему паролю и оповещает подписчиков об их изменениях.
// Ключ сессии: cookie браузера или идентификатор чата.
type Provider struct {
	password string
	ttl      time.Duration
	now      func() time.Time
	log      *logger.Logger

	mu        sync.Mutex
	sessions  map[string]*entity.Session
	listeners map[string]map[uint64]port.SessionListener
	nextID    uint64
}

func NewProvider(password string, ttl time.Duration, log *logger.Logger) *Provider {
	return &Provider{
		password:  password,
		ttl:       ttl,
		now:       time.Now,
		log:       log,
		sessions:  make(map[string]*entity.Session),
		listeners: make(map[string]map[uint64]port.SessionListener),
	}
}

// NewToken генерирует случайный ключ сессии для cookie.
func NewToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// SignIn проверяет пароль и открывает сессию под ключом key.
func (p *Provider) SignIn(key, userID, email, password string) (*entity.Session, error) {
	if p.password == "" || subtle.ConstantTimeCompare([]byte(password), []byte(p.password)) != 1 {
		return nil, entity.ErrInvalidCredentials
	}

	session := &entity.Session{UserID: userID, Email: email}
	if p.ttl > 0 {
		session.ExpiresAt = p.now().Add(p.ttl)
	}

	p.mu.Lock()
	p.sessions[key] = session
	p.mu.Unlock()

	p.log.Info("user %s signed in", userID)
	p.notify(key, session)
	return session, nil
}

// SignOut закрывает сессию; подписчики получают nil.
func (p *Provider) SignOut(key string) {
	p.mu.Lock()
	session, ok := p.sessions[key]
	delete(p.sessions, key)
	p.mu.Unlock()

	if !ok {
		return
	}
	p.log.Info("user %s signed out", session.UserID)
	p.notify(key, nil)
}

// Lookup возвращает действующую сессию ключа или nil.
func (p *Provider) Lookup(key string) *entity.Session {
	p.mu.Lock()
	defer p.mu.Unlock()

	session := p.sessions[key]
	if !session.Active(p.now()) {
		return nil
	}
	return session
}

// Sweep удаляет истёкшие сессии и возвращает их число.
func (p *Provider) Sweep() int {
	now := p.now()

	p.mu.Lock()
	var expired []string
	for key, s := range p.sessions {
		if !s.Active(now) {
			expired = append(expired, key)
			delete(p.sessions, key)
		}
	}
	p.mu.Unlock()

	for _, key := range expired {
		p.notify(key, nil)
	}
	if len(expired) > 0 {
		p.log.Info("expired %d session(s)", len(expired))
	}
	return len(expired)
}

// Run периодически вычищает истёкшие сессии до отмены ctx.
func (p *Provider) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Sweep()
		}
	}
}

// Source возвращает источник сессии для одного ключа.
func (p *Provider) Source(key string) port.SessionSource {
	return &source{provider: p, key: key}
}

func (p *Provider) subscribe(key string, listener port.SessionListener) func() {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	if p.listeners[key] == nil {
		p.listeners[key] = make(map[uint64]port.SessionListener)
	}
	p.listeners[key][id] = listener
	p.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			defer p.mu.Unlock()
			delete(p.listeners[key], id)
			if len(p.listeners[key]) == 0 {
				delete(p.listeners, key)
			}
		})
	}
}

// subscribers считает подписки ключа.
func (p *Provider) subscribers(key string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.listeners[key])
}

// notify вызывает слушателей вне блокировки: они могут отписаться прямо из обработчика.
func (p *Provider) notify(key string, session *entity.Session) {
	p.mu.Lock()
	listeners := make([]port.SessionListener, 0, len(p.listeners[key]))
	for _, l := range p.listeners[key] {
		listeners = append(listeners, l)
	}
	p.mu.Unlock()

	for _, l := range listeners {
		l(session)
	}
}

type source struct {
	provider *Provider
	key      string
}

func (s *source) Current(ctx context.Context) (*entity.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.provider.Lookup(s.key), nil
}

func (s *source) Subscribe(listener port.SessionListener) func() {
	return s.provider.subscribe(s.key, listener)
}

// Проверка реализации интерфейсов
var (
	_ port.SessionSource = (*source)(nil)
	_ port.Authenticator = (*Provider)(nil)
)
