package telegram

import (
	"context"
	"errors"
	"sync"

	app "thermal-vision/internal/application"
	"thermal-vision/internal/domain/entity"
)

// chatRegistry хранит открытые конвейеры по чатам.
type chatRegistry struct {
	mu        sync.Mutex
	pipelines map[int64]*app.Pipeline
}

func newChatRegistry() *chatRegistry {
	return &chatRegistry{pipelines: make(map[int64]*app.Pipeline)}
}

// get возвращает действующий конвейер чата или nil.
func (r *chatRegistry) get(chatID int64) *app.Pipeline {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := r.pipelines[chatID]
	if p == nil || p.Closed() {
		return nil
	}
	return p
}

// putIfAbsent регистрирует p; если чат уже обслуживается, возвращает прежний конвейер.
func (r *chatRegistry) putIfAbsent(chatID int64, p *app.Pipeline) (*app.Pipeline, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing := r.pipelines[chatID]; existing != nil && !existing.Closed() {
		return existing, false
	}
	r.pipelines[chatID] = p
	return p, true
}

// drop удаляет конвейер, только если он всё ещё зарегистрирован за чатом.
func (r *chatRegistry) drop(chatID int64, p *app.Pipeline) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.pipelines[chatID] == p {
		delete(r.pipelines, chatID)
	}
}

func (r *chatRegistry) closeAll() {
	r.mu.Lock()
	pipelines := r.pipelines
	r.pipelines = make(map[int64]*app.Pipeline)
	r.mu.Unlock()

	for _, p := range pipelines {
		p.Close()
	}
}

// redirectFunc адаптирует функцию к port.Redirector.
type redirectFunc func()

func (f redirectFunc) RedirectToSignIn() { f() }

// chatNotifier показывает события конвейера в чате.
type chatNotifier struct {
	bot    *Bot
	chatID int64
}

func (n *chatNotifier) Notify(event entity.Event) {
	switch event.Kind {
	case entity.EventNotice:
		n.bot.sendMessage(n.chatID, "⚠️ "+event.Message)
	case entity.EventResultReplaced:
		if event.Result != nil {
			n.bot.sendResult(n.chatID, event.Result)
		}
	}
}

// pipeline возвращает конвейер чата, открывая новый при необходимости.
// Без сессии конвейер сам отправит приглашение войти, а вернётся ошибка.
func (b *Bot) pipeline(ctx context.Context, user *entity.User) (*app.Pipeline, error) {
	if p := b.chats.get(user.ChatID); p != nil {
		return p, nil
	}

	var p *app.Pipeline
	redirect := redirectFunc(func() { b.signedOut(user, p) })
	p = b.container.NewPipeline(user.SessionKey(), redirect, &chatNotifier{bot: b, chatID: user.ChatID})

	if err := p.Open(ctx); err != nil {
		if !errors.Is(err, entity.ErrUnauthenticated) {
			b.log.Error("open pipeline for chat %d: %v", user.ChatID, err)
		}
		return nil, err
	}

	registered, ok := b.chats.putIfAbsent(user.ChatID, p)
	if !ok {
		p.Close()
	}
	return registered, nil
}

// signedOut вызывается, когда сессия чата пропала.
func (b *Bot) signedOut(user *entity.User, p *app.Pipeline) {
	b.chats.drop(user.ChatID, p)
	b.move(context.Background(), user, b.users.SignedOut)
	b.sendMessage(user.ChatID, msgSignInPrompt)
}
