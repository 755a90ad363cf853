package telegram

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	app "thermal-vision/internal/application"
	"thermal-vision/internal/container"
	"thermal-vision/internal/domain/entity"
	"thermal-vision/internal/logger"
)

const (
	msgStart = `👋 Hi! I find people and other warm objects on thermal images.

🔐 Sign in first: /login <password>

📋 Commands:
/check - start a new check
/detect - run detection on the selected image
/history - your recent detections
/logout - sign out
/help - help
/cancel - cancel the current operation`

	msgHelp = `ℹ️ How to use the bot:

1️⃣ Sign in with /login <password>
2️⃣ Send /check and then a thermal image (photo or image file)
3️⃣ Send /detect and wait for the annotated image

💡 A new image replaces the previous one and clears its result.`

	msgSignInPrompt   = "🔐 Please sign in: /login <password>"
	msgLoginUsage     = "Usage: /login <password>"
	msgBadPassword    = "❌ Wrong password."
	msgSignedIn       = "✅ Signed in. Send /check to start."
	msgAwaitingPhoto  = "📸 Send a thermal image (photo or image file)."
	msgImageAccepted  = "🖼 Image accepted. Send /detect to run detection."
	msgCancelled      = "❌ Cancelled. Send /check for a new check."
	msgSendPhoto      = "📸 Send /check and then a thermal image."
	msgUnknownCommand = "❓ Unknown command. Use /help."
	msgProcessing     = "⏳ Running detection..."
	msgHistoryError   = "⚠️ Could not load history, please try again later."

	historyLimit = 5
)

// Bot Telegram-интерфейс конвейера детекции: один конвейер на чат.
type Bot struct {
	api       *tgbotapi.BotAPI
	container *container.Container
	users     *app.UserService
	files     *fileLoader
	chats     *chatRegistry
	log       *logger.Logger

	wg sync.WaitGroup
}

// NewBot создаёт нового бота
func NewBot(token string, c *container.Container, log *logger.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}

	log.Info("authorized on account %s", api.Self.UserName)

	return &Bot{
		api:       api,
		container: c,
		users:     c.UserService,
		files:     newFileLoader(api),
		chats:     newChatRegistry(),
		log:       log,
	}, nil
}

// Run обрабатывает обновления, пока не отменён ctx.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	defer b.shutdown()

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil || update.Message.From == nil {
				continue
			}
			b.handleMessage(ctx, update.Message)
		}
	}
}

func (b *Bot) shutdown() {
	b.api.StopReceivingUpdates()
	b.wg.Wait()
	b.chats.closeAll()
}

// handleMessage обрабатывает входящее сообщение
func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	user, err := b.users.Get(ctx, msg.From.ID, msg.Chat.ID)
	if err != nil {
		b.log.Error("get user %d: %v", msg.From.ID, err)
		return
	}

	if msg.IsCommand() {
		b.handleCommand(ctx, msg, user)
		return
	}

	if file, ok := imageFromMessage(msg, b.files); ok {
		b.handleImage(ctx, user, file)
		return
	}

	b.sendMessage(msg.Chat.ID, msgSendPhoto)
}

// handleCommand обрабатывает команды бота
func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message, user *entity.User) {
	switch msg.Command() {
	case "start":
		b.sendMessage(user.ChatID, msgStart)

	case "help":
		b.sendMessage(user.ChatID, msgHelp)

	case "login":
		b.handleLogin(ctx, msg, user)

	case "logout":
		b.handleLogout(ctx, user)

	case "check":
		if _, err := b.pipeline(ctx, user); err != nil {
			return
		}
		b.move(ctx, user, b.users.BeginCheck)
		b.sendMessage(user.ChatID, msgAwaitingPhoto)

	case "detect":
		p, err := b.pipeline(ctx, user)
		if err != nil {
			return
		}
		b.wg.Add(1)
		go b.runDetection(ctx, p, user)

	case "history":
		b.handleHistory(ctx, user)

	case "cancel":
		b.move(ctx, user, b.users.Cancel)
		b.sendMessage(user.ChatID, msgCancelled)

	default:
		b.sendMessage(user.ChatID, msgUnknownCommand)
	}
}

func (b *Bot) handleLogin(ctx context.Context, msg *tgbotapi.Message, user *entity.User) {
	password := strings.TrimSpace(msg.CommandArguments())
	if password == "" {
		b.sendMessage(user.ChatID, msgLoginUsage)
		return
	}

	// Пароль не должен оставаться в переписке
	if _, err := b.api.Request(tgbotapi.NewDeleteMessage(user.ChatID, msg.MessageID)); err != nil {
		b.log.Warning("delete login message in chat %d: %v", user.ChatID, err)
	}

	_, err := b.container.Auth.SignIn(user.SessionKey(), strconv.FormatInt(user.ID, 10), "", password)
	if errors.Is(err, entity.ErrInvalidCredentials) {
		b.sendMessage(user.ChatID, msgBadPassword)
		return
	}
	if err != nil {
		b.log.Error("sign in chat %d: %v", user.ChatID, err)
		return
	}

	if _, err := b.pipeline(ctx, user); err != nil {
		return
	}
	b.move(ctx, user, b.users.SignedIn)
	b.sendMessage(user.ChatID, msgSignedIn)
}

func (b *Bot) handleLogout(ctx context.Context, user *entity.User) {
	// Открытый конвейер сам получит выход из сессии и пришлёт приглашение войти
	open := b.chats.get(user.ChatID) != nil
	b.container.Auth.SignOut(user.SessionKey())

	if !open {
		b.move(ctx, user, b.users.SignedOut)
		b.sendMessage(user.ChatID, msgSignInPrompt)
	}
}

func (b *Bot) handleImage(ctx context.Context, user *entity.User, file *telegramFile) {
	p, err := b.pipeline(ctx, user)
	if err != nil {
		return
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()

		// Об ошибке пользователь уже узнал через уведомление
		if _, err := p.SelectFile(ctx, file); err != nil {
			b.log.Info("chat %d: image %q rejected: %v", user.ChatID, file.Name(), err)
			return
		}
		b.move(ctx, user, b.users.PhotoAccepted)
		b.sendMessage(user.ChatID, msgImageAccepted)
	}()
}

func (b *Bot) runDetection(ctx context.Context, p *app.Pipeline, user *entity.User) {
	defer b.wg.Done()

	if p.Asset() != nil && p.State() != entity.SubmitSubmitting {
		b.move(ctx, user, b.users.DetectionStarted)
		b.sendMessage(user.ChatID, msgProcessing)
	}

	_, err := p.Submit(ctx)
	if err != nil {
		b.log.Info("chat %d: detection finished with %v", user.ChatID, err)
	}
	// Состояние после идущего запроса выставит его собственная горутина
	if p.Closed() || errors.Is(err, entity.ErrAlreadyInProgress) {
		return
	}

	next := b.users.PhotoAccepted
	if p.Asset() == nil {
		next = b.users.Cancel
	}
	b.move(ctx, user, next)
}

func (b *Bot) handleHistory(ctx context.Context, user *entity.User) {
	p, err := b.pipeline(ctx, user)
	if err != nil {
		return
	}
	session := p.Session()
	if session == nil || b.container.History == nil {
		b.sendMessage(user.ChatID, msgHistoryError)
		return
	}

	entries, err := b.container.History.ListByUser(ctx, session.UserID, historyLimit)
	if err != nil {
		b.log.Error("list history for %s: %v", session.UserID, err)
		b.sendMessage(user.ChatID, msgHistoryError)
		return
	}
	b.sendMessage(user.ChatID, formatHistory(entries))
}

// transition переход диалога из UserService.
type transition func(ctx context.Context, userID, chatID int64) (*entity.User, error)

func (b *Bot) move(ctx context.Context, user *entity.User, to transition) {
	if _, err := to(ctx, user.ID, user.ChatID); err != nil {
		b.log.Error("change state of chat %d: %v", user.ChatID, err)
	}
}

// sendMessage отправляет текстовое сообщение
func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send message to chat %d: %v", chatID, err)
	}
}

// sendResult отправляет размеченное изображение с описанием находок.
func (b *Bot) sendResult(chatID int64, result *entity.DetectionResult) {
	text := formatResult(result)

	data, err := decodeDataURI(result.OutputImageURI)
	if err != nil || len(data) == 0 {
		if err != nil {
			b.log.Warning("chat %d: output image not sent: %v", chatID, err)
		}
		b.sendMessage(chatID, text)
		return
	}

	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: "detections.jpg", Bytes: data})
	if len(text) <= captionLimit {
		photo.Caption = text
	}
	if _, err := b.api.Send(photo); err != nil {
		b.log.Error("send photo to chat %d: %v", chatID, err)
		b.sendMessage(chatID, text)
		return
	}
	if photo.Caption == "" {
		b.sendMessage(chatID, text)
	}
}
