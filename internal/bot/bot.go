package bot

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/example/wordbot/internal/backup"
	"github.com/example/wordbot/internal/database"
	"github.com/example/wordbot/internal/quiz"
	"github.com/example/wordbot/internal/stats"
	"github.com/example/wordbot/pkg/models"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

// MenuButton represents a button in the menu
type MenuButton struct {
	Text         string
	CallbackData string
}

// createKeyboard creates a keyboard from menu buttons
func createKeyboard(buttons [][]MenuButton) tgbotapi.InlineKeyboardMarkup {
	var keyboard [][]tgbotapi.InlineKeyboardButton
	for _, row := range buttons {
		var keyboardRow []tgbotapi.InlineKeyboardButton
		for _, button := range row {
			keyboardRow = append(keyboardRow, tgbotapi.NewInlineKeyboardButtonData(button.Text, button.CallbackData))
		}
		keyboard = append(keyboard, keyboardRow)
	}
	return tgbotapi.NewInlineKeyboardMarkup(keyboard...)
}

// API is the part of tgbotapi.BotAPI the bot uses
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
}

// Reminders is the scheduler side used by /remind and /admin_stats
type Reminders interface {
	RunManualCheck(ctx context.Context, userID int64) error
	DueReminders(ctx context.Context, asOf time.Time) ([]models.Reminder, error)
}

// Services are the application components behind the chat commands
type Services struct {
	Store  *database.Store
	Engine *quiz.Engine
	Stats  *stats.Service
	Backup *backup.Service
}

type chatState string

const (
	stateAwaitingWords    chatState = "awaiting_words"
	stateAwaitingDocument chatState = "awaiting_document"
)

// pending is what the bot expects next from a user
type pending struct {
	state   chatState
	groupID *int64 // Target group for awaited words
}

// Bot represents the Telegram bot application
type Bot struct {
	api       API
	svc       Services
	cfg       Config
	log       logrus.FieldLogger
	limiter   *userLimiter
	reminders Reminders
	http      *http.Client
	now       func() time.Time

	mu     sync.Mutex
	states map[int64]pending
	wg     sync.WaitGroup

	// Updates waiting per sender; a key is present while its drain goroutine runs
	qmu    sync.Mutex
	queues map[int64][]tgbotapi.Update
}

// New creates a new bot instance
func New(api API, svc Services, cfg Config, log logrus.FieldLogger) *Bot {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Bot{
		api:     api,
		svc:     svc,
		cfg:     cfg,
		log:     log.WithField("component", "bot"),
		limiter: newUserLimiter(cfg.RateLimit, cfg.Burst),
		http:    &http.Client{Timeout: 30 * time.Second},
		now:     time.Now,
		states:  make(map[int64]pending),
		queues:  make(map[int64][]tgbotapi.Update),
	}
}

// SetReminders wires the scheduler used by /remind
func (b *Bot) SetReminders(r Reminders) {
	b.reminders = r
}

// Run handles updates until ctx is cancelled or the channel closes, then
// waits for in-flight handlers. Different users are served concurrently; one
// user's updates are handled one at a time in arrival order.
func (b *Bot) Run(ctx context.Context, updates <-chan tgbotapi.Update) {
	prune := time.NewTicker(limiterIdle)
	defer prune.Stop()
	defer b.wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return
		case t := <-prune.C:
			b.limiter.prune(t)
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.dispatch(ctx, update)
		}
	}
}

func (b *Bot) dispatch(ctx context.Context, update tgbotapi.Update) {
	id := senderID(update)
	b.qmu.Lock()
	queue, running := b.queues[id]
	b.queues[id] = append(queue, update)
	b.qmu.Unlock()
	if running {
		return
	}
	b.wg.Add(1)
	go b.drain(ctx, id)
}

func (b *Bot) drain(ctx context.Context, id int64) {
	defer b.wg.Done()
	for {
		b.qmu.Lock()
		queue := b.queues[id]
		if len(queue) == 0 {
			delete(b.queues, id)
			b.qmu.Unlock()
			return
		}
		next := queue[0]
		b.queues[id] = queue[1:]
		b.qmu.Unlock()

		b.handleUpdate(ctx, next)
	}
}

func senderID(update tgbotapi.Update) int64 {
	switch {
	case update.Message != nil && update.Message.From != nil:
		return update.Message.From.ID
	case update.CallbackQuery != nil && update.CallbackQuery.From != nil:
		return update.CallbackQuery.From.ID
	}
	return 0
}

// SendReminders implements the scheduler.Notifier interface
func (b *Bot) SendReminders(ctx context.Context, userID int64, count int) error {
	// Private chats share the user's id
	msg := tgbotapi.NewMessage(userID, formatReminder(count))
	msg.ReplyMarkup = createKeyboard([][]MenuButton{{{Text: "🎯 Review now", CallbackData: cbQuiz}}})
	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("send reminder to %d: %w", userID, err)
	}
	b.log.WithFields(logrus.Fields{"user_id": userID, "due": count}).Debug("reminder sent")
	return nil
}

// SendSessionSummary tells the user a blitz ran out of time
func (b *Bot) SendSessionSummary(ctx context.Context, summary models.SessionResult) error {
	msg := tgbotapi.NewMessage(summary.UserID, formatSummary(summary))
	msg.ReplyMarkup = createKeyboard(b.MainMenuButtons())
	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("send summary to %d: %w", summary.UserID, err)
	}
	return nil
}

func (b *Bot) isAdmin(userID int64) bool {
	return lo.Contains(b.cfg.AdminUserIDs, userID)
}

func (b *Bot) setState(userID int64, s chatState) {
	b.expect(userID, pending{state: s})
}

func (b *Bot) expect(userID int64, p pending) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if p.state == "" {
		delete(b.states, userID)
		return
	}
	b.states[userID] = p
}

func (b *Bot) takeState(userID int64) pending {
	b.mu.Lock()
	defer b.mu.Unlock()
	p := b.states[userID]
	delete(b.states, userID)
	return p
}

func (b *Bot) reply(chatID int64, text string, buttons ...[]MenuButton) {
	msg := tgbotapi.NewMessage(chatID, text)
	if len(buttons) > 0 {
		msg.ReplyMarkup = createKeyboard(buttons)
	}
	if _, err := b.api.Send(msg); err != nil {
		b.log.WithError(err).WithField("chat_id", chatID).Warn("failed to send message")
	}
}

func (b *Bot) sendDocument(chatID int64, name string, data []byte, caption string) {
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: name, Bytes: data})
	doc.Caption = caption
	if _, err := b.api.Send(doc); err != nil {
		b.log.WithError(err).WithField("chat_id", chatID).Warn("failed to send document")
	}
}

// MainMenuButtons returns the buttons for the main menu
func (b *Bot) MainMenuButtons() [][]MenuButton {
	return [][]MenuButton{
		{
			{Text: "🎯 Quiz", CallbackData: cbQuiz},
			{Text: "⚡ Blitz", CallbackData: cbBlitz},
		},
		{
			{Text: "📊 Statistics", CallbackData: cbStats},
			{Text: "🏆 Top", CallbackData: cbTop + string(models.ScopeMastered)},
		},
		{
			{Text: "📝 Add words", CallbackData: cbAdd},
		},
	}
}
