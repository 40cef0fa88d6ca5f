package telegram

import (
	"context"
	"sync"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"

	"echo_bot/internal/command"
	"echo_bot/internal/logging"
	"echo_bot/internal/mode"
)

// Router dispatches updates to the command, callback and echo handlers.
type Router struct {
	modes  mode.Store
	logger *logrus.Entry

	mu          sync.RWMutex
	botUsername string
}

// NewRouter constructs a Router around the provided mode store.
func NewRouter(modes mode.Store, logger *logrus.Entry) *Router {
	if logger == nil {
		logger = logging.Logger()
	}
	if modes == nil {
		modes = mode.NewMemoryStore()
	}

	return &Router{
		modes:  modes,
		logger: logger,
	}
}

// SetBotUsername sets the username used to accept "/cmd@username" mentions.
func (r *Router) SetBotUsername(username string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.botUsername = username
}

func (r *Router) username() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.botUsername
}

// Handler adapts the router to the go-telegram handler signature.
func (r *Router) Handler() bot.HandlerFunc {
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		r.Handle(ctx, b, update)
	}
}

// Handle routes a single update. Failures are logged and scoped to the update.
func (r *Router) Handle(ctx context.Context, api API, update *models.Update) {
	if update == nil {
		return
	}

	switch {
	case update.Message != nil:
		r.handleMessage(ctx, api, update.Message)
	case update.CallbackQuery != nil:
		r.handleCallback(ctx, api, update.CallbackQuery)
	default:
		r.entry(ctx).WithField("event", "telegram_update_ignored").Debug("ignoring unsupported update")
	}
}

func (r *Router) handleMessage(ctx context.Context, api API, msg *models.Message) {
	cmd := command.Parse(commandText(msg), r.username())

	switch cmd {
	case command.Start:
		r.handleStart(ctx, api, msg)
	case command.Help:
		r.handleHelp(ctx, api, msg)
	case command.Menu:
		r.handleMenu(ctx, api, msg)
	case command.Scream:
		r.handleSetMode(ctx, api, msg, mode.Screaming)
	case command.Whisper:
		r.handleSetMode(ctx, api, msg, mode.Whispering)
	case command.None:
		r.handleEcho(ctx, api, msg)
	default:
		r.entry(ctx).WithFields(logging.Fields{
			"event":   "command_unhandled",
			"command": cmd.String(),
		}).Error("command has no handler")
	}
}

// commandText is the text commands are read from. Media messages carry
// commands in their caption.
func commandText(msg *models.Message) string {
	if msg.Text != "" {
		return msg.Text
	}
	return msg.Caption
}

// entry returns the router logger tagged with the update's trace id.
func (r *Router) entry(ctx context.Context) *logrus.Entry {
	return logging.FromContext(ctx, r.logger)
}

func (r *Router) logFailure(ctx context.Context, event string, chatID int64, err error) {
	r.entry(ctx).WithFields(logging.Fields{
		"event":   event,
		"chat_id": chatID,
	}).WithError(err).Error("telegram request failed")
}
