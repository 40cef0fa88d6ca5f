// Package telegram hosts the Telegram client, routing, and handlers.
package telegram

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"

	"echo_bot/internal/config"
	"echo_bot/internal/logging"
	"echo_bot/internal/mode"
)

// API is the subset of the Bot API the handlers call. *bot.Bot satisfies it.
type API interface {
	GetMe(ctx context.Context) (*models.User, error)
	SetMyCommands(ctx context.Context, params *bot.SetMyCommandsParams) (bool, error)
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
	EditMessageText(ctx context.Context, params *bot.EditMessageTextParams) (*models.Message, error)
	AnswerCallbackQuery(ctx context.Context, params *bot.AnswerCallbackQueryParams) (bool, error)
	CopyMessage(ctx context.Context, params *bot.CopyMessageParams) (*models.MessageID, error)
}

type botRunner interface {
	API
	Start(ctx context.Context)
}

const getMeTimeout = 5 * time.Second

var (
	defaultAllowedUpdates = bot.AllowedUpdates{
		"message",
		"callback_query",
	}

	createBot = func(token string, options ...bot.Option) (botRunner, error) {
		return bot.New(token, options...)
	}
)

// Option customizes optional Client collaborators.
type Option func(*clientOptions)

type clientOptions struct {
	modes     mode.Store
	registrar UserRegistrar
}

// WithModeStore overrides the in-memory mode store.
func WithModeStore(store mode.Store) Option {
	return func(o *clientOptions) {
		o.modes = store
	}
}

// WithUserRegistrar records every sender in the user registry.
func WithUserRegistrar(registrar UserRegistrar) Option {
	return func(o *clientOptions) {
		o.registrar = registrar
	}
}

// Client wraps the Telegram bot instance, the router and logging dependencies.
type Client struct {
	bot    botRunner
	router *Router
	logger *logrus.Entry
}

// NewClient initializes the Telegram bot with long polling and the echo handlers
// and resolves the bot identity with a single getMe call. The token is passed
// through unchecked; the Bot API rejects invalid ones.
func NewClient(cfg config.Config, logger *logrus.Entry, opts ...Option) (*Client, error) {
	if logger == nil {
		logger = logging.Logger()
	}

	o := clientOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.modes == nil {
		o.modes = mode.NewMemoryStore()
	}

	router := NewRouter(o.modes, logger)

	pollTimeout := cfg.PollTimeout
	if pollTimeout <= 0 {
		pollTimeout = config.DefaultPollTimeout
	}

	middlewares := []bot.Middleware{traceMiddleware(logger)}
	if o.registrar != nil {
		middlewares = append(middlewares, registrarMiddleware(o.registrar, logger))
	}

	tgBot, err := createBot(cfg.BotToken,
		bot.WithAllowedUpdates(defaultAllowedUpdates),
		bot.WithHTTPClient(pollTimeout, &http.Client{Timeout: pollTimeout}),
		bot.WithMiddlewares(middlewares...),
		bot.WithDefaultHandler(router.Handler()),
		bot.WithErrorsHandler(errorHandler(logger)),
		bot.WithSkipGetMe(),
	)
	if err != nil {
		return nil, fmt.Errorf("init telegram bot client: %w", err)
	}

	meCtx, cancel := context.WithTimeout(context.Background(), getMeTimeout)
	defer cancel()

	me, err := tgBot.GetMe(meCtx)
	if err != nil {
		return nil, fmt.Errorf("resolve bot identity: %w", err)
	}
	if me != nil {
		router.SetBotUsername(me.Username)
	}

	return &Client{
		bot:    tgBot,
		router: router,
		logger: logger,
	}, nil
}

// Start publishes the command menu and receives updates via long polling
// until the context is canceled.
func (c *Client) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}

	publishCommands(ctx, c.bot, c.logger)

	c.logger.WithFields(logging.Fields{
		"event":           "telegram_listen",
		"allowed_updates": defaultAllowedUpdates,
	}).Info("starting telegram long polling")

	c.bot.Start(ctx)

	c.logger.WithField("event", "telegram_stopped").Info("telegram polling stopped")
}

type updateMeta struct {
	userID     int64
	chatID     int64
	text       string
	updateType string
}

func extractUpdateMeta(update *models.Update) updateMeta {
	switch {
	case update.Message != nil:
		return updateMeta{
			userID:     userID(update.Message.From),
			chatID:     chatID(&update.Message.Chat),
			text:       update.Message.Text,
			updateType: "message",
		}
	case update.CallbackQuery != nil:
		return updateMeta{
			userID:     userID(&update.CallbackQuery.From),
			chatID:     messageChatID(update.CallbackQuery.Message),
			text:       update.CallbackQuery.Data,
			updateType: "callback_query",
		}
	default:
		return updateMeta{updateType: "unknown"}
	}
}

func errorHandler(logger *logrus.Entry) bot.ErrorsHandler {
	if logger == nil {
		logger = logging.Logger()
	}

	return func(err error) {
		if err == nil {
			return
		}

		logger.WithField("event", "telegram_error").WithError(err).Error("telegram polling error")
	}
}

func userID(user *models.User) int64 {
	if user == nil {
		return 0
	}

	return user.ID
}

func chatID(chat *models.Chat) int64 {
	if chat == nil {
		return 0
	}

	return chat.ID
}

func messageChatID(msg models.MaybeInaccessibleMessage) int64 {
	switch msg.Type {
	case models.MaybeInaccessibleMessageTypeMessage:
		if msg.Message == nil {
			return 0
		}
		return chatID(&msg.Message.Chat)
	case models.MaybeInaccessibleMessageTypeInaccessibleMessage:
		if msg.InaccessibleMessage == nil {
			return 0
		}
		return chatID(&msg.InaccessibleMessage.Chat)
	default:
		return 0
	}
}
