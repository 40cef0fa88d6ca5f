package telegram

import (
	"context"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/segmentio/ksuid"
	"github.com/sirupsen/logrus"

	"echo_bot/internal/feature/user"
	"echo_bot/internal/logging"
)

// UserRegistrar records users that interact with the bot.
type UserRegistrar interface {
	EnsureUser(ctx context.Context, profile user.Profile) (bool, error)
}

// registryTimeout bounds how long a sender upsert may delay an update.
var registryTimeout = 2 * time.Second

// traceMiddleware tags each update with a ksuid trace id and logs its arrival.
func traceMiddleware(logger *logrus.Entry) bot.Middleware {
	if logger == nil {
		logger = logging.Logger()
	}

	return func(next bot.HandlerFunc) bot.HandlerFunc {
		return func(ctx context.Context, b *bot.Bot, update *models.Update) {
			if update == nil {
				return
			}

			traceID := ksuid.New().String()
			meta := extractUpdateMeta(update)

			fields := logging.Fields{
				"event":       "telegram_update",
				"update_type": meta.updateType,
				"trace_id":    traceID,
			}
			if meta.text != "" {
				fields["text"] = meta.text
			}
			if meta.userID != 0 {
				fields["user_id"] = meta.userID
			}
			if meta.chatID != 0 {
				fields["chat_id"] = meta.chatID
			}

			logger.WithFields(fields).Info("telegram update received")

			next(logging.WithTrace(ctx, traceID), b, update)
		}
	}
}

// registrarMiddleware upserts the sender before handling, waiting at most
// registryTimeout. Registry failures are logged and never block the update.
func registrarMiddleware(registrar UserRegistrar, logger *logrus.Entry) bot.Middleware {
	if logger == nil {
		logger = logging.Logger()
	}

	return func(next bot.HandlerFunc) bot.HandlerFunc {
		return func(ctx context.Context, b *bot.Bot, update *models.Update) {
			if from := sender(update); from != nil {
				regCtx, cancel := context.WithTimeout(ctx, registryTimeout)
				_, err := registrar.EnsureUser(regCtx, profileOf(from))
				cancel()

				if err != nil {
					logging.FromContext(ctx, logger).WithFields(logging.Fields{
						"event":   "user_registry_error",
						"user_id": from.ID,
					}).WithError(err).Warn("failed to record user")
				}
			}

			next(ctx, b, update)
		}
	}
}

func sender(update *models.Update) *models.User {
	switch {
	case update == nil:
		return nil
	case update.Message != nil:
		return update.Message.From
	case update.CallbackQuery != nil:
		return &update.CallbackQuery.From
	default:
		return nil
	}
}

func profileOf(u *models.User) user.Profile {
	return user.Profile{
		UserID:    u.ID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Username:  u.Username,
	}
}
