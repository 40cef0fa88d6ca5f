package telegram

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"echo_bot/internal/command"
	"echo_bot/internal/logging"
	"echo_bot/internal/menu"
	"echo_bot/internal/mode"
)

const (
	helpText    = "/scream - Changes the mode to screaming. /whisper - Changes the mode to whispering."
	screamText  = "I AM SCREAMING NOW!"
	whisperText = "I'm whispering now..."
)

func greeting(u *models.User) string {
	return fmt.Sprintf("Hello, %s! This is Echo Bot. If you need any help, just use /help command!", fullName(u))
}

// shout upper-cases text with full Unicode rules ("straße" becomes "STRASSE").
// A Caser is stateful, so one is built per call.
func shout(text string) string {
	return cases.Upper(language.Und).String(text)
}

func fullName(u *models.User) string {
	if u == nil {
		return ""
	}
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

func (r *Router) reply(ctx context.Context, api API, msg *models.Message, params *bot.SendMessageParams) {
	params.ChatID = msg.Chat.ID
	if _, err := api.SendMessage(ctx, params); err != nil {
		r.logFailure(ctx, "send_message_error", msg.Chat.ID, err)
	}
}

func (r *Router) handleStart(ctx context.Context, api API, msg *models.Message) {
	r.reply(ctx, api, msg, &bot.SendMessageParams{Text: greeting(msg.From)})
}

func (r *Router) handleHelp(ctx context.Context, api API, msg *models.Message) {
	r.reply(ctx, api, msg, &bot.SendMessageParams{Text: helpText})
}

func (r *Router) handleMenu(ctx context.Context, api API, msg *models.Message) {
	r.reply(ctx, api, msg, &bot.SendMessageParams{
		Text:        menu.Title(menu.Page1),
		ParseMode:   models.ParseModeHTML,
		ReplyMarkup: menu.Keyboard(menu.Page1),
	})
}

func (r *Router) handleSetMode(ctx context.Context, api API, msg *models.Message, m mode.Mode) {
	if msg.From == nil {
		r.entry(ctx).WithFields(logging.Fields{
			"event":   "mode_change_skipped",
			"chat_id": msg.Chat.ID,
		}).Warn("mode change without sender")
		return
	}

	r.modes.Set(msg.From.ID, m)
	r.entry(ctx).WithFields(logging.Fields{
		"event":   "mode_changed",
		"user_id": msg.From.ID,
		"mode":    m.String(),
	}).Info("user mode changed")

	text := whisperText
	if m == mode.Screaming {
		text = screamText
	}
	r.reply(ctx, api, msg, &bot.SendMessageParams{Text: text})
}

// handleEcho answers any message that is not a known command. Only text is
// ever transformed; everything else is copied back to the chat unchanged.
func (r *Router) handleEcho(ctx context.Context, api API, msg *models.Message) {
	current := r.modes.Get(userID(msg.From))

	if current == mode.Screaming && msg.Text != "" {
		r.reply(ctx, api, msg, &bot.SendMessageParams{Text: shout(msg.Text)})
		return
	}

	_, err := api.CopyMessage(ctx, &bot.CopyMessageParams{
		ChatID:     msg.Chat.ID,
		FromChatID: msg.Chat.ID,
		MessageID:  msg.ID,
	})
	if err != nil {
		r.logFailure(ctx, "copy_message_error", msg.Chat.ID, err)
	}
}

// handleCallback flips the menu page in place. The callback is answered on
// every path so the client clears its loading indicator.
func (r *Router) handleCallback(ctx context.Context, api API, query *models.CallbackQuery) {
	defer r.answerCallback(ctx, api, query)

	page, ok := menu.Transition(query.Data)
	if !ok {
		r.entry(ctx).WithFields(logging.Fields{
			"event":   "callback_ignored",
			"user_id": query.From.ID,
			"data":    query.Data,
		}).Debug("unknown callback action")
		return
	}

	msg := query.Message
	if msg.Type != models.MaybeInaccessibleMessageTypeMessage || msg.Message == nil {
		r.entry(ctx).WithFields(logging.Fields{
			"event":   "callback_message_inaccessible",
			"user_id": query.From.ID,
		}).Warn("cannot edit inaccessible message")
		return
	}

	_, err := api.EditMessageText(ctx, &bot.EditMessageTextParams{
		ChatID:      msg.Message.Chat.ID,
		MessageID:   msg.Message.ID,
		Text:        menu.Title(page),
		ParseMode:   models.ParseModeHTML,
		ReplyMarkup: menu.Keyboard(page),
	})
	if err != nil {
		r.logFailure(ctx, "edit_message_error", msg.Message.Chat.ID, err)
	}
}

func (r *Router) answerCallback(ctx context.Context, api API, query *models.CallbackQuery) {
	_, err := api.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: query.ID,
	})
	if err != nil {
		r.entry(ctx).WithFields(logging.Fields{
			"event":   "answer_callback_error",
			"user_id": query.From.ID,
		}).WithError(err).Error("telegram request failed")
	}
}

// publishCommands sets the client command menu. Failure is not fatal.
func publishCommands(ctx context.Context, api API, logger *logrus.Entry) {
	all := command.All()
	cmds := make([]models.BotCommand, 0, len(all))
	for _, c := range all {
		cmds = append(cmds, models.BotCommand{
			Command:     c.Name(),
			Description: c.Description(),
		})
	}

	if _, err := api.SetMyCommands(ctx, &bot.SetMyCommandsParams{Commands: cmds}); err != nil {
		logger.WithField("event", "set_commands_error").WithError(err).Warn("failed to publish command menu")
		return
	}

	names := make([]string, 0, len(cmds))
	for _, c := range cmds {
		names = append(names, c.Command)
	}
	logger.WithFields(logging.Fields{
		"event":    "set_commands",
		"commands": strings.Join(names, ","),
	}).Info("published command menu")
}
