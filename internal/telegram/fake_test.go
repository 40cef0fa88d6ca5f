package telegram

import (
	"context"
	"sync"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// fakeAPI records every Bot API call made by the handlers.
type fakeAPI struct {
	mu sync.Mutex

	me         *models.User
	meErr      error
	getMeCalls int

	sent     []*bot.SendMessageParams
	edited   []*bot.EditMessageTextParams
	answered []*bot.AnswerCallbackQueryParams
	copied   []*bot.CopyMessageParams
	commands []*bot.SetMyCommandsParams

	sendErr     error
	editErr     error
	answerErr   error
	copyErr     error
	commandsErr error
}

func (f *fakeAPI) GetMe(context.Context) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getMeCalls++
	return f.me, f.meErr
}

func (f *fakeAPI) SetMyCommands(_ context.Context, params *bot.SetMyCommandsParams) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commands = append(f.commands, params)
	return f.commandsErr == nil, f.commandsErr
}

func (f *fakeAPI) SendMessage(_ context.Context, params *bot.SendMessageParams) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, params)
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	return &models.Message{Text: params.Text}, nil
}

func (f *fakeAPI) EditMessageText(_ context.Context, params *bot.EditMessageTextParams) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edited = append(f.edited, params)
	if f.editErr != nil {
		return nil, f.editErr
	}
	return &models.Message{ID: params.MessageID, Text: params.Text}, nil
}

func (f *fakeAPI) AnswerCallbackQuery(_ context.Context, params *bot.AnswerCallbackQueryParams) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answered = append(f.answered, params)
	return f.answerErr == nil, f.answerErr
}

func (f *fakeAPI) CopyMessage(_ context.Context, params *bot.CopyMessageParams) (*models.MessageID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.copied = append(f.copied, params)
	if f.copyErr != nil {
		return nil, f.copyErr
	}
	return &models.MessageID{ID: params.MessageID + 1}, nil
}

type fakeBot struct {
	fakeAPI
	startedWith context.Context
}

func (f *fakeBot) Start(ctx context.Context) {
	f.startedWith = ctx
}

func textUpdate(userID, chatID int64, text string) *models.Update {
	return &models.Update{
		Message: &models.Message{
			ID:   100,
			From: &models.User{ID: userID, FirstName: "Ada", LastName: "Lovelace"},
			Chat: models.Chat{ID: chatID},
			Text: text,
		},
	}
}

func photoUpdate(userID, chatID int64) *models.Update {
	return &models.Update{
		Message: &models.Message{
			ID:      101,
			From:    &models.User{ID: userID, FirstName: "Ada"},
			Chat:    models.Chat{ID: chatID},
			Photo:   []models.PhotoSize{{FileID: "photo-1", Width: 10, Height: 10}},
			Caption: "look",
		},
	}
}

func callbackUpdate(userID, chatID int64, messageID int, data string) *models.Update {
	return &models.Update{
		CallbackQuery: &models.CallbackQuery{
			ID:   "cb-1",
			From: models.User{ID: userID},
			Data: data,
			Message: models.MaybeInaccessibleMessage{
				Type: models.MaybeInaccessibleMessageTypeMessage,
				Message: &models.Message{
					ID:   messageID,
					Chat: models.Chat{ID: chatID},
					Text: "Menu 1",
				},
			},
		},
	}
}
