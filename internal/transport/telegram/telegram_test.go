package telegram

import (
	"context"
	"errors"
	"testing"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"quizbot/internal/domain"
)

type fakeAPI struct {
	sent    []*bot.SendMessageParams
	edits   []*bot.EditMessageTextParams
	markups []*bot.EditMessageReplyMarkupParams
	acks    []*bot.AnswerCallbackQueryParams
	fail    error
}

func (f *fakeAPI) SendMessage(_ context.Context, params *bot.SendMessageParams) (*models.Message, error) {
	if f.fail != nil {
		return nil, f.fail
	}
	f.sent = append(f.sent, params)
	return &models.Message{ID: 40 + len(f.sent)}, nil
}

func (f *fakeAPI) EditMessageText(_ context.Context, params *bot.EditMessageTextParams) (*models.Message, error) {
	f.edits = append(f.edits, params)
	return &models.Message{ID: params.MessageID}, f.fail
}

func (f *fakeAPI) EditMessageReplyMarkup(_ context.Context, params *bot.EditMessageReplyMarkupParams) (*models.Message, error) {
	f.markups = append(f.markups, params)
	return &models.Message{ID: params.MessageID}, f.fail
}

func (f *fakeAPI) AnswerCallbackQuery(_ context.Context, params *bot.AnswerCallbackQueryParams) (bool, error) {
	f.acks = append(f.acks, params)
	return f.fail == nil, f.fail
}

func TestPlatformTranslatesKeyboards(t *testing.T) {
	api := &fakeAPI{}
	p := NewPlatform(api)
	ctx := context.Background()
	kb := domain.Keyboard{
		{{Text: "3", Data: "0"}, {Text: "4", Data: "1"}},
		{{Text: "5", Data: "2"}, {Text: "22", Data: "3"}},
	}

	ref, err := p.SendMessage(ctx, 9, "2 + 2?", kb)
	require.NoError(t, err)
	require.Equal(t, domain.MessageRef(41), ref)
	markup, ok := api.sent[0].ReplyMarkup.(*models.InlineKeyboardMarkup)
	require.True(t, ok)
	require.Equal(t, "22", markup.InlineKeyboard[1][1].Text)
	require.Equal(t, "3", markup.InlineKeyboard[1][1].CallbackData)

	_, err = p.SendMessage(ctx, 9, "plain", nil)
	require.NoError(t, err)
	require.Nil(t, api.sent[1].ReplyMarkup)

	require.NoError(t, p.EditMessageText(ctx, 9, ref, "tick", kb))
	require.Equal(t, 41, api.edits[0].MessageID)
	require.NoError(t, p.EditMessageReplyMarkup(ctx, 9, ref, kb))
	require.NoError(t, p.AnswerCallback(ctx, "cb-1", "Answer recorded"))
	require.Equal(t, "cb-1", api.acks[0].CallbackQueryID)
}

func TestPlatformWrapsErrors(t *testing.T) {
	p := NewPlatform(&fakeAPI{fail: errors.New("bad gateway")})
	_, err := p.SendMessage(context.Background(), 1, "x", nil)
	require.ErrorIs(t, err, domain.ErrTransport)
	require.ErrorIs(t, p.AnswerCallback(context.Background(), "cb", "x"), domain.ErrTransport)
}

type fakeQuiz struct {
	commands []domain.Command
	answers  []domain.AnswerEvent
}

func (f *fakeQuiz) HandleCommand(_ context.Context, cmd domain.Command) error {
	f.commands = append(f.commands, cmd)
	return nil
}

func (f *fakeQuiz) SubmitAnswer(_ context.Context, ev domain.AnswerEvent) error {
	f.answers = append(f.answers, ev)
	return domain.ErrNoActiveSession
}

func TestHandlerRoutesCommands(t *testing.T) {
	quiz := &fakeQuiz{}
	h := NewHandler(quiz, zerolog.Nop())

	h.Route(context.Background(), &models.Update{Message: &models.Message{
		ID:   1,
		Chat: models.Chat{ID: -100},
		From: &models.User{ID: 5, Username: "alice"},
		Text: "/round@QuizBot 2",
	}})
	h.Route(context.Background(), &models.Update{Message: &models.Message{Chat: models.Chat{ID: -100}, Text: "just chatting"}})

	require.Len(t, quiz.commands, 1)
	require.Equal(t, "round", quiz.commands[0].Name)
	require.Equal(t, []string{"2"}, quiz.commands[0].Args)
	require.Equal(t, "alice", quiz.commands[0].User.DisplayName())
}

func TestHandlerRoutesCallbacks(t *testing.T) {
	quiz := &fakeQuiz{}
	h := NewHandler(quiz, zerolog.Nop())

	h.Route(context.Background(), &models.Update{CallbackQuery: &models.CallbackQuery{
		ID:   "cb-7",
		From: models.User{ID: 8, FirstName: "Bob"},
		Data: "3",
		Message: models.MaybeInaccessibleMessage{
			Message: &models.Message{ID: 77, Chat: models.Chat{ID: -100}},
		},
	}})
	h.Route(context.Background(), &models.Update{CallbackQuery: &models.CallbackQuery{
		ID:   "cb-8",
		From: models.User{ID: 9},
		Data: "0",
		Message: models.MaybeInaccessibleMessage{
			InaccessibleMessage: &models.InaccessibleMessage{MessageID: 12, Chat: models.Chat{ID: -200}},
		},
	}})
	h.Route(context.Background(), &models.Update{CallbackQuery: &models.CallbackQuery{ID: "cb-9", Data: "1"}})

	require.Len(t, quiz.answers, 2)
	require.Equal(t, domain.AnswerEvent{
		ChatID:     -100,
		User:       domain.User{ID: 8, FirstName: "Bob"},
		Value:      "3",
		CallbackID: "cb-7",
		MessageRef: 77,
	}, quiz.answers[0])
	require.Equal(t, int64(-200), quiz.answers[1].ChatID)
	require.Equal(t, domain.MessageRef(12), quiz.answers[1].MessageRef)
}
