package telegram

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/rs/zerolog"

	"quizbot/internal/app"
	"quizbot/internal/domain"
)

// QuizHandler is the slice of the quiz service driven by Telegram updates.
type QuizHandler interface {
	HandleCommand(ctx context.Context, cmd domain.Command) error
	SubmitAnswer(ctx context.Context, ev domain.AnswerEvent) error
}

// Handler routes Telegram updates: text commands and inline keyboard presses.
type Handler struct {
	service QuizHandler
	log     zerolog.Logger
}

func NewHandler(service QuizHandler, log zerolog.Logger) *Handler {
	return &Handler{service: service, log: log}
}

// Handle matches bot.HandlerFunc and is registered as the default handler.
func (h *Handler) Handle(ctx context.Context, _ *bot.Bot, update *models.Update) {
	h.Route(ctx, update)
}

func (h *Handler) Route(ctx context.Context, update *models.Update) {
	switch {
	case update.CallbackQuery != nil:
		h.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		h.handleMessage(ctx, update.Message)
	}
}

func (h *Handler) handleMessage(ctx context.Context, msg *models.Message) {
	name, args, ok := app.ParseCommand(msg.Text)
	if !ok {
		return
	}
	cmd := domain.Command{ChatID: msg.Chat.ID, Name: name, Args: args}
	if msg.From != nil {
		cmd.User = toUser(*msg.From)
	}
	if err := h.service.HandleCommand(ctx, cmd); err != nil {
		h.log.Debug().Err(err).Int64("chat_id", cmd.ChatID).Str("command", name).Msg("command rejected")
	}
}

func (h *Handler) handleCallback(ctx context.Context, cq *models.CallbackQuery) {
	chatID, ref, ok := callbackOrigin(cq.Message)
	if !ok {
		h.log.Warn().Str("callback_id", cq.ID).Msg("callback without message, ignoring")
		return
	}
	ev := domain.AnswerEvent{
		ChatID:     chatID,
		User:       toUser(cq.From),
		Value:      cq.Data,
		CallbackID: cq.ID,
		MessageRef: ref,
	}
	if err := h.service.SubmitAnswer(ctx, ev); err != nil {
		h.log.Debug().Err(err).Int64("chat_id", chatID).Int64("user_id", ev.User.ID).Msg("answer rejected")
	}
}

// callbackOrigin finds the chat and message of the pressed keyboard, which may be inaccessible by now.
func callbackOrigin(m models.MaybeInaccessibleMessage) (int64, domain.MessageRef, bool) {
	switch {
	case m.Message != nil:
		return m.Message.Chat.ID, domain.MessageRef(m.Message.ID), true
	case m.InaccessibleMessage != nil:
		return m.InaccessibleMessage.Chat.ID, domain.MessageRef(m.InaccessibleMessage.MessageID), true
	default:
		return 0, 0, false
	}
}

func toUser(u models.User) domain.User {
	return domain.User{ID: u.ID, Username: u.Username, FirstName: u.FirstName}
}
