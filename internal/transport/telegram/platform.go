package telegram

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"quizbot/internal/domain"
)

// API is the subset of *bot.Bot the platform calls.
type API interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
	EditMessageText(ctx context.Context, params *bot.EditMessageTextParams) (*models.Message, error)
	EditMessageReplyMarkup(ctx context.Context, params *bot.EditMessageReplyMarkupParams) (*models.Message, error)
	AnswerCallbackQuery(ctx context.Context, params *bot.AnswerCallbackQueryParams) (bool, error)
}

// Platform implements app.Platform on the Telegram Bot API.
type Platform struct {
	api API
}

func NewPlatform(api API) *Platform {
	return &Platform{api: api}
}

func (p *Platform) SendMessage(ctx context.Context, chatID int64, text string, kb domain.Keyboard) (domain.MessageRef, error) {
	params := &bot.SendMessageParams{ChatID: chatID, Text: text}
	if kb != nil {
		params.ReplyMarkup = inlineKeyboard(kb)
	}
	msg, err := p.api.SendMessage(ctx, params)
	if err != nil {
		return 0, fmt.Errorf("%w: send message: %v", domain.ErrTransport, err)
	}
	return domain.MessageRef(msg.ID), nil
}

func (p *Platform) EditMessageText(ctx context.Context, chatID int64, ref domain.MessageRef, text string, kb domain.Keyboard) error {
	params := &bot.EditMessageTextParams{ChatID: chatID, MessageID: int(ref), Text: text}
	if kb != nil {
		params.ReplyMarkup = inlineKeyboard(kb)
	}
	if _, err := p.api.EditMessageText(ctx, params); err != nil {
		return fmt.Errorf("%w: edit message text: %v", domain.ErrTransport, err)
	}
	return nil
}

func (p *Platform) EditMessageReplyMarkup(ctx context.Context, chatID int64, ref domain.MessageRef, kb domain.Keyboard) error {
	_, err := p.api.EditMessageReplyMarkup(ctx, &bot.EditMessageReplyMarkupParams{
		ChatID:      chatID,
		MessageID:   int(ref),
		ReplyMarkup: inlineKeyboard(kb),
	})
	if err != nil {
		return fmt.Errorf("%w: edit reply markup: %v", domain.ErrTransport, err)
	}
	return nil
}

func (p *Platform) AnswerCallback(ctx context.Context, callbackID, text string) error {
	_, err := p.api.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: callbackID,
		Text:            text,
	})
	if err != nil {
		return fmt.Errorf("%w: answer callback: %v", domain.ErrTransport, err)
	}
	return nil
}

func inlineKeyboard(kb domain.Keyboard) *models.InlineKeyboardMarkup {
	rows := make([][]models.InlineKeyboardButton, 0, len(kb))
	for _, row := range kb {
		buttons := make([]models.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, models.InlineKeyboardButton{Text: b.Text, CallbackData: b.Data})
		}
		rows = append(rows, buttons)
	}
	return &models.InlineKeyboardMarkup{InlineKeyboard: rows}
}
