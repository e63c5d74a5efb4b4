package bot

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"storefront/internal/apperror"
)

const (
	approvePrefix = "approve:"
	deletePrefix  = "delete:"
)

// handleCallbackQuery processes the moderation buttons on submission notifications
func (b *Bot) handleCallbackQuery(ctx context.Context, query *tgbotapi.CallbackQuery) {
	// Recover from panics
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Recovered from panic in handleCallbackQuery", zap.Any("panic", r))
		}
	}()

	answer := b.moderationCallback(ctx, query)

	// Answer the callback query to remove loading state
	if b.api != nil {
		if _, err := b.api.Request(tgbotapi.NewCallback(query.ID, answer)); err != nil {
			b.logger.Warn("Failed to answer callback query", zap.Error(err))
		}
	}
}

// moderationCallback applies approve:<id> or delete:<id> and returns the answer text
func (b *Bot) moderationCallback(ctx context.Context, query *tgbotapi.CallbackQuery) string {
	var (
		action string
		rest   string
	)
	switch {
	case strings.HasPrefix(query.Data, approvePrefix):
		action, rest = "approve", strings.TrimPrefix(query.Data, approvePrefix)
	case strings.HasPrefix(query.Data, deletePrefix):
		action, rest = "delete", strings.TrimPrefix(query.Data, deletePrefix)
	default:
		return ""
	}

	id, ok := parseContentID(rest)
	if !ok {
		return "Invalid button"
	}

	var err error
	if action == "approve" {
		err = b.moderator.Approve(ctx, query.From.ID, id, nil)
	} else {
		err = b.moderator.Delete(ctx, query.From.ID, id)
	}
	if err != nil {
		if apperror.Kind(err) == nil {
			b.logger.Error("Moderation callback failed",
				zap.String("action", action),
				zap.Int64("content_id", id),
				zap.Error(err),
			)
			return "Something went wrong"
		}
		return capitalize(apperror.Message(err))
	}

	done := fmt.Sprintf("Content #%d approved", id)
	if action == "delete" {
		done = fmt.Sprintf("Content #%d deleted", id)
	}

	// Drop the buttons so the notification can't be acted on twice
	if query.Message != nil && query.Message.Chat != nil {
		edit := tgbotapi.NewEditMessageReplyMarkup(query.Message.Chat.ID, query.Message.MessageID,
			tgbotapi.InlineKeyboardMarkup{InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{}})
		if b.api != nil {
			if _, err := b.api.Request(edit); err != nil {
				b.logger.Warn("Failed to clear moderation buttons", zap.Error(err))
			}
		}
		b.sendText(query.Message.Chat.ID, done+".")
	}
	return done
}
