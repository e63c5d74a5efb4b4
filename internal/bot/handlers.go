package bot

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"storefront/internal/moderation"
)

// HandleWebhookUpdate processes a single update from webhook or polling
func (b *Bot) HandleWebhookUpdate(update tgbotapi.Update) {
	ctx := context.Background()

	switch {
	case update.Message != nil:
		b.handleMessage(ctx, update.Message)
	case update.CallbackQuery != nil:
		b.handleCallbackQuery(ctx, update.CallbackQuery)
	case update.PreCheckoutQuery != nil:
		b.handlePreCheckoutQuery(ctx, update.PreCheckoutQuery)
	}
}

// handleMessage processes a single message
func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	if message.From == nil || message.Chat == nil {
		return
	}

	// Recover from panics to prevent bot crashes
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Recovered from panic in handleMessage",
				zap.Any("panic", r),
				zap.Int64("user_id", message.From.ID),
			)
			b.sendText(message.Chat.ID, genericErrorText)
		}
	}()

	userID := message.From.ID
	if err := b.db.UpsertUser(ctx, userID, message.From.UserName, message.From.FirstName); err != nil {
		b.logger.Error("Failed to upsert user", zap.Int64("user_id", userID), zap.Error(err))
	}

	if message.SuccessfulPayment != nil {
		b.handleSuccessfulPayment(ctx, message)
		return
	}

	if message.IsCommand() {
		switch message.Command() {
		case "start":
			b.handleStart(ctx, message)
		case "approve":
			b.handleApprove(ctx, message)
		case "delete":
			b.handleDelete(ctx, message)
		case "ban":
			b.handleBan(ctx, message)
		case "cancel":
			b.handleCancel(ctx, message)
		default:
			b.handleHelp(message)
		}
		return
	}

	if media, ok := mediaFromMessage(message); ok {
		b.handleMedia(ctx, message, media)
		return
	}

	if b.moderator.IsAdmin(userID) && strings.TrimSpace(message.Text) != "" {
		session, err := b.moderator.Session(ctx, userID)
		if err != nil {
			b.replyError(message.Chat.ID, err)
			return
		}
		if session.State == moderation.StateAwaitingPrice {
			b.handlePriceReply(ctx, message)
			return
		}
	}

	b.handleHelp(message)
}
