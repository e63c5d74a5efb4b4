package bot

import (
	"context"
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"storefront/internal/apperror"
	"storefront/internal/models"
	"storefront/internal/moderation"
)

const pricePrompt = "💰 Send the price in Stars for this item (0 for free), or /cancel."

// handleMedia takes an upload into moderation
func (b *Bot) handleMedia(ctx context.Context, message *tgbotapi.Message, media models.Media) {
	sub, err := b.moderator.Submit(ctx, message.From.ID, media)
	if err != nil {
		b.replyError(message.Chat.ID, err)
		return
	}

	switch sub.Stage {
	case moderation.StageDrafted:
		text := pricePrompt
		if sub.Replaced {
			text = "The previous upload was replaced.\n" + pricePrompt
		}
		b.sendText(message.Chat.ID, text)

	case moderation.StageSubmitted:
		b.sendText(message.Chat.ID, "Thanks! Your submission was sent for review.")
		b.notifyAdmin(message.From, models.Content{
			ID:       sub.ContentID,
			Kind:     media.Kind,
			FileID:   media.FileID,
			AuthorID: message.From.ID,
		})
	}
}

// notifyAdmin forwards a submission to the admin with moderation buttons
func (b *Bot) notifyAdmin(from *tgbotapi.User, c models.Content) {
	author := from.FirstName
	if from.UserName != "" {
		author = "@" + from.UserName
	}
	caption := fmt.Sprintf("📥 New submission #%d from %s (id %d)\n/approve %d [price] or /delete %d",
		c.ID, author, from.ID, c.ID, c.ID)

	markup := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Approve", fmt.Sprintf("%s%d", approvePrefix, c.ID)),
			tgbotapi.NewInlineKeyboardButtonData("🗑 Delete", fmt.Sprintf("%s%d", deletePrefix, c.ID)),
		),
	)

	if err := b.sendContent(b.moderator.AdminID(), c, caption, &markup); err != nil {
		b.logger.Error("Failed to notify admin about submission",
			zap.Int64("content_id", c.ID),
			zap.Error(err),
		)
	}
}

// handlePriceReply completes an admin upload with the entered price
func (b *Bot) handlePriceReply(ctx context.Context, message *tgbotapi.Message) {
	content, err := b.moderator.SubmitPrice(ctx, message.From.ID, message.Text)
	switch {
	case errors.Is(err, apperror.ErrInvalidInput):
		b.sendText(message.Chat.ID, "❌ "+capitalize(apperror.Message(err))+".\n"+pricePrompt)
		return
	case errors.Is(err, moderation.ErrNoDraft):
		b.handleHelp(message)
		return
	case err != nil:
		b.replyError(message.Chat.ID, err)
		return
	}

	b.sendText(message.Chat.ID, fmt.Sprintf("✅ Published #%d (%s).", content.ID, priceLabel(content.Price)))
}
