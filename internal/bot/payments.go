package bot

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"storefront/internal/apperror"
)

// handlePreCheckoutQuery confirms a checkout only for existing, unowned content
func (b *Bot) handlePreCheckoutQuery(ctx context.Context, query *tgbotapi.PreCheckoutQuery) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Recovered from panic in handlePreCheckoutQuery", zap.Any("panic", r))
		}
	}()

	answer := tgbotapi.PreCheckoutConfig{PreCheckoutQueryID: query.ID, OK: true}

	if err := b.purchases.ValidateCheckout(ctx, query.From.ID, query.InvoicePayload); err != nil {
		answer.OK = false
		switch apperror.Kind(err) {
		case apperror.ErrAlreadyPurchased:
			answer.ErrorMessage = "You already own this item."
		case apperror.ErrNotFound:
			answer.ErrorMessage = "This item is no longer available."
		default:
			b.logger.Error("Checkout validation failed",
				zap.Int64("user_id", query.From.ID),
				zap.String("payload", query.InvoicePayload),
				zap.Error(err),
			)
			answer.ErrorMessage = "Payment cannot be processed right now."
		}
	}

	if b.api == nil {
		return
	}
	if _, err := b.api.Request(answer); err != nil {
		b.logger.Error("Failed to answer pre-checkout query", zap.Error(err))
	}
}

// handleSuccessfulPayment records the purchase and delivers the item
func (b *Bot) handleSuccessfulPayment(ctx context.Context, message *tgbotapi.Message) {
	payment := message.SuccessfulPayment
	userID := message.From.ID

	b.logger.Info("Successful payment received",
		zap.Int64("user_id", userID),
		zap.String("payload", payment.InvoicePayload),
		zap.Int("amount", payment.TotalAmount),
		zap.String("currency", payment.Currency),
		zap.String("charge_id", payment.TelegramPaymentChargeID),
	)

	done, err := b.purchases.CompletePayment(ctx, userID, payment.InvoicePayload)
	if err != nil {
		b.logger.Error("Failed to complete payment",
			zap.Int64("user_id", userID),
			zap.String("charge_id", payment.TelegramPaymentChargeID),
			zap.Error(err),
		)
		b.sendText(message.Chat.ID, "⚠️ Payment received, but we could not record it. Please contact the admin.")
		return
	}

	if done.Duplicate {
		b.sendText(message.Chat.ID, "This purchase is already in your library.")
		return
	}

	if done.Content == nil {
		b.sendText(message.Chat.ID, "⚠️ Payment received, but this item is no longer available. Please contact the admin.")
		return
	}

	b.sendText(message.Chat.ID, "✅ Payment received! Here is your content:")
	if err := b.sendContent(message.Chat.ID, *done.Content, "", nil); err != nil {
		b.logger.Warn("Failed to deliver purchased content",
			zap.Int64("user_id", userID),
			zap.Int64("content_id", done.ContentID),
			zap.Error(err),
		)
		b.sendText(message.Chat.ID, "⚠️ Delivery failed. Your purchase is saved, open it from the Mini App.")
	}
}
