package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"storefront/internal/moderation"
)

const (
	userHelpText = `Send me a photo, video or video note to submit it to the storefront.
Open the Mini App with /start to browse and buy content.`

	adminHelpText = `Admin commands:
/approve <id> [price] - publish a submission, optionally setting its price
/delete <id> - remove content
/ban <username> - block a user
/cancel - drop the pending upload

Send a photo, video or video note to add content, then reply with its price in Stars (0 for free).`
)

// handleStart greets the user and links the Mini App
func (b *Bot) handleStart(ctx context.Context, message *tgbotapi.Message) {
	banned, err := b.db.IsBanned(ctx, message.From.ID)
	if err != nil {
		b.replyError(message.Chat.ID, err)
		return
	}
	if banned {
		b.sendText(message.Chat.ID, "You have been blocked.")
		return
	}

	var text strings.Builder
	text.WriteString("Welcome to the storefront! ⭐\n\n")
	text.WriteString("Browse photos and videos and unlock them with Telegram Stars.")
	if b.policyURL != "" {
		text.WriteString("\n\nTerms and privacy policy: ")
		text.WriteString(b.policyURL)
	}

	msg := tgbotapi.NewMessage(message.Chat.ID, text.String())
	if b.webAppURL != "" {
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonURL("🛍 Open storefront", b.webAppURL),
			),
		)
	}
	b.sendMessage(msg)
}

// handleHelp shows the commands available to the sender
func (b *Bot) handleHelp(message *tgbotapi.Message) {
	if b.moderator.IsAdmin(message.From.ID) {
		b.sendText(message.Chat.ID, adminHelpText)
		return
	}
	b.sendText(message.Chat.ID, userHelpText)
}

// requireAdmin answers non-admins and reports whether to continue
func (b *Bot) requireAdmin(message *tgbotapi.Message) bool {
	if b.moderator.IsAdmin(message.From.ID) {
		return true
	}
	b.logger.Warn("Admin command from non-admin",
		zap.Int64("user_id", message.From.ID),
		zap.String("username", message.From.UserName),
		zap.String("command", message.Command()),
	)
	b.sendText(message.Chat.ID, "You are not allowed to use this command.")
	return false
}

func parseContentID(s string) (int64, bool) {
	id, err := strconv.ParseInt(s, 10, 64)
	return id, err == nil && id > 0
}

// handleApprove processes /approve <id> [price]
func (b *Bot) handleApprove(ctx context.Context, message *tgbotapi.Message) {
	if !b.requireAdmin(message) {
		return
	}

	const usage = "Usage: /approve <content_id> [price]"
	args := strings.Fields(message.CommandArguments())
	if len(args) == 0 || len(args) > 2 {
		b.sendText(message.Chat.ID, usage)
		return
	}
	id, ok := parseContentID(args[0])
	if !ok {
		b.sendText(message.Chat.ID, usage)
		return
	}

	var price *int64
	if len(args) == 2 {
		p, err := moderation.ParsePrice(args[1])
		if err != nil {
			b.sendText(message.Chat.ID, usage)
			return
		}
		price = &p
	}

	if err := b.moderator.Approve(ctx, message.From.ID, id, price); err != nil {
		b.replyError(message.Chat.ID, err)
		return
	}

	text := fmt.Sprintf("✅ Content #%d approved.", id)
	if price != nil {
		text = fmt.Sprintf("✅ Content #%d approved at %s.", id, priceLabel(*price))
	}
	b.sendText(message.Chat.ID, text)
}

// handleDelete processes /delete <id>
func (b *Bot) handleDelete(ctx context.Context, message *tgbotapi.Message) {
	if !b.requireAdmin(message) {
		return
	}

	id, ok := parseContentID(strings.TrimSpace(message.CommandArguments()))
	if !ok {
		b.sendText(message.Chat.ID, "Usage: /delete <content_id>")
		return
	}

	if err := b.moderator.Delete(ctx, message.From.ID, id); err != nil {
		b.replyError(message.Chat.ID, err)
		return
	}
	b.sendText(message.Chat.ID, fmt.Sprintf("🗑 Content #%d deleted.", id))
}

// handleBan processes /ban <username>
func (b *Bot) handleBan(ctx context.Context, message *tgbotapi.Message) {
	if !b.requireAdmin(message) {
		return
	}

	args := strings.Fields(message.CommandArguments())
	if len(args) != 1 || strings.TrimPrefix(args[0], "@") == "" {
		b.sendText(message.Chat.ID, "Usage: /ban <username>")
		return
	}

	if err := b.moderator.Ban(ctx, message.From.ID, args[0]); err != nil {
		b.replyError(message.Chat.ID, err)
		return
	}
	b.sendText(message.Chat.ID, fmt.Sprintf("🚫 @%s banned.", strings.TrimPrefix(args[0], "@")))
}

// handleCancel drops the admin's pending upload
func (b *Bot) handleCancel(ctx context.Context, message *tgbotapi.Message) {
	if !b.requireAdmin(message) {
		return
	}

	existed, err := b.moderator.CancelDraft(ctx, message.From.ID)
	if err != nil {
		b.replyError(message.Chat.ID, err)
		return
	}
	if !existed {
		b.sendText(message.Chat.ID, "Nothing to cancel.")
		return
	}
	b.sendText(message.Chat.ID, "Upload cancelled.")
}
