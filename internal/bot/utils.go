package bot

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"storefront/internal/apperror"
	"storefront/internal/models"
)

const genericErrorText = "An error occurred while processing your request. Please try again."

// sendMessage sends a chattable and logs failures
func (b *Bot) sendMessage(c tgbotapi.Chattable) error {
	if b.api == nil {
		return nil // For testing
	}
	if _, err := b.api.Send(c); err != nil {
		b.logger.Error("Failed to send message", zap.Error(err))
		return err
	}
	return nil
}

func (b *Bot) sendText(chatID int64, text string) {
	b.sendMessage(tgbotapi.NewMessage(chatID, text))
}

// sendContent delivers a media item by its file id. Video notes carry no caption,
// so the caption goes out as a separate message.
func (b *Bot) sendContent(chatID int64, c models.Content, caption string, markup *tgbotapi.InlineKeyboardMarkup) error {
	file := tgbotapi.FileID(c.FileID)

	var msg tgbotapi.Chattable
	switch c.Kind {
	case models.KindPhoto:
		p := tgbotapi.NewPhoto(chatID, file)
		p.Caption = caption
		if markup != nil {
			p.ReplyMarkup = *markup
		}
		msg = p
	case models.KindVideo:
		v := tgbotapi.NewVideo(chatID, file)
		v.Caption = caption
		if markup != nil {
			v.ReplyMarkup = *markup
		}
		msg = v
	case models.KindVideoNote:
		if caption != "" {
			b.sendText(chatID, caption)
		}
		vn := tgbotapi.NewVideoNote(chatID, 0, file)
		if markup != nil {
			vn.ReplyMarkup = *markup
		}
		msg = vn
	default:
		return fmt.Errorf("unsupported media kind %q", c.Kind)
	}
	return b.sendMessage(msg)
}

// replyError turns a handler error into a chat reply
func (b *Bot) replyError(chatID int64, err error) {
	switch apperror.Kind(err) {
	case apperror.ErrPermissionDenied:
		b.sendText(chatID, "You are not allowed to use this command.")
	case apperror.ErrBanned:
		b.sendText(chatID, "You have been blocked.")
	case apperror.ErrNotFound, apperror.ErrInvalidInput, apperror.ErrAlreadyPurchased:
		b.sendText(chatID, capitalize(apperror.Message(err))+".")
	default:
		b.logger.Error("Request failed", zap.Int64("chat_id", chatID), zap.Error(err))
		b.sendText(chatID, genericErrorText)
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	if s[0] >= 'a' && s[0] <= 'z' {
		return string(s[0]-'a'+'A') + s[1:]
	}
	return s
}

// mediaFromMessage extracts the uploaded media, if any
func mediaFromMessage(message *tgbotapi.Message) (models.Media, bool) {
	switch {
	case len(message.Photo) > 0:
		// Telegram lists sizes ascending; keep the largest
		return models.Media{Kind: models.KindPhoto, FileID: message.Photo[len(message.Photo)-1].FileID}, true
	case message.Video != nil:
		return models.Media{Kind: models.KindVideo, FileID: message.Video.FileID}, true
	case message.VideoNote != nil:
		return models.Media{Kind: models.KindVideoNote, FileID: message.VideoNote.FileID}, true
	}
	return models.Media{}, false
}

func priceLabel(price int64) string {
	if price == 0 {
		return "free"
	}
	return fmt.Sprintf("%d ⭐", price)
}
