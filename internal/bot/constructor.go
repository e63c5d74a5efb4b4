package bot

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"storefront/internal/moderation"
	"storefront/internal/purchase"
	"storefront/internal/storage"
)

// NewAPI authenticates against Telegram with the bot token
func NewAPI(token string, logger *zap.Logger) (*tgbotapi.BotAPI, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		logger.Error("Failed to create bot API", zap.Error(err))
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	logger.Info("Bot authorized", zap.String("bot_username", api.Self.UserName))
	return api, nil
}

// NewBot creates the chat dispatcher on top of an authorized API client
func NewBot(api *tgbotapi.BotAPI, db storage.Storage, moderator *moderation.Moderator, purchases *purchase.Coordinator, opts Options, logger *zap.Logger) *Bot {
	return &Bot{
		api:       api,
		client:    api,
		token:     api.Token,
		db:        db,
		moderator: moderator,
		purchases: purchases,
		webAppURL: opts.WebAppURL,
		policyURL: opts.PolicyURL,
		logger:    logger,
	}
}
