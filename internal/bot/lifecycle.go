package bot

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

var (
	userCommands = []tgbotapi.BotCommand{
		{Command: "start", Description: "Open the storefront"},
	}
	adminCommands = []tgbotapi.BotCommand{
		{Command: "start", Description: "Open the storefront"},
		{Command: "approve", Description: "Approve content: /approve <id> [price]"},
		{Command: "delete", Description: "Delete content: /delete <id>"},
		{Command: "ban", Description: "Ban a user: /ban <username>"},
		{Command: "cancel", Description: "Drop the pending upload"},
	}
)

// RegisterCommands publishes the command menu, with the admin set scoped to the admin chat
func (b *Bot) RegisterCommands() {
	if b.api == nil {
		return
	}
	if _, err := b.api.Request(tgbotapi.NewSetMyCommands(userCommands...)); err != nil {
		b.logger.Warn("Failed to register commands", zap.Error(err))
	}
	scope := tgbotapi.NewBotCommandScopeChat(b.moderator.AdminID())
	if _, err := b.api.Request(tgbotapi.NewSetMyCommandsWithScope(scope, adminCommands...)); err != nil {
		b.logger.Warn("Failed to register admin commands", zap.Error(err))
	}
}

// Start runs the bot in polling mode until ctx is cancelled
func (b *Bot) Start(ctx context.Context) error {
	if b.client == nil {
		return fmt.Errorf("bot API client is not configured")
	}
	b.logger.Info("Starting bot in polling mode")

	// Remove webhook (if any was set previously)
	if _, err := b.client.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		b.logger.Warn("Failed to delete webhook", zap.Error(err))
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.client.GetUpdatesChan(u)

	b.logger.Info("Bot started successfully. Waiting for updates...")

	for {
		select {
		case <-ctx.Done():
			b.client.StopReceivingUpdates()
			b.logger.Info("Polling stopped")
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.HandleWebhookUpdate(update)
		}
	}
}

// StartWebhook sets up the bot to receive updates via webhook
func (b *Bot) StartWebhook(webhookURL string) error {
	if b.client == nil {
		return fmt.Errorf("bot API client is not configured")
	}
	b.logger.Info("Setting up webhook", zap.String("webhook_url", webhookURL))

	webhookConfig, err := tgbotapi.NewWebhook(webhookURL + webhookPath)
	if err != nil {
		return fmt.Errorf("invalid webhook URL: %w", err)
	}
	webhookConfig.MaxConnections = 40

	if _, err := b.client.Request(webhookConfig); err != nil {
		b.logger.Error("Failed to set webhook", zap.Error(err), zap.String("webhook_url", webhookURL))
		return err
	}

	// Get webhook info to verify
	info, err := b.client.GetWebhookInfo()
	if err != nil {
		b.logger.Warn("Failed to get webhook info", zap.Error(err))
	} else {
		b.logger.Info("Webhook set successfully",
			zap.String("url", info.URL),
			zap.Int("pending_updates", info.PendingUpdateCount),
		)
	}

	b.logger.Info("Bot configured for webhook mode")
	return nil
}
