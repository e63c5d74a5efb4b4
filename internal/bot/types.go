package bot

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"storefront/internal/moderation"
	"storefront/internal/purchase"
	"storefront/internal/storage"
)

// telegramAPI is the part of tgbotapi.BotAPI the handlers send through
type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	MakeRequest(endpoint string, params tgbotapi.Params) (*tgbotapi.APIResponse, error)
}

// Bot represents the Telegram bot wrapper
type Bot struct {
	api       telegramAPI
	client    *tgbotapi.BotAPI // polling and webhook setup; nil in tests
	token     string
	db        storage.Storage
	moderator *moderation.Moderator
	purchases *purchase.Coordinator
	webAppURL string
	policyURL string
	logger    *zap.Logger
}

// Options holds the storefront links shown to users
type Options struct {
	WebAppURL string
	PolicyURL string
}
