package bot

import (
	"context"
	"encoding/json"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"storefront/internal/purchase"
)

var _ purchase.InvoiceIssuer = (*StarsInvoices)(nil)

// StarsInvoices creates Telegram invoice links. For Stars the provider
// token is empty.
type StarsInvoices struct {
	api           telegramAPI
	providerToken string
}

// NewStarsInvoices creates an invoice issuer on the bot API
func NewStarsInvoices(api *tgbotapi.BotAPI, providerToken string) *StarsInvoices {
	return &StarsInvoices{api: api, providerToken: providerToken}
}

// CreateInvoiceLink calls createInvoiceLink and returns the link
func (s *StarsInvoices) CreateInvoiceLink(ctx context.Context, inv purchase.Invoice) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	params := tgbotapi.Params{}
	params["title"] = inv.Title
	params["description"] = inv.Description
	params["payload"] = inv.Payload
	params["currency"] = inv.Currency
	params["provider_token"] = s.providerToken
	if err := params.AddInterface("prices", []tgbotapi.LabeledPrice{
		{Label: inv.Title, Amount: int(inv.Amount)},
	}); err != nil {
		return "", fmt.Errorf("failed to encode prices: %w", err)
	}

	resp, err := s.api.MakeRequest("createInvoiceLink", params)
	if err != nil {
		return "", fmt.Errorf("createInvoiceLink failed: %w", err)
	}

	var link string
	if err := json.Unmarshal(resp.Result, &link); err != nil {
		return "", fmt.Errorf("failed to decode invoice link: %w", err)
	}
	return link, nil
}
