// Package purchase decides how a user gets content: free grant, test-mode
// grant or a Telegram Stars invoice, and records completed payments.
package purchase

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"storefront/internal/apperror"
	"storefront/internal/models"
	"storefront/internal/storage"
)

// CurrencyStars is the Telegram Stars currency code
const CurrencyStars = "XTR"

// Invoice describes a single-item Stars invoice
type Invoice struct {
	Title       string
	Description string
	Payload     string
	Currency    string
	Amount      int64
}

// InvoiceIssuer creates payment links
type InvoiceIssuer interface {
	CreateInvoiceLink(ctx context.Context, inv Invoice) (string, error)
}

// Outcome of a purchase request
type Outcome int

const (
	OutcomeFree Outcome = iota
	OutcomeTestGranted
	OutcomeInvoice
)

// Result of Purchase
type Result struct {
	Outcome     Outcome
	InvoiceLink string
	Content     *models.Content
}

// Completion is the result of CompletePayment
type Completion struct {
	ContentID int64
	// Duplicate is set when the purchase was already recorded
	Duplicate bool
	// Content is nil when the item was deleted before delivery
	Content *models.Content
}

// Coordinator is the single path through which purchases are decided and recorded
type Coordinator struct {
	db       storage.Storage
	invoices InvoiceIssuer
	testMode bool
	logger   *zap.Logger
}

// NewCoordinator creates a Coordinator. In test mode paid content is granted
// without payment.
func NewCoordinator(db storage.Storage, invoices InvoiceIssuer, testMode bool, logger *zap.Logger) *Coordinator {
	return &Coordinator{
		db:       db,
		invoices: invoices,
		testMode: testMode,
		logger:   logger,
	}
}

// TestMode reports whether payments are bypassed
func (c *Coordinator) TestMode() bool {
	return c.testMode
}

// loadPurchasable returns approved content. Submissions awaiting moderation
// are reported as NotFound, the same as missing ids.
func (c *Coordinator) loadPurchasable(ctx context.Context, contentID int64) (*models.Content, error) {
	content, err := c.db.GetContent(ctx, contentID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperror.NotFound("content", contentID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load content: %w", err)
	}
	if !content.Approved {
		return nil, apperror.NotFound("content", contentID)
	}
	return content, nil
}

// Purchase decides the path for userID to obtain contentID. Only the free and
// test-mode paths record a purchase here; invoices are recorded on payment.
func (c *Coordinator) Purchase(ctx context.Context, userID, contentID int64) (*Result, error) {
	banned, err := c.db.IsBanned(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to check ban: %w", err)
	}
	if banned {
		return nil, apperror.Banned()
	}

	content, err := c.loadPurchasable(ctx, contentID)
	if err != nil {
		return nil, err
	}

	owned, err := c.db.HasPurchased(ctx, userID, contentID)
	if err != nil {
		return nil, fmt.Errorf("failed to check purchase: %w", err)
	}
	if owned {
		return nil, apperror.AlreadyPurchased(contentID)
	}

	log := c.logger.With(zap.Int64("user_id", userID), zap.Int64("content_id", contentID))

	switch {
	case content.IsFree():
		if err := c.grant(ctx, userID, contentID); err != nil {
			return nil, err
		}
		log.Info("Free content granted")
		return &Result{Outcome: OutcomeFree, Content: content}, nil

	case c.testMode:
		if err := c.grant(ctx, userID, contentID); err != nil {
			return nil, err
		}
		log.Warn("Paid content granted without payment (test mode)", zap.Int64("price", content.Price))
		return &Result{Outcome: OutcomeTestGranted, Content: content}, nil
	}

	link, err := c.invoices.CreateInvoiceLink(ctx, Invoice{
		Title:       invoiceTitle(content),
		Description: fmt.Sprintf("%s #%d for %d Stars", kindLabel(content.Kind), content.ID, content.Price),
		Payload:     strconv.FormatInt(contentID, 10),
		Currency:    CurrencyStars,
		Amount:      content.Price,
	})
	if err != nil {
		log.Error("Failed to create invoice link", zap.Error(err))
		return nil, apperror.Upstream("failed to create invoice", err)
	}

	log.Info("Invoice link created", zap.Int64("price", content.Price))
	return &Result{Outcome: OutcomeInvoice, InvoiceLink: link, Content: content}, nil
}

// grant records the purchase; losing a concurrent race is reported as AlreadyPurchased
func (c *Coordinator) grant(ctx context.Context, userID, contentID int64) error {
	inserted, err := c.db.RecordPurchase(ctx, userID, contentID)
	if err != nil {
		return fmt.Errorf("failed to record purchase: %w", err)
	}
	if !inserted {
		return apperror.AlreadyPurchased(contentID)
	}
	return nil
}

// ParsePayload extracts the content id carried in an invoice payload
func ParsePayload(payload string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(payload), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperror.InvalidInput(fmt.Sprintf("invalid invoice payload %q", payload))
	}
	return id, nil
}

// ValidateCheckout decides whether a pre-checkout query may proceed
func (c *Coordinator) ValidateCheckout(ctx context.Context, userID int64, payload string) error {
	contentID, err := ParsePayload(payload)
	if err != nil {
		return err
	}
	if _, err := c.loadPurchasable(ctx, contentID); err != nil {
		return err
	}

	owned, err := c.db.HasPurchased(ctx, userID, contentID)
	if err != nil {
		return fmt.Errorf("failed to check purchase: %w", err)
	}
	if owned {
		return apperror.AlreadyPurchased(contentID)
	}
	return nil
}

// CompletePayment records a confirmed payment. A repeated notification for
// the same pair is reported as Duplicate and writes nothing.
func (c *Coordinator) CompletePayment(ctx context.Context, userID int64, payload string) (*Completion, error) {
	contentID, err := ParsePayload(payload)
	if err != nil {
		return nil, err
	}

	inserted, err := c.db.RecordPurchase(ctx, userID, contentID)
	if err != nil {
		return nil, fmt.Errorf("failed to record purchase: %w", err)
	}

	log := c.logger.With(zap.Int64("user_id", userID), zap.Int64("content_id", contentID))
	done := &Completion{ContentID: contentID, Duplicate: !inserted}
	if !inserted {
		log.Warn("Duplicate payment notification")
		return done, nil
	}
	log.Info("Payment recorded")

	content, err := c.db.GetContent(ctx, contentID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		log.Warn("Paid content no longer exists")
	case err != nil:
		log.Error("Failed to load paid content", zap.Error(err))
	default:
		done.Content = content
	}
	return done, nil
}

func kindLabel(kind models.MediaKind) string {
	switch kind {
	case models.KindPhoto:
		return "Photo"
	case models.KindVideo:
		return "Video"
	case models.KindVideoNote:
		return "Video note"
	}
	return "Content"
}

func invoiceTitle(c *models.Content) string {
	return fmt.Sprintf("%s #%d", kindLabel(c.Kind), c.ID)
}
