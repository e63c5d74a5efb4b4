// Package moderation implements the content lifecycle before a listing goes
// live: user submissions waiting for approval and admin uploads waiting for
// a price.
package moderation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"storefront/internal/apperror"
	"storefront/internal/models"
	"storefront/internal/storage"
)

// ErrNoDraft is returned by SubmitPrice when the admin has nothing pending
var ErrNoDraft = errors.New("no pending draft")

// State of the admin conversation
type State int

const (
	StateIdle State = iota
	StateAwaitingPrice
)

func (s State) String() string {
	if s == StateAwaitingPrice {
		return "awaiting_price"
	}
	return "idle"
}

// Session is the admin's moderation state derived from the draft store
type Session struct {
	State State
	Draft *Draft
}

// Stage tells the caller what happened to an upload
type Stage int

const (
	// StageSubmitted: a user upload stored unapproved, waiting for the admin
	StageSubmitted Stage = iota
	// StageDrafted: an admin upload held until a price is entered
	StageDrafted
)

// Submission is the result of Submit
type Submission struct {
	Stage     Stage
	ContentID int64 // set for StageSubmitted
	Replaced  bool  // StageDrafted replaced an older draft
}

// Moderator owns the per-admin session and the admin-only mutations
type Moderator struct {
	adminID int64
	db      storage.Storage
	drafts  DraftStore
	logger  *zap.Logger
	now     func() time.Time
}

// New creates a Moderator for the single configured admin
func New(adminID int64, db storage.Storage, drafts DraftStore, logger *zap.Logger) *Moderator {
	return &Moderator{
		adminID: adminID,
		db:      db,
		drafts:  drafts,
		logger:  logger,
		now:     time.Now,
	}
}

// IsAdmin reports whether userID is the configured admin
func (m *Moderator) IsAdmin(userID int64) bool {
	return userID == m.adminID
}

// AdminID returns the configured admin id
func (m *Moderator) AdminID() int64 {
	return m.adminID
}

// Submit accepts an upload. Admin uploads become a draft awaiting a price;
// anyone else's become unapproved free content.
func (m *Moderator) Submit(ctx context.Context, authorID int64, media models.Media) (Submission, error) {
	if _, err := models.ParseMediaKind(string(media.Kind)); err != nil {
		return Submission{}, apperror.InvalidInput("unsupported media type")
	}
	if media.FileID == "" {
		return Submission{}, apperror.InvalidInput("missing file id")
	}

	banned, err := m.db.IsBanned(ctx, authorID)
	if err != nil {
		return Submission{}, fmt.Errorf("failed to check ban: %w", err)
	}
	if banned {
		return Submission{}, apperror.Banned()
	}

	if m.IsAdmin(authorID) {
		replaced, err := m.drafts.Put(ctx, authorID, Draft{Media: media, CreatedAt: m.now()})
		if err != nil {
			return Submission{}, fmt.Errorf("failed to store draft: %w", err)
		}
		m.logger.Debug("Admin draft stored",
			zap.String("kind", string(media.Kind)),
			zap.Bool("replaced", replaced))
		return Submission{Stage: StageDrafted, Replaced: replaced}, nil
	}

	id, err := m.db.CreateContent(ctx, media.Kind, media.FileID, 0, authorID, false)
	if err != nil {
		return Submission{}, fmt.Errorf("failed to store submission: %w", err)
	}
	m.logger.Info("User submission stored",
		zap.Int64("content_id", id),
		zap.Int64("author_id", authorID),
		zap.String("kind", string(media.Kind)))
	return Submission{Stage: StageSubmitted, ContentID: id}, nil
}

// Session returns the admin's current state
func (m *Moderator) Session(ctx context.Context, adminID int64) (Session, error) {
	if !m.IsAdmin(adminID) {
		return Session{State: StateIdle}, nil
	}
	d, err := m.drafts.Get(ctx, adminID)
	if err != nil {
		return Session{}, fmt.Errorf("failed to load draft: %w", err)
	}
	if d == nil {
		return Session{State: StateIdle}, nil
	}
	return Session{State: StateAwaitingPrice, Draft: d}, nil
}

// ParsePrice parses a non-negative whole number of Stars
func ParsePrice(text string) (int64, error) {
	price, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
	if err != nil {
		return 0, apperror.InvalidInput("price must be a whole number, e.g. 5")
	}
	if price < 0 {
		return 0, apperror.InvalidInput("price cannot be negative")
	}
	return price, nil
}

// SubmitPrice publishes the pending draft at the given price. Invalid input
// leaves the draft in place.
func (m *Moderator) SubmitPrice(ctx context.Context, adminID int64, text string) (*models.Content, error) {
	if !m.IsAdmin(adminID) {
		return nil, apperror.PermissionDenied()
	}

	d, err := m.drafts.Get(ctx, adminID)
	if err != nil {
		return nil, fmt.Errorf("failed to load draft: %w", err)
	}
	if d == nil {
		return nil, ErrNoDraft
	}

	price, err := ParsePrice(text)
	if err != nil {
		return nil, err
	}

	id, err := m.db.CreateContent(ctx, d.Media.Kind, d.Media.FileID, price, adminID, true)
	if err != nil {
		return nil, fmt.Errorf("failed to publish draft: %w", err)
	}
	if _, err := m.drafts.Delete(ctx, adminID); err != nil {
		m.logger.Error("Failed to clear published draft", zap.Int64("content_id", id), zap.Error(err))
	}

	m.logger.Info("Admin content published",
		zap.Int64("content_id", id),
		zap.Int64("price", price),
		zap.String("kind", string(d.Media.Kind)))

	content, err := m.db.GetContent(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("content %d published but could not be reloaded: %w", id, err)
	}
	return content, nil
}

// CancelDraft drops a pending draft. It reports whether one existed.
func (m *Moderator) CancelDraft(ctx context.Context, adminID int64) (bool, error) {
	if !m.IsAdmin(adminID) {
		return false, apperror.PermissionDenied()
	}
	existed, err := m.drafts.Delete(ctx, adminID)
	if err != nil {
		return false, fmt.Errorf("failed to cancel draft: %w", err)
	}
	return existed, nil
}

// Approve makes content visible in the catalog. A non-nil price also sets the
// price, so user submissions can be sold.
func (m *Moderator) Approve(ctx context.Context, actorID, contentID int64, price *int64) error {
	if !m.IsAdmin(actorID) {
		return apperror.PermissionDenied()
	}
	if price != nil && *price < 0 {
		return apperror.InvalidInput("price cannot be negative")
	}

	ok, err := m.db.ApproveContent(ctx, contentID, price)
	if err != nil {
		return fmt.Errorf("failed to approve content: %w", err)
	}
	if !ok {
		return apperror.NotFound("content", contentID)
	}

	fields := []zap.Field{zap.Int64("content_id", contentID)}
	if price != nil {
		fields = append(fields, zap.Int64("price", *price))
	}
	m.logger.Info("Content approved", fields...)
	return nil
}

// Delete removes content from the catalog
func (m *Moderator) Delete(ctx context.Context, actorID, contentID int64) error {
	if !m.IsAdmin(actorID) {
		return apperror.PermissionDenied()
	}

	ok, err := m.db.DeleteContent(ctx, contentID)
	if err != nil {
		return fmt.Errorf("failed to delete content: %w", err)
	}
	if !ok {
		return apperror.NotFound("content", contentID)
	}
	m.logger.Info("Content deleted", zap.Int64("content_id", contentID))
	return nil
}

// Ban blocks a user by username. A leading @ is ignored.
func (m *Moderator) Ban(ctx context.Context, actorID int64, username string) error {
	if !m.IsAdmin(actorID) {
		return apperror.PermissionDenied()
	}

	username = strings.TrimPrefix(strings.TrimSpace(username), "@")
	if username == "" {
		return apperror.InvalidInput("username is required")
	}

	ok, err := m.db.BanByUsername(ctx, username)
	if err != nil {
		return fmt.Errorf("failed to ban user: %w", err)
	}
	if !ok {
		return apperror.NotFound("user", "@"+username)
	}
	m.logger.Info("User banned", zap.String("username", username))
	return nil
}
