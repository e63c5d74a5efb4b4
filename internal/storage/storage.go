package storage

import (
	"context"
	"errors"

	"storefront/internal/models"
)

// ErrNotFound is returned by GetContent when no row has the requested id
var ErrNotFound = errors.New("storage: not found")

// Storage defines the interface for data storage operations.
// Every write is durable when the call returns: the chat handler and the
// HTTP API read each other's writes through it.
type Storage interface {
	// User operations

	// UpsertUser inserts the user or refreshes username/first name. Never touches banned.
	UpsertUser(ctx context.Context, id int64, username, firstName string) error
	IsBanned(ctx context.Context, userID int64) (bool, error)
	// BanByUsername reports whether a user with that username existed
	BanByUsername(ctx context.Context, username string) (bool, error)

	// Content operations
	CreateContent(ctx context.Context, kind models.MediaKind, fileID string, price, authorID int64, approved bool) (int64, error)
	// ApproveContent is idempotent and reports whether the row exists.
	// A non-nil price is written by the same statement that sets approved.
	ApproveContent(ctx context.Context, id int64, price *int64) (bool, error)
	DeleteContent(ctx context.Context, id int64) (bool, error)
	// ListApprovedContent returns approved content newest first.
	// An empty kind means every kind.
	ListApprovedContent(ctx context.Context, kind models.MediaKind) ([]models.Content, error)
	GetContent(ctx context.Context, id int64) (*models.Content, error)

	// Purchase operations

	// RecordPurchase inserts the (user, content) pair unless it already exists.
	// The check and the insert are a single atomic statement; inserted is false
	// when the pair was already recorded.
	RecordPurchase(ctx context.Context, userID, contentID int64) (inserted bool, err error)
	HasPurchased(ctx context.Context, userID, contentID int64) (bool, error)
	// ListPurchases returns the purchased content, most recent purchase first.
	// Purchases of deleted content are skipped.
	ListPurchases(ctx context.Context, userID int64) ([]models.Content, error)

	// Lifecycle
	Initialize(ctx context.Context) error
	Close() error
}
