// Package sqlite implements storage.Storage on an embedded SQLite database
// using the pure Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"storefront/internal/models"
	"storefront/internal/storage"
	"storefront/internal/storage/migrations"
)

var _ storage.Storage = (*DB)(nil)

// DB is a SQLite backed content store
type DB struct {
	conn *sql.DB
}

// New opens the database at path. Use ":memory:" for a throwaway database.
// Tables are created by Initialize.
func New(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// A single connection serialises writers and keeps ":memory:" databases
	// shared between queries.
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting busy timeout: %w", err)
	}

	return &DB{conn: conn}, nil
}

// Initialize applies the embedded goose migrations
func (db *DB) Initialize(ctx context.Context) error {
	provider, err := goose.NewProvider(goose.DialectSQLite3, db.conn, migrations.SQLite())
	if err != nil {
		return fmt.Errorf("sqlite: creating migration provider: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("sqlite: running migrations: %w", err)
	}
	return nil
}

// Conn exposes the underlying pool for the migrate command
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// UpsertUser inserts a user or refreshes its display fields, keeping the ban flag
func (db *DB) UpsertUser(ctx context.Context, id int64, username, firstName string) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (id, username, first_name, banned, created_at)
		 VALUES (?, ?, ?, 0, ?)
		 ON CONFLICT(id) DO UPDATE SET
		     username = excluded.username,
		     first_name = excluded.first_name`,
		id, username, firstName, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: upserting user %d: %w", id, err)
	}
	return nil
}

// IsBanned reports whether the user is banned. Unknown users are not.
func (db *DB) IsBanned(ctx context.Context, userID int64) (bool, error) {
	var banned bool
	err := db.conn.QueryRowContext(ctx, `SELECT banned FROM users WHERE id = ?`, userID).Scan(&banned)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("sqlite: checking ban of user %d: %w", userID, err)
	}
	return banned, nil
}

// BanByUsername bans every user with the given username
func (db *DB) BanByUsername(ctx context.Context, username string) (bool, error) {
	res, err := db.conn.ExecContext(ctx, `UPDATE users SET banned = 1 WHERE username = ?`, username)
	if err != nil {
		return false, fmt.Errorf("sqlite: banning @%s: %w", username, err)
	}
	return affected(res)
}

// CreateContent inserts a content item and returns its id
func (db *DB) CreateContent(ctx context.Context, kind models.MediaKind, fileID string, price, authorID int64, approved bool) (int64, error) {
	res, err := db.conn.ExecContext(ctx,
		`INSERT INTO content (type, file_id, price, author_id, approved, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		string(kind), fileID, price, authorID, approved, time.Now().UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("sqlite: creating content: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("sqlite: reading content id: %w", err)
	}
	return id, nil
}

// ApproveContent marks content as approved, repricing it when price is set
func (db *DB) ApproveContent(ctx context.Context, id int64, price *int64) (bool, error) {
	var (
		res sql.Result
		err error
	)
	if price != nil {
		res, err = db.conn.ExecContext(ctx, `UPDATE content SET approved = 1, price = ? WHERE id = ?`, *price, id)
	} else {
		res, err = db.conn.ExecContext(ctx, `UPDATE content SET approved = 1 WHERE id = ?`, id)
	}
	if err != nil {
		return false, fmt.Errorf("sqlite: approving content %d: %w", id, err)
	}
	return affected(res)
}

// DeleteContent removes a content item. Purchases of it are kept.
func (db *DB) DeleteContent(ctx context.Context, id int64) (bool, error) {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM content WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("sqlite: deleting content %d: %w", id, err)
	}
	return affected(res)
}

const contentColumns = `c.id, c.type, c.file_id, c.price, c.author_id, c.approved, c.created_at`

// ListApprovedContent returns approved content, newest first
func (db *DB) ListApprovedContent(ctx context.Context, kind models.MediaKind) ([]models.Content, error) {
	query := `SELECT ` + contentColumns + ` FROM content c WHERE c.approved = 1`
	var args []any
	if kind != "" {
		query += ` AND c.type = ?`
		args = append(args, string(kind))
	}
	query += ` ORDER BY c.id DESC`

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing approved content: %w", err)
	}
	return scanContents(rows)
}

// GetContent returns a content item or storage.ErrNotFound
func (db *DB) GetContent(ctx context.Context, id int64) (*models.Content, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+contentColumns+` FROM content c WHERE c.id = ?`, id)
	c, err := scanContent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: getting content %d: %w", id, err)
	}
	return c, nil
}

// RecordPurchase inserts the purchase unless the pair already exists
func (db *DB) RecordPurchase(ctx context.Context, userID, contentID int64) (bool, error) {
	res, err := db.conn.ExecContext(ctx,
		`INSERT INTO purchases (user_id, content_id, timestamp) VALUES (?, ?, ?)
		 ON CONFLICT(user_id, content_id) DO NOTHING`,
		userID, contentID, time.Now().UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("sqlite: recording purchase of %d by %d: %w", contentID, userID, err)
	}
	return affected(res)
}

// HasPurchased reports whether the user owns the content
func (db *DB) HasPurchased(ctx context.Context, userID, contentID int64) (bool, error) {
	var one int
	err := db.conn.QueryRowContext(ctx,
		`SELECT 1 FROM purchases WHERE user_id = ? AND content_id = ?`, userID, contentID,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("sqlite: checking purchase of %d by %d: %w", contentID, userID, err)
	}
	return true, nil
}

// ListPurchases returns the user's purchased content, most recent purchase first
func (db *DB) ListPurchases(ctx context.Context, userID int64) ([]models.Content, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+contentColumns+` FROM content c
		 JOIN purchases p ON c.id = p.content_id
		 WHERE p.user_id = ?
		 ORDER BY p.id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing purchases of %d: %w", userID, err)
	}
	return scanContents(rows)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanContent(row scanner) (*models.Content, error) {
	var (
		c    models.Content
		kind string
	)
	if err := row.Scan(&c.ID, &kind, &c.FileID, &c.Price, &c.AuthorID, &c.Approved, &c.CreatedAt); err != nil {
		return nil, err
	}
	c.Kind = models.MediaKind(kind)
	return &c, nil
}

func scanContents(rows *sql.Rows) ([]models.Content, error) {
	defer rows.Close()

	items := []models.Content{}
	for rows.Next() {
		c, err := scanContent(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning content: %w", err)
		}
		items = append(items, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating content: %w", err)
	}
	return items, nil
}

func affected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite: reading affected rows: %w", err)
	}
	return n > 0, nil
}
