// Package pg implements storage.Storage on PostgreSQL with pgx and squirrel.
package pg

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"storefront/internal/models"
	"storefront/internal/storage"
	"storefront/internal/storage/migrations"
)

var _ storage.Storage = (*PostgresDB)(nil)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// PostgresDB is a Postgres backed content store
type PostgresDB struct {
	pool *pgxpool.Pool
}

// NewPostgresDB connects to the database described by url and pings it
func NewPostgresDB(ctx context.Context, url string) (*PostgresDB, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping Postgres: %w", err)
	}
	return &PostgresDB{pool: pool}, nil
}

// Initialize applies the embedded goose migrations
func (db *PostgresDB) Initialize(ctx context.Context) error {
	sqlDB := stdlib.OpenDBFromPool(db.pool)
	defer sqlDB.Close()

	provider, err := goose.NewProvider(goose.DialectPostgres, sqlDB, migrations.Postgres())
	if err != nil {
		return fmt.Errorf("failed to create migration provider: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// Close closes the connection pool
func (db *PostgresDB) Close() error {
	db.pool.Close()
	return nil
}

// UpsertUser inserts a user or refreshes its display fields, keeping the ban flag
func (db *PostgresDB) UpsertUser(ctx context.Context, id int64, username, firstName string) error {
	query, args, err := psql.Insert("users").
		Columns("id", "username", "first_name").
		Values(id, username, firstName).
		Suffix("ON CONFLICT (id) DO UPDATE SET username = EXCLUDED.username, first_name = EXCLUDED.first_name").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build upsert: %w", err)
	}
	if _, err := db.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to upsert user %d: %w", id, err)
	}
	return nil
}

// IsBanned reports whether the user is banned. Unknown users are not.
func (db *PostgresDB) IsBanned(ctx context.Context, userID int64) (bool, error) {
	query, args, err := psql.Select("banned").From("users").Where(sq.Eq{"id": userID}).ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to build query: %w", err)
	}

	var banned bool
	err = db.pool.QueryRow(ctx, query, args...).Scan(&banned)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check ban of user %d: %w", userID, err)
	}
	return banned, nil
}

// BanByUsername bans every user with the given username
func (db *PostgresDB) BanByUsername(ctx context.Context, username string) (bool, error) {
	return db.exec(ctx, psql.Update("users").Set("banned", true).Where(sq.Eq{"username": username}))
}

// CreateContent inserts a content item and returns its id
func (db *PostgresDB) CreateContent(ctx context.Context, kind models.MediaKind, fileID string, price, authorID int64, approved bool) (int64, error) {
	query, args, err := psql.Insert("content").
		Columns("type", "file_id", "price", "author_id", "approved").
		Values(string(kind), fileID, price, authorID, approved).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build insert: %w", err)
	}

	var id int64
	if err := db.pool.QueryRow(ctx, query, args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to create content: %w", err)
	}
	return id, nil
}

// ApproveContent marks content as approved, repricing it when price is set
func (db *PostgresDB) ApproveContent(ctx context.Context, id int64, price *int64) (bool, error) {
	q := psql.Update("content").Set("approved", true).Where(sq.Eq{"id": id})
	if price != nil {
		q = q.Set("price", *price)
	}
	return db.exec(ctx, q)
}

// DeleteContent removes a content item. Purchases of it are kept.
func (db *PostgresDB) DeleteContent(ctx context.Context, id int64) (bool, error) {
	return db.exec(ctx, psql.Delete("content").Where(sq.Eq{"id": id}))
}

func selectContent() sq.SelectBuilder {
	return psql.Select("c.id", "c.type", "c.file_id", "c.price", "c.author_id", "c.approved", "c.created_at").
		From("content c")
}

// ListApprovedContent returns approved content, newest first
func (db *PostgresDB) ListApprovedContent(ctx context.Context, kind models.MediaKind) ([]models.Content, error) {
	q := selectContent().Where(sq.Eq{"c.approved": true}).OrderBy("c.id DESC")
	if kind != "" {
		q = q.Where(sq.Eq{"c.type": string(kind)})
	}
	return db.queryContents(ctx, q)
}

// GetContent returns a content item or storage.ErrNotFound
func (db *PostgresDB) GetContent(ctx context.Context, id int64) (*models.Content, error) {
	query, args, err := selectContent().Where(sq.Eq{"c.id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	c, err := scanContent(db.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get content %d: %w", id, err)
	}
	return c, nil
}

// RecordPurchase inserts the purchase unless the pair already exists
func (db *PostgresDB) RecordPurchase(ctx context.Context, userID, contentID int64) (bool, error) {
	return db.exec(ctx, psql.Insert("purchases").
		Columns("user_id", "content_id").
		Values(userID, contentID).
		Suffix("ON CONFLICT (user_id, content_id) DO NOTHING"))
}

// HasPurchased reports whether the user owns the content
func (db *PostgresDB) HasPurchased(ctx context.Context, userID, contentID int64) (bool, error) {
	query, args, err := psql.Select("1").Prefix("SELECT EXISTS (").
		From("purchases").
		Where(sq.Eq{"user_id": userID, "content_id": contentID}).
		Suffix(")").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to build query: %w", err)
	}

	var exists bool
	if err := db.pool.QueryRow(ctx, query, args...).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check purchase of %d by %d: %w", contentID, userID, err)
	}
	return exists, nil
}

// ListPurchases returns the user's purchased content, most recent purchase first
func (db *PostgresDB) ListPurchases(ctx context.Context, userID int64) ([]models.Content, error) {
	return db.queryContents(ctx, selectContent().
		Join("purchases p ON c.id = p.content_id").
		Where(sq.Eq{"p.user_id": userID}).
		OrderBy("p.id DESC"))
}

func (db *PostgresDB) exec(ctx context.Context, b sq.Sqlizer) (bool, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to build statement: %w", err)
	}
	var tag pgconn.CommandTag
	if tag, err = db.pool.Exec(ctx, query, args...); err != nil {
		return false, fmt.Errorf("failed to execute %q: %w", query, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (db *PostgresDB) queryContents(ctx context.Context, b sq.SelectBuilder) ([]models.Content, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list content: %w", err)
	}
	defer rows.Close()

	items := []models.Content{}
	for rows.Next() {
		c, err := scanContent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan content: %w", err)
		}
		items = append(items, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate content: %w", err)
	}
	return items, nil
}

func scanContent(row pgx.Row) (*models.Content, error) {
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
