package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/models"
	"storefront/internal/storage"
	"storefront/internal/storage/storagetest"
)

// newTestDB returns an initialized in-memory database closed at test end
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Initialize(context.Background()))
	return db
}

func TestSQLiteStorage(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Storage {
		return newTestDB(t)
	})
}

func TestInitializeIsRepeatable(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.Initialize(context.Background()))
}

func TestDataSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storefront.db")
	ctx := context.Background()

	db, err := New(path)
	require.NoError(t, err)
	require.NoError(t, db.Initialize(ctx))
	id, err := db.CreateContent(ctx, models.KindPhoto, "file", 3, 1, true)
	require.NoError(t, err)
	_, err = db.RecordPurchase(ctx, 2, id)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	reopened, err := New(path)
	require.NoError(t, err)
	defer reopened.Close()
	require.NoError(t, reopened.Initialize(ctx))

	has, err := reopened.HasPurchased(ctx, 2, id)
	require.NoError(t, err)
	assert.True(t, has)
}
