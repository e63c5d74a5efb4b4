// Package storagetest holds behaviour tests shared by every storage.Storage
// implementation.
package storagetest

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/models"
	"storefront/internal/storage"
)

// Factory returns an initialized, empty store. Cleanup is the factory's job.
type Factory func(t *testing.T) storage.Storage

// Run runs the shared suite against stores built by newStore
func Run(t *testing.T, newStore Factory) {
	t.Run("UpsertUserKeepsBan", func(t *testing.T) { testUpsertUserKeepsBan(t, newStore(t)) })
	t.Run("BanUnknownUsername", func(t *testing.T) { testBanUnknownUsername(t, newStore(t)) })
	t.Run("CreateAndGetContent", func(t *testing.T) { testCreateAndGetContent(t, newStore(t)) })
	t.Run("ApproveIsIdempotent", func(t *testing.T) { testApproveIsIdempotent(t, newStore(t)) })
	t.Run("ApproveWithPrice", func(t *testing.T) { testApproveWithPrice(t, newStore(t)) })
	t.Run("DeleteContent", func(t *testing.T) { testDeleteContent(t, newStore(t)) })
	t.Run("ListApprovedContent", func(t *testing.T) { testListApprovedContent(t, newStore(t)) })
	t.Run("RecordPurchaseOnce", func(t *testing.T) { testRecordPurchaseOnce(t, newStore(t)) })
	t.Run("ConcurrentRecordPurchase", func(t *testing.T) { testConcurrentRecordPurchase(t, newStore(t)) })
	t.Run("ListPurchases", func(t *testing.T) { testListPurchases(t, newStore(t)) })
}

func testUpsertUserKeepsBan(t *testing.T, db storage.Storage) {
	ctx := context.Background()

	require.NoError(t, db.UpsertUser(ctx, 10, "alice", "Alice"))
	ok, err := db.BanByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, ok)

	// re-contact with a new first name must not lift the ban
	require.NoError(t, db.UpsertUser(ctx, 10, "alice", "Alicia"))
	banned, err := db.IsBanned(ctx, 10)
	require.NoError(t, err)
	assert.True(t, banned)

	banned, err = db.IsBanned(ctx, 999)
	require.NoError(t, err)
	assert.False(t, banned, "unknown users are not banned")
}

func testBanUnknownUsername(t *testing.T, db storage.Storage) {
	ok, err := db.BanByUsername(context.Background(), "nobody")
	require.NoError(t, err)
	assert.False(t, ok)
}

func testCreateAndGetContent(t *testing.T, db storage.Storage) {
	ctx := context.Background()

	id1, err := db.CreateContent(ctx, models.KindPhoto, "file-1", 0, 10, false)
	require.NoError(t, err)
	id2, err := db.CreateContent(ctx, models.KindVideo, "file-2", 5, 1, true)
	require.NoError(t, err)
	assert.Greater(t, id2, id1, "ids are monotonic")

	c, err := db.GetContent(ctx, id2)
	require.NoError(t, err)
	assert.Equal(t, models.KindVideo, c.Kind)
	assert.Equal(t, "file-2", c.FileID)
	assert.Equal(t, int64(5), c.Price)
	assert.Equal(t, int64(1), c.AuthorID)
	assert.True(t, c.Approved)
	assert.False(t, c.CreatedAt.IsZero())

	_, err = db.GetContent(ctx, id2+100)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func testApproveIsIdempotent(t *testing.T, db storage.Storage) {
	ctx := context.Background()

	id, err := db.CreateContent(ctx, models.KindPhoto, "file", 0, 10, false)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		ok, err := db.ApproveContent(ctx, id, nil)
		require.NoError(t, err)
		assert.True(t, ok, "approve #%d", i+1)
	}
	c, err := db.GetContent(ctx, id)
	require.NoError(t, err)
	assert.True(t, c.Approved)

	ok, err := db.ApproveContent(ctx, id+1, nil)
	require.NoError(t, err)
	assert.False(t, ok)
}

func testApproveWithPrice(t *testing.T, db storage.Storage) {
	ctx := context.Background()

	id, err := db.CreateContent(ctx, models.KindPhoto, "file", 0, 10, false)
	require.NoError(t, err)

	price := int64(7)
	ok, err := db.ApproveContent(ctx, id, &price)
	require.NoError(t, err)
	assert.True(t, ok)

	c, err := db.GetContent(ctx, id)
	require.NoError(t, err)
	assert.True(t, c.Approved)
	assert.Equal(t, int64(7), c.Price)

	// approving again without a price keeps the one already set
	ok, err = db.ApproveContent(ctx, id, nil)
	require.NoError(t, err)
	assert.True(t, ok)
	c, err = db.GetContent(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(7), c.Price)

	listed, err := db.ListApprovedContent(ctx, "")
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, int64(7), listed[0].Price)

	ok, err = db.ApproveContent(ctx, id+1, &price)
	require.NoError(t, err)
	assert.False(t, ok)
	_, err = db.GetContent(ctx, id+1)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func testDeleteContent(t *testing.T, db storage.Storage) {
	ctx := context.Background()

	id, err := db.CreateContent(ctx, models.KindVideoNote, "file", 0, 10, true)
	require.NoError(t, err)

	ok, err := db.DeleteContent(ctx, id+1)
	require.NoError(t, err)
	assert.False(t, ok, "deleting a missing id reports not found")

	items, err := db.ListApprovedContent(ctx, "")
	require.NoError(t, err)
	assert.Len(t, items, 1, "failed delete must not write")

	ok, err = db.DeleteContent(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = db.GetContent(ctx, id)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func testListApprovedContent(t *testing.T, db storage.Storage) {
	ctx := context.Background()

	photo, err := db.CreateContent(ctx, models.KindPhoto, "p", 0, 1, true)
	require.NoError(t, err)
	_, err = db.CreateContent(ctx, models.KindPhoto, "pending", 0, 2, false)
	require.NoError(t, err)
	video, err := db.CreateContent(ctx, models.KindVideo, "v", 3, 1, true)
	require.NoError(t, err)

	all, err := db.ListApprovedContent(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, video, all[0].ID, "newest first")
	assert.Equal(t, photo, all[1].ID)

	photos, err := db.ListApprovedContent(ctx, models.KindPhoto)
	require.NoError(t, err)
	require.Len(t, photos, 1)
	assert.Equal(t, photo, photos[0].ID)

	notes, err := db.ListApprovedContent(ctx, models.KindVideoNote)
	require.NoError(t, err)
	assert.NotNil(t, notes)
	assert.Empty(t, notes)
}

func testRecordPurchaseOnce(t *testing.T, db storage.Storage) {
	ctx := context.Background()

	id, err := db.CreateContent(ctx, models.KindPhoto, "p", 0, 1, true)
	require.NoError(t, err)

	has, err := db.HasPurchased(ctx, 42, id)
	require.NoError(t, err)
	assert.False(t, has)

	inserted, err := db.RecordPurchase(ctx, 42, id)
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = db.RecordPurchase(ctx, 42, id)
	require.NoError(t, err)
	assert.False(t, inserted, "second record of the same pair is a no-op")

	has, err = db.HasPurchased(ctx, 42, id)
	require.NoError(t, err)
	assert.True(t, has)

	items, err := db.ListPurchases(ctx, 42)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func testConcurrentRecordPurchase(t *testing.T, db storage.Storage) {
	ctx := context.Background()

	id, err := db.CreateContent(ctx, models.KindPhoto, "p", 0, 1, true)
	require.NoError(t, err)

	var (
		wg       sync.WaitGroup
		inserted atomic.Int32
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := db.RecordPurchase(ctx, 7, id)
			assert.NoError(t, err)
			if ok {
				inserted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), inserted.Load())
	items, err := db.ListPurchases(ctx, 7)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func testListPurchases(t *testing.T, db storage.Storage) {
	ctx := context.Background()

	first, err := db.CreateContent(ctx, models.KindPhoto, "a", 0, 1, true)
	require.NoError(t, err)
	second, err := db.CreateContent(ctx, models.KindVideo, "b", 2, 1, true)
	require.NoError(t, err)
	deleted, err := db.CreateContent(ctx, models.KindVideo, "c", 2, 1, true)
	require.NoError(t, err)

	// buy in reverse creation order so purchase order differs from id order
	for _, id := range []int64{second, first, deleted} {
		_, err := db.RecordPurchase(ctx, 5, id)
		require.NoError(t, err)
	}
	_, err = db.DeleteContent(ctx, deleted)
	require.NoError(t, err)

	items, err := db.ListPurchases(ctx, 5)
	require.NoError(t, err)
	require.Len(t, items, 2, "purchases of deleted content are hidden")
	assert.Equal(t, first, items[0].ID, "most recent purchase first")
	assert.Equal(t, second, items[1].ID)

	// the purchase row itself survives the deletion
	has, err := db.HasPurchased(ctx, 5, deleted)
	require.NoError(t, err)
	assert.True(t, has)

	none, err := db.ListPurchases(ctx, 6)
	require.NoError(t, err)
	assert.Empty(t, none)
}
