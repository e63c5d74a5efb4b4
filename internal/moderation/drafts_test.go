package moderation

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"storefront/internal/models"
)

func testDraft(fileID string) Draft {
	return Draft{
		Media:     models.Media{Kind: models.KindVideoNote, FileID: fileID},
		CreatedAt: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

// runDraftStoreTests checks the DraftStore contract shared by all implementations
func runDraftStoreTests(t *testing.T, store DraftStore) {
	ctx := context.Background()

	d, err := store.Get(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, d)

	replaced, err := store.Put(ctx, 1, testDraft("a"))
	require.NoError(t, err)
	assert.False(t, replaced)

	replaced, err = store.Put(ctx, 1, testDraft("b"))
	require.NoError(t, err)
	assert.True(t, replaced)

	d, err = store.Get(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, "b", d.Media.FileID)
	assert.Equal(t, models.KindVideoNote, d.Media.Kind)
	assert.True(t, d.CreatedAt.Equal(testDraft("b").CreatedAt))

	other, err := store.Get(ctx, 2)
	require.NoError(t, err)
	assert.Nil(t, other, "drafts are per admin")

	existed, err := store.Delete(ctx, 1)
	require.NoError(t, err)
	assert.True(t, existed)

	existed, err = store.Delete(ctx, 1)
	require.NoError(t, err)
	assert.False(t, existed)
}

func TestMemoryDraftStore(t *testing.T) {
	runDraftStoreTests(t, NewMemoryDraftStore(time.Hour))
}

func TestMemoryDraftStore_Expiry(t *testing.T) {
	store := NewMemoryDraftStore(time.Minute)
	now := time.Now()
	store.now = func() time.Time { return now }
	ctx := context.Background()

	_, err := store.Put(ctx, 1, testDraft("a"))
	require.NoError(t, err)
	_, err = store.Put(ctx, 2, testDraft("b"))
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)

	d, err := store.Get(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, d, "expired draft reads as absent")

	assert.Equal(t, 1, store.Sweep(), "only the draft not already evicted by Get is swept")
	assert.Equal(t, 0, store.Sweep())

	replaced, err := store.Put(ctx, 2, testDraft("c"))
	require.NoError(t, err)
	assert.False(t, replaced)
}

func TestMemoryDraftStore_ScheduleSweep(t *testing.T) {
	store := NewMemoryDraftStore(time.Minute)
	c := cron.New()

	id, err := store.ScheduleSweep(c, "@every 1m", zap.NewNop())
	require.NoError(t, err)
	assert.NotZero(t, id)
	assert.Len(t, c.Entries(), 1)

	_, err = store.ScheduleSweep(c, "not a schedule", zap.NewNop())
	assert.Error(t, err)
}

func newTestRedisStore(t *testing.T, ttl time.Duration) (*RedisDraftStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	store := NewRedisDraftStore(mr.Addr(), "", ttl)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.Ping(context.Background()))
	return store, mr
}

func TestRedisDraftStore(t *testing.T) {
	store, _ := newTestRedisStore(t, time.Hour)
	runDraftStoreTests(t, store)
}

func TestRedisDraftStore_Expiry(t *testing.T) {
	store, mr := newTestRedisStore(t, time.Minute)
	ctx := context.Background()

	_, err := store.Put(ctx, 1, testDraft("a"))
	require.NoError(t, err)
	assert.True(t, mr.Exists("storefront:draft:1"))

	mr.FastForward(2 * time.Minute)

	d, err := store.Get(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, d)
}

func TestRedisDraftStore_CorruptValue(t *testing.T) {
	store, mr := newTestRedisStore(t, time.Minute)
	require.NoError(t, mr.Set("storefront:draft:1", "{not json"))

	_, err := store.Get(context.Background(), 1)
	assert.Error(t, err)
}

func TestModeratorWithRedisDrafts(t *testing.T) {
	store, _ := newTestRedisStore(t, time.Hour)
	m, db := newTestModerator(t)
	m.drafts = store
	ctx := context.Background()

	_, err := m.Submit(ctx, testAdmin, photo("persisted"))
	require.NoError(t, err)

	c, err := m.SubmitPrice(ctx, testAdmin, "9")
	require.NoError(t, err)
	assert.Equal(t, "persisted", c.FileID)
	assert.Equal(t, 1, db.ContentCount())

	s, err := m.Session(ctx, testAdmin)
	require.NoError(t, err)
	assert.Equal(t, StateIdle, s.State)
}
