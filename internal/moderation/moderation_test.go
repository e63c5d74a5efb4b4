package moderation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"storefront/internal/apperror"
	"storefront/internal/models"
	"storefront/internal/storage/stubs"
)

const (
	testAdmin = int64(100)
	testUser  = int64(200)
)

func newTestModerator(t *testing.T) (*Moderator, *stubs.MockDB) {
	t.Helper()
	db := stubs.NewMockDB()
	return New(testAdmin, db, NewMemoryDraftStore(time.Hour), zap.NewNop()), db
}

func photo(fileID string) models.Media {
	return models.Media{Kind: models.KindPhoto, FileID: fileID}
}

func TestSubmit_UserCreatesUnapprovedFreeContent(t *testing.T) {
	m, db := newTestModerator(t)
	ctx := context.Background()

	sub, err := m.Submit(ctx, testUser, models.Media{Kind: models.KindVideo, FileID: "vid-1"})
	require.NoError(t, err)
	assert.Equal(t, StageSubmitted, sub.Stage)

	c, err := db.GetContent(ctx, sub.ContentID)
	require.NoError(t, err)
	assert.False(t, c.Approved)
	assert.Equal(t, int64(0), c.Price)
	assert.Equal(t, testUser, c.AuthorID)
	assert.Equal(t, models.KindVideo, c.Kind)

	listed, err := db.ListApprovedContent(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, listed, "submission must stay hidden until approved")
}

func TestSubmit_BannedUserStoresNothing(t *testing.T) {
	m, db := newTestModerator(t)
	ctx := context.Background()

	require.NoError(t, db.UpsertUser(ctx, testUser, "spammer", "S"))
	_, err := db.BanByUsername(ctx, "spammer")
	require.NoError(t, err)

	_, err = m.Submit(ctx, testUser, photo("p"))
	assert.ErrorIs(t, err, apperror.ErrBanned)
	assert.Equal(t, 0, db.ContentCount())
}

func TestSubmit_RejectsUnknownKind(t *testing.T) {
	m, db := newTestModerator(t)

	_, err := m.Submit(context.Background(), testUser, models.Media{Kind: "sticker", FileID: "x"})
	assert.ErrorIs(t, err, apperror.ErrInvalidInput)
	assert.Equal(t, 0, db.ContentCount())
}

func TestAdminPriceFlow(t *testing.T) {
	m, db := newTestModerator(t)
	ctx := context.Background()

	sub, err := m.Submit(ctx, testAdmin, photo("admin-photo"))
	require.NoError(t, err)
	assert.Equal(t, StageDrafted, sub.Stage)
	assert.False(t, sub.Replaced)
	assert.Equal(t, 0, db.ContentCount(), "draft must not touch the store")

	s, err := m.Session(ctx, testAdmin)
	require.NoError(t, err)
	assert.Equal(t, StateAwaitingPrice, s.State)

	// invalid replies keep the draft
	for _, bad := range []string{"-1", "abc", "", "2.5"} {
		_, err := m.SubmitPrice(ctx, testAdmin, bad)
		assert.ErrorIs(t, err, apperror.ErrInvalidInput, "input %q", bad)
	}
	s, err = m.Session(ctx, testAdmin)
	require.NoError(t, err)
	assert.Equal(t, StateAwaitingPrice, s.State)
	assert.Equal(t, 0, db.ContentCount())

	c, err := m.SubmitPrice(ctx, testAdmin, " 3 ")
	require.NoError(t, err)
	assert.Equal(t, int64(3), c.Price)
	assert.True(t, c.Approved)

	stored, err := db.GetContent(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stored.Price)
	assert.True(t, stored.Approved)
	assert.Equal(t, "admin-photo", stored.FileID)
	assert.Equal(t, testAdmin, stored.AuthorID)
	assert.Equal(t, *stored, *c, "returned content must be the stored row")

	s, err = m.Session(ctx, testAdmin)
	require.NoError(t, err)
	assert.Equal(t, StateIdle, s.State)
	assert.Nil(t, s.Draft)
}

func TestAdminFreeUpload(t *testing.T) {
	m, db := newTestModerator(t)
	ctx := context.Background()

	_, err := m.Submit(ctx, testAdmin, photo("free"))
	require.NoError(t, err)

	c, err := m.SubmitPrice(ctx, testAdmin, "0")
	require.NoError(t, err)
	assert.True(t, c.IsFree())
	assert.Equal(t, 1, db.ContentCount())
}

func TestSubmit_NewDraftReplacesOld(t *testing.T) {
	m, db := newTestModerator(t)
	ctx := context.Background()

	_, err := m.Submit(ctx, testAdmin, photo("first"))
	require.NoError(t, err)
	sub, err := m.Submit(ctx, testAdmin, photo("second"))
	require.NoError(t, err)
	assert.True(t, sub.Replaced)

	c, err := m.SubmitPrice(ctx, testAdmin, "1")
	require.NoError(t, err)
	assert.Equal(t, "second", c.FileID)
	assert.Equal(t, 1, db.ContentCount())
}

func TestSubmitPrice_WithoutDraft(t *testing.T) {
	m, _ := newTestModerator(t)

	_, err := m.SubmitPrice(context.Background(), testAdmin, "5")
	assert.ErrorIs(t, err, ErrNoDraft)
}

func TestCancelDraft(t *testing.T) {
	m, db := newTestModerator(t)
	ctx := context.Background()

	existed, err := m.CancelDraft(ctx, testAdmin)
	require.NoError(t, err)
	assert.False(t, existed)

	_, err = m.Submit(ctx, testAdmin, photo("p"))
	require.NoError(t, err)

	existed, err = m.CancelDraft(ctx, testAdmin)
	require.NoError(t, err)
	assert.True(t, existed)

	s, err := m.Session(ctx, testAdmin)
	require.NoError(t, err)
	assert.Equal(t, StateIdle, s.State)
	assert.Equal(t, 0, db.ContentCount())
}

func TestApprove(t *testing.T) {
	m, db := newTestModerator(t)
	ctx := context.Background()

	sub, err := m.Submit(ctx, testUser, photo("p"))
	require.NoError(t, err)

	require.NoError(t, m.Approve(ctx, testAdmin, sub.ContentID, nil))
	require.NoError(t, m.Approve(ctx, testAdmin, sub.ContentID, nil), "approve is idempotent")

	c, err := db.GetContent(ctx, sub.ContentID)
	require.NoError(t, err)
	assert.True(t, c.Approved)
	assert.Equal(t, int64(0), c.Price)

	err = m.Approve(ctx, testAdmin, 999, nil)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestApprove_WithPrice(t *testing.T) {
	m, db := newTestModerator(t)
	ctx := context.Background()

	sub, err := m.Submit(ctx, testUser, photo("p"))
	require.NoError(t, err)

	price := int64(7)
	require.NoError(t, m.Approve(ctx, testAdmin, sub.ContentID, &price))

	c, err := db.GetContent(ctx, sub.ContentID)
	require.NoError(t, err)
	assert.Equal(t, int64(7), c.Price)

	negative := int64(-2)
	err = m.Approve(ctx, testAdmin, sub.ContentID, &negative)
	assert.ErrorIs(t, err, apperror.ErrInvalidInput)
}

// approveFailsDB rejects every approval, as a store outage would
type approveFailsDB struct {
	*stubs.MockDB
}

func (approveFailsDB) ApproveContent(ctx context.Context, id int64, price *int64) (bool, error) {
	return false, errors.New("database is locked")
}

func TestApprove_WithPriceFailureLeavesContentHidden(t *testing.T) {
	db := stubs.NewMockDB()
	m := New(testAdmin, approveFailsDB{db}, NewMemoryDraftStore(time.Hour), zap.NewNop())
	ctx := context.Background()

	sub, err := m.Submit(ctx, testUser, photo("p"))
	require.NoError(t, err)

	price := int64(50)
	err = m.Approve(ctx, testAdmin, sub.ContentID, &price)
	require.Error(t, err)

	c, err := db.GetContent(ctx, sub.ContentID)
	require.NoError(t, err)
	assert.False(t, c.Approved, "a failed approval must not publish the item")
	listed, err := db.ListApprovedContent(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, listed)
}

func TestDelete(t *testing.T) {
	m, db := newTestModerator(t)
	ctx := context.Background()

	sub, err := m.Submit(ctx, testUser, photo("p"))
	require.NoError(t, err)

	require.NoError(t, m.Delete(ctx, testAdmin, sub.ContentID))
	_, err = db.GetContent(ctx, sub.ContentID)
	assert.Error(t, err)

	err = m.Delete(ctx, testAdmin, sub.ContentID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestBan(t *testing.T) {
	m, db := newTestModerator(t)
	ctx := context.Background()

	require.NoError(t, db.UpsertUser(ctx, testUser, "alice", "Alice"))

	require.NoError(t, m.Ban(ctx, testAdmin, "@alice"))
	banned, err := db.IsBanned(ctx, testUser)
	require.NoError(t, err)
	assert.True(t, banned)

	err = m.Ban(ctx, testAdmin, "@nobody")
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	err = m.Ban(ctx, testAdmin, "@")
	assert.ErrorIs(t, err, apperror.ErrInvalidInput)
}

func TestAdminOperationsRequireAdmin(t *testing.T) {
	m, db := newTestModerator(t)
	ctx := context.Background()

	id, err := db.CreateContent(ctx, models.KindPhoto, "p", 0, testUser, false)
	require.NoError(t, err)
	require.NoError(t, db.UpsertUser(ctx, 300, "victim", "V"))

	price := int64(1)
	assert.ErrorIs(t, m.Approve(ctx, testUser, id, &price), apperror.ErrPermissionDenied)
	assert.ErrorIs(t, m.Delete(ctx, testUser, id), apperror.ErrPermissionDenied)
	assert.ErrorIs(t, m.Ban(ctx, testUser, "victim"), apperror.ErrPermissionDenied)
	_, err = m.SubmitPrice(ctx, testUser, "1")
	assert.ErrorIs(t, err, apperror.ErrPermissionDenied)
	_, err = m.CancelDraft(ctx, testUser)
	assert.ErrorIs(t, err, apperror.ErrPermissionDenied)

	c, err := db.GetContent(ctx, id)
	require.NoError(t, err)
	assert.False(t, c.Approved)
	assert.Equal(t, int64(0), c.Price)

	banned, err := db.IsBanned(ctx, 300)
	require.NoError(t, err)
	assert.False(t, banned)
}

func TestParsePrice(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"0", 0, false},
		{" 15\n", 15, false},
		{"-1", 0, true},
		{"five", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePrice(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, apperror.ErrInvalidInput)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
