package purchase

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"storefront/internal/apperror"
	"storefront/internal/models"
	"storefront/internal/storage/stubs"
)

// fakeIssuer records invoice requests
type fakeIssuer struct {
	mu       sync.Mutex
	invoices []Invoice
	link     string
	err      error
}

func (f *fakeIssuer) CreateInvoiceLink(ctx context.Context, inv Invoice) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invoices = append(f.invoices, inv)
	if f.err != nil {
		return "", f.err
	}
	return f.link, nil
}

func (f *fakeIssuer) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.invoices)
}

func setup(t *testing.T, testMode bool) (*Coordinator, *stubs.MockDB, *fakeIssuer) {
	t.Helper()
	db := stubs.NewMockDB()
	issuer := &fakeIssuer{link: "https://t.me/$invoice"}
	return NewCoordinator(db, issuer, testMode, zap.NewNop()), db, issuer
}

func addContent(t *testing.T, db *stubs.MockDB, price int64) int64 {
	t.Helper()
	id, err := db.CreateContent(context.Background(), models.KindPhoto, "file", price, 1, true)
	require.NoError(t, err)
	return id
}

func TestPurchase_FreeContent(t *testing.T) {
	c, db, issuer := setup(t, false)
	ctx := context.Background()
	id := addContent(t, db, 0)

	res, err := c.Purchase(ctx, 42, id)
	require.NoError(t, err)
	assert.Equal(t, OutcomeFree, res.Outcome)
	assert.Equal(t, 0, issuer.calls(), "free content never reaches the payment provider")
	assert.Equal(t, 1, db.PurchaseCount(42, id))

	_, err = c.Purchase(ctx, 42, id)
	assert.ErrorIs(t, err, apperror.ErrAlreadyPurchased)
	assert.Equal(t, 1, db.PurchaseCount(42, id))
}

func TestPurchase_PaidContentIssuesInvoice(t *testing.T) {
	c, db, issuer := setup(t, false)
	id := addContent(t, db, 5)

	res, err := c.Purchase(context.Background(), 42, id)
	require.NoError(t, err)
	assert.Equal(t, OutcomeInvoice, res.Outcome)
	assert.Equal(t, "https://t.me/$invoice", res.InvoiceLink)

	require.Equal(t, 1, issuer.calls())
	inv := issuer.invoices[0]
	assert.Equal(t, CurrencyStars, inv.Currency)
	assert.Equal(t, int64(5), inv.Amount)
	assert.NotEmpty(t, inv.Title)

	got, err := ParsePayload(inv.Payload)
	require.NoError(t, err)
	assert.Equal(t, id, got)

	assert.Equal(t, 0, db.PurchaseCount(42, id), "invoice alone does not grant ownership")
}

func TestPurchase_TestModeGrants(t *testing.T) {
	c, db, issuer := setup(t, true)
	id := addContent(t, db, 5)

	res, err := c.Purchase(context.Background(), 42, id)
	require.NoError(t, err)
	assert.Equal(t, OutcomeTestGranted, res.Outcome)
	assert.Equal(t, 0, issuer.calls())
	assert.Equal(t, 1, db.PurchaseCount(42, id))
	assert.True(t, c.TestMode())
}

func TestPurchase_UnknownContent(t *testing.T) {
	c, db, _ := setup(t, false)

	_, err := c.Purchase(context.Background(), 42, 99)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
	assert.Equal(t, 0, db.PurchaseCount(42, 99))
}

func TestPurchase_UnapprovedContent(t *testing.T) {
	for _, testMode := range []bool{false, true} {
		c, db, issuer := setup(t, testMode)
		ctx := context.Background()
		id, err := db.CreateContent(ctx, models.KindPhoto, "pending", 0, 7, false)
		require.NoError(t, err)

		_, err = c.Purchase(ctx, 42, id)
		assert.ErrorIs(t, err, apperror.ErrNotFound, "test mode %v", testMode)
		assert.Equal(t, 0, db.PurchaseCount(42, id))
		assert.Equal(t, 0, issuer.calls())

		list, err := db.ListPurchases(ctx, 42)
		require.NoError(t, err)
		assert.Empty(t, list)
	}
}

func TestPurchase_DuringApprovalWithPrice(t *testing.T) {
	c, db, issuer := setup(t, false)
	ctx := context.Background()
	id, err := db.CreateContent(ctx, models.KindPhoto, "pending", 0, 7, false)
	require.NoError(t, err)

	price := int64(50)
	var g errgroup.Group
	g.Go(func() error {
		_, err := db.ApproveContent(ctx, id, &price)
		return err
	})
	for user := int64(1); user <= 20; user++ {
		g.Go(func() error {
			res, err := c.Purchase(ctx, user, id)
			switch {
			case errors.Is(err, apperror.ErrNotFound):
				return nil
			case err != nil:
				return err
			case res.Outcome != OutcomeInvoice:
				return fmt.Errorf("user %d got outcome %v", user, res.Outcome)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	for user := int64(1); user <= 20; user++ {
		assert.Equal(t, 0, db.PurchaseCount(user, id), "user %d owns it without paying", user)
	}
	issuer.mu.Lock()
	defer issuer.mu.Unlock()
	for _, inv := range issuer.invoices {
		assert.Equal(t, int64(50), inv.Amount)
	}
}

func TestPurchase_BannedUser(t *testing.T) {
	c, db, issuer := setup(t, false)
	ctx := context.Background()
	id := addContent(t, db, 0)

	require.NoError(t, db.UpsertUser(ctx, 42, "bob", "Bob"))
	_, err := db.BanByUsername(ctx, "bob")
	require.NoError(t, err)

	_, err = c.Purchase(ctx, 42, id)
	assert.ErrorIs(t, err, apperror.ErrBanned)
	assert.Equal(t, 0, db.PurchaseCount(42, id))
	assert.Equal(t, 0, issuer.calls())
}

func TestPurchase_UpstreamFailure(t *testing.T) {
	c, db, issuer := setup(t, false)
	issuer.err = errors.New("telegram is down")
	id := addContent(t, db, 3)

	_, err := c.Purchase(context.Background(), 42, id)
	assert.ErrorIs(t, err, apperror.ErrUpstream)
	assert.Equal(t, 0, db.PurchaseCount(42, id))
}

func TestPurchase_ConcurrentFreeRequests(t *testing.T) {
	c, db, _ := setup(t, false)
	id := addContent(t, db, 0)

	var (
		mu     sync.Mutex
		wins   int
		losses int
	)
	var g errgroup.Group
	for i := 0; i < 10; i++ {
		g.Go(func() error {
			_, err := c.Purchase(context.Background(), 42, id)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, apperror.ErrAlreadyPurchased):
				losses++
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, 1, wins)
	assert.Equal(t, 9, losses)
	assert.Equal(t, 1, db.PurchaseCount(42, id))
}

func TestValidateCheckout(t *testing.T) {
	c, db, _ := setup(t, false)
	ctx := context.Background()
	id := addContent(t, db, 5)

	assert.NoError(t, c.ValidateCheckout(ctx, 42, "1"))
	assert.ErrorIs(t, c.ValidateCheckout(ctx, 42, "oops"), apperror.ErrInvalidInput)
	assert.ErrorIs(t, c.ValidateCheckout(ctx, 42, "77"), apperror.ErrNotFound)

	pending, err := db.CreateContent(ctx, models.KindPhoto, "pending", 5, 7, false)
	require.NoError(t, err)
	assert.ErrorIs(t, c.ValidateCheckout(ctx, 42, strconv.FormatInt(pending, 10)), apperror.ErrNotFound)

	_, err = db.RecordPurchase(ctx, 42, id)
	require.NoError(t, err)
	assert.ErrorIs(t, c.ValidateCheckout(ctx, 42, "1"), apperror.ErrAlreadyPurchased)
}

func TestCompletePayment(t *testing.T) {
	c, db, _ := setup(t, false)
	ctx := context.Background()
	id := addContent(t, db, 5)

	done, err := c.CompletePayment(ctx, 42, "1")
	require.NoError(t, err)
	assert.False(t, done.Duplicate)
	require.NotNil(t, done.Content)
	assert.Equal(t, id, done.Content.ID)

	again, err := c.CompletePayment(ctx, 42, "1")
	require.NoError(t, err)
	assert.True(t, again.Duplicate)
	assert.Nil(t, again.Content)
	assert.Equal(t, 1, db.PurchaseCount(42, id))

	list, err := db.ListPurchases(ctx, 42)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, id, list[0].ID)
}

func TestCompletePayment_DeletedContent(t *testing.T) {
	c, db, _ := setup(t, false)
	ctx := context.Background()
	id := addContent(t, db, 5)

	_, err := db.DeleteContent(ctx, id)
	require.NoError(t, err)

	done, err := c.CompletePayment(ctx, 42, "1")
	require.NoError(t, err)
	assert.False(t, done.Duplicate)
	assert.Nil(t, done.Content)
	assert.Equal(t, 1, db.PurchaseCount(42, id), "payment is recorded even when delivery is impossible")
}

func TestCompletePayment_BadPayload(t *testing.T) {
	c, _, _ := setup(t, false)

	_, err := c.CompletePayment(context.Background(), 42, "content-1")
	assert.ErrorIs(t, err, apperror.ErrInvalidInput)
}
