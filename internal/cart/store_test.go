package cart

import (
	"context"
	"sync"
	"testing"
	"time"

	"bakery-storefront/internal/backend"
	"bakery-storefront/internal/localstate"
	"bakery-storefront/internal/notify"
	"bakery-storefront/internal/session"
	"bakery-storefront/internal/xpkg/logger"
	"bakery-storefront/pkg/models"

	apperr "bakery-storefront/internal/xpkg/errors"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSessions struct {
	s  session.Session
	ok bool
}

func (f *fakeSessions) Current() (session.Session, bool) { return f.s, f.ok }

func loggedIn(userID string) *fakeSessions {
	return &fakeSessions{
		s:  session.Session{UserID: userID, Token: "tok", ExpiresAt: time.Now().Add(time.Hour)},
		ok: true,
	}
}

type fakeAPI struct {
	mu      sync.Mutex
	calls   []string
	items   []backend.CartItemRequest
	merged  [][]backend.CartItemRequest
	server  []models.CartLine
	echo    bool
	failErr error
}

func (f *fakeAPI) record(call string, item *backend.CartItemRequest) (backend.CartResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	if item != nil {
		f.items = append(f.items, *item)
	}
	if f.failErr != nil {
		return backend.CartResult{}, f.failErr
	}
	if f.echo {
		return backend.CartResult{Lines: cloneLines(f.server), HasLines: true}, nil
	}
	return backend.CartResult{}, nil
}

func (f *fakeAPI) AddCartItem(_ context.Context, item backend.CartItemRequest) (backend.CartResult, error) {
	return f.record("add", &item)
}

func (f *fakeAPI) UpdateCartItem(_ context.Context, item backend.CartItemRequest) (backend.CartResult, error) {
	return f.record("update", &item)
}

func (f *fakeAPI) RemoveCartItem(_ context.Context, item backend.CartItemRequest) (backend.CartResult, error) {
	return f.record("remove", &item)
}

func (f *fakeAPI) ClearCart(context.Context, string) error {
	_, err := f.record("clear", nil)
	return err
}

func (f *fakeAPI) MergeCartItems(_ context.Context, items []backend.CartItemRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "merge")
	if f.failErr != nil {
		return f.failErr
	}
	f.merged = append(f.merged, items)
	return nil
}

func (f *fakeAPI) GetCartItems(context.Context, string) ([]models.CartLine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "get")
	if f.failErr != nil {
		return nil, f.failErr
	}
	return cloneLines(f.server), nil
}

func (f *fakeAPI) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

var (
	cakeKey  = models.CartLineKey{ItemID: 11, ItemType: models.ItemProduct, Size: "1kg"}
	snackKey = models.CartLineKey{ItemID: 4, ItemType: models.ItemSnack, Size: "regular"}
)

func price(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestAddOrIncrement_SameKeyIncrements(t *testing.T) {
	ctx := context.Background()
	s := NewStore(localstate.NewMemory(), nil, nil, &notify.Recorder{}, logger.Discard())

	require.NoError(t, s.AddOrIncrement(ctx, cakeKey, price("500"), []models.AddonQty{{ID: 1, Quantity: 1}}, 1))
	require.NoError(t, s.AddOrIncrement(ctx, cakeKey, price("550"), []models.AddonQty{{ID: 1, Quantity: 2}, {ID: 3, Quantity: 1}}, 2))

	lines := s.List()
	require.Len(t, lines, 1)
	assert.Equal(t, 3, lines[0].Quantity)
	assert.True(t, price("500").Equal(lines[0].UnitPrice), "unit price is snapshotted at first add")
	assert.Equal(t, []models.AddonQty{{ID: 1, Quantity: 3}, {ID: 3, Quantity: 1}}, lines[0].Addons)
	assert.Equal(t, 3, s.Count())
}

func TestAddOrIncrement_DistinctKeys(t *testing.T) {
	ctx := context.Background()
	s := NewStore(localstate.NewMemory(), nil, nil, nil, logger.Discard())

	require.NoError(t, s.AddOrIncrement(ctx, cakeKey, price("500"), nil, 1))
	require.NoError(t, s.AddOrIncrement(ctx, snackKey, price("40"), nil, 1))
	other := cakeKey
	other.Size = "2kg"
	require.NoError(t, s.AddOrIncrement(ctx, other, price("900"), nil, 1))

	assert.Len(t, s.List(), 3)
}

func TestAddOrIncrement_Validation(t *testing.T) {
	ctx := context.Background()
	s := NewStore(localstate.NewMemory(), nil, nil, nil, logger.Discard())

	assert.ErrorIs(t, s.AddOrIncrement(ctx, cakeKey, price("1"), nil, 0), apperr.ErrValidation)
	assert.ErrorIs(t, s.AddOrIncrement(ctx, cakeKey, price("-1"), nil, 1), apperr.ErrValidation)
	assert.ErrorIs(t, s.AddOrIncrement(ctx, models.CartLineKey{ItemID: 1, ItemType: "CAKE", Size: "1kg"}, price("1"), nil, 1), apperr.ErrValidation)
	assert.ErrorIs(t, s.AddOrIncrement(ctx, models.CartLineKey{ItemID: 1, ItemType: models.ItemProduct}, price("1"), nil, 1), apperr.ErrValidation)
	assert.ErrorIs(t, s.AddOrIncrement(ctx, cakeKey, price("1"), []models.AddonQty{{ID: 0, Quantity: 1}}, 1), apperr.ErrValidation)
	assert.Empty(t, s.List())
}

func TestSetQuantityZeroIsRemove(t *testing.T) {
	ctx := context.Background()
	s := NewStore(localstate.NewMemory(), nil, nil, nil, logger.Discard())
	require.NoError(t, s.AddOrIncrement(ctx, cakeKey, price("500"), nil, 2))
	require.NoError(t, s.AddOrIncrement(ctx, snackKey, price("40"), nil, 1))

	require.NoError(t, s.SetQuantity(ctx, cakeKey, 5))
	assert.Equal(t, 5, s.List()[0].Quantity)

	require.NoError(t, s.SetQuantity(ctx, cakeKey, 0))
	lines := s.List()
	require.Len(t, lines, 1)
	assert.Equal(t, snackKey, lines[0].Key)

	assert.ErrorIs(t, s.SetQuantity(ctx, cakeKey, 1), apperr.ErrNotFound)
	assert.ErrorIs(t, s.SetQuantity(ctx, snackKey, -2), apperr.ErrValidation)
	assert.ErrorIs(t, s.Remove(ctx, cakeKey), apperr.ErrNotFound)
}

func TestAnonymousWritesThrough(t *testing.T) {
	ctx := context.Background()
	local := localstate.NewMemory()
	s := NewStore(local, nil, nil, nil, logger.Discard())
	require.NoError(t, s.AddOrIncrement(ctx, cakeKey, price("500"), []models.AddonQty{{ID: 2, Quantity: 1}}, 2))

	reloaded := NewStore(local, nil, nil, nil, logger.Discard())
	require.NoError(t, reloaded.Load(ctx))
	assert.Equal(t, s.List(), reloaded.List())

	require.NoError(t, s.Clear(ctx))
	require.NoError(t, reloaded.Load(ctx))
	assert.Empty(t, reloaded.List())
}

func TestLoad_SkipsMalformedEntries(t *testing.T) {
	ctx := context.Background()
	local := localstate.NewMemory()
	raw := `[{"itemId":11,"itemType":"PRODUCT","size":"1kg","quantity":1,"unitPrice":"500"},
	         {"itemId":12,"itemType":"PRODUCT","quantity":1,"unitPrice":"300"},
	         {"itemType":"SNACK","size":"regular","quantity":2,"unitPrice":"40"}]`
	require.NoError(t, local.Set(ctx, localstate.KeyCart, []byte(raw)))

	s := NewStore(local, nil, nil, nil, logger.Discard())
	require.NoError(t, s.Load(ctx))
	lines := s.List()
	require.Len(t, lines, 1)
	assert.Equal(t, cakeKey, lines[0].Key)
}

func TestAuthenticated_SendsAndUsesServerEcho(t *testing.T) {
	ctx := context.Background()
	api := &fakeAPI{echo: true}
	api.server = []models.CartLine{{Key: cakeKey, Quantity: 4, UnitPrice: price("480")}}
	local := localstate.NewMemory()
	s := NewStore(local, api, loggedIn("u-1"), nil, logger.Discard())

	require.NoError(t, s.AddOrIncrement(ctx, cakeKey, price("500"), []models.AddonQty{{ID: 1, Quantity: 1}}, 1))

	assert.Equal(t, []string{"add"}, api.Calls())
	require.Len(t, api.items, 1)
	sent := api.items[0]
	assert.Equal(t, "u-1", sent.UserID)
	require.NotNil(t, sent.ProductID)
	assert.Equal(t, int64(11), *sent.ProductID)
	assert.Nil(t, sent.SnackID)
	assert.Equal(t, []models.AddonQty{{ID: 1, Quantity: 1}}, sent.AddonIDs)

	// server echo wins over the locally computed line
	lines := s.List()
	require.Len(t, lines, 1)
	assert.Equal(t, 4, lines[0].Quantity)

	// logged-in mutations never touch the anonymous cart key
	_, found, err := local.Get(ctx, localstate.KeyCart)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestAuthenticated_SnackUsesSnackID(t *testing.T) {
	api := &fakeAPI{}
	s := NewStore(localstate.NewMemory(), api, loggedIn("u-1"), nil, logger.Discard())

	require.NoError(t, s.AddOrIncrement(context.Background(), snackKey, price("40"), nil, 2))
	require.Len(t, api.items, 1)
	assert.Nil(t, api.items[0].ProductID)
	require.NotNil(t, api.items[0].SnackID)
	assert.Equal(t, int64(4), *api.items[0].SnackID)
	assert.Equal(t, 2, s.List()[0].Quantity, "without an echo the computed state is committed")
}

func TestAuthenticated_FailureLeavesStateAndNotifies(t *testing.T) {
	ctx := context.Background()
	api := &fakeAPI{}
	rec := &notify.Recorder{}
	s := NewStore(localstate.NewMemory(), api, loggedIn("u-1"), rec, logger.Discard())
	require.NoError(t, s.AddOrIncrement(ctx, cakeKey, price("500"), nil, 1))
	before := s.List()

	api.failErr = apperr.ErrNetwork
	err := s.SetQuantity(ctx, cakeKey, 3)
	assert.ErrorIs(t, err, apperr.ErrNetwork)
	assert.Equal(t, before, s.List())

	n, ok := rec.Last()
	require.True(t, ok)
	assert.Equal(t, notify.LevelError, n.Level)
	assert.Equal(t, "Connection problem. Try again.", n.Message)

	// no automatic retry: only the next user action reaches the backend again
	assert.Equal(t, []string{"add", "update"}, api.Calls())
	api.failErr = nil
	require.NoError(t, s.SetQuantity(ctx, cakeKey, 3))
	assert.Equal(t, []string{"add", "update", "update"}, api.Calls())
	assert.Equal(t, 3, s.List()[0].Quantity)
}

func TestAuthenticated_RemoveAndClear(t *testing.T) {
	ctx := context.Background()
	api := &fakeAPI{}
	s := NewStore(localstate.NewMemory(), api, loggedIn("u-1"), nil, logger.Discard())
	require.NoError(t, s.AddOrIncrement(ctx, cakeKey, price("500"), nil, 1))
	require.NoError(t, s.AddOrIncrement(ctx, snackKey, price("40"), nil, 1))

	require.NoError(t, s.SetQuantity(ctx, snackKey, 0))
	require.NoError(t, s.Clear(ctx))
	assert.Equal(t, []string{"add", "add", "remove", "clear"}, api.Calls())
	assert.Empty(t, s.List())
}

func TestRefresh(t *testing.T) {
	api := &fakeAPI{server: []models.CartLine{{Key: snackKey, Quantity: 2, UnitPrice: price("40")}}}
	s := NewStore(localstate.NewMemory(), api, loggedIn("u-1"), nil, logger.Discard())

	require.NoError(t, s.Load(context.Background()))
	assert.Equal(t, api.server, s.List())

	api.failErr = apperr.ErrNetwork
	assert.ErrorIs(t, s.Refresh(context.Background()), apperr.ErrNetwork)
	assert.Equal(t, api.server, s.List())
}

func TestStepper_CoalescesRapidChanges(t *testing.T) {
	ctx := context.Background()
	api := &fakeAPI{}
	s := NewStore(localstate.NewMemory(), api, loggedIn("u-1"), nil, logger.Discard())
	require.NoError(t, s.AddOrIncrement(ctx, cakeKey, price("500"), nil, 1))

	st := NewStepper(ctx, s, 30*time.Millisecond, nil)
	defer st.Stop()
	st.Set(cakeKey, 2)
	st.Set(cakeKey, 3)
	st.Set(cakeKey, 4)

	require.Eventually(t, func() bool {
		return len(api.Calls()) == 2
	}, time.Second, 5*time.Millisecond)
	time.Sleep(60 * time.Millisecond)

	assert.Equal(t, []string{"add", "update"}, api.Calls())
	assert.Equal(t, 4, s.List()[0].Quantity)
}

func TestStepper_Flush(t *testing.T) {
	ctx := context.Background()
	s := NewStore(localstate.NewMemory(), nil, nil, nil, logger.Discard())
	require.NoError(t, s.AddOrIncrement(ctx, cakeKey, price("500"), nil, 1))

	var gotErr error
	st := NewStepper(ctx, s, time.Hour, func(_ models.CartLineKey, err error) { gotErr = err })
	st.Set(cakeKey, 6)
	st.Set(snackKey, 2)
	st.Flush()

	assert.Equal(t, 6, s.List()[0].Quantity)
	assert.ErrorIs(t, gotErr, apperr.ErrNotFound)
}

// gatedAPI holds every UpdateCartItem call until release is closed.
type gatedAPI struct {
	*fakeAPI
	release chan struct{}

	qmu  sync.Mutex
	sent []int
}

func (g *gatedAPI) UpdateCartItem(ctx context.Context, item backend.CartItemRequest) (backend.CartResult, error) {
	g.qmu.Lock()
	g.sent = append(g.sent, item.Quantity)
	g.qmu.Unlock()
	<-g.release
	return g.fakeAPI.UpdateCartItem(ctx, item)
}

func (g *gatedAPI) quantities() []int {
	g.qmu.Lock()
	defer g.qmu.Unlock()
	return append([]int(nil), g.sent...)
}

func TestStepper_SetDuringFiredTimer(t *testing.T) {
	ctx := context.Background()
	api := &gatedAPI{fakeAPI: &fakeAPI{}, release: make(chan struct{})}
	s := NewStore(localstate.NewMemory(), api, loggedIn("u-1"), nil, logger.Discard())
	require.NoError(t, s.AddOrIncrement(ctx, cakeKey, price("500"), nil, 1))

	st := NewStepper(ctx, s, 20*time.Millisecond, nil)
	st.Set(cakeKey, 2)

	// the first timer fires while the lock is held and waits for it
	st.mu.Lock()
	time.Sleep(60 * time.Millisecond)
	st.setLocked(cakeKey, 5)
	st.mu.Unlock()

	done := make(chan struct{})
	go func() {
		st.Flush()
		close(done)
	}()
	assert.Never(t, func() bool {
		select {
		case <-done:
			return true
		default:
			return false
		}
	}, 30*time.Millisecond, 5*time.Millisecond, "Flush returned before the update was sent")

	close(api.release)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Flush did not return")
	}

	assert.Equal(t, []int{5}, api.quantities())
	assert.Equal(t, 5, s.List()[0].Quantity)
}
