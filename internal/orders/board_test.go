package orders

import (
	"context"
	"sync"
	"testing"
	"time"

	"bakery-storefront/internal/notify"
	"bakery-storefront/internal/session"
	"bakery-storefront/internal/xpkg/logger"
	"bakery-storefront/pkg/models"

	apperr "bakery-storefront/internal/xpkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSessions struct{ ok bool }

func (f fakeSessions) Current() (session.Session, bool) {
	if !f.ok {
		return session.Session{}, false
	}
	return session.Session{UserID: "u-1", Token: "tok", ExpiresAt: time.Now().Add(time.Hour)}, true
}

type fakeOrdersAPI struct {
	mu        sync.Mutex
	orders    []models.Order
	gets      int
	cancelled []int64
	cancelErr error
	onCancel  func(id int64)
}

func (f *fakeOrdersAPI) GetUserOrders(context.Context, string) ([]models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	return append([]models.Order(nil), f.orders...), nil
}

func (f *fakeOrdersAPI) CancelOrder(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, id)
	if f.cancelErr != nil {
		return f.cancelErr
	}
	if f.onCancel != nil {
		f.onCancel(id)
	}
	return nil
}

type recordingDisplay struct {
	mu      sync.Mutex
	renders [][]View
	ticks   map[int64][]time.Duration
	expired []int64
}

func newDisplay() *recordingDisplay {
	return &recordingDisplay{ticks: make(map[int64][]time.Duration)}
}

func (d *recordingDisplay) Render(views []View) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.renders = append(d.renders, views)
}

func (d *recordingDisplay) Tick(id int64, remaining time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ticks[id] = append(d.ticks[id], remaining)
}

func (d *recordingDisplay) Expired(id int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.expired = append(d.expired, id)
}

func (d *recordingDisplay) lastRender() []View {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.renders) == 0 {
		return nil
	}
	return d.renders[len(d.renders)-1]
}

func (d *recordingDisplay) expiredIDs() []int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]int64(nil), d.expired...)
}

var boardNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func sampleOrders() []models.Order {
	return []models.Order{
		{ID: 1, Status: models.StatusDelivered, PlacedAt: boardNow.Add(-48 * time.Hour)},
		{ID: 2, Status: models.StatusPlaced, PlacedAt: boardNow.Add(-10 * time.Minute)},
		{ID: 3, Status: models.StatusPlaced, PlacedAt: boardNow.Add(-16 * time.Minute)},
		{ID: 4, Status: models.StatusPlaced, PlacedAt: boardNow.Add(-2 * time.Minute)},
	}
}

func newTestBoard(api *fakeOrdersAPI) (*Board, *fakeClock, *recordingDisplay, *notify.Recorder) {
	clock := newFakeClock(boardNow)
	display := newDisplay()
	rec := &notify.Recorder{}
	b := NewBoard(api, fakeSessions{ok: true}, clock, display, rec, logger.Discard())
	return b, clock, display, rec
}

func TestRefresh_SortsNewestFirstAndStartsCountdowns(t *testing.T) {
	api := &fakeOrdersAPI{orders: sampleOrders()}
	b, _, display, _ := newTestBoard(api)
	defer b.Close()

	require.NoError(t, b.Refresh(context.Background()))

	views := display.lastRender()
	require.Len(t, views, 4)
	var ids []int64
	for _, v := range views {
		ids = append(ids, v.Order.ID)
	}
	assert.Equal(t, []int64{4, 2, 3, 1}, ids)
	assert.Equal(t, PlacedCancellable, views[0].State)
	assert.Equal(t, PlacedCancellable, views[1].State)
	assert.Equal(t, 5*time.Minute, views[1].Remaining)
	assert.Equal(t, PlacedExpired, views[2].State)
	assert.Equal(t, Delivered, views[3].State)
	assert.Equal(t, 2, b.Active())

	// a second refresh replaces the countdowns instead of adding to them
	require.NoError(t, b.Refresh(context.Background()))
	assert.Equal(t, 2, b.Active())

	b.Close()
	assert.Zero(t, b.Active())
}

func TestRefresh_RequiresSession(t *testing.T) {
	rec := &notify.Recorder{}
	b := NewBoard(&fakeOrdersAPI{}, fakeSessions{}, newFakeClock(boardNow), nil, rec, logger.Discard())

	assert.ErrorIs(t, b.Refresh(context.Background()), apperr.ErrAuthRequired)
	n, ok := rec.Last()
	require.True(t, ok)
	assert.Equal(t, "Please log in to continue.", n.Message)
}

func TestCountdownExpiryUpdatesBoard(t *testing.T) {
	api := &fakeOrdersAPI{orders: []models.Order{
		{ID: 7, Status: models.StatusPlaced, PlacedAt: boardNow.Add(-CancellationWindow + 2*time.Second)},
	}}
	b, clock, display, _ := newTestBoard(api)
	defer b.Close()
	require.NoError(t, b.Refresh(context.Background()))

	clock.Advance(time.Second)
	clock.Advance(time.Second)

	require.Eventually(t, func() bool {
		return len(display.expiredIDs()) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []int64{7}, display.expiredIDs())
	assert.Zero(t, b.Active())
	assert.Equal(t, PlacedExpired, b.Orders()[0].State)

	err := b.RequestCancel(context.Background(), 7)
	assert.ErrorIs(t, err, apperr.ErrCancellationNotAllowed)
	assert.Empty(t, api.cancelled)
}

func TestRequestCancel_RefusedWithoutRequest(t *testing.T) {
	api := &fakeOrdersAPI{orders: sampleOrders()}
	b, _, _, rec := newTestBoard(api)
	defer b.Close()
	require.NoError(t, b.Refresh(context.Background()))

	for _, id := range []int64{1, 3} {
		err := b.RequestCancel(context.Background(), id)
		assert.ErrorIs(t, err, apperr.ErrCancellationNotAllowed)
	}
	assert.ErrorIs(t, b.RequestCancel(context.Background(), 99), apperr.ErrNotFound)
	assert.Empty(t, api.cancelled)

	n, ok := rec.Last()
	require.True(t, ok)
	assert.Equal(t, "This order can no longer be cancelled.", n.Message)
}

func TestRequestCancel_SuccessRefetches(t *testing.T) {
	api := &fakeOrdersAPI{orders: sampleOrders()}
	api.onCancel = func(id int64) {
		for i := range api.orders {
			if api.orders[i].ID == id {
				api.orders[i].Status = models.StatusCancelled
			}
		}
	}
	b, _, display, _ := newTestBoard(api)
	defer b.Close()
	require.NoError(t, b.Refresh(context.Background()))

	require.NoError(t, b.RequestCancel(context.Background(), 2))
	assert.Equal(t, []int64{2}, api.cancelled)
	assert.Equal(t, 2, api.gets)

	views := display.lastRender()
	require.Len(t, views, 4)
	assert.Equal(t, int64(2), views[1].Order.ID)
	assert.Equal(t, Cancelled, views[1].State)
	assert.Equal(t, 1, b.Active())
}

func TestRequestCancel_FailureKeepsCancellable(t *testing.T) {
	api := &fakeOrdersAPI{orders: sampleOrders(), cancelErr: apperr.ErrNetwork}
	b, _, _, rec := newTestBoard(api)
	defer b.Close()
	require.NoError(t, b.Refresh(context.Background()))

	err := b.RequestCancel(context.Background(), 2)
	assert.ErrorIs(t, err, apperr.ErrNetwork)
	assert.Equal(t, 1, api.gets)

	n, ok := rec.Last()
	require.True(t, ok)
	assert.Equal(t, notify.LevelError, n.Level)
	assert.Equal(t, "Failed to cancel. Try again.", n.Message)

	for _, v := range b.Orders() {
		if v.Order.ID == 2 {
			assert.Equal(t, PlacedCancellable, v.State)
		}
	}
	assert.Equal(t, 2, b.Active())
}
