package orders

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"bakery-storefront/internal/notify"
	"bakery-storefront/internal/session"
	"bakery-storefront/internal/xpkg/logger"
	"bakery-storefront/pkg/models"

	apperr "bakery-storefront/internal/xpkg/errors"
)

type IOrdersAPI interface {
	GetUserOrders(ctx context.Context, userID string) ([]models.Order, error)
	CancelOrder(ctx context.Context, orderID int64) error
}

type ISessions interface {
	Current() (session.Session, bool)
}

// View is one order as the board shows it.
type View struct {
	Order     models.Order
	State     State
	Remaining time.Duration
}

// Display renders the board. Tick and Expired are called from countdown
// goroutines and may run concurrently for different orders.
type Display interface {
	Render(views []View)
	Tick(orderID int64, remaining time.Duration)
	Expired(orderID int64)
}

// Board owns the fetched order list and one countdown per cancellable order.
type Board struct {
	api      IOrdersAPI
	sessions ISessions
	clock    Clock
	display  Display
	notifier notify.Notifier
	mylog    logger.Logger

	refreshMu  sync.Mutex
	mu         sync.Mutex
	orders     []models.Order
	countdowns map[int64]*Countdown
	// gen changes whenever the countdowns are replaced; ticks from older ones are dropped.
	gen int
}

func NewBoard(
	api IOrdersAPI,
	sessions ISessions,
	clock Clock,
	display Display,
	notifier notify.Notifier,
	mylog logger.Logger,
) *Board {
	if clock == nil {
		clock = RealClock{}
	}
	return &Board{
		api:        api,
		sessions:   sessions,
		clock:      clock,
		display:    display,
		notifier:   notifier,
		mylog:      mylog,
		countdowns: make(map[int64]*Countdown),
	}
}

// Refresh refetches the shopper's orders, newest first, and restarts every
// countdown. On failure the previous list and countdowns stay in place.
func (b *Board) Refresh(ctx context.Context) error {
	mylog := b.mylog.Action("orders_refresh")

	sess, ok := b.sessions.Current()
	if !ok {
		notify.Failure(b.notifier, "", apperr.ErrAuthRequired)
		return fmt.Errorf("list orders: %w", apperr.ErrAuthRequired)
	}

	b.refreshMu.Lock()
	defer b.refreshMu.Unlock()

	fetched, err := b.api.GetUserOrders(ctx, sess.UserID)
	if err != nil {
		mylog.Error("Failed to fetch orders", err, "user_id", sess.UserID)
		notify.Failure(b.notifier, "Couldn't load your orders. Try again.", err)
		return fmt.Errorf("list orders: %w", err)
	}
	sortNewestFirst(fetched)

	now := b.clock.Now()
	b.mu.Lock()
	b.stopAllLocked()
	b.orders = fetched
	views := viewsOf(fetched, now)
	gen := b.gen
	b.mu.Unlock()

	if b.display != nil {
		b.display.Render(views)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if gen != b.gen {
		// closed while rendering
		return nil
	}
	emit := func(t Tick) { b.onTick(gen, t) }
	for _, v := range views {
		if v.State.Cancellable() {
			b.countdowns[v.Order.ID] = StartCountdown(b.clock, v.Order.ID, Deadline(v.Order), emit)
		}
	}
	mylog.Debug("Orders refreshed", "orders", len(fetched), "countdowns", len(b.countdowns))
	return nil
}

func (b *Board) onTick(gen int, t Tick) {
	b.mu.Lock()
	if gen != b.gen {
		b.mu.Unlock()
		return
	}
	if t.Expired {
		delete(b.countdowns, t.OrderID)
	}
	b.mu.Unlock()

	if b.display == nil {
		return
	}
	if t.Expired {
		b.display.Expired(t.OrderID)
		return
	}
	b.display.Tick(t.OrderID, time.Duration(t.Seconds)*time.Second)
}

// RequestCancel cancels a cancellable order and refetches the list. An order
// outside its window is refused without a request.
func (b *Board) RequestCancel(ctx context.Context, orderID int64) error {
	mylog := b.mylog.Action("orders_cancel").With("order_id", orderID)

	b.mu.Lock()
	order, ok := b.find(orderID)
	b.mu.Unlock()
	if !ok {
		return fmt.Errorf("order %d: %w", orderID, apperr.ErrNotFound)
	}

	if state := Derive(order, b.clock.Now()); !state.Cancellable() {
		mylog.Info("Cancellation refused", "state", string(state))
		notify.Failure(b.notifier, "", apperr.ErrCancellationNotAllowed)
		return fmt.Errorf("order %d is %s: %w", orderID, state, apperr.ErrCancellationNotAllowed)
	}

	if err := b.api.CancelOrder(ctx, orderID); err != nil {
		mylog.Error("Cancel request failed", err)
		notify.Failure(b.notifier, "Failed to cancel. Try again.", err)
		return fmt.Errorf("cancel order %d: %w", orderID, err)
	}

	mylog.Info("Order cancelled")
	notify.Info(b.notifier, "Order cancelled.")
	return b.Refresh(ctx)
}

// Orders returns the current list with states derived at the current time.
func (b *Board) Orders() []View {
	b.mu.Lock()
	defer b.mu.Unlock()
	return viewsOf(b.orders, b.clock.Now())
}

// Active is the number of running countdowns.
func (b *Board) Active() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.countdowns)
}

// Close stops every countdown.
func (b *Board) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stopAllLocked()
}

func (b *Board) stopAllLocked() {
	b.gen++
	for id, c := range b.countdowns {
		c.Stop()
		delete(b.countdowns, id)
	}
}

func (b *Board) find(orderID int64) (models.Order, bool) {
	for _, o := range b.orders {
		if o.ID == orderID {
			return o, true
		}
	}
	return models.Order{}, false
}

func viewsOf(orders []models.Order, now time.Time) []View {
	views := make([]View, 0, len(orders))
	for _, o := range orders {
		views = append(views, View{Order: o, State: Derive(o, now), Remaining: Remaining(o, now)})
	}
	return views
}

// sortNewestFirst orders by placement time, most recent first; ties put the higher id first.
func sortNewestFirst(orders []models.Order) {
	sort.SliceStable(orders, func(i, j int) bool {
		if orders[i].PlacedAt.Equal(orders[j].PlacedAt) {
			return orders[i].ID > orders[j].ID
		}
		return orders[i].PlacedAt.After(orders[j].PlacedAt)
	})
}
