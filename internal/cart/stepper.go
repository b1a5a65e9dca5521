package cart

import (
	"context"
	"sync"
	"time"

	"bakery-storefront/pkg/models"
)

// Stepper coalesces rapid quantity changes on the same line into one SetQuantity
// call issued after wait has passed without a further change.
type Stepper struct {
	ctx   context.Context
	store *Store
	wait  time.Duration
	onErr func(models.CartLineKey, error)

	mu      sync.Mutex
	pending map[models.CartLineKey]int
	timers  map[models.CartLineKey]stepTimer
	nextID  uint64
	wg      sync.WaitGroup
}

// stepTimer is the quiet-period timer of one key. A timer that fires after Set
// replaced it finds a different id and does nothing.
type stepTimer struct {
	t  *time.Timer
	id uint64
}

func NewStepper(ctx context.Context, store *Store, wait time.Duration, onErr func(models.CartLineKey, error)) *Stepper {
	return &Stepper{
		ctx:     ctx,
		store:   store,
		wait:    wait,
		onErr:   onErr,
		pending: make(map[models.CartLineKey]int),
		timers:  make(map[models.CartLineKey]stepTimer),
	}
}

// Set records the latest wanted quantity for key and restarts its quiet period.
func (st *Stepper) Set(key models.CartLineKey, quantity int) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.setLocked(key, quantity)
}

func (st *Stepper) setLocked(key models.CartLineKey, quantity int) {
	st.pending[key] = quantity
	if prev, ok := st.timers[key]; ok {
		if prev.t.Stop() {
			st.wg.Done()
		}
	}
	st.nextID++
	id := st.nextID
	st.wg.Add(1)
	st.timers[key] = stepTimer{
		id: id,
		t: time.AfterFunc(st.wait, func() {
			defer st.wg.Done()
			st.fire(key, id)
		}),
	}
}

func (st *Stepper) fire(key models.CartLineKey, id uint64) {
	st.mu.Lock()
	if cur, ok := st.timers[key]; !ok || cur.id != id {
		st.mu.Unlock()
		return
	}
	quantity, ok := st.pending[key]
	delete(st.pending, key)
	delete(st.timers, key)
	st.mu.Unlock()
	if !ok {
		return
	}

	if err := st.store.SetQuantity(st.ctx, key, quantity); err != nil && st.onErr != nil {
		st.onErr(key, err)
	}
}

// Flush sends every pending change now and waits for in-flight ones.
func (st *Stepper) Flush() {
	st.mu.Lock()
	due := make(map[models.CartLineKey]uint64, len(st.timers))
	for key, cur := range st.timers {
		if cur.t.Stop() {
			st.wg.Done()
			due[key] = cur.id
		}
	}
	st.mu.Unlock()

	for key, id := range due {
		st.fire(key, id)
	}
	st.wg.Wait()
}

// Stop drops pending changes and waits for in-flight ones.
func (st *Stepper) Stop() {
	st.mu.Lock()
	for key, cur := range st.timers {
		if cur.t.Stop() {
			st.wg.Done()
		}
		delete(st.timers, key)
		delete(st.pending, key)
	}
	st.mu.Unlock()
	st.wg.Wait()
}
