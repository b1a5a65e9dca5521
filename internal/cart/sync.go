package cart

import (
	"context"
	"fmt"
	"sync"

	"bakery-storefront/internal/backend"
	"bakery-storefront/internal/localstate"
	"bakery-storefront/internal/notify"
	"bakery-storefront/internal/session"
	"bakery-storefront/internal/xpkg/logger"
)

// Synchronizer moves the anonymous cart into the server cart once per login.
//
// The client only promises to send the merge once per session; deduplicating a
// merge that arrives twice (e.g. a retried request) is the backend's job.
type Synchronizer struct {
	local    localstate.IStore
	api      ICartAPI
	store    *Store
	notifier notify.Notifier
	mylog    logger.Logger

	mu     sync.Mutex
	merged map[string]bool
}

func NewSynchronizer(
	local localstate.IStore,
	api ICartAPI,
	store *Store,
	notifier notify.Notifier,
	mylog logger.Logger,
) *Synchronizer {
	return &Synchronizer{
		local:    local,
		api:      api,
		store:    store,
		notifier: notifier,
		mylog:    mylog,
		merged:   make(map[string]bool),
	}
}

// ReadLocal returns the anonymous cart exactly as persisted, malformed entries included.
func (sy *Synchronizer) ReadLocal(ctx context.Context) ([]StoredLine, error) {
	return readLocal(ctx, sy.local)
}

// MergeLocalIntoServer sends every valid local line to the merge endpoint.
// Malformed lines are dropped with a warning. An empty payload succeeds without a
// request. On success the local cart is deleted; on failure it is kept for a retry.
func (sy *Synchronizer) MergeLocalIntoServer(ctx context.Context, userID string, lines []StoredLine) error {
	mylog := sy.mylog.Action("cart_merge").With("user_id", userID)

	payload := make([]backend.CartItemRequest, 0, len(lines))
	for i, st := range lines {
		line, err := st.Line()
		if err != nil {
			mylog.Warn("Dropping malformed cart entry from merge", "index", i, "reason", err.Error())
			continue
		}
		payload = append(payload, backend.ToWire(userID, line))
	}

	if len(payload) == 0 {
		mylog.Info("Nothing to merge")
		return nil
	}

	if err := sy.api.MergeCartItems(ctx, payload); err != nil {
		mylog.Error("Failed to merge local cart, keeping it for retry", err)
		notify.Failure(sy.notifier, "Couldn't sync your cart. We'll keep it on this device.", err)
		return fmt.Errorf("merge cart: %w", err)
	}

	if err := sy.local.Delete(ctx, localstate.KeyCart); err != nil {
		// The server already has the items; a leftover local copy is re-sent on the next login.
		mylog.Error("Merged but failed to clear local cart", err)
		return fmt.Errorf("clear local cart: %w", err)
	}

	mylog.Info("Local cart merged into server cart", "items", len(payload))
	return nil
}

// OnLogin is a session.LoginHook. It merges at most once per session and then
// reloads the cart store from the server.
func (sy *Synchronizer) OnLogin(ctx context.Context, s session.Session) error {
	sy.mu.Lock()
	defer sy.mu.Unlock()

	if sy.merged[s.ID()] {
		return nil
	}

	lines, err := sy.ReadLocal(ctx)
	if err != nil {
		return err
	}
	if len(lines) > 0 {
		if err := sy.MergeLocalIntoServer(ctx, s.UserID, lines); err != nil {
			return err
		}
	}
	sy.merged[s.ID()] = true

	if sy.store != nil {
		if err := sy.store.Refresh(ctx); err != nil {
			return err
		}
	}
	return nil
}
