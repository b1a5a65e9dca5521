package wishlist

import (
	"context"
	"fmt"

	"bakery-storefront/internal/backend"
	"bakery-storefront/internal/localstate"
	"bakery-storefront/internal/notify"
	"bakery-storefront/internal/session"
)

// Sync pushes the anonymous wishlist to the server for userID. The local keys are
// cleared once the call succeeds, even when the backend reports items it could not
// merge. A failed call keeps them.
func (s *Store) Sync(ctx context.Context, userID string) error {
	mylog := s.mylog.Action("wishlist_sync").With("user_id", userID)

	entries, err := readLocal(ctx, s.local, s.mylog)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		mylog.Info("Nothing to sync")
		return nil
	}

	req := backend.WishlistSyncRequest{UserID: userID, Items: make([]backend.WishlistItemRequest, 0, len(entries))}
	for _, e := range entries {
		req.Items = append(req.Items, backend.WishlistItemRequest{ProductID: e.ProductID, Size: e.Size})
	}

	res, err := s.api.SyncWishlist(ctx, req)
	if err != nil {
		mylog.Error("Failed to sync wishlist, keeping it for retry", err)
		notify.Failure(s.notifier, "Couldn't sync your wishlist. We'll keep it on this device.", err)
		return fmt.Errorf("sync wishlist: %w", err)
	}
	for _, f := range res.Failed {
		mylog.Warn("Backend did not keep wishlist item", "product_id", f.ProductID, "size", f.Size)
	}

	if err := s.local.Delete(ctx, localstate.KeyWishlist, localstate.KeyWishlistDetails); err != nil {
		mylog.Error("Synced but failed to clear local wishlist", err)
		return fmt.Errorf("clear local wishlist: %w", err)
	}
	mylog.Info("Local wishlist synced", "items", len(req.Items), "failed", len(res.Failed))
	return nil
}

// OnLogin is a session.LoginHook: sync once per session, then reload from the server.
func (s *Store) OnLogin(ctx context.Context, sess session.Session) error {
	s.mu.Lock()
	done := s.synced[sess.ID()]
	s.mu.Unlock()
	if done {
		return nil
	}

	if err := s.Sync(ctx, sess.UserID); err != nil {
		return err
	}

	s.mu.Lock()
	s.synced[sess.ID()] = true
	s.mu.Unlock()
	return s.Refresh(ctx)
}
