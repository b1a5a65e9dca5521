// Package wishlist keeps the shopper's saved products. It mirrors the cart's
// ownership rules with a simpler shape: one entry per product id, no quantities.
package wishlist

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"bakery-storefront/internal/backend"
	"bakery-storefront/internal/localstate"
	"bakery-storefront/internal/notify"
	"bakery-storefront/internal/session"
	"bakery-storefront/internal/xpkg/logger"
	"bakery-storefront/pkg/models"

	apperr "bakery-storefront/internal/xpkg/errors"
)

type IWishlistAPI interface {
	AddWishlistItem(ctx context.Context, item backend.WishlistItemRequest) error
	RemoveWishlistItem(ctx context.Context, item backend.WishlistItemRequest) error
	ClearWishlist(ctx context.Context, userID string) error
	SyncWishlist(ctx context.Context, req backend.WishlistSyncRequest) (backend.WishlistSyncResult, error)
	GetWishlistItems(ctx context.Context, userID string) ([]models.WishlistEntry, error)
}

type ISessions interface {
	Current() (session.Session, bool)
}

type Store struct {
	local    localstate.IStore
	api      IWishlistAPI
	sessions ISessions
	notifier notify.Notifier
	mylog    logger.Logger

	mu      sync.Mutex
	entries []models.WishlistEntry
	synced  map[string]bool
}

func NewStore(
	local localstate.IStore,
	api IWishlistAPI,
	sessions ISessions,
	notifier notify.Notifier,
	mylog logger.Logger,
) *Store {
	return &Store{
		local:    local,
		api:      api,
		sessions: sessions,
		notifier: notifier,
		mylog:    mylog,
		synced:   make(map[string]bool),
	}
}

func (s *Store) session() (session.Session, bool) {
	if s.sessions == nil || s.api == nil {
		return session.Session{}, false
	}
	return s.sessions.Current()
}

func (s *Store) Load(ctx context.Context) error {
	if _, ok := s.session(); ok {
		return s.Refresh(ctx)
	}
	entries, err := readLocal(ctx, s.local, s.mylog)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.entries = entries
	s.mu.Unlock()
	return nil
}

// Refresh replaces the cached entries with the server wishlist.
func (s *Store) Refresh(ctx context.Context) error {
	sess, ok := s.session()
	if !ok {
		return s.Load(ctx)
	}
	entries, err := s.api.GetWishlistItems(ctx, sess.UserID)
	if err != nil {
		s.mylog.Action("wishlist_refresh").Error("Failed to fetch server wishlist", err)
		return fmt.Errorf("refresh wishlist: %w", err)
	}
	s.mu.Lock()
	s.entries = dedupe(entries)
	s.mu.Unlock()
	return nil
}

// Toggle removes productID when present and adds snapshot otherwise.
// It reports whether the product is now in the wishlist.
func (s *Store) Toggle(ctx context.Context, productID int64, snapshot models.WishlistEntry) (bool, error) {
	mylog := s.mylog.Action("wishlist_toggle").With("product_id", productID)
	if productID <= 0 {
		return false, fmt.Errorf("product id %d: %w", productID, apperr.ErrValidation)
	}
	snapshot.ProductID = productID

	s.mu.Lock()
	defer s.mu.Unlock()

	next := append([]models.WishlistEntry(nil), s.entries...)
	idx := indexOf(next, productID)
	added := idx < 0
	var target models.WishlistEntry
	if added {
		target = snapshot
		next = append(next, snapshot)
	} else {
		target = next[idx]
		next = append(next[:idx], next[idx+1:]...)
	}

	if sess, ok := s.session(); ok {
		req := backend.WishlistItemRequest{UserID: sess.UserID, ProductID: productID, Size: target.Size}
		var err error
		if added {
			err = s.api.AddWishlistItem(ctx, req)
		} else {
			err = s.api.RemoveWishlistItem(ctx, req)
		}
		if err != nil {
			mylog.Error("Backend rejected wishlist change", err, "added", added)
			notify.Failure(s.notifier, "", err)
			return !added, err
		}
	} else if err := writeLocal(ctx, s.local, next); err != nil {
		mylog.Error("Failed to persist wishlist", err)
		notify.Failure(s.notifier, "Couldn't save your wishlist. Try again.", err)
		return !added, err
	}

	s.entries = next
	if added {
		notify.Info(s.notifier, "Added to wishlist")
	} else {
		notify.Info(s.notifier, "Removed from wishlist")
	}
	mylog.Debug("Wishlist toggled", "added", added, "count", len(next))
	return added, nil
}

func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.session(); ok {
		if err := s.api.ClearWishlist(ctx, sess.UserID); err != nil {
			s.mylog.Action("wishlist_clear").Error("Backend rejected wishlist clear", err)
			notify.Failure(s.notifier, "", err)
			return err
		}
	} else if err := s.local.Delete(ctx, localstate.KeyWishlist, localstate.KeyWishlistDetails); err != nil {
		return fmt.Errorf("clear local wishlist: %w", err)
	}
	s.entries = nil
	return nil
}

func (s *Store) Contains(productID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return indexOf(s.entries, productID) >= 0
}

// Count drives the wishlist badge.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *Store) List() []models.WishlistEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.WishlistEntry(nil), s.entries...)
}

// readLocal joins the id list with the stored snapshots. An id without a
// snapshot is kept with only its id; snapshots for ids no longer listed are ignored.
// Entries that do not decode are skipped with a warning.
func readLocal(ctx context.Context, local localstate.IStore, mylog logger.Logger) ([]models.WishlistEntry, error) {
	var rawIDs, rawDetails []json.RawMessage
	if _, err := localstate.GetJSON(ctx, local, localstate.KeyWishlist, &rawIDs); err != nil {
		return nil, fmt.Errorf("read local wishlist: %w", err)
	}
	if _, err := localstate.GetJSON(ctx, local, localstate.KeyWishlistDetails, &rawDetails); err != nil {
		return nil, fmt.Errorf("read local wishlist details: %w", err)
	}

	byID := make(map[int64]models.WishlistEntry, len(rawDetails))
	for i, r := range rawDetails {
		var d models.WishlistEntry
		if err := json.Unmarshal(r, &d); err != nil {
			mylog.Action("wishlist_load").Warn("Skipping malformed wishlist snapshot", "index", i, "reason", err.Error())
			continue
		}
		byID[d.ProductID] = d
	}
	entries := make([]models.WishlistEntry, 0, len(rawIDs))
	for i, r := range rawIDs {
		var id int64
		if err := json.Unmarshal(r, &id); err != nil {
			mylog.Action("wishlist_load").Warn("Skipping malformed wishlist id", "index", i, "reason", err.Error())
			continue
		}
		if id <= 0 || indexOf(entries, id) >= 0 {
			continue
		}
		e, ok := byID[id]
		if !ok {
			e = models.WishlistEntry{ProductID: id}
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func writeLocal(ctx context.Context, local localstate.IStore, entries []models.WishlistEntry) error {
	ids := make([]int64, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.ProductID)
	}
	if err := localstate.SetJSON(ctx, local, localstate.KeyWishlist, ids); err != nil {
		return err
	}
	return localstate.SetJSON(ctx, local, localstate.KeyWishlistDetails, entries)
}

func indexOf(entries []models.WishlistEntry, productID int64) int {
	for i := range entries {
		if entries[i].ProductID == productID {
			return i
		}
	}
	return -1
}

func dedupe(entries []models.WishlistEntry) []models.WishlistEntry {
	out := make([]models.WishlistEntry, 0, len(entries))
	for _, e := range entries {
		if indexOf(out, e.ProductID) < 0 {
			out = append(out, e)
		}
	}
	return out
}
