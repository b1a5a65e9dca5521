// Package cart holds the shopper's cart and reconciles it with the backend.
//
// While anonymous the cart lives in local state under the "cart" key and is
// rewritten on every mutation. Once a session exists the backend owns the cart:
// every mutation is sent first and the local copy only changes after the backend
// accepted it.
package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"bakery-storefront/internal/backend"
	"bakery-storefront/internal/localstate"
	"bakery-storefront/internal/notify"
	"bakery-storefront/internal/session"
	"bakery-storefront/internal/xpkg/logger"
	"bakery-storefront/pkg/models"

	apperr "bakery-storefront/internal/xpkg/errors"

	"github.com/shopspring/decimal"
)

type ICartAPI interface {
	AddCartItem(ctx context.Context, item backend.CartItemRequest) (backend.CartResult, error)
	UpdateCartItem(ctx context.Context, item backend.CartItemRequest) (backend.CartResult, error)
	RemoveCartItem(ctx context.Context, item backend.CartItemRequest) (backend.CartResult, error)
	ClearCart(ctx context.Context, userID string) error
	MergeCartItems(ctx context.Context, items []backend.CartItemRequest) error
	GetCartItems(ctx context.Context, userID string) ([]models.CartLine, error)
}

type ISessions interface {
	Current() (session.Session, bool)
}

type Store struct {
	local    localstate.IStore
	api      ICartAPI
	sessions ISessions
	notifier notify.Notifier
	mylog    logger.Logger

	// mu is held across backend calls so mutations reach the backend in call order.
	mu    sync.Mutex
	lines []models.CartLine
}

func NewStore(
	local localstate.IStore,
	api ICartAPI,
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
	}
}

func (s *Store) session() (session.Session, bool) {
	if s.sessions == nil || s.api == nil {
		return session.Session{}, false
	}
	return s.sessions.Current()
}

// Load fills the store at startup: from the backend when logged in, otherwise
// from local state. Malformed local entries are skipped.
func (s *Store) Load(ctx context.Context) error {
	if _, ok := s.session(); ok {
		return s.Refresh(ctx)
	}

	stored, err := readLocal(ctx, s.local)
	if err != nil {
		return err
	}
	lines := make([]models.CartLine, 0, len(stored))
	for i, st := range stored {
		line, err := st.Line()
		if err != nil {
			s.mylog.Action("cart_load").Warn("Skipping malformed cart entry", "index", i, "reason", err.Error())
			continue
		}
		lines = mergeLine(lines, line)
	}

	s.mu.Lock()
	s.lines = lines
	s.mu.Unlock()
	return nil
}

// Refresh replaces the local copy with the server cart. Anonymous stores reload local state.
func (s *Store) Refresh(ctx context.Context) error {
	sess, ok := s.session()
	if !ok {
		return s.Load(ctx)
	}

	lines, err := s.api.GetCartItems(ctx, sess.UserID)
	if err != nil {
		s.mylog.Action("cart_refresh").Error("Failed to fetch server cart", err)
		return fmt.Errorf("refresh cart: %w", err)
	}

	s.mu.Lock()
	s.lines = lines
	s.mu.Unlock()
	return nil
}

// AddOrIncrement adds quantity units of key. An existing line with the same key
// is incremented and its add-on base counts summed per add-on id; a new line
// snapshots unitPrice.
func (s *Store) AddOrIncrement(ctx context.Context, key models.CartLineKey, unitPrice decimal.Decimal, addons []models.AddonQty, quantity int) error {
	mylog := s.mylog.Action("cart_add").With("key", key.String(), "quantity", quantity)

	if err := validateKey(key); err != nil {
		return err
	}
	if quantity < 1 {
		return fmt.Errorf("quantity %d: %w", quantity, apperr.ErrValidation)
	}
	if unitPrice.IsNegative() {
		return fmt.Errorf("unit price %s: %w", unitPrice, apperr.ErrValidation)
	}
	addons, err := normalizeAddons(addons)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delta := models.CartLine{Key: key, Quantity: quantity, UnitPrice: unitPrice, Addons: addons}
	next := mergeLine(cloneLines(s.lines), delta)

	return s.commit(ctx, mylog, next, func(userID string) (backend.CartResult, error) {
		return s.api.AddCartItem(ctx, backend.ToWire(userID, delta))
	})
}

// SetQuantity sets the quantity of an existing line. Zero removes the line.
func (s *Store) SetQuantity(ctx context.Context, key models.CartLineKey, quantity int) error {
	if quantity < 0 {
		return fmt.Errorf("quantity %d: %w", quantity, apperr.ErrValidation)
	}
	if quantity == 0 {
		return s.Remove(ctx, key)
	}
	mylog := s.mylog.Action("cart_set_quantity").With("key", key.String(), "quantity", quantity)

	s.mu.Lock()
	defer s.mu.Unlock()

	next := cloneLines(s.lines)
	idx := indexOf(next, key)
	if idx < 0 {
		return fmt.Errorf("cart line %s: %w", key, apperr.ErrNotFound)
	}
	next[idx].Quantity = quantity
	line := next[idx]

	return s.commit(ctx, mylog, next, func(userID string) (backend.CartResult, error) {
		return s.api.UpdateCartItem(ctx, backend.ToWire(userID, line))
	})
}

func (s *Store) Remove(ctx context.Context, key models.CartLineKey) error {
	mylog := s.mylog.Action("cart_remove").With("key", key.String())

	s.mu.Lock()
	defer s.mu.Unlock()

	next := cloneLines(s.lines)
	idx := indexOf(next, key)
	if idx < 0 {
		return fmt.Errorf("cart line %s: %w", key, apperr.ErrNotFound)
	}
	line := next[idx]
	next = append(next[:idx], next[idx+1:]...)

	return s.commit(ctx, mylog, next, func(userID string) (backend.CartResult, error) {
		return s.api.RemoveCartItem(ctx, backend.ToWire(userID, line))
	})
}

func (s *Store) Clear(ctx context.Context) error {
	mylog := s.mylog.Action("cart_clear")

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.commit(ctx, mylog, []models.CartLine{}, func(userID string) (backend.CartResult, error) {
		return backend.CartResult{}, s.api.ClearCart(ctx, userID)
	})
}

func (s *Store) List() []models.CartLine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneLines(s.lines)
}

// Count is the total number of units, shown on the cart badge.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, l := range s.lines {
		n += l.Quantity
	}
	return n
}

// commit makes next the current state. Logged in, send runs first and its echoed
// cart, when present, wins over next. Anonymous, next is written to local state.
// On any failure the current state is left untouched. Callers hold s.mu.
func (s *Store) commit(ctx context.Context, mylog logger.Logger, next []models.CartLine, send func(userID string) (backend.CartResult, error)) error {
	if sess, ok := s.session(); ok {
		res, err := send(sess.UserID)
		if err != nil {
			mylog.Error("Backend rejected cart mutation", err)
			notify.Failure(s.notifier, "", err)
			return err
		}
		if res.HasLines {
			next = res.Lines
		}
		s.lines = next
		mylog.Debug("Cart mutation accepted by backend", "lines", len(next))
		return nil
	}

	if err := writeLocal(ctx, s.local, next); err != nil {
		mylog.Error("Failed to persist cart", err)
		notify.Failure(s.notifier, "Couldn't save your cart. Try again.", err)
		return err
	}
	s.lines = next
	mylog.Debug("Cart saved locally", "lines", len(next))
	return nil
}

// readLocal decodes the cart entry by entry. An entry that does not decode is
// kept as a StoredLine whose Line reports the decode error.
func readLocal(ctx context.Context, local localstate.IStore) ([]StoredLine, error) {
	var raw []json.RawMessage
	if _, err := localstate.GetJSON(ctx, local, localstate.KeyCart, &raw); err != nil {
		return nil, fmt.Errorf("read local cart: %w", err)
	}
	stored := make([]StoredLine, 0, len(raw))
	for _, r := range raw {
		var st StoredLine
		if err := json.Unmarshal(r, &st); err != nil {
			st = StoredLine{decodeErr: err}
		}
		stored = append(stored, st)
	}
	return stored, nil
}

func writeLocal(ctx context.Context, local localstate.IStore, lines []models.CartLine) error {
	stored := make([]StoredLine, 0, len(lines))
	for _, l := range lines {
		stored = append(stored, toStored(l))
	}
	return localstate.SetJSON(ctx, local, localstate.KeyCart, stored)
}

func validateKey(key models.CartLineKey) error {
	var errs []error
	if key.ItemID <= 0 {
		errs = append(errs, errors.New("item id must be positive"))
	}
	if !key.ItemType.Valid() {
		errs = append(errs, fmt.Errorf("unknown item type %q", key.ItemType))
	}
	if key.Size == "" {
		errs = append(errs, errors.New("size is required"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("cart line %s: %w: %w", key, apperr.ErrValidation, errors.Join(errs...))
	}
	return nil
}

func normalizeAddons(addons []models.AddonQty) ([]models.AddonQty, error) {
	out := make([]models.AddonQty, 0, len(addons))
	for _, a := range addons {
		if a.ID <= 0 || a.Quantity < 0 {
			return nil, fmt.Errorf("add-on %d x%d: %w", a.ID, a.Quantity, apperr.ErrValidation)
		}
		if a.Quantity == 0 {
			continue
		}
		out = mergeAddons(out, []models.AddonQty{a})
	}
	return out, nil
}

// mergeLine folds line into lines, keeping at most one line per key.
func mergeLine(lines []models.CartLine, line models.CartLine) []models.CartLine {
	if idx := indexOf(lines, line.Key); idx >= 0 {
		lines[idx].Quantity += line.Quantity
		lines[idx].Addons = mergeAddons(lines[idx].Addons, line.Addons)
		return lines
	}
	line.Addons = append([]models.AddonQty(nil), line.Addons...)
	return append(lines, line)
}

func indexOf(lines []models.CartLine, key models.CartLineKey) int {
	for i := range lines {
		if lines[i].Key == key {
			return i
		}
	}
	return -1
}

func cloneLines(lines []models.CartLine) []models.CartLine {
	out := make([]models.CartLine, len(lines))
	for i, l := range lines {
		l.Addons = append([]models.AddonQty(nil), l.Addons...)
		out[i] = l
	}
	return out
}
