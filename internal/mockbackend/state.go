package mockbackend

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"bakery-storefront/internal/backend"
	"bakery-storefront/internal/orders"
	"bakery-storefront/pkg/models"

	apperr "bakery-storefront/internal/xpkg/errors"

	"github.com/shopspring/decimal"
)

const snackCategory = "snacks"

// State is the backend's in-memory record: catalog, carts, wishlists and orders.
type State struct {
	now func() time.Time

	mu          sync.Mutex
	products    map[int64]models.Product
	addons      []models.AddonDefinition
	carts       map[string][]models.CartLine
	wishlists   map[string][]models.WishlistEntry
	orders      map[string][]models.Order
	nextOrderID int64
}

func NewState(now func() time.Time) *State {
	if now == nil {
		now = time.Now
	}
	s := &State{
		now:         now,
		products:    make(map[int64]models.Product),
		carts:       make(map[string][]models.CartLine),
		wishlists:   make(map[string][]models.WishlistEntry),
		orders:      make(map[string][]models.Order),
		nextOrderID: 1000,
	}
	for _, p := range seedProducts() {
		s.products[p.ID] = p
	}
	s.addons = seedAddons()
	return s
}

func price(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func seedProducts() []models.Product {
	return []models.Product{
		{ID: 1, Name: "Black Forest", Price: price(500), Category: "cakes", Image: "black-forest.jpg",
			Sizes: []models.SizeVariant{{Label: "0.5 kg", Value: "0.5kg", Price: price(500)}, {Label: "1 kg", Value: "1kg", Price: price(950)}}},
		{ID: 2, Name: "Red Velvet", Price: price(650), OriginalPrice: decimal.NewNullDecimal(price(750)), Category: "cakes", Image: "red-velvet.jpg",
			Sizes: []models.SizeVariant{{Label: "0.5 kg", Value: "0.5kg", Price: price(650)}, {Label: "1 kg", Value: "1kg", Price: price(1200)}}},
		{ID: 3, Name: "Chocolate Truffle", Price: price(700), Category: "cakes", Image: "truffle.jpg"},
		{ID: 4, Name: "Pineapple", Price: price(450), OriginalPrice: decimal.NewNullDecimal(price(500)), Category: "cakes", Image: "pineapple.jpg"},
		{ID: 11, Name: "Eclair", Price: price(120), Category: "pastries", Image: "eclair.jpg"},
		{ID: 12, Name: "Croissant", Price: price(90), Category: "pastries", Image: "croissant.jpg"},
		{ID: 101, Name: "Veg Puff", Price: price(40), Category: snackCategory, Image: "puff.jpg"},
		{ID: 102, Name: "Butter Cookies", Price: price(60), Category: snackCategory, Image: "cookies.jpg"},
	}
}

func seedAddons() []models.AddonDefinition {
	return []models.AddonDefinition{
		{ID: 1, ItemKey: "candles", Name: "Candles", Price: price(100), Image: "candles.jpg"},
		{ID: 2, ItemKey: "topper", Name: "Cake Topper", Price: price(150), Image: "topper.jpg"},
		{ID: 3, ItemKey: "greeting-card", Name: "Greeting Card", Price: price(50), Image: "card.jpg"},
		{ID: 4, ItemKey: "party-poppers", Name: "Party Poppers", Price: price(80), Image: "poppers.jpg"},
	}
}

func (s *State) ProductsByCategory(category string, page, size int) models.ProductPage {
	s.mu.Lock()
	defer s.mu.Unlock()

	var all []models.Product
	for _, p := range s.products {
		if p.Category == category {
			all = append(all, p)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })

	out := models.ProductPage{Items: []models.Product{}, Page: page, Size: size, TotalItems: int64(len(all))}
	out.TotalPages = (len(all) + size - 1) / size
	start := page * size
	if start < len(all) {
		end := min(start+size, len(all))
		out.Items = append(out.Items, all[start:end]...)
	}
	return out
}

func (s *State) Product(id int64) (models.Product, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	return p, ok
}

func (s *State) Addons() []models.AddonDefinition {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.AddonDefinition(nil), s.addons...)
}

// resolve turns a wire item into a cart line priced from the catalog.
// Callers hold s.mu.
func (s *State) resolve(item backend.CartItemRequest) (models.CartLine, error) {
	itemType := item.ItemType
	if itemType == "" {
		itemType = models.ItemProduct
	}
	if item.ProductID != nil && item.SnackID != nil {
		return models.CartLine{}, fmt.Errorf("productId and snackId are exclusive: %w", apperr.ErrValidation)
	}

	var id int64
	switch {
	case itemType == models.ItemSnack && item.SnackID != nil:
		id = *item.SnackID
	case itemType == models.ItemProduct && item.ProductID != nil:
		id = *item.ProductID
	default:
		return models.CartLine{}, fmt.Errorf("item id does not match item type %s: %w", itemType, apperr.ErrValidation)
	}
	if item.Size == "" {
		return models.CartLine{}, fmt.Errorf("size is required: %w", apperr.ErrValidation)
	}

	p, ok := s.products[id]
	if !ok || (itemType == models.ItemSnack) != (p.Category == snackCategory) {
		return models.CartLine{}, fmt.Errorf("%s %d: %w", itemType, id, apperr.ErrNotFound)
	}
	unit, ok := p.PriceFor(item.Size)
	if !ok {
		unit = p.Price
	}

	addons := make([]models.AddonQty, 0, len(item.AddonIDs))
	for _, a := range item.AddonIDs {
		if a.Quantity < 1 || !s.hasAddon(a.ID) {
			return models.CartLine{}, fmt.Errorf("add-on %d: %w", a.ID, apperr.ErrValidation)
		}
		addons = sumAddons(addons, a)
	}

	return models.CartLine{
		Key:       models.CartLineKey{ItemID: id, ItemType: itemType, Size: item.Size},
		Quantity:  item.Quantity,
		UnitPrice: unit,
		Addons:    addons,
	}, nil
}

func (s *State) hasAddon(id int64) bool {
	for _, a := range s.addons {
		if a.ID == id {
			return true
		}
	}
	return false
}

func sumAddons(list []models.AddonQty, a models.AddonQty) []models.AddonQty {
	for i := range list {
		if list[i].ID == a.ID {
			list[i].Quantity += a.Quantity
			return list
		}
	}
	return append(list, a)
}

func indexOfLine(lines []models.CartLine, key models.CartLineKey) int {
	for i := range lines {
		if lines[i].Key == key {
			return i
		}
	}
	return -1
}

func (s *State) Cart(userID string) []models.CartLine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneCart(s.carts[userID])
}

func (s *State) AddCartItems(userID string, items ...backend.CartItemRequest) ([]models.CartLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lines := make([]models.CartLine, 0, len(items))
	for _, item := range items {
		line, err := s.resolve(item)
		if err != nil {
			return nil, err
		}
		if line.Quantity < 1 {
			return nil, fmt.Errorf("quantity %d: %w", line.Quantity, apperr.ErrValidation)
		}
		lines = append(lines, line)
	}

	cart := s.carts[userID]
	for _, line := range lines {
		if idx := indexOfLine(cart, line.Key); idx >= 0 {
			cart[idx].Quantity += line.Quantity
			for _, a := range line.Addons {
				cart[idx].Addons = sumAddons(cart[idx].Addons, a)
			}
			continue
		}
		cart = append(cart, line)
	}
	s.carts[userID] = cart
	return cloneCart(cart), nil
}

// UpdateCartItem sets the quantity and add-ons of an existing line; zero removes it.
func (s *State) UpdateCartItem(userID string, item backend.CartItemRequest) ([]models.CartLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	line, err := s.resolve(item)
	if err != nil {
		return nil, err
	}
	cart := s.carts[userID]
	idx := indexOfLine(cart, line.Key)
	if idx < 0 {
		return nil, fmt.Errorf("cart line %s: %w", line.Key, apperr.ErrNotFound)
	}
	switch {
	case line.Quantity < 0:
		return nil, fmt.Errorf("quantity %d: %w", line.Quantity, apperr.ErrValidation)
	case line.Quantity == 0:
		cart = append(cart[:idx], cart[idx+1:]...)
	default:
		cart[idx].Quantity = line.Quantity
		cart[idx].Addons = line.Addons
	}
	s.carts[userID] = cart
	return cloneCart(cart), nil
}

func (s *State) RemoveCartItem(userID string, item backend.CartItemRequest) ([]models.CartLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	line, err := s.resolve(item)
	if err != nil {
		return nil, err
	}
	cart := s.carts[userID]
	idx := indexOfLine(cart, line.Key)
	if idx < 0 {
		return nil, fmt.Errorf("cart line %s: %w", line.Key, apperr.ErrNotFound)
	}
	cart = append(cart[:idx], cart[idx+1:]...)
	s.carts[userID] = cart
	return cloneCart(cart), nil
}

func (s *State) ClearCart(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.carts, userID)
}

func cloneCart(lines []models.CartLine) []models.CartLine {
	out := make([]models.CartLine, len(lines))
	for i, l := range lines {
		l.Addons = append([]models.AddonQty(nil), l.Addons...)
		out[i] = l
	}
	return out
}

func (s *State) Wishlist(userID string) []models.WishlistEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.WishlistEntry{}, s.wishlists[userID]...)
}

// AddWishlistItem stores a snapshot of the product. Adding a listed product is a no-op.
func (s *State) AddWishlistItem(userID string, item backend.WishlistItemRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addWishlistLocked(userID, item)
}

func (s *State) addWishlistLocked(userID string, item backend.WishlistItemRequest) error {
	p, ok := s.products[item.ProductID]
	if !ok {
		return fmt.Errorf("product %d: %w", item.ProductID, apperr.ErrNotFound)
	}
	list := s.wishlists[userID]
	for _, e := range list {
		if e.ProductID == item.ProductID {
			return nil
		}
	}
	unit, ok := p.PriceFor(item.Size)
	if !ok {
		unit = p.Price
	}
	s.wishlists[userID] = append(list, models.WishlistEntry{
		ProductID: p.ID,
		Name:      p.Name,
		Price:     unit,
		Image:     p.Image,
		Size:      item.Size,
	})
	return nil
}

func (s *State) RemoveWishlistItem(userID string, productID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.wishlists[userID]
	for i, e := range list {
		if e.ProductID == productID {
			s.wishlists[userID] = append(list[:i], list[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("wishlist product %d: %w", productID, apperr.ErrNotFound)
}

func (s *State) ClearWishlist(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.wishlists, userID)
}

// SyncWishlist adds every known product and reports the rest as failed.
func (s *State) SyncWishlist(userID string, items []backend.WishlistItemRequest) backend.WishlistSyncResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	res := backend.WishlistSyncResult{Failed: []backend.WishlistItemRequest{}}
	for _, item := range items {
		if err := s.addWishlistLocked(userID, item); err != nil {
			res.Failed = append(res.Failed, item)
		}
	}
	return res
}

// SeedOrders gives a new shopper an order history to look at: one order still
// inside the cancellation window, one just outside it, and two fulfilled ones.
func (s *State) SeedOrders(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[userID]; ok {
		return
	}
	now := s.now()
	s.orders[userID] = []models.Order{
		s.newOrderLocked(now.Add(-48*time.Hour), models.StatusDelivered, 2, "Red Velvet", "1kg", 1200),
		s.newOrderLocked(now.Add(-3*time.Minute), models.StatusPlaced, 1, "Black Forest", "0.5kg", 500),
		s.newOrderLocked(now.Add(-40*time.Minute), models.StatusPlaced, 1, "Chocolate Truffle", "", 700),
		s.newOrderLocked(now.Add(-26*time.Hour), models.StatusShipped, 3, "Eclair", "", 120),
	}
}

func (s *State) newOrderLocked(placedAt time.Time, status models.OrderStatus, qty int, name, weight string, unit int64) models.Order {
	s.nextOrderID++
	q := decimal.NewFromInt(int64(qty))
	subtotal := price(unit).Mul(q)
	candles := models.PartyItem{Name: "Candles", UnitPrice: price(100), Quantity: qty}
	itemsTotal := subtotal.Add(candles.UnitPrice.Mul(q))
	tax := itemsTotal.Mul(decimal.NewFromFloat(0.05)).Round(2)
	fee := price(20)
	return models.Order{
		ID:       s.nextOrderID,
		PlacedAt: placedAt,
		Status:   status,
		Items: []models.OrderItem{{
			ProductName:    name,
			SelectedWeight: weight,
			Quantity:       qty,
			UnitPrice:      price(unit),
			Subtotal:       subtotal,
			PartyItems:     []models.PartyItem{candles},
		}},
		Totals: models.OrderTotals{
			Subtotal:       itemsTotal,
			Tax:            tax,
			ConvenienceFee: fee,
			Total:          itemsTotal.Add(tax).Add(fee),
		},
	}
}

// AddOrder stores o for userID, assigning an id when o has none.
func (s *State) AddOrder(userID string, o models.Order) models.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o.ID == 0 {
		s.nextOrderID++
		o.ID = s.nextOrderID
	}
	s.orders[userID] = append(s.orders[userID], o)
	return o
}

// Orders returns the user's orders in storage order, which is not placement order.
func (s *State) Orders(userID string) []models.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Order{}, s.orders[userID]...)
}

// CancelOrder moves a cancellable order to CANCELLED.
func (s *State) CancelOrder(userID string, orderID int64) (models.StatusUpdateMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.orders[userID]
	for i := range list {
		if list[i].ID != orderID {
			continue
		}
		now := s.now()
		if state := orders.Derive(list[i], now); !state.Cancellable() {
			return models.StatusUpdateMessage{}, fmt.Errorf("order %d is %s: %w", orderID, state, apperr.ErrCancellationNotAllowed)
		}
		old := list[i].Status
		list[i].Status = models.StatusCancelled
		return models.StatusUpdateMessage{
			OrderID:   orderID,
			UserID:    userID,
			OldStatus: old,
			NewStatus: models.StatusCancelled,
			ChangedBy: "customer",
			Timestamp: now,
		}, nil
	}
	return models.StatusUpdateMessage{}, fmt.Errorf("order %d: %w", orderID, apperr.ErrNotFound)
}
