package models

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

type ItemType string

const (
	ItemProduct ItemType = "PRODUCT"
	ItemSnack   ItemType = "SNACK"
)

func (t ItemType) Valid() bool {
	return t == ItemProduct || t == ItemSnack
}

type SizeVariant struct {
	Label string          `json:"label"`
	Value string          `json:"value"`
	Price decimal.Decimal `json:"price"`
}

type Product struct {
	ID            int64               `json:"id"`
	Name          string              `json:"name"`
	Price         decimal.Decimal     `json:"price"`
	OriginalPrice decimal.NullDecimal `json:"originalPrice"`
	Category      string              `json:"category"`
	Image         string              `json:"image,omitempty"`
	Sizes         []SizeVariant       `json:"sizes,omitempty"`
}

// PriceFor returns the price of the given size variant. Products without variants,
// or an empty size, use the base price.
func (p Product) PriceFor(size string) (decimal.Decimal, bool) {
	if len(p.Sizes) == 0 || size == "" {
		return p.Price, true
	}
	for _, s := range p.Sizes {
		if s.Value == size || s.Label == size {
			return s.Price, true
		}
	}
	return decimal.Zero, false
}

type ProductPage struct {
	Items      []Product `json:"content"`
	Page       int       `json:"page"`
	Size       int       `json:"size"`
	TotalPages int       `json:"totalPages"`
	TotalItems int64     `json:"totalElements"`
}

type AddonDefinition struct {
	ID      int64           `json:"id"`
	ItemKey string          `json:"itemKey"`
	Name    string          `json:"name"`
	Price   decimal.Decimal `json:"price"`
	Image   string          `json:"image,omitempty"`
}

// AddonIndex resolves add-ons by backend id and by local item key.
type AddonIndex struct {
	byID  map[int64]AddonDefinition
	byKey map[string]AddonDefinition
}

func NewAddonIndex(defs []AddonDefinition) *AddonIndex {
	idx := &AddonIndex{
		byID:  make(map[int64]AddonDefinition, len(defs)),
		byKey: make(map[string]AddonDefinition, len(defs)),
	}
	for _, d := range defs {
		idx.byID[d.ID] = d
		if d.ItemKey != "" {
			idx.byKey[d.ItemKey] = d
		}
	}
	return idx
}

func (idx *AddonIndex) ByID(id int64) (AddonDefinition, bool) {
	if idx == nil {
		return AddonDefinition{}, false
	}
	d, ok := idx.byID[id]
	return d, ok
}

func (idx *AddonIndex) ByKey(key string) (AddonDefinition, bool) {
	if idx == nil {
		return AddonDefinition{}, false
	}
	d, ok := idx.byKey[key]
	return d, ok
}

// AddonPrice implements pricing.AddonPricer over item keys.
func (idx *AddonIndex) AddonPrice(key string) (decimal.Decimal, bool) {
	d, ok := idx.ByKey(key)
	return d.Price, ok
}

// Definitions lists every add-on ordered by id.
func (idx *AddonIndex) Definitions() []AddonDefinition {
	if idx == nil {
		return nil
	}
	out := make([]AddonDefinition, 0, len(idx.byID))
	for _, d := range idx.byID {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (idx *AddonIndex) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.byID)
}

// CartLineKey identifies one purchasable configuration in the cart.
type CartLineKey struct {
	ItemID   int64    `json:"itemId"`
	ItemType ItemType `json:"itemType"`
	Size     string   `json:"size"`
}

func (k CartLineKey) String() string {
	return fmt.Sprintf("%s:%d:%s", k.ItemType, k.ItemID, k.Size)
}

// AddonQty is the canonical add-on selection: a per-unit count of one add-on id.
type AddonQty struct {
	ID       int64 `json:"id"`
	Quantity int   `json:"quantity"`
}

type CartLine struct {
	Key       CartLineKey     `json:"key"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Addons    []AddonQty      `json:"addons"`
}

type WishlistEntry struct {
	ProductID int64           `json:"productId"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Image     string          `json:"image,omitempty"`
	Size      string          `json:"size,omitempty"`
}

type OrderStatus string

const (
	StatusPlaced    OrderStatus = "PLACED"
	StatusShipped   OrderStatus = "SHIPPED"
	StatusDelivered OrderStatus = "DELIVERED"
	StatusCancelled OrderStatus = "CANCELLED"
)

type Order struct {
	ID       int64       `json:"id"`
	PlacedAt time.Time   `json:"placedAt"`
	Status   OrderStatus `json:"status"`
	Items    []OrderItem `json:"items"`
	Totals   OrderTotals `json:"totals"`
}

type OrderItem struct {
	ProductName    string          `json:"productName"`
	Image          string          `json:"image,omitempty"`
	SelectedWeight string          `json:"selectedWeight"`
	Quantity       int             `json:"quantity"`
	UnitPrice      decimal.Decimal `json:"unitPrice"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	PartyItems     []PartyItem     `json:"partyItems"`
}

// PartyItem is an add-on attached to a historical order line.
type PartyItem struct {
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Quantity  int             `json:"quantity"`
}

type OrderTotals struct {
	Subtotal       decimal.Decimal `json:"subtotal"`
	Tax            decimal.Decimal `json:"tax"`
	Discount       decimal.Decimal `json:"discount"`
	ConvenienceFee decimal.Decimal `json:"convenienceFee"`
	Total          decimal.Decimal `json:"total"`
}

// StatusUpdateMessage is published on the notifications exchange whenever an order changes status.
type StatusUpdateMessage struct {
	OrderID   int64       `json:"order_id"`
	UserID    string      `json:"user_id"`
	OldStatus OrderStatus `json:"old_status"`
	NewStatus OrderStatus `json:"new_status"`
	ChangedBy string      `json:"changed_by"`
	Timestamp time.Time   `json:"timestamp"`
}
