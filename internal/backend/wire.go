package backend

import (
	"bakery-storefront/pkg/models"

	"github.com/shopspring/decimal"
)

// CartItemRequest is the per-item body of add, update, remove and merge.
// Exactly one of ProductID and SnackID is set, chosen by ItemType.
type CartItemRequest struct {
	UserID    string            `json:"userId,omitempty"`
	ProductID *int64            `json:"productId,omitempty"`
	SnackID   *int64            `json:"snackId,omitempty"`
	Quantity  int               `json:"quantity,omitempty"`
	Size      string            `json:"size"`
	ItemType  models.ItemType   `json:"itemType"`
	AddonIDs  []models.AddonQty `json:"addonIds"`
}

// CartItemResponse is one line of the server cart.
type CartItemResponse struct {
	ProductID *int64            `json:"productId,omitempty"`
	SnackID   *int64            `json:"snackId,omitempty"`
	ItemType  models.ItemType   `json:"itemType"`
	Size      string            `json:"size"`
	Quantity  int               `json:"quantity"`
	Price     decimal.Decimal   `json:"price"`
	AddonIDs  []models.AddonQty `json:"addonIds"`
}

// CartResponse is returned by get-cart-items and, when the backend includes it,
// by the mutation endpoints.
type CartResponse struct {
	Items []CartItemResponse `json:"items"`
}

type WishlistItemRequest struct {
	UserID    string `json:"userId,omitempty"`
	ProductID int64  `json:"productId"`
	Size      string `json:"size,omitempty"`
}

type WishlistSyncRequest struct {
	UserID string                `json:"userId"`
	Items  []WishlistItemRequest `json:"items"`
}

// WishlistSyncResult lists the items the backend could not merge.
type WishlistSyncResult struct {
	Failed []WishlistItemRequest `json:"failed"`
}

type WishlistResponse struct {
	Items []models.WishlistEntry `json:"items"`
}

// ToWire is the only conversion from a cart line to the backend item shape.
func ToWire(userID string, line models.CartLine) CartItemRequest {
	id := line.Key.ItemID
	req := CartItemRequest{
		UserID:   userID,
		Quantity: line.Quantity,
		Size:     line.Key.Size,
		ItemType: line.Key.ItemType,
		AddonIDs: append([]models.AddonQty{}, line.Addons...),
	}
	if line.Key.ItemType == models.ItemSnack {
		req.SnackID = &id
	} else {
		req.ProductID = &id
	}
	return req
}

// FromWire converts a server cart line back to the local shape.
func FromWire(item CartItemResponse) models.CartLine {
	var id int64
	switch {
	case item.ItemType == models.ItemSnack && item.SnackID != nil:
		id = *item.SnackID
	case item.ProductID != nil:
		id = *item.ProductID
	case item.SnackID != nil:
		id = *item.SnackID
	}
	itemType := item.ItemType
	if itemType == "" {
		itemType = models.ItemProduct
	}
	return models.CartLine{
		Key: models.CartLineKey{
			ItemID:   id,
			ItemType: itemType,
			Size:     item.Size,
		},
		Quantity:  item.Quantity,
		UnitPrice: item.Price,
		Addons:    append([]models.AddonQty{}, item.AddonIDs...),
	}
}

func linesFromResponse(resp CartResponse) []models.CartLine {
	lines := make([]models.CartLine, 0, len(resp.Items))
	for _, item := range resp.Items {
		lines = append(lines, FromWire(item))
	}
	return lines
}
