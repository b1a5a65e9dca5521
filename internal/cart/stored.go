package cart

import (
	"fmt"

	"bakery-storefront/pkg/models"

	apperr "bakery-storefront/internal/xpkg/errors"

	"github.com/shopspring/decimal"
)

// StoredLine is the persisted shape of an anonymous cart line. Fields are optional
// so that entries written by older or broken clients can be detected and skipped.
type StoredLine struct {
	ItemID    *int64            `json:"itemId,omitempty"`
	ItemType  models.ItemType   `json:"itemType,omitempty"`
	Size      string            `json:"size,omitempty"`
	Quantity  *int              `json:"quantity,omitempty"`
	UnitPrice decimal.Decimal   `json:"unitPrice"`
	Addons    []models.AddonQty `json:"addons,omitempty"`

	decodeErr error
}

func toStored(line models.CartLine) StoredLine {
	id := line.Key.ItemID
	qty := line.Quantity
	return StoredLine{
		ItemID:    &id,
		ItemType:  line.Key.ItemType,
		Size:      line.Key.Size,
		Quantity:  &qty,
		UnitPrice: line.UnitPrice,
		Addons:    append([]models.AddonQty(nil), line.Addons...),
	}
}

// Line validates the entry and converts it. Malformed add-on entries are dropped,
// a malformed line is an ErrValidation.
func (s StoredLine) Line() (models.CartLine, error) {
	switch {
	case s.decodeErr != nil:
		return models.CartLine{}, fmt.Errorf("undecodable entry: %v: %w", s.decodeErr, apperr.ErrValidation)
	case s.ItemID == nil || *s.ItemID <= 0:
		return models.CartLine{}, fmt.Errorf("missing item id: %w", apperr.ErrValidation)
	case s.Quantity == nil || *s.Quantity < 1:
		return models.CartLine{}, fmt.Errorf("missing quantity: %w", apperr.ErrValidation)
	case s.Size == "":
		return models.CartLine{}, fmt.Errorf("missing size: %w", apperr.ErrValidation)
	case !s.ItemType.Valid():
		return models.CartLine{}, fmt.Errorf("missing item type %q: %w", s.ItemType, apperr.ErrValidation)
	}

	addons := make([]models.AddonQty, 0, len(s.Addons))
	for _, a := range s.Addons {
		if a.ID <= 0 || a.Quantity < 1 {
			continue
		}
		addons = mergeAddons(addons, []models.AddonQty{a})
	}

	return models.CartLine{
		Key: models.CartLineKey{
			ItemID:   *s.ItemID,
			ItemType: s.ItemType,
			Size:     s.Size,
		},
		Quantity:  *s.Quantity,
		UnitPrice: s.UnitPrice,
		Addons:    addons,
	}, nil
}

// mergeAddons sums base counts per add-on id, keeping first-seen order.
func mergeAddons(base, extra []models.AddonQty) []models.AddonQty {
	out := append([]models.AddonQty(nil), base...)
	for _, a := range extra {
		found := false
		for i := range out {
			if out[i].ID == a.ID {
				out[i].Quantity += a.Quantity
				found = true
				break
			}
		}
		if !found {
			out = append(out, a)
		}
	}
	return out
}
