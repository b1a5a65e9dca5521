// Package pricing turns a shopper's selection into priced totals.
// Every function here is pure apart from logging unknown add-ons.
package pricing

import (
	"fmt"
	"sort"

	"bakery-storefront/internal/xpkg/logger"
	"bakery-storefront/pkg/models"

	apperr "bakery-storefront/internal/xpkg/errors"

	"github.com/shopspring/decimal"
)

// AddonPricer resolves an add-on key to its unit price.
type AddonPricer interface {
	AddonPrice(key string) (decimal.Decimal, bool)
}

type AddonLine struct {
	Key       string
	UnitPrice decimal.Decimal
	PerUnit   int
	Total     decimal.Decimal
	Known     bool
}

type LineTotal struct {
	Subtotal    decimal.Decimal
	AddonsTotal decimal.Decimal
	Total       decimal.Decimal
	Addons      []AddonLine
}

type Engine struct {
	mylog logger.Logger
}

func NewEngine(mylog logger.Logger) *Engine {
	return &Engine{mylog: mylog}
}

// ComputeLineTotal prices quantity units at unitPrice plus the selected add-ons.
// Add-ons are charged per unit of the parent line: perUnit × quantity each.
// A selected key missing from catalog is charged zero and kept in the breakdown.
func (e *Engine) ComputeLineTotal(unitPrice decimal.Decimal, quantity int, selections map[string]int, catalog AddonPricer) (LineTotal, error) {
	if unitPrice.IsNegative() {
		return LineTotal{}, fmt.Errorf("unit price %s: %w", unitPrice, apperr.ErrValidation)
	}
	if quantity < 1 {
		return LineTotal{}, fmt.Errorf("quantity %d: %w", quantity, apperr.ErrValidation)
	}

	qty := decimal.NewFromInt(int64(quantity))
	res := LineTotal{
		Subtotal:    unitPrice.Mul(qty),
		AddonsTotal: decimal.Zero,
	}

	keys := make([]string, 0, len(selections))
	for k := range selections {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		perUnit := selections[key]
		if perUnit < 0 {
			return LineTotal{}, fmt.Errorf("add-on %q count %d: %w", key, perUnit, apperr.ErrValidation)
		}
		if perUnit == 0 {
			continue
		}

		var price decimal.Decimal
		known := false
		if catalog != nil {
			price, known = catalog.AddonPrice(key)
		}
		if !known {
			price = decimal.Zero
			if e.mylog != nil {
				e.mylog.Action("addon_price_missing").Warn("Add-on not in catalog, pricing at zero", "addon_key", key)
			}
		}

		total := price.Mul(decimal.NewFromInt(int64(perUnit))).Mul(qty)
		res.AddonsTotal = res.AddonsTotal.Add(total)
		res.Addons = append(res.Addons, AddonLine{
			Key:       key,
			UnitPrice: price,
			PerUnit:   perUnit,
			Total:     total,
			Known:     known,
		})
	}

	res.Total = res.Subtotal.Add(res.AddonsTotal)
	return res, nil
}

// PriceLine prices a stored cart line, resolving its add-ons by id.
func (e *Engine) PriceLine(line models.CartLine, idx *models.AddonIndex) (LineTotal, error) {
	selections := make(map[string]int, len(line.Addons))
	pricer := idPricer{idx: idx}
	for _, a := range line.Addons {
		selections[pricer.key(a.ID)] += a.Quantity
	}
	return e.ComputeLineTotal(line.UnitPrice, line.Quantity, selections, pricer)
}

// CartTotals sums PriceLine over every line.
func (e *Engine) CartTotals(lines []models.CartLine, idx *models.AddonIndex) (LineTotal, error) {
	sum := LineTotal{Subtotal: decimal.Zero, AddonsTotal: decimal.Zero, Total: decimal.Zero}
	for _, line := range lines {
		lt, err := e.PriceLine(line, idx)
		if err != nil {
			return LineTotal{}, fmt.Errorf("line %s: %w", line.Key, err)
		}
		sum.Subtotal = sum.Subtotal.Add(lt.Subtotal)
		sum.AddonsTotal = sum.AddonsTotal.Add(lt.AddonsTotal)
		sum.Total = sum.Total.Add(lt.Total)
		sum.Addons = append(sum.Addons, lt.Addons...)
	}
	return sum, nil
}

// DiscountPercent is the whole-number percentage off the original price.
// It is zero unless original is positive and above current.
func DiscountPercent(original, current decimal.Decimal) int {
	if !original.IsPositive() || !original.GreaterThan(current) {
		return 0
	}
	pct := original.Sub(current).Div(original).Mul(decimal.NewFromInt(100)).Round(0)
	return int(pct.IntPart())
}

// idPricer adapts an AddonIndex to price by numeric add-on id.
type idPricer struct {
	idx *models.AddonIndex
}

func (p idPricer) key(id int64) string {
	if d, ok := p.idx.ByID(id); ok && d.ItemKey != "" {
		return d.ItemKey
	}
	return fmt.Sprintf("#%d", id)
}

func (p idPricer) AddonPrice(key string) (decimal.Decimal, bool) {
	if d, ok := p.idx.ByKey(key); ok {
		return d.Price, true
	}
	var id int64
	if _, err := fmt.Sscanf(key, "#%d", &id); err == nil {
		if d, ok := p.idx.ByID(id); ok {
			return d.Price, true
		}
	}
	return decimal.Zero, false
}
