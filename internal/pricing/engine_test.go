package pricing

import (
	"testing"

	"bakery-storefront/internal/xpkg/logger"
	"bakery-storefront/pkg/models"

	apperr "bakery-storefront/internal/xpkg/errors"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testIndex() *models.AddonIndex {
	return models.NewAddonIndex([]models.AddonDefinition{
		{ID: 1, ItemKey: "candles", Name: "Candle set", Price: dec("100")},
		{ID: 2, ItemKey: "topper", Name: "Cake topper", Price: dec("45.50")},
	})
}

func TestComputeLineTotal_NoAddons(t *testing.T) {
	e := NewEngine(logger.Discard())
	for _, tc := range []struct {
		price string
		qty   int
	}{
		{"0", 1}, {"500", 1}, {"499.99", 3}, {"12.5", 40},
	} {
		lt, err := e.ComputeLineTotal(dec(tc.price), tc.qty, nil, nil)
		require.NoError(t, err)
		want := dec(tc.price).Mul(decimal.NewFromInt(int64(tc.qty)))
		assert.True(t, want.Equal(lt.Total), "price %s qty %d: got %s", tc.price, tc.qty, lt.Total)
		assert.True(t, lt.AddonsTotal.IsZero())
	}
}

func TestComputeLineTotal_AddonsScaleWithQuantity(t *testing.T) {
	e := NewEngine(logger.Discard())

	lt, err := e.ComputeLineTotal(dec("500"), 2, map[string]int{"candles": 1}, testIndex())
	require.NoError(t, err)

	assert.True(t, dec("1000").Equal(lt.Subtotal))
	assert.True(t, dec("200").Equal(lt.AddonsTotal))
	assert.True(t, dec("1200").Equal(lt.Total))
	require.Len(t, lt.Addons, 1)
	assert.True(t, lt.Addons[0].Known)
}

func TestComputeLineTotal_UnknownAddonPricedAtZero(t *testing.T) {
	e := NewEngine(logger.Discard())

	lt, err := e.ComputeLineTotal(dec("300"), 1, map[string]int{"sparkler": 2, "topper": 2}, testIndex())
	require.NoError(t, err)

	assert.True(t, dec("91").Equal(lt.AddonsTotal))
	assert.True(t, dec("391").Equal(lt.Total))
	require.Len(t, lt.Addons, 2)
	assert.Equal(t, "sparkler", lt.Addons[0].Key)
	assert.False(t, lt.Addons[0].Known)
	assert.True(t, lt.Addons[0].Total.IsZero())
}

func TestComputeLineTotal_Validation(t *testing.T) {
	e := NewEngine(logger.Discard())

	_, err := e.ComputeLineTotal(dec("-1"), 1, nil, nil)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = e.ComputeLineTotal(dec("10"), 0, nil, nil)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = e.ComputeLineTotal(dec("10"), 1, map[string]int{"candles": -1}, testIndex())
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestPriceLine_ByAddonID(t *testing.T) {
	e := NewEngine(logger.Discard())
	line := models.CartLine{
		Key:       models.CartLineKey{ItemID: 9, ItemType: models.ItemProduct, Size: "1kg"},
		Quantity:  3,
		UnitPrice: dec("250"),
		Addons:    []models.AddonQty{{ID: 1, Quantity: 1}, {ID: 2, Quantity: 2}, {ID: 77, Quantity: 1}},
	}

	lt, err := e.PriceLine(line, testIndex())
	require.NoError(t, err)

	// 3 × (100 + 2×45.50) = 573
	assert.True(t, dec("750").Equal(lt.Subtotal))
	assert.True(t, dec("573").Equal(lt.AddonsTotal))
	assert.True(t, dec("1323").Equal(lt.Total))
}

func TestCartTotals(t *testing.T) {
	e := NewEngine(logger.Discard())
	lines := []models.CartLine{
		{Key: models.CartLineKey{ItemID: 1, ItemType: models.ItemProduct, Size: "500g"}, Quantity: 1, UnitPrice: dec("400")},
		{Key: models.CartLineKey{ItemID: 2, ItemType: models.ItemSnack, Size: "regular"}, Quantity: 2, UnitPrice: dec("60"), Addons: []models.AddonQty{{ID: 1, Quantity: 1}}},
	}

	sum, err := e.CartTotals(lines, testIndex())
	require.NoError(t, err)
	assert.True(t, dec("520").Equal(sum.Subtotal))
	assert.True(t, dec("200").Equal(sum.AddonsTotal))
	assert.True(t, dec("720").Equal(sum.Total))
}

func TestDiscountPercent(t *testing.T) {
	assert.Equal(t, 20, DiscountPercent(dec("500"), dec("400")))
	assert.Equal(t, 33, DiscountPercent(dec("300"), dec("200")))
	assert.Equal(t, 0, DiscountPercent(dec("400"), dec("500")))
	assert.Equal(t, 0, DiscountPercent(dec("400"), dec("400")))
	assert.Equal(t, 0, DiscountPercent(dec("0"), dec("-5")))
}
