package invoice

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"bakery-storefront/internal/xpkg/config"
	"bakery-storefront/internal/xpkg/logger"
	"bakery-storefront/pkg/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func sampleOrder() models.Order {
	return models.Order{
		ID:       31,
		PlacedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Status:   models.StatusDelivered,
		Items: []models.OrderItem{{
			ProductName:    "Black Forest",
			SelectedWeight: "1kg",
			Quantity:       2,
			UnitPrice:      d(500),
			Subtotal:       d(1000),
			PartyItems:     []models.PartyItem{{Name: "Candles", UnitPrice: d(100), Quantity: 2}},
		}},
		Totals: models.OrderTotals{
			Subtotal:       d(1200),
			Tax:            d(60),
			Discount:       d(100),
			ConvenienceFee: d(20),
			Total:          d(1180),
		},
	}
}

func TestRender(t *testing.T) {
	out := string(Render(sampleOrder()))

	assert.Contains(t, out, "INVOICE #31")
	assert.Contains(t, out, "Status: DELIVERED")
	assert.Contains(t, out, "Black Forest (1kg)")
	assert.Contains(t, out, "+ Candles")
	assert.Contains(t, out, "200.00")
	assert.Contains(t, out, "-100.00")
	assert.Contains(t, out, "Convenience fee")
	assert.Regexp(t, `Total\s+1180\.00`, out)
}

func TestRender_OmitsZeroAdjustments(t *testing.T) {
	o := sampleOrder()
	o.Totals.Discount = decimal.Zero
	o.Totals.ConvenienceFee = decimal.Zero
	out := string(Render(o))

	assert.NotContains(t, out, "Discount")
	assert.NotContains(t, out, "Convenience fee")
}

type memStore struct {
	objects map[string][]byte
	err     error
}

func (m *memStore) PutObject(_ context.Context, key, _ string, body []byte) error {
	if m.err != nil {
		return m.err
	}
	m.objects[key] = body
	return nil
}

func TestArchive(t *testing.T) {
	store := &memStore{objects: map[string][]byte{}}
	a := NewArchiver(store, "https://cdn.example.com/", logger.Discard())

	url, err := a.Archive(context.Background(), "u-1", sampleOrder())
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/invoices/u-1/order-31.txt", url)
	assert.Equal(t, Render(sampleOrder()), store.objects["invoices/u-1/order-31.txt"])

	store.err = errors.New("bucket unavailable")
	_, err = a.Archive(context.Background(), "u-1", sampleOrder())
	assert.Error(t, err)
}

func TestR2Store_PutObject(t *testing.T) {
	var (
		mu     sync.Mutex
		method string
		path   string
		body   string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		mu.Lock()
		method, path, body = r.Method, r.URL.Path, string(data)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	store, err := NewR2Store(context.Background(), &config.Invoices{
		Endpoint:  srv.URL,
		Region:    "auto",
		Bucket:    "invoices-test",
		AccessKey: "key",
		SecretKey: "secret",
	})
	require.NoError(t, err)

	require.NoError(t, store.PutObject(context.Background(), "invoices/u-1/order-1.txt", contentType, []byte("hello")))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, http.MethodPut, method)
	assert.Equal(t, "/invoices-test/invoices/u-1/order-1.txt", path)
	assert.True(t, strings.Contains(body, "hello"))
}

func TestNewR2Store_RequiresBucket(t *testing.T) {
	_, err := NewR2Store(context.Background(), &config.Invoices{Endpoint: "http://localhost"})
	assert.Error(t, err)
}
