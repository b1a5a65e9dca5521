// Package catalog pages through backend product listings and resolves product
// details and the add-on catalog for pricing.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bakery-storefront/internal/localstate"
	"bakery-storefront/internal/xpkg/logger"
	"bakery-storefront/pkg/models"

	apperr "bakery-storefront/internal/xpkg/errors"
)

const DefaultDetailTimeout = 8 * time.Second

type ICatalogAPI interface {
	ProductsByCategory(ctx context.Context, category string, page, size int) (models.ProductPage, error)
	Product(ctx context.Context, id int64) (models.Product, error)
	Addons(ctx context.Context) ([]models.AddonDefinition, error)
}

// Detail is a product detail lookup. Stale is set when the backend could not be
// reached and the last cached snapshot was served instead.
type Detail struct {
	Product models.Product
	Stale   bool
}

type Fetcher struct {
	api           ICatalogAPI
	cache         localstate.IStore
	detailTimeout time.Duration
	mylog         logger.Logger
}

// NewFetcher builds a fetcher. cache may be nil, which disables the offline
// snapshot fallback.
func NewFetcher(api ICatalogAPI, cache localstate.IStore, detailTimeout time.Duration, mylog logger.Logger) *Fetcher {
	if detailTimeout <= 0 {
		detailTimeout = DefaultDetailTimeout
	}
	return &Fetcher{
		api:           api,
		cache:         cache,
		detailTimeout: detailTimeout,
		mylog:         mylog,
	}
}

func (f *Fetcher) ListCategory(ctx context.Context, category string, page, size int) (models.ProductPage, error) {
	if category == "" || page < 0 || size < 1 {
		return models.ProductPage{}, fmt.Errorf("category %q page %d size %d: %w", category, page, size, apperr.ErrValidation)
	}
	p, err := f.api.ProductsByCategory(ctx, category, page, size)
	if err != nil {
		f.mylog.Action("catalog_list").Error("Failed to list category", err, "category", category, "page", page)
		return models.ProductPage{}, err
	}
	if p.Items == nil {
		p.Items = []models.Product{}
	}
	return p, nil
}

// Walk calls fn for every product of category, fetching size products per page.
// It stops at the last page, on the first empty page, or when fn returns an error.
func (f *Fetcher) Walk(ctx context.Context, category string, size int, fn func(models.Product) error) error {
	for page := 0; ; page++ {
		p, err := f.ListCategory(ctx, category, page, size)
		if err != nil {
			return err
		}
		for _, product := range p.Items {
			if err := fn(product); err != nil {
				return err
			}
		}
		if len(p.Items) == 0 || page+1 >= p.TotalPages {
			return nil
		}
	}
}

// Product fetches one product within the detail timeout. A successful fetch is
// cached; a network failure falls back to the cached snapshot when there is one.
func (f *Fetcher) Product(ctx context.Context, id int64) (Detail, error) {
	mylog := f.mylog.Action("catalog_product").With("product_id", id)
	if id <= 0 {
		return Detail{}, fmt.Errorf("product id %d: %w", id, apperr.ErrValidation)
	}

	fetchCtx, cancel := context.WithTimeout(ctx, f.detailTimeout)
	defer cancel()

	p, err := f.api.Product(fetchCtx, id)
	if err == nil {
		if f.cache != nil {
			if err := localstate.SetJSON(ctx, f.cache, localstate.ProductKey(id), p); err != nil {
				mylog.Warn("Failed to cache product snapshot", "reason", err.Error())
			}
		}
		return Detail{Product: p}, nil
	}

	if errors.Is(fetchCtx.Err(), context.DeadlineExceeded) && !errors.Is(err, apperr.ErrNetwork) {
		err = fmt.Errorf("product %d: %w: %w", id, apperr.ErrNetwork, err)
	}
	if !errors.Is(err, apperr.ErrNetwork) || f.cache == nil {
		mylog.Error("Failed to fetch product", err)
		return Detail{}, err
	}

	var cached models.Product
	found, cacheErr := localstate.GetJSON(ctx, f.cache, localstate.ProductKey(id), &cached)
	if cacheErr != nil || !found {
		mylog.Error("Failed to fetch product and no snapshot is cached", err)
		return Detail{}, err
	}
	mylog.Warn("Serving cached product snapshot", "reason", err.Error())
	return Detail{Product: cached, Stale: true}, nil
}

func (f *Fetcher) Addons(ctx context.Context) (*models.AddonIndex, error) {
	defs, err := f.api.Addons(ctx)
	if err != nil {
		f.mylog.Action("catalog_addons").Error("Failed to load add-on catalog", err)
		return nil, err
	}
	return models.NewAddonIndex(defs), nil
}
