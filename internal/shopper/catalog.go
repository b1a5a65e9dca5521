package shopper

import (
	"context"
	"flag"
	"fmt"
	"text/tabwriter"

	"bakery-storefront/internal/catalog"
	"bakery-storefront/internal/notify"
	"bakery-storefront/internal/pricing"
	"bakery-storefront/pkg/models"

	apperr "bakery-storefront/internal/xpkg/errors"

	"github.com/shopspring/decimal"
)

type catalogCmd struct {
	category string
	page     int
	size     int
	all      bool
	product  int64
	addons   bool

	search   string
	minPrice string
	maxPrice string
	onSale   bool
	sort     string

	query catalog.Query
}

func (c *catalogCmd) register(fs *flag.FlagSet) {
	fs.StringVar(&c.category, "category", "cakes", "Category to list")
	fs.IntVar(&c.page, "page", 0, "Page to list, starting at 0")
	fs.IntVar(&c.size, "size", 12, "Page size")
	fs.BoolVar(&c.all, "all", false, "List every page of the category")
	fs.Int64Var(&c.product, "product", 0, "Show one product by id")
	fs.BoolVar(&c.addons, "addons", false, "List the add-on catalog")
	fs.StringVar(&c.search, "search", "", "Only products whose name contains this text")
	fs.StringVar(&c.minPrice, "min-price", "", "Lowest price to show")
	fs.StringVar(&c.maxPrice, "max-price", "", "Highest price to show")
	fs.BoolVar(&c.onSale, "on-sale", false, "Only discounted products")
	fs.StringVar(&c.sort, "sort", "", "Order: price_asc | price_desc | name")
}

func (c *catalogCmd) validate() error {
	if c.page < 0 || c.size < 1 {
		return fmt.Errorf("page must be >= 0 and size >= 1: %w", apperr.ErrValidation)
	}
	q := catalog.Query{Search: c.search, OnSaleOnly: c.onSale, Sort: catalog.SortOrder(c.sort)}
	switch q.Sort {
	case catalog.SortNone, catalog.SortPriceAsc, catalog.SortPriceDesc, catalog.SortName:
	default:
		return fmt.Errorf("sort %q: %w", c.sort, apperr.ErrValidation)
	}
	var err error
	if q.MinPrice, err = parsePrice(c.minPrice); err != nil {
		return err
	}
	if q.MaxPrice, err = parsePrice(c.maxPrice); err != nil {
		return err
	}
	c.query = q
	return nil
}

func parsePrice(s string) (decimal.NullDecimal, error) {
	if s == "" {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		return decimal.NullDecimal{}, fmt.Errorf("price %q: %w", s, apperr.ErrValidation)
	}
	return decimal.NewNullDecimal(d), nil
}

func (c *catalogCmd) run(ctx context.Context, a *App) error {
	switch {
	case c.product > 0:
		return c.showProduct(ctx, a)
	case c.addons:
		return c.showAddons(ctx, a)
	default:
		return c.listCategory(ctx, a)
	}
}

func (c *catalogCmd) listCategory(ctx context.Context, a *App) error {
	var products []models.Product
	if c.all {
		err := a.Catalog.Walk(ctx, c.category, c.size, func(p models.Product) error {
			products = append(products, p)
			return nil
		})
		if err != nil {
			notify.Failure(a.Notifier, "Couldn't load products. Try again.", err)
			return err
		}
	} else {
		page, err := a.Catalog.ListCategory(ctx, c.category, c.page, c.size)
		if err != nil {
			notify.Failure(a.Notifier, "Couldn't load products. Try again.", err)
			return err
		}
		products = page.Items
		defer fmt.Fprintf(a.Out, "page %d of %d\n", page.Page+1, max(page.TotalPages, 1))
	}

	products = catalog.Filter(products, c.query)
	if len(products) == 0 {
		fmt.Fprintln(a.Out, "No products found.")
		return nil
	}

	tw := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tPRICE\tWAS\tOFF")
	for _, p := range products {
		was, off := "", ""
		if p.OriginalPrice.Valid {
			if pct := pricing.DiscountPercent(p.OriginalPrice.Decimal, p.Price); pct > 0 {
				was = p.OriginalPrice.Decimal.StringFixed(2)
				off = fmt.Sprintf("%d%%", pct)
			}
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", p.ID, p.Name, p.Price.StringFixed(2), was, off)
	}
	return tw.Flush()
}

func (c *catalogCmd) showProduct(ctx context.Context, a *App) error {
	d, err := a.Catalog.Product(ctx, c.product)
	if err != nil {
		notify.Failure(a.Notifier, "", err)
		return err
	}
	if d.Stale {
		notify.Info(a.Notifier, "You're offline. Showing the last saved details.")
	}

	p := d.Product
	fmt.Fprintf(a.Out, "%s (#%d)\n", p.Name, p.ID)
	fmt.Fprintf(a.Out, "Category: %s\n", p.Category)
	fmt.Fprintf(a.Out, "Price:    %s", p.Price.StringFixed(2))
	if p.OriginalPrice.Valid {
		if pct := pricing.DiscountPercent(p.OriginalPrice.Decimal, p.Price); pct > 0 {
			fmt.Fprintf(a.Out, " (was %s, %d%% off)", p.OriginalPrice.Decimal.StringFixed(2), pct)
		}
	}
	fmt.Fprintln(a.Out)
	for _, s := range p.Sizes {
		fmt.Fprintf(a.Out, "  %-8s %s\n", s.Value, s.Price.StringFixed(2))
	}
	if err := a.Wishlist.Load(ctx); err == nil && a.Wishlist.Contains(p.ID) {
		fmt.Fprintln(a.Out, "In your wishlist")
	}
	return nil
}

func (c *catalogCmd) showAddons(ctx context.Context, a *App) error {
	idx, err := a.Catalog.Addons(ctx)
	if err != nil {
		notify.Failure(a.Notifier, "Couldn't load add-ons. Try again.", err)
		return err
	}
	tw := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tKEY\tNAME\tPRICE")
	for _, d := range idx.Definitions() {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", d.ID, d.ItemKey, d.Name, d.Price.StringFixed(2))
	}
	return tw.Flush()
}
