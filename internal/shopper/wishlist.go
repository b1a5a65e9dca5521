package shopper

import (
	"context"
	"flag"
	"fmt"
	"text/tabwriter"

	"bakery-storefront/internal/notify"
	"bakery-storefront/pkg/models"

	apperr "bakery-storefront/internal/xpkg/errors"
)

type wishlistCmd struct {
	action string
	id     int64
	size   string
}

func (c *wishlistCmd) register(fs *flag.FlagSet) {
	fs.StringVar(&c.action, "action", "list", "list | toggle | clear")
	fs.Int64Var(&c.id, "id", 0, "Product id to toggle")
	fs.StringVar(&c.size, "size", "", "Size variant to remember with the product")
}

func (c *wishlistCmd) validate() error {
	switch c.action {
	case "list", "clear":
		return nil
	case "toggle":
		if c.id <= 0 {
			return fmt.Errorf("-id is required for toggle: %w", apperr.ErrValidation)
		}
		return nil
	default:
		return fmt.Errorf("action %q: %w", c.action, apperr.ErrValidation)
	}
}

func (c *wishlistCmd) run(ctx context.Context, a *App) error {
	if err := a.Wishlist.Load(ctx); err != nil {
		notify.Failure(a.Notifier, "Couldn't load your wishlist.", err)
		return err
	}

	switch c.action {
	case "toggle":
		if _, err := a.Wishlist.Toggle(ctx, c.id, c.snapshot(ctx, a)); err != nil {
			return err
		}
	case "clear":
		if err := a.Wishlist.Clear(ctx); err != nil {
			return err
		}
	}
	return printWishlist(a)
}

// snapshot captures what the wishlist shows for the product. Removing needs no
// snapshot, and a catalog failure still lets the id be saved.
func (c *wishlistCmd) snapshot(ctx context.Context, a *App) models.WishlistEntry {
	entry := models.WishlistEntry{ProductID: c.id, Size: c.size}
	if a.Wishlist.Contains(c.id) {
		return entry
	}
	d, err := a.Catalog.Product(ctx, c.id)
	if err != nil {
		return entry
	}
	entry.Name = d.Product.Name
	entry.Image = d.Product.Image
	entry.Price = d.Product.Price
	if p, ok := d.Product.PriceFor(c.size); ok {
		entry.Price = p
	}
	return entry
}

func printWishlist(a *App) error {
	entries := a.Wishlist.List()
	if len(entries) == 0 {
		fmt.Fprintln(a.Out, "Your wishlist is empty.")
		return nil
	}
	tw := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tSIZE\tPRICE")
	for _, e := range entries {
		name := e.Name
		if name == "" {
			name = "-"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", e.ProductID, name, e.Size, e.Price.StringFixed(2))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(a.Out, "%d saved\n", a.Wishlist.Count())
	return nil
}
