package shopper

import (
	"context"
	"flag"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"bakery-storefront/internal/cart"
	"bakery-storefront/internal/notify"
	"bakery-storefront/pkg/models"

	apperr "bakery-storefront/internal/xpkg/errors"
)

const stepperWait = 300 * time.Millisecond

// addonFlag collects repeated -addon key=count selections.
type addonFlag map[string]int

func (f addonFlag) String() string {
	parts := make([]string, 0, len(f))
	for k, v := range f {
		parts = append(parts, fmt.Sprintf("%s=%d", k, v))
	}
	return strings.Join(parts, ",")
}

func (f addonFlag) Set(s string) error {
	key, count, found := strings.Cut(s, "=")
	n := 1
	if found {
		var err error
		if n, err = strconv.Atoi(count); err != nil || n < 0 {
			return fmt.Errorf("add-on count %q: %w", count, apperr.ErrValidation)
		}
	}
	if key == "" {
		return fmt.Errorf("add-on key is empty: %w", apperr.ErrValidation)
	}
	f[key] += n
	return nil
}

type cartCmd struct {
	action   string
	id       int64
	itemType string
	size     string
	qty      int
	steps    string
	addons   addonFlag

	quantities []int
}

func (c *cartCmd) register(fs *flag.FlagSet) {
	c.addons = addonFlag{}
	fs.StringVar(&c.action, "action", "list", "list | add | set | remove | clear")
	fs.Int64Var(&c.id, "id", 0, "Product or snack id")
	fs.StringVar(&c.itemType, "type", string(models.ItemProduct), "PRODUCT | SNACK")
	fs.StringVar(&c.size, "size", "", "Size variant, e.g. 1kg")
	fs.IntVar(&c.qty, "qty", 1, "Quantity to add, or the new quantity for set")
	fs.StringVar(&c.steps, "steps", "", "Comma separated quantities applied in quick succession with set")
	fs.Var(c.addons, "addon", "Add-on selection key=count per unit, repeatable")
}

func (c *cartCmd) validate() error {
	c.itemType = strings.ToUpper(c.itemType)
	switch c.action {
	case "list", "clear":
		return nil
	case "add", "set", "remove":
	default:
		return fmt.Errorf("action %q: %w", c.action, apperr.ErrValidation)
	}
	if c.id <= 0 {
		return fmt.Errorf("-id is required for %s: %w", c.action, apperr.ErrValidation)
	}
	if !models.ItemType(c.itemType).Valid() {
		return fmt.Errorf("type %q: %w", c.itemType, apperr.ErrValidation)
	}
	if c.action == "set" {
		c.quantities = []int{c.qty}
		if c.steps != "" {
			c.quantities = c.quantities[:0]
			for _, s := range strings.Split(c.steps, ",") {
				n, err := strconv.Atoi(strings.TrimSpace(s))
				if err != nil || n < 0 {
					return fmt.Errorf("step %q: %w", s, apperr.ErrValidation)
				}
				c.quantities = append(c.quantities, n)
			}
		}
	}
	return nil
}

func (c *cartCmd) run(ctx context.Context, a *App) error {
	if err := a.Cart.Load(ctx); err != nil {
		notify.Failure(a.Notifier, "Couldn't load your cart.", err)
		return err
	}

	var err error
	switch c.action {
	case "add":
		err = c.add(ctx, a)
	case "set":
		err = c.set(ctx, a)
	case "remove":
		var key models.CartLineKey
		if key, err = c.lineKey(a); err == nil {
			err = a.Cart.Remove(ctx, key)
		}
	case "clear":
		err = a.Cart.Clear(ctx)
	}
	if err != nil {
		return err
	}
	return printCart(ctx, a)
}

func (c *cartCmd) add(ctx context.Context, a *App) error {
	d, err := a.Catalog.Product(ctx, c.id)
	if err != nil {
		notify.Failure(a.Notifier, "", err)
		return err
	}
	size := c.size
	if size == "" {
		size = "regular"
		if len(d.Product.Sizes) > 0 {
			size = d.Product.Sizes[0].Value
		}
	}
	unit, ok := d.Product.PriceFor(size)
	if !ok {
		err := fmt.Errorf("size %q for product %d: %w", size, c.id, apperr.ErrValidation)
		notify.Failure(a.Notifier, "That size isn't available.", err)
		return err
	}

	idx, err := a.Catalog.Addons(ctx)
	if err != nil && len(c.addons) > 0 {
		notify.Failure(a.Notifier, "Couldn't load add-ons. Try again.", err)
		return err
	}
	preview, err := a.Pricing.ComputeLineTotal(unit, c.qty, c.addons, idx)
	if err != nil {
		notify.Failure(a.Notifier, "", err)
		return err
	}

	addons := make([]models.AddonQty, 0, len(c.addons))
	for _, line := range preview.Addons {
		def, ok := idx.ByKey(line.Key)
		if !ok {
			notify.Info(a.Notifier, fmt.Sprintf("Add-on %q is not available and was left out.", line.Key))
			continue
		}
		addons = append(addons, models.AddonQty{ID: def.ID, Quantity: line.PerUnit})
	}

	key := models.CartLineKey{ItemID: c.id, ItemType: models.ItemType(c.itemType), Size: size}
	if err := a.Cart.AddOrIncrement(ctx, key, unit, addons, c.qty); err != nil {
		return err
	}
	fmt.Fprintf(a.Out, "Added %d x %s (%s): %s\n", c.qty, d.Product.Name, size, preview.Total.StringFixed(2))
	return nil
}

// set feeds every requested quantity through a Stepper so rapid changes reach
// the backend as a single update.
func (c *cartCmd) set(ctx context.Context, a *App) error {
	key, err := c.lineKey(a)
	if err != nil {
		return err
	}

	var lastErr error
	st := cart.NewStepper(ctx, a.Cart, stepperWait, func(_ models.CartLineKey, err error) {
		lastErr = err
	})
	for _, q := range c.quantities {
		st.Set(key, q)
	}
	st.Flush()
	st.Stop()
	return lastErr
}

// lineKey finds the cart line the flags refer to. Without -size the only line
// for the id is used.
func (c *cartCmd) lineKey(a *App) (models.CartLineKey, error) {
	itemType := models.ItemType(c.itemType)
	if c.size != "" {
		return models.CartLineKey{ItemID: c.id, ItemType: itemType, Size: c.size}, nil
	}
	var found []models.CartLineKey
	for _, l := range a.Cart.List() {
		if l.Key.ItemID == c.id && l.Key.ItemType == itemType {
			found = append(found, l.Key)
		}
	}
	switch len(found) {
	case 1:
		return found[0], nil
	case 0:
		err := fmt.Errorf("%s %d is not in the cart: %w", itemType, c.id, apperr.ErrNotFound)
		notify.Failure(a.Notifier, "That item isn't in your cart.", err)
		return models.CartLineKey{}, err
	default:
		err := fmt.Errorf("%s %d has %d sizes in the cart, pass -size: %w", itemType, c.id, len(found), apperr.ErrValidation)
		notify.Failure(a.Notifier, "Pick a size for that item.", err)
		return models.CartLineKey{}, err
	}
}

func printCart(ctx context.Context, a *App) error {
	lines := a.Cart.List()
	if len(lines) == 0 {
		fmt.Fprintln(a.Out, "Your cart is empty.")
		return nil
	}

	// Prices still print without the add-on catalog; add-ons then count as zero.
	idx, _ := a.Catalog.Addons(ctx)

	tw := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "ITEM\tTYPE\tSIZE\tQTY\tUNIT\tADD-ONS\tTOTAL\t")
	for _, l := range lines {
		lt, err := a.Pricing.PriceLine(l, idx)
		if err != nil {
			return err
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\t%s\t%s\t\n",
			l.Key.ItemID, l.Key.ItemType, l.Key.Size, l.Quantity,
			l.UnitPrice.StringFixed(2), lt.AddonsTotal.StringFixed(2), lt.Total.StringFixed(2))
	}
	totals, err := a.Pricing.CartTotals(lines, idx)
	if err != nil {
		return err
	}
	fmt.Fprintf(tw, "\t\t\t\t\tTotal\t%s\t\n", totals.Total.StringFixed(2))
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(a.Out, "%d items\n", a.Cart.Count())
	return nil
}
