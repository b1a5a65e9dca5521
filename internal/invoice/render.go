// Package invoice prints order invoices and archives them to object storage.
package invoice

import (
	"bytes"
	"fmt"
	"text/tabwriter"
	"time"

	"bakery-storefront/pkg/models"

	"github.com/shopspring/decimal"
)

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// Render prints o as a plain-text invoice: one row per item, its add-ons indented
// underneath, then the order totals as the backend reported them.
func Render(o models.Order) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "INVOICE #%d\n", o.ID)
	fmt.Fprintf(&buf, "Placed: %s\n", o.PlacedAt.UTC().Format(time.RFC1123))
	fmt.Fprintf(&buf, "Status: %s\n\n", o.Status)

	tw := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "Item\tQty\tUnit\tAmount\t")
	for _, it := range o.Items {
		name := it.ProductName
		if it.SelectedWeight != "" {
			name = fmt.Sprintf("%s (%s)", name, it.SelectedWeight)
		}
		subtotal := it.Subtotal
		if subtotal.IsZero() {
			subtotal = it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t\n", name, it.Quantity, money(it.UnitPrice), money(subtotal))
		for _, p := range it.PartyItems {
			amount := p.UnitPrice.Mul(decimal.NewFromInt(int64(p.Quantity)))
			fmt.Fprintf(tw, "  + %s\t%d\t%s\t%s\t\n", p.Name, p.Quantity, money(p.UnitPrice), money(amount))
		}
	}
	fmt.Fprintln(tw, "\t\t\t\t")
	fmt.Fprintf(tw, "Subtotal\t\t\t%s\t\n", money(o.Totals.Subtotal))
	fmt.Fprintf(tw, "Tax\t\t\t%s\t\n", money(o.Totals.Tax))
	if o.Totals.Discount.IsPositive() {
		fmt.Fprintf(tw, "Discount\t\t\t-%s\t\n", money(o.Totals.Discount))
	}
	if o.Totals.ConvenienceFee.IsPositive() {
		fmt.Fprintf(tw, "Convenience fee\t\t\t%s\t\n", money(o.Totals.ConvenienceFee))
	}
	fmt.Fprintf(tw, "Total\t\t\t%s\t\n", money(o.Totals.Total))
	_ = tw.Flush()

	return buf.Bytes()
}
