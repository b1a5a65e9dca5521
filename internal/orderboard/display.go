package orderboard

import (
	"fmt"
	"io"
	"sync"
	"text/tabwriter"
	"time"

	"bakery-storefront/internal/orders"
)

// console prints the board to a terminal. Countdown ticks are only printed
// while live, every 30 seconds and then each second of the last ten.
type console struct {
	w    io.Writer
	live bool
	mu   sync.Mutex
}

func newConsole(w io.Writer, live bool) *console {
	return &console{w: w, live: live}
}

func (c *console) Render(views []orders.View) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(views) == 0 {
		fmt.Fprintln(c.w, "You have no orders yet.")
		return
	}
	tw := tabwriter.NewWriter(c.w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ORDER\tPLACED\tSTATUS\tTOTAL\tCANCEL")
	for _, v := range views {
		cancel := "-"
		if v.State.Cancellable() {
			cancel = clock(v.Remaining) + " left"
		}
		fmt.Fprintf(tw, "#%d\t%s\t%s\t%s\t%s\n",
			v.Order.ID,
			v.Order.PlacedAt.Local().Format("02 Jan 15:04"),
			v.Order.Status,
			v.Order.Totals.Total.StringFixed(2),
			cancel,
		)
	}
	tw.Flush()
}

func (c *console) Tick(orderID int64, remaining time.Duration) {
	if !c.live {
		return
	}
	secs := int(remaining / time.Second)
	if secs%30 != 0 && secs > 10 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.w, "Order #%d: %s left to cancel\n", orderID, clock(remaining))
}

func (c *console) Expired(orderID int64) {
	if !c.live {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.w, "Order #%d can no longer be cancelled.\n", orderID)
}

// clock formats d as m:ss, rounding partial seconds up.
func clock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int((d + time.Second - 1) / time.Second)
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}
