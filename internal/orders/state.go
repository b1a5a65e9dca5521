// Package orders derives the cancellation state of fetched orders and drives the
// per-order countdowns shown on the order board.
package orders

import (
	"time"

	"bakery-storefront/pkg/models"
)

// CancellationWindow is how long after placement a PLACED order may be cancelled.
const CancellationWindow = 15 * time.Minute

type State string

const (
	PlacedCancellable State = "PLACED_CANCELLABLE"
	PlacedExpired     State = "PLACED_EXPIRED"
	Shipped           State = "SHIPPED"
	Delivered         State = "DELIVERED"
	Cancelled         State = "CANCELLED"
)

func (s State) Cancellable() bool {
	return s == PlacedCancellable
}

// Derive computes the state of o at now. A PLACED order is cancellable iff
// now - placedAt < CancellationWindow. Unknown statuses are treated as shipped.
func Derive(o models.Order, now time.Time) State {
	switch o.Status {
	case models.StatusPlaced:
		if now.Sub(o.PlacedAt) < CancellationWindow {
			return PlacedCancellable
		}
		return PlacedExpired
	case models.StatusDelivered:
		return Delivered
	case models.StatusCancelled:
		return Cancelled
	default:
		return Shipped
	}
}

// Deadline is the instant o stops being cancellable.
func Deadline(o models.Order) time.Time {
	return o.PlacedAt.Add(CancellationWindow)
}

// Remaining is the time left to cancel o, zero once the order is not cancellable.
func Remaining(o models.Order, now time.Time) time.Duration {
	if Derive(o, now) != PlacedCancellable {
		return 0
	}
	return Deadline(o).Sub(now)
}

// wholeSeconds rounds d up so that zero is only shown once the window has closed.
func wholeSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}
