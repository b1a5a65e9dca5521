package orders

import (
	"sync"
	"sync/atomic"
	"time"
)

// Tick is one countdown update. The last tick of every countdown has Expired set
// and Seconds zero; no tick follows it.
type Tick struct {
	OrderID int64
	Seconds int
	Expired bool
}

// Countdown ticks once per second until deadline. It is an explicit handle: the
// owner calls Stop when the order leaves the view.
type Countdown struct {
	orderID  int64
	deadline time.Time
	clock    Clock
	ticker   Ticker
	emit     func(Tick)

	stopped  atomic.Bool
	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// StartCountdown emits the current remaining time immediately, then once per
// second. Seconds never increase between ticks and are never negative.
func StartCountdown(clock Clock, orderID int64, deadline time.Time, emit func(Tick)) *Countdown {
	c := &Countdown{
		orderID:  orderID,
		deadline: deadline,
		clock:    clock,
		ticker:   clock.NewTicker(time.Second),
		emit:     emit,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go c.run()
	return c
}

func (c *Countdown) run() {
	defer close(c.done)
	defer c.ticker.Stop()

	last := wholeSeconds(c.deadline.Sub(c.clock.Now()))
	if c.send(last) {
		return
	}
	for {
		select {
		case <-c.stop:
			return
		case <-c.ticker.C():
			secs := wholeSeconds(c.deadline.Sub(c.clock.Now()))
			if secs > last {
				secs = last
			}
			last = secs
			if c.send(secs) {
				return
			}
		}
	}
}

// send emits secs and reports whether the countdown is finished.
func (c *Countdown) send(secs int) bool {
	if c.stopped.Load() {
		return true
	}
	expired := secs == 0
	c.emit(Tick{OrderID: c.orderID, Seconds: secs, Expired: expired})
	return expired
}

// Stop ends the countdown; a tick already being delivered still completes.
// Stop may be called more than once and from inside the emit callback.
func (c *Countdown) Stop() {
	c.stopOnce.Do(func() {
		c.stopped.Store(true)
		close(c.stop)
	})
}

// Done is closed once the countdown goroutine has exited.
func (c *Countdown) Done() <-chan struct{} {
	return c.done
}

func (c *Countdown) OrderID() int64 {
	return c.orderID
}
