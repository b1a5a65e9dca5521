package orders

import (
	"sync"
	"time"
)

// fakeClock only moves when Advance is called. Each tick is handed over
// synchronously, so once Advance returns every live ticker has received it.
type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*fakeTicker
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) NewTicker(d time.Duration) Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTicker{
		c:      make(chan time.Time),
		period: d,
		next:   c.now.Add(d),
		done:   make(chan struct{}),
	}
	c.tickers = append(c.tickers, t)
	return t
}

// Advance moves time forward by d in one step and fires every due ticker once.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	now := c.now
	var due []*fakeTicker
	for _, t := range c.tickers {
		if !t.next.After(now) {
			t.next = now.Add(t.period)
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	for _, t := range due {
		select {
		case t.c <- now:
		case <-t.done:
		}
	}
}

type fakeTicker struct {
	c      chan time.Time
	period time.Duration
	next   time.Time

	once sync.Once
	done chan struct{}
}

func (t *fakeTicker) C() <-chan time.Time { return t.c }

func (t *fakeTicker) Stop() {
	t.once.Do(func() { close(t.done) })
}
