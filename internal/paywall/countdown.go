package paywall

import (
	"sync"
	"time"
)

// AggregateRetryAfter derives the quota widget's countdown seed from a set of
// evaluations: the largest known retry-after among rate-blocked features.
// The second return is false when no evaluation carries a known wait.
func AggregateRetryAfter(evs ...Evaluation) (int, bool) {
	max, found := 0, false
	for _, ev := range evs {
		if sec, ok := ev.RetryAfterSeconds(); ok && (!found || sec > max) {
			max, found = sec, true
		}
	}
	return max, found
}

// Countdown drives the quota widget's once-per-second tick. A Reset replaces
// the previous run: the old ticker is stopped before the new one starts, so
// ticks are never stacked and a torn-down widget observes no further
// decrements. The zero interval defaults to one second.
type Countdown struct {
	mu        sync.Mutex
	interval  time.Duration
	remaining int
	stop      chan struct{}
}

// CountdownOption configures a Countdown.
type CountdownOption func(*Countdown)

// WithTickInterval overrides the 1s tick, for tests.
func WithTickInterval(d time.Duration) CountdownOption {
	return func(c *Countdown) { c.interval = d }
}

// NewCountdown creates a stopped countdown.
func NewCountdown(opts ...CountdownOption) *Countdown {
	c := &Countdown{interval: time.Second}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Reset cancels any previous run and starts a new countdown from seconds.
// The returned channel receives the remaining seconds after each tick and is
// closed when the countdown reaches zero or is replaced or stopped.
// A non-positive seed starts nothing and returns a closed channel.
func (c *Countdown) Reset(seconds int) <-chan int {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopLocked()
	c.remaining = seconds

	ch := make(chan int)
	if seconds <= 0 {
		close(ch)
		return ch
	}

	stop := make(chan struct{})
	c.stop = stop
	go c.run(seconds, ch, stop)
	return ch
}

// Stop cancels the current run, if any. Safe to call repeatedly.
func (c *Countdown) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
}

// Remaining returns the latest remaining value of the current run.
func (c *Countdown) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

func (c *Countdown) stopLocked() {
	if c.stop != nil {
		close(c.stop)
		c.stop = nil
	}
	c.remaining = 0
}

func (c *Countdown) run(remaining int, ch chan int, stop chan struct{}) {
	t := time.NewTicker(c.interval)
	defer t.Stop()
	defer close(ch)

	for remaining > 0 {
		select {
		case <-stop:
			return
		case <-t.C:
			remaining--
			c.mu.Lock()
			if c.stop == stop {
				c.remaining = remaining
			}
			c.mu.Unlock()
			select {
			case ch <- remaining:
			case <-stop:
				return
			}
		}
	}
}
