package engine

import (
	"sync"
	"time"
)

// tickInterval is the countdown resolution. One tick equals one second of
// exam time.
const tickInterval = time.Second

// Countdown decrements a session's remaining seconds once per clock tick.
// When the count reaches zero it clamps, stops ticking, and invokes the
// expiry callback synchronously on that same tick — before any further tick
// can be observed. The expiry callback fires at most once for a Countdown's
// lifetime, even across Start churn, because the fired latch survives
// re-Start and Start tears down the previous schedule first.
type Countdown struct {
	mu        sync.Mutex
	remaining int
	fired     bool
	stopped   bool
	cancel    CancelFunc

	onTick   func(remaining int)
	onExpire func()
}

// NewCountdown creates a countdown starting from initialSeconds. Either
// callback may be nil. An initial value <= 0 expires on the first tick.
func NewCountdown(initialSeconds int, onTick func(int), onExpire func()) *Countdown {
	if initialSeconds < 0 {
		initialSeconds = 0
	}
	return &Countdown{
		remaining: initialSeconds,
		onTick:    onTick,
		onExpire:  onExpire,
	}
}

// Start begins 1-second ticking on the given clock. Any previously
// established interval is torn down first so re-mount churn cannot produce
// two live tickers against the same countdown.
func (c *Countdown) Start(clock Clock) {
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	if c.stopped || c.fired {
		c.mu.Unlock()
		return
	}
	c.cancel = clock.Schedule(tickInterval, c.tick)
	c.mu.Unlock()
}

// Remaining returns the current remaining seconds.
func (c *Countdown) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

// Stop freezes the countdown and cancels its schedule. Remaining keeps its
// last value. Idempotent.
func (c *Countdown) Stop() {
	c.mu.Lock()
	c.stopped = true
	cancel := c.cancel
	c.cancel = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

func (c *Countdown) tick() {
	c.mu.Lock()
	if c.stopped || c.fired {
		c.mu.Unlock()
		return
	}

	c.remaining--
	if c.remaining > 0 {
		remaining := c.remaining
		onTick := c.onTick
		c.mu.Unlock()
		if onTick != nil {
			onTick(remaining)
		}
		return
	}

	// Hit zero: clamp, latch, cancel the schedule, then notify.
	c.remaining = 0
	c.fired = true
	cancel := c.cancel
	c.cancel = nil
	onTick := c.onTick
	onExpire := c.onExpire
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if onTick != nil {
		onTick(0)
	}
	if onExpire != nil {
		onExpire()
	}
}
