package engine

import (
	"sync"
	"time"
)

// CancelFunc tears down a scheduled repeating callback. Safe to call more
// than once; after it returns the callback will not fire again.
type CancelFunc func()

// Clock abstracts time so the engine's repeating timers (the 1-second
// countdown and the autosave cadence) can be driven by a virtual clock in
// tests instead of wall-clock sleeps.
type Clock interface {
	Now() time.Time
	Schedule(interval time.Duration, fn func()) CancelFunc
}

// WallClock is the production Clock backed by time.Ticker.
type WallClock struct{}

func (WallClock) Now() time.Time { return time.Now() }

// Schedule runs fn every interval on a dedicated goroutine until cancelled.
// Callbacks for one schedule run sequentially; a slow callback coalesces
// missed ticks rather than stacking them.
func (WallClock) Schedule(interval time.Duration, fn func()) CancelFunc {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				select {
				case <-done:
					// Cancelled between tick delivery and execution.
					return
				default:
				}
				fn()
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			ticker.Stop()
			close(done)
		})
	}
}
