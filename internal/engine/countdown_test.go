package engine

import (
	"testing"
	"time"
)

func TestCountdownMonotonicDecrement(t *testing.T) {
	clock := newFakeClock()
	var ticks []int
	cd := NewCountdown(10, func(r int) { ticks = append(ticks, r) }, nil)
	cd.Start(clock)

	clock.Advance(4 * time.Second)

	want := []int{9, 8, 7, 6}
	if len(ticks) != len(want) {
		t.Fatalf("got %d ticks, want %d", len(ticks), len(want))
	}
	for i, r := range ticks {
		if r != want[i] {
			t.Errorf("tick %d: remaining = %d, want %d", i, r, want[i])
		}
	}
	if got := cd.Remaining(); got != 6 {
		t.Errorf("Remaining() = %d, want 6", got)
	}
}

func TestCountdownClampsAtZeroAndStops(t *testing.T) {
	clock := newFakeClock()
	var ticks []int
	expiries := 0
	cd := NewCountdown(3, func(r int) { ticks = append(ticks, r) }, func() { expiries++ })
	cd.Start(clock)

	// Advance far past expiry: no tick may go below zero and the schedule
	// must have been cancelled at zero.
	clock.Advance(2 * time.Minute)

	want := []int{2, 1, 0}
	if len(ticks) != len(want) {
		t.Fatalf("got ticks %v, want %v", ticks, want)
	}
	for i, r := range ticks {
		if r != want[i] {
			t.Errorf("tick %d: remaining = %d, want %d", i, r, want[i])
		}
	}
	if expiries != 1 {
		t.Errorf("expiry fired %d times, want exactly 1", expiries)
	}
	if got := cd.Remaining(); got != 0 {
		t.Errorf("Remaining() = %d, want 0", got)
	}
}

func TestCountdownExpiresAtMostOnceAcrossRestartChurn(t *testing.T) {
	clock := newFakeClock()
	expiries := 0
	cd := NewCountdown(2, nil, func() { expiries++ })

	// Re-mount churn: each Start must tear down the previous interval, so
	// repeated Starts never stack tickers.
	cd.Start(clock)
	cd.Start(clock)
	cd.Start(clock)

	clock.Advance(10 * time.Second)

	if expiries != 1 {
		t.Fatalf("expiry fired %d times under restart churn, want exactly 1", expiries)
	}
	if got := cd.Remaining(); got != 0 {
		t.Errorf("Remaining() = %d, want 0", got)
	}

	// A Start after expiry must not revive the countdown.
	cd.Start(clock)
	clock.Advance(10 * time.Second)
	if expiries != 1 {
		t.Errorf("expiry re-fired after restart, total %d", expiries)
	}
}

func TestCountdownStopFreezesRemaining(t *testing.T) {
	clock := newFakeClock()
	cd := NewCountdown(30, nil, func() { t.Error("expiry fired after Stop") })
	cd.Start(clock)

	clock.Advance(5 * time.Second)
	cd.Stop()
	clock.Advance(5 * time.Minute)

	if got := cd.Remaining(); got != 25 {
		t.Errorf("Remaining() = %d, want frozen 25", got)
	}
}

func TestCountdownZeroInitialExpiresOnFirstTick(t *testing.T) {
	clock := newFakeClock()
	expiries := 0
	cd := NewCountdown(0, nil, func() { expiries++ })
	cd.Start(clock)

	clock.Advance(3 * time.Second)

	if expiries != 1 {
		t.Fatalf("expiry fired %d times, want 1", expiries)
	}
}
