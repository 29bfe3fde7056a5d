package engine

import (
	"errors"
	"testing"
	"time"
)

func autosaverForTest(sink *fakeSink, onUnauthorized func()) (*Autosaver, *fakeClock) {
	clock := newFakeClock()
	snap := func() (Snapshot, bool) {
		return Snapshot{
			QuestionIndex:    2,
			Answers:          map[string]string{"q1": "A"},
			RemainingSeconds: 100,
		}, true
	}
	a := NewAutosaver("sess-1", sink, snap, 30*time.Second, nopLogger(), onUnauthorized)
	a.Start(clock)
	return a, clock
}

func TestAutosaverSavesOnCadence(t *testing.T) {
	sink := &fakeSink{}
	_, clock := autosaverForTest(sink, nil)

	clock.Advance(29 * time.Second)
	if sink.saveCount() != 0 {
		t.Fatalf("saved before the interval elapsed")
	}

	clock.Advance(1 * time.Second)
	if sink.saveCount() != 1 {
		t.Fatalf("saveCount = %d after one interval, want 1", sink.saveCount())
	}

	clock.Advance(90 * time.Second)
	if sink.saveCount() != 4 {
		t.Fatalf("saveCount = %d after four intervals, want 4", sink.saveCount())
	}
}

func TestAutosaverSkipsTickWhileSaveInFlight(t *testing.T) {
	sink := &fakeSink{}
	a, clock := autosaverForTest(sink, nil)

	// Simulate the next tick arriving while the first save is still in
	// flight: the nested tick must be skipped, not queued and not run
	// concurrently.
	reentered := false
	sink.onSave = func() {
		if !reentered {
			reentered = true
			a.tick()
		}
	}

	clock.Advance(30 * time.Second)
	if sink.saveCount() != 1 {
		t.Fatalf("saveCount = %d, want 1 (nested tick must be skipped)", sink.saveCount())
	}

	// The skipped tick must not wedge the autosaver: the next scheduled
	// tick saves normally.
	sink.onSave = nil
	clock.Advance(30 * time.Second)
	if sink.saveCount() != 2 {
		t.Fatalf("saveCount = %d after recovery tick, want 2", sink.saveCount())
	}
}

func TestAutosaverTransientFailureRetriesNextTick(t *testing.T) {
	sink := &fakeSink{saveErr: errors.New("connection reset")}
	_, clock := autosaverForTest(sink, nil)

	clock.Advance(30 * time.Second)
	if sink.saveCount() != 0 {
		t.Fatalf("failed save was recorded")
	}

	// Clearing the fault lets the next scheduled tick act as the retry.
	sink.mu.Lock()
	sink.saveErr = nil
	sink.mu.Unlock()

	clock.Advance(30 * time.Second)
	if sink.saveCount() != 1 {
		t.Fatalf("saveCount = %d after fault cleared, want 1", sink.saveCount())
	}
}

func TestAutosaverStopsOnUnauthorized(t *testing.T) {
	sink := &fakeSink{saveErr: ErrUnauthorized}
	reauth := 0
	a, clock := autosaverForTest(sink, func() { reauth++ })

	clock.Advance(30 * time.Second)
	if reauth != 1 {
		t.Fatalf("reauth callback fired %d times, want 1", reauth)
	}

	// No further attempts, even after the fault would have cleared.
	sink.mu.Lock()
	sink.saveErr = nil
	sink.mu.Unlock()

	clock.Advance(5 * time.Minute)
	if sink.saveCount() != 0 {
		t.Fatalf("autosaver kept saving after unauthorized: %d saves", sink.saveCount())
	}

	// Start after an unauthorized stop must not resurrect the cadence.
	a.Start(clock)
	clock.Advance(time.Minute)
	if sink.saveCount() != 0 {
		t.Fatalf("Start revived a stopped autosaver")
	}
}

func TestAutosaverDropsRejectedPayload(t *testing.T) {
	sink := &fakeSink{saveErr: ErrRejected}
	reauth := 0
	_, clock := autosaverForTest(sink, func() { reauth++ })

	clock.Advance(60 * time.Second)

	if reauth != 0 {
		t.Errorf("rejected payload must not trigger re-auth")
	}
	// Rejected saves are dropped; the cadence itself keeps running.
	sink.mu.Lock()
	sink.saveErr = nil
	sink.mu.Unlock()

	clock.Advance(30 * time.Second)
	if sink.saveCount() != 1 {
		t.Fatalf("saveCount = %d, want 1 (cadence survives rejections)", sink.saveCount())
	}
}

func TestAutosaverStopCancelsSchedule(t *testing.T) {
	sink := &fakeSink{}
	a, clock := autosaverForTest(sink, nil)

	a.Stop()
	clock.Advance(10 * time.Minute)

	if sink.saveCount() != 0 {
		t.Fatalf("save fired after Stop: %d", sink.saveCount())
	}
	if clock.activeSchedules() != 0 {
		t.Fatalf("%d schedules still active after Stop", clock.activeSchedules())
	}
}

func TestAutosaverDeclinesWhenSnapshotUnavailable(t *testing.T) {
	sink := &fakeSink{}
	clock := newFakeClock()
	a := NewAutosaver("sess-1", sink, func() (Snapshot, bool) {
		return Snapshot{}, false
	}, 30*time.Second, nopLogger(), nil)
	a.Start(clock)

	clock.Advance(2 * time.Minute)
	if sink.saveCount() != 0 {
		t.Fatalf("autosaver saved with no snapshot available")
	}
}
