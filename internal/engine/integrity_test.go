package engine

import (
	"testing"
	"time"
)

func TestIntegrityCountersOnlyIncrease(t *testing.T) {
	clock := newFakeClock()
	m := NewIntegrityMonitor(clock, 3*time.Second, nil)

	prevTabs, prevFocus := 0, 0
	for i := 0; i < 5; i++ {
		tabs := m.RecordTabSwitch()
		focus := m.RecordFocusLoss()
		if tabs <= prevTabs || focus <= prevFocus {
			t.Fatalf("counters decreased or stalled: tabs %d→%d focus %d→%d",
				prevTabs, tabs, prevFocus, focus)
		}
		prevTabs, prevFocus = tabs, focus
	}

	tabs, focus := m.Counters()
	if tabs != 5 || focus != 5 {
		t.Errorf("Counters() = (%d, %d), want (5, 5)", tabs, focus)
	}
}

func TestIntegrityWarningWindow(t *testing.T) {
	clock := newFakeClock()
	m := NewIntegrityMonitor(clock, 3*time.Second, nil)

	if m.WarningActive() {
		t.Error("warning active before any tab switch")
	}

	m.RecordTabSwitch()
	if !m.WarningActive() {
		t.Error("warning not active immediately after tab switch")
	}

	clock.Advance(2 * time.Second)
	if !m.WarningActive() {
		t.Error("warning expired early")
	}

	clock.Advance(2 * time.Second)
	if m.WarningActive() {
		t.Error("warning still active past the window")
	}
}

func TestIntegrityFocusLossIsSilent(t *testing.T) {
	clock := newFakeClock()
	m := NewIntegrityMonitor(clock, 3*time.Second, nil)

	m.RecordFocusLoss()
	if m.WarningActive() {
		t.Error("focus loss must not open the warning window")
	}
}

func TestIntegrityViolationHook(t *testing.T) {
	clock := newFakeClock()
	type event struct {
		kind  string
		count int
	}
	var events []event
	m := NewIntegrityMonitor(clock, 3*time.Second, func(kind string, count int) {
		events = append(events, event{kind, count})
	})

	m.RecordTabSwitch()
	m.RecordTabSwitch()
	m.RecordFocusLoss()

	want := []event{
		{ViolationTabSwitch, 1},
		{ViolationTabSwitch, 2},
		{ViolationFocusLoss, 1},
	}
	if len(events) != len(want) {
		t.Fatalf("got %d events, want %d", len(events), len(want))
	}
	for i, e := range events {
		if e != want[i] {
			t.Errorf("event %d = %+v, want %+v", i, e, want[i])
		}
	}
}

func TestIntegrityRestoreNeverLowersCounters(t *testing.T) {
	clock := newFakeClock()
	m := NewIntegrityMonitor(clock, 3*time.Second, nil)

	m.RecordTabSwitch()
	m.RecordTabSwitch()
	m.Restore(1, 0) // A stale persisted value must not roll counters back.

	tabs, focus := m.Counters()
	if tabs != 2 || focus != 0 {
		t.Errorf("Counters() = (%d, %d) after stale restore, want (2, 0)", tabs, focus)
	}

	m.Restore(7, 3)
	tabs, focus = m.Counters()
	if tabs != 7 || focus != 3 {
		t.Errorf("Counters() = (%d, %d) after restore, want (7, 3)", tabs, focus)
	}
}
