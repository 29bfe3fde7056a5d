package engine

import (
	"sync"
	"time"
)

// IntegrityMonitor accumulates advisory anti-cheat counters from focus
// events reported by the client. Counters only ever increase. The monitor
// decides nothing; policy lives with whoever reads the counters. If no
// events are ever delivered it degrades to a no-op and the counters stay
// zero.
type IntegrityMonitor struct {
	mu          sync.Mutex
	tabSwitches int
	focusLosses int
	warnUntil   time.Time
	warnFor     time.Duration
	clock       Clock

	// onViolation, when set, is called outside the lock after each recorded
	// event — the hook for live monitoring feeds.
	onViolation func(kind string, count int)
}

// Violation kinds reported through the onViolation hook.
const (
	ViolationTabSwitch = "tab_switch"
	ViolationFocusLoss = "focus_loss"
)

// NewIntegrityMonitor creates a monitor. warnFor is how long the transient
// tab-switch warning stays active (~3s in practice). onViolation may be nil.
func NewIntegrityMonitor(clock Clock, warnFor time.Duration, onViolation func(kind string, count int)) *IntegrityMonitor {
	return &IntegrityMonitor{
		warnFor:     warnFor,
		clock:       clock,
		onViolation: onViolation,
	}
}

// RecordTabSwitch counts a page-hidden event and opens the transient warning
// window. Returns the new counter value.
func (m *IntegrityMonitor) RecordTabSwitch() int {
	m.mu.Lock()
	m.tabSwitches++
	count := m.tabSwitches
	m.warnUntil = m.clock.Now().Add(m.warnFor)
	hook := m.onViolation
	m.mu.Unlock()

	if hook != nil {
		hook(ViolationTabSwitch, count)
	}
	return count
}

// RecordFocusLoss counts a window-blur event. Silent: no warning window.
func (m *IntegrityMonitor) RecordFocusLoss() int {
	m.mu.Lock()
	m.focusLosses++
	count := m.focusLosses
	hook := m.onViolation
	m.mu.Unlock()

	if hook != nil {
		hook(ViolationFocusLoss, count)
	}
	return count
}

// Counters returns the current tab-switch and focus-loss totals.
func (m *IntegrityMonitor) Counters() (tabSwitches, focusLosses int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tabSwitches, m.focusLosses
}

// WarningActive reports whether the tab-switch warning banner should still
// be shown.
func (m *IntegrityMonitor) WarningActive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.clock.Now().Before(m.warnUntil)
}

// Restore seeds counters from persisted session state on resume. Values can
// only grow from here.
func (m *IntegrityMonitor) Restore(tabSwitches, focusLosses int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if tabSwitches > m.tabSwitches {
		m.tabSwitches = tabSwitches
	}
	if focusLosses > m.focusLosses {
		m.focusLosses = focusLosses
	}
}
