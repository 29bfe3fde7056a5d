package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// fakeClock is a deterministic virtual clock. Advance steps time forward,
// firing due schedules in timestamp order on the calling goroutine.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	scheds []*fakeSchedule
}

type fakeSchedule struct {
	interval  time.Duration
	next      time.Time
	fn        func()
	cancelled bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Schedule(interval time.Duration, fn func()) CancelFunc {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := &fakeSchedule{interval: interval, next: f.now.Add(interval), fn: fn}
	f.scheds = append(f.scheds, s)
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		s.cancelled = true
	}
}

// Advance moves the clock forward by d, firing every due callback in order.
func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	target := f.now.Add(d)
	f.mu.Unlock()

	for {
		f.mu.Lock()
		var earliest *fakeSchedule
		for _, s := range f.scheds {
			if s.cancelled || s.next.After(target) {
				continue
			}
			if earliest == nil || s.next.Before(earliest.next) {
				earliest = s
			}
		}
		if earliest == nil {
			f.now = target
			f.mu.Unlock()
			return
		}
		f.now = earliest.next
		earliest.next = earliest.next.Add(earliest.interval)
		fn := earliest.fn
		f.mu.Unlock()

		fn()
	}
}

// activeSchedules counts schedules that have not been cancelled.
func (f *fakeClock) activeSchedules() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, s := range f.scheds {
		if !s.cancelled {
			n++
		}
	}
	return n
}

// fakeSink records every SaveProgress and Complete call and returns
// programmable errors.
type fakeSink struct {
	mu        sync.Mutex
	saves     []Snapshot
	completes []completeCall

	saveErr     error
	completeErr error

	// onSave, when set, runs during SaveProgress before the call is
	// recorded. Used to simulate a tick firing while a save is in flight.
	onSave func()
}

type completeCall struct {
	sessionID string
	snap      Snapshot
	result    Result
}

func (f *fakeSink) SaveProgress(_ context.Context, _ string, snap Snapshot) error {
	if f.onSave != nil {
		f.onSave()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saves = append(f.saves, snap)
	return nil
}

func (f *fakeSink) Complete(_ context.Context, sessionID string, snap Snapshot, result Result) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completes = append(f.completes, completeCall{sessionID: sessionID, snap: snap, result: result})
	if f.completeErr != nil {
		return f.completeErr
	}
	return nil
}

func (f *fakeSink) saveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saves)
}

func (f *fakeSink) completeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.completes)
}

func (f *fakeSink) lastComplete() completeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.completes[len(f.completes)-1]
}

func (f *fakeSink) setCompleteErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completeErr = err
}

// fakeSource serves a fixed question set and counts fetches.
type fakeSource struct {
	mu        sync.Mutex
	questions []Question
	err       error
	fetches   int
}

func (f *fakeSource) Questions(_ context.Context, _ string) ([]Question, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	if f.err != nil {
		return nil, f.err
	}
	return f.questions, nil
}

// makeQuestions builds n four-option questions q1..qn, all keyed "A".
func makeQuestions(n int) []Question {
	qs := make([]Question, 0, n)
	for i := 1; i <= n; i++ {
		qs = append(qs, Question{
			ID:            fmt.Sprintf("q%d", i),
			Text:          fmt.Sprintf("Question %d", i),
			Options:       []string{"A", "B", "C", "D"},
			CorrectAnswer: "A",
			Difficulty:    "medium",
			Points:        1,
		})
	}
	return qs
}

func testConfig(seconds int) Config {
	return Config{
		SessionID:        "sess-1",
		ExamID:           "exam-1",
		InitialSeconds:   seconds,
		AutosaveInterval: 30 * time.Second,
		WarningDuration:  3 * time.Second,
	}
}

func nopLogger() zerolog.Logger {
	return zerolog.Nop()
}
