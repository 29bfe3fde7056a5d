package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func controllerForTest(t *testing.T, cfg Config, sink *fakeSink, questions []Question, events Events) (*Controller, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	source := &fakeSource{questions: questions}
	c := NewController(cfg, sink, source, clock, nopLogger(), events)
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return c, clock
}

func TestControllerZeroQuestionExam(t *testing.T) {
	sink := &fakeSink{}
	clock := newFakeClock()
	source := &fakeSource{questions: nil}
	c := NewController(testConfig(60), sink, source, clock, nopLogger(), Events{})

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got := c.State(); got != StateNoQuestions {
		t.Fatalf("State() = %q, want %q", got, StateNoQuestions)
	}
	// No timer may have been started.
	if clock.activeSchedules() != 0 {
		t.Errorf("%d schedules active for a no-questions session", clock.activeSchedules())
	}

	// No submission is possible.
	if err := c.Submit(context.Background(), TriggerStudent); !errors.Is(err, ErrNotInProgress) {
		t.Errorf("Submit = %v, want ErrNotInProgress", err)
	}
	clock.Advance(time.Hour)
	if sink.completeCount() != 0 || sink.saveCount() != 0 {
		t.Errorf("sink was called for a no-questions session")
	}
}

func TestControllerFullRun(t *testing.T) {
	sink := &fakeSink{}
	var ticks []int
	var completed []Result
	c, clock := controllerForTest(t, testConfig(60), sink, makeQuestions(5), Events{
		OnTick:      func(r int) { ticks = append(ticks, r) },
		OnCompleted: func(r Result) { completed = append(completed, r) },
	})

	// Three correct, two wrong (key is "A" for every question).
	c.SetAnswer("q1", "A")
	c.SetAnswer("q2", "A")
	c.SetAnswer("q3", "A")
	c.SetAnswer("q4", "B")
	c.SetAnswer("q5", "C")

	clock.Advance(60 * time.Second)

	if got := c.State(); got != StateCompleted {
		t.Fatalf("State() = %q, want completed", got)
	}
	if sink.completeCount() != 1 {
		t.Fatalf("completeCount = %d, want exactly 1", sink.completeCount())
	}
	call := sink.lastComplete()
	if call.result.Correct != 3 || call.result.Percentage != 60 {
		t.Errorf("result = %+v, want 3 correct / 60%%", call.result)
	}
	if call.snap.RemainingSeconds != 0 {
		t.Errorf("submitted RemainingSeconds = %d, want 0", call.snap.RemainingSeconds)
	}
	if len(completed) != 1 || completed[0] != call.result {
		t.Errorf("OnCompleted fired %d times with %v", len(completed), completed)
	}

	// Countdown monotonicity: each tick is exactly the previous minus one,
	// ending clamped at 0, with no ticks after completion.
	if len(ticks) != 60 {
		t.Fatalf("got %d ticks, want 60", len(ticks))
	}
	for i, r := range ticks {
		if want := 59 - i; r != want {
			t.Fatalf("tick %d: remaining = %d, want %d", i, r, want)
		}
	}

	// One autosave happened mid-run (t=30); the t=60 cadence was cancelled
	// by the submission before it could fire.
	if sink.saveCount() != 1 {
		t.Errorf("saveCount = %d, want 1", sink.saveCount())
	}
}

func TestControllerForcedTimeoutWithPartialAnswers(t *testing.T) {
	sink := &fakeSink{}
	c, clock := controllerForTest(t, testConfig(45), sink, makeQuestions(10), Events{})

	c.SetAnswer("q1", "A")
	c.SetAnswer("q2", "A")
	c.SetAnswer("q3", "B")
	c.SetAnswer("q7", "A")

	clock.Advance(45 * time.Second)

	if sink.completeCount() != 1 {
		t.Fatalf("completeCount = %d, want 1", sink.completeCount())
	}
	call := sink.lastComplete()
	if len(call.snap.Answers) != 4 {
		t.Errorf("submitted %d answers, want exactly the 4 given", len(call.snap.Answers))
	}
	// Unanswered questions count as incorrect.
	if call.result.Correct != 3 || call.result.Total != 10 || call.result.Percentage != 30 {
		t.Errorf("result = %+v, want 3/10 = 30%%", call.result)
	}
}

func TestControllerExactlyOnceSubmissionTimerVsManual(t *testing.T) {
	// Manual submit first, then the timer tick that would also expire.
	sink := &fakeSink{}
	c, clock := controllerForTest(t, testConfig(1), sink, makeQuestions(3), Events{})

	if err := c.Submit(context.Background(), TriggerStudent); err != nil {
		t.Fatalf("manual Submit: %v", err)
	}
	clock.Advance(5 * time.Second)

	if sink.completeCount() != 1 {
		t.Fatalf("completeCount = %d, want 1 (manual won)", sink.completeCount())
	}

	// And the reverse ordering: timer first, manual second.
	sink2 := &fakeSink{}
	c2, clock2 := controllerForTest(t, testConfig(1), sink2, makeQuestions(3), Events{})

	clock2.Advance(1 * time.Second)
	if err := c2.Submit(context.Background(), TriggerStudent); !errors.Is(err, ErrAlreadyDone) {
		t.Errorf("manual Submit after expiry = %v, want ErrAlreadyDone", err)
	}
	if sink2.completeCount() != 1 {
		t.Fatalf("completeCount = %d, want 1 (timer won)", sink2.completeCount())
	}
}

func TestControllerExactlyOnceSubmissionConcurrentClicks(t *testing.T) {
	sink := &fakeSink{}
	c, _ := controllerForTest(t, testConfig(600), sink, makeQuestions(3), Events{})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = c.Submit(context.Background(), TriggerStudent)
		}()
	}
	wg.Wait()

	if sink.completeCount() != 1 {
		t.Fatalf("completeCount = %d under concurrent submits, want exactly 1", sink.completeCount())
	}
}

func TestControllerBoundaryNavigation(t *testing.T) {
	sink := &fakeSink{}
	c, _ := controllerForTest(t, testConfig(600), sink, makeQuestions(5), Events{})

	// Previous at index 0 is a no-op.
	if err := c.Previous(); err != nil {
		t.Fatalf("Previous: %v", err)
	}
	if got := c.CurrentIndex(); got != 0 {
		t.Errorf("index = %d after Previous at 0, want 0", got)
	}

	// Next at the last question is a no-op; no wraparound.
	if err := c.GoTo(4); err != nil {
		t.Fatalf("GoTo: %v", err)
	}
	if err := c.Next(); err != nil {
		t.Fatalf("Next: %v", err)
	}
	if got := c.CurrentIndex(); got != 4 {
		t.Errorf("index = %d after Next at last, want 4", got)
	}

	// Out-of-range jumps clamp.
	_ = c.GoTo(99)
	if got := c.CurrentIndex(); got != 4 {
		t.Errorf("index = %d after GoTo(99), want 4", got)
	}
	_ = c.GoTo(-7)
	if got := c.CurrentIndex(); got != 0 {
		t.Errorf("index = %d after GoTo(-7), want 0", got)
	}
}

func TestControllerNavigationInvalidOutsideInProgress(t *testing.T) {
	sink := &fakeSink{}
	c, clock := controllerForTest(t, testConfig(1), sink, makeQuestions(3), Events{})

	clock.Advance(1 * time.Second) // expire

	if err := c.Next(); !errors.Is(err, ErrNotInProgress) {
		t.Errorf("Next after completion = %v, want ErrNotInProgress", err)
	}
	if err := c.SetAnswer("q1", "A"); !errors.Is(err, ErrNotInProgress) {
		t.Errorf("SetAnswer after completion = %v, want ErrNotInProgress", err)
	}
	if _, err := c.ToggleFlag("q1"); !errors.Is(err, ErrNotInProgress) {
		t.Errorf("ToggleFlag after completion = %v, want ErrNotInProgress", err)
	}
}

func TestControllerSubmitFailureAllowsExactlyOneRetry(t *testing.T) {
	sink := &fakeSink{}
	sink.setCompleteErr(errors.New("gateway timeout"))

	var submitErrs []bool
	c, _ := controllerForTest(t, testConfig(600), sink, makeQuestions(4), Events{
		OnSubmitError: func(_ error, retryAvailable bool) {
			submitErrs = append(submitErrs, retryAvailable)
		},
	})

	c.SetAnswer("q1", "A")
	c.SetAnswer("q2", "A")

	if err := c.Submit(context.Background(), TriggerStudent); err == nil {
		t.Fatal("Submit should have failed")
	}
	if got := c.State(); got != StateSubmitFailed {
		t.Fatalf("State() = %q after failure, want submit_failed", got)
	}
	if len(submitErrs) != 1 || !submitErrs[0] {
		t.Fatalf("OnSubmitError = %v, want one call with retry available", submitErrs)
	}

	// Input stays disabled while the submission is pending resolution.
	if err := c.SetAnswer("q3", "A"); !errors.Is(err, ErrNotInProgress) {
		t.Errorf("SetAnswer in submit_failed = %v, want ErrNotInProgress", err)
	}

	sink.setCompleteErr(nil)
	if err := c.Retry(context.Background()); err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if got := c.State(); got != StateCompleted {
		t.Fatalf("State() = %q after retry, want completed", got)
	}

	// Both attempts carried the identical frozen payload: the score was
	// computed once, at original guard-set time.
	if sink.completeCount() != 2 {
		t.Fatalf("completeCount = %d, want 2 (failed attempt + retry)", sink.completeCount())
	}
	sink.mu.Lock()
	first, second := sink.completes[0], sink.completes[1]
	sink.mu.Unlock()
	if first.result != second.result {
		t.Errorf("retry recomputed the score: %+v vs %+v", first.result, second.result)
	}
	if len(first.snap.Answers) != len(second.snap.Answers) {
		t.Errorf("retry payload differs: %d vs %d answers",
			len(first.snap.Answers), len(second.snap.Answers))
	}

	// Only one retry is allowed per session.
	if err := c.Retry(context.Background()); !errors.Is(err, ErrNoRetryPending) {
		t.Errorf("Retry after completion = %v, want ErrNoRetryPending", err)
	}
}

func TestControllerSecondRetryRefused(t *testing.T) {
	sink := &fakeSink{}
	sink.setCompleteErr(errors.New("gateway timeout"))
	c, _ := controllerForTest(t, testConfig(600), sink, makeQuestions(2), Events{})

	if err := c.Submit(context.Background(), TriggerStudent); err == nil {
		t.Fatal("Submit should have failed")
	}
	if err := c.Retry(context.Background()); err == nil {
		t.Fatal("Retry should have failed")
	}
	if err := c.Retry(context.Background()); !errors.Is(err, ErrNoRetryAllowed) {
		t.Errorf("second Retry = %v, want ErrNoRetryAllowed", err)
	}
	if sink.completeCount() != 2 {
		t.Errorf("completeCount = %d, want 2", sink.completeCount())
	}
}

func TestControllerTabSwitchesCountedIntoSubmission(t *testing.T) {
	sink := &fakeSink{}
	var warnings []int
	c, clock := controllerForTest(t, testConfig(120), sink, makeQuestions(3), Events{
		OnWarning: func(n int) { warnings = append(warnings, n) },
	})

	c.RecordTabSwitch()
	clock.Advance(40 * time.Second) // an autosave tick in between
	c.RecordTabSwitch()
	c.RecordFocusLoss()

	clock.Advance(80 * time.Second) // expire

	call := sink.lastComplete()
	if call.snap.TabSwitches != 2 || call.snap.FocusLosses != 1 {
		t.Errorf("anti-cheat counters = (%d, %d), want (2, 1)",
			call.snap.TabSwitches, call.snap.FocusLosses)
	}
	if len(warnings) != 2 || warnings[0] != 1 || warnings[1] != 2 {
		t.Errorf("warnings = %v, want [1 2]", warnings)
	}
}

func TestControllerCloseTearsDownAllTimers(t *testing.T) {
	sink := &fakeSink{}
	var ticks []int
	c, clock := controllerForTest(t, testConfig(300), sink, makeQuestions(3), Events{
		OnTick: func(r int) { ticks = append(ticks, r) },
	})

	clock.Advance(3 * time.Second)
	c.Close()
	before := len(ticks)

	clock.Advance(time.Hour)

	if len(ticks) != before {
		t.Errorf("countdown ticked after Close: %d → %d", before, len(ticks))
	}
	if sink.saveCount() != 0 {
		t.Errorf("autosave fired after Close")
	}
	if sink.completeCount() != 0 {
		t.Errorf("submission fired after Close")
	}
	if clock.activeSchedules() != 0 {
		t.Errorf("%d schedules still active after Close", clock.activeSchedules())
	}
}

func TestControllerFetchesQuestionsExactlyOnce(t *testing.T) {
	clock := newFakeClock()
	source := &fakeSource{questions: makeQuestions(3)}
	c := NewController(testConfig(60), &fakeSink{}, source, clock, nopLogger(), Events{})

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := c.Start(context.Background()); err == nil {
		t.Error("second Start should be rejected")
	}
	if source.fetches != 1 {
		t.Errorf("question set fetched %d times, want 1", source.fetches)
	}
}

func TestControllerResumeRestoresState(t *testing.T) {
	cfg := testConfig(600)
	cfg.ResumeIndex = 2
	cfg.ResumeAnswers = map[string]string{"q1": "B", "q2": "A"}
	cfg.ResumeFlagged = []string{"q1"}
	cfg.ResumeTabSwitches = 3
	cfg.ResumeFocusLosses = 1

	sink := &fakeSink{}
	c, clock := controllerForTest(t, cfg, sink, makeQuestions(5), Events{})

	if got := c.CurrentIndex(); got != 2 {
		t.Errorf("resumed index = %d, want 2", got)
	}
	snap := c.Snapshot()
	if snap.Answers["q1"] != "B" || snap.Answers["q2"] != "A" {
		t.Errorf("resumed answers = %v", snap.Answers)
	}
	if snap.TabSwitches != 3 || snap.FocusLosses != 1 {
		t.Errorf("resumed counters = (%d, %d), want (3, 1)", snap.TabSwitches, snap.FocusLosses)
	}

	// Counters keep growing from the restored base.
	c.RecordTabSwitch()
	clock.Advance(600 * time.Second)
	if call := sink.lastComplete(); call.snap.TabSwitches != 4 {
		t.Errorf("TabSwitches at submission = %d, want 4", call.snap.TabSwitches)
	}
}

func TestControllerReauthSignalStopsAutosaveOnly(t *testing.T) {
	sink := &fakeSink{saveErr: ErrUnauthorized}
	reauth := 0
	c, clock := controllerForTest(t, testConfig(120), sink, makeQuestions(3), Events{
		OnReauthRequired: func() { reauth++ },
	})

	c.SetAnswer("q1", "A")
	clock.Advance(30 * time.Second)

	if reauth != 1 {
		t.Fatalf("reauth fired %d times, want 1", reauth)
	}
	// In-memory work is preserved and the session keeps running.
	if got := c.State(); got != StateInProgress {
		t.Errorf("State() = %q after reauth signal, want in_progress", got)
	}
	if c.Snapshot().Answers["q1"] != "A" {
		t.Errorf("answers lost after reauth signal")
	}
}
