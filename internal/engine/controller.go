package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// State is the controller's lifecycle state.
type State string

const (
	StateLoading      State = "loading"
	StateInProgress   State = "in_progress"
	StateSubmitting   State = "submitting"
	StateSubmitFailed State = "submit_failed"
	StateCompleted    State = "completed"
	StateNoQuestions  State = "no_questions"
)

// SubmitTrigger records what initiated a submission.
type SubmitTrigger string

const (
	TriggerTimer   SubmitTrigger = "timer"
	TriggerStudent SubmitTrigger = "student"
	TriggerForced  SubmitTrigger = "forced"
)

// Controller errors.
var (
	ErrNotInProgress  = errors.New("engine: session is not in progress")
	ErrAlreadyDone    = errors.New("engine: session already submitted")
	ErrNoRetryAllowed = errors.New("engine: submission retry already used")
	ErrNoRetryPending = errors.New("engine: no failed submission to retry")
)

// Config carries the per-session parameters for a Controller.
type Config struct {
	SessionID        string
	ExamID           string
	InitialSeconds   int
	AutosaveInterval time.Duration
	WarningDuration  time.Duration

	// Resume state, zero-valued for a fresh session.
	ResumeIndex       int
	ResumeAnswers     map[string]string
	ResumeFlagged     []string
	ResumeTabSwitches int
	ResumeFocusLosses int
}

// Events are optional callbacks the controller raises toward the transport
// layer. Any field may be nil.
type Events struct {
	// OnTick fires once per countdown second with the remaining time.
	OnTick func(remaining int)
	// OnWarning fires when a tab switch is recorded, with the new total.
	OnWarning func(tabSwitches int)
	// OnCompleted fires exactly once, after the sink acknowledged the
	// terminal submission.
	OnCompleted func(result Result)
	// OnSubmitError fires when a terminal submission attempt failed and a
	// retry is available (or, if the retry was already used, final failure).
	OnSubmitError func(err error, retryAvailable bool)
	// OnReauthRequired fires when the sink rejected credentials during
	// autosave.
	OnReauthRequired func()
}

// Controller orchestrates one exam session: it owns the question list and
// cursor, mediates navigation and answer/flag mutations, runs the countdown
// and autosave cadences, and drives the terminal submission exactly once.
// All mutable state is guarded by mu; the submission guard is checked and set
// under that lock before any sink call is issued, which is what makes the
// "timer expiry races manual submit" interleaving safe.
type Controller struct {
	mu sync.Mutex

	cfg    Config
	state  State
	clock  Clock
	sink   SessionSink
	source QuestionSource
	log    zerolog.Logger
	events Events

	questions []Question
	index     int

	sheet     *WorkSheet
	integrity *IntegrityMonitor
	countdown *Countdown
	autosaver *Autosaver

	// Frozen at submission-guard set time. Retries reuse these verbatim so a
	// later mutation (impossible through the API, but also via the autosave
	// goroutine) can never alter an already-computed score.
	pendingSnap   *Snapshot
	pendingResult *Result
	retryUsed     bool

	result *Result
}

// NewController builds a controller in StateLoading. Call Start to fetch the
// question set and begin the session.
func NewController(cfg Config, sink SessionSink, source QuestionSource, clock Clock, log zerolog.Logger, events Events) *Controller {
	c := &Controller{
		cfg:    cfg,
		state:  StateLoading,
		clock:  clock,
		sink:   sink,
		source: source,
		log: log.With().
			Str("component", "session_controller").
			Str("session_id", cfg.SessionID).
			Logger(),
		events: events,
		sheet:  NewWorkSheet(),
	}
	c.integrity = NewIntegrityMonitor(clock, cfg.WarningDuration, nil)
	return c
}

// Start fetches the question set (once, ever) and transitions to
// StateInProgress, starting the countdown and autosave cadences. An empty
// question set short-circuits to the terminal StateNoQuestions with no timer
// started and no submission possible.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateLoading {
		c.mu.Unlock()
		return fmt.Errorf("engine: start from state %q", c.state)
	}
	c.mu.Unlock()

	questions, err := c.source.Questions(ctx, c.cfg.ExamID)
	if err != nil {
		return fmt.Errorf("fetch questions: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(questions) == 0 {
		c.state = StateNoQuestions
		c.log.Warn().Str("exam_id", c.cfg.ExamID).Msg("Exam has no questions")
		return nil
	}

	c.questions = questions
	c.index = clampIndex(c.cfg.ResumeIndex, len(questions))
	if c.cfg.ResumeAnswers != nil || c.cfg.ResumeFlagged != nil {
		c.sheet.Restore(c.cfg.ResumeAnswers, c.cfg.ResumeFlagged)
	}
	c.integrity.Restore(c.cfg.ResumeTabSwitches, c.cfg.ResumeFocusLosses)

	c.countdown = NewCountdown(c.cfg.InitialSeconds, c.events.OnTick, c.onExpiry)
	c.autosaver = NewAutosaver(
		c.cfg.SessionID,
		c.sink,
		c.autosaveSnapshot,
		c.cfg.AutosaveInterval,
		c.log,
		c.onUnauthorized,
	)

	c.state = StateInProgress
	c.countdown.Start(c.clock)
	c.autosaver.Start(c.clock)

	c.log.Info().
		Int("questions", len(questions)).
		Int("remaining_seconds", c.cfg.InitialSeconds).
		Msg("Session started")
	return nil
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Result returns the graded result once the session is completed.
func (c *Controller) Result() (Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.result == nil {
		return Result{}, false
	}
	return *c.result, true
}

// CurrentIndex returns the question cursor.
func (c *Controller) CurrentIndex() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.index
}

// Remaining returns the countdown's remaining seconds, frozen once the
// session leaves StateInProgress.
func (c *Controller) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.countdown == nil {
		return 0
	}
	return c.countdown.Remaining()
}

// ─── Navigation ─────────────────────────────────────────────────────

// GoTo moves the cursor to index, clamped to the question range. Valid only
// while in progress.
func (c *Controller) GoTo(index int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateInProgress {
		return ErrNotInProgress
	}
	c.index = clampIndex(index, len(c.questions))
	return nil
}

// Next advances the cursor by one; no-op at the last question.
func (c *Controller) Next() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateInProgress {
		return ErrNotInProgress
	}
	if c.index < len(c.questions)-1 {
		c.index++
	}
	return nil
}

// Previous moves the cursor back by one; no-op at the first question.
func (c *Controller) Previous() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateInProgress {
		return ErrNotInProgress
	}
	if c.index > 0 {
		c.index--
	}
	return nil
}

// ─── Answering / flagging / integrity ───────────────────────────────

// SetAnswer records the student's selected answer for a question.
func (c *Controller) SetAnswer(questionID, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateInProgress {
		return ErrNotInProgress
	}
	c.sheet.SetAnswer(questionID, value)
	return nil
}

// ToggleFlag flips a question's review flag and reports the new state.
func (c *Controller) ToggleFlag(questionID string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateInProgress {
		return false, ErrNotInProgress
	}
	return c.sheet.ToggleFlag(questionID), nil
}

// RecordTabSwitch counts a page-hidden event and raises the warning event.
func (c *Controller) RecordTabSwitch() {
	c.mu.Lock()
	inProgress := c.state == StateInProgress
	c.mu.Unlock()
	if !inProgress {
		return
	}
	count := c.integrity.RecordTabSwitch()
	if c.events.OnWarning != nil {
		c.events.OnWarning(count)
	}
}

// RecordFocusLoss counts a window-blur event. Silent.
func (c *Controller) RecordFocusLoss() {
	c.mu.Lock()
	inProgress := c.state == StateInProgress
	c.mu.Unlock()
	if !inProgress {
		return
	}
	c.integrity.RecordFocusLoss()
}

// ─── Submission ─────────────────────────────────────────────────────

// Submit drives the terminal submission. The idempotency guard (the state
// transition to StateSubmitting) is checked and set under the lock before the
// snapshot is taken and before the sink is called, so any interleaving of
// timer expiry and a manual submit issues exactly one terminal call. On sink
// failure the guard is released into StateSubmitFailed and exactly one
// Retry is permitted.
func (c *Controller) Submit(ctx context.Context, trigger SubmitTrigger) error {
	c.mu.Lock()
	switch c.state {
	case StateInProgress:
		// Proceed.
	case StateSubmitting, StateCompleted:
		c.mu.Unlock()
		return ErrAlreadyDone
	default:
		c.mu.Unlock()
		return ErrNotInProgress
	}

	c.state = StateSubmitting

	// Freeze the countdown and autosave cadence before anything async.
	c.countdown.Stop()
	c.autosaver.Stop()

	// Snapshot and score are taken synchronously at guard-set time.
	snap := c.snapshotLocked()
	result := Score(c.questions, snap.Answers)
	c.pendingSnap = &snap
	c.pendingResult = &result
	c.mu.Unlock()

	c.log.Info().
		Str("trigger", string(trigger)).
		Int("answered", len(snap.Answers)).
		Int("correct", result.Correct).
		Float64("percentage", result.Percentage).
		Msg("Submitting session")

	return c.deliver(ctx)
}

// Retry re-attempts a failed terminal submission, exactly once, reusing the
// snapshot and score frozen at the original guard-set time.
func (c *Controller) Retry(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateSubmitFailed {
		c.mu.Unlock()
		return ErrNoRetryPending
	}
	if c.retryUsed {
		c.mu.Unlock()
		return ErrNoRetryAllowed
	}
	c.retryUsed = true
	c.state = StateSubmitting // Guard re-set before the retry call.
	c.mu.Unlock()

	return c.deliver(ctx)
}

// deliver sends the frozen submission to the sink and settles the terminal
// state. Called with the guard held (state == StateSubmitting).
func (c *Controller) deliver(ctx context.Context) error {
	c.mu.Lock()
	snap := *c.pendingSnap
	result := *c.pendingResult
	c.mu.Unlock()

	err := c.sink.Complete(ctx, c.cfg.SessionID, snap, result)

	c.mu.Lock()
	if err != nil {
		c.state = StateSubmitFailed
		retryAvailable := !c.retryUsed
		c.mu.Unlock()

		c.log.Error().Err(err).Bool("retry_available", retryAvailable).Msg("Submission failed")
		if c.events.OnSubmitError != nil {
			c.events.OnSubmitError(err, retryAvailable)
		}
		return err
	}

	c.state = StateCompleted
	c.result = &result
	c.mu.Unlock()

	c.log.Info().Msg("Session completed")
	if c.events.OnCompleted != nil {
		c.events.OnCompleted(result)
	}
	return nil
}

// onExpiry is the countdown's zero callback: the forced-submission path.
func (c *Controller) onExpiry() {
	// The countdown guarantees at most one invocation; the submission guard
	// makes a concurrent manual submit lose the race cleanly.
	if err := c.Submit(context.Background(), TriggerTimer); err != nil &&
		!errors.Is(err, ErrAlreadyDone) {
		c.log.Error().Err(err).Msg("Timer-driven submission failed")
	}
}

// onUnauthorized is the autosaver's auth-failure callback.
func (c *Controller) onUnauthorized() {
	c.log.Warn().Msg("Re-authentication required, autosave halted")
	if c.events.OnReauthRequired != nil {
		c.events.OnReauthRequired()
	}
}

// ─── Snapshots & teardown ───────────────────────────────────────────

// Snapshot returns the current progress state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	tabSwitches, focusLosses := c.integrity.Counters()
	remaining := 0
	if c.countdown != nil {
		remaining = c.countdown.Remaining()
	}
	return Snapshot{
		QuestionIndex:    c.index,
		Answers:          c.sheet.Answers(),
		Flagged:          c.sheet.Flagged(),
		RemainingSeconds: remaining,
		TabSwitches:      tabSwitches,
		FocusLosses:      focusLosses,
	}
}

// autosaveSnapshot feeds the autosaver; it declines when the session is no
// longer in progress so a post-submission tick can never write.
func (c *Controller) autosaveSnapshot() (Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateInProgress {
		return Snapshot{}, false
	}
	return c.snapshotLocked(), true
}

// Close releases the countdown and autosave schedules. After Close returns
// no engine timer fires again for this session. Idempotent; safe in any
// state.
func (c *Controller) Close() {
	c.mu.Lock()
	countdown := c.countdown
	autosaver := c.autosaver
	c.mu.Unlock()

	if countdown != nil {
		countdown.Stop()
	}
	if autosaver != nil {
		autosaver.Stop()
	}
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i > n-1 {
		return n - 1
	}
	return i
}
