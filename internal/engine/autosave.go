package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

func isUnauthorized(err error) bool { return errors.Is(err, ErrUnauthorized) }
func isRejected(err error) bool     { return errors.Is(err, ErrRejected) }

// Autosaver ships a progress snapshot to the session sink on a fixed cadence,
// bounding data loss without any user action. Saves are best-effort: a
// transient failure is logged and dropped — the next scheduled tick is the
// retry. A tick is skipped entirely while a previous save is still in flight,
// so two saves never run concurrently. An ErrUnauthorized from the sink stops
// the autosaver for good and fires the re-auth callback; an ErrRejected save
// is dropped without retry since resending the same payload would fail again.
type Autosaver struct {
	sessionID string
	sink      SessionSink
	snapshot  func() (Snapshot, bool)
	interval  time.Duration
	log       zerolog.Logger

	inFlight atomic.Bool
	stopped  atomic.Bool

	mu     sync.Mutex
	cancel CancelFunc

	onUnauthorized func()
}

// NewAutosaver creates an autosaver. snapshot returns the state to persist
// and false when there is currently nothing to save (e.g. the session is no
// longer in progress). onUnauthorized may be nil.
func NewAutosaver(
	sessionID string,
	sink SessionSink,
	snapshot func() (Snapshot, bool),
	interval time.Duration,
	log zerolog.Logger,
	onUnauthorized func(),
) *Autosaver {
	return &Autosaver{
		sessionID:      sessionID,
		sink:           sink,
		snapshot:       snapshot,
		interval:       interval,
		log:            log.With().Str("component", "autosaver").Str("session_id", sessionID).Logger(),
		onUnauthorized: onUnauthorized,
	}
}

// Start schedules the autosave cadence on the given clock. Tears down any
// previous schedule first.
func (a *Autosaver) Start(clock Clock) {
	a.mu.Lock()
	if a.cancel != nil {
		a.cancel()
	}
	if a.stopped.Load() {
		a.mu.Unlock()
		return
	}
	a.cancel = clock.Schedule(a.interval, a.tick)
	a.mu.Unlock()
}

// Stop cancels the cadence permanently. Idempotent.
func (a *Autosaver) Stop() {
	a.stopped.Store(true)
	a.mu.Lock()
	cancel := a.cancel
	a.cancel = nil
	a.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (a *Autosaver) tick() {
	if a.stopped.Load() {
		return
	}
	// Skip this tick if the previous save has not finished yet.
	if !a.inFlight.CompareAndSwap(false, true) {
		a.log.Debug().Msg("Previous save still in flight, skipping tick")
		return
	}
	defer a.inFlight.Store(false)

	snap, ok := a.snapshot()
	if !ok {
		return
	}

	err := a.sink.SaveProgress(context.Background(), a.sessionID, snap)
	switch {
	case err == nil:
		a.log.Debug().Int("answers", len(snap.Answers)).Msg("Progress saved")
	case isUnauthorized(err):
		a.log.Warn().Msg("Sink rejected credentials, stopping autosave")
		a.Stop()
		if a.onUnauthorized != nil {
			a.onUnauthorized()
		}
	case isRejected(err):
		a.log.Warn().Err(err).Msg("Sink rejected payload, dropping snapshot")
	default:
		// Transient. The next tick carries a fresh snapshot anyway.
		a.log.Error().Err(err).Msg("Progress save failed")
	}
}
