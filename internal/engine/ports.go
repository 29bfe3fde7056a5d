// Package engine implements the timed exam-session state machine: countdown,
// in-memory answer/flag state, integrity counters, periodic autosave, scoring,
// and exactly-once submission. It has no transport or storage dependencies;
// collaborators are injected through the interfaces below so the whole engine
// can be driven deterministically in tests with a virtual clock.
package engine

import (
	"context"
	"errors"
)

// Sink errors the engine distinguishes. Anything else is treated as a
// transient failure.
var (
	// ErrUnauthorized means the sink rejected the caller's credentials.
	// The engine stops autosaving and signals that re-authentication is
	// required; in-memory work is preserved.
	ErrUnauthorized = errors.New("engine: unauthorized")

	// ErrRejected means the sink rejected the payload itself. Retrying the
	// same payload verbatim would fail again, so the engine drops it instead
	// of retrying.
	ErrRejected = errors.New("engine: payload rejected")
)

// Question is the engine's immutable view of one exam question.
type Question struct {
	ID            string
	Text          string
	Options       []string
	CorrectAnswer string
	Difficulty    string
	Points        int
}

// Snapshot is the progress state shipped to the session sink, both for
// periodic autosaves and as part of the terminal submission.
type Snapshot struct {
	QuestionIndex    int
	Answers          map[string]string
	Flagged          []string
	RemainingSeconds int
	TabSwitches      int
	FocusLosses      int
}

// Result is the outcome of grading a session.
type Result struct {
	Correct    int
	Total      int
	Percentage float64
}

// SessionSink is the persistence collaborator. SaveProgress receives
// best-effort partial updates on the autosave cadence; Complete receives the
// one terminal update. Implementations must return ErrUnauthorized for auth
// failures and ErrRejected for payload validation failures so the engine can
// react per error class.
type SessionSink interface {
	SaveProgress(ctx context.Context, sessionID string, snap Snapshot) error
	Complete(ctx context.Context, sessionID string, snap Snapshot, result Result) error
}

// QuestionSource supplies the question set for an exam. The controller calls
// it exactly once at session start; the set a student answers against never
// changes after they begin.
type QuestionSource interface {
	Questions(ctx context.Context, examID string) ([]Question, error)
}
