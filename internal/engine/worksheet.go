package engine

import (
	"sort"
	"sync"
)

// WorkSheet holds a student's in-progress work: the answer map and the set of
// questions flagged for review. Mutations are synchronous and in-memory;
// persistence happens separately on the autosave cadence.
type WorkSheet struct {
	mu      sync.Mutex
	answers map[string]string
	flagged map[string]struct{}
}

// NewWorkSheet creates an empty worksheet.
func NewWorkSheet() *WorkSheet {
	return &WorkSheet{
		answers: make(map[string]string),
		flagged: make(map[string]struct{}),
	}
}

// Restore seeds the worksheet from previously autosaved state (session
// resume). Overwrites any current content.
func (w *WorkSheet) Restore(answers map[string]string, flagged []string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.answers = make(map[string]string, len(answers))
	for k, v := range answers {
		w.answers[k] = v
	}
	w.flagged = make(map[string]struct{}, len(flagged))
	for _, q := range flagged {
		w.flagged[q] = struct{}{}
	}
}

// SetAnswer records the selected answer for a question, overwriting any prior
// value. Answers are never removed during a session. No correctness check
// happens here; that is scoring's job, at submission only.
func (w *WorkSheet) SetAnswer(questionID, value string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.answers[questionID] = value
}

// ToggleFlag adds or removes a question from the review set and reports the
// new flagged state.
func (w *WorkSheet) ToggleFlag(questionID string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.flagged[questionID]; ok {
		delete(w.flagged, questionID)
		return false
	}
	w.flagged[questionID] = struct{}{}
	return true
}

// Answers returns a copy of the current answer map.
func (w *WorkSheet) Answers() map[string]string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make(map[string]string, len(w.answers))
	for k, v := range w.answers {
		out[k] = v
	}
	return out
}

// Flagged returns the flagged question IDs in sorted order.
func (w *WorkSheet) Flagged() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, 0, len(w.flagged))
	for q := range w.flagged {
		out = append(out, q)
	}
	sort.Strings(out)
	return out
}

// AnswerCount returns the number of answered questions.
func (w *WorkSheet) AnswerCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.answers)
}
