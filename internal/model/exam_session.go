package model

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus enumerates exam session states. A session moves from
// IN_PROGRESS to COMPLETED exactly once and never back.
type SessionStatus string

const (
	SessionStatusInProgress SessionStatus = "IN_PROGRESS"
	SessionStatusCompleted  SessionStatus = "COMPLETED"
)

// AntiCheatData holds the advisory integrity counters attached to a session.
// Both counters are monotonically non-decreasing.
type AntiCheatData struct {
	TabSwitches int `json:"tab_switches"`
	FocusLosses int `json:"focus_losses"`
}

// ExamSession represents one student's single attempt at one exam.
type ExamSession struct {
	ID         uuid.UUID     `json:"id"`
	ExamID     uuid.UUID     `json:"exam_id"`
	StudentID  int           `json:"student_id"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt *time.Time    `json:"finished_at,omitempty"`
	Status     SessionStatus `json:"status"`
	Score      *int          `json:"score,omitempty"`
	Percentage *float64      `json:"percentage,omitempty"`
	AntiCheat  AntiCheatData `json:"anti_cheat"`
}

// SessionResumeState is what a reconnecting client needs to continue an
// in-progress session: autosaved answers, flags, position, and the remaining
// time recomputed server-side from the session start.
type SessionResumeState struct {
	SessionID        uuid.UUID         `json:"session_id"`
	ExamID           uuid.UUID         `json:"exam_id"`
	StudentID        int               `json:"student_id"`
	QuestionIndex    int               `json:"question_index"`
	Answers          map[string]string `json:"answers"`
	Flagged          []string          `json:"flagged"`
	RemainingSeconds int               `json:"remaining_seconds"`
	AntiCheat        AntiCheatData     `json:"anti_cheat"`
}

// SessionPatchRequest is the partial-update payload accepted by
// PATCH /student/sessions/:session_id. Any subset of fields may be present;
// a "COMPLETED" status marks the terminal submission.
type SessionPatchRequest struct {
	QuestionIndex    *int              `json:"question_index" binding:"omitempty,min=0"`
	Answers          map[string]string `json:"answers" binding:"omitempty"`
	Flagged          []string          `json:"flagged" binding:"omitempty"`
	RemainingSeconds *int              `json:"remaining_seconds" binding:"omitempty,min=0"`
	Status           *SessionStatus    `json:"status" binding:"omitempty,oneof=IN_PROGRESS COMPLETED"`
	AntiCheat        *AntiCheatData    `json:"anti_cheat" binding:"omitempty"`
}
