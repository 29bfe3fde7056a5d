package websocket

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAnswer   Action = "answer"
	ActionFlag     Action = "flag"
	ActionNavigate Action = "navigate"
	ActionBlur     Action = "blur"
	ActionHidden   Action = "hidden"
	ActionSubmit   Action = "submit"
	ActionRetry    Action = "retry"
	ActionPing     Action = "ping"
)

// RequestPayload is the single flat request shape; unused fields are
// zero-valued for actions that do not carry them.
type RequestPayload struct {
	Action Action `json:"action"`
	QID    string `json:"q_id,omitempty"`
	Answer string `json:"ans,omitempty"`
	Index  int    `json:"index,omitempty"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventState   Event = "state"
	EventTick    Event = "tick"
	EventWarning Event = "warning"
	EventSaved   Event = "saved"
	EventFlagged Event = "flagged"
	EventGraded  Event = "graded"
	EventError   Event = "error"
	EventReauth  Event = "reauth_required"
	EventPong    Event = "pong"
)

// StateResponse is sent once after the connection is established, carrying
// everything a reconnecting client needs to redraw the exam screen.
type StateResponse struct {
	Event            Event             `json:"event"`
	SessionID        string            `json:"session_id"`
	ExamID           string            `json:"exam_id"`
	QuestionIndex    int               `json:"question_index"`
	Answers          map[string]string `json:"answers"`
	Flagged          []string          `json:"flagged"`
	RemainingSeconds int               `json:"remaining_seconds"`
	TabSwitches      int               `json:"tab_switches"`
}

// TickResponse is sent once per countdown second.
type TickResponse struct {
	Event     Event `json:"event"`
	Remaining int   `json:"remaining_seconds"`
}

// WarningResponse is sent when a tab switch is recorded.
type WarningResponse struct {
	Event       Event `json:"event"`
	TabSwitches int   `json:"tab_switches"`
}

// SavedResponse acknowledges an answer mutation.
type SavedResponse struct {
	Event Event  `json:"event"`
	QID   string `json:"q_id"`
}

// FlaggedResponse acknowledges a flag toggle with the new flag state.
type FlaggedResponse struct {
	Event   Event  `json:"event"`
	QID     string `json:"q_id"`
	Flagged bool   `json:"flagged"`
}

// GradedResponse is sent exactly once, after the terminal submission landed.
type GradedResponse struct {
	Event      Event   `json:"event"`
	Status     string  `json:"status"`
	Correct    int     `json:"correct"`
	Total      int     `json:"total"`
	Percentage float64 `json:"percentage"`
}

// ErrorResponse carries an error message; Retryable marks a failed
// submission the client may retry once.
type ErrorResponse struct {
	Event     Event  `json:"event"`
	Error     string `json:"error"`
	Retryable bool   `json:"retryable,omitempty"`
}

type ReauthResponse struct {
	Event Event `json:"event"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
