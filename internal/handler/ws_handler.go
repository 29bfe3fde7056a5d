package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/naijaprep/cbt-backend/internal/config"
	"github.com/naijaprep/cbt-backend/internal/engine"
	"github.com/naijaprep/cbt-backend/internal/middleware"
	"github.com/naijaprep/cbt-backend/internal/service"
	ws "github.com/naijaprep/cbt-backend/internal/websocket"
	"github.com/rs/zerolog"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler handles the WebSocket exam stream. Each connection attaches to
// the student's active session and runs one engine.Controller for its
// lifetime: countdown ticks, autosave cadence and the terminal submission
// all live server-side; the client only sends intents.
type WSHandler struct {
	cfg            *config.Config
	sessionService *service.SessionService
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(cfg *config.Config, sessionService *service.SessionService, log zerolog.Logger) *WSHandler {
	return &WSHandler{
		cfg:            cfg,
		sessionService: sessionService,
		log:            log.With().Str("component", "ws_handler").Logger(),
		upgrader:       buildUpgrader(cfg.AllowedOrigins),
	}
}

// SessionStream godoc
// WS /ws/v1/student/session/stream
// Upgrades to WebSocket and attaches to the student's active exam session.
func (h *WSHandler) SessionStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	rawConn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	conn := ws.NewConn(rawConn)
	defer conn.Close()

	studentID := claims.UserID

	state, err := h.sessionService.Resume(c.Request.Context(), studentID)
	if err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			conn.WriteError("no active session")
		} else {
			h.log.Error().Err(err).Int("student_id", studentID).Msg("Resume error")
			conn.WriteError("failed to restore session")
		}
		return
	}

	session, err := h.sessionService.Get(c.Request.Context(), studentID, state.SessionID)
	if err != nil {
		conn.WriteError("failed to restore session")
		return
	}

	wsLog := h.log.With().
		Int("student_id", studentID).
		Str("session_id", session.ID.String()).
		Logger()

	// The sink is bound to this connection's login JTI: if the login is
	// invalidated by a second device, autosaves stop and the client is told
	// to re-authenticate.
	sink := h.sessionService.SinkFor(session, claims.ID)

	var ctrl *engine.Controller
	events := engine.Events{
		OnTick: func(remaining int) {
			conn.WriteTyped(ws.TickResponse{Event: ws.EventTick, Remaining: remaining})
		},
		OnWarning: func(tabSwitches int) {
			conn.WriteTyped(ws.WarningResponse{Event: ws.EventWarning, TabSwitches: tabSwitches})
			snap := ctrl.Snapshot()
			h.sessionService.PublishViolation(context.Background(), session, snap.TabSwitches, snap.FocusLosses)
		},
		OnCompleted: func(result engine.Result) {
			conn.WriteTyped(ws.GradedResponse{
				Event:      ws.EventGraded,
				Status:     "completed",
				Correct:    result.Correct,
				Total:      result.Total,
				Percentage: result.Percentage,
			})
		},
		OnSubmitError: func(err error, retryAvailable bool) {
			conn.WriteTyped(ws.ErrorResponse{
				Event:     ws.EventError,
				Error:     "submission failed",
				Retryable: retryAvailable,
			})
		},
		OnReauthRequired: func() {
			conn.WriteTyped(ws.ReauthResponse{Event: ws.EventReauth})
		},
	}

	ctrl = engine.NewController(engine.Config{
		SessionID:         session.ID.String(),
		ExamID:            session.ExamID.String(),
		InitialSeconds:    state.RemainingSeconds,
		AutosaveInterval:  h.cfg.AutosaveInterval,
		WarningDuration:   h.cfg.WarningDuration,
		ResumeIndex:       state.QuestionIndex,
		ResumeAnswers:     state.Answers,
		ResumeFlagged:     state.Flagged,
		ResumeTabSwitches: state.AntiCheat.TabSwitches,
		ResumeFocusLosses: state.AntiCheat.FocusLosses,
	}, sink, h.sessionService, engine.WallClock{}, h.log, events)
	defer ctrl.Close()

	if err := ctrl.Start(c.Request.Context()); err != nil {
		wsLog.Error().Err(err).Msg("Controller start failed")
		conn.WriteError("failed to start session")
		return
	}
	if ctrl.State() == engine.StateNoQuestions {
		conn.WriteError("exam has no questions")
		return
	}

	conn.WriteTyped(ws.StateResponse{
		Event:            ws.EventState,
		SessionID:        session.ID.String(),
		ExamID:           session.ExamID.String(),
		QuestionIndex:    ctrl.CurrentIndex(),
		Answers:          state.Answers,
		Flagged:          state.Flagged,
		RemainingSeconds: ctrl.Remaining(),
		TabSwitches:      state.AntiCheat.TabSwitches,
	})

	wsLog.Info().Int("remaining_seconds", state.RemainingSeconds).Msg("Student connected")

	for {
		var msg ws.RequestPayload
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return
		}

		switch msg.Action {
		case ws.ActionAnswer:
			h.handleAnswer(conn, ctrl, &msg)
		case ws.ActionFlag:
			h.handleFlag(conn, ctrl, &msg)
		case ws.ActionNavigate:
			if err := ctrl.GoTo(msg.Index); err != nil {
				conn.WriteError("navigation rejected")
			}
		case ws.ActionHidden:
			ctrl.RecordTabSwitch()
		case ws.ActionBlur:
			ctrl.RecordFocusLoss()
		case ws.ActionSubmit:
			h.handleSubmit(conn, wsLog, ctrl)
		case ws.ActionRetry:
			h.handleRetry(conn, wsLog, ctrl)
		case ws.ActionPing:
			conn.WriteTyped(ws.PongResponse{Event: ws.EventPong})
		default:
			wsLog.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
			conn.WriteError("unknown action: " + string(msg.Action))
		}

		if ctrl.State() == engine.StateCompleted {
			wsLog.Info().Msg("Session finished, closing stream")
			return
		}
	}
}

func (h *WSHandler) handleAnswer(conn *ws.Conn, ctrl *engine.Controller, msg *ws.RequestPayload) {
	if msg.QID == "" {
		conn.WriteError("q_id is required")
		return
	}
	if err := ctrl.SetAnswer(msg.QID, msg.Answer); err != nil {
		conn.WriteError("answer rejected")
		return
	}
	conn.WriteTyped(ws.SavedResponse{Event: ws.EventSaved, QID: msg.QID})
}

func (h *WSHandler) handleFlag(conn *ws.Conn, ctrl *engine.Controller, msg *ws.RequestPayload) {
	if msg.QID == "" {
		conn.WriteError("q_id is required")
		return
	}
	flagged, err := ctrl.ToggleFlag(msg.QID)
	if err != nil {
		conn.WriteError("flag rejected")
		return
	}
	conn.WriteTyped(ws.FlaggedResponse{Event: ws.EventFlagged, QID: msg.QID, Flagged: flagged})
}

func (h *WSHandler) handleSubmit(conn *ws.Conn, wsLog zerolog.Logger, ctrl *engine.Controller) {
	err := ctrl.Submit(context.Background(), engine.TriggerStudent)
	switch {
	case err == nil, errors.Is(err, engine.ErrAlreadyDone):
		// Graded (or a timer submission won the race); OnCompleted already
		// delivered the result.
	case errors.Is(err, engine.ErrNotInProgress):
		conn.WriteError("session is not in progress")
	default:
		// Sink failure; OnSubmitError already told the client whether a
		// retry is available.
		wsLog.Error().Err(err).Msg("Submit failed")
	}
}

func (h *WSHandler) handleRetry(conn *ws.Conn, wsLog zerolog.Logger, ctrl *engine.Controller) {
	err := ctrl.Retry(context.Background())
	switch {
	case err == nil:
	case errors.Is(err, engine.ErrNoRetryPending):
		conn.WriteError("no failed submission to retry")
	case errors.Is(err, engine.ErrNoRetryAllowed):
		conn.WriteError("submission retry already used")
	default:
		wsLog.Error().Err(err).Msg("Retry failed")
	}
}
