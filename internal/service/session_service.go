package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/naijaprep/cbt-backend/internal/config"
	"github.com/naijaprep/cbt-backend/internal/engine"
	"github.com/naijaprep/cbt-backend/internal/model"
	"github.com/naijaprep/cbt-backend/internal/repository"
	"github.com/naijaprep/cbt-backend/internal/response"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Session domain errors.
var (
	ErrExamNotAvailable    = errors.New("exam is not available")
	ErrPremiumRequired     = errors.New("active premium plan required for this exam")
	ErrActiveSessionExists = errors.New("another exam session is already in progress")
	ErrSessionNotFound     = errors.New("session not found")
	ErrNotSessionOwner     = errors.New("session belongs to another student")
	ErrSessionCompleted    = errors.New("session already completed")
)

// SessionService handles exam session lifecycle: starting, resuming,
// autosave persistence, and terminal submission. It backs both the REST
// partial-update path and the WebSocket engine path.
type SessionService struct {
	sessionRepo *repository.ExamSessionRepository
	examRepo    *repository.ExamRepository
	studentRepo *repository.StudentRepository
	examService *ExamService
	authService *AuthService
	rdb         *redis.Client
	log         zerolog.Logger
}

// NewSessionService creates a new SessionService.
func NewSessionService(
	sessionRepo *repository.ExamSessionRepository,
	examRepo *repository.ExamRepository,
	studentRepo *repository.StudentRepository,
	examService *ExamService,
	authService *AuthService,
	rdb *redis.Client,
	log zerolog.Logger,
) *SessionService {
	return &SessionService{
		sessionRepo: sessionRepo,
		examRepo:    examRepo,
		studentRepo: studentRepo,
		examService: examService,
		authService: authService,
		rdb:         rdb,
		log:         log.With().Str("component", "session_service").Logger(),
	}
}

// Start creates a session for the student against a published exam and
// returns it with the cached paper. A student can hold at most one
// in-progress session; starting while another is active is rejected, except
// when the active session is for the same exam, which resumes it instead.
func (s *SessionService) Start(ctx context.Context, studentID int, examID uuid.UUID) (*model.ExamSession, *model.ExamPaper, error) {
	exam, err := s.examRepo.GetByID(ctx, examID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, ErrExamNotAvailable
		}
		return nil, nil, fmt.Errorf("get exam: %w", err)
	}
	if exam.Status != model.ExamStatusPublished {
		return nil, nil, ErrExamNotAvailable
	}

	if exam.IsPremium {
		student, err := s.studentRepo.GetByID(ctx, studentID)
		if err != nil {
			return nil, nil, fmt.Errorf("get student: %w", err)
		}
		if !student.HasActivePremium(time.Now()) {
			return nil, nil, ErrPremiumRequired
		}
	}

	paper, err := s.paperWithHeal(ctx, exam)
	if err != nil {
		return nil, nil, err
	}

	active, err := s.sessionRepo.GetActiveByStudent(ctx, studentID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, fmt.Errorf("check active session: %w", err)
	}
	if active != nil {
		if active.ExamID != examID {
			return nil, nil, ErrActiveSessionExists
		}
		// Reconnect to the same exam: hand the existing session back.
		s.cacheStartTime(ctx, active)
		return active, paper, nil
	}

	session := &model.ExamSession{
		ExamID:    examID,
		StudentID: studentID,
		Status:    model.SessionStatusInProgress,
	}
	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, nil, fmt.Errorf("create session: %w", err)
	}
	s.cacheStartTime(ctx, session)

	s.log.Info().
		Str("session_id", session.ID.String()).
		Str("exam_id", examID.String()).
		Int("student_id", studentID).
		Msg("Session started")
	return session, paper, nil
}

// Resume rebuilds the reconnect state of the student's active session:
// autosaved answers and flags from Redis, plus the remaining time recomputed
// from the persisted start timestamp. A stored countdown value is never
// trusted; a client cannot pause the clock by going offline.
func (s *SessionService) Resume(ctx context.Context, studentID int) (*model.SessionResumeState, error) {
	session, err := s.sessionRepo.GetActiveByStudent(ctx, studentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("get active session: %w", err)
	}

	exam, err := s.examRepo.GetByID(ctx, session.ExamID)
	if err != nil {
		return nil, fmt.Errorf("get exam: %w", err)
	}

	remaining, err := s.RemainingSeconds(ctx, session, exam.DurationMinutes)
	if err != nil {
		return nil, err
	}

	examID := session.ExamID.String()
	answers, err := s.rdb.HGetAll(ctx, config.CacheKey.SessionAnswersKey(examID, studentID)).Result()
	if err != nil {
		return nil, fmt.Errorf("get autosaved answers: %w", err)
	}
	flagged, err := s.rdb.SMembers(ctx, config.CacheKey.SessionFlagsKey(examID, studentID)).Result()
	if err != nil {
		return nil, fmt.Errorf("get flags: %w", err)
	}
	progress, err := s.rdb.HGetAll(ctx, config.CacheKey.SessionProgressKey(examID, studentID)).Result()
	if err != nil {
		return nil, fmt.Errorf("get progress: %w", err)
	}

	state := &model.SessionResumeState{
		SessionID:        session.ID,
		ExamID:           session.ExamID,
		StudentID:        studentID,
		Answers:          answers,
		Flagged:          flagged,
		RemainingSeconds: remaining,
		AntiCheat:        session.AntiCheat,
	}
	if idx, err := strconv.Atoi(progress["question_index"]); err == nil {
		state.QuestionIndex = idx
	}
	if tabs, err := strconv.Atoi(progress["tab_switches"]); err == nil && tabs > state.AntiCheat.TabSwitches {
		state.AntiCheat.TabSwitches = tabs
	}
	if losses, err := strconv.Atoi(progress["focus_losses"]); err == nil && losses > state.AntiCheat.FocusLosses {
		state.AntiCheat.FocusLosses = losses
	}
	return state, nil
}

// Get retrieves a session by ID, verifying ownership.
func (s *SessionService) Get(ctx context.Context, studentID int, sessionID uuid.UUID) (*model.ExamSession, error) {
	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	if session.StudentID != studentID {
		return nil, ErrNotSessionOwner
	}
	return session, nil
}

// Patch applies a partial update to an in-progress session: any subset of
// answers, flags, cursor position and anti-cheat counters. A COMPLETED status
// in the patch triggers the terminal submission: the session is graded in RAM
// against the cached answer key and the durable write is queued.
func (s *SessionService) Patch(ctx context.Context, studentID int, sessionID uuid.UUID, req *model.SessionPatchRequest) (*model.ExamSession, error) {
	session, err := s.Get(ctx, studentID, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != model.SessionStatusInProgress {
		return nil, ErrSessionCompleted
	}

	examID := session.ExamID.String()
	pipe := s.rdb.Pipeline()
	if len(req.Answers) > 0 {
		flat := make(map[string]interface{}, len(req.Answers))
		for qid, ans := range req.Answers {
			flat[qid] = ans
		}
		pipe.HSet(ctx, config.CacheKey.SessionAnswersKey(examID, studentID), flat)
	}
	if req.Flagged != nil {
		flagsKey := config.CacheKey.SessionFlagsKey(examID, studentID)
		pipe.Del(ctx, flagsKey)
		if len(req.Flagged) > 0 {
			members := make([]interface{}, len(req.Flagged))
			for i, f := range req.Flagged {
				members[i] = f
			}
			pipe.SAdd(ctx, flagsKey, members...)
		}
	}
	progress := map[string]interface{}{}
	if req.QuestionIndex != nil {
		progress["question_index"] = *req.QuestionIndex
	}
	if req.AntiCheat != nil {
		progress["tab_switches"] = req.AntiCheat.TabSwitches
		progress["focus_losses"] = req.AntiCheat.FocusLosses
	}
	if len(progress) > 0 {
		pipe.HSet(ctx, config.CacheKey.SessionProgressKey(examID, studentID), progress)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("save progress: %w", err)
	}

	if req.AntiCheat != nil {
		s.enqueueViolations(ctx, session, req.AntiCheat)
	}

	if req.Status != nil && *req.Status == model.SessionStatusCompleted {
		return s.submitViaQueue(ctx, session)
	}
	return session, nil
}

// submitViaQueue grades the session in RAM and queues the durable completion
// write. The Redis submitted latch is the idempotency guard: only the first
// caller grades, any replay gets ErrSessionCompleted.
func (s *SessionService) submitViaQueue(ctx context.Context, session *model.ExamSession) (*model.ExamSession, error) {
	latched, err := s.rdb.SetNX(ctx, config.CacheKey.SessionSubmittedKey(session.ID.String()), 1, 24*time.Hour).Result()
	if err != nil {
		return nil, fmt.Errorf("submission latch: %w", err)
	}
	if !latched {
		return nil, ErrSessionCompleted
	}

	answerKey, err := s.examService.GetAnswerKey(ctx, session.ExamID)
	if err != nil {
		return nil, fmt.Errorf("get answer key: %w", err)
	}
	answers, err := s.rdb.HGetAll(ctx, config.CacheKey.SessionAnswersKey(session.ExamID.String(), session.StudentID)).Result()
	if err != nil {
		return nil, fmt.Errorf("get answers: %w", err)
	}

	correct := 0
	for qid, want := range answerKey {
		if got, ok := answers[qid]; ok && got == want {
			correct++
		}
	}
	total := len(answerKey)
	percentage := 0.0
	if total > 0 {
		percentage = float64(correct) / float64(total) * 100
	}

	payload, _ := json.Marshal(map[string]interface{}{
		"session_id":   session.ID.String(),
		"score":        correct,
		"percentage":   percentage,
		"answers":      answers,
		"tab_switches": session.AntiCheat.TabSwitches,
		"focus_losses": session.AntiCheat.FocusLosses,
	})
	if err := s.rdb.RPush(ctx, config.WorkerKey.PersistScoresQueue, payload).Err(); err != nil {
		return nil, fmt.Errorf("queue score: %w", err)
	}
	s.clearSessionBuffers(ctx, session)

	now := time.Now()
	session.Status = model.SessionStatusCompleted
	session.Score = &correct
	session.Percentage = &percentage
	session.FinishedAt = &now

	s.log.Info().
		Str("session_id", session.ID.String()).
		Int("score", correct).
		Float64("percentage", percentage).
		Msg("Session submitted and graded")
	return session, nil
}

// Results retrieves the student's completed-session history.
func (s *SessionService) Results(ctx context.Context, studentID, page, perPage int) ([]repository.SessionResult, *response.Pagination, error) {
	page, perPage = clampPage(page, perPage)
	results, total, err := s.sessionRepo.ListResultsByStudent(ctx, studentID, perPage, (page-1)*perPage)
	if err != nil {
		return nil, nil, err
	}
	if results == nil {
		results = []repository.SessionResult{}
	}
	return results, response.NewPagination(page, perPage, total), nil
}

// RemainingSeconds recomputes the session's remaining time from its start
// timestamp. The cached start time is preferred; a cache miss self-heals from
// PostgreSQL.
func (s *SessionService) RemainingSeconds(ctx context.Context, session *model.ExamSession, durationMinutes int) (int, error) {
	startKey := config.CacheKey.SessionStartKey(session.ExamID.String(), session.StudentID)

	var startUnix int64
	val, err := s.rdb.Get(ctx, startKey).Result()
	switch {
	case errors.Is(err, redis.Nil):
		startUnix = session.StartedAt.Unix()
		_ = s.rdb.Set(ctx, startKey, startUnix, 0).Err()
	case err != nil:
		return 0, fmt.Errorf("get start time: %w", err)
	default:
		startUnix, err = strconv.ParseInt(val, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid start time in cache: %w", err)
		}
	}

	endTime := time.Unix(startUnix, 0).Add(time.Duration(durationMinutes) * time.Minute)
	remaining := time.Until(endTime)
	if remaining < 0 {
		remaining = 0
	}
	return int(remaining.Seconds()), nil
}

// Questions implements engine.QuestionSource: it merges the cached paper with
// the cached answer key into the engine's question form.
func (s *SessionService) Questions(ctx context.Context, examID string) ([]engine.Question, error) {
	id, err := uuid.Parse(examID)
	if err != nil {
		return nil, fmt.Errorf("parse exam id: %w", err)
	}

	paper, err := s.examService.GetExamPaper(ctx, id)
	if err != nil {
		return nil, err
	}
	answerKey, err := s.examService.GetAnswerKey(ctx, id)
	if err != nil {
		return nil, err
	}

	questions := make([]engine.Question, len(paper.Questions))
	for i, q := range paper.Questions {
		questions[i] = engine.Question{
			ID:            q.ID.String(),
			Text:          q.Text,
			Options:       q.Options,
			CorrectAnswer: answerKey[q.ID.String()],
			Difficulty:    q.Difficulty,
			Points:        q.Points,
		}
	}
	return questions, nil
}

// SinkFor builds the engine's persistence sink for one WebSocket-driven
// session. The login JTI is captured so every autosave re-verifies that the
// token still holds the single active login.
func (s *SessionService) SinkFor(session *model.ExamSession, jti string) engine.SessionSink {
	return &sessionSink{svc: s, session: *session, jti: jti}
}

type sessionSink struct {
	svc     *SessionService
	session model.ExamSession
	jti     string
}

// SaveProgress persists an autosave snapshot: answers, flags and cursor into
// Redis, anti-cheat counters onto the persistence queue. An invalidated login
// maps to engine.ErrUnauthorized which halts the engine's autosave cadence.
func (k *sessionSink) SaveProgress(ctx context.Context, sessionID string, snap engine.Snapshot) error {
	s := k.svc
	if err := s.authService.ValidateStudentLogin(ctx, k.session.StudentID, k.jti); err != nil {
		if errors.Is(err, ErrLoginInvalidated) {
			return engine.ErrUnauthorized
		}
		return err
	}

	// A latched submission means this snapshot arrived after the terminal
	// write: stale by definition, never retried.
	latched, err := s.rdb.Exists(ctx, config.CacheKey.SessionSubmittedKey(sessionID)).Result()
	if err == nil && latched > 0 {
		return engine.ErrRejected
	}

	examID := k.session.ExamID.String()
	studentID := k.session.StudentID

	pipe := s.rdb.Pipeline()
	if len(snap.Answers) > 0 {
		flat := make(map[string]interface{}, len(snap.Answers))
		for qid, ans := range snap.Answers {
			flat[qid] = ans
		}
		pipe.HSet(ctx, config.CacheKey.SessionAnswersKey(examID, studentID), flat)
	}
	flagsKey := config.CacheKey.SessionFlagsKey(examID, studentID)
	pipe.Del(ctx, flagsKey)
	if len(snap.Flagged) > 0 {
		members := make([]interface{}, len(snap.Flagged))
		for i, f := range snap.Flagged {
			members[i] = f
		}
		pipe.SAdd(ctx, flagsKey, members...)
	}
	pipe.HSet(ctx, config.CacheKey.SessionProgressKey(examID, studentID), map[string]interface{}{
		"question_index": snap.QuestionIndex,
		"remaining":      snap.RemainingSeconds,
		"tab_switches":   snap.TabSwitches,
		"focus_losses":   snap.FocusLosses,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}

	payload, _ := json.Marshal(map[string]interface{}{
		"session_id":   sessionID,
		"tab_switches": snap.TabSwitches,
		"focus_losses": snap.FocusLosses,
	})
	if err := s.rdb.RPush(ctx, config.WorkerKey.PersistProgressQueue, payload).Err(); err != nil {
		s.log.Warn().Err(err).Str("session_id", sessionID).Msg("Progress queue push failed")
	}
	return nil
}

// Complete performs the terminal submission synchronously so the engine's
// retry semantics get a real error to act on.
func (k *sessionSink) Complete(ctx context.Context, sessionID string, snap engine.Snapshot, result engine.Result) error {
	s := k.svc
	id, err := uuid.Parse(sessionID)
	if err != nil {
		return fmt.Errorf("parse session id: %w", err)
	}

	if err := s.sessionRepo.Complete(ctx, id, result.Correct, result.Percentage,
		snap.Answers, snap.TabSwitches, snap.FocusLosses); err != nil {
		return fmt.Errorf("complete session: %w", err)
	}

	_ = s.rdb.Set(ctx, config.CacheKey.SessionSubmittedKey(sessionID), 1, 24*time.Hour).Err()
	s.clearSessionBuffers(ctx, &k.session)

	s.log.Info().
		Str("session_id", sessionID).
		Int("score", result.Correct).
		Float64("percentage", result.Percentage).
		Msg("Session completed")
	return nil
}

// enqueueViolations queues anti-cheat counters for durable persistence and
// publishes them on the exam's monitor channel.
func (s *SessionService) enqueueViolations(ctx context.Context, session *model.ExamSession, data *model.AntiCheatData) {
	payload, _ := json.Marshal(map[string]interface{}{
		"session_id":   session.ID.String(),
		"exam_id":      session.ExamID.String(),
		"student_id":   session.StudentID,
		"tab_switches": data.TabSwitches,
		"focus_losses": data.FocusLosses,
	})
	if err := s.rdb.RPush(ctx, config.WorkerKey.PersistViolationsQueue, payload).Err(); err != nil {
		s.log.Warn().Err(err).Str("session_id", session.ID.String()).Msg("Violations queue push failed")
	}
}

// PublishViolation pushes a single live integrity event to the violations
// queue. Used by the WebSocket path on each recorded tab switch.
func (s *SessionService) PublishViolation(ctx context.Context, session *model.ExamSession, tabSwitches, focusLosses int) {
	s.enqueueViolations(ctx, session, &model.AntiCheatData{
		TabSwitches: tabSwitches,
		FocusLosses: focusLosses,
	})
}

func (s *SessionService) clearSessionBuffers(ctx context.Context, session *model.ExamSession) {
	examID := session.ExamID.String()
	pipe := s.rdb.Pipeline()
	pipe.Del(ctx, config.CacheKey.SessionAnswersKey(examID, session.StudentID))
	pipe.Del(ctx, config.CacheKey.SessionFlagsKey(examID, session.StudentID))
	pipe.Del(ctx, config.CacheKey.SessionProgressKey(examID, session.StudentID))
	pipe.Del(ctx, config.CacheKey.SessionStartKey(examID, session.StudentID))
	if _, err := pipe.Exec(ctx); err != nil {
		s.log.Warn().Err(err).Str("session_id", session.ID.String()).Msg("Buffer cleanup failed")
	}
}

func (s *SessionService) cacheStartTime(ctx context.Context, session *model.ExamSession) {
	startKey := config.CacheKey.SessionStartKey(session.ExamID.String(), session.StudentID)
	if err := s.rdb.Set(ctx, startKey, session.StartedAt.Unix(), 0).Err(); err != nil {
		s.log.Warn().Err(err).Str("session_id", session.ID.String()).Msg("Failed to cache start time")
	}
}

// paperWithHeal fetches the cached paper, re-warming the cache from
// PostgreSQL on a miss.
func (s *SessionService) paperWithHeal(ctx context.Context, exam *model.Exam) (*model.ExamPaper, error) {
	paper, err := s.examService.GetExamPaper(ctx, exam.ID)
	if err == nil {
		return paper, nil
	}
	if !errors.Is(err, ErrPaperNotCached) {
		return nil, err
	}
	if err := s.examService.WarmExamCache(ctx, exam); err != nil {
		return nil, fmt.Errorf("rewarm exam cache: %w", err)
	}
	return s.examService.GetExamPaper(ctx, exam.ID)
}
