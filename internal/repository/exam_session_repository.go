package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/naijaprep/cbt-backend/internal/model"
)

// SessionResult joins a completed session with its exam metadata for the
// student's result history.
type SessionResult struct {
	SessionID  uuid.UUID      `json:"session_id"`
	ExamID     uuid.UUID      `json:"exam_id"`
	ExamTitle  string         `json:"exam_title"`
	Kind       model.ExamKind `json:"kind"`
	ExamYear   int            `json:"exam_year"`
	Score      *int           `json:"score"`
	Percentage *float64       `json:"percentage"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt *time.Time     `json:"finished_at"`
}

// ExamSessionRepository handles exam session data access.
type ExamSessionRepository struct {
	pool *pgxpool.Pool
}

// NewExamSessionRepository creates a new ExamSessionRepository.
func NewExamSessionRepository(pool *pgxpool.Pool) *ExamSessionRepository {
	return &ExamSessionRepository{pool: pool}
}

// GetByID retrieves a session by its UUID.
func (r *ExamSessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.ExamSession, error) {
	s := &model.ExamSession{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, exam_id, student_id, started_at, finished_at, status,
		        score, percentage, tab_switches, focus_losses
		 FROM exam_sessions WHERE id = $1`, id,
	).Scan(&s.ID, &s.ExamID, &s.StudentID, &s.StartedAt, &s.FinishedAt, &s.Status,
		&s.Score, &s.Percentage, &s.AntiCheat.TabSwitches, &s.AntiCheat.FocusLosses)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// GetActiveByStudent retrieves the student's in-progress session, if any.
// One active session per student is enforced at the service layer; the
// partial unique index on (student_id) WHERE status = 'IN_PROGRESS' backs it.
func (r *ExamSessionRepository) GetActiveByStudent(ctx context.Context, studentID int) (*model.ExamSession, error) {
	s := &model.ExamSession{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, exam_id, student_id, started_at, finished_at, status,
		        score, percentage, tab_switches, focus_losses
		 FROM exam_sessions
		 WHERE student_id = $1 AND status = $2`, studentID, model.SessionStatusInProgress,
	).Scan(&s.ID, &s.ExamID, &s.StudentID, &s.StartedAt, &s.FinishedAt, &s.Status,
		&s.Score, &s.Percentage, &s.AntiCheat.TabSwitches, &s.AntiCheat.FocusLosses)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Create inserts a new session (student starts the exam).
func (r *ExamSessionRepository) Create(ctx context.Context, s *model.ExamSession) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO exam_sessions (exam_id, student_id, status)
		 VALUES ($1, $2, $3)
		 RETURNING id, started_at`,
		s.ExamID, s.StudentID, model.SessionStatusInProgress,
	).Scan(&s.ID, &s.StartedAt)
}

// UpdateProgress persists an autosave batch: anti-cheat counters only, since
// answers and flags live in Redis until the terminal submission. Counters
// never decrease; GREATEST guards against an out-of-order batch.
func (r *ExamSessionRepository) UpdateProgress(ctx context.Context, id uuid.UUID, tabSwitches, focusLosses int) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE exam_sessions
		 SET tab_switches = GREATEST(tab_switches, $1),
		     focus_losses = GREATEST(focus_losses, $2)
		 WHERE id = $3 AND status = $4`,
		tabSwitches, focusLosses, id, model.SessionStatusInProgress)
	return err
}

// Complete marks a session as completed with its final score. The status
// predicate makes the write idempotent: a second completion attempt for the
// same session matches zero rows.
func (r *ExamSessionRepository) Complete(ctx context.Context, id uuid.UUID, score int, percentage float64, answers map[string]string, tabSwitches, focusLosses int) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE exam_sessions
		 SET status = $1, score = $2, percentage = $3, answers = $4,
		     tab_switches = GREATEST(tab_switches, $5),
		     focus_losses = GREATEST(focus_losses, $6),
		     finished_at = NOW()
		 WHERE id = $7 AND status = $8`,
		model.SessionStatusCompleted, score, percentage, answers,
		tabSwitches, focusLosses, id, model.SessionStatusInProgress)
	return err
}

// ListResultsByStudent retrieves the student's completed sessions with exam
// metadata, most recent first.
func (r *ExamSessionRepository) ListResultsByStudent(ctx context.Context, studentID, limit, offset int) ([]SessionResult, int, error) {
	var total int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM exam_sessions
		 WHERE student_id = $1 AND status = $2`,
		studentID, model.SessionStatusCompleted,
	).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT es.id, es.exam_id, e.title, e.kind, e.exam_year,
		        es.score, es.percentage, es.started_at, es.finished_at
		 FROM exam_sessions es
		 JOIN exams e ON es.exam_id = e.id
		 WHERE es.student_id = $1 AND es.status = $2
		 ORDER BY es.finished_at DESC
		 LIMIT $3 OFFSET $4`,
		studentID, model.SessionStatusCompleted, limit, offset,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var results []SessionResult
	for rows.Next() {
		var sr SessionResult
		if err := rows.Scan(&sr.SessionID, &sr.ExamID, &sr.ExamTitle, &sr.Kind, &sr.ExamYear,
			&sr.Score, &sr.Percentage, &sr.StartedAt, &sr.FinishedAt); err != nil {
			return nil, 0, err
		}
		results = append(results, sr)
	}
	return results, total, rows.Err()
}

// GetAnswers retrieves the submitted answer map of a completed session.
// Used by the tutor endpoint to check what the student actually picked.
func (r *ExamSessionRepository) GetAnswers(ctx context.Context, id uuid.UUID) (map[string]string, error) {
	var answers map[string]string
	err := r.pool.QueryRow(ctx,
		`SELECT answers FROM exam_sessions WHERE id = $1`, id,
	).Scan(&answers)
	if err != nil {
		return nil, err
	}
	return answers, nil
}
