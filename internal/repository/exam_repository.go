package repository

import (
	"context"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/naijaprep/cbt-backend/internal/model"
)

// ExamRepository handles exam data access.
type ExamRepository struct {
	pool *pgxpool.Pool
}

// NewExamRepository creates a new ExamRepository.
func NewExamRepository(pool *pgxpool.Pool) *ExamRepository {
	return &ExamRepository{pool: pool}
}

// GetByID retrieves an exam by its UUID.
func (r *ExamRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	e := &model.Exam{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, title, kind, subject_id, exam_year, duration_minutes,
		        question_count, is_premium, status, created_at, updated_at
		 FROM exams WHERE id = $1`, id,
	).Scan(&e.ID, &e.Title, &e.Kind, &e.SubjectID, &e.ExamYear, &e.DurationMinutes,
		&e.QuestionCount, &e.IsPremium, &e.Status, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// ListPaginated retrieves exams with pagination and optional filters on
// kind, subject and year. Pass nil for a filter to skip it.
func (r *ExamRepository) ListPaginated(ctx context.Context, kind *model.ExamKind, subjectID *int, examYear *int, limit, offset int) ([]model.Exam, int, error) {
	baseQuery := ` FROM exams WHERE 1=1`
	var args []any

	if kind != nil {
		args = append(args, *kind)
		baseQuery += ` AND kind = $` + strconv.Itoa(len(args))
	}
	if subjectID != nil {
		args = append(args, *subjectID)
		baseQuery += ` AND subject_id = $` + strconv.Itoa(len(args))
	}
	if examYear != nil {
		args = append(args, *examYear)
		baseQuery += ` AND exam_year = $` + strconv.Itoa(len(args))
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*)`+baseQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT id, title, kind, subject_id, exam_year, duration_minutes,
	                 question_count, is_premium, status, created_at, updated_at` +
		baseQuery +
		` ORDER BY exam_year DESC, created_at DESC` +
		` LIMIT $` + strconv.Itoa(len(args)+1) + ` OFFSET $` + strconv.Itoa(len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var exams []model.Exam
	for rows.Next() {
		var e model.Exam
		if err := rows.Scan(&e.ID, &e.Title, &e.Kind, &e.SubjectID, &e.ExamYear, &e.DurationMinutes,
			&e.QuestionCount, &e.IsPremium, &e.Status, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, 0, err
		}
		exams = append(exams, e)
	}
	return exams, total, rows.Err()
}

// ListPublishedFiltered retrieves published exams for the student catalogue,
// with the same optional filters as ListPaginated.
func (r *ExamRepository) ListPublishedFiltered(ctx context.Context, kind *model.ExamKind, subjectID *int, examYear *int, limit, offset int) ([]model.Exam, int, error) {
	baseQuery := ` FROM exams WHERE status = $1`
	args := []any{model.ExamStatusPublished}

	if kind != nil {
		args = append(args, *kind)
		baseQuery += ` AND kind = $` + strconv.Itoa(len(args))
	}
	if subjectID != nil {
		args = append(args, *subjectID)
		baseQuery += ` AND subject_id = $` + strconv.Itoa(len(args))
	}
	if examYear != nil {
		args = append(args, *examYear)
		baseQuery += ` AND exam_year = $` + strconv.Itoa(len(args))
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*)`+baseQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT id, title, kind, subject_id, exam_year, duration_minutes,
	                 question_count, is_premium, status, created_at, updated_at` +
		baseQuery +
		` ORDER BY exam_year DESC, created_at DESC` +
		` LIMIT $` + strconv.Itoa(len(args)+1) + ` OFFSET $` + strconv.Itoa(len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var exams []model.Exam
	for rows.Next() {
		var e model.Exam
		if err := rows.Scan(&e.ID, &e.Title, &e.Kind, &e.SubjectID, &e.ExamYear, &e.DurationMinutes,
			&e.QuestionCount, &e.IsPremium, &e.Status, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, 0, err
		}
		exams = append(exams, e)
	}
	return exams, total, rows.Err()
}

// ListPublished returns all PUBLISHED exams.
// Used for cache prewarming on application startup.
func (r *ExamRepository) ListPublished(ctx context.Context) ([]model.Exam, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, title, kind, subject_id, exam_year, duration_minutes,
		        question_count, is_premium, status, created_at, updated_at
		 FROM exams WHERE status = $1
		 ORDER BY created_at DESC`, model.ExamStatusPublished)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var exams []model.Exam
	for rows.Next() {
		var e model.Exam
		if err := rows.Scan(&e.ID, &e.Title, &e.Kind, &e.SubjectID, &e.ExamYear, &e.DurationMinutes,
			&e.QuestionCount, &e.IsPremium, &e.Status, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		exams = append(exams, e)
	}
	return exams, rows.Err()
}

// Create inserts a new exam in DRAFT status.
func (r *ExamRepository) Create(ctx context.Context, e *model.Exam) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO exams (title, kind, subject_id, exam_year, duration_minutes, is_premium, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, created_at, updated_at`,
		e.Title, e.Kind, e.SubjectID, e.ExamYear, e.DurationMinutes, e.IsPremium, e.Status,
	).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
}

// Update modifies an exam's metadata.
func (r *ExamRepository) Update(ctx context.Context, e *model.Exam) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE exams
		 SET title = $1, kind = $2, subject_id = $3, exam_year = $4,
		     duration_minutes = $5, is_premium = $6, updated_at = NOW()
		 WHERE id = $7`,
		e.Title, e.Kind, e.SubjectID, e.ExamYear, e.DurationMinutes, e.IsPremium, e.ID)
	return err
}

// UpdateStatus updates an exam's status.
func (r *ExamRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.ExamStatus) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE exams SET status = $1, updated_at = NOW() WHERE id = $2`,
		status, id)
	return err
}

// SyncQuestionCount recomputes question_count from the questions table.
// Called after bulk question changes so the catalogue stays accurate.
func (r *ExamRepository) SyncQuestionCount(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE exams
		 SET question_count = (SELECT COUNT(*) FROM questions WHERE exam_id = $1),
		     updated_at = NOW()
		 WHERE id = $1`, id)
	return err
}

// Delete removes an exam and, via cascade, its questions.
func (r *ExamRepository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM exams WHERE id = $1`, id)
	return err
}
