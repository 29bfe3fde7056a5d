package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/naijaprep/cbt-backend/internal/model"
)

// PaymentRepository handles payment record data access.
type PaymentRepository struct {
	pool *pgxpool.Pool
}

// NewPaymentRepository creates a new PaymentRepository.
func NewPaymentRepository(pool *pgxpool.Pool) *PaymentRepository {
	return &PaymentRepository{pool: pool}
}

// Create inserts a PENDING payment record for a freshly initialized
// gateway transaction.
func (r *PaymentRepository) Create(ctx context.Context, p *model.Payment) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO payments (student_id, reference, amount_kobo, plan_months, status)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at`,
		p.StudentID, p.Reference, p.AmountKobo, p.PlanMonths, model.PaymentStatusPending,
	).Scan(&p.ID, &p.CreatedAt)
}

// GetByReference retrieves a payment by its gateway reference.
func (r *PaymentRepository) GetByReference(ctx context.Context, reference string) (*model.Payment, error) {
	p := &model.Payment{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, student_id, reference, amount_kobo, plan_months, status, created_at, verified_at
		 FROM payments WHERE reference = $1`, reference,
	).Scan(&p.ID, &p.StudentID, &p.Reference, &p.AmountKobo, &p.PlanMonths, &p.Status, &p.CreatedAt, &p.VerifiedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// MarkVerified settles a payment's final status after gateway verification.
// The PENDING predicate makes a replayed webhook or double verify a no-op.
func (r *PaymentRepository) MarkVerified(ctx context.Context, id uuid.UUID, status model.PaymentStatus) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE payments SET status = $1, verified_at = NOW()
		 WHERE id = $2 AND status = $3`,
		status, id, model.PaymentStatusPending)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ListByStudent retrieves a student's payment history, most recent first.
func (r *PaymentRepository) ListByStudent(ctx context.Context, studentID int) ([]model.Payment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, student_id, reference, amount_kobo, plan_months, status, created_at, verified_at
		 FROM payments WHERE student_id = $1
		 ORDER BY created_at DESC`, studentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []model.Payment
	for rows.Next() {
		var p model.Payment
		if err := rows.Scan(&p.ID, &p.StudentID, &p.Reference, &p.AmountKobo, &p.PlanMonths, &p.Status, &p.CreatedAt, &p.VerifiedAt); err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}
