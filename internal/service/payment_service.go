package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/naijaprep/cbt-backend/internal/model"
	"github.com/naijaprep/cbt-backend/internal/paystack"
	"github.com/naijaprep/cbt-backend/internal/repository"
	"github.com/rs/zerolog"
)

// Premium plan pricing in kobo per plan length.
var planPriceKobo = map[int]int64{
	1:  150000,  // ₦1,500
	3:  400000,  // ₦4,000
	12: 1200000, // ₦12,000
}

var (
	ErrPaymentNotFound = errors.New("payment not found")
	ErrInvalidPlan     = errors.New("unsupported plan length")
)

// PaymentService handles premium-plan purchases through Paystack.
type PaymentService struct {
	paymentRepo *repository.PaymentRepository
	studentRepo *repository.StudentRepository
	gateway     *paystack.Client
	log         zerolog.Logger
}

// NewPaymentService creates a new PaymentService.
func NewPaymentService(
	paymentRepo *repository.PaymentRepository,
	studentRepo *repository.StudentRepository,
	gateway *paystack.Client,
	log zerolog.Logger,
) *PaymentService {
	return &PaymentService{
		paymentRepo: paymentRepo,
		studentRepo: studentRepo,
		gateway:     gateway,
		log:         log.With().Str("component", "payment_service").Logger(),
	}
}

// Initialize creates a PENDING payment and a gateway checkout session.
func (s *PaymentService) Initialize(ctx context.Context, studentID, planMonths int) (*model.InitializePaymentResponse, error) {
	amount, ok := planPriceKobo[planMonths]
	if !ok {
		return nil, ErrInvalidPlan
	}

	student, err := s.studentRepo.GetByID(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("get student: %w", err)
	}

	reference := "naija-" + uuid.New().String()
	tx, err := s.gateway.Initialize(ctx, &paystack.InitializeRequest{
		Email:      student.Email,
		AmountKobo: amount,
		Reference:  reference,
	})
	if err != nil {
		return nil, fmt.Errorf("initialize transaction: %w", err)
	}

	payment := &model.Payment{
		StudentID:  studentID,
		Reference:  reference,
		AmountKobo: amount,
		PlanMonths: planMonths,
	}
	if err := s.paymentRepo.Create(ctx, payment); err != nil {
		return nil, fmt.Errorf("record payment: %w", err)
	}

	s.log.Info().
		Str("reference", reference).
		Int("student_id", studentID).
		Int64("amount_kobo", amount).
		Msg("Payment initialized")

	return &model.InitializePaymentResponse{
		Reference:        reference,
		AuthorizationURL: tx.AuthorizationURL,
		AccessCode:       tx.AccessCode,
	}, nil
}

// Verify checks a payment's settled state with the gateway and, on success,
// upgrades the student's plan. Safe to call repeatedly: the PENDING predicate
// in MarkVerified makes the upgrade fire at most once per payment.
func (s *PaymentService) Verify(ctx context.Context, studentID int, reference string) (*model.Payment, error) {
	payment, err := s.paymentRepo.GetByReference(ctx, reference)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	if payment.StudentID != studentID {
		return nil, ErrPaymentNotFound
	}
	if payment.Status != model.PaymentStatusPending {
		return payment, nil
	}

	tx, err := s.gateway.Verify(ctx, reference)
	if err != nil {
		return nil, fmt.Errorf("verify transaction: %w", err)
	}

	status := model.PaymentStatusFailed
	if tx.Status == "success" && tx.AmountKobo >= payment.AmountKobo {
		status = model.PaymentStatusSuccess
	}

	settled, err := s.paymentRepo.MarkVerified(ctx, payment.ID, status)
	if err != nil {
		return nil, fmt.Errorf("settle payment: %w", err)
	}

	if settled && status == model.PaymentStatusSuccess {
		expires := time.Now().AddDate(0, payment.PlanMonths, 0)
		if err := s.studentRepo.UpgradePlan(ctx, studentID, expires); err != nil {
			return nil, fmt.Errorf("upgrade plan: %w", err)
		}
		s.log.Info().
			Str("reference", reference).
			Int("student_id", studentID).
			Time("plan_expires", expires).
			Msg("Premium plan activated")
	}

	payment.Status = status
	now := time.Now()
	payment.VerifiedAt = &now
	return payment, nil
}

// History retrieves the student's payment records.
func (s *PaymentService) History(ctx context.Context, studentID int) ([]model.Payment, error) {
	payments, err := s.paymentRepo.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if payments == nil {
		payments = []model.Payment{}
	}
	return payments, nil
}
