package model

import (
	"time"

	"github.com/google/uuid"
)

// PaymentStatus tracks a payment's lifecycle against the gateway.
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "PENDING"
	PaymentStatusSuccess PaymentStatus = "SUCCESS"
	PaymentStatusFailed  PaymentStatus = "FAILED"
)

// Payment records one premium-plan purchase attempt initialized with the
// payment gateway. Amounts are in kobo.
type Payment struct {
	ID         uuid.UUID     `json:"id"`
	StudentID  int           `json:"student_id"`
	Reference  string        `json:"reference"`
	AmountKobo int64         `json:"amount_kobo"`
	PlanMonths int           `json:"plan_months"`
	Status     PaymentStatus `json:"status"`
	CreatedAt  time.Time     `json:"created_at"`
	VerifiedAt *time.Time    `json:"verified_at,omitempty"`
}

// InitializePaymentRequest is the payload for starting a premium purchase.
type InitializePaymentRequest struct {
	PlanMonths int `json:"plan_months" binding:"required,oneof=1 3 12"`
}

// InitializePaymentResponse carries the gateway checkout URL back to the client.
type InitializePaymentResponse struct {
	Reference        string `json:"reference"`
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
}
