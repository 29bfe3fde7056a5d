package model

import "time"

// Plan represents a student's subscription tier. Premium unlocks exams
// marked is_premium.
type Plan string

const (
	PlanFree    Plan = "FREE"
	PlanPremium Plan = "PREMIUM"
)

// Student represents a student user preparing for JAMB/WAEC/NECO/GCE.
type Student struct {
	ID           int        `json:"id"`
	Email        string     `json:"email"`
	Name         string     `json:"name"`
	Phone        string     `json:"phone,omitempty"`
	State        string     `json:"state,omitempty"` // State of origin, e.g. "Lagos"
	PasswordHash string     `json:"-"`
	Plan         Plan       `json:"plan"`
	PlanExpires  *time.Time `json:"plan_expires,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// HasActivePremium reports whether the student's premium plan is active at t.
func (s *Student) HasActivePremium(t time.Time) bool {
	if s.Plan != PlanPremium {
		return false
	}
	return s.PlanExpires == nil || s.PlanExpires.After(t)
}

// StudentLoginRequest is the payload for student authentication.
type StudentLoginRequest struct {
	Email    string `json:"email" binding:"required,email,max=255"`
	Password string `json:"password" binding:"required,min=4,max=128"`
}

// StudentLoginResponse is returned after successful student login.
type StudentLoginResponse struct {
	Token   string  `json:"token"`
	Student Student `json:"student"`
}

// CreateStudentRequest is the payload for registering a new student account.
type CreateStudentRequest struct {
	Email    string `json:"email" binding:"required,email,max=255"`
	Name     string `json:"name" binding:"required,min=2,max=100"`
	Phone    string `json:"phone" binding:"omitempty,min=7,max=20"`
	State    string `json:"state" binding:"omitempty,max=50"`
	Password string `json:"password" binding:"required,min=6,max=128"`
}

// UpdateStudentRequest is the payload for updating an existing student.
type UpdateStudentRequest struct {
	Email    string `json:"email" binding:"required,email,max=255"`
	Name     string `json:"name" binding:"required,min=2,max=100"`
	Phone    string `json:"phone" binding:"omitempty,min=7,max=20"`
	State    string `json:"state" binding:"omitempty,max=50"`
	Password string `json:"password" binding:"omitempty,min=6,max=128"`
}
