package model

import (
	"time"

	"github.com/google/uuid"
)

// ExamStatus enumerates the possible states of an exam.
type ExamStatus string

const (
	ExamStatusDraft     ExamStatus = "DRAFT"
	ExamStatusPublished ExamStatus = "PUBLISHED"
	ExamStatusArchived  ExamStatus = "ARCHIVED"
)

// ExamKind identifies which national examination an exam prepares for.
type ExamKind string

const (
	ExamKindJAMB ExamKind = "JAMB"
	ExamKindWAEC ExamKind = "WAEC"
	ExamKindNECO ExamKind = "NECO"
	ExamKindGCE  ExamKind = "GCE"
)

// Exam represents a practice exam definition. Question content is immutable
// once the exam is published.
type Exam struct {
	ID              uuid.UUID  `json:"id"`
	Title           string     `json:"title"`
	Kind            ExamKind   `json:"kind"`
	SubjectID       int        `json:"subject_id"`
	ExamYear        int        `json:"exam_year"`
	DurationMinutes int        `json:"duration_minutes"`
	QuestionCount   int        `json:"question_count"`
	IsPremium       bool       `json:"is_premium"`
	Status          ExamStatus `json:"status"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// CreateExamRequest is the payload for creating a new exam.
type CreateExamRequest struct {
	Title           string `json:"title" binding:"required,min=3,max=255"`
	Kind            string `json:"kind" binding:"required,oneof=JAMB WAEC NECO GCE"`
	SubjectID       int    `json:"subject_id" binding:"required,min=1"`
	ExamYear        int    `json:"exam_year" binding:"required,min=1990,max=2100"`
	DurationMinutes int    `json:"duration_minutes" binding:"required,min=1,max=480"`
	IsPremium       *bool  `json:"is_premium" binding:"omitempty"`
}

// UpdateExamRequest is the payload for updating an existing exam.
type UpdateExamRequest struct {
	Title           string `json:"title" binding:"omitempty,min=3,max=255"`
	Kind            string `json:"kind" binding:"omitempty,oneof=JAMB WAEC NECO GCE"`
	SubjectID       *int   `json:"subject_id" binding:"omitempty,min=1"`
	ExamYear        *int   `json:"exam_year" binding:"omitempty,min=1990,max=2100"`
	DurationMinutes *int   `json:"duration_minutes" binding:"omitempty,min=1,max=480"`
	IsPremium       *bool  `json:"is_premium" binding:"omitempty"`
}

// ExamPaper is the Redis-cached payload sent to students (no correct answers).
type ExamPaper struct {
	ExamID          uuid.UUID            `json:"exam_id"`
	Title           string               `json:"title"`
	Kind            ExamKind             `json:"kind"`
	DurationMinutes int                  `json:"duration_minutes"`
	Questions       []QuestionForStudent `json:"questions"`
}

// QuestionForStudent is a question without the correct answer, sent to students.
type QuestionForStudent struct {
	ID         uuid.UUID `json:"id"`
	Text       string    `json:"text"`
	Options    []string  `json:"options"`
	Difficulty string    `json:"difficulty"`
	Points     int       `json:"points"`
	OrderNum   int       `json:"order_num"`
}
