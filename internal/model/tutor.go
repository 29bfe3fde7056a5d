package model

import "github.com/google/uuid"

// ExplainRequest asks the AI tutor to explain a question the student missed.
type ExplainRequest struct {
	QuestionID     uuid.UUID `json:"question_id" binding:"required"`
	SelectedAnswer string    `json:"selected_answer" binding:"omitempty,max=10"`
}

// Explanation is the tutor's response for one question.
type Explanation struct {
	QuestionID    uuid.UUID `json:"question_id"`
	CorrectAnswer string    `json:"correct_answer"`
	Explanation   string    `json:"explanation"`
	KeyConcept    string    `json:"key_concept,omitempty"`
}
