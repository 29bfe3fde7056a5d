package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/naijaprep/cbt-backend/internal/model"
	"github.com/naijaprep/cbt-backend/internal/response"
	"github.com/naijaprep/cbt-backend/internal/service"
	"github.com/naijaprep/cbt-backend/internal/validator"
)

// QuestionHandler handles admin question authoring endpoints.
type QuestionHandler struct {
	questionService *service.QuestionService
}

// NewQuestionHandler creates a new QuestionHandler.
func NewQuestionHandler(questionService *service.QuestionService) *QuestionHandler {
	return &QuestionHandler{questionService: questionService}
}

// List godoc
// GET /api/v1/admin/exams/:exam_id/questions
func (h *QuestionHandler) List(c *gin.Context) {
	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	questions, err := h.questionService.ListByExam(c.Request.Context(), examID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, questions)
}

// Add godoc
// POST /api/v1/admin/exams/:exam_id/questions
func (h *QuestionHandler) Add(c *gin.Context) {
	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.AddQuestionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	question, err := h.questionService.Add(c.Request.Context(), examID, &req)
	if err != nil {
		h.failQuestionError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, question)
}

// ReplaceAll godoc
// PUT /api/v1/admin/exams/:exam_id/questions
// Swaps the exam's entire question set.
func (h *QuestionHandler) ReplaceAll(c *gin.Context) {
	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.ReplaceQuestionsRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	questions, err := h.questionService.ReplaceAll(c.Request.Context(), examID, &req)
	if err != nil {
		h.failQuestionError(c, err)
		return
	}

	response.Success(c, http.StatusOK, questions)
}

// Delete godoc
// DELETE /api/v1/admin/exams/:exam_id/questions/:question_id
func (h *QuestionHandler) Delete(c *gin.Context) {
	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}
	questionID, err := uuid.Parse(c.Param("question_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.questionService.Delete(c.Request.Context(), examID, questionID); err != nil {
		h.failQuestionError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}

func (h *QuestionHandler) failQuestionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrExamNotDraft):
		response.Fail(c, http.StatusConflict, response.ErrConflict)
	case errors.Is(err, service.ErrAnswerNotAnOption):
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation,
			map[string]string{"correct_answer": "must be one of the options"})
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
