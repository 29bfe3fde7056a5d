package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/naijaprep/cbt-backend/internal/middleware"
	"github.com/naijaprep/cbt-backend/internal/model"
	"github.com/naijaprep/cbt-backend/internal/response"
	"github.com/naijaprep/cbt-backend/internal/service"
	"github.com/naijaprep/cbt-backend/internal/validator"
)

// TutorHandler handles the post-exam AI explanation endpoint.
type TutorHandler struct {
	tutorService *service.TutorService
}

// NewTutorHandler creates a new TutorHandler.
func NewTutorHandler(tutorService *service.TutorService) *TutorHandler {
	return &TutorHandler{tutorService: tutorService}
}

// Explain godoc
// POST /api/v1/student/sessions/:session_id/explain
// Asks the AI tutor to explain one question from a completed session.
func (h *TutorHandler) Explain(c *gin.Context) {
	claims := middleware.GetClaims(c)
	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.ExplainRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	explanation, err := h.tutorService.Explain(c.Request.Context(), claims.UserID, sessionID, &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrTutorDisabled):
			response.Fail(c, http.StatusServiceUnavailable, response.ErrTutorUnavailable)
		case errors.Is(err, service.ErrSessionNotFound), errors.Is(err, service.ErrNotSessionOwner):
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		case errors.Is(err, service.ErrSessionNotCompleted):
			response.Fail(c, http.StatusConflict, response.ErrConflict)
		case errors.Is(err, service.ErrQuestionNotInSession):
			response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
		default:
			response.Fail(c, http.StatusBadGateway, response.ErrTutorUnavailable)
		}
		return
	}

	response.Success(c, http.StatusOK, explanation)
}
