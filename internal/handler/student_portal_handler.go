package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/naijaprep/cbt-backend/internal/middleware"
	"github.com/naijaprep/cbt-backend/internal/model"
	"github.com/naijaprep/cbt-backend/internal/response"
	"github.com/naijaprep/cbt-backend/internal/service"
	"github.com/naijaprep/cbt-backend/internal/validator"
)

// StudentPortalHandler handles the student-facing catalogue and session
// endpoints.
type StudentPortalHandler struct {
	examService    *service.ExamService
	sessionService *service.SessionService
}

// NewStudentPortalHandler creates a new StudentPortalHandler.
func NewStudentPortalHandler(examService *service.ExamService, sessionService *service.SessionService) *StudentPortalHandler {
	return &StudentPortalHandler{examService: examService, sessionService: sessionService}
}

// Catalogue godoc
// GET /api/v1/student/exams?kind=&subject_id=&exam_year=&page=&per_page=
// Lists published exams for practice.
func (h *StudentPortalHandler) Catalogue(c *gin.Context) {
	kind, subjectID, examYear := parseExamFilters(c)
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "10"))

	exams, pagination, err := h.examService.ListCatalogue(c.Request.Context(), kind, subjectID, examYear, page, perPage)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, exams, pagination)
}

// StartSession godoc
// POST /api/v1/student/exams/:exam_id/sessions
// Starts (or reattaches to) a session and returns it with the exam paper.
func (h *StudentPortalHandler) StartSession(c *gin.Context) {
	claims := middleware.GetClaims(c)
	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	session, paper, err := h.sessionService.Start(c.Request.Context(), claims.UserID, examID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrExamNotAvailable):
			response.Fail(c, http.StatusNotFound, response.ErrExamNotAvailable)
		case errors.Is(err, service.ErrPremiumRequired):
			response.Fail(c, http.StatusPaymentRequired, response.ErrPremiumRequired)
		case errors.Is(err, service.ErrActiveSessionExists):
			response.Fail(c, http.StatusConflict, response.ErrConflict)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	response.Success(c, http.StatusCreated, gin.H{
		"session": session,
		"paper":   paper,
	})
}

// ResumeSession godoc
// GET /api/v1/student/sessions/active
// Rebuilds the reconnect state of the student's in-progress session.
func (h *StudentPortalHandler) ResumeSession(c *gin.Context) {
	claims := middleware.GetClaims(c)

	state, err := h.sessionService.Resume(c.Request.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrNoActiveSession)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, state)
}

// GetSession godoc
// GET /api/v1/student/sessions/:session_id
func (h *StudentPortalHandler) GetSession(c *gin.Context) {
	claims := middleware.GetClaims(c)
	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	session, err := h.sessionService.Get(c.Request.Context(), claims.UserID, sessionID)
	if err != nil {
		h.failSessionError(c, err)
		return
	}

	response.Success(c, http.StatusOK, session)
}

// PatchSession godoc
// PATCH /api/v1/student/sessions/:session_id
// Partial update: any subset of answers, flags, cursor and counters. A
// COMPLETED status in the body is the REST submission path and returns the
// graded session.
func (h *StudentPortalHandler) PatchSession(c *gin.Context) {
	claims := middleware.GetClaims(c)
	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.SessionPatchRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	session, err := h.sessionService.Patch(c.Request.Context(), claims.UserID, sessionID, &req)
	if err != nil {
		h.failSessionError(c, err)
		return
	}

	response.Success(c, http.StatusOK, session)
}

// Results godoc
// GET /api/v1/student/results?page=&per_page=
// The student's completed-session history.
func (h *StudentPortalHandler) Results(c *gin.Context) {
	claims := middleware.GetClaims(c)
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "10"))

	results, pagination, err := h.sessionService.Results(c.Request.Context(), claims.UserID, page, perPage)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, results, pagination)
}

func (h *StudentPortalHandler) failSessionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrSessionNotFound), errors.Is(err, service.ErrNotSessionOwner):
		// Not-owner leaks nothing: same 404 as a missing session.
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, service.ErrSessionCompleted):
		response.Fail(c, http.StatusConflict, response.ErrSessionCompleted)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
