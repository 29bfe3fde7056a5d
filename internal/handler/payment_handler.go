package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/naijaprep/cbt-backend/internal/middleware"
	"github.com/naijaprep/cbt-backend/internal/model"
	"github.com/naijaprep/cbt-backend/internal/paystack"
	"github.com/naijaprep/cbt-backend/internal/response"
	"github.com/naijaprep/cbt-backend/internal/service"
	"github.com/naijaprep/cbt-backend/internal/validator"
)

// PaymentHandler handles premium-plan purchase endpoints.
type PaymentHandler struct {
	paymentService *service.PaymentService
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(paymentService *service.PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentService: paymentService}
}

// Initialize godoc
// POST /api/v1/student/payments
// Starts a premium purchase and returns the gateway checkout URL.
func (h *PaymentHandler) Initialize(c *gin.Context) {
	claims := middleware.GetClaims(c)

	var req model.InitializePaymentRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	result, err := h.paymentService.Initialize(c.Request.Context(), claims.UserID, req.PlanMonths)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidPlan):
			response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
		case errors.Is(err, paystack.ErrNotConfigured):
			response.Fail(c, http.StatusServiceUnavailable, response.ErrPaymentGateway)
		default:
			response.Fail(c, http.StatusBadGateway, response.ErrPaymentGateway)
		}
		return
	}

	response.Success(c, http.StatusCreated, result)
}

// Verify godoc
// GET /api/v1/student/payments/:reference/verify
// Confirms a payment with the gateway and activates the plan on success.
func (h *PaymentHandler) Verify(c *gin.Context) {
	claims := middleware.GetClaims(c)
	reference := c.Param("reference")

	payment, err := h.paymentService.Verify(c.Request.Context(), claims.UserID, reference)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPaymentNotFound):
			response.Fail(c, http.StatusNotFound, response.ErrPaymentNotFound)
		case errors.Is(err, paystack.ErrNotConfigured):
			response.Fail(c, http.StatusServiceUnavailable, response.ErrPaymentGateway)
		default:
			response.Fail(c, http.StatusBadGateway, response.ErrPaymentGateway)
		}
		return
	}

	response.Success(c, http.StatusOK, payment)
}

// History godoc
// GET /api/v1/student/payments
func (h *PaymentHandler) History(c *gin.Context) {
	claims := middleware.GetClaims(c)

	payments, err := h.paymentService.History(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, payments)
}
