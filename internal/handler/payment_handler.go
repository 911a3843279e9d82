package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campus-loan-api/internal/service"
	appErrors "github.com/noah-isme/campus-loan-api/pkg/errors"
	"github.com/noah-isme/campus-loan-api/pkg/response"
)

// PaymentHandler exposes the payment ingestion endpoint.
type PaymentHandler struct {
	allocations *service.AllocationService
	dispatcher  *service.NotificationDispatcher
}

// NewPaymentHandler constructs PaymentHandler.
func NewPaymentHandler(allocations *service.AllocationService, dispatcher *service.NotificationDispatcher) *PaymentHandler {
	return &PaymentHandler{allocations: allocations, dispatcher: dispatcher}
}

// Process godoc
// @Summary Process an incoming payment
// @Description Distributes a payment across the student's open loans, oldest first.
// @Tags Payments
// @Accept json
// @Produce json
// @Param payload body service.ProcessPaymentRequest true "Payment payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /payments [post]
func (h *PaymentHandler) Process(c *gin.Context) {
	var req service.ProcessPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	result, err := h.allocations.ProcessPayment(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	if h.dispatcher != nil && len(result.Notifications) > 0 {
		h.dispatcher.DispatchAll(result.Notifications)
	}

	response.JSON(c, http.StatusOK, result)
}
