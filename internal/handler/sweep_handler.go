package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campus-loan-api/internal/service"
	appErrors "github.com/noah-isme/campus-loan-api/pkg/errors"
	"github.com/noah-isme/campus-loan-api/pkg/response"
)

// SweepHandler exposes the manual overdue-sweep trigger.
type SweepHandler struct {
	sweeps     *service.SweepService
	dispatcher *service.NotificationDispatcher
}

// NewSweepHandler constructs SweepHandler.
func NewSweepHandler(sweeps *service.SweepService, dispatcher *service.NotificationDispatcher) *SweepHandler {
	return &SweepHandler{sweeps: sweeps, dispatcher: dispatcher}
}

// Run godoc
// @Summary Run the overdue sweep
// @Description Marks loans past their grace period as overdue. Safe to re-run.
// @Tags Sweeps
// @Produce json
// @Param asOf query string false "Evaluation date (RFC 3339); defaults to now"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /sweeps/overdue [post]
func (h *SweepHandler) Run(c *gin.Context) {
	var asOf time.Time
	if raw := c.Query("asOf"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "asOf must be RFC 3339"))
			return
		}
		asOf = parsed
	}

	result, err := h.sweeps.Run(c.Request.Context(), asOf)
	if err != nil {
		response.Error(c, err)
		return
	}

	if h.dispatcher != nil && len(result.Notifications) > 0 {
		h.dispatcher.DispatchAll(result.Notifications)
	}

	response.JSON(c, http.StatusOK, result)
}
