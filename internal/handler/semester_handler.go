package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campus-loan-api/internal/service"
	appErrors "github.com/noah-isme/campus-loan-api/pkg/errors"
	"github.com/noah-isme/campus-loan-api/pkg/response"
)

// SemesterHandler exposes the semester calendar read surface.
type SemesterHandler struct {
	calendar *service.CalendarService
}

// NewSemesterHandler constructs SemesterHandler.
func NewSemesterHandler(calendar *service.CalendarService) *SemesterHandler {
	return &SemesterHandler{calendar: calendar}
}

// List godoc
// @Summary List semesters
// @Tags Semesters
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /semesters [get]
func (h *SemesterHandler) List(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.calendar.Semesters())
}

// Current godoc
// @Summary Get the semester containing a date
// @Tags Semesters
// @Produce json
// @Param date query string false "Date (2006-01-02); defaults to today"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /semesters/current [get]
func (h *SemesterHandler) Current(c *gin.Context) {
	date := time.Now().UTC()
	if raw := c.Query("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "date must be formatted as 2006-01-02"))
			return
		}
		date = parsed
	}

	sem := h.calendar.CurrentSemester(date)
	if sem == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "no semester defined for the given date"))
		return
	}
	response.JSON(c, http.StatusOK, sem)
}

// Get godoc
// @Summary Get a semester by id
// @Tags Semesters
// @Produce json
// @Param id path string true "Semester ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /semesters/{id} [get]
func (h *SemesterHandler) Get(c *gin.Context) {
	sem := h.calendar.SemesterByID(c.Param("id"))
	if sem == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "semester not found"))
		return
	}
	response.JSON(c, http.StatusOK, sem)
}
