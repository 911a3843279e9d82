package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campus-loan-api/internal/middleware"
	"github.com/noah-isme/campus-loan-api/internal/models"
	"github.com/noah-isme/campus-loan-api/internal/service"
	appErrors "github.com/noah-isme/campus-loan-api/pkg/errors"
	"github.com/noah-isme/campus-loan-api/pkg/response"
)

// LoanHandler exposes loan lifecycle and query endpoints.
type LoanHandler struct {
	loans *service.LoanService
}

// NewLoanHandler constructs LoanHandler.
func NewLoanHandler(loans *service.LoanService) *LoanHandler {
	return &LoanHandler{loans: loans}
}

// Apply godoc
// @Summary Submit a loan application
// @Tags Loans
// @Accept json
// @Produce json
// @Param payload body service.ApplyLoanRequest true "Loan application"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /loans [post]
func (h *LoanHandler) Apply(c *gin.Context) {
	var req service.ApplyLoanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	loan, err := h.loans.Apply(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, loan)
}

// Get godoc
// @Summary Get loan detail
// @Tags Loans
// @Produce json
// @Param id path string true "Loan ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /loans/{id} [get]
func (h *LoanHandler) Get(c *gin.Context) {
	loan, err := h.loans.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, loan)
}

// Approve godoc
// @Summary Approve a pending loan
// @Tags Loans
// @Produce json
// @Param id path string true "Loan ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /loans/{id}/approve [post]
func (h *LoanHandler) Approve(c *gin.Context) {
	loan, err := h.loans.Approve(c.Request.Context(), c.Param("id"), currentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, loan)
}

// Reject godoc
// @Summary Reject a pending loan
// @Tags Loans
// @Produce json
// @Param id path string true "Loan ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /loans/{id}/reject [post]
func (h *LoanHandler) Reject(c *gin.Context) {
	loan, err := h.loans.Reject(c.Request.Context(), c.Param("id"), currentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, loan)
}

// Disburse godoc
// @Summary Disburse an approved loan
// @Tags Loans
// @Produce json
// @Param id path string true "Loan ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /loans/{id}/disburse [post]
func (h *LoanHandler) Disburse(c *gin.Context) {
	loan, err := h.loans.Disburse(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, loan)
}

// ListByStudent godoc
// @Summary List a student's loans
// @Tags Loans
// @Produce json
// @Param studentId path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{studentId}/loans [get]
func (h *LoanHandler) ListByStudent(c *gin.Context) {
	loans, err := h.loans.ListByStudent(c.Request.Context(), c.Param("studentId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, loans)
}

// Summary godoc
// @Summary Get a student's borrowing summary
// @Tags Loans
// @Produce json
// @Param studentId path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{studentId}/loans/summary [get]
func (h *LoanHandler) Summary(c *gin.Context) {
	summary, err := h.loans.Summary(c.Request.Context(), c.Param("studentId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary)
}

// DeductionHistory godoc
// @Summary List a loan's deduction records
// @Tags Loans
// @Produce json
// @Param id path string true "Loan ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /loans/{id}/deductions [get]
func (h *LoanHandler) DeductionHistory(c *gin.Context) {
	records, err := h.loans.DeductionHistory(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records)
}

// StudentDeductions godoc
// @Summary List a student's deduction records
// @Tags Loans
// @Produce json
// @Param studentId path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{studentId}/deductions [get]
func (h *LoanHandler) StudentDeductions(c *gin.Context) {
	records, err := h.loans.StudentDeductionHistory(c.Request.Context(), c.Param("studentId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records)
}

// Statement godoc
// @Summary Export a loan statement
// @Tags Loans
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Loan ID"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} binary
// @Failure 404 {object} response.Envelope
// @Router /loans/{id}/statement [get]
func (h *LoanHandler) Statement(c *gin.Context) {
	payload, contentType, filename, err := h.loans.Statement(c.Request.Context(), c.Param("id"), c.DefaultQuery("format", "csv"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, contentType, payload)
}

func currentUserID(c *gin.Context) string {
	if value, ok := c.Get(middleware.ContextUserKey); ok {
		if claims, ok := value.(*models.JWTClaims); ok {
			return claims.UserID
		}
	}
	return ""
}
