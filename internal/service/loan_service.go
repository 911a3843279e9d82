package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-loan-api/internal/models"
	"github.com/noah-isme/campus-loan-api/internal/repository"
	"github.com/noah-isme/campus-loan-api/pkg/config"
	appErrors "github.com/noah-isme/campus-loan-api/pkg/errors"
	"github.com/noah-isme/campus-loan-api/pkg/export"
)

type loanRepository interface {
	Create(ctx context.Context, loan *models.Loan) error
	FindByID(ctx context.Context, id string) (*models.Loan, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.Loan, error)
	Approve(ctx context.Context, loanID, approverID string, at time.Time) error
	Reject(ctx context.Context, loanID, approverID string, at time.Time) error
	Disburse(ctx context.Context, loanID string, at time.Time) error
}

type deductionHistory interface {
	ListByLoan(ctx context.Context, loanID string) ([]models.AutomatedDeduction, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.AutomatedDeduction, error)
}

type loanCalendar interface {
	IsLoanOverdue(loanDate, asOfDate time.Time) bool
	GracePeriodEnd(loanDate time.Time) *time.Time
}

type summaryCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

func summaryCacheKey(studentID string) string {
	return "loan:summary:" + studentID
}

// ApplyLoanRequest describes a loan application payload.
type ApplyLoanRequest struct {
	StudentID        string `json:"student_id" validate:"required"`
	Amount           int64  `json:"amount" validate:"required,gt=0"`
	Purpose          string `json:"purpose" validate:"required"`
	GuarantorName    string `json:"guarantor_name"`
	GuarantorContact string `json:"guarantor_contact"`
}

// LoanService orchestrates the loan lifecycle and the read-only query surface
// consumed by the dashboard layer.
type LoanService struct {
	repo       loanRepository
	deductions deductionHistory
	calendar   loanCalendar
	cache      summaryCache
	csv        *export.CSVExporter
	pdf        *export.PDFExporter
	validator  *validator.Validate
	logger     *zap.Logger
	cfg        config.SummaryConfig
}

// NewLoanService constructs a LoanService.
func NewLoanService(repo loanRepository, deductions deductionHistory, calendar loanCalendar, cache summaryCache, validate *validator.Validate, logger *zap.Logger, cfg config.SummaryConfig) *LoanService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LoanService{
		repo:       repo,
		deductions: deductions,
		calendar:   calendar,
		cache:      cache,
		csv:        export.NewCSVExporter(),
		pdf:        export.NewPDFExporter(),
		validator:  validate,
		logger:     logger,
		cfg:        cfg,
	}
}

// Apply creates a pending loan carrying its full principal outstanding.
func (s *LoanService) Apply(ctx context.Context, req ApplyLoanRequest) (*models.Loan, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid loan application")
	}

	loan := &models.Loan{
		StudentID:          req.StudentID,
		PrincipalAmount:    req.Amount,
		OutstandingBalance: req.Amount,
		Status:             models.LoanStatusPending,
		Purpose:            req.Purpose,
		ApplicationDate:    time.Now().UTC(),
	}
	if req.GuarantorName != "" {
		loan.GuarantorName = &req.GuarantorName
	}
	if req.GuarantorContact != "" {
		loan.GuarantorContact = &req.GuarantorContact
	}

	if err := s.repo.Create(ctx, loan); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create loan")
	}
	return loan, nil
}

// Approve transitions a pending loan to approved.
func (s *LoanService) Approve(ctx context.Context, loanID, approverID string) (*models.Loan, error) {
	return s.transition(ctx, loanID, "approve", func(at time.Time) error {
		return s.repo.Approve(ctx, loanID, approverID, at)
	})
}

// Reject transitions a pending loan to rejected.
func (s *LoanService) Reject(ctx context.Context, loanID, approverID string) (*models.Loan, error) {
	return s.transition(ctx, loanID, "reject", func(at time.Time) error {
		return s.repo.Reject(ctx, loanID, approverID, at)
	})
}

// Disburse transitions an approved loan to active.
func (s *LoanService) Disburse(ctx context.Context, loanID string) (*models.Loan, error) {
	return s.transition(ctx, loanID, "disburse", func(at time.Time) error {
		return s.repo.Disburse(ctx, loanID, at)
	})
}

func (s *LoanService) transition(ctx context.Context, loanID, action string, apply func(at time.Time) error) (*models.Loan, error) {
	if err := apply(time.Now().UTC()); err != nil {
		if errors.Is(err, repository.ErrTransitionConflict) {
			return nil, appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("loan cannot be %sd in its current status", action))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to "+action+" loan")
	}
	loan, err := s.repo.FindByID(ctx, loanID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "loan not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load loan")
	}
	return loan, nil
}

// Get returns a loan with calendar-derived repayment state.
func (s *LoanService) Get(ctx context.Context, loanID string) (*models.LoanDetail, error) {
	loan, err := s.repo.FindByID(ctx, loanID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "loan not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load loan")
	}
	detail := s.detail(*loan, time.Now().UTC())
	return &detail, nil
}

// ListByStudent returns a student's loans, oldest application first.
func (s *LoanService) ListByStudent(ctx context.Context, studentID string) ([]models.LoanDetail, error) {
	loans, err := s.repo.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list loans")
	}
	now := time.Now().UTC()
	details := make([]models.LoanDetail, 0, len(loans))
	for _, loan := range loans {
		details = append(details, s.detail(loan, now))
	}
	return details, nil
}

// Summary aggregates a student's borrowing position. Results are cached;
// the allocator invalidates the entry whenever it touches a balance.
func (s *LoanService) Summary(ctx context.Context, studentID string) (*models.StudentLoanSummary, error) {
	key := summaryCacheKey(studentID)
	if s.cache != nil {
		var cached models.StudentLoanSummary
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return &cached, nil
		} else if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("summary cache read failed", zap.String("student_id", studentID), zap.Error(err))
		}
	}

	loans, err := s.repo.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list loans")
	}

	now := time.Now().UTC()
	summary := &models.StudentLoanSummary{StudentID: studentID, Loans: []models.LoanDetail{}}
	for _, loan := range loans {
		if loan.Status == models.LoanStatusRejected {
			continue
		}
		summary.TotalBorrowed += loan.PrincipalAmount
		summary.TotalOutstanding += loan.OutstandingBalance
		summary.TotalRepaid += loan.PrincipalAmount - loan.OutstandingBalance
		summary.Loans = append(summary.Loans, s.detail(loan, now))
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, summary, s.cfg.CacheTTL); err != nil {
			s.logger.Warn("summary cache write failed", zap.String("student_id", studentID), zap.Error(err))
		}
	}
	return summary, nil
}

// DeductionHistory returns a loan's chronological deduction records.
func (s *LoanService) DeductionHistory(ctx context.Context, loanID string) ([]models.AutomatedDeduction, error) {
	if _, err := s.repo.FindByID(ctx, loanID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "loan not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load loan")
	}
	records, err := s.deductions.ListByLoan(ctx, loanID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load deduction history")
	}
	return records, nil
}

// StudentDeductionHistory returns every deduction taken from a student's
// loans, oldest first.
func (s *LoanService) StudentDeductionHistory(ctx context.Context, studentID string) ([]models.AutomatedDeduction, error) {
	records, err := s.deductions.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load deduction history")
	}
	return records, nil
}

// Statement renders a loan's deduction history as CSV or PDF bytes.
func (s *LoanService) Statement(ctx context.Context, loanID, format string) ([]byte, string, string, error) {
	loan, err := s.repo.FindByID(ctx, loanID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, "", "", appErrors.Clone(appErrors.ErrNotFound, "loan not found")
		}
		return nil, "", "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load loan")
	}
	records, err := s.deductions.ListByLoan(ctx, loanID)
	if err != nil {
		return nil, "", "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load deduction history")
	}

	st := export.Statement{
		Title: "Loan Statement",
		Summary: []export.StatementField{
			{Label: "Loan", Value: loan.ID},
			{Label: "Student", Value: loan.StudentID},
			{Label: "Principal", Value: strconv.FormatInt(loan.PrincipalAmount, 10)},
			{Label: "Outstanding", Value: strconv.FormatInt(loan.OutstandingBalance, 10)},
			{Label: "Status", Value: string(loan.Status)},
		},
		Headers: []string{"Date", "Amount", "Trigger", "Previous Balance", "New Balance", "Reference"},
	}
	for _, d := range records {
		reference := ""
		if d.PaymentReference != nil {
			reference = *d.PaymentReference
		}
		st.Rows = append(st.Rows, []string{
			d.CreatedAt.Format("2006-01-02"),
			strconv.FormatInt(d.Amount, 10),
			string(d.Trigger),
			strconv.FormatInt(d.PreviousBalance, 10),
			strconv.FormatInt(d.NewBalance, 10),
			reference,
		})
	}

	switch format {
	case "", "csv":
		payload, err := s.csv.Render(st)
		if err != nil {
			return nil, "", "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render statement")
		}
		return payload, "text/csv", fmt.Sprintf("statement-%s.csv", loan.ID), nil
	case "pdf":
		payload, err := s.pdf.Render(st)
		if err != nil {
			return nil, "", "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render statement")
		}
		return payload, "application/pdf", fmt.Sprintf("statement-%s.pdf", loan.ID), nil
	default:
		return nil, "", "", appErrors.Clone(appErrors.ErrValidation, "unsupported statement format")
	}
}

func (s *LoanService) detail(loan models.Loan, now time.Time) models.LoanDetail {
	detail := models.LoanDetail{Loan: loan}
	if loan.OutstandingBalance > 0 {
		detail.IsOverdue = loan.Status == models.LoanStatusOverdue || s.calendar.IsLoanOverdue(loan.ApplicationDate, now)
	}
	detail.GracePeriodEnd = s.calendar.GracePeriodEnd(loan.ApplicationDate)
	return detail
}
