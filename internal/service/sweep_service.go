package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/campus-loan-api/internal/models"
	appErrors "github.com/noah-isme/campus-loan-api/pkg/errors"
)

type sweepLoanLedger interface {
	AllWithBalance(ctx context.Context) ([]models.Loan, error)
	MarkOverdue(ctx context.Context, loanID string) (bool, error)
}

type sweepCalendar interface {
	IsLoanOverdue(loanDate, asOfDate time.Time) bool
	GracePeriodEnd(loanDate time.Time) *time.Time
}

// SweepResult summarises one overdue sweep run.
type SweepResult struct {
	AsOf          time.Time                  `json:"as_of"`
	Scanned       int                        `json:"scanned"`
	MarkedCount   int                        `json:"marked_count"`
	Notifications []models.NotificationEvent `json:"-"`
}

// SweepService flips loans past their grace period into overdue status. The
// engine is schedule-agnostic: callers decide when to run it. Re-running is a
// no-op because the loan scan excludes loans already marked overdue and
// MarkOverdue only acts on open loans with a balance.
type SweepService struct {
	loans    sweepLoanLedger
	calendar sweepCalendar
	metrics  *MetricsService
	logger   *zap.Logger
}

// NewSweepService constructs a SweepService.
func NewSweepService(loans sweepLoanLedger, calendar sweepCalendar, metrics *MetricsService, logger *zap.Logger) *SweepService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SweepService{loans: loans, calendar: calendar, metrics: metrics, logger: logger}
}

// Run scans all loans still carrying a balance and marks the ones whose grace
// period has elapsed as of asOf. A zero asOf means now.
func (s *SweepService) Run(ctx context.Context, asOf time.Time) (*SweepResult, error) {
	if asOf.IsZero() {
		asOf = time.Now().UTC()
	}

	loans, err := s.loans.AllWithBalance(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to scan loans")
	}

	result := &SweepResult{AsOf: asOf, Scanned: len(loans)}
	for _, loan := range loans {
		if !s.calendar.IsLoanOverdue(loan.ApplicationDate, asOf) {
			continue
		}

		marked, err := s.loans.MarkOverdue(ctx, loan.ID)
		if err != nil {
			s.logger.Error("failed to mark loan overdue", zap.String("loan_id", loan.ID), zap.Error(err))
			continue
		}
		if !marked {
			// Paid off or already flipped by a concurrent run.
			continue
		}

		result.MarkedCount++
		result.Notifications = append(result.Notifications, s.overdueNotifications(loan, asOf)...)
	}

	s.metrics.RecordSweep(result.MarkedCount)
	s.logger.Info("overdue sweep completed",
		zap.Time("as_of", asOf),
		zap.Int("scanned", result.Scanned),
		zap.Int("marked", result.MarkedCount))

	return result, nil
}

func (s *SweepService) overdueNotifications(loan models.Loan, asOf time.Time) []models.NotificationEvent {
	deadline := "the start of the following semester"
	if end := s.calendar.GracePeriodEnd(loan.ApplicationDate); end != nil {
		deadline = end.Format("2 January 2006")
	}

	events := []models.NotificationEvent{{
		StudentID: loan.StudentID,
		Recipient: loan.StudentID,
		Title:     "Loan overdue",
		Body:      fmt.Sprintf("Your loan %s of %d is overdue: the repayment deadline (%s) has passed. Outstanding balance: %d. New benefits are blocked until the balance is cleared.", loan.ID, loan.PrincipalAmount, deadline, loan.OutstandingBalance),
		CreatedAt: asOf,
	}}

	if loan.GuarantorContact != nil && *loan.GuarantorContact != "" {
		events = append(events, models.NotificationEvent{
			StudentID: loan.StudentID,
			Recipient: *loan.GuarantorContact,
			Title:     "Guaranteed loan overdue",
			Body:      fmt.Sprintf("The loan %s you guaranteed is overdue with an outstanding balance of %d.", loan.ID, loan.OutstandingBalance),
			CreatedAt: asOf,
		})
	}

	return events
}
