package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-loan-api/internal/models"
	"github.com/noah-isme/campus-loan-api/pkg/config"
	appErrors "github.com/noah-isme/campus-loan-api/pkg/errors"
)

type allocationLoanLedger interface {
	OpenLoansForStudent(ctx context.Context, studentID string) ([]models.Loan, error)
	ApplyDeduction(ctx context.Context, loanID string, amount int64) error
}

type allocationDeductionLedger interface {
	Create(ctx context.Context, deduction *models.AutomatedDeduction) error
	ListByReference(ctx context.Context, reference string) ([]models.AutomatedDeduction, error)
}

type allocationCalendar interface {
	CurrentSemester(date time.Time) *models.Semester
	IsLoanOverdue(loanDate, asOfDate time.Time) bool
}

// allocationCache covers the Redis-backed allocation lock and the summary
// cache invalidation; both are served by repository.CacheRepository.
type allocationCache interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key string)
	Delete(ctx context.Context, key string) error
}

// ProcessPaymentRequest describes an incoming payment event from the finance
// system. Reference is the caller-supplied idempotency key.
type ProcessPaymentRequest struct {
	StudentID string `json:"student_id" validate:"required"`
	Amount    int64  `json:"amount" validate:"required,gt=0"`
	Reference string `json:"reference"`
}

// AllocationLine records one deduction taken from one loan.
type AllocationLine struct {
	LoanID          string                  `json:"loan_id"`
	Amount          int64                   `json:"amount"`
	PreviousBalance int64                   `json:"previous_balance"`
	NewBalance      int64                   `json:"new_balance"`
	Trigger         models.DeductionTrigger `json:"trigger"`
	LoanPaidOff     bool                    `json:"loan_paid_off"`
}

// AllocationResult summarises how a payment was distributed.
type AllocationResult struct {
	StudentID        string                     `json:"student_id"`
	PaymentAmount    int64                      `json:"payment_amount"`
	TotalDeducted    int64                      `json:"total_deducted"`
	Unallocated      int64                      `json:"unallocated"`
	AlreadyProcessed bool                       `json:"already_processed"`
	Lines            []AllocationLine           `json:"lines"`
	Notifications    []models.NotificationEvent `json:"-"`
}

// AllocationService distributes incoming payments across a student's open
// loans, oldest application first. It owns the idempotency contract on the
// payment reference and the per-student serialization of allocations.
type AllocationService struct {
	loans      allocationLoanLedger
	deductions allocationDeductionLedger
	calendar   allocationCalendar
	cache      allocationCache
	metrics    *MetricsService
	validator  *validator.Validate
	logger     *zap.Logger
	cfg        config.AllocationConfig

	// studentMu serializes allocations per student within this process; the
	// Redis lock extends the guarantee across instances.
	studentMu sync.Map
}

// NewAllocationService constructs an AllocationService.
func NewAllocationService(loans allocationLoanLedger, deductions allocationDeductionLedger, calendar allocationCalendar, cache allocationCache, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cfg config.AllocationConfig) *AllocationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 30 * time.Second
	}
	if cfg.LockRetries < 0 {
		cfg.LockRetries = 0
	}
	if cfg.LockRetryWait <= 0 {
		cfg.LockRetryWait = 100 * time.Millisecond
	}
	return &AllocationService{
		loans:      loans,
		deductions: deductions,
		calendar:   calendar,
		cache:      cache,
		metrics:    metrics,
		validator:  validate,
		logger:     logger,
		cfg:        cfg,
	}
}

// ProcessPayment allocates a payment against the student's open loans. A
// duplicate payment reference short-circuits to the previously recorded
// result; a payment with no matching loans is a legitimate zero-deduction
// outcome, not an error.
func (s *AllocationService) ProcessPayment(ctx context.Context, req ProcessPaymentRequest) (*AllocationResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payment payload")
	}

	mu := s.lockStudent(req.StudentID)
	defer mu.Unlock()

	lockKey := "loan:alloc:" + req.StudentID
	acquired, err := s.acquireWithRetry(ctx, lockKey)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to acquire allocation lock")
	}
	if !acquired {
		return nil, appErrors.Clone(appErrors.ErrStudentBusy, "")
	}
	defer s.cache.ReleaseLock(ctx, lockKey)

	// Idempotency: the reference check happens under the student lock so two
	// deliveries of the same payment cannot race past it.
	if req.Reference != "" {
		prior, err := s.deductions.ListByReference(ctx, req.Reference)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check payment reference")
		}
		if len(prior) > 0 {
			s.metrics.RecordDuplicatePayment()
			s.logger.Info("duplicate payment reference, returning prior result",
				zap.String("student_id", req.StudentID),
				zap.String("reference", req.Reference))
			return s.replayResult(req, prior), nil
		}
	}

	loans, err := s.loans.OpenLoansForStudent(ctx, req.StudentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load open loans")
	}

	now := time.Now().UTC()
	result := &AllocationResult{
		StudentID:     req.StudentID,
		PaymentAmount: req.Amount,
		Lines:         []AllocationLine{},
	}

	var deductionSemesterID *string
	if sem := s.calendar.CurrentSemester(now); sem != nil {
		deductionSemesterID = &sem.ID
	}

	remaining := req.Amount
	recordsWritten := 0
	for _, loan := range loans {
		if remaining == 0 {
			break
		}
		take := remaining
		if loan.OutstandingBalance < take {
			take = loan.OutstandingBalance
		}
		if take == 0 {
			continue
		}

		// Classify before the deduction is applied: recovering an already
		// overdue loan is tagged differently from a timely payment.
		trigger := models.TriggerPaymentEvent
		if s.calendar.IsLoanOverdue(loan.ApplicationDate, now) {
			trigger = models.TriggerOverdueRecovery
		}

		if err := s.loans.ApplyDeduction(ctx, loan.ID, take); err != nil {
			s.logger.Error("failed to apply deduction, skipping loan",
				zap.String("loan_id", loan.ID),
				zap.Int64("amount", take),
				zap.Error(err))
			continue
		}

		previous := loan.OutstandingBalance
		newBalance := previous - take

		var sourceSemesterID *string
		if sem := s.calendar.CurrentSemester(loan.ApplicationDate); sem != nil {
			sourceSemesterID = &sem.ID
		}
		var reference *string
		if req.Reference != "" {
			reference = &req.Reference
		}

		record := &models.AutomatedDeduction{
			StudentID:           req.StudentID,
			LoanID:              loan.ID,
			Amount:              take,
			Trigger:             trigger,
			SourceSemesterID:    sourceSemesterID,
			DeductionSemesterID: deductionSemesterID,
			PreviousBalance:     previous,
			NewBalance:          newBalance,
			PaymentReference:    reference,
			CreatedAt:           now,
		}
		if err := s.deductions.Create(ctx, record); err != nil {
			// The balance is already updated; surface the divergence and keep
			// going so remaining loans are not starved by one failed write.
			s.metrics.RecordLedgerDivergence()
			s.logger.Error("deduction record write failed after balance update",
				zap.String("loan_id", loan.ID),
				zap.String("student_id", req.StudentID),
				zap.Int64("amount", take),
				zap.String("reference", req.Reference),
				zap.Error(err))
		} else {
			recordsWritten++
		}

		result.Lines = append(result.Lines, AllocationLine{
			LoanID:          loan.ID,
			Amount:          take,
			PreviousBalance: previous,
			NewBalance:      newBalance,
			Trigger:         trigger,
			LoanPaidOff:     newBalance == 0,
		})
		result.Notifications = append(result.Notifications, s.deductionNotification(req.StudentID, loan.ID, take, newBalance, trigger, now))
		result.TotalDeducted += take
		remaining -= take
	}

	result.Unallocated = remaining
	s.metrics.RecordAllocation(result.TotalDeducted, result.Unallocated, recordsWritten)

	if result.TotalDeducted > 0 {
		if err := s.cache.Delete(ctx, summaryCacheKey(req.StudentID)); err != nil {
			s.logger.Warn("failed to invalidate balance summary cache", zap.String("student_id", req.StudentID), zap.Error(err))
		}
	}

	s.logger.Info("payment allocated",
		zap.String("student_id", req.StudentID),
		zap.Int64("payment_amount", req.Amount),
		zap.Int64("total_deducted", result.TotalDeducted),
		zap.Int64("unallocated", result.Unallocated),
		zap.Int("loans_touched", len(result.Lines)))

	return result, nil
}

func (s *AllocationService) lockStudent(studentID string) *sync.Mutex {
	actual, _ := s.studentMu.LoadOrStore(studentID, &sync.Mutex{})
	mu := actual.(*sync.Mutex)
	mu.Lock()
	return mu
}

func (s *AllocationService) acquireWithRetry(ctx context.Context, key string) (bool, error) {
	attempts := s.cfg.LockRetries + 1
	for i := 0; i < attempts; i++ {
		ok, err := s.cache.AcquireLock(ctx, key, s.cfg.LockTTL)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(s.cfg.LockRetryWait):
		}
	}
	return false, nil
}

// replayResult reconstructs the outcome of a previously processed payment
// from its deduction records.
func (s *AllocationService) replayResult(req ProcessPaymentRequest, prior []models.AutomatedDeduction) *AllocationResult {
	result := &AllocationResult{
		StudentID:        req.StudentID,
		PaymentAmount:    req.Amount,
		AlreadyProcessed: true,
		Lines:            make([]AllocationLine, 0, len(prior)),
	}
	for _, d := range prior {
		result.Lines = append(result.Lines, AllocationLine{
			LoanID:          d.LoanID,
			Amount:          d.Amount,
			PreviousBalance: d.PreviousBalance,
			NewBalance:      d.NewBalance,
			Trigger:         d.Trigger,
			LoanPaidOff:     d.NewBalance == 0,
		})
		result.TotalDeducted += d.Amount
	}
	if req.Amount > result.TotalDeducted {
		result.Unallocated = req.Amount - result.TotalDeducted
	}
	return result
}

func (s *AllocationService) deductionNotification(studentID, loanID string, amount, newBalance int64, trigger models.DeductionTrigger, at time.Time) models.NotificationEvent {
	title := "Loan payment applied"
	body := fmt.Sprintf("A payment of %d was applied to your loan %s. Remaining balance: %d.", amount, loanID, newBalance)
	if trigger == models.TriggerOverdueRecovery {
		title = "Overdue loan payment received"
		body = fmt.Sprintf("A payment of %d was applied to your overdue loan %s. Remaining balance: %d.", amount, loanID, newBalance)
	}
	if newBalance == 0 {
		body += " The loan is now fully repaid."
	}
	return models.NotificationEvent{
		StudentID: studentID,
		Recipient: studentID,
		Title:     title,
		Body:      body,
		CreatedAt: at,
	}
}
