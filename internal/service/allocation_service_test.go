package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-loan-api/internal/models"
	"github.com/noah-isme/campus-loan-api/pkg/config"
	appErrors "github.com/noah-isme/campus-loan-api/pkg/errors"
)

type fakeLoanLedger struct {
	loans      []models.Loan
	applied    map[string]int64
	applyErrOn map[string]error
}

func (f *fakeLoanLedger) OpenLoansForStudent(context.Context, string) ([]models.Loan, error) {
	return f.loans, nil
}

func (f *fakeLoanLedger) ApplyDeduction(_ context.Context, loanID string, amount int64) error {
	if err, ok := f.applyErrOn[loanID]; ok {
		return err
	}
	if f.applied == nil {
		f.applied = map[string]int64{}
	}
	f.applied[loanID] += amount
	return nil
}

type fakeDeductionLedger struct {
	records   []models.AutomatedDeduction
	prior     []models.AutomatedDeduction
	createErr error
}

func (f *fakeDeductionLedger) Create(_ context.Context, d *models.AutomatedDeduction) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.records = append(f.records, *d)
	return nil
}

func (f *fakeDeductionLedger) ListByReference(context.Context, string) ([]models.AutomatedDeduction, error) {
	return f.prior, nil
}

type fakeAllocationCalendar struct {
	current     *models.Semester
	overdueFrom *time.Time
}

func (f *fakeAllocationCalendar) CurrentSemester(time.Time) *models.Semester {
	return f.current
}

func (f *fakeAllocationCalendar) IsLoanOverdue(loanDate, _ time.Time) bool {
	return f.overdueFrom != nil && loanDate.Before(*f.overdueFrom)
}

type fakeAllocationCache struct {
	lockDenied bool
	deleted    []string
}

func (f *fakeAllocationCache) AcquireLock(context.Context, string, time.Duration) (bool, error) {
	return !f.lockDenied, nil
}

func (f *fakeAllocationCache) ReleaseLock(context.Context, string) {}

func (f *fakeAllocationCache) Delete(_ context.Context, key string) error {
	f.deleted = append(f.deleted, key)
	return nil
}

func openLoan(id string, balance int64, applied time.Time) models.Loan {
	return models.Loan{
		ID:                 id,
		StudentID:          "stu-1",
		PrincipalAmount:    balance,
		OutstandingBalance: balance,
		Status:             models.LoanStatusActive,
		ApplicationDate:    applied,
	}
}

func newAllocationService(loans *fakeLoanLedger, deductions *fakeDeductionLedger, calendar *fakeAllocationCalendar, cache *fakeAllocationCache) *AllocationService {
	cfg := config.AllocationConfig{LockTTL: time.Second, LockRetryWait: time.Millisecond}
	return NewAllocationService(loans, deductions, calendar, cache, nil, nil, nil, cfg)
}

func TestAllocationService_FIFOAcrossLoans(t *testing.T) {
	loans := &fakeLoanLedger{loans: []models.Loan{
		openLoan("loan-a", 5000, date(2026, time.February, 1)),
		openLoan("loan-b", 8000, date(2026, time.March, 1)),
	}}
	deductions := &fakeDeductionLedger{}
	cache := &fakeAllocationCache{}
	svc := newAllocationService(loans, deductions, &fakeAllocationCalendar{}, cache)

	result, err := svc.ProcessPayment(context.Background(), ProcessPaymentRequest{
		StudentID: "stu-1",
		Amount:    7000,
		Reference: "pay-001",
	})
	require.NoError(t, err)

	assert.Equal(t, int64(7000), result.TotalDeducted)
	assert.Equal(t, int64(0), result.Unallocated)
	assert.False(t, result.AlreadyProcessed)
	require.Len(t, result.Lines, 2)

	// Oldest loan drains first.
	assert.Equal(t, "loan-a", result.Lines[0].LoanID)
	assert.Equal(t, int64(5000), result.Lines[0].Amount)
	assert.True(t, result.Lines[0].LoanPaidOff)
	assert.Equal(t, "loan-b", result.Lines[1].LoanID)
	assert.Equal(t, int64(2000), result.Lines[1].Amount)
	assert.Equal(t, int64(6000), result.Lines[1].NewBalance)

	require.Len(t, deductions.records, 2)
	assert.Equal(t, int64(5000), deductions.records[0].PreviousBalance)
	assert.Equal(t, int64(0), deductions.records[0].NewBalance)
	require.NotNil(t, deductions.records[0].PaymentReference)
	assert.Equal(t, "pay-001", *deductions.records[0].PaymentReference)

	assert.Len(t, result.Notifications, 2)
	assert.Contains(t, cache.deleted, "loan:summary:stu-1")
}

func TestAllocationService_OverpaymentReportsUnallocated(t *testing.T) {
	loans := &fakeLoanLedger{loans: []models.Loan{
		openLoan("loan-a", 3000, date(2026, time.February, 1)),
	}}
	svc := newAllocationService(loans, &fakeDeductionLedger{}, &fakeAllocationCalendar{}, &fakeAllocationCache{})

	result, err := svc.ProcessPayment(context.Background(), ProcessPaymentRequest{StudentID: "stu-1", Amount: 10000})
	require.NoError(t, err)

	assert.Equal(t, int64(3000), result.TotalDeducted)
	assert.Equal(t, int64(7000), result.Unallocated)
}

func TestAllocationService_NoOpenLoansIsZeroResult(t *testing.T) {
	svc := newAllocationService(&fakeLoanLedger{}, &fakeDeductionLedger{}, &fakeAllocationCalendar{}, &fakeAllocationCache{})

	result, err := svc.ProcessPayment(context.Background(), ProcessPaymentRequest{StudentID: "stu-1", Amount: 5000})
	require.NoError(t, err)

	assert.Equal(t, int64(0), result.TotalDeducted)
	assert.Equal(t, int64(5000), result.Unallocated)
	assert.Empty(t, result.Lines)
}

func TestAllocationService_DuplicateReferenceReplays(t *testing.T) {
	ref := "pay-dup"
	deductions := &fakeDeductionLedger{prior: []models.AutomatedDeduction{
		{LoanID: "loan-a", Amount: 5000, PreviousBalance: 5000, NewBalance: 0, Trigger: models.TriggerPaymentEvent, PaymentReference: &ref},
	}}
	loans := &fakeLoanLedger{loans: []models.Loan{
		openLoan("loan-b", 8000, date(2026, time.March, 1)),
	}}
	svc := newAllocationService(loans, deductions, &fakeAllocationCalendar{}, &fakeAllocationCache{})

	result, err := svc.ProcessPayment(context.Background(), ProcessPaymentRequest{StudentID: "stu-1", Amount: 5000, Reference: ref})
	require.NoError(t, err)

	assert.True(t, result.AlreadyProcessed)
	assert.Equal(t, int64(5000), result.TotalDeducted)
	require.Len(t, result.Lines, 1)
	assert.Equal(t, "loan-a", result.Lines[0].LoanID)

	// No balance was touched on replay.
	assert.Empty(t, loans.applied)
	assert.Empty(t, deductions.records)
}

func TestAllocationService_RejectsInvalidPayment(t *testing.T) {
	svc := newAllocationService(&fakeLoanLedger{}, &fakeDeductionLedger{}, &fakeAllocationCalendar{}, &fakeAllocationCache{})

	_, err := svc.ProcessPayment(context.Background(), ProcessPaymentRequest{StudentID: "stu-1", Amount: 0})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.ProcessPayment(context.Background(), ProcessPaymentRequest{Amount: 100})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAllocationService_LockDeniedReturnsStudentBusy(t *testing.T) {
	svc := newAllocationService(&fakeLoanLedger{}, &fakeDeductionLedger{}, &fakeAllocationCalendar{}, &fakeAllocationCache{lockDenied: true})

	_, err := svc.ProcessPayment(context.Background(), ProcessPaymentRequest{StudentID: "stu-1", Amount: 100})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrStudentBusy.Code, appErrors.FromError(err).Code)
}

func TestAllocationService_OverdueRecoveryTrigger(t *testing.T) {
	cutoff := date(2026, time.March, 1)
	calendar := &fakeAllocationCalendar{overdueFrom: &cutoff}
	loans := &fakeLoanLedger{loans: []models.Loan{
		openLoan("loan-old", 4000, date(2026, time.February, 1)),
		openLoan("loan-new", 4000, date(2026, time.March, 10)),
	}}
	deductions := &fakeDeductionLedger{}
	svc := newAllocationService(loans, deductions, calendar, &fakeAllocationCache{})

	result, err := svc.ProcessPayment(context.Background(), ProcessPaymentRequest{StudentID: "stu-1", Amount: 8000})
	require.NoError(t, err)

	require.Len(t, result.Lines, 2)
	assert.Equal(t, models.TriggerOverdueRecovery, result.Lines[0].Trigger)
	assert.Equal(t, models.TriggerPaymentEvent, result.Lines[1].Trigger)
}

func TestAllocationService_RecordWriteFailureContinues(t *testing.T) {
	loans := &fakeLoanLedger{loans: []models.Loan{
		openLoan("loan-a", 2000, date(2026, time.February, 1)),
		openLoan("loan-b", 2000, date(2026, time.March, 1)),
	}}
	deductions := &fakeDeductionLedger{createErr: errors.New("insert failed")}
	svc := newAllocationService(loans, deductions, &fakeAllocationCalendar{}, &fakeAllocationCache{})

	result, err := svc.ProcessPayment(context.Background(), ProcessPaymentRequest{StudentID: "stu-1", Amount: 4000})
	require.NoError(t, err)

	// Balances were still updated on both loans despite the ledger failures.
	assert.Equal(t, int64(4000), result.TotalDeducted)
	assert.Equal(t, int64(2000), loans.applied["loan-a"])
	assert.Equal(t, int64(2000), loans.applied["loan-b"])
	assert.Empty(t, deductions.records)
}

func TestAllocationService_ApplyFailureSkipsLoan(t *testing.T) {
	loans := &fakeLoanLedger{
		loans: []models.Loan{
			openLoan("loan-a", 2000, date(2026, time.February, 1)),
			openLoan("loan-b", 3000, date(2026, time.March, 1)),
		},
		applyErrOn: map[string]error{"loan-a": errors.New("balance conflict")},
	}
	svc := newAllocationService(loans, &fakeDeductionLedger{}, &fakeAllocationCalendar{}, &fakeAllocationCache{})

	result, err := svc.ProcessPayment(context.Background(), ProcessPaymentRequest{StudentID: "stu-1", Amount: 2500})
	require.NoError(t, err)

	// The failed loan is skipped; the remainder flows to the next one.
	require.Len(t, result.Lines, 1)
	assert.Equal(t, "loan-b", result.Lines[0].LoanID)
	assert.Equal(t, int64(2500), result.Lines[0].Amount)
	assert.Equal(t, int64(0), result.Unallocated)
}
