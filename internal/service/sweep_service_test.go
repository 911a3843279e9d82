package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-loan-api/internal/models"
)

type fakeSweepLedger struct {
	loans     []models.Loan
	marked    []string
	markErrOn map[string]error
	markFalse map[string]bool
}

func (f *fakeSweepLedger) AllWithBalance(context.Context) ([]models.Loan, error) {
	return f.loans, nil
}

func (f *fakeSweepLedger) MarkOverdue(_ context.Context, loanID string) (bool, error) {
	if err, ok := f.markErrOn[loanID]; ok {
		return false, err
	}
	if f.markFalse[loanID] {
		return false, nil
	}
	f.marked = append(f.marked, loanID)
	return true, nil
}

type fakeSweepCalendar struct {
	overdueFrom *time.Time
	graceEnd    *time.Time
}

func (f *fakeSweepCalendar) IsLoanOverdue(loanDate, _ time.Time) bool {
	return f.overdueFrom != nil && loanDate.Before(*f.overdueFrom)
}

func (f *fakeSweepCalendar) GracePeriodEnd(time.Time) *time.Time {
	return f.graceEnd
}

func TestSweepService_MarksLoansPastGracePeriod(t *testing.T) {
	cutoff := date(2026, time.March, 1)
	graceEnd := date(2026, time.April, 27)
	ledger := &fakeSweepLedger{loans: []models.Loan{
		openLoan("loan-old", 5000, date(2026, time.February, 1)),
		openLoan("loan-new", 5000, date(2026, time.March, 10)),
	}}
	svc := NewSweepService(ledger, &fakeSweepCalendar{overdueFrom: &cutoff, graceEnd: &graceEnd}, nil, nil)

	result, err := svc.Run(context.Background(), date(2026, time.May, 1))
	require.NoError(t, err)

	assert.Equal(t, 2, result.Scanned)
	assert.Equal(t, 1, result.MarkedCount)
	assert.Equal(t, []string{"loan-old"}, ledger.marked)
	require.Len(t, result.Notifications, 1)
	assert.Equal(t, "stu-1", result.Notifications[0].Recipient)
}

func TestSweepService_UndefinedCalendarSkipsEverything(t *testing.T) {
	ledger := &fakeSweepLedger{loans: []models.Loan{
		openLoan("loan-a", 5000, date(2026, time.February, 1)),
	}}
	svc := NewSweepService(ledger, &fakeSweepCalendar{}, nil, nil)

	result, err := svc.Run(context.Background(), date(2030, time.January, 1))
	require.NoError(t, err)

	assert.Equal(t, 1, result.Scanned)
	assert.Equal(t, 0, result.MarkedCount)
	assert.Empty(t, ledger.marked)
}

func TestSweepService_SecondRunIsNoOp(t *testing.T) {
	cutoff := date(2026, time.March, 1)
	ledger := &fakeSweepLedger{
		loans:     []models.Loan{openLoan("loan-a", 5000, date(2026, time.February, 1))},
		markFalse: map[string]bool{"loan-a": true},
	}
	svc := NewSweepService(ledger, &fakeSweepCalendar{overdueFrom: &cutoff}, nil, nil)

	result, err := svc.Run(context.Background(), date(2026, time.May, 1))
	require.NoError(t, err)

	assert.Equal(t, 0, result.MarkedCount)
	assert.Empty(t, result.Notifications)
}

func TestSweepService_MarkFailureContinues(t *testing.T) {
	cutoff := date(2026, time.March, 1)
	ledger := &fakeSweepLedger{
		loans: []models.Loan{
			openLoan("loan-a", 5000, date(2026, time.January, 20)),
			openLoan("loan-b", 5000, date(2026, time.February, 1)),
		},
		markErrOn: map[string]error{"loan-a": errors.New("update failed")},
	}
	svc := NewSweepService(ledger, &fakeSweepCalendar{overdueFrom: &cutoff}, nil, nil)

	result, err := svc.Run(context.Background(), date(2026, time.May, 1))
	require.NoError(t, err)

	assert.Equal(t, 1, result.MarkedCount)
	assert.Equal(t, []string{"loan-b"}, ledger.marked)
}

func TestSweepService_NotifiesGuarantor(t *testing.T) {
	cutoff := date(2026, time.March, 1)
	loan := openLoan("loan-a", 5000, date(2026, time.February, 1))
	loan.GuarantorContact = strPtr("guarantor@example.com")
	ledger := &fakeSweepLedger{loans: []models.Loan{loan}}
	svc := NewSweepService(ledger, &fakeSweepCalendar{overdueFrom: &cutoff}, nil, nil)

	result, err := svc.Run(context.Background(), date(2026, time.May, 1))
	require.NoError(t, err)

	require.Len(t, result.Notifications, 2)
	assert.Equal(t, "stu-1", result.Notifications[0].Recipient)
	assert.Equal(t, "guarantor@example.com", result.Notifications[1].Recipient)
}
