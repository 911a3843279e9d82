package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-loan-api/internal/models"
)

func newDeductionRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func deductionRows(records ...models.AutomatedDeduction) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"id", "student_id", "loan_id", "amount", "trigger", "source_semester_id", "deduction_semester_id", "previous_balance", "new_balance", "payment_reference", "created_at"})
	for _, d := range records {
		rows.AddRow(d.ID, d.StudentID, d.LoanID, d.Amount, d.Trigger, d.SourceSemesterID, d.DeductionSemesterID, d.PreviousBalance, d.NewBalance, d.PaymentReference, d.CreatedAt)
	}
	return rows
}

func TestDeductionRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newDeductionRepoMock(t)
	defer cleanup()

	repo := NewDeductionRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO automated_deductions")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	ref := "pay-001"
	record := &models.AutomatedDeduction{
		StudentID:        "stu-1",
		LoanID:           "loan-a",
		Amount:           5000,
		Trigger:          models.TriggerPaymentEvent,
		PreviousBalance:  5000,
		NewBalance:       0,
		PaymentReference: &ref,
	}
	require.NoError(t, repo.Create(context.Background(), record))
	require.NotEmpty(t, record.ID)
	require.False(t, record.CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeductionRepositoryListByReference(t *testing.T) {
	db, mock, cleanup := newDeductionRepoMock(t)
	defer cleanup()

	repo := NewDeductionRepository(db)
	ref := "pay-001"
	mock.ExpectQuery(regexp.QuoteMeta("WHERE payment_reference = $1 ORDER BY created_at ASC")).
		WithArgs(ref).
		WillReturnRows(deductionRows(models.AutomatedDeduction{
			ID:               "ded-1",
			StudentID:        "stu-1",
			LoanID:           "loan-a",
			Amount:           5000,
			Trigger:          models.TriggerPaymentEvent,
			PreviousBalance:  5000,
			NewBalance:       0,
			PaymentReference: &ref,
			CreatedAt:        time.Now().UTC(),
		}))

	records, err := repo.ListByReference(context.Background(), ref)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "loan-a", records[0].LoanID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeductionRepositoryListByLoan(t *testing.T) {
	db, mock, cleanup := newDeductionRepoMock(t)
	defer cleanup()

	repo := NewDeductionRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE loan_id = $1 ORDER BY created_at ASC")).
		WithArgs("loan-a").
		WillReturnRows(deductionRows(
			models.AutomatedDeduction{ID: "ded-1", LoanID: "loan-a", Amount: 2000, PreviousBalance: 5000, NewBalance: 3000, Trigger: models.TriggerPaymentEvent, CreatedAt: time.Now().UTC()},
			models.AutomatedDeduction{ID: "ded-2", LoanID: "loan-a", Amount: 3000, PreviousBalance: 3000, NewBalance: 0, Trigger: models.TriggerOverdueRecovery, CreatedAt: time.Now().UTC()},
		))

	records, err := repo.ListByLoan(context.Background(), "loan-a")
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, models.TriggerOverdueRecovery, records[1].Trigger)
	require.NoError(t, mock.ExpectationsWereMet())
}
