package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/campus-loan-api/internal/models"
)

// ErrBalanceConflict is returned when a guarded balance update matches no row:
// either the loan vanished or the requested amount exceeds the current
// balance. The allocator never requests more than the balance it just read,
// so hitting this indicates a concurrent writer and the step must not be
// recorded.
var ErrBalanceConflict = errors.New("loan balance update conflict")

// ErrTransitionConflict is returned when a status transition finds the loan
// in an unexpected state.
var ErrTransitionConflict = errors.New("loan status transition conflict")

const loanColumns = `id, student_id, principal_amount, outstanding_balance, status, purpose, application_date, guarantor_name, guarantor_contact, approved_by, approved_at, disbursed_at, created_at, updated_at`

// LoanRepository handles persistence for student loans.
type LoanRepository struct {
	db *sqlx.DB
}

// NewLoanRepository instantiates a loan repository.
func NewLoanRepository(db *sqlx.DB) *LoanRepository {
	return &LoanRepository{db: db}
}

// Create inserts a new loan record. A fresh loan starts pending with its full
// principal outstanding.
func (r *LoanRepository) Create(ctx context.Context, loan *models.Loan) error {
	if loan.ID == "" {
		loan.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if loan.CreatedAt.IsZero() {
		loan.CreatedAt = now
	}
	loan.UpdatedAt = now

	const query = `INSERT INTO loans (id, student_id, principal_amount, outstanding_balance, status, purpose, application_date, guarantor_name, guarantor_contact, approved_by, approved_at, disbursed_at, created_at, updated_at) VALUES (:id, :student_id, :principal_amount, :outstanding_balance, :status, :purpose, :application_date, :guarantor_name, :guarantor_contact, :approved_by, :approved_at, :disbursed_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, loan); err != nil {
		return fmt.Errorf("create loan: %w", err)
	}
	return nil
}

// FindByID loads a loan by identifier.
func (r *LoanRepository) FindByID(ctx context.Context, id string) (*models.Loan, error) {
	query := fmt.Sprintf("SELECT %s FROM loans WHERE id = $1", loanColumns)
	var loan models.Loan
	if err := r.db.GetContext(ctx, &loan, query, id); err != nil {
		return nil, err
	}
	return &loan, nil
}

// ListByStudent returns every loan for a student, oldest application first.
func (r *LoanRepository) ListByStudent(ctx context.Context, studentID string) ([]models.Loan, error) {
	query := fmt.Sprintf("SELECT %s FROM loans WHERE student_id = $1 ORDER BY application_date ASC, created_at ASC", loanColumns)
	var loans []models.Loan
	if err := r.db.SelectContext(ctx, &loans, query, studentID); err != nil {
		return nil, fmt.Errorf("list loans for student %s: %w", studentID, err)
	}
	return loans, nil
}

// OpenLoansForStudent returns the student's loans still carrying a balance in
// an allocatable status, ordered by application date ascending. The ordering
// is load-bearing: the allocator pays the oldest loan first.
func (r *LoanRepository) OpenLoansForStudent(ctx context.Context, studentID string) ([]models.Loan, error) {
	query := fmt.Sprintf("SELECT %s FROM loans WHERE student_id = $1 AND outstanding_balance > 0 AND status IN ('PENDING', 'APPROVED', 'ACTIVE') ORDER BY application_date ASC, created_at ASC", loanColumns)
	var loans []models.Loan
	if err := r.db.SelectContext(ctx, &loans, query, studentID); err != nil {
		return nil, fmt.Errorf("open loans for student %s: %w", studentID, err)
	}
	return loans, nil
}

// AllWithBalance returns every loan still carrying a balance in an open
// status. Used by the overdue sweep; already-overdue loans are excluded so a
// repeated sweep stays a no-op.
func (r *LoanRepository) AllWithBalance(ctx context.Context) ([]models.Loan, error) {
	query := fmt.Sprintf("SELECT %s FROM loans WHERE outstanding_balance > 0 AND status IN ('PENDING', 'APPROVED', 'ACTIVE') ORDER BY application_date ASC", loanColumns)
	var loans []models.Loan
	if err := r.db.SelectContext(ctx, &loans, query); err != nil {
		return nil, fmt.Errorf("scan loans with balance: %w", err)
	}
	return loans, nil
}

// ApplyDeduction atomically decrements the outstanding balance. The WHERE
// guard keeps the balance non-negative under concurrency; the CASE promotes
// pending/approved loans to active on a partial deduction and flips the loan
// to paid when the balance reaches zero.
func (r *LoanRepository) ApplyDeduction(ctx context.Context, loanID string, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("apply deduction: non-positive amount %d", amount)
	}
	const query = `UPDATE loans SET
		outstanding_balance = outstanding_balance - $2,
		status = CASE
			WHEN outstanding_balance - $2 = 0 THEN 'PAID'
			WHEN status IN ('PENDING', 'APPROVED') THEN 'ACTIVE'
			ELSE status
		END,
		updated_at = $3
	WHERE id = $1 AND outstanding_balance >= $2`

	res, err := r.db.ExecContext(ctx, query, loanID, amount, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("apply deduction to loan %s: %w", loanID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("apply deduction rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("apply deduction to loan %s: %w", loanID, ErrBalanceConflict)
	}
	return nil
}

// MarkOverdue flips the loan to overdue when it still carries a balance.
// Returns false when nothing changed: already overdue, already paid, or gone.
func (r *LoanRepository) MarkOverdue(ctx context.Context, loanID string) (bool, error) {
	const query = `UPDATE loans SET status = 'OVERDUE', updated_at = $2 WHERE id = $1 AND outstanding_balance > 0 AND status IN ('PENDING', 'APPROVED', 'ACTIVE')`
	res, err := r.db.ExecContext(ctx, query, loanID, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("mark loan %s overdue: %w", loanID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark overdue rows affected: %w", err)
	}
	return affected > 0, nil
}

// Approve transitions a pending loan to approved.
func (r *LoanRepository) Approve(ctx context.Context, loanID, approverID string, at time.Time) error {
	const query = `UPDATE loans SET status = 'APPROVED', approved_by = $2, approved_at = $3, updated_at = $3 WHERE id = $1 AND status = 'PENDING'`
	return r.transition(ctx, query, loanID, approverID, at)
}

// Reject transitions a pending loan to rejected.
func (r *LoanRepository) Reject(ctx context.Context, loanID, approverID string, at time.Time) error {
	const query = `UPDATE loans SET status = 'REJECTED', approved_by = $2, approved_at = $3, updated_at = $3 WHERE id = $1 AND status = 'PENDING'`
	return r.transition(ctx, query, loanID, approverID, at)
}

// Disburse transitions an approved loan to active and stamps disbursement.
func (r *LoanRepository) Disburse(ctx context.Context, loanID string, at time.Time) error {
	const query = `UPDATE loans SET status = 'ACTIVE', disbursed_at = $2, updated_at = $2 WHERE id = $1 AND status = 'APPROVED'`
	res, err := r.db.ExecContext(ctx, query, loanID, at)
	if err != nil {
		return fmt.Errorf("disburse loan %s: %w", loanID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("disburse rows affected: %w", err)
	}
	if affected == 0 {
		return ErrTransitionConflict
	}
	return nil
}

func (r *LoanRepository) transition(ctx context.Context, query, loanID, actorID string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, query, loanID, actorID, at)
	if err != nil {
		return fmt.Errorf("transition loan %s: %w", loanID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("transition rows affected: %w", err)
	}
	if affected == 0 {
		return ErrTransitionConflict
	}
	return nil
}
