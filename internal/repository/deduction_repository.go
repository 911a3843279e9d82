package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/campus-loan-api/internal/models"
)

const deductionColumns = `id, student_id, loan_id, amount, "trigger", source_semester_id, deduction_semester_id, previous_balance, new_balance, payment_reference, created_at`

// DeductionRepository persists the append-only automated deduction ledger.
// There are deliberately no update or delete operations.
type DeductionRepository struct {
	db *sqlx.DB
}

// NewDeductionRepository instantiates a deduction repository.
func NewDeductionRepository(db *sqlx.DB) *DeductionRepository {
	return &DeductionRepository{db: db}
}

// Create appends one deduction record.
func (r *DeductionRepository) Create(ctx context.Context, deduction *models.AutomatedDeduction) error {
	if deduction.ID == "" {
		deduction.ID = uuid.NewString()
	}
	if deduction.CreatedAt.IsZero() {
		deduction.CreatedAt = time.Now().UTC()
	}

	const query = `INSERT INTO automated_deductions (id, student_id, loan_id, amount, "trigger", source_semester_id, deduction_semester_id, previous_balance, new_balance, payment_reference, created_at) VALUES (:id, :student_id, :loan_id, :amount, :trigger, :source_semester_id, :deduction_semester_id, :previous_balance, :new_balance, :payment_reference, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, deduction); err != nil {
		return fmt.Errorf("create deduction record: %w", err)
	}
	return nil
}

// ListByReference returns the deduction records written for a payment
// reference, in the order they were taken. Used for idempotent replay of
// duplicate payment events.
func (r *DeductionRepository) ListByReference(ctx context.Context, reference string) ([]models.AutomatedDeduction, error) {
	query := fmt.Sprintf("SELECT %s FROM automated_deductions WHERE payment_reference = $1 ORDER BY created_at ASC", deductionColumns)
	var deductions []models.AutomatedDeduction
	if err := r.db.SelectContext(ctx, &deductions, query, reference); err != nil {
		return nil, fmt.Errorf("list deductions for reference %s: %w", reference, err)
	}
	return deductions, nil
}

// ListByLoan returns a loan's deduction history, oldest first.
func (r *DeductionRepository) ListByLoan(ctx context.Context, loanID string) ([]models.AutomatedDeduction, error) {
	query := fmt.Sprintf("SELECT %s FROM automated_deductions WHERE loan_id = $1 ORDER BY created_at ASC", deductionColumns)
	var deductions []models.AutomatedDeduction
	if err := r.db.SelectContext(ctx, &deductions, query, loanID); err != nil {
		return nil, fmt.Errorf("list deductions for loan %s: %w", loanID, err)
	}
	return deductions, nil
}

// ListByStudent returns a student's deduction history, oldest first.
func (r *DeductionRepository) ListByStudent(ctx context.Context, studentID string) ([]models.AutomatedDeduction, error) {
	query := fmt.Sprintf("SELECT %s FROM automated_deductions WHERE student_id = $1 ORDER BY created_at ASC", deductionColumns)
	var deductions []models.AutomatedDeduction
	if err := r.db.SelectContext(ctx, &deductions, query, studentID); err != nil {
		return nil, fmt.Errorf("list deductions for student %s: %w", studentID, err)
	}
	return deductions, nil
}
