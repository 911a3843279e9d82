package models

import "time"

// DeductionTrigger classifies why an automated deduction was taken.
type DeductionTrigger string

const (
	// TriggerPaymentEvent marks a timely deduction from an incoming payment.
	TriggerPaymentEvent DeductionTrigger = "PAYMENT_EVENT"
	// TriggerOverdueRecovery marks a deduction recovering an already overdue loan.
	TriggerOverdueRecovery DeductionTrigger = "OVERDUE_RECOVERY"
)

// AutomatedDeduction is an immutable, append-only ledger entry recording one
// allocation of funds against one loan. Entries are never updated or deleted.
// NewBalance = PreviousBalance - Amount holds for every record.
type AutomatedDeduction struct {
	ID                  string           `db:"id" json:"id"`
	StudentID           string           `db:"student_id" json:"student_id"`
	LoanID              string           `db:"loan_id" json:"loan_id"`
	Amount              int64            `db:"amount" json:"amount"`
	Trigger             DeductionTrigger `db:"trigger" json:"trigger"`
	SourceSemesterID    *string          `db:"source_semester_id" json:"source_semester_id,omitempty"`
	DeductionSemesterID *string          `db:"deduction_semester_id" json:"deduction_semester_id,omitempty"`
	PreviousBalance     int64            `db:"previous_balance" json:"previous_balance"`
	NewBalance          int64            `db:"new_balance" json:"new_balance"`
	PaymentReference    *string          `db:"payment_reference" json:"payment_reference,omitempty"`
	CreatedAt           time.Time        `db:"created_at" json:"created_at"`
}
