package models

import "time"

// LoanStatus represents the lifecycle state of a student loan.
type LoanStatus string

const (
	LoanStatusPending  LoanStatus = "PENDING"
	LoanStatusApproved LoanStatus = "APPROVED"
	LoanStatusActive   LoanStatus = "ACTIVE"
	LoanStatusOverdue  LoanStatus = "OVERDUE"
	LoanStatusPaid     LoanStatus = "PAID"
	LoanStatusRejected LoanStatus = "REJECTED"
)

// OpenLoanStatuses are the states in which a loan still participates in
// payment allocation and overdue sweeps.
var OpenLoanStatuses = []LoanStatus{LoanStatusPending, LoanStatusApproved, LoanStatusActive}

// Loan represents one disbursed or pending student loan. Amounts are integer
// minor units; OutstandingBalance stays within [0, PrincipalAmount].
type Loan struct {
	ID                 string     `db:"id" json:"id"`
	StudentID          string     `db:"student_id" json:"student_id"`
	PrincipalAmount    int64      `db:"principal_amount" json:"principal_amount"`
	OutstandingBalance int64      `db:"outstanding_balance" json:"outstanding_balance"`
	Status             LoanStatus `db:"status" json:"status"`
	Purpose            string     `db:"purpose" json:"purpose"`
	ApplicationDate    time.Time  `db:"application_date" json:"application_date"`
	GuarantorName      *string    `db:"guarantor_name" json:"guarantor_name,omitempty"`
	GuarantorContact   *string    `db:"guarantor_contact" json:"guarantor_contact,omitempty"`
	ApprovedBy         *string    `db:"approved_by" json:"approved_by,omitempty"`
	ApprovedAt         *time.Time `db:"approved_at" json:"approved_at,omitempty"`
	DisbursedAt        *time.Time `db:"disbursed_at" json:"disbursed_at,omitempty"`
	CreatedAt          time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at" json:"updated_at"`
}

// LoanDetail augments a loan with calendar-derived repayment state.
type LoanDetail struct {
	Loan
	IsOverdue      bool       `json:"is_overdue"`
	GracePeriodEnd *time.Time `json:"grace_period_end,omitempty"`
}

// StudentLoanSummary aggregates a student's position across all loans.
type StudentLoanSummary struct {
	StudentID        string       `json:"student_id"`
	TotalBorrowed    int64        `json:"total_borrowed"`
	TotalOutstanding int64        `json:"total_outstanding"`
	TotalRepaid      int64        `json:"total_repaid"`
	Loans            []LoanDetail `json:"loans"`
}
