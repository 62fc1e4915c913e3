package loans

import "time"

// Loan is an employee loan repaid through monthly payroll deductions.
// RemainingBalance only ever decreases, except that a reschedule leaves it
// untouched. Invariant kept by every mutation:
// Principal - RemainingBalance == sum of Deducted and SettledEarly amounts.
type Loan struct {
	ID                string    `json:"id"`
	EmployeeID        string    `json:"employeeId"`
	Principal         float64   `json:"principal"`
	InstallmentAmount float64   `json:"installmentAmount"`
	RemainingBalance  float64   `json:"remainingBalance"`
	StartYear         int       `json:"startYear"`
	StartMonth        int       `json:"startMonth"`
	TotalInstallments int       `json:"totalInstallments"`
	PaidInstallments  int       `json:"paidInstallments"`
	Status            string    `json:"status"`
	Version           int       `json:"version"`
	CreatedAt         time.Time `json:"createdAt"`
}

// Installment is one scheduled repayment. Exactly one installment exists
// per (loan, year, month). Only Pending installments are mutable; Deducted
// ones are immutable and stamped with the payroll run that locked them.
type Installment struct {
	ID           string     `json:"id"`
	LoanID       string     `json:"loanId"`
	Year         int        `json:"year"`
	Month        int        `json:"month"`
	Amount       float64    `json:"amount"`
	Status       string     `json:"status"`
	PayrollRunID string     `json:"payrollRunId,omitempty"`
	DeductedAt   *time.Time `json:"deductedAt,omitempty"`
}

// ScheduledInstallment is a planned (year, month, amount) slot before it is
// persisted.
type ScheduledInstallment struct {
	Year   int     `json:"year"`
	Month  int     `json:"month"`
	Amount float64 `json:"amount"`
}

// InstallmentMove reassigns one pending installment to a new month during a
// reschedule.
type InstallmentMove struct {
	InstallmentID string
	Year          int
	Month         int
}

// SettlePlan is the outcome of an early settlement, applied atomically.
type SettlePlan struct {
	SettleAmount     float64
	Year             int
	Month            int
	NewBalance       float64
	NewPaidCount     int
	NewStatus        string
	CancelPendingIDs []string
}
