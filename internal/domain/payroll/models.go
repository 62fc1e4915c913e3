package payroll

import (
	"encoding/json"
	"time"
)

// Period identifies one calendar month of payroll. Start and end dates are
// immutable once created; Status mirrors the period's run as it progresses.
type Period struct {
	ID        string    `json:"id"`
	Year      int       `json:"year"`
	Month     int       `json:"month"`
	StartDate time.Time `json:"startDate"`
	EndDate   time.Time `json:"endDate"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// Run is the single payroll run of a period. Locked is terminal.
type Run struct {
	ID           string     `json:"id"`
	PeriodID     string     `json:"periodId"`
	Year         int        `json:"year"`
	Month        int        `json:"month"`
	Status       string     `json:"status"`
	Version      int        `json:"version"`
	CalculatedAt *time.Time `json:"calculatedAt,omitempty"`
	ApprovedAt   *time.Time `json:"approvedAt,omitempty"`
	LockedAt     *time.Time `json:"lockedAt,omitempty"`
}

// Line is one employee's net-pay computation within a run.
// Invariant: Net = BaseSalary + Allowances + OvertimeAmount - TotalDeductions.
type Line struct {
	ID                   string  `json:"id,omitempty"`
	RunID                string  `json:"runId,omitempty"`
	EmployeeID           string  `json:"employeeId"`
	BaseSalary           float64 `json:"baseSalary"`
	Allowances           float64 `json:"allowances"`
	OvertimeHours        float64 `json:"overtimeHours"`
	OvertimeAmount       float64 `json:"overtimeAmount"`
	ManualDeductions     float64 `json:"manualDeductions"`
	LoanDeduction        float64 `json:"loanDeduction"`
	UnpaidLeaveDays      float64 `json:"unpaidLeaveDays"`
	UnpaidLeaveDeduction float64 `json:"unpaidLeaveDeduction"`
	GOSIWageBase         float64 `json:"gosiWageBase"`
	GOSIEmployee         float64 `json:"gosiEmployee"`
	GOSIEmployer         float64 `json:"gosiEmployer"`
	TotalDeductions      float64 `json:"totalDeductions"`
	Net                  float64 `json:"net"`
}

// Adjustment is a manual allowance or deduction entered for one employee in
// one period.
type Adjustment struct {
	ID          string    `json:"id"`
	PeriodID    string    `json:"periodId"`
	EmployeeID  string    `json:"employeeId"`
	Kind        string    `json:"kind"`
	Description string    `json:"description"`
	Amount      float64   `json:"amount"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Finding is a computed anomaly signal. Findings are never persisted; they
// are recomputed on every request and only survive as the serialized
// snapshot embedded in an approval decision.
type Finding struct {
	Code       string  `json:"code"`
	Severity   string  `json:"severity"`
	EmployeeID string  `json:"employeeId,omitempty"`
	Message    string  `json:"message"`
	Metric     string  `json:"metric,omitempty"`
	Value      float64 `json:"value,omitempty"`
}

// Decision is one append-only governance record for a run approval.
type Decision struct {
	ID                string          `json:"id"`
	RunID             string          `json:"runId"`
	DecisionType      string          `json:"decisionType"`
	ActorID           string          `json:"actorId"`
	DecidedAt         time.Time       `json:"decidedAt"`
	CriticalCodes     []string        `json:"criticalCodes,omitempty"`
	WarningCount      int             `json:"warningCount"`
	OverrideCategory  string          `json:"overrideCategory,omitempty"`
	OverrideReason    string          `json:"overrideReason,omitempty"`
	OverrideReference string          `json:"overrideReference,omitempty"`
	FindingsSnapshot  json.RawMessage `json:"findingsSnapshot,omitempty"`
}

// RunTotals aggregates a run's lines for summary responses.
type RunTotals struct {
	EmployeeCount   int     `json:"employeeCount"`
	TotalEarnings   float64 `json:"totalEarnings"`
	TotalDeductions float64 `json:"totalDeductions"`
	TotalNet        float64 `json:"totalNet"`
}

// DueInstallment is a pending loan installment scheduled for a specific
// (year, month), read for calculation and settled on lock.
type DueInstallment struct {
	ID         string
	LoanID     string
	EmployeeID string
	Amount     float64
}

// LoanState is the subset of a loan mutated by the lock transition.
type LoanState struct {
	ID                string
	Status            string
	RemainingBalance  float64
	PaidInstallments  int
	TotalInstallments int
	Version           int
}

// LockPlan is the full set of loan mutations applied atomically when a run
// is locked.
type LockPlan struct {
	LockedAt     time.Time
	Installments []LockInstallment
	Loans        []LockLoan
}

type LockInstallment struct {
	InstallmentID string
	LoanID        string
	Amount        float64
}

type LockLoan struct {
	LoanID          string
	NewBalance      float64
	NewPaidCount    int
	NewStatus       string
	ExpectedVersion int
}
