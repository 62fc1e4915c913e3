package loans

import "context"

// StoreAPI is the storage contract of the loan lifecycle manager. Every
// Apply method runs in one transaction and verifies the loan version it was
// planned against, failing with ErrConflict on a stale read.
type StoreAPI interface {
	CreateLoan(ctx context.Context, tenantID string, loan Loan, schedule []ScheduledInstallment) (string, error)
	GetLoan(ctx context.Context, tenantID, loanID string) (Loan, error)
	ListLoans(ctx context.Context, tenantID string) ([]Loan, error)
	ListInstallments(ctx context.Context, tenantID, loanID string) ([]Installment, error)

	// LockedPeriods returns the set of YYYY-MM keys whose payroll run is
	// Locked, kept consistent with the authoritative run status.
	LockedPeriods(ctx context.Context, tenantID string) (map[string]bool, error)

	ApplyReschedule(ctx context.Context, tenantID string, loan Loan, moves []InstallmentMove) error
	ApplySkip(ctx context.Context, tenantID string, loan Loan, skipID string, replacement ScheduledInstallment) error
	ApplySettle(ctx context.Context, tenantID string, loan Loan, plan SettlePlan) error
	CancelLoan(ctx context.Context, tenantID string, loan Loan) error
}
