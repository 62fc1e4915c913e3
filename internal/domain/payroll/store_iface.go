package payroll

import "context"

// StoreAPI is the storage contract of the payroll engine. Mutating methods
// apply all their writes in a single transaction; on error nothing commits.
type StoreAPI interface {
	CreatePeriod(ctx context.Context, tenantID string, period Period) (string, error)
	GetPeriod(ctx context.Context, tenantID, periodID string) (Period, error)
	ListPeriods(ctx context.Context, tenantID string) ([]Period, error)

	GetRun(ctx context.Context, tenantID, runID string) (Run, error)
	RunForPeriod(ctx context.Context, tenantID, periodID string) (Run, error)
	CreateDraftRun(ctx context.Context, tenantID, periodID string) (Run, error)

	ReplaceLines(ctx context.Context, tenantID string, run Run, lines []Line) error
	ListLines(ctx context.Context, tenantID, runID string) ([]Line, error)
	// ApprovedLines returns the lines of the approved-or-locked run for the
	// given month, or nil when no such run exists.
	ApprovedLines(ctx context.Context, tenantID string, year, month int) ([]Line, error)

	Adjustments(ctx context.Context, tenantID, periodID string) ([]Adjustment, error)
	CreateAdjustment(ctx context.Context, tenantID string, adjustment Adjustment) (string, error)

	DueInstallments(ctx context.Context, tenantID string, year, month int) ([]DueInstallment, error)
	LoanStates(ctx context.Context, tenantID string, loanIDs []string) ([]LoanState, error)

	InsertDecision(ctx context.Context, tenantID string, run Run, decision Decision) (string, error)
	ListDecisions(ctx context.Context, tenantID, runID string) ([]Decision, error)
	OverrideReferences(ctx context.Context, tenantID, monthKey string) ([]string, error)

	LockRun(ctx context.Context, tenantID string, run Run, plan LockPlan) error
}
