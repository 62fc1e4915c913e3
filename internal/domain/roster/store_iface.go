package roster

import (
	"context"
	"time"
)

// ReaderAPI is the read-only roster contract consumed by the payroll
// calculator. All reads are tenant-scoped and period-scoped.
type ReaderAPI interface {
	Employees(ctx context.Context, tenantID string) ([]Employee, error)
	AllowancePolicies(ctx context.Context, tenantID string) ([]AllowancePolicy, error)
	TimesheetEntries(ctx context.Context, tenantID string, start, end time.Time) ([]TimesheetEntry, error)
	AttendanceInputs(ctx context.Context, tenantID string, year, month int) ([]AttendanceInput, error)
	UnpaidLeaves(ctx context.Context, tenantID string, start, end time.Time) ([]LeaveWindow, error)
}
