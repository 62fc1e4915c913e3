package payroll

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"rawatib/internal/domain/loans"
	"rawatib/internal/domain/roster"
)

type fakeStore struct {
	periods    map[string]Period
	runs       map[string]Run
	lines      map[string][]Line
	priorLines []Line
	adjusts    []Adjustment
	due        []DueInstallment
	loanStates []LoanState
	decisions  []Decision
	issued     []string

	replaceCalls int
	lockPlan     *LockPlan
	loanIDsAsked []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		periods: map[string]Period{},
		runs:    map[string]Run{},
		lines:   map[string][]Line{},
	}
}

func (f *fakeStore) CreatePeriod(_ context.Context, _ string, period Period) (string, error) {
	id := "period-1"
	period.ID = id
	f.periods[id] = period
	return id, nil
}

func (f *fakeStore) GetPeriod(_ context.Context, _ string, periodID string) (Period, error) {
	period, ok := f.periods[periodID]
	if !ok {
		return Period{}, ErrPeriodNotFound
	}
	return period, nil
}

func (f *fakeStore) ListPeriods(_ context.Context, _ string) ([]Period, error) {
	var out []Period
	for _, period := range f.periods {
		out = append(out, period)
	}
	return out, nil
}

func (f *fakeStore) GetRun(_ context.Context, _ string, runID string) (Run, error) {
	run, ok := f.runs[runID]
	if !ok {
		return Run{}, ErrRunNotFound
	}
	return run, nil
}

func (f *fakeStore) RunForPeriod(_ context.Context, _ string, periodID string) (Run, error) {
	for _, run := range f.runs {
		if run.PeriodID == periodID {
			return run, nil
		}
	}
	return Run{}, ErrRunNotFound
}

func (f *fakeStore) CreateDraftRun(_ context.Context, _ string, periodID string) (Run, error) {
	period, ok := f.periods[periodID]
	if !ok {
		return Run{}, ErrPeriodNotFound
	}
	run := Run{
		ID:       "run-" + periodID,
		PeriodID: periodID,
		Year:     period.Year,
		Month:    period.Month,
		Status:   RunStatusDraft,
	}
	f.runs[run.ID] = run
	return run, nil
}

func (f *fakeStore) ReplaceLines(_ context.Context, _ string, run Run, lines []Line) error {
	f.replaceCalls++
	f.lines[run.ID] = lines
	run.Status = RunStatusCalculated
	run.Version++
	f.runs[run.ID] = run
	return nil
}

func (f *fakeStore) ListLines(_ context.Context, _ string, runID string) ([]Line, error) {
	return f.lines[runID], nil
}

func (f *fakeStore) ApprovedLines(_ context.Context, _ string, _, _ int) ([]Line, error) {
	return f.priorLines, nil
}

func (f *fakeStore) Adjustments(_ context.Context, _, _ string) ([]Adjustment, error) {
	return f.adjusts, nil
}

func (f *fakeStore) CreateAdjustment(_ context.Context, _ string, adjustment Adjustment) (string, error) {
	adjustment.ID = "adj-1"
	f.adjusts = append(f.adjusts, adjustment)
	return adjustment.ID, nil
}

func (f *fakeStore) DueInstallments(_ context.Context, _ string, _, _ int) ([]DueInstallment, error) {
	return f.due, nil
}

func (f *fakeStore) LoanStates(_ context.Context, _ string, loanIDs []string) ([]LoanState, error) {
	f.loanIDsAsked = loanIDs
	var out []LoanState
	for _, state := range f.loanStates {
		for _, id := range loanIDs {
			if state.ID == id {
				out = append(out, state)
			}
		}
	}
	return out, nil
}

func (f *fakeStore) InsertDecision(_ context.Context, _ string, run Run, decision Decision) (string, error) {
	decision.ID = "decision-1"
	f.decisions = append(f.decisions, decision)
	run.Status = RunStatusApproved
	run.Version++
	f.runs[run.ID] = run
	if decision.OverrideReference != "" {
		f.issued = append(f.issued, decision.OverrideReference)
	}
	return decision.ID, nil
}

func (f *fakeStore) ListDecisions(_ context.Context, _, _ string) ([]Decision, error) {
	return f.decisions, nil
}

func (f *fakeStore) OverrideReferences(_ context.Context, _, _ string) ([]string, error) {
	return f.issued, nil
}

func (f *fakeStore) LockRun(_ context.Context, _ string, run Run, plan LockPlan) error {
	f.lockPlan = &plan
	run.Status = RunStatusLocked
	run.Version++
	lockedAt := plan.LockedAt
	run.LockedAt = &lockedAt
	f.runs[run.ID] = run
	return nil
}

type fakeRoster struct {
	employees []roster.Employee
}

func (f *fakeRoster) Employees(_ context.Context, _ string) ([]roster.Employee, error) {
	return f.employees, nil
}

func (f *fakeRoster) AllowancePolicies(_ context.Context, _ string) ([]roster.AllowancePolicy, error) {
	return nil, nil
}

func (f *fakeRoster) TimesheetEntries(_ context.Context, _ string, _, _ time.Time) ([]roster.TimesheetEntry, error) {
	return nil, nil
}

func (f *fakeRoster) AttendanceInputs(_ context.Context, _ string, _, _ int) ([]roster.AttendanceInput, error) {
	return nil, nil
}

func (f *fakeRoster) UnpaidLeaves(_ context.Context, _ string, _, _ time.Time) ([]roster.LeaveWindow, error) {
	return nil, nil
}

var testNow = time.Date(2025, time.August, 15, 12, 0, 0, 0, time.UTC)

func newTestService(store *fakeStore, reader roster.ReaderAPI) *Service {
	if reader == nil {
		reader = &fakeRoster{}
	}
	svc := NewService(store, reader, DefaultGOSIRates(), DefaultThresholds())
	svc.clock = func() time.Time { return testNow }
	return svc
}

func seedPeriod(store *fakeStore) Period {
	period := Period{
		ID:        "period-1",
		Year:      2025,
		Month:     8,
		StartDate: date(2025, time.August, 1),
		EndDate:   date(2025, time.August, 31),
		Status:    RunStatusDraft,
	}
	store.periods[period.ID] = period
	return period
}

func seedRun(store *fakeStore, status string, lines []Line) Run {
	period := seedPeriod(store)
	run := Run{
		ID:       "run-1",
		PeriodID: period.ID,
		Year:     period.Year,
		Month:    period.Month,
		Status:   status,
		Version:  1,
	}
	store.runs[run.ID] = run
	store.lines[run.ID] = lines
	return run
}

func TestCreatePeriodValidation(t *testing.T) {
	svc := newTestService(newFakeStore(), nil)
	var vErr *ValidationError
	if _, err := svc.CreatePeriod(context.Background(), "t1", 2025, 13); !errors.As(err, &vErr) {
		t.Fatalf("expected validation error for month 13, got %v", err)
	}
	if _, err := svc.CreatePeriod(context.Background(), "t1", 1980, 5); !errors.As(err, &vErr) {
		t.Fatalf("expected validation error for year 1980, got %v", err)
	}

	period, err := svc.CreatePeriod(context.Background(), "t1", 2025, 8)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !period.StartDate.Equal(date(2025, time.August, 1)) || !period.EndDate.Equal(date(2025, time.August, 31)) {
		t.Fatalf("unexpected period window %v - %v", period.StartDate, period.EndDate)
	}
}

func TestCalculateCreatesRunAndRecalculates(t *testing.T) {
	store := newFakeStore()
	seedPeriod(store)
	reader := &fakeRoster{employees: []roster.Employee{{ID: "emp-1", BaseSalary: 6000}}}
	svc := newTestService(store, reader)

	run, lines, err := svc.Calculate(context.Background(), "t1", "period-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if run.Status != RunStatusCalculated {
		t.Fatalf("expected calculated run, got %s", run.Status)
	}
	if len(lines) != 1 || lines[0].Net != 6000 {
		t.Fatalf("unexpected lines %v", lines)
	}

	// recalculation replaces the previous lines instead of appending
	if _, _, err := svc.Calculate(context.Background(), "t1", "period-1"); err != nil {
		t.Fatalf("unexpected error on recalc: %v", err)
	}
	if store.replaceCalls != 2 {
		t.Fatalf("expected 2 line replacements, got %d", store.replaceCalls)
	}
	if len(store.lines[run.ID]) != 1 {
		t.Fatalf("expected lines to be replaced, got %d", len(store.lines[run.ID]))
	}
}

func TestCalculateRejectsApprovedAndLockedRuns(t *testing.T) {
	store := newFakeStore()
	seedRun(store, RunStatusApproved, nil)
	svc := newTestService(store, nil)
	if _, _, err := svc.Calculate(context.Background(), "t1", "period-1"); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected invalid state, got %v", err)
	}

	store = newFakeStore()
	seedRun(store, RunStatusLocked, nil)
	svc = newTestService(store, nil)
	if _, _, err := svc.Calculate(context.Background(), "t1", "period-1"); !errors.Is(err, ErrAlreadyLocked) {
		t.Fatalf("expected already locked, got %v", err)
	}
}

func TestApproveStandardBlockedByCriticalFindings(t *testing.T) {
	store := newFakeStore()
	seedRun(store, RunStatusCalculated, []Line{
		{EmployeeID: "emp-1", BaseSalary: 1000, TotalDeductions: 1500, Net: -500},
	})
	svc := newTestService(store, nil)

	_, err := svc.ApproveStandard(context.Background(), "t1", "run-1", "actor-1")
	if !errors.Is(err, ErrBlockedByFindings) {
		t.Fatalf("expected blocked by findings, got %v", err)
	}
	if !strings.Contains(err.Error(), FindingNegativeNet) {
		t.Fatalf("expected error to name the critical code, got %v", err)
	}
	if len(store.decisions) != 0 {
		t.Fatalf("expected no decision recorded, got %v", store.decisions)
	}
}

func TestApproveStandardWithWarnings(t *testing.T) {
	store := newFakeStore()
	run := seedRun(store, RunStatusCalculated, []Line{
		{EmployeeID: "emp-1", BaseSalary: 5000, OvertimeHours: 40, Net: 5000},
	})
	svc := newTestService(store, nil)

	decision, err := svc.ApproveStandard(context.Background(), "t1", run.ID, "actor-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.DecisionType != DecisionStandard {
		t.Fatalf("expected standard decision, got %s", decision.DecisionType)
	}
	if decision.WarningCount != 1 {
		t.Fatalf("expected 1 warning, got %d", decision.WarningCount)
	}
	if !decision.DecidedAt.Equal(testNow) {
		t.Fatalf("expected decision at %v, got %v", testNow, decision.DecidedAt)
	}
	if store.runs[run.ID].Status != RunStatusApproved {
		t.Fatalf("expected run approved, got %s", store.runs[run.ID].Status)
	}
	if len(decision.FindingsSnapshot) == 0 {
		t.Fatal("expected findings snapshot to be recorded")
	}
}

func TestApproveOverrideRequiresCriticalFindings(t *testing.T) {
	store := newFakeStore()
	seedRun(store, RunStatusCalculated, []Line{
		{EmployeeID: "emp-1", BaseSalary: 5000, Net: 5000},
	})
	svc := newTestService(store, nil)

	_, err := svc.ApproveOverride(context.Background(), "t1", "run-1", "actor-1",
		"data_quality", "known issue", "OVR-202508-0001")
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestApproveOverrideRequiresCategoryAndReason(t *testing.T) {
	store := newFakeStore()
	seedRun(store, RunStatusCalculated, []Line{
		{EmployeeID: "emp-1", BaseSalary: 1000, TotalDeductions: 1500, Net: -500},
	})
	svc := newTestService(store, nil)

	var vErr *ValidationError
	if _, err := svc.ApproveOverride(context.Background(), "t1", "run-1", "actor-1",
		"  ", "reason", "OVR-202508-0001"); !errors.As(err, &vErr) || vErr.Field != "category" {
		t.Fatalf("expected category validation error, got %v", err)
	}
	if _, err := svc.ApproveOverride(context.Background(), "t1", "run-1", "actor-1",
		"data_quality", "", "OVR-202508-0001"); !errors.As(err, &vErr) || vErr.Field != "reason" {
		t.Fatalf("expected reason validation error, got %v", err)
	}
}

func TestApproveOverrideRejectsWrongMonthReference(t *testing.T) {
	store := newFakeStore()
	seedRun(store, RunStatusCalculated, []Line{
		{EmployeeID: "emp-1", BaseSalary: 1000, TotalDeductions: 1500, Net: -500},
	})
	svc := newTestService(store, nil)

	_, err := svc.ApproveOverride(context.Background(), "t1", "run-1", "actor-1",
		"data_quality", "known issue", "OVR-202507-0001")
	var vErr *ValidationError
	if !errors.As(err, &vErr) || vErr.Field != "referenceId" {
		t.Fatalf("expected referenceId validation error, got %v", err)
	}
	if vErr.Suggestion != "OVR-202508-0001" {
		t.Fatalf("expected suggestion OVR-202508-0001, got %s", vErr.Suggestion)
	}
}

func TestApproveOverrideRejectsDuplicateReference(t *testing.T) {
	store := newFakeStore()
	seedRun(store, RunStatusCalculated, []Line{
		{EmployeeID: "emp-1", BaseSalary: 1000, TotalDeductions: 1500, Net: -500},
	})
	store.issued = []string{"OVR-202508-0001"}
	svc := newTestService(store, nil)

	_, err := svc.ApproveOverride(context.Background(), "t1", "run-1", "actor-1",
		"data_quality", "known issue", "OVR-202508-0001")
	var vErr *ValidationError
	if !errors.As(err, &vErr) || vErr.Field != "referenceId" {
		t.Fatalf("expected referenceId validation error, got %v", err)
	}
	if vErr.Suggestion != "OVR-202508-0002" {
		t.Fatalf("expected suggestion OVR-202508-0002, got %s", vErr.Suggestion)
	}
}

func TestApproveOverrideRecordsGovernanceFields(t *testing.T) {
	store := newFakeStore()
	run := seedRun(store, RunStatusCalculated, []Line{
		{EmployeeID: "emp-1", BaseSalary: 1000, TotalDeductions: 1500, Net: -500},
	})
	svc := newTestService(store, nil)

	decision, err := svc.ApproveOverride(context.Background(), "t1", run.ID, "actor-1",
		"data_quality", "upstream timesheet import known to be partial", "OVR-202508-0001")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.DecisionType != DecisionOverride {
		t.Fatalf("expected override decision, got %s", decision.DecisionType)
	}
	if decision.OverrideReference != "OVR-202508-0001" {
		t.Fatalf("unexpected reference %s", decision.OverrideReference)
	}
	found := false
	for _, code := range decision.CriticalCodes {
		if code == FindingNegativeNet {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected critical codes to include negative net, got %v", decision.CriticalCodes)
	}
	if store.runs[run.ID].Status != RunStatusApproved {
		t.Fatalf("expected run approved, got %s", store.runs[run.ID].Status)
	}
}

func TestApproveRequiresCalculatedRun(t *testing.T) {
	store := newFakeStore()
	seedRun(store, RunStatusDraft, nil)
	svc := newTestService(store, nil)
	if _, err := svc.ApproveStandard(context.Background(), "t1", "run-1", "actor-1"); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected invalid state, got %v", err)
	}
}

func TestLockSettlesOnlyInstallmentsOfEmployeesInRun(t *testing.T) {
	store := newFakeStore()
	run := seedRun(store, RunStatusApproved, []Line{
		{EmployeeID: "emp-1", BaseSalary: 5000, Net: 4500},
	})
	store.due = []DueInstallment{
		{ID: "inst-1", LoanID: "loan-1", EmployeeID: "emp-1", Amount: 500},
		{ID: "inst-2", LoanID: "loan-2", EmployeeID: "emp-2", Amount: 300},
	}
	store.loanStates = []LoanState{
		{ID: "loan-1", Status: loans.StatusActive, RemainingBalance: 1500, PaidInstallments: 1, TotalInstallments: 4, Version: 3},
		{ID: "loan-2", Status: loans.StatusActive, RemainingBalance: 900, PaidInstallments: 0, TotalInstallments: 3, Version: 1},
	}
	svc := newTestService(store, nil)

	locked, err := svc.Lock(context.Background(), "t1", run.ID, "actor-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if locked.Status != RunStatusLocked {
		t.Fatalf("expected locked run, got %s", locked.Status)
	}
	if len(store.loanIDsAsked) != 1 || store.loanIDsAsked[0] != "loan-1" {
		t.Fatalf("expected only loan-1 to be loaded, got %v", store.loanIDsAsked)
	}
	plan := store.lockPlan
	if plan == nil {
		t.Fatal("expected a lock plan")
	}
	if len(plan.Installments) != 1 || plan.Installments[0].InstallmentID != "inst-1" {
		t.Fatalf("expected only inst-1 deducted, got %v", plan.Installments)
	}
	if len(plan.Loans) != 1 {
		t.Fatalf("expected one loan mutation, got %v", plan.Loans)
	}
	loan := plan.Loans[0]
	if loan.NewBalance != 1000 || loan.NewPaidCount != 2 || loan.NewStatus != loans.StatusActive {
		t.Fatalf("unexpected loan mutation %+v", loan)
	}
	if loan.ExpectedVersion != 3 {
		t.Fatalf("expected version guard 3, got %d", loan.ExpectedVersion)
	}
}

func TestLockRequiresApprovedRun(t *testing.T) {
	store := newFakeStore()
	seedRun(store, RunStatusCalculated, nil)
	svc := newTestService(store, nil)
	if _, err := svc.Lock(context.Background(), "t1", "run-1", "actor-1"); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected invalid state, got %v", err)
	}
}

func TestBuildLockPlanFloorsBalanceAndClosesLoan(t *testing.T) {
	lockedAt := testNow
	due := []DueInstallment{{ID: "inst-1", LoanID: "loan-1", EmployeeID: "emp-1", Amount: 500}}
	states := []LoanState{{
		ID: "loan-1", Status: loans.StatusActive,
		RemainingBalance: 400, PaidInstallments: 2, TotalInstallments: 3, Version: 5,
	}}
	plan := BuildLockPlan(lockedAt, due, states)
	if len(plan.Loans) != 1 {
		t.Fatalf("expected one loan mutation, got %v", plan.Loans)
	}
	loan := plan.Loans[0]
	if loan.NewBalance != 0 {
		t.Fatalf("expected balance floored at 0, got %v", loan.NewBalance)
	}
	if loan.NewStatus != loans.StatusClosed {
		t.Fatalf("expected loan closed, got %s", loan.NewStatus)
	}
}

func TestBuildLockPlanActivatesDraftLoan(t *testing.T) {
	due := []DueInstallment{{ID: "inst-1", LoanID: "loan-1", EmployeeID: "emp-1", Amount: 200}}
	states := []LoanState{{
		ID: "loan-1", Status: loans.StatusDraft,
		RemainingBalance: 1000, PaidInstallments: 0, TotalInstallments: 5, Version: 0,
	}}
	plan := BuildLockPlan(testNow, due, states)
	if plan.Loans[0].NewStatus != loans.StatusActive {
		t.Fatalf("expected draft loan activated, got %s", plan.Loans[0].NewStatus)
	}
}

func TestBuildLockPlanSkipsUntouchedLoans(t *testing.T) {
	states := []LoanState{{
		ID: "loan-1", Status: loans.StatusActive,
		RemainingBalance: 1000, PaidInstallments: 0, TotalInstallments: 5, Version: 0,
	}}
	plan := BuildLockPlan(testNow, nil, states)
	if len(plan.Loans) != 0 || len(plan.Installments) != 0 {
		t.Fatalf("expected empty plan, got %+v", plan)
	}
}

func TestNextOverrideReferenceID(t *testing.T) {
	store := newFakeStore()
	store.issued = []string{"OVR-202508-0002", "OVR-202507-0044"}
	svc := newTestService(store, nil)

	reference, exhausted, err := svc.NextOverrideReferenceID(context.Background(), "t1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if exhausted {
		t.Fatal("expected sequence space to be available")
	}
	if reference != "OVR-202508-0003" {
		t.Fatalf("expected OVR-202508-0003, got %s", reference)
	}
}

func TestCreateAdjustmentValidation(t *testing.T) {
	store := newFakeStore()
	seedPeriod(store)
	svc := newTestService(store, nil)

	var vErr *ValidationError
	if _, err := svc.CreateAdjustment(context.Background(), "t1", Adjustment{
		PeriodID: "period-1", EmployeeID: "emp-1", Kind: "bonus", Amount: 100,
	}); !errors.As(err, &vErr) || vErr.Field != "kind" {
		t.Fatalf("expected kind validation error, got %v", err)
	}
	if _, err := svc.CreateAdjustment(context.Background(), "t1", Adjustment{
		PeriodID: "period-1", EmployeeID: "emp-1", Kind: AdjustmentDeduction, Amount: 0,
	}); !errors.As(err, &vErr) || vErr.Field != "amount" {
		t.Fatalf("expected amount validation error, got %v", err)
	}
	if _, err := svc.CreateAdjustment(context.Background(), "t1", Adjustment{
		PeriodID: "missing", EmployeeID: "emp-1", Kind: AdjustmentAllowance, Amount: 100,
	}); !errors.Is(err, ErrPeriodNotFound) {
		t.Fatalf("expected period not found, got %v", err)
	}

	adjustment, err := svc.CreateAdjustment(context.Background(), "t1", Adjustment{
		PeriodID: "period-1", EmployeeID: "emp-1", Kind: AdjustmentAllowance, Amount: 250,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if adjustment.ID == "" {
		t.Fatal("expected adjustment id to be assigned")
	}
}
