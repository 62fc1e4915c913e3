package payroll

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"rawatib/internal/domain/loans"
	"rawatib/internal/domain/roster"
	"rawatib/internal/platform/money"
)

// Service owns the approval state machine: Draft -> Calculated -> Approved
// -> Locked, with findings gating the approve transitions and the lock
// transition settling due loan installments.
type Service struct {
	store      StoreAPI
	roster     roster.ReaderAPI
	rates      GOSIRates
	thresholds Thresholds
	clock      func() time.Time
}

func NewService(store StoreAPI, reader roster.ReaderAPI, rates GOSIRates, thresholds Thresholds) *Service {
	return &Service{
		store:      store,
		roster:     reader,
		rates:      rates,
		thresholds: thresholds,
		clock:      time.Now,
	}
}

func (s *Service) CreatePeriod(ctx context.Context, tenantID string, year, month int) (Period, error) {
	if year < 2000 || year > 2200 {
		return Period{}, &ValidationError{Field: "year", Reason: "must be a plausible calendar year"}
	}
	if month < 1 || month > 12 {
		return Period{}, &ValidationError{Field: "month", Reason: "must be between 1 and 12"}
	}
	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	period := Period{
		Year:      year,
		Month:     month,
		StartDate: start,
		EndDate:   start.AddDate(0, 1, -1),
		Status:    RunStatusDraft,
	}
	id, err := s.store.CreatePeriod(ctx, tenantID, period)
	if err != nil {
		return Period{}, err
	}
	period.ID = id
	return period, nil
}

func (s *Service) ListPeriods(ctx context.Context, tenantID string) ([]Period, error) {
	return s.store.ListPeriods(ctx, tenantID)
}

// RunForPeriod returns the period's run, ErrRunNotFound when the period has
// never been calculated.
func (s *Service) RunForPeriod(ctx context.Context, tenantID, periodID string) (Run, error) {
	if _, err := s.store.GetPeriod(ctx, tenantID, periodID); err != nil {
		return Run{}, err
	}
	return s.store.RunForPeriod(ctx, tenantID, periodID)
}

// Calculate generates the period's payroll lines, discarding and replacing
// any lines of a Draft or Calculated run. It is rejected once the run is
// Approved, and rejected as AlreadyLocked once the period holds a terminal
// run.
func (s *Service) Calculate(ctx context.Context, tenantID, periodID string) (Run, []Line, error) {
	period, err := s.store.GetPeriod(ctx, tenantID, periodID)
	if err != nil {
		return Run{}, nil, err
	}

	run, err := s.store.RunForPeriod(ctx, tenantID, periodID)
	if errors.Is(err, ErrRunNotFound) {
		run, err = s.store.CreateDraftRun(ctx, tenantID, periodID)
	}
	if err != nil {
		return Run{}, nil, err
	}
	switch run.Status {
	case RunStatusLocked:
		return Run{}, nil, ErrAlreadyLocked
	case RunStatusApproved:
		return Run{}, nil, fmt.Errorf("%w: run is approved", ErrInvalidState)
	}

	input, err := s.gatherInput(ctx, tenantID, period)
	if err != nil {
		return Run{}, nil, err
	}
	lines := ComputeLines(input)

	if err := s.store.ReplaceLines(ctx, tenantID, run, lines); err != nil {
		return Run{}, nil, err
	}
	run, err = s.store.GetRun(ctx, tenantID, run.ID)
	if err != nil {
		return Run{}, nil, err
	}
	return run, lines, nil
}

func (s *Service) gatherInput(ctx context.Context, tenantID string, period Period) (CalcInput, error) {
	input := CalcInput{
		PeriodStart: period.StartDate,
		PeriodEnd:   period.EndDate,
		Rates:       s.rates,
	}
	var err error
	if input.Employees, err = s.roster.Employees(ctx, tenantID); err != nil {
		return input, err
	}
	if input.Policies, err = s.roster.AllowancePolicies(ctx, tenantID); err != nil {
		return input, err
	}
	if input.Timesheets, err = s.roster.TimesheetEntries(ctx, tenantID, period.StartDate, period.EndDate); err != nil {
		return input, err
	}
	if input.Attendance, err = s.roster.AttendanceInputs(ctx, tenantID, period.Year, period.Month); err != nil {
		return input, err
	}
	if input.UnpaidLeaves, err = s.roster.UnpaidLeaves(ctx, tenantID, period.StartDate, period.EndDate); err != nil {
		return input, err
	}
	if input.Adjustments, err = s.store.Adjustments(ctx, tenantID, period.ID); err != nil {
		return input, err
	}
	if input.Installments, err = s.store.DueInstallments(ctx, tenantID, period.Year, period.Month); err != nil {
		return input, err
	}
	return input, nil
}

func (s *Service) GetRun(ctx context.Context, tenantID, runID string) (Run, []Line, RunTotals, error) {
	run, err := s.store.GetRun(ctx, tenantID, runID)
	if err != nil {
		return Run{}, nil, RunTotals{}, err
	}
	lines, err := s.store.ListLines(ctx, tenantID, runID)
	if err != nil {
		return Run{}, nil, RunTotals{}, err
	}
	totals := RunTotals{EmployeeCount: len(lines)}
	for _, line := range lines {
		totals.TotalEarnings = money.Round2(totals.TotalEarnings + line.BaseSalary + line.Allowances + line.OvertimeAmount)
		totals.TotalDeductions = money.Round2(totals.TotalDeductions + line.TotalDeductions)
		totals.TotalNet = money.Round2(totals.TotalNet + line.Net)
	}
	return run, lines, totals, nil
}

// Findings recomputes the pre-approval findings for a run. Nothing is
// persisted; callers get a fresh evaluation on every request.
func (s *Service) Findings(ctx context.Context, tenantID, runID string) ([]Finding, error) {
	run, err := s.store.GetRun(ctx, tenantID, runID)
	if err != nil {
		return nil, err
	}
	return s.findingsForRun(ctx, tenantID, run)
}

func (s *Service) findingsForRun(ctx context.Context, tenantID string, run Run) ([]Finding, error) {
	lines, err := s.store.ListLines(ctx, tenantID, run.ID)
	if err != nil {
		return nil, err
	}
	priorYear, priorMonth := previousMonth(run.Year, run.Month)
	previous, err := s.store.ApprovedLines(ctx, tenantID, priorYear, priorMonth)
	if err != nil {
		return nil, err
	}
	return EvaluateFindings(lines, previous, s.thresholds), nil
}

// ApproveStandard moves a Calculated run to Approved, permitted only when
// the finding engine reports zero critical findings.
func (s *Service) ApproveStandard(ctx context.Context, tenantID, runID, actorID string) (Decision, error) {
	run, err := s.calculatedRun(ctx, tenantID, runID)
	if err != nil {
		return Decision{}, err
	}
	findings, err := s.findingsForRun(ctx, tenantID, run)
	if err != nil {
		return Decision{}, err
	}
	criticals, warnings := CountBySeverity(findings)
	if criticals > 0 {
		return Decision{}, fmt.Errorf("%w: %s", ErrBlockedByFindings, strings.Join(CriticalCodes(findings), ", "))
	}

	decision := Decision{
		RunID:            run.ID,
		DecisionType:     DecisionStandard,
		ActorID:          actorID,
		DecidedAt:        s.clock().UTC(),
		WarningCount:     warnings,
		FindingsSnapshot: marshalFindings(findings),
	}
	decision.ID, err = s.store.InsertDecision(ctx, tenantID, run, decision)
	if err != nil {
		return Decision{}, err
	}
	return decision, nil
}

// ApproveOverride moves a Calculated run to Approved despite critical
// findings. It requires at least one critical finding (forcing the standard
// path when uncontested), a category, a free-text reason, and an unused
// OVR-YYYYMM-#### reference id for the current calendar month.
func (s *Service) ApproveOverride(ctx context.Context, tenantID, runID, actorID, category, reason, referenceID string) (Decision, error) {
	run, err := s.calculatedRun(ctx, tenantID, runID)
	if err != nil {
		return Decision{}, err
	}
	if strings.TrimSpace(category) == "" {
		return Decision{}, &ValidationError{Field: "category", Reason: "override category is required"}
	}
	if strings.TrimSpace(reason) == "" {
		return Decision{}, &ValidationError{Field: "reason", Reason: "override reason is required"}
	}

	findings, err := s.findingsForRun(ctx, tenantID, run)
	if err != nil {
		return Decision{}, err
	}
	criticals, warnings := CountBySeverity(findings)
	if criticals == 0 {
		return Decision{}, &ValidationError{Reason: "no critical findings present; use standard approval"}
	}

	now := s.clock().UTC()
	monthKey, _, ok := ParseOverrideReference(referenceID)
	if !ok || monthKey != MonthKey(now) {
		suggestion, err := s.suggestReference(ctx, tenantID, now)
		if err != nil {
			return Decision{}, err
		}
		return Decision{}, &ValidationError{
			Field:      "referenceId",
			Reason:     "must match OVR-YYYYMM-#### for the current calendar month",
			Suggestion: suggestion,
		}
	}
	issued, err := s.store.OverrideReferences(ctx, tenantID, monthKey)
	if err != nil {
		return Decision{}, err
	}
	for _, id := range issued {
		if id == referenceID {
			return Decision{}, s.referenceTakenError(ctx, tenantID, now)
		}
	}

	decision := Decision{
		RunID:             run.ID,
		DecisionType:      DecisionOverride,
		ActorID:           actorID,
		DecidedAt:         now,
		CriticalCodes:     CriticalCodes(findings),
		WarningCount:      warnings,
		OverrideCategory:  category,
		OverrideReason:    reason,
		OverrideReference: referenceID,
		FindingsSnapshot:  marshalFindings(findings),
	}
	decision.ID, err = s.store.InsertDecision(ctx, tenantID, run, decision)
	if errors.Is(err, errReferenceTaken) {
		// lost a race with a concurrent override insert
		return Decision{}, s.referenceTakenError(ctx, tenantID, now)
	}
	if err != nil {
		return Decision{}, err
	}
	return decision, nil
}

// Lock moves an Approved run to the terminal Locked state and, in the same
// unit of work, settles every pending installment of an active loan due in
// this run's (year, month) for employees with a line in the run.
func (s *Service) Lock(ctx context.Context, tenantID, runID, actorID string) (Run, error) {
	run, err := s.store.GetRun(ctx, tenantID, runID)
	if err != nil {
		return Run{}, err
	}
	if run.Status != RunStatusApproved {
		return Run{}, fmt.Errorf("%w: run is %s, expected approved", ErrInvalidState, run.Status)
	}

	lines, err := s.store.ListLines(ctx, tenantID, runID)
	if err != nil {
		return Run{}, err
	}
	inRun := make(map[string]bool, len(lines))
	for _, line := range lines {
		inRun[line.EmployeeID] = true
	}

	due, err := s.store.DueInstallments(ctx, tenantID, run.Year, run.Month)
	if err != nil {
		return Run{}, err
	}
	var settled []DueInstallment
	loanIDs := make([]string, 0, len(due))
	seenLoan := make(map[string]bool)
	for _, installment := range due {
		if !inRun[installment.EmployeeID] {
			continue
		}
		settled = append(settled, installment)
		if !seenLoan[installment.LoanID] {
			seenLoan[installment.LoanID] = true
			loanIDs = append(loanIDs, installment.LoanID)
		}
	}

	states, err := s.store.LoanStates(ctx, tenantID, loanIDs)
	if err != nil {
		return Run{}, err
	}
	plan := BuildLockPlan(s.clock().UTC(), settled, states)

	if err := s.store.LockRun(ctx, tenantID, run, plan); err != nil {
		return Run{}, err
	}
	return s.store.GetRun(ctx, tenantID, runID)
}

// BuildLockPlan computes the loan mutations for a lock transition: each due
// installment becomes Deducted, each touched loan's balance is reduced by
// the sum of its deducted installments (never below zero), its paid count
// grows by the number of deductions, Draft loans activate on their first
// deduction, and a loan closes once its balance reaches zero or its paid
// count reaches the total.
func BuildLockPlan(lockedAt time.Time, due []DueInstallment, states []LoanState) LockPlan {
	plan := LockPlan{LockedAt: lockedAt}
	deducted := make(map[string]float64, len(states))
	counts := make(map[string]int, len(states))
	for _, installment := range due {
		plan.Installments = append(plan.Installments, LockInstallment{
			InstallmentID: installment.ID,
			LoanID:        installment.LoanID,
			Amount:        installment.Amount,
		})
		deducted[installment.LoanID] = money.Round2(deducted[installment.LoanID] + installment.Amount)
		counts[installment.LoanID]++
	}
	for _, loan := range states {
		if counts[loan.ID] == 0 {
			continue
		}
		balance := money.Round2(loan.RemainingBalance - deducted[loan.ID])
		if balance < 0 {
			balance = 0
		}
		paid := loan.PaidInstallments + counts[loan.ID]
		status := loan.Status
		if status == loans.StatusDraft {
			status = loans.StatusActive
		}
		if balance <= 0 || paid >= loan.TotalInstallments {
			status = loans.StatusClosed
		}
		plan.Loans = append(plan.Loans, LockLoan{
			LoanID:          loan.ID,
			NewBalance:      balance,
			NewPaidCount:    paid,
			NewStatus:       status,
			ExpectedVersion: loan.Version,
		})
	}
	return plan
}

// NextOverrideReferenceID proposes the next unused override reference id
// for the current calendar month. exhausted reports the 9999 ceiling.
func (s *Service) NextOverrideReferenceID(ctx context.Context, tenantID string) (reference string, exhausted bool, err error) {
	now := s.clock().UTC()
	issued, err := s.store.OverrideReferences(ctx, tenantID, MonthKey(now))
	if err != nil {
		return "", false, err
	}
	reference, exhausted = NextOverrideReference(now, issued)
	return reference, exhausted, nil
}

func (s *Service) ListDecisions(ctx context.Context, tenantID, runID string) ([]Decision, error) {
	if _, err := s.store.GetRun(ctx, tenantID, runID); err != nil {
		return nil, err
	}
	return s.store.ListDecisions(ctx, tenantID, runID)
}

func (s *Service) CreateAdjustment(ctx context.Context, tenantID string, adjustment Adjustment) (Adjustment, error) {
	if adjustment.Kind != AdjustmentAllowance && adjustment.Kind != AdjustmentDeduction {
		return Adjustment{}, &ValidationError{Field: "kind", Reason: "must be allowance or deduction"}
	}
	if adjustment.Amount <= 0 {
		return Adjustment{}, &ValidationError{Field: "amount", Reason: "must be positive"}
	}
	if strings.TrimSpace(adjustment.EmployeeID) == "" {
		return Adjustment{}, &ValidationError{Field: "employeeId", Reason: "is required"}
	}
	if _, err := s.store.GetPeriod(ctx, tenantID, adjustment.PeriodID); err != nil {
		return Adjustment{}, err
	}
	id, err := s.store.CreateAdjustment(ctx, tenantID, adjustment)
	if err != nil {
		return Adjustment{}, err
	}
	adjustment.ID = id
	return adjustment, nil
}

func (s *Service) ListAdjustments(ctx context.Context, tenantID, periodID string) ([]Adjustment, error) {
	if _, err := s.store.GetPeriod(ctx, tenantID, periodID); err != nil {
		return nil, err
	}
	return s.store.Adjustments(ctx, tenantID, periodID)
}

func (s *Service) calculatedRun(ctx context.Context, tenantID, runID string) (Run, error) {
	run, err := s.store.GetRun(ctx, tenantID, runID)
	if err != nil {
		return Run{}, err
	}
	if run.Status != RunStatusCalculated {
		return Run{}, fmt.Errorf("%w: run is %s, expected calculated", ErrInvalidState, run.Status)
	}
	return run, nil
}

func (s *Service) suggestReference(ctx context.Context, tenantID string, now time.Time) (string, error) {
	issued, err := s.store.OverrideReferences(ctx, tenantID, MonthKey(now))
	if err != nil {
		return "", err
	}
	suggestion, _ := NextOverrideReference(now, issued)
	return suggestion, nil
}

func (s *Service) referenceTakenError(ctx context.Context, tenantID string, now time.Time) error {
	suggestion, err := s.suggestReference(ctx, tenantID, now)
	if err != nil {
		return err
	}
	return &ValidationError{
		Field:      "referenceId",
		Reason:     "reference id already used this month",
		Suggestion: suggestion,
	}
}

func marshalFindings(findings []Finding) json.RawMessage {
	snapshot, err := json.Marshal(findings)
	if err != nil {
		return json.RawMessage("[]")
	}
	return snapshot
}

func previousMonth(year, month int) (int, int) {
	if month == 1 {
		return year - 1, 12
	}
	return year, month - 1
}
