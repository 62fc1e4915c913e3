package payroll

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

func (s *Store) CreatePeriod(ctx context.Context, tenantID string, period Period) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, `
    INSERT INTO payroll_periods (tenant_id, year, month, start_date, end_date, status)
    VALUES ($1,$2,$3,$4,$5,$6)
    RETURNING id
  `, tenantID, period.Year, period.Month, period.StartDate, period.EndDate, period.Status).Scan(&id)
	if isUniqueViolation(err) {
		return "", &ValidationError{Field: "month", Reason: "a period already exists for this month"}
	}
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) GetPeriod(ctx context.Context, tenantID, periodID string) (Period, error) {
	var period Period
	err := s.DB.QueryRow(ctx, `
    SELECT id, year, month, start_date, end_date, status, created_at
    FROM payroll_periods
    WHERE tenant_id = $1 AND id = $2
  `, tenantID, periodID).Scan(&period.ID, &period.Year, &period.Month, &period.StartDate, &period.EndDate, &period.Status, &period.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Period{}, ErrPeriodNotFound
	}
	return period, err
}

func (s *Store) ListPeriods(ctx context.Context, tenantID string) ([]Period, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, year, month, start_date, end_date, status, created_at
    FROM payroll_periods
    WHERE tenant_id = $1
    ORDER BY year DESC, month DESC
  `, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var periods []Period
	for rows.Next() {
		var period Period
		if err := rows.Scan(&period.ID, &period.Year, &period.Month, &period.StartDate, &period.EndDate, &period.Status, &period.CreatedAt); err != nil {
			return nil, err
		}
		periods = append(periods, period)
	}
	return periods, rows.Err()
}

func (s *Store) GetRun(ctx context.Context, tenantID, runID string) (Run, error) {
	return s.scanRun(s.DB.QueryRow(ctx, `
    SELECT id, period_id, year, month, status, version, calculated_at, approved_at, locked_at
    FROM payroll_runs
    WHERE tenant_id = $1 AND id = $2
  `, tenantID, runID))
}

func (s *Store) RunForPeriod(ctx context.Context, tenantID, periodID string) (Run, error) {
	return s.scanRun(s.DB.QueryRow(ctx, `
    SELECT id, period_id, year, month, status, version, calculated_at, approved_at, locked_at
    FROM payroll_runs
    WHERE tenant_id = $1 AND period_id = $2
  `, tenantID, periodID))
}

func (s *Store) scanRun(row pgx.Row) (Run, error) {
	var run Run
	err := row.Scan(&run.ID, &run.PeriodID, &run.Year, &run.Month, &run.Status, &run.Version,
		&run.CalculatedAt, &run.ApprovedAt, &run.LockedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Run{}, ErrRunNotFound
	}
	return run, err
}

func (s *Store) CreateDraftRun(ctx context.Context, tenantID, periodID string) (Run, error) {
	var run Run
	err := s.DB.QueryRow(ctx, `
    INSERT INTO payroll_runs (tenant_id, period_id, year, month, status)
    SELECT tenant_id, id, year, month, $3
    FROM payroll_periods
    WHERE tenant_id = $1 AND id = $2
    RETURNING id, period_id, year, month, status, version, calculated_at, approved_at, locked_at
  `, tenantID, periodID, RunStatusDraft).Scan(&run.ID, &run.PeriodID, &run.Year, &run.Month, &run.Status,
		&run.Version, &run.CalculatedAt, &run.ApprovedAt, &run.LockedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Run{}, ErrPeriodNotFound
	}
	return run, err
}

// ReplaceLines discards every existing line of the run and writes the new
// set, moving the run to Calculated, in one transaction.
func (s *Store) ReplaceLines(ctx context.Context, tenantID string, run Run, lines []Line) error {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "DELETE FROM payroll_lines WHERE tenant_id = $1 AND run_id = $2", tenantID, run.ID); err != nil {
		return err
	}
	for _, line := range lines {
		if _, err := tx.Exec(ctx, `
      INSERT INTO payroll_lines (
        tenant_id, run_id, employee_id,
        base_salary, allowances, overtime_hours, overtime_amount,
        manual_deductions, loan_deduction, unpaid_leave_days, unpaid_leave_deduction,
        gosi_wage_base, gosi_employee, gosi_employer, total_deductions, net
      ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
    `, tenantID, run.ID, line.EmployeeID,
			line.BaseSalary, line.Allowances, line.OvertimeHours, line.OvertimeAmount,
			line.ManualDeductions, line.LoanDeduction, line.UnpaidLeaveDays, line.UnpaidLeaveDeduction,
			line.GOSIWageBase, line.GOSIEmployee, line.GOSIEmployer, line.TotalDeductions, line.Net); err != nil {
			return err
		}
	}

	tag, err := tx.Exec(ctx, `
    UPDATE payroll_runs
    SET status = $1, calculated_at = now(), version = version + 1
    WHERE tenant_id = $2 AND id = $3 AND version = $4
  `, RunStatusCalculated, tenantID, run.ID, run.Version)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}
	if err := mirrorPeriodStatus(ctx, tx, tenantID, run.PeriodID, RunStatusCalculated); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) ListLines(ctx context.Context, tenantID, runID string) ([]Line, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, run_id, employee_id,
           base_salary, allowances, overtime_hours, overtime_amount,
           manual_deductions, loan_deduction, unpaid_leave_days, unpaid_leave_deduction,
           gosi_wage_base, gosi_employee, gosi_employer, total_deductions, net
    FROM payroll_lines
    WHERE tenant_id = $1 AND run_id = $2
    ORDER BY employee_id
  `, tenantID, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanLines(rows)
}

func (s *Store) ApprovedLines(ctx context.Context, tenantID string, year, month int) ([]Line, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT l.id, l.run_id, l.employee_id,
           l.base_salary, l.allowances, l.overtime_hours, l.overtime_amount,
           l.manual_deductions, l.loan_deduction, l.unpaid_leave_days, l.unpaid_leave_deduction,
           l.gosi_wage_base, l.gosi_employee, l.gosi_employer, l.total_deductions, l.net
    FROM payroll_lines l
    JOIN payroll_runs r ON l.run_id = r.id
    WHERE l.tenant_id = $1 AND r.year = $2 AND r.month = $3
      AND r.status IN ($4, $5)
  `, tenantID, year, month, RunStatusApproved, RunStatusLocked)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanLines(rows)
}

func scanLines(rows pgx.Rows) ([]Line, error) {
	var lines []Line
	for rows.Next() {
		var line Line
		if err := rows.Scan(&line.ID, &line.RunID, &line.EmployeeID,
			&line.BaseSalary, &line.Allowances, &line.OvertimeHours, &line.OvertimeAmount,
			&line.ManualDeductions, &line.LoanDeduction, &line.UnpaidLeaveDays, &line.UnpaidLeaveDeduction,
			&line.GOSIWageBase, &line.GOSIEmployee, &line.GOSIEmployer, &line.TotalDeductions, &line.Net); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

func (s *Store) Adjustments(ctx context.Context, tenantID, periodID string) ([]Adjustment, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, period_id, employee_id, kind, COALESCE(description, ''), amount, created_at
    FROM payroll_adjustments
    WHERE tenant_id = $1 AND period_id = $2
    ORDER BY created_at
  `, tenantID, periodID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var adjustments []Adjustment
	for rows.Next() {
		var adjustment Adjustment
		if err := rows.Scan(&adjustment.ID, &adjustment.PeriodID, &adjustment.EmployeeID, &adjustment.Kind,
			&adjustment.Description, &adjustment.Amount, &adjustment.CreatedAt); err != nil {
			return nil, err
		}
		adjustments = append(adjustments, adjustment)
	}
	return adjustments, rows.Err()
}

func (s *Store) CreateAdjustment(ctx context.Context, tenantID string, adjustment Adjustment) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, `
    INSERT INTO payroll_adjustments (tenant_id, period_id, employee_id, kind, description, amount)
    VALUES ($1,$2,$3,$4,$5,$6)
    RETURNING id
  `, tenantID, adjustment.PeriodID, adjustment.EmployeeID, adjustment.Kind, adjustment.Description, adjustment.Amount).Scan(&id)
	return id, err
}

func (s *Store) DueInstallments(ctx context.Context, tenantID string, year, month int) ([]DueInstallment, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT i.id, i.loan_id, l.employee_id, i.amount
    FROM loan_installments i
    JOIN employee_loans l ON i.loan_id = l.id
    WHERE i.tenant_id = $1 AND i.year = $2 AND i.month = $3
      AND i.status = 'pending' AND l.status = 'active'
  `, tenantID, year, month)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var due []DueInstallment
	for rows.Next() {
		var installment DueInstallment
		if err := rows.Scan(&installment.ID, &installment.LoanID, &installment.EmployeeID, &installment.Amount); err != nil {
			return nil, err
		}
		due = append(due, installment)
	}
	return due, rows.Err()
}

func (s *Store) LoanStates(ctx context.Context, tenantID string, loanIDs []string) ([]LoanState, error) {
	if len(loanIDs) == 0 {
		return nil, nil
	}
	rows, err := s.DB.Query(ctx, `
    SELECT id, status, remaining_balance, paid_installments, total_installments, version
    FROM employee_loans
    WHERE tenant_id = $1 AND id = ANY($2)
  `, tenantID, loanIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var states []LoanState
	for rows.Next() {
		var state LoanState
		if err := rows.Scan(&state.ID, &state.Status, &state.RemainingBalance,
			&state.PaidInstallments, &state.TotalInstallments, &state.Version); err != nil {
			return nil, err
		}
		states = append(states, state)
	}
	return states, rows.Err()
}

// InsertDecision appends a governance record and moves the run to Approved
// in one transaction. Decisions are never updated or deleted.
func (s *Store) InsertDecision(ctx context.Context, tenantID string, run Run, decision Decision) (string, error) {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return "", err
	}
	defer tx.Rollback(ctx)

	var id string
	err = tx.QueryRow(ctx, `
    INSERT INTO approval_decisions (
      tenant_id, run_id, decision_type, actor_id, decided_at,
      critical_codes, warning_count,
      override_category, override_reason, override_reference, reference_month,
      findings_json
    ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
    RETURNING id
  `, tenantID, run.ID, decision.DecisionType, decision.ActorID, decision.DecidedAt,
		decision.CriticalCodes, decision.WarningCount,
		nullIfEmpty(decision.OverrideCategory), nullIfEmpty(decision.OverrideReason),
		nullIfEmpty(decision.OverrideReference), referenceMonth(decision.OverrideReference),
		[]byte(decision.FindingsSnapshot)).Scan(&id)
	if isUniqueViolation(err) {
		return "", errReferenceTaken
	}
	if err != nil {
		return "", err
	}

	tag, err := tx.Exec(ctx, `
    UPDATE payroll_runs
    SET status = $1, approved_at = $2, version = version + 1
    WHERE tenant_id = $3 AND id = $4 AND version = $5 AND status = $6
  `, RunStatusApproved, decision.DecidedAt, tenantID, run.ID, run.Version, RunStatusCalculated)
	if err != nil {
		return "", err
	}
	if tag.RowsAffected() == 0 {
		return "", ErrConflict
	}
	if err := mirrorPeriodStatus(ctx, tx, tenantID, run.PeriodID, RunStatusApproved); err != nil {
		return "", err
	}
	if err := tx.Commit(ctx); err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) ListDecisions(ctx context.Context, tenantID, runID string) ([]Decision, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, run_id, decision_type, actor_id, decided_at,
           critical_codes, warning_count,
           COALESCE(override_category, ''), COALESCE(override_reason, ''), COALESCE(override_reference, ''),
           findings_json
    FROM approval_decisions
    WHERE tenant_id = $1 AND run_id = $2
    ORDER BY decided_at
  `, tenantID, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var decisions []Decision
	for rows.Next() {
		var decision Decision
		var snapshot []byte
		if err := rows.Scan(&decision.ID, &decision.RunID, &decision.DecisionType, &decision.ActorID, &decision.DecidedAt,
			&decision.CriticalCodes, &decision.WarningCount,
			&decision.OverrideCategory, &decision.OverrideReason, &decision.OverrideReference,
			&snapshot); err != nil {
			return nil, err
		}
		decision.FindingsSnapshot = snapshot
		decisions = append(decisions, decision)
	}
	return decisions, rows.Err()
}

func (s *Store) OverrideReferences(ctx context.Context, tenantID, monthKey string) ([]string, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT override_reference
    FROM approval_decisions
    WHERE tenant_id = $1 AND decision_type = $2 AND reference_month = $3
  `, tenantID, DecisionOverride, monthKey)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var references []string
	for rows.Next() {
		var reference string
		if err := rows.Scan(&reference); err != nil {
			return nil, err
		}
		references = append(references, reference)
	}
	return references, rows.Err()
}

// LockRun applies the lock transition and its loan settlements atomically.
func (s *Store) LockRun(ctx context.Context, tenantID string, run Run, plan LockPlan) error {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, installment := range plan.Installments {
		tag, err := tx.Exec(ctx, `
      UPDATE loan_installments
      SET status = 'deducted', payroll_run_id = $1, deducted_at = $2
      WHERE tenant_id = $3 AND id = $4 AND status = 'pending'
    `, run.ID, plan.LockedAt, tenantID, installment.InstallmentID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrConflict
		}
	}
	for _, loan := range plan.Loans {
		tag, err := tx.Exec(ctx, `
      UPDATE employee_loans
      SET remaining_balance = $1, paid_installments = $2, status = $3, version = version + 1
      WHERE tenant_id = $4 AND id = $5 AND version = $6
    `, loan.NewBalance, loan.NewPaidCount, loan.NewStatus, tenantID, loan.LoanID, loan.ExpectedVersion)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrConflict
		}
	}

	tag, err := tx.Exec(ctx, `
    UPDATE payroll_runs
    SET status = $1, locked_at = $2, version = version + 1
    WHERE tenant_id = $3 AND id = $4 AND version = $5 AND status = $6
  `, RunStatusLocked, plan.LockedAt, tenantID, run.ID, run.Version, RunStatusApproved)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}
	if err := mirrorPeriodStatus(ctx, tx, tenantID, run.PeriodID, RunStatusLocked); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func mirrorPeriodStatus(ctx context.Context, tx pgx.Tx, tenantID, periodID, status string) error {
	_, err := tx.Exec(ctx, `
    UPDATE payroll_periods SET status = $1 WHERE tenant_id = $2 AND id = $3
  `, status, tenantID, periodID)
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func referenceMonth(reference string) any {
	monthKey, _, ok := ParseOverrideReference(reference)
	if !ok {
		return nil
	}
	return monthKey
}
