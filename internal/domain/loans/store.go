package loans

import (
	"context"
	"errors"
	"fmt"

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

func (s *Store) CreateLoan(ctx context.Context, tenantID string, loan Loan, schedule []ScheduledInstallment) (string, error) {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return "", err
	}
	defer tx.Rollback(ctx)

	var id string
	err = tx.QueryRow(ctx, `
    INSERT INTO employee_loans (
      tenant_id, employee_id, principal, installment_amount, remaining_balance,
      start_year, start_month, total_installments, paid_installments, status
    ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
    RETURNING id
  `, tenantID, loan.EmployeeID, loan.Principal, loan.InstallmentAmount, loan.RemainingBalance,
		loan.StartYear, loan.StartMonth, loan.TotalInstallments, loan.PaidInstallments, loan.Status).Scan(&id)
	if err != nil {
		return "", err
	}

	for _, slot := range schedule {
		if _, err := tx.Exec(ctx, `
      INSERT INTO loan_installments (tenant_id, loan_id, year, month, amount, status)
      VALUES ($1,$2,$3,$4,$5,$6)
    `, tenantID, id, slot.Year, slot.Month, slot.Amount, InstallmentPending); err != nil {
			return "", err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) GetLoan(ctx context.Context, tenantID, loanID string) (Loan, error) {
	var loan Loan
	err := s.DB.QueryRow(ctx, `
    SELECT id, employee_id, principal, installment_amount, remaining_balance,
           start_year, start_month, total_installments, paid_installments, status, version, created_at
    FROM employee_loans
    WHERE tenant_id = $1 AND id = $2
  `, tenantID, loanID).Scan(&loan.ID, &loan.EmployeeID, &loan.Principal, &loan.InstallmentAmount, &loan.RemainingBalance,
		&loan.StartYear, &loan.StartMonth, &loan.TotalInstallments, &loan.PaidInstallments, &loan.Status, &loan.Version, &loan.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Loan{}, ErrLoanNotFound
	}
	return loan, err
}

func (s *Store) ListLoans(ctx context.Context, tenantID string) ([]Loan, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, employee_id, principal, installment_amount, remaining_balance,
           start_year, start_month, total_installments, paid_installments, status, version, created_at
    FROM employee_loans
    WHERE tenant_id = $1
    ORDER BY created_at DESC
  `, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Loan
	for rows.Next() {
		var loan Loan
		if err := rows.Scan(&loan.ID, &loan.EmployeeID, &loan.Principal, &loan.InstallmentAmount, &loan.RemainingBalance,
			&loan.StartYear, &loan.StartMonth, &loan.TotalInstallments, &loan.PaidInstallments, &loan.Status, &loan.Version, &loan.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, loan)
	}
	return result, rows.Err()
}

func (s *Store) ListInstallments(ctx context.Context, tenantID, loanID string) ([]Installment, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, loan_id, year, month, amount, status, COALESCE(payroll_run_id::text, ''), deducted_at
    FROM loan_installments
    WHERE tenant_id = $1 AND loan_id = $2
    ORDER BY year, month
  `, tenantID, loanID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Installment
	for rows.Next() {
		var installment Installment
		if err := rows.Scan(&installment.ID, &installment.LoanID, &installment.Year, &installment.Month,
			&installment.Amount, &installment.Status, &installment.PayrollRunID, &installment.DeductedAt); err != nil {
			return nil, err
		}
		result = append(result, installment)
	}
	return result, rows.Err()
}

func (s *Store) LockedPeriods(ctx context.Context, tenantID string) (map[string]bool, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT year, month FROM payroll_runs WHERE tenant_id = $1 AND status = 'locked'
  `, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	locked := make(map[string]bool)
	for rows.Next() {
		var year, month int
		if err := rows.Scan(&year, &month); err != nil {
			return nil, err
		}
		locked[PeriodKey(year, month)] = true
	}
	return locked, rows.Err()
}

func (s *Store) ApplyReschedule(ctx context.Context, tenantID string, loan Loan, moves []InstallmentMove) error {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	// Park each moved row on a placeholder slot first. Applying the final
	// months one row at a time would trip the pending-month unique index
	// whenever the new schedule overlaps the loan's old pending slots.
	for i, move := range moves {
		tag, err := tx.Exec(ctx, `
      UPDATE loan_installments
      SET year = 0, month = $1
      WHERE tenant_id = $2 AND id = $3 AND status = $4
    `, -(i + 1), tenantID, move.InstallmentID, InstallmentPending)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrConflict
		}
	}
	for _, move := range moves {
		if _, err := tx.Exec(ctx, `
      UPDATE loan_installments
      SET year = $1, month = $2
      WHERE tenant_id = $3 AND id = $4 AND status = $5
    `, move.Year, move.Month, tenantID, move.InstallmentID, InstallmentPending); err != nil {
			if isUniqueViolation(err) {
				return &ValidationError{Field: "startMonth", Reason: "an installment already occupies one of the proposed months"}
			}
			return err
		}
	}
	if err := bumpLoanVersion(ctx, tx, tenantID, loan); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) ApplySkip(ctx context.Context, tenantID string, loan Loan, skipID string, replacement ScheduledInstallment) error {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
    UPDATE loan_installments
    SET status = $1
    WHERE tenant_id = $2 AND id = $3 AND status = $4
  `, InstallmentSkipped, tenantID, skipID, InstallmentPending)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}
	if _, err := tx.Exec(ctx, `
    INSERT INTO loan_installments (tenant_id, loan_id, year, month, amount, status)
    VALUES ($1,$2,$3,$4,$5,$6)
  `, tenantID, loan.ID, replacement.Year, replacement.Month, replacement.Amount, InstallmentPending); err != nil {
		return err
	}
	tag, err = tx.Exec(ctx, `
    UPDATE employee_loans
    SET total_installments = total_installments + 1, version = version + 1
    WHERE tenant_id = $1 AND id = $2 AND version = $3
  `, tenantID, loan.ID, loan.Version)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("loan %s: %w", loan.ID, ErrConflict)
	}
	return tx.Commit(ctx)
}

func (s *Store) ApplySettle(ctx context.Context, tenantID string, loan Loan, plan SettlePlan) error {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, pendingID := range plan.CancelPendingIDs {
		tag, err := tx.Exec(ctx, `
      UPDATE loan_installments
      SET status = $1
      WHERE tenant_id = $2 AND id = $3 AND status = $4
    `, InstallmentCancelled, tenantID, pendingID, InstallmentPending)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrConflict
		}
	}
	if plan.SettleAmount > 0 {
		if _, err := tx.Exec(ctx, `
      INSERT INTO loan_installments (tenant_id, loan_id, year, month, amount, status)
      VALUES ($1,$2,$3,$4,$5,$6)
    `, tenantID, loan.ID, plan.Year, plan.Month, plan.SettleAmount, InstallmentSettledEarly); err != nil {
			return err
		}
	}
	tag, err := tx.Exec(ctx, `
    UPDATE employee_loans
    SET remaining_balance = $1, paid_installments = $2, status = $3, version = version + 1
    WHERE tenant_id = $4 AND id = $5 AND version = $6
  `, plan.NewBalance, plan.NewPaidCount, plan.NewStatus, tenantID, loan.ID, loan.Version)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}
	return tx.Commit(ctx)
}

func (s *Store) CancelLoan(ctx context.Context, tenantID string, loan Loan) error {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
    UPDATE loan_installments
    SET status = $1
    WHERE tenant_id = $2 AND loan_id = $3 AND status = $4
  `, InstallmentCancelled, tenantID, loan.ID, InstallmentPending); err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, `
    UPDATE employee_loans
    SET status = $1, version = version + 1
    WHERE tenant_id = $2 AND id = $3 AND version = $4
  `, StatusCancelled, tenantID, loan.ID, loan.Version)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}
	return tx.Commit(ctx)
}

func bumpLoanVersion(ctx context.Context, tx pgx.Tx, tenantID string, loan Loan) error {
	tag, err := tx.Exec(ctx, `
    UPDATE employee_loans SET version = version + 1
    WHERE tenant_id = $1 AND id = $2 AND version = $3
  `, tenantID, loan.ID, loan.Version)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("loan %s: %w", loan.ID, ErrConflict)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
