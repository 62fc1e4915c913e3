package roster

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

func (s *Store) Employees(ctx context.Context, tenantID string) ([]Employee, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, first_name, last_name, COALESCE(job_title, ''), base_salary,
           is_saudi, gosi_eligible, gosi_basic_wage, gosi_housing_wage
    FROM employees
    WHERE tenant_id = $1 AND status = 'active'
    ORDER BY last_name, first_name
  `, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Employee
	for rows.Next() {
		var emp Employee
		if err := rows.Scan(&emp.ID, &emp.FirstName, &emp.LastName, &emp.JobTitle, &emp.BaseSalary,
			&emp.Saudi, &emp.GOSIEligible, &emp.GOSIBasicWage, &emp.GOSIHousingWage); err != nil {
			return nil, err
		}
		out = append(out, emp)
	}
	return out, rows.Err()
}

func (s *Store) AllowancePolicies(ctx context.Context, tenantID string) ([]AllowancePolicy, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, name, COALESCE(job_title_filter, ''), monthly_amount, effective_from, effective_to
    FROM allowance_policies
    WHERE tenant_id = $1 AND active = true
    ORDER BY name
  `, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AllowancePolicy
	for rows.Next() {
		var policy AllowancePolicy
		if err := rows.Scan(&policy.ID, &policy.Name, &policy.JobTitleFilter, &policy.MonthlyAmount,
			&policy.EffectiveFrom, &policy.EffectiveTo); err != nil {
			return nil, err
		}
		out = append(out, policy)
	}
	return out, rows.Err()
}

func (s *Store) TimesheetEntries(ctx context.Context, tenantID string, start, end time.Time) ([]TimesheetEntry, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT t.employee_id, t.work_date, t.overtime_hours, t.is_holiday,
           r.id, r.name, r.weekday_multiplier, r.weekend_multiplier, r.holiday_multiplier, r.weekend_days
    FROM timesheet_entries t
    LEFT JOIN shift_rules r ON t.shift_rule_id = r.id
    WHERE t.tenant_id = $1 AND t.status = 'approved'
      AND t.work_date >= $2 AND t.work_date <= $3
    ORDER BY t.employee_id, t.work_date
  `, tenantID, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TimesheetEntry
	for rows.Next() {
		var entry TimesheetEntry
		var ruleID, ruleName *string
		var weekday, weekend, holiday *float64
		var weekendDays []int16
		if err := rows.Scan(&entry.EmployeeID, &entry.WorkDate, &entry.OvertimeHours, &entry.Holiday,
			&ruleID, &ruleName, &weekday, &weekend, &holiday, &weekendDays); err != nil {
			return nil, err
		}
		if ruleID != nil {
			rule := ShiftRule{
				ID:                *ruleID,
				Name:              *ruleName,
				WeekdayMultiplier: *weekday,
				WeekendMultiplier: *weekend,
				HolidayMultiplier: *holiday,
			}
			for _, day := range weekendDays {
				rule.WeekendDays = append(rule.WeekendDays, time.Weekday(day))
			}
			entry.Rule = &rule
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

func (s *Store) AttendanceInputs(ctx context.Context, tenantID string, year, month int) ([]AttendanceInput, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT employee_id, overtime_hours
    FROM attendance_inputs
    WHERE tenant_id = $1 AND year = $2 AND month = $3
  `, tenantID, year, month)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AttendanceInput
	for rows.Next() {
		var input AttendanceInput
		if err := rows.Scan(&input.EmployeeID, &input.OvertimeHours); err != nil {
			return nil, err
		}
		out = append(out, input)
	}
	return out, rows.Err()
}

func (s *Store) UnpaidLeaves(ctx context.Context, tenantID string, start, end time.Time) ([]LeaveWindow, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT lr.employee_id, lr.start_date, lr.end_date
    FROM leave_requests lr
    JOIN leave_types lt ON lr.leave_type_id = lt.id
    WHERE lr.tenant_id = $1
      AND lr.status = 'approved'
      AND lt.is_paid = false
      AND lr.start_date <= $2
      AND lr.end_date >= $3
  `, tenantID, end, start)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []LeaveWindow
	for rows.Next() {
		var window LeaveWindow
		if err := rows.Scan(&window.EmployeeID, &window.StartDate, &window.EndDate); err != nil {
			return nil, err
		}
		out = append(out, window)
	}
	return out, rows.Err()
}
