package payroll

import (
	"strings"
	"time"

	"rawatib/internal/domain/roster"
	"rawatib/internal/platform/money"
)

const (
	daysPerMonth = 30
	hoursPerDay  = 8

	defaultWeekdayMultiplier = 1.5
	defaultWeekendMultiplier = 2.0
	defaultHolidayMultiplier = 2.5

	// fallback when only an attendance-input total is available and no
	// per-entry shift rule applies
	attendanceOvertimeMultiplier = 1.5
)

// GOSIRates are contribution fractions of the wage base.
type GOSIRates struct {
	EmployeeSaudi    float64
	EmployerSaudi    float64
	EmployerNonSaudi float64
}

func DefaultGOSIRates() GOSIRates {
	return GOSIRates{EmployeeSaudi: 0.09, EmployerSaudi: 0.11, EmployerNonSaudi: 0.02}
}

// CalcInput is everything the calculator reads for one period. The
// calculator itself never touches storage.
type CalcInput struct {
	PeriodStart  time.Time
	PeriodEnd    time.Time
	Employees    []roster.Employee
	Policies     []roster.AllowancePolicy
	Timesheets   []roster.TimesheetEntry
	Attendance   []roster.AttendanceInput
	UnpaidLeaves []roster.LeaveWindow
	Adjustments  []Adjustment
	Installments []DueInstallment
	Rates        GOSIRates
}

// ComputeLines derives one net-pay line per employee. It is deterministic
// over its input: recalculation with identical inputs yields identical lines.
func ComputeLines(input CalcInput) []Line {
	timesheets := groupTimesheets(input.Timesheets)
	attendance := make(map[string]float64, len(input.Attendance))
	for _, row := range input.Attendance {
		attendance[row.EmployeeID] += row.OvertimeHours
	}
	leaves := make(map[string][]roster.LeaveWindow)
	for _, window := range input.UnpaidLeaves {
		leaves[window.EmployeeID] = append(leaves[window.EmployeeID], window)
	}
	allowanceAdj := make(map[string]float64)
	deductionAdj := make(map[string]float64)
	for _, adj := range input.Adjustments {
		switch adj.Kind {
		case AdjustmentAllowance:
			allowanceAdj[adj.EmployeeID] = money.Round2(allowanceAdj[adj.EmployeeID] + adj.Amount)
		case AdjustmentDeduction:
			deductionAdj[adj.EmployeeID] = money.Round2(deductionAdj[adj.EmployeeID] + adj.Amount)
		}
	}
	loanDue := make(map[string]float64)
	for _, installment := range input.Installments {
		loanDue[installment.EmployeeID] = money.Round2(loanDue[installment.EmployeeID] + installment.Amount)
	}

	lines := make([]Line, 0, len(input.Employees))
	for _, emp := range input.Employees {
		line := Line{
			EmployeeID: emp.ID,
			BaseSalary: money.Round2(emp.BaseSalary),
		}

		line.Allowances = money.Round2(allowanceAdj[emp.ID] + policyAllowance(input.Policies, emp.JobTitle, input.PeriodStart, input.PeriodEnd))

		line.OvertimeHours, line.OvertimeAmount = overtime(emp.BaseSalary, timesheets[emp.ID], attendance[emp.ID])

		line.UnpaidLeaveDays = unpaidLeaveDays(leaves[emp.ID], input.PeriodStart, input.PeriodEnd)
		line.UnpaidLeaveDeduction = money.Round2(line.UnpaidLeaveDays * dailyRate(emp.BaseSalary))

		line.GOSIWageBase, line.GOSIEmployee, line.GOSIEmployer = gosi(emp, input.Rates)

		line.ManualDeductions = deductionAdj[emp.ID]
		line.LoanDeduction = loanDue[emp.ID]

		line.TotalDeductions = money.Sum2(line.ManualDeductions, line.LoanDeduction, line.UnpaidLeaveDeduction, line.GOSIEmployee)
		line.Net = money.Round2(line.BaseSalary + line.Allowances + line.OvertimeAmount - line.TotalDeductions)

		lines = append(lines, line)
	}
	return lines
}

func policyAllowance(policies []roster.AllowancePolicy, jobTitle string, periodStart, periodEnd time.Time) float64 {
	var total float64
	for _, policy := range policies {
		if policy.EffectiveFrom.After(periodStart) {
			continue
		}
		if policy.EffectiveTo != nil && policy.EffectiveTo.Before(periodEnd) {
			continue
		}
		filter := strings.TrimSpace(policy.JobTitleFilter)
		if filter != "" && !strings.EqualFold(filter, strings.TrimSpace(jobTitle)) {
			continue
		}
		total = money.Round2(total + policy.MonthlyAmount)
	}
	return total
}

func overtime(baseSalary float64, entries []roster.TimesheetEntry, attendanceHours float64) (hours, amount float64) {
	rate := hourlyRate(baseSalary)
	if len(entries) > 0 {
		for _, entry := range entries {
			if entry.OvertimeHours <= 0 {
				continue
			}
			hours += entry.OvertimeHours
			amount = money.Round2(amount + entry.OvertimeHours*rate*entryMultiplier(entry))
		}
		return money.Round2(hours), amount
	}
	if attendanceHours > 0 {
		return money.Round2(attendanceHours), money.Round2(attendanceHours * rate * attendanceOvertimeMultiplier)
	}
	return 0, 0
}

func entryMultiplier(entry roster.TimesheetEntry) float64 {
	weekday, weekend, holiday := defaultWeekdayMultiplier, defaultWeekendMultiplier, defaultHolidayMultiplier
	weekendDays := []time.Weekday{time.Friday, time.Saturday}
	if entry.Rule != nil {
		weekday, weekend, holiday = entry.Rule.WeekdayMultiplier, entry.Rule.WeekendMultiplier, entry.Rule.HolidayMultiplier
		if len(entry.Rule.WeekendDays) > 0 {
			weekendDays = entry.Rule.WeekendDays
		}
	}
	if entry.Holiday {
		return holiday
	}
	for _, day := range weekendDays {
		if entry.WorkDate.Weekday() == day {
			return weekend
		}
	}
	return weekday
}

// unpaidLeaveDays sums, over all approved unpaid leave requests, the day
// count of the intersection between the request and the period, clamped to
// zero for disjoint ranges.
func unpaidLeaveDays(windows []roster.LeaveWindow, periodStart, periodEnd time.Time) float64 {
	var days float64
	for _, window := range windows {
		start := window.StartDate
		if periodStart.After(start) {
			start = periodStart
		}
		end := window.EndDate
		if periodEnd.Before(end) {
			end = periodEnd
		}
		overlap := end.Sub(start).Hours()/24 + 1
		if overlap > 0 {
			days += float64(int(overlap))
		}
	}
	return days
}

func gosi(emp roster.Employee, rates GOSIRates) (wageBase, employee, employer float64) {
	if !emp.GOSIEligible {
		return 0, 0, 0
	}
	wageBase = money.Round2(emp.GOSIBasicWage + emp.GOSIHousingWage)
	if emp.Saudi {
		employee = money.Round2(wageBase * rates.EmployeeSaudi)
		employer = money.Round2(wageBase * rates.EmployerSaudi)
	} else {
		// occupational-hazard cover only
		employer = money.Round2(wageBase * rates.EmployerNonSaudi)
	}
	return wageBase, employee, employer
}

func dailyRate(baseSalary float64) float64 {
	return baseSalary / daysPerMonth
}

func hourlyRate(baseSalary float64) float64 {
	return baseSalary / daysPerMonth / hoursPerDay
}

func groupTimesheets(entries []roster.TimesheetEntry) map[string][]roster.TimesheetEntry {
	out := make(map[string][]roster.TimesheetEntry)
	for _, entry := range entries {
		out[entry.EmployeeID] = append(out[entry.EmployeeID], entry)
	}
	return out
}
