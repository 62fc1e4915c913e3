package payroll

import (
	"testing"
	"time"

	"rawatib/internal/domain/roster"
)

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func periodInput(employees ...roster.Employee) CalcInput {
	return CalcInput{
		PeriodStart: date(2025, time.March, 1),
		PeriodEnd:   date(2025, time.March, 31),
		Employees:   employees,
		Rates:       DefaultGOSIRates(),
	}
}

func TestComputeLinesUnpaidLeaveAndGOSI(t *testing.T) {
	input := periodInput(roster.Employee{
		ID:            "emp-1",
		BaseSalary:    9000,
		Saudi:         true,
		GOSIEligible:  true,
		GOSIBasicWage: 8000,
	})
	input.UnpaidLeaves = []roster.LeaveWindow{
		{EmployeeID: "emp-1", StartDate: date(2025, time.March, 10), EndDate: date(2025, time.March, 11)},
	}

	lines := ComputeLines(input)
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	line := lines[0]
	if line.UnpaidLeaveDays != 2 {
		t.Fatalf("expected 2 unpaid leave days, got %v", line.UnpaidLeaveDays)
	}
	if line.UnpaidLeaveDeduction != 600 {
		t.Fatalf("expected unpaid leave deduction 600, got %v", line.UnpaidLeaveDeduction)
	}
	if line.GOSIWageBase != 8000 {
		t.Fatalf("expected GOSI wage base 8000, got %v", line.GOSIWageBase)
	}
	if line.GOSIEmployee != 720 {
		t.Fatalf("expected employee GOSI 720, got %v", line.GOSIEmployee)
	}
	if line.GOSIEmployer != 880 {
		t.Fatalf("expected employer GOSI 880, got %v", line.GOSIEmployer)
	}
	if line.Net != 7680 {
		t.Fatalf("expected net 7680, got %v", line.Net)
	}
}

func TestComputeLinesNonSaudiGOSI(t *testing.T) {
	input := periodInput(roster.Employee{
		ID:              "emp-1",
		BaseSalary:      10000,
		Saudi:           false,
		GOSIEligible:    true,
		GOSIBasicWage:   8000,
		GOSIHousingWage: 2000,
	})

	line := ComputeLines(input)[0]
	if line.GOSIWageBase != 10000 {
		t.Fatalf("expected wage base 10000, got %v", line.GOSIWageBase)
	}
	if line.GOSIEmployee != 0 {
		t.Fatalf("expected no employee contribution, got %v", line.GOSIEmployee)
	}
	if line.GOSIEmployer != 200 {
		t.Fatalf("expected employer contribution 200, got %v", line.GOSIEmployer)
	}
	if line.Net != 10000 {
		t.Fatalf("expected net 10000, got %v", line.Net)
	}
}

func TestComputeLinesIneligibleEmployeeSkipsGOSI(t *testing.T) {
	input := periodInput(roster.Employee{
		ID:            "emp-1",
		BaseSalary:    5000,
		Saudi:         true,
		GOSIEligible:  false,
		GOSIBasicWage: 5000,
	})

	line := ComputeLines(input)[0]
	if line.GOSIWageBase != 0 || line.GOSIEmployee != 0 || line.GOSIEmployer != 0 {
		t.Fatalf("expected zero GOSI figures, got base=%v emp=%v er=%v",
			line.GOSIWageBase, line.GOSIEmployee, line.GOSIEmployer)
	}
}

func TestComputeLinesAllowancePolicies(t *testing.T) {
	until := date(2025, time.February, 28)
	input := periodInput(roster.Employee{ID: "emp-1", JobTitle: "Engineer", BaseSalary: 6000})
	input.Policies = []roster.AllowancePolicy{
		{Name: "Transport", JobTitleFilter: "", MonthlyAmount: 500, EffectiveFrom: date(2024, time.January, 1)},
		{Name: "Tech", JobTitleFilter: "engineer", MonthlyAmount: 300, EffectiveFrom: date(2024, time.January, 1)},
		{Name: "Field", JobTitleFilter: "Surveyor", MonthlyAmount: 400, EffectiveFrom: date(2024, time.January, 1)},
		{Name: "Expired", JobTitleFilter: "", MonthlyAmount: 900, EffectiveFrom: date(2024, time.January, 1), EffectiveTo: &until},
	}

	line := ComputeLines(input)[0]
	if line.Allowances != 800 {
		t.Fatalf("expected allowances 800, got %v", line.Allowances)
	}
}

func TestComputeLinesOvertimeMultipliers(t *testing.T) {
	// base 4800 gives an hourly rate of 20
	input := periodInput(roster.Employee{ID: "emp-1", BaseSalary: 4800})
	input.Timesheets = []roster.TimesheetEntry{
		// Monday
		{EmployeeID: "emp-1", WorkDate: date(2025, time.March, 3), OvertimeHours: 2},
		// Friday, default weekend
		{EmployeeID: "emp-1", WorkDate: date(2025, time.March, 7), OvertimeHours: 3},
		// public holiday
		{EmployeeID: "emp-1", WorkDate: date(2025, time.March, 20), OvertimeHours: 1, Holiday: true},
	}

	line := ComputeLines(input)[0]
	if line.OvertimeHours != 6 {
		t.Fatalf("expected 6 overtime hours, got %v", line.OvertimeHours)
	}
	// 2*20*1.5 + 3*20*2.0 + 1*20*2.5 = 60 + 120 + 50
	if line.OvertimeAmount != 230 {
		t.Fatalf("expected overtime amount 230, got %v", line.OvertimeAmount)
	}
}

func TestComputeLinesShiftRuleOverridesDefaults(t *testing.T) {
	rule := &roster.ShiftRule{
		WeekdayMultiplier: 1.25,
		WeekendMultiplier: 1.75,
		HolidayMultiplier: 3,
		WeekendDays:       []time.Weekday{time.Sunday},
	}
	input := periodInput(roster.Employee{ID: "emp-1", BaseSalary: 4800})
	input.Timesheets = []roster.TimesheetEntry{
		// Sunday, weekend under this rule
		{EmployeeID: "emp-1", WorkDate: date(2025, time.March, 2), OvertimeHours: 2, Rule: rule},
		// Friday, a plain weekday under this rule
		{EmployeeID: "emp-1", WorkDate: date(2025, time.March, 7), OvertimeHours: 2, Rule: rule},
	}

	line := ComputeLines(input)[0]
	// 2*20*1.75 + 2*20*1.25 = 70 + 50
	if line.OvertimeAmount != 120 {
		t.Fatalf("expected overtime amount 120, got %v", line.OvertimeAmount)
	}
}

func TestComputeLinesAttendanceFallback(t *testing.T) {
	input := periodInput(roster.Employee{ID: "emp-1", BaseSalary: 4800})
	input.Attendance = []roster.AttendanceInput{{EmployeeID: "emp-1", OvertimeHours: 10}}

	line := ComputeLines(input)[0]
	if line.OvertimeHours != 10 {
		t.Fatalf("expected 10 overtime hours, got %v", line.OvertimeHours)
	}
	// 10*20*1.5
	if line.OvertimeAmount != 300 {
		t.Fatalf("expected overtime amount 300, got %v", line.OvertimeAmount)
	}
}

func TestComputeLinesTimesheetsSupersedeAttendance(t *testing.T) {
	input := periodInput(roster.Employee{ID: "emp-1", BaseSalary: 4800})
	input.Timesheets = []roster.TimesheetEntry{
		{EmployeeID: "emp-1", WorkDate: date(2025, time.March, 3), OvertimeHours: 1},
	}
	input.Attendance = []roster.AttendanceInput{{EmployeeID: "emp-1", OvertimeHours: 40}}

	line := ComputeLines(input)[0]
	if line.OvertimeHours != 1 {
		t.Fatalf("expected timesheet hours to win, got %v", line.OvertimeHours)
	}
}

func TestComputeLinesAdjustmentsAndLoans(t *testing.T) {
	input := periodInput(roster.Employee{ID: "emp-1", BaseSalary: 6000})
	input.Adjustments = []Adjustment{
		{EmployeeID: "emp-1", Kind: AdjustmentAllowance, Amount: 250},
		{EmployeeID: "emp-1", Kind: AdjustmentDeduction, Amount: 100},
	}
	input.Installments = []DueInstallment{
		{EmployeeID: "emp-1", Amount: 500},
		{EmployeeID: "emp-1", Amount: 250},
	}

	line := ComputeLines(input)[0]
	if line.Allowances != 250 {
		t.Fatalf("expected allowances 250, got %v", line.Allowances)
	}
	if line.ManualDeductions != 100 {
		t.Fatalf("expected manual deductions 100, got %v", line.ManualDeductions)
	}
	if line.LoanDeduction != 750 {
		t.Fatalf("expected loan deduction 750, got %v", line.LoanDeduction)
	}
	if line.TotalDeductions != 850 {
		t.Fatalf("expected total deductions 850, got %v", line.TotalDeductions)
	}
	if line.Net != 5400 {
		t.Fatalf("expected net 5400, got %v", line.Net)
	}
}

func TestComputeLinesDeterministic(t *testing.T) {
	input := periodInput(
		roster.Employee{ID: "emp-1", BaseSalary: 9000, Saudi: true, GOSIEligible: true, GOSIBasicWage: 8000},
		roster.Employee{ID: "emp-2", BaseSalary: 4800},
	)
	input.Timesheets = []roster.TimesheetEntry{
		{EmployeeID: "emp-2", WorkDate: date(2025, time.March, 3), OvertimeHours: 2.5},
	}

	first := ComputeLines(input)
	second := ComputeLines(input)
	if len(first) != len(second) {
		t.Fatalf("expected identical line counts, got %d and %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("expected identical lines at %d, got %+v and %+v", i, first[i], second[i])
		}
	}
}
