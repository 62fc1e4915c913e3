package roster

import "time"

// Employee carries the payroll-relevant subset of the employee record.
type Employee struct {
	ID              string  `json:"id"`
	FirstName       string  `json:"firstName"`
	LastName        string  `json:"lastName"`
	JobTitle        string  `json:"jobTitle"`
	BaseSalary      float64 `json:"baseSalary"`
	Saudi           bool    `json:"saudi"`
	GOSIEligible    bool    `json:"gosiEligible"`
	GOSIBasicWage   float64 `json:"gosiBasicWage"`
	GOSIHousingWage float64 `json:"gosiHousingWage"`
}

// AllowancePolicy grants a monthly amount to employees whose job title
// matches the filter (blank filter matches everyone) while the policy's
// effective window covers the payroll period.
type AllowancePolicy struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	JobTitleFilter string     `json:"jobTitleFilter"`
	MonthlyAmount  float64    `json:"monthlyAmount"`
	EffectiveFrom  time.Time  `json:"effectiveFrom"`
	EffectiveTo    *time.Time `json:"effectiveTo,omitempty"`
}

// ShiftRule supplies overtime multipliers per day class. WeekendDays is the
// set of weekdays counted as weekend for this rule.
type ShiftRule struct {
	ID                string         `json:"id"`
	Name              string         `json:"name"`
	WeekdayMultiplier float64        `json:"weekdayMultiplier"`
	WeekendMultiplier float64        `json:"weekendMultiplier"`
	HolidayMultiplier float64        `json:"holidayMultiplier"`
	WeekendDays       []time.Weekday `json:"weekendDays"`
}

// TimesheetEntry is one approved day-level timesheet row.
type TimesheetEntry struct {
	EmployeeID    string     `json:"employeeId"`
	WorkDate      time.Time  `json:"workDate"`
	OvertimeHours float64    `json:"overtimeHours"`
	Holiday       bool       `json:"holiday"`
	Rule          *ShiftRule `json:"rule,omitempty"`
}

// AttendanceInput is the fallback monthly overtime figure used when an
// employee has no approved timesheet entries in the period.
type AttendanceInput struct {
	EmployeeID    string  `json:"employeeId"`
	OvertimeHours float64 `json:"overtimeHours"`
}

// LeaveWindow is one approved unpaid leave request overlapping the period.
type LeaveWindow struct {
	EmployeeID string    `json:"employeeId"`
	StartDate  time.Time `json:"startDate"`
	EndDate    time.Time `json:"endDate"`
}
