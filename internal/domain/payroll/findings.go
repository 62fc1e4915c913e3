package payroll

import (
	"fmt"

	"rawatib/internal/platform/money"
)

// Thresholds are the policy constants of the finding engine. Percentages are
// expressed as 0-100 values, overtime figures in hours.
type Thresholds struct {
	DeductionRatioWarnPct float64
	DeductionRatioCritPct float64
	OvertimeWarnHours     float64
	OvertimeCritHours     float64
	NetDeviationWarnPct   float64
	NetDeviationCritPct   float64
	OvertimeSpikePct      float64
	OvertimeSpikeMinHours float64
	NewHighOvertimeHours  float64
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		DeductionRatioWarnPct: 35,
		DeductionRatioCritPct: 60,
		OvertimeWarnHours:     35,
		OvertimeCritHours:     60,
		NetDeviationWarnPct:   20,
		NetDeviationCritPct:   35,
		OvertimeSpikePct:      100,
		OvertimeSpikeMinHours: 8,
		NewHighOvertimeHours:  20,
	}
}

// EvaluateFindings compares a run's lines against the previous approved or
// locked period's lines, matched by employee. Findings carry no ordering
// guarantee; callers partition by severity themselves. All numeric
// comparisons operate on values rounded to 2 decimals.
func EvaluateFindings(current, previous []Line, th Thresholds) []Finding {
	prior := make(map[string]Line, len(previous))
	for _, line := range previous {
		prior[line.EmployeeID] = line
	}

	var findings []Finding
	emit := func(code, severity, employeeID, message, metric string, value float64) {
		findings = append(findings, Finding{
			Code:       code,
			Severity:   severity,
			EmployeeID: employeeID,
			Message:    message,
			Metric:     metric,
			Value:      value,
		})
	}

	for _, line := range current {
		net := money.Round2(line.Net)
		if net < 0 {
			emit(FindingNegativeNet, SeverityCritical, line.EmployeeID,
				fmt.Sprintf("net amount %.2f is negative", net), "net", net)
		}

		earnings := money.Round2(line.BaseSalary + line.Allowances + line.OvertimeAmount)
		if earnings > 0 {
			ratio := money.Round2(line.TotalDeductions / earnings * 100)
			if ratio >= th.DeductionRatioCritPct {
				emit(FindingVeryHighDeductionRate, SeverityCritical, line.EmployeeID,
					fmt.Sprintf("deductions are %.2f%% of earnings", ratio), "deductionRatioPct", ratio)
			} else if ratio >= th.DeductionRatioWarnPct {
				emit(FindingHighDeductionRate, SeverityWarning, line.EmployeeID,
					fmt.Sprintf("deductions are %.2f%% of earnings", ratio), "deductionRatioPct", ratio)
			}
		}

		hours := money.Round2(line.OvertimeHours)
		if hours >= th.OvertimeCritHours {
			emit(FindingExtremeOvertime, SeverityCritical, line.EmployeeID,
				fmt.Sprintf("overtime of %.2f hours this period", hours), "overtimeHours", hours)
		} else if hours >= th.OvertimeWarnHours {
			emit(FindingHighOvertime, SeverityWarning, line.EmployeeID,
				fmt.Sprintf("overtime of %.2f hours this period", hours), "overtimeHours", hours)
		}

		previousLine, hasPrior := prior[line.EmployeeID]
		if !hasPrior {
			continue
		}

		priorNet := money.Round2(previousLine.Net)
		if priorNet > 0 {
			deviation := money.Round2((net - priorNet) / priorNet * 100)
			abs := deviation
			if abs < 0 {
				abs = -abs
			}
			if abs >= th.NetDeviationCritPct {
				emit(FindingNetDeviationCritical, SeverityCritical, line.EmployeeID,
					fmt.Sprintf("net changed %.2f%% versus previous period", deviation), "netDeviationPct", deviation)
			} else if abs >= th.NetDeviationWarnPct {
				emit(FindingNetDeviationWarning, SeverityWarning, line.EmployeeID,
					fmt.Sprintf("net changed %.2f%% versus previous period", deviation), "netDeviationPct", deviation)
			}
		}

		priorHours := money.Round2(previousLine.OvertimeHours)
		if priorHours > 0 {
			spike := money.Round2((hours - priorHours) / priorHours * 100)
			if spike >= th.OvertimeSpikePct && money.Round2(hours-priorHours) >= th.OvertimeSpikeMinHours {
				emit(FindingOvertimeSpike, SeverityWarning, line.EmployeeID,
					fmt.Sprintf("overtime rose %.2f%% versus previous period", spike), "overtimeSpikePct", spike)
			}
		} else if hours >= th.NewHighOvertimeHours {
			emit(FindingNewHighOvertime, SeverityWarning, line.EmployeeID,
				fmt.Sprintf("%.2f overtime hours with none in previous period", hours), "overtimeHours", hours)
		}
	}
	return findings
}

// CriticalCodes returns the distinct critical finding codes present, in
// first-seen order.
func CriticalCodes(findings []Finding) []string {
	seen := make(map[string]bool)
	var codes []string
	for _, finding := range findings {
		if finding.Severity != SeverityCritical || seen[finding.Code] {
			continue
		}
		seen[finding.Code] = true
		codes = append(codes, finding.Code)
	}
	return codes
}

// CountBySeverity returns (critical, warning) totals.
func CountBySeverity(findings []Finding) (criticals, warnings int) {
	for _, finding := range findings {
		switch finding.Severity {
		case SeverityCritical:
			criticals++
		case SeverityWarning:
			warnings++
		}
	}
	return criticals, warnings
}
