package payroll

const (
	RunStatusDraft      = "draft"
	RunStatusCalculated = "calculated"
	RunStatusApproved   = "approved"
	RunStatusLocked     = "locked"

	SeverityCritical = "critical"
	SeverityWarning  = "warning"

	DecisionStandard = "standard"
	DecisionOverride = "override"

	AdjustmentAllowance = "allowance"
	AdjustmentDeduction = "deduction"

	FindingNegativeNet           = "NegativeNetAmount"
	FindingVeryHighDeductionRate = "VeryHighDeductionRatio"
	FindingHighDeductionRate     = "HighDeductionRatio"
	FindingExtremeOvertime       = "ExtremeOvertime"
	FindingHighOvertime          = "HighOvertime"
	FindingNetDeviationCritical  = "NetDeviationCritical"
	FindingNetDeviationWarning   = "NetDeviationWarning"
	FindingOvertimeSpike         = "OvertimeSpike"
	FindingNewHighOvertime       = "NewHighOvertime"
)
