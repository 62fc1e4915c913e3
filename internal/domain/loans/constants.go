package loans

const (
	StatusDraft     = "draft"
	StatusActive    = "active"
	StatusClosed    = "closed"
	StatusCancelled = "cancelled"

	InstallmentPending      = "pending"
	InstallmentDeducted     = "deducted"
	InstallmentSkipped      = "skipped"
	InstallmentCancelled    = "cancelled"
	InstallmentSettledEarly = "settled_early"
)
