package payroll

import "errors"

var (
	ErrPeriodNotFound    = errors.New("payroll period not found")
	ErrRunNotFound       = errors.New("payroll run not found")
	ErrInvalidState      = errors.New("operation not valid for current run status")
	ErrBlockedByFindings = errors.New("critical findings block standard approval")
	ErrAlreadyLocked     = errors.New("period already has a locked run")
	ErrConflict          = errors.New("run was modified concurrently")

	// errReferenceTaken is returned by the store when the override reference
	// unique index rejects an insert; the service converts it into a
	// ValidationError carrying a suggested replacement.
	errReferenceTaken = errors.New("override reference already used this month")
)

// ValidationError reports malformed input with enough detail for the caller
// to self-correct.
type ValidationError struct {
	Field      string `json:"field"`
	Reason     string `json:"reason"`
	Suggestion string `json:"suggestion,omitempty"`
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return e.Field + ": " + e.Reason
}
