package loans

import "errors"

var (
	ErrLoanNotFound          = errors.New("loan not found")
	ErrInvalidState          = errors.New("operation not valid for current loan status")
	ErrBlockedByLockedPeriod = errors.New("installment falls in a locked payroll period")
	ErrConflict              = errors.New("loan was modified concurrently")
)

// ValidationError reports malformed input or a schedule collision.
type ValidationError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return e.Field + ": " + e.Reason
}
