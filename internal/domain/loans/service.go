package loans

import (
	"context"
	"fmt"
	"strings"
	"time"

	"rawatib/internal/platform/money"
)

// Service owns the loan lifecycle. All mutations respect already-locked
// payroll periods: a pending installment sitting in a locked period freezes
// the schedule operations that would touch it.
type Service struct {
	store StoreAPI
	clock func() time.Time
}

func NewService(store StoreAPI) *Service {
	return &Service{store: store, clock: time.Now}
}

// CreateLoan registers a Draft loan and its full pending schedule.
func (s *Service) CreateLoan(ctx context.Context, tenantID, employeeID string, principal, installmentAmount float64, startYear, startMonth, totalInstallments int) (Loan, error) {
	if strings.TrimSpace(employeeID) == "" {
		return Loan{}, &ValidationError{Field: "employeeId", Reason: "is required"}
	}
	schedule, err := BuildSchedule(principal, installmentAmount, startYear, startMonth, totalInstallments)
	if err != nil {
		return Loan{}, err
	}
	loan := Loan{
		EmployeeID:        employeeID,
		Principal:         money.Round2(principal),
		InstallmentAmount: money.Round2(installmentAmount),
		RemainingBalance:  money.Round2(principal),
		StartYear:         startYear,
		StartMonth:        startMonth,
		TotalInstallments: totalInstallments,
		Status:            StatusDraft,
	}
	loan.ID, err = s.store.CreateLoan(ctx, tenantID, loan, schedule)
	if err != nil {
		return Loan{}, err
	}
	return loan, nil
}

func (s *Service) GetLoan(ctx context.Context, tenantID, loanID string) (Loan, error) {
	return s.store.GetLoan(ctx, tenantID, loanID)
}

func (s *Service) ListLoans(ctx context.Context, tenantID string) ([]Loan, error) {
	return s.store.ListLoans(ctx, tenantID)
}

func (s *Service) ListInstallments(ctx context.Context, tenantID, loanID string) ([]Installment, error) {
	if _, err := s.store.GetLoan(ctx, tenantID, loanID); err != nil {
		return nil, err
	}
	return s.store.ListInstallments(ctx, tenantID, loanID)
}

// Reschedule reassigns every pending installment to consecutive months
// starting at the new start, preserving amounts and count. The remaining
// balance is untouched.
func (s *Service) Reschedule(ctx context.Context, tenantID, loanID string, newYear, newMonth int) (Loan, error) {
	loan, installments, locked, err := s.mutableLoan(ctx, tenantID, loanID)
	if err != nil {
		return Loan{}, err
	}
	moves, err := PlanReschedule(installments, newYear, newMonth, locked)
	if err != nil {
		return Loan{}, err
	}
	if err := s.store.ApplyReschedule(ctx, tenantID, loan, moves); err != nil {
		return Loan{}, err
	}
	return s.store.GetLoan(ctx, tenantID, loanID)
}

// SkipNext marks the next pending installment Skipped and appends a
// replacement of the same amount after the latest scheduled period; the
// total installment count grows by one.
func (s *Service) SkipNext(ctx context.Context, tenantID, loanID string) (Loan, error) {
	loan, installments, locked, err := s.mutableLoan(ctx, tenantID, loanID)
	if err != nil {
		return Loan{}, err
	}
	skipID, replacement, err := PlanSkip(installments, locked)
	if err != nil {
		return Loan{}, err
	}
	if err := s.store.ApplySkip(ctx, tenantID, loan, skipID, replacement); err != nil {
		return Loan{}, err
	}
	return s.store.GetLoan(ctx, tenantID, loanID)
}

// SettleEarly repays part or all of the remaining balance outside the
// schedule. A zero amount settles the full remaining balance; negative
// amounts are rejected.
func (s *Service) SettleEarly(ctx context.Context, tenantID, loanID string, amount float64) (Loan, error) {
	loan, installments, locked, err := s.mutableLoan(ctx, tenantID, loanID)
	if err != nil {
		return Loan{}, err
	}
	now := s.clock().UTC()
	plan, err := PlanSettle(loan, installments, amount, now.Year(), int(now.Month()), locked)
	if err != nil {
		return Loan{}, err
	}
	if err := s.store.ApplySettle(ctx, tenantID, loan, plan); err != nil {
		return Loan{}, err
	}
	return s.store.GetLoan(ctx, tenantID, loanID)
}

// Cancel abandons the loan: the loan and all its pending installments turn
// Cancelled. Deducted and SettledEarly history is untouched.
func (s *Service) Cancel(ctx context.Context, tenantID, loanID string) (Loan, error) {
	loan, err := s.store.GetLoan(ctx, tenantID, loanID)
	if err != nil {
		return Loan{}, err
	}
	if loan.Status == StatusClosed || loan.Status == StatusCancelled {
		return Loan{}, fmt.Errorf("%w: loan is %s", ErrInvalidState, loan.Status)
	}
	if err := s.store.CancelLoan(ctx, tenantID, loan); err != nil {
		return Loan{}, err
	}
	return s.store.GetLoan(ctx, tenantID, loanID)
}

func (s *Service) mutableLoan(ctx context.Context, tenantID, loanID string) (Loan, []Installment, map[string]bool, error) {
	loan, err := s.store.GetLoan(ctx, tenantID, loanID)
	if err != nil {
		return Loan{}, nil, nil, err
	}
	if loan.Status != StatusDraft && loan.Status != StatusActive {
		return Loan{}, nil, nil, fmt.Errorf("%w: loan is %s", ErrInvalidState, loan.Status)
	}
	installments, err := s.store.ListInstallments(ctx, tenantID, loanID)
	if err != nil {
		return Loan{}, nil, nil, err
	}
	locked, err := s.store.LockedPeriods(ctx, tenantID)
	if err != nil {
		return Loan{}, nil, nil, err
	}
	return loan, installments, locked, nil
}
