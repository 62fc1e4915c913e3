package loans

import (
	"fmt"
	"sort"

	"rawatib/internal/platform/money"
)

// PeriodKey renders a (year, month) as the YYYY-MM key used for the locked
// period set.
func PeriodKey(year, month int) string {
	return fmt.Sprintf("%04d-%02d", year, month)
}

func monthIndex(year, month int) int {
	return year*12 + month - 1
}

func indexToMonth(index int) (year, month int) {
	return index / 12, index%12 + 1
}

// BuildSchedule generates count consecutive monthly installments starting at
// (startYear, startMonth). Each installment is min(installmentAmount,
// remaining balance); the final one absorbs any remainder so the amounts sum
// exactly to the principal.
func BuildSchedule(principal, installmentAmount float64, startYear, startMonth, count int) ([]ScheduledInstallment, error) {
	if principal <= 0 {
		return nil, &ValidationError{Field: "principal", Reason: "must be positive"}
	}
	if installmentAmount <= 0 {
		return nil, &ValidationError{Field: "installmentAmount", Reason: "must be positive"}
	}
	if count <= 0 {
		return nil, &ValidationError{Field: "totalInstallments", Reason: "must be positive"}
	}
	if startMonth < 1 || startMonth > 12 {
		return nil, &ValidationError{Field: "startMonth", Reason: "must be between 1 and 12"}
	}

	start := monthIndex(startYear, startMonth)
	remaining := money.Round2(principal)
	schedule := make([]ScheduledInstallment, 0, count)
	for i := 0; i < count; i++ {
		amount := money.Round2(installmentAmount)
		if amount > remaining || i == count-1 {
			amount = remaining
		}
		year, month := indexToMonth(start + i)
		schedule = append(schedule, ScheduledInstallment{Year: year, Month: month, Amount: amount})
		remaining = money.Round2(remaining - amount)
	}
	return schedule, nil
}

// PlanReschedule reassigns all pending installments to consecutive months
// starting at (newYear, newMonth), preserving their order and amounts. It
// fails when any pending installment sits in a locked period, or when a
// proposed month collides with one of the loan's own non-pending
// installments.
func PlanReschedule(installments []Installment, newYear, newMonth int, locked map[string]bool) ([]InstallmentMove, error) {
	if newMonth < 1 || newMonth > 12 {
		return nil, &ValidationError{Field: "startMonth", Reason: "must be between 1 and 12"}
	}
	pending := pendingByMonth(installments)
	if len(pending) == 0 {
		return nil, &ValidationError{Reason: "loan has no pending installments to reschedule"}
	}
	for _, installment := range pending {
		if locked[PeriodKey(installment.Year, installment.Month)] {
			return nil, fmt.Errorf("%w: %s", ErrBlockedByLockedPeriod, PeriodKey(installment.Year, installment.Month))
		}
	}

	taken := make(map[int]bool)
	for _, installment := range installments {
		if installment.Status != InstallmentPending {
			taken[monthIndex(installment.Year, installment.Month)] = true
		}
	}

	start := monthIndex(newYear, newMonth)
	moves := make([]InstallmentMove, 0, len(pending))
	for i, installment := range pending {
		if taken[start+i] {
			year, month := indexToMonth(start + i)
			return nil, &ValidationError{
				Field:  "startMonth",
				Reason: fmt.Sprintf("proposed schedule collides with an existing installment in %s", PeriodKey(year, month)),
			}
		}
		year, month := indexToMonth(start + i)
		moves = append(moves, InstallmentMove{InstallmentID: installment.ID, Year: year, Month: month})
	}
	return moves, nil
}

// PlanSkip marks the next pending installment Skipped and appends one
// replacement installment of the same amount immediately after the loan's
// latest scheduled period.
func PlanSkip(installments []Installment, locked map[string]bool) (skipID string, replacement ScheduledInstallment, err error) {
	pending := pendingByMonth(installments)
	if len(pending) == 0 {
		return "", ScheduledInstallment{}, &ValidationError{Reason: "loan has no pending installments to skip"}
	}
	next := pending[0]
	if locked[PeriodKey(next.Year, next.Month)] {
		return "", ScheduledInstallment{}, fmt.Errorf("%w: %s", ErrBlockedByLockedPeriod, PeriodKey(next.Year, next.Month))
	}

	latest := 0
	for _, installment := range installments {
		if index := monthIndex(installment.Year, installment.Month); index > latest {
			latest = index
		}
	}
	year, month := indexToMonth(latest + 1)
	return next.ID, ScheduledInstallment{Year: year, Month: month, Amount: next.Amount}, nil
}

// PlanSettle computes an early settlement: a SettledEarly installment dated
// at the first month from now with no installment scheduled, a reduced
// balance, and loan closure once the balance reaches zero.
func PlanSettle(loan Loan, installments []Installment, requested float64, nowYear, nowMonth int, locked map[string]bool) (SettlePlan, error) {
	if loan.RemainingBalance <= 0 {
		return SettlePlan{
			NewBalance:       loan.RemainingBalance,
			NewPaidCount:     loan.PaidInstallments,
			NewStatus:        StatusClosed,
			CancelPendingIDs: pendingIDs(installments),
		}, nil
	}

	settle := loan.RemainingBalance
	if requested > 0 && requested < settle {
		settle = requested
	}
	settle = money.Round2(settle)
	if requested < 0 || settle <= 0 {
		return SettlePlan{}, &ValidationError{Field: "amount", Reason: "settlement amount must be positive"}
	}

	for _, installment := range installments {
		if installment.Status == InstallmentPending && locked[PeriodKey(installment.Year, installment.Month)] {
			return SettlePlan{}, fmt.Errorf("%w: %s", ErrBlockedByLockedPeriod, PeriodKey(installment.Year, installment.Month))
		}
	}

	scheduled := make(map[int]bool, len(installments))
	for _, installment := range installments {
		scheduled[monthIndex(installment.Year, installment.Month)] = true
	}
	slot := monthIndex(nowYear, nowMonth)
	for scheduled[slot] {
		slot++
	}
	year, month := indexToMonth(slot)

	plan := SettlePlan{
		SettleAmount: settle,
		Year:         year,
		Month:        month,
		NewBalance:   money.Round2(loan.RemainingBalance - settle),
		NewPaidCount: loan.PaidInstallments + 1,
		NewStatus:    loan.Status,
	}
	if plan.NewBalance <= 0 {
		plan.NewBalance = 0
		plan.NewStatus = StatusClosed
		plan.CancelPendingIDs = pendingIDs(installments)
	} else if plan.NewStatus == StatusDraft {
		plan.NewStatus = StatusActive
	}
	return plan, nil
}

func pendingByMonth(installments []Installment) []Installment {
	var pending []Installment
	for _, installment := range installments {
		if installment.Status == InstallmentPending {
			pending = append(pending, installment)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		return monthIndex(pending[i].Year, pending[i].Month) < monthIndex(pending[j].Year, pending[j].Month)
	})
	return pending
}

func pendingIDs(installments []Installment) []string {
	var ids []string
	for _, installment := range installments {
		if installment.Status == InstallmentPending {
			ids = append(ids, installment.ID)
		}
	}
	return ids
}
