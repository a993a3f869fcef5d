package application

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/khanxayitrp/loan-system-sub000/internal/pkg/apperrors"
)

type PaymentStatus string

const (
	PaymentStatusUnpaid  PaymentStatus = "unpaid"
	PaymentStatusPartial PaymentStatus = "partial"
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusOverdue PaymentStatus = "overdue"
)

type ScheduleEntry struct {
	ID                 int64
	ApplicationID      int64
	InstallmentNumber  int
	DueDate            time.Time
	PrincipalAmount    decimal.Decimal
	InterestAmount     decimal.Decimal
	TotalDue           decimal.Decimal
	Discounts          decimal.Decimal
	Penalty            decimal.Decimal
	RemainingPrincipal decimal.Decimal
	PaymentStatus      PaymentStatus
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// EffectiveDue is the amount that settles this installment:
// total due minus discounts plus penalty.
func (e *ScheduleEntry) EffectiveDue() decimal.Decimal {
	return e.TotalDue.Sub(e.Discounts).Add(e.Penalty)
}

// GenerateSchedule derives the full repayment schedule from the committed
// terms. The last installment absorbs the rounding remainder so the scheduled
// principal sums to the loan principal exactly; that rule is load-bearing,
// not cosmetic.
func (a *LoanApplication) GenerateSchedule(originationDate time.Time) ([]ScheduleEntry, error) {
	if a.LoanPeriod <= 0 || !a.TotalAmount.IsPositive() {
		return nil, fmt.Errorf("%w: invalid terms for schedule generation", apperrors.ErrInvalidArgument)
	}
	if originationDate.IsZero() {
		originationDate = time.Now().Truncate(24 * time.Hour)
	}

	periods := decimal.NewFromInt(int64(a.LoanPeriod))
	principalPerInstallment := a.TotalAmount.Div(periods)
	interestPerInstallment := round2(TotalInterest(a.TotalAmount, a.InterestRate).Div(periods))

	entries := make([]ScheduleEntry, 0, a.LoanPeriod)
	remaining := a.TotalAmount

	for i := 1; i <= a.LoanPeriod; i++ {
		principal := round2(principalPerInstallment)
		if i == a.LoanPeriod {
			// remainder absorption
			principal = remaining
		}

		remaining = remaining.Sub(principal)
		if remaining.IsNegative() {
			remaining = decimal.Zero
		}

		entries = append(entries, ScheduleEntry{
			InstallmentNumber:  i,
			DueDate:            originationDate.AddDate(0, i, 0),
			PrincipalAmount:    principal,
			InterestAmount:     interestPerInstallment,
			TotalDue:           principal.Add(interestPerInstallment),
			Discounts:          decimal.Zero,
			Penalty:            decimal.Zero,
			RemainingPrincipal: remaining,
			PaymentStatus:      PaymentStatusUnpaid,
		})
	}

	if !remaining.IsZero() {
		return nil, fmt.Errorf("%w: schedule generation failed sanity check - remaining principal %s after final installment",
			apperrors.ErrInternalServer, remaining.String())
	}

	return entries, nil
}
