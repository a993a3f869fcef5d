package application

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khanxayitrp/loan-system-sub000/internal/pkg/apperrors"
)

func TestGenerateScheduleAbsorbsRoundingRemainder(t *testing.T) {
	app := &LoanApplication{
		TotalAmount:  dec("1000"),
		InterestRate: dec("12"),
		LoanPeriod:   3,
	}
	origination := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)

	entries, err := app.GenerateSchedule(origination)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.True(t, entries[0].PrincipalAmount.Equal(dec("333.33")), entries[0].PrincipalAmount.String())
	assert.True(t, entries[1].PrincipalAmount.Equal(dec("333.33")), entries[1].PrincipalAmount.String())
	assert.True(t, entries[2].PrincipalAmount.Equal(dec("333.34")), entries[2].PrincipalAmount.String())

	for i, e := range entries {
		assert.True(t, e.InterestAmount.Equal(dec("40")), "entry %d interest %s", i+1, e.InterestAmount.String())
		assert.Equal(t, PaymentStatusUnpaid, e.PaymentStatus)
		assert.Equal(t, i+1, e.InstallmentNumber)
	}

	assert.True(t, entries[0].TotalDue.Equal(dec("373.33")))
	assert.True(t, entries[1].TotalDue.Equal(dec("373.33")))
	assert.True(t, entries[2].TotalDue.Equal(dec("373.34")))

	assert.True(t, entries[0].RemainingPrincipal.Equal(dec("666.67")), entries[0].RemainingPrincipal.String())
	assert.True(t, entries[1].RemainingPrincipal.Equal(dec("333.34")), entries[1].RemainingPrincipal.String())
	assert.True(t, entries[2].RemainingPrincipal.IsZero(), entries[2].RemainingPrincipal.String())
}

func TestGenerateScheduleEvenSplit(t *testing.T) {
	app := &LoanApplication{
		TotalAmount:  dec("1200"),
		InterestRate: dec("10"),
		LoanPeriod:   4,
	}

	entries, err := app.GenerateSchedule(time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, entries, 4)

	for i, e := range entries {
		assert.True(t, e.PrincipalAmount.Equal(dec("300")), "entry %d principal %s", i+1, e.PrincipalAmount.String())
		assert.True(t, e.InterestAmount.Equal(dec("30")), "entry %d interest %s", i+1, e.InterestAmount.String())
	}
}

func TestGenerateSchedulePrincipalSumsExactly(t *testing.T) {
	cases := []struct {
		amount string
		rate   string
		period int
	}{
		{"1000", "12", 3},
		{"100", "5", 6},
		{"999.99", "7.5", 7},
		{"12345.67", "18", 11},
		{"50000", "0", 13},
	}

	for _, tc := range cases {
		app := &LoanApplication{
			TotalAmount:  dec(tc.amount),
			InterestRate: dec(tc.rate),
			LoanPeriod:   tc.period,
		}
		entries, err := app.GenerateSchedule(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
		require.NoError(t, err, "terms %s/%s/%d", tc.amount, tc.rate, tc.period)
		require.Len(t, entries, tc.period)

		sum := decimal.Zero
		prev := app.TotalAmount
		for _, e := range entries {
			sum = sum.Add(e.PrincipalAmount)
			assert.True(t, e.RemainingPrincipal.LessThan(prev),
				"remaining principal must strictly decrease: %s then %s", prev.String(), e.RemainingPrincipal.String())
			prev = e.RemainingPrincipal
		}
		assert.True(t, sum.Equal(app.TotalAmount),
			"scheduled principal %s must equal loan principal %s", sum.String(), app.TotalAmount.String())
		assert.True(t, entries[tc.period-1].RemainingPrincipal.IsZero())
	}
}

func TestGenerateScheduleDueDatesAreMonthly(t *testing.T) {
	app := &LoanApplication{
		TotalAmount:  dec("600"),
		InterestRate: dec("6"),
		LoanPeriod:   3,
	}
	origination := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)

	entries, err := app.GenerateSchedule(origination)
	require.NoError(t, err)

	for i, e := range entries {
		assert.Equal(t, origination.AddDate(0, i+1, 0), e.DueDate, "entry %d", i+1)
	}
}

func TestGenerateScheduleInvalidTerms(t *testing.T) {
	app := &LoanApplication{TotalAmount: dec("0"), LoanPeriod: 3}
	_, err := app.GenerateSchedule(time.Now())
	assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)

	app = &LoanApplication{TotalAmount: dec("1000"), LoanPeriod: 0}
	_, err = app.GenerateSchedule(time.Now())
	assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)
}

func TestEffectiveDue(t *testing.T) {
	entry := ScheduleEntry{
		TotalDue:  dec("373.33"),
		Discounts: dec("10"),
		Penalty:   dec("2.50"),
	}
	assert.True(t, entry.EffectiveDue().Equal(dec("365.83")), entry.EffectiveDue().String())

	entry.Discounts = decimal.Zero
	entry.Penalty = decimal.Zero
	assert.True(t, entry.EffectiveDue().Equal(dec("373.33")))
}
