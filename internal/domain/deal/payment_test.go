package deal

import (
	"testing"

	"github.com/agrocredit-engine/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testAccountID = uuid.New()

var testPeriod = shared.Period{Year: 2025, Month: 3}

func TestConfiguredAmount(t *testing.T) {
	d := newTestFinance(t, 40000, 8000, 60, 6.0) // payment 618.65, balance 32000

	t.Run("Skip", func(t *testing.T) {
		require.NoError(t, d.SetPaymentMode(ModeSkip, decimal.Zero))
		assert.True(t, d.ConfiguredAmount().IsZero())
	})

	t.Run("Minimum", func(t *testing.T) {
		require.NoError(t, d.SetPaymentMode(ModeMinimum, decimal.Zero))
		// 32000 * 0.005 = 160.00
		assert.True(t, d.ConfiguredAmount().Equal(decimal.NewFromInt(160)), "got %s", d.ConfiguredAmount())
	})

	t.Run("Standard", func(t *testing.T) {
		require.NoError(t, d.SetPaymentMode(ModeStandard, decimal.Zero))
		assert.True(t, d.ConfiguredAmount().Equal(decimal.NewFromFloat(618.65)))
	})

	t.Run("StandardWithMultiplier", func(t *testing.T) {
		require.NoError(t, d.SetPaymentMultiplier(decimal.NewFromFloat(1.5)))
		assert.True(t, d.ConfiguredAmount().Equal(decimal.NewFromFloat(927.98)), "got %s", d.ConfiguredAmount())
		require.NoError(t, d.SetPaymentMultiplier(decimal.NewFromInt(1)))
	})

	t.Run("Extra", func(t *testing.T) {
		require.NoError(t, d.SetPaymentMode(ModeExtra, decimal.Zero))
		assert.True(t, d.ConfiguredAmount().Equal(decimal.NewFromFloat(1237.30)), "got %s", d.ConfiguredAmount())
	})

	t.Run("CustomFlooredAtMinimum", func(t *testing.T) {
		require.NoError(t, d.SetPaymentMode(ModeCustom, decimal.NewFromInt(50)))
		assert.True(t, d.ConfiguredAmount().Equal(decimal.NewFromInt(160)), "got %s", d.ConfiguredAmount())
	})

	t.Run("CustomAboveMinimum", func(t *testing.T) {
		require.NoError(t, d.SetPaymentMode(ModeCustom, decimal.NewFromInt(900)))
		assert.True(t, d.ConfiguredAmount().Equal(decimal.NewFromInt(900)))
	})
}

func TestDetermineAmountDegradation(t *testing.T) {
	d := newTestFinance(t, 40000, 8000, 60, 6.0)

	t.Run("FullAmountAffordable", func(t *testing.T) {
		amount := d.DetermineAmount(decimal.NewFromInt(5000))
		assert.True(t, amount.Equal(decimal.NewFromFloat(618.65)))
	})

	t.Run("DegradesToMinimum", func(t *testing.T) {
		amount := d.DetermineAmount(decimal.NewFromInt(300))
		assert.True(t, amount.Equal(decimal.NewFromInt(160)), "got %s", amount)
	})

	t.Run("DegradesToZero", func(t *testing.T) {
		amount := d.DetermineAmount(decimal.NewFromInt(10))
		assert.True(t, amount.IsZero())
	})

	t.Run("NeverNegative", func(t *testing.T) {
		amount := d.DetermineAmount(decimal.NewFromInt(-500))
		assert.True(t, amount.IsZero())
	})
}

func TestApplyAmountSkip(t *testing.T) {
	d := newTestFinance(t, 40000, 8000, 60, 6.0)

	outcome := d.ApplyAmount(decimal.Zero, testPeriod)

	assert.Equal(t, OutcomeSkipped, outcome.Category)
	assert.Equal(t, 1, outcome.Strikes)
	assert.True(t, d.AccruedInterest.Equal(decimal.NewFromInt(160)), "got %s", d.AccruedInterest)
	assert.True(t, d.CurrentBalance.Equal(decimal.NewFromInt(32000)))
	assert.Equal(t, 0, d.MonthsPaid)
	assert.True(t, d.EverMissed)
	assert.Equal(t, testPeriod.Key(), d.LastProcessedPeriod)
}

// Negative amortization compounds: each skipped period charges interest on
// the carried interest as well.
func TestConsecutiveSkipsCompound(t *testing.T) {
	d := newTestFinance(t, 40000, 8000, 60, 6.0)

	period := testPeriod
	d.ApplyAmount(decimal.Zero, period)
	first := d.AccruedInterest
	period = period.Next()
	d.ApplyAmount(decimal.Zero, period)

	assert.Equal(t, 2, d.MissedPayments)
	assert.True(t, d.AccruedInterest.GreaterThan(first.Mul(decimal.NewFromInt(2))),
		"second period interest should exceed the first: %s", d.AccruedInterest)
}

func TestApplyAmountPartialNeverIncreasesBalance(t *testing.T) {
	d := newTestFinance(t, 40000, 8000, 60, 6.0)
	balanceBefore := d.CurrentBalance
	interestDue := d.InterestDue() // 160.00

	outcome := d.ApplyAmount(decimal.NewFromInt(100), testPeriod)

	assert.Equal(t, OutcomePartial, outcome.Category)
	assert.True(t, d.CurrentBalance.Equal(balanceBefore))
	assert.True(t, d.AccruedInterest.Equal(interestDue.Sub(decimal.NewFromInt(100))))
	assert.True(t, outcome.InterestPaid.Equal(decimal.NewFromInt(100)))
	// Partial leaves the strike counter untouched in either direction.
	assert.Equal(t, 0, d.MissedPayments)
	assert.Equal(t, 0, d.MonthsPaid)
}

func TestApplyAmountStandardSplitsInterestAndPrincipal(t *testing.T) {
	d := newTestFinance(t, 40000, 8000, 60, 6.0)

	outcome := d.ApplyAmount(decimal.NewFromFloat(618.65), testPeriod)

	assert.Equal(t, OutcomeStandard, outcome.Category)
	assert.True(t, outcome.InterestPaid.Equal(decimal.NewFromInt(160)))
	assert.True(t, outcome.PrincipalPaid.Equal(decimal.NewFromFloat(458.65)))
	assert.True(t, d.CurrentBalance.Equal(decimal.NewFromFloat(31541.35)), "got %s", d.CurrentBalance)
	assert.Equal(t, 1, d.MonthsPaid)
}

func TestApplyAmountRetiresAccruedInterestFirst(t *testing.T) {
	d := newTestFinance(t, 40000, 8000, 60, 6.0)
	d.ApplyAmount(decimal.Zero, testPeriod) // accrued 160.00
	require.Equal(t, 1, d.MissedPayments)

	// Next period: interest due = (32000+160)*0.005 = 160.80
	outcome := d.ApplyAmount(decimal.NewFromFloat(618.65), testPeriod.Next())

	assert.Equal(t, OutcomeStandard, outcome.Category)
	assert.True(t, d.AccruedInterest.IsZero(), "accrued should retire first, got %s", d.AccruedInterest)
	assert.True(t, outcome.InterestPaid.Equal(decimal.NewFromFloat(320.80)), "got %s", outcome.InterestPaid)
	assert.True(t, outcome.PrincipalPaid.Equal(decimal.NewFromFloat(297.85)), "got %s", outcome.PrincipalPaid)
	// A qualifying payment resets the strike counter.
	assert.Equal(t, 0, d.MissedPayments)
}

func TestApplyAmountExtraCategory(t *testing.T) {
	d := newTestFinance(t, 40000, 8000, 60, 6.0)

	outcome := d.ApplyAmount(decimal.NewFromFloat(1237.30), testPeriod)

	assert.Equal(t, OutcomeExtra, outcome.Category)
}

func TestApplyAmountMinimumCategory(t *testing.T) {
	d := newTestFinance(t, 40000, 8000, 60, 6.0)

	outcome := d.ApplyAmount(decimal.NewFromInt(160), testPeriod)

	assert.Equal(t, OutcomeMinimum, outcome.Category)
	assert.True(t, d.CurrentBalance.Equal(decimal.NewFromInt(32000)))
	assert.Equal(t, 1, d.MonthsPaid)
	assert.Equal(t, 0, d.MissedPayments)
}

func TestPrepaymentPenaltyStep(t *testing.T) {
	t.Run("LongRemainder", func(t *testing.T) {
		d := newTestFinance(t, 40000, 8000, 60, 6.0) // 60 months remain
		// 2% of 32000
		assert.True(t, d.PrepaymentPenalty().Equal(decimal.NewFromInt(640)), "got %s", d.PrepaymentPenalty())
	})

	t.Run("ShortRemainder", func(t *testing.T) {
		d := newTestFinance(t, 40000, 8000, 60, 6.0)
		d.MonthsPaid = 52 // 8 months remain
		d.CurrentBalance = decimal.NewFromInt(10000)
		assert.True(t, d.PrepaymentPenalty().Equal(decimal.NewFromInt(100)))
		assert.True(t, d.PayoffAmount().Equal(decimal.NewFromInt(10100)))
	})
}

func TestMakePayment(t *testing.T) {
	t.Run("TooLow", func(t *testing.T) {
		d := newTestFinance(t, 40000, 8000, 60, 6.0)
		_, err := d.MakePayment(decimal.NewFromInt(100))
		assert.ErrorIs(t, err, ErrPaymentTooLow)
	})

	t.Run("TooHigh", func(t *testing.T) {
		d := newTestFinance(t, 40000, 8000, 60, 6.0)
		_, err := d.MakePayment(decimal.NewFromInt(50000))
		assert.ErrorIs(t, err, ErrPaymentTooHigh)
	})

	t.Run("CoversWholePayments", func(t *testing.T) {
		d := newTestFinance(t, 40000, 8000, 60, 6.0)
		result, err := d.MakePayment(decimal.NewFromFloat(1237.30)) // two payments

		require.NoError(t, err)
		assert.Equal(t, 2, result.MonthsCovered)
		assert.Equal(t, 2, d.MonthsPaid)
		assert.True(t, result.InterestPaid.IsPositive())
		assert.True(t, d.CurrentBalance.LessThan(decimal.NewFromInt(32000)))
	})

	t.Run("RemainderGoesToPrincipal", func(t *testing.T) {
		d := newTestFinance(t, 40000, 8000, 60, 6.0)
		result, err := d.MakePayment(decimal.NewFromFloat(818.65)) // one payment + 200

		require.NoError(t, err)
		assert.Equal(t, 1, result.MonthsCovered)
		// 458.65 principal from the scheduled payment plus the 200 remainder
		assert.True(t, result.PrincipalPaid.Equal(decimal.NewFromFloat(658.65)), "got %s", result.PrincipalPaid)
	})

	t.Run("FullPayoffAppliesPenalty", func(t *testing.T) {
		d := newTestFinance(t, 40000, 8000, 60, 6.0)
		d.MonthsPaid = 52
		d.CurrentBalance = decimal.NewFromInt(10000)

		result, err := d.MakePayment(decimal.NewFromInt(10100))

		require.NoError(t, err)
		assert.True(t, result.PaidOff)
		assert.True(t, result.Penalty.Equal(decimal.NewFromInt(100)))
		assert.Equal(t, StatusPaidOff, d.Status)
		assert.True(t, d.CurrentBalance.IsZero())
		assert.True(t, d.TotalInterestPaid.Equal(decimal.NewFromInt(100)))
	})

	t.Run("ResetsStrikes", func(t *testing.T) {
		d := newTestFinance(t, 40000, 8000, 60, 6.0)
		d.ApplyAmount(decimal.Zero, testPeriod)
		require.Equal(t, 1, d.MissedPayments)

		_, err := d.MakePayment(decimal.NewFromFloat(700))
		require.NoError(t, err)
		assert.Equal(t, 0, d.MissedPayments)
	})

	t.Run("InactiveDeal", func(t *testing.T) {
		d := newTestFinance(t, 40000, 8000, 60, 6.0)
		d.Status = StatusDefaulted
		_, err := d.MakePayment(decimal.NewFromInt(1000))
		assert.ErrorIs(t, err, ErrDealNotActive)
	})
}

func TestCancel(t *testing.T) {
	t.Run("BeforeAnyPayment", func(t *testing.T) {
		d := newTestFinance(t, 40000, 8000, 60, 6.0)
		require.NoError(t, d.Cancel())
		assert.Equal(t, StatusCancelled, d.Status)
	})

	t.Run("AfterPayment", func(t *testing.T) {
		d := newTestFinance(t, 40000, 8000, 60, 6.0)
		d.ApplyAmount(decimal.NewFromFloat(618.65), testPeriod)
		assert.ErrorIs(t, d.Cancel(), ErrAlreadyStarted)
	})

	t.Run("AfterMiss", func(t *testing.T) {
		d := newTestFinance(t, 40000, 8000, 60, 6.0)
		d.ApplyAmount(decimal.Zero, testPeriod)
		assert.ErrorIs(t, d.Cancel(), ErrAlreadyStarted)
	})
}

func TestMarkDefaultedExtinguishesDebt(t *testing.T) {
	d := newTestFinance(t, 40000, 8000, 60, 6.0)
	d.ApplyAmount(decimal.Zero, testPeriod)
	require.True(t, d.AccruedInterest.IsPositive())

	d.MarkDefaulted()

	assert.Equal(t, StatusDefaulted, d.Status)
	assert.True(t, d.CurrentBalance.IsZero())
	assert.True(t, d.AccruedInterest.IsZero())
}

func TestNewCashLoanRequiresCollateral(t *testing.T) {
	_, err := NewCashLoan(Terms{
		AccountID:  testAccountID,
		Price:      decimal.NewFromInt(15000),
		TermMonths: 24,
		AnnualRate: decimal.NewFromInt(9),
		Period:     testPeriod,
	}, nil, 6, 60)
	assert.ErrorIs(t, err, ErrMissingCollateral)
}

func TestNewLeaseAmortizesAboveResidual(t *testing.T) {
	d, err := NewLease(Terms{
		AccountID:  testAccountID,
		Item:       ItemRef{Kind: ItemVehicle, Name: "Tractor L200"},
		Price:      decimal.NewFromInt(60000),
		TermMonths: 36,
		AnnualRate: decimal.NewFromInt(5),
		CashBack:   decimal.Zero,
		Period:     testPeriod,
	}, LeaseTerms{
		ResidualValue:   decimal.NewFromInt(24000),
		SecurityDeposit: decimal.NewFromInt(2000),
	}, 12, 60)

	require.NoError(t, err)
	assert.Equal(t, KindLease, d.Kind)
	assert.True(t, d.AmountFinanced.Equal(decimal.NewFromInt(36000)))
	require.NotNil(t, d.Lease)
	assert.True(t, d.Lease.ResidualValue.Equal(decimal.NewFromInt(24000)))
}

func TestTermsValidation(t *testing.T) {
	base := Terms{
		AccountID:  testAccountID,
		Item:       ItemRef{Kind: ItemVehicle, Name: "Plow"},
		Price:      decimal.NewFromInt(10000),
		TermMonths: 36,
		AnnualRate: decimal.NewFromInt(6),
		Period:     testPeriod,
	}

	tests := []struct {
		name    string
		mutate  func(*Terms)
		wantErr error
	}{
		{"NonPositivePrice", func(tm *Terms) { tm.Price = decimal.Zero }, ErrInvalidPrice},
		{"DownPaymentEqualsPrice", func(tm *Terms) { tm.DownPayment = decimal.NewFromInt(10000) }, ErrInvalidDownPayment},
		{"NegativeDownPayment", func(tm *Terms) { tm.DownPayment = decimal.NewFromInt(-1) }, ErrInvalidDownPayment},
		{"NegativeCashBack", func(tm *Terms) { tm.CashBack = decimal.NewFromInt(-1) }, ErrInvalidCashBack},
		{"TermTooShort", func(tm *Terms) { tm.TermMonths = 6 }, ErrTermOutOfBounds},
		{"TermTooLong", func(tm *Terms) { tm.TermMonths = 240 }, ErrTermOutOfBounds},
		{"NegativeRate", func(tm *Terms) { tm.AnnualRate = decimal.NewFromInt(-1) }, ErrInvalidRate},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			terms := base
			tc.mutate(&terms)
			_, err := NewFinance(terms, 12, 120)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}
