package deal

import "github.com/shopspring/decimal"

const monthsPerYear = 12

var (
	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)

	// rateEpsilon treats near-zero rates as interest-free to avoid a
	// degenerate annuity denominator.
	rateEpsilon = decimal.New(1, -9)

	// payoffEpsilon absorbs the per-payment rounding residue of a fully
	// amortized schedule; balances below it count as paid off.
	payoffEpsilon = decimal.NewFromInt(1)
)

// MonthlyRate converts an annual percentage rate to a periodic decimal rate.
func MonthlyRate(annualRatePct decimal.Decimal) decimal.Decimal {
	return annualRatePct.Div(hundred.Mul(decimal.NewFromInt(monthsPerYear)))
}

// AnnuityPayment computes the level monthly payment for a principal amortized
// over termMonths at the given annual percentage rate, using the standard
// annuity formula P * r(1+r)^n / ((1+r)^n - 1). A zero (or near-zero) rate
// degenerates to straight principal division.
func AnnuityPayment(principal, annualRatePct decimal.Decimal, termMonths int) decimal.Decimal {
	if termMonths <= 0 || !principal.IsPositive() {
		return decimal.Zero
	}
	r := MonthlyRate(annualRatePct)
	if r.Abs().LessThan(rateEpsilon) {
		return principal.Div(decimal.NewFromInt(int64(termMonths))).Round(2)
	}
	compounded := one.Add(r).Pow(decimal.NewFromInt(int64(termMonths)))
	numerator := principal.Mul(r).Mul(compounded)
	denominator := compounded.Sub(one)
	return numerator.Div(denominator).Round(2)
}

// monthlyRate returns the deal's periodic rate.
func (d *Deal) monthlyRate() decimal.Decimal {
	return MonthlyRate(d.AnnualRate)
}

// InterestDue is the interest accruing this period on the outstanding
// balance including any carried (negative-amortization) interest.
func (d *Deal) InterestDue() decimal.Decimal {
	return d.CurrentBalance.Add(d.AccruedInterest).Mul(d.monthlyRate()).Round(2)
}

// MinimumPayment is the interest-only amount that keeps the balance from
// growing this period.
func (d *Deal) MinimumPayment() decimal.Decimal {
	return d.InterestDue()
}
