package deal

import (
	"github.com/agrocredit-engine/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Prepayment penalty: 2% of the remaining balance with more than 12 months
// left on the term, 1% at or below. A hard step, not a sliding scale.
const prepaymentPenaltyCutoffMonths = 12

var (
	penaltyRateLong  = decimal.NewFromFloat(0.02)
	penaltyRateShort = decimal.NewFromFloat(0.01)
	extraMultiplier  = decimal.NewFromInt(2)
)

// OutcomeCategory classifies how a period's payment compared to what was due.
type OutcomeCategory string

const (
	OutcomeSkipped  OutcomeCategory = "SKIPPED"  // nothing paid, interest accrues
	OutcomePartial  OutcomeCategory = "PARTIAL"  // below interest due, shortfall accrues
	OutcomeMinimum  OutcomeCategory = "MINIMUM"  // covered interest only
	OutcomeStandard OutcomeCategory = "STANDARD" // at least the nominal monthly payment
	OutcomeExtra    OutcomeCategory = "EXTRA"    // at least twice the nominal monthly payment
)

// PaymentOutcome is the structured result of one period's processing.
type PaymentOutcome struct {
	Category      OutcomeCategory
	Amount        decimal.Decimal
	InterestPaid  decimal.Decimal
	PrincipalPaid decimal.Decimal
	Shortfall     decimal.Decimal
	Strikes       int
	PaidOff       bool
}

// ConfiguredAmount resolves the payment the player has asked for this period
// based on the payment mode. Custom amounts are floored at the interest-only
// minimum so a too-small custom value cannot silently grow the debt.
func (d *Deal) ConfiguredAmount() decimal.Decimal {
	switch d.PaymentMode {
	case ModeSkip:
		return decimal.Zero
	case ModeMinimum:
		return d.MinimumPayment()
	case ModeExtra:
		return d.MonthlyPayment.Mul(extraMultiplier).Round(2)
	case ModeCustom:
		minimum := d.MinimumPayment()
		if d.ConfiguredPayment.LessThan(minimum) {
			return minimum
		}
		return d.ConfiguredPayment
	default: // ModeStandard
		return d.MonthlyPayment.Mul(d.PaymentMultiplier).Round(2)
	}
}

// DetermineAmount degrades the configured payment against the funds actually
// available: the full configured amount, else the interest-only minimum,
// else zero, which forces the skip path. The result is never negative and
// never exceeds the full payoff balance.
func (d *Deal) DetermineAmount(available decimal.Decimal) decimal.Decimal {
	configured := d.ConfiguredAmount()
	owed := d.CurrentBalance.Add(d.AccruedInterest).Add(d.InterestDue())
	if configured.GreaterThan(owed) {
		configured = owed
	}
	if available.GreaterThanOrEqual(configured) {
		return configured
	}
	minimum := d.MinimumPayment()
	if available.GreaterThanOrEqual(minimum) && minimum.IsPositive() {
		return minimum
	}
	return decimal.Zero
}

// ApplyAmount runs one period of the monthly processing algorithm with the
// given payment amount, mutating the deal. The amount is assumed to already
// be affordable; DetermineAmount handles degradation.
//
// amount == 0: the interest due is carried forward (negative amortization)
// and a missed-payment strike is recorded. 0 < amount < interest due: the
// shortfall accrues, the paid part counts as interest; the strike counter is
// left untouched. amount >= interest due: the excess retires carried
// interest first, then principal; the strike counter resets.
func (d *Deal) ApplyAmount(amount decimal.Decimal, period shared.Period) PaymentOutcome {
	interestDue := d.InterestDue()
	outcome := PaymentOutcome{Amount: amount}

	switch {
	case amount.IsZero():
		d.AccruedInterest = d.AccruedInterest.Add(interestDue)
		d.MissedPayments++
		d.EverMissed = true
		outcome.Category = OutcomeSkipped
		outcome.Shortfall = interestDue

	case amount.LessThan(interestDue):
		shortfall := interestDue.Sub(amount)
		d.AccruedInterest = d.AccruedInterest.Add(shortfall)
		d.TotalInterestPaid = d.TotalInterestPaid.Add(amount)
		outcome.Category = OutcomePartial
		outcome.InterestPaid = amount
		outcome.Shortfall = shortfall

	default:
		excess := amount.Sub(interestDue)
		interestPaid := interestDue

		// Carried interest retires before principal.
		if d.AccruedInterest.IsPositive() {
			retired := decimal.Min(excess, d.AccruedInterest)
			d.AccruedInterest = d.AccruedInterest.Sub(retired)
			interestPaid = interestPaid.Add(retired)
			excess = excess.Sub(retired)
		}
		d.CurrentBalance = d.CurrentBalance.Sub(excess)
		d.TotalInterestPaid = d.TotalInterestPaid.Add(interestPaid)
		d.MonthsPaid++
		d.MissedPayments = 0

		outcome.InterestPaid = interestPaid
		outcome.PrincipalPaid = excess
		switch {
		case amount.GreaterThanOrEqual(d.MonthlyPayment.Mul(extraMultiplier)):
			outcome.Category = OutcomeExtra
		case amount.GreaterThanOrEqual(d.MonthlyPayment):
			outcome.Category = OutcomeStandard
		default:
			outcome.Category = OutcomeMinimum
		}
	}

	if d.CurrentBalance.LessThanOrEqual(payoffEpsilon) && outcome.Category != OutcomeSkipped && outcome.Category != OutcomePartial {
		d.CurrentBalance = decimal.Zero
		d.AccruedInterest = decimal.Zero
		d.Status = StatusPaidOff
		outcome.PaidOff = true
	}

	d.LastPaymentAmount = amount
	d.LastProcessedPeriod = period.Key()
	outcome.Strikes = d.MissedPayments
	d.touch()
	return outcome
}

// PrepaymentPenalty is the fee due on a full early payoff.
func (d *Deal) PrepaymentPenalty() decimal.Decimal {
	if d.RemainingMonths() > prepaymentPenaltyCutoffMonths {
		return d.CurrentBalance.Mul(penaltyRateLong).Round(2)
	}
	return d.CurrentBalance.Mul(penaltyRateShort).Round(2)
}

// PayoffAmount is the total charge required to settle the deal today:
// remaining balance, carried interest and the prepayment penalty.
func (d *Deal) PayoffAmount() decimal.Decimal {
	return d.CurrentBalance.Add(d.AccruedInterest).Add(d.PrepaymentPenalty())
}

// ManualPaymentResult summarizes a player-initiated payment.
type ManualPaymentResult struct {
	Charged       decimal.Decimal
	InterestPaid  decimal.Decimal
	PrincipalPaid decimal.Decimal
	Penalty       decimal.Decimal
	MonthsCovered int
	PaidOff       bool
}

// MakePayment posts a manual extra payment or full payoff. The amount must
// cover at least one monthly payment and must not exceed the payoff amount.
// Whole monthly payments are simulated with their interest/principal split;
// any remainder goes straight to principal. A full payoff adds the
// prepayment penalty to total interest paid.
func (d *Deal) MakePayment(amount decimal.Decimal) (ManualPaymentResult, error) {
	var result ManualPaymentResult
	if !d.IsActive() {
		return result, ErrDealNotActive
	}
	payoff := d.PayoffAmount()
	if amount.GreaterThan(payoff) {
		return result, ErrPaymentTooHigh
	}
	if amount.LessThan(d.MonthlyPayment) && amount.LessThan(payoff) {
		return result, ErrPaymentTooLow
	}

	if amount.GreaterThanOrEqual(payoff) {
		penalty := d.PrepaymentPenalty()
		result = ManualPaymentResult{
			Charged:       payoff,
			InterestPaid:  d.AccruedInterest.Add(penalty),
			PrincipalPaid: d.CurrentBalance,
			Penalty:       penalty,
			PaidOff:       true,
		}
		d.TotalInterestPaid = d.TotalInterestPaid.Add(d.AccruedInterest).Add(penalty)
		d.CurrentBalance = decimal.Zero
		d.AccruedInterest = decimal.Zero
		d.Status = StatusPaidOff
		d.MissedPayments = 0
		d.LastPaymentAmount = payoff
		d.touch()
		return result, nil
	}

	r := d.monthlyRate()
	remaining := amount
	for remaining.GreaterThanOrEqual(d.MonthlyPayment) && d.CurrentBalance.IsPositive() {
		newInterest := d.CurrentBalance.Add(d.AccruedInterest).Mul(r).Round(2)
		interestOwed := d.AccruedInterest.Add(newInterest)
		portion := d.MonthlyPayment
		interestPaid := decimal.Min(portion, interestOwed)
		d.AccruedInterest = interestOwed.Sub(interestPaid)
		principal := portion.Sub(interestPaid)
		if principal.GreaterThan(d.CurrentBalance) {
			portion = portion.Sub(principal.Sub(d.CurrentBalance))
			principal = d.CurrentBalance
		}
		d.CurrentBalance = d.CurrentBalance.Sub(principal)
		d.TotalInterestPaid = d.TotalInterestPaid.Add(interestPaid)
		d.MonthsPaid++
		result.InterestPaid = result.InterestPaid.Add(interestPaid)
		result.PrincipalPaid = result.PrincipalPaid.Add(principal)
		result.MonthsCovered++
		remaining = remaining.Sub(portion)
	}

	// Remainder reduces principal directly.
	if remaining.IsPositive() && d.CurrentBalance.IsPositive() {
		principal := decimal.Min(remaining, d.CurrentBalance)
		d.CurrentBalance = d.CurrentBalance.Sub(principal)
		result.PrincipalPaid = result.PrincipalPaid.Add(principal)
		remaining = remaining.Sub(principal)
	}

	result.Charged = amount.Sub(remaining)
	d.MissedPayments = 0
	d.LastPaymentAmount = result.Charged

	if d.CurrentBalance.LessThanOrEqual(payoffEpsilon) {
		d.CurrentBalance = decimal.Zero
		d.AccruedInterest = decimal.Zero
		d.Status = StatusPaidOff
		result.PaidOff = true
	}
	d.touch()
	return result, nil
}
