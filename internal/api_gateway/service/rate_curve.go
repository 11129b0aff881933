package service

import (
	"github.com/agrocredit-engine/internal/config"
	"github.com/agrocredit-engine/internal/domain/credit"
	"github.com/shopspring/decimal"
)

// RateCurve derives per-deal annual interest rates from the configured base
// rates, the borrower's credit tier and the deal shape. Longer terms price
// higher, larger down payments price lower; the result never goes below
// zero (zero-rate deals amortize linearly).
type RateCurve struct {
	financeBase  decimal.Decimal
	leaseBase    decimal.Decimal
	cashLoanBase decimal.Decimal
}

// NewRateCurve creates a rate curve from the financing configuration.
func NewRateCurve(cfg *config.FinancingConfig) *RateCurve {
	return &RateCurve{
		financeBase:  decimal.NewFromFloat(cfg.FinanceBaseRate),
		leaseBase:    decimal.NewFromFloat(cfg.LeaseBaseRate),
		cashLoanBase: decimal.NewFromFloat(cfg.CashLoanBaseRate),
	}
}

// VehicleRate prices vehicle and equipment financing.
func (c *RateCurve) VehicleRate(score int, termMonths int, downPaymentPct decimal.Decimal) decimal.Decimal {
	return c.price(c.financeBase, score, termMonths, downPaymentPct)
}

// LandRate prices land financing. Land carries the same base as other
// financed items; the product gate, not the rate, is what makes it harder
// to reach.
func (c *RateCurve) LandRate(score int, termMonths int, downPaymentPct decimal.Decimal) decimal.Decimal {
	return c.price(c.financeBase, score, termMonths, downPaymentPct)
}

// LeaseRate prices leases.
func (c *RateCurve) LeaseRate(score int, termMonths int, downPaymentPct decimal.Decimal) decimal.Decimal {
	return c.price(c.leaseBase, score, termMonths, downPaymentPct)
}

// CashLoanRate prices cash loans. No down payment applies.
func (c *RateCurve) CashLoanRate(score int, termMonths int) decimal.Decimal {
	return c.price(c.cashLoanBase, score, termMonths, decimal.Zero)
}

func (c *RateCurve) price(base decimal.Decimal, score int, termMonths int, downPaymentPct decimal.Decimal) decimal.Decimal {
	rate := base.Add(credit.TierForScore(score).RateAdjustment)
	rate = rate.Add(termModifier(termMonths))
	rate = rate.Sub(downPaymentModifier(downPaymentPct))
	if rate.IsNegative() {
		return decimal.Zero
	}
	return rate.Round(2)
}

// termModifier adds a duration premium in percentage points.
func termModifier(termMonths int) decimal.Decimal {
	switch {
	case termMonths > 96:
		return decimal.NewFromFloat(1.0)
	case termMonths > 60:
		return decimal.NewFromFloat(0.5)
	case termMonths > 36:
		return decimal.NewFromFloat(0.25)
	default:
		return decimal.Zero
	}
}

// downPaymentModifier rewards equity up front, in percentage points.
func downPaymentModifier(pct decimal.Decimal) decimal.Decimal {
	switch {
	case pct.GreaterThanOrEqual(decimal.NewFromFloat(0.5)):
		return decimal.NewFromFloat(0.75)
	case pct.GreaterThanOrEqual(decimal.NewFromFloat(0.3)):
		return decimal.NewFromFloat(0.5)
	case pct.GreaterThanOrEqual(decimal.NewFromFloat(0.15)):
		return decimal.NewFromFloat(0.25)
	default:
		return decimal.Zero
	}
}
