package credit

import (
	"fmt"

	"github.com/shopspring/decimal"
)

const (
	baseScore = 500
	scoreMin  = 300
	scoreMax  = 850

	// Qualification gates applied before the final clamp.
	capWithoutExcellent = 749
	capWithoutHistory   = 699
)

// Inputs carries the externally supplied balance-sheet figures for a score
// calculation.
type Inputs struct {
	AssetValue decimal.Decimal
	DebtValue  decimal.Decimal
	CashValue  decimal.Decimal
}

// Tier is a named credit bracket governing interest adjustment and cash-back
// generosity.
type Tier struct {
	Name           string          `json:"name"`
	MinScore       int             `json:"min_score"`
	RateAdjustment decimal.Decimal `json:"rate_adjustment"` // percentage points
	CashBackFactor decimal.Decimal `json:"cash_back_factor"`
}

var tiers = []Tier{
	{Name: "Excellent", MinScore: 750, RateAdjustment: decimal.NewFromFloat(-1.5), CashBackFactor: decimal.NewFromFloat(2.0)},
	{Name: "Good", MinScore: 700, RateAdjustment: decimal.NewFromFloat(-0.5), CashBackFactor: decimal.NewFromFloat(1.5)},
	{Name: "Fair", MinScore: 650, RateAdjustment: decimal.NewFromFloat(0.5), CashBackFactor: decimal.NewFromFloat(1.0)},
	{Name: "Poor", MinScore: 600, RateAdjustment: decimal.NewFromFloat(1.5), CashBackFactor: decimal.NewFromFloat(0.5)},
	{Name: "Very Poor", MinScore: 0, RateAdjustment: decimal.NewFromFloat(3.0), CashBackFactor: decimal.NewFromFloat(0.25)},
}

// TierForScore maps a score to its tier.
func TierForScore(score int) Tier {
	for _, t := range tiers {
		if score >= t.MinScore {
			return t
		}
	}
	return tiers[len(tiers)-1]
}

// Score is the result of a calculation: the clamped value, its tier, and the
// additive factor breakdown for UI display.
type Score struct {
	Value           int  `json:"value"`
	Tier            Tier `json:"tier"`
	HistoryScore    int  `json:"history_score"`
	AssetDebtScore  int  `json:"asset_debt_score"`
	CashScore       int  `json:"cash_score"`
	CleanSlateScore int  `json:"clean_slate_score"`
	LedgerScore     int  `json:"ledger_score"`
}

// Calculate produces the 300-850 score from the profile and balance-sheet
// inputs: base 500 plus the payment-history sub-score, the asset/debt
// factor, the cash-reserve bonus, the clean-slate bonus and a small
// secondary signal from the event ledger, gated so that history-poor
// accounts cannot reach the upper tiers.
func Calculate(p *Profile, in Inputs) Score {
	s := Score{
		HistoryScore:    p.HistoryScore(),
		AssetDebtScore:  assetDebtFactor(in.AssetValue, in.DebtValue),
		CashScore:       cashBonus(in.CashValue),
		CleanSlateScore: cleanSlateBonus(p, in),
		LedgerScore:     ledgerSignal(p.EventAdjustment),
	}

	value := baseScore + s.HistoryScore + s.AssetDebtScore + s.CashScore + s.CleanSlateScore + s.LedgerScore

	if !p.QualifiesForExcellent() && value > capWithoutExcellent {
		value = capWithoutExcellent
	}
	if !p.QualifiesForGood() && value > capWithoutHistory {
		value = capWithoutHistory
	}
	if value < scoreMin {
		value = scoreMin
	}
	if value > scoreMax {
		value = scoreMax
	}

	s.Value = value
	s.Tier = TierForScore(value)
	return s
}

// assetDebtFactor tiers the debt/asset ratio into -75..+75, with a small
// bonus for large absolute holdings.
func assetDebtFactor(assets, debt decimal.Decimal) int {
	if !assets.IsPositive() {
		if debt.IsPositive() {
			return -75
		}
		return 0
	}

	var factor int
	ratio := debt.Div(assets)
	switch {
	case !debt.IsPositive():
		factor = 60
	case ratio.LessThan(decimal.NewFromFloat(0.25)):
		factor = 40
	case ratio.LessThan(decimal.NewFromFloat(0.5)):
		factor = 20
	case ratio.LessThan(decimal.NewFromInt(1)):
		factor = 0
	case ratio.LessThan(decimal.NewFromInt(2)):
		factor = -40
	default:
		factor = -75
	}

	switch {
	case assets.GreaterThanOrEqual(decimal.NewFromInt(1_000_000)):
		factor += 15
	case assets.GreaterThanOrEqual(decimal.NewFromInt(500_000)):
		factor += 10
	case assets.GreaterThan(decimal.NewFromInt(100_000)):
		factor += 5
	}

	if factor > 75 {
		factor = 75
	}
	if factor < -75 {
		factor = -75
	}
	return factor
}

// cashBonus tiers the cash reserve into 0..25.
func cashBonus(cash decimal.Decimal) int {
	switch {
	case cash.GreaterThanOrEqual(decimal.NewFromInt(100_000)):
		return 25
	case cash.GreaterThanOrEqual(decimal.NewFromInt(50_000)):
		return 15
	case cash.GreaterThanOrEqual(decimal.NewFromInt(25_000)):
		return 10
	case cash.GreaterThanOrEqual(decimal.NewFromInt(10_000)):
		return 5
	default:
		return 0
	}
}

// cleanSlateBonus grants a starter bonus to accounts with assets, no debt
// and no payment history at all. It vanishes permanently once any payment
// history exists.
func cleanSlateBonus(p *Profile, in Inputs) int {
	if p.TotalPayments > 0 || !in.AssetValue.IsPositive() || in.DebtValue.IsPositive() {
		return 0
	}
	switch {
	case in.AssetValue.GreaterThanOrEqual(decimal.NewFromInt(1_000_000)):
		return 40
	case in.AssetValue.GreaterThanOrEqual(decimal.NewFromInt(500_000)):
		return 35
	case in.AssetValue.GreaterThan(decimal.NewFromInt(100_000)):
		return 30
	case in.AssetValue.GreaterThanOrEqual(decimal.NewFromInt(50_000)):
		return 20
	case in.AssetValue.GreaterThanOrEqual(decimal.NewFromInt(10_000)):
		return 10
	default:
		return 5
	}
}

// ledgerSignal scales the cumulative event adjustment into a small secondary
// term, clamped to ±20 so the ledger can tip a boundary but never dominate
// the four primary factors.
func ledgerSignal(adjustment int) int {
	signal := adjustment / 10
	if signal > 20 {
		signal = 20
	}
	if signal < -20 {
		signal = -20
	}
	return signal
}

// ProductType enumerates the financeable product categories.
type ProductType string

const (
	ProductSmallRepairLoan ProductType = "SMALL_REPAIR_LOAN"
	ProductVehicleFinance  ProductType = "VEHICLE_FINANCE"
	ProductVehicleLease    ProductType = "VEHICLE_LEASE"
	ProductLandFinance     ProductType = "LAND_FINANCE"
	ProductCashLoan        ProductType = "CASH_LOAN"
)

var productMinScores = map[ProductType]int{
	ProductSmallRepairLoan: 450,
	ProductVehicleFinance:  550,
	ProductVehicleLease:    600,
	ProductLandFinance:     650,
	ProductCashLoan:        700,
}

// ErrUnknownProduct indicates an unrecognized product type.
type ErrUnknownProduct struct {
	Product ProductType
}

func (e ErrUnknownProduct) Error() string {
	return "unknown financing product: " + string(e.Product)
}

// Decision is the outcome of a financing eligibility check.
type Decision struct {
	Eligible bool   `json:"eligible"`
	Score    int    `json:"score"`
	Required int    `json:"required"`
	Deficit  int    `json:"deficit"`
	Reason   string `json:"reason,omitempty"`
}

// CanFinance checks a score against the product's minimum threshold,
// returning the deficit and a reason when declined.
func CanFinance(score int, product ProductType) (Decision, error) {
	required, ok := productMinScores[product]
	if !ok {
		return Decision{}, ErrUnknownProduct{Product: product}
	}
	d := Decision{Score: score, Required: required}
	if score >= required {
		d.Eligible = true
		return d, nil
	}
	d.Deficit = required - score
	d.Reason = fmt.Sprintf("credit score %d is %d points below the %d required for %s", score, d.Deficit, required, product)
	return d, nil
}
