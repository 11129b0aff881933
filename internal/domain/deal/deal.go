// Package deal holds the financing contract aggregate: amortization math,
// payment-mode selection, missed-payment escalation state and the
// repossession history kept after a default.
package deal

import (
	"errors"
	"time"

	"github.com/agrocredit-engine/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Common validation and lifecycle errors
var (
	ErrInvalidPrice       = errors.New("price must be positive")
	ErrInvalidDownPayment = errors.New("down payment must be non-negative and below the price")
	ErrInvalidCashBack    = errors.New("cash back must be non-negative")
	ErrTermOutOfBounds    = errors.New("term is outside the allowed range for this product")
	ErrInvalidRate        = errors.New("interest rate must be non-negative")
	ErrInvalidMultiplier  = errors.New("payment multiplier must be between 1.0 and 5.0")
	ErrDealNotActive      = errors.New("deal is no longer active")
	ErrAlreadyStarted     = errors.New("deal cannot be cancelled after the first payment")
	ErrPaymentTooLow      = errors.New("payment is below the monthly payment")
	ErrPaymentTooHigh     = errors.New("payment exceeds the full payoff amount")
	ErrMissingCollateral  = errors.New("cash loans require at least one pledged asset")
)

// Kind discriminates the contract variants.
type Kind string

const (
	KindFinance   Kind = "FINANCE"
	KindLease     Kind = "LEASE"
	KindLandLease Kind = "LAND_LEASE"
	KindCashLoan  Kind = "CASH_LOAN"
)

// ValidKind reports whether k is a known contract kind. Unknown kinds read
// from storage are skipped with a warning rather than aborting the load.
func ValidKind(k Kind) bool {
	switch k {
	case KindFinance, KindLease, KindLandLease, KindCashLoan:
		return true
	}
	return false
}

// Status is the lifecycle state. PaidOff, Defaulted and Cancelled are
// terminal; no transition ever leaves them.
type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusPaidOff   Status = "PAID_OFF"
	StatusDefaulted Status = "DEFAULTED"
	StatusCancelled Status = "CANCELLED"
)

// PaymentMode selects how the monthly amount is determined.
type PaymentMode string

const (
	ModeSkip     PaymentMode = "SKIP"
	ModeMinimum  PaymentMode = "MINIMUM"
	ModeStandard PaymentMode = "STANDARD"
	ModeExtra    PaymentMode = "EXTRA" // legacy alias for multiplier 2.0
	ModeCustom   PaymentMode = "CUSTOM"
)

// ValidPaymentMode reports whether m is a known payment mode.
func ValidPaymentMode(m PaymentMode) bool {
	switch m {
	case ModeSkip, ModeMinimum, ModeStandard, ModeExtra, ModeCustom:
		return true
	}
	return false
}

// ItemKind classifies the financed item.
type ItemKind string

const (
	ItemVehicle   ItemKind = "VEHICLE"
	ItemEquipment ItemKind = "EQUIPMENT"
	ItemLand      ItemKind = "LAND"
	ItemCash      ItemKind = "CASH"
)

// ItemRef points at the financed item in the asset registry. Cash loans
// carry a nil asset reference.
type ItemRef struct {
	Kind    ItemKind  `json:"kind"`
	AssetID uuid.UUID `json:"asset_id,omitempty"`
	Name    string    `json:"name"`
}

// PledgedAsset is collateral securing a cash loan.
type PledgedAsset struct {
	AssetID       uuid.UUID       `json:"asset_id"`
	Name          string          `json:"name"`
	DeclaredValue decimal.Decimal `json:"declared_value"`
}

// RepossessedItem records a seizure performed on default. Entries are kept
// even when the asset could not be located so history and statistics stay
// consistent regardless of external state drift.
type RepossessedItem struct {
	AssetID  uuid.UUID       `json:"asset_id"`
	Name     string          `json:"name"`
	Value    decimal.Decimal `json:"value"`
	NotFound bool            `json:"not_found,omitempty"`
	Period   string          `json:"period"`
	SeizedAt time.Time       `json:"seized_at"`
}

// LeaseTerms holds the variant-only fields of lease contracts.
type LeaseTerms struct {
	ResidualValue   decimal.Decimal `json:"residual_value"`
	SecurityDeposit decimal.Decimal `json:"security_deposit"`
	Depreciation    decimal.Decimal `json:"depreciation"`
	TradeInValue    decimal.Decimal `json:"trade_in_value"`
}

// Deal is an amortized financing contract. Terms are immutable after
// creation; the derived state below them is mutated by the monthly batch or
// player-initiated payments only.
type Deal struct {
	ID        uuid.UUID `json:"id"`
	AccountID uuid.UUID `json:"account_id"`
	Kind      Kind      `json:"kind"`
	Item      ItemRef   `json:"item"`

	OriginalPrice  decimal.Decimal `json:"original_price"`
	DownPayment    decimal.Decimal `json:"down_payment"`
	CashBack       decimal.Decimal `json:"cash_back"`
	AmountFinanced decimal.Decimal `json:"amount_financed"`
	TermMonths     int             `json:"term_months"`
	AnnualRate     decimal.Decimal `json:"annual_rate"` // percentage, e.g. 6.5

	MonthlyPayment    decimal.Decimal `json:"monthly_payment"`
	CurrentBalance    decimal.Decimal `json:"current_balance"`
	AccruedInterest   decimal.Decimal `json:"accrued_interest"`
	MonthsPaid        int             `json:"months_paid"`
	TotalInterestPaid decimal.Decimal `json:"total_interest_paid"`
	MissedPayments    int             `json:"missed_payments"`
	EverMissed        bool            `json:"ever_missed"`

	PaymentMode       PaymentMode     `json:"payment_mode"`
	PaymentMultiplier decimal.Decimal `json:"payment_multiplier"`
	ConfiguredPayment decimal.Decimal `json:"configured_payment"`
	LastPaymentAmount decimal.Decimal `json:"last_payment_amount"`

	// LastProcessedPeriod guards against double-charging when the same
	// period event is delivered twice.
	LastProcessedPeriod string `json:"last_processed_period,omitempty"`
	CreatedPeriod       string `json:"created_period"`

	Status      Status            `json:"status"`
	Lease       *LeaseTerms       `json:"lease,omitempty"`
	Collateral  []PledgedAsset    `json:"collateral,omitempty"`
	Repossessed []RepossessedItem `json:"repossessed,omitempty"`

	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Terms carries the validated creation parameters shared by all variants.
type Terms struct {
	AccountID   uuid.UUID
	Item        ItemRef
	Price       decimal.Decimal
	DownPayment decimal.Decimal
	CashBack    decimal.Decimal
	TermMonths  int
	AnnualRate  decimal.Decimal // percentage
	Period      shared.Period
}

func (t Terms) validate(minTerm, maxTerm int) error {
	if !t.Price.IsPositive() {
		return ErrInvalidPrice
	}
	if t.DownPayment.IsNegative() || t.DownPayment.GreaterThanOrEqual(t.Price) {
		return ErrInvalidDownPayment
	}
	if t.CashBack.IsNegative() {
		return ErrInvalidCashBack
	}
	if t.TermMonths < minTerm || t.TermMonths > maxTerm {
		return ErrTermOutOfBounds
	}
	if t.AnnualRate.IsNegative() {
		return ErrInvalidRate
	}
	return nil
}

func newDeal(kind Kind, t Terms, financed decimal.Decimal) *Deal {
	now := time.Now()
	return &Deal{
		ID:                uuid.New(),
		AccountID:         t.AccountID,
		Kind:              kind,
		Item:              t.Item,
		OriginalPrice:     t.Price.Round(2),
		DownPayment:       t.DownPayment.Round(2),
		CashBack:          t.CashBack.Round(2),
		AmountFinanced:    financed,
		TermMonths:        t.TermMonths,
		AnnualRate:        t.AnnualRate,
		MonthlyPayment:    AnnuityPayment(financed, t.AnnualRate, t.TermMonths),
		CurrentBalance:    financed,
		AccruedInterest:   decimal.Zero,
		TotalInterestPaid: decimal.Zero,
		PaymentMode:       ModeStandard,
		PaymentMultiplier: decimal.NewFromInt(1),
		ConfiguredPayment: decimal.Zero,
		LastPaymentAmount: decimal.Zero,
		CreatedPeriod:     t.Period.Key(),
		Status:            StatusActive,
		Version:           1,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// NewFinance creates a vehicle or equipment financing contract.
// Amount financed = price - down payment + cash back.
func NewFinance(t Terms, minTerm, maxTerm int) (*Deal, error) {
	if err := t.validate(minTerm, maxTerm); err != nil {
		return nil, err
	}
	financed := t.Price.Sub(t.DownPayment).Add(t.CashBack).Round(2)
	return newDeal(KindFinance, t, financed), nil
}

// NewLease creates a lease contract. The amortized amount excludes the
// residual value, which falls due as a buyout when the term completes.
func NewLease(t Terms, lease LeaseTerms, minTerm, maxTerm int) (*Deal, error) {
	if err := t.validate(minTerm, maxTerm); err != nil {
		return nil, err
	}
	if lease.ResidualValue.IsNegative() || lease.ResidualValue.GreaterThanOrEqual(t.Price) {
		return nil, ErrInvalidPrice
	}
	kind := KindLease
	if t.Item.Kind == ItemLand {
		kind = KindLandLease
	}
	financed := t.Price.Sub(t.DownPayment).Sub(lease.ResidualValue).Add(t.CashBack).Round(2)
	d := newDeal(kind, t, financed)
	leaseCopy := lease
	d.Lease = &leaseCopy
	return d, nil
}

// NewCashLoan creates an unsecured-rate loan backed by pledged collateral.
// The principal is disbursed to the account; no down payment applies.
func NewCashLoan(t Terms, collateral []PledgedAsset, minTerm, maxTerm int) (*Deal, error) {
	if len(collateral) == 0 {
		return nil, ErrMissingCollateral
	}
	t.DownPayment = decimal.Zero
	t.CashBack = decimal.Zero
	t.Item = ItemRef{Kind: ItemCash, Name: t.Item.Name}
	if err := t.validate(minTerm, maxTerm); err != nil {
		return nil, err
	}
	d := newDeal(KindCashLoan, t, t.Price.Round(2))
	d.Collateral = append([]PledgedAsset(nil), collateral...)
	return d, nil
}

// IsActive reports whether the deal still participates in the monthly batch.
func (d *Deal) IsActive() bool {
	return d.Status == StatusActive
}

// RemainingMonths is the nominal number of payments outstanding.
func (d *Deal) RemainingMonths() int {
	remaining := d.TermMonths - d.MonthsPaid
	if remaining < 0 {
		return 0
	}
	return remaining
}

// TermComplete reports whether the contract ran its full term. Leases that
// complete their term route to the renewal workflow instead of removal.
func (d *Deal) TermComplete() bool {
	return d.MonthsPaid >= d.TermMonths
}

// IsLease reports whether the deal is one of the lease variants.
func (d *Deal) IsLease() bool {
	return d.Kind == KindLease || d.Kind == KindLandLease
}

// SetPaymentMode switches the payment mode. Custom mode takes an absolute
// amount which is floored at the interest-only minimum during collection.
func (d *Deal) SetPaymentMode(mode PaymentMode, customAmount decimal.Decimal) error {
	if !d.IsActive() {
		return ErrDealNotActive
	}
	if !ValidPaymentMode(mode) {
		return errors.New("unknown payment mode: " + string(mode))
	}
	d.PaymentMode = mode
	if mode == ModeCustom {
		if customAmount.IsNegative() {
			return ErrPaymentTooLow
		}
		d.ConfiguredPayment = customAmount.Round(2)
	}
	d.touch()
	return nil
}

// SetPaymentMultiplier adjusts the standard-mode acceleration factor.
func (d *Deal) SetPaymentMultiplier(m decimal.Decimal) error {
	if !d.IsActive() {
		return ErrDealNotActive
	}
	if m.LessThan(decimal.NewFromInt(1)) || m.GreaterThan(decimal.NewFromInt(5)) {
		return ErrInvalidMultiplier
	}
	d.PaymentMultiplier = m
	d.touch()
	return nil
}

// Cancel voids a deal before any payment activity. Cancellation is
// all-or-nothing at the service layer: the down payment is refunded and the
// item returned in the same transaction.
func (d *Deal) Cancel() error {
	if !d.IsActive() {
		return ErrDealNotActive
	}
	if d.MonthsPaid > 0 || d.LastPaymentAmount.IsPositive() || d.MissedPayments > 0 {
		return ErrAlreadyStarted
	}
	d.Status = StatusCancelled
	d.touch()
	return nil
}

// MarkDefaulted finalizes the third-strike escalation. The remaining debt is
// extinguished by the seizure, so balance and accrued interest zero out.
func (d *Deal) MarkDefaulted() {
	d.Status = StatusDefaulted
	d.CurrentBalance = decimal.Zero
	d.AccruedInterest = decimal.Zero
	d.touch()
}

// RecordRepossession appends a seizure history entry.
func (d *Deal) RecordRepossession(item RepossessedItem) {
	d.Repossessed = append(d.Repossessed, item)
	d.touch()
}

// touch refreshes the modification timestamp. The version column is bumped
// by the repository when the deal is persisted, so any number of mutations
// between a load and an Update count as one version step.
func (d *Deal) touch() {
	d.UpdatedAt = time.Now()
}
