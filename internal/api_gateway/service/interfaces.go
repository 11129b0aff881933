package service

import (
	"context"

	"github.com/agrocredit-engine/internal/domain/account"
	"github.com/agrocredit-engine/internal/domain/credit"
	"github.com/agrocredit-engine/internal/domain/deal"
	"github.com/agrocredit-engine/internal/domain/statistics"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountService defines the interface for account operations
type AccountService interface {
	// CreateAccount creates a new account with the given details
	// Returns ErrDuplicateFarmName if an account with the same farm name exists
	CreateAccount(ctx context.Context, ownerName string, farmName string, initialBalance decimal.Decimal) (*account.Account, error)

	// GetAccountByID retrieves an account by its ID
	// Returns ErrAccountNotFound if the account doesn't exist
	GetAccountByID(ctx context.Context, id uuid.UUID) (*account.Account, error)

	// GetStatistics retrieves the financing counters for an account.
	// Accounts with no activity yet get zeroed counters.
	GetStatistics(ctx context.Context, accountID uuid.UUID) (*statistics.AccountStatistics, error)
}

// CreateDealParams carries the player-supplied terms common to all variants.
type CreateDealParams struct {
	AccountID   uuid.UUID
	ItemKind    deal.ItemKind
	AssetID     uuid.UUID
	ItemName    string
	Price       decimal.Decimal
	DownPayment decimal.Decimal
	CashBack    decimal.Decimal // promotional base, scaled by the credit tier
	TermMonths  int
	Period      string // YYYY-MM, the current simulated month
}

// CreateLeaseParams adds the lease-only terms.
type CreateLeaseParams struct {
	CreateDealParams
	ResidualValue   decimal.Decimal
	SecurityDeposit decimal.Decimal
	TradeInValue    decimal.Decimal
}

// CreateCashLoanParams pledges existing assets as collateral for a
// disbursed principal.
type CreateCashLoanParams struct {
	AccountID  uuid.UUID
	Principal  decimal.Decimal
	TermMonths int
	Collateral []uuid.UUID
	Purpose    string
	Period     string
}

// PayoffQuote is the cost of settling a deal today.
type PayoffQuote struct {
	DealID          uuid.UUID       `json:"deal_id"`
	Balance         decimal.Decimal `json:"balance"`
	AccruedInterest decimal.Decimal `json:"accrued_interest"`
	Penalty         decimal.Decimal `json:"penalty"`
	Total           decimal.Decimal `json:"total"`
	RemainingMonths int             `json:"remaining_months"`
}

// DealService defines the interface for financing contract operations.
// Creation is all-or-nothing: the down payment charge, the item ownership
// transfer and the deal registration commit or roll back together.
type DealService interface {
	CreateFinanceDeal(ctx context.Context, params CreateDealParams) (*deal.Deal, error)
	CreateLeaseDeal(ctx context.Context, params CreateLeaseParams) (*deal.Deal, error)
	CreateCashLoan(ctx context.Context, params CreateCashLoanParams) (*deal.Deal, error)

	GetDealByID(ctx context.Context, id uuid.UUID) (*deal.Deal, error)
	ListDealsByAccount(ctx context.Context, accountID uuid.UUID) ([]*deal.Deal, error)

	// MakePayment posts a manual payment; amounts covering the payoff
	// quote settle the deal, penalty included.
	MakePayment(ctx context.Context, dealID uuid.UUID, amount decimal.Decimal) (*deal.ManualPaymentResult, error)

	SetPaymentMode(ctx context.Context, dealID uuid.UUID, mode deal.PaymentMode, customAmount decimal.Decimal) (*deal.Deal, error)
	SetPaymentMultiplier(ctx context.Context, dealID uuid.UUID, multiplier decimal.Decimal) (*deal.Deal, error)

	// CancelDeal voids a deal with no payment activity, refunding the down
	// payment and returning the item.
	CancelDeal(ctx context.Context, dealID uuid.UUID) error

	PayoffQuote(ctx context.Context, dealID uuid.UUID) (*PayoffQuote, error)
}

// CreditService defines the interface for credit score operations
type CreditService interface {
	// CalculateScore computes the current score from the payment profile
	// and the account's assets, debt and cash balance.
	CalculateScore(ctx context.Context, accountID uuid.UUID) (*credit.Score, error)

	// GetProfile returns the payment-history profile together with the
	// recent payment and event windows.
	GetProfile(ctx context.Context, accountID uuid.UUID) (*credit.Profile, []*credit.PaymentRecord, []*credit.Event, error)

	// CheckEligibility gates a product behind its minimum score.
	CheckEligibility(ctx context.Context, accountID uuid.UUID, product credit.ProductType) (*credit.Decision, error)
}

// PeriodService publishes period advancement events to the processor.
type PeriodService interface {
	AdvancePeriod(ctx context.Context, period string, triggeredBy string, correlationID string) error
}
