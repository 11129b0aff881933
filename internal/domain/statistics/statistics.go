// Package statistics keeps the per-account financing counters exposed for
// UI and report consumption.
package statistics

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// AccountStatistics aggregates an account's financing activity.
type AccountStatistics struct {
	AccountID         uuid.UUID       `json:"account_id"`
	DealsCreated      int             `json:"deals_created"`
	DealsCompleted    int             `json:"deals_completed"`
	DealsDefaulted    int             `json:"deals_defaulted"`
	TotalFinanced     decimal.Decimal `json:"total_financed"`
	TotalInterestPaid decimal.Decimal `json:"total_interest_paid"`
	PaymentsProcessed int             `json:"payments_processed"`
	PaymentsMissed    int             `json:"payments_missed"`
	Repossessions     int             `json:"repossessions"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// Delta is a set of counter increments folded into an account's statistics
// in one upsert. Zero fields leave their counters untouched.
type Delta struct {
	DealsCreated      int
	DealsCompleted    int
	DealsDefaulted    int
	TotalFinanced     decimal.Decimal
	TotalInterestPaid decimal.Decimal
	PaymentsProcessed int
	PaymentsMissed    int
	Repossessions     int
}

// Repository persists the counters. Apply is an atomic upsert-increment.
type Repository interface {
	GetByAccountID(ctx context.Context, accountID uuid.UUID) (*AccountStatistics, error)
	Apply(ctx context.Context, accountID uuid.UUID, delta Delta) error
	WithTx(tx pgx.Tx) Repository
}
