package deal

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repository defines deal persistence operations. Active-deal queries order
// by creation time so the batch visits an account's deals in registration
// order.
type Repository interface {
	Create(ctx context.Context, d *Deal) error
	GetByID(ctx context.Context, id uuid.UUID) (*Deal, error)
	Update(ctx context.Context, d *Deal) error
	ListByAccount(ctx context.Context, accountID uuid.UUID) ([]*Deal, error)
	ListActiveByAccount(ctx context.Context, accountID uuid.UUID) ([]*Deal, error)

	// ListAccountsWithActiveDeals returns the distinct account ids holding at
	// least one active deal, for the monthly batch fan-out.
	ListAccountsWithActiveDeals(ctx context.Context) ([]uuid.UUID, error)

	// SumActiveBalances totals outstanding debt (balance plus carried
	// interest) for an account, in minor units.
	SumActiveBalances(ctx context.Context, accountID uuid.UUID) (int64, error)

	WithTx(tx pgx.Tx) Repository
}

// ErrDealNotFound indicates a missing deal.
type ErrDealNotFound struct {
	DealID uuid.UUID
}

func (e ErrDealNotFound) Error() string {
	return "deal not found: " + e.DealID.String()
}
