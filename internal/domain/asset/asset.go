// Package asset models the game's registry of pledgeable property:
// vehicles, equipment and land parcels. The financing engine consults it to
// transfer ownership at origination and to seize collateral on default.
package asset

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

var (
	ErrEmptyName    = errors.New("asset name cannot be empty")
	ErrInvalidValue = errors.New("asset value must be non-negative")
)

// Kind classifies an asset.
type Kind string

const (
	KindVehicle   Kind = "VEHICLE"
	KindEquipment Kind = "EQUIPMENT"
	KindLand      Kind = "LAND"
)

// Asset is one registered piece of property. OwnerID is nil while unowned;
// seized land reverts to unowned rather than being destroyed.
type Asset struct {
	ID        uuid.UUID       `json:"id"`
	OwnerID   *uuid.UUID      `json:"owner_id,omitempty"`
	Kind      Kind            `json:"kind"`
	Name      string          `json:"name"`
	Value     decimal.Decimal `json:"value"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// New registers an asset, initially unowned.
func New(kind Kind, name string, value decimal.Decimal) (*Asset, error) {
	if name == "" {
		return nil, ErrEmptyName
	}
	if value.IsNegative() {
		return nil, ErrInvalidValue
	}
	now := time.Now()
	return &Asset{
		ID:        uuid.New(),
		Kind:      kind,
		Name:      name,
		Value:     value,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Repository defines asset registry operations. FindByID returns (nil, nil)
// when the asset cannot be located, so seizure history can record the drift
// instead of failing.
type Repository interface {
	Create(ctx context.Context, a *Asset) error
	FindByID(ctx context.Context, id uuid.UUID) (*Asset, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*Asset, error)

	// SumValuesByOwner totals an owner's holdings in minor units, for the
	// credit score's asset factor.
	SumValuesByOwner(ctx context.Context, ownerID uuid.UUID) (int64, error)

	// SetOwner transfers ownership; a nil owner reverts the asset to unowned.
	SetOwner(ctx context.Context, id uuid.UUID, ownerID *uuid.UUID) error

	// Remove deletes the asset from the registry (repossession at zero payout).
	Remove(ctx context.Context, id uuid.UUID) error

	WithTx(tx pgx.Tx) Repository
}
