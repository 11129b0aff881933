package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/agrocredit-engine/internal/domain/asset"
	"github.com/agrocredit-engine/internal/platform/persistence"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// AssetRepository implements the asset.Repository interface for PostgreSQL
type AssetRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewAssetRepository creates a new PostgreSQL asset repository
func NewAssetRepository(logger *slog.Logger, db *persistence.PostgresDB) asset.Repository {
	return &AssetRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction for atomic operations
func (r *AssetRepository) WithTx(tx pgx.Tx) asset.Repository {
	return &AssetRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Create registers a new asset
func (r *AssetRepository) Create(ctx context.Context, a *asset.Asset) error {
	query := `
		INSERT INTO assets (id, owner_id, kind, name, value_cents, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.querier.Exec(ctx, query,
		a.ID,
		a.OwnerID,
		a.Kind,
		a.Name,
		toCents(a.Value),
		a.CreatedAt,
		a.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create asset", "asset_id", a.ID.String(), "error", err)
		return fmt.Errorf("failed to create asset: %w", err)
	}

	return nil
}

func scanAsset(row pgx.Row) (*asset.Asset, error) {
	var a asset.Asset
	var valueCents int64
	err := row.Scan(
		&a.ID,
		&a.OwnerID,
		&a.Kind,
		&a.Name,
		&valueCents,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.Value = fromCents(valueCents)
	return &a, nil
}

// FindByID looks an asset up by id. Returns (nil, nil) when the asset no
// longer exists; seizure callers record the drift instead of failing.
func (r *AssetRepository) FindByID(ctx context.Context, id uuid.UUID) (*asset.Asset, error) {
	query := `
		SELECT id, owner_id, kind, name, value_cents, created_at, updated_at
		FROM assets
		WHERE id = $1
	`

	a, err := scanAsset(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error("Failed to find asset", "asset_id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to find asset: %w", err)
	}

	return a, nil
}

// ListByOwner retrieves all assets registered to an owner
func (r *AssetRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*asset.Asset, error) {
	query := `
		SELECT id, owner_id, kind, name, value_cents, created_at, updated_at
		FROM assets
		WHERE owner_id = $1
		ORDER BY created_at ASC
	`

	rows, err := r.querier.Query(ctx, query, ownerID)
	if err != nil {
		r.logger.Error("Failed to list assets by owner", "owner_id", ownerID.String(), "error", err)
		return nil, fmt.Errorf("failed to list assets by owner: %w", err)
	}
	defer rows.Close()

	var assets []*asset.Asset
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			r.logger.Error("Failed to scan asset row", "error", err)
			return nil, fmt.Errorf("failed to scan asset row: %w", err)
		}
		assets = append(assets, a)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("Error iterating over asset rows", "error", err)
		return nil, fmt.Errorf("error iterating over asset rows: %w", err)
	}

	return assets, nil
}

// SumValuesByOwner totals an owner's holdings in cents
func (r *AssetRepository) SumValuesByOwner(ctx context.Context, ownerID uuid.UUID) (int64, error) {
	query := `
		SELECT COALESCE(SUM(value_cents), 0)
		FROM assets
		WHERE owner_id = $1
	`

	var total int64
	if err := r.querier.QueryRow(ctx, query, ownerID).Scan(&total); err != nil {
		r.logger.Error("Failed to sum asset values", "owner_id", ownerID.String(), "error", err)
		return 0, fmt.Errorf("failed to sum asset values: %w", err)
	}

	return total, nil
}

// SetOwner transfers ownership; a nil owner reverts the asset to unowned
func (r *AssetRepository) SetOwner(ctx context.Context, id uuid.UUID, ownerID *uuid.UUID) error {
	query := `
		UPDATE assets
		SET owner_id = $1, updated_at = NOW()
		WHERE id = $2
	`

	result, err := r.querier.Exec(ctx, query, ownerID, id)
	if err != nil {
		r.logger.Error("Failed to set asset owner", "asset_id", id.String(), "error", err)
		return fmt.Errorf("failed to set asset owner: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("asset not found: %s", id.String())
	}

	return nil
}

// Remove deletes the asset from the registry
func (r *AssetRepository) Remove(ctx context.Context, id uuid.UUID) error {
	query := `
		DELETE FROM assets
		WHERE id = $1
	`

	result, err := r.querier.Exec(ctx, query, id)
	if err != nil {
		r.logger.Error("Failed to remove asset", "asset_id", id.String(), "error", err)
		return fmt.Errorf("failed to remove asset: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("asset not found: %s", id.String())
	}

	return nil
}
