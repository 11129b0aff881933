package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/agrocredit-engine/internal/domain/credit"
	"github.com/agrocredit-engine/internal/platform/persistence"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// CreditProfileRepository implements credit.ProfileRepository for PostgreSQL
type CreditProfileRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewCreditProfileRepository creates a new PostgreSQL credit profile repository
func NewCreditProfileRepository(logger *slog.Logger, db *persistence.PostgresDB) credit.ProfileRepository {
	return &CreditProfileRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction for atomic operations
func (r *CreditProfileRepository) WithTx(tx pgx.Tx) credit.ProfileRepository {
	return &CreditProfileRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// GetByAccountID retrieves an account's payment-history profile.
// Returns (nil, nil) when the account has no profile yet; profiles are
// created lazily on first recorded payment.
func (r *CreditProfileRepository) GetByAccountID(ctx context.Context, accountID uuid.UUID) (*credit.Profile, error) {
	query := `
		SELECT account_id, total_payments, on_time_payments, late_payments, missed_payments,
			current_streak, longest_streak, last_miss_ordinal, event_adjustment,
			version, created_at, updated_at
		FROM credit_profiles
		WHERE account_id = $1
	`

	var p credit.Profile
	err := r.querier.QueryRow(ctx, query, accountID).Scan(
		&p.AccountID,
		&p.TotalPayments,
		&p.OnTimePayments,
		&p.LatePayments,
		&p.MissedPayments,
		&p.CurrentStreak,
		&p.LongestStreak,
		&p.LastMissOrdinal,
		&p.EventAdjustment,
		&p.Version,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error("Failed to get credit profile", "account_id", accountID.String(), "error", err)
		return nil, fmt.Errorf("failed to get credit profile: %w", err)
	}

	return &p, nil
}

// Upsert persists a profile, inserting on first write and replacing the
// stored aggregates on subsequent ones.
func (r *CreditProfileRepository) Upsert(ctx context.Context, p *credit.Profile) error {
	query := `
		INSERT INTO credit_profiles (account_id, total_payments, on_time_payments, late_payments,
			missed_payments, current_streak, longest_streak, last_miss_ordinal, event_adjustment,
			version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (account_id) DO UPDATE SET
			total_payments = EXCLUDED.total_payments,
			on_time_payments = EXCLUDED.on_time_payments,
			late_payments = EXCLUDED.late_payments,
			missed_payments = EXCLUDED.missed_payments,
			current_streak = EXCLUDED.current_streak,
			longest_streak = EXCLUDED.longest_streak,
			last_miss_ordinal = EXCLUDED.last_miss_ordinal,
			event_adjustment = EXCLUDED.event_adjustment,
			version = credit_profiles.version + 1,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.querier.Exec(ctx, query,
		p.AccountID,
		p.TotalPayments,
		p.OnTimePayments,
		p.LatePayments,
		p.MissedPayments,
		p.CurrentStreak,
		p.LongestStreak,
		p.LastMissOrdinal,
		p.EventAdjustment,
		p.Version,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to upsert credit profile", "account_id", p.AccountID.String(), "error", err)
		return fmt.Errorf("failed to upsert credit profile: %w", err)
	}

	return nil
}
