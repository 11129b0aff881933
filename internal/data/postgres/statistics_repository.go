package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/agrocredit-engine/internal/domain/statistics"
	"github.com/agrocredit-engine/internal/platform/persistence"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// StatisticsRepository implements statistics.Repository for PostgreSQL
type StatisticsRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewStatisticsRepository creates a new PostgreSQL statistics repository
func NewStatisticsRepository(logger *slog.Logger, db *persistence.PostgresDB) statistics.Repository {
	return &StatisticsRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction for atomic operations
func (r *StatisticsRepository) WithTx(tx pgx.Tx) statistics.Repository {
	return &StatisticsRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// GetByAccountID retrieves an account's financing counters. Accounts with no
// recorded activity get a zeroed snapshot.
func (r *StatisticsRepository) GetByAccountID(ctx context.Context, accountID uuid.UUID) (*statistics.AccountStatistics, error) {
	query := `
		SELECT account_id, deals_created, deals_completed, deals_defaulted,
			total_financed_cents, total_interest_paid_cents,
			payments_processed, payments_missed, repossessions, updated_at
		FROM account_statistics
		WHERE account_id = $1
	`

	var stats statistics.AccountStatistics
	var financedCents, interestCents int64
	err := r.querier.QueryRow(ctx, query, accountID).Scan(
		&stats.AccountID,
		&stats.DealsCreated,
		&stats.DealsCompleted,
		&stats.DealsDefaulted,
		&financedCents,
		&interestCents,
		&stats.PaymentsProcessed,
		&stats.PaymentsMissed,
		&stats.Repossessions,
		&stats.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &statistics.AccountStatistics{AccountID: accountID}, nil
		}
		r.logger.Error("Failed to get account statistics", "account_id", accountID.String(), "error", err)
		return nil, fmt.Errorf("failed to get account statistics: %w", err)
	}

	stats.TotalFinanced = fromCents(financedCents)
	stats.TotalInterestPaid = fromCents(interestCents)
	return &stats, nil
}

// Apply folds a delta into the account's counters in one upsert
func (r *StatisticsRepository) Apply(ctx context.Context, accountID uuid.UUID, delta statistics.Delta) error {
	query := `
		INSERT INTO account_statistics (account_id, deals_created, deals_completed, deals_defaulted,
			total_financed_cents, total_interest_paid_cents,
			payments_processed, payments_missed, repossessions, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		ON CONFLICT (account_id) DO UPDATE SET
			deals_created = account_statistics.deals_created + EXCLUDED.deals_created,
			deals_completed = account_statistics.deals_completed + EXCLUDED.deals_completed,
			deals_defaulted = account_statistics.deals_defaulted + EXCLUDED.deals_defaulted,
			total_financed_cents = account_statistics.total_financed_cents + EXCLUDED.total_financed_cents,
			total_interest_paid_cents = account_statistics.total_interest_paid_cents + EXCLUDED.total_interest_paid_cents,
			payments_processed = account_statistics.payments_processed + EXCLUDED.payments_processed,
			payments_missed = account_statistics.payments_missed + EXCLUDED.payments_missed,
			repossessions = account_statistics.repossessions + EXCLUDED.repossessions,
			updated_at = NOW()
	`

	_, err := r.querier.Exec(ctx, query,
		accountID,
		delta.DealsCreated,
		delta.DealsCompleted,
		delta.DealsDefaulted,
		toCents(delta.TotalFinanced),
		toCents(delta.TotalInterestPaid),
		delta.PaymentsProcessed,
		delta.PaymentsMissed,
		delta.Repossessions,
	)
	if err != nil {
		r.logger.Error("Failed to apply statistics delta", "account_id", accountID.String(), "error", err)
		return fmt.Errorf("failed to apply statistics delta: %w", err)
	}

	return nil
}
