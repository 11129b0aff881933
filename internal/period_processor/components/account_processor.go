// Package components holds the building blocks of the monthly batch: the
// per-account processor, the payment collector and the missed-payment
// escalator. Each piece works inside the database transaction opened by the
// account processor, so a whole account's month commits or rolls back as one.
package components

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/agrocredit-engine/internal/domain/account"
	"github.com/agrocredit-engine/internal/domain/deal"
	"github.com/agrocredit-engine/internal/domain/shared"
	"github.com/agrocredit-engine/internal/period_processor/service"
	"github.com/agrocredit-engine/internal/platform/persistence"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// txBeginner opens the per-account transaction. Satisfied by *pgxpool.Pool.
type txBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// AccountProcessorImpl implements the service.AccountProcessor interface
type AccountProcessorImpl struct {
	pool        txBeginner
	accountRepo account.Repository
	dealRepo    deal.Repository
	collector   service.PaymentCollector
	escalator   service.Escalator
	logger      *slog.Logger
}

// NewAccountProcessor creates a new AccountProcessorImpl
func NewAccountProcessor(
	pgDB *persistence.PostgresDB,
	accountRepo account.Repository,
	dealRepo deal.Repository,
	collector service.PaymentCollector,
	escalator service.Escalator,
	logger *slog.Logger,
) service.AccountProcessor {
	return &AccountProcessorImpl{
		pool:        pgDB.Pool(),
		accountRepo: accountRepo,
		dealRepo:    dealRepo,
		collector:   collector,
		escalator:   escalator,
		logger:      logger,
	}
}

// ProcessAccount charges one account for the period inside a single database
// transaction: lock the balance, snapshot the active deals, collect each
// charge and escalate skips. Deals already stamped with this period are
// passed over, so a redelivered event never double-charges.
func (p *AccountProcessorImpl) ProcessAccount(ctx context.Context, accountID uuid.UUID, period shared.Period, correlationID string) error {
	logger := p.logger
	if correlationID != "" {
		logger = p.logger.With("correlation_id", correlationID)
	}

	var tx pgx.Tx
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		logger.Error("Failed to begin database transaction", "account_id", accountID.String(), "error", err)
		return fmt.Errorf("failed to begin DB transaction for account %s: %w", accountID.String(), err)
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Panic recovered, rolling back transaction", "panic", r, "account_id", accountID.String())
			_ = tx.Rollback(ctx)
			panic(r) // Re-panic
		} else if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				logger.Error("Failed to rollback transaction after error", "rollback_error", rbErr, "original_error", err, "account_id", accountID.String())
			}
		}
	}()

	accountRepoTx := p.accountRepo.WithTx(tx)
	lockedAccount, err := accountRepoTx.LockForUpdate(ctx, accountID)
	if err != nil {
		return err
	}

	// Snapshot the active deals before charging anything. A deal marked
	// paid off or defaulted mid-loop stays in the snapshot but mutates only
	// its own row, so the walk stays stable.
	deals, err := p.dealRepo.WithTx(tx).ListActiveByAccount(ctx, accountID)
	if err != nil {
		return err
	}

	for _, d := range deals {
		if d.LastProcessedPeriod == period.Key() {
			logger.Debug("Deal already processed for period, skipping",
				"deal_id", d.ID.String(),
				"period", period.Key(),
			)
			continue
		}

		var outcome *deal.PaymentOutcome
		outcome, err = p.collector.Collect(ctx, tx, lockedAccount, d, period, correlationID)
		if err != nil {
			return err
		}

		if outcome.Category == deal.OutcomeSkipped {
			if err = p.escalator.Escalate(ctx, tx, lockedAccount, d, outcome, period, correlationID); err != nil {
				return err
			}
		}
	}

	// Persist the balance once for the whole account.
	if err = accountRepoTx.Update(ctx, lockedAccount); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		logger.Error("Failed to commit database transaction", "account_id", accountID.String(), "error", err)
		return fmt.Errorf("failed to commit DB transaction for account %s: %w", accountID.String(), err)
	}

	logger.Info("Account processed for period",
		"account_id", accountID.String(),
		"period", period.Key(),
		"deals", len(deals),
	)
	return nil
}
