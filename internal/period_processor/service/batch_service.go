package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/agrocredit-engine/internal/domain/deal"
	"github.com/agrocredit-engine/internal/domain/shared"
)

type BatchServiceImpl struct {
	dealRepo         deal.Repository
	accountProcessor AccountProcessor
	logger           *slog.Logger
}

func NewBatchService(
	dealRepo deal.Repository,
	accountProcessor AccountProcessor,
	logger *slog.Logger,
) PeriodService {
	return &BatchServiceImpl{
		dealRepo:         dealRepo,
		accountProcessor: accountProcessor,
		logger:           logger,
	}
}

// ProcessPeriod fans the monthly batch out over every account holding at
// least one active deal. Accounts are independent: one account's failure is
// logged and counted but never blocks the rest of the batch.
func (s *BatchServiceImpl) ProcessPeriod(ctx context.Context, event *shared.PeriodChangedEvent) error {
	logger := s.logger
	if event.CorrelationID != "" {
		logger = s.logger.With("correlation_id", event.CorrelationID)
	}

	if err := event.Validate(); err != nil {
		logger.Error("Rejecting invalid period event", "period", event.Period, "error", err)
		return err
	}
	period, err := shared.ParsePeriod(event.Period)
	if err != nil {
		return err
	}

	accountIDs, err := s.dealRepo.ListAccountsWithActiveDeals(ctx)
	if err != nil {
		return fmt.Errorf("failed to list accounts for period %s: %w", period.Key(), err)
	}

	logger.Info("Starting monthly batch",
		"period", period.Key(),
		"accounts", len(accountIDs),
		"triggered_by", event.TriggeredBy,
	)

	var wg sync.WaitGroup
	var failed atomic.Int64
	for _, accountID := range accountIDs {
		accountID := accountID
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.accountProcessor.ProcessAccount(ctx, accountID, period, event.CorrelationID); err != nil {
				failed.Add(1)
				logger.Error("Failed to process account for period",
					"account_id", accountID.String(),
					"period", period.Key(),
					"error", err,
				)
			}
		}()
	}
	wg.Wait()

	if n := failed.Load(); n > 0 {
		// Failed accounts are retried on redelivery; processed deals are
		// guarded by their last processed period and will not double-charge.
		return fmt.Errorf("monthly batch for period %s finished with %d failed accounts", period.Key(), n)
	}

	logger.Info("Monthly batch completed", "period", period.Key(), "accounts", len(accountIDs))
	return nil
}
