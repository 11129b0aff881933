package components

import (
	"log/slog"

	"github.com/agrocredit-engine/internal/config"
	"github.com/agrocredit-engine/internal/domain/account"
	"github.com/agrocredit-engine/internal/domain/asset"
	"github.com/agrocredit-engine/internal/domain/credit"
	"github.com/agrocredit-engine/internal/domain/deal"
	"github.com/agrocredit-engine/internal/domain/outbox"
	"github.com/agrocredit-engine/internal/domain/statistics"
	"github.com/agrocredit-engine/internal/period_processor/service"
	"github.com/agrocredit-engine/internal/platform/persistence"
)

// CreateBatchService creates a new PeriodService with all its dependencies.
// The returned processor is the one driving the batch, so callers can shut
// down its worker pool on exit.
func CreateBatchService(
	pgDB *persistence.PostgresDB,
	accountRepo account.Repository,
	dealRepo deal.Repository,
	assetRepo asset.Repository,
	profileRepo credit.ProfileRepository,
	statsRepo statistics.Repository,
	outboxRepo outbox.Repository,
	logger *slog.Logger,
	cfg *config.Config,
) (service.PeriodService, service.AccountProcessor) {
	collector := NewPaymentCollector(dealRepo, profileRepo, statsRepo, outboxRepo, logger)
	escalator := NewEscalator(dealRepo, assetRepo, profileRepo, statsRepo, outboxRepo, cfg.Financing.StrikeLimit, logger)

	baseProcessor := NewAccountProcessor(
		pgDB,
		accountRepo,
		dealRepo,
		collector,
		escalator,
		logger,
	)

	pooledProcessor, err := service.NewWorkerPoolAccountProcessor(
		baseProcessor,
		service.WorkerPoolConfig{
			Size: cfg.WorkerPool.Size,
		},
		logger.With("component", "worker_pool"),
	)

	if err != nil {
		logger.Error("Failed to create worker pool, processing accounts without it", "error", err)
		return service.NewBatchService(dealRepo, baseProcessor, logger), baseProcessor
	}

	logger.Info("Created pooled account processor", "pool_size", cfg.WorkerPool.Size)
	return service.NewBatchService(dealRepo, pooledProcessor, logger), pooledProcessor
}
