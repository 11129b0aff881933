package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/agrocredit-engine/internal/domain/shared"
	"github.com/agrocredit-engine/internal/platform/messaging/producers"
)

// PeriodServiceImpl implements the PeriodService interface
type PeriodServiceImpl struct {
	producer producers.MessagePublisher
	logger   *slog.Logger
}

// NewPeriodService creates a new period service
func NewPeriodService(logger *slog.Logger, producer producers.MessagePublisher) PeriodService {
	return &PeriodServiceImpl{
		producer: producer,
		logger:   logger,
	}
}

// AdvancePeriod publishes a period change to the processor. The publish is
// synchronous; a confirmed request means the batch will run.
func (s *PeriodServiceImpl) AdvancePeriod(ctx context.Context, period string, triggeredBy string, correlationID string) error {
	event := &shared.PeriodChangedEvent{
		Period:        period,
		TriggeredBy:   triggeredBy,
		CorrelationID: correlationID,
		Timestamp:     time.Now().UTC(),
	}
	if err := event.Validate(); err != nil {
		return err
	}

	if err := s.producer.Publish(ctx, event.Period, event); err != nil {
		s.logger.Error("Failed to publish period change",
			"period", event.Period,
			"error", err,
		)
		return err
	}

	s.logger.Info("Period change published",
		"period", event.Period,
		"triggered_by", triggeredBy,
	)
	return nil
}
