package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/agrocredit-engine/internal/domain/shared"
	"github.com/agrocredit-engine/internal/period_processor/service"
	"github.com/agrocredit-engine/internal/platform/messaging/producers"
)

// PeriodEventHandler handles incoming period change messages from Kafka
type PeriodEventHandler struct {
	periodService service.PeriodService
	producer      producers.DeadLetterPublisher
	logger        *slog.Logger
}

// NewPeriodEventHandler creates a new handler
func NewPeriodEventHandler(
	logger *slog.Logger,
	periodService service.PeriodService,
	producer producers.DeadLetterPublisher,
) *PeriodEventHandler {
	return &PeriodEventHandler{
		periodService: periodService,
		producer:      producer,
		logger:        logger,
	}
}

// HandleMessage processes Kafka messages
func (h *PeriodEventHandler) HandleMessage(ctx context.Context, key []byte, value []byte) error {
	var event shared.PeriodChangedEvent
	if err := json.Unmarshal(value, &event); err != nil {
		unmarshalErrorMsg := "Failed to unmarshal period event from Kafka message"
		h.logger.Error(unmarshalErrorMsg,
			"error", err,
			"message_key", string(key),
		)

		// Send to DLQ if available
		if h.producer != nil {
			dlqReason := fmt.Sprintf("%s: %s", unmarshalErrorMsg, err.Error())
			if dlqErr := h.producer.PublishToDLQ(ctx, string(key), value, dlqReason); dlqErr != nil {
				h.logger.Error("Failed to publish message to DLQ after unmarshal error",
					"dlq_error", dlqErr,
					"original_error", err,
					"message_key", string(key),
				)
				// Return original error if DLQ fails
			} else {
				h.logger.Info("Successfully published unprocessable message to DLQ", "message_key", string(key), "reason", dlqReason)
				// Message handled, commit offset
				return nil
			}
		}
		// Allow Kafka retries
		return fmt.Errorf("failed to unmarshal message value: %w", err)
	}

	// Add correlation ID to logger
	logger := h.logger
	if event.CorrelationID != "" {
		logger = h.logger.With("correlation_id", event.CorrelationID)
	}

	logger.Info("Received period change for processing",
		"period", event.Period,
		"triggered_by", event.TriggeredBy,
	)

	if err := h.periodService.ProcessPeriod(ctx, &event); err != nil {
		logger.Error("Failed to process period",
			"period", event.Period,
			"error", err,
		)
		return fmt.Errorf("processing period %s failed: %w", event.Period, err)
	}

	logger.Info("Successfully processed period", "period", event.Period)
	return nil // Success, commit offset
}
