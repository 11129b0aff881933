package outbox_poller

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/agrocredit-engine/internal/domain/credit"
	"github.com/agrocredit-engine/internal/domain/outbox"
	"github.com/agrocredit-engine/internal/platform/messaging/producers"
)

// RecordPublisher delivers an outbox message to its downstream sinks.
type RecordPublisher interface {
	PublishRecord(ctx context.Context, message *outbox.Message) error
}

// RecordPublisherImpl fans one credit record out to the history store and,
// when a player notification is attached, to the notification topic. The
// history writes are idempotent enough to retry: re-publishing after a
// partial failure duplicates at worst one bounded-log entry, never a
// balance.
type RecordPublisherImpl struct {
	outboxRepo  outbox.Repository
	historyRepo credit.HistoryRepository
	notifier    producers.MessagePublisher
	logger      *slog.Logger
}

// NewRecordPublisher creates a new publisher
func NewRecordPublisher(
	outboxRepo outbox.Repository,
	historyRepo credit.HistoryRepository,
	notifier producers.MessagePublisher,
	logger *slog.Logger,
) RecordPublisher {
	return &RecordPublisherImpl{
		outboxRepo:  outboxRepo,
		historyRepo: historyRepo,
		notifier:    notifier,
		logger:      logger,
	}
}

// PublishRecord unpacks and delivers a message's payment record, credit
// event and notification, then marks the message processed.
func (p *RecordPublisherImpl) PublishRecord(ctx context.Context, message *outbox.Message) error {
	record, err := message.GetCreditRecord()
	if err != nil {
		p.logger.Error("Failed to unmarshal credit record from outbox payload",
			"outbox_id", message.ID, "account_id", message.AccountID, "error", err,
		)
		if updateErr := p.outboxRepo.UpdateStatus(ctx, message.ID, outbox.StatusFailedToPublish); updateErr != nil {
			p.logger.Error("Also failed to update outbox status to FAILED_TO_PUBLISH after unmarshal error", "outbox_id", message.ID, "update_error", updateErr)
		}
		return fmt.Errorf("unmarshal payload for outbox %d failed: %w", message.ID, err)
	}

	// Add correlation ID to logger
	logger := p.logger
	if record.Notification != nil && record.Notification.CorrelationID != "" {
		logger = p.logger.With("correlation_id", record.Notification.CorrelationID)
	}

	if record.Payment != nil {
		if err := p.historyRepo.AppendPayment(ctx, record.Payment); err != nil {
			logger.Error("Failed to append payment record to history", "outbox_id", message.ID, "error", err)
			return fmt.Errorf("failed to append payment record for outbox %d: %w", message.ID, err)
		}
	}

	if record.Event != nil {
		if err := p.historyRepo.AppendEvent(ctx, record.Event); err != nil {
			logger.Error("Failed to append credit event to history", "outbox_id", message.ID, "error", err)
			return fmt.Errorf("failed to append credit event for outbox %d: %w", message.ID, err)
		}
	}

	if record.Notification != nil {
		key := record.Notification.AccountID.String()
		if err := p.notifier.Publish(ctx, key, record.Notification); err != nil {
			logger.Error("Failed to publish notification", "outbox_id", message.ID, "message_key", record.Notification.MessageKey, "error", err)
			return fmt.Errorf("failed to publish notification for outbox %d: %w", message.ID, err)
		}
	}

	// Mark outbox message as processed
	if err := p.outboxRepo.UpdateStatus(ctx, message.ID, outbox.StatusProcessed); err != nil {
		logger.Error("Failed to update outbox message status to PROCESSED",
			"outbox_id", message.ID, "account_id", message.AccountID, "error", err,
		)
		return fmt.Errorf("record for account %s published, but failed to mark outbox %d as PROCESSED: %w", message.AccountID, message.ID, err)
	}

	logger.Info("Outbox message successfully processed and marked as PROCESSED", "outbox_id", message.ID, "account_id", message.AccountID)
	return nil
}
