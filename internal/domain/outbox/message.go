// Package outbox implements the transactional outbox used to ship credit
// history and player notifications out of the payment transaction. Records
// are written in the same Postgres transaction that mutates a deal, then a
// poller publishes them to the Mongo history store and the notification
// topic.
package outbox

import (
	"encoding/json"
	"time"

	"github.com/agrocredit-engine/internal/domain/credit"
	"github.com/agrocredit-engine/internal/domain/shared"
	"github.com/google/uuid"
)

// Status defines message publishing states
type Status string

const (
	StatusPending         Status = "PENDING"
	StatusProcessed       Status = "PROCESSED"
	StatusFailedToPublish Status = "FAILED_TO_PUBLISH"
)

// CreditRecord is the outbox payload: any combination of a payment history
// entry, a credit event and a player notification produced by one
// state-changing outcome.
type CreditRecord struct {
	Payment      *credit.PaymentRecord `json:"payment,omitempty"`
	Event        *credit.Event         `json:"event,omitempty"`
	Notification *shared.Notification  `json:"notification,omitempty"`
}

// Message stores one credit record for reliable publishing
type Message struct {
	ID            int64           `json:"id"`
	AccountID     uuid.UUID       `json:"account_id"`
	DealID        uuid.UUID       `json:"deal_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
	Status        Status          `json:"status"`
	Attempts      int             `json:"attempts"`
	CreatedAt     time.Time       `json:"created_at"`
	LastAttemptAt *time.Time      `json:"last_attempt_at,omitempty"`
}

// NewMessage wraps a credit record for the outbox.
func NewMessage(accountID, dealID uuid.UUID, record *CreditRecord) (*Message, error) {
	payload, err := json.Marshal(record)
	if err != nil {
		return nil, err
	}

	return &Message{
		AccountID: accountID,
		DealID:    dealID,
		Payload:   payload,
		Status:    StatusPending,
		Attempts:  0,
		CreatedAt: time.Now(),
	}, nil
}

func (m *Message) IncrementAttempts() {
	m.Attempts++
	now := time.Now()
	m.LastAttemptAt = &now
}

func (m *Message) MarkAsProcessed() {
	m.Status = StatusProcessed
	now := time.Now()
	m.LastAttemptAt = &now
}

func (m *Message) MarkAsFailed() {
	m.Status = StatusFailedToPublish
	now := time.Now()
	m.LastAttemptAt = &now
}

// GetCreditRecord extracts the credit record from the payload
func (m *Message) GetCreditRecord() (*CreditRecord, error) {
	var record CreditRecord
	if err := json.Unmarshal(m.Payload, &record); err != nil {
		return nil, err
	}
	return &record, nil
}
