package credit

import (
	"time"

	"github.com/google/uuid"
)

// EventType names a scored financial event. Deltas are asymmetric on
// purpose: credit is slow to build and fast to lose, so a single missed
// payment outweighs many on-time ones.
type EventType string

const (
	EventPaymentStandard EventType = "PAYMENT_STANDARD"
	EventPaymentExtra    EventType = "PAYMENT_EXTRA"
	EventPaymentMinimum  EventType = "PAYMENT_MINIMUM"
	EventPaymentPartial  EventType = "PAYMENT_PARTIAL"
	EventPaymentSkipped  EventType = "PAYMENT_SKIPPED"
	EventPaymentMissed   EventType = "PAYMENT_MISSED"
	EventDealPaidOff     EventType = "DEAL_PAID_OFF"
	EventLoanTaken       EventType = "LOAN_TAKEN"
	EventDealDefaulted   EventType = "DEAL_DEFAULTED"
)

var eventDeltas = map[EventType]int{
	EventPaymentStandard: 3,
	EventPaymentExtra:    5,
	EventPaymentMinimum:  1,
	EventPaymentPartial:  -10,
	EventPaymentSkipped:  -15,
	EventPaymentMissed:   -40,
	EventDealPaidOff:     25,
	EventLoanTaken:       -5,
	EventDealDefaulted:   -80,
}

// Delta returns the score impact of an event type. Unknown types score zero;
// callers log a warning and carry on rather than aborting a load.
func (t EventType) Delta() (int, bool) {
	delta, ok := eventDeltas[t]
	return delta, ok
}

// Event is one entry in the append-only per-account credit event ledger.
// The ledger is capped; oldest entries are evicted past EventWindowCap.
type Event struct {
	AccountID  uuid.UUID `json:"account_id" bson:"account_id"`
	DealID     uuid.UUID `json:"deal_id,omitempty" bson:"deal_id,omitempty"`
	Type       EventType `json:"type" bson:"type"`
	Delta      int       `json:"delta" bson:"delta"`
	Details    string    `json:"details,omitempty" bson:"details,omitempty"`
	Period     string    `json:"period" bson:"period"`
	RecordedAt time.Time `json:"recorded_at" bson:"recorded_at"`
}

// NewEvent builds a ledger entry with the type's fixed delta. Unknown types
// produce a zero-delta entry.
func NewEvent(accountID, dealID uuid.UUID, eventType EventType, details, period string) *Event {
	delta, _ := eventType.Delta()
	return &Event{
		AccountID:  accountID,
		DealID:     dealID,
		Type:       eventType,
		Delta:      delta,
		Details:    details,
		Period:     period,
		RecordedAt: time.Now(),
	}
}
