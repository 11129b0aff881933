package shared

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrMissingPeriod = errors.New("period event is missing the period key")

// PeriodChangedEvent is the Kafka message emitted by the calendar when a new
// simulated month begins. The period processor consumes it and runs the
// monthly payment batch.
type PeriodChangedEvent struct {
	Period        string    `json:"period"` // YYYY-MM
	TriggeredBy   string    `json:"triggered_by,omitempty"`
	CorrelationID string    `json:"correlation_id"`
	Timestamp     time.Time `json:"timestamp"`
}

// Validate checks the event carries a parseable period key.
func (e *PeriodChangedEvent) Validate() error {
	if e.Period == "" {
		return ErrMissingPeriod
	}
	_, err := ParsePeriod(e.Period)
	return err
}

// Severity classifies player notifications.
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityCritical Severity = "CRITICAL"
)

// Notification is a structured, renderer-agnostic message for the player.
// The engine never formats text; it ships a message key plus parameters and
// the surrounding UI layer renders them.
type Notification struct {
	AccountID     uuid.UUID         `json:"account_id"`
	DealID        uuid.UUID         `json:"deal_id,omitempty"`
	Severity      Severity          `json:"severity"`
	MessageKey    string            `json:"message_key"`
	Params        map[string]string `json:"params,omitempty"`
	CorrelationID string            `json:"correlation_id,omitempty"`
	Timestamp     time.Time         `json:"timestamp"`
}

// Notification message keys produced by the engine.
const (
	MsgPaymentCollected    = "finance.payment.collected"
	MsgPaymentPartial      = "finance.payment.partial"
	MsgPaymentMissed       = "finance.payment.missed"
	MsgFinalWarning        = "finance.payment.final_warning"
	MsgDealDefaulted       = "finance.deal.defaulted"
	MsgAssetRepossessed    = "finance.asset.repossessed"
	MsgLandSeized          = "finance.land.seized"
	MsgDealPaidOff         = "finance.deal.paid_off"
	MsgLeaseRenewalOffer   = "finance.lease.renewal_offer"
	MsgDealCreated         = "finance.deal.created"
	MsgDealCancelled       = "finance.deal.cancelled"
	MsgCreditTierChanged   = "finance.credit.tier_changed"
	MsgManualPaymentPosted = "finance.payment.manual"
)

// TransferReason tags the account balance movement behind a notification.
type TransferReason string

const (
	ReasonDownPayment     TransferReason = "DOWN_PAYMENT"
	ReasonMonthlyPayment  TransferReason = "MONTHLY_PAYMENT"
	ReasonManualPayment   TransferReason = "MANUAL_PAYMENT"
	ReasonPayoffPayment   TransferReason = "PAYOFF_PAYMENT"
	ReasonLoanDisbursal   TransferReason = "LOAN_DISBURSAL"
	ReasonSecurityDeposit TransferReason = "SECURITY_DEPOSIT"
)
