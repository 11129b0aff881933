package components

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/agrocredit-engine/internal/domain/account"
	"github.com/agrocredit-engine/internal/domain/credit"
	"github.com/agrocredit-engine/internal/domain/deal"
	"github.com/agrocredit-engine/internal/domain/outbox"
	"github.com/agrocredit-engine/internal/domain/shared"
	"github.com/agrocredit-engine/internal/domain/statistics"
	"github.com/agrocredit-engine/internal/period_processor/service"
	"github.com/jackc/pgx/v5"
)

// PaymentCollectorImpl implements the service.PaymentCollector interface
type PaymentCollectorImpl struct {
	dealRepo    deal.Repository
	profileRepo credit.ProfileRepository
	statsRepo   statistics.Repository
	outboxRepo  outbox.Repository
	logger      *slog.Logger
}

// NewPaymentCollector creates a new PaymentCollectorImpl
func NewPaymentCollector(
	dealRepo deal.Repository,
	profileRepo credit.ProfileRepository,
	statsRepo statistics.Repository,
	outboxRepo outbox.Repository,
	logger *slog.Logger,
) service.PaymentCollector {
	return &PaymentCollectorImpl{
		dealRepo:    dealRepo,
		profileRepo: profileRepo,
		statsRepo:   statsRepo,
		outboxRepo:  outboxRepo,
		logger:      logger,
	}
}

// Collect charges one deal for the period: resolve the affordable amount,
// apply it to the amortization state, debit the account and record the
// credit consequences. Everything runs on the caller's transaction.
func (c *PaymentCollectorImpl) Collect(ctx context.Context, tx pgx.Tx, acc *account.Account, d *deal.Deal, period shared.Period, correlationID string) (*deal.PaymentOutcome, error) {
	amount := d.DetermineAmount(acc.Balance)
	outcome := d.ApplyAmount(amount, period)

	if amount.IsPositive() {
		if err := acc.Withdraw(amount); err != nil {
			// DetermineAmount degraded against the balance already; this
			// only trips if the two drift apart.
			return nil, err
		}
	}

	if err := c.dealRepo.WithTx(tx).Update(ctx, d); err != nil {
		return nil, err
	}

	if err := c.recordCredit(ctx, tx, d, &outcome, period); err != nil {
		return nil, err
	}

	delta := statistics.Delta{
		PaymentsProcessed: 1,
		TotalInterestPaid: outcome.InterestPaid,
	}
	if outcome.Category == deal.OutcomeSkipped {
		delta.PaymentsMissed = 1
	}
	if outcome.PaidOff {
		delta.DealsCompleted = 1
	}
	if err := c.statsRepo.WithTx(tx).Apply(ctx, d.AccountID, delta); err != nil {
		return nil, err
	}

	if err := c.enqueueRecords(ctx, tx, d, &outcome, period, correlationID); err != nil {
		return nil, err
	}

	c.logger.Info("Collected monthly payment",
		"deal_id", d.ID.String(),
		"account_id", d.AccountID.String(),
		"period", period.Key(),
		"category", string(outcome.Category),
		"amount", outcome.Amount.String(),
		"paid_off", outcome.PaidOff,
	)
	return &outcome, nil
}

// recordCredit folds the outcome into the account's payment-history profile.
func (c *PaymentCollectorImpl) recordCredit(ctx context.Context, tx pgx.Tx, d *deal.Deal, outcome *deal.PaymentOutcome, period shared.Period) error {
	profileRepo := c.profileRepo.WithTx(tx)
	profile, err := profileRepo.GetByAccountID(ctx, d.AccountID)
	if err != nil {
		return err
	}
	if profile == nil {
		profile = credit.NewProfile(d.AccountID)
	}

	profile.Record(paymentStatusFor(outcome.Category))
	delta, _ := eventTypeFor(outcome.Category).Delta()
	profile.ApplyEventDelta(delta)
	if outcome.PaidOff {
		payoffDelta, _ := credit.EventDealPaidOff.Delta()
		profile.ApplyEventDelta(payoffDelta)
	}

	return profileRepo.Upsert(ctx, profile)
}

// enqueueRecords writes the period's payment record, credit events and
// player notifications to the outbox as part of the same transaction. The
// poller publishes them after commit.
func (c *PaymentCollectorImpl) enqueueRecords(ctx context.Context, tx pgx.Tx, d *deal.Deal, outcome *deal.PaymentOutcome, period shared.Period, correlationID string) error {
	outboxRepo := c.outboxRepo.WithTx(tx)

	record := &outbox.CreditRecord{
		Payment: &credit.PaymentRecord{
			AccountID:  d.AccountID,
			DealID:     d.ID,
			Status:     paymentStatusFor(outcome.Category),
			Amount:     outcome.Amount,
			Period:     period.Key(),
			RecordedAt: d.UpdatedAt,
		},
		Event:        credit.NewEvent(d.AccountID, d.ID, eventTypeFor(outcome.Category), d.Item.Name, period.Key()),
		Notification: paymentNotification(d, outcome, period, correlationID),
	}
	msg, err := outbox.NewMessage(d.AccountID, d.ID, record)
	if err != nil {
		return err
	}
	if err := outboxRepo.Create(ctx, msg); err != nil {
		return err
	}

	if outcome.PaidOff {
		if err := c.enqueuePaidOff(ctx, outboxRepo, d, period, correlationID); err != nil {
			return err
		}
	}
	return nil
}

func (c *PaymentCollectorImpl) enqueuePaidOff(ctx context.Context, outboxRepo outbox.Repository, d *deal.Deal, period shared.Period, correlationID string) error {
	record := &outbox.CreditRecord{
		Event: credit.NewEvent(d.AccountID, d.ID, credit.EventDealPaidOff, d.Item.Name, period.Key()),
		Notification: &shared.Notification{
			AccountID:     d.AccountID,
			DealID:        d.ID,
			Severity:      shared.SeverityInfo,
			MessageKey:    shared.MsgDealPaidOff,
			Params:        map[string]string{"item": d.Item.Name},
			CorrelationID: correlationID,
			Timestamp:     d.UpdatedAt,
		},
	}
	msg, err := outbox.NewMessage(d.AccountID, d.ID, record)
	if err != nil {
		return err
	}
	if err := outboxRepo.Create(ctx, msg); err != nil {
		return err
	}

	if d.IsLease() && d.TermComplete() {
		renewal := &outbox.CreditRecord{
			Notification: &shared.Notification{
				AccountID:     d.AccountID,
				DealID:        d.ID,
				Severity:      shared.SeverityInfo,
				MessageKey:    shared.MsgLeaseRenewalOffer,
				Params:        map[string]string{"item": d.Item.Name, "residual_value": d.Lease.ResidualValue.String()},
				CorrelationID: correlationID,
				Timestamp:     d.UpdatedAt,
			},
		}
		renewalMsg, err := outbox.NewMessage(d.AccountID, d.ID, renewal)
		if err != nil {
			return err
		}
		return outboxRepo.Create(ctx, renewalMsg)
	}
	return nil
}

func paymentStatusFor(category deal.OutcomeCategory) credit.PaymentStatus {
	switch category {
	case deal.OutcomeSkipped:
		return credit.PaymentMissed
	case deal.OutcomePartial:
		return credit.PaymentLate
	default:
		return credit.PaymentOnTime
	}
}

func eventTypeFor(category deal.OutcomeCategory) credit.EventType {
	switch category {
	case deal.OutcomeExtra:
		return credit.EventPaymentExtra
	case deal.OutcomeMinimum:
		return credit.EventPaymentMinimum
	case deal.OutcomePartial:
		return credit.EventPaymentPartial
	case deal.OutcomeSkipped:
		return credit.EventPaymentSkipped
	default:
		return credit.EventPaymentStandard
	}
}

func paymentNotification(d *deal.Deal, outcome *deal.PaymentOutcome, period shared.Period, correlationID string) *shared.Notification {
	n := &shared.Notification{
		AccountID:     d.AccountID,
		DealID:        d.ID,
		CorrelationID: correlationID,
		Timestamp:     d.UpdatedAt,
		Params: map[string]string{
			"item":   d.Item.Name,
			"amount": outcome.Amount.String(),
			"period": period.Key(),
			"reason": string(shared.ReasonMonthlyPayment),
		},
	}
	switch outcome.Category {
	case deal.OutcomeSkipped:
		n.Severity = shared.SeverityWarning
		n.MessageKey = shared.MsgPaymentMissed
		n.Params["strikes"] = strconv.Itoa(outcome.Strikes)
	case deal.OutcomePartial:
		n.Severity = shared.SeverityWarning
		n.MessageKey = shared.MsgPaymentPartial
		n.Params["shortfall"] = outcome.Shortfall.String()
	default:
		n.Severity = shared.SeverityInfo
		n.MessageKey = shared.MsgPaymentCollected
	}
	return n
}
