package components

import (
	"context"
	"log/slog"
	"time"

	"github.com/agrocredit-engine/internal/domain/account"
	"github.com/agrocredit-engine/internal/domain/asset"
	"github.com/agrocredit-engine/internal/domain/credit"
	"github.com/agrocredit-engine/internal/domain/deal"
	"github.com/agrocredit-engine/internal/domain/outbox"
	"github.com/agrocredit-engine/internal/domain/shared"
	"github.com/agrocredit-engine/internal/domain/statistics"
	"github.com/agrocredit-engine/internal/period_processor/service"
	"github.com/jackc/pgx/v5"
)

// EscalatorImpl implements the service.Escalator interface
type EscalatorImpl struct {
	dealRepo    deal.Repository
	assetRepo   asset.Repository
	profileRepo credit.ProfileRepository
	statsRepo   statistics.Repository
	outboxRepo  outbox.Repository
	strikeLimit int
	logger      *slog.Logger
}

// NewEscalator creates a new EscalatorImpl
func NewEscalator(
	dealRepo deal.Repository,
	assetRepo asset.Repository,
	profileRepo credit.ProfileRepository,
	statsRepo statistics.Repository,
	outboxRepo outbox.Repository,
	strikeLimit int,
	logger *slog.Logger,
) service.Escalator {
	return &EscalatorImpl{
		dealRepo:    dealRepo,
		assetRepo:   assetRepo,
		profileRepo: profileRepo,
		statsRepo:   statsRepo,
		outboxRepo:  outboxRepo,
		strikeLimit: strikeLimit,
		logger:      logger,
	}
}

// Escalate reacts to a missed payment. Every strike records a PAYMENT_MISSED
// credit event, the heavy hit that makes a score slow to build and fast to
// lose. One strike short of the limit sends a final warning; at the limit the
// deal defaults and its collateral is seized.
func (e *EscalatorImpl) Escalate(ctx context.Context, tx pgx.Tx, acc *account.Account, d *deal.Deal, outcome *deal.PaymentOutcome, period shared.Period, correlationID string) error {
	if err := e.recordStrike(ctx, tx, d, period); err != nil {
		return err
	}

	switch {
	case outcome.Strikes >= e.strikeLimit:
		return e.defaultDeal(ctx, tx, d, period, correlationID)
	case outcome.Strikes == e.strikeLimit-1:
		return e.enqueueNotification(ctx, tx, d, &shared.Notification{
			AccountID:     d.AccountID,
			DealID:        d.ID,
			Severity:      shared.SeverityCritical,
			MessageKey:    shared.MsgFinalWarning,
			Params:        map[string]string{"item": d.Item.Name, "period": period.Key()},
			CorrelationID: correlationID,
			Timestamp:     time.Now(),
		}, nil)
	}
	return nil
}

// recordStrike charges the strike against the account's credit profile and
// queues the PAYMENT_MISSED event for the history store.
func (e *EscalatorImpl) recordStrike(ctx context.Context, tx pgx.Tx, d *deal.Deal, period shared.Period) error {
	profileRepo := e.profileRepo.WithTx(tx)
	profile, err := profileRepo.GetByAccountID(ctx, d.AccountID)
	if err != nil {
		return err
	}
	if profile == nil {
		profile = credit.NewProfile(d.AccountID)
	}
	delta, _ := credit.EventPaymentMissed.Delta()
	profile.ApplyEventDelta(delta)
	if err := profileRepo.Upsert(ctx, profile); err != nil {
		return err
	}

	return e.enqueueRecord(ctx, tx, d, &outbox.CreditRecord{
		Event: credit.NewEvent(d.AccountID, d.ID, credit.EventPaymentMissed, d.Item.Name, period.Key()),
	})
}

// defaultDeal marks the deal defaulted, seizes its collateral and records the
// credit damage, all on the caller's transaction.
func (e *EscalatorImpl) defaultDeal(ctx context.Context, tx pgx.Tx, d *deal.Deal, period shared.Period, correlationID string) error {
	d.MarkDefaulted()

	seized, err := e.seizeCollateral(ctx, tx, d, period, correlationID)
	if err != nil {
		return err
	}

	if err := e.dealRepo.WithTx(tx).Update(ctx, d); err != nil {
		return err
	}

	profileRepo := e.profileRepo.WithTx(tx)
	profile, err := profileRepo.GetByAccountID(ctx, d.AccountID)
	if err != nil {
		return err
	}
	if profile == nil {
		profile = credit.NewProfile(d.AccountID)
	}
	delta, _ := credit.EventDealDefaulted.Delta()
	profile.ApplyEventDelta(delta)
	if err := profileRepo.Upsert(ctx, profile); err != nil {
		return err
	}

	if err := e.statsRepo.WithTx(tx).Apply(ctx, d.AccountID, statistics.Delta{
		DealsDefaulted: 1,
		Repossessions:  seized,
	}); err != nil {
		return err
	}

	record := &outbox.CreditRecord{
		Event: credit.NewEvent(d.AccountID, d.ID, credit.EventDealDefaulted, d.Item.Name, period.Key()),
		Notification: &shared.Notification{
			AccountID:     d.AccountID,
			DealID:        d.ID,
			Severity:      shared.SeverityCritical,
			MessageKey:    shared.MsgDealDefaulted,
			Params:        map[string]string{"item": d.Item.Name, "period": period.Key()},
			CorrelationID: correlationID,
			Timestamp:     d.UpdatedAt,
		},
	}
	if err := e.enqueueRecord(ctx, tx, d, record); err != nil {
		return err
	}

	e.logger.Warn("Deal defaulted after repeated missed payments",
		"deal_id", d.ID.String(),
		"account_id", d.AccountID.String(),
		"period", period.Key(),
		"repossessed", seized,
	)
	return nil
}

// seizeCollateral repossesses whatever secures the deal: the pledged asset
// list for cash loans, otherwise the financed item itself. Land reverts to
// unowned; vehicles and equipment leave the registry. Assets that can no
// longer be located are still recorded so the seizure history stays
// complete. Returns the number of seizure entries recorded.
func (e *EscalatorImpl) seizeCollateral(ctx context.Context, tx pgx.Tx, d *deal.Deal, period shared.Period, correlationID string) (int, error) {
	targets := collateralTargets(d)
	assetRepo := e.assetRepo.WithTx(tx)
	seized := 0

	for _, target := range targets {
		a, err := assetRepo.FindByID(ctx, target.AssetID)
		if err != nil {
			return seized, err
		}

		item := deal.RepossessedItem{
			AssetID:  target.AssetID,
			Name:     target.Name,
			Period:   period.Key(),
			SeizedAt: time.Now(),
		}

		if a == nil {
			item.NotFound = true
			d.RecordRepossession(item)
			seized++
			e.logger.Warn("Collateral asset not found during repossession",
				"deal_id", d.ID.String(),
				"asset_id", target.AssetID.String(),
			)
			continue
		}

		item.Name = a.Name
		item.Value = a.Value
		messageKey := shared.MsgAssetRepossessed
		if a.Kind == asset.KindLand {
			// Land is never destroyed, it returns to the unowned pool.
			if err := assetRepo.SetOwner(ctx, a.ID, nil); err != nil {
				return seized, err
			}
			messageKey = shared.MsgLandSeized
		} else {
			if err := assetRepo.Remove(ctx, a.ID); err != nil {
				return seized, err
			}
		}
		d.RecordRepossession(item)
		seized++

		if err := e.enqueueNotification(ctx, tx, d, &shared.Notification{
			AccountID:     d.AccountID,
			DealID:        d.ID,
			Severity:      shared.SeverityCritical,
			MessageKey:    messageKey,
			Params:        map[string]string{"asset": item.Name, "value": item.Value.String()},
			CorrelationID: correlationID,
			Timestamp:     item.SeizedAt,
		}, nil); err != nil {
			return seized, err
		}
	}
	return seized, nil
}

func (e *EscalatorImpl) enqueueNotification(ctx context.Context, tx pgx.Tx, d *deal.Deal, n *shared.Notification, event *credit.Event) error {
	return e.enqueueRecord(ctx, tx, d, &outbox.CreditRecord{Event: event, Notification: n})
}

func (e *EscalatorImpl) enqueueRecord(ctx context.Context, tx pgx.Tx, d *deal.Deal, record *outbox.CreditRecord) error {
	msg, err := outbox.NewMessage(d.AccountID, d.ID, record)
	if err != nil {
		return err
	}
	return e.outboxRepo.WithTx(tx).Create(ctx, msg)
}

// collateralTargets resolves what secures the deal. Cash loans pledge an
// explicit asset list; financed and leased items secure themselves.
func collateralTargets(d *deal.Deal) []deal.PledgedAsset {
	if d.Kind == deal.KindCashLoan {
		return d.Collateral
	}
	if d.Item.Kind == deal.ItemCash {
		return nil
	}
	return []deal.PledgedAsset{{AssetID: d.Item.AssetID, Name: d.Item.Name}}
}
