package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/agrocredit-engine/internal/config"
	"github.com/agrocredit-engine/internal/domain/account"
	"github.com/agrocredit-engine/internal/domain/asset"
	"github.com/agrocredit-engine/internal/domain/credit"
	"github.com/agrocredit-engine/internal/domain/deal"
	"github.com/agrocredit-engine/internal/domain/outbox"
	"github.com/agrocredit-engine/internal/domain/shared"
	"github.com/agrocredit-engine/internal/domain/statistics"
	"github.com/agrocredit-engine/internal/platform/persistence"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// Service-level policy errors.
var (
	ErrProductDisabled        = errors.New("financing product is disabled by configuration")
	ErrInsufficientCollateral = errors.New("pledged collateral does not cover the loan principal")
	ErrCollateralNotOwned     = errors.New("pledged asset is not owned by the account")
)

// ErrAssetNotFound indicates a missing registry asset.
type ErrAssetNotFound struct {
	AssetID uuid.UUID
}

func (e ErrAssetNotFound) Error() string {
	return "asset not found: " + e.AssetID.String()
}

// ErrScoreTooLow carries the declined eligibility decision.
type ErrScoreTooLow struct {
	Decision credit.Decision
}

func (e ErrScoreTooLow) Error() string {
	return e.Decision.Reason
}

// DealServiceImpl implements the DealService interface. Every mutating
// operation runs inside one database transaction: the balance movement, the
// ownership transfer and the contract state commit or roll back together.
type DealServiceImpl struct {
	pgDB          *persistence.PostgresDB
	accountRepo   account.Repository
	dealRepo      deal.Repository
	assetRepo     asset.Repository
	profileRepo   credit.ProfileRepository
	statsRepo     statistics.Repository
	outboxRepo    outbox.Repository
	creditService CreditService
	rates         *RateCurve
	financing     *config.FinancingConfig
	logger        *slog.Logger
}

// NewDealService creates a new deal service
func NewDealService(
	logger *slog.Logger,
	pgDB *persistence.PostgresDB,
	accountRepo account.Repository,
	dealRepo deal.Repository,
	assetRepo asset.Repository,
	profileRepo credit.ProfileRepository,
	statsRepo statistics.Repository,
	outboxRepo outbox.Repository,
	creditService CreditService,
	rates *RateCurve,
	financing *config.FinancingConfig,
) DealService {
	return &DealServiceImpl{
		pgDB:          pgDB,
		accountRepo:   accountRepo,
		dealRepo:      dealRepo,
		assetRepo:     assetRepo,
		profileRepo:   profileRepo,
		statsRepo:     statsRepo,
		outboxRepo:    outboxRepo,
		creditService: creditService,
		rates:         rates,
		financing:     financing,
		logger:        logger,
	}
}

// CreateFinanceDeal originates a vehicle, equipment or land financing
// contract: eligibility gate, rate curve, down payment charge net of the
// tier-scaled cash back, item ownership transfer and registration.
func (s *DealServiceImpl) CreateFinanceDeal(ctx context.Context, params CreateDealParams) (*deal.Deal, error) {
	product := financeProductFor(params.ItemKind)
	score, err := s.gate(ctx, params.AccountID, product)
	if err != nil {
		return nil, err
	}

	period, err := shared.ParsePeriod(params.Period)
	if err != nil {
		return nil, err
	}

	downPct := downPaymentPct(params.DownPayment, params.Price)
	rate := s.rates.VehicleRate(score.Value, params.TermMonths, downPct)
	if params.ItemKind == deal.ItemLand {
		rate = s.rates.LandRate(score.Value, params.TermMonths, downPct)
	}
	cashBack := params.CashBack.Mul(score.Tier.CashBackFactor).Round(2)

	d, err := deal.NewFinance(deal.Terms{
		AccountID:   params.AccountID,
		Item:        deal.ItemRef{Kind: params.ItemKind, AssetID: params.AssetID, Name: params.ItemName},
		Price:       params.Price,
		DownPayment: params.DownPayment,
		CashBack:    cashBack,
		TermMonths:  params.TermMonths,
		AnnualRate:  rate,
		Period:      period,
	}, s.financing.MinTermMonths, s.financing.MaxTermMonths)
	if err != nil {
		return nil, err
	}

	err = s.pgDB.ExecuteTx(ctx, func(tx pgx.Tx) error {
		acc, err := s.accountRepo.WithTx(tx).LockForUpdate(ctx, params.AccountID)
		if err != nil {
			return err
		}
		if err := s.moveFunds(acc, d.DownPayment.Sub(d.CashBack)); err != nil {
			return err
		}
		if err := s.accountRepo.WithTx(tx).Update(ctx, acc); err != nil {
			return err
		}
		if err := s.claimAsset(ctx, tx, params.AssetID, params.AccountID); err != nil {
			return err
		}
		return s.register(ctx, tx, d)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Finance deal created",
		"deal_id", d.ID.String(),
		"account_id", d.AccountID.String(),
		"item", d.Item.Name,
		"amount_financed", d.AmountFinanced.String(),
		"annual_rate", d.AnnualRate.String(),
	)
	return d, nil
}

// CreateLeaseDeal originates a lease. The security deposit is charged with
// the down payment; a trade-in credits against the charge.
func (s *DealServiceImpl) CreateLeaseDeal(ctx context.Context, params CreateLeaseParams) (*deal.Deal, error) {
	product := credit.ProductVehicleLease
	if params.ItemKind == deal.ItemLand {
		product = credit.ProductLandFinance
	}
	score, err := s.gate(ctx, params.AccountID, product)
	if err != nil {
		return nil, err
	}

	period, err := shared.ParsePeriod(params.Period)
	if err != nil {
		return nil, err
	}

	rate := s.rates.LeaseRate(score.Value, params.TermMonths, downPaymentPct(params.DownPayment, params.Price))
	cashBack := params.CashBack.Mul(score.Tier.CashBackFactor).Round(2)

	d, err := deal.NewLease(deal.Terms{
		AccountID:   params.AccountID,
		Item:        deal.ItemRef{Kind: params.ItemKind, AssetID: params.AssetID, Name: params.ItemName},
		Price:       params.Price,
		DownPayment: params.DownPayment,
		CashBack:    cashBack,
		TermMonths:  params.TermMonths,
		AnnualRate:  rate,
		Period:      period,
	}, deal.LeaseTerms{
		ResidualValue:   params.ResidualValue,
		SecurityDeposit: params.SecurityDeposit,
		Depreciation:    leaseDepreciation(params.Price, params.ResidualValue, params.TermMonths),
		TradeInValue:    params.TradeInValue,
	}, s.financing.MinTermMonths, s.financing.MaxTermMonths)
	if err != nil {
		return nil, err
	}

	err = s.pgDB.ExecuteTx(ctx, func(tx pgx.Tx) error {
		acc, err := s.accountRepo.WithTx(tx).LockForUpdate(ctx, params.AccountID)
		if err != nil {
			return err
		}
		charge := d.DownPayment.Sub(d.CashBack).Add(params.SecurityDeposit).Sub(params.TradeInValue)
		if err := s.moveFunds(acc, charge); err != nil {
			return err
		}
		if err := s.accountRepo.WithTx(tx).Update(ctx, acc); err != nil {
			return err
		}
		if err := s.claimAsset(ctx, tx, params.AssetID, params.AccountID); err != nil {
			return err
		}
		return s.register(ctx, tx, d)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Lease deal created",
		"deal_id", d.ID.String(),
		"account_id", d.AccountID.String(),
		"item", d.Item.Name,
		"residual_value", params.ResidualValue.String(),
	)
	return d, nil
}

// CreateCashLoan disburses a principal against pledged collateral. The
// product can be switched off entirely by configuration, in which case the
// request is declined without touching the account.
func (s *DealServiceImpl) CreateCashLoan(ctx context.Context, params CreateCashLoanParams) (*deal.Deal, error) {
	if !s.financing.CashLoanEnabled {
		s.logger.Info("Declined cash loan request, product disabled",
			"account_id", params.AccountID.String(),
		)
		return nil, ErrProductDisabled
	}

	score, err := s.gate(ctx, params.AccountID, credit.ProductCashLoan)
	if err != nil {
		return nil, err
	}

	period, err := shared.ParsePeriod(params.Period)
	if err != nil {
		return nil, err
	}

	pledged, err := s.pledgeCollateral(ctx, params.AccountID, params.Principal, params.Collateral)
	if err != nil {
		return nil, err
	}

	d, err := deal.NewCashLoan(deal.Terms{
		AccountID:  params.AccountID,
		Item:       deal.ItemRef{Name: params.Purpose},
		Price:      params.Principal,
		TermMonths: params.TermMonths,
		AnnualRate: s.rates.CashLoanRate(score.Value, params.TermMonths),
		Period:     period,
	}, pledged, s.financing.MinTermMonths, s.financing.MaxTermMonths)
	if err != nil {
		return nil, err
	}

	err = s.pgDB.ExecuteTx(ctx, func(tx pgx.Tx) error {
		acc, err := s.accountRepo.WithTx(tx).LockForUpdate(ctx, params.AccountID)
		if err != nil {
			return err
		}
		if err := acc.Deposit(params.Principal); err != nil {
			return err
		}
		if err := s.accountRepo.WithTx(tx).Update(ctx, acc); err != nil {
			return err
		}
		return s.register(ctx, tx, d)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Cash loan disbursed",
		"deal_id", d.ID.String(),
		"account_id", d.AccountID.String(),
		"principal", params.Principal.String(),
		"collateral", len(pledged),
	)
	return d, nil
}

// GetDealByID retrieves a deal, returning ErrDealNotFound if missing.
func (s *DealServiceImpl) GetDealByID(ctx context.Context, id uuid.UUID) (*deal.Deal, error) {
	return s.dealRepo.GetByID(ctx, id)
}

// ListDealsByAccount lists an account's deals in creation order.
func (s *DealServiceImpl) ListDealsByAccount(ctx context.Context, accountID uuid.UUID) ([]*deal.Deal, error) {
	return s.dealRepo.ListByAccount(ctx, accountID)
}

// MakePayment posts a manual payment against an active deal.
func (s *DealServiceImpl) MakePayment(ctx context.Context, dealID uuid.UUID, amount decimal.Decimal) (*deal.ManualPaymentResult, error) {
	var result deal.ManualPaymentResult
	err := s.pgDB.ExecuteTx(ctx, func(tx pgx.Tx) error {
		d, err := s.dealRepo.WithTx(tx).GetByID(ctx, dealID)
		if err != nil {
			return err
		}
		acc, err := s.accountRepo.WithTx(tx).LockForUpdate(ctx, d.AccountID)
		if err != nil {
			return err
		}
		if !acc.CanWithdraw(amount) {
			return account.ErrInsufficientFunds
		}

		result, err = d.MakePayment(amount)
		if err != nil {
			return err
		}
		if err := acc.Withdraw(result.Charged); err != nil {
			return err
		}
		if err := s.accountRepo.WithTx(tx).Update(ctx, acc); err != nil {
			return err
		}
		if err := s.dealRepo.WithTx(tx).Update(ctx, d); err != nil {
			return err
		}

		delta := statistics.Delta{TotalInterestPaid: result.InterestPaid}
		if result.PaidOff {
			delta.DealsCompleted = 1
		}
		if err := s.statsRepo.WithTx(tx).Apply(ctx, d.AccountID, delta); err != nil {
			return err
		}

		record := &outbox.CreditRecord{
			Notification: &shared.Notification{
				AccountID:  d.AccountID,
				DealID:     d.ID,
				Severity:   shared.SeverityInfo,
				MessageKey: shared.MsgManualPaymentPosted,
				Params: map[string]string{
					"item":   d.Item.Name,
					"amount": result.Charged.String(),
					"reason": string(shared.ReasonManualPayment),
				},
				Timestamp: time.Now(),
			},
		}
		if result.PaidOff {
			record.Event = credit.NewEvent(d.AccountID, d.ID, credit.EventDealPaidOff, d.Item.Name, d.LastProcessedPeriod)
			record.Notification.MessageKey = shared.MsgDealPaidOff
			record.Notification.Params["reason"] = string(shared.ReasonPayoffPayment)
			if err := s.applyEvent(ctx, tx, d.AccountID, credit.EventDealPaidOff); err != nil {
				return err
			}
		}
		return s.enqueue(ctx, tx, d, record)
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// SetPaymentMode switches how the monthly amount is determined.
func (s *DealServiceImpl) SetPaymentMode(ctx context.Context, dealID uuid.UUID, mode deal.PaymentMode, customAmount decimal.Decimal) (*deal.Deal, error) {
	d, err := s.dealRepo.GetByID(ctx, dealID)
	if err != nil {
		return nil, err
	}
	if err := d.SetPaymentMode(mode, customAmount); err != nil {
		return nil, err
	}
	if err := s.dealRepo.Update(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// SetPaymentMultiplier adjusts the standard-mode acceleration factor.
func (s *DealServiceImpl) SetPaymentMultiplier(ctx context.Context, dealID uuid.UUID, multiplier decimal.Decimal) (*deal.Deal, error) {
	d, err := s.dealRepo.GetByID(ctx, dealID)
	if err != nil {
		return nil, err
	}
	if err := d.SetPaymentMultiplier(multiplier); err != nil {
		return nil, err
	}
	if err := s.dealRepo.Update(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// CancelDeal voids a deal before any payment activity. The down payment
// charge reverses, a disbursed cash-loan principal is clawed back, and the
// financed item returns to the unowned pool.
func (s *DealServiceImpl) CancelDeal(ctx context.Context, dealID uuid.UUID) error {
	return s.pgDB.ExecuteTx(ctx, func(tx pgx.Tx) error {
		d, err := s.dealRepo.WithTx(tx).GetByID(ctx, dealID)
		if err != nil {
			return err
		}
		if err := d.Cancel(); err != nil {
			return err
		}

		acc, err := s.accountRepo.WithTx(tx).LockForUpdate(ctx, d.AccountID)
		if err != nil {
			return err
		}
		refund := d.DownPayment.Sub(d.CashBack)
		if d.Lease != nil {
			refund = refund.Add(d.Lease.SecurityDeposit).Sub(d.Lease.TradeInValue)
		}
		if d.Kind == deal.KindCashLoan {
			refund = d.AmountFinanced.Neg()
		}
		if err := s.moveFunds(acc, refund.Neg()); err != nil {
			return err
		}
		if err := s.accountRepo.WithTx(tx).Update(ctx, acc); err != nil {
			return err
		}

		if d.Item.Kind != deal.ItemCash {
			if err := s.assetRepo.WithTx(tx).SetOwner(ctx, d.Item.AssetID, nil); err != nil {
				return err
			}
		}
		if err := s.dealRepo.WithTx(tx).Update(ctx, d); err != nil {
			return err
		}

		reason := shared.ReasonDownPayment
		switch {
		case d.Kind == deal.KindCashLoan:
			reason = shared.ReasonLoanDisbursal
		case d.Lease != nil:
			reason = shared.ReasonSecurityDeposit
		}
		return s.enqueue(ctx, tx, d, &outbox.CreditRecord{
			Notification: &shared.Notification{
				AccountID:  d.AccountID,
				DealID:     d.ID,
				Severity:   shared.SeverityInfo,
				MessageKey: shared.MsgDealCancelled,
				Params: map[string]string{
					"item":   d.Item.Name,
					"refund": refund.String(),
					"reason": string(reason),
				},
				Timestamp: time.Now(),
			},
		})
	})
}

// PayoffQuote prices settling a deal today.
func (s *DealServiceImpl) PayoffQuote(ctx context.Context, dealID uuid.UUID) (*PayoffQuote, error) {
	d, err := s.dealRepo.GetByID(ctx, dealID)
	if err != nil {
		return nil, err
	}
	if !d.IsActive() {
		return nil, deal.ErrDealNotActive
	}
	return &PayoffQuote{
		DealID:          d.ID,
		Balance:         d.CurrentBalance,
		AccruedInterest: d.AccruedInterest,
		Penalty:         d.PrepaymentPenalty(),
		Total:           d.PayoffAmount(),
		RemainingMonths: d.RemainingMonths(),
	}, nil
}

// gate checks product eligibility and returns the score used for pricing.
func (s *DealServiceImpl) gate(ctx context.Context, accountID uuid.UUID, product credit.ProductType) (*credit.Score, error) {
	score, err := s.creditService.CalculateScore(ctx, accountID)
	if err != nil {
		return nil, err
	}
	decision, err := credit.CanFinance(score.Value, product)
	if err != nil {
		return nil, err
	}
	if !decision.Eligible {
		s.logger.Info("Declined financing request on credit score",
			"account_id", accountID.String(),
			"product", string(product),
			"score", decision.Score,
			"required", decision.Required,
		)
		return nil, ErrScoreTooLow{Decision: decision}
	}
	return score, nil
}

// pledgeCollateral validates ownership and coverage of the pledged assets.
func (s *DealServiceImpl) pledgeCollateral(ctx context.Context, accountID uuid.UUID, principal decimal.Decimal, assetIDs []uuid.UUID) ([]deal.PledgedAsset, error) {
	pledged := make([]deal.PledgedAsset, 0, len(assetIDs))
	total := decimal.Zero
	for _, id := range assetIDs {
		a, err := s.assetRepo.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if a == nil {
			return nil, ErrAssetNotFound{AssetID: id}
		}
		if a.OwnerID == nil || *a.OwnerID != accountID {
			return nil, ErrCollateralNotOwned
		}
		pledged = append(pledged, deal.PledgedAsset{AssetID: a.ID, Name: a.Name, DeclaredValue: a.Value})
		total = total.Add(a.Value)
	}
	if total.LessThan(principal) {
		return nil, ErrInsufficientCollateral
	}
	return pledged, nil
}

// claimAsset transfers the financed item to the borrowing account.
func (s *DealServiceImpl) claimAsset(ctx context.Context, tx pgx.Tx, assetID, accountID uuid.UUID) error {
	assetRepo := s.assetRepo.WithTx(tx)
	a, err := assetRepo.FindByID(ctx, assetID)
	if err != nil {
		return err
	}
	if a == nil {
		return ErrAssetNotFound{AssetID: assetID}
	}
	return assetRepo.SetOwner(ctx, assetID, &accountID)
}

// register persists the new deal and its origination side effects: the
// statistics counters, the LoanTaken credit event and the player
// notification, all on the caller's transaction.
func (s *DealServiceImpl) register(ctx context.Context, tx pgx.Tx, d *deal.Deal) error {
	if err := s.dealRepo.WithTx(tx).Create(ctx, d); err != nil {
		return err
	}
	if err := s.applyEvent(ctx, tx, d.AccountID, credit.EventLoanTaken); err != nil {
		return err
	}
	if err := s.statsRepo.WithTx(tx).Apply(ctx, d.AccountID, statistics.Delta{
		DealsCreated:  1,
		TotalFinanced: d.AmountFinanced,
	}); err != nil {
		return err
	}
	reason := shared.ReasonDownPayment
	if d.Kind == deal.KindCashLoan {
		reason = shared.ReasonLoanDisbursal
	}
	return s.enqueue(ctx, tx, d, &outbox.CreditRecord{
		Event: credit.NewEvent(d.AccountID, d.ID, credit.EventLoanTaken, d.Item.Name, d.CreatedPeriod),
		Notification: &shared.Notification{
			AccountID:  d.AccountID,
			DealID:     d.ID,
			Severity:   shared.SeverityInfo,
			MessageKey: shared.MsgDealCreated,
			Params: map[string]string{
				"item":            d.Item.Name,
				"monthly_payment": d.MonthlyPayment.String(),
				"term_months":     fmt.Sprintf("%d", d.TermMonths),
				"reason":          string(reason),
			},
			Timestamp: d.CreatedAt,
		},
	})
}

func (s *DealServiceImpl) applyEvent(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, eventType credit.EventType) error {
	profileRepo := s.profileRepo.WithTx(tx)
	profile, err := profileRepo.GetByAccountID(ctx, accountID)
	if err != nil {
		return err
	}
	if profile == nil {
		profile = credit.NewProfile(accountID)
	}
	delta, _ := eventType.Delta()
	profile.ApplyEventDelta(delta)
	return profileRepo.Upsert(ctx, profile)
}

func (s *DealServiceImpl) enqueue(ctx context.Context, tx pgx.Tx, d *deal.Deal, record *outbox.CreditRecord) error {
	msg, err := outbox.NewMessage(d.AccountID, d.ID, record)
	if err != nil {
		return err
	}
	return s.outboxRepo.WithTx(tx).Create(ctx, msg)
}

// moveFunds applies a signed charge to the locked account: positive
// withdraws, negative deposits, zero is a no-op.
func (s *DealServiceImpl) moveFunds(acc *account.Account, charge decimal.Decimal) error {
	switch {
	case charge.IsPositive():
		return acc.Withdraw(charge)
	case charge.IsNegative():
		return acc.Deposit(charge.Neg())
	}
	return nil
}

func financeProductFor(kind deal.ItemKind) credit.ProductType {
	if kind == deal.ItemLand {
		return credit.ProductLandFinance
	}
	return credit.ProductVehicleFinance
}

func downPaymentPct(down, price decimal.Decimal) decimal.Decimal {
	if !price.IsPositive() {
		return decimal.Zero
	}
	return down.Div(price)
}

// leaseDepreciation spreads the amortized value loss evenly over the term.
func leaseDepreciation(price, residual decimal.Decimal, termMonths int) decimal.Decimal {
	if termMonths <= 0 {
		return decimal.Zero
	}
	return price.Sub(residual).Div(decimal.NewFromInt(int64(termMonths))).Round(2)
}
