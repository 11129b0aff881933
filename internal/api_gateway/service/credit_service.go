package service

import (
	"context"
	"log/slog"

	"github.com/agrocredit-engine/internal/domain/account"
	"github.com/agrocredit-engine/internal/domain/asset"
	"github.com/agrocredit-engine/internal/domain/credit"
	"github.com/agrocredit-engine/internal/domain/deal"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Window sizes for the profile view, tied to the caps on the stored logs so
// these reads return the full retained history.
const (
	paymentWindow = credit.PaymentWindowCap
	eventWindow   = credit.EventWindowCap
)

// CreditServiceImpl implements the CreditService interface
type CreditServiceImpl struct {
	accountRepo account.Repository
	assetRepo   asset.Repository
	dealRepo    deal.Repository
	profileRepo credit.ProfileRepository
	historyRepo credit.HistoryRepository
	logger      *slog.Logger
}

// NewCreditService creates a new credit service
func NewCreditService(
	logger *slog.Logger,
	accountRepo account.Repository,
	assetRepo asset.Repository,
	dealRepo deal.Repository,
	profileRepo credit.ProfileRepository,
	historyRepo credit.HistoryRepository,
) CreditService {
	return &CreditServiceImpl{
		accountRepo: accountRepo,
		assetRepo:   assetRepo,
		dealRepo:    dealRepo,
		profileRepo: profileRepo,
		historyRepo: historyRepo,
		logger:      logger,
	}
}

// CalculateScore computes the current score. Accounts without a stored
// profile score as fresh, which is exactly the clean-slate case.
func (s *CreditServiceImpl) CalculateScore(ctx context.Context, accountID uuid.UUID) (*credit.Score, error) {
	acc, err := s.accountRepo.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}

	profile, err := s.profileRepo.GetByAccountID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		profile = credit.NewProfile(accountID)
	}

	assetCents, err := s.assetRepo.SumValuesByOwner(ctx, accountID)
	if err != nil {
		return nil, err
	}
	debtCents, err := s.dealRepo.SumActiveBalances(ctx, accountID)
	if err != nil {
		return nil, err
	}

	// Repository sums come back in minor units.
	score := credit.Calculate(profile, credit.Inputs{
		AssetValue: decimal.New(assetCents, -2),
		DebtValue:  decimal.New(debtCents, -2),
		CashValue:  acc.Balance,
	})

	s.logger.Debug("Calculated credit score",
		"account_id", accountID.String(),
		"score", score.Value,
		"tier", score.Tier.Name,
	)
	return &score, nil
}

// GetProfile returns the payment-history profile and the recent windows of
// payments and credit events.
func (s *CreditServiceImpl) GetProfile(ctx context.Context, accountID uuid.UUID) (*credit.Profile, []*credit.PaymentRecord, []*credit.Event, error) {
	profile, err := s.profileRepo.GetByAccountID(ctx, accountID)
	if err != nil {
		return nil, nil, nil, err
	}
	if profile == nil {
		profile = credit.NewProfile(accountID)
	}

	payments, err := s.historyRepo.RecentPayments(ctx, accountID, paymentWindow)
	if err != nil {
		return nil, nil, nil, err
	}
	events, err := s.historyRepo.RecentEvents(ctx, accountID, eventWindow)
	if err != nil {
		return nil, nil, nil, err
	}
	return profile, payments, events, nil
}

// CheckEligibility gates a product behind its minimum score.
func (s *CreditServiceImpl) CheckEligibility(ctx context.Context, accountID uuid.UUID, product credit.ProductType) (*credit.Decision, error) {
	score, err := s.CalculateScore(ctx, accountID)
	if err != nil {
		return nil, err
	}
	decision, err := credit.CanFinance(score.Value, product)
	if err != nil {
		return nil, err
	}
	return &decision, nil
}
