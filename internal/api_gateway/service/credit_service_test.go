package service

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/agrocredit-engine/internal/domain/account"
	"github.com/agrocredit-engine/internal/domain/credit"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockProfileRepository struct {
	mock.Mock
}

func (m *MockProfileRepository) GetByAccountID(ctx context.Context, accountID uuid.UUID) (*credit.Profile, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*credit.Profile), args.Error(1)
}

func (m *MockProfileRepository) Upsert(ctx context.Context, p *credit.Profile) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *MockProfileRepository) WithTx(tx pgx.Tx) credit.ProfileRepository {
	m.Called(tx)
	return m
}

type MockHistoryRepository struct {
	mock.Mock
}

func (m *MockHistoryRepository) AppendPayment(ctx context.Context, rec *credit.PaymentRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *MockHistoryRepository) AppendEvent(ctx context.Context, e *credit.Event) error {
	args := m.Called(ctx, e)
	return args.Error(0)
}

func (m *MockHistoryRepository) RecentPayments(ctx context.Context, accountID uuid.UUID, limit int) ([]*credit.PaymentRecord, error) {
	args := m.Called(ctx, accountID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*credit.PaymentRecord), args.Error(1)
}

func (m *MockHistoryRepository) RecentEvents(ctx context.Context, accountID uuid.UUID, limit int) ([]*credit.Event, error) {
	args := m.Called(ctx, accountID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*credit.Event), args.Error(1)
}

type creditServiceMocks struct {
	accountRepo *MockAccountRepository
	assetRepo   *MockAssetRepository
	dealRepo    *MockDealRepository
	profileRepo *MockProfileRepository
	historyRepo *MockHistoryRepository
}

func newCreditService(t *testing.T) (CreditService, *creditServiceMocks) {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	mocks := &creditServiceMocks{
		accountRepo: new(MockAccountRepository),
		assetRepo:   new(MockAssetRepository),
		dealRepo:    new(MockDealRepository),
		profileRepo: new(MockProfileRepository),
		historyRepo: new(MockHistoryRepository),
	}
	svc := NewCreditService(logger, mocks.accountRepo, mocks.assetRepo, mocks.dealRepo, mocks.profileRepo, mocks.historyRepo)
	return svc, mocks
}

func TestCreditServiceImpl_CalculateScore(t *testing.T) {
	ctx := context.Background()

	t.Run("CleanSlate", func(t *testing.T) {
		svc, mocks := newCreditService(t)
		accountID := uuid.New()
		acc := &account.Account{ID: accountID, OwnerName: "Ola Nordmann", FarmName: "North Field Farm", Balance: decimal.Zero}

		mocks.accountRepo.On("GetByID", ctx, accountID).Return(acc, nil).Once()
		mocks.profileRepo.On("GetByAccountID", ctx, accountID).Return(nil, nil).Once()
		mocks.assetRepo.On("SumValuesByOwner", ctx, accountID).Return(int64(0), nil).Once()
		mocks.dealRepo.On("SumActiveBalances", ctx, accountID).Return(int64(0), nil).Once()

		score, err := svc.CalculateScore(ctx, accountID)

		require.NoError(t, err)
		expected := credit.Calculate(credit.NewProfile(accountID), credit.Inputs{
			AssetValue: decimal.Zero,
			DebtValue:  decimal.Zero,
			CashValue:  decimal.Zero,
		})
		assert.Equal(t, expected.Value, score.Value)
		assert.Equal(t, expected.CleanSlateScore, score.CleanSlateScore)
		assert.GreaterOrEqual(t, score.Value, 300)
		assert.LessOrEqual(t, score.Value, 850)
		mocks.accountRepo.AssertExpectations(t)
		mocks.profileRepo.AssertExpectations(t)
	})

	t.Run("ConvertsRepositorySumsToMajorUnits", func(t *testing.T) {
		svc, mocks := newCreditService(t)
		accountID := uuid.New()
		acc := &account.Account{ID: accountID, Balance: decimal.RequireFromString("2500.00")}
		profile := credit.NewProfile(accountID)
		profile.TotalPayments = 10
		profile.OnTimePayments = 10
		profile.CurrentStreak = 10

		mocks.accountRepo.On("GetByID", ctx, accountID).Return(acc, nil).Once()
		mocks.profileRepo.On("GetByAccountID", ctx, accountID).Return(profile, nil).Once()
		mocks.assetRepo.On("SumValuesByOwner", ctx, accountID).Return(int64(5000000), nil).Once()
		mocks.dealRepo.On("SumActiveBalances", ctx, accountID).Return(int64(1000000), nil).Once()

		score, err := svc.CalculateScore(ctx, accountID)

		require.NoError(t, err)
		expected := credit.Calculate(profile, credit.Inputs{
			AssetValue: decimal.RequireFromString("50000.00"),
			DebtValue:  decimal.RequireFromString("10000.00"),
			CashValue:  acc.Balance,
		})
		assert.Equal(t, expected.Value, score.Value)
		assert.Equal(t, expected.AssetDebtScore, score.AssetDebtScore)
		mocks.assetRepo.AssertExpectations(t)
		mocks.dealRepo.AssertExpectations(t)
	})

	t.Run("AccountNotFound", func(t *testing.T) {
		svc, mocks := newCreditService(t)
		accountID := uuid.New()

		mocks.accountRepo.On("GetByID", ctx, accountID).Return(nil, account.ErrAccountNotFound{AccountID: accountID}).Once()

		score, err := svc.CalculateScore(ctx, accountID)

		assert.Nil(t, score)
		var notFound account.ErrAccountNotFound
		assert.ErrorAs(t, err, &notFound)
		mocks.profileRepo.AssertNotCalled(t, "GetByAccountID", mock.Anything, mock.Anything)
	})
}

func TestCreditServiceImpl_GetProfile(t *testing.T) {
	ctx := context.Background()

	t.Run("StoredProfile", func(t *testing.T) {
		svc, mocks := newCreditService(t)
		accountID := uuid.New()
		profile := credit.NewProfile(accountID)
		profile.TotalPayments = 4
		payments := []*credit.PaymentRecord{{AccountID: accountID}}
		events := []*credit.Event{{AccountID: accountID, Type: credit.EventLoanTaken}}

		mocks.profileRepo.On("GetByAccountID", ctx, accountID).Return(profile, nil).Once()
		mocks.historyRepo.On("RecentPayments", ctx, accountID, paymentWindow).Return(payments, nil).Once()
		mocks.historyRepo.On("RecentEvents", ctx, accountID, eventWindow).Return(events, nil).Once()

		gotProfile, gotPayments, gotEvents, err := svc.GetProfile(ctx, accountID)

		require.NoError(t, err)
		assert.Equal(t, profile, gotProfile)
		assert.Len(t, gotPayments, 1)
		assert.Len(t, gotEvents, 1)
		mocks.historyRepo.AssertExpectations(t)
	})

	t.Run("NoStoredProfileIsFresh", func(t *testing.T) {
		svc, mocks := newCreditService(t)
		accountID := uuid.New()

		mocks.profileRepo.On("GetByAccountID", ctx, accountID).Return(nil, nil).Once()
		mocks.historyRepo.On("RecentPayments", ctx, accountID, paymentWindow).Return([]*credit.PaymentRecord{}, nil).Once()
		mocks.historyRepo.On("RecentEvents", ctx, accountID, eventWindow).Return([]*credit.Event{}, nil).Once()

		gotProfile, _, _, err := svc.GetProfile(ctx, accountID)

		require.NoError(t, err)
		assert.Equal(t, accountID, gotProfile.AccountID)
		assert.Zero(t, gotProfile.TotalPayments)
	})

	t.Run("HistoryError", func(t *testing.T) {
		svc, mocks := newCreditService(t)
		accountID := uuid.New()

		mocks.profileRepo.On("GetByAccountID", ctx, accountID).Return(credit.NewProfile(accountID), nil).Once()
		mocks.historyRepo.On("RecentPayments", ctx, accountID, paymentWindow).Return(nil, errors.New("mongo unavailable")).Once()

		_, _, _, err := svc.GetProfile(ctx, accountID)

		assert.Error(t, err)
		mocks.historyRepo.AssertNotCalled(t, "RecentEvents", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestCreditServiceImpl_CheckEligibility(t *testing.T) {
	ctx := context.Background()

	setupScore := func(mocks *creditServiceMocks, accountID uuid.UUID, profile *credit.Profile, balance decimal.Decimal) {
		acc := &account.Account{ID: accountID, Balance: balance}
		mocks.accountRepo.On("GetByID", ctx, accountID).Return(acc, nil).Once()
		mocks.profileRepo.On("GetByAccountID", ctx, accountID).Return(profile, nil).Once()
		mocks.assetRepo.On("SumValuesByOwner", ctx, accountID).Return(int64(0), nil).Once()
		mocks.dealRepo.On("SumActiveBalances", ctx, accountID).Return(int64(0), nil).Once()
	}

	t.Run("FreshAccountClearsSmallRepairLoan", func(t *testing.T) {
		svc, mocks := newCreditService(t)
		accountID := uuid.New()
		setupScore(mocks, accountID, credit.NewProfile(accountID), decimal.Zero)

		decision, err := svc.CheckEligibility(ctx, accountID, credit.ProductSmallRepairLoan)

		require.NoError(t, err)
		assert.True(t, decision.Eligible)
		assert.Equal(t, 450, decision.Required)
	})

	t.Run("FreshAccountDeclinedForCashLoan", func(t *testing.T) {
		svc, mocks := newCreditService(t)
		accountID := uuid.New()
		setupScore(mocks, accountID, credit.NewProfile(accountID), decimal.Zero)

		decision, err := svc.CheckEligibility(ctx, accountID, credit.ProductCashLoan)

		require.NoError(t, err)
		assert.False(t, decision.Eligible)
		assert.Equal(t, 700, decision.Required)
		assert.Positive(t, decision.Deficit)
	})

	t.Run("UnknownProduct", func(t *testing.T) {
		svc, mocks := newCreditService(t)
		accountID := uuid.New()
		setupScore(mocks, accountID, credit.NewProfile(accountID), decimal.Zero)

		decision, err := svc.CheckEligibility(ctx, accountID, credit.ProductType("YACHT_LOAN"))

		assert.Nil(t, decision)
		var unknown credit.ErrUnknownProduct
		assert.ErrorAs(t, err, &unknown)
	})
}
