package components

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/agrocredit-engine/internal/domain/account"
	"github.com/agrocredit-engine/internal/domain/deal"
	"github.com/agrocredit-engine/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockAccountRepo struct {
	mock.Mock
}

func (m *MockAccountRepo) Create(ctx context.Context, acc *account.Account) error {
	args := m.Called(ctx, acc)
	return args.Error(0)
}

func (m *MockAccountRepo) GetByID(ctx context.Context, id uuid.UUID) (*account.Account, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*account.Account), args.Error(1)
}

func (m *MockAccountRepo) GetByFarmName(ctx context.Context, farmName string) (*account.Account, error) {
	args := m.Called(ctx, farmName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*account.Account), args.Error(1)
}

func (m *MockAccountRepo) Update(ctx context.Context, acc *account.Account) error {
	args := m.Called(ctx, acc)
	return args.Error(0)
}

func (m *MockAccountRepo) UpdateBalance(ctx context.Context, id uuid.UUID, balance decimal.Decimal, version int) error {
	args := m.Called(ctx, id, balance, version)
	return args.Error(0)
}

func (m *MockAccountRepo) LockForUpdate(ctx context.Context, id uuid.UUID) (*account.Account, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*account.Account), args.Error(1)
}

func (m *MockAccountRepo) WithTx(tx pgx.Tx) account.Repository {
	m.Called(tx)
	return m
}

type MockCollector struct {
	mock.Mock
}

func (m *MockCollector) Collect(ctx context.Context, tx pgx.Tx, acc *account.Account, d *deal.Deal, period shared.Period, correlationID string) (*deal.PaymentOutcome, error) {
	args := m.Called(ctx, tx, acc, d, period, correlationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*deal.PaymentOutcome), args.Error(1)
}

type MockEscalator struct {
	mock.Mock
}

func (m *MockEscalator) Escalate(ctx context.Context, tx pgx.Tx, acc *account.Account, d *deal.Deal, outcome *deal.PaymentOutcome, period shared.Period, correlationID string) error {
	args := m.Called(ctx, tx, acc, d, outcome, period, correlationID)
	return args.Error(0)
}

func TestAccountProcessor_RedeliveredPeriodDoesNotChargeTwice(t *testing.T) {
	// Kafka delivers at least once, so the same period event can arrive
	// again after the account already committed its month. The second run
	// must see the period stamp on every deal and leave the money alone.
	pool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer pool.Close()

	acc := testAccount(t, "5000.00")
	d := testFinanceDeal(t, acc)
	period := shared.Period{Year: 2025, Month: 2}

	accountRepo := &MockAccountRepo{}
	accountRepo.On("WithTx", mock.Anything).Return()
	accountRepo.On("LockForUpdate", mock.Anything, acc.ID).Return(acc, nil)
	accountRepo.On("Update", mock.Anything, acc).Return(nil)

	dealRepo := &MockDealRepo{}
	dealRepo.On("WithTx", mock.Anything).Return()
	dealRepo.On("ListActiveByAccount", mock.Anything, acc.ID).Return([]*deal.Deal{d}, nil)
	dealRepo.On("Update", mock.Anything, d).Return(nil)

	profileRepo := &MockProfileRepo{}
	profileRepo.On("WithTx", mock.Anything).Return()
	profileRepo.On("GetByAccountID", mock.Anything, acc.ID).Return(nil, nil)
	profileRepo.On("Upsert", mock.Anything, mock.Anything).Return(nil)

	statsRepo := &MockStatsRepo{}
	statsRepo.On("WithTx", mock.Anything).Return()
	statsRepo.On("Apply", mock.Anything, acc.ID, mock.Anything).Return(nil)

	outboxRepo := &MockOutboxRepo{}
	outboxRepo.On("WithTx", mock.Anything).Return()
	outboxRepo.On("Create", mock.Anything, mock.Anything).Return(nil)

	escalator := &MockEscalator{}

	processor := &AccountProcessorImpl{
		pool:        pool,
		accountRepo: accountRepo,
		dealRepo:    dealRepo,
		collector:   NewPaymentCollector(dealRepo, profileRepo, statsRepo, outboxRepo, slog.Default()),
		escalator:   escalator,
		logger:      slog.Default(),
	}

	pool.ExpectBegin()
	pool.ExpectCommit()
	require.NoError(t, processor.ProcessAccount(context.Background(), acc.ID, period, "corr1"))

	require.Equal(t, 1, d.MonthsPaid)
	require.Equal(t, period.Key(), d.LastProcessedPeriod)
	balanceAfterFirst := acc.Balance

	pool.ExpectBegin()
	pool.ExpectCommit()
	require.NoError(t, processor.ProcessAccount(context.Background(), acc.ID, period, "corr1"))

	assert.Equal(t, 1, d.MonthsPaid, "redelivery must not advance the amortization")
	assert.True(t, acc.Balance.Equal(balanceAfterFirst), "redelivery must not charge the balance again")
	dealRepo.AssertNumberOfCalls(t, "Update", 1)
	statsRepo.AssertNumberOfCalls(t, "Apply", 1)
	outboxRepo.AssertNumberOfCalls(t, "Create", 1)
	accountRepo.AssertNumberOfCalls(t, "Update", 2)
	escalator.AssertNotCalled(t, "Escalate", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	assert.NoError(t, pool.ExpectationsWereMet())
}

func TestAccountProcessor_CollectorErrorRollsBack(t *testing.T) {
	pool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer pool.Close()

	acc := testAccount(t, "5000.00")
	d := testFinanceDeal(t, acc)
	period := shared.Period{Year: 2025, Month: 2}

	accountRepo := &MockAccountRepo{}
	accountRepo.On("WithTx", mock.Anything).Return()
	accountRepo.On("LockForUpdate", mock.Anything, acc.ID).Return(acc, nil)

	dealRepo := &MockDealRepo{}
	dealRepo.On("WithTx", mock.Anything).Return()
	dealRepo.On("ListActiveByAccount", mock.Anything, acc.ID).Return([]*deal.Deal{d}, nil)

	collectErr := errors.New("collect failed")
	collector := &MockCollector{}
	collector.On("Collect", mock.Anything, mock.Anything, acc, d, period, "").Return(nil, collectErr)

	processor := &AccountProcessorImpl{
		pool:        pool,
		accountRepo: accountRepo,
		dealRepo:    dealRepo,
		collector:   collector,
		escalator:   &MockEscalator{},
		logger:      slog.Default(),
	}

	pool.ExpectBegin()
	pool.ExpectRollback()
	err = processor.ProcessAccount(context.Background(), acc.ID, period, "")
	assert.ErrorIs(t, err, collectErr)
	accountRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	assert.NoError(t, pool.ExpectationsWereMet())
}
