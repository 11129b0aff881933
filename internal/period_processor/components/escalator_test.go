package components

import (
	"context"
	"testing"

	"log/slog"

	"github.com/agrocredit-engine/internal/domain/asset"
	"github.com/agrocredit-engine/internal/domain/credit"
	"github.com/agrocredit-engine/internal/domain/deal"
	"github.com/agrocredit-engine/internal/domain/outbox"
	"github.com/agrocredit-engine/internal/domain/shared"
	"github.com/agrocredit-engine/internal/domain/statistics"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockAssetRepo for testing
type MockAssetRepo struct {
	mock.Mock
}

func (m *MockAssetRepo) Create(ctx context.Context, a *asset.Asset) error {
	args := m.Called(ctx, a)
	return args.Error(0)
}

func (m *MockAssetRepo) FindByID(ctx context.Context, id uuid.UUID) (*asset.Asset, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*asset.Asset), args.Error(1)
}

func (m *MockAssetRepo) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*asset.Asset, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*asset.Asset), args.Error(1)
}

func (m *MockAssetRepo) SumValuesByOwner(ctx context.Context, ownerID uuid.UUID) (int64, error) {
	args := m.Called(ctx, ownerID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockAssetRepo) SetOwner(ctx context.Context, id uuid.UUID, ownerID *uuid.UUID) error {
	args := m.Called(ctx, id, ownerID)
	return args.Error(0)
}

func (m *MockAssetRepo) Remove(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockAssetRepo) WithTx(tx pgx.Tx) asset.Repository {
	m.Called(tx)
	return m
}

const testStrikeLimit = 3

type escalatorMocks struct {
	dealRepo    *MockDealRepo
	assetRepo   *MockAssetRepo
	profileRepo *MockProfileRepo
	statsRepo   *MockStatsRepo
	outboxRepo  *MockOutboxRepo
}

func newEscalatorMocks() *escalatorMocks {
	m := &escalatorMocks{
		dealRepo:    &MockDealRepo{},
		assetRepo:   &MockAssetRepo{},
		profileRepo: &MockProfileRepo{},
		statsRepo:   &MockStatsRepo{},
		outboxRepo:  &MockOutboxRepo{},
	}
	m.dealRepo.On("WithTx", mock.Anything).Return()
	m.assetRepo.On("WithTx", mock.Anything).Return()
	m.profileRepo.On("WithTx", mock.Anything).Return()
	m.statsRepo.On("WithTx", mock.Anything).Return()
	m.outboxRepo.On("WithTx", mock.Anything).Return()
	return m
}

func (m *escalatorMocks) escalator() *EscalatorImpl {
	return NewEscalator(m.dealRepo, m.assetRepo, m.profileRepo, m.statsRepo, m.outboxRepo, testStrikeLimit, slog.Default()).(*EscalatorImpl)
}

func TestEscalator_FirstStrikeRecordsMissedEvent(t *testing.T) {
	m := newEscalatorMocks()
	acc := testAccount(t, "0.00")
	d := testFinanceDeal(t, acc)
	outcome := &deal.PaymentOutcome{Category: deal.OutcomeSkipped, Strikes: 1}

	m.profileRepo.On("GetByAccountID", mock.Anything, acc.ID).Return(nil, nil).Once()
	m.profileRepo.On("Upsert", mock.Anything, mock.MatchedBy(func(p *credit.Profile) bool {
		return p.EventAdjustment == -40
	})).Return(nil).Once()

	var createdMsg *outbox.Message
	m.outboxRepo.On("Create", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		createdMsg = args.Get(1).(*outbox.Message)
	}).Return(nil).Once()

	err := m.escalator().Escalate(context.Background(), nil, acc, d, outcome, shared.Period{Year: 2025, Month: 2}, "")

	assert.NoError(t, err)

	// The strike costs score but raises no alarm yet; the collector
	// already told the player about the missed payment itself.
	record := extractRecord(t, createdMsg)
	require.NotNil(t, record.Event)
	assert.Equal(t, credit.EventPaymentMissed, record.Event.Type)
	assert.Equal(t, -40, record.Event.Delta)
	assert.Nil(t, record.Notification)

	m.dealRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	m.profileRepo.AssertExpectations(t)
	m.outboxRepo.AssertExpectations(t)
}

func TestEscalator_FinalWarningBeforeLimit(t *testing.T) {
	m := newEscalatorMocks()
	acc := testAccount(t, "0.00")
	d := testFinanceDeal(t, acc)
	outcome := &deal.PaymentOutcome{Category: deal.OutcomeSkipped, Strikes: testStrikeLimit - 1}

	m.profileRepo.On("GetByAccountID", mock.Anything, acc.ID).Return(nil, nil).Once()
	m.profileRepo.On("Upsert", mock.Anything, mock.Anything).Return(nil).Once()

	var messages []*outbox.Message
	m.outboxRepo.On("Create", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		messages = append(messages, args.Get(1).(*outbox.Message))
	}).Return(nil).Twice()

	err := m.escalator().Escalate(context.Background(), nil, acc, d, outcome, shared.Period{Year: 2025, Month: 2}, "corr1")

	assert.NoError(t, err)
	require.Len(t, messages, 2)

	strike := extractRecord(t, messages[0])
	assert.Equal(t, credit.EventPaymentMissed, strike.Event.Type)

	warning := extractRecord(t, messages[1])
	assert.Nil(t, warning.Event)
	assert.Equal(t, shared.MsgFinalWarning, warning.Notification.MessageKey)
	assert.Equal(t, shared.SeverityCritical, warning.Notification.Severity)

	m.dealRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	m.outboxRepo.AssertExpectations(t)
}

func TestEscalator_DefaultRepossessesEquipment(t *testing.T) {
	m := newEscalatorMocks()
	acc := testAccount(t, "0.00")
	d := testFinanceDeal(t, acc)
	outcome := &deal.PaymentOutcome{Category: deal.OutcomeSkipped, Strikes: testStrikeLimit}
	period := shared.Period{Year: 2025, Month: 4}

	seizedAsset := &asset.Asset{
		ID:    d.Item.AssetID,
		Kind:  asset.KindEquipment,
		Name:  "Harvester",
		Value: decimal.NewFromInt(12000),
	}

	m.assetRepo.On("FindByID", mock.Anything, d.Item.AssetID).Return(seizedAsset, nil).Once()
	m.assetRepo.On("Remove", mock.Anything, d.Item.AssetID).Return(nil).Once()
	m.dealRepo.On("Update", mock.Anything, d).Return(nil).Once()
	m.profileRepo.On("GetByAccountID", mock.Anything, acc.ID).Return(nil, nil).Twice()
	m.profileRepo.On("Upsert", mock.Anything, mock.MatchedBy(func(p *credit.Profile) bool {
		return p.EventAdjustment == -40
	})).Return(nil).Once()
	m.profileRepo.On("Upsert", mock.Anything, mock.MatchedBy(func(p *credit.Profile) bool {
		return p.EventAdjustment == -80
	})).Return(nil).Once()
	m.statsRepo.On("Apply", mock.Anything, acc.ID, statistics.Delta{
		DealsDefaulted: 1,
		Repossessions:  1,
	}).Return(nil).Once()

	var messages []*outbox.Message
	m.outboxRepo.On("Create", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		messages = append(messages, args.Get(1).(*outbox.Message))
	}).Return(nil).Times(3)

	err := m.escalator().Escalate(context.Background(), nil, acc, d, outcome, period, "corr1")

	assert.NoError(t, err)
	assert.Equal(t, deal.StatusDefaulted, d.Status)
	assert.Len(t, d.Repossessed, 1)
	assert.Equal(t, "Harvester", d.Repossessed[0].Name)
	assert.False(t, d.Repossessed[0].NotFound)

	require.Len(t, messages, 3)
	strike := extractRecord(t, messages[0])
	assert.Equal(t, credit.EventPaymentMissed, strike.Event.Type)
	repossession := extractRecord(t, messages[1])
	assert.Equal(t, shared.MsgAssetRepossessed, repossession.Notification.MessageKey)
	defaulted := extractRecord(t, messages[2])
	assert.Equal(t, credit.EventDealDefaulted, defaulted.Event.Type)
	assert.Equal(t, shared.MsgDealDefaulted, defaulted.Notification.MessageKey)

	m.assetRepo.AssertExpectations(t)
	m.statsRepo.AssertExpectations(t)
	m.outboxRepo.AssertExpectations(t)
}

func TestEscalator_DefaultSeizesLandToUnowned(t *testing.T) {
	m := newEscalatorMocks()
	acc := testAccount(t, "0.00")
	d := testFinanceDeal(t, acc)
	d.Item.Kind = deal.ItemLand
	outcome := &deal.PaymentOutcome{Category: deal.OutcomeSkipped, Strikes: testStrikeLimit}

	parcel := &asset.Asset{
		ID:    d.Item.AssetID,
		Kind:  asset.KindLand,
		Name:  "South Pasture",
		Value: decimal.NewFromInt(40000),
	}

	m.assetRepo.On("FindByID", mock.Anything, d.Item.AssetID).Return(parcel, nil).Once()
	m.assetRepo.On("SetOwner", mock.Anything, d.Item.AssetID, (*uuid.UUID)(nil)).Return(nil).Once()
	m.dealRepo.On("Update", mock.Anything, d).Return(nil).Once()
	m.profileRepo.On("GetByAccountID", mock.Anything, acc.ID).Return(nil, nil).Twice()
	m.profileRepo.On("Upsert", mock.Anything, mock.Anything).Return(nil).Twice()
	m.statsRepo.On("Apply", mock.Anything, acc.ID, mock.Anything).Return(nil).Once()

	var messages []*outbox.Message
	m.outboxRepo.On("Create", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		messages = append(messages, args.Get(1).(*outbox.Message))
	}).Return(nil).Times(3)

	err := m.escalator().Escalate(context.Background(), nil, acc, d, outcome, shared.Period{Year: 2025, Month: 4}, "")

	assert.NoError(t, err)
	m.assetRepo.AssertNotCalled(t, "Remove", mock.Anything, mock.Anything)

	require.Len(t, messages, 3)
	seizure := extractRecord(t, messages[1])
	assert.Equal(t, shared.MsgLandSeized, seizure.Notification.MessageKey)

	m.assetRepo.AssertExpectations(t)
}

func TestEscalator_DefaultRecordsMissingAsset(t *testing.T) {
	m := newEscalatorMocks()
	acc := testAccount(t, "0.00")
	d := testFinanceDeal(t, acc)
	outcome := &deal.PaymentOutcome{Category: deal.OutcomeSkipped, Strikes: testStrikeLimit}

	m.assetRepo.On("FindByID", mock.Anything, d.Item.AssetID).Return(nil, nil).Once()
	m.dealRepo.On("Update", mock.Anything, d).Return(nil).Once()
	m.profileRepo.On("GetByAccountID", mock.Anything, acc.ID).Return(nil, nil).Twice()
	m.profileRepo.On("Upsert", mock.Anything, mock.Anything).Return(nil).Twice()
	m.statsRepo.On("Apply", mock.Anything, acc.ID, statistics.Delta{
		DealsDefaulted: 1,
		Repossessions:  1,
	}).Return(nil).Once()

	m.outboxRepo.On("Create", mock.Anything, mock.Anything).Return(nil).Twice()

	err := m.escalator().Escalate(context.Background(), nil, acc, d, outcome, shared.Period{Year: 2025, Month: 4}, "")

	assert.NoError(t, err)
	assert.Len(t, d.Repossessed, 1)
	assert.True(t, d.Repossessed[0].NotFound)
	m.assetRepo.AssertNotCalled(t, "Remove", mock.Anything, mock.Anything)
	m.assetRepo.AssertNotCalled(t, "SetOwner", mock.Anything, mock.Anything, mock.Anything)
	m.outboxRepo.AssertExpectations(t)
}

func TestEscalator_DefaultSeizesCashLoanCollateral(t *testing.T) {
	m := newEscalatorMocks()
	acc := testAccount(t, "0.00")

	collateral := []deal.PledgedAsset{
		{AssetID: uuid.New(), Name: "Plow", DeclaredValue: decimal.NewFromInt(3000)},
		{AssetID: uuid.New(), Name: "Seeder", DeclaredValue: decimal.NewFromInt(4500)},
	}
	d, err := deal.NewCashLoan(deal.Terms{
		AccountID:  acc.ID,
		Item:       deal.ItemRef{Name: "Operating loan"},
		Price:      decimal.NewFromInt(6000),
		TermMonths: 24,
		AnnualRate: decimal.NewFromInt(9),
		Period:     shared.Period{Year: 2025, Month: 1},
	}, collateral, 12, 120)
	assert.NoError(t, err)
	outcome := &deal.PaymentOutcome{Category: deal.OutcomeSkipped, Strikes: testStrikeLimit}

	for _, pledged := range collateral {
		m.assetRepo.On("FindByID", mock.Anything, pledged.AssetID).Return(&asset.Asset{
			ID:    pledged.AssetID,
			Kind:  asset.KindEquipment,
			Name:  pledged.Name,
			Value: pledged.DeclaredValue,
		}, nil).Once()
		m.assetRepo.On("Remove", mock.Anything, pledged.AssetID).Return(nil).Once()
	}
	m.dealRepo.On("Update", mock.Anything, d).Return(nil).Once()
	m.profileRepo.On("GetByAccountID", mock.Anything, acc.ID).Return(nil, nil).Twice()
	m.profileRepo.On("Upsert", mock.Anything, mock.Anything).Return(nil).Twice()
	m.statsRepo.On("Apply", mock.Anything, acc.ID, statistics.Delta{
		DealsDefaulted: 1,
		Repossessions:  2,
	}).Return(nil).Once()
	m.outboxRepo.On("Create", mock.Anything, mock.Anything).Return(nil).Times(4)

	err = m.escalator().Escalate(context.Background(), nil, acc, d, outcome, shared.Period{Year: 2025, Month: 4}, "")

	assert.NoError(t, err)
	assert.Len(t, d.Repossessed, 2)
	m.assetRepo.AssertExpectations(t)
	m.statsRepo.AssertExpectations(t)
	m.outboxRepo.AssertExpectations(t)
}
