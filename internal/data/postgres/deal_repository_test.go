package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/agrocredit-engine/internal/domain/deal"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var dealTestColumns = []string{
	"id", "account_id", "kind", "item_kind", "item_asset_id", "item_name",
	"original_price_cents", "down_payment_cents", "cash_back_cents", "amount_financed_cents",
	"term_months", "annual_rate_hundredths",
	"monthly_payment_cents", "current_balance_cents", "accrued_interest_cents",
	"months_paid", "total_interest_paid_cents", "missed_payments", "ever_missed",
	"payment_mode", "payment_multiplier_hundredths", "configured_payment_cents", "last_payment_cents",
	"last_processed_period", "created_period", "status",
	"lease", "collateral", "repossessed",
	"version", "created_at", "updated_at",
}

func dealTestRow(rows *pgxmock.Rows, id, accountID, assetID uuid.UUID, kind deal.Kind, mode deal.PaymentMode, now time.Time) *pgxmock.Rows {
	return rows.AddRow(
		id, accountID, kind, deal.ItemVehicle, &assetID, "Harvester",
		int64(3200000), int64(0), int64(0), int64(3200000),
		60, int64(600),
		int64(61865), int64(3200000), int64(0),
		0, int64(0), 0, false,
		mode, int64(100), int64(0), int64(0),
		"", "2025-01", deal.StatusActive,
		[]byte(nil), []byte(nil), []byte(nil),
		1, now, now,
	)
}

func TestDealRepository_GetByID(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &DealRepository{querier: mock, logger: logger}
	dealID := uuid.New()
	accountID := uuid.New()
	assetID := uuid.New()
	now := time.Now()

	t.Run("success", func(t *testing.T) {
		rows := dealTestRow(pgxmock.NewRows(dealTestColumns), dealID, accountID, assetID, deal.KindFinance, deal.ModeStandard, now)
		mock.ExpectQuery(`SELECT (.+) FROM deals WHERE id = \$1`).WithArgs(dealID).WillReturnRows(rows)

		d, err := repo.GetByID(ctx, dealID)
		assert.NoError(t, err)
		require.NotNil(t, d)
		assert.Equal(t, dealID, d.ID)
		assert.Equal(t, deal.KindFinance, d.Kind)
		assert.Equal(t, assetID, d.Item.AssetID)
		assert.True(t, d.AnnualRate.Equal(decimal.NewFromInt(6)))
		assert.True(t, d.MonthlyPayment.Equal(decimal.RequireFromString("618.65")))
		assert.Nil(t, d.Lease)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery(`SELECT (.+) FROM deals WHERE id = \$1`).WithArgs(dealID).WillReturnError(pgx.ErrNoRows)

		d, err := repo.GetByID(ctx, dealID)
		assert.Error(t, err)
		assert.Nil(t, d)
		var notFoundErr deal.ErrDealNotFound
		assert.ErrorAs(t, err, &notFoundErr)
		assert.Equal(t, dealID, notFoundErr.DealID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestDealRepository_ListActiveByAccount(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &DealRepository{querier: mock, logger: logger}
	accountID := uuid.New()
	now := time.Now()

	t.Run("skips rows with unknown kind", func(t *testing.T) {
		goodID := uuid.New()
		rows := pgxmock.NewRows(dealTestColumns)
		rows = dealTestRow(rows, goodID, accountID, uuid.New(), deal.KindFinance, deal.ModeStandard, now)
		rows = dealTestRow(rows, uuid.New(), accountID, uuid.New(), deal.Kind("SUBSCRIPTION"), deal.ModeStandard, now)
		mock.ExpectQuery(`SELECT (.+) FROM deals WHERE account_id = \$1 AND status = \$2`).
			WithArgs(accountID, deal.StatusActive).
			WillReturnRows(rows)

		deals, err := repo.ListActiveByAccount(ctx, accountID)
		assert.NoError(t, err)
		require.Len(t, deals, 1)
		assert.Equal(t, goodID, deals[0].ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestDealRepository_ListAccountsWithActiveDeals(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &DealRepository{querier: mock, logger: logger}

	t.Run("success", func(t *testing.T) {
		first := uuid.New()
		second := uuid.New()
		rows := pgxmock.NewRows([]string{"account_id"}).AddRow(first).AddRow(second)
		mock.ExpectQuery(`SELECT DISTINCT account_id FROM deals WHERE status = \$1`).
			WithArgs(deal.StatusActive).
			WillReturnRows(rows)

		ids, err := repo.ListAccountsWithActiveDeals(ctx)
		assert.NoError(t, err)
		assert.Equal(t, []uuid.UUID{first, second}, ids)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestDealRepository_SumActiveBalances(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &DealRepository{querier: mock, logger: logger}
	accountID := uuid.New()

	t.Run("success", func(t *testing.T) {
		rows := pgxmock.NewRows([]string{"sum"}).AddRow(int64(1234500))
		mock.ExpectQuery(`SELECT COALESCE\(SUM\(current_balance_cents \+ accrued_interest_cents\), 0\)`).
			WithArgs(accountID, deal.StatusActive).
			WillReturnRows(rows)

		total, err := repo.SumActiveBalances(ctx, accountID)
		assert.NoError(t, err)
		assert.Equal(t, int64(1234500), total)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestDealRepository_Update(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &DealRepository{querier: mock, logger: logger}

	newDeal := func() *deal.Deal {
		return &deal.Deal{
			ID:                uuid.New(),
			AccountID:         uuid.New(),
			Kind:              deal.KindFinance,
			Item:              deal.ItemRef{Kind: deal.ItemVehicle, Name: "Harvester"},
			Status:            deal.StatusActive,
			PaymentMode:       deal.ModeStandard,
			PaymentMultiplier: decimal.NewFromInt(1),
			Version:           2,
			UpdatedAt:         time.Now(),
		}
	}

	t.Run("success bumps the tracked version", func(t *testing.T) {
		d := newDeal()
		mock.ExpectExec(`UPDATE deals`).
			WithArgs(
				int64(0), int64(0), int64(0),
				0, int64(0), 0, false,
				deal.ModeStandard, int64(100), int64(0),
				int64(0), "", deal.StatusActive,
				[]byte(nil), d.UpdatedAt,
				d.ID, 2,
			).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		err := repo.Update(ctx, d)
		assert.NoError(t, err)
		assert.Equal(t, 3, d.Version)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("stale version", func(t *testing.T) {
		d := newDeal()
		mock.ExpectExec(`UPDATE deals`).
			WithArgs(
				int64(0), int64(0), int64(0),
				0, int64(0), 0, false,
				deal.ModeStandard, int64(100), int64(0),
				int64(0), "", deal.StatusActive,
				[]byte(nil), d.UpdatedAt,
				d.ID, 2,
			).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err := repo.Update(ctx, d)
		assert.Error(t, err)
		var notFoundErr deal.ErrDealNotFound
		assert.ErrorAs(t, err, &notFoundErr)
		assert.Equal(t, 2, d.Version, "failed update leaves the version untouched")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("sequential updates in one transaction", func(t *testing.T) {
		// The monthly batch can persist the same deal twice on one
		// transaction: the collector writes the skipped period, then the
		// escalator defaults the deal and writes again. The second update
		// must predicate on the row as the first one left it, however many
		// domain mutations ran in between.
		d := newDeal()

		mock.ExpectExec(`UPDATE deals`).
			WithArgs(
				pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
				pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
				pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
				pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
				pgxmock.AnyArg(), pgxmock.AnyArg(),
				d.ID, 2,
			).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		require.NoError(t, repo.Update(ctx, d))

		d.MarkDefaulted()
		d.RecordRepossession(deal.RepossessedItem{
			AssetID:  uuid.New(),
			Name:     "Harvester",
			Period:   "2025-03",
			SeizedAt: time.Now(),
		})

		mock.ExpectExec(`UPDATE deals`).
			WithArgs(
				pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
				pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
				pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
				pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
				pgxmock.AnyArg(), pgxmock.AnyArg(),
				d.ID, 3,
			).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		require.NoError(t, repo.Update(ctx, d))

		assert.Equal(t, 4, d.Version)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
