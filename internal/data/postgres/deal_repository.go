package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/agrocredit-engine/internal/domain/deal"
	"github.com/agrocredit-engine/internal/platform/persistence"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// DealRepository implements the deal.Repository interface for PostgreSQL.
// Monetary columns are BIGINT cents; rates and multipliers are BIGINT
// hundredths. Variant data (lease terms, collateral, repossessions) lives
// in JSONB columns.
type DealRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewDealRepository creates a new PostgreSQL deal repository
func NewDealRepository(logger *slog.Logger, db *persistence.PostgresDB) deal.Repository {
	return &DealRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction for atomic operations
func (r *DealRepository) WithTx(tx pgx.Tx) deal.Repository {
	return &DealRepository{
		querier: tx,
		logger:  r.logger,
	}
}

const dealColumns = `
	id, account_id, kind, item_kind, item_asset_id, item_name,
	original_price_cents, down_payment_cents, cash_back_cents, amount_financed_cents,
	term_months, annual_rate_hundredths,
	monthly_payment_cents, current_balance_cents, accrued_interest_cents,
	months_paid, total_interest_paid_cents, missed_payments, ever_missed,
	payment_mode, payment_multiplier_hundredths, configured_payment_cents, last_payment_cents,
	last_processed_period, created_period, status,
	lease, collateral, repossessed,
	version, created_at, updated_at`

func toHundredths(d decimal.Decimal) int64 {
	return d.Shift(2).Round(0).IntPart()
}

func fromHundredths(v int64) decimal.Decimal {
	return decimal.New(v, -2)
}

func marshalOrNil(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

// Create stores a new deal
func (r *DealRepository) Create(ctx context.Context, d *deal.Deal) error {
	query := `
		INSERT INTO deals (` + dealColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16,
			$17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29, $30, $31, $32)
	`

	args, err := r.dealArgs(d)
	if err != nil {
		return err
	}

	if _, err := r.querier.Exec(ctx, query, args...); err != nil {
		r.logger.Error("Failed to create deal", "deal_id", d.ID.String(), "error", err)
		return fmt.Errorf("failed to create deal: %w", err)
	}

	return nil
}

func (r *DealRepository) dealArgs(d *deal.Deal) ([]any, error) {
	var itemAssetID *uuid.UUID
	if d.Item.AssetID != uuid.Nil {
		itemAssetID = &d.Item.AssetID
	}

	leaseJSON, err := marshalOrNil(ptrAny(d.Lease))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal lease terms: %w", err)
	}
	collateralJSON, err := marshalOrNil(sliceAny(d.Collateral))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal collateral: %w", err)
	}
	repossessedJSON, err := marshalOrNil(sliceAny(d.Repossessed))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal repossessions: %w", err)
	}

	return []any{
		d.ID, d.AccountID, d.Kind, d.Item.Kind, itemAssetID, d.Item.Name,
		toCents(d.OriginalPrice), toCents(d.DownPayment), toCents(d.CashBack), toCents(d.AmountFinanced),
		d.TermMonths, toHundredths(d.AnnualRate),
		toCents(d.MonthlyPayment), toCents(d.CurrentBalance), toCents(d.AccruedInterest),
		d.MonthsPaid, toCents(d.TotalInterestPaid), d.MissedPayments, d.EverMissed,
		d.PaymentMode, toHundredths(d.PaymentMultiplier), toCents(d.ConfiguredPayment), toCents(d.LastPaymentAmount),
		d.LastProcessedPeriod, d.CreatedPeriod, d.Status,
		leaseJSON, collateralJSON, repossessedJSON,
		d.Version, d.CreatedAt, d.UpdatedAt,
	}, nil
}

func ptrAny(l *deal.LeaseTerms) any {
	if l == nil {
		return nil
	}
	return l
}

func sliceAny[T any](s []T) any {
	if len(s) == 0 {
		return nil
	}
	return s
}

func (r *DealRepository) scanDeal(row pgx.Row) (*deal.Deal, error) {
	var d deal.Deal
	var itemAssetID *uuid.UUID
	var priceCents, downCents, cashBackCents, financedCents int64
	var rateHundredths, monthlyCents, balanceCents, accruedCents int64
	var totalInterestCents, multiplierHundredths, configuredCents, lastPaymentCents int64
	var leaseJSON, collateralJSON, repossessedJSON []byte

	err := row.Scan(
		&d.ID, &d.AccountID, &d.Kind, &d.Item.Kind, &itemAssetID, &d.Item.Name,
		&priceCents, &downCents, &cashBackCents, &financedCents,
		&d.TermMonths, &rateHundredths,
		&monthlyCents, &balanceCents, &accruedCents,
		&d.MonthsPaid, &totalInterestCents, &d.MissedPayments, &d.EverMissed,
		&d.PaymentMode, &multiplierHundredths, &configuredCents, &lastPaymentCents,
		&d.LastProcessedPeriod, &d.CreatedPeriod, &d.Status,
		&leaseJSON, &collateralJSON, &repossessedJSON,
		&d.Version, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if itemAssetID != nil {
		d.Item.AssetID = *itemAssetID
	}
	d.OriginalPrice = fromCents(priceCents)
	d.DownPayment = fromCents(downCents)
	d.CashBack = fromCents(cashBackCents)
	d.AmountFinanced = fromCents(financedCents)
	d.AnnualRate = fromHundredths(rateHundredths)
	d.MonthlyPayment = fromCents(monthlyCents)
	d.CurrentBalance = fromCents(balanceCents)
	d.AccruedInterest = fromCents(accruedCents)
	d.TotalInterestPaid = fromCents(totalInterestCents)
	d.PaymentMultiplier = fromHundredths(multiplierHundredths)
	d.ConfiguredPayment = fromCents(configuredCents)
	d.LastPaymentAmount = fromCents(lastPaymentCents)

	if len(leaseJSON) > 0 {
		var lease deal.LeaseTerms
		if err := json.Unmarshal(leaseJSON, &lease); err != nil {
			return nil, fmt.Errorf("failed to unmarshal lease terms: %w", err)
		}
		d.Lease = &lease
	}
	if len(collateralJSON) > 0 {
		if err := json.Unmarshal(collateralJSON, &d.Collateral); err != nil {
			return nil, fmt.Errorf("failed to unmarshal collateral: %w", err)
		}
	}
	if len(repossessedJSON) > 0 {
		if err := json.Unmarshal(repossessedJSON, &d.Repossessed); err != nil {
			return nil, fmt.Errorf("failed to unmarshal repossessions: %w", err)
		}
	}

	return &d, nil
}

// GetByID retrieves a deal by its ID
func (r *DealRepository) GetByID(ctx context.Context, id uuid.UUID) (*deal.Deal, error) {
	query := `SELECT ` + dealColumns + ` FROM deals WHERE id = $1`

	d, err := r.scanDeal(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, deal.ErrDealNotFound{DealID: id}
		}
		r.logger.Error("Failed to get deal", "deal_id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get deal: %w", err)
	}

	return d, nil
}

// Update persists the mutable state of an existing deal using optimistic
// locking. The version predicate matches the version the deal was loaded
// with, however many in-memory mutations happened since, and the row's
// version advances by one.
func (r *DealRepository) Update(ctx context.Context, d *deal.Deal) error {
	query := `
		UPDATE deals
		SET monthly_payment_cents = $1, current_balance_cents = $2, accrued_interest_cents = $3,
			months_paid = $4, total_interest_paid_cents = $5, missed_payments = $6, ever_missed = $7,
			payment_mode = $8, payment_multiplier_hundredths = $9, configured_payment_cents = $10,
			last_payment_cents = $11, last_processed_period = $12, status = $13,
			repossessed = $14, version = version + 1, updated_at = $15
		WHERE id = $16 AND version = $17
	`

	repossessedJSON, err := marshalOrNil(sliceAny(d.Repossessed))
	if err != nil {
		return fmt.Errorf("failed to marshal repossessions: %w", err)
	}

	result, err := r.querier.Exec(ctx, query,
		toCents(d.MonthlyPayment), toCents(d.CurrentBalance), toCents(d.AccruedInterest),
		d.MonthsPaid, toCents(d.TotalInterestPaid), d.MissedPayments, d.EverMissed,
		d.PaymentMode, toHundredths(d.PaymentMultiplier), toCents(d.ConfiguredPayment),
		toCents(d.LastPaymentAmount), d.LastProcessedPeriod, d.Status,
		repossessedJSON, d.UpdatedAt,
		d.ID, d.Version,
	)
	if err != nil {
		r.logger.Error("Failed to update deal", "deal_id", d.ID.String(), "error", err)
		return fmt.Errorf("failed to update deal: %w", err)
	}

	if result.RowsAffected() == 0 {
		return deal.ErrDealNotFound{DealID: d.ID}
	}

	// Track the stored version so a follow-up Update in the same
	// transaction predicates on the row as it now stands.
	d.Version++
	return nil
}

func (r *DealRepository) listDeals(ctx context.Context, query string, args ...any) ([]*deal.Deal, error) {
	rows, err := r.querier.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list deals", "error", err)
		return nil, fmt.Errorf("failed to list deals: %w", err)
	}
	defer rows.Close()

	var deals []*deal.Deal
	for rows.Next() {
		d, err := r.scanDeal(rows)
		if err != nil {
			r.logger.Error("Failed to scan deal row", "error", err)
			return nil, fmt.Errorf("failed to scan deal row: %w", err)
		}
		// Rows written by newer or corrupted code are skipped, not fatal.
		if !deal.ValidKind(d.Kind) || !deal.ValidPaymentMode(d.PaymentMode) {
			r.logger.Warn("Skipping deal with unknown kind or payment mode",
				"deal_id", d.ID.String(),
				"kind", string(d.Kind),
				"payment_mode", string(d.PaymentMode),
			)
			continue
		}
		deals = append(deals, d)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("Error iterating over deal rows", "error", err)
		return nil, fmt.Errorf("error iterating over deal rows: %w", err)
	}

	return deals, nil
}

// ListByAccount retrieves all deals registered to an account in creation order
func (r *DealRepository) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]*deal.Deal, error) {
	query := `SELECT ` + dealColumns + ` FROM deals WHERE account_id = $1 ORDER BY created_at ASC`
	return r.listDeals(ctx, query, accountID)
}

// ListActiveByAccount retrieves the active deals of an account in creation order
func (r *DealRepository) ListActiveByAccount(ctx context.Context, accountID uuid.UUID) ([]*deal.Deal, error) {
	query := `SELECT ` + dealColumns + ` FROM deals WHERE account_id = $1 AND status = $2 ORDER BY created_at ASC`
	return r.listDeals(ctx, query, accountID, deal.StatusActive)
}

// ListAccountsWithActiveDeals returns the distinct account ids holding at
// least one active deal. The monthly batch fans out over this set.
func (r *DealRepository) ListAccountsWithActiveDeals(ctx context.Context) ([]uuid.UUID, error) {
	query := `SELECT DISTINCT account_id FROM deals WHERE status = $1`

	rows, err := r.querier.Query(ctx, query, deal.StatusActive)
	if err != nil {
		r.logger.Error("Failed to list accounts with active deals", "error", err)
		return nil, fmt.Errorf("failed to list accounts with active deals: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			r.logger.Error("Failed to scan account id", "error", err)
			return nil, fmt.Errorf("failed to scan account id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("Error iterating over account ids", "error", err)
		return nil, fmt.Errorf("error iterating over account ids: %w", err)
	}

	return ids, nil
}

// SumActiveBalances totals outstanding debt (balance plus carried interest)
// across an account's active deals, in cents.
func (r *DealRepository) SumActiveBalances(ctx context.Context, accountID uuid.UUID) (int64, error) {
	query := `
		SELECT COALESCE(SUM(current_balance_cents + accrued_interest_cents), 0)
		FROM deals
		WHERE account_id = $1 AND status = $2
	`

	var total int64
	if err := r.querier.QueryRow(ctx, query, accountID, deal.StatusActive).Scan(&total); err != nil {
		r.logger.Error("Failed to sum active balances", "account_id", accountID.String(), "error", err)
		return 0, fmt.Errorf("failed to sum active balances: %w", err)
	}

	return total, nil
}
