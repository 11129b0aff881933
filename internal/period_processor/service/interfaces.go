package service

import (
	"context"

	"github.com/agrocredit-engine/internal/domain/account"
	"github.com/agrocredit-engine/internal/domain/deal"
	"github.com/agrocredit-engine/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// PeriodService defines the interface for processing period change events.
type PeriodService interface {
	ProcessPeriod(ctx context.Context, event *shared.PeriodChangedEvent) error
}

// AccountProcessor runs the monthly collection for one account: locking the
// balance, walking the account's active deals and applying each charge.
type AccountProcessor interface {
	ProcessAccount(ctx context.Context, accountID uuid.UUID, period shared.Period, correlationID string) error
}

// PaymentCollector applies one deal's monthly charge inside the supplied
// database transaction and records the credit consequences.
type PaymentCollector interface {
	Collect(ctx context.Context, tx pgx.Tx, acc *account.Account, d *deal.Deal, period shared.Period, correlationID string) (*deal.PaymentOutcome, error)
}

// Escalator reacts to missed payments: warnings first, then default and
// repossession once the strike limit is reached.
type Escalator interface {
	Escalate(ctx context.Context, tx pgx.Tx, acc *account.Account, d *deal.Deal, outcome *deal.PaymentOutcome, period shared.Period, correlationID string) error
}
