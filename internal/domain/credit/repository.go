package credit

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ProfileRepository persists the per-account payment-history aggregates.
// Profiles are created lazily; GetByAccountID returns (nil, nil) when the
// account has no profile yet.
type ProfileRepository interface {
	GetByAccountID(ctx context.Context, accountID uuid.UUID) (*Profile, error)
	Upsert(ctx context.Context, p *Profile) error
	WithTx(tx pgx.Tx) ProfileRepository
}

// HistoryRepository stores the bounded append-only logs of payment records
// and credit events. Oldest entries are evicted past the window caps.
type HistoryRepository interface {
	AppendPayment(ctx context.Context, rec *PaymentRecord) error
	AppendEvent(ctx context.Context, e *Event) error
	RecentPayments(ctx context.Context, accountID uuid.UUID, limit int) ([]*PaymentRecord, error)
	RecentEvents(ctx context.Context, accountID uuid.UUID, limit int) ([]*Event, error)
}
