// Package mongo provides MongoDB implementations of the credit history
// repositories. Payment records and credit events form bounded append-only
// logs; oldest entries are evicted once an account exceeds the window caps.
package mongo

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/agrocredit-engine/internal/domain/credit"
	"github.com/shopspring/decimal"
)

const (
	// PaymentCollectionName is the name of the payment record collection
	PaymentCollectionName = "payment_records"
	// EventCollectionName is the name of the credit event collection
	EventCollectionName = "credit_events"
)

// paymentDoc is the storage shape of a payment record. The amount travels
// as cents so the log stays exact without a decimal codec.
type paymentDoc struct {
	credit.PaymentRecord `bson:",inline"`
	AmountCents          int64 `bson:"amount_cents"`
}

// CreditHistoryRepository implements credit.HistoryRepository for MongoDB
type CreditHistoryRepository struct {
	db     *mongo.Database
	logger *slog.Logger
}

// NewCreditHistoryRepository creates a new MongoDB credit history repository
func NewCreditHistoryRepository(logger *slog.Logger, db *mongo.Database) credit.HistoryRepository {
	return &CreditHistoryRepository{
		db:     db,
		logger: logger,
	}
}

// AppendPayment stores a payment record and evicts entries past the window cap
func (r *CreditHistoryRepository) AppendPayment(ctx context.Context, rec *credit.PaymentRecord) error {
	collection := r.db.Collection(PaymentCollectionName)

	doc := paymentDoc{
		PaymentRecord: *rec,
		AmountCents:   rec.Amount.Shift(2).Round(0).IntPart(),
	}
	if _, err := collection.InsertOne(ctx, doc); err != nil {
		r.logger.Error("Failed to append payment record",
			"account_id", rec.AccountID.String(),
			"error", err)
		return fmt.Errorf("failed to append payment record: %w", err)
	}

	return r.evictOldest(ctx, collection, rec.AccountID, credit.PaymentWindowCap)
}

// AppendEvent stores a credit event and evicts entries past the window cap
func (r *CreditHistoryRepository) AppendEvent(ctx context.Context, e *credit.Event) error {
	collection := r.db.Collection(EventCollectionName)

	if _, err := collection.InsertOne(ctx, e); err != nil {
		r.logger.Error("Failed to append credit event",
			"account_id", e.AccountID.String(),
			"error", err)
		return fmt.Errorf("failed to append credit event: %w", err)
	}

	return r.evictOldest(ctx, collection, e.AccountID, credit.EventWindowCap)
}

// evictOldest trims an account's log down to the window cap, newest first
func (r *CreditHistoryRepository) evictOldest(ctx context.Context, collection *mongo.Collection, accountID uuid.UUID, cap int) error {
	filter := bson.M{"account_id": accountID}

	count, err := collection.CountDocuments(ctx, filter)
	if err != nil {
		r.logger.Error("Failed to count history entries",
			"account_id", accountID.String(),
			"error", err)
		return fmt.Errorf("failed to count history entries: %w", err)
	}
	if count <= int64(cap) {
		return nil
	}

	// Collect the ids of everything older than the newest cap entries.
	opts := options.Find().
		SetSort(bson.M{"recorded_at": -1}).
		SetSkip(int64(cap)).
		SetProjection(bson.M{"_id": 1})

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		return fmt.Errorf("failed to find evictable history entries: %w", err)
	}
	defer cursor.Close(ctx)

	var stale []struct {
		ID any `bson:"_id"`
	}
	if err := cursor.All(ctx, &stale); err != nil {
		return fmt.Errorf("failed to decode evictable history entries: %w", err)
	}

	ids := make([]any, 0, len(stale))
	for _, doc := range stale {
		ids = append(ids, doc.ID)
	}
	if len(ids) == 0 {
		return nil
	}

	if _, err := collection.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}}); err != nil {
		r.logger.Error("Failed to evict old history entries",
			"account_id", accountID.String(),
			"error", err)
		return fmt.Errorf("failed to evict old history entries: %w", err)
	}

	return nil
}

// RecentPayments retrieves an account's newest payment records, newest first
func (r *CreditHistoryRepository) RecentPayments(ctx context.Context, accountID uuid.UUID, limit int) ([]*credit.PaymentRecord, error) {
	collection := r.db.Collection(PaymentCollectionName)

	filter := bson.M{"account_id": accountID}
	opts := options.Find().
		SetSort(bson.M{"recorded_at": -1}).
		SetLimit(int64(limit))

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		r.logger.Error("Failed to get payment records",
			"account_id", accountID.String(),
			"error", err)
		return nil, fmt.Errorf("failed to get payment records: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []paymentDoc
	if err := cursor.All(ctx, &docs); err != nil {
		r.logger.Error("Failed to decode payment records",
			"account_id", accountID.String(),
			"error", err)
		return nil, fmt.Errorf("failed to decode payment records: %w", err)
	}

	records := make([]*credit.PaymentRecord, 0, len(docs))
	for _, doc := range docs {
		rec := doc.PaymentRecord
		rec.Amount = decimal.New(doc.AmountCents, -2)
		records = append(records, &rec)
	}

	return records, nil
}

// RecentEvents retrieves an account's newest credit events, newest first
func (r *CreditHistoryRepository) RecentEvents(ctx context.Context, accountID uuid.UUID, limit int) ([]*credit.Event, error) {
	collection := r.db.Collection(EventCollectionName)

	filter := bson.M{"account_id": accountID}
	opts := options.Find().
		SetSort(bson.M{"recorded_at": -1}).
		SetLimit(int64(limit))

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		r.logger.Error("Failed to get credit events",
			"account_id", accountID.String(),
			"error", err)
		return nil, fmt.Errorf("failed to get credit events: %w", err)
	}
	defer cursor.Close(ctx)

	var events []*credit.Event
	if err := cursor.All(ctx, &events); err != nil {
		r.logger.Error("Failed to decode credit events",
			"account_id", accountID.String(),
			"error", err)
		return nil, fmt.Errorf("failed to decode credit events: %w", err)
	}

	return events, nil
}
