// Package credit implements the per-account credit model: the payment
// history profile, the append-only event ledger, and the score calculation
// that gates financing products and adjusts interest rates.
package credit

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	// PaymentWindowCap bounds the retained per-payment log.
	PaymentWindowCap = 100
	// EventWindowCap bounds the retained credit-event log.
	EventWindowCap = 100

	// adjustmentBound clamps the cumulative event adjustment (±200).
	adjustmentBound = 200

	// minHistoryPayments is the floor below which no history sub-score is
	// granted at all.
	minHistoryPayments = 6

	// recentMissWindow is the lookback within which a miss still carries the
	// recency penalty.
	recentMissWindow = 6
)

// PaymentStatus classifies a single recorded payment outcome.
type PaymentStatus string

const (
	PaymentOnTime PaymentStatus = "ON_TIME"
	PaymentLate   PaymentStatus = "LATE"
	PaymentMissed PaymentStatus = "MISSED"
)

// ValidPaymentStatus reports whether s is a known status.
func ValidPaymentStatus(s PaymentStatus) bool {
	switch s {
	case PaymentOnTime, PaymentLate, PaymentMissed:
		return true
	}
	return false
}

// PaymentRecord is one entry in the bounded payment log.
type PaymentRecord struct {
	AccountID  uuid.UUID       `json:"account_id" bson:"account_id"`
	DealID     uuid.UUID       `json:"deal_id" bson:"deal_id"`
	Status     PaymentStatus   `json:"status" bson:"status"`
	Amount     decimal.Decimal `json:"amount" bson:"-"`
	Period     string          `json:"period" bson:"period"`
	RecordedAt time.Time       `json:"recorded_at" bson:"recorded_at"`
}

// Profile aggregates an account's payment history. One profile exists per
// account, created lazily on the first recorded payment; it is never
// deleted, only cleared on explicit reset.
type Profile struct {
	AccountID       uuid.UUID `json:"account_id"`
	TotalPayments   int       `json:"total_payments"`
	OnTimePayments  int       `json:"on_time_payments"`
	LatePayments    int       `json:"late_payments"`
	MissedPayments  int       `json:"missed_payments"`
	CurrentStreak   int       `json:"current_streak"`
	LongestStreak   int       `json:"longest_streak"`
	LastMissOrdinal int       `json:"last_miss_ordinal"` // 1-based payment index of the most recent miss, 0 if none
	EventAdjustment int       `json:"event_adjustment"`  // cumulative ledger signal, clamped to ±200
	Version         int       `json:"version"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// NewProfile creates an empty profile for an account.
func NewProfile(accountID uuid.UUID) *Profile {
	now := time.Now()
	return &Profile{
		AccountID: accountID,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Record folds one payment outcome into the aggregates. An on-time payment
// extends the streak by exactly one; a late or missed payment resets it.
func (p *Profile) Record(status PaymentStatus) {
	p.TotalPayments++
	switch status {
	case PaymentOnTime:
		p.OnTimePayments++
		p.CurrentStreak++
		if p.CurrentStreak > p.LongestStreak {
			p.LongestStreak = p.CurrentStreak
		}
	case PaymentLate:
		p.LatePayments++
		p.CurrentStreak = 0
	case PaymentMissed:
		p.MissedPayments++
		p.CurrentStreak = 0
		p.LastMissOrdinal = p.TotalPayments
	}
	p.touch()
}

// ApplyEventDelta folds a credit-event delta into the bounded cumulative
// adjustment.
func (p *Profile) ApplyEventDelta(delta int) {
	p.EventAdjustment += delta
	if p.EventAdjustment > adjustmentBound {
		p.EventAdjustment = adjustmentBound
	}
	if p.EventAdjustment < -adjustmentBound {
		p.EventAdjustment = -adjustmentBound
	}
	p.touch()
}

// Reset clears all history. Exposed for explicit save resets only.
func (p *Profile) Reset() {
	*p = Profile{
		AccountID: p.AccountID,
		Version:   p.Version + 1,
		CreatedAt: p.CreatedAt,
		UpdatedAt: time.Now(),
	}
}

// MissWithinLast reports whether the most recent missed payment falls inside
// the last n recorded payments.
func (p *Profile) MissWithinLast(n int) bool {
	if p.LastMissOrdinal == 0 {
		return false
	}
	return p.TotalPayments-p.LastMissOrdinal < n
}

// HistoryScore derives the 0-250 payment-history sub-score. Accumulation is
// deliberately slow: two points per on-time payment, a modest streak bonus,
// milestone bonuses reserved for a perfect record, and a heavy penalty for
// a recent miss.
func (p *Profile) HistoryScore() int {
	if p.TotalPayments < minHistoryPayments {
		return 0
	}

	score := float64(p.OnTimePayments) * 2

	streak := p.CurrentStreak
	if streak > 24 {
		streak = 24
	}
	score += float64(streak) * 0.5

	if p.MissedPayments == 0 {
		switch {
		case p.TotalPayments >= 48:
			score += 35
		case p.TotalPayments >= 24:
			score += 20
		case p.TotalPayments >= 12:
			score += 10
		}
	}

	longevity := p.TotalPayments / 8
	if longevity > 30 {
		longevity = 30
	}
	score += float64(longevity)

	if p.MissWithinLast(recentMissWindow) {
		score -= 40
	}

	if score < 0 {
		return 0
	}
	if score > 250 {
		return 250
	}
	return int(score)
}

// QualifiesForExcellent gates the top credit tier: at least 36 on-time
// payments, a current streak of 18+, and no miss within the last 18
// payments. Asset wealth alone cannot buy top-tier credit.
func (p *Profile) QualifiesForExcellent() bool {
	return p.OnTimePayments >= 36 &&
		p.CurrentStreak >= 18 &&
		!p.MissWithinLast(18)
}

// QualifiesForGood requires at least 12 on-time payments; below it the score
// is capped under 700 regardless of assets.
func (p *Profile) QualifiesForGood() bool {
	return p.OnTimePayments >= 12
}

func (p *Profile) touch() {
	p.UpdatedAt = time.Now()
	p.Version++
}
