package credit

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func recordN(p *Profile, status PaymentStatus, n int) {
	for i := 0; i < n; i++ {
		p.Record(status)
	}
}

func TestProfileCountersStayConsistent(t *testing.T) {
	p := NewProfile(uuid.New())
	recordN(p, PaymentOnTime, 10)
	recordN(p, PaymentLate, 3)
	recordN(p, PaymentMissed, 2)
	recordN(p, PaymentOnTime, 5)

	assert.Equal(t, 20, p.TotalPayments)
	assert.Equal(t, p.TotalPayments, p.OnTimePayments+p.LatePayments+p.MissedPayments)
}

func TestStreakSemantics(t *testing.T) {
	t.Run("OnTimeIncrementsByOne", func(t *testing.T) {
		p := NewProfile(uuid.New())
		p.Record(PaymentOnTime)
		assert.Equal(t, 1, p.CurrentStreak)
		p.Record(PaymentOnTime)
		assert.Equal(t, 2, p.CurrentStreak)
	})

	t.Run("LateResets", func(t *testing.T) {
		p := NewProfile(uuid.New())
		recordN(p, PaymentOnTime, 7)
		p.Record(PaymentLate)
		assert.Equal(t, 0, p.CurrentStreak)
		assert.Equal(t, 7, p.LongestStreak)
	})

	t.Run("MissedResets", func(t *testing.T) {
		p := NewProfile(uuid.New())
		recordN(p, PaymentOnTime, 4)
		p.Record(PaymentMissed)
		assert.Equal(t, 0, p.CurrentStreak)
		assert.Equal(t, 5, p.LastMissOrdinal)
	})
}

func TestMissWithinLast(t *testing.T) {
	p := NewProfile(uuid.New())
	recordN(p, PaymentOnTime, 10)
	p.Record(PaymentMissed) // ordinal 11

	assert.True(t, p.MissWithinLast(6))

	recordN(p, PaymentOnTime, 5) // total 16, 5 since miss
	assert.True(t, p.MissWithinLast(6))

	p.Record(PaymentOnTime) // 6 since miss
	assert.False(t, p.MissWithinLast(6))
}

func TestHistoryScore(t *testing.T) {
	t.Run("BelowMinimumHistory", func(t *testing.T) {
		p := NewProfile(uuid.New())
		recordN(p, PaymentOnTime, 5)
		assert.Equal(t, 0, p.HistoryScore())
	})

	t.Run("SlowLinearAccumulation", func(t *testing.T) {
		p := NewProfile(uuid.New())
		recordN(p, PaymentOnTime, 10)
		// 10*2 base + min(10,24)*0.5 streak + 0 milestone (<12) + 10/8 longevity
		assert.Equal(t, 20+5+1, p.HistoryScore())
	})

	t.Run("PerfectRecordMilestones", func(t *testing.T) {
		tests := []struct {
			payments  int
			milestone int
		}{
			{12, 10},
			{24, 20},
			{48, 35},
		}
		for _, tc := range tests {
			p := NewProfile(uuid.New())
			recordN(p, PaymentOnTime, tc.payments)
			streak := tc.payments
			if streak > 24 {
				streak = 24
			}
			expected := tc.payments*2 + streak/2 + tc.milestone + tc.payments/8
			assert.Equal(t, expected, p.HistoryScore(), "payments=%d", tc.payments)
		}
	})

	t.Run("MilestoneLostAfterAnyMiss", func(t *testing.T) {
		p := NewProfile(uuid.New())
		recordN(p, PaymentOnTime, 24)
		withMilestone := p.HistoryScore()

		q := NewProfile(uuid.New())
		q.Record(PaymentMissed)
		recordN(q, PaymentOnTime, 24)
		assert.Less(t, q.HistoryScore(), withMilestone)
	})

	t.Run("RecentMissPenalty", func(t *testing.T) {
		p := NewProfile(uuid.New())
		recordN(p, PaymentOnTime, 20)
		before := p.HistoryScore()
		p.Record(PaymentMissed)
		assert.Less(t, p.HistoryScore(), before-30)
	})

	t.Run("ClampedTo250", func(t *testing.T) {
		p := NewProfile(uuid.New())
		recordN(p, PaymentOnTime, 500)
		assert.Equal(t, 250, p.HistoryScore())
	})
}

func TestQualifiesForExcellent(t *testing.T) {
	t.Run("Qualifies", func(t *testing.T) {
		// 36 on-time, streak 20, no miss in last 18
		p := NewProfile(uuid.New())
		recordN(p, PaymentOnTime, 16)
		p.Record(PaymentLate)
		recordN(p, PaymentOnTime, 20)
		assert.True(t, p.QualifiesForExcellent())
	})

	t.Run("StreakTooShort", func(t *testing.T) {
		p := NewProfile(uuid.New())
		recordN(p, PaymentOnTime, 30)
		p.Record(PaymentLate)
		recordN(p, PaymentOnTime, 10)
		assert.False(t, p.QualifiesForExcellent())
	})

	t.Run("RecentMiss", func(t *testing.T) {
		p := NewProfile(uuid.New())
		recordN(p, PaymentOnTime, 36)
		p.Record(PaymentMissed)
		recordN(p, PaymentOnTime, 18)
		// streak is 18 and on-time is plenty, but the miss sits exactly at
		// the edge of the window
		assert.True(t, p.QualifiesForExcellent())

		q := NewProfile(uuid.New())
		recordN(q, PaymentOnTime, 36)
		q.Record(PaymentMissed)
		recordN(q, PaymentOnTime, 17)
		assert.False(t, q.QualifiesForExcellent())
	})
}

func TestApplyEventDeltaClamps(t *testing.T) {
	p := NewProfile(uuid.New())
	for i := 0; i < 20; i++ {
		p.ApplyEventDelta(25)
	}
	assert.Equal(t, 200, p.EventAdjustment)

	for i := 0; i < 40; i++ {
		p.ApplyEventDelta(-40)
	}
	assert.Equal(t, -200, p.EventAdjustment)
}

func TestReset(t *testing.T) {
	p := NewProfile(uuid.New())
	recordN(p, PaymentOnTime, 10)
	p.ApplyEventDelta(50)
	id := p.AccountID

	p.Reset()

	assert.Equal(t, id, p.AccountID)
	assert.Equal(t, 0, p.TotalPayments)
	assert.Equal(t, 0, p.EventAdjustment)
}

func TestEventDeltas(t *testing.T) {
	t.Run("MissedOutweighsOnTime", func(t *testing.T) {
		missed, _ := EventPaymentMissed.Delta()
		standard, _ := EventPaymentStandard.Delta()
		assert.Greater(t, -missed, standard*5, "credit should be slow to build and fast to lose")
	})

	t.Run("UnknownTypeScoresZero", func(t *testing.T) {
		delta, known := EventType("LOTTERY_WIN").Delta()
		assert.Zero(t, delta)
		assert.False(t, known)
	})

	t.Run("NewEventCarriesFixedDelta", func(t *testing.T) {
		e := NewEvent(uuid.New(), uuid.New(), EventDealPaidOff, "", "2025-06")
		assert.Equal(t, 25, e.Delta)
	})
}
