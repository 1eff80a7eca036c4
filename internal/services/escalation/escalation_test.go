package escalation

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/nutrition-reminders/internal/models"
	"github.com/magabrotheeeer/nutrition-reminders/internal/services/ledger"
)

const day = 24 * time.Hour

func ptr(t time.Time) *time.Time { return &t }

func paid(end time.Time) models.Subscription {
	return models.Subscription{
		UserUID:     "user-1",
		Plan:        models.PlanTierA,
		IsActive:    true,
		TrialAnchor: end.Add(-60 * day),
		PeriodEnd:   ptr(end),
	}
}

func simulateDaily(t *testing.T, l *ledger.Ledger, sub models.Subscription, from, to time.Time) []int {
	t.Helper()
	var fired []int
	for now := from; !now.After(to); now = now.Add(day) {
		for _, e := range Due(sub, now) {
			if l.Claim(context.Background(), e.Key) {
				fired = append(fired, e.Threshold)
			}
		}
	}
	return fired
}

func newLedger() *ledger.Ledger {
	return ledger.New(ledger.NewMemoryStore(), time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestDue_ExactlyOncePerThreshold(t *testing.T) {
	end := time.Date(2024, 6, 20, 9, 0, 0, 0, time.UTC)
	sub := paid(end)

	fired := simulateDaily(t, newLedger(), sub, end.Add(-5*day), end.Add(2*day))
	assert.Equal(t, []int{3, 1, 0}, fired)
}

func TestDue_ExactlyOnceWithOffsetCheckHour(t *testing.T) {
	// период заканчивается в 23:59, проверка в 09:00
	end := time.Date(2024, 6, 20, 23, 59, 0, 0, time.UTC)
	sub := paid(end)
	start := time.Date(2024, 6, 15, 9, 0, 0, 0, time.UTC)

	fired := simulateDaily(t, newLedger(), sub, start, start.Add(7*day))
	assert.Equal(t, []int{3, 1, 0}, fired)
}

func TestDue_RenewalResetsThresholds(t *testing.T) {
	l := newLedger()
	end := time.Date(2024, 6, 20, 9, 0, 0, 0, time.UTC)

	fired := simulateDaily(t, l, paid(end), end.Add(-5*day), end.Add(2*day))
	require.Len(t, fired, 3)

	renewed := paid(end.Add(30 * day))
	fired = simulateDaily(t, l, renewed, end.Add(25*day), end.Add(32*day))
	assert.Equal(t, []int{3, 1, 0}, fired)
}

func TestDue_Boundaries(t *testing.T) {
	end := time.Date(2024, 6, 20, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		sub  models.Subscription
		now  time.Time
		want []int
	}{
		{name: "four days left", sub: paid(end), now: end.Add(-4 * day), want: nil},
		{name: "three days left", sub: paid(end), now: end.Add(-3 * day), want: []int{3}},
		{name: "two days left", sub: paid(end), now: end.Add(-2 * day), want: nil},
		{name: "one second left", sub: paid(end), now: end.Add(-time.Second), want: []int{1}},
		{name: "just expired", sub: paid(end), now: end.Add(time.Second), want: []int{0}},
		{name: "long expired", sub: paid(end), now: end.Add(10 * day), want: []int{0}},
		{
			name: "free plan",
			sub:  models.Subscription{UserUID: "u", Plan: models.PlanFree, TrialAnchor: end},
			now:  end,
			want: nil,
		},
		{
			name: "paid without period end",
			sub:  models.Subscription{UserUID: "u", Plan: models.PlanTierB, IsActive: true},
			now:  end,
			want: nil,
		},
		{
			name: "inactive subscription gets no early warning",
			sub: func() models.Subscription {
				s := paid(end)
				s.IsActive = false
				return s
			}(),
			now:  end.Add(-3 * day),
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []int
			for _, e := range Due(tt.sub, tt.now) {
				got = append(got, e.Threshold)
				assert.Equal(t, models.CategoryExpiry, e.Key.Category)
				assert.Equal(t, tt.sub.UserUID, e.Key.UserUID)
				assert.NotEmpty(t, e.Payload.Title)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSlotID(t *testing.T) {
	end := time.Unix(1718874000, 0)
	assert.Equal(t, "t3-1718874000", SlotID(3, end))
	assert.NotEqual(t, SlotID(1, end), SlotID(1, end.Add(time.Second)))
}
