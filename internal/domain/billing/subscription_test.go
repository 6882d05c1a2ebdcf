package billing

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextMonthStart(t *testing.T) {
	t.Run("mid month advances to first of next month", func(t *testing.T) {
		now := time.Date(2025, 3, 15, 10, 30, 0, 0, time.UTC)
		assert.Equal(t, time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC), NextMonthStart(now))
	})

	t.Run("december wraps to january of next year", func(t *testing.T) {
		now := time.Date(2025, 12, 31, 23, 59, 59, 0, time.UTC)
		assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), NextMonthStart(now))
	})

	t.Run("first instant of month still advances a full month", func(t *testing.T) {
		now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
		assert.Equal(t, time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC), NextMonthStart(now))
	})

	t.Run("non utc input is normalized", func(t *testing.T) {
		loc := time.FixedZone("UTC+9", 9*3600)
		// 08:00 on Jan 1 in UTC+9 is still Dec 31 in UTC.
		now := time.Date(2026, 1, 1, 8, 0, 0, 0, loc)
		assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), NextMonthStart(now))
	})
}

func TestSubscription_RollOver(t *testing.T) {
	newSub := func(t *testing.T, resetAt time.Time, used int64) *Subscription {
		t.Helper()
		sub, err := NewSubscription(uuid.New(), uuid.New(), time.Now().UTC())
		require.NoError(t, err)
		sub.ResetAt = resetAt
		sub.UsageCount = used
		return sub
	}

	t.Run("no-op before boundary", func(t *testing.T) {
		resetAt := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
		sub := newSub(t, resetAt, 42)

		sub.RollOver(time.Date(2025, 4, 20, 0, 0, 0, 0, time.UTC))

		assert.Equal(t, int64(42), sub.UsageCount)
		assert.Equal(t, resetAt, sub.ResetAt)
	})

	t.Run("resets counter and advances boundary past boundary", func(t *testing.T) {
		sub := newSub(t, time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC), 42)
		now := time.Date(2025, 5, 10, 12, 0, 0, 0, time.UTC)

		sub.RollOver(now)

		assert.Equal(t, int64(0), sub.UsageCount)
		assert.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), sub.ResetAt)
	})

	t.Run("is idempotent for the same now", func(t *testing.T) {
		sub := newSub(t, time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC), 42)
		now := time.Date(2025, 5, 10, 12, 0, 0, 0, time.UTC)

		sub.RollOver(now)
		first := *sub
		sub.RollOver(now)

		assert.Equal(t, first.UsageCount, sub.UsageCount)
		assert.Equal(t, first.ResetAt, sub.ResetAt)
	})

	t.Run("exactly at boundary rolls over", func(t *testing.T) {
		boundary := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
		sub := newSub(t, boundary, 7)

		sub.RollOver(boundary)

		assert.Equal(t, int64(0), sub.UsageCount)
		assert.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), sub.ResetAt)
	})
}

func TestSubscription_Remaining(t *testing.T) {
	sub, err := NewSubscription(uuid.New(), uuid.New(), time.Now().UTC())
	require.NoError(t, err)

	sub.UsageCount = 8
	assert.Equal(t, int64(2), sub.Remaining(10))

	sub.UsageCount = 15
	assert.Equal(t, int64(0), sub.Remaining(10))
}
