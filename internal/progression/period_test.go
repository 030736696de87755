package progression

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeQuestAPI/internal/apperr"
	"tradeQuestAPI/internal/types/challenge"
)

func TestWindowFor(t *testing.T) {
	// Tuesday
	now := time.Date(2025, 6, 10, 15, 30, 0, 0, time.UTC)

	daily, err := WindowFor(challenge.PeriodDaily, now)
	require.NoError(t, err)
	assert.Equal(t, "2025-06-10", daily.Key)
	assert.Equal(t, time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC), daily.Start)
	assert.Equal(t, time.Date(2025, 6, 11, 0, 0, 0, 0, time.UTC), daily.End)

	weekly, err := WindowFor(challenge.PeriodWeekly, now)
	require.NoError(t, err)
	assert.Equal(t, "2025-W24", weekly.Key)
	assert.Equal(t, time.Date(2025, 6, 9, 0, 0, 0, 0, time.UTC), weekly.Start)
	assert.Equal(t, time.Date(2025, 6, 16, 0, 0, 0, 0, time.UTC), weekly.End)

	monthly, err := WindowFor(challenge.PeriodMonthly, now)
	require.NoError(t, err)
	assert.Equal(t, "2025-06", monthly.Key)
	assert.Equal(t, time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC), monthly.End)
	assert.True(t, monthly.Contains(now))
	assert.False(t, monthly.Contains(monthly.End))
}

func TestWindowForSundayAndYearBoundary(t *testing.T) {
	sunday := time.Date(2025, 6, 15, 23, 59, 0, 0, time.UTC)
	w, err := WindowFor(challenge.PeriodWeekly, sunday)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 6, 9, 0, 0, 0, 0, time.UTC), w.Start)

	// 2024-12-30 belongs to ISO week 1 of 2025.
	w, err = WindowFor(challenge.PeriodWeekly, time.Date(2024, 12, 30, 8, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "2025-W01", w.Key)
}

func TestWindowForNormalizesToUTC(t *testing.T) {
	tz := time.FixedZone("UTC+3", 3*3600)
	w, err := WindowFor(challenge.PeriodDaily, time.Date(2025, 6, 11, 1, 0, 0, 0, tz))
	require.NoError(t, err)
	assert.Equal(t, "2025-06-10", w.Key)
}

func TestWindowForUnknownPeriod(t *testing.T) {
	_, err := WindowFor(challenge.Period("yearly"), time.Now())
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestSeasonFor(t *testing.T) {
	s := SeasonFor(time.Date(2025, 12, 31, 23, 0, 0, 0, time.UTC))
	assert.Equal(t, "2025-12", s.Key)
	assert.Equal(t, "Season December 2025", s.Name)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), s.EndsAt)
	assert.True(t, s.Active(time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)))
	assert.False(t, s.Active(s.EndsAt))
}
