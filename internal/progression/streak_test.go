package progression

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"tradeQuestAPI/internal/types/streak"
)

func TestStreakTransitions(t *testing.T) {
	rules := DefaultStreakRules()
	user := uuid.New()
	dayN := time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)

	first := rules.Next(user, nil, dayN)
	assert.Equal(t, 1, first.Streak.CurrentStreak)
	assert.Equal(t, 1, first.Streak.LongestStreak)
	assert.Equal(t, rules.BaseXP, first.XPEarned)
	assert.False(t, first.AlreadyCheckedIn)

	again := rules.Next(user, &first.Streak, dayN.Add(5*time.Hour))
	assert.True(t, again.AlreadyCheckedIn)
	assert.Zero(t, again.XPEarned)
	assert.Equal(t, 1, again.Streak.CurrentStreak)

	next := rules.Next(user, &first.Streak, dayN.AddDate(0, 0, 1))
	assert.Equal(t, 2, next.Streak.CurrentStreak)
	assert.Equal(t, 2, next.Streak.LongestStreak)
	assert.Equal(t, 15, next.XPEarned)

	skipped := rules.Next(user, &first.Streak, dayN.AddDate(0, 0, 3))
	assert.Equal(t, 1, skipped.Streak.CurrentStreak)
	assert.True(t, skipped.Reset)
	assert.Equal(t, rules.BaseXP, skipped.XPEarned)
}

func TestStreakKeepsLongestAfterReset(t *testing.T) {
	rules := DefaultStreakRules()
	user := uuid.New()
	day := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	state := rules.Next(user, nil, day).Streak
	for i := 1; i < 5; i++ {
		state = rules.Next(user, &state, day.AddDate(0, 0, i)).Streak
	}
	assert.Equal(t, 5, state.LongestStreak)

	reset := rules.Next(user, &state, day.AddDate(0, 0, 10))
	assert.Equal(t, 1, reset.Streak.CurrentStreak)
	assert.Equal(t, 5, reset.Streak.LongestStreak)
}

func TestStreakXPCapAndMilestones(t *testing.T) {
	rules := DefaultStreakRules()
	user := uuid.New()
	day := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	var milestones []int
	state := rules.Next(user, nil, day).Streak
	var last CheckIn
	for i := 1; i < 30; i++ {
		last = rules.Next(user, &state, day.AddDate(0, 0, i))
		state = last.Streak
		if last.Milestone > 0 {
			milestones = append(milestones, last.Milestone)
		}
		assert.LessOrEqual(t, last.XPEarned, rules.MaxDailyXP)
	}

	assert.Equal(t, 30, state.CurrentStreak)
	assert.Equal(t, rules.MaxDailyXP, last.XPEarned)
	assert.Equal(t, []int{3, 7, 30}, milestones)
}

func TestActiveStreak(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	yesterday := now.AddDate(0, 0, -1)
	old := now.AddDate(0, 0, -2)

	assert.Zero(t, ActiveStreak(nil, now))
	assert.Equal(t, 4, ActiveStreak(&streak.Streak{CurrentStreak: 4, LastCheckin: &now}, now))
	assert.Equal(t, 4, ActiveStreak(&streak.Streak{CurrentStreak: 4, LastCheckin: &yesterday}, now))
	assert.Zero(t, ActiveStreak(&streak.Streak{CurrentStreak: 4, LastCheckin: &old}, now))
}
