package progression

import (
	"time"

	"github.com/google/uuid"

	"tradeQuestAPI/internal/types/streak"
)

type StreakRules struct {
	BaseXP     int   `mapstructure:"base_xp"`
	PerDayXP   int   `mapstructure:"per_day_xp"`
	MaxDailyXP int   `mapstructure:"max_daily_xp"`
	Milestones []int `mapstructure:"milestones"`
}

func DefaultStreakRules() StreakRules {
	return StreakRules{
		BaseXP:     10,
		PerDayXP:   5,
		MaxDailyXP: 50,
		Milestones: []int{3, 7, 30},
	}
}

// CheckIn is the outcome of one daily check-in.
type CheckIn struct {
	Streak           streak.Streak
	XPEarned         int
	AlreadyCheckedIn bool
	Reset            bool
	Milestone        int // the milestone reached by this check-in, 0 if none
}

// Next applies a check-in on now's UTC date to prev (nil when the user has
// never checked in).
func (r StreakRules) Next(userID uuid.UUID, prev *streak.Streak, now time.Time) CheckIn {
	today := StartOfDay(now)

	if prev == nil || prev.LastCheckin == nil {
		return r.start(userID, prev, now, false)
	}

	last := StartOfDay(*prev.LastCheckin)
	switch {
	case !today.After(last):
		// Same day, or a clock that went backwards: nothing changes.
		return CheckIn{Streak: *prev, AlreadyCheckedIn: true}

	case last.AddDate(0, 0, 1).Equal(today):
		next := *prev
		next.CurrentStreak++
		if next.CurrentStreak > next.LongestStreak {
			next.LongestStreak = next.CurrentStreak
		}
		next.LastCheckin = &today
		next.UpdatedAt = now
		return CheckIn{
			Streak:    next,
			XPEarned:  r.xpFor(next.CurrentStreak),
			Milestone: r.milestone(next.CurrentStreak),
		}

	default:
		return r.start(userID, prev, now, true)
	}
}

func (r StreakRules) start(userID uuid.UUID, prev *streak.Streak, now time.Time, reset bool) CheckIn {
	today := StartOfDay(now)
	next := streak.Streak{UserID: userID, CurrentStreak: 1, LongestStreak: 1, LastCheckin: &today, UpdatedAt: now}
	if prev != nil && prev.LongestStreak > next.LongestStreak {
		next.LongestStreak = prev.LongestStreak
	}
	return CheckIn{
		Streak:    next,
		XPEarned:  r.BaseXP,
		Reset:     reset,
		Milestone: r.milestone(1),
	}
}

// xpFor scales the reward with the streak length, capped at MaxDailyXP.
func (r StreakRules) xpFor(current int) int {
	xp := r.BaseXP + r.PerDayXP*(current-1)
	if xp > r.MaxDailyXP {
		return r.MaxDailyXP
	}
	return xp
}

func (r StreakRules) milestone(current int) int {
	for _, m := range r.Milestones {
		if m == current {
			return m
		}
	}
	return 0
}

// ActiveStreak is the streak length still alive at now: a streak whose last
// check-in is older than yesterday has already been broken.
func ActiveStreak(s *streak.Streak, now time.Time) int {
	if s == nil || s.LastCheckin == nil {
		return 0
	}
	yesterday := StartOfDay(now).AddDate(0, 0, -1)
	if StartOfDay(*s.LastCheckin).Before(yesterday) {
		return 0
	}
	return s.CurrentStreak
}
