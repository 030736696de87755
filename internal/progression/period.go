package progression

import (
	"fmt"
	"time"

	"tradeQuestAPI/internal/apperr"
	"tradeQuestAPI/internal/types/challenge"
	"tradeQuestAPI/internal/types/season"
)

// Window is a calendar bucket [Start, End) identified by Key.
type Window struct {
	Period challenge.Period
	Start  time.Time
	End    time.Time
	Key    string
}

func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// StartOfDay truncates t to midnight UTC.
func StartOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// WindowFor returns the bucket of the given period class containing now.
// Days are UTC, weeks are ISO weeks starting Monday, months are calendar months.
func WindowFor(period challenge.Period, now time.Time) (Window, error) {
	day := StartOfDay(now)

	switch period {
	case challenge.PeriodDaily:
		return Window{
			Period: period,
			Start:  day,
			End:    day.AddDate(0, 0, 1),
			Key:    day.Format("2006-01-02"),
		}, nil

	case challenge.PeriodWeekly:
		offset := (int(day.Weekday()) + 6) % 7 // Monday = 0
		start := day.AddDate(0, 0, -offset)
		year, week := day.ISOWeek()
		return Window{
			Period: period,
			Start:  start,
			End:    start.AddDate(0, 0, 7),
			Key:    fmt.Sprintf("%04d-W%02d", year, week),
		}, nil

	case challenge.PeriodMonthly:
		start := time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, time.UTC)
		return Window{
			Period: period,
			Start:  start,
			End:    start.AddDate(0, 1, 0),
			Key:    start.Format("2006-01"),
		}, nil
	}

	return Window{}, apperr.Invalid("period", "unknown period %q", period)
}

// SeasonFor returns the calendar-month season containing now. The ID is left
// zero; storage assigns it when the season is materialized.
func SeasonFor(now time.Time) season.Season {
	w, _ := WindowFor(challenge.PeriodMonthly, now)
	return season.Season{
		Key:      w.Key,
		Name:     "Season " + w.Start.Format("January 2006"),
		StartsAt: w.Start,
		EndsAt:   w.End,
	}
}
