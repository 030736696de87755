// Package progression holds the pure rules that turn trading and community
// activity into XP, levels, challenge progress, achievements and streaks.
// Nothing here touches storage; services feed it aggregates and persist the
// outcome.
package progression

import "math"

// LevelTable maps XP totals to levels. Thresholds must be ascending and start
// at 0. Past the last threshold every OverflowSpan XP is one more level.
type LevelTable struct {
	Thresholds   []int `json:"thresholds" mapstructure:"thresholds"`
	OverflowSpan int   `json:"overflow_span" mapstructure:"overflow_span"`
}

type LevelInfo struct {
	Level            int     `json:"level"`
	XP               int     `json:"xp"`
	CurrentThreshold int     `json:"current_threshold"`
	NextThreshold    int     `json:"next_threshold"`
	Progress         float64 `json:"progress"`
}

func DefaultLevelTable() LevelTable {
	return LevelTable{
		Thresholds:   []int{0, 100, 250, 500, 1000, 2000, 3500, 5500, 8000, 12000, 20000},
		OverflowSpan: 10000,
	}
}

// Level returns the level for xp. Negative xp counts as zero.
func (t LevelTable) Level(xp int) int {
	return t.Info(xp).Level
}

func (t LevelTable) Info(xp int) LevelInfo {
	if xp < 0 {
		xp = 0
	}

	n := len(t.Thresholds)
	last := t.Thresholds[n-1]

	info := LevelInfo{XP: xp}
	if xp >= last {
		extra := (xp - last) / t.OverflowSpan
		info.Level = n + extra
		info.CurrentThreshold = last + extra*t.OverflowSpan
		info.NextThreshold = info.CurrentThreshold + t.OverflowSpan
	} else {
		level := 0
		for _, threshold := range t.Thresholds {
			if threshold > xp {
				break
			}
			level++
		}
		info.Level = level
		info.CurrentThreshold = t.Thresholds[level-1]
		info.NextThreshold = t.Thresholds[level]
	}

	span := float64(info.NextThreshold - info.CurrentThreshold)
	info.Progress = math.Floor(float64(xp-info.CurrentThreshold)/span*1000) / 10
	return info
}

// LevelUp compares the levels before and after an XP change.
func (t LevelTable) LevelUp(before, after int) (leveledUp bool, newLevel int) {
	newLevel = t.Level(after)
	return newLevel > t.Level(before), newLevel
}
