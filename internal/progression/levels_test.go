package progression

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func TestLevelInfo(t *testing.T) {
	table := DefaultLevelTable()

	tests := []struct {
		xp       int
		level    int
		current  int
		next     int
		progress float64
	}{
		{0, 1, 0, 100, 0},
		{50, 1, 0, 100, 50},
		{99, 1, 0, 100, 99},
		{100, 2, 100, 250, 0},
		{175, 2, 100, 250, 50},
		{999, 4, 500, 1000, 99.8},
		{1000, 5, 1000, 2000, 0},
		{19999, 10, 12000, 20000, 99.9},
		{20000, 11, 20000, 30000, 0},
		{25000, 11, 20000, 30000, 50},
		{30000, 12, 30000, 40000, 0},
		{-10, 1, 0, 100, 0},
	}

	for _, tt := range tests {
		info := table.Info(tt.xp)
		assert.Equal(t, tt.level, info.Level, "level for xp=%d", tt.xp)
		assert.Equal(t, tt.current, info.CurrentThreshold, "current threshold for xp=%d", tt.xp)
		assert.Equal(t, tt.next, info.NextThreshold, "next threshold for xp=%d", tt.xp)
		assert.InDelta(t, tt.progress, info.Progress, 0.001, "progress for xp=%d", tt.xp)
	}
}

func TestLevelUp(t *testing.T) {
	table := DefaultLevelTable()

	up, level := table.LevelUp(0, 50)
	assert.False(t, up)
	assert.Equal(t, 1, level)

	up, level = table.LevelUp(90, 300)
	assert.True(t, up)
	assert.Equal(t, 3, level)
}

func TestLevelProperties(t *testing.T) {
	table := DefaultLevelTable()

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500
	properties := gopter.NewProperties(parameters)

	properties.Property("level never decreases as xp grows", prop.ForAll(
		func(x int) bool {
			return table.Level(x) >= table.Level(x-1)
		},
		gen.IntRange(1, 200000),
	))

	properties.Property("level is at least 1", prop.ForAll(
		func(x int) bool {
			return table.Level(x) >= 1
		},
		gen.IntRange(0, 200000),
	))

	properties.Property("xp lies inside its level bounds", prop.ForAll(
		func(x int) bool {
			info := table.Info(x)
			return info.CurrentThreshold <= x && x < info.NextThreshold
		},
		gen.IntRange(0, 200000),
	))

	properties.Property("progress stays in [0,100)", prop.ForAll(
		func(x int) bool {
			p := table.Info(x).Progress
			return p >= 0 && p < 100
		},
		gen.IntRange(0, 200000),
	))

	properties.TestingRun(t)
}
