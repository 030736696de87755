package trade

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestComputePnL(t *testing.T) {
	tests := []struct {
		name      string
		direction Direction
		entry     string
		exit      string
		size      string
		want      string
	}{
		{"long winner", DirectionLong, "1.1000", "1.1050", "10000", "50"},
		{"long loser", DirectionLong, "100", "95.5", "2", "-9"},
		{"short winner", DirectionShort, "2000", "1980", "0.5", "10"},
		{"short loser", DirectionShort, "0.1", "0.3", "3", "-0.6"},
		{"flat", DirectionLong, "42", "42", "7", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputePnL(tt.direction, d(tt.entry), d(tt.exit), d(tt.size))
			assert.True(t, got.Equal(d(tt.want)), "got %s want %s", got, tt.want)
		})
	}
}

func TestJournaled(t *testing.T) {
	assert.False(t, (&Trade{Notes: "breakout"}).Journaled())
	assert.True(t, (&Trade{Notes: "breakout", Emotions: "calm"}).Journaled())
}
