package stats

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func pnls(values ...string) []decimal.Decimal {
	out := make([]decimal.Decimal, len(values))
	for i, v := range values {
		out[i] = decimal.RequireFromString(v)
	}
	return out
}

func TestCompute(t *testing.T) {
	s := Compute(2, pnls("100", "-50", "200", "-150", "0"), 3, 4)

	assert.Equal(t, 7, s.TotalTrades)
	assert.Equal(t, 5, s.ClosedTrades)
	assert.Equal(t, 2, s.WinningTrades)
	assert.Equal(t, 2, s.LosingTrades)
	assert.Equal(t, 40.0, s.WinRate)
	assert.True(t, s.TotalPnL.Equal(decimal.NewFromInt(100)))
	assert.True(t, s.AvgWin.Equal(decimal.NewFromInt(150)))
	assert.True(t, s.AvgLoss.Equal(decimal.NewFromInt(-100)))
	assert.Equal(t, 1.5, s.ProfitFactor)
	assert.True(t, s.BestTrade.Equal(decimal.NewFromInt(200)))
	assert.True(t, s.WorstTrade.Equal(decimal.NewFromInt(-150)))
	// equity 100, 50, 250, 100, 100 -> peak 250, trough 100
	assert.True(t, s.MaxDrawdown.Equal(decimal.NewFromInt(150)))
	assert.Equal(t, 75.0, s.PlanAdherence)
}

func TestComputeEmpty(t *testing.T) {
	s := Compute(0, nil, 0, 0)

	assert.Zero(t, s.TotalTrades)
	assert.Zero(t, s.WinRate)
	assert.Zero(t, s.ProfitFactor)
	assert.True(t, s.TotalPnL.IsZero())
}
