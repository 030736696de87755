package progression

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"tradeQuestAPI/internal/types/challenge"
)

func TestMetricValue(t *testing.T) {
	a := Activity{
		Trades:          12,
		ClosedTrades:    10,
		WinningTrades:   6,
		JournaledTrades: 4,
		PlanTagged:      8,
		PlanFollowed:    6,
		Posts:           2,
		PnL:             decimal.NewFromInt(120),
	}

	tests := []struct {
		metric    challenge.Metric
		minTrades int
		want      float64
	}{
		{challenge.MetricTradesCount, 0, 12},
		{challenge.MetricWinningTrades, 0, 6},
		{challenge.MetricJournaledTrades, 0, 4},
		{challenge.MetricPlanAdherence, 0, 75},
		{challenge.MetricPlanAdherence, 10, 0},
		{challenge.MetricWinRate, 0, 60},
		{challenge.MetricWinRate, 20, 0},
		{challenge.MetricProfitableDay, 0, 1},
		{challenge.MetricProfitableMonth, 0, 1},
		{challenge.MetricPostsCount, 0, 2},
		{challenge.MetricStreakDays, 0, 5},
	}

	for _, tt := range tests {
		ch := challenge.Challenge{Metric: tt.metric, MinTrades: tt.minTrades, Target: 1}
		assert.InDelta(t, tt.want, MetricValue(ch, a, 5), 0.0001, "%s min=%d", tt.metric, tt.minTrades)
	}
}

func TestMetricValueLosingWindow(t *testing.T) {
	ch := challenge.Challenge{Metric: challenge.MetricProfitableDay, Target: 1}

	assert.Zero(t, MetricValue(ch, Activity{ClosedTrades: 2, PnL: decimal.NewFromInt(-5)}, 0))
	assert.Zero(t, MetricValue(ch, Activity{}, 0))
}

func TestChallengeProgress(t *testing.T) {
	ch := challenge.Challenge{Target: 10}

	p, done := ChallengeProgress(ch, 3)
	assert.Equal(t, 30.0, p)
	assert.False(t, done)

	p, done = ChallengeProgress(ch, 25)
	assert.Equal(t, 100.0, p)
	assert.True(t, done)

	p, done = ChallengeProgress(challenge.Challenge{Target: 3}, 1)
	assert.Equal(t, 33.3, p)
	assert.False(t, done)
}
