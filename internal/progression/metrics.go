package progression

import (
	"math"

	"github.com/shopspring/decimal"

	"tradeQuestAPI/internal/types/challenge"
)

// Activity aggregates a user's ledger records inside one window.
type Activity struct {
	Trades          int
	ClosedTrades    int
	WinningTrades   int
	JournaledTrades int
	PlanTagged      int
	PlanFollowed    int
	Posts           int
	PnL             decimal.Decimal
}

// Lifetime is everything the achievement detector looks at.
type Lifetime struct {
	Activity
	LikesReceived    int
	CommentsGiven    int
	ProfitableMonths int
	LongestStreak    int
	SetupAnalyses    int
	CoachingSessions int
	Backtests        int
	BestSeasonRank   int // 0 when the user never placed
}

// WinRate is winning / closed trades as a percentage.
func (a Activity) WinRate() float64 {
	if a.ClosedTrades == 0 {
		return 0
	}
	return float64(a.WinningTrades) / float64(a.ClosedTrades) * 100
}

// PlanAdherence is the share of tagged trades where the plan was followed.
func (a Activity) PlanAdherence() float64 {
	if a.PlanTagged == 0 {
		return 0
	}
	return float64(a.PlanFollowed) / float64(a.PlanTagged) * 100
}

// MetricValue maps a window aggregate to the challenge's metric.
// Boolean metrics are 1 when true. Percentage metrics stay at 0 until the
// template's MinTrades sample is reached.
func MetricValue(ch challenge.Challenge, a Activity, currentStreak int) float64 {
	switch ch.Metric {
	case challenge.MetricTradesCount:
		return float64(a.Trades)
	case challenge.MetricWinningTrades:
		return float64(a.WinningTrades)
	case challenge.MetricJournaledTrades:
		return float64(a.JournaledTrades)
	case challenge.MetricPlanAdherence:
		if a.PlanTagged == 0 || a.PlanTagged < ch.MinTrades {
			return 0
		}
		return a.PlanAdherence()
	case challenge.MetricWinRate:
		if a.ClosedTrades == 0 || a.ClosedTrades < ch.MinTrades {
			return 0
		}
		return a.WinRate()
	case challenge.MetricProfitableDay, challenge.MetricProfitableMonth:
		if a.ClosedTrades > 0 && a.PnL.IsPositive() {
			return 1
		}
		return 0
	case challenge.MetricPostsCount:
		return float64(a.Posts)
	case challenge.MetricStreakDays:
		return float64(currentStreak)
	}
	return 0
}

// ChallengeProgress returns completion as a percentage capped at 100.
func ChallengeProgress(ch challenge.Challenge, value float64) (progress float64, completed bool) {
	if ch.Target <= 0 {
		return 0, false
	}
	progress = math.Min(100, value/ch.Target*100)
	progress = math.Round(progress*10) / 10
	return progress, value >= ch.Target
}

func knownMetric(m challenge.Metric) bool {
	switch m {
	case challenge.MetricTradesCount, challenge.MetricWinningTrades, challenge.MetricJournaledTrades,
		challenge.MetricPlanAdherence, challenge.MetricWinRate, challenge.MetricProfitableDay,
		challenge.MetricProfitableMonth, challenge.MetricPostsCount, challenge.MetricStreakDays:
		return true
	}
	return false
}
