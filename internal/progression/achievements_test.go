package progression

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"tradeQuestAPI/internal/achievement"
)

func ids(list []achievement.Achievement) []string {
	out := make([]string, 0, len(list))
	for _, a := range list {
		out = append(out, a.ID)
	}
	return out
}

func TestNewlySatisfied(t *testing.T) {
	cat := DefaultCatalog()

	l := Lifetime{Activity: Activity{Trades: 100, ClosedTrades: 100, WinningTrades: 55, Posts: 1}}
	got := ids(cat.NewlySatisfied(l, map[string]bool{"ach_first_trade": true}))

	assert.ElementsMatch(t, []string{
		"ach_10_trades", "ach_50_trades", "trades_100", "ach_first_win",
		"ach_winrate_50", "ach_first_post",
	}, got)
}

func TestNewlySatisfiedIsEmptyWhenAllUnlocked(t *testing.T) {
	cat := DefaultCatalog()
	l := Lifetime{Activity: Activity{Trades: 1000, ClosedTrades: 1000, WinningTrades: 900}, LongestStreak: 40}

	unlocked := make(map[string]bool)
	for _, a := range cat.NewlySatisfied(l, unlocked) {
		unlocked[a.ID] = true
	}
	assert.NotEmpty(t, unlocked)
	assert.Empty(t, cat.NewlySatisfied(l, unlocked))
}

func TestSatisfiedWinRateFloor(t *testing.T) {
	a := achievement.Achievement{CriteriaType: achievement.CriteriaWinRate, CriteriaValue: 50, MinTrades: 20}

	assert.False(t, Satisfied(a, Lifetime{Activity: Activity{ClosedTrades: 10, WinningTrades: 10}}))
	assert.True(t, Satisfied(a, Lifetime{Activity: Activity{ClosedTrades: 20, WinningTrades: 10}}))
}

func TestSatisfiedSeasonRank(t *testing.T) {
	a := achievement.Achievement{CriteriaType: achievement.CriteriaSeasonRank, CriteriaValue: 10}

	assert.False(t, Satisfied(a, Lifetime{}))
	assert.False(t, Satisfied(a, Lifetime{BestSeasonRank: 11}))
	assert.True(t, Satisfied(a, Lifetime{BestSeasonRank: 3}))
}

func TestBadgesAreNeverDetected(t *testing.T) {
	a := achievement.Achievement{CriteriaType: achievement.CriteriaBadge}
	assert.False(t, Satisfied(a, Lifetime{Activity: Activity{Trades: 1e6}}))
}
