package progression

import "tradeQuestAPI/internal/achievement"

// Satisfied reports whether the lifetime aggregate meets a's criteria.
// Badge achievements are never satisfied here; they are granted directly.
func Satisfied(a achievement.Achievement, l Lifetime) bool {
	v := a.CriteriaValue

	switch a.CriteriaType {
	case achievement.CriteriaTradesCount:
		return float64(l.Trades) >= v
	case achievement.CriteriaWinningTrades:
		return float64(l.WinningTrades) >= v
	case achievement.CriteriaWinRate:
		return l.ClosedTrades >= a.MinTrades && l.ClosedTrades > 0 && l.WinRate() >= v
	case achievement.CriteriaStreak:
		return float64(l.LongestStreak) >= v
	case achievement.CriteriaPostsCount:
		return float64(l.Posts) >= v
	case achievement.CriteriaLikesReceived:
		return float64(l.LikesReceived) >= v
	case achievement.CriteriaCommentsGiven:
		return float64(l.CommentsGiven) >= v
	case achievement.CriteriaProfitableMonths:
		return float64(l.ProfitableMonths) >= v
	case achievement.CriteriaSetupAnalyses:
		return float64(l.SetupAnalyses) >= v
	case achievement.CriteriaCoachingSessions:
		return float64(l.CoachingSessions) >= v
	case achievement.CriteriaBacktests:
		return float64(l.Backtests) >= v
	case achievement.CriteriaSeasonRank:
		return l.BestSeasonRank > 0 && float64(l.BestSeasonRank) <= v
	}
	return false
}

// NewlySatisfied lists catalog achievements that l satisfies and that are not
// in unlocked.
func (c *Catalog) NewlySatisfied(l Lifetime, unlocked map[string]bool) []achievement.Achievement {
	var out []achievement.Achievement
	for _, a := range c.Achievements {
		if unlocked[a.ID] {
			continue
		}
		if Satisfied(a, l) {
			out = append(out, a)
		}
	}
	return out
}
