package achievement

import (
	"time"

	"github.com/google/uuid"
)

type CriteriaType string

const (
	CriteriaTradesCount      CriteriaType = "trades_count"
	CriteriaWinningTrades    CriteriaType = "winning_trades"
	CriteriaWinRate          CriteriaType = "winrate"
	CriteriaStreak           CriteriaType = "streak"
	CriteriaPostsCount       CriteriaType = "posts_count"
	CriteriaLikesReceived    CriteriaType = "likes_received"
	CriteriaCommentsGiven    CriteriaType = "comments_given"
	CriteriaProfitableMonths CriteriaType = "profitable_months"
	CriteriaSetupAnalyses    CriteriaType = "setup_analyses"
	CriteriaCoachingSessions CriteriaType = "coaching_sessions"
	CriteriaBacktests        CriteriaType = "backtests"
	CriteriaSeasonRank       CriteriaType = "season_rank"
	// CriteriaBadge achievements are only granted as challenge or season badges.
	CriteriaBadge CriteriaType = "badge"
)

// Achievement is a catalog entry. CriteriaValue is the threshold;
// for CriteriaSeasonRank it is the worst rank that still qualifies.
type Achievement struct {
	ID            string       `json:"id" mapstructure:"id"`
	Name          string       `json:"name" mapstructure:"name"`
	Description   string       `json:"description" mapstructure:"description"`
	Icon          string       `json:"icon" mapstructure:"icon"`
	CriteriaType  CriteriaType `json:"criteria_type" mapstructure:"criteria_type"`
	CriteriaValue float64      `json:"criteria_value" mapstructure:"criteria_value"`
	MinTrades     int          `json:"min_trades,omitempty" mapstructure:"min_trades"`
	XPReward      int          `json:"xp_reward" mapstructure:"xp_reward"`
}

type UserAchievement struct {
	ID            uuid.UUID `json:"id" db:"id"`
	UserID        uuid.UUID `json:"user_id" db:"user_id"`
	AchievementID string    `json:"achievement_id" db:"achievement_id"`
	UnlockedAt    time.Time `json:"unlocked_at" db:"unlocked_at"`
}

type AchievementWithStatus struct {
	Achievement
	Unlocked   bool       `json:"unlocked"`
	UnlockedAt *time.Time `json:"unlocked_at,omitempty"`
}
