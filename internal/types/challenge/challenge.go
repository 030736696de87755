package challenge

import (
	"time"

	"github.com/google/uuid"

	"tradeQuestAPI/internal/types/subscription"
)

type Period string

const (
	PeriodDaily   Period = "daily"
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
)

type Metric string

const (
	MetricTradesCount     Metric = "trades_count"
	MetricWinningTrades   Metric = "winning_trades"
	MetricJournaledTrades Metric = "journaled_trades"
	MetricPlanAdherence   Metric = "plan_adherence"
	MetricWinRate         Metric = "winrate"
	MetricProfitableDay   Metric = "profitable_day"
	MetricProfitableMonth Metric = "profitable_month"
	MetricPostsCount      Metric = "posts_count"
	MetricStreakDays      Metric = "streak_days"
)

// Challenge is a catalog template.
type Challenge struct {
	ID          string            `json:"id" mapstructure:"id"`
	Title       string            `json:"title" mapstructure:"title"`
	Description string            `json:"description" mapstructure:"description"`
	Period      Period            `json:"period" mapstructure:"period"`
	Metric      Metric            `json:"metric" mapstructure:"metric"`
	Target      float64           `json:"target" mapstructure:"target"`
	MinTrades   int               `json:"min_trades,omitempty" mapstructure:"min_trades"`
	XPReward    int               `json:"xp_reward" mapstructure:"xp_reward"`
	BadgeID     string            `json:"badge_id,omitempty" mapstructure:"badge_id"`
	MinTier     subscription.Tier `json:"min_tier,omitempty" mapstructure:"min_tier"`
}

// Claim records one reward per (user, challenge, period key).
type Claim struct {
	ID          uuid.UUID `json:"id" db:"id"`
	UserID      uuid.UUID `json:"user_id" db:"user_id"`
	ChallengeID string    `json:"challenge_id" db:"challenge_id"`
	PeriodKey   string    `json:"period_key" db:"period_key"`
	XPAwarded   int       `json:"xp_awarded" db:"xp_awarded"`
	ClaimedAt   time.Time `json:"claimed_at" db:"claimed_at"`
}

type Progress struct {
	Challenge
	PeriodKey string    `json:"period_key"`
	EndsAt    time.Time `json:"ends_at"`
	Current   float64   `json:"current"`
	Progress  float64   `json:"progress"`
	Completed bool      `json:"completed"`
	Claimed   bool      `json:"claimed"`
	Locked    bool      `json:"locked"`
}

type ClaimResult struct {
	Message    string `json:"message"`
	XPEarned   int    `json:"xp_earned"`
	LeveledUp  bool   `json:"leveled_up"`
	NewLevel   int    `json:"new_level"`
	TotalXP    int    `json:"total_xp"`
	PeriodKey  string `json:"period_key"`
	BadgeAdded string `json:"badge_added,omitempty"`
}
