package leaderboard

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Period string

const (
	PeriodDaily   Period = "daily"
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
	PeriodSeason  Period = "season"
	PeriodAllTime Period = "all-time"
)

type LeaderboardEntry struct {
	UserID      uuid.UUID       `json:"user_id" db:"user_id"`
	DisplayName string          `json:"display_name" db:"display_name"`
	ImageURL    *string         `json:"image_url" db:"image_url"`
	Level       int             `json:"level"`
	XP          int             `json:"xp" db:"xp"`
	TotalPnL    decimal.Decimal `json:"total_pnl" db:"total_pnl"`
	Wins        int             `json:"wins" db:"wins"`
	TradesCount int             `json:"trades_count" db:"trades_count"`
	WinRate     float64         `json:"winrate" db:"winrate"`
	Rank        int             `json:"rank" db:"rank"`
}

type Leaderboard struct {
	Period       Period              `json:"period"`
	SeasonKey    string              `json:"season_key,omitempty"`
	Entries      []*LeaderboardEntry `json:"entries"`
	UserPosition *LeaderboardEntry   `json:"user_position,omitempty"`
}

type HallOfFame struct {
	TopLevels  []*LeaderboardEntry `json:"top_levels"`
	TopPnL     []*LeaderboardEntry `json:"top_pnl"`
	TopWinRate []*LeaderboardEntry `json:"top_winrate"`
}

// WinRate is the percentage of winning trades, rounded to one decimal place.
func WinRate(wins, total int) float64 {
	if total == 0 {
		return 0
	}
	return decimal.NewFromInt(int64(wins)).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(total))).
		Round(1).
		InexactFloat64()
}
