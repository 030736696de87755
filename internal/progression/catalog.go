package progression

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"tradeQuestAPI/internal/achievement"
	"tradeQuestAPI/internal/types/challenge"
	"tradeQuestAPI/internal/types/reward"
	"tradeQuestAPI/internal/types/season"
	"tradeQuestAPI/internal/types/subscription"
)

// MaxLeaderboardLimit caps both the catalog defaults and per-request limits.
const MaxLeaderboardLimit = 100

// Catalog is the static game configuration. It is built once at start and
// shared read-only by every request.
type Catalog struct {
	Levels        LevelTable                `mapstructure:"levels"`
	Streak        StreakRules               `mapstructure:"streak"`
	Challenges    []challenge.Challenge     `mapstructure:"challenges"`
	Achievements  []achievement.Achievement `mapstructure:"achievements"`
	Rewards       []reward.Reward           `mapstructure:"rewards"`
	SeasonPayouts []season.Payout           `mapstructure:"season_payouts"`

	LeaderboardLimit    int `mapstructure:"leaderboard_limit"`
	HallOfFameLimit     int `mapstructure:"hall_of_fame_limit"`
	HallOfFameMinTrades int `mapstructure:"hall_of_fame_min_trades"`
}

func DefaultCatalog() *Catalog {
	return &Catalog{
		Levels: DefaultLevelTable(),
		Streak: DefaultStreakRules(),
		Challenges: []challenge.Challenge{
			{ID: "ch_daily_1", Title: "First trade of the day", Description: "Log at least one trade today", Period: challenge.PeriodDaily, Metric: challenge.MetricTradesCount, Target: 1, XPReward: 50},
			{ID: "ch_daily_2", Title: "Disciplined journal", Description: "Journal 3 trades with notes and emotions", Period: challenge.PeriodDaily, Metric: challenge.MetricJournaledTrades, Target: 3, XPReward: 75},
			{ID: "ch_daily_3", Title: "Green day", Description: "Finish the day with positive PnL", Period: challenge.PeriodDaily, Metric: challenge.MetricProfitableDay, Target: 1, XPReward: 30},
			{ID: "ch_weekly_1", Title: "Active trader", Description: "Log 10 trades this week", Period: challenge.PeriodWeekly, Metric: challenge.MetricTradesCount, Target: 10, XPReward: 200},
			{ID: "ch_weekly_2", Title: "Plan follower", Description: "Follow your plan on 100% of tagged trades", Period: challenge.PeriodWeekly, Metric: challenge.MetricPlanAdherence, Target: 100, MinTrades: 5, XPReward: 300},
			{ID: "ch_weekly_3", Title: "Winning streak", Description: "Close 5 winning trades this week", Period: challenge.PeriodWeekly, Metric: challenge.MetricWinningTrades, Target: 5, XPReward: 150},
			{ID: "ch_weekly_4", Title: "Community voice", Description: "Publish 2 community posts", Period: challenge.PeriodWeekly, Metric: challenge.MetricPostsCount, Target: 2, XPReward: 100},
			{ID: "ch_monthly_1", Title: "Marathon", Description: "Log 50 trades this month", Period: challenge.PeriodMonthly, Metric: challenge.MetricTradesCount, Target: 50, XPReward: 500},
			{ID: "ch_monthly_2", Title: "Sharp shooter", Description: "Reach 55% win rate over at least 20 trades", Period: challenge.PeriodMonthly, Metric: challenge.MetricWinRate, Target: 55, MinTrades: 20, XPReward: 750, BadgeID: "badge_sharp_shooter", MinTier: subscription.TierPro},
			{ID: "ch_monthly_3", Title: "Green month", Description: "Close the month with positive PnL", Period: challenge.PeriodMonthly, Metric: challenge.MetricProfitableMonth, Target: 1, XPReward: 400},
			{ID: "ch_monthly_4", Title: "Iron routine", Description: "Hold a 7 day check-in streak", Period: challenge.PeriodMonthly, Metric: challenge.MetricStreakDays, Target: 7, XPReward: 350},
		},
		Achievements: []achievement.Achievement{
			{ID: "ach_first_trade", Name: "First step", Description: "Log your first trade", Icon: "🎯", CriteriaType: achievement.CriteriaTradesCount, CriteriaValue: 1, XPReward: 100},
			{ID: "ach_10_trades", Name: "Getting started", Description: "Log 10 trades", Icon: "📈", CriteriaType: achievement.CriteriaTradesCount, CriteriaValue: 10, XPReward: 200},
			{ID: "ach_50_trades", Name: "Regular", Description: "Log 50 trades", Icon: "📊", CriteriaType: achievement.CriteriaTradesCount, CriteriaValue: 50, XPReward: 500},
			{ID: "trades_100", Name: "Centurion", Description: "Log 100 trades", Icon: "💯", CriteriaType: achievement.CriteriaTradesCount, CriteriaValue: 100, XPReward: 1000},
			{ID: "ach_500_trades", Name: "Veteran", Description: "Log 500 trades", Icon: "🏆", CriteriaType: achievement.CriteriaTradesCount, CriteriaValue: 500, XPReward: 2500},
			{ID: "ach_first_win", Name: "First blood", Description: "Close your first winning trade", Icon: "✅", CriteriaType: achievement.CriteriaWinningTrades, CriteriaValue: 1, XPReward: 100},
			{ID: "ach_winrate_50", Name: "Consistent", Description: "50% win rate over 20+ trades", Icon: "⚖️", CriteriaType: achievement.CriteriaWinRate, CriteriaValue: 50, MinTrades: 20, XPReward: 300},
			{ID: "ach_winrate_60", Name: "Skilled", Description: "60% win rate over 50+ trades", Icon: "🎖️", CriteriaType: achievement.CriteriaWinRate, CriteriaValue: 60, MinTrades: 50, XPReward: 750},
			{ID: "ach_winrate_70", Name: "Elite", Description: "70% win rate over 100+ trades", Icon: "👑", CriteriaType: achievement.CriteriaWinRate, CriteriaValue: 70, MinTrades: 100, XPReward: 1500},
			{ID: "ach_streak_3", Name: "Warming up", Description: "3 day check-in streak", Icon: "🔥", CriteriaType: achievement.CriteriaStreak, CriteriaValue: 3, XPReward: 100},
			{ID: "ach_streak_7", Name: "On fire", Description: "7 day check-in streak", Icon: "🔥", CriteriaType: achievement.CriteriaStreak, CriteriaValue: 7, XPReward: 300},
			{ID: "ach_streak_30", Name: "Unstoppable", Description: "30 day check-in streak", Icon: "⚡", CriteriaType: achievement.CriteriaStreak, CriteriaValue: 30, XPReward: 1000},
			{ID: "ach_first_post", Name: "Hello world", Description: "Publish your first community post", Icon: "💬", CriteriaType: achievement.CriteriaPostsCount, CriteriaValue: 1, XPReward: 100},
			{ID: "ach_10_likes", Name: "Popular", Description: "Receive 10 likes", Icon: "❤️", CriteriaType: achievement.CriteriaLikesReceived, CriteriaValue: 10, XPReward: 300},
			{ID: "ach_helpful", Name: "Helpful", Description: "Comment on 5 posts from other traders", Icon: "🤝", CriteriaType: achievement.CriteriaCommentsGiven, CriteriaValue: 5, XPReward: 400},
			{ID: "ach_profitable_month", Name: "Green month", Description: "Close a calendar month in profit", Icon: "💰", CriteriaType: achievement.CriteriaProfitableMonths, CriteriaValue: 1, XPReward: 500},
			{ID: "ach_leaderboard_top10", Name: "Top 10", Description: "Finish a season in the top 10", Icon: "🥇", CriteriaType: achievement.CriteriaSeasonRank, CriteriaValue: 10, XPReward: 1000},
			{ID: "ach_first_analysis", Name: "Second opinion", Description: "Request your first setup analysis", Icon: "🤖", CriteriaType: achievement.CriteriaSetupAnalyses, CriteriaValue: 1, XPReward: 50},
			{ID: "ach_first_coaching", Name: "Coachable", Description: "Complete your first coaching session", Icon: "🧠", CriteriaType: achievement.CriteriaCoachingSessions, CriteriaValue: 1, XPReward: 50},
			{ID: "ach_first_backtest", Name: "Time traveller", Description: "Review your first backtest", Icon: "⏪", CriteriaType: achievement.CriteriaBacktests, CriteriaValue: 1, XPReward: 50},
			{ID: "badge_sharp_shooter", Name: "Sharp shooter", Description: "Completed the monthly win rate challenge", Icon: "🎯", CriteriaType: achievement.CriteriaBadge},
			{ID: "season_champion", Name: "Season champion", Description: "Won a season", Icon: "🏆", CriteriaType: achievement.CriteriaBadge},
			{ID: "season_top10", Name: "Season finalist", Description: "Placed top 10 in a season", Icon: "🏅", CriteriaType: achievement.CriteriaBadge},
		},
		Rewards: []reward.Reward{
			{ID: "theme_dark_blue", Kind: reward.KindTheme, Name: "Dark blue", Description: "Default dark theme", RequiredLevel: 1, Value: "dark-blue"},
			{ID: "theme_green_bull", Kind: reward.KindTheme, Name: "Green bull", Description: "Bullish green theme", RequiredLevel: 3, Value: "green-bull"},
			{ID: "theme_gold_premium", Kind: reward.KindTheme, Name: "Gold premium", Description: "Gold accents", RequiredLevel: 5, Value: "gold-premium"},
			{ID: "theme_neon_trader", Kind: reward.KindTheme, Name: "Neon trader", Description: "Neon night mode", RequiredLevel: 10, Value: "neon-trader"},
			{ID: "theme_elite_black", Kind: reward.KindTheme, Name: "Elite black", Description: "Reserved for elite traders", RequiredLevel: 15, Value: "elite-black"},
			{ID: "feature_advanced_stats", Kind: reward.KindFeature, Name: "Advanced stats", Description: "Drawdown and profit factor charts", RequiredLevel: 4, Value: "advanced_stats"},
			{ID: "feature_export", Kind: reward.KindFeature, Name: "Journal export", Description: "Export your journal", RequiredLevel: 8, Value: "export"},
			{ID: "title_apprentice", Kind: reward.KindTitle, Name: "Apprentice", RequiredLevel: 2, Value: "Apprentice"},
			{ID: "title_trader", Kind: reward.KindTitle, Name: "Trader", RequiredLevel: 5, Value: "Trader"},
			{ID: "title_expert", Kind: reward.KindTitle, Name: "Expert", RequiredLevel: 10, Value: "Expert"},
			{ID: "title_master", Kind: reward.KindTitle, Name: "Master", RequiredLevel: 20, Value: "Master"},
			{ID: "title_legend", Kind: reward.KindTitle, Name: "Legend", RequiredLevel: 50, Value: "Legend"},
		},
		SeasonPayouts: []season.Payout{
			{FromRank: 1, ToRank: 1, XP: 5000, BadgeID: "season_champion"},
			{FromRank: 2, ToRank: 2, XP: 3000, BadgeID: "season_top10"},
			{FromRank: 3, ToRank: 3, XP: 2000, BadgeID: "season_top10"},
			{FromRank: 4, ToRank: 10, XP: 1000, BadgeID: "season_top10"},
			{FromRank: 11, ToRank: 50, XP: 500},
		},
		LeaderboardLimit:    50,
		HallOfFameLimit:     10,
		HallOfFameMinTrades: 50,
	}
}

// LoadCatalog reads a YAML or JSON file over the defaults. Lists in the file
// replace the default lists wholesale. An empty path returns the defaults.
func LoadCatalog(path string) (*Catalog, error) {
	cat := DefaultCatalog()
	if path == "" {
		return cat, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading catalog %s: %w", path, err)
	}
	var file Catalog
	if err := v.Unmarshal(&file); err != nil {
		return nil, fmt.Errorf("decoding catalog %s: %w", path, err)
	}
	cat.merge(v, &file)
	if err := cat.Validate(); err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return cat, nil
}

// merge copies every key present in the file over the defaults.
func (c *Catalog) merge(v *viper.Viper, file *Catalog) {
	if v.IsSet("levels.thresholds") {
		c.Levels.Thresholds = file.Levels.Thresholds
	}
	if v.IsSet("levels.overflow_span") {
		c.Levels.OverflowSpan = file.Levels.OverflowSpan
	}
	if v.IsSet("streak.base_xp") {
		c.Streak.BaseXP = file.Streak.BaseXP
	}
	if v.IsSet("streak.per_day_xp") {
		c.Streak.PerDayXP = file.Streak.PerDayXP
	}
	if v.IsSet("streak.max_daily_xp") {
		c.Streak.MaxDailyXP = file.Streak.MaxDailyXP
	}
	if v.IsSet("streak.milestones") {
		c.Streak.Milestones = file.Streak.Milestones
	}
	if v.IsSet("challenges") {
		c.Challenges = file.Challenges
	}
	if v.IsSet("achievements") {
		c.Achievements = file.Achievements
	}
	if v.IsSet("rewards") {
		c.Rewards = file.Rewards
	}
	if v.IsSet("season_payouts") {
		c.SeasonPayouts = file.SeasonPayouts
	}
	if v.IsSet("leaderboard_limit") {
		c.LeaderboardLimit = file.LeaderboardLimit
	}
	if v.IsSet("hall_of_fame_limit") {
		c.HallOfFameLimit = file.HallOfFameLimit
	}
	if v.IsSet("hall_of_fame_min_trades") {
		c.HallOfFameMinTrades = file.HallOfFameMinTrades
	}
}

func (c *Catalog) Validate() error {
	if len(c.Levels.Thresholds) < 2 || c.Levels.Thresholds[0] != 0 {
		return fmt.Errorf("level thresholds must start at 0 and have at least two entries")
	}
	for i := 1; i < len(c.Levels.Thresholds); i++ {
		if c.Levels.Thresholds[i] <= c.Levels.Thresholds[i-1] {
			return fmt.Errorf("level thresholds must be strictly ascending")
		}
	}
	if c.Levels.OverflowSpan <= 0 {
		return fmt.Errorf("overflow span must be positive")
	}
	if c.Streak.BaseXP < 0 || c.Streak.PerDayXP < 0 {
		return fmt.Errorf("streak xp must be non-negative")
	}
	if c.Streak.MaxDailyXP < c.Streak.BaseXP {
		return fmt.Errorf("streak max daily xp %d is below base xp %d", c.Streak.MaxDailyXP, c.Streak.BaseXP)
	}
	for i, m := range c.Streak.Milestones {
		if m <= 0 || (i > 0 && m <= c.Streak.Milestones[i-1]) {
			return fmt.Errorf("streak milestones must be positive and strictly ascending")
		}
	}

	seen := make(map[string]bool)
	for _, ch := range c.Challenges {
		if ch.ID == "" || seen[ch.ID] {
			return fmt.Errorf("challenge id %q is empty or duplicated", ch.ID)
		}
		seen[ch.ID] = true
		if _, err := WindowFor(ch.Period, time.Unix(0, 0)); err != nil {
			return fmt.Errorf("challenge %s: %w", ch.ID, err)
		}
		if ch.Target <= 0 || ch.XPReward < 0 {
			return fmt.Errorf("challenge %s: target must be positive and reward non-negative", ch.ID)
		}
		if !knownMetric(ch.Metric) {
			return fmt.Errorf("challenge %s: unknown metric %q", ch.ID, ch.Metric)
		}
	}

	achievements := make(map[string]bool)
	for _, a := range c.Achievements {
		if a.ID == "" || achievements[a.ID] {
			return fmt.Errorf("achievement id %q is empty or duplicated", a.ID)
		}
		achievements[a.ID] = true
	}
	for _, ch := range c.Challenges {
		if ch.BadgeID != "" && !achievements[ch.BadgeID] {
			return fmt.Errorf("challenge %s: badge %q is not in the achievement catalog", ch.ID, ch.BadgeID)
		}
	}
	for _, p := range c.SeasonPayouts {
		if p.FromRank < 1 || p.ToRank < p.FromRank {
			return fmt.Errorf("season payout ranks %d-%d are invalid", p.FromRank, p.ToRank)
		}
		if p.BadgeID != "" && !achievements[p.BadgeID] {
			return fmt.Errorf("season payout badge %q is not in the achievement catalog", p.BadgeID)
		}
	}

	rewards := make(map[string]bool)
	for _, r := range c.Rewards {
		if r.ID == "" || rewards[r.ID] {
			return fmt.Errorf("reward id %q is empty or duplicated", r.ID)
		}
		rewards[r.ID] = true
	}

	if c.LeaderboardLimit < 1 || c.LeaderboardLimit > MaxLeaderboardLimit {
		return fmt.Errorf("leaderboard limit must be between 1 and %d", MaxLeaderboardLimit)
	}
	if c.HallOfFameLimit < 1 || c.HallOfFameLimit > MaxLeaderboardLimit {
		return fmt.Errorf("hall of fame limit must be between 1 and %d", MaxLeaderboardLimit)
	}
	if c.HallOfFameMinTrades < 0 {
		return fmt.Errorf("hall of fame min trades must be non-negative")
	}
	return nil
}

func (c *Catalog) Challenge(id string) (challenge.Challenge, bool) {
	for _, ch := range c.Challenges {
		if ch.ID == id {
			return ch, true
		}
	}
	return challenge.Challenge{}, false
}

func (c *Catalog) Achievement(id string) (achievement.Achievement, bool) {
	for _, a := range c.Achievements {
		if a.ID == id {
			return a, true
		}
	}
	return achievement.Achievement{}, false
}

func (c *Catalog) Reward(id string) (reward.Reward, bool) {
	for _, r := range c.Rewards {
		if r.ID == id {
			return r, true
		}
	}
	return reward.Reward{}, false
}

// PayoutForRank returns the season payout covering rank, if any.
func (c *Catalog) PayoutForRank(rank int) (season.Payout, bool) {
	for _, p := range c.SeasonPayouts {
		if rank >= p.FromRank && rank <= p.ToRank {
			return p, true
		}
	}
	return season.Payout{}, false
}

// MaxPayoutRank is the worst rank that still receives a season payout.
func (c *Catalog) MaxPayoutRank() int {
	max := 0
	for _, p := range c.SeasonPayouts {
		if p.ToRank > max {
			max = p.ToRank
		}
	}
	return max
}
