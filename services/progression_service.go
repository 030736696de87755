package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"tradeQuestAPI/internal/achievement"
	"tradeQuestAPI/internal/apperr"
	"tradeQuestAPI/internal/leaderboard"
	"tradeQuestAPI/internal/metrics"
	"tradeQuestAPI/internal/notification"
	"tradeQuestAPI/internal/progression"
	"tradeQuestAPI/internal/types/challenge"
	"tradeQuestAPI/internal/types/reward"
	"tradeQuestAPI/internal/types/season"
	"tradeQuestAPI/internal/types/streak"
	"tradeQuestAPI/internal/user"
)

const notifyTimeout = 5 * time.Second

// Notifier receives user-facing events once the change behind them is
// committed.
type Notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, kind notification.NotificationType, title, message string, data map[string]any) error
}

// ProgressionService turns ledger activity into XP, levels, challenge claims,
// achievements, streaks and season standings. Aggregates are recomputed from
// the ledger on every read.
type ProgressionService struct {
	store    ProgressionStore
	catalog  *progression.Catalog
	notifier Notifier
	clock    clockwork.Clock
}

func NewProgressionService(store ProgressionStore, catalog *progression.Catalog, notifier Notifier, clock clockwork.Clock) *ProgressionService {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &ProgressionService{
		store:    store,
		catalog:  catalog,
		notifier: notifier,
		clock:    clock,
	}
}

func (s *ProgressionService) Catalog() *progression.Catalog {
	return s.catalog
}

func (s *ProgressionService) now() time.Time {
	return s.clock.Now().UTC()
}

// Profile runs the achievement detector and returns the user's progression
// summary.
func (s *ProgressionService) Profile(ctx context.Context, userID uuid.UUID) (*user.Profile, error) {
	newly, err := s.EvaluateAchievements(ctx, userID)
	if err != nil {
		return nil, err
	}

	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	st, err := s.store.GetStreak(ctx, userID)
	if err != nil {
		return nil, err
	}
	unlocked, err := s.store.UnlockedAchievements(ctx, userID)
	if err != nil {
		return nil, err
	}

	info := s.catalog.Levels.Info(u.XP)
	profile := &user.Profile{
		UserID:               u.ID.String(),
		DisplayName:          u.DisplayName,
		XP:                   u.XP,
		Level:                info.Level,
		CurrentThreshold:     info.CurrentThreshold,
		NextThreshold:        info.NextThreshold,
		Progress:             info.Progress,
		CurrentStreak:        progression.ActiveStreak(st, s.now()),
		AchievementsUnlocked: len(unlocked),
		AchievementsTotal:    len(s.catalog.Achievements),
		SubscriptionTier:     string(u.SubscriptionTier),
		Title:                u.Title,
		ActiveTheme:          u.ActiveTheme,
	}
	if st != nil {
		profile.LongestStreak = st.LongestStreak
	}
	for _, a := range newly {
		profile.NewAchievements = append(profile.NewAchievements, a.ID)
	}
	return profile, nil
}

// Challenges lists every template with the user's progress in its current
// period.
func (s *ProgressionService) Challenges(ctx context.Context, userID uuid.UUID) ([]challenge.Progress, error) {
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	windows := make(map[challenge.Period]progression.Window)
	activity := make(map[challenge.Period]progression.Activity)
	var keys []string

	for _, ch := range s.catalog.Challenges {
		if _, ok := windows[ch.Period]; ok {
			continue
		}
		w, err := progression.WindowFor(ch.Period, now)
		if err != nil {
			return nil, err
		}
		a, err := s.store.ActivityInWindow(ctx, userID, w.Start, w.End)
		if err != nil {
			return nil, err
		}
		windows[ch.Period] = w
		activity[ch.Period] = a
		keys = append(keys, w.Key)
	}

	currentStreak, err := s.currentStreak(ctx, userID, now)
	if err != nil {
		return nil, err
	}

	claims, err := s.store.ListClaims(ctx, userID, keys)
	if err != nil {
		return nil, err
	}
	claimed := make(map[string]bool, len(claims))
	for _, c := range claims {
		claimed[c.ChallengeID+"|"+c.PeriodKey] = true
	}

	list := make([]challenge.Progress, 0, len(s.catalog.Challenges))
	for _, ch := range s.catalog.Challenges {
		w := windows[ch.Period]
		value := progression.MetricValue(ch, activity[ch.Period], currentStreak)
		pct, completed := progression.ChallengeProgress(ch, value)

		list = append(list, challenge.Progress{
			Challenge: ch,
			PeriodKey: w.Key,
			EndsAt:    w.End,
			Current:   value,
			Progress:  pct,
			Completed: completed,
			Claimed:   claimed[ch.ID+"|"+w.Key],
			Locked:    !u.SubscriptionTier.AtLeast(ch.MinTier),
		})
	}
	return list, nil
}

// ClaimChallenge awards a completed challenge once per period.
func (s *ProgressionService) ClaimChallenge(ctx context.Context, userID uuid.UUID, challengeID string) (*challenge.ClaimResult, error) {
	ch, ok := s.catalog.Challenge(challengeID)
	if !ok {
		return nil, apperr.NotFound("challenge")
	}

	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !u.SubscriptionTier.AtLeast(ch.MinTier) {
		metrics.ChallengeClaims.WithLabelValues("locked").Inc()
		return nil, apperr.Invalid("challenge_id", "challenge requires the %s plan", ch.MinTier)
	}

	now := s.now()
	w, err := progression.WindowFor(ch.Period, now)
	if err != nil {
		return nil, err
	}
	a, err := s.store.ActivityInWindow(ctx, userID, w.Start, w.End)
	if err != nil {
		return nil, err
	}
	currentStreak, err := s.currentStreak(ctx, userID, now)
	if err != nil {
		return nil, err
	}

	value := progression.MetricValue(ch, a, currentStreak)
	if _, completed := progression.ChallengeProgress(ch, value); !completed {
		metrics.ChallengeClaims.WithLabelValues("incomplete").Inc()
		return nil, apperr.Invalid("challenge_id", "challenge not completed")
	}

	change, badgeAdded, err := s.store.InsertClaim(ctx, challenge.Claim{
		UserID:      userID,
		ChallengeID: ch.ID,
		PeriodKey:   w.Key,
		XPAwarded:   ch.XPReward,
		ClaimedAt:   now,
	}, ch.BadgeID)
	if errors.Is(err, apperr.ErrDuplicateClaim) {
		metrics.ChallengeClaims.WithLabelValues("duplicate").Inc()
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	metrics.ChallengeClaims.WithLabelValues("ok").Inc()
	metrics.XPAwarded.WithLabelValues("challenge").Add(float64(ch.XPReward))

	log.Ctx(ctx).Info().
		Str("user_id", userID.String()).
		Str("challenge_id", ch.ID).
		Str("period_key", w.Key).
		Int("xp", ch.XPReward).
		Msg("challenge claimed")

	result := &challenge.ClaimResult{
		Message:   fmt.Sprintf("Challenge completed! +%d XP", ch.XPReward),
		XPEarned:  ch.XPReward,
		TotalXP:   change.After,
		PeriodKey: w.Key,
	}
	if badgeAdded {
		result.BadgeAdded = ch.BadgeID
		metrics.AchievementsUnlocked.WithLabelValues(ch.BadgeID).Inc()
	}

	s.notify(ctx, userID, notification.NotificationChallenge,
		"Challenge completed",
		fmt.Sprintf("%s: +%d XP", ch.Title, ch.XPReward),
		map[string]any{"challenge_id": ch.ID, "xp": ch.XPReward})
	result.LeveledUp, result.NewLevel = s.afterXPChange(ctx, userID, change)

	return result, nil
}

// EvaluateAchievements grants every catalog achievement the user now
// satisfies and has not unlocked yet. It returns the ones granted by this
// call.
func (s *ProgressionService) EvaluateAchievements(ctx context.Context, userID uuid.UUID) ([]achievement.Achievement, error) {
	unlockedAt, err := s.store.UnlockedAchievements(ctx, userID)
	if err != nil {
		return nil, err
	}
	lifetime, err := s.store.Lifetime(ctx, userID)
	if err != nil {
		return nil, err
	}

	unlocked := make(map[string]bool, len(unlockedAt))
	for id := range unlockedAt {
		unlocked[id] = true
	}

	var granted []achievement.Achievement
	for _, a := range s.catalog.NewlySatisfied(lifetime, unlocked) {
		ok, change, err := s.store.GrantAchievement(ctx, userID, a.ID, a.XPReward)
		if err != nil {
			return granted, err
		}
		if !ok {
			// Granted by a concurrent evaluation.
			continue
		}
		granted = append(granted, a)

		metrics.AchievementsUnlocked.WithLabelValues(a.ID).Inc()
		metrics.XPAwarded.WithLabelValues("achievement").Add(float64(a.XPReward))
		log.Ctx(ctx).Info().
			Str("user_id", userID.String()).
			Str("achievement_id", a.ID).
			Msg("achievement unlocked")

		s.notify(ctx, userID, notification.NotificationAchievement,
			"Achievement unlocked",
			fmt.Sprintf("%s %s: +%d XP", a.Icon, a.Name, a.XPReward),
			map[string]any{"achievement_id": a.ID, "xp": a.XPReward})
		s.afterXPChange(ctx, userID, change)
	}
	return granted, nil
}

// OnActivity is called by ledger writers after they commit. Failures are
// logged; the ledger write already succeeded.
func (s *ProgressionService) OnActivity(ctx context.Context, userID uuid.UUID) []achievement.Achievement {
	granted, err := s.EvaluateAchievements(ctx, userID)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Str("user_id", userID.String()).Msg("achievement evaluation failed")
	}
	return granted
}

// Achievements lists the catalog with the user's unlock state, unlocked
// entries first.
func (s *ProgressionService) Achievements(ctx context.Context, userID uuid.UUID) ([]achievement.AchievementWithStatus, error) {
	unlocked, err := s.store.UnlockedAchievements(ctx, userID)
	if err != nil {
		return nil, err
	}

	list := make([]achievement.AchievementWithStatus, 0, len(s.catalog.Achievements))
	for _, a := range s.catalog.Achievements {
		item := achievement.AchievementWithStatus{Achievement: a}
		if at, ok := unlocked[a.ID]; ok {
			at := at
			item.Unlocked = true
			item.UnlockedAt = &at
		}
		list = append(list, item)
	}

	sort.SliceStable(list, func(i, j int) bool {
		return list[i].Unlocked && !list[j].Unlocked
	})
	return list, nil
}

// CheckIn records today's check-in and pays the streak reward.
func (s *ProgressionService) CheckIn(ctx context.Context, userID uuid.UUID) (*streak.CheckInResult, error) {
	now := s.now()

	outcome, change, err := s.store.ApplyCheckIn(ctx, userID, func(prev *streak.Streak) progression.CheckIn {
		return s.catalog.Streak.Next(userID, prev, now)
	})
	if err != nil {
		return nil, err
	}

	result := &streak.CheckInResult{
		CurrentStreak:    outcome.Streak.CurrentStreak,
		LongestStreak:    outcome.Streak.LongestStreak,
		AlreadyCheckedIn: outcome.AlreadyCheckedIn,
		StreakReset:      outcome.Reset,
	}

	if outcome.AlreadyCheckedIn {
		metrics.CheckIns.WithLabelValues("already").Inc()
		result.Message = "Already checked in today"
		result.NewLevel = s.catalog.Levels.Level(change.After)
		return result, nil
	}

	switch {
	case outcome.Reset:
		metrics.CheckIns.WithLabelValues("reset").Inc()
		result.Message = fmt.Sprintf("Streak restarted. +%d XP", outcome.XPEarned)
	case outcome.Streak.CurrentStreak == 1:
		metrics.CheckIns.WithLabelValues("started").Inc()
		result.Message = fmt.Sprintf("Streak started! +%d XP", outcome.XPEarned)
	default:
		metrics.CheckIns.WithLabelValues("continued").Inc()
		result.Message = fmt.Sprintf("%d day streak! +%d XP", outcome.Streak.CurrentStreak, outcome.XPEarned)
	}
	result.XPEarned = outcome.XPEarned
	metrics.XPAwarded.WithLabelValues("streak").Add(float64(outcome.XPEarned))

	result.LeveledUp, result.NewLevel = s.afterXPChange(ctx, userID, change)

	if outcome.Milestone > 0 {
		s.OnActivity(ctx, userID)
	}
	return result, nil
}

// Streak returns the user's streak as of today. A broken streak reads as 0.
func (s *ProgressionService) Streak(ctx context.Context, userID uuid.UUID) (*streak.Streak, error) {
	st, err := s.store.GetStreak(ctx, userID)
	if err != nil {
		return nil, err
	}
	if st == nil {
		return &streak.Streak{UserID: userID}, nil
	}
	st.CurrentStreak = progression.ActiveStreak(st, s.now())
	return st, nil
}

// Leaderboard ranks users by closed-trade PnL over period. limit 0 means the
// catalog default. When viewer is set the viewer's own position is included.
func (s *ProgressionService) Leaderboard(ctx context.Context, period leaderboard.Period, limit int, viewer *uuid.UUID) (*leaderboard.Leaderboard, error) {
	if limit == 0 {
		limit = s.catalog.LeaderboardLimit
	}
	if limit < 1 || limit > progression.MaxLeaderboardLimit {
		return nil, apperr.Invalid("limit", "limit must be between 1 and %d", progression.MaxLeaderboardLimit)
	}

	board := &leaderboard.Leaderboard{Period: period}

	var from, to *time.Time
	switch period {
	case leaderboard.PeriodDaily, leaderboard.PeriodWeekly, leaderboard.PeriodMonthly:
		w, err := progression.WindowFor(challenge.Period(period), s.now())
		if err != nil {
			return nil, err
		}
		from, to = &w.Start, &w.End
	case leaderboard.PeriodSeason:
		current, err := s.CurrentSeason(ctx)
		if err != nil {
			return nil, err
		}
		from, to = &current.StartsAt, &current.EndsAt
		board.SeasonKey = current.Key
	case leaderboard.PeriodAllTime:
	default:
		return nil, apperr.Invalid("period", "unknown period %q", period)
	}

	entries, err := s.store.Leaderboard(ctx, from, to, limit)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []*leaderboard.LeaderboardEntry{}
	}
	s.withLevels(entries)
	board.Entries = entries

	if viewer != nil {
		pos, err := s.store.LeaderboardPosition(ctx, *viewer, from, to)
		if err != nil {
			return nil, err
		}
		if pos != nil {
			pos.Level = s.catalog.Levels.Level(pos.XP)
		}
		board.UserPosition = pos
	}
	return board, nil
}

func (s *ProgressionService) HallOfFame(ctx context.Context) (*leaderboard.HallOfFame, error) {
	limit := s.catalog.HallOfFameLimit

	topLevels, err := s.store.TopByXP(ctx, limit)
	if err != nil {
		return nil, err
	}
	topPnL, err := s.store.Leaderboard(ctx, nil, nil, limit)
	if err != nil {
		return nil, err
	}
	topWinRate, err := s.store.TopByWinRate(ctx, s.catalog.HallOfFameMinTrades, limit)
	if err != nil {
		return nil, err
	}

	s.withLevels(topLevels)
	s.withLevels(topPnL)
	s.withLevels(topWinRate)
	return &leaderboard.HallOfFame{
		TopLevels:  topLevels,
		TopPnL:     topPnL,
		TopWinRate: topWinRate,
	}, nil
}

// CurrentSeason returns the season containing now, creating it on first use.
func (s *ProgressionService) CurrentSeason(ctx context.Context) (*season.Season, error) {
	return s.store.EnsureSeason(ctx, progression.SeasonFor(s.now()))
}

// SettleSeasons pays out every season that has ended and is not settled yet.
// It returns the number of seasons settled.
func (s *ProgressionService) SettleSeasons(ctx context.Context) (int, error) {
	now := s.now()

	// The previous season may never have been viewed.
	previous := progression.SeasonFor(progression.SeasonFor(now).StartsAt.Add(-time.Nanosecond))
	if _, err := s.store.EnsureSeason(ctx, previous); err != nil {
		return 0, err
	}

	pending, err := s.store.UnsettledSeasons(ctx, now)
	if err != nil {
		return 0, err
	}

	settled := 0
	for _, ss := range pending {
		if err := s.settle(ctx, ss); err != nil {
			return settled, fmt.Errorf("failed to settle season %s: %w", ss.Key, err)
		}
		settled++
	}
	return settled, nil
}

func (s *ProgressionService) settle(ctx context.Context, ss *season.Season) error {
	standings, err := s.store.Leaderboard(ctx, &ss.StartsAt, &ss.EndsAt, s.catalog.MaxPayoutRank())
	if err != nil {
		return err
	}

	awards := make([]season.Award, 0, len(standings))
	for _, e := range standings {
		payout, ok := s.catalog.PayoutForRank(e.Rank)
		if !ok {
			continue
		}
		awards = append(awards, season.Award{
			SeasonID: ss.ID,
			UserID:   e.UserID,
			Rank:     e.Rank,
			XP:       payout.XP,
			BadgeID:  payout.BadgeID,
		})
	}

	grants, err := s.store.SettleSeason(ctx, ss.ID, awards)
	if err != nil {
		return err
	}

	log.Ctx(ctx).Info().Str("season", ss.Key).Int("awards", len(grants)).Msg("season settled")

	for _, g := range grants {
		metrics.XPAwarded.WithLabelValues("season").Add(float64(g.XP))
		if g.BadgeID != "" {
			metrics.AchievementsUnlocked.WithLabelValues(g.BadgeID).Inc()
		}
		s.notify(ctx, g.UserID, notification.NotificationSeasonReward,
			"Season results",
			fmt.Sprintf("You finished %s at rank #%d: +%d XP", ss.Name, g.Rank, g.XP),
			map[string]any{"season": ss.Key, "rank": g.Rank, "xp": g.XP})
		s.afterXPChange(ctx, g.UserID, g.Change)
		s.OnActivity(ctx, g.UserID)
	}
	return nil
}

// RemindStreaksAtRisk notifies users who checked in yesterday but not today.
func (s *ProgressionService) RemindStreaksAtRisk(ctx context.Context) (int, error) {
	yesterday := progression.StartOfDay(s.now()).AddDate(0, 0, -1)

	ids, err := s.store.StreaksAtRisk(ctx, yesterday)
	if err != nil {
		return 0, err
	}
	for _, id := range ids {
		s.notify(ctx, id, notification.NotificationStreakRisk,
			"Keep your streak alive",
			"Check in today so your streak doesn't reset",
			nil)
	}
	return len(ids), nil
}

func (s *ProgressionService) Rewards(ctx context.Context, userID uuid.UUID) (*reward.RewardList, error) {
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	claims, err := s.store.RewardClaims(ctx, userID)
	if err != nil {
		return nil, err
	}

	level := s.catalog.Levels.Level(u.XP)
	list := &reward.RewardList{
		Rewards:   make([]reward.RewardWithStatus, 0, len(s.catalog.Rewards)),
		UserLevel: level,
	}
	for _, r := range s.catalog.Rewards {
		item := reward.RewardWithStatus{Reward: r, Unlocked: level >= r.RequiredLevel}
		if at, ok := claims[r.ID]; ok {
			at := at
			item.Claimed = true
			item.ClaimedAt = &at
		}
		list.Rewards = append(list.Rewards, item)
	}
	return list, nil
}

func (s *ProgressionService) ClaimReward(ctx context.Context, userID uuid.UUID, rewardID string) (*reward.RewardWithStatus, error) {
	r, ok := s.catalog.Reward(rewardID)
	if !ok {
		return nil, apperr.NotFound("reward")
	}

	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if level := s.catalog.Levels.Level(u.XP); level < r.RequiredLevel {
		return nil, apperr.Invalid("reward_id", "requires level %d, you are level %d", r.RequiredLevel, level)
	}

	if err := s.store.ClaimReward(ctx, userID, r); err != nil {
		return nil, err
	}

	now := s.now()
	return &reward.RewardWithStatus{Reward: r, Unlocked: true, Claimed: true, ClaimedAt: &now}, nil
}

func (s *ProgressionService) ActivateTheme(ctx context.Context, userID uuid.UUID, theme string) error {
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if !u.HasTheme(theme) {
		return apperr.Invalid("theme", "theme %q is not unlocked", theme)
	}
	return s.store.SetActiveTheme(ctx, userID, theme)
}

func (s *ProgressionService) currentStreak(ctx context.Context, userID uuid.UUID, now time.Time) (int, error) {
	st, err := s.store.GetStreak(ctx, userID)
	if err != nil {
		return 0, err
	}
	return progression.ActiveStreak(st, now), nil
}

func (s *ProgressionService) withLevels(entries []*leaderboard.LeaderboardEntry) {
	for _, e := range entries {
		e.Level = s.catalog.Levels.Level(e.XP)
	}
}

// afterXPChange sends the level-up notification when change crossed a level.
func (s *ProgressionService) afterXPChange(ctx context.Context, userID uuid.UUID, change XPChange) (bool, int) {
	leveledUp, newLevel := s.catalog.Levels.LevelUp(change.Before, change.After)
	if !leveledUp {
		return false, newLevel
	}

	metrics.LevelUps.Inc()
	s.notify(ctx, userID, notification.NotificationLevelUp,
		"Level up!",
		fmt.Sprintf("You reached level %d", newLevel),
		map[string]any{"level": newLevel, "xp": change.After})
	return true, newLevel
}

func (s *ProgressionService) notify(ctx context.Context, userID uuid.UUID, kind notification.NotificationType, title, message string, data map[string]any) {
	deliver(ctx, s.notifier, userID, kind, title, message, data)
}

// deliver sends a notification after commit. Failures never reach the
// caller.
func deliver(ctx context.Context, n Notifier, userID uuid.UUID, kind notification.NotificationType, title, message string, data map[string]any) {
	if n == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()

	if err := n.Notify(ctx, userID, kind, title, message, data); err != nil {
		metrics.NotificationsFailed.WithLabelValues("sink").Inc()
		log.Ctx(ctx).Warn().
			Err(apperr.Upstream("notifications", err)).
			Str("user_id", userID.String()).
			Str("kind", string(kind)).
			Msg("notification failed")
	}
}
