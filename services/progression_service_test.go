package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeQuestAPI/internal/apperr"
	"tradeQuestAPI/internal/leaderboard"
	"tradeQuestAPI/internal/notification"
	"tradeQuestAPI/internal/progression"
	"tradeQuestAPI/internal/testutil"
	"tradeQuestAPI/internal/types/streak"
	"tradeQuestAPI/internal/types/subscription"
	"tradeQuestAPI/internal/types/trade"
	"tradeQuestAPI/internal/user"
	"tradeQuestAPI/services"
)

// Wednesday.
var start = time.Date(2025, time.March, 12, 14, 0, 0, 0, time.UTC)

type engine struct {
	svc      *services.ProgressionService
	store    *testutil.MemStore
	notifier *testutil.RecordingNotifier
	clock    *clockwork.FakeClock
}

func newEngine(t *testing.T) *engine {
	t.Helper()
	e := &engine{
		store:    testutil.NewMemStore(),
		notifier: &testutil.RecordingNotifier{},
		clock:    clockwork.NewFakeClockAt(start),
	}
	e.svc = services.NewProgressionService(e.store, progression.DefaultCatalog(), e.notifier, e.clock)
	return e
}

func (e *engine) openTrade(userID uuid.UUID) {
	e.store.AddTrade(trade.Trade{
		UserID:     userID,
		Symbol:     "BTCUSD",
		Direction:  trade.DirectionLong,
		EntryPrice: decimal.NewFromInt(100),
		Size:       decimal.NewFromInt(1),
		Status:     trade.StatusOpen,
		CreatedAt:  e.clock.Now(),
	})
}

func TestClaimChallengeOncePerPeriod(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	u := e.store.AddUser(user.User{})
	e.openTrade(u.ID)

	res, err := e.svc.ClaimChallenge(ctx, u.ID, "ch_daily_1")
	require.NoError(t, err)
	assert.Equal(t, 50, res.XPEarned)
	assert.Equal(t, 50, res.TotalXP)
	assert.Equal(t, 1, res.NewLevel)
	assert.False(t, res.LeveledUp)
	assert.Equal(t, "2025-03-12", res.PeriodKey)
	assert.Equal(t, 50, e.store.XP(u.ID))

	_, err = e.svc.ClaimChallenge(ctx, u.ID, "ch_daily_1")
	assert.ErrorIs(t, err, apperr.ErrDuplicateClaim)
	assert.Equal(t, 50, e.store.XP(u.ID))

	assert.Equal(t, 1, e.notifier.Kinds()[notification.NotificationChallenge])
}

func TestClaimChallengeNextPeriod(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	u := e.store.AddUser(user.User{})
	e.openTrade(u.ID)

	_, err := e.svc.ClaimChallenge(ctx, u.ID, "ch_daily_1")
	require.NoError(t, err)

	e.clock.Advance(24 * time.Hour)
	_, err = e.svc.ClaimChallenge(ctx, u.ID, "ch_daily_1")
	assert.ErrorIs(t, err, apperr.ErrValidation, "yesterday's trade does not count today")

	e.openTrade(u.ID)
	res, err := e.svc.ClaimChallenge(ctx, u.ID, "ch_daily_1")
	require.NoError(t, err)
	assert.Equal(t, "2025-03-13", res.PeriodKey)
	assert.Equal(t, 100, e.store.XP(u.ID))
}

func TestClaimChallengeRejections(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	u := e.store.AddUser(user.User{})

	_, err := e.svc.ClaimChallenge(ctx, u.ID, "ch_nope")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Equal(t, "challenge not found", err.Error())

	_, err = e.svc.ClaimChallenge(ctx, u.ID, "ch_daily_1")
	var ve *apperr.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "challenge_id", ve.Field)

	_, err = e.svc.ClaimChallenge(ctx, u.ID, "ch_monthly_2")
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Contains(t, err.Error(), "pro")

	assert.Equal(t, 0, e.store.XP(u.ID))
}

func TestClaimChallengeGrantsBadge(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	u := e.store.AddUser(user.User{SubscriptionTier: subscription.TierPro})

	for i := 0; i < 20; i++ {
		pnl := 10.0
		if i%3 == 0 {
			pnl = -5
		}
		e.store.AddClosedTrade(u.ID, start.Add(-time.Duration(i)*time.Hour), pnl)
	}

	res, err := e.svc.ClaimChallenge(ctx, u.ID, "ch_monthly_2")
	require.NoError(t, err)
	assert.Equal(t, "badge_sharp_shooter", res.BadgeAdded)

	unlocked, err := e.store.UnlockedAchievements(ctx, u.ID)
	require.NoError(t, err)
	assert.Contains(t, unlocked, "badge_sharp_shooter")
}

func TestChallengesListing(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	u := e.store.AddUser(user.User{})
	e.openTrade(u.ID)

	_, err := e.svc.ClaimChallenge(ctx, u.ID, "ch_daily_1")
	require.NoError(t, err)

	list, err := e.svc.Challenges(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, list, len(e.svc.Catalog().Challenges))

	byID := make(map[string]int)
	for i, p := range list {
		byID[p.ID] = i
	}

	daily := list[byID["ch_daily_1"]]
	assert.True(t, daily.Completed)
	assert.True(t, daily.Claimed)
	assert.Equal(t, 100.0, daily.Progress)
	assert.True(t, daily.EndsAt.Equal(time.Date(2025, time.March, 13, 0, 0, 0, 0, time.UTC)))

	weekly := list[byID["ch_weekly_1"]]
	assert.Equal(t, "2025-W11", weekly.PeriodKey)
	assert.Equal(t, 10.0, weekly.Progress)
	assert.False(t, weekly.Claimed)

	assert.True(t, list[byID["ch_monthly_2"]].Locked)
	assert.False(t, daily.Locked)
}

func TestAchievementsGrantedOnce(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	u := e.store.AddUser(user.User{})
	for i := 0; i < 100; i++ {
		e.openTrade(u.ID)
	}

	first, err := e.svc.Profile(ctx, u.ID)
	require.NoError(t, err)
	assert.Contains(t, first.NewAchievements, "trades_100")
	xp := e.store.XP(u.ID)
	assert.Equal(t, 100+200+500+1000, xp)

	for i := 0; i < 3; i++ {
		again, err := e.svc.Profile(ctx, u.ID)
		require.NoError(t, err)
		assert.Empty(t, again.NewAchievements)
		assert.Equal(t, xp, again.XP)
	}

	granted, err := e.svc.EvaluateAchievements(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, granted)
	assert.Equal(t, 4, e.notifier.Kinds()[notification.NotificationAchievement])
}

func TestProfile(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	u := e.store.AddUser(user.User{DisplayName: "ada", XP: 300})

	p, err := e.svc.Profile(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "ada", p.DisplayName)
	assert.Equal(t, 3, p.Level)
	assert.Equal(t, 250, p.CurrentThreshold)
	assert.Equal(t, 500, p.NextThreshold)
	assert.Equal(t, 20.0, p.Progress)
	assert.Equal(t, 0, p.AchievementsUnlocked)
	assert.Equal(t, len(e.svc.Catalog().Achievements), p.AchievementsTotal)
	assert.Equal(t, "free", p.SubscriptionTier)

	_, err = e.svc.Profile(ctx, uuid.New())
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestCheckInStreak(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	u := e.store.AddUser(user.User{})

	day1, err := e.svc.CheckIn(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, day1.CurrentStreak)
	assert.Equal(t, 10, day1.XPEarned)

	again, err := e.svc.CheckIn(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, again.AlreadyCheckedIn)
	assert.Equal(t, 0, again.XPEarned)

	e.clock.Advance(24 * time.Hour)
	day2, err := e.svc.CheckIn(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, day2.CurrentStreak)
	assert.Equal(t, 15, day2.XPEarned)

	e.clock.Advance(3 * 24 * time.Hour)
	reset, err := e.svc.CheckIn(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, reset.StreakReset)
	assert.Equal(t, 1, reset.CurrentStreak)
	assert.Equal(t, 2, reset.LongestStreak)

	assert.Equal(t, 10+15+10, e.store.XP(u.ID))
}

func TestCheckInMilestoneUnlocksAchievement(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	u := e.store.AddUser(user.User{})

	for i := 0; i < 3; i++ {
		_, err := e.svc.CheckIn(ctx, u.ID)
		require.NoError(t, err)
		e.clock.Advance(24 * time.Hour)
	}

	unlocked, err := e.store.UnlockedAchievements(ctx, u.ID)
	require.NoError(t, err)
	assert.Contains(t, unlocked, "ach_streak_3")
	assert.Equal(t, 10+15+20+100, e.store.XP(u.ID))
}

func TestStreakReadsBrokenAsZero(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	u := e.store.AddUser(user.User{})
	last := start.AddDate(0, 0, -3)
	e.store.SetStreak(streak.Streak{UserID: u.ID, CurrentStreak: 5, LongestStreak: 9, LastCheckin: &last})

	st, err := e.svc.Streak(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, st.CurrentStreak)
	assert.Equal(t, 9, st.LongestStreak)

	none, err := e.svc.Streak(ctx, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, 0, none.CurrentStreak)
}

func TestEmptyLeaderboard(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	periods := []leaderboard.Period{
		leaderboard.PeriodDaily,
		leaderboard.PeriodWeekly,
		leaderboard.PeriodMonthly,
		leaderboard.PeriodSeason,
		leaderboard.PeriodAllTime,
	}
	for _, p := range periods {
		t.Run(string(p), func(t *testing.T) {
			board, err := e.svc.Leaderboard(ctx, p, 0, nil)
			require.NoError(t, err)
			assert.NotNil(t, board.Entries)
			assert.Empty(t, board.Entries)
		})
	}
}

func TestLeaderboardRanking(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	alice := e.store.AddUser(user.User{DisplayName: "alice", XP: 1000})
	bob := e.store.AddUser(user.User{DisplayName: "bob"})
	carol := e.store.AddUser(user.User{DisplayName: "carol"})

	e.store.AddClosedTrade(alice.ID, start.Add(-time.Hour), 50)
	e.store.AddClosedTrade(alice.ID, start.Add(-2*time.Hour), 50)
	e.store.AddClosedTrade(bob.ID, start.Add(-time.Hour), 100)
	e.store.AddClosedTrade(carol.ID, start.Add(-time.Hour), 300)
	// Last month: only visible all-time.
	e.store.AddClosedTrade(bob.ID, start.AddDate(0, -1, 0), 1000)

	board, err := e.svc.Leaderboard(ctx, leaderboard.PeriodMonthly, 0, &bob.ID)
	require.NoError(t, err)
	require.Len(t, board.Entries, 3)
	assert.Equal(t, carol.ID, board.Entries[0].UserID)
	// Tied on PnL, more wins first.
	assert.Equal(t, alice.ID, board.Entries[1].UserID)
	assert.Equal(t, 2, board.Entries[1].Rank)
	assert.Equal(t, 5, board.Entries[1].Level)
	assert.Equal(t, bob.ID, board.Entries[2].UserID)
	require.NotNil(t, board.UserPosition)
	assert.Equal(t, 3, board.UserPosition.Rank)

	allTime, err := e.svc.Leaderboard(ctx, leaderboard.PeriodAllTime, 1, nil)
	require.NoError(t, err)
	require.Len(t, allTime.Entries, 1)
	assert.Equal(t, bob.ID, allTime.Entries[0].UserID)

	season, err := e.svc.Leaderboard(ctx, leaderboard.PeriodSeason, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, "2025-03", season.SeasonKey)
	assert.Len(t, season.Entries, 3)
}

func TestLeaderboardValidation(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	_, err := e.svc.Leaderboard(ctx, "yearly", 0, nil)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = e.svc.Leaderboard(ctx, leaderboard.PeriodDaily, 101, nil)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = e.svc.Leaderboard(ctx, leaderboard.PeriodDaily, -1, nil)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestHallOfFame(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	veteran := e.store.AddUser(user.User{XP: 5000})
	rookie := e.store.AddUser(user.User{XP: 10})
	for i := 0; i < 50; i++ {
		e.store.AddClosedTrade(veteran.ID, start.Add(-time.Duration(i)*time.Hour), 1)
	}
	e.store.AddClosedTrade(rookie.ID, start, 500)

	hof, err := e.svc.HallOfFame(ctx)
	require.NoError(t, err)
	require.Len(t, hof.TopLevels, 2)
	assert.Equal(t, veteran.ID, hof.TopLevels[0].UserID)
	assert.Equal(t, rookie.ID, hof.TopPnL[0].UserID)
	require.Len(t, hof.TopWinRate, 1, "rookie is under the trade floor")
	assert.Equal(t, veteran.ID, hof.TopWinRate[0].UserID)
	assert.Equal(t, 100.0, hof.TopWinRate[0].WinRate)
}

func TestSettleSeasons(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	february := time.Date(2025, time.February, 10, 12, 0, 0, 0, time.UTC)
	champ := e.store.AddUser(user.User{})
	runnerUp := e.store.AddUser(user.User{})
	e.store.AddClosedTrade(champ.ID, february, 900)
	e.store.AddClosedTrade(runnerUp.ID, february, 100)

	n, err := e.svc.SettleSeasons(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	champAch, err := e.store.UnlockedAchievements(ctx, champ.ID)
	require.NoError(t, err)
	assert.Contains(t, champAch, "season_champion")
	assert.Contains(t, champAch, "ach_leaderboard_top10")
	assert.GreaterOrEqual(t, e.store.XP(champ.ID), 5000+1000)

	runnerAch, err := e.store.UnlockedAchievements(ctx, runnerUp.ID)
	require.NoError(t, err)
	assert.NotContains(t, runnerAch, "season_champion")
	assert.Contains(t, runnerAch, "ach_leaderboard_top10")

	xp := e.store.XP(champ.ID)
	n, err = e.svc.SettleSeasons(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, xp, e.store.XP(champ.ID))
	assert.Equal(t, 2, e.notifier.Kinds()[notification.NotificationSeasonReward])
}

func TestRewards(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	u := e.store.AddUser(user.User{})

	_, err := e.svc.ClaimReward(ctx, u.ID, "theme_green_bull")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = e.svc.ClaimReward(ctx, u.ID, "theme_missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	rich := e.store.AddUser(user.User{XP: 300})
	claimed, err := e.svc.ClaimReward(ctx, rich.ID, "theme_green_bull")
	require.NoError(t, err)
	assert.True(t, claimed.Claimed)

	_, err = e.svc.ClaimReward(ctx, rich.ID, "theme_green_bull")
	assert.ErrorIs(t, err, apperr.ErrDuplicateClaim)

	require.NoError(t, e.svc.ActivateTheme(ctx, rich.ID, "green-bull"))
	assert.ErrorIs(t, e.svc.ActivateTheme(ctx, rich.ID, "neon-trader"), apperr.ErrValidation)

	list, err := e.svc.Rewards(ctx, rich.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, list.UserLevel)
	for _, r := range list.Rewards {
		assert.Equal(t, r.RequiredLevel <= 3, r.Unlocked, r.ID)
		assert.Equal(t, r.ID == "theme_green_bull", r.Claimed, r.ID)
	}
}

func TestNotifierFailureDoesNotFailClaim(t *testing.T) {
	e := newEngine(t)
	e.notifier.Err = errors.New("fcm down")
	ctx := context.Background()
	u := e.store.AddUser(user.User{XP: 90})
	e.openTrade(u.ID)

	res, err := e.svc.ClaimChallenge(ctx, u.ID, "ch_daily_1")
	require.NoError(t, err)
	assert.True(t, res.LeveledUp)
	assert.Equal(t, 2, res.NewLevel)
	assert.Equal(t, 140, e.store.XP(u.ID))

	kinds := e.notifier.Kinds()
	assert.Equal(t, 1, kinds[notification.NotificationChallenge])
	assert.Equal(t, 1, kinds[notification.NotificationLevelUp])
}

func TestRemindStreaksAtRisk(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	yesterday := start.AddDate(0, 0, -1)
	today := start
	atRisk := e.store.AddUser(user.User{})
	safe := e.store.AddUser(user.User{})
	e.store.SetStreak(streak.Streak{UserID: atRisk.ID, CurrentStreak: 4, LongestStreak: 4, LastCheckin: &yesterday})
	e.store.SetStreak(streak.Streak{UserID: safe.ID, CurrentStreak: 5, LongestStreak: 5, LastCheckin: &today})

	n, err := e.svc.RemindStreaksAtRisk(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	sent := e.notifier.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, atRisk.ID, sent[0].UserID)
	assert.Equal(t, notification.NotificationStreakRisk, sent[0].Kind)
}
