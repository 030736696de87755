package services_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeQuestAPI/internal/apperr"
	"tradeQuestAPI/internal/progression"
	"tradeQuestAPI/internal/testutil"
	"tradeQuestAPI/internal/types/season"
	"tradeQuestAPI/internal/types/streak"
	"tradeQuestAPI/services"
)

func xpChange(before, after int) services.XPChange {
	return services.XPChange{Before: before, After: after}
}

func userXP(t *testing.T, store *services.PgProgressionStore, userID uuid.UUID) int {
	t.Helper()
	u, err := store.GetUser(context.Background(), userID)
	require.NoError(t, err)
	return u.XP
}

func TestPgConcurrentClaimAwardsOnce(t *testing.T) {
	pool := testutil.SetupTestDB(t)
	ctx := context.Background()
	store := services.NewPgProgressionStore(pool)
	svc := services.NewProgressionService(store, progression.DefaultCatalog(), nil, clockwork.NewFakeClockAt(start))

	userID := testutil.CreateTestUser(t, pool, "claimer")
	testutil.InsertTrade(t, pool, userID, 0, start.Add(-time.Hour), nil)

	const workers = 8
	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		succeeded  int
		duplicates int
		other      []error
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.ClaimChallenge(ctx, userID, "ch_daily_1")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, apperr.ErrDuplicateClaim):
				duplicates++
			default:
				other = append(other, err)
			}
		}()
	}
	wg.Wait()

	assert.Empty(t, other)
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, workers-1, duplicates)
	assert.Equal(t, 50, userXP(t, store, userID))

	var claims int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM challenge_claims WHERE user_id = $1`, userID).Scan(&claims))
	assert.Equal(t, 1, claims)
}

func TestPgAchievementScanIdempotent(t *testing.T) {
	pool := testutil.SetupTestDB(t)
	ctx := context.Background()
	store := services.NewPgProgressionStore(pool)
	svc := services.NewProgressionService(store, progression.DefaultCatalog(), nil, clockwork.NewFakeClockAt(start))

	userID := testutil.CreateTestUser(t, pool, "scanner")
	closed := start.Add(-time.Hour)
	testutil.InsertTrade(t, pool, userID, 25, start.Add(-2*time.Hour), &closed)

	first, err := svc.EvaluateAchievements(ctx, userID)
	require.NoError(t, err)
	require.NotEmpty(t, first)
	xpAfterFirst := userXP(t, store, userID)
	assert.Positive(t, xpAfterFirst)

	second, err := svc.EvaluateAchievements(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, second)
	assert.Equal(t, xpAfterFirst, userXP(t, store, userID))

	unlocked, err := store.UnlockedAchievements(ctx, userID)
	require.NoError(t, err)
	assert.Contains(t, unlocked, "ach_first_trade")
	assert.Len(t, unlocked, len(first))

	granted, _, err := store.GrantAchievement(ctx, userID, "ach_first_trade", 100)
	require.NoError(t, err)
	assert.False(t, granted)
	assert.Equal(t, xpAfterFirst, userXP(t, store, userID))
}

func TestPgCheckInConsecutiveDays(t *testing.T) {
	pool := testutil.SetupTestDB(t)
	ctx := context.Background()
	store := services.NewPgProgressionStore(pool)
	rules := progression.DefaultStreakRules()

	userID := testutil.CreateTestUser(t, pool, "streaker")
	checkIn := func(at time.Time) (progression.CheckIn, services.XPChange) {
		t.Helper()
		out, change, err := store.ApplyCheckIn(ctx, userID, func(prev *streak.Streak) progression.CheckIn {
			return rules.Next(userID, prev, at)
		})
		require.NoError(t, err)
		return out, change
	}

	out, change := checkIn(start)
	assert.Equal(t, 1, out.Streak.CurrentStreak)
	assert.Equal(t, rules.BaseXP, out.XPEarned)
	assert.Equal(t, xpChange(0, 10), change)

	out, _ = checkIn(start.Add(2 * time.Hour))
	assert.True(t, out.AlreadyCheckedIn)
	assert.Equal(t, 10, userXP(t, store, userID))

	out, change = checkIn(start.AddDate(0, 0, 1))
	assert.False(t, out.AlreadyCheckedIn)
	assert.Equal(t, 2, out.Streak.CurrentStreak)
	assert.Equal(t, 15, out.XPEarned)
	assert.Equal(t, xpChange(10, 25), change)

	st, err := store.GetStreak(ctx, userID)
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.Equal(t, 2, st.CurrentStreak)
	assert.Equal(t, 2, st.LongestStreak)
	require.NotNil(t, st.LastCheckin)
	assert.True(t, progression.StartOfDay(start.AddDate(0, 0, 1)).Equal(st.LastCheckin.UTC()))
}

func TestPgSettleSeasonTwice(t *testing.T) {
	pool := testutil.SetupTestDB(t)
	ctx := context.Background()
	store := services.NewPgProgressionStore(pool)

	winner := testutil.CreateTestUser(t, pool, "winner")
	key := "test-" + uuid.NewString()
	s, err := store.EnsureSeason(ctx, season.Season{
		Key:      key,
		Name:     "Test season",
		StartsAt: time.Date(1999, time.January, 1, 0, 0, 0, 0, time.UTC),
		EndsAt:   time.Date(1999, time.February, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), `DELETE FROM seasons WHERE key = $1`, key)
	})

	again, err := store.EnsureSeason(ctx, season.Season{Key: key, Name: "ignored"})
	require.NoError(t, err)
	assert.Equal(t, s.ID, again.ID)

	awards := []season.Award{{SeasonID: s.ID, UserID: winner, Rank: 1, XP: 5000, BadgeID: "season_champion"}}

	grants, err := store.SettleSeason(ctx, s.ID, awards)
	require.NoError(t, err)
	require.Len(t, grants, 1)
	assert.Equal(t, xpChange(0, 5000), grants[0].Change)

	grants, err = store.SettleSeason(ctx, s.ID, awards)
	require.NoError(t, err)
	assert.Empty(t, grants)
	assert.Equal(t, 5000, userXP(t, store, winner))

	unlocked, err := store.UnlockedAchievements(ctx, winner)
	require.NoError(t, err)
	assert.Contains(t, unlocked, "season_champion")

	_, err = store.SettleSeason(ctx, uuid.New(), awards)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestPgLeaderboardPosition(t *testing.T) {
	pool := testutil.SetupTestDB(t)
	ctx := context.Background()
	store := services.NewPgProgressionStore(pool)

	from := time.Date(1999, time.June, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 1)
	inside := from.Add(6 * time.Hour)
	outside := to.Add(time.Hour)

	alice := testutil.CreateTestUser(t, pool, "alice")
	bob := testutil.CreateTestUser(t, pool, "bob")
	testutil.InsertTrade(t, pool, alice, 50, from, &inside)
	testutil.InsertTrade(t, pool, alice, -20, from, &inside)
	testutil.InsertTrade(t, pool, alice, 500, from, &outside)
	testutil.InsertTrade(t, pool, bob, 120, from, &inside)

	entries, err := store.Leaderboard(ctx, &from, &to, 100)
	require.NoError(t, err)

	ranks := make(map[uuid.UUID]int)
	for _, e := range entries {
		ranks[e.UserID] = e.Rank
	}
	require.Contains(t, ranks, alice)
	require.Contains(t, ranks, bob)
	assert.Less(t, ranks[bob], ranks[alice])

	pos, err := store.LeaderboardPosition(ctx, alice, &from, &to)
	require.NoError(t, err)
	require.NotNil(t, pos)
	assert.Equal(t, ranks[alice], pos.Rank)
	assert.True(t, pos.TotalPnL.Equal(decimal.NewFromInt(30)), "got %s", pos.TotalPnL)
	assert.Equal(t, 1, pos.Wins)
	assert.Equal(t, 2, pos.TradesCount)
	assert.Equal(t, 50.0, pos.WinRate)

	nobody := testutil.CreateTestUser(t, pool, "nobody")
	pos, err = store.LeaderboardPosition(ctx, nobody, &from, &to)
	require.NoError(t, err)
	assert.Nil(t, pos)
}

