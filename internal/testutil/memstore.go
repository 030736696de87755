// Package testutil holds fakes and helpers shared by package tests.
package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"tradeQuestAPI/internal/apperr"
	"tradeQuestAPI/internal/leaderboard"
	"tradeQuestAPI/internal/progression"
	"tradeQuestAPI/internal/types/challenge"
	"tradeQuestAPI/internal/types/community"
	"tradeQuestAPI/internal/types/reward"
	"tradeQuestAPI/internal/types/season"
	"tradeQuestAPI/internal/types/streak"
	"tradeQuestAPI/internal/types/subscription"
	"tradeQuestAPI/internal/types/trade"
	"tradeQuestAPI/internal/user"
	"tradeQuestAPI/services"
)

// MemStore is an in-memory services.ProgressionStore. It aggregates the
// ledger the same way the Postgres store does.
type MemStore struct {
	mu sync.Mutex

	users        map[uuid.UUID]*user.User
	trades       []trade.Trade
	posts        []community.Post
	claims       map[string]challenge.Claim
	achievements map[uuid.UUID]map[string]time.Time
	streaks      map[uuid.UUID]streak.Streak
	seasons      map[string]*season.Season
	awards       map[uuid.UUID]map[uuid.UUID]season.Award
	rewards      map[uuid.UUID]map[string]time.Time
}

var _ services.ProgressionStore = (*MemStore)(nil)

func NewMemStore() *MemStore {
	return &MemStore{
		users:        make(map[uuid.UUID]*user.User),
		claims:       make(map[string]challenge.Claim),
		achievements: make(map[uuid.UUID]map[string]time.Time),
		streaks:      make(map[uuid.UUID]streak.Streak),
		seasons:      make(map[string]*season.Season),
		awards:       make(map[uuid.UUID]map[uuid.UUID]season.Award),
		rewards:      make(map[uuid.UUID]map[string]time.Time),
	}
}

// AddUser stores u with the same defaults the users table applies.
func (m *MemStore) AddUser(u user.User) *user.User {
	m.mu.Lock()
	defer m.mu.Unlock()

	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.SubscriptionTier == "" {
		u.SubscriptionTier = subscription.TierFree
	}
	if u.UnlockedThemes == nil {
		u.UnlockedThemes = []string{"dark-blue"}
	}
	if u.ActiveTheme == "" {
		u.ActiveTheme = "dark-blue"
	}
	if u.DisplayName == "" {
		u.DisplayName = "trader-" + u.ID.String()[:8]
	}
	m.users[u.ID] = &u
	return &u
}

func (m *MemStore) AddTrade(t trade.Trade) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	m.trades = append(m.trades, t)
}

// AddClosedTrade logs a trade closed at ts with the given PnL.
func (m *MemStore) AddClosedTrade(userID uuid.UUID, ts time.Time, pnl float64) {
	p := decimal.NewFromFloat(pnl)
	closed := ts
	m.AddTrade(trade.Trade{
		UserID:     userID,
		Symbol:     "EURUSD",
		Direction:  trade.DirectionLong,
		EntryPrice: decimal.NewFromInt(1),
		Size:       decimal.NewFromInt(1),
		PnL:        &p,
		Status:     trade.StatusClosed,
		CreatedAt:  ts,
		ClosedAt:   &closed,
	})
}

func (m *MemStore) AddPost(p community.Post) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	m.posts = append(m.posts, p)
}

func (m *MemStore) SetStreak(s streak.Streak) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.streaks[s.UserID] = s
}

// XP returns the stored XP total for userID.
func (m *MemStore) XP(userID uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[userID]; ok {
		return u.XP
	}
	return 0
}

func (m *MemStore) GetUser(_ context.Context, userID uuid.UUID) (*user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return nil, apperr.NotFound("user")
	}
	cp := *u
	cp.UnlockedThemes = append([]string(nil), u.UnlockedThemes...)
	return &cp, nil
}

func (m *MemStore) ActivityInWindow(_ context.Context, userID uuid.UUID, from, to time.Time) (progression.Activity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	in := func(t time.Time) bool { return !t.Before(from) && t.Before(to) }
	a := progression.Activity{PnL: decimal.Zero}
	for i := range m.trades {
		t := &m.trades[i]
		if t.UserID != userID {
			continue
		}
		if in(t.CreatedAt) {
			countCreated(&a, t)
		}
		if t.Status == trade.StatusClosed && t.ClosedAt != nil && in(*t.ClosedAt) {
			countClosed(&a, t)
		}
	}
	for _, p := range m.posts {
		if p.UserID == userID && in(p.CreatedAt) {
			a.Posts++
		}
	}
	return a, nil
}

func (m *MemStore) Lifetime(_ context.Context, userID uuid.UUID) (progression.Lifetime, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l := progression.Lifetime{Activity: progression.Activity{PnL: decimal.Zero}}
	months := make(map[string]decimal.Decimal)
	for i := range m.trades {
		t := &m.trades[i]
		if t.UserID != userID {
			continue
		}
		countCreated(&l.Activity, t)
		if t.Status == trade.StatusClosed && t.PnL != nil && t.ClosedAt != nil {
			countClosed(&l.Activity, t)
			key := t.ClosedAt.UTC().Format("2006-01")
			months[key] = months[key].Add(*t.PnL)
		}
	}
	for _, sum := range months {
		if sum.IsPositive() {
			l.ProfitableMonths++
		}
	}
	for _, p := range m.posts {
		if p.UserID == userID {
			l.Posts++
			l.LikesReceived += p.LikesCount
		}
	}
	if s, ok := m.streaks[userID]; ok {
		l.LongestStreak = s.LongestStreak
	}
	for _, bySeason := range m.awards {
		if a, ok := bySeason[userID]; ok && (l.BestSeasonRank == 0 || a.Rank < l.BestSeasonRank) {
			l.BestSeasonRank = a.Rank
		}
	}
	return l, nil
}

func countCreated(a *progression.Activity, t *trade.Trade) {
	a.Trades++
	if t.Journaled() {
		a.JournaledTrades++
	}
	if t.FollowedPlan != nil {
		a.PlanTagged++
		if *t.FollowedPlan {
			a.PlanFollowed++
		}
	}
}

func countClosed(a *progression.Activity, t *trade.Trade) {
	a.ClosedTrades++
	if t.PnL == nil {
		return
	}
	if t.PnL.IsPositive() {
		a.WinningTrades++
	}
	a.PnL = a.PnL.Add(*t.PnL)
}

func claimKey(userID uuid.UUID, challengeID, periodKey string) string {
	return userID.String() + "|" + challengeID + "|" + periodKey
}

func (m *MemStore) ListClaims(_ context.Context, userID uuid.UUID, periodKeys []string) ([]challenge.Claim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	keys := make(map[string]bool, len(periodKeys))
	for _, k := range periodKeys {
		keys[k] = true
	}
	var out []challenge.Claim
	for _, c := range m.claims {
		if c.UserID == userID && keys[c.PeriodKey] {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *MemStore) InsertClaim(_ context.Context, claim challenge.Claim, badgeID string) (services.XPChange, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := claimKey(claim.UserID, claim.ChallengeID, claim.PeriodKey)
	if _, ok := m.claims[key]; ok {
		return services.XPChange{}, false, apperr.ErrDuplicateClaim
	}
	change, err := m.addXP(claim.UserID, claim.XPAwarded)
	if err != nil {
		return change, false, err
	}
	claim.ID = uuid.New()
	m.claims[key] = claim

	badgeAdded := false
	if badgeID != "" {
		badgeAdded = m.insertAchievement(claim.UserID, badgeID, claim.ClaimedAt)
	}
	return change, badgeAdded, nil
}

func (m *MemStore) UnlockedAchievements(_ context.Context, userID uuid.UUID) (map[string]time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]time.Time)
	for id, at := range m.achievements[userID] {
		out[id] = at
	}
	return out, nil
}

func (m *MemStore) GrantAchievement(_ context.Context, userID uuid.UUID, achievementID string, xp int) (bool, services.XPChange, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[userID]; !ok {
		return false, services.XPChange{}, apperr.NotFound("user")
	}
	if !m.insertAchievement(userID, achievementID, time.Now()) {
		return false, services.XPChange{}, nil
	}
	change, err := m.addXP(userID, xp)
	return true, change, err
}

func (m *MemStore) GetStreak(_ context.Context, userID uuid.UUID) (*streak.Streak, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.streaks[userID]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (m *MemStore) ApplyCheckIn(_ context.Context, userID uuid.UUID, next func(prev *streak.Streak) progression.CheckIn) (progression.CheckIn, services.XPChange, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[userID]
	if !ok {
		return progression.CheckIn{}, services.XPChange{}, apperr.NotFound("user")
	}

	var prev *streak.Streak
	if s, ok := m.streaks[userID]; ok {
		prev = &s
	}
	outcome := next(prev)
	if outcome.AlreadyCheckedIn {
		return outcome, services.XPChange{Before: u.XP, After: u.XP}, nil
	}
	m.streaks[userID] = outcome.Streak
	change, err := m.addXP(userID, outcome.XPEarned)
	return outcome, change, err
}

func (m *MemStore) StreaksAtRisk(_ context.Context, lastCheckin time.Time) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	day := progression.StartOfDay(lastCheckin)
	var ids []uuid.UUID
	for id, s := range m.streaks {
		if s.LastCheckin != nil && s.CurrentStreak > 0 && progression.StartOfDay(*s.LastCheckin).Equal(day) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// aggregate groups closed trades in [from, to) by user. Callers hold mu.
func (m *MemStore) aggregate(from, to *time.Time) []*leaderboard.LeaderboardEntry {
	byUser := make(map[uuid.UUID]*leaderboard.LeaderboardEntry)
	for i := range m.trades {
		t := &m.trades[i]
		if t.Status != trade.StatusClosed || t.ClosedAt == nil || t.PnL == nil {
			continue
		}
		if from != nil && t.ClosedAt.Before(*from) {
			continue
		}
		if to != nil && !t.ClosedAt.Before(*to) {
			continue
		}
		e, ok := byUser[t.UserID]
		if !ok {
			e = &leaderboard.LeaderboardEntry{UserID: t.UserID, TotalPnL: decimal.Zero}
			if u, ok := m.users[t.UserID]; ok {
				e.DisplayName = u.DisplayName
				e.XP = u.XP
			}
			byUser[t.UserID] = e
		}
		e.TotalPnL = e.TotalPnL.Add(*t.PnL)
		e.TradesCount++
		if t.PnL.IsPositive() {
			e.Wins++
		}
	}

	entries := make([]*leaderboard.LeaderboardEntry, 0, len(byUser))
	for _, e := range byUser {
		e.WinRate = leaderboard.WinRate(e.Wins, e.TradesCount)
		entries = append(entries, e)
	}
	sortByPnL(entries)
	return entries
}

func (m *MemStore) Leaderboard(_ context.Context, from, to *time.Time, limit int) ([]*leaderboard.LeaderboardEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries := m.aggregate(from, to)
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (m *MemStore) LeaderboardPosition(_ context.Context, userID uuid.UUID, from, to *time.Time) (*leaderboard.LeaderboardEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range m.aggregate(from, to) {
		if e.UserID == userID {
			return e, nil
		}
	}
	return nil, nil
}

func (m *MemStore) TopByXP(_ context.Context, limit int) ([]*leaderboard.LeaderboardEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries := make([]*leaderboard.LeaderboardEntry, 0, len(m.users))
	for _, u := range m.users {
		entries = append(entries, &leaderboard.LeaderboardEntry{UserID: u.ID, DisplayName: u.DisplayName, XP: u.XP, TotalPnL: decimal.Zero})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].XP != entries[j].XP {
			return entries[i].XP > entries[j].XP
		}
		return entries[i].UserID.String() < entries[j].UserID.String()
	})
	if len(entries) > limit {
		entries = entries[:limit]
	}
	for i, e := range entries {
		e.Rank = i + 1
	}
	return entries, nil
}

func (m *MemStore) TopByWinRate(_ context.Context, minTrades, limit int) ([]*leaderboard.LeaderboardEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var entries []*leaderboard.LeaderboardEntry
	for _, e := range m.aggregate(nil, nil) {
		if e.TradesCount >= minTrades {
			entries = append(entries, e)
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].WinRate != entries[j].WinRate {
			return entries[i].WinRate > entries[j].WinRate
		}
		return entries[i].TradesCount > entries[j].TradesCount
	})
	if len(entries) > limit {
		entries = entries[:limit]
	}
	for i, e := range entries {
		e.Rank = i + 1
	}
	return entries, nil
}

func (m *MemStore) EnsureSeason(_ context.Context, want season.Season) (*season.Season, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.seasons[want.Key]; ok {
		cp := *s
		return &cp, nil
	}
	want.ID = uuid.New()
	m.seasons[want.Key] = &want
	cp := want
	return &cp, nil
}

func (m *MemStore) UnsettledSeasons(_ context.Context, endedBy time.Time) ([]*season.Season, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*season.Season
	for _, s := range m.seasons {
		if !s.Settled && !s.EndsAt.After(endedBy) {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartsAt.Before(out[j].StartsAt) })
	return out, nil
}

func (m *MemStore) SettleSeason(_ context.Context, seasonID uuid.UUID, awards []season.Award) ([]services.SeasonGrant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var target *season.Season
	for _, s := range m.seasons {
		if s.ID == seasonID {
			target = s
		}
	}
	if target == nil {
		return nil, apperr.NotFound("season")
	}
	if target.Settled {
		return nil, nil
	}

	if m.awards[seasonID] == nil {
		m.awards[seasonID] = make(map[uuid.UUID]season.Award)
	}
	var grants []services.SeasonGrant
	for _, a := range awards {
		if _, ok := m.awards[seasonID][a.UserID]; ok {
			continue
		}
		m.awards[seasonID][a.UserID] = a
		change, err := m.addXP(a.UserID, a.XP)
		if err != nil {
			return nil, err
		}
		if a.BadgeID != "" {
			m.insertAchievement(a.UserID, a.BadgeID, time.Now())
		}
		grants = append(grants, services.SeasonGrant{Award: a, Change: change})
	}
	target.Settled = true
	return grants, nil
}

func (m *MemStore) RewardClaims(_ context.Context, userID uuid.UUID) (map[string]time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]time.Time)
	for id, at := range m.rewards[userID] {
		out[id] = at
	}
	return out, nil
}

func (m *MemStore) ClaimReward(_ context.Context, userID uuid.UUID, r reward.Reward) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[userID]
	if !ok {
		return apperr.NotFound("user")
	}
	if m.rewards[userID] == nil {
		m.rewards[userID] = make(map[string]time.Time)
	}
	if _, ok := m.rewards[userID][r.ID]; ok {
		return apperr.ErrDuplicateClaim
	}
	m.rewards[userID][r.ID] = time.Now()

	switch r.Kind {
	case reward.KindTheme:
		if !u.HasTheme(r.Value) {
			u.UnlockedThemes = append(u.UnlockedThemes, r.Value)
		}
	case reward.KindTitle:
		u.Title = r.Value
	}
	return nil
}

func (m *MemStore) SetActiveTheme(_ context.Context, userID uuid.UUID, theme string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[userID]
	if !ok {
		return apperr.NotFound("user")
	}
	if !u.HasTheme(theme) {
		return apperr.Invalid("theme", "theme %q is not unlocked", theme)
	}
	u.ActiveTheme = theme
	return nil
}

// Callers hold mu.
func (m *MemStore) addXP(userID uuid.UUID, delta int) (services.XPChange, error) {
	u, ok := m.users[userID]
	if !ok {
		return services.XPChange{}, apperr.NotFound("user")
	}
	change := services.XPChange{Before: u.XP, After: u.XP + delta}
	u.XP = change.After
	return change, nil
}

// Callers hold mu.
func (m *MemStore) insertAchievement(userID uuid.UUID, achievementID string, at time.Time) bool {
	if m.achievements[userID] == nil {
		m.achievements[userID] = make(map[string]time.Time)
	}
	if _, ok := m.achievements[userID][achievementID]; ok {
		return false
	}
	m.achievements[userID][achievementID] = at
	return true
}

// sortByPnL matches the ORDER BY of the Postgres leaderboard query: total PnL
// desc, then wins desc, then user id. Ranks are 1-based.
func sortByPnL(entries []*leaderboard.LeaderboardEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if c := a.TotalPnL.Cmp(b.TotalPnL); c != 0 {
			return c > 0
		}
		if a.Wins != b.Wins {
			return a.Wins > b.Wins
		}
		return a.UserID.String() < b.UserID.String()
	})
	for i, e := range entries {
		e.Rank = i + 1
	}
}
