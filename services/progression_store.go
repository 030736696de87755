package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"tradeQuestAPI/internal/apperr"
	"tradeQuestAPI/internal/database"
	"tradeQuestAPI/internal/leaderboard"
	"tradeQuestAPI/internal/progression"
	"tradeQuestAPI/internal/types/challenge"
	"tradeQuestAPI/internal/types/reward"
	"tradeQuestAPI/internal/types/season"
	"tradeQuestAPI/internal/types/streak"
	"tradeQuestAPI/internal/user"
)

// XPChange is a user's XP total before and after one committed award.
type XPChange struct {
	Before int
	After  int
}

type SeasonGrant struct {
	season.Award
	Change XPChange
}

// ProgressionStore is the persistence the progression engine needs. Every
// awarding method is atomic: the award record and the XP increment commit
// together, and uniqueness on the award record makes retries safe.
type ProgressionStore interface {
	GetUser(ctx context.Context, userID uuid.UUID) (*user.User, error)

	ActivityInWindow(ctx context.Context, userID uuid.UUID, from, to time.Time) (progression.Activity, error)
	Lifetime(ctx context.Context, userID uuid.UUID) (progression.Lifetime, error)

	ListClaims(ctx context.Context, userID uuid.UUID, periodKeys []string) ([]challenge.Claim, error)
	// InsertClaim fails with apperr.ErrDuplicateClaim when the
	// (user, challenge, period key) claim already exists.
	InsertClaim(ctx context.Context, claim challenge.Claim, badgeID string) (change XPChange, badgeAdded bool, err error)

	UnlockedAchievements(ctx context.Context, userID uuid.UUID) (map[string]time.Time, error)
	GrantAchievement(ctx context.Context, userID uuid.UUID, achievementID string, xp int) (granted bool, change XPChange, err error)

	GetStreak(ctx context.Context, userID uuid.UUID) (*streak.Streak, error)
	// ApplyCheckIn locks the user's streak, applies next and persists the
	// outcome together with its XP.
	ApplyCheckIn(ctx context.Context, userID uuid.UUID, next func(prev *streak.Streak) progression.CheckIn) (progression.CheckIn, XPChange, error)
	StreaksAtRisk(ctx context.Context, lastCheckin time.Time) ([]uuid.UUID, error)

	// Leaderboard ranks closed-trade PnL in [from, to). Nil bounds are open.
	Leaderboard(ctx context.Context, from, to *time.Time, limit int) ([]*leaderboard.LeaderboardEntry, error)
	LeaderboardPosition(ctx context.Context, userID uuid.UUID, from, to *time.Time) (*leaderboard.LeaderboardEntry, error)
	TopByXP(ctx context.Context, limit int) ([]*leaderboard.LeaderboardEntry, error)
	TopByWinRate(ctx context.Context, minTrades, limit int) ([]*leaderboard.LeaderboardEntry, error)

	EnsureSeason(ctx context.Context, s season.Season) (*season.Season, error)
	UnsettledSeasons(ctx context.Context, endedBy time.Time) ([]*season.Season, error)
	SettleSeason(ctx context.Context, seasonID uuid.UUID, awards []season.Award) ([]SeasonGrant, error)

	RewardClaims(ctx context.Context, userID uuid.UUID) (map[string]time.Time, error)
	// ClaimReward fails with apperr.ErrDuplicateClaim when already claimed.
	ClaimReward(ctx context.Context, userID uuid.UUID, r reward.Reward) error
	SetActiveTheme(ctx context.Context, userID uuid.UUID, theme string) error
}

type PgProgressionStore struct {
	db *pgxpool.Pool
}

func NewPgProgressionStore(db *pgxpool.Pool) *PgProgressionStore {
	return &PgProgressionStore{db: db}
}

func (s *PgProgressionStore) GetUser(ctx context.Context, userID uuid.UUID) (*user.User, error) {
	return getUserByID(ctx, s.db, userID)
}

func (s *PgProgressionStore) ActivityInWindow(ctx context.Context, userID uuid.UUID, from, to time.Time) (progression.Activity, error) {
	query := `
	SELECT
		COUNT(*) FILTER (WHERE created_at >= $2 AND created_at < $3),
		COUNT(*) FILTER (WHERE created_at >= $2 AND created_at < $3 AND notes <> '' AND emotions <> ''),
		COUNT(*) FILTER (WHERE created_at >= $2 AND created_at < $3 AND followed_plan IS NOT NULL),
		COUNT(*) FILTER (WHERE created_at >= $2 AND created_at < $3 AND followed_plan),
		COUNT(*) FILTER (WHERE status = 'closed' AND closed_at >= $2 AND closed_at < $3),
		COUNT(*) FILTER (WHERE status = 'closed' AND closed_at >= $2 AND closed_at < $3 AND pnl > 0),
		COALESCE(SUM(pnl) FILTER (WHERE status = 'closed' AND closed_at >= $2 AND closed_at < $3), 0),
		(SELECT COUNT(*) FROM community_posts WHERE user_id = $1 AND created_at >= $2 AND created_at < $3)
	FROM trades
	WHERE user_id = $1
	`

	var a progression.Activity
	err := s.db.QueryRow(ctx, query, userID, from, to).Scan(
		&a.Trades,
		&a.JournaledTrades,
		&a.PlanTagged,
		&a.PlanFollowed,
		&a.ClosedTrades,
		&a.WinningTrades,
		&a.PnL,
		&a.Posts,
	)
	if err != nil {
		return a, fmt.Errorf("failed to aggregate activity: %w", err)
	}
	return a, nil
}

func (s *PgProgressionStore) Lifetime(ctx context.Context, userID uuid.UUID) (progression.Lifetime, error) {
	query := `
	SELECT
		(SELECT COUNT(*) FROM trades WHERE user_id = $1),
		(SELECT COUNT(*) FROM trades WHERE user_id = $1 AND notes <> '' AND emotions <> ''),
		(SELECT COUNT(*) FROM trades WHERE user_id = $1 AND followed_plan IS NOT NULL),
		(SELECT COUNT(*) FROM trades WHERE user_id = $1 AND followed_plan),
		(SELECT COUNT(*) FROM trades WHERE user_id = $1 AND status = 'closed'),
		(SELECT COUNT(*) FROM trades WHERE user_id = $1 AND status = 'closed' AND pnl > 0),
		(SELECT COALESCE(SUM(pnl), 0) FROM trades WHERE user_id = $1 AND status = 'closed'),
		(SELECT COUNT(*) FROM community_posts WHERE user_id = $1),
		(SELECT COALESCE(SUM(likes_count), 0) FROM community_posts WHERE user_id = $1),
		(SELECT COUNT(*) FROM community_comments c
			JOIN community_posts p ON p.id = c.post_id
			WHERE c.user_id = $1 AND p.user_id <> $1),
		(SELECT COUNT(*) FROM (
			SELECT date_trunc('month', closed_at)
			FROM trades
			WHERE user_id = $1 AND status = 'closed'
			GROUP BY 1
			HAVING SUM(pnl) > 0
		) months),
		(SELECT COALESCE(MAX(longest_streak), 0) FROM streaks WHERE user_id = $1),
		(SELECT COUNT(*) FROM ai_interactions WHERE user_id = $1 AND kind = 'setup_analysis'),
		(SELECT COUNT(*) FROM ai_interactions WHERE user_id = $1 AND kind = 'coaching'),
		(SELECT COUNT(*) FROM ai_interactions WHERE user_id = $1 AND kind = 'backtest'),
		(SELECT COALESCE(MIN(rank), 0) FROM season_awards WHERE user_id = $1)
	`

	var l progression.Lifetime
	err := s.db.QueryRow(ctx, query, userID).Scan(
		&l.Trades,
		&l.JournaledTrades,
		&l.PlanTagged,
		&l.PlanFollowed,
		&l.ClosedTrades,
		&l.WinningTrades,
		&l.PnL,
		&l.Posts,
		&l.LikesReceived,
		&l.CommentsGiven,
		&l.ProfitableMonths,
		&l.LongestStreak,
		&l.SetupAnalyses,
		&l.CoachingSessions,
		&l.Backtests,
		&l.BestSeasonRank,
	)
	if err != nil {
		return l, fmt.Errorf("failed to aggregate lifetime activity: %w", err)
	}
	return l, nil
}

func (s *PgProgressionStore) ListClaims(ctx context.Context, userID uuid.UUID, periodKeys []string) ([]challenge.Claim, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, user_id, challenge_id, period_key, xp_awarded, claimed_at
		FROM challenge_claims
		WHERE user_id = $1 AND period_key = ANY($2)
	`, userID, periodKeys)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch claims: %w", err)
	}
	defer rows.Close()

	var claims []challenge.Claim
	for rows.Next() {
		var c challenge.Claim
		if err := rows.Scan(&c.ID, &c.UserID, &c.ChallengeID, &c.PeriodKey, &c.XPAwarded, &c.ClaimedAt); err != nil {
			return nil, fmt.Errorf("failed to scan claim: %w", err)
		}
		claims = append(claims, c)
	}
	return claims, rows.Err()
}

func (s *PgProgressionStore) InsertClaim(ctx context.Context, claim challenge.Claim, badgeID string) (XPChange, bool, error) {
	var change XPChange

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return change, false, fmt.Errorf("failed to begin claim: %w", err)
	}
	defer tx.Rollback(ctx)

	cmd, err := tx.Exec(ctx, `
		INSERT INTO challenge_claims (user_id, challenge_id, period_key, xp_awarded)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, challenge_id, period_key) DO NOTHING
	`, claim.UserID, claim.ChallengeID, claim.PeriodKey, claim.XPAwarded)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return change, false, apperr.ErrDuplicateClaim
		}
		return change, false, fmt.Errorf("failed to insert claim: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return change, false, apperr.ErrDuplicateClaim
	}

	change, err = addXP(ctx, tx, claim.UserID, claim.XPAwarded)
	if err != nil {
		return change, false, err
	}

	badgeAdded := false
	if badgeID != "" {
		badgeAdded, err = insertAchievement(ctx, tx, claim.UserID, badgeID)
		if err != nil {
			return change, false, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return change, false, fmt.Errorf("failed to commit claim: %w", err)
	}
	return change, badgeAdded, nil
}

func (s *PgProgressionStore) UnlockedAchievements(ctx context.Context, userID uuid.UUID) (map[string]time.Time, error) {
	rows, err := s.db.Query(ctx, `SELECT achievement_id, unlocked_at FROM user_achievements WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch achievements: %w", err)
	}
	defer rows.Close()

	unlocked := make(map[string]time.Time)
	for rows.Next() {
		var id string
		var at time.Time
		if err := rows.Scan(&id, &at); err != nil {
			return nil, fmt.Errorf("failed to scan achievement: %w", err)
		}
		unlocked[id] = at
	}
	return unlocked, rows.Err()
}

func (s *PgProgressionStore) GrantAchievement(ctx context.Context, userID uuid.UUID, achievementID string, xp int) (bool, XPChange, error) {
	var change XPChange

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return false, change, fmt.Errorf("failed to begin achievement grant: %w", err)
	}
	defer tx.Rollback(ctx)

	granted, err := insertAchievement(ctx, tx, userID, achievementID)
	if err != nil || !granted {
		return false, change, err
	}

	change, err = addXP(ctx, tx, userID, xp)
	if err != nil {
		return false, change, err
	}

	if err := tx.Commit(ctx); err != nil {
		return false, change, fmt.Errorf("failed to commit achievement grant: %w", err)
	}
	return true, change, nil
}

func (s *PgProgressionStore) GetStreak(ctx context.Context, userID uuid.UUID) (*streak.Streak, error) {
	st := &streak.Streak{UserID: userID}
	err := s.db.QueryRow(ctx, `
		SELECT current_streak, longest_streak, last_checkin, updated_at
		FROM streaks WHERE user_id = $1
	`, userID).Scan(&st.CurrentStreak, &st.LongestStreak, &st.LastCheckin, &st.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch streak: %w", err)
	}
	return st, nil
}

func (s *PgProgressionStore) ApplyCheckIn(ctx context.Context, userID uuid.UUID, next func(prev *streak.Streak) progression.CheckIn) (progression.CheckIn, XPChange, error) {
	var change XPChange

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return progression.CheckIn{}, change, fmt.Errorf("failed to begin check-in: %w", err)
	}
	defer tx.Rollback(ctx)

	// The row must exist before it can be locked.
	if _, err := tx.Exec(ctx, `INSERT INTO streaks (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`, userID); err != nil {
		return progression.CheckIn{}, change, fmt.Errorf("failed to init streak: %w", err)
	}

	prev := &streak.Streak{UserID: userID}
	err = tx.QueryRow(ctx, `
		SELECT current_streak, longest_streak, last_checkin, updated_at
		FROM streaks WHERE user_id = $1
		FOR UPDATE
	`, userID).Scan(&prev.CurrentStreak, &prev.LongestStreak, &prev.LastCheckin, &prev.UpdatedAt)
	if err != nil {
		return progression.CheckIn{}, change, fmt.Errorf("failed to lock streak: %w", err)
	}
	if prev.LastCheckin == nil {
		prev = nil
	}

	outcome := next(prev)
	if outcome.AlreadyCheckedIn {
		var xp int
		if err := tx.QueryRow(ctx, `SELECT xp FROM users WHERE id = $1`, userID).Scan(&xp); err != nil {
			return outcome, change, fmt.Errorf("failed to read xp: %w", err)
		}
		return outcome, XPChange{Before: xp, After: xp}, nil
	}

	_, err = tx.Exec(ctx, `
		UPDATE streaks
		SET current_streak = $2, longest_streak = $3, last_checkin = $4, updated_at = NOW()
		WHERE user_id = $1
	`, userID, outcome.Streak.CurrentStreak, outcome.Streak.LongestStreak, outcome.Streak.LastCheckin)
	if err != nil {
		return outcome, change, fmt.Errorf("failed to update streak: %w", err)
	}

	change, err = addXP(ctx, tx, userID, outcome.XPEarned)
	if err != nil {
		return outcome, change, err
	}

	if err := tx.Commit(ctx); err != nil {
		return outcome, change, fmt.Errorf("failed to commit check-in: %w", err)
	}
	return outcome, change, nil
}

func (s *PgProgressionStore) StreaksAtRisk(ctx context.Context, lastCheckin time.Time) ([]uuid.UUID, error) {
	rows, err := s.db.Query(ctx, `SELECT user_id FROM streaks WHERE last_checkin = $1::date AND current_streak > 0`, lastCheckin)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch streaks at risk: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan streak owner: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

const pnlAggregate = `
	SELECT u.id, u.display_name, NULLIF(u.image_url, '') AS image_url, u.xp,
		SUM(t.pnl) AS total_pnl,
		COUNT(*) FILTER (WHERE t.pnl > 0) AS wins,
		COUNT(*) AS trades_count
	FROM trades t
	JOIN users u ON u.id = t.user_id
	WHERE t.status = 'closed'
		AND ($1::timestamptz IS NULL OR t.closed_at >= $1)
		AND ($2::timestamptz IS NULL OR t.closed_at < $2)
	GROUP BY u.id
`

func (s *PgProgressionStore) Leaderboard(ctx context.Context, from, to *time.Time, limit int) ([]*leaderboard.LeaderboardEntry, error) {
	query := pnlAggregate + `
	ORDER BY total_pnl DESC, wins DESC, u.id
	LIMIT $3
	`

	rows, err := s.db.Query(ctx, query, from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch leaderboard: %w", err)
	}
	defer rows.Close()

	entries := []*leaderboard.LeaderboardEntry{}
	for rows.Next() {
		e, err := scanPnLEntry(rows)
		if err != nil {
			return nil, err
		}
		e.Rank = len(entries) + 1
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *PgProgressionStore) LeaderboardPosition(ctx context.Context, userID uuid.UUID, from, to *time.Time) (*leaderboard.LeaderboardEntry, error) {
	query := `
	WITH agg AS (` + pnlAggregate + `),
	ranked AS (
		SELECT *, ROW_NUMBER() OVER (ORDER BY total_pnl DESC, wins DESC, id) AS rank
		FROM agg
	)
	SELECT id, display_name, image_url, xp, total_pnl, wins, trades_count, rank
	FROM ranked
	WHERE id = $3
	`

	e := &leaderboard.LeaderboardEntry{}
	err := s.db.QueryRow(ctx, query, from, to, userID).Scan(
		&e.UserID, &e.DisplayName, &e.ImageURL, &e.XP, &e.TotalPnL, &e.Wins, &e.TradesCount, &e.Rank,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch leaderboard position: %w", err)
	}
	e.WinRate = leaderboard.WinRate(e.Wins, e.TradesCount)
	return e, nil
}

func (s *PgProgressionStore) TopByXP(ctx context.Context, limit int) ([]*leaderboard.LeaderboardEntry, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, display_name, NULLIF(image_url, ''), xp
		FROM users
		ORDER BY xp DESC, id
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch top xp: %w", err)
	}
	defer rows.Close()

	entries := []*leaderboard.LeaderboardEntry{}
	for rows.Next() {
		e := &leaderboard.LeaderboardEntry{TotalPnL: decimal.Zero}
		if err := rows.Scan(&e.UserID, &e.DisplayName, &e.ImageURL, &e.XP); err != nil {
			return nil, fmt.Errorf("failed to scan top xp: %w", err)
		}
		e.Rank = len(entries) + 1
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *PgProgressionStore) TopByWinRate(ctx context.Context, minTrades, limit int) ([]*leaderboard.LeaderboardEntry, error) {
	query := pnlAggregate + `
	HAVING COUNT(*) >= $3
	ORDER BY COUNT(*) FILTER (WHERE t.pnl > 0)::float8 / COUNT(*) DESC, COUNT(*) DESC, u.id
	LIMIT $4
	`

	rows, err := s.db.Query(ctx, query, nil, nil, minTrades, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch top winrate: %w", err)
	}
	defer rows.Close()

	entries := []*leaderboard.LeaderboardEntry{}
	for rows.Next() {
		e, err := scanPnLEntry(rows)
		if err != nil {
			return nil, err
		}
		e.Rank = len(entries) + 1
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *PgProgressionStore) EnsureSeason(ctx context.Context, want season.Season) (*season.Season, error) {
	_, err := s.db.Exec(ctx, `
		INSERT INTO seasons (key, name, starts_at, ends_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (key) DO NOTHING
	`, want.Key, want.Name, want.StartsAt, want.EndsAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create season: %w", err)
	}

	got := &season.Season{}
	err = s.db.QueryRow(ctx, `
		SELECT id, key, name, starts_at, ends_at, settled FROM seasons WHERE key = $1
	`, want.Key).Scan(&got.ID, &got.Key, &got.Name, &got.StartsAt, &got.EndsAt, &got.Settled)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch season: %w", err)
	}
	return got, nil
}

func (s *PgProgressionStore) UnsettledSeasons(ctx context.Context, endedBy time.Time) ([]*season.Season, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, key, name, starts_at, ends_at, settled
		FROM seasons
		WHERE NOT settled AND ends_at <= $1
		ORDER BY starts_at
	`, endedBy)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch unsettled seasons: %w", err)
	}
	defer rows.Close()

	var seasons []*season.Season
	for rows.Next() {
		ss := &season.Season{}
		if err := rows.Scan(&ss.ID, &ss.Key, &ss.Name, &ss.StartsAt, &ss.EndsAt, &ss.Settled); err != nil {
			return nil, fmt.Errorf("failed to scan season: %w", err)
		}
		seasons = append(seasons, ss)
	}
	return seasons, rows.Err()
}

func (s *PgProgressionStore) SettleSeason(ctx context.Context, seasonID uuid.UUID, awards []season.Award) ([]SeasonGrant, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("failed to begin settlement: %w", err)
	}
	defer tx.Rollback(ctx)

	var settled bool
	err = tx.QueryRow(ctx, `SELECT settled FROM seasons WHERE id = $1 FOR UPDATE`, seasonID).Scan(&settled)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("season")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock season: %w", err)
	}
	if settled {
		return nil, nil
	}

	var grants []SeasonGrant
	for _, a := range awards {
		cmd, err := tx.Exec(ctx, `
			INSERT INTO season_awards (season_id, user_id, rank, xp, badge_id)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (season_id, user_id) DO NOTHING
		`, seasonID, a.UserID, a.Rank, a.XP, a.BadgeID)
		if err != nil {
			return nil, fmt.Errorf("failed to record season award: %w", err)
		}
		if cmd.RowsAffected() == 0 {
			continue
		}

		change, err := addXP(ctx, tx, a.UserID, a.XP)
		if err != nil {
			return nil, err
		}
		if a.BadgeID != "" {
			if _, err := insertAchievement(ctx, tx, a.UserID, a.BadgeID); err != nil {
				return nil, err
			}
		}
		grants = append(grants, SeasonGrant{Award: a, Change: change})
	}

	if _, err := tx.Exec(ctx, `UPDATE seasons SET settled = TRUE WHERE id = $1`, seasonID); err != nil {
		return nil, fmt.Errorf("failed to mark season settled: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit settlement: %w", err)
	}
	return grants, nil
}

func (s *PgProgressionStore) RewardClaims(ctx context.Context, userID uuid.UUID) (map[string]time.Time, error) {
	rows, err := s.db.Query(ctx, `SELECT reward_id, claimed_at FROM reward_claims WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch reward claims: %w", err)
	}
	defer rows.Close()

	claims := make(map[string]time.Time)
	for rows.Next() {
		var id string
		var at time.Time
		if err := rows.Scan(&id, &at); err != nil {
			return nil, fmt.Errorf("failed to scan reward claim: %w", err)
		}
		claims[id] = at
	}
	return claims, rows.Err()
}

func (s *PgProgressionStore) ClaimReward(ctx context.Context, userID uuid.UUID, r reward.Reward) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin reward claim: %w", err)
	}
	defer tx.Rollback(ctx)

	cmd, err := tx.Exec(ctx, `
		INSERT INTO reward_claims (user_id, reward_id) VALUES ($1, $2)
		ON CONFLICT (user_id, reward_id) DO NOTHING
	`, userID, r.ID)
	if err != nil {
		return fmt.Errorf("failed to insert reward claim: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return apperr.ErrDuplicateClaim
	}

	switch r.Kind {
	case reward.KindTheme:
		_, err = tx.Exec(ctx, `
			UPDATE users
			SET unlocked_themes = array_append(unlocked_themes, $2), updated_at = NOW()
			WHERE id = $1 AND NOT ($2 = ANY(unlocked_themes))
		`, userID, r.Value)
	case reward.KindTitle:
		_, err = tx.Exec(ctx, `UPDATE users SET title = $2, updated_at = NOW() WHERE id = $1`, userID, r.Value)
	}
	if err != nil {
		return fmt.Errorf("failed to apply reward: %w", err)
	}

	return tx.Commit(ctx)
}

func (s *PgProgressionStore) SetActiveTheme(ctx context.Context, userID uuid.UUID, theme string) error {
	cmd, err := s.db.Exec(ctx, `
		UPDATE users SET active_theme = $2, updated_at = NOW()
		WHERE id = $1 AND $2 = ANY(unlocked_themes)
	`, userID, theme)
	if err != nil {
		return fmt.Errorf("failed to set theme: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return apperr.Invalid("theme", "theme %q is not unlocked", theme)
	}
	return nil
}

// addXP increments a user's XP inside tx and reports the totals.
func addXP(ctx context.Context, tx pgx.Tx, userID uuid.UUID, delta int) (XPChange, error) {
	var after int
	err := tx.QueryRow(ctx, `
		UPDATE users SET xp = xp + $2, updated_at = NOW()
		WHERE id = $1
		RETURNING xp
	`, userID, delta).Scan(&after)
	if errors.Is(err, pgx.ErrNoRows) {
		return XPChange{}, apperr.NotFound("user")
	}
	if err != nil {
		return XPChange{}, fmt.Errorf("failed to add xp: %w", err)
	}
	return XPChange{Before: after - delta, After: after}, nil
}

func insertAchievement(ctx context.Context, tx pgx.Tx, userID uuid.UUID, achievementID string) (bool, error) {
	cmd, err := tx.Exec(ctx, `
		INSERT INTO user_achievements (user_id, achievement_id) VALUES ($1, $2)
		ON CONFLICT (user_id, achievement_id) DO NOTHING
	`, userID, achievementID)
	if err != nil {
		return false, fmt.Errorf("failed to insert achievement: %w", err)
	}
	return cmd.RowsAffected() == 1, nil
}

func scanPnLEntry(rows pgx.Rows) (*leaderboard.LeaderboardEntry, error) {
	e := &leaderboard.LeaderboardEntry{}
	if err := rows.Scan(&e.UserID, &e.DisplayName, &e.ImageURL, &e.XP, &e.TotalPnL, &e.Wins, &e.TradesCount); err != nil {
		return nil, fmt.Errorf("failed to scan leaderboard entry: %w", err)
	}
	e.WinRate = leaderboard.WinRate(e.Wins, e.TradesCount)
	return e, nil
}
