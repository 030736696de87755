package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

type migration struct {
	version int
	name    string
	sql     string
}

var migrations = []migration{
	{1, "users", `
CREATE EXTENSION IF NOT EXISTS pgcrypto;

CREATE TABLE IF NOT EXISTS users (
	id                        UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	clerk_id                  TEXT UNIQUE,
	email                     TEXT NOT NULL UNIQUE,
	password_hash             TEXT,
	display_name              TEXT NOT NULL,
	image_url                 TEXT NOT NULL DEFAULT '',
	subscription_tier         TEXT NOT NULL DEFAULT 'free',
	subscription_provider     TEXT NOT NULL DEFAULT '',
	subscription_external_id  TEXT NOT NULL DEFAULT '',
	current_period_end        TIMESTAMPTZ,
	xp                        INTEGER NOT NULL DEFAULT 0 CHECK (xp >= 0),
	title                     TEXT NOT NULL DEFAULT '',
	unlocked_themes           TEXT[] NOT NULL DEFAULT ARRAY['dark-blue'],
	active_theme              TEXT NOT NULL DEFAULT 'dark-blue',
	created_at                TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at                TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_users_xp ON users (xp DESC);
`},
	{2, "activity ledger", `
CREATE TABLE IF NOT EXISTS trades (
	id              UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	user_id         UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	symbol          TEXT NOT NULL,
	direction       TEXT NOT NULL CHECK (direction IN ('LONG', 'SHORT')),
	entry_price     NUMERIC(20, 8) NOT NULL,
	exit_price      NUMERIC(20, 8),
	size            NUMERIC(20, 8) NOT NULL,
	stop_loss       NUMERIC(20, 8),
	take_profit     NUMERIC(20, 8),
	pnl             NUMERIC(20, 8),
	status          TEXT NOT NULL DEFAULT 'open' CHECK (status IN ('open', 'closed')),
	notes           TEXT NOT NULL DEFAULT '',
	emotions        TEXT NOT NULL DEFAULT '',
	followed_plan   BOOLEAN,
	screenshot_url  TEXT,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	closed_at       TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_trades_user_created ON trades (user_id, created_at);
CREATE INDEX IF NOT EXISTS idx_trades_closed ON trades (closed_at) WHERE status = 'closed';

CREATE TABLE IF NOT EXISTS community_posts (
	id              UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	user_id         UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	title           TEXT NOT NULL,
	slug            TEXT NOT NULL,
	content         TEXT NOT NULL,
	tags            TEXT[] NOT NULL DEFAULT '{}',
	image_url       TEXT,
	likes_count     INTEGER NOT NULL DEFAULT 0 CHECK (likes_count >= 0),
	comments_count  INTEGER NOT NULL DEFAULT 0 CHECK (comments_count >= 0),
	created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_posts_created ON community_posts (created_at DESC);
CREATE INDEX IF NOT EXISTS idx_posts_user_created ON community_posts (user_id, created_at);

CREATE TABLE IF NOT EXISTS community_comments (
	id          UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	post_id     UUID NOT NULL REFERENCES community_posts(id) ON DELETE CASCADE,
	user_id     UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	content     TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_comments_post ON community_comments (post_id, created_at);

CREATE TABLE IF NOT EXISTS community_likes (
	post_id     UUID NOT NULL REFERENCES community_posts(id) ON DELETE CASCADE,
	user_id     UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (post_id, user_id)
);

CREATE TABLE IF NOT EXISTS tickets (
	id          UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	user_id     UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	subject     TEXT NOT NULL,
	category    TEXT NOT NULL,
	priority    TEXT NOT NULL DEFAULT 'medium',
	status      TEXT NOT NULL DEFAULT 'open',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS ticket_messages (
	id          UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	ticket_id   UUID NOT NULL REFERENCES tickets(id) ON DELETE CASCADE,
	user_id     UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	content     TEXT NOT NULL,
	is_staff    BOOLEAN NOT NULL DEFAULT FALSE,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS ai_interactions (
	id          UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	user_id     UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	kind        TEXT NOT NULL CHECK (kind IN ('setup_analysis', 'coaching', 'backtest')),
	prompt      TEXT NOT NULL,
	response    TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_ai_user_kind ON ai_interactions (user_id, kind);
`},
	{3, "progression", `
CREATE TABLE IF NOT EXISTS challenge_claims (
	id            UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	user_id       UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	challenge_id  TEXT NOT NULL,
	period_key    TEXT NOT NULL,
	xp_awarded    INTEGER NOT NULL,
	claimed_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (user_id, challenge_id, period_key)
);

CREATE TABLE IF NOT EXISTS user_achievements (
	id              UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	user_id         UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	achievement_id  TEXT NOT NULL,
	unlocked_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (user_id, achievement_id)
);

CREATE TABLE IF NOT EXISTS streaks (
	user_id         UUID PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
	current_streak  INTEGER NOT NULL DEFAULT 0,
	longest_streak  INTEGER NOT NULL DEFAULT 0,
	last_checkin    DATE,
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS seasons (
	id          UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	key         TEXT NOT NULL UNIQUE,
	name        TEXT NOT NULL,
	starts_at   TIMESTAMPTZ NOT NULL,
	ends_at     TIMESTAMPTZ NOT NULL,
	settled     BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS season_awards (
	season_id   UUID NOT NULL REFERENCES seasons(id) ON DELETE CASCADE,
	user_id     UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	rank        INTEGER NOT NULL,
	xp          INTEGER NOT NULL,
	badge_id    TEXT NOT NULL DEFAULT '',
	awarded_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (season_id, user_id)
);

CREATE TABLE IF NOT EXISTS reward_claims (
	user_id     UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	reward_id   TEXT NOT NULL,
	claimed_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (user_id, reward_id)
);
`},
	{4, "notifications", `
CREATE TABLE IF NOT EXISTS notifications (
	id           UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	user_id      UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	type         TEXT NOT NULL,
	title        TEXT NOT NULL,
	message      TEXT NOT NULL DEFAULT '',
	data         JSONB NOT NULL DEFAULT '{}',
	is_read      BOOLEAN NOT NULL DEFAULT FALSE,
	read_at      TIMESTAMPTZ,
	push_status  TEXT NOT NULL DEFAULT 'pending',
	push_error   TEXT,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications (user_id, created_at DESC);

CREATE TABLE IF NOT EXISTS device_tokens (
	token       TEXT PRIMARY KEY,
	user_id     UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	platform    TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_device_tokens_user ON device_tokens (user_id);
`},
}

// Migrate applies pending migrations in order, each in its own transaction.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version     INTEGER PRIMARY KEY,
			name        TEXT NOT NULL,
			applied_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`)
	if err != nil {
		return fmt.Errorf("failed to create schema_migrations: %w", err)
	}

	for _, m := range migrations {
		var applied bool
		err := pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)`, m.version).Scan(&applied)
		if err != nil {
			return fmt.Errorf("failed to check migration %d: %w", m.version, err)
		}
		if applied {
			continue
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("failed to begin migration %d: %w", m.version, err)
		}
		if _, err := tx.Exec(ctx, m.sql); err != nil {
			tx.Rollback(ctx)
			return fmt.Errorf("migration %d (%s) failed: %w", m.version, m.name, err)
		}
		if _, err := tx.Exec(ctx, `INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`, m.version, m.name); err != nil {
			tx.Rollback(ctx)
			return fmt.Errorf("failed to record migration %d: %w", m.version, err)
		}
		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", m.version, err)
		}

		log.Info().Int("version", m.version).Str("name", m.name).Msg("applied migration")
	}
	return nil
}
