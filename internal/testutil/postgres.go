package testutil

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"tradeQuestAPI/internal/database"
	"tradeQuestAPI/internal/types/trade"
)

// SetupTestDB connects to TEST_DATABASE_URL and applies the schema. Tests
// are skipped when the variable is unset.
func SetupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	_ = godotenv.Load("../.env")

	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := database.Connect(ctx, dbURL)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	if err := database.Migrate(ctx, pool); err != nil {
		pool.Close()
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	t.Cleanup(func() {
		if _, err := pool.Exec(context.Background(), `DELETE FROM users WHERE email LIKE 'test%@example.com'`); err != nil {
			t.Logf("Warning: failed to cleanup test data: %v", err)
		}
		pool.Close()
	})
	return pool
}

// CreateTestUser inserts a user whose email matches the SetupTestDB cleanup
// pattern.
func CreateTestUser(t *testing.T, pool *pgxpool.Pool, displayName string) uuid.UUID {
	t.Helper()

	id := uuid.New()
	email := fmt.Sprintf("test-%s@example.com", id)
	_, err := pool.Exec(context.Background(), `
		INSERT INTO users (id, email, display_name) VALUES ($1, $2, $3)
	`, id, email, displayName)
	if err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}
	return id
}

// InsertTrade stores a trade opened at createdAt. A non-nil closedAt closes
// it with pnl.
func InsertTrade(t *testing.T, pool *pgxpool.Pool, userID uuid.UUID, pnl float64, createdAt time.Time, closedAt *time.Time) {
	t.Helper()

	status := trade.StatusOpen
	var p *decimal.Decimal
	if closedAt != nil {
		status = trade.StatusClosed
		v := decimal.NewFromFloat(pnl)
		p = &v
	}
	_, err := pool.Exec(context.Background(), `
		INSERT INTO trades (user_id, symbol, direction, entry_price, size, pnl, status, created_at, closed_at)
		VALUES ($1, 'BTCUSDT', 'LONG', 1, 1, $2, $3, $4, $5)
	`, userID, p, string(status), createdAt, closedAt)
	if err != nil {
		t.Fatalf("Failed to insert test trade: %v", err)
	}
}
