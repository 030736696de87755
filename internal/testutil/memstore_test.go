package testutil

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"tradeQuestAPI/internal/leaderboard"
)

func TestSortByPnL(t *testing.T) {
	a := &leaderboard.LeaderboardEntry{UserID: uuid.New(), TotalPnL: decimal.NewFromInt(50), Wins: 1}
	b := &leaderboard.LeaderboardEntry{UserID: uuid.New(), TotalPnL: decimal.NewFromInt(300), Wins: 2}
	c := &leaderboard.LeaderboardEntry{UserID: uuid.New(), TotalPnL: decimal.NewFromInt(50), Wins: 4}

	entries := []*leaderboard.LeaderboardEntry{a, b, c}
	sortByPnL(entries)

	assert.Equal(t, []*leaderboard.LeaderboardEntry{b, c, a}, entries)
	assert.Equal(t, 1, b.Rank)
	assert.Equal(t, 2, c.Rank)
	assert.Equal(t, 3, a.Rank)
}

func TestSortByPnLEmpty(t *testing.T) {
	var entries []*leaderboard.LeaderboardEntry
	sortByPnL(entries)
	assert.Empty(t, entries)
}
