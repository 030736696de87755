package leaderboard

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWinRate(t *testing.T) {
	tests := []struct {
		name        string
		wins, total int
		want        float64
	}{
		{"no trades", 0, 0, 0},
		{"all wins", 4, 4, 100},
		{"two thirds", 2, 3, 66.7},
		{"one third", 1, 3, 33.3},
		{"one in seven", 1, 7, 14.3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, WinRate(tt.wins, tt.total))
		})
	}
}
