package streak

import (
	"time"

	"github.com/google/uuid"
)

type Streak struct {
	UserID        uuid.UUID  `json:"user_id" db:"user_id"`
	CurrentStreak int        `json:"current_streak" db:"current_streak"`
	LongestStreak int        `json:"longest_streak" db:"longest_streak"`
	LastCheckin   *time.Time `json:"last_checkin" db:"last_checkin"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
}

type CheckInResult struct {
	Message          string `json:"message"`
	XPEarned         int    `json:"xp_earned"`
	CurrentStreak    int    `json:"current_streak"`
	LongestStreak    int    `json:"longest_streak"`
	AlreadyCheckedIn bool   `json:"already_checked_in"`
	StreakReset      bool   `json:"streak_reset"`
	LeveledUp        bool   `json:"leveled_up"`
	NewLevel         int    `json:"new_level"`
}
