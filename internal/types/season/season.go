package season

import (
	"time"

	"github.com/google/uuid"
)

type Season struct {
	ID       uuid.UUID `json:"id" db:"id"`
	Key      string    `json:"key" db:"key"`
	Name     string    `json:"name" db:"name"`
	StartsAt time.Time `json:"starts_at" db:"starts_at"`
	EndsAt   time.Time `json:"ends_at" db:"ends_at"`
	Settled  bool      `json:"settled" db:"settled"`
}

// Active reports whether now falls inside [StartsAt, EndsAt).
func (s *Season) Active(now time.Time) bool {
	return !now.Before(s.StartsAt) && now.Before(s.EndsAt)
}

// Payout is the reward for final ranks FromRank..ToRank inclusive.
type Payout struct {
	FromRank int    `json:"from_rank" mapstructure:"from_rank"`
	ToRank   int    `json:"to_rank" mapstructure:"to_rank"`
	XP       int    `json:"xp" mapstructure:"xp"`
	BadgeID  string `json:"badge_id,omitempty" mapstructure:"badge_id"`
}

type Award struct {
	SeasonID uuid.UUID `json:"season_id" db:"season_id"`
	UserID   uuid.UUID `json:"user_id" db:"user_id"`
	Rank     int       `json:"rank" db:"rank"`
	XP       int       `json:"xp" db:"xp"`
	BadgeID  string    `json:"badge_id,omitempty" db:"badge_id"`
}
