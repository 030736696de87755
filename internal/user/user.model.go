package user

import (
	"time"

	"github.com/google/uuid"

	"tradeQuestAPI/internal/types/subscription"
)

type User struct {
	ID               uuid.UUID         `json:"id"`
	ClerkID          *string           `json:"-"`
	Email            string            `json:"email"`
	PasswordHash     *string           `json:"-"`
	DisplayName      string            `json:"display_name"`
	ImageURL         string            `json:"image_url,omitempty"`
	SubscriptionTier subscription.Tier `json:"subscription_tier"`
	XP               int               `json:"xp"`
	Level            int               `json:"level"`
	Title            string            `json:"title,omitempty"`
	UnlockedThemes   []string          `json:"unlocked_themes"`
	ActiveTheme      string            `json:"active_theme"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// HasTheme reports whether theme is in the user's unlocked set.
func (u *User) HasTheme(theme string) bool {
	for _, t := range u.UnlockedThemes {
		if t == theme {
			return true
		}
	}
	return false
}
