package user

type CreateUserRequest struct {
	ClerkID     string `json:"clerk_id" validate:"required"`
	Email       string `json:"email" validate:"required,email"`
	DisplayName string `json:"display_name" validate:"required,min=2,max=50"`
	ImageURL    string `json:"image_url,omitempty"`
}

type UpdateProfileRequest struct {
	DisplayName string `json:"display_name,omitempty" validate:"omitempty,min=2,max=50"`
	ImageURL    string `json:"image_url,omitempty" validate:"omitempty,url"`
}

type RegisterRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=8,max=72"`
	DisplayName string `json:"display_name" validate:"required,min=2,max=50"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type AuthResponse struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}

type ActivateThemeRequest struct {
	Theme string `json:"theme" validate:"required"`
}

// Profile is the gamification summary shown on the dashboard.
type Profile struct {
	UserID               string   `json:"user_id"`
	DisplayName          string   `json:"display_name"`
	XP                   int      `json:"xp"`
	Level                int      `json:"level"`
	CurrentThreshold     int      `json:"current_threshold"`
	NextThreshold        int      `json:"next_threshold"`
	Progress             float64  `json:"progress"`
	CurrentStreak        int      `json:"current_streak"`
	LongestStreak        int      `json:"longest_streak"`
	AchievementsUnlocked int      `json:"achievements_unlocked"`
	AchievementsTotal    int      `json:"achievements_total"`
	SubscriptionTier     string   `json:"subscription_tier"`
	Title                string   `json:"title,omitempty"`
	ActiveTheme          string   `json:"active_theme"`
	NewAchievements      []string `json:"new_achievements,omitempty"`
}
