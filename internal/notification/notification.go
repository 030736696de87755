package notification

import (
	"time"

	"github.com/google/uuid"
)

type NotificationType string

const (
	NotificationLevelUp          NotificationType = "level_up"
	NotificationAchievement      NotificationType = "achievement"
	NotificationChallenge        NotificationType = "challenge"
	NotificationStreakRisk       NotificationType = "streak_risk"
	NotificationSeasonReward     NotificationType = "season_reward"
	NotificationCommunityLike    NotificationType = "community_like"
	NotificationCommunityComment NotificationType = "community_comment"
	NotificationSubscription     NotificationType = "subscription"
)

type PushStatus string

const (
	PushPending PushStatus = "pending"
	PushSent    PushStatus = "sent"
	PushFailed  PushStatus = "failed"
	PushSkipped PushStatus = "skipped"
)

type Notification struct {
	ID         uuid.UUID        `json:"id" db:"id"`
	UserID     uuid.UUID        `json:"user_id" db:"user_id"`
	Type       NotificationType `json:"type" db:"type"`
	Title      string           `json:"title" db:"title"`
	Message    string           `json:"message" db:"message"`
	IsRead     bool             `json:"is_read" db:"is_read"`
	Data       map[string]any   `json:"data" db:"data"`
	PushStatus PushStatus       `json:"-" db:"push_status"`
	CreatedAt  time.Time        `json:"created_at" db:"created_at"`
}

type DeviceToken struct {
	Token    string `json:"token" db:"token"`
	Platform string `json:"platform" db:"platform"`
}
