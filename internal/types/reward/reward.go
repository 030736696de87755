package reward

import "time"

type Kind string

const (
	KindTheme   Kind = "theme"
	KindFeature Kind = "feature"
	KindTitle   Kind = "title"
)

// Reward is a level-gated catalog item. Value is the theme id or title text.
type Reward struct {
	ID            string `json:"id" mapstructure:"id"`
	Kind          Kind   `json:"kind" mapstructure:"kind"`
	Name          string `json:"name" mapstructure:"name"`
	Description   string `json:"description" mapstructure:"description"`
	RequiredLevel int    `json:"required_level" mapstructure:"required_level"`
	Value         string `json:"value" mapstructure:"value"`
}

type RewardWithStatus struct {
	Reward
	Unlocked  bool       `json:"unlocked"`
	Claimed   bool       `json:"claimed"`
	ClaimedAt *time.Time `json:"claimed_at,omitempty"`
}

type RewardList struct {
	Rewards   []RewardWithStatus `json:"rewards"`
	UserLevel int                `json:"user_level"`
}
