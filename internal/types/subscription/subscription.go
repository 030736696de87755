package subscription

import "time"

type Tier string

const (
	TierFree  Tier = "free"
	TierPro   Tier = "pro"
	TierElite Tier = "elite"
)

var tierRank = map[Tier]int{
	TierFree:  0,
	TierPro:   1,
	TierElite: 2,
}

func (t Tier) Valid() bool {
	_, ok := tierRank[t]
	return ok
}

// AtLeast reports whether t unlocks everything min unlocks.
// An empty min is satisfied by every tier.
func (t Tier) AtLeast(min Tier) bool {
	if min == "" {
		return true
	}
	return tierRank[t] >= tierRank[min]
}

type Plan struct {
	ID            Tier     `json:"id"`
	Name          string   `json:"name"`
	Price         int      `json:"price"`
	Interval      string   `json:"interval"`
	Features      []string `json:"features"`
	StripePriceID string   `json:"-"`
	PaddlePriceID string   `json:"-"`
}

type Subscription struct {
	UserID           string    `json:"user_id" db:"user_id"`
	Tier             Tier      `json:"tier" db:"subscription_tier"`
	Provider         string    `json:"provider,omitempty" db:"subscription_provider"`
	ExternalID       string    `json:"-" db:"subscription_external_id"`
	CurrentPeriodEnd time.Time `json:"current_period_end" db:"current_period_end"`
}

type Provider string

const (
	ProviderStripe Provider = "stripe"
	ProviderPaddle Provider = "paddle"
)

type CheckoutRequest struct {
	PlanID   Tier     `json:"plan_id" validate:"required,oneof=pro elite"`
	Provider Provider `json:"provider" validate:"omitempty,oneof=stripe paddle"`
}

type CheckoutResponse struct {
	CheckoutURL string `json:"checkout_url"`
	SessionID   string `json:"session_id"`
}
