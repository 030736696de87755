package user

import "encoding/json"

// ClerkWebhookEvent is the envelope Clerk posts to /webhooks/clerk.
type ClerkWebhookEvent struct {
	Type   string          `json:"type"`
	Object string          `json:"object"`
	Data   json.RawMessage `json:"data"`
}

type ClerkEmailAddress struct {
	EmailAddress string `json:"email_address"`
	Verification struct {
		Status string `json:"status"`
	} `json:"verification"`
}

type ClerkUserData struct {
	ID              string              `json:"id"`
	EmailAddresses  []ClerkEmailAddress `json:"email_addresses"`
	Username        string              `json:"username"`
	FirstName       string              `json:"first_name"`
	LastName        string              `json:"last_name"`
	ImageURL        string              `json:"image_url"`
	ProfileImageURL string              `json:"profile_image_url"`
}

// DisplayName picks the best available name for a Clerk user.
func (d *ClerkUserData) DisplayName() string {
	if d.Username != "" {
		return d.Username
	}
	if name := d.FirstName + " " + d.LastName; name != " " {
		return name
	}
	if len(d.EmailAddresses) > 0 {
		return d.EmailAddresses[0].EmailAddress
	}
	return d.ID
}

func (d *ClerkUserData) Image() string {
	if d.ImageURL != "" {
		return d.ImageURL
	}
	return d.ProfileImageURL
}
