package domain

import "time"

// User is the profile document mirrored from the identity provider.
type User struct {
	UID       string    `json:"uid"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

// Settings holds the notification preferences in userSettings/<uid>.
type Settings struct {
	OrderUpdates     bool `json:"orderUpdates"`
	Promotions       bool `json:"promotions"`
	AppAnnouncements bool `json:"appAnnouncements"`
	OrderSummaries   bool `json:"orderSummaries"`
	WeeklyNewsletter bool `json:"weeklyNewsletter"`
}

// DefaultSettings is what an absent or partial settings document reads as.
func DefaultSettings() Settings {
	return Settings{
		OrderUpdates:     true,
		Promotions:       true,
		AppAnnouncements: true,
		OrderSummaries:   true,
		WeeklyNewsletter: true,
	}
}
