package domain

import "time"

// Identity is a player's durable account record.
type Identity struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	Profile     Profile   `json:"profile"`
	CreatedAt   time.Time `json:"created_at"`
}

// Profile holds free-form profile metadata. All fields are optional
// strings; there is no media storage behind them.
type Profile struct {
	Bio    string `json:"bio,omitempty"`
	Avatar string `json:"avatar,omitempty"`
	Status string `json:"status,omitempty"`
}

// IdentitySummary is the public projection of an identity, used in
// friend lists, request lists, and the user directory.
type IdentitySummary struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}
