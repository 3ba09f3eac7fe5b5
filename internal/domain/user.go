package domain

import "time"

// Profile groups the public, user-editable profile fields.
type Profile struct {
	Bio       string `json:"bio"`
	Location  string `json:"location"`
	AvatarURL string `json:"avatarUrl"`
}

// User is the domain model for registered customers. PasswordHash never
// leaves the service layer.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Profile      Profile
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
