package events

import "time"

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventUserRegistered EventType = "user_registered"
	EventUserLoggedIn   EventType = "user_logged_in"
	EventUserLoggedOut  EventType = "user_logged_out"
	EventAvatarUpdated  EventType = "avatar_updated"
	EventProductCreated EventType = "product_created"
	EventProductDeleted EventType = "product_deleted"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	SubjectID string      `json:"subject_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload,omitempty"`
}

// UserRegisteredPayload payload.
type UserRegisteredPayload struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// ProductCreatedPayload payload.
type ProductCreatedPayload struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
}

// AvatarUpdatedPayload payload.
type AvatarUpdatedPayload struct {
	AvatarURL string `json:"avatar_url"`
}
