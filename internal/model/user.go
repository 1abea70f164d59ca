package model

import "time"

// User is provisioned outside this service; the core only reads it.
type User struct {
	ID        string    `json:"user_id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// Ref returns the lightweight reference embedded in documents and versions.
func (u User) Ref() UserRef {
	return UserRef{ID: u.ID, Email: u.Email}
}

// UserRef identifies a user by id, with the email resolved for display.
type UserRef struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}
