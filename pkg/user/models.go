package user

import (
	"time"

	"github.com/google/uuid"
)

// User represents a subject account as seen by the flow engine: enough
// to address a verification email, gate activation and pick a locale.
type User struct {
	ID           uuid.UUID  `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	Name         string     `json:"name"`
	Active       bool       `json:"active"`
	Locale       string     `json:"locale"`
	PasswordHash string     `json:"password_hash,omitempty"`
	TOTPSecret   string     `json:"totp_secret,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty"`
}

// CreateUserRequest represents the request to create a new user
type CreateUserRequest struct {
	Username   string
	Email      string
	Name       string
	Password   string
	Locale     string
	TOTPSecret string
}
