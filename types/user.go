package types

import (
	"strings"
	"time"
)

// Role indicates the authorization level of a user.
type Role string

const (
	RoleGlobalAdmin Role = "global-admin"
	RoleAdmin       Role = "admin"
	RoleUser        Role = "user"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleGlobalAdmin, RoleAdmin, RoleUser:
		return true
	}
	return false
}

// IsAdmin is true for both admin and global-admin.
func (r Role) IsAdmin() bool {
	return r == RoleAdmin || r == RoleGlobalAdmin
}

// User represents an account in the system.
// It contains identity, role, and audit metadata.
type User struct {
	// ID is the unique identifier of the user.
	ID int `json:"id" db:"id"`

	// Email is the user's login and the key that links cards,
	// attendance rows and complaints to the account.
	Email string `json:"email" db:"email"`

	// Name is the user's display or full name.
	Name string `json:"name" db:"name"`

	// Role indicates the user's authorization level
	// (global-admin, admin or user).
	Role Role `json:"role" db:"role"`

	// PasswordHash stores the bcrypt hash of the user's password.
	// Accounts created through Google sign-in have an empty hash.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// AuthProvider is "password" or "google".
	AuthProvider string `json:"auth_provider" db:"auth_provider"`

	// Card is the user's identity card, when one has been registered.
	Card *Card `json:"card,omitempty" db:"-"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the user account.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

const (
	AuthProviderPassword = "password"
	AuthProviderGoogle   = "google"
)

// NormalizeEmail lower-cases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// DefaultName derives a display name from the local part of an email.
func DefaultName(email string) string {
	local, _, _ := strings.Cut(email, "@")
	return local
}
