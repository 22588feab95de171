package types

import "time"

// User represents an account in the system.
// It contains identity, privilege, and audit metadata.
type User struct {
	// ID is the unique identifier of the user.
	ID int `json:"id" db:"id"`

	// Username is the unique, case-sensitive login name chosen at registration.
	// It cannot be changed afterwards.
	Username string `json:"username" db:"username"`

	// IsAdmin grants access to catalog mutations. It is fixed when the
	// account is created: self-registration always yields false.
	IsAdmin bool `json:"is_admin" db:"is_admin"`

	// PasswordHash stores the salted bcrypt hash of the user's credential.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the user account.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
