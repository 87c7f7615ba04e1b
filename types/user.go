package types

import "time"

// Role is the account type carried by a user and by its session claims.
type Role string

const (
	RoleAdmin      Role = "Admin"
	RoleStudent    Role = "Student"
	RoleInstructor Role = "Instructor"
)

// Valid reports whether r is one of the known account types.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleStudent, RoleInstructor:
		return true
	default:
		return false
	}
}

// User represents an account in the system.
// It contains identity, role, credential and audit metadata.
type User struct {
	// ID is the unique identifier of the user.
	ID string `json:"id" db:"id"`

	// FirstName and LastName are the user's display name parts.
	FirstName string `json:"firstName" db:"first_name"`
	LastName  string `json:"lastName" db:"last_name"`

	// Email is the user's unique login address, stored as supplied.
	Email string `json:"email" db:"email"`

	// PasswordHash stores the bcrypt hash of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// AccountType is the user's role within the system.
	AccountType Role `json:"accountType" db:"account_type"`

	// ProfileID references the user's Profile record.
	ProfileID string `json:"-" db:"profile_id"`

	// Profile is populated by lookups that join the profile record.
	Profile *Profile `json:"additionalDetails,omitempty" db:"-"`

	// ResetToken and ResetExpiry hold a pending password reset.
	// They are always set and cleared together.
	ResetToken  string     `json:"-" db:"reset_token"`
	ResetExpiry *time.Time `json:"-" db:"reset_expiry"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// HasPendingReset reports whether a reset token is stored and unexpired at now.
func (u User) HasPendingReset(now time.Time) bool {
	return u.ResetToken != "" && u.ResetExpiry != nil && u.ResetExpiry.After(now)
}

// ClearReset drops the pending reset token and its expiry together.
func (u *User) ClearReset() {
	u.ResetToken = ""
	u.ResetExpiry = nil
}

// SetReset stores a pending reset token with its expiry.
func (u *User) SetReset(token string, expiresAt time.Time) {
	u.ResetToken = token
	u.ResetExpiry = &expiresAt
}

// Profile holds loosely validated personal details, one per user.
type Profile struct {
	ID          string  `json:"id" db:"id"`
	Gender      *string `json:"gender" db:"gender"`
	DateOfBirth *string `json:"dateOfBirth" db:"date_of_birth"`
	Image       string  `json:"image" db:"image"`
	About       *string `json:"about" db:"about"`
	ContactNo   *string `json:"contactNo" db:"contact_no"`
	Profession  *string `json:"profession" db:"profession"`
}

// Claims are the identity facts carried by a session token.
type Claims struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	AccountType Role   `json:"accountType"`
}
