package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrUserNotFound is returned by user lookups that match no record.
var ErrUserNotFound = errors.New("user does not exist")

// User is the stored account record.
type User struct {
	ID           int64
	Username     string
	Email        string
	FirstName    *string
	LastName     *string
	Phone        *string
	PasswordHash string
	OTPSecret    *string
	IsActive     bool
	RegisteredAt time.Time
}

// Identity returns the principal embedded into session tokens for this user.
func (u *User) Identity() Identity {
	return Identity{Username: u.Username, Email: u.Email}
}

// TwoFactorEnabled reports whether a one-time code is required at login.
func (u *User) TwoFactorEnabled() bool {
	return u.OTPSecret != nil && *u.OTPSecret != ""
}

// ConflictError reports a uniqueness violation on a named user field.
type ConflictError struct {
	Field string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s already taken", e.Field)
}
