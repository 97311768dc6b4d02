package domain

import "time"

// Identity is the minimal principal carried by every session token.
type Identity struct {
	Email    string `json:"email"`
	Username string `json:"username"`
}

// TokenPair is the result of a successful login or refresh.
type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}
