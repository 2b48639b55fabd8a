package models

import "time"

const TokenTypeEmailVerification = "email_verification"

// EmailToken is a single-use verification token.
type EmailToken struct {
	Token     string
	UserID    string
	Type      string
	ExpiresAt time.Time
}

// Expired reports whether the token can no longer be redeemed at now.
func (t *EmailToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}
