package models

import "time"

// Session is an authenticated login. Only LastActivity changes after
// creation.
type Session struct {
	SessionID    string
	UserID       string
	CreatedAt    time.Time
	ExpiresAt    time.Time
	LastActivity time.Time
}
