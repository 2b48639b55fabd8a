package models

import (
	"time"

	"github.com/dmitrijs2005/credcore/internal/cryptox"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// EncryptedFields holds every value stored only in encrypted form.
// Each field has its own nonce.
type EncryptedFields struct {
	PasswordHash cryptox.EncryptedField `json:"password_hash"`
	PasswordSalt cryptox.EncryptedField `json:"password_salt"`
	Email        cryptox.EncryptedField `json:"email"`
	FirstName    cryptox.EncryptedField `json:"first_name"`
	LastName     cryptox.EncryptedField `json:"last_name"`
}

// User is the persisted account record. Email is always lower-cased.
// Version is bumped on every update and used for compare-and-swap.
type User struct {
	ID                  string
	Email               string
	Username            string
	Fields              EncryptedFields
	Role                string
	IsEmailVerified     bool
	IsTwoFactorEnabled  bool
	FailedLoginAttempts int
	AccountLocked       bool
	AccountLockExpiry   *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
	LastLoginAt         *time.Time
	Version             int64
}

// LockActive reports whether the account lock is in effect at now.
func (u *User) LockActive(now time.Time) bool {
	return u.AccountLocked && u.AccountLockExpiry != nil && now.Before(*u.AccountLockExpiry)
}

// ClearLock resets the failure counter and lock fields.
func (u *User) ClearLock() {
	u.FailedLoginAttempts = 0
	u.AccountLocked = false
	u.AccountLockExpiry = nil
}

// UserView is the sanitized projection handed to callers: names are
// decrypted and the password hash and salt are never included.
type UserView struct {
	ID                 string     `json:"id"`
	Email              string     `json:"email"`
	Username           string     `json:"username"`
	FirstName          string     `json:"first_name,omitempty"`
	LastName           string     `json:"last_name,omitempty"`
	Role               string     `json:"role"`
	IsEmailVerified    bool       `json:"is_email_verified"`
	IsTwoFactorEnabled bool       `json:"is_two_factor_enabled"`
	CreatedAt          time.Time  `json:"created_at"`
	LastLoginAt        *time.Time `json:"last_login_at,omitempty"`
}
