// Package common defines shared constants and sentinel errors used across
// credcore components. Callers should use errors.Is / errors.As to match
// these values.
package common

import (
	"errors"
	"fmt"
	"time"
)

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrAlreadyExists   = errors.New("already exists")
	ErrVersionConflict = errors.New("version conflict")
	ErrStorage         = errors.New("storage error")

	// Crypto errors. ErrCryptoUnavailable is fatal: nothing can be
	// encrypted or decrypted without the field key.
	ErrCryptoUnavailable = errors.New("crypto unavailable")
	ErrDecryption        = errors.New("decryption failed")

	// Auth errors.
	ErrValidation         = errors.New("validation error")
	ErrDuplicateUser      = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountLocked      = errors.New("account locked")
	ErrEmailNotVerified   = errors.New("email not verified")
	ErrInvalidTwoFactor   = errors.New("invalid two-factor code")
	ErrTwoFactorNotSetUp  = errors.New("two-factor authentication not enrolled")

	// Token and session lifecycle errors.
	ErrInvalidToken   = errors.New("invalid token")
	ErrSessionExpired = errors.New("session expired")
)

// ValidationError reports which input field violated policy.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Reason)
}

// Is lets errors.Is(err, ErrValidation) match.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NewValidationError is a shorthand used by policy checks.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// LockedError is returned while an account lock is in effect.
// RetryAfter is relative to the moment the error was produced.
type LockedError struct {
	Until      time.Time
	RetryAfter time.Duration
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("account locked, retry after %s", e.RetryAfter.Round(time.Second))
}

// Is lets errors.Is(err, ErrAccountLocked) match.
func (e *LockedError) Is(target error) bool {
	return target == ErrAccountLocked
}

// NewLockedError builds a LockedError for a lock expiring at until.
func NewLockedError(until, now time.Time) *LockedError {
	retry := until.Sub(now)
	if retry < 0 {
		retry = 0
	}
	return &LockedError{Until: until, RetryAfter: retry}
}

// StorageFailure wraps err with ErrStorage unless it already carries a
// domain error that callers are expected to match.
func StorageFailure(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, known := range []error{
		ErrStorage, ErrValidation, ErrDuplicateUser, ErrInvalidCredentials,
		ErrAccountLocked, ErrEmailNotVerified, ErrInvalidTwoFactor,
		ErrDecryption, ErrCryptoUnavailable, ErrInvalidToken, ErrSessionExpired,
		ErrVersionConflict, ErrTwoFactorNotSetUp, ErrAlreadyExists, ErrorNotFound,
	} {
		if errors.Is(err, known) {
			return err
		}
	}
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}
