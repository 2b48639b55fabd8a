// Package audit appends security events to the audit log. Entries carry a
// timestamp from the injected clock and the client address and user agent
// attached to the request context.
package audit

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/credcore/internal/clock"
	"github.com/dmitrijs2005/credcore/internal/models"
	"github.com/dmitrijs2005/credcore/internal/repositories/auditlog"
)

const (
	ActionUserRegistered       = "USER_REGISTERED"
	ActionRegistrationRejected = "REGISTRATION_REJECTED"
	ActionEmailVerified        = "EMAIL_VERIFIED"
	ActionLoginSuccess         = "LOGIN_SUCCESS"
	ActionLoginFailed          = "LOGIN_FAILED"
	ActionLoginBlocked         = "LOGIN_BLOCKED"
	ActionAccountLocked        = "ACCOUNT_LOCKED"
	ActionTwoFactorEnabled     = "TWO_FACTOR_ENABLED"
	ActionTwoFactorDisabled    = "TWO_FACTOR_DISABLED"
	ActionTwoFactorFailed      = "TWO_FACTOR_FAILED"
	ActionBackupCodeUsed       = "BACKUP_CODE_USED"
	ActionLogout               = "LOGOUT"
	ActionProfileUpdated       = "PROFILE_UPDATED"
	ActionPasswordChanged      = "PASSWORD_CHANGED"
)

// Filter narrows List; see auditlog.Filter.
type Filter = auditlog.Filter

type clientKey struct{}

type client struct {
	ip        string
	userAgent string
}

// WithClient attaches the caller's address and user agent to ctx.
func WithClient(ctx context.Context, ip, userAgent string) context.Context {
	return context.WithValue(ctx, clientKey{}, client{ip: ip, userAgent: userAgent})
}

// ClientFrom returns what WithClient stored, or empty strings.
func ClientFrom(ctx context.Context) (ip, userAgent string) {
	if c, ok := ctx.Value(clientKey{}).(client); ok {
		return c.ip, c.userAgent
	}
	return "", ""
}

type Log struct {
	clock clock.Clock
	repo  auditlog.Repository
}

func New(c clock.Clock, repo auditlog.Repository) *Log {
	return &Log{clock: c, repo: repo}
}

// Append writes one entry. Pass a transaction-bound repo to make the entry
// part of a larger atomic write, or nil to use the pool.
func (l *Log) Append(ctx context.Context, repo auditlog.Repository, userID *string, action string, details map[string]any) error {
	if repo == nil {
		repo = l.repo
	}

	ip, ua := ClientFrom(ctx)
	e := &models.AuditEntry{
		UserID:    userID,
		Action:    action,
		Details:   details,
		Timestamp: l.clock.Now(),
		IPAddress: ip,
		UserAgent: ua,
	}
	if err := repo.Append(ctx, e); err != nil {
		return fmt.Errorf("append audit %s: %w", action, err)
	}
	return nil
}

// List returns matching entries newest first.
func (l *Log) List(ctx context.Context, f Filter) ([]models.AuditEntry, error) {
	return l.repo.List(ctx, f)
}
