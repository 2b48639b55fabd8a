package services

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/credcore/internal/audit"
	"github.com/dmitrijs2005/credcore/internal/common"
	"github.com/dmitrijs2005/credcore/internal/cryptox"
	"github.com/dmitrijs2005/credcore/internal/metrics"
	"github.com/dmitrijs2005/credcore/internal/models"
	"github.com/dmitrijs2005/credcore/internal/policy"
	"github.com/dmitrijs2005/credcore/internal/store"
)

// dummySalt feeds the KDF for unknown emails so they cost as much as a
// wrong password.
var dummySalt = make([]byte, cryptox.SaltSize)

// Login authenticates email and password, and code when the account has a
// second factor. Unknown emails and wrong passwords both return
// common.ErrInvalidCredentials.
//
// Failed attempts are counted; the attempt that reaches the lockout
// threshold locks the account and returns *common.LockedError. A lock whose
// expiry has passed is cleared and the count restarts.
func (s *authService) Login(ctx context.Context, email, password, code string) (*LoginResult, error) {
	email = policy.NormalizeEmail(email)
	now := s.clock.Now()

	u, err := s.store.Repos().Users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			_, _, _ = s.crypto.HashPassword([]byte(password), dummySalt)
			s.record(ctx, nil, audit.ActionLoginFailed, map[string]any{"reason": "unknown_email"})
			s.metrics.Login(metrics.ResultFailure)
			return nil, common.ErrInvalidCredentials
		}
		return nil, common.StorageFailure("load user", err)
	}

	if u.LockActive(now) {
		return nil, s.blocked(ctx, u, now)
	}

	ok, err := s.checkPassword(u, password)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, s.recordFailure(ctx, u.ID, now, "bad_password")
	}

	if !u.IsEmailVerified {
		s.record(ctx, &u.ID, audit.ActionLoginFailed, map[string]any{"reason": "email_not_verified"})
		s.metrics.Login(metrics.ResultUnverified)
		return nil, common.ErrEmailNotVerified
	}

	var totpOK bool
	if u.IsTwoFactorEnabled {
		if code == "" {
			s.metrics.Login(metrics.ResultRequires2FA)
			return &LoginResult{Status: LoginRequires2FA, UserID: u.ID}, nil
		}
		if totpOK, err = s.twoFactor.Verify(ctx, u.ID, code); err != nil {
			return nil, err
		}
	}

	return s.completeLogin(ctx, u.ID, password, code, totpOK, now)
}

func (s *authService) blocked(ctx context.Context, u *models.User, now time.Time) error {
	s.record(ctx, &u.ID, audit.ActionLoginBlocked, map[string]any{
		"locked_until": u.AccountLockExpiry.UTC().Format(time.RFC3339),
	})
	s.metrics.Login(metrics.ResultBlocked)
	return common.NewLockedError(*u.AccountLockExpiry, now)
}

// recordFailure bumps the failure counter and locks the account once it
// reaches the threshold. reason goes into the LOGIN_FAILED entry.
func (s *authService) recordFailure(ctx context.Context, userID string, now time.Time, reason string) error {
	var lockedUntil *time.Time

	_, err := s.modifyUser(ctx, userID, func(ctx context.Context, repos *store.Repos, u *models.User) error {
		lockedUntil = nil
		if u.LockActive(now) {
			return common.NewLockedError(*u.AccountLockExpiry, now)
		}
		if u.AccountLocked {
			u.ClearLock()
		}

		u.FailedLoginAttempts++
		if err := s.audit.Append(ctx, repos.AuditLog, &u.ID, audit.ActionLoginFailed, map[string]any{
			"reason":   reason,
			"attempts": u.FailedLoginAttempts,
		}); err != nil {
			return err
		}

		if u.FailedLoginAttempts < s.lockoutThreshold {
			return nil
		}

		until := now.Add(s.lockoutDuration)
		u.AccountLocked = true
		u.AccountLockExpiry = &until
		lockedUntil = &until
		return s.audit.Append(ctx, repos.AuditLog, &u.ID, audit.ActionAccountLocked, map[string]any{
			"attempts":     u.FailedLoginAttempts,
			"locked_until": until.UTC().Format(time.RFC3339),
		})
	})
	if err != nil {
		var locked *common.LockedError
		if errors.As(err, &locked) {
			s.record(ctx, &userID, audit.ActionLoginBlocked, map[string]any{
				"locked_until": locked.Until.UTC().Format(time.RFC3339),
			})
			s.metrics.Login(metrics.ResultBlocked)
			return err
		}
		// The count did not persist; the attempt is still on record.
		s.record(ctx, &userID, audit.ActionLoginFailed, map[string]any{
			"reason":  reason,
			"counted": false,
		})
		s.metrics.Login(metrics.ResultFailure)
		s.log.Error(ctx, "failed login not counted", "user_id", userID, "error", err)
		return err
	}

	if lockedUntil != nil {
		s.metrics.Login(metrics.ResultBlocked)
		s.metrics.Lockout()
		s.log.Warn(ctx, "account locked", "user_id", userID, "until", *lockedUntil)
		return common.NewLockedError(*lockedUntil, now)
	}

	s.metrics.Login(metrics.ResultFailure)
	return common.ErrInvalidCredentials
}

// completeLogin resets the lockout state and creates the session. When the
// code was not a valid TOTP it is tried as a backup code; the code is only
// burnt if the rest of the login commits.
func (s *authService) completeLogin(ctx context.Context, userID, password, code string, totpOK bool, now time.Time) (*LoginResult, error) {
	var (
		sess       *models.Session
		usedBackup bool
	)

	u, err := s.modifyUser(ctx, userID, func(ctx context.Context, repos *store.Repos, u *models.User) error {
		usedBackup = false
		if u.LockActive(now) {
			return common.NewLockedError(*u.AccountLockExpiry, now)
		}

		if u.IsTwoFactorEnabled && !totpOK {
			consumed, err := s.twoFactor.ConsumeBackupCode(ctx, repos.TwoFactor, u.ID, code)
			if err != nil {
				return err
			}
			if !consumed {
				return common.ErrInvalidTwoFactor
			}
			usedBackup = true
		}

		if err := s.rehashIfNeeded(u, password); err != nil {
			return err
		}

		u.ClearLock()
		u.LastLoginAt = &now

		var err error
		if sess, err = s.sessions.Create(ctx, repos.Sessions, u.ID); err != nil {
			return err
		}

		if usedBackup {
			if err := s.audit.Append(ctx, repos.AuditLog, &u.ID, audit.ActionBackupCodeUsed, nil); err != nil {
				return err
			}
		}
		return s.audit.Append(ctx, repos.AuditLog, &u.ID, audit.ActionLoginSuccess, map[string]any{
			"two_factor":  u.IsTwoFactorEnabled,
			"backup_code": usedBackup,
		})
	})
	if err != nil {
		if errors.Is(err, common.ErrInvalidTwoFactor) {
			s.record(ctx, &userID, audit.ActionTwoFactorFailed, map[string]any{"during": "login"})
			s.metrics.TwoFactor(metrics.ResultFailure)
			s.metrics.Login(metrics.ResultFailure)
		}
		return nil, err
	}

	if u.IsTwoFactorEnabled {
		s.metrics.TwoFactor(metrics.ResultSuccess)
	}
	s.metrics.Login(metrics.ResultSuccess)
	s.log.Info(ctx, "login succeeded", "user_id", u.ID)

	res := &LoginResult{Status: LoginOK, UserID: u.ID, Session: sess}
	if res.User, err = s.view(u); err != nil {
		return nil, err
	}
	if s.tokens != nil {
		if res.Token, err = s.tokens.Issue(sess); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// rehashIfNeeded upgrades a hash made with weaker KDF parameters than the
// service now uses.
func (s *authService) rehashIfNeeded(u *models.User, password string) error {
	stored, err := s.crypto.Decrypt(u.Fields.PasswordHash)
	if err != nil {
		return err
	}
	if !s.crypto.NeedsRehash(stored) {
		return nil
	}

	hash, salt, err := s.hashPassword(password)
	if err != nil {
		return err
	}
	u.Fields.PasswordHash = hash
	u.Fields.PasswordSalt = salt
	return nil
}
