package services

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/credcore/internal/audit"
	"github.com/dmitrijs2005/credcore/internal/common"
	"github.com/dmitrijs2005/credcore/internal/metrics"
	"github.com/dmitrijs2005/credcore/internal/models"
	"github.com/dmitrijs2005/credcore/internal/store"
	"github.com/dmitrijs2005/credcore/internal/twofactor"
)

// Enable2FA enrolls a new secret and turns the second factor on in one
// transaction. Any earlier enrollment and its backup codes are replaced.
func (s *authService) Enable2FA(ctx context.Context, userID string) (*twofactor.Enrollment, error) {
	var enrollment *twofactor.Enrollment

	_, err := s.modifyUser(ctx, userID, func(ctx context.Context, repos *store.Repos, u *models.User) error {
		var err error
		if enrollment, err = s.twoFactor.Enroll(ctx, repos.TwoFactor, u.ID, u.Email); err != nil {
			return err
		}
		u.IsTwoFactorEnabled = true
		return s.audit.Append(ctx, repos.AuditLog, &u.ID, audit.ActionTwoFactorEnabled, map[string]any{
			"backup_codes": len(enrollment.BackupCodes),
		})
	})
	if err != nil {
		return nil, err
	}
	return enrollment, nil
}

// Verify2FA checks a TOTP code for userID. A wrong code, or a user with no
// enrollment, returns common.ErrInvalidTwoFactor.
func (s *authService) Verify2FA(ctx context.Context, userID, code string) error {
	ok, err := s.twoFactor.Verify(ctx, userID, code)
	if err != nil {
		return err
	}
	if !ok {
		s.record(ctx, &userID, audit.ActionTwoFactorFailed, map[string]any{"during": "verify"})
		s.metrics.TwoFactor(metrics.ResultFailure)
		return common.ErrInvalidTwoFactor
	}
	s.metrics.TwoFactor(metrics.ResultSuccess)
	return nil
}

// Disable2FA removes the second factor after checking code, which may be a
// TOTP or a backup code.
func (s *authService) Disable2FA(ctx context.Context, userID, code string) error {
	ok, err := s.twoFactor.Verify(ctx, userID, code)
	if err != nil {
		return err
	}

	_, err = s.modifyUser(ctx, userID, func(ctx context.Context, repos *store.Repos, u *models.User) error {
		if !u.IsTwoFactorEnabled {
			return common.ErrTwoFactorNotSetUp
		}
		if !ok {
			consumed, err := s.twoFactor.ConsumeBackupCode(ctx, repos.TwoFactor, u.ID, code)
			if err != nil {
				return err
			}
			if !consumed {
				return common.ErrInvalidTwoFactor
			}
		}

		if err := s.twoFactor.Remove(ctx, repos.TwoFactor, u.ID); err != nil {
			return err
		}
		u.IsTwoFactorEnabled = false
		return s.audit.Append(ctx, repos.AuditLog, &u.ID, audit.ActionTwoFactorDisabled, nil)
	})
	if err != nil {
		if errors.Is(err, common.ErrInvalidTwoFactor) {
			s.record(ctx, &userID, audit.ActionTwoFactorFailed, map[string]any{"during": "disable"})
			s.metrics.TwoFactor(metrics.ResultFailure)
		}
		return err
	}
	return nil
}
