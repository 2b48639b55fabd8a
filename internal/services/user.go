package services

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/credcore/internal/audit"
	"github.com/dmitrijs2005/credcore/internal/common"
	"github.com/dmitrijs2005/credcore/internal/models"
	"github.com/dmitrijs2005/credcore/internal/policy"
	"github.com/dmitrijs2005/credcore/internal/store"
)

// UpdateUser changes profile fields. Names are re-encrypted; a username
// already taken by another account returns common.ErrDuplicateUser.
func (s *authService) UpdateUser(ctx context.Context, userID string, upd ProfileUpdate) (*models.UserView, error) {
	if upd.Username != nil {
		if err := policy.ValidateUsername(*upd.Username); err != nil {
			return nil, err
		}
	}

	var changed []string
	u, err := s.modifyUser(ctx, userID, func(ctx context.Context, repos *store.Repos, u *models.User) error {
		changed = changed[:0]

		if upd.Username != nil && *upd.Username != u.Username {
			other, err := repos.Users.GetByUsername(ctx, *upd.Username)
			switch {
			case err == nil && other.ID != u.ID:
				return common.ErrDuplicateUser
			case err != nil && !errors.Is(err, common.ErrorNotFound):
				return err
			}
			u.Username = *upd.Username
			changed = append(changed, "username")
		}
		if upd.FirstName != nil {
			f, err := s.encryptOptional(*upd.FirstName)
			if err != nil {
				return err
			}
			u.Fields.FirstName = f
			changed = append(changed, "first_name")
		}
		if upd.LastName != nil {
			f, err := s.encryptOptional(*upd.LastName)
			if err != nil {
				return err
			}
			u.Fields.LastName = f
			changed = append(changed, "last_name")
		}

		return s.audit.Append(ctx, repos.AuditLog, &u.ID, audit.ActionProfileUpdated, map[string]any{
			"fields": append([]string(nil), changed...),
		})
	})
	if err != nil {
		if errors.Is(err, common.ErrAlreadyExists) {
			return nil, common.ErrDuplicateUser
		}
		return nil, err
	}
	return s.view(u)
}

// ChangePassword replaces the password after checking the old one and ends
// every session of the user. A wrong old password counts toward the
// lockout like a failed login, and a locked account cannot change it.
func (s *authService) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	now := s.clock.Now()
	u, err := s.store.Repos().Users.GetByID(ctx, userID)
	if err != nil {
		return common.StorageFailure("load user", err)
	}
	if u.LockActive(now) {
		return s.blocked(ctx, u, now)
	}

	ok, err := s.checkPassword(u, oldPassword)
	if err != nil {
		return err
	}
	if !ok {
		return s.recordFailure(ctx, u.ID, now, "password_change_rejected")
	}

	v := policy.DefaultPasswordValidator(s.minStrength, u.Email, u.Username)
	if err := policy.NewPasswordValidator(v, policy.RequireDifferentFrom(oldPassword)).Validate(newPassword); err != nil {
		return err
	}

	hash, salt, err := s.hashPassword(newPassword)
	if err != nil {
		return err
	}

	_, err = s.modifyUser(ctx, userID, func(ctx context.Context, repos *store.Repos, u *models.User) error {
		if u.LockActive(now) {
			return common.NewLockedError(*u.AccountLockExpiry, now)
		}
		u.Fields.PasswordHash = hash
		u.Fields.PasswordSalt = salt
		u.ClearLock()

		revoked, err := s.sessions.InvalidateAll(ctx, repos.Sessions, u.ID)
		if err != nil {
			return err
		}
		return s.audit.Append(ctx, repos.AuditLog, &u.ID, audit.ActionPasswordChanged, map[string]any{
			"sessions_revoked": revoked,
		})
	})
	return err
}

// GetUserByEmail returns the sanitized view of the account.
func (s *authService) GetUserByEmail(ctx context.Context, email string) (*models.UserView, error) {
	u, err := s.store.Repos().Users.GetByEmail(ctx, policy.NormalizeEmail(email))
	if err != nil {
		return nil, common.StorageFailure("load user", err)
	}
	return s.view(u)
}
