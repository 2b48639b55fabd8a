package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/credcore/internal/audit"
	"github.com/dmitrijs2005/credcore/internal/common"
	"github.com/dmitrijs2005/credcore/internal/logging"
	"github.com/dmitrijs2005/credcore/internal/mailer"
	"github.com/dmitrijs2005/credcore/internal/models"
	"github.com/dmitrijs2005/credcore/internal/policy"
	"github.com/dmitrijs2005/credcore/internal/store"
	"github.com/google/uuid"
)

// Register validates in, stores the account with its PII encrypted, and
// sends a verification token. The user row, the token and the audit entry
// are written in one transaction; the mail goes out after commit and a
// delivery failure does not undo the registration.
func (s *authService) Register(ctx context.Context, in RegisterInput) (*RegistrationResult, error) {
	email := policy.NormalizeEmail(in.Email)
	if err := policy.ValidateEmail(email); err != nil {
		return nil, err
	}

	username := in.Username
	if username == "" {
		username = email
	}
	if err := policy.ValidateUsername(username); err != nil {
		return nil, err
	}

	if err := policy.DefaultPasswordValidator(s.minStrength, email, username).Validate(in.Password); err != nil {
		return nil, err
	}

	hash, salt, err := s.hashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	encEmail, err := s.crypto.EncryptString(email)
	if err != nil {
		return nil, err
	}
	first, err := s.encryptOptional(in.FirstName)
	if err != nil {
		return nil, err
	}
	last, err := s.encryptOptional(in.LastName)
	if err != nil {
		return nil, err
	}

	token, err := s.crypto.SecureRandomToken()
	if err != nil {
		return nil, fmt.Errorf("%w: verification token: %w", common.ErrCryptoUnavailable, err)
	}

	now := s.clock.Now()
	u := &models.User{
		ID:       uuid.NewString(),
		Email:    email,
		Username: username,
		Fields: models.EncryptedFields{
			PasswordHash: hash,
			PasswordSalt: salt,
			Email:        encEmail,
			FirstName:    first,
			LastName:     last,
		},
		Role:      models.RoleUser,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.store.WithTransaction(ctx, func(ctx context.Context, repos *store.Repos) error {
		if _, err := repos.Users.GetByEmail(ctx, email); err == nil {
			return common.ErrDuplicateUser
		} else if !errors.Is(err, common.ErrorNotFound) {
			return err
		}

		if err := repos.Users.Create(ctx, u); err != nil {
			if errors.Is(err, common.ErrAlreadyExists) {
				return common.ErrDuplicateUser
			}
			return err
		}

		if err := repos.EmailTokens.Create(ctx, &models.EmailToken{
			Token:     token,
			UserID:    u.ID,
			Type:      models.TokenTypeEmailVerification,
			ExpiresAt: now.Add(s.emailTokenTTL),
		}); err != nil {
			return err
		}

		return s.audit.Append(ctx, repos.AuditLog, &u.ID, audit.ActionUserRegistered, map[string]any{
			"role": u.Role,
		})
	})
	if errors.Is(err, common.ErrDuplicateUser) {
		s.record(ctx, nil, audit.ActionRegistrationRejected, map[string]any{"reason": "duplicate"})
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	s.metrics.Registration()
	s.log.Info(ctx, "user registered", "user_id", u.ID, "email", logging.MaskEmail(email))

	if err := s.mailer.Send(ctx, email, mailer.VerificationSubject, mailer.VerificationMessage(token, s.verificationURL)); err != nil {
		s.log.Warn(ctx, "verification mail not sent", "user_id", u.ID, "error", err)
	}

	return &RegistrationResult{
		UserID:                    u.ID,
		Email:                     email,
		Username:                  username,
		EmailVerificationRequired: true,
	}, nil
}

// VerifyEmail redeems a verification token. Tokens work once; unknown and
// expired tokens return common.ErrInvalidToken. An expired token is still
// removed.
func (s *authService) VerifyEmail(ctx context.Context, token string) error {
	if token == "" {
		return common.ErrInvalidToken
	}

	var expired bool
	err := retryOnConflict(func() error {
		expired = false
		return s.store.WithTransaction(ctx, func(ctx context.Context, repos *store.Repos) error {
			t, err := repos.EmailTokens.Consume(ctx, token)
			if err != nil {
				if errors.Is(err, common.ErrorNotFound) {
					return common.ErrInvalidToken
				}
				return err
			}

			now := s.clock.Now()
			if t.Type != models.TokenTypeEmailVerification || t.Expired(now) {
				expired = true
				return nil
			}

			u, err := repos.Users.GetByIDForUpdate(ctx, t.UserID)
			if err != nil {
				if errors.Is(err, common.ErrorNotFound) {
					return common.ErrInvalidToken
				}
				return err
			}

			u.IsEmailVerified = true
			u.UpdatedAt = now
			if err := repos.Users.Update(ctx, u); err != nil {
				return err
			}

			return s.audit.Append(ctx, repos.AuditLog, &u.ID, audit.ActionEmailVerified, nil)
		})
	})
	if errors.Is(err, common.ErrVersionConflict) {
		return fmt.Errorf("%w: verify email: too many concurrent updates", common.ErrStorage)
	}
	if err != nil {
		return err
	}
	if expired {
		return common.ErrInvalidToken
	}
	return nil
}
