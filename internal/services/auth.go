// Package services contains the authentication state machine. Accounts move
// from registered to email-verified, optionally through a pending second
// factor, to an authenticated session.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/credcore/internal/audit"
	"github.com/dmitrijs2005/credcore/internal/clock"
	"github.com/dmitrijs2005/credcore/internal/common"
	"github.com/dmitrijs2005/credcore/internal/config"
	"github.com/dmitrijs2005/credcore/internal/cryptox"
	"github.com/dmitrijs2005/credcore/internal/logging"
	"github.com/dmitrijs2005/credcore/internal/mailer"
	"github.com/dmitrijs2005/credcore/internal/metrics"
	"github.com/dmitrijs2005/credcore/internal/models"
	"github.com/dmitrijs2005/credcore/internal/session"
	"github.com/dmitrijs2005/credcore/internal/store"
	"github.com/dmitrijs2005/credcore/internal/twofactor"
)

// AuthService is the public surface consumed by the application layer.
//
// Contract:
//   - Register creates an unverified account and mails a verification token.
//   - VerifyEmail redeems that token once.
//   - Login returns either a session or a LoginRequires2FA result.
//   - Enable2FA, Verify2FA and Disable2FA manage the second factor.
//   - Logout and Authenticate manage sessions.
//   - UpdateUser, ChangePassword and GetUserByEmail never expose the password
//     hash or salt.
//
// Security-relevant failures are written to the audit log before they are
// returned.
type AuthService interface {
	Register(ctx context.Context, in RegisterInput) (*RegistrationResult, error)
	VerifyEmail(ctx context.Context, token string) error
	Login(ctx context.Context, email, password, code string) (*LoginResult, error)
	Enable2FA(ctx context.Context, userID string) (*twofactor.Enrollment, error)
	Verify2FA(ctx context.Context, userID, code string) error
	Disable2FA(ctx context.Context, userID, code string) error
	Logout(ctx context.Context, sessionID string) error
	Authenticate(ctx context.Context, sessionID string) (*models.Session, error)
	AuthenticateToken(ctx context.Context, token string) (*models.Session, error)
	UpdateUser(ctx context.Context, userID string, upd ProfileUpdate) (*models.UserView, error)
	ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error
	GetUserByEmail(ctx context.Context, email string) (*models.UserView, error)
	AuditLog(ctx context.Context, f audit.Filter) ([]models.AuditEntry, error)
}

type RegisterInput struct {
	Email     string
	Password  string
	Username  string
	FirstName string
	LastName  string
}

type RegistrationResult struct {
	UserID   string
	Email    string
	Username string
	// EmailVerificationRequired is always true for new accounts.
	EmailVerificationRequired bool
}

type LoginStatus int

const (
	LoginOK LoginStatus = iota + 1
	// LoginRequires2FA means the password was right but a second-factor
	// code is needed. No session has been created.
	LoginRequires2FA
)

func (s LoginStatus) String() string {
	switch s {
	case LoginOK:
		return "ok"
	case LoginRequires2FA:
		return "requires_2fa"
	default:
		return "unknown"
	}
}

type LoginResult struct {
	Status  LoginStatus
	UserID  string
	Session *models.Session
	// Token is a signed bearer token for Session, empty when no token
	// issuer is configured.
	Token string
	User  *models.UserView
}

// ProfileUpdate changes only the non-nil fields.
type ProfileUpdate struct {
	Username  *string
	FirstName *string
	LastName  *string
}

// Deps are the collaborators of the auth service. Store, Crypto, Clock,
// Sessions, TwoFactor and Audit are required.
type Deps struct {
	Store     *store.Store
	Crypto    *cryptox.Service
	Clock     clock.Clock
	Sessions  *session.Manager
	Tokens    *session.TokenIssuer
	TwoFactor *twofactor.Service
	Audit     *audit.Log
	Mailer    mailer.Mailer
	Metrics   *metrics.Metrics
	Logger    logging.Logger
}

type authService struct {
	store     *store.Store
	crypto    *cryptox.Service
	clock     clock.Clock
	sessions  *session.Manager
	tokens    *session.TokenIssuer
	twoFactor *twofactor.Service
	audit     *audit.Log
	mailer    mailer.Mailer
	metrics   *metrics.Metrics
	log       logging.Logger

	emailTokenTTL    time.Duration
	lockoutThreshold int
	lockoutDuration  time.Duration
	minStrength      int
	verificationURL  string
}

// NewAuthService wires d with the policy settings from cfg.
func NewAuthService(d Deps, cfg *config.Config) AuthService {
	if d.Logger == nil {
		d.Logger = logging.Nop()
	}
	if d.Mailer == nil {
		d.Mailer = mailer.NewLogMailer(d.Logger)
	}

	s := &authService{
		store:     d.Store,
		crypto:    d.Crypto,
		clock:     d.Clock,
		sessions:  d.Sessions,
		tokens:    d.Tokens,
		twoFactor: d.TwoFactor,
		audit:     d.Audit,
		mailer:    d.Mailer,
		metrics:   d.Metrics,
		log:       d.Logger,

		emailTokenTTL:    cfg.EmailTokenTTL,
		lockoutThreshold: cfg.LockoutThreshold,
		lockoutDuration:  cfg.LockoutDuration,
		minStrength:      cfg.MinPasswordStrength,
		verificationURL:  cfg.VerificationURL,
	}
	if s.emailTokenTTL <= 0 {
		s.emailTokenTTL = 24 * time.Hour
	}
	if s.lockoutThreshold <= 0 {
		s.lockoutThreshold = 5
	}
	if s.lockoutDuration <= 0 {
		s.lockoutDuration = 30 * time.Minute
	}
	return s
}

// conflictRetries bounds optimistic update retries on a busy account.
const conflictRetries = 3

func retryOnConflict(fn func() error) error {
	var err error
	for i := 0; i < conflictRetries; i++ {
		err = fn()
		if !errors.Is(err, common.ErrVersionConflict) {
			return err
		}
	}
	return err
}

// modifyUser reads userID under a row lock inside a transaction, applies fn
// and writes the result back with a version check. Concurrent callers for
// the same user queue on the lock; a version conflict can then only come
// from a writer that skipped it, and the whole transaction is retried.
// Conflicts that outlast the retries are reported as common.ErrStorage.
func (s *authService) modifyUser(ctx context.Context, userID string, fn func(ctx context.Context, repos *store.Repos, u *models.User) error) (*models.User, error) {
	var out *models.User
	err := retryOnConflict(func() error {
		return s.store.WithTransaction(ctx, func(ctx context.Context, repos *store.Repos) error {
			u, err := repos.Users.GetByIDForUpdate(ctx, userID)
			if err != nil {
				return err
			}
			if err := fn(ctx, repos, u); err != nil {
				return err
			}
			u.UpdatedAt = s.clock.Now()
			if err := repos.Users.Update(ctx, u); err != nil {
				return err
			}
			out = u
			return nil
		})
	})
	if errors.Is(err, common.ErrVersionConflict) {
		return nil, fmt.Errorf("%w: user %s: too many concurrent updates", common.ErrStorage, userID)
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

// record appends an audit entry outside any transaction. A failed write is
// logged; the caller's result stands.
func (s *authService) record(ctx context.Context, userID *string, action string, details map[string]any) {
	if err := s.audit.Append(ctx, nil, userID, action, details); err != nil {
		s.log.Error(ctx, "audit write failed", "action", action, "error", err)
	}
}

func (s *authService) view(u *models.User) (*models.UserView, error) {
	first, err := s.decryptOptional(u.Fields.FirstName)
	if err != nil {
		return nil, err
	}
	last, err := s.decryptOptional(u.Fields.LastName)
	if err != nil {
		return nil, err
	}
	return &models.UserView{
		ID:                 u.ID,
		Email:              u.Email,
		Username:           u.Username,
		FirstName:          first,
		LastName:           last,
		Role:               u.Role,
		IsEmailVerified:    u.IsEmailVerified,
		IsTwoFactorEnabled: u.IsTwoFactorEnabled,
		CreatedAt:          u.CreatedAt,
		LastLoginAt:        u.LastLoginAt,
	}, nil
}

func (s *authService) encryptOptional(v string) (cryptox.EncryptedField, error) {
	if v == "" {
		return cryptox.EncryptedField{}, nil
	}
	return s.crypto.EncryptString(v)
}

func (s *authService) decryptOptional(f cryptox.EncryptedField) (string, error) {
	if f.IsZero() {
		return "", nil
	}
	return s.crypto.DecryptString(f)
}

// hashPassword returns the encrypted hash and salt for password.
func (s *authService) hashPassword(password string) (hash, salt cryptox.EncryptedField, err error) {
	rawHash, rawSalt, err := s.crypto.HashPassword([]byte(password), nil)
	if err != nil {
		return hash, salt, fmt.Errorf("%w: hash password: %w", common.ErrCryptoUnavailable, err)
	}
	if hash, err = s.crypto.Encrypt(rawHash); err != nil {
		return hash, salt, err
	}
	if salt, err = s.crypto.Encrypt(rawSalt); err != nil {
		return hash, salt, err
	}
	return hash, salt, nil
}

func (s *authService) checkPassword(u *models.User, password string) (bool, error) {
	hash, err := s.crypto.Decrypt(u.Fields.PasswordHash)
	if err != nil {
		return false, err
	}
	salt, err := s.crypto.Decrypt(u.Fields.PasswordSalt)
	if err != nil {
		return false, err
	}
	ok, err := s.crypto.VerifyPassword([]byte(password), hash, salt)
	if err != nil {
		return false, fmt.Errorf("%w: stored password hash: %w", common.ErrDecryption, err)
	}
	return ok, nil
}

func (s *authService) AuditLog(ctx context.Context, f audit.Filter) ([]models.AuditEntry, error) {
	entries, err := s.audit.List(ctx, f)
	if err != nil {
		return nil, common.StorageFailure("list audit log", err)
	}
	return entries, nil
}
