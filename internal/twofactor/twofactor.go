// Package twofactor enrolls and verifies RFC 6238 time-based one-time
// codes and single-use backup codes.
package twofactor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/credcore/internal/clock"
	"github.com/dmitrijs2005/credcore/internal/common"
	"github.com/dmitrijs2005/credcore/internal/cryptox"
	"github.com/dmitrijs2005/credcore/internal/models"
	tfrepo "github.com/dmitrijs2005/credcore/internal/repositories/twofactor"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	// SecretSize is 160 bits, the RFC 4226 recommended HMAC-SHA1 key size.
	SecretSize = 20
	Period     = 30
	// Skew accepts codes from the previous and next window as well.
	Skew            = 1
	BackupCodeCount = 10
	DefaultIssuer   = "credcore"
)

var validateOpts = totp.ValidateOpts{
	Period:    Period,
	Skew:      Skew,
	Digits:    otp.DigitsSix,
	Algorithm: otp.AlgorithmSHA1,
}

// Enrollment is returned once at enrollment time. The plain secret and
// backup codes are not retrievable afterwards.
type Enrollment struct {
	Secret          string   `json:"secret"`
	ProvisioningURI string   `json:"provisioning_uri"`
	BackupCodes     []string `json:"backup_codes"`
}

type Service struct {
	crypto *cryptox.Service
	clock  clock.Clock
	repo   tfrepo.Repository
	issuer string
}

func New(crypto *cryptox.Service, c clock.Clock, repo tfrepo.Repository, issuer string) *Service {
	if issuer == "" {
		issuer = DefaultIssuer
	}
	return &Service{crypto: crypto, clock: c, repo: repo, issuer: issuer}
}

func (s *Service) pick(repo tfrepo.Repository) tfrepo.Repository {
	if repo == nil {
		return s.repo
	}
	return repo
}

// Enroll creates a fresh secret and backup codes for userID, replacing any
// earlier enrollment. account is the label shown by authenticator apps.
func (s *Service) Enroll(ctx context.Context, repo tfrepo.Repository, userID, account string) (*Enrollment, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.issuer,
		AccountName: account,
		Period:      Period,
		SecretSize:  SecretSize,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: totp secret: %w", common.ErrCryptoUnavailable, err)
	}

	encrypted, err := s.crypto.EncryptString(key.Secret())
	if err != nil {
		return nil, err
	}

	codes := make([]string, 0, BackupCodeCount)
	hashes := make([]string, 0, BackupCodeCount)
	for i := 0; i < BackupCodeCount; i++ {
		code, err := NewBackupCode()
		if err != nil {
			return nil, fmt.Errorf("%w: backup code: %w", common.ErrCryptoUnavailable, err)
		}
		codes = append(codes, FormatBackupCode(code))
		hashes = append(hashes, BackupCodeHash(userID, code))
	}

	err = s.pick(repo).Upsert(ctx, &models.TwoFactorSecret{
		UserID:           userID,
		EncryptedSecret:  encrypted,
		BackupCodeHashes: hashes,
		CreatedAt:        s.clock.Now(),
	})
	if err != nil {
		return nil, fmt.Errorf("store totp secret: %w", err)
	}

	return &Enrollment{Secret: key.Secret(), ProvisioningURI: key.URL(), BackupCodes: codes}, nil
}

// Verify checks code against the previous, current and next 30-second
// window. A user without an enrollment never verifies.
func (s *Service) Verify(ctx context.Context, userID, code string) (bool, error) {
	return s.verifyAt(ctx, userID, code, s.clock.Now())
}

func (s *Service) verifyAt(ctx context.Context, userID, code string, at time.Time) (bool, error) {
	rec, err := s.repo.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("load totp secret: %w", err)
	}

	secret, err := s.crypto.DecryptString(rec.EncryptedSecret)
	if err != nil {
		return false, err
	}

	// Wrong length or non-digit input is simply a miss.
	ok, err := totp.ValidateCustom(code, secret, at, validateOpts)
	if err != nil {
		return false, nil
	}
	return ok, nil
}

const consumeAttempts = 3

// ConsumeBackupCode burns a matching backup code. Each code works once,
// even under concurrent use.
func (s *Service) ConsumeBackupCode(ctx context.Context, repo tfrepo.Repository, userID, code string) (bool, error) {
	repo = s.pick(repo)
	canonical := CanonicalizeBackupCode(code)
	if canonical == "" {
		return false, nil
	}
	want := BackupCodeHash(userID, canonical)

	for attempt := 0; attempt < consumeAttempts; attempt++ {
		rec, err := repo.Get(ctx, userID)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return false, nil
			}
			return false, fmt.Errorf("load backup codes: %w", err)
		}

		idx := matchHash(rec.BackupCodeHashes, want)
		if idx < 0 {
			return false, nil
		}

		next := make([]string, 0, len(rec.BackupCodeHashes)-1)
		next = append(next, rec.BackupCodeHashes[:idx]...)
		next = append(next, rec.BackupCodeHashes[idx+1:]...)

		err = repo.ReplaceBackupCodes(ctx, userID, rec.BackupCodeHashes, next)
		if err == nil {
			return true, nil
		}
		if !errors.Is(err, common.ErrVersionConflict) {
			return false, fmt.Errorf("consume backup code: %w", err)
		}
	}
	return false, common.ErrVersionConflict
}

// Remove deletes the enrollment.
func (s *Service) Remove(ctx context.Context, repo tfrepo.Repository, userID string) error {
	if err := s.pick(repo).Delete(ctx, userID); err != nil {
		return fmt.Errorf("remove totp secret: %w", err)
	}
	return nil
}
