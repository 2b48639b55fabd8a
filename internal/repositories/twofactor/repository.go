// Package twofactor persists TOTP enrollments keyed by user id.
package twofactor

import (
	"context"

	"github.com/dmitrijs2005/credcore/internal/models"
)

type Repository interface {
	// Upsert stores s, replacing any earlier enrollment for the user.
	Upsert(ctx context.Context, s *models.TwoFactorSecret) error
	// Get returns common.ErrorNotFound when the user has not enrolled.
	Get(ctx context.Context, userID string) (*models.TwoFactorSecret, error)
	// ReplaceBackupCodes swaps the stored code hashes only if they still
	// equal prev, and returns common.ErrVersionConflict otherwise.
	ReplaceBackupCodes(ctx context.Context, userID string, prev, next []string) error
	Delete(ctx context.Context, userID string) error
}
