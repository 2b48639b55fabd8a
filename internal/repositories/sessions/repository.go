// Package sessions persists login sessions, indexed by user and expiry.
package sessions

import (
	"context"
	"time"

	"github.com/dmitrijs2005/credcore/internal/models"
)

type Repository interface {
	Create(ctx context.Context, s *models.Session) error
	// Get returns common.ErrorNotFound for unknown ids.
	Get(ctx context.Context, sessionID string) (*models.Session, error)
	ListByUser(ctx context.Context, userID string) ([]models.Session, error)
	// UpdateLastActivity is the only mutation a session allows.
	UpdateLastActivity(ctx context.Context, sessionID string, at time.Time) error
	Delete(ctx context.Context, sessionID string) error
	DeleteByUser(ctx context.Context, userID string) (int64, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
