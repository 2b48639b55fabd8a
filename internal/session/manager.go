// Package session manages login sessions. Expiry is a passive TTL check
// against the injected clock; nothing runs in the background.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/credcore/internal/clock"
	"github.com/dmitrijs2005/credcore/internal/common"
	"github.com/dmitrijs2005/credcore/internal/models"
	"github.com/dmitrijs2005/credcore/internal/repositories/sessions"
)

const DefaultTTL = 24 * time.Hour

type Manager struct {
	clock clock.Clock
	repo  sessions.Repository
	ttl   time.Duration
}

func NewManager(c clock.Clock, repo sessions.Repository, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{clock: c, repo: repo, ttl: ttl}
}

func (m *Manager) TTL() time.Duration { return m.ttl }

func (m *Manager) pick(repo sessions.Repository) sessions.Repository {
	if repo == nil {
		return m.repo
	}
	return repo
}

// Create persists a new session for userID with a 256-bit random id.
// Pass a transaction-bound repo to make it part of a larger write, or nil.
func (m *Manager) Create(ctx context.Context, repo sessions.Repository, userID string) (*models.Session, error) {
	id, err := common.MakeRandHexString(common.RandomTokenBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: session id: %w", common.ErrCryptoUnavailable, err)
	}

	now := m.clock.Now()
	s := &models.Session{
		SessionID:    id,
		UserID:       userID,
		CreatedAt:    now,
		ExpiresAt:    now.Add(m.ttl),
		LastActivity: now,
	}
	if err := m.pick(repo).Create(ctx, s); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return s, nil
}

// IsValid reports whether s has not yet expired.
func (m *Manager) IsValid(s *models.Session) bool {
	return s != nil && m.clock.Now().Before(s.ExpiresAt)
}

// Get loads a live session. Unknown ids return common.ErrInvalidToken;
// expired sessions are deleted and return common.ErrSessionExpired.
func (m *Manager) Get(ctx context.Context, sessionID string) (*models.Session, error) {
	s, err := m.repo.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidToken
		}
		return nil, fmt.Errorf("get session: %w", err)
	}

	if !m.IsValid(s) {
		if err := m.repo.Delete(ctx, sessionID); err != nil {
			return nil, fmt.Errorf("delete expired session: %w", err)
		}
		return nil, common.ErrSessionExpired
	}
	return s, nil
}

// Touch records activity on the session.
func (m *Manager) Touch(ctx context.Context, s *models.Session) error {
	now := m.clock.Now()
	if err := m.repo.UpdateLastActivity(ctx, s.SessionID, now); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrInvalidToken
		}
		return fmt.Errorf("touch session: %w", err)
	}
	s.LastActivity = now
	return nil
}

// Invalidate deletes the session. Unknown ids are not an error.
func (m *Manager) Invalidate(ctx context.Context, repo sessions.Repository, sessionID string) error {
	if err := m.pick(repo).Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("invalidate session: %w", err)
	}
	return nil
}

// InvalidateAll deletes every session of userID.
func (m *Manager) InvalidateAll(ctx context.Context, repo sessions.Repository, userID string) (int64, error) {
	n, err := m.pick(repo).DeleteByUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("invalidate sessions: %w", err)
	}
	return n, nil
}

// PurgeExpired removes sessions whose expiry has passed.
func (m *Manager) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := m.repo.DeleteExpired(ctx, m.clock.Now())
	if err != nil {
		return 0, fmt.Errorf("purge sessions: %w", err)
	}
	return n, nil
}
