package services

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/credcore/internal/audit"
	"github.com/dmitrijs2005/credcore/internal/common"
	"github.com/dmitrijs2005/credcore/internal/models"
	"github.com/dmitrijs2005/credcore/internal/store"
)

// Logout deletes the session. Logging out of an unknown session is a no-op.
func (s *authService) Logout(ctx context.Context, sessionID string) error {
	sess, err := s.store.Repos().Sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil
		}
		return common.StorageFailure("load session", err)
	}

	return s.store.WithTransaction(ctx, func(ctx context.Context, repos *store.Repos) error {
		if err := s.sessions.Invalidate(ctx, repos.Sessions, sess.SessionID); err != nil {
			return err
		}
		return s.audit.Append(ctx, repos.AuditLog, &sess.UserID, audit.ActionLogout, nil)
	})
}

// Authenticate returns the live session for sessionID and records the
// activity. Expired sessions are removed and return
// common.ErrSessionExpired.
func (s *authService) Authenticate(ctx context.Context, sessionID string) (*models.Session, error) {
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.Touch(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// AuthenticateToken is Authenticate for a signed bearer token. The token's
// own expiry is checked first; the stored session still has the last word.
func (s *authService) AuthenticateToken(ctx context.Context, token string) (*models.Session, error) {
	if s.tokens == nil {
		return nil, common.ErrInvalidToken
	}
	sid, err := s.tokens.Parse(token)
	if err != nil {
		return nil, err
	}
	return s.Authenticate(ctx, sid)
}
