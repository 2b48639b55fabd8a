// Package keymgr obtains the process-wide field encryption key.
//
// The key lives in the local metadata table next to the data it protects,
// so it guards against casual inspection of raw storage dumps but not
// against an attacker who can read the whole store.
package keymgr

import (
	"context"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/credcore/internal/common"
	"github.com/dmitrijs2005/credcore/internal/cryptox"
	"github.com/dmitrijs2005/credcore/internal/repositories/metadata"
)

// Manager loads or creates the key once and caches it.
type Manager struct {
	repo    metadata.Repository
	name    string
	keyFunc func() ([]byte, error)

	mu  sync.Mutex
	key []byte
}

func New(repo metadata.Repository) *Manager {
	return &Manager{repo: repo, name: common.FieldKeyName, keyFunc: cryptox.GenerateKey}
}

// GetOrCreateKey returns the stored key, generating and persisting a new
// one on first use. When two processes race on an empty store both end
// up with whichever key was inserted first.
//
// Every failure wraps common.ErrCryptoUnavailable.
func (m *Manager) GetOrCreateKey(ctx context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.key != nil {
		return m.key, nil
	}

	key, err := m.repo.Get(ctx, m.name)
	if err != nil {
		return nil, fmt.Errorf("%w: read key: %w", common.ErrCryptoUnavailable, err)
	}

	if key == nil {
		fresh, err := m.keyFunc()
		if err != nil {
			return nil, fmt.Errorf("%w: generate key: %w", common.ErrCryptoUnavailable, err)
		}
		if _, err := m.repo.SetIfAbsent(ctx, m.name, fresh); err != nil {
			return nil, fmt.Errorf("%w: store key: %w", common.ErrCryptoUnavailable, err)
		}
		key, err = m.repo.Get(ctx, m.name)
		if err != nil {
			return nil, fmt.Errorf("%w: read key: %w", common.ErrCryptoUnavailable, err)
		}
	}

	if len(key) != cryptox.KeySize {
		return nil, fmt.Errorf("%w: stored key has %d bytes", common.ErrCryptoUnavailable, len(key))
	}

	m.key = key
	return key, nil
}
