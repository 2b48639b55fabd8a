// Package metadata stores small named blobs of local key material.
package metadata

import (
	"context"
)

// Repository holds write-once entries: a value, once stored, is never
// replaced or removed.
type Repository interface {
	// Get returns (nil, nil) when key is absent.
	Get(ctx context.Context, key string) ([]byte, error)
	// SetIfAbsent writes value only when key has no entry yet and reports
	// whether it did.
	SetIfAbsent(ctx context.Context, key string, value []byte) (bool, error)
}
