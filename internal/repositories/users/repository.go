// Package users persists user accounts.
package users

import (
	"context"

	"github.com/dmitrijs2005/credcore/internal/models"
)

// Repository is the users collection, indexed by id, email and username.
type Repository interface {
	// Create inserts u with Version 1. Email or username collisions
	// return common.ErrAlreadyExists.
	Create(ctx context.Context, u *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	// GetByIDForUpdate reads the user and holds a row lock on it until the
	// surrounding transaction ends. On SQLite, where a write transaction
	// already excludes every other writer, it is a plain read.
	GetByIDForUpdate(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	// Update writes every mutable column if the stored version still equals
	// u.Version, then increments u.Version. A stale version returns
	// common.ErrVersionConflict.
	Update(ctx context.Context, u *models.User) error
}
