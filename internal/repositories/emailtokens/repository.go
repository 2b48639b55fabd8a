// Package emailtokens persists single-use email verification tokens.
package emailtokens

import (
	"context"

	"github.com/dmitrijs2005/credcore/internal/models"
)

type Repository interface {
	Create(ctx context.Context, t *models.EmailToken) error
	// Consume deletes the token and returns it. Only one caller can consume
	// a given token; the rest get common.ErrorNotFound.
	Consume(ctx context.Context, token string) (*models.EmailToken, error)
	DeleteByUser(ctx context.Context, userID string) error
}
