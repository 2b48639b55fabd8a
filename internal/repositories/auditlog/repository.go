// Package auditlog persists the append-only security event log. There is
// deliberately no update or delete operation.
package auditlog

import (
	"context"

	"github.com/dmitrijs2005/credcore/internal/models"
)

// Filter narrows List. Zero values match everything; Limit <= 0 means
// DefaultLimit.
type Filter struct {
	UserID string
	Action string
	Limit  int
}

const DefaultLimit = 100

type Repository interface {
	// Append stores e and sets e.ID.
	Append(ctx context.Context, e *models.AuditEntry) error
	// List returns matching entries newest first.
	List(ctx context.Context, f Filter) ([]models.AuditEntry, error)
}
