// Package migrations embeds the goose schema migrations for every supported
// SQL dialect. Each dialect lives in its own directory.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sync"

	"github.com/pressly/goose/v3"
)

//go:embed sqlite/*.sql postgres/*.sql
var Migrations embed.FS

var mu sync.Mutex

// Up applies every pending migration in dir (one of "sqlite" or
// "postgres") using the given goose dialect.
//
// goose keeps its base FS and dialect in package state, so concurrent
// callers are serialized.
func Up(ctx context.Context, db *sql.DB, gooseDialect, dir string) error {
	mu.Lock()
	defer mu.Unlock()

	goose.SetBaseFS(Migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect(gooseDialect); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	return goose.UpContext(ctx, db, dir)
}
