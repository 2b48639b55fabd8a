// Package store is the credential store: it opens the configured SQL
// backend, applies migrations and hands out repositories bound either to
// the connection pool or to a single transaction.
package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/credcore/internal/common"
	"github.com/dmitrijs2005/credcore/internal/dbx"
	"github.com/dmitrijs2005/credcore/internal/migrations"
	"github.com/dmitrijs2005/credcore/internal/repositories/auditlog"
	"github.com/dmitrijs2005/credcore/internal/repositories/emailtokens"
	"github.com/dmitrijs2005/credcore/internal/repositories/metadata"
	"github.com/dmitrijs2005/credcore/internal/repositories/sessions"
	"github.com/dmitrijs2005/credcore/internal/repositories/twofactor"
	"github.com/dmitrijs2005/credcore/internal/repositories/users"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Repos is the set of collections bound to one DBTX.
type Repos struct {
	Users       users.Repository
	Sessions    sessions.Repository
	EmailTokens emailtokens.Repository
	TwoFactor   twofactor.Repository
	AuditLog    auditlog.Repository
	Metadata    metadata.Repository
}

// NewRepos binds every repository to db.
func NewRepos(db dbx.DBTX, d dbx.Dialect) *Repos {
	return &Repos{
		Users:       users.NewSQLRepository(db, d),
		Sessions:    sessions.NewSQLRepository(db, d),
		EmailTokens: emailtokens.NewSQLRepository(db, d),
		TwoFactor:   twofactor.NewSQLRepository(db, d),
		AuditLog:    auditlog.NewSQLRepository(db, d),
		Metadata:    metadata.NewSQLRepository(db, d),
	}
}

type Store struct {
	db      *sql.DB
	dialect dbx.Dialect
	repos   *Repos
}

// runMigrations is a seam for tests.
var runMigrations = migrations.Up

// Open connects to dsn with the driver for d and migrates the schema.
//
// SQLite allows a single writer, so its pool is pinned to one connection
// and transactions from concurrent callers queue up behind each other.
func Open(ctx context.Context, d dbx.Dialect, dsn string) (*Store, error) {
	db, err := sql.Open(d.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", common.ErrStorage, d, err)
	}
	if d == dbx.SQLite {
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: ping %s: %w", common.ErrStorage, d, err)
	}

	if err := runMigrations(ctx, db, d.GooseDialect(), string(d)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: migrate: %w", common.ErrStorage, err)
	}

	return New(db, d), nil
}

// New wraps an already migrated database.
func New(db *sql.DB, d dbx.Dialect) *Store {
	return &Store{db: db, dialect: d, repos: NewRepos(db, d)}
}

// Repos returns repositories bound to the pool. Each call is its own
// statement; use WithTransaction for multi-step writes.
func (s *Store) Repos() *Repos {
	return s.repos
}

func (s *Store) Dialect() dbx.Dialect {
	return s.dialect
}

// WithTransaction runs fn with repositories bound to one transaction.
// It commits when fn returns nil and rolls back on error or panic; the
// panic is re-raised. Inside fn only the passed repos may be used.
//
// Errors that are not already domain errors come back wrapped in
// common.ErrStorage.
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context, repos *Repos) error) error {
	bind := func(tx dbx.DBTX) *Repos { return NewRepos(tx, s.dialect) }
	return common.StorageFailure("transaction", dbx.WithTx(ctx, s.db, bind, fn))
}

func (s *Store) Close() error {
	return s.db.Close()
}
