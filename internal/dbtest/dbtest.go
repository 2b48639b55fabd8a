// Package dbtest opens throwaway migrated databases for package tests.
package dbtest

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/dmitrijs2005/credcore/internal/dbx"
	"github.com/dmitrijs2005/credcore/internal/migrations"
	_ "modernc.org/sqlite"
)

// SQLiteDSN returns a DSN for a file-backed SQLite database at path with a
// busy timeout, matching what the store uses.
func SQLiteDSN(path string) string {
	return fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", path)
}

// OpenSQLite returns a migrated SQLite database in t.TempDir. The pool is
// limited to one connection and closed when the test ends.
func OpenSQLite(t testing.TB) *sql.DB {
	t.Helper()

	db, err := sql.Open(dbx.SQLite.DriverName(), SQLiteDSN(filepath.Join(t.TempDir(), "test.db")))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	if err := migrations.Up(context.Background(), db, dbx.SQLite.GooseDialect(), "sqlite"); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}
