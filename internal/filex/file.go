// Package filex prepares the local files credcore keeps on disk.
package filex

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// SQLitePath extracts the database file from a SQLite DSN such as
// "file:data/credcore.db?_pragma=busy_timeout(5000)". In-memory databases
// and empty DSNs yield "".
func SQLitePath(dsn string) string {
	path, query, _ := strings.Cut(strings.TrimPrefix(dsn, "file:"), "?")
	if path == "" || path == ":memory:" {
		return ""
	}
	if q, err := url.ParseQuery(query); err == nil && q.Get("mode") == "memory" {
		return ""
	}
	return path
}

// EnsureParentDir creates the directory that will hold path, readable only
// by the owner, and returns it.
func EnsureParentDir(path string) (string, error) {
	dir, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return "", fmt.Errorf("abs %s: %w", path, err)
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", dir, err)
	}

	return dir, nil
}
