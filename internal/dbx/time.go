package dbx

import (
	"database/sql"
	"time"
)

// Timestamps are stored as Unix nanoseconds in BIGINT/INTEGER columns so
// both dialects round-trip them exactly.

func Nanos(t time.Time) int64 { return t.UnixNano() }

func FromNanos(n int64) time.Time { return time.Unix(0, n).UTC() }

// NullNanos converts an optional time for storage.
func NullNanos(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}

// TimePtr converts a nullable column back to an optional time.
func TimePtr(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := FromNanos(n.Int64)
	return &t
}
