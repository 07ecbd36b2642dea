package dbx

import (
	"database/sql"
	"time"
)

// Timestamps are stored as integer unix nanoseconds so SQLite comparisons
// and ordering stay exact regardless of driver time formatting.

// UnixNano converts a time to its stored integer form.
func UnixNano(t time.Time) int64 {
	return t.UnixNano()
}

// NullUnixNano converts an optional time to its stored form.
func NullUnixNano(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}

// TimeFromUnixNano restores a stored timestamp.
func TimeFromUnixNano(v int64) time.Time {
	return time.Unix(0, v).UTC()
}

// TimePtrFromNull restores an optional stored timestamp.
func TimePtrFromNull(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.Unix(0, v.Int64).UTC()
	return &t
}
