package store

import (
	"database/sql"
	"time"
)

// nullString converts a string to sql.NullString, mapping "" to NULL.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// stringValue unwraps a sql.NullString, mapping NULL to "".
func stringValue(ns sql.NullString) string {
	if !ns.Valid {
		return ""
	}
	return ns.String
}

// timeToNullInt64 converts an optional time to Unix seconds, mapping nil to NULL.
func timeToNullInt64(t *time.Time) sql.NullInt64 {
	if t == nil || t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.Unix(), Valid: true}
}

// timeValueToNullInt64 converts a time value to Unix seconds, mapping the
// zero time to NULL.
func timeValueToNullInt64(t time.Time) sql.NullInt64 {
	if t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.Unix(), Valid: true}
}

// timeFromNull unwraps Unix seconds into an optional time.
func timeFromNull(ni sql.NullInt64) *time.Time {
	if !ni.Valid {
		return nil
	}
	t := time.Unix(ni.Int64, 0).UTC()
	return &t
}

// timeValueFromNull unwraps Unix seconds into a time value, mapping NULL to
// the zero time.
func timeValueFromNull(ni sql.NullInt64) time.Time {
	if !ni.Valid {
		return time.Time{}
	}
	return time.Unix(ni.Int64, 0).UTC()
}
