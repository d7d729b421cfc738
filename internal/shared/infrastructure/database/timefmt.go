package database

import (
	"database/sql"
	"time"
)

// TimestampLayout is the text layout used for timestamps in SQLite. It is
// fixed-width so lexical ordering matches chronological ordering.
const TimestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// FormatTimestamp renders t in UTC with TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ParseTimestamp parses a value written by FormatTimestamp. RFC 3339 values
// are accepted as well.
func ParseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(TimestampLayout, s)
	if err != nil {
		return time.Parse(time.RFC3339Nano, s)
	}
	return t, nil
}

// NullTimestamp formats an optional timestamp.
func NullTimestamp(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: FormatTimestamp(*t), Valid: true}
}

// ParseNullTimestamp parses an optional timestamp column.
func ParseNullTimestamp(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil
	}
	t, err := ParseTimestamp(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
