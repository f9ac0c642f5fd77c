package sqlite

import (
	"database/sql"
	"time"
)

// Timestamps are stored fixed-width in UTC so that TEXT ordering matches
// time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// optTime maps the zero time to NULL.
func optTime(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(t), Valid: true}
}

// parseTime yields the zero time for NULL, empty or malformed columns.
func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// optString maps "" to NULL.
func optString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
