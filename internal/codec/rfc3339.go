// Package codec provides the time/JSON conventions shared by every layer of
// signaldb: millisecond-truncated UTC instants, and the recursive coercion
// that turns RFC3339 strings inside an arbitrary document into time.Time
// values before that document reaches the storage engine.
package codec

import (
	"regexp"
	"time"
)

// rfc3339Exact matches exactly "YYYY-MM-DDTHH:MM:SSZ" — the wire shape
// signaldb accepts, not the full RFC3339 grammar (no offsets, no fractional
// seconds; those are a storage-layer concern, not an input-coercion one).
var rfc3339Exact = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}Z$`)

// TruncateMillis truncates a time.Time to millisecond precision. Every
// revision instant and every stored timestamp is truncated this way so
// that two instants compare equal regardless of how much sub-millisecond
// jitter the originating clock produced.
func TruncateMillis(t time.Time) time.Time {
	return t.Truncate(time.Millisecond)
}

// Now returns the current UTC instant, millisecond-truncated. Callers that
// need the single "now" for a write batch should call this once and reuse
// the result — never call it per-record.
func Now() time.Time {
	return TruncateMillis(time.Now().UTC())
}

// IsRFC3339 reports whether s matches the exact "YYYY-MM-DDTHH:MM:SSZ" form.
func IsRFC3339(s string) bool {
	return rfc3339Exact.MatchString(s)
}

// ParseRFC3339 parses a string matching IsRFC3339 into a UTC,
// millisecond-truncated time.Time. It parses with time.RFC3339, so it also
// accepts fractional seconds and numeric offsets that IsRFC3339 rejects;
// callers that want only the exact form check IsRFC3339 first.
func ParseRFC3339(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	return TruncateMillis(t.UTC()), nil
}

// FormatRFC3339 renders t as "YYYY-MM-DDTHH:MM:SSZ", UTC, seconds precision
// — the exact form IsRFC3339 accepts.
func FormatRFC3339(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format("2006-01-02T15:04:05Z")
}
