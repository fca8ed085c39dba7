// Package mwtime converts between the MediaWiki 14-digit timestamp format
// (yyyymmddhhmmss, always UTC) and time.Time. All timestamps in the replica
// database, the state file and the audit logic go through this codec, so the
// rest of the code only ever sees time.Time values.
package mwtime

import (
	"fmt"
	"time"
)

// Layout is the MediaWiki binary timestamp format.
const Layout = "20060102150405"

// Never is the sentinel for "no recorded activity". It compares older than
// any real timestamp the replica can return.
var Never = time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)

// IsNever reports whether t is the "no record" sentinel.
func IsNever(t time.Time) bool {
	return t.Equal(Never)
}

// Parse decodes a 14-digit MediaWiki timestamp. An empty string decodes to
// Never, which is how the state file represents missing fields.
func Parse(s string) (time.Time, error) {
	if s == "" {
		return Never, nil
	}
	t, err := time.ParseInLocation(Layout, s, time.UTC)
	if err != nil {
		return Never, fmt.Errorf("bad mediawiki timestamp %q: %w", s, err)
	}
	return t, nil
}

// Format encodes t in the 14-digit MediaWiki format.
func Format(t time.Time) string {
	return t.UTC().Format(Layout)
}

// Max returns the latest of the given timestamps. With no arguments it
// returns Never.
func Max(ts ...time.Time) time.Time {
	out := Never
	for _, t := range ts {
		if t.After(out) {
			out = t
		}
	}
	return out
}
