// Package common contains small utilities used across the project.
package common

import "strings"

// NormalizeTitle converts a username to its page-title form: spaces become
// underscores. The rights log keys entries by the title of the user page,
// not by actor id, so the rights-change query needs this form.
func NormalizeTitle(username string) string {
	return strings.ReplaceAll(username, " ", "_")
}

// Truncate shortens s for log output. Logged page texts can be tens of
// kilobytes; fifty characters is enough to recognise a page.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
