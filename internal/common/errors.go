// Package common — errors.go defines the sentinel errors shared by all
// modules of the bot. Callers match them with errors.Is to decide between
// aborting the run, skipping a stage or exiting cleanly.
package common

import "errors"

var (
	// ErrDisabled — the on-wiki configuration has enable=false.
	// Not a failure: the run exits cleanly without doing anything.
	ErrDisabled = errors.New("task is disabled in the on-wiki configuration")

	// ErrActorNotFound — a roster username has no actor id in the replica.
	// Fatal for the whole run: the roster cannot be trusted on partial data.
	ErrActorNotFound = errors.New("no actor id found for username")

	// ErrMarkerNotFound — a splice marker is missing from a target page.
	// The affected publish stage is skipped; other stages still run.
	ErrMarkerNotFound = errors.New("marker not found in page text")
)
