// Package roster builds the universe of audited users: everyone holding an
// elevated permission group plus everyone on the AWB check page.
// models.go describes the per-user record the rest of the pipeline works on.
package roster

import (
	"slices"
	"time"

	"toolforge.org/rights-audit/internal/mwtime"
	"toolforge.org/rights-audit/internal/state"
)

// AWBGroup is the synthetic group marker appended to users that appear on
// the AWB check page. It is not a real MediaWiki group.
const AWBGroup = "awb"

// UserRecord is the per-user state: identity, current group membership,
// activity timestamps and the notice/report cooldown bookkeeping.
//
// Groups are always kept sorted so rendering is deterministic. Timestamps
// default to mwtime.Never. Only ActorID, LastTime, LastNotice and
// LastReport survive between runs (see package state); everything else is
// re-derived every run.
type UserRecord struct {
	Username string
	ActorID  int64
	Groups   []string

	LastEdit        time.Time
	LastEditDeleted bool
	LastLog         time.Time
	LastRight       time.Time
	// LastTime is max(LastEdit, LastLog, LastRight) once the record has
	// been refreshed. Directly after loading from state it is the cached
	// value from the previous run.
	LastTime time.Time

	LastNotice time.Time
	LastReport time.Time
}

// NewUserRecord creates a fresh record with every timestamp set to Never.
func NewUserRecord(username string) *UserRecord {
	return &UserRecord{
		Username:   username,
		LastEdit:   mwtime.Never,
		LastLog:    mwtime.Never,
		LastRight:  mwtime.Never,
		LastTime:   mwtime.Never,
		LastNotice: mwtime.Never,
		LastReport: mwtime.Never,
	}
}

// FromState restores a record from its persisted subset. Fields that are
// not persisted keep their defaults.
func FromState(username string, e state.Entry) *UserRecord {
	u := NewUserRecord(username)
	u.ActorID = e.ActorID
	u.LastTime = e.LastTime
	u.LastNotice = e.LastNotice
	u.LastReport = e.LastReport
	return u
}

// StateEntry returns the persisted subset of the record.
func (u *UserRecord) StateEntry() state.Entry {
	return state.Entry{
		ActorID:    u.ActorID,
		LastTime:   u.LastTime,
		LastNotice: u.LastNotice,
		LastReport: u.LastReport,
	}
}

// HasGroup reports whether the user currently holds the named group.
func (u *UserRecord) HasGroup(name string) bool {
	return slices.Contains(u.Groups, name)
}

// AddGroup appends a group and re-sorts, keeping the deterministic order.
func (u *UserRecord) AddGroup(name string) {
	u.Groups = append(u.Groups, name)
	slices.Sort(u.Groups)
}
