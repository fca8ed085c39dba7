// Package activity — service.go recomputes the unified "last active"
// timestamp for records whose cached value has gone stale.
package activity

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"toolforge.org/rights-audit/internal/features/roster"
	"toolforge.org/rights-audit/internal/mwtime"
)

// Source is the query surface the resolver needs; satisfied by *Repository.
type Source interface {
	LastEdit(ctx context.Context, actorID int64) (time.Time, error)
	LastDeletedEdit(ctx context.Context, actorID int64) (time.Time, error)
	LastLog(ctx context.Context, actorID int64) (time.Time, error)
	LastRightsChange(ctx context.Context, username string) (time.Time, error)
}

// Resolver refreshes stale user records from the activity source.
type Resolver struct {
	src Source
	// Records whose cached LastTime is newer than this are trusted as-is;
	// everything older is re-queried. Same horizon as report display, so a
	// record is refreshed exactly when it could still show up somewhere.
	staleHorizon time.Time
}

func NewResolver(src Source, staleHorizon time.Time) *Resolver {
	return &Resolver{src: src, staleHorizon: staleHorizon}
}

// Refresh re-derives activity timestamps for every stale record.
// Postcondition for refreshed records:
// LastTime == max(LastEdit, LastLog, LastRight).
func (r *Resolver) Refresh(ctx context.Context, records map[string]*roster.UserRecord) error {
	refreshed := 0
	for _, rec := range records {
		if rec.LastTime.After(r.staleHorizon) {
			// Fresh enough; trusting the cache bounds query volume.
			continue
		}
		if err := r.refreshOne(ctx, rec); err != nil {
			return err
		}
		refreshed++
	}

	log.WithFields(log.Fields{
		"total":     len(records),
		"refreshed": refreshed,
	}).Info("Activity resolved")
	return nil
}

func (r *Resolver) refreshOne(ctx context.Context, rec *roster.UserRecord) error {
	lastEdit, err := r.src.LastEdit(ctx, rec.ActorID)
	if err != nil {
		return err
	}
	rec.LastEdit = lastEdit
	rec.LastEditDeleted = false

	// Deleted revisions still count as activity: an admin deleting a page
	// should not make its author look inactive. Only consulted when the
	// live edit alone would put the user on the report.
	if rec.LastEdit.Before(r.staleHorizon) {
		lastDeleted, err := r.src.LastDeletedEdit(ctx, rec.ActorID)
		if err != nil {
			return err
		}
		if lastDeleted.After(rec.LastEdit) {
			rec.LastEdit = lastDeleted
			rec.LastEditDeleted = true
		}
	}

	if rec.LastLog, err = r.src.LastLog(ctx, rec.ActorID); err != nil {
		return err
	}
	if rec.LastRight, err = r.src.LastRightsChange(ctx, rec.Username); err != nil {
		return err
	}

	rec.LastTime = mwtime.Max(rec.LastEdit, rec.LastLog, rec.LastRight)
	return nil
}
