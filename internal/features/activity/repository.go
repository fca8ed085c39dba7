// Package activity answers "when was this user last active" from the wiki
// replica. repository.go holds the four point queries; each is memoized in
// a per-run cache owned by the repository instance, so a user appearing in
// both rosters costs one query per kind.
package activity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"toolforge.org/rights-audit/internal/common"
	"toolforge.org/rights-audit/internal/mwtime"
)

// Repository runs the activity queries. Create one per run: the memo
// caches must not outlive a run, or they would serve stale answers.
type Repository struct {
	db *pgxpool.Pool

	lastEdit        map[int64]time.Time
	lastDeletedEdit map[int64]time.Time
	lastLog         map[int64]time.Time
	lastRight       map[string]time.Time
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{
		db:              db,
		lastEdit:        make(map[int64]time.Time),
		lastDeletedEdit: make(map[int64]time.Time),
		lastLog:         make(map[int64]time.Time),
		lastRight:       make(map[string]time.Time),
	}
}

// LastEdit returns the timestamp of the user's most recent live edit.
func (r *Repository) LastEdit(ctx context.Context, actorID int64) (time.Time, error) {
	if t, ok := r.lastEdit[actorID]; ok {
		return t, nil
	}
	query := `
		SELECT rev_timestamp
		FROM revision_userindex
		WHERE rev_actor = $1
		ORDER BY rev_id DESC
		LIMIT 1
	`
	t, err := r.queryTimestamp(ctx, query, actorID)
	if err != nil {
		return mwtime.Never, fmt.Errorf("last edit query for actor %d: %w", actorID, err)
	}
	r.lastEdit[actorID] = t
	return t, nil
}

// LastDeletedEdit returns the timestamp of the user's most recent edit that
// now lives in the archive (deleted or suppressed revisions).
func (r *Repository) LastDeletedEdit(ctx context.Context, actorID int64) (time.Time, error) {
	if t, ok := r.lastDeletedEdit[actorID]; ok {
		return t, nil
	}
	query := `
		SELECT ar_timestamp
		FROM archive
		WHERE ar_actor = $1
		ORDER BY ar_timestamp DESC
		LIMIT 1
	`
	t, err := r.queryTimestamp(ctx, query, actorID)
	if err != nil {
		return mwtime.Never, fmt.Errorf("last deleted edit query for actor %d: %w", actorID, err)
	}
	r.lastDeletedEdit[actorID] = t
	return t, nil
}

// LastLog returns the timestamp of the user's most recent log action.
func (r *Repository) LastLog(ctx context.Context, actorID int64) (time.Time, error) {
	if t, ok := r.lastLog[actorID]; ok {
		return t, nil
	}
	query := `
		SELECT log_timestamp
		FROM logging_userindex
		WHERE log_actor = $1
		ORDER BY log_id DESC
		LIMIT 1
	`
	t, err := r.queryTimestamp(ctx, query, actorID)
	if err != nil {
		return mwtime.Never, fmt.Errorf("last log query for actor %d: %w", actorID, err)
	}
	r.lastLog[actorID] = t
	return t, nil
}

// LastRightsChange returns the timestamp of the most recent rights change
// targeting the user. The rights log is keyed by the user-page title, so
// the lookup key is the normalized username, not the actor id.
func (r *Repository) LastRightsChange(ctx context.Context, username string) (time.Time, error) {
	key := common.NormalizeTitle(username)
	if t, ok := r.lastRight[key]; ok {
		return t, nil
	}
	query := `
		SELECT log_timestamp
		FROM logging_userindex
		WHERE log_type = 'rights'
		    AND log_namespace = 2
		    AND log_title = $1
		ORDER BY log_id DESC
		LIMIT 1
	`
	t, err := r.queryTimestamp(ctx, query, key)
	if err != nil {
		return mwtime.Never, fmt.Errorf("last rights change query for %q: %w", username, err)
	}
	r.lastRight[key] = t
	return t, nil
}

// queryTimestamp runs a single-row timestamp query. No row maps to Never;
// any other failure is returned as-is (the caller treats it as fatal, no
// retries — a retry would be masked by the memo cache anyway).
func (r *Repository) queryTimestamp(ctx context.Context, query string, arg any) (time.Time, error) {
	var raw string
	err := r.db.QueryRow(ctx, query, arg).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return mwtime.Never, nil
		}
		return mwtime.Never, err
	}
	return mwtime.Parse(raw)
}
