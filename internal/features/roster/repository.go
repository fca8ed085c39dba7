// Package roster — repository.go runs the roster queries against the wiki
// replica. Each function executes one SQL query and returns the result or
// an error.
package roster

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"toolforge.org/rights-audit/internal/common"
)

type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// RightsRow is one row of the grouped rights roster.
type RightsRow struct {
	UserID   int64
	ActorID  int64
	Username string
	Groups   []string // sorted
}

// The baseline group every confirmed user implicitly holds; listing it
// would drag in nearly the whole wiki.
const baselineGroup = "extendedconfirmed"

// UsersWithGroups returns every user holding at least one non-baseline
// permission group, with their groups comma-aggregated into one row.
func (r *Repository) UsersWithGroups(ctx context.Context) ([]RightsRow, error) {
	query := `
		SELECT ug_user, actor_id, user_name,
		       STRING_AGG(ug_group, ',') AS groups
		FROM user_groups
		LEFT JOIN "user" ON ug_user = user_id
		LEFT JOIN actor ON user_id = actor_user
		WHERE ug_group <> $1
		GROUP BY ug_user, actor_id, user_name
	`
	rows, err := r.db.Query(ctx, query, baselineGroup)
	if err != nil {
		return nil, fmt.Errorf("failed to query user groups: %w", err)
	}
	defer rows.Close()

	var out []RightsRow
	for rows.Next() {
		var row RightsRow
		var groups string
		if err := rows.Scan(&row.UserID, &row.ActorID, &row.Username, &groups); err != nil {
			return nil, fmt.Errorf("failed to scan rights row: %w", err)
		}
		row.Groups = strings.Split(groups, ",")
		slices.Sort(row.Groups)
		out = append(out, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rights rows: %w", err)
	}
	return out, nil
}

// ActorID resolves the actor id for a username. No row means the user no
// longer exists under that name; that surfaces as common.ErrActorNotFound
// and aborts the run.
func (r *Repository) ActorID(ctx context.Context, username string) (int64, error) {
	query := `
		SELECT actor_id
		FROM "user"
		INNER JOIN actor ON user_id = actor_user
		WHERE user_name = $1
		LIMIT 1
	`
	var actorID int64
	err := r.db.QueryRow(ctx, query, username).Scan(&actorID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("%w: %q", common.ErrActorNotFound, username)
		}
		return 0, fmt.Errorf("failed to look up actor id for %q: %w", username, err)
	}
	return actorID, nil
}
