// Package roster — service.go merges the two membership sources into one
// set of user records and garbage-collects persisted records for users who
// dropped out of both.
package roster

import (
	"context"
	"encoding/json"
	"fmt"

	log "github.com/sirupsen/logrus"

	"toolforge.org/rights-audit/internal/state"
)

// RightsSource is the replica side of the roster.
type RightsSource interface {
	UsersWithGroups(ctx context.Context) ([]RightsRow, error)
	ActorID(ctx context.Context, username string) (int64, error)
}

// CheckPageSource fetches the AWB check page.
type CheckPageSource interface {
	PageText(ctx context.Context, title string) (string, error)
}

// Service builds the audited user universe.
type Service struct {
	repo      RightsSource
	wiki      CheckPageSource
	checkPage string
}

func NewService(repo RightsSource, wiki CheckPageSource, checkPage string) *Service {
	return &Service{repo: repo, wiki: wiki, checkPage: checkPage}
}

// checkPageJSON is the relevant part of the AWB check page document.
type checkPageJSON struct {
	EnabledUsers []string `json:"enabledusers"`
}

// Build merges the rights roster with the AWB check page on top of the
// persisted state. The result covers exactly the union of the two current
// rosters: persisted records keep their cooldown fields, records for users
// absent from both rosters are dropped.
func (s *Service) Build(ctx context.Context, persisted map[string]state.Entry) (map[string]*UserRecord, error) {
	records := make(map[string]*UserRecord, len(persisted))
	for username, entry := range persisted {
		records[username] = FromState(username, entry)
	}

	seen := make(map[string]bool)

	// Primary roster: permission groups from the replica.
	rows, err := s.repo.UsersWithGroups(ctx)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		rec, ok := records[row.Username]
		if !ok {
			rec = NewUserRecord(row.Username)
			records[row.Username] = rec
		}
		rec.ActorID = row.ActorID
		rec.Groups = row.Groups
		seen[row.Username] = true
	}

	// Secondary roster: AWB check page. Users only on this list get a
	// synthesized record with the synthetic awb group.
	check, err := s.fetchCheckPage(ctx)
	if err != nil {
		return nil, err
	}
	for _, username := range check.EnabledUsers {
		rec, ok := records[username]
		if !ok {
			rec = NewUserRecord(username)
			records[username] = rec
		}
		if rec.ActorID == 0 {
			actorID, err := s.repo.ActorID(ctx, username)
			if err != nil {
				return nil, err
			}
			rec.ActorID = actorID
		}
		rec.AddGroup(AWBGroup)
		seen[username] = true
	}

	// Garbage-collect records for users gone from both rosters.
	dropped := 0
	for username := range records {
		if !seen[username] {
			delete(records, username)
			dropped++
		}
	}

	log.WithFields(log.Fields{
		"users":   len(records),
		"rights":  len(rows),
		"awb":     len(check.EnabledUsers),
		"dropped": dropped,
	}).Info("Roster built")

	return records, nil
}

func (s *Service) fetchCheckPage(ctx context.Context) (*checkPageJSON, error) {
	text, err := s.wiki.PageText(ctx, s.checkPage)
	if err != nil {
		return nil, fmt.Errorf("failed to read check page %q: %w", s.checkPage, err)
	}
	var check checkPageJSON
	if err := json.Unmarshal([]byte(text), &check); err != nil {
		return nil, fmt.Errorf("failed to decode check page %q: %w", s.checkPage, err)
	}
	return &check, nil
}
