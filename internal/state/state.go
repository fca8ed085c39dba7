// Package state persists the per-user cooldown bookkeeping between runs.
// The file is a JSON object mapping username to the identity and cooldown
// fields; activity timestamps and group membership are never persisted
// because they can change externally between runs.
//
// The file is the only thing standing between the bot and duplicate
// notices, so it is rewritten atomically (temp file + rename) after every
// stage that advances a cooldown.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"

	"toolforge.org/rights-audit/internal/mwtime"
)

// Entry is the persisted subset of a user record.
type Entry struct {
	ActorID    int64
	LastTime   time.Time
	LastNotice time.Time
	LastReport time.Time
}

// entryJSON is the on-disk shape: timestamps in the 14-digit encoding.
type entryJSON struct {
	ActorID    int64  `json:"actor_id"`
	LastTime   string `json:"last_time"`
	LastNotice string `json:"last_notice"`
	LastReport string `json:"last_report"`
}

// Store reads and writes the state file.
type Store struct {
	path string
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load reads the state file. A missing or corrupt file is not fatal: the
// bot logs it and starts from an empty state, exactly as if this were the
// first run. Cooldowns are then re-learned from scratch, which at worst
// repeats a notice once.
func (s *Store) Load() map[string]Entry {
	out := make(map[string]Entry)

	raw, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.WithError(err).Warn("Failed to read state file, starting empty")
		}
		return out
	}

	var decoded map[string]entryJSON
	if err := json.Unmarshal(raw, &decoded); err != nil {
		log.WithError(err).Warn("State file is corrupt, starting empty")
		return out
	}

	for username, e := range decoded {
		entry, err := e.toEntry()
		if err != nil {
			log.WithError(err).WithField("username", username).
				Warn("Dropping unreadable state entry")
			continue
		}
		out[username] = entry
	}

	log.WithField("users", len(out)).Debug("State file loaded")
	return out
}

// Save rewrites the state file atomically.
func (s *Store) Save(entries map[string]Entry) error {
	encoded := make(map[string]entryJSON, len(entries))
	for username, e := range entries {
		encoded[username] = entryJSON{
			ActorID:    e.ActorID,
			LastTime:   mwtime.Format(e.LastTime),
			LastNotice: mwtime.Format(e.LastNotice),
			LastReport: mwtime.Format(e.LastReport),
		}
	}

	raw, err := json.MarshalIndent(encoded, "", "\t")
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}

	// Write to a temp file in the same directory, then rename over the
	// old file. A crash mid-write leaves the previous state intact.
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".state-*")
	if err != nil {
		return fmt.Errorf("failed to create temp state file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp state file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	return nil
}

func (e entryJSON) toEntry() (Entry, error) {
	lastTime, err := mwtime.Parse(e.LastTime)
	if err != nil {
		return Entry{}, err
	}
	lastNotice, err := mwtime.Parse(e.LastNotice)
	if err != nil {
		return Entry{}, err
	}
	lastReport, err := mwtime.Parse(e.LastReport)
	if err != nil {
		return Entry{}, err
	}
	return Entry{
		ActorID:    e.ActorID,
		LastTime:   lastTime,
		LastNotice: lastNotice,
		LastReport: lastReport,
	}, nil
}
