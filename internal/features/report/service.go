// Package report — service.go drives the three publish stages: export page,
// talk-page notices, escalation page. Cooldown fields advance only after
// the corresponding write succeeds, and the state file is flushed after
// every stage that advanced one, so a crash between stages loses at most
// the in-flight stage.
package report

import (
	"context"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"toolforge.org/rights-audit/internal/common"
	"toolforge.org/rights-audit/internal/config"
	"toolforge.org/rights-audit/internal/features/audit"
	"toolforge.org/rights-audit/internal/features/roster"
	"toolforge.org/rights-audit/internal/state"
)

// Splice markers on the export page.
const (
	ReportStart = "<!-- report start -->"
	ReportEnd   = "<!-- report end -->"
	SignStart   = "<!-- sign start -->"
	SignEnd     = "<!-- sign end -->"

	// The signature block is always replaced with this auto-signing
	// placeholder so the page carries the time of the latest run.
	signPlaceholder = "<onlyinclude>~~~~~</onlyinclude>"
)

// PageStore is the wiki surface the publisher needs.
type PageStore interface {
	PageText(ctx context.Context, title string) (string, error)
	SavePage(ctx context.Context, title, text, summary string) error
	IsFlowBoard(ctx context.Context, title string) (bool, error)
	NewFlowTopic(ctx context.Context, title, topic, content string) error
}

// Prompter confirms destructive writes interactively.
type Prompter interface {
	ShowDiff(before, after string)
	Confirm(question string) bool
}

// Options mirror the three --confirm-* flags. An unset flag means "write
// without asking".
type Options struct {
	ConfirmExport bool
	ConfirmNotice bool
	ConfirmReport bool
}

// Service publishes the classification results.
type Service struct {
	wiki   PageStore
	store  *state.Store
	prompt Prompter
	remote *config.Remote
	opts   Options
	h      audit.Horizons
	now    time.Time
}

func NewService(wiki PageStore, store *state.Store, prompt Prompter,
	remote *config.Remote, opts Options, h audit.Horizons, now time.Time) *Service {
	return &Service{
		wiki:   wiki,
		store:  store,
		prompt: prompt,
		remote: remote,
		opts:   opts,
		h:      h,
		now:    now,
	}
}

// PublishExport rewrites the status report page: the signature block and
// the report table are both replaced wholesale between their markers.
// A missing marker skips this stage without failing the run.
func (s *Service) PublishExport(ctx context.Context, rows []audit.Row) error {
	before, err := s.wiki.PageText(ctx, s.remote.ExportPage)
	if err != nil {
		return err
	}

	after, err := spliceBetween(before, SignStart, SignEnd, signPlaceholder)
	if err == nil {
		after, err = spliceBetween(after, ReportStart, ReportEnd, "\n"+ReportTable(rows))
	}
	if err != nil {
		log.WithError(err).WithField("page", s.remote.ExportPage).
			Error("Skipping export stage")
		return nil
	}

	if s.opts.ConfirmExport {
		s.prompt.ShowDiff(before, after)
		if !s.prompt.Confirm("Save export page?") {
			log.Info("Export declined")
			return nil
		}
	}

	if err := s.wiki.SavePage(ctx, s.remote.ExportPage, after, s.remote.ExportSummary); err != nil {
		return fmt.Errorf("failed to publish export page: %w", err)
	}
	log.WithField("rows", len(rows)).Info("Export page published")
	return nil
}

// SendNotices posts a talk-page message to every notice candidate. The
// cooldown is re-checked per user; each successful post advances the
// user's LastNotice and flushes the state file, so a crash mid-stage never
// repeats an already-sent notice.
func (s *Service) SendNotices(ctx context.Context, cands []audit.Candidate,
	records map[string]*roster.UserRecord) error {
	for _, cand := range cands {
		rec := cand.User
		if !rec.LastNotice.Before(s.h.NoticeCooldown) {
			continue
		}

		title, content := NoticeFor(cand)
		log.WithFields(log.Fields{
			"username": rec.Username,
			"title":    title,
			"content":  common.Truncate(content, 80),
		}).Info("Sending notice")

		if s.opts.ConfirmNotice {
			question := fmt.Sprintf("Notice %s with title %s and content %s?",
				rec.Username, title, content)
			if !s.prompt.Confirm(question) {
				continue
			}
		}

		if err := s.postNotice(ctx, rec.Username, title, content); err != nil {
			return err
		}

		rec.LastNotice = s.now
		if err := s.Flush(records); err != nil {
			return err
		}
	}
	return nil
}

// postNotice delivers one notice: a new topic on structured-discussion
// boards, an appended wikitext block everywhere else.
func (s *Service) postNotice(ctx context.Context, username, title, content string) error {
	talk := "User talk:" + username

	flow, err := s.wiki.IsFlowBoard(ctx, talk)
	if err != nil {
		return err
	}
	if flow {
		if err := s.wiki.NewFlowTopic(ctx, talk, title, content); err != nil {
			return fmt.Errorf("failed to notice %q: %w", username, err)
		}
		return nil
	}

	text, err := s.wiki.PageText(ctx, talk)
	if err != nil {
		return err
	}
	if text != "" {
		text += "\n\n"
	}
	text += content
	if err := s.wiki.SavePage(ctx, talk, text, s.remote.NoticeSummary); err != nil {
		return fmt.Errorf("failed to notice %q: %w", username, err)
	}
	return nil
}

// PublishEscalations inserts revocation-request entries before the
// configured marker. A user whose {{User}} token already occurs verbatim
// on the page is treated as already escalated: no new entry, but the
// cooldown still advances so the duplicate check is not repeated forever.
func (s *Service) PublishEscalations(ctx context.Context, cands []audit.Candidate,
	records map[string]*roster.UserRecord) error {
	if len(cands) == 0 {
		return nil
	}

	before, err := s.wiki.PageText(ctx, s.remote.ReportPage)
	if err != nil {
		return err
	}

	var insert strings.Builder
	var inserted []*roster.UserRecord
	advanced := false
	for _, cand := range cands {
		rec := cand.User
		if !rec.LastReport.Before(s.h.ReportCooldown) {
			continue
		}
		if strings.Contains(before, UserTemplate(rec.Username)) {
			rec.LastReport = s.now
			advanced = true
			continue
		}
		insert.WriteString(EscalationEntry(cand))
		inserted = append(inserted, rec)
	}

	if insert.Len() == 0 {
		if advanced {
			return s.Flush(records)
		}
		return nil
	}

	idx := strings.Index(before, s.remote.ReportFlag)
	if idx < 0 {
		log.WithField("page", s.remote.ReportPage).
			Errorf("Skipping escalation stage: %v", common.ErrMarkerNotFound)
		if advanced {
			return s.Flush(records)
		}
		return nil
	}
	after := before[:idx] + insert.String() + before[idx:]

	if s.opts.ConfirmReport {
		s.prompt.ShowDiff(before, after)
		if !s.prompt.Confirm("Save report page?") {
			log.Info("Escalation declined")
			if advanced {
				return s.Flush(records)
			}
			return nil
		}
	}

	if err := s.wiki.SavePage(ctx, s.remote.ReportPage, after, s.remote.ReportSummary); err != nil {
		return fmt.Errorf("failed to publish escalations: %w", err)
	}
	for _, rec := range inserted {
		rec.LastReport = s.now
	}
	log.WithField("entries", len(inserted)).Info("Escalations published")
	return s.Flush(records)
}

// Flush persists the cooldown bookkeeping of the whole universe. Besides
// the per-stage flushes, the run calls it once at the end so roster
// garbage collection reaches the disk even on runs with nothing to
// publish.
func (s *Service) Flush(records map[string]*roster.UserRecord) error {
	entries := make(map[string]state.Entry, len(records))
	for username, rec := range records {
		entries[username] = rec.StateEntry()
	}
	if err := s.store.Save(entries); err != nil {
		return fmt.Errorf("failed to persist state: %w", err)
	}
	return nil
}

// spliceBetween replaces everything between the first occurrence of start
// and the following occurrence of end, keeping both markers.
func spliceBetween(text, start, end, replacement string) (string, error) {
	i := strings.Index(text, start)
	if i < 0 {
		return "", fmt.Errorf("%w: %q", common.ErrMarkerNotFound, start)
	}
	i += len(start)
	j := strings.Index(text[i:], end)
	if j < 0 {
		return "", fmt.Errorf("%w: %q", common.ErrMarkerNotFound, end)
	}
	return text[:i] + replacement + text[i+j:], nil
}
