// Package audit decides, for every user in the roster, which of the three
// actions apply: a row on the status report, an inactivity notice, or an
// escalation to the revocation-request page.
// models.go holds the time horizons, the display allow-list and the
// classification result types.
package audit

import (
	"time"

	"toolforge.org/rights-audit/internal/features/roster"
)

// Day offsets of the audit policy, in days before "now". The notice window
// is deliberately narrow: newer inactivity is not yet worth a warning,
// older inactivity is handled by escalation.
const (
	DisplayDays        = 146
	NoticeDays         = 153
	NoticeIgnoreDays   = 173
	RevokeDays         = 184
	NoticeCooldownDays = 90
	ReportCooldownDays = 184
)

// Horizons are the six cut-off timestamps, computed once per run.
type Horizons struct {
	// Oldest activity still trusted as fresh / worth listing.
	Display time.Time
	// Notice window: Notice is the upper bound, NoticeIgnore the lower.
	Notice       time.Time
	NoticeIgnore time.Time
	// Activity older than this is eligible for escalation and renders in
	// the worst visual tier.
	Revoke time.Time
	// Minimum age of the previous notice/escalation before repeating one.
	NoticeCooldown time.Time
	ReportCooldown time.Time
}

// HorizonsAt computes the horizons relative to now.
func HorizonsAt(now time.Time) Horizons {
	day := 24 * time.Hour
	return Horizons{
		Display:        now.Add(-DisplayDays * day),
		Notice:         now.Add(-NoticeDays * day),
		NoticeIgnore:   now.Add(-NoticeIgnoreDays * day),
		Revoke:         now.Add(-RevokeDays * day),
		NoticeCooldown: now.Add(-NoticeCooldownDays * day),
		ReportCooldown: now.Add(-ReportCooldownDays * day),
	}
}

// BotGroup unconditionally excludes a user from all three outputs.
const BotGroup = "bot"

// DisplayGroups is the fixed allow-list of audit-visible permission groups.
// Users holding only groups outside this list are invisible to the whole
// pipeline.
var DisplayGroups = []string{
	"abusefilter-helper",
	"autoreviewer",
	"awb",
	"confirmed",
	"eventparticipant",
	"filemover",
	"ipblock-exempt",
	"ipblock-exempt-grantor",
	"massmessage-sender",
	"patroller",
	"rollbacker",
	"templateeditor",
	"transwiki",
}

// Tier is the visual urgency of a report row.
type Tier int

const (
	TierNeutral Tier = iota
	TierWarning
	TierCritical
)

func (t Tier) String() string {
	switch t {
	case TierCritical:
		return "critical"
	case TierWarning:
		return "warning"
	default:
		return "neutral"
	}
}

// Row is one report-table entry.
type Row struct {
	User          *roster.UserRecord
	DisplayGroups []string
	Tier          Tier
}

// Candidate is a user selected for a notice or an escalation.
type Candidate struct {
	User          *roster.UserRecord
	DisplayGroups []string
}

// Result partitions the roster into the three action sets. The sets are
// not mutually exclusive: a user can be reported, noticed and escalated in
// the same run. All three are ordered ascending by LastTime (most inactive
// first).
type Result struct {
	Report      []Row
	Notices     []Candidate
	Escalations []Candidate
}
