// Package audit — classifier.go is the inactivity state machine.
package audit

import (
	"slices"
	"strings"

	log "github.com/sirupsen/logrus"

	"toolforge.org/rights-audit/internal/features/roster"
)

// Classifier partitions user records into the three action sets against a
// fixed set of horizons. It mutates nothing; cooldowns advance only after
// the corresponding publish succeeds.
type Classifier struct {
	h Horizons
}

func NewClassifier(h Horizons) *Classifier {
	return &Classifier{h: h}
}

// Classify evaluates every record and returns the action sets.
func (c *Classifier) Classify(records map[string]*roster.UserRecord) Result {
	users := make([]*roster.UserRecord, 0, len(records))
	for _, rec := range records {
		users = append(users, rec)
	}
	// Explicit sort key: LastTime ascending is the externally visible
	// ordering of the report. Username breaks ties deterministically.
	slices.SortFunc(users, func(a, b *roster.UserRecord) int {
		if n := a.LastTime.Compare(b.LastTime); n != 0 {
			return n
		}
		return strings.Compare(a.Username, b.Username)
	})

	var out Result
	for _, u := range users {
		// Bots are exempt from the activity policy entirely.
		if u.HasGroup(BotGroup) {
			continue
		}
		display := displayedGroups(u.Groups)
		if len(display) == 0 {
			continue
		}

		if u.LastTime.Before(c.h.Display) {
			out.Report = append(out.Report, Row{
				User:          u,
				DisplayGroups: display,
				Tier:          c.tier(u),
			})
		}

		if c.noticeEligible(u) {
			out.Notices = append(out.Notices, Candidate{User: u, DisplayGroups: display})
		}

		if c.escalationEligible(u) {
			out.Escalations = append(out.Escalations, Candidate{User: u, DisplayGroups: display})
		}
	}

	log.WithFields(log.Fields{
		"report":      len(out.Report),
		"notices":     len(out.Notices),
		"escalations": len(out.Escalations),
	}).Info("Classification done")
	return out
}

// tier picks the visual urgency. Critical is checked first: its condition
// implies the warning condition, and ties must break toward the more
// urgent tier.
func (c *Classifier) tier(u *roster.UserRecord) Tier {
	switch {
	case u.LastTime.Before(c.h.Revoke):
		return TierCritical
	case u.LastTime.Before(c.h.Notice):
		return TierWarning
	default:
		return TierNeutral
	}
}

// noticeEligible: LastTime strictly inside the (NoticeIgnore, Notice)
// window, and the previous notice older than the cooldown. The bounds are
// open intervals; the cooldown dominates window membership.
func (c *Classifier) noticeEligible(u *roster.UserRecord) bool {
	return u.LastTime.After(c.h.NoticeIgnore) &&
		u.LastTime.Before(c.h.Notice) &&
		u.LastNotice.Before(c.h.NoticeCooldown)
}

// escalationEligible: past the revoke horizon with the previous escalation
// older than its cooldown. Independent of notice eligibility.
func (c *Classifier) escalationEligible(u *roster.UserRecord) bool {
	return u.LastTime.Before(c.h.Revoke) &&
		u.LastReport.Before(c.h.ReportCooldown)
}

func displayedGroups(groups []string) []string {
	var out []string
	for _, g := range groups {
		if slices.Contains(DisplayGroups, g) {
			out = append(out, g)
		}
	}
	return out
}
