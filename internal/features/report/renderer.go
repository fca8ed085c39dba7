// Package report turns classification results into the three published
// artifacts and writes them to the wiki.
// renderer.go is pure text assembly: report table rows, notice messages and
// escalation entries. The output strings are the bot's external contract
// with the wiki templates, so they are built verbatim.
package report

import (
	"fmt"
	"strings"
	"time"

	"toolforge.org/rights-audit/internal/features/audit"
	"toolforge.org/rights-audit/internal/mwtime"
)

// noRecord is shown in place of a date when a timestamp is Never.
const noRecord = "無紀錄"

// awbLabel is the display label of the synthetic awb group, which has no
// {{int:group-*}} message.
const awbLabel = "自動維基瀏覽器使用權"

// groupSeparator joins group labels in rendered text.
const groupSeparator = "、"

// GroupText renders the display labels of the given groups. With subst the
// int: invocations are substituted, which is required in talk-page messages
// and escalation entries so they render permanently.
func GroupText(groups []string, subst bool) string {
	labels := make([]string, 0, len(groups))
	for _, g := range groups {
		if g == "awb" {
			labels = append(labels, awbLabel)
			continue
		}
		if subst {
			labels = append(labels, "{{subst:int:group-"+g+"}}")
		} else {
			labels = append(labels, "{{int:group-"+g+"}}")
		}
	}
	return strings.Join(labels, groupSeparator)
}

// FormatTime renders a timestamp as a date, or the no-record placeholder.
func FormatTime(t time.Time) string {
	if mwtime.IsNever(t) {
		return noRecord
	}
	return t.UTC().Format("2006-01-02")
}

func tierColor(t audit.Tier) string {
	switch t {
	case audit.TierCritical:
		return "#fcc"
	case audit.TierWarning:
		return "#ffc"
	default:
		return "none"
	}
}

// ReportRow renders one {{/tr}} template invocation of the status report.
func ReportRow(row audit.Row) string {
	u := row.User
	var b strings.Builder
	b.WriteString("{{/tr|color=")
	b.WriteString(tierColor(row.Tier))
	fmt.Fprintf(&b, "|user=%s", u.Username)
	fmt.Fprintf(&b, "|group=%s", GroupText(row.DisplayGroups, false))
	fmt.Fprintf(&b, "|edit=%s", FormatTime(u.LastEdit))
	if u.LastEditDeleted {
		b.WriteString("|edit deleted=1")
	}
	fmt.Fprintf(&b, "|log=%s", FormatTime(u.LastLog))
	fmt.Fprintf(&b, "|right=%s", FormatTime(u.LastRight))
	b.WriteString("}}\n")
	return b.String()
}

// ReportTable renders the full between-markers body of the report page.
func ReportTable(rows []audit.Row) string {
	var b strings.Builder
	for _, row := range rows {
		b.WriteString(ReportRow(row))
	}
	return b.String()
}

// NoticeFor picks the talk-page message for a notice candidate. When the
// user's only displayed group is the IP-block exemption, a dedicated short
// template is used instead of the general inactive-rights one.
func NoticeFor(c audit.Candidate) (title, content string) {
	if len(c.DisplayGroups) == 1 && c.DisplayGroups[0] == "ipblock-exempt" {
		return "因不活躍而取消IP封禁例外權限的通知", "{{subst:Inactive IPBE}}"
	}
	return "因不活躍而取消權限的通知",
		"{{subst:Inactive right|1=" + GroupText(c.DisplayGroups, true) + "}}"
}

// UserTemplate renders the {{User}} invocation that identifies a user on
// the escalation page. A username containing "=" needs the positional 1=
// prefix, or the template would parse it as a named parameter.
func UserTemplate(username string) string {
	if strings.Contains(username, "=") {
		return "{{User|1=" + username + "}}"
	}
	return "{{User|" + username + "}}"
}

// EscalationEntry renders one bulleted revocation-request entry. The
// contributions link switches to DeletedContributions when the last known
// edit only survives in the archive.
func EscalationEntry(c audit.Candidate) string {
	u := c.User
	contrib := "Contribs"
	if u.LastEditDeleted {
		contrib = "DeletedContributions"
	}

	var b strings.Builder
	b.WriteString("*" + UserTemplate(u.Username) + "\n")
	b.WriteString("*:{{Status|新提案}}\n")
	b.WriteString("*:需複審或解除之權限：" + GroupText(c.DisplayGroups, true) + "\n")
	fmt.Fprintf(&b,
		"*:理由：逾六個月沒有任何編輯活動、最近編輯：[[Special:%s/%s|%s]]、最近日誌：[[Special:Log/%s|%s]]、最近授權：[{{fullurl:Special:Log/rights|page={{urlencode:User:%s}}}} %s]\n",
		contrib, u.Username, FormatTime(u.LastEdit),
		u.Username, FormatTime(u.LastLog),
		u.Username, FormatTime(u.LastRight),
	)
	b.WriteString("*:~~~~\n\n")
	return b.String()
}
