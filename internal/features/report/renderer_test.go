package report

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"toolforge.org/rights-audit/internal/features/audit"
	"toolforge.org/rights-audit/internal/features/roster"
	"toolforge.org/rights-audit/internal/mwtime"
)

func testUser(name string) *roster.UserRecord {
	u := roster.NewUserRecord(name)
	u.LastEdit = time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	u.LastLog = time.Date(2025, 4, 1, 10, 0, 0, 0, time.UTC)
	u.LastRight = mwtime.Never
	return u
}

func TestFormatTime(t *testing.T) {
	assert.Equal(t, "無紀錄", FormatTime(mwtime.Never))
	assert.Equal(t, "2025-05-01",
		FormatTime(time.Date(2025, 5, 1, 23, 59, 0, 0, time.UTC)))
}

func TestGroupText(t *testing.T) {
	groups := []string{"awb", "patroller", "rollbacker"}

	assert.Equal(t,
		"自動維基瀏覽器使用權、{{int:group-patroller}}、{{int:group-rollbacker}}",
		GroupText(groups, false))
	assert.Equal(t,
		"自動維基瀏覽器使用權、{{subst:int:group-patroller}}、{{subst:int:group-rollbacker}}",
		GroupText(groups, true))
}

func TestReportRow(t *testing.T) {
	row := audit.Row{
		User:          testUser("Alice"),
		DisplayGroups: []string{"rollbacker"},
		Tier:          audit.TierCritical,
	}

	got := ReportRow(row)

	assert.Equal(t,
		"{{/tr|color=#fcc|user=Alice|group={{int:group-rollbacker}}|edit=2025-05-01|log=2025-04-01|right=無紀錄}}\n",
		got)
}

func TestReportRowDeletedEditFlag(t *testing.T) {
	u := testUser("Alice")
	u.LastEditDeleted = true
	row := audit.Row{User: u, DisplayGroups: []string{"rollbacker"}, Tier: audit.TierWarning}

	got := ReportRow(row)

	assert.Contains(t, got, "|edit=2025-05-01|edit deleted=1|log=")
	assert.Contains(t, got, "color=#ffc")
}

func TestTierColors(t *testing.T) {
	assert.Equal(t, "#fcc", tierColor(audit.TierCritical))
	assert.Equal(t, "#ffc", tierColor(audit.TierWarning))
	assert.Equal(t, "none", tierColor(audit.TierNeutral))
}

func TestNoticeForGeneralRights(t *testing.T) {
	title, content := NoticeFor(audit.Candidate{
		User:          testUser("Alice"),
		DisplayGroups: []string{"patroller", "rollbacker"},
	})

	assert.Equal(t, "因不活躍而取消權限的通知", title)
	assert.Equal(t,
		"{{subst:Inactive right|1={{subst:int:group-patroller}}、{{subst:int:group-rollbacker}}}}",
		content)
}

func TestNoticeForIPBEOnly(t *testing.T) {
	// The IP-block-exemption-only case gets the dedicated short template
	// with no group interpolation.
	title, content := NoticeFor(audit.Candidate{
		User:          testUser("Alice"),
		DisplayGroups: []string{"ipblock-exempt"},
	})

	assert.Equal(t, "因不活躍而取消IP封禁例外權限的通知", title)
	assert.Equal(t, "{{subst:Inactive IPBE}}", content)
}

func TestNoticeForIPBEAmongOthersIsGeneral(t *testing.T) {
	_, content := NoticeFor(audit.Candidate{
		User:          testUser("Alice"),
		DisplayGroups: []string{"ipblock-exempt", "rollbacker"},
	})

	assert.Contains(t, content, "Inactive right")
}

func TestUserTemplate(t *testing.T) {
	assert.Equal(t, "{{User|Alice}}", UserTemplate("Alice"))
	// "=" in a username needs the positional prefix.
	assert.Equal(t, "{{User|1=A=B}}", UserTemplate("A=B"))
}

func TestEscalationEntry(t *testing.T) {
	u := testUser("Alice")
	entry := EscalationEntry(audit.Candidate{User: u, DisplayGroups: []string{"rollbacker"}})

	assert.Contains(t, entry, "*{{User|Alice}}\n")
	assert.Contains(t, entry, "*:{{Status|新提案}}\n")
	assert.Contains(t, entry, "需複審或解除之權限：{{subst:int:group-rollbacker}}")
	assert.Contains(t, entry, "[[Special:Contribs/Alice|2025-05-01]]")
	assert.Contains(t, entry, "[[Special:Log/Alice|2025-04-01]]")
	assert.Contains(t, entry, "{{urlencode:User:Alice}}")
	assert.Contains(t, entry, "*:~~~~\n\n")
}

func TestEscalationEntryDeletedContributions(t *testing.T) {
	u := testUser("Alice")
	u.LastEditDeleted = true
	entry := EscalationEntry(audit.Candidate{User: u, DisplayGroups: []string{"rollbacker"}})

	assert.Contains(t, entry, "Special:DeletedContributions/Alice")
}
