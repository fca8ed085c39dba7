package report

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"toolforge.org/rights-audit/internal/config"
	"toolforge.org/rights-audit/internal/features/audit"
	"toolforge.org/rights-audit/internal/features/roster"
	"toolforge.org/rights-audit/internal/state"
)

var testNow = time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)

type savedPage struct {
	title, text, summary string
}

type fakeWiki struct {
	pages   map[string]string
	flow    map[string]bool
	saves   []savedPage
	topics  []string
	saveErr error
}

func (f *fakeWiki) PageText(_ context.Context, title string) (string, error) {
	return f.pages[title], nil
}

func (f *fakeWiki) SavePage(_ context.Context, title, text, summary string) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saves = append(f.saves, savedPage{title, text, summary})
	return nil
}

func (f *fakeWiki) IsFlowBoard(_ context.Context, title string) (bool, error) {
	return f.flow[title], nil
}

func (f *fakeWiki) NewFlowTopic(_ context.Context, title, topic, content string) error {
	f.topics = append(f.topics, title+"|"+topic+"|"+content)
	return nil
}

type fakePrompter struct {
	answer bool
	asked  int
}

func (f *fakePrompter) ShowDiff(_, _ string) {}

func (f *fakePrompter) Confirm(_ string) bool {
	f.asked++
	return f.answer
}

var testRemote = &config.Remote{
	Enable:        true,
	ExportPage:    "Project:Export",
	ReportPage:    "Project:Requests",
	ExportSummary: "update report",
	NoticeSummary: "inactivity notice",
	ReportSummary: "new escalations",
	ReportFlag:    "<!-- new entries above -->",
}

func newTestService(t *testing.T, wiki *fakeWiki, opts Options, prompt Prompter) (*Service, *state.Store) {
	t.Helper()
	store := state.NewStore(filepath.Join(t.TempDir(), "state.json"))
	if prompt == nil {
		prompt = &fakePrompter{answer: true}
	}
	svc := NewService(wiki, store, prompt, testRemote, opts, audit.HorizonsAt(testNow), testNow)
	return svc, store
}

func candidate(name string, daysInactive int) audit.Candidate {
	u := roster.NewUserRecord(name)
	u.LastTime = testNow.Add(-time.Duration(daysInactive) * 24 * time.Hour)
	return audit.Candidate{User: u, DisplayGroups: []string{"patroller"}}
}

func asRecords(cands ...audit.Candidate) map[string]*roster.UserRecord {
	out := make(map[string]*roster.UserRecord)
	for _, c := range cands {
		out[c.User.Username] = c.User
	}
	return out
}

func TestPublishExportSplicesBetweenMarkers(t *testing.T) {
	wiki := &fakeWiki{pages: map[string]string{
		"Project:Export": "head\n" + SignStart + "old sign" + SignEnd + "\n" +
			ReportStart + "\nold rows\n" + ReportEnd + "\ntail",
	}}
	svc, _ := newTestService(t, wiki, Options{}, nil)

	u := roster.NewUserRecord("Alice")
	rows := []audit.Row{{User: u, DisplayGroups: []string{"patroller"}, Tier: audit.TierNeutral}}
	require.NoError(t, svc.PublishExport(context.Background(), rows))

	require.Len(t, wiki.saves, 1)
	saved := wiki.saves[0]
	assert.Equal(t, "Project:Export", saved.title)
	assert.Equal(t, "update report", saved.summary)
	assert.Contains(t, saved.text, SignStart+"<onlyinclude>~~~~~</onlyinclude>"+SignEnd)
	assert.Contains(t, saved.text, "|user=Alice|")
	assert.NotContains(t, saved.text, "old rows")
	assert.NotContains(t, saved.text, "old sign")
	// Text outside the markers is untouched.
	assert.True(t, strings.HasPrefix(saved.text, "head\n"))
	assert.True(t, strings.HasSuffix(saved.text, "\ntail"))
}

func TestPublishExportSkipsOnMissingMarker(t *testing.T) {
	wiki := &fakeWiki{pages: map[string]string{"Project:Export": "no markers here"}}
	svc, _ := newTestService(t, wiki, Options{}, nil)

	require.NoError(t, svc.PublishExport(context.Background(), nil))
	assert.Empty(t, wiki.saves)
}

func TestPublishExportDeclined(t *testing.T) {
	wiki := &fakeWiki{pages: map[string]string{
		"Project:Export": SignStart + SignEnd + ReportStart + ReportEnd,
	}}
	prompt := &fakePrompter{answer: false}
	svc, _ := newTestService(t, wiki, Options{ConfirmExport: true}, prompt)

	require.NoError(t, svc.PublishExport(context.Background(), nil))
	assert.Empty(t, wiki.saves)
	assert.Equal(t, 1, prompt.asked)
}

func TestSendNoticesAppendsToTalkPage(t *testing.T) {
	wiki := &fakeWiki{pages: map[string]string{
		"User talk:Alice": "== old thread ==\nhello",
	}}
	svc, store := newTestService(t, wiki, Options{}, nil)

	cand := candidate("Alice", audit.NoticeDays+5)
	require.NoError(t, svc.SendNotices(context.Background(), []audit.Candidate{cand},
		asRecords(cand)))

	require.Len(t, wiki.saves, 1)
	saved := wiki.saves[0]
	assert.Equal(t, "User talk:Alice", saved.title)
	assert.Equal(t, "inactivity notice", saved.summary)
	// Appended after a blank line, old content intact.
	assert.True(t, strings.HasPrefix(saved.text, "== old thread ==\nhello\n\n"))
	assert.Contains(t, saved.text, "{{subst:Inactive right|")

	// Cooldown advanced and persisted.
	assert.True(t, cand.User.LastNotice.Equal(testNow))
	persisted := store.Load()
	assert.True(t, persisted["Alice"].LastNotice.Equal(testNow))
}

func TestSendNoticesEmptyTalkPageGetsNoSeparator(t *testing.T) {
	wiki := &fakeWiki{pages: map[string]string{}}
	svc, _ := newTestService(t, wiki, Options{}, nil)

	cand := candidate("Alice", audit.NoticeDays+5)
	require.NoError(t, svc.SendNotices(context.Background(), []audit.Candidate{cand},
		asRecords(cand)))

	require.Len(t, wiki.saves, 1)
	assert.False(t, strings.HasPrefix(wiki.saves[0].text, "\n"))
}

func TestSendNoticesUsesFlowOnBoards(t *testing.T) {
	wiki := &fakeWiki{
		pages: map[string]string{},
		flow:  map[string]bool{"User talk:Alice": true},
	}
	svc, _ := newTestService(t, wiki, Options{}, nil)

	cand := candidate("Alice", audit.NoticeDays+5)
	require.NoError(t, svc.SendNotices(context.Background(), []audit.Candidate{cand},
		asRecords(cand)))

	assert.Empty(t, wiki.saves, "flow boards must not be edited as wikitext")
	require.Len(t, wiki.topics, 1)
	assert.Contains(t, wiki.topics[0], "User talk:Alice|因不活躍而取消權限的通知|")
	assert.True(t, cand.User.LastNotice.Equal(testNow))
}

func TestSendNoticesRechecksCooldown(t *testing.T) {
	wiki := &fakeWiki{pages: map[string]string{}}
	svc, _ := newTestService(t, wiki, Options{}, nil)

	cand := candidate("Alice", audit.NoticeDays+5)
	cand.User.LastNotice = testNow.Add(-24 * time.Hour) // noticed yesterday

	require.NoError(t, svc.SendNotices(context.Background(), []audit.Candidate{cand},
		asRecords(cand)))

	assert.Empty(t, wiki.saves)
	assert.Empty(t, wiki.topics)
}

func TestSendNoticesDeclinedLeavesCooldownAlone(t *testing.T) {
	wiki := &fakeWiki{pages: map[string]string{}}
	prompt := &fakePrompter{answer: false}
	svc, _ := newTestService(t, wiki, Options{ConfirmNotice: true}, prompt)

	cand := candidate("Alice", audit.NoticeDays+5)
	require.NoError(t, svc.SendNotices(context.Background(), []audit.Candidate{cand},
		asRecords(cand)))

	assert.Empty(t, wiki.saves)
	assert.False(t, cand.User.LastNotice.Equal(testNow))
}

func TestPublishEscalationsInsertsBeforeFlag(t *testing.T) {
	wiki := &fakeWiki{pages: map[string]string{
		"Project:Requests": "== open ==\n" + testRemote.ReportFlag + "\nfooter",
	}}
	svc, store := newTestService(t, wiki, Options{}, nil)

	cand := candidate("Alice", audit.RevokeDays+10)
	require.NoError(t, svc.PublishEscalations(context.Background(),
		[]audit.Candidate{cand}, asRecords(cand)))

	require.Len(t, wiki.saves, 1)
	saved := wiki.saves[0]
	assert.Equal(t, "new escalations", saved.summary)
	entryIdx := strings.Index(saved.text, "{{User|Alice}}")
	flagIdx := strings.Index(saved.text, testRemote.ReportFlag)
	require.GreaterOrEqual(t, entryIdx, 0)
	require.GreaterOrEqual(t, flagIdx, 0)
	assert.Less(t, entryIdx, flagIdx, "entry must sit before the marker")

	assert.True(t, cand.User.LastReport.Equal(testNow))
	assert.True(t, store.Load()["Alice"].LastReport.Equal(testNow))
}

func TestPublishEscalationsSuppressesDuplicates(t *testing.T) {
	// Alice is already listed verbatim; only Bob gets a new entry, but
	// Alice's cooldown still advances so she is not re-checked forever.
	wiki := &fakeWiki{pages: map[string]string{
		"Project:Requests": "*{{User|Alice}}\nexisting entry\n" + testRemote.ReportFlag,
	}}
	svc, store := newTestService(t, wiki, Options{}, nil)

	alice := candidate("Alice", audit.RevokeDays+10)
	bob := candidate("Bob", audit.RevokeDays+20)
	require.NoError(t, svc.PublishEscalations(context.Background(),
		[]audit.Candidate{alice, bob}, asRecords(alice, bob)))

	require.Len(t, wiki.saves, 1)
	saved := wiki.saves[0]
	assert.Equal(t, 1, strings.Count(saved.text, "{{User|Alice}}"))
	assert.Contains(t, saved.text, "{{User|Bob}}")

	assert.True(t, alice.User.LastReport.Equal(testNow))
	assert.True(t, bob.User.LastReport.Equal(testNow))
	persisted := store.Load()
	assert.True(t, persisted["Alice"].LastReport.Equal(testNow))
	assert.True(t, persisted["Bob"].LastReport.Equal(testNow))
}

func TestPublishEscalationsAllDuplicatesStillFlushes(t *testing.T) {
	wiki := &fakeWiki{pages: map[string]string{
		"Project:Requests": "*{{User|Alice}}\n" + testRemote.ReportFlag,
	}}
	svc, store := newTestService(t, wiki, Options{}, nil)

	alice := candidate("Alice", audit.RevokeDays+10)
	require.NoError(t, svc.PublishEscalations(context.Background(),
		[]audit.Candidate{alice}, asRecords(alice)))

	assert.Empty(t, wiki.saves, "nothing new to insert")
	assert.True(t, store.Load()["Alice"].LastReport.Equal(testNow))
}

func TestPublishEscalationsSkipsOnMissingFlag(t *testing.T) {
	wiki := &fakeWiki{pages: map[string]string{
		"Project:Requests": "page without the marker",
	}}
	svc, _ := newTestService(t, wiki, Options{}, nil)

	cand := candidate("Alice", audit.RevokeDays+10)
	require.NoError(t, svc.PublishEscalations(context.Background(),
		[]audit.Candidate{cand}, asRecords(cand)))

	assert.Empty(t, wiki.saves)
	assert.False(t, cand.User.LastReport.Equal(testNow))
}

func TestPublishEscalationsFailedSaveKeepsCooldown(t *testing.T) {
	wiki := &fakeWiki{
		pages:   map[string]string{"Project:Requests": testRemote.ReportFlag},
		saveErr: errors.New("edit conflict"),
	}
	svc, _ := newTestService(t, wiki, Options{}, nil)

	cand := candidate("Alice", audit.RevokeDays+10)
	err := svc.PublishEscalations(context.Background(),
		[]audit.Candidate{cand}, asRecords(cand))

	require.Error(t, err)
	assert.False(t, cand.User.LastReport.Equal(testNow),
		"cooldown must only advance after a successful write")
}

func TestPublishEscalationsRechecksCooldown(t *testing.T) {
	wiki := &fakeWiki{pages: map[string]string{
		"Project:Requests": testRemote.ReportFlag,
	}}
	svc, _ := newTestService(t, wiki, Options{}, nil)

	cand := candidate("Alice", audit.RevokeDays+10)
	cand.User.LastReport = testNow.Add(-24 * time.Hour) // escalated yesterday

	require.NoError(t, svc.PublishEscalations(context.Background(),
		[]audit.Candidate{cand}, asRecords(cand)))

	assert.Empty(t, wiki.saves)
}
