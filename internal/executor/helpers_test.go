package executor

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bobdodd/auto-a11y/internal/dom"
	"github.com/bobdodd/auto-a11y/internal/models"
	"github.com/bobdodd/auto-a11y/internal/results"
	"github.com/bobdodd/auto-a11y/internal/store"
)

// recordingLogger captures orchestrator events for assertions.
type recordingLogger struct {
	mu        sync.Mutex
	states    []models.PageState
	completed []*models.TestResult
	actions   []results.GuardAction
	scripts   []*models.ScriptRun
	failures  []error
	summaries []results.Summary
	warnings  []string
}

func (l *recordingLogger) LogStateStart(pageID string, state models.PageState) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.states = append(l.states, state)
}

func (l *recordingLogger) LogStateComplete(r *models.TestResult, action results.GuardAction) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.completed = append(l.completed, r)
	l.actions = append(l.actions, action)
}

func (l *recordingLogger) LogScriptRun(pageID string, run *models.ScriptRun) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.scripts = append(l.scripts, run)
}

func (l *recordingLogger) LogPageFail(pageID string, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failures = append(l.failures, err)
}

func (l *recordingLogger) LogSummary(s results.Summary) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.summaries = append(l.summaries, s)
}

func (l *recordingLogger) LogWarn(message string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warnings = append(l.warnings, message)
}

var _ Logger = (*recordingLogger)(nil)

func newStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.NewStore(":memory:", 0)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// bannerSnapshot is a page with a cookie banner holding an unlabelled image.
func bannerSnapshot() *dom.Snapshot {
	b := dom.NewBuilder("https://shop.test/", "Shop", "en")
	banner := b.Add(b.Body(), dom.Element{Tag: "div", Attrs: map[string]string{"id": "cookie-banner"}})
	b.Add(banner, dom.Element{Tag: "img", Attrs: map[string]string{"src": "cookie.png"}})
	b.Add(banner, dom.Element{Tag: "button", Attrs: map[string]string{"id": "accept"}, Text: "Accept"})
	b.Add(b.Body(), dom.Element{Tag: "img", Attrs: map[string]string{"src": "logo.png", "alt": "Shop"}})
	return b.Build()
}

// acceptedSnapshot is the same page after the banner was dismissed.
func acceptedSnapshot() *dom.Snapshot {
	b := dom.NewBuilder("https://shop.test/", "Shop", "en")
	b.Add(b.Body(), dom.Element{Tag: "img", Attrs: map[string]string{"src": "logo.png", "alt": "Shop"}})
	b.Add(b.Body(), dom.Element{Tag: "img", Attrs: map[string]string{"src": "hero.png"}})
	b.Add(b.Body(), dom.Element{Tag: "img", Attrs: map[string]string{"src": "promo.png"}})
	return b.Build()
}

func cookieScript() *models.SetupScript {
	return &models.SetupScript{
		ID:                  "cookie",
		Name:                "accept cookies",
		Enabled:             true,
		TestBeforeExecution: true,
		TestAfterExecution:  true,
		Steps: []models.Step{
			{Sequence: 1, Action: models.ActionClick, Selector: "#accept", TimeoutMs: 100},
		},
		Validation: &models.ScriptValidation{FailureSelectors: []string{"#cookie-banner"}},
	}
}

func cookiePage() *models.Page {
	return &models.Page{
		ID:     "home",
		URL:    "https://shop.test/",
		Checks: []models.CheckID{models.CheckImageAlt},
		Script: cookieScript(),
	}
}
