package executor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobdodd/auto-a11y/internal/browser/browsertest"
	"github.com/bobdodd/auto-a11y/internal/filelock"
	"github.com/bobdodd/auto-a11y/internal/models"
)

func newEngine(t *testing.T, stats StatsRecorder) *ScriptEngine {
	t.Helper()
	return NewScriptEngine(NewActionExecutor(100*time.Millisecond, nil), stats, filelock.NewKeyedLocker(t.TempDir()), nil)
}

func TestScriptEngine_RunsStepsInSequenceOrder(t *testing.T) {
	page := browsertest.NewFakePage(nil, "#menu", "#item", "#search")
	script := &models.SetupScript{
		ID:      "menu",
		Enabled: true,
		Steps: []models.Step{
			{Sequence: 3, Action: models.ActionType, Selector: "#search", Value: "shoes"},
			{Sequence: 1, Action: models.ActionClick, Selector: "#menu"},
			{Sequence: 2, Action: models.ActionHover, Selector: "#item"},
		},
	}

	run := newEngine(t, nil).Run(context.Background(), page, "p1", "s1", script, nil)

	require.Equal(t, models.ScriptSucceeded, run.Status, run.Reason)
	require.Len(t, run.Outcomes, 3)
	for i, out := range run.Outcomes {
		assert.Equal(t, i+1, out.Sequence)
		assert.True(t, out.Success)
	}
	assert.Equal(t, []string{"wait #menu", "click #menu", "wait #item", "hover #item", "wait #search", "type #search"}, page.CallLog())
	assert.Equal(t, 1, script.Stats.SuccessCount, "stats kept in memory without a recorder")
}

func TestScriptEngine_HaltsOnFirstFailure(t *testing.T) {
	page := browsertest.NewFakePage(nil, "#one", "#three")
	script := &models.SetupScript{
		ID:      "broken",
		Enabled: true,
		Steps: []models.Step{
			{Sequence: 1, Action: models.ActionClick, Selector: "#one"},
			{Sequence: 2, Action: models.ActionClick, Selector: "#two", TimeoutMs: 30},
			{Sequence: 3, Action: models.ActionClick, Selector: "#three"},
		},
	}

	run := newEngine(t, nil).Run(context.Background(), page, "p1", "s1", script, nil)

	assert.Equal(t, models.ScriptFailed, run.Status)
	assert.Equal(t, 2, run.FailedStep)
	assert.Contains(t, run.Reason, "#two")
	require.Len(t, run.Outcomes, 2, "one outcome per attempted step")
	assert.True(t, run.Outcomes[0].Success)
	assert.False(t, run.Outcomes[1].Success)
	assert.NotContains(t, page.CallLog(), "click #three")
}

func TestScriptEngine_Validation(t *testing.T) {
	tests := []struct {
		name       string
		validation *models.ScriptValidation
		setup      func(p *browsertest.FakePage)
		wantStatus models.ScriptStatus
		wantReason string
	}{
		{
			name:       "no validation trusts step outcomes",
			wantStatus: models.ScriptSucceeded,
		},
		{
			name:       "failure selector visible",
			validation: &models.ScriptValidation{SuccessSelector: "#dashboard", FailureSelectors: []string{".error"}},
			setup:      func(p *browsertest.FakePage) { p.Show("#dashboard", ".error") },
			wantStatus: models.ScriptFailed,
			wantReason: "failure indicator .error",
		},
		{
			name:       "success selector visible",
			validation: &models.ScriptValidation{SuccessSelector: "#dashboard", FailureSelectors: []string{".error"}},
			setup:      func(p *browsertest.FakePage) { p.Show("#dashboard") },
			wantStatus: models.ScriptSucceeded,
		},
		{
			name:       "success selector missing",
			validation: &models.ScriptValidation{SuccessSelector: "#dashboard"},
			wantStatus: models.ScriptFailed,
			wantReason: "success indicator #dashboard",
		},
		{
			name:       "success text matches after normalisation",
			validation: &models.ScriptValidation{SuccessSelector: "#greeting", SuccessText: "Bienvenue  Zo\u00e9"},
			setup: func(p *browsertest.FakePage) {
				p.Show("#greeting")
				p.Texts["#greeting"] = "Bienvenue\n\tZoe\u0301 !"
			},
			wantStatus: models.ScriptSucceeded,
		},
		{
			name:       "success text missing",
			validation: &models.ScriptValidation{SuccessText: "Signed in"},
			setup:      func(p *browsertest.FakePage) { p.Texts[""] = "Sign in failed" },
			wantStatus: models.ScriptFailed,
			wantReason: "success text",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := browsertest.NewFakePage(nil, "#login")
			if tt.setup != nil {
				tt.setup(page)
			}
			script := &models.SetupScript{
				ID:         "login",
				Enabled:    true,
				Steps:      []models.Step{{Sequence: 1, Action: models.ActionClick, Selector: "#login"}},
				Validation: tt.validation,
			}

			run := newEngine(t, nil).Run(context.Background(), page, "p1", "s1", script, nil)

			assert.Equal(t, tt.wantStatus, run.Status, run.Reason)
			if tt.wantReason != "" {
				assert.Contains(t, run.Reason, tt.wantReason)
			}
			assert.Zero(t, run.FailedStep, "validation failures are not step failures")
		})
	}
}

func TestScriptEngine_RecordsStats(t *testing.T) {
	st := newStore(t)
	engine := newEngine(t, st)
	page := browsertest.NewFakePage(nil, "#ok")

	good := &models.SetupScript{ID: "s", Enabled: true, Steps: []models.Step{{Sequence: 1, Action: models.ActionClick, Selector: "#ok"}}}
	engine.Run(context.Background(), page, "p1", "session-a", good, nil)

	bad := &models.SetupScript{ID: "s", Enabled: true, Steps: []models.Step{{Sequence: 1, Action: models.ActionClick, Selector: "#nope", TimeoutMs: 20}}}
	engine.Run(context.Background(), page, "p1", "session-b", bad, nil)

	stats, err := st.GetScriptStats(context.Background(), "s")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.SuccessCount)
	assert.Equal(t, 1, stats.FailureCount)
	assert.Equal(t, string(models.ScriptFailed), stats.LastStatus)
	assert.Equal(t, stats.SuccessCount, bad.Stats.SuccessCount, "the script carries the stored stats")
	assert.Equal(t, stats.FailureCount, bad.Stats.FailureCount)

	runs, err := st.ListScriptRuns(context.Background(), "s", 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, 1, runs[0].FailedStep)
}

func TestScriptEngine_ConcurrentStatsUpdates(t *testing.T) {
	st := newStore(t)
	engine := newEngine(t, st)

	const runs = 12
	var wg sync.WaitGroup
	wg.Add(runs)
	for i := 0; i < runs; i++ {
		go func() {
			defer wg.Done()
			page := browsertest.NewFakePage(nil, "#ok")
			script := &models.SetupScript{ID: "shared", Enabled: true, Steps: []models.Step{{Sequence: 1, Action: models.ActionClick, Selector: "#ok"}}}
			engine.Run(context.Background(), page, "p", "s", script, nil)
		}()
	}
	wg.Wait()

	stats, err := st.GetScriptStats(context.Background(), "shared")
	require.NoError(t, err)
	assert.Equal(t, runs, stats.SuccessCount, "no update is lost")
}

func TestScriptEngine_InvalidScriptFails(t *testing.T) {
	script := &models.SetupScript{
		ID:      "dup",
		Enabled: true,
		Steps: []models.Step{
			{Sequence: 1, Action: models.ActionWait, Value: "1"},
			{Sequence: 1, Action: models.ActionWait, Value: "1"},
		},
	}

	run := newEngine(t, nil).Run(context.Background(), browsertest.NewFakePage(nil), "p", "s", script, nil)

	assert.Equal(t, models.ScriptFailed, run.Status)
	assert.Contains(t, run.Reason, "duplicate step sequence")
	assert.Empty(t, run.Outcomes)
}

func TestScriptEngine_CancelledBetweenSteps(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	page := browsertest.NewFakePage(nil, "#a", "#b")
	page.OnClick["#a"] = func(*browsertest.FakePage) { cancel() }
	script := &models.SetupScript{
		ID:      "c",
		Enabled: true,
		Steps: []models.Step{
			{Sequence: 1, Action: models.ActionClick, Selector: "#a"},
			{Sequence: 2, Action: models.ActionClick, Selector: "#b"},
		},
	}
	st := newStore(t)

	run := newEngine(t, st).Run(ctx, page, "p", "s", script, nil)

	assert.Equal(t, models.ScriptFailed, run.Status)
	assert.Equal(t, 2, run.FailedStep)
	assert.Contains(t, run.Reason, "cancelled")

	stats, err := st.GetScriptStats(context.Background(), "c")
	require.NoError(t, err, "a cancelled run is still recorded")
	assert.Equal(t, 1, stats.FailureCount)
}

func TestNormalizeText(t *testing.T) {
	assert.Equal(t, "caf\u00e9 au lait", normalizeText("  cafe\u0301\n au   lait "))
	assert.Equal(t, "", normalizeText(" \t\n"))
}
