package executor

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobdodd/auto-a11y/internal/browser/browsertest"
	"github.com/bobdodd/auto-a11y/internal/models"
)

type panicPage struct {
	*browsertest.FakePage
}

func (panicPage) Click(ctx context.Context, selector string) error {
	panic("tab crashed")
}

func envSecrets(vars map[string]string) *EnvSecrets {
	return &EnvSecrets{Prefix: "A11Y_", Lookup: func(name string) (string, bool) {
		v, ok := vars[name]
		return v, ok
	}}
}

func TestActionExecutor_Execute(t *testing.T) {
	tests := []struct {
		name      string
		step      models.Step
		visible   []string
		wantOK    bool
		wantCall  string
		wantError string
	}{
		{
			name:     "click visible element",
			step:     models.Step{Sequence: 1, Action: models.ActionClick, Selector: "#accept"},
			visible:  []string{"#accept"},
			wantOK:   true,
			wantCall: "click #accept",
		},
		{
			name:      "click missing element times out",
			step:      models.Step{Sequence: 2, Action: models.ActionClick, Selector: "#missing", TimeoutMs: 50},
			wantError: "timeout after 50ms",
		},
		{
			name:     "select option",
			step:     models.Step{Sequence: 1, Action: models.ActionSelect, Selector: "#country", Value: "CA"},
			visible:  []string{"#country"},
			wantOK:   true,
			wantCall: "select #country CA",
		},
		{
			name:     "hover",
			step:     models.Step{Sequence: 1, Action: models.ActionHover, Selector: "nav .menu"},
			visible:  []string{"nav .menu"},
			wantOK:   true,
			wantCall: "hover nav .menu",
		},
		{
			name:     "scroll element into view",
			step:     models.Step{Sequence: 1, Action: models.ActionScroll, Selector: "footer"},
			visible:  []string{"footer"},
			wantOK:   true,
			wantCall: "scroll footer",
		},
		{
			name:     "scroll window by pixels",
			step:     models.Step{Sequence: 1, Action: models.ActionScroll, Value: "300"},
			wantOK:   true,
			wantCall: "scrollby 300",
		},
		{
			name:      "scroll without target",
			step:      models.Step{Sequence: 1, Action: models.ActionScroll, Value: "down"},
			wantError: "pixel offset",
		},
		{
			name:     "wait for selector",
			step:     models.Step{Sequence: 1, Action: models.ActionWaitForSelector, Selector: "#main"},
			visible:  []string{"#main"},
			wantOK:   true,
			wantCall: "wait #main",
		},
		{
			name:     "wait for navigation",
			step:     models.Step{Sequence: 1, Action: models.ActionWaitForNavigation},
			wantOK:   true,
			wantCall: "wait navigation",
		},
		{
			name:     "wait for network idle",
			step:     models.Step{Sequence: 1, Action: models.ActionWaitForNetworkIdle},
			wantOK:   true,
			wantCall: "wait network idle",
		},
		{
			name:      "unknown action",
			step:      models.Step{Sequence: 3, Action: "teleport"},
			wantError: "unknown action",
		},
		{
			name:      "click without selector",
			step:      models.Step{Sequence: 4, Action: models.ActionClick},
			wantError: "requires a selector",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := browsertest.NewFakePage(nil, tt.visible...)
			ex := NewActionExecutor(time.Second, nil)

			out := ex.Execute(context.Background(), tt.step, page, nil)

			assert.Equal(t, tt.step.Sequence, out.Sequence)
			assert.Equal(t, tt.step.Action, out.Action)
			assert.Equal(t, tt.wantOK, out.Success, out.Error)
			if tt.wantCall != "" {
				assert.Contains(t, page.CallLog(), tt.wantCall)
			}
			if tt.wantError != "" {
				assert.Contains(t, out.Error, tt.wantError)
			} else {
				assert.Empty(t, out.Error)
			}
		})
	}
}

func TestActionExecutor_CapturesOnError(t *testing.T) {
	page := browsertest.NewFakePage(nil)
	ex := NewActionExecutor(50*time.Millisecond, nil)

	out := ex.Execute(context.Background(), models.Step{Sequence: 1, Action: models.ActionClick, Selector: "#gone"}, page, nil)

	assert.False(t, out.Success)
	assert.Contains(t, out.Error, "element not found")
	assert.True(t, strings.HasPrefix(out.Screenshot, "data:image/png;base64,"), "debug screenshot attached")
	assert.Contains(t, page.CallLog(), "screenshot")
}

func TestActionExecutor_ScreenshotAfter(t *testing.T) {
	dir := t.TempDir()
	page := browsertest.NewFakePage(nil, "#tab")
	ex := NewActionExecutor(time.Second, DirScreenshots{Dir: dir})

	out := ex.Execute(context.Background(), models.Step{
		Sequence: 7, Action: models.ActionClick, Selector: "#tab", ScreenshotAfter: true,
	}, page, nil)

	require.True(t, out.Success, out.Error)
	require.NotEmpty(t, out.Screenshot)
	data, err := os.ReadFile(out.Screenshot)
	require.NoError(t, err)
	assert.Equal(t, browsertest.PNG, data)
}

func TestActionExecutor_ScreenshotAction(t *testing.T) {
	page := browsertest.NewFakePage(nil)
	page.ScreenshotErr = errors.New("gpu lost")
	ex := NewActionExecutor(time.Second, nil)

	out := ex.Execute(context.Background(), models.Step{Sequence: 1, Action: models.ActionScreenshot}, page, nil)

	assert.False(t, out.Success)
	assert.Contains(t, out.Error, "gpu lost")
}

func TestActionExecutor_TypeResolvesSecrets(t *testing.T) {
	page := browsertest.NewFakePage(nil, "#user", "#pass")
	ex := NewActionExecutor(time.Second, nil)
	secrets := envSecrets(map[string]string{"A11Y_PASSWORD": "hunter2"})

	out := ex.Execute(context.Background(), models.Step{
		Sequence: 2, Action: models.ActionType, Selector: "#pass", Value: "${ENV:PASSWORD}",
	}, page, secrets)

	require.True(t, out.Success, out.Error)
	assert.Equal(t, "hunter2", page.Typed["#pass"])
	assert.NotContains(t, out.Error, "hunter2")
}

func TestActionExecutor_TypeUnresolvedSecret(t *testing.T) {
	page := browsertest.NewFakePage(nil, "#pass")
	ex := NewActionExecutor(time.Second, nil)

	out := ex.Execute(context.Background(), models.Step{
		Sequence: 2, Action: models.ActionType, Selector: "#pass", Value: "${ENV:PASSWORD}",
	}, page, envSecrets(nil))

	assert.False(t, out.Success)
	assert.Contains(t, out.Error, "A11Y_PASSWORD")
	assert.NotContains(t, page.CallLog(), "type #pass", "the token is never typed")
	assert.Empty(t, page.Typed)

	out = ex.Execute(context.Background(), models.Step{
		Sequence: 2, Action: models.ActionType, Selector: "#pass", Value: "${ENV:PASSWORD}",
	}, page, nil)
	assert.False(t, out.Success)
	assert.Contains(t, out.Error, ErrUnresolvedSecret.Error())
}

func TestActionExecutor_RecoversPanics(t *testing.T) {
	page := panicPage{browsertest.NewFakePage(nil, "#accept")}
	ex := NewActionExecutor(time.Second, nil)

	var out models.StepOutcome
	assert.NotPanics(t, func() {
		out = ex.Execute(context.Background(), models.Step{Sequence: 1, Action: models.ActionClick, Selector: "#accept"}, page, nil)
	})
	assert.False(t, out.Success)
	assert.Contains(t, out.Error, "panic: tab crashed")
}

func TestActionExecutor_WaitAndWaitAfter(t *testing.T) {
	page := browsertest.NewFakePage(nil, "#a")
	ex := NewActionExecutor(time.Second, nil)

	out := ex.Execute(context.Background(), models.Step{Sequence: 1, Action: models.ActionWait, Value: "30"}, page, nil)
	require.True(t, out.Success, out.Error)
	assert.GreaterOrEqual(t, out.ElapsedMs, int64(30))

	out = ex.Execute(context.Background(), models.Step{Sequence: 2, Action: models.ActionClick, Selector: "#a", WaitAfterMs: 30}, page, nil)
	require.True(t, out.Success, out.Error)
	assert.GreaterOrEqual(t, out.ElapsedMs, int64(30))

	out = ex.Execute(context.Background(), models.Step{Sequence: 3, Action: models.ActionWait, Value: "soon"}, page, nil)
	assert.False(t, out.Success)
}

func TestActionExecutor_WaitHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	ex := NewActionExecutor(time.Second, nil)

	start := time.Now()
	out := ex.Execute(ctx, models.Step{Sequence: 1, Action: models.ActionWait, Value: "5000"}, browsertest.NewFakePage(nil), nil)

	assert.False(t, out.Success)
	assert.Less(t, time.Since(start), time.Second)
}

func TestEnvSecrets_Resolve(t *testing.T) {
	s := envSecrets(map[string]string{"A11Y_USER": "ada", "A11Y_PASS": "p@ss"})

	got, err := s.Resolve("${ENV:USER}:${ENV:PASS}")
	require.NoError(t, err)
	assert.Equal(t, "ada:p@ss", got)

	got, err = s.Resolve("plain text")
	require.NoError(t, err)
	assert.Equal(t, "plain text", got)

	_, err = s.Resolve("${ENV:USER} ${ENV:NOPE}")
	assert.ErrorIs(t, err, ErrUnresolvedSecret)
	assert.Contains(t, err.Error(), "A11Y_NOPE")

	assert.True(t, HasSecrets("x${ENV:A}"))
	assert.False(t, HasSecrets("${env:a}"))
}
