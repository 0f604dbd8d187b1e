package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobdodd/auto-a11y/internal/browser/browsertest"
	"github.com/bobdodd/auto-a11y/internal/store"
)

func openProjectStore(t *testing.T, root string) *store.Store {
	t.Helper()
	st, err := store.NewStore(filepath.Join(root, ".a11y", "results.db"), 0)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func TestRunCommand_TestsEveryState(t *testing.T) {
	root, pagesFile := newProject(t)
	launcher := useFakeBrowser(t, cookieBannerPage)

	out, err := execute(t, "run", pagesFile, "--project", root, "--debug-override")
	require.NoError(t, err, out)

	assert.Contains(t, out, "Testing 2 page(s)")
	assert.Contains(t, out, "debug override is on")
	assert.Contains(t, out, "=== Audit Summary ===")
	assert.Contains(t, out, "Logs written to: "+filepath.Join(root, ".a11y", "logs"))
	assert.Len(t, launcher.Pages, 2)

	st := openProjectStore(t, root)
	states, err := st.GetLatestStatesForPage(context.Background(), "home")
	require.NoError(t, err)
	require.Len(t, states, 2)
	assert.Equal(t, 1, states[0].ViolationCount)
	assert.Equal(t, 2, states[1].ViolationCount)
	assert.False(t, states[1].Audited, "debug override results are unaudited")
	assert.Equal(t, []string{states[1].ID}, states[0].RelatedResultIDs)

	stats, err := st.GetScriptStats(context.Background(), "accept-cookies")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.SuccessCount)
}

func TestRunCommand_WarnsWithoutTrustedChecks(t *testing.T) {
	root, pagesFile := newProject(t)
	useFakeBrowser(t, cookieBannerPage)

	out, err := execute(t, "run", pagesFile, "--project", root, "--page", "about")
	require.NoError(t, err, out)
	assert.Contains(t, out, "no trusted checks")

	st := openProjectStore(t, root)
	states, err := st.GetLatestStatesForPage(context.Background(), "about")
	require.NoError(t, err)
	require.Len(t, states, 1)
	assert.Empty(t, states[0].ChecksRun)
	assert.False(t, states[0].Audited, "a never validated project is unaudited")
}

func TestRunCommand_NoMultiState(t *testing.T) {
	root, pagesFile := newProject(t)
	useFakeBrowser(t, cookieBannerPage)

	out, err := execute(t, "run", pagesFile, "--project", root, "--page", "home", "--debug-override", "--no-multi-state")
	require.NoError(t, err, out)

	st := openProjectStore(t, root)
	states, err := st.GetLatestStatesForPage(context.Background(), "home")
	require.NoError(t, err)
	assert.Len(t, states, 1)
}

func TestRunCommand_Errors(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"unknown page", []string{"--page", "nope"}, "unknown pages: nope"},
		{"bad timeout", []string{"--timeout", "soon"}, "invalid timeout format"},
		{"negative concurrency", []string{"--max-concurrency=-2"}, "max_concurrency must be >= 0"},
		{"bad log level", []string{"--log-level", "loud"}, "invalid log_level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root, pagesFile := newProject(t)
			launcher := useFakeBrowser(t, cookieBannerPage)

			args := append([]string{"run", pagesFile, "--project", root}, tt.args...)
			_, err := execute(t, args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Empty(t, launcher.Pages)
		})
	}
}

func TestRunCommand_MissingPagesFile(t *testing.T) {
	root, _ := newProject(t)
	useFakeBrowser(t, cookieBannerPage)

	_, err := execute(t, "run", filepath.Join(root, "missing.yaml"), "--project", root)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load pages")
}

func TestRunCommand_Help(t *testing.T) {
	out, err := execute(t, "run", "--help")
	require.NoError(t, err)
	assert.Contains(t, out, "Only checks trusted by the last fixture validation run are executed.")
	assert.Contains(t, out, "--debug-override")
}

// largeScreenshotPage is the cookie banner page with a screenshot twice the
// size of the guard limit used below.
func largeScreenshotPage() *browsertest.FakePage {
	page := cookieBannerPage()
	page.ScreenshotData = bytes.Repeat([]byte{0x89}, 128<<10)
	return page
}

func writeProjectConfig(t *testing.T, root, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(root, ".a11y", "config.yaml"), []byte(content), 0644))
}

func TestRunCommand_ScreenshotsSurviveSizeGuard(t *testing.T) {
	t.Run("default screenshot dir keeps the image on disk", func(t *testing.T) {
		root, pagesFile := newProject(t)
		writeProjectConfig(t, root, "store:\n  safe_limit_bytes: 65536\n")
		useFakeBrowser(t, largeScreenshotPage)

		out, err := execute(t, "run", pagesFile, "--project", root, "--page", "about", "--debug-override")
		require.NoError(t, err, out)

		st := openProjectStore(t, root)
		states, err := st.GetLatestStatesForPage(context.Background(), "about")
		require.NoError(t, err)
		require.Len(t, states, 1)

		r := states[0]
		assert.False(t, r.SizeLimited)
		require.NotEmpty(t, r.Screenshot)
		assert.Equal(t, filepath.Join(root, ".a11y", "screenshots"), filepath.Dir(r.Screenshot))
		info, err := os.Stat(r.Screenshot)
		require.NoError(t, err)
		assert.Equal(t, int64(128<<10), info.Size())
	})

	t.Run("inline screenshots are dropped by the guard", func(t *testing.T) {
		root, pagesFile := newProject(t)
		writeProjectConfig(t, root, "store:\n  safe_limit_bytes: 65536\nscreenshots:\n  dir: \"\"\n")
		useFakeBrowser(t, largeScreenshotPage)

		out, err := execute(t, "run", pagesFile, "--project", root, "--page", "about", "--debug-override")
		require.NoError(t, err, out)

		st := openProjectStore(t, root)
		states, err := st.GetLatestStatesForPage(context.Background(), "about")
		require.NoError(t, err)
		require.Len(t, states, 1)
		assert.Empty(t, states[0].Screenshot)
		assert.False(t, states[0].SizeLimited)
		assert.Equal(t, 1, states[0].ViolationCount)
		assert.NoDirExists(t, filepath.Join(root, ".a11y", "screenshots"))
	})
}
