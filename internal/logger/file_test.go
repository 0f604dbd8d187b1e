package logger

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bobdodd/auto-a11y/internal/models"
	"github.com/bobdodd/auto-a11y/internal/results"
)

func newTestFileLogger(t *testing.T, level string) (*FileLogger, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "logs")
	logger, err := NewFileLogger(dir, level)
	if err != nil {
		t.Fatalf("NewFileLogger() error = %v", err)
	}
	t.Cleanup(func() { logger.Close() })
	return logger, dir
}

func readRunLog(t *testing.T, logger *FileLogger) string {
	t.Helper()
	data, err := os.ReadFile(logger.RunFile())
	if err != nil {
		t.Fatalf("read run log: %v", err)
	}
	return string(data)
}

// TestFileLoggerLayout verifies the run log, scripts directory and latest.log symlink
func TestFileLoggerLayout(t *testing.T) {
	logger, dir := newTestFileLogger(t, "info")

	base := filepath.Base(logger.RunFile())
	if !strings.HasPrefix(base, "run-") || !strings.HasSuffix(base, ".log") {
		t.Errorf("unexpected run log name %q", base)
	}
	if info, err := os.Stat(filepath.Join(dir, "scripts")); err != nil || !info.IsDir() {
		t.Errorf("expected scripts directory, err = %v", err)
	}

	target, err := os.Readlink(filepath.Join(dir, "latest.log"))
	if err != nil {
		t.Fatalf("latest.log: %v", err)
	}
	if target != base {
		t.Errorf("latest.log -> %q, want %q", target, base)
	}

	if !strings.Contains(readRunLog(t, logger), "=== auto-a11y Run Log ===") {
		t.Error("expected run log header")
	}
}

func TestFileLoggerEvents(t *testing.T) {
	logger, _ := newTestFileLogger(t, "debug")

	logger.LogStateStart("home", models.PageState{Sequence: 2, Description: "After: cookies", ScriptsExecuted: []string{"cookies"}})
	logger.LogStateComplete(sampleResult(), results.GuardDroppedScreenshots)
	logger.LogPageFail("cart", errors.New("tab crashed"))
	logger.LogProgress(1, 2)
	logger.LogSummary(results.Summary{Results: 2, Violations: 2, SizeLimited: 1})

	out := readRunLog(t, logger)
	for _, want := range []string{
		"home state 2: testing After: cookies (after cookies)",
		"home state 1: result r-1, violations: 2, passes: 1, guard dropped-screenshots, audited true",
		"[ERROR] page cart failed: tab crashed",
		"Progress: [==========          ] 1/2 (50%)",
		"=== AUDIT SUMMARY ===",
		"Size limited: 1",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in run log:\n%s", want, out)
		}
	}
}

func TestFileLoggerScriptLog(t *testing.T) {
	logger, dir := newTestFileLogger(t, "info")

	run := &models.ScriptRun{
		ScriptID:   "login",
		Status:     models.ScriptFailed,
		FailedStep: 2,
		Reason:     "element #submit not found",
		DurationMs: 840,
		Outcomes: []models.StepOutcome{
			{Sequence: 1, Action: models.ActionType, Success: true, ElapsedMs: 120, Screenshot: "shots/login-1.png"},
			{Sequence: 2, Action: models.ActionClick, Success: false, ElapsedMs: 700, Error: "element #submit not found"},
		},
	}
	logger.LogScriptRun("my account", run)

	data, err := os.ReadFile(filepath.Join(dir, "scripts", "my_account-login.log"))
	if err != nil {
		t.Fatalf("script log: %v", err)
	}
	content := string(data)
	for _, want := range []string{
		"=== Script login on page my account ===",
		"Status: failed",
		"Failed step: 2",
		"1. type ok (120ms) [shots/login-1.png]",
		"2. click FAILED (700ms): element #submit not found",
	} {
		if !strings.Contains(content, want) {
			t.Errorf("expected %q in script log:\n%s", want, content)
		}
	}

	if !strings.Contains(readRunLog(t, logger), "my account script login: FAILED: element #submit not found") {
		t.Error("failed script should appear in the run log at warn level")
	}
}

func TestFileLoggerLevelFiltering(t *testing.T) {
	logger, _ := newTestFileLogger(t, "warn")

	logger.LogInfo("info message")
	logger.LogDebug("debug message")
	logger.LogWarn("warn message")
	logger.LogStateComplete(sampleResult(), results.GuardKept)

	out := readRunLog(t, logger)
	if strings.Contains(out, "info message") || strings.Contains(out, "debug message") {
		t.Errorf("filtered messages written:\n%s", out)
	}
	if strings.Contains(out, "home state 1") {
		t.Errorf("state results are info level:\n%s", out)
	}
	if !strings.Contains(out, "[WARN] warn message") {
		t.Errorf("expected warn message:\n%s", out)
	}
}

func TestFileLoggerCloseTwice(t *testing.T) {
	logger, _ := newTestFileLogger(t, "info")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	logger.LogInfo("after close")
}

func TestNewFileLoggerReplacesLatest(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink("run-old.log", filepath.Join(dir, "latest.log")); err != nil {
		t.Fatal(err)
	}

	logger, err := NewFileLogger(dir, "info")
	if err != nil {
		t.Fatalf("NewFileLogger() error = %v", err)
	}
	defer logger.Close()

	target, _ := os.Readlink(filepath.Join(dir, "latest.log"))
	if target != filepath.Base(logger.RunFile()) {
		t.Errorf("latest.log -> %q", target)
	}
}
