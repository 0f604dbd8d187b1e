package logger

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bobdodd/auto-a11y/internal/models"
	"github.com/bobdodd/auto-a11y/internal/results"
)

func TestMultiLoggerFansOut(t *testing.T) {
	var a, b bytes.Buffer
	multi := NewMultiLogger(NewConsoleLogger(&a, "debug"), nil, NewConsoleLogger(&b, "debug"))

	multi.LogStateStart("home", models.PageState{Sequence: 1, Description: "Initial page state"})
	multi.LogStateComplete(sampleResult(), results.GuardKept)
	multi.LogScriptRun("home", &models.ScriptRun{ScriptID: "cookies", Status: models.ScriptSucceeded})
	multi.LogPageFail("cart", errors.New("boom"))
	multi.LogProgress(1, 1)
	multi.LogSummary(results.Summary{Results: 1})
	multi.LogInfo("info")
	multi.LogWarn("warn")
	multi.LogError("error")

	if a.String() == "" {
		t.Fatal("expected output")
	}
	// Timestamps can differ between the sinks, so compare line shapes.
	la := strings.Split(strings.TrimSpace(a.String()), "\n")
	lb := strings.Split(strings.TrimSpace(b.String()), "\n")
	if len(la) != len(lb) {
		t.Fatalf("sinks diverged: %d vs %d lines", len(la), len(lb))
	}
	for i := range la {
		if la[i][10:] != lb[i][10:] {
			t.Errorf("line %d differs: %q vs %q", i, la[i], lb[i])
		}
	}
}

func TestMultiLoggerWithFileSink(t *testing.T) {
	file, err := NewFileLogger(filepath.Join(t.TempDir(), "logs"), "info")
	if err != nil {
		t.Fatal(err)
	}
	defer file.Close()

	var console bytes.Buffer
	multi := NewMultiLogger(NewConsoleLogger(&console, "info"), file)
	multi.LogPageFail("cart", errors.New("boom"))

	if !strings.Contains(console.String(), "page cart failed: boom") {
		t.Errorf("console missing event: %q", console.String())
	}
	if !strings.Contains(readRunLog(t, file), "page cart failed: boom") {
		t.Error("file missing event")
	}
}
