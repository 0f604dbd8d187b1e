package executor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/bobdodd/auto-a11y/internal/browser"
	"github.com/bobdodd/auto-a11y/internal/filelock"
	"github.com/bobdodd/auto-a11y/internal/models"
	"github.com/bobdodd/auto-a11y/internal/store"
)

// StatsRecorder persists one script execution and returns the updated stats.
type StatsRecorder interface {
	RecordScriptRun(ctx context.Context, rec store.ScriptRunRecord) (models.ExecutionStats, error)
}

// ScriptEngine runs setup scripts step by step and judges whether the page
// reached the intended state.
//
// A run moves Pending -> Running -> Succeeded or Failed. It halts on the
// first failing step; every attempted step has an outcome in the run.
type ScriptEngine struct {
	actions *ActionExecutor
	stats   StatsRecorder
	locks   *filelock.KeyedLocker
	logger  Logger
}

// NewScriptEngine creates an engine. stats may be nil to skip recording;
// locks may be nil for in-process serialisation only.
func NewScriptEngine(actions *ActionExecutor, stats StatsRecorder, locks *filelock.KeyedLocker, logger Logger) *ScriptEngine {
	if actions == nil {
		panic("action executor cannot be nil")
	}
	if locks == nil {
		locks = filelock.NewKeyedLocker("")
	}
	return &ScriptEngine{actions: actions, stats: stats, locks: locks, logger: logger}
}

// Run executes script on page and records the run in the script's stats.
// Internal errors and panics end the run as Failed; Run itself never fails.
func (e *ScriptEngine) Run(ctx context.Context, page browser.Page, pageID, sessionID string, script *models.SetupScript, secrets SecretStore) *models.ScriptRun {
	start := time.Now()
	run := &models.ScriptRun{ScriptID: script.ID, Status: models.ScriptPending, Outcomes: []models.StepOutcome{}}

	func() {
		defer func() {
			if r := recover(); r != nil {
				run.Status = models.ScriptFailed
				run.Reason = fmt.Sprintf("internal error: %v", r)
			}
		}()
		e.execute(ctx, page, script, secrets, run)
	}()
	run.DurationMs = time.Since(start).Milliseconds()

	e.record(ctx, pageID, sessionID, script, run, start)
	return run
}

func (e *ScriptEngine) execute(ctx context.Context, page browser.Page, script *models.SetupScript, secrets SecretStore, run *models.ScriptRun) {
	if err := script.Validate(); err != nil {
		run.Status = models.ScriptFailed
		run.Reason = err.Error()
		return
	}

	run.Status = models.ScriptRunning
	for _, step := range script.OrderedSteps() {
		if err := ctx.Err(); err != nil {
			run.Status = models.ScriptFailed
			run.FailedStep = step.Sequence
			run.Reason = fmt.Sprintf("cancelled before step %d: %v", step.Sequence, err)
			return
		}
		out := e.actions.Execute(ctx, step, page, secrets)
		run.Outcomes = append(run.Outcomes, out)
		if !out.Success {
			run.Status = models.ScriptFailed
			run.FailedStep = step.Sequence
			run.Reason = out.Error
			return
		}
	}

	if reason := e.validate(ctx, page, script.Validation); reason != "" {
		run.Status = models.ScriptFailed
		run.Reason = reason
		return
	}
	run.Status = models.ScriptSucceeded
}

// validate checks the post-conditions and returns a failure reason, or ""
// when the page is in the intended state. Failure selectors win over success
// conditions. Without validation the step outcomes decide.
func (e *ScriptEngine) validate(ctx context.Context, page browser.Page, v *models.ScriptValidation) string {
	if v == nil {
		return ""
	}
	for _, sel := range v.FailureSelectors {
		visible, err := page.IsVisible(ctx, sel)
		if err != nil {
			return fmt.Sprintf("check failure selector %s: %v", sel, err)
		}
		if visible {
			return fmt.Sprintf("failure indicator %s is visible", sel)
		}
	}

	if v.SuccessSelector != "" {
		waitCtx, cancel := context.WithTimeout(ctx, e.actions.DefaultTimeout())
		err := page.WaitVisible(waitCtx, v.SuccessSelector)
		cancel()
		if err != nil {
			return fmt.Sprintf("success indicator %s not visible: %v", v.SuccessSelector, err)
		}
	}

	if v.SuccessText != "" {
		text, err := page.Text(ctx, v.SuccessSelector)
		if err != nil {
			return fmt.Sprintf("read success text: %v", err)
		}
		if !strings.Contains(normalizeText(text), normalizeText(v.SuccessText)) {
			return fmt.Sprintf("success text %q not found", v.SuccessText)
		}
	}
	return ""
}

// record folds the run into the script stats. Runs of one script are
// serialised so concurrent pages sharing it never lose an update.
func (e *ScriptEngine) record(ctx context.Context, pageID, sessionID string, script *models.SetupScript, run *models.ScriptRun, start time.Time) {
	if e.stats == nil {
		script.Stats = script.Stats.Record(run.Succeeded(), time.Duration(run.DurationMs)*time.Millisecond, start)
		return
	}

	// a cancelled run is still a run
	ctx = context.WithoutCancel(ctx)
	unlock, err := e.locks.Lock(ctx, "script-"+script.ID)
	if err != nil {
		e.warn(fmt.Sprintf("lock stats for script %s: %v", script.ID, err))
		return
	}
	defer unlock()

	stats, err := e.stats.RecordScriptRun(ctx, store.ScriptRunRecord{
		ScriptID:   script.ID,
		PageID:     pageID,
		SessionID:  sessionID,
		Status:     run.Status,
		FailedStep: run.FailedStep,
		Reason:     run.Reason,
		DurationMs: run.DurationMs,
		RanAt:      start.UTC(),
	})
	if err != nil {
		e.warn(fmt.Sprintf("record stats for script %s: %v", script.ID, err))
		return
	}
	script.Stats = stats
}

func (e *ScriptEngine) warn(msg string) {
	if e.logger != nil {
		e.logger.LogWarn(msg)
	}
}

// normalizeText puts text in NFC form and collapses runs of whitespace.
func normalizeText(s string) string {
	return strings.Join(strings.Fields(norm.NFC.String(s)), " ")
}
