package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bobdodd/auto-a11y/internal/browser"
	"github.com/bobdodd/auto-a11y/internal/checks"
	"github.com/bobdodd/auto-a11y/internal/dom"
	"github.com/bobdodd/auto-a11y/internal/harness"
	"github.com/bobdodd/auto-a11y/internal/models"
	"github.com/bobdodd/auto-a11y/internal/results"
)

// Logger interface for orchestrator and runner progress.
type Logger interface {
	LogStateStart(pageID string, state models.PageState)
	LogStateComplete(result *models.TestResult, action results.GuardAction)
	LogScriptRun(pageID string, run *models.ScriptRun)
	LogPageFail(pageID string, err error)
	LogSummary(summary results.Summary)
	LogWarn(message string)
}

// ResultStore persists state results and the links between them.
type ResultStore interface {
	SaveResult(ctx context.Context, r *models.TestResult) error
	LinkResults(ctx context.Context, ids []string) error
}

// EnablementSource supplies the check enablement map for a run.
type EnablementSource interface {
	Get(debugOverride bool) harness.View
}

// RunOptions controls one multi-state run.
type RunOptions struct {
	// EnableMultiState runs the page's setup script and tests the states it
	// produces. When false only the initial state is tested.
	EnableMultiState bool
}

// OrchestratorConfig carries the collaborators of an Orchestrator.
type OrchestratorConfig struct {
	Registry *checks.Registry
	Store    ResultStore
	Scripts  *ScriptEngine
	// Enablement gates which checks run; nil runs every selected check unaudited.
	Enablement    EnablementSource
	DebugOverride bool
	Guard         *results.SizeGuard
	Secrets       SecretStore
	// Screenshots stores the per-state page screenshot; nil disables capture.
	Screenshots ScreenshotStore
	Logger      Logger
}

// Orchestrator tests a page in one or more interaction states.
//
// It owns no global state: every collaborator arrives through
// OrchestratorConfig, so several orchestrators can share a process.
type Orchestrator struct {
	registry      *checks.Registry
	store         ResultStore
	scripts       *ScriptEngine
	enablement    EnablementSource
	debugOverride bool
	guard         *results.SizeGuard
	secrets       SecretStore
	screenshots   ScreenshotStore
	logger        Logger
}

// NewOrchestrator creates an Orchestrator. Registry and Store are required.
func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	if cfg.Registry == nil {
		panic("check registry cannot be nil")
	}
	if cfg.Store == nil {
		panic("result store cannot be nil")
	}
	if cfg.Scripts == nil {
		cfg.Scripts = NewScriptEngine(NewActionExecutor(0, cfg.Screenshots), nil, nil, cfg.Logger)
	}
	if cfg.Guard == nil {
		cfg.Guard = results.NewSizeGuard(0)
	}
	return &Orchestrator{
		registry:      cfg.Registry,
		store:         cfg.Store,
		scripts:       cfg.Scripts,
		enablement:    cfg.Enablement,
		debugOverride: cfg.DebugOverride,
		guard:         cfg.Guard,
		secrets:       cfg.Secrets,
		screenshots:   cfg.Screenshots,
		logger:        cfg.Logger,
	}
}

// plannedRun is the state of one RunMultiStateTest call.
type plannedRun struct {
	target    *models.Page
	sessionID string
	checks    []checks.Check
	checkIDs  []models.CheckID
	audited   bool
	saved     []*models.TestResult
}

// RunMultiStateTest navigates page to target.URL and tests it in every
// state the target's setup script defines.
//
// Each state result is size guarded and persisted as soon as its checks
// finish. All results of the run share one session id and are linked to each
// other once the run ends. A fault aborts the remaining states and is
// returned as an *OrchestrationError together with the results already
// persisted; the state in flight at the fault is discarded.
func (o *Orchestrator) RunMultiStateTest(ctx context.Context, page browser.Page, target *models.Page, opts RunOptions) ([]*models.TestResult, error) {
	if target == nil {
		return nil, fmt.Errorf("page cannot be nil")
	}
	if err := target.Validate(); err != nil {
		return nil, err
	}

	run := o.plan(target)

	err := o.runStates(ctx, page, run, opts)
	if linkErr := o.link(ctx, run); linkErr != nil && err == nil {
		err = &OrchestrationError{PageID: target.ID, State: len(run.saved) - 1, Phase: PhaseLink, Err: linkErr}
	}
	if err != nil && o.logger != nil {
		o.logger.LogPageFail(target.ID, err)
	}
	return run.saved, err
}

func (o *Orchestrator) plan(target *models.Page) *plannedRun {
	run := &plannedRun{target: target, sessionID: uuid.NewString(), saved: []*models.TestResult{}}

	requested := target.Checks
	if len(requested) == 0 {
		requested = o.registry.IDs()
	}
	if unknown := o.registry.Unknown(requested); len(unknown) > 0 {
		o.warn(fmt.Sprintf("page %s requests unknown checks %v; they are skipped", target.ID, unknown))
	}
	var view harness.View
	gated := o.enablement != nil
	if gated {
		view = o.enablement.Get(o.debugOverride)
	}
	for _, id := range requested {
		if gated && !view.Allows(id) {
			continue
		}
		if _, ok := o.registry.Get(id); ok {
			run.checkIDs = append(run.checkIDs, id)
		}
	}
	if len(run.checkIDs) > 0 {
		run.checks = o.registry.Select(run.checkIDs)
	}
	run.audited = gated && view.Audited()
	return run
}

func (o *Orchestrator) runStates(ctx context.Context, page browser.Page, run *plannedRun, opts RunOptions) error {
	target := run.target
	if err := page.Navigate(ctx, target.URL); err != nil {
		return &OrchestrationError{PageID: target.ID, State: 0, Phase: PhaseNavigate, Err: err}
	}

	script := target.Script
	multi := opts.EnableMultiState && script.Qualifies()

	seq := 0
	if !multi || script.TestBeforeExecution {
		state := models.PageState{Sequence: seq, Description: "initial"}
		if err := o.testState(ctx, page, run, state, nil); err != nil {
			return err
		}
		seq++
	}
	if !multi {
		return nil
	}

	indicators := script.Indicators()
	before := visibility(ctx, page, indicators)

	scriptRun := o.scripts.Run(ctx, page, target.ID, run.sessionID, script, o.secrets)
	if o.logger != nil {
		o.logger.LogScriptRun(target.ID, scriptRun)
	}
	if err := ctx.Err(); err != nil {
		return &OrchestrationError{PageID: target.ID, State: seq, Phase: PhaseScript, Err: err}
	}
	// the intended state was not reached, so there is nothing to test
	if !scriptRun.Succeeded() {
		return nil
	}
	if !script.TestAfterExecution && script.TestBeforeExecution {
		return nil
	}

	after := visibility(ctx, page, indicators)
	state := models.PageState{
		Sequence:        seq,
		Description:     "after " + scriptLabel(script),
		ScriptsExecuted: []string{script.ID},
	}
	for _, sel := range indicators {
		switch {
		case after[sel] && !before[sel]:
			state.ElementsShown = append(state.ElementsShown, sel)
		case before[sel] && !after[sel]:
			state.ElementsHidden = append(state.ElementsHidden, sel)
		}
	}
	return o.testState(ctx, page, run, state, scriptRun)
}

// testState captures, checks, guards and persists one state.
func (o *Orchestrator) testState(ctx context.Context, page browser.Page, run *plannedRun, state models.PageState, scriptRun *models.ScriptRun) error {
	pageID := run.target.ID
	if o.logger != nil {
		o.logger.LogStateStart(pageID, state)
	}
	started := time.Now()

	snap, err := page.Snapshot(ctx)
	if err != nil {
		return &OrchestrationError{PageID: pageID, State: state.Sequence, Phase: PhaseSnapshot, Err: err}
	}
	outcome := o.runChecks(snap, run.checks)
	shot := o.capture(ctx, page, run.sessionID, state.Sequence)

	if err := ctx.Err(); err != nil {
		return &OrchestrationError{PageID: pageID, State: state.Sequence, Phase: PhaseSnapshot, Err: err}
	}

	result := results.Aggregate(results.StateRun{
		PageID:     pageID,
		URL:        run.target.URL,
		SessionID:  run.sessionID,
		State:      state,
		Outcome:    outcome,
		ChecksRun:  run.checkIDs,
		Audited:    run.audited,
		Started:    started,
		Finished:   time.Now(),
		Screenshot: shot,
		ScriptRun:  scriptRun,
	})

	guarded, _, action, err := o.guard.Apply(result)
	if err != nil {
		return &OrchestrationError{PageID: pageID, State: state.Sequence, Phase: PhasePersist, Err: err}
	}
	if err := o.store.SaveResult(ctx, guarded); err != nil {
		return &OrchestrationError{PageID: pageID, State: state.Sequence, Phase: PhasePersist, Err: err}
	}
	run.saved = append(run.saved, guarded)

	if o.logger != nil {
		o.logger.LogStateComplete(guarded, action)
	}
	return nil
}

// runChecks runs every check over snap. A check that panics is reported as
// a warning instead of taking the state down.
func (o *Orchestrator) runChecks(snap *dom.Snapshot, selected []checks.Check) checks.Outcome {
	var out checks.Outcome
	for _, c := range selected {
		out.Merge(runCheck(c, snap))
	}
	return out
}

func runCheck(c checks.Check, snap *dom.Snapshot) (out checks.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = checks.Outcome{Warnings: []models.Finding{{
				Check:       c.ID(),
				Code:        CodeCheckError,
				Impact:      models.ImpactLow,
				Touchpoint:  c.Touchpoint(),
				Description: fmt.Sprintf("check %s failed and produced no findings", c.ID()),
				Metadata:    models.GenericMetadata{"error": fmt.Sprint(r)},
			}}}
		}
	}()
	return c.Run(snap)
}

// CodeCheckError marks a check that failed while inspecting a snapshot.
const CodeCheckError = "WarnCheckError"

func (o *Orchestrator) capture(ctx context.Context, page browser.Page, sessionID string, seq int) string {
	if o.screenshots == nil {
		return ""
	}
	data, err := page.Screenshot(ctx)
	if err != nil {
		o.warn(fmt.Sprintf("screenshot of state %d: %v", seq, err))
		return ""
	}
	ref, err := o.screenshots.Save(ctx, fmt.Sprintf("%s-state-%d", sessionID, seq), data)
	if err != nil {
		o.warn(fmt.Sprintf("save screenshot of state %d: %v", seq, err))
		return ""
	}
	return ref
}

// link relates every persisted result of the run to every other one, in
// memory and in the store. It runs even when the run was cancelled so the
// results that made it are still grouped.
func (o *Orchestrator) link(ctx context.Context, run *plannedRun) error {
	ids := make([]string, len(run.saved))
	for i, r := range run.saved {
		ids[i] = r.ID
	}
	for _, r := range run.saved {
		related := make([]string, 0, len(ids)-1)
		for _, id := range ids {
			if id != r.ID {
				related = append(related, id)
			}
		}
		r.RelatedResultIDs = related
	}
	if len(ids) < 2 {
		return nil
	}
	return o.store.LinkResults(context.WithoutCancel(ctx), ids)
}

func (o *Orchestrator) warn(msg string) {
	if o.logger != nil {
		o.logger.LogWarn(msg)
	}
}

// visibility records which selectors are visible right now. Lookup errors
// count as not visible.
func visibility(ctx context.Context, page browser.Page, selectors []string) map[string]bool {
	out := make(map[string]bool, len(selectors))
	for _, sel := range selectors {
		v, err := page.IsVisible(ctx, sel)
		out[sel] = err == nil && v
	}
	return out
}

func scriptLabel(s *models.SetupScript) string {
	if s.Name != "" {
		return s.Name
	}
	return s.ID
}
