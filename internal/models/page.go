package models

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// Action identifies one scripted browser interaction.
type Action string

// Supported setup script actions
const (
	ActionClick              Action = "click"
	ActionType               Action = "type"
	ActionSelect             Action = "select"
	ActionHover              Action = "hover"
	ActionScroll             Action = "scroll"
	ActionWait               Action = "wait"
	ActionWaitForSelector    Action = "wait_for_selector"
	ActionWaitForNavigation  Action = "wait_for_navigation"
	ActionWaitForNetworkIdle Action = "wait_for_network_idle"
	ActionScreenshot         Action = "screenshot"
)

// Valid reports whether the action is one the executor knows how to run.
func (a Action) Valid() bool {
	switch a {
	case ActionClick, ActionType, ActionSelect, ActionHover, ActionScroll,
		ActionWait, ActionWaitForSelector, ActionWaitForNavigation,
		ActionWaitForNetworkIdle, ActionScreenshot:
		return true
	}
	return false
}

// RequiresSelector reports whether the action operates on a target element.
func (a Action) RequiresSelector() bool {
	switch a {
	case ActionClick, ActionType, ActionSelect, ActionHover, ActionWaitForSelector:
		return true
	}
	return false
}

// Page is a single test target.
type Page struct {
	ID        string       `yaml:"id" json:"id"`
	ProjectID string       `yaml:"project_id" json:"project_id"`
	URL       string       `yaml:"url" json:"url"`
	Checks    []CheckID    `yaml:"checks" json:"checks,omitempty"` // selected checks; empty selects every registered check
	Script    *SetupScript `yaml:"script" json:"script,omitempty"`
}

// Validate checks if the page has all required fields
func (p *Page) Validate() error {
	if p.ID == "" {
		return errors.New("page id is required")
	}
	if p.URL == "" {
		return fmt.Errorf("page %s: url is required", p.ID)
	}
	if p.Script != nil {
		if err := p.Script.Validate(); err != nil {
			return fmt.Errorf("page %s: %w", p.ID, err)
		}
	}
	return nil
}

// SetupScript is an ordered sequence of steps that moves a page into a new state.
type SetupScript struct {
	ID                  string            `yaml:"id" json:"id"`
	Name                string            `yaml:"name" json:"name"`
	Enabled             bool              `yaml:"enabled" json:"enabled"`
	Steps               []Step            `yaml:"steps" json:"steps"`
	TestBeforeExecution bool              `yaml:"test_before_execution" json:"test_before_execution"`
	TestAfterExecution  bool              `yaml:"test_after_execution" json:"test_after_execution"`
	Validation          *ScriptValidation `yaml:"validation" json:"validation,omitempty"`
	Stats               ExecutionStats    `yaml:"-" json:"stats"`
}

// Qualifies returns true when the script is enabled and has something to run.
func (s *SetupScript) Qualifies() bool {
	return s != nil && s.Enabled && len(s.Steps) > 0
}

// OrderedSteps returns a copy of the steps sorted by sequence number.
func (s *SetupScript) OrderedSteps() []Step {
	steps := make([]Step, len(s.Steps))
	copy(steps, s.Steps)
	sort.SliceStable(steps, func(i, j int) bool {
		return steps[i].Sequence < steps[j].Sequence
	})
	return steps
}

// Indicators returns the selectors whose visibility describes the state the
// script moves the page between: validation selectors first, then step targets.
func (s *SetupScript) Indicators() []string {
	seen := make(map[string]bool)
	var out []string
	add := func(sel string) {
		if sel == "" || seen[sel] {
			return
		}
		seen[sel] = true
		out = append(out, sel)
	}
	if s.Validation != nil {
		add(s.Validation.SuccessSelector)
		for _, sel := range s.Validation.FailureSelectors {
			add(sel)
		}
	}
	for _, step := range s.OrderedSteps() {
		add(step.Selector)
	}
	return out
}

// Validate checks the script definition for structural errors.
func (s *SetupScript) Validate() error {
	if s.ID == "" {
		return errors.New("script id is required")
	}
	seen := make(map[int]bool, len(s.Steps))
	for _, step := range s.Steps {
		if seen[step.Sequence] {
			return fmt.Errorf("script %s: duplicate step sequence %d", s.ID, step.Sequence)
		}
		seen[step.Sequence] = true
		if err := step.Validate(); err != nil {
			return fmt.Errorf("script %s: %w", s.ID, err)
		}
	}
	return nil
}

// ScriptValidation describes the DOM post-conditions of a setup script.
type ScriptValidation struct {
	SuccessSelector  string   `yaml:"success_selector" json:"success_selector,omitempty"`
	SuccessText      string   `yaml:"success_text" json:"success_text,omitempty"`
	FailureSelectors []string `yaml:"failure_selectors" json:"failure_selectors,omitempty"`
}

// Step is one scripted action. Steps are immutable once defined.
type Step struct {
	Sequence        int    `yaml:"sequence" json:"sequence"`
	Action          Action `yaml:"action" json:"action"`
	Selector        string `yaml:"selector" json:"selector,omitempty"`
	Value           string `yaml:"value" json:"value,omitempty"`
	TimeoutMs       int    `yaml:"timeout_ms" json:"timeout_ms,omitempty"`
	WaitAfterMs     int    `yaml:"wait_after_ms" json:"wait_after_ms,omitempty"`
	ScreenshotAfter bool   `yaml:"screenshot_after" json:"screenshot_after,omitempty"`
	Description     string `yaml:"description" json:"description,omitempty"`
}

// Timeout returns the step timeout, falling back to def when unset.
func (s Step) Timeout(def time.Duration) time.Duration {
	if s.TimeoutMs <= 0 {
		return def
	}
	return time.Duration(s.TimeoutMs) * time.Millisecond
}

// WaitAfter returns the settle delay applied after the action.
func (s Step) WaitAfter() time.Duration {
	if s.WaitAfterMs <= 0 {
		return 0
	}
	return time.Duration(s.WaitAfterMs) * time.Millisecond
}

// Validate checks if the step has all required fields
func (s Step) Validate() error {
	if !s.Action.Valid() {
		return fmt.Errorf("step %d: unknown action %q", s.Sequence, s.Action)
	}
	if s.Action.RequiresSelector() && s.Selector == "" {
		return fmt.Errorf("step %d: %s requires a selector", s.Sequence, s.Action)
	}
	return nil
}

// ExecutionStats tracks how a setup script has performed across runs.
type ExecutionStats struct {
	SuccessCount  int       `json:"success_count"`
	FailureCount  int       `json:"failure_count"`
	AvgDurationMs float64   `json:"avg_duration_ms"` // rolling mean over every recorded run
	LastRunAt     time.Time `json:"last_run_at,omitempty"`
	LastStatus    string    `json:"last_status,omitempty"`
}

// Runs returns the total number of recorded executions.
func (s ExecutionStats) Runs() int {
	return s.SuccessCount + s.FailureCount
}

// Record folds one execution into the stats and returns the updated value.
func (s ExecutionStats) Record(success bool, duration time.Duration, at time.Time) ExecutionStats {
	if success {
		s.SuccessCount++
		s.LastStatus = string(ScriptSucceeded)
	} else {
		s.FailureCount++
		s.LastStatus = string(ScriptFailed)
	}
	n := float64(s.Runs())
	ms := float64(duration) / float64(time.Millisecond)
	s.AvgDurationMs += (ms - s.AvgDurationMs) / n
	s.LastRunAt = at
	return s
}
