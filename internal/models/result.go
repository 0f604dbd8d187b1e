package models

import (
	"encoding/json"
	"time"
)

// Finding is one violation, warning, info item, discovery or pass.
type Finding struct {
	Check       CheckID    `json:"check"`
	Code        string     `json:"code"` // rule-specific identifier, e.g. ErrImageWithNoAlt
	Impact      Impact     `json:"impact"`
	Touchpoint  Touchpoint `json:"touchpoint"`
	XPath       string     `json:"xpath,omitempty"`
	Element     string     `json:"element,omitempty"`
	HTML        string     `json:"html,omitempty"`
	Description string     `json:"description"`
	WCAG        []string   `json:"wcag,omitempty"`
	Metadata    Metadata   `json:"-"`
}

// Key identifies the same issue across two results of the same page.
func (f Finding) Key() string {
	return string(f.Check) + "|" + f.Code + "|" + f.XPath
}

type findingAlias Finding

type findingJSON struct {
	findingAlias
	Metadata *metadataEnvelope `json:"metadata,omitempty"`
}

// MarshalJSON encodes the finding with its metadata variant tagged by kind.
func (f Finding) MarshalJSON() ([]byte, error) {
	env, err := encodeMetadata(f.Metadata)
	if err != nil {
		return nil, err
	}
	return json.Marshal(findingJSON{findingAlias: findingAlias(f), Metadata: env})
}

// UnmarshalJSON decodes a finding and restores its typed metadata.
func (f *Finding) UnmarshalJSON(data []byte) error {
	var raw findingJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	meta, err := decodeMetadata(raw.Metadata)
	if err != nil {
		return err
	}
	*f = Finding(raw.findingAlias)
	f.Metadata = meta
	return nil
}

// StepOutcome is the result of executing a single setup script step.
type StepOutcome struct {
	Sequence   int    `json:"sequence"`
	Action     Action `json:"action"`
	Success    bool   `json:"success"`
	ElapsedMs  int64  `json:"elapsed_ms"`
	Error      string `json:"error,omitempty"`
	Screenshot string `json:"screenshot,omitempty"` // reference produced by the screenshot store
}

// ScriptStatus is the terminal state of a setup script run.
type ScriptStatus string

// Setup script states
const (
	ScriptPending   ScriptStatus = "pending"
	ScriptRunning   ScriptStatus = "running"
	ScriptSucceeded ScriptStatus = "succeeded"
	ScriptFailed    ScriptStatus = "failed"
)

// ScriptRun records one execution of a setup script.
type ScriptRun struct {
	ScriptID   string        `json:"script_id"`
	Status     ScriptStatus  `json:"status"`
	FailedStep int           `json:"failed_step,omitempty"` // sequence of the step that failed, 0 when none
	Reason     string        `json:"reason,omitempty"`
	Outcomes   []StepOutcome `json:"outcomes"`
	DurationMs int64         `json:"duration_ms"`
}

// Succeeded returns true if the script reached its target state.
func (r *ScriptRun) Succeeded() bool {
	return r != nil && r.Status == ScriptSucceeded
}

// PageState labels the page snapshot a result was produced from.
type PageState struct {
	Sequence        int      `json:"sequence"`
	Description     string   `json:"description"`
	ScriptsExecuted []string `json:"scripts_executed,omitempty"`
	ElementsShown   []string `json:"elements_shown,omitempty"`
	ElementsHidden  []string `json:"elements_hidden,omitempty"`
}

// TestResult is the output of running the selected checks over one page state.
type TestResult struct {
	ID               string     `json:"id"`
	PageID           string     `json:"page_id"`
	URL              string     `json:"url,omitempty"`
	SessionID        string     `json:"session_id"`
	StateSequence    int        `json:"state_sequence"`
	PageState        PageState  `json:"page_state"`
	RelatedResultIDs []string   `json:"related_result_ids"`
	Violations       []Finding  `json:"violations"`
	Warnings         []Finding  `json:"warnings"`
	Info             []Finding  `json:"info"`
	Discoveries      []Finding  `json:"discoveries"`
	Passes           []Finding  `json:"passes"`
	ViolationCount   int        `json:"violation_count"`
	WarningCount     int        `json:"warning_count"`
	InfoCount        int        `json:"info_count"`
	DiscoveryCount   int        `json:"discovery_count"`
	PassCount        int        `json:"pass_count"`
	ChecksRun        []CheckID  `json:"checks_run"`
	Audited          bool       `json:"audited"` // false when fixture gating was bypassed
	DurationMs       int64      `json:"duration_ms"`
	TestedAt         time.Time  `json:"tested_at"`
	Screenshot       string     `json:"screenshot,omitempty"`
	ScriptRun        *ScriptRun `json:"script_run,omitempty"`
	SizeLimited      bool       `json:"size_limited,omitempty"`
}

// RecountFindings sets the count fields from the finding lists.
func (r *TestResult) RecountFindings() {
	r.ViolationCount = len(r.Violations)
	r.WarningCount = len(r.Warnings)
	r.InfoCount = len(r.Info)
	r.DiscoveryCount = len(r.Discoveries)
	r.PassCount = len(r.Passes)
}

// Session groups the results of one orchestrated multi-state run.
type Session struct {
	SessionID string    `json:"session_id"`
	PageID    string    `json:"page_id"`
	StartedAt time.Time `json:"started_at"`
	ResultIDs []string  `json:"result_ids"` // ordered by state sequence
	States    int       `json:"states"`
}

// Diff compares the violations of two results.
type Diff struct {
	New        []Finding `json:"new"`
	Fixed      []Finding `json:"fixed"`
	Persistent []Finding `json:"persistent"`
}
