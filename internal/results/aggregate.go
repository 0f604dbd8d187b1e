// Package results turns check outcomes into persisted TestResults.
//
// Aggregate builds one result per page state, SizeGuard keeps a result
// under the store's per-record ceiling without ever shortening its finding
// lists, and Compare diffs the violations of two results.
package results

import (
	"time"

	"github.com/google/uuid"

	"github.com/bobdodd/auto-a11y/internal/checks"
	"github.com/bobdodd/auto-a11y/internal/models"
)

// StateRun is everything known about one tested page state.
type StateRun struct {
	PageID     string
	URL        string
	SessionID  string
	State      models.PageState
	Outcome    checks.Outcome
	ChecksRun  []models.CheckID
	Audited    bool
	Started    time.Time
	Finished   time.Time
	Screenshot string
	ScriptRun  *models.ScriptRun
}

// Aggregate builds the TestResult for one state. Finding lists are copied in
// check order and the counts are their lengths.
func Aggregate(run StateRun) *models.TestResult {
	r := &models.TestResult{
		ID:               uuid.NewString(),
		PageID:           run.PageID,
		URL:              run.URL,
		SessionID:        run.SessionID,
		StateSequence:    run.State.Sequence,
		PageState:        run.State,
		RelatedResultIDs: []string{},
		Violations:       nonNil(run.Outcome.Violations),
		Warnings:         nonNil(run.Outcome.Warnings),
		Info:             nonNil(run.Outcome.Info),
		Discoveries:      nonNil(run.Outcome.Discoveries),
		Passes:           nonNil(run.Outcome.Passes),
		ChecksRun:        append([]models.CheckID{}, run.ChecksRun...),
		Audited:          run.Audited,
		DurationMs:       run.Finished.Sub(run.Started).Milliseconds(),
		TestedAt:         run.Finished.UTC(),
		Screenshot:       run.Screenshot,
		ScriptRun:        run.ScriptRun,
	}
	r.RecountFindings()
	return r
}

func nonNil(fs []models.Finding) []models.Finding {
	out := make([]models.Finding, len(fs))
	copy(out, fs)
	return out
}

// Summary totals findings across several results.
type Summary struct {
	Results     int
	Violations  int
	Warnings    int
	Info        int
	Discoveries int
	Passes      int
	SizeLimited int
}

// Summarize adds up the counts of rs. Size-limited results contribute the
// counts they had before replacement.
func Summarize(rs []*models.TestResult) Summary {
	var s Summary
	for _, r := range rs {
		c := TrueCounts(r)
		s.Results++
		s.Violations += c.Violations
		s.Warnings += c.Warnings
		s.Info += c.Info
		s.Discoveries += c.Discoveries
		s.Passes += c.Passes
		if r.SizeLimited {
			s.SizeLimited++
		}
	}
	return s
}
