package results

import (
	"encoding/json"
	"fmt"

	"github.com/bobdodd/auto-a11y/internal/models"
)

// CodeSizeLimitExceeded is the code of the synthetic finding that replaces a
// result too large to store.
const CodeSizeLimitExceeded = "ErrResultSizeLimitExceeded"

// GuardAction records what the size guard did to a result.
type GuardAction int

const (
	// GuardKept means the result fit and was left untouched.
	GuardKept GuardAction = iota
	// GuardDroppedScreenshots means screenshot references were removed.
	GuardDroppedScreenshots
	// GuardReplaced means the result was replaced by a size-limit marker.
	GuardReplaced
)

// String returns the string representation of GuardAction.
func (a GuardAction) String() string {
	switch a {
	case GuardKept:
		return "kept"
	case GuardDroppedScreenshots:
		return "dropped-screenshots"
	case GuardReplaced:
		return "replaced"
	default:
		return "unknown"
	}
}

// SizeGuard degrades results until their JSON encoding fits under a safe
// limit. It never truncates or reorders a finding list: a result is either
// stored with all of its findings or replaced by an explicit marker.
type SizeGuard struct {
	safeLimit int
}

// DefaultSafeLimit leaves headroom under the store's 16MB record ceiling.
const DefaultSafeLimit = 15 << 20

// NewSizeGuard creates a guard for the given limit in bytes. A limit of zero
// uses DefaultSafeLimit.
func NewSizeGuard(safeLimit int) *SizeGuard {
	if safeLimit <= 0 {
		safeLimit = DefaultSafeLimit
	}
	return &SizeGuard{safeLimit: safeLimit}
}

// SafeLimit returns the limit in bytes.
func (g *SizeGuard) SafeLimit() int { return g.safeLimit }

// Apply returns the result to persist, its encoding and what was done. The
// input result is not modified.
func (g *SizeGuard) Apply(r *models.TestResult) (*models.TestResult, []byte, GuardAction, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, nil, GuardKept, fmt.Errorf("encode result %s: %w", r.ID, err)
	}
	if len(data) <= g.safeLimit {
		return r, data, GuardKept, nil
	}
	originalSize := len(data)

	stripped := withoutScreenshots(r)
	data, err = json.Marshal(stripped)
	if err != nil {
		return nil, nil, GuardKept, fmt.Errorf("encode result %s: %w", r.ID, err)
	}
	if len(data) <= g.safeLimit {
		return stripped, data, GuardDroppedScreenshots, nil
	}

	marker := g.marker(stripped, originalSize)
	data, err = json.Marshal(marker)
	if err != nil {
		return nil, nil, GuardKept, fmt.Errorf("encode size marker %s: %w", r.ID, err)
	}
	if len(data) > g.safeLimit {
		return nil, nil, GuardKept, fmt.Errorf("size marker for %s is %d bytes, limit is %d", r.ID, len(data), g.safeLimit)
	}
	return marker, data, GuardReplaced, nil
}

// withoutScreenshots copies r with the result screenshot and every step
// screenshot reference removed. Finding lists are shared, not copied.
func withoutScreenshots(r *models.TestResult) *models.TestResult {
	out := *r
	out.Screenshot = ""
	if r.ScriptRun != nil {
		run := *r.ScriptRun
		run.Outcomes = make([]models.StepOutcome, len(r.ScriptRun.Outcomes))
		for i, o := range r.ScriptRun.Outcomes {
			o.Screenshot = ""
			run.Outcomes[i] = o
		}
		out.ScriptRun = &run
	}
	return &out
}

// marker builds the whole-record replacement. Identity, state and linkage
// fields are kept so the session stays intact.
func (g *SizeGuard) marker(r *models.TestResult, originalSize int) *models.TestResult {
	meta := models.SizeLimitMetadata{
		OriginalBytes: originalSize,
		LimitBytes:    g.safeLimit,
		Violations:    len(r.Violations),
		Warnings:      len(r.Warnings),
		Info:          len(r.Info),
		Discoveries:   len(r.Discoveries),
		Passes:        len(r.Passes),
	}
	out := &models.TestResult{
		ID:               r.ID,
		PageID:           r.PageID,
		URL:              r.URL,
		SessionID:        r.SessionID,
		StateSequence:    r.StateSequence,
		PageState:        r.PageState,
		RelatedResultIDs: append([]string{}, r.RelatedResultIDs...),
		Violations: []models.Finding{{
			Code:       CodeSizeLimitExceeded,
			Impact:     models.ImpactHigh,
			Touchpoint: models.TouchpointResultMgt,
			Description: fmt.Sprintf(
				"Result was %d bytes, over the %d byte limit; it held %d violations, %d warnings, %d info, %d discoveries and %d passes",
				originalSize, g.safeLimit, meta.Violations, meta.Warnings, meta.Info, meta.Discoveries, meta.Passes),
			Metadata: meta,
		}},
		Warnings:    []models.Finding{},
		Info:        []models.Finding{},
		Discoveries: []models.Finding{},
		Passes:      []models.Finding{},
		ChecksRun:   r.ChecksRun,
		Audited:     r.Audited,
		DurationMs:  r.DurationMs,
		TestedAt:    r.TestedAt,
		ScriptRun:   r.ScriptRun,
		SizeLimited: true,
	}
	out.RecountFindings()
	return out
}

// TrueCounts returns the finding counts a result had before any size-guard
// replacement.
func TrueCounts(r *models.TestResult) models.SizeLimitMetadata {
	if r.SizeLimited && len(r.Violations) == 1 {
		if meta, ok := r.Violations[0].Metadata.(models.SizeLimitMetadata); ok {
			return meta
		}
	}
	return models.SizeLimitMetadata{
		Violations:  r.ViolationCount,
		Warnings:    r.WarningCount,
		Info:        r.InfoCount,
		Discoveries: r.DiscoveryCount,
		Passes:      r.PassCount,
	}
}
