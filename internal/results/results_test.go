package results

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobdodd/auto-a11y/internal/checks"
	"github.com/bobdodd/auto-a11y/internal/models"
)

func violations(n int) []models.Finding {
	out := make([]models.Finding, n)
	for i := range out {
		out[i] = models.Finding{
			Check:       models.CheckImageAlt,
			Code:        "ErrImageWithNoAlt",
			Impact:      models.ImpactHigh,
			Touchpoint:  models.TouchpointImages,
			XPath:       fmt.Sprintf("/html/body[1]/img[%d]", i+1),
			Element:     "img",
			Description: "Image has no alt attribute",
			WCAG:        []string{"1.1.1"},
		}
	}
	return out
}

func sampleRun(n int) StateRun {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return StateRun{
		PageID:    "page-1",
		URL:       "https://example.test/",
		SessionID: "session-1",
		State:     models.PageState{Sequence: 0, Description: "initial"},
		Outcome:   checks.Outcome{Violations: violations(n), Passes: violations(1)},
		ChecksRun: []models.CheckID{models.CheckImageAlt},
		Audited:   true,
		Started:   start,
		Finished:  start.Add(1500 * time.Millisecond),
	}
}

func TestAggregate(t *testing.T) {
	r := Aggregate(sampleRun(3))

	assert.NotEmpty(t, r.ID)
	assert.Equal(t, "session-1", r.SessionID)
	assert.Equal(t, 0, r.StateSequence)
	assert.Equal(t, 3, r.ViolationCount)
	assert.Equal(t, 1, r.PassCount)
	assert.Equal(t, int64(1500), r.DurationMs)
	assert.NotNil(t, r.Warnings, "empty lists encode as []")
	assert.NotNil(t, r.RelatedResultIDs)

	other := Aggregate(sampleRun(3))
	assert.NotEqual(t, r.ID, other.ID)
}

func TestSizeGuard_KeepsSmallResults(t *testing.T) {
	r := Aggregate(sampleRun(2))
	r.Screenshot = "shot.png"

	got, data, action, err := NewSizeGuard(1 << 20).Apply(r)
	require.NoError(t, err)
	assert.Equal(t, GuardKept, action)
	assert.Same(t, r, got)
	assert.Equal(t, "shot.png", got.Screenshot)
	assert.LessOrEqual(t, len(data), 1<<20)
}

func TestSizeGuard_DropsScreenshotsFirst(t *testing.T) {
	// 5000 violations plus an oversized inline screenshot
	r := Aggregate(sampleRun(5000))
	r.Screenshot = "data:image/png;base64," + strings.Repeat("A", 3<<20)
	r.ScriptRun = &models.ScriptRun{
		ScriptID: "s1",
		Status:   models.ScriptFailed,
		Outcomes: []models.StepOutcome{{Sequence: 1, Action: models.ActionClick, Screenshot: strings.Repeat("B", 1<<20)}},
	}
	limit := 2 << 20

	got, data, action, err := NewSizeGuard(limit).Apply(r)
	require.NoError(t, err)

	assert.Equal(t, GuardDroppedScreenshots, action)
	assert.Empty(t, got.Screenshot)
	assert.Empty(t, got.ScriptRun.Outcomes[0].Screenshot)
	assert.Equal(t, 5000, got.ViolationCount)
	assert.Len(t, got.Violations, 5000)
	assert.Equal(t, r.Violations[4999].XPath, got.Violations[4999].XPath, "order is preserved")
	assert.LessOrEqual(t, len(data), limit)

	assert.NotEmpty(t, r.Screenshot, "input is not modified")
	assert.NotEmpty(t, r.ScriptRun.Outcomes[0].Screenshot)
}

func TestSizeGuard_ReplacesWithMarker(t *testing.T) {
	r := Aggregate(sampleRun(5000))
	r.RelatedResultIDs = []string{"sibling"}
	limit := 16 << 10

	got, data, action, err := NewSizeGuard(limit).Apply(r)
	require.NoError(t, err)

	assert.Equal(t, GuardReplaced, action)
	assert.True(t, got.SizeLimited)
	assert.Equal(t, r.ID, got.ID)
	assert.Equal(t, r.SessionID, got.SessionID)
	assert.Equal(t, []string{"sibling"}, got.RelatedResultIDs)
	assert.LessOrEqual(t, len(data), limit)

	require.Len(t, got.Violations, 1)
	marker := got.Violations[0]
	assert.Equal(t, CodeSizeLimitExceeded, marker.Code)
	assert.Equal(t, models.ImpactHigh, marker.Impact)

	meta, ok := marker.Metadata.(models.SizeLimitMetadata)
	require.True(t, ok)
	assert.Equal(t, 5000, meta.Violations)
	assert.Equal(t, 1, meta.Passes)
	assert.Greater(t, meta.OriginalBytes, limit)

	// the marker survives a round trip through the store encoding
	var decoded models.TestResult
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, 5000, TrueCounts(&decoded).Violations)
}

func TestSummarize(t *testing.T) {
	small := Aggregate(sampleRun(2))
	big, _, _, err := NewSizeGuard(16 << 10).Apply(Aggregate(sampleRun(5000)))
	require.NoError(t, err)

	s := Summarize([]*models.TestResult{small, big})
	assert.Equal(t, 2, s.Results)
	assert.Equal(t, 5002, s.Violations)
	assert.Equal(t, 2, s.Passes)
	assert.Equal(t, 1, s.SizeLimited)
}

func TestCompare(t *testing.T) {
	before := Aggregate(sampleRun(3))
	after := Aggregate(sampleRun(0))
	after.Violations = append(after.Violations, before.Violations[1], violations(5)[4])
	after.RecountFindings()

	diff := Compare(before, after)

	require.Len(t, diff.Persistent, 1)
	assert.Equal(t, "/html/body[1]/img[2]", diff.Persistent[0].XPath)
	require.Len(t, diff.New, 1)
	assert.Equal(t, "/html/body[1]/img[5]", diff.New[0].XPath)
	require.Len(t, diff.Fixed, 2)
	assert.Equal(t, "/html/body[1]/img[1]", diff.Fixed[0].XPath)
}

func TestCompare_SameResult(t *testing.T) {
	r := Aggregate(sampleRun(4))

	diff := Compare(r, r)

	assert.Empty(t, diff.New)
	assert.Empty(t, diff.Fixed)
	assert.Len(t, diff.Persistent, 4)
}
