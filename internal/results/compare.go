package results

import "github.com/bobdodd/auto-a11y/internal/models"

// Compare diffs the violations of two results of the same page. Findings
// are matched by code and element xpath: New holds those only in after,
// Fixed those only in before, Persistent those in both (as seen in after).
// Each list keeps the order of the result it came from.
func Compare(before, after *models.TestResult) models.Diff {
	diff := models.Diff{
		New:        []models.Finding{},
		Fixed:      []models.Finding{},
		Persistent: []models.Finding{},
	}

	inBefore := make(map[string]bool, len(before.Violations))
	for _, f := range before.Violations {
		inBefore[f.Key()] = true
	}
	inAfter := make(map[string]bool, len(after.Violations))
	for _, f := range after.Violations {
		inAfter[f.Key()] = true
	}

	for _, f := range after.Violations {
		if inBefore[f.Key()] {
			diff.Persistent = append(diff.Persistent, f)
		} else {
			diff.New = append(diff.New, f)
		}
	}
	for _, f := range before.Violations {
		if !inAfter[f.Key()] {
			diff.Fixed = append(diff.Fixed, f)
		}
	}
	return diff
}
