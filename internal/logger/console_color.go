package logger

import (
	"fmt"
	"strings"

	"github.com/fatih/color"

	"github.com/bobdodd/auto-a11y/internal/models"
)

// colorScheme defines consistent colors for finding counts.
// Red: violations
// Yellow: warnings and degraded results
// Green: passes
// Cyan: labels and identifiers
type colorScheme struct {
	success *color.Color
	fail    *color.Color
	warn    *color.Color
	label   *color.Color
	value   *color.Color
}

// newColorScheme creates the standard color scheme for finding counts.
func newColorScheme() *colorScheme {
	return &colorScheme{
		success: color.New(color.FgGreen),
		fail:    color.New(color.FgRed),
		warn:    color.New(color.FgYellow),
		label:   color.New(color.FgCyan),
		value:   color.New(color.FgWhite),
	}
}

// formatColorizedMetric formats a single metric with colorized label and value.
// Format: "label: value"
func formatColorizedMetric(label string, value interface{}, scheme *colorScheme) string {
	labelColored := scheme.label.Sprint(label)
	valueColored := scheme.value.Sprintf("%v", value)
	return fmt.Sprintf("%s: %s", labelColored, valueColored)
}

// formatFindingCounts renders the counts of a result. Violations are always
// shown; the other lists only when they are non-empty. A nil scheme renders
// plain text.
// Format: "violations: N, warnings: N, info: N, discoveries: N, passes: N"
func formatFindingCounts(c models.SizeLimitMetadata, scheme *colorScheme) string {
	metric := func(label string, n int, c *color.Color) string {
		if scheme == nil {
			return fmt.Sprintf("%s: %d", label, n)
		}
		if c == nil {
			return formatColorizedMetric(label, n, scheme)
		}
		return fmt.Sprintf("%s: %s", c.Sprint(label), c.Sprintf("%d", n))
	}
	var fail, warn, success *color.Color
	if scheme != nil {
		fail, warn, success = scheme.fail, scheme.warn, scheme.success
	}

	var parts []string
	if c.Violations > 0 {
		parts = append(parts, metric("violations", c.Violations, fail))
	} else {
		parts = append(parts, metric("violations", 0, success))
	}
	if c.Warnings > 0 {
		parts = append(parts, metric("warnings", c.Warnings, warn))
	}
	if c.Info > 0 {
		parts = append(parts, metric("info", c.Info, nil))
	}
	if c.Discoveries > 0 {
		parts = append(parts, metric("discoveries", c.Discoveries, nil))
	}
	if c.Passes > 0 {
		parts = append(parts, metric("passes", c.Passes, success))
	}
	return strings.Join(parts, ", ")
}

// formatScriptStatus renders a script status, colored when scheme is set.
func formatScriptStatus(status models.ScriptStatus, scheme *colorScheme) string {
	text := strings.ToUpper(string(status))
	if scheme == nil {
		return text
	}
	switch status {
	case models.ScriptSucceeded:
		return scheme.success.Sprint(text)
	case models.ScriptFailed:
		return scheme.fail.Sprint(text)
	default:
		return scheme.warn.Sprint(text)
	}
}
