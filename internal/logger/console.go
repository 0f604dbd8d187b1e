// Package logger provides logging implementations for auto-a11y audit runs.
//
// The logger package reports audit progress at the page state, setup script
// and summary levels. Implementations are thread-safe and support various
// output destinations (console, file, etc.).
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"

	"github.com/bobdodd/auto-a11y/internal/models"
	"github.com/bobdodd/auto-a11y/internal/results"
)

// Log level constants for filtering
const (
	levelTrace int = 0
	levelDebug int = 1
	levelInfo  int = 2
	levelWarn  int = 3
	levelError int = 4
)

// ConsoleLogger logs audit progress to a writer with timestamps and thread safety.
// All output is prefixed with [HH:MM:SS] timestamps for tracking execution flow.
// It supports log level filtering to control message verbosity.
// Color output is automatically enabled for terminal output (os.Stdout/os.Stderr).
type ConsoleLogger struct {
	writer      io.Writer
	logLevel    string
	mutex       sync.Mutex
	colorOutput bool
}

// NewConsoleLogger creates a ConsoleLogger that writes to the provided io.Writer.
// If writer is nil, messages are silently discarded.
// logLevel determines the minimum log level for messages to be output.
// Valid levels: trace, debug, info, warn, error (case-insensitive).
// If logLevel is empty or invalid, defaults to "info".
func NewConsoleLogger(writer io.Writer, logLevel string) *ConsoleLogger {
	return &ConsoleLogger{
		writer:      writer,
		logLevel:    normalizeLogLevel(logLevel),
		colorOutput: isTerminal(writer),
	}
}

// isTerminal checks if the writer is a terminal that supports colors.
// Returns true for os.Stdout and os.Stderr when they are TTYs.
func isTerminal(w io.Writer) bool {
	if w == nil {
		return false
	}
	if w == os.Stdout || w == os.Stderr {
		// false when NO_COLOR is set or the stream is not a TTY
		return !color.NoColor
	}
	return false
}

// normalizeLogLevel converts a log level string to lowercase and validates it.
// Returns "info" as default for empty or invalid levels.
func normalizeLogLevel(level string) string {
	normalized := strings.ToLower(strings.TrimSpace(level))

	validLevels := map[string]bool{
		"trace": true,
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}

	if validLevels[normalized] {
		return normalized
	}

	return "info"
}

// shouldLog checks if a message at the given level should be logged.
// Returns true if messageLevel >= configured logLevel.
func (cl *ConsoleLogger) shouldLog(messageLevel string) bool {
	return logLevelToInt(messageLevel) >= logLevelToInt(cl.logLevel)
}

// logLevelToInt converts a log level string to its numeric value.
func logLevelToInt(level string) int {
	switch level {
	case "trace":
		return levelTrace
	case "debug":
		return levelDebug
	case "info":
		return levelInfo
	case "warn":
		return levelWarn
	case "error":
		return levelError
	default:
		return levelInfo
	}
}

func (cl *ConsoleLogger) scheme() *colorScheme {
	if !cl.colorOutput {
		return nil
	}
	return newColorScheme()
}

// LogTrace logs a trace-level message (most verbose).
// Format: "[HH:MM:SS] [TRACE] <message>"
func (cl *ConsoleLogger) LogTrace(message string) {
	cl.logWithLevel("TRACE", message)
}

// LogDebug logs a debug-level message.
// Format: "[HH:MM:SS] [DEBUG] <message>"
func (cl *ConsoleLogger) LogDebug(message string) {
	cl.logWithLevel("DEBUG", message)
}

// LogInfo logs an info-level message.
// Format: "[HH:MM:SS] [INFO] <message>"
func (cl *ConsoleLogger) LogInfo(message string) {
	cl.logWithLevel("INFO", message)
}

// LogWarn logs a warning-level message.
// Format: "[HH:MM:SS] [WARN] <message>"
func (cl *ConsoleLogger) LogWarn(message string) {
	cl.logWithLevel("WARN", message)
}

// LogError logs an error-level message.
// Format: "[HH:MM:SS] [ERROR] <message>"
func (cl *ConsoleLogger) LogError(message string) {
	cl.logWithLevel("ERROR", message)
}

// logWithLevel is a helper that logs a message at the specified level if filtering allows it.
func (cl *ConsoleLogger) logWithLevel(level string, message string) {
	if cl.writer == nil {
		return
	}
	if !cl.shouldLog(strings.ToLower(level)) {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	ts := timestamp()
	var formatted string
	if cl.colorOutput {
		formatted = cl.formatWithColor(ts, level, message)
	} else {
		formatted = fmt.Sprintf("[%s] [%s] %s\n", ts, level, message)
	}

	cl.writer.Write([]byte(formatted))
}

// formatWithColor formats a log message with ANSI color codes.
func (cl *ConsoleLogger) formatWithColor(ts, level, message string) string {
	var coloredLevel string

	switch strings.ToUpper(level) {
	case "TRACE":
		coloredLevel = color.New(color.FgHiBlack).Sprint(level)
	case "DEBUG":
		coloredLevel = color.New(color.FgCyan).Sprint(level)
	case "INFO":
		coloredLevel = color.New(color.FgBlue).Sprint(level)
	case "WARN":
		coloredLevel = color.New(color.FgYellow).Sprint(level)
	case "ERROR":
		coloredLevel = color.New(color.FgRed).Sprint(level)
	default:
		coloredLevel = level
	}

	return fmt.Sprintf("[%s] [%s] %s\n", ts, coloredLevel, message)
}

// write emits a pre-formatted line at the given level without a level tag.
func (cl *ConsoleLogger) write(level, line string) {
	if cl.writer == nil || !cl.shouldLog(level) {
		return
	}
	cl.mutex.Lock()
	defer cl.mutex.Unlock()
	cl.writer.Write([]byte(fmt.Sprintf("[%s] %s\n", timestamp(), line)))
}

// LogStateStart logs that a page state is about to be tested at DEBUG level.
// Format: "[HH:MM:SS] <page> state <n>: testing <description>"
func (cl *ConsoleLogger) LogStateStart(pageID string, state models.PageState) {
	page := pageID
	if cl.colorOutput {
		page = color.New(color.Bold).Sprint(pageID)
	}
	cl.write("debug", fmt.Sprintf("%s state %d: testing %s", page, state.Sequence, state.Description))
}

// LogStateComplete logs the counts of a stored state result at INFO level.
// Format: "[HH:MM:SS] <page> state <n>: violations: N, passes: N (<guard note>)"
func (cl *ConsoleLogger) LogStateComplete(result *models.TestResult, action results.GuardAction) {
	if result == nil {
		return
	}
	scheme := cl.scheme()
	page := result.PageID
	if scheme != nil {
		page = color.New(color.Bold).Sprint(result.PageID)
	}

	line := fmt.Sprintf("%s state %d: %s", page, result.StateSequence,
		formatFindingCounts(results.TrueCounts(result), scheme))

	var notes []string
	switch action {
	case results.GuardDroppedScreenshots:
		notes = append(notes, "screenshots dropped")
	case results.GuardReplaced:
		notes = append(notes, "size limited")
	}
	if !result.Audited {
		notes = append(notes, "unaudited")
	}
	if len(notes) > 0 {
		note := "(" + strings.Join(notes, ", ") + ")"
		if scheme != nil {
			note = scheme.warn.Sprint(note)
		}
		line += " " + note
	}
	cl.write("info", line)
}

// LogScriptRun logs a setup script execution. Successful runs are logged at
// DEBUG level, failed runs at WARN.
// Format: "[HH:MM:SS] <page> script <id>: SUCCEEDED (<n> steps, <duration>)"
func (cl *ConsoleLogger) LogScriptRun(pageID string, run *models.ScriptRun) {
	if run == nil {
		return
	}
	scheme := cl.scheme()
	duration := formatDuration(time.Duration(run.DurationMs) * time.Millisecond)
	status := formatScriptStatus(run.Status, scheme)

	if run.Succeeded() {
		cl.write("debug", fmt.Sprintf("%s script %s: %s (%d steps, %s)",
			pageID, run.ScriptID, status, len(run.Outcomes), duration))
		return
	}

	line := fmt.Sprintf("%s script %s: %s", pageID, run.ScriptID, status)
	if run.FailedStep > 0 {
		line += fmt.Sprintf(" at step %d", run.FailedStep)
	}
	if run.Reason != "" {
		line += ": " + run.Reason
	}
	cl.write("warn", line)
}

// LogPageFail logs a page whose run ended in error at ERROR level.
func (cl *ConsoleLogger) LogPageFail(pageID string, err error) {
	cl.LogError(fmt.Sprintf("page %s failed: %v", pageID, err))
}

// LogSummary logs the totals of an audit run at INFO level.
// Format: "[HH:MM:SS] === Audit Summary ===\n[HH:MM:SS] Results: <n>\n..."
func (cl *ConsoleLogger) LogSummary(summary results.Summary) {
	if cl.writer == nil || !cl.shouldLog("info") {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	ts := timestamp()
	scheme := cl.scheme()

	header := "=== Audit Summary ==="
	violations := fmt.Sprintf("Violations: %d", summary.Violations)
	passes := fmt.Sprintf("Passes: %d", summary.Passes)
	if scheme != nil {
		header = color.New(color.Bold).Sprint(header)
		if summary.Violations > 0 {
			violations = scheme.fail.Sprint(violations)
		} else {
			violations = scheme.success.Sprint(violations)
		}
		passes = scheme.success.Sprint(passes)
	}

	output := fmt.Sprintf("[%s] %s\n", ts, header)
	output += fmt.Sprintf("[%s] Results: %d\n", ts, summary.Results)
	output += fmt.Sprintf("[%s] %s\n", ts, violations)
	output += fmt.Sprintf("[%s] Warnings: %d\n", ts, summary.Warnings)
	output += fmt.Sprintf("[%s] Info: %d\n", ts, summary.Info)
	output += fmt.Sprintf("[%s] Discoveries: %d\n", ts, summary.Discoveries)
	output += fmt.Sprintf("[%s] %s\n", ts, passes)
	if summary.SizeLimited > 0 {
		limited := fmt.Sprintf("Size limited: %d", summary.SizeLimited)
		if scheme != nil {
			limited = scheme.warn.Sprint(limited)
		}
		output += fmt.Sprintf("[%s] %s\n", ts, limited)
	}

	cl.writer.Write([]byte(output))
}

// LogProgress logs how many pages have finished at INFO level.
// Format: "[HH:MM:SS] Progress: [=====     ] 5/10 (50%)"
func (cl *ConsoleLogger) LogProgress(done, total int) {
	pb := NewProgressBar(total, 10, cl.colorOutput)
	pb.Update(done)
	cl.write("info", "Progress: "+pb.Render())
}

// timestamp returns the current time formatted as "15:04:05" (HH:MM:SS).
func timestamp() string {
	return time.Now().Format("15:04:05")
}

// formatDuration converts a time.Duration to a human-readable string.
// Examples: "5s", "1m30s", "2h15m". Durations under a second keep
// millisecond precision.
func formatDuration(d time.Duration) string {
	switch {
	case d >= time.Hour:
		hours := d / time.Hour
		remainder := d % time.Hour
		if remainder == 0 {
			return fmt.Sprintf("%dh", hours)
		}
		minutes := remainder / time.Minute
		remainder = remainder % time.Minute
		if remainder == 0 {
			return fmt.Sprintf("%dh%dm", hours, minutes)
		}
		seconds := remainder / time.Second
		return fmt.Sprintf("%dh%dm%ds", hours, minutes, seconds)
	case d >= time.Minute:
		minutes := d / time.Minute
		remainder := d % time.Minute
		if remainder == 0 {
			return fmt.Sprintf("%dm", minutes)
		}
		seconds := remainder / time.Second
		return fmt.Sprintf("%dm%ds", minutes, seconds)
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	default:
		return fmt.Sprintf("%ds", int64(d.Seconds()))
	}
}

// NoOpLogger is a Logger implementation that discards all log messages.
// Useful for testing or when logging is disabled.
type NoOpLogger struct{}

// NewNoOpLogger creates a NoOpLogger instance.
func NewNoOpLogger() *NoOpLogger {
	return &NoOpLogger{}
}

// LogStateStart is a no-op implementation.
func (n *NoOpLogger) LogStateStart(pageID string, state models.PageState) {}

// LogStateComplete is a no-op implementation.
func (n *NoOpLogger) LogStateComplete(result *models.TestResult, action results.GuardAction) {}

// LogScriptRun is a no-op implementation.
func (n *NoOpLogger) LogScriptRun(pageID string, run *models.ScriptRun) {}

// LogPageFail is a no-op implementation.
func (n *NoOpLogger) LogPageFail(pageID string, err error) {}

// LogSummary is a no-op implementation.
func (n *NoOpLogger) LogSummary(summary results.Summary) {}

// LogWarn is a no-op implementation.
func (n *NoOpLogger) LogWarn(message string) {}
