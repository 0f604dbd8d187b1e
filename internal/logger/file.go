package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bobdodd/auto-a11y/internal/models"
	"github.com/bobdodd/auto-a11y/internal/results"
)

// FileLogger logs audit events to files in the .a11y/logs/ directory.
// It creates timestamped per-run log files, per-script step logs,
// and maintains a latest.log symlink pointing to the most recent run.
// It is thread-safe and implements the executor.Logger interface.
type FileLogger struct {
	logDir     string
	runLog     *os.File
	runFile    string
	scriptsDir string
	logLevel   string
	mu         sync.Mutex
}

// NewFileLogger creates a FileLogger under logDir at the given level.
// It creates the log directory if it doesn't exist, opens a timestamped
// run log file, and creates/updates the latest.log symlink.
func NewFileLogger(logDir string, logLevel string) (*FileLogger, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	scriptsDir := filepath.Join(logDir, "scripts")
	if err := os.MkdirAll(scriptsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create scripts directory: %w", err)
	}

	// run-YYYYMMDD-HHMMSS.log
	runFile := filepath.Join(logDir, fmt.Sprintf("run-%s.log", time.Now().Format("20060102-150405")))
	file, err := os.OpenFile(runFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create run log file: %w", err)
	}

	symlinkPath := filepath.Join(logDir, "latest.log")
	if _, err := os.Lstat(symlinkPath); err == nil {
		if err := os.Remove(symlinkPath); err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to remove old symlink: %w", err)
		}
	}
	if err := os.Symlink(filepath.Base(runFile), symlinkPath); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to create symlink: %w", err)
	}

	logger := &FileLogger{
		logDir:     logDir,
		runLog:     file,
		runFile:    runFile,
		scriptsDir: scriptsDir,
		logLevel:   normalizeLogLevel(logLevel),
	}

	logger.writeRunLog("=== auto-a11y Run Log ===\n")
	logger.writeRunLog(fmt.Sprintf("Started at: %s\n\n", time.Now().Format(time.RFC3339)))

	return logger, nil
}

// RunFile returns the path of the current run log.
func (fl *FileLogger) RunFile() string {
	return fl.runFile
}

func (fl *FileLogger) shouldLog(messageLevel string) bool {
	return logLevelToInt(messageLevel) >= logLevelToInt(fl.logLevel)
}

// LogTrace logs a trace-level message (most verbose).
func (fl *FileLogger) LogTrace(message string) {
	fl.logWithLevel("TRACE", message)
}

// LogDebug logs a debug-level message.
func (fl *FileLogger) LogDebug(message string) {
	fl.logWithLevel("DEBUG", message)
}

// LogInfo logs an info-level message.
func (fl *FileLogger) LogInfo(message string) {
	fl.logWithLevel("INFO", message)
}

// LogWarn logs a warning-level message.
func (fl *FileLogger) LogWarn(message string) {
	fl.logWithLevel("WARN", message)
}

// LogError logs an error-level message.
func (fl *FileLogger) LogError(message string) {
	fl.logWithLevel("ERROR", message)
}

func (fl *FileLogger) logWithLevel(level string, message string) {
	if !fl.shouldLog(strings.ToLower(level)) {
		return
	}
	fl.writeRunLog(fmt.Sprintf("[%s] [%s] %s\n", timestamp(), level, message))
}

// LogStateStart records the start of a page state at DEBUG level.
func (fl *FileLogger) LogStateStart(pageID string, state models.PageState) {
	if !fl.shouldLog("debug") {
		return
	}
	line := fmt.Sprintf("[%s] %s state %d: testing %s", timestamp(), pageID, state.Sequence, state.Description)
	if len(state.ScriptsExecuted) > 0 {
		line += fmt.Sprintf(" (after %s)", strings.Join(state.ScriptsExecuted, ", "))
	}
	fl.writeRunLog(line + "\n")
}

// LogStateComplete records a stored state result at INFO level, including
// its result id and what the size guard did to it.
func (fl *FileLogger) LogStateComplete(result *models.TestResult, action results.GuardAction) {
	if result == nil || !fl.shouldLog("info") {
		return
	}
	fl.writeRunLog(fmt.Sprintf("[%s] %s state %d: result %s, %s, guard %s, audited %t, %dms\n",
		timestamp(),
		result.PageID,
		result.StateSequence,
		result.ID,
		formatFindingCounts(results.TrueCounts(result), nil),
		action,
		result.Audited,
		result.DurationMs,
	))
}

// LogScriptRun records a setup script run in the run log and writes its step
// outcomes to scripts/<page>-<script>.log.
func (fl *FileLogger) LogScriptRun(pageID string, run *models.ScriptRun) {
	if run == nil {
		return
	}
	level := "debug"
	if !run.Succeeded() {
		level = "warn"
	}
	if fl.shouldLog(level) {
		line := fmt.Sprintf("[%s] %s script %s: %s", timestamp(), pageID, run.ScriptID, formatScriptStatus(run.Status, nil))
		if run.Reason != "" {
			line += ": " + run.Reason
		}
		fl.writeRunLog(line + "\n")
	}

	if err := fl.writeScriptLog(pageID, run); err != nil {
		fl.logWithLevel("WARN", err.Error())
	}
}

func (fl *FileLogger) writeScriptLog(pageID string, run *models.ScriptRun) error {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	path := filepath.Join(fl.scriptsDir, fmt.Sprintf("%s-%s.log", sanitizeFileName(pageID), sanitizeFileName(run.ScriptID)))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to create script log file: %w", err)
	}
	defer file.Close()

	content := fmt.Sprintf("=== Script %s on page %s ===\n", run.ScriptID, pageID)
	content += fmt.Sprintf("Status: %s\n", run.Status)
	content += fmt.Sprintf("Duration: %dms\n", run.DurationMs)
	if run.FailedStep > 0 {
		content += fmt.Sprintf("Failed step: %d\n", run.FailedStep)
	}
	if run.Reason != "" {
		content += fmt.Sprintf("Reason: %s\n", run.Reason)
	}
	content += "\nSteps:\n"
	for _, o := range run.Outcomes {
		status := "ok"
		if !o.Success {
			status = "FAILED"
		}
		content += fmt.Sprintf("  %d. %s %s (%dms)", o.Sequence, o.Action, status, o.ElapsedMs)
		if o.Error != "" {
			content += ": " + o.Error
		}
		if o.Screenshot != "" && !strings.HasPrefix(o.Screenshot, "data:") {
			content += " [" + o.Screenshot + "]"
		}
		content += "\n"
	}

	if _, err := file.WriteString(content); err != nil {
		return fmt.Errorf("failed to write script log: %w", err)
	}
	return nil
}

// LogPageFail records a failed page at ERROR level.
func (fl *FileLogger) LogPageFail(pageID string, err error) {
	fl.LogError(fmt.Sprintf("page %s failed: %v", pageID, err))
}

// LogSummary records the run totals at INFO level.
func (fl *FileLogger) LogSummary(summary results.Summary) {
	if !fl.shouldLog("info") {
		return
	}

	ts := timestamp()
	message := fmt.Sprintf(
		"\n[%s] === AUDIT SUMMARY ===\n"+
			"[%s] Results:      %d\n"+
			"[%s] Violations:   %d\n"+
			"[%s] Warnings:     %d\n"+
			"[%s] Info:         %d\n"+
			"[%s] Discoveries:  %d\n"+
			"[%s] Passes:       %d\n"+
			"[%s] Size limited: %d\n"+
			"[%s] Completed at: %s\n",
		ts, ts, summary.Results,
		ts, summary.Violations,
		ts, summary.Warnings,
		ts, summary.Info,
		ts, summary.Discoveries,
		ts, summary.Passes,
		ts, summary.SizeLimited,
		ts, time.Now().Format(time.RFC3339),
	)
	fl.writeRunLog(message)
}

// LogProgress records how many pages have finished at DEBUG level.
func (fl *FileLogger) LogProgress(done, total int) {
	if !fl.shouldLog("debug") {
		return
	}
	pb := NewProgressBar(total, 20, false)
	pb.Update(done)
	fl.writeRunLog(fmt.Sprintf("[%s] Progress: %s\n", timestamp(), pb.Render()))
}

// Close flushes and closes the run log file.
// It should be called when the logger is no longer needed.
func (fl *FileLogger) Close() error {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	if fl.runLog != nil {
		if err := fl.runLog.Sync(); err != nil {
			return fmt.Errorf("failed to sync run log: %w", err)
		}
		if err := fl.runLog.Close(); err != nil {
			return fmt.Errorf("failed to close run log: %w", err)
		}
		fl.runLog = nil
	}

	return nil
}

// writeRunLog is a thread-safe helper to write to the run log file.
func (fl *FileLogger) writeRunLog(message string) {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	if fl.runLog != nil {
		fl.runLog.WriteString(message)
		fl.runLog.Sync()
	}
}

func sanitizeFileName(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', ' ':
			return '_'
		}
		return r
	}, s)
}
