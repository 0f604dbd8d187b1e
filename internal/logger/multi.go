package logger

import (
	"github.com/bobdodd/auto-a11y/internal/models"
	"github.com/bobdodd/auto-a11y/internal/results"
)

// Sink is the set of events a MultiLogger fans out. ConsoleLogger and
// FileLogger both satisfy it.
type Sink interface {
	LogStateStart(pageID string, state models.PageState)
	LogStateComplete(result *models.TestResult, action results.GuardAction)
	LogScriptRun(pageID string, run *models.ScriptRun)
	LogPageFail(pageID string, err error)
	LogSummary(summary results.Summary)
	LogProgress(done, total int)
	LogInfo(message string)
	LogWarn(message string)
	LogError(message string)
}

// MultiLogger delegates every event to several sinks in order.
type MultiLogger struct {
	sinks []Sink
}

// NewMultiLogger creates a MultiLogger. Nil sinks are skipped.
func NewMultiLogger(sinks ...Sink) *MultiLogger {
	m := &MultiLogger{}
	for _, s := range sinks {
		if s != nil {
			m.sinks = append(m.sinks, s)
		}
	}
	return m
}

func (m *MultiLogger) LogStateStart(pageID string, state models.PageState) {
	for _, s := range m.sinks {
		s.LogStateStart(pageID, state)
	}
}

func (m *MultiLogger) LogStateComplete(result *models.TestResult, action results.GuardAction) {
	for _, s := range m.sinks {
		s.LogStateComplete(result, action)
	}
}

func (m *MultiLogger) LogScriptRun(pageID string, run *models.ScriptRun) {
	for _, s := range m.sinks {
		s.LogScriptRun(pageID, run)
	}
}

func (m *MultiLogger) LogPageFail(pageID string, err error) {
	for _, s := range m.sinks {
		s.LogPageFail(pageID, err)
	}
}

func (m *MultiLogger) LogSummary(summary results.Summary) {
	for _, s := range m.sinks {
		s.LogSummary(summary)
	}
}

func (m *MultiLogger) LogProgress(done, total int) {
	for _, s := range m.sinks {
		s.LogProgress(done, total)
	}
}

func (m *MultiLogger) LogInfo(message string) {
	for _, s := range m.sinks {
		s.LogInfo(message)
	}
}

func (m *MultiLogger) LogWarn(message string) {
	for _, s := range m.sinks {
		s.LogWarn(message)
	}
}

func (m *MultiLogger) LogError(message string) {
	for _, s := range m.sinks {
		s.LogError(message)
	}
}
