package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bobdodd/auto-a11y/internal/models"
)

// Phase is the part of a state run where an orchestration fault occurred.
type Phase int

const (
	// PhaseNavigate covers loading the page URL.
	PhaseNavigate Phase = iota
	// PhaseSnapshot covers capturing the DOM snapshot of a state.
	PhaseSnapshot
	// PhaseScript covers running the setup script.
	PhaseScript
	// PhasePersist covers size guarding and storing a state result.
	PhasePersist
	// PhaseLink covers linking the results of a session.
	PhaseLink
)

// String returns the string representation of Phase.
func (p Phase) String() string {
	switch p {
	case PhaseNavigate:
		return "navigate"
	case PhaseSnapshot:
		return "snapshot"
	case PhaseScript:
		return "script"
	case PhasePersist:
		return "persist"
	case PhaseLink:
		return "link"
	default:
		return "unknown"
	}
}

// StepError describes why one setup script step did not succeed.
type StepError struct {
	Sequence int
	Action   models.Action
	Selector string
	Err      error
}

// Error implements the error interface for StepError.
func (e *StepError) Error() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("step %d (%s", e.Sequence, e.Action))
	if e.Selector != "" {
		sb.WriteString(" " + e.Selector)
	}
	sb.WriteString(")")
	if e.Err != nil {
		sb.WriteString(fmt.Sprintf(": %v", e.Err))
	}
	return sb.String()
}

// Unwrap returns the underlying error for error wrapping support.
func (e *StepError) Unwrap() error {
	return e.Err
}

// OrchestrationError is returned when a fault stops a multi-state run before
// every planned state was tested. The results persisted before the fault are
// returned alongside it.
type OrchestrationError struct {
	PageID string
	State  int // sequence of the state being tested when the fault occurred
	Phase  Phase
	Err    error
}

// Error implements the error interface for OrchestrationError.
func (e *OrchestrationError) Error() string {
	return fmt.Sprintf("page %s state %d: %s failed: %v", e.PageID, e.State, e.Phase, e.Err)
}

// Unwrap returns the underlying error for error wrapping support.
func (e *OrchestrationError) Unwrap() error {
	return e.Err
}

// TimeoutError represents a timeout while waiting on the browser.
type TimeoutError struct {
	What            string        // what was being waited for
	TimeoutDuration time.Duration // Duration after which timeout occurred
}

// NewTimeoutError creates a new TimeoutError.
func NewTimeoutError(what string, duration time.Duration) *TimeoutError {
	return &TimeoutError{What: what, TimeoutDuration: duration}
}

// Error implements the error interface for TimeoutError.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: timeout after %v", e.What, e.TimeoutDuration)
}

// Unwrap returns context.DeadlineExceeded to support error wrapping.
func (e *TimeoutError) Unwrap() error {
	return context.DeadlineExceeded
}

// IsStepError checks if the error is or wraps a StepError.
func IsStepError(err error) bool {
	if err == nil {
		return false
	}
	var se *StepError
	return errors.As(err, &se)
}

// IsTimeoutError checks if the error is or wraps a TimeoutError or context.DeadlineExceeded.
func IsTimeoutError(err error) bool {
	if err == nil {
		return false
	}
	var te *TimeoutError
	if errors.As(err, &te) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// IsOrchestrationError checks if the error is or wraps an OrchestrationError.
func IsOrchestrationError(err error) bool {
	if err == nil {
		return false
	}
	var oe *OrchestrationError
	return errors.As(err, &oe)
}
