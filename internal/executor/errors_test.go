package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/bobdodd/auto-a11y/internal/models"
)

func TestStepError(t *testing.T) {
	tests := []struct {
		name        string
		err         *StepError
		wantContain []string
	}{
		{
			name: "with selector",
			err:  &StepError{Sequence: 3, Action: models.ActionClick, Selector: "#accept", Err: errors.New("element not found")},
			wantContain: []string{
				"step 3",
				"click #accept",
				"element not found",
			},
		},
		{
			name:        "without selector",
			err:         &StepError{Sequence: 1, Action: models.ActionWait, Err: errors.New("bad duration")},
			wantContain: []string{"step 1 (wait)", "bad duration"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.err.Error()
			for _, want := range tt.wantContain {
				if !strings.Contains(got, want) {
					t.Errorf("Error() = %q, want substring %q", got, want)
				}
			}
		})
	}
}

func TestStepError_Unwrap(t *testing.T) {
	cause := errors.New("detached node")
	err := fmt.Errorf("script: %w", &StepError{Sequence: 1, Action: models.ActionClick, Selector: "a", Err: cause})

	if !errors.Is(err, cause) {
		t.Error("errors.Is should reach the cause")
	}
	if !IsStepError(err) {
		t.Error("IsStepError should be true for a wrapped StepError")
	}
	if IsStepError(cause) {
		t.Error("IsStepError should be false for a plain error")
	}
}

func TestOrchestrationError(t *testing.T) {
	cause := errors.New("target crashed")
	err := &OrchestrationError{PageID: "home", State: 1, Phase: PhaseSnapshot, Err: cause}

	want := "page home state 1: snapshot failed: target crashed"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is should reach the cause")
	}
	if !IsOrchestrationError(fmt.Errorf("run: %w", err)) {
		t.Error("IsOrchestrationError should see through wrapping")
	}
	if IsOrchestrationError(nil) {
		t.Error("IsOrchestrationError(nil) should be false")
	}
}

func TestPhase_String(t *testing.T) {
	tests := map[Phase]string{
		PhaseNavigate: "navigate",
		PhaseSnapshot: "snapshot",
		PhaseScript:   "script",
		PhasePersist:  "persist",
		PhaseLink:     "link",
	}
	for phase, want := range tests {
		if got := phase.String(); got != want {
			t.Errorf("Phase(%d).String() = %q, want %q", int(phase), got, want)
		}
	}
}

func TestTimeoutError(t *testing.T) {
	err := NewTimeoutError("click #accept", 250*time.Millisecond)

	if got := err.Error(); got != "click #accept: timeout after 250ms" {
		t.Errorf("Error() = %q", got)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Error("a timeout should match context.DeadlineExceeded")
	}
	if !IsTimeoutError(fmt.Errorf("step: %w", err)) {
		t.Error("IsTimeoutError should see through wrapping")
	}
	if !IsTimeoutError(context.DeadlineExceeded) {
		t.Error("a bare deadline counts as a timeout")
	}
	if IsTimeoutError(errors.New("element not found")) {
		t.Error("IsTimeoutError should be false for other errors")
	}
}
