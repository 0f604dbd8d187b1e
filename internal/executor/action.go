package executor

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bobdodd/auto-a11y/internal/browser"
	"github.com/bobdodd/auto-a11y/internal/models"
)

// DefaultStepTimeout bounds a step that does not set its own timeout.
const DefaultStepTimeout = 10 * time.Second

// debugCaptureTimeout bounds the screenshot taken after a failed step.
const debugCaptureTimeout = 5 * time.Second

// ActionExecutor performs single setup script steps against a page.
//
// Execute never returns an error and never panics: every failure, including
// a panic inside the browser layer, becomes a StepOutcome with Success=false.
type ActionExecutor struct {
	defaultTimeout time.Duration
	screenshots    ScreenshotStore
}

// NewActionExecutor creates an executor. A zero timeout uses
// DefaultStepTimeout; a nil store embeds screenshots inline.
func NewActionExecutor(defaultTimeout time.Duration, screenshots ScreenshotStore) *ActionExecutor {
	if defaultTimeout <= 0 {
		defaultTimeout = DefaultStepTimeout
	}
	if screenshots == nil {
		screenshots = InlineScreenshots{}
	}
	return &ActionExecutor{defaultTimeout: defaultTimeout, screenshots: screenshots}
}

// DefaultTimeout returns the timeout applied to steps without their own.
func (a *ActionExecutor) DefaultTimeout() time.Duration {
	return a.defaultTimeout
}

// Execute runs step on page. Secret references in TYPE values are resolved
// through secrets immediately before they are typed.
func (a *ActionExecutor) Execute(ctx context.Context, step models.Step, page browser.Page, secrets SecretStore) (out models.StepOutcome) {
	start := time.Now()
	out = models.StepOutcome{Sequence: step.Sequence, Action: step.Action}

	defer func() {
		if r := recover(); r != nil {
			out.Success = false
			out.Error = (&StepError{Sequence: step.Sequence, Action: step.Action, Selector: step.Selector,
				Err: fmt.Errorf("panic: %v", r)}).Error()
		}
		out.ElapsedMs = time.Since(start).Milliseconds()
	}()

	shot, err := a.perform(ctx, step, page, secrets)
	if err != nil {
		out.Error = (&StepError{Sequence: step.Sequence, Action: step.Action, Selector: step.Selector, Err: err}).Error()
		out.Screenshot = a.captureOnError(ctx, step, page)
		return out
	}
	out.Success = true

	if shot != nil {
		out.Screenshot = a.save(ctx, step, shot)
	} else if step.ScreenshotAfter {
		if data, err := page.Screenshot(ctx); err == nil {
			out.Screenshot = a.save(ctx, step, data)
		}
	}

	if d := step.WaitAfter(); d > 0 {
		if err := sleep(ctx, d); err != nil {
			out.Success = false
			out.Error = (&StepError{Sequence: step.Sequence, Action: step.Action, Selector: step.Selector, Err: err}).Error()
		}
	}
	return out
}

// perform runs the action under the step timeout. The SCREENSHOT action
// returns its capture.
func (a *ActionExecutor) perform(ctx context.Context, step models.Step, page browser.Page, secrets SecretStore) ([]byte, error) {
	if err := step.Validate(); err != nil {
		return nil, err
	}

	// WAIT is bounded by its value, not by the step timeout
	if step.Action == models.ActionWait {
		ms, err := strconv.Atoi(strings.TrimSpace(step.Value))
		if err != nil || ms < 0 {
			return nil, fmt.Errorf("wait needs a duration in milliseconds, got %q", step.Value)
		}
		return nil, sleep(ctx, time.Duration(ms)*time.Millisecond)
	}

	timeout := step.Timeout(a.defaultTimeout)
	stepCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	shot, err := a.dispatch(stepCtx, step, page, secrets)
	if err != nil && errors.Is(stepCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		err = fmt.Errorf("%w: %w", NewTimeoutError(describe(step), timeout), err)
	}
	return shot, err
}

func (a *ActionExecutor) dispatch(ctx context.Context, step models.Step, page browser.Page, secrets SecretStore) ([]byte, error) {
	sel := step.Selector
	switch step.Action {
	case models.ActionClick:
		if err := page.WaitVisible(ctx, sel); err != nil {
			return nil, err
		}
		return nil, page.Click(ctx, sel)

	case models.ActionType:
		text := step.Value
		if HasSecrets(text) {
			if secrets == nil {
				return nil, fmt.Errorf("%w: no secret store configured", ErrUnresolvedSecret)
			}
			resolved, err := secrets.Resolve(text)
			if err != nil {
				return nil, err
			}
			text = resolved
		}
		if err := page.WaitVisible(ctx, sel); err != nil {
			return nil, err
		}
		return nil, page.Type(ctx, sel, text)

	case models.ActionSelect:
		if err := page.WaitVisible(ctx, sel); err != nil {
			return nil, err
		}
		return nil, page.Select(ctx, sel, step.Value)

	case models.ActionHover:
		if err := page.WaitVisible(ctx, sel); err != nil {
			return nil, err
		}
		return nil, page.Hover(ctx, sel)

	case models.ActionScroll:
		if sel != "" {
			return nil, page.ScrollIntoView(ctx, sel)
		}
		px, err := strconv.Atoi(strings.TrimSpace(step.Value))
		if err != nil {
			return nil, fmt.Errorf("scroll needs a selector or a pixel offset, got %q", step.Value)
		}
		return nil, page.ScrollBy(ctx, px)

	case models.ActionWaitForSelector:
		return nil, page.WaitVisible(ctx, sel)

	case models.ActionWaitForNavigation:
		return nil, page.WaitNavigation(ctx)

	case models.ActionWaitForNetworkIdle:
		return nil, page.WaitNetworkIdle(ctx)

	case models.ActionScreenshot:
		return page.Screenshot(ctx)
	}
	return nil, fmt.Errorf("unknown action %q", step.Action)
}

// captureOnError grabs a debug screenshot after a failed step. It is best
// effort: a failed capture leaves the outcome without a screenshot.
func (a *ActionExecutor) captureOnError(ctx context.Context, step models.Step, page browser.Page) string {
	if ctx.Err() != nil {
		return ""
	}
	capCtx, cancel := context.WithTimeout(ctx, debugCaptureTimeout)
	defer cancel()
	data, err := page.Screenshot(capCtx)
	if err != nil {
		return ""
	}
	return a.save(capCtx, step, data)
}

func (a *ActionExecutor) save(ctx context.Context, step models.Step, data []byte) string {
	name := fmt.Sprintf("step-%03d-%s", step.Sequence, uuid.NewString()[:8])
	ref, err := a.screenshots.Save(ctx, name, data)
	if err != nil {
		return ""
	}
	return ref
}

func describe(step models.Step) string {
	if step.Selector != "" {
		return fmt.Sprintf("%s %s", step.Action, step.Selector)
	}
	return string(step.Action)
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
