// Package browsertest provides a scripted in-memory browser.Page for tests.
package browsertest

import (
	"context"
	"fmt"
	"sync"

	"github.com/bobdodd/auto-a11y/internal/browser"
	"github.com/bobdodd/auto-a11y/internal/dom"
)

// PNG is a minimal screenshot payload.
var PNG = []byte("\x89PNG\r\n\x1a\nfake")

// FakePage is a browser.Page whose DOM is a set of visible selectors plus a
// snapshot. Clicks can be given effects that mutate the page.
//
// Waiting for a selector that is not visible blocks until ctx ends, which
// mirrors how a real page times out.
type FakePage struct {
	mu sync.Mutex

	// Visible maps selectors to whether they currently match a rendered element.
	Visible map[string]bool
	// Texts maps selectors to their text; "" is the body text.
	Texts map[string]string
	// OnClick runs after a successful click on the selector.
	OnClick map[string]func(p *FakePage)
	// Snap is returned by Snapshot.
	Snap *dom.Snapshot
	// ScreenshotData is returned by Screenshot.
	ScreenshotData []byte

	NavigateErr   error
	ScreenshotErr error
	// FailSnapshotAt makes the n-th Snapshot call (1-based) fail with SnapshotErr.
	FailSnapshotAt int
	SnapshotErr    error

	// Typed records the last text typed into each selector.
	Typed map[string]string
	// Selected records the last value selected in each selector.
	Selected map[string]string
	// Calls records every primitive invoked, e.g. "click #accept".
	Calls []string

	snapshots int
	closed    bool
}

// NewFakePage creates a page showing snap with the given selectors visible.
func NewFakePage(snap *dom.Snapshot, visible ...string) *FakePage {
	p := &FakePage{
		Visible:        make(map[string]bool),
		Texts:          make(map[string]string),
		OnClick:        make(map[string]func(*FakePage)),
		Typed:          make(map[string]string),
		Selected:       make(map[string]string),
		Snap:           snap,
		ScreenshotData: PNG,
	}
	for _, sel := range visible {
		p.Visible[sel] = true
	}
	return p
}

// Show marks selectors visible.
func (p *FakePage) Show(selectors ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, s := range selectors {
		p.Visible[s] = true
	}
}

// Hide marks selectors hidden.
func (p *FakePage) Hide(selectors ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, s := range selectors {
		p.Visible[s] = false
	}
}

// CallLog returns a copy of the recorded calls.
func (p *FakePage) CallLog() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.Calls))
	copy(out, p.Calls)
	return out
}

// Closed reports whether Close was called.
func (p *FakePage) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *FakePage) record(format string, args ...interface{}) {
	p.Calls = append(p.Calls, fmt.Sprintf(format, args...))
}

// require fails with ErrElementNotFound unless selector is visible. Callers hold mu.
func (p *FakePage) require(selector string) error {
	if !p.Visible[selector] {
		return fmt.Errorf("%w: %s", browser.ErrElementNotFound, selector)
	}
	return nil
}

func (p *FakePage) Navigate(ctx context.Context, url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("navigate %s", url)
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.NavigateErr
}

func (p *FakePage) SetContent(ctx context.Context, html string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("content")
	return ctx.Err()
}

func (p *FakePage) Click(ctx context.Context, selector string) error {
	p.mu.Lock()
	p.record("click %s", selector)
	if err := p.require(selector); err != nil {
		p.mu.Unlock()
		return err
	}
	effect := p.OnClick[selector]
	p.mu.Unlock()

	if effect != nil {
		effect(p)
	}
	return nil
}

func (p *FakePage) Type(ctx context.Context, selector, text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("type %s", selector)
	if err := p.require(selector); err != nil {
		return err
	}
	p.Typed[selector] = text
	return nil
}

func (p *FakePage) Select(ctx context.Context, selector, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("select %s %s", selector, value)
	if err := p.require(selector); err != nil {
		return err
	}
	p.Selected[selector] = value
	return nil
}

func (p *FakePage) Hover(ctx context.Context, selector string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("hover %s", selector)
	return p.require(selector)
}

func (p *FakePage) ScrollIntoView(ctx context.Context, selector string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("scroll %s", selector)
	return p.require(selector)
}

func (p *FakePage) ScrollBy(ctx context.Context, px int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("scrollby %d", px)
	return nil
}

func (p *FakePage) WaitVisible(ctx context.Context, selector string) error {
	p.mu.Lock()
	p.record("wait %s", selector)
	visible := p.Visible[selector]
	p.mu.Unlock()
	if visible {
		return nil
	}
	<-ctx.Done()
	return fmt.Errorf("%w: %s", browser.ErrElementNotFound, selector)
}

func (p *FakePage) WaitNavigation(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("wait navigation")
	return ctx.Err()
}

func (p *FakePage) WaitNetworkIdle(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("wait network idle")
	return ctx.Err()
}

func (p *FakePage) Screenshot(ctx context.Context) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("screenshot")
	if p.ScreenshotErr != nil {
		return nil, p.ScreenshotErr
	}
	return p.ScreenshotData, nil
}

func (p *FakePage) IsVisible(ctx context.Context, selector string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Visible[selector], nil
}

func (p *FakePage) Text(ctx context.Context, selector string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Texts[selector], nil
}

func (p *FakePage) Snapshot(ctx context.Context) (*dom.Snapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snapshots++
	p.record("snapshot")
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.FailSnapshotAt > 0 && p.snapshots == p.FailSnapshotAt {
		return nil, p.SnapshotErr
	}
	if p.Snap == nil {
		return dom.NewBuilder("about:blank", "", "").Build(), nil
	}
	return p.Snap, nil
}

func (p *FakePage) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// Launcher hands out pages built by New.
type Launcher struct {
	mu    sync.Mutex
	New   func() *FakePage
	Pages []*FakePage
}

// NewPage implements browser.Launcher.
func (l *Launcher) NewPage(ctx context.Context) (browser.Page, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	p := l.New()
	l.Pages = append(l.Pages, p)
	return p, nil
}

// Close implements browser.Launcher.
func (l *Launcher) Close() error { return nil }

var (
	_ browser.Page     = (*FakePage)(nil)
	_ browser.Launcher = (*Launcher)(nil)
)
