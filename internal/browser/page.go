// Package browser is the thin browser primitive the executor drives.
//
// A Page is one browser tab. The executor only needs navigation, a handful
// of input primitives, waits, screenshots and a DOM snapshot; everything
// else about the browser stays behind this interface. The production
// implementation is chromedp; tests use browsertest.FakePage.
package browser

import (
	"context"
	"errors"

	"github.com/bobdodd/auto-a11y/internal/dom"
)

// ErrElementNotFound is returned when a selector matches nothing before the
// context deadline.
var ErrElementNotFound = errors.New("element not found")

// Page is a single browser tab.
type Page interface {
	// Navigate loads url and waits for the document to be ready.
	Navigate(ctx context.Context, url string) error
	// SetContent replaces the current document with html.
	SetContent(ctx context.Context, html string) error

	Click(ctx context.Context, selector string) error
	Type(ctx context.Context, selector, text string) error
	Select(ctx context.Context, selector, value string) error
	Hover(ctx context.Context, selector string) error
	// ScrollIntoView scrolls the first element matching selector into view.
	ScrollIntoView(ctx context.Context, selector string) error
	// ScrollBy scrolls the window vertically by px pixels.
	ScrollBy(ctx context.Context, px int) error

	// WaitVisible blocks until selector matches a rendered element.
	WaitVisible(ctx context.Context, selector string) error
	// WaitNavigation blocks until the document finishes loading.
	WaitNavigation(ctx context.Context) error
	// WaitNetworkIdle blocks until no requests have been in flight for a quiet period.
	WaitNetworkIdle(ctx context.Context) error

	// Screenshot captures the viewport as PNG.
	Screenshot(ctx context.Context) ([]byte, error)
	// IsVisible reports whether selector currently matches a rendered element.
	IsVisible(ctx context.Context, selector string) (bool, error)
	// Text returns the whitespace-collapsed text of the first match, or of
	// the body when selector is empty.
	Text(ctx context.Context, selector string) (string, error)
	// Snapshot captures the rendered DOM for the check library.
	Snapshot(ctx context.Context) (*dom.Snapshot, error)

	Close() error
}

// Launcher opens tabs in a shared browser process.
type Launcher interface {
	NewPage(ctx context.Context) (Page, error)
	Close() error
}

// ContentLoader renders an HTML document in a fresh tab and captures its
// snapshot. The fixture harness uses it for fixtures given as markup.
type ContentLoader struct {
	launcher Launcher
}

// NewContentLoader creates a loader that opens one tab per document.
func NewContentLoader(l Launcher) *ContentLoader {
	return &ContentLoader{launcher: l}
}

// Load renders html and returns its snapshot.
func (c *ContentLoader) Load(ctx context.Context, html string) (*dom.Snapshot, error) {
	page, err := c.launcher.NewPage(ctx)
	if err != nil {
		return nil, err
	}
	defer page.Close()

	if err := page.SetContent(ctx, html); err != nil {
		return nil, err
	}
	return page.Snapshot(ctx)
}
