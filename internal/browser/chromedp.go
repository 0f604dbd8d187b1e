package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	cdpdom "github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/network"
	cdppage "github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/bobdodd/auto-a11y/internal/dom"
)

// Quiet period and polling interval for network idle detection
const (
	networkQuietPeriod = 500 * time.Millisecond
	pollInterval       = 100 * time.Millisecond
)

// Options configures the Chrome process.
type Options struct {
	Headless       bool
	ExecPath       string // empty uses the chromedp lookup
	ViewportWidth  int
	ViewportHeight int
}

// ChromeLauncher owns one Chrome process and opens tabs in it.
type ChromeLauncher struct {
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
}

// NewChromeLauncher starts Chrome with the given options. The browser lives
// until Close is called or ctx is cancelled.
func NewChromeLauncher(ctx context.Context, opts Options) (*ChromeLauncher, error) {
	allocOpts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	allocOpts = append(allocOpts, chromedp.Flag("headless", opts.Headless))
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}
	if opts.ViewportWidth > 0 && opts.ViewportHeight > 0 {
		allocOpts = append(allocOpts, chromedp.WindowSize(opts.ViewportWidth, opts.ViewportHeight))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// Start the browser eagerly so launch failures surface here.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("start chrome: %w", err)
	}

	return &ChromeLauncher{
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
	}, nil
}

// NewPage opens a new tab.
func (l *ChromeLauncher) NewPage(ctx context.Context) (Page, error) {
	tabCtx, cancel := chromedp.NewContext(l.browserCtx)
	p := &chromePage{
		ctx:      tabCtx,
		cancel:   cancel,
		inflight: make(map[network.RequestID]struct{}),
	}
	chromedp.ListenTarget(tabCtx, p.onEvent)

	// The first Run allocates the target and must use the tab context itself;
	// a derived context would close the tab when it ends.
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	if err := chromedp.Run(tabCtx, network.Enable()); err != nil {
		cancel()
		return nil, fmt.Errorf("open tab: %w", err)
	}
	return p, nil
}

// Close shuts down the browser process.
func (l *ChromeLauncher) Close() error {
	l.browserCancel()
	l.allocCancel()
	return nil
}

// chromePage is a Page backed by one chromedp target.
type chromePage struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.Mutex
	inflight     map[network.RequestID]struct{}
	lastActivity time.Time
}

func (p *chromePage) onEvent(ev interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch e := ev.(type) {
	case *network.EventRequestWillBeSent:
		p.inflight[e.RequestID] = struct{}{}
	case *network.EventLoadingFinished:
		delete(p.inflight, e.RequestID)
	case *network.EventLoadingFailed:
		delete(p.inflight, e.RequestID)
	default:
		return
	}
	p.lastActivity = time.Now()
}

// run executes actions on the tab, bounded by both the tab's lifetime and
// the caller's ctx.
func (p *chromePage) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(p.ctx)
	defer cancel()
	if deadline, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		runCtx, cancelDeadline = context.WithDeadline(runCtx, deadline)
		defer cancelDeadline()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// runSelector is run for actions that first have to find selector.
func (p *chromePage) runSelector(ctx context.Context, selector string, actions ...chromedp.Action) error {
	err := p.run(ctx, actions...)
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s", ErrElementNotFound, selector)
	}
	return err
}

func (p *chromePage) Navigate(ctx context.Context, url string) error {
	if err := p.run(ctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	return nil
}

func (p *chromePage) SetContent(ctx context.Context, html string) error {
	if err := p.run(ctx, chromedp.Navigate("about:blank")); err != nil {
		return err
	}
	return p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		tree, err := cdppage.GetFrameTree().Do(ctx)
		if err != nil {
			return err
		}
		return cdppage.SetDocumentContent(tree.Frame.ID, html).Do(ctx)
	}))
}

func (p *chromePage) Click(ctx context.Context, selector string) error {
	return p.runSelector(ctx, selector, chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible))
}

func (p *chromePage) Type(ctx context.Context, selector, text string) error {
	return p.runSelector(ctx, selector,
		chromedp.Focus(selector, chromedp.ByQuery, chromedp.NodeVisible),
		chromedp.SendKeys(selector, text, chromedp.ByQuery),
	)
}

func (p *chromePage) Select(ctx context.Context, selector, value string) error {
	if err := p.WaitVisible(ctx, selector); err != nil {
		return err
	}
	var ok bool
	if err := p.run(ctx, chromedp.Evaluate(fmt.Sprintf(selectScript, jsString(selector), jsString(value)), &ok)); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("select %s: no option with value %q", selector, value)
	}
	return nil
}

func (p *chromePage) Hover(ctx context.Context, selector string) error {
	var nodes []*cdp.Node
	if err := p.runSelector(ctx, selector, chromedp.Nodes(selector, &nodes, chromedp.ByQuery, chromedp.NodeVisible)); err != nil {
		return err
	}
	if len(nodes) == 0 {
		return fmt.Errorf("%w: %s", ErrElementNotFound, selector)
	}
	return p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		box, err := cdpdom.GetBoxModel().WithNodeID(nodes[0].NodeID).Do(ctx)
		if err != nil {
			return err
		}
		if len(box.Content) < 8 {
			return fmt.Errorf("invalid box model for %s", selector)
		}
		x := (box.Content[0] + box.Content[4]) / 2
		y := (box.Content[1] + box.Content[5]) / 2
		return input.DispatchMouseEvent(input.MouseMoved, x, y).Do(ctx)
	}))
}

func (p *chromePage) ScrollIntoView(ctx context.Context, selector string) error {
	return p.runSelector(ctx, selector, chromedp.ScrollIntoView(selector, chromedp.ByQuery))
}

func (p *chromePage) ScrollBy(ctx context.Context, px int) error {
	return p.run(ctx, chromedp.Evaluate(fmt.Sprintf("window.scrollBy(0, %d)", px), nil))
}

func (p *chromePage) WaitVisible(ctx context.Context, selector string) error {
	return p.runSelector(ctx, selector, chromedp.WaitVisible(selector, chromedp.ByQuery))
}

func (p *chromePage) WaitNavigation(ctx context.Context) error {
	return p.poll(ctx, func(ctx context.Context) (bool, error) {
		var state string
		if err := p.run(ctx, chromedp.Evaluate("document.readyState", &state)); err != nil {
			return false, err
		}
		return state == "complete", nil
	})
}

func (p *chromePage) WaitNetworkIdle(ctx context.Context) error {
	return p.poll(ctx, func(context.Context) (bool, error) {
		p.mu.Lock()
		defer p.mu.Unlock()
		return len(p.inflight) == 0 && time.Since(p.lastActivity) >= networkQuietPeriod, nil
	})
}

// poll calls cond until it reports true, fails, or ctx ends.
func (p *chromePage) poll(ctx context.Context, cond func(context.Context) (bool, error)) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		done, err := cond(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (p *chromePage) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := p.run(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, fmt.Errorf("capture screenshot: %w", err)
	}
	return buf, nil
}

func (p *chromePage) IsVisible(ctx context.Context, selector string) (bool, error) {
	var visible bool
	if err := p.run(ctx, chromedp.Evaluate(fmt.Sprintf(visibleScript, jsString(selector)), &visible)); err != nil {
		return false, err
	}
	return visible, nil
}

func (p *chromePage) Text(ctx context.Context, selector string) (string, error) {
	var text string
	if err := p.run(ctx, chromedp.Evaluate(fmt.Sprintf(textScript, jsString(selector)), &text)); err != nil {
		return "", err
	}
	return text, nil
}

func (p *chromePage) Snapshot(ctx context.Context) (*dom.Snapshot, error) {
	var raw string
	if err := p.run(ctx, chromedp.Evaluate(snapshotScript, &raw)); err != nil {
		return nil, fmt.Errorf("capture snapshot: %w", err)
	}
	return dom.Parse([]byte(raw))
}

func (p *chromePage) Close() error {
	p.cancel()
	return nil
}

// jsString quotes s as a JavaScript string literal.
func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
