package executor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bobdodd/auto-a11y/internal/browser"
	"github.com/bobdodd/auto-a11y/internal/models"
	"github.com/bobdodd/auto-a11y/internal/results"
)

// ProgressReporter is implemented by loggers that show how many pages have
// finished.
type ProgressReporter interface {
	LogProgress(done, total int)
}

// PageRun is the outcome of testing one page.
type PageRun struct {
	Page     *models.Page
	Results  []*models.TestResult
	Err      error
	Duration time.Duration
}

// Runner tests many pages concurrently, one browser tab per page. States
// within a page always run sequentially inside the orchestrator.
type Runner struct {
	launcher       browser.Launcher
	orchestrator   *Orchestrator
	maxConcurrency int
	pageTimeout    time.Duration // zero means no per-page timeout
	logger         Logger
}

// NewRunner creates a Runner. The logger parameter is optional and can be nil.
func NewRunner(launcher browser.Launcher, orchestrator *Orchestrator, maxConcurrency int, pageTimeout time.Duration, logger Logger) *Runner {
	if launcher == nil {
		panic("browser launcher cannot be nil")
	}
	if orchestrator == nil {
		panic("orchestrator cannot be nil")
	}
	return &Runner{
		launcher:       launcher,
		orchestrator:   orchestrator,
		maxConcurrency: maxConcurrency,
		pageTimeout:    pageTimeout,
		logger:         logger,
	}
}

type pageExecutionResult struct {
	index int
	run   PageRun
}

// Run tests every page and returns one PageRun per page in input order.
// Pages not started before ctx ends are reported with the context error.
func (r *Runner) Run(ctx context.Context, pages []*models.Page, opts RunOptions) []PageRun {
	out := make([]PageRun, len(pages))
	for i, p := range pages {
		out[i] = PageRun{Page: p}
	}
	if len(pages) == 0 {
		return out
	}

	maxConcurrency := r.maxConcurrency
	if maxConcurrency <= 0 || maxConcurrency > len(pages) {
		maxConcurrency = len(pages)
	}

	semaphore := make(chan struct{}, maxConcurrency)
	resultsCh := make(chan pageExecutionResult, len(pages))
	started := make([]bool, len(pages))

	var wg sync.WaitGroup
launch:
	for i, page := range pages {
		// Check context before acquiring semaphore to avoid blocking on a cancelled context
		if ctx.Err() != nil {
			break launch
		}
		select {
		case <-ctx.Done():
			break launch
		case semaphore <- struct{}{}:
		}
		started[i] = true

		wg.Add(1)
		go func(i int, page *models.Page) {
			defer wg.Done()
			defer func() { <-semaphore }()
			resultsCh <- pageExecutionResult{index: i, run: r.runPage(ctx, page, opts)}
		}(i, page)
	}

	go func() {
		wg.Wait()
		close(resultsCh)
	}()

	progress, _ := r.logger.(ProgressReporter)
	done := 0
	for res := range resultsCh {
		out[res.index] = res.run
		done++
		if progress != nil {
			progress.LogProgress(done, len(pages))
		}
	}
	for i := range out {
		if !started[i] {
			out[i].Err = fmt.Errorf("page %s not started: %w", pages[i].ID, ctx.Err())
		}
	}

	if r.logger != nil {
		var all []*models.TestResult
		for _, run := range out {
			all = append(all, run.Results...)
		}
		r.logger.LogSummary(results.Summarize(all))
	}
	return out
}

func (r *Runner) runPage(ctx context.Context, page *models.Page, opts RunOptions) PageRun {
	start := time.Now()
	run := PageRun{Page: page}

	if r.pageTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.pageTimeout)
		defer cancel()
	}

	tab, err := r.launcher.NewPage(ctx)
	if err != nil {
		run.Err = fmt.Errorf("open tab for page %s: %w", page.ID, err)
		if r.logger != nil {
			r.logger.LogPageFail(page.ID, run.Err)
		}
		run.Duration = time.Since(start)
		return run
	}
	defer tab.Close()

	run.Results, run.Err = r.orchestrator.RunMultiStateTest(ctx, tab, page, opts)
	run.Duration = time.Since(start)
	return run
}
