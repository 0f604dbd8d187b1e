package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bobdodd/auto-a11y/internal/browser"
	"github.com/bobdodd/auto-a11y/internal/checks"
	"github.com/bobdodd/auto-a11y/internal/config"
	"github.com/bobdodd/auto-a11y/internal/dom"
	"github.com/bobdodd/auto-a11y/internal/harness"
	"github.com/bobdodd/auto-a11y/internal/logger"
	"github.com/bobdodd/auto-a11y/internal/models"
)

// NewFixturesCommand creates the fixtures command with its subcommands
func NewFixturesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fixtures",
		Short: "Validate checks against labelled fixtures",
		Long: `Fixtures are Markdown documents of labelled examples. Each fixture gives
a page (as HTML or a captured snapshot) and the findings a check must
produce for it. A check is trusted only when all of its fixtures match;
production runs skip untrusted checks.`,
	}

	validate := &cobra.Command{
		Use:   "validate [dir]",
		Short: "Run every check over its fixtures and publish the enablement map",
		Long: `Run every check over its fixtures and write the resulting enablement
map. The directory defaults to fixtures.dir from the configuration.

Examples:
  a11y fixtures validate
  a11y fixtures validate testdata/fixtures --dry-run
  a11y fixtures validate --watch             # re-run on every fixture edit`,
		Args: cobra.MaximumNArgs(1),
		RunE: runFixturesValidate,
	}
	validate.Flags().Bool("watch", false, "Re-run whenever a fixture document changes")
	validate.Flags().Bool("dry-run", false, "Report without writing the enablement map")
	validate.Flags().Bool("json", false, "Print the report as JSON")
	validate.Flags().Bool("strict", false, "Exit with an error when any fixture fails")
	cmd.AddCommand(validate)

	mapCmd := &cobra.Command{
		Use:   "map",
		Short: "Show which checks are trusted",
		Args:  cobra.NoArgs,
		RunE:  runFixturesMap,
	}
	mapCmd.Flags().Bool("debug-override", false, "Show the map as a debug override run sees it")
	cmd.AddCommand(mapCmd)

	return cmd
}

// lazyLoader starts the browser on the first HTML fixture, so snapshot-only
// fixture sets never launch one.
type lazyLoader struct {
	ctx context.Context
	cfg *config.Config

	once     sync.Once
	launcher browser.Launcher
	loader   *browser.ContentLoader
	err      error
}

func (l *lazyLoader) Load(ctx context.Context, html string) (*dom.Snapshot, error) {
	l.once.Do(func() {
		l.launcher, l.err = launchBrowser(l.ctx, l.cfg)
		if l.err == nil {
			l.loader = browser.NewContentLoader(l.launcher)
		}
	})
	if l.err != nil {
		return nil, fmt.Errorf("start browser: %w", l.err)
	}
	return l.loader.Load(ctx, html)
}

func (l *lazyLoader) Close() error {
	if l.launcher != nil {
		return l.launcher.Close()
	}
	return nil
}

func runFixturesValidate(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	dir := cfg.Fixtures.Dir
	if len(args) == 1 {
		dir = args[0]
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return fmt.Errorf("fixture directory %s not found", dir)
	}

	watch, _ := cmd.Flags().GetBool("watch")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	asJSON, _ := cmd.Flags().GetBool("json")
	strict, _ := cmd.Flags().GetBool("strict")

	mapPath := cfg.Fixtures.MapPath
	if dryRun {
		mapPath = ""
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loader := &lazyLoader{ctx: ctx, cfg: cfg}
	defer loader.Close()

	h := harness.New(checks.DefaultRegistry(), loader)
	target := harness.NewEnablement()
	out := cmd.OutOrStdout()

	validate := func() (*harness.Report, error) {
		report, err := h.Refresh(ctx, dir, target, mapPath)
		if err != nil {
			return nil, err
		}
		if asJSON {
			return report, printJSON(out, report)
		}
		return report, report.WriteText(out)
	}

	report, err := validate()
	if err != nil {
		return err
	}
	if !watch {
		if mapPath != "" && !asJSON {
			fmt.Fprintf(out, "\nEnablement map written to %s\n", mapPath)
		}
		if strict && report.FailedFixtures() > 0 {
			return fmt.Errorf("%d fixture(s) failed", report.FailedFixtures())
		}
		return nil
	}

	watcher, err := harness.NewWatcher(dir, harness.DefaultDebounce)
	if err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	defer watcher.Close()

	log := logger.NewConsoleLogger(cmd.ErrOrStderr(), cfg.LogLevel)
	log.LogInfo(fmt.Sprintf("watching %s for fixture changes", dir))
	return watcher.Run(ctx, func() {
		fmt.Fprintln(out)
		if _, err := validate(); err != nil {
			log.LogError(err.Error())
		}
	})
}

func runFixturesMap(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	debugOverride, _ := cmd.Flags().GetBool("debug-override")

	enablement, err := harness.LoadEnablement(cfg.Fixtures.MapPath)
	if err != nil {
		return err
	}
	printEnablement(cmd.OutOrStdout(), enablement.Get(debugOverride), cfg.Fixtures.MapPath)
	return nil
}

func printEnablement(w io.Writer, view harness.View, path string) {
	if view.GeneratedAt.IsZero() {
		fmt.Fprintf(w, "Enablement map %s (never validated)\n", path)
	} else {
		fmt.Fprintf(w, "Enablement map %s (validated %s)\n", path, view.GeneratedAt.Format("2006-01-02 15:04:05 MST"))
	}
	if view.DebugOverride {
		fmt.Fprintf(w, "Debug override: every check runs, results are unaudited\n")
	}
	fmt.Fprintln(w)
	for _, id := range models.AllCheckIDs() {
		mark := "✗"
		if view.Allows(id) {
			mark = "✓"
		}
		fmt.Fprintf(w, "  %s %s\n", mark, id)
	}
}
