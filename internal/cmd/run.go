package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/bobdodd/auto-a11y/internal/checks"
	"github.com/bobdodd/auto-a11y/internal/config"
	"github.com/bobdodd/auto-a11y/internal/executor"
	"github.com/bobdodd/auto-a11y/internal/filelock"
	"github.com/bobdodd/auto-a11y/internal/harness"
	"github.com/bobdodd/auto-a11y/internal/logger"
	"github.com/bobdodd/auto-a11y/internal/pages"
	"github.com/bobdodd/auto-a11y/internal/results"
)

// NewRunCommand creates the run command
func NewRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <pages-file>",
		Short: "Test pages in all of their interaction states",
		Long: `Test the pages defined in a page definition file.

Every page is loaded and tested in its initial state. When a page has an
enabled setup script, the script is executed and the state it produces is
tested too. All results of one page run share a session and are linked.

Only checks trusted by the last fixture validation run are executed. Pass
--debug-override to run every check; such results are marked unaudited.

Configuration is loaded from .a11y/config.yaml if present.
CLI flags override configuration file settings.

Examples:
  a11y run pages.yaml
  a11y run pages.yaml --page home --page checkout
  a11y run pages.yaml --max-concurrency 2 --timeout 2m
  a11y run pages.yaml --no-multi-state       # initial states only`,
		Args: cobra.ExactArgs(1),
		RunE: runCommand,
	}

	cmd.Flags().StringSlice("page", nil, "Only test the pages with these ids (repeatable)")
	cmd.Flags().Int("max-concurrency", -1, "Maximum number of pages tested at once (0 = one per page, -1 = use config)")
	cmd.Flags().String("timeout", "", "Maximum time for one page run (e.g., 30s, 5m)")
	cmd.Flags().Bool("debug-override", false, "Run every check regardless of fixture results (results are unaudited)")
	cmd.Flags().Bool("no-multi-state", false, "Only test the initial state of each page")
	cmd.Flags().String("log-dir", "", "Directory for log files (default: .a11y/logs)")

	return cmd
}

// runCommand implements the run command logic
func runCommand(cmd *cobra.Command, args []string) error {
	cfg, root, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	var maxConcurrencyPtr *int
	if cmd.Flags().Changed("max-concurrency") {
		v, _ := cmd.Flags().GetInt("max-concurrency")
		maxConcurrencyPtr = &v
	}
	var timeoutPtr *time.Duration
	if cmd.Flags().Changed("timeout") {
		s, _ := cmd.Flags().GetString("timeout")
		timeout, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid timeout format %q: %w", s, err)
		}
		timeoutPtr = &timeout
	}
	var debugOverridePtr *bool
	if cmd.Flags().Changed("debug-override") {
		v, _ := cmd.Flags().GetBool("debug-override")
		debugOverridePtr = &v
	}
	var multiStatePtr *bool
	if cmd.Flags().Changed("no-multi-state") {
		v, _ := cmd.Flags().GetBool("no-multi-state")
		v = !v
		multiStatePtr = &v
	}

	cfg.MergeWithFlags(maxConcurrencyPtr, timeoutPtr, nil, debugOverridePtr, multiStatePtr)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	catalog, err := pages.Load(args[0])
	if err != nil {
		return fmt.Errorf("failed to load pages: %w", err)
	}
	pageIDs, _ := cmd.Flags().GetStringSlice("page")
	selected, err := catalog.Select(pageIDs)
	if err != nil {
		return err
	}
	if len(selected) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "Page file is valid but defines no pages.\n")
		return nil
	}

	enablement, err := harness.LoadEnablement(cfg.Fixtures.MapPath)
	if err != nil {
		return err
	}

	logDir, _ := cmd.Flags().GetString("log-dir")
	if logDir == "" {
		logDir = filepath.Join(root, config.HomeDirName, "logs")
	}
	consoleLog := logger.NewConsoleLogger(cmd.OutOrStdout(), cfg.LogLevel)
	fileLog, err := logger.NewFileLogger(logDir, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	defer fileLog.Close()
	log := logger.NewMultiLogger(consoleLog, fileLog)

	if cfg.Fixtures.DebugOverride {
		log.LogWarn("debug override is on: every check runs and results are marked unaudited")
	} else if len(enablement.Get(false).Enabled) == 0 {
		log.LogWarn(fmt.Sprintf("no trusted checks in %s; run \"a11y fixtures validate\" first", cfg.Fixtures.MapPath))
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	var shots executor.ScreenshotStore = executor.InlineScreenshots{}
	if cfg.Screenshots.Dir != "" {
		shots = executor.DirScreenshots{Dir: cfg.Screenshots.Dir}
	}
	locks := filelock.NewKeyedLocker(filepath.Join(root, config.HomeDirName, "locks"))
	actions := executor.NewActionExecutor(cfg.Browser.StepTimeout, shots)

	orch := executor.NewOrchestrator(executor.OrchestratorConfig{
		Registry:      checks.DefaultRegistry(),
		Store:         st,
		Scripts:       executor.NewScriptEngine(actions, st, locks, log),
		Enablement:    enablement,
		DebugOverride: cfg.Fixtures.DebugOverride,
		Guard:         results.NewSizeGuard(cfg.Store.SafeLimitBytes),
		Secrets:       executor.NewEnvSecrets(cfg.Secrets.EnvPrefix),
		Screenshots:   shots,
		Logger:        log,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	launcher, err := launchBrowser(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to start browser: %w", err)
	}
	defer launcher.Close()

	fmt.Fprintf(cmd.OutOrStdout(), "Testing %d page(s)...\n\n", len(selected))
	runner := executor.NewRunner(launcher, orch, cfg.MaxConcurrency, cfg.PageTimeout, log)
	runs := runner.Run(ctx, selected, executor.RunOptions{EnableMultiState: cfg.MultiState})

	failed := printRunTable(cmd.OutOrStdout(), runs, colorEnabled(cmd.OutOrStdout()))
	fmt.Fprintf(cmd.OutOrStdout(), "\nLogs written to: %s\n", fileLog.RunFile())
	if failed > 0 {
		return fmt.Errorf("%d page(s) failed", failed)
	}
	return nil
}

// printRunTable prints one line per page and returns the number of failed pages.
func printRunTable(w io.Writer, runs []executor.PageRun, colorOutput bool) int {
	failed := 0
	fmt.Fprintf(w, "\n%-20s %6s %10s %8s  %s\n", "PAGE", "STATES", "VIOLATIONS", "PASSES", "SESSION")
	for _, run := range runs {
		s := results.Summarize(run.Results)
		session := "-"
		if len(run.Results) > 0 {
			session = run.Results[0].SessionID
		}
		line := fmt.Sprintf("%-20s %6d %10d %8d  %s", run.Page.ID, s.Results, s.Violations, s.Passes, session)
		if run.Err != nil {
			failed++
			line += "  FAILED: " + run.Err.Error()
			if colorOutput {
				line = color.New(color.FgRed).Sprint(line)
			}
		}
		fmt.Fprintln(w, line)
	}
	return failed
}
