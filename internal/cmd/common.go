package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/bobdodd/auto-a11y/internal/browser"
	"github.com/bobdodd/auto-a11y/internal/config"
	"github.com/bobdodd/auto-a11y/internal/store"
)

// launchBrowser starts the browser used by run and fixture validation.
// Tests replace it with an in-memory launcher.
var launchBrowser = func(ctx context.Context, cfg *config.Config) (browser.Launcher, error) {
	return browser.NewChromeLauncher(ctx, browser.Options{
		Headless:       cfg.Browser.Headless,
		ExecPath:       cfg.Browser.ExecPath,
		ViewportWidth:  cfg.Browser.ViewportWidth,
		ViewportHeight: cfg.Browser.ViewportHeight,
	})
}

// loadConfig resolves the project directory and loads its configuration.
// An explicit --config file is loaded as is, with relative paths resolved
// against the project directory.
func loadConfig(cmd *cobra.Command) (*config.Config, string, error) {
	projectFlag, _ := cmd.Flags().GetString("project")
	start := projectFlag
	if start == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, "", fmt.Errorf("failed to get working directory: %w", err)
		}
		start = wd
	}
	root, err := config.FindProjectRoot(start)
	if err != nil {
		return nil, "", err
	}

	var cfg *config.Config
	if configPath, _ := cmd.Flags().GetString("config"); configPath != "" {
		cfg, err = config.LoadConfig(configPath)
		if err != nil {
			return nil, "", fmt.Errorf("failed to load config from %s: %w", configPath, err)
		}
		cfg.ResolvePaths(root)
	} else {
		cfg, err = config.LoadConfigFromDir(root)
		if err != nil {
			return nil, "", fmt.Errorf("failed to load config: %w", err)
		}
	}

	if cmd.Flags().Changed("log-level") {
		level, _ := cmd.Flags().GetString("log-level")
		cfg.MergeWithFlags(nil, nil, &level, nil, nil)
	}
	return cfg, root, nil
}

// openStore opens the results database named by the configuration.
func openStore(cfg *config.Config) (*store.Store, error) {
	if cfg.Store.DBPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Store.DBPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}
	st, err := store.NewStore(cfg.Store.DBPath, cfg.Store.MaxRecordBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to open results store: %w", err)
	}
	return st, nil
}

// colorEnabled reports whether w is a terminal that should get colors.
func colorEnabled(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return !color.NoColor && isatty.IsTerminal(f.Fd())
}
