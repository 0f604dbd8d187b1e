package cmd

import (
	"github.com/spf13/cobra"
)

// Version is injected at build time via -ldflags
var Version = "dev"

// NewRootCommand creates and returns the root cobra command for a11y
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "a11y",
		Short: "Multi-state accessibility testing engine",
		Long: `a11y audits web pages for accessibility problems in every state a
user can reach, not only the state the page loads in.

Each page is tested as loaded, then its setup script (accept a cookie
banner, log in, open a menu) is executed and the resulting state is
tested again. Results of one run are linked so they can be compared.

Only checks that pass their labelled fixtures run in production. See
"a11y fixtures validate".`,
		Version: Version,
		// Silence usage on errors to avoid duplicate help text
		SilenceUsage: true,
	}

	cmd.PersistentFlags().String("config", "", "Path to config file (default: .a11y/config.yaml in the project)")
	cmd.PersistentFlags().String("project", "", "Project directory (default: nearest ancestor containing .a11y)")
	cmd.PersistentFlags().String("log-level", "", "Log level: trace, debug, info, warn, error")

	cmd.AddCommand(NewRunCommand())
	cmd.AddCommand(NewResultsCommand())
	cmd.AddCommand(NewFixturesCommand())
	cmd.AddCommand(NewStatsCommand())

	return cmd
}
