package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/bobdodd/auto-a11y/internal/store"
)

// NewStatsCommand creates the stats command
func NewStatsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats <script-id>",
		Short: "Show how a setup script has performed across runs",
		Args:  cobra.ExactArgs(1),
		RunE:  runStats,
	}
	cmd.Flags().Int("runs", 10, "Number of recent runs to list")
	cmd.Flags().Bool("json", false, "Print stats as JSON")
	return cmd
}

func runStats(cmd *cobra.Command, args []string) error {
	scriptID := args[0]
	limit, _ := cmd.Flags().GetInt("runs")
	asJSON, _ := cmd.Flags().GetBool("json")

	return withStore(cmd, func(st *store.Store) error {
		stats, err := st.GetScriptStats(cmd.Context(), scriptID)
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("script %s has never run", scriptID)
		}
		if err != nil {
			return err
		}
		runs, err := st.ListScriptRuns(cmd.Context(), scriptID, limit)
		if err != nil {
			return err
		}

		if asJSON {
			return printJSON(cmd.OutOrStdout(), map[string]interface{}{
				"script_id": scriptID,
				"stats":     stats,
				"runs":      runs,
			})
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "Script %s\n", scriptID)
		fmt.Fprintf(w, "  Runs:         %d\n", stats.Runs())
		fmt.Fprintf(w, "  Succeeded:    %d\n", stats.SuccessCount)
		fmt.Fprintf(w, "  Failed:       %d\n", stats.FailureCount)
		fmt.Fprintf(w, "  Avg duration: %.0fms\n", stats.AvgDurationMs)
		if !stats.LastRunAt.IsZero() {
			fmt.Fprintf(w, "  Last run:     %s (%s)\n", stats.LastRunAt.Format(time.RFC3339), stats.LastStatus)
		}

		if len(runs) > 0 {
			fmt.Fprintf(w, "\n%-20s  %-10s  %-16s  %8s  %s\n", "RAN AT", "STATUS", "PAGE", "DURATION", "REASON")
			for _, r := range runs {
				reason := r.Reason
				if r.FailedStep > 0 {
					reason = fmt.Sprintf("step %d: %s", r.FailedStep, reason)
				}
				fmt.Fprintf(w, "%-20s  %-10s  %-16s  %6dms  %s\n",
					r.RanAt.Format(time.RFC3339), r.Status, r.PageID, r.DurationMs, reason)
			}
		}
		return nil
	})
}
