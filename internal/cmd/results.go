package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/bobdodd/auto-a11y/internal/models"
	"github.com/bobdodd/auto-a11y/internal/results"
	"github.com/bobdodd/auto-a11y/internal/store"
)

// NewResultsCommand creates the results command with its subcommands
func NewResultsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "results",
		Short: "Inspect stored test results",
		Long: `Inspect the results of earlier runs.

Results of one page run form a session: one result per tested state,
ordered by state sequence and linked to each other.`,
	}

	cmd.PersistentFlags().Bool("json", false, "Print results as JSON")

	cmd.AddCommand(&cobra.Command{
		Use:   "show <result-id>",
		Short: "Show one result with its findings",
		Args:  cobra.ExactArgs(1),
		RunE:  runResultsShow,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "states <result-id>",
		Short: "List every state of the session a result belongs to",
		Args:  cobra.ExactArgs(1),
		RunE:  runResultsStates,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "latest <page-id>",
		Short: "List the states of a page's most recent session",
		Args:  cobra.ExactArgs(1),
		RunE:  runResultsLatest,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "sessions <page-id>",
		Short: "List the sessions of a page, most recent first",
		Args:  cobra.ExactArgs(1),
		RunE:  runResultsSessions,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "compare <before-id> <after-id>",
		Short: "Diff the violations of two results",
		Args:  cobra.ExactArgs(2),
		RunE:  runResultsCompare,
	})

	return cmd
}

// withStore loads the configuration, opens the store and calls fn.
func withStore(cmd *cobra.Command, fn func(st *store.Store) error) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()
	return fn(st)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func wantJSON(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("json")
	return v
}

func runResultsShow(cmd *cobra.Command, args []string) error {
	return withStore(cmd, func(st *store.Store) error {
		r, err := st.GetResult(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if wantJSON(cmd) {
			return printJSON(cmd.OutOrStdout(), r)
		}
		printResult(cmd.OutOrStdout(), r, colorEnabled(cmd.OutOrStdout()))
		return nil
	})
}

func runResultsStates(cmd *cobra.Command, args []string) error {
	return withStore(cmd, func(st *store.Store) error {
		states, err := st.GetStatesForResult(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if wantJSON(cmd) {
			return printJSON(cmd.OutOrStdout(), states)
		}
		printStates(cmd.OutOrStdout(), states)
		return nil
	})
}

func runResultsLatest(cmd *cobra.Command, args []string) error {
	return withStore(cmd, func(st *store.Store) error {
		bySeq, err := st.GetLatestStatesForPage(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		states := make([]*models.TestResult, 0, len(bySeq))
		for _, r := range bySeq {
			states = append(states, r)
		}
		sort.Slice(states, func(i, j int) bool { return states[i].StateSequence < states[j].StateSequence })

		if wantJSON(cmd) {
			return printJSON(cmd.OutOrStdout(), states)
		}
		if len(states) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "No results for page %s\n", args[0])
			return nil
		}
		printStates(cmd.OutOrStdout(), states)
		return nil
	})
}

func runResultsSessions(cmd *cobra.Command, args []string) error {
	return withStore(cmd, func(st *store.Store) error {
		sessions, err := st.GetSessionsForPage(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if wantJSON(cmd) {
			return printJSON(cmd.OutOrStdout(), sessions)
		}
		w := cmd.OutOrStdout()
		if len(sessions) == 0 {
			fmt.Fprintf(w, "No sessions for page %s\n", args[0])
			return nil
		}
		fmt.Fprintf(w, "%-36s  %-20s  %6s  %s\n", "SESSION", "STARTED", "STATES", "FIRST RESULT")
		for _, s := range sessions {
			first := "-"
			if len(s.ResultIDs) > 0 {
				first = s.ResultIDs[0]
			}
			fmt.Fprintf(w, "%-36s  %-20s  %6d  %s\n", s.SessionID, s.StartedAt.Format(time.RFC3339), s.States, first)
		}
		return nil
	})
}

func runResultsCompare(cmd *cobra.Command, args []string) error {
	return withStore(cmd, func(st *store.Store) error {
		diff, err := st.Compare(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		if wantJSON(cmd) {
			return printJSON(cmd.OutOrStdout(), diff)
		}
		printDiff(cmd.OutOrStdout(), diff, colorEnabled(cmd.OutOrStdout()))
		return nil
	})
}

func printStates(w io.Writer, states []*models.TestResult) {
	fmt.Fprintf(w, "%3s  %-36s  %-32s  %10s  %8s  %s\n", "SEQ", "RESULT", "STATE", "VIOLATIONS", "WARNINGS", "NOTES")
	for _, r := range states {
		c := results.TrueCounts(r)
		var notes string
		if r.SizeLimited {
			notes = "size limited "
		}
		if !r.Audited {
			notes += "unaudited"
		}
		fmt.Fprintf(w, "%3d  %-36s  %-32s  %10d  %8d  %s\n",
			r.StateSequence, r.ID, truncate(r.PageState.Description, 32), c.Violations, c.Warnings, notes)
	}
}

func printResult(w io.Writer, r *models.TestResult, colorOutput bool) {
	fmt.Fprintf(w, "Result %s\n", r.ID)
	fmt.Fprintf(w, "  Page:     %s (%s)\n", r.PageID, r.URL)
	fmt.Fprintf(w, "  Session:  %s\n", r.SessionID)
	fmt.Fprintf(w, "  State:    %d, %s\n", r.StateSequence, r.PageState.Description)
	if len(r.PageState.ScriptsExecuted) > 0 {
		fmt.Fprintf(w, "  Scripts:  %v\n", r.PageState.ScriptsExecuted)
	}
	fmt.Fprintf(w, "  Tested:   %s (%dms)\n", r.TestedAt.Format(time.RFC3339), r.DurationMs)
	fmt.Fprintf(w, "  Audited:  %t\n", r.Audited)
	if len(r.RelatedResultIDs) > 0 {
		fmt.Fprintf(w, "  Related:  %v\n", r.RelatedResultIDs)
	}
	if r.ScriptRun != nil {
		fmt.Fprintf(w, "  Script:   %s %s\n", r.ScriptRun.ScriptID, r.ScriptRun.Status)
	}

	sections := []struct {
		name     string
		findings []models.Finding
		color    color.Attribute
	}{
		{"Violations", r.Violations, color.FgRed},
		{"Warnings", r.Warnings, color.FgYellow},
		{"Info", r.Info, color.FgCyan},
		{"Discoveries", r.Discoveries, color.FgCyan},
		{"Passes", r.Passes, color.FgGreen},
	}
	for _, s := range sections {
		if len(s.findings) == 0 {
			continue
		}
		header := fmt.Sprintf("%s (%d)", s.name, len(s.findings))
		if colorOutput {
			header = color.New(s.color).Sprint(header)
		}
		fmt.Fprintf(w, "\n%s\n", header)
		for _, f := range s.findings {
			fmt.Fprintf(w, "  - %s %s %s\n", f.Code, f.XPath, f.Description)
		}
	}
}

func printDiff(w io.Writer, diff models.Diff, colorOutput bool) {
	sections := []struct {
		name     string
		findings []models.Finding
		color    color.Attribute
	}{
		{"New", diff.New, color.FgRed},
		{"Fixed", diff.Fixed, color.FgGreen},
		{"Persistent", diff.Persistent, color.FgYellow},
	}
	fmt.Fprintf(w, "new: %d, fixed: %d, persistent: %d\n", len(diff.New), len(diff.Fixed), len(diff.Persistent))
	for _, s := range sections {
		if len(s.findings) == 0 {
			continue
		}
		header := s.name
		if colorOutput {
			header = color.New(s.color).Sprint(header)
		}
		fmt.Fprintf(w, "\n%s\n", header)
		for _, f := range s.findings {
			fmt.Fprintf(w, "  - %s %s %s\n", f.Check, f.Code, f.XPath)
		}
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
