package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/iksnae/vault-agent/internal/ledger"
	"github.com/spf13/cobra"
)

var historyLimit int

// historyCmd represents the history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List past conversion runs",
	Long: `List batch conversion runs recorded in the local history, newest first.

Use 'vault-agent history show <run-id>' to see every file of a run. A unique
prefix of the id is enough.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		store, err := openHistory()
		if err != nil {
			return err
		}
		if store == nil {
			fmt.Fprintln(out, "No conversion runs recorded yet.")
			return nil
		}
		defer store.Close()

		runs, err := store.ListRuns(commandContext(cmd), historyLimit)
		if err != nil {
			return fmt.Errorf("failed to list runs: %w", err)
		}
		if len(runs) == 0 {
			fmt.Fprintln(out, "No conversion runs recorded yet.")
			return nil
		}

		fmt.Fprintln(out, sectionStyle.Render(fmt.Sprintf("Conversion runs (%d)", len(runs))))
		fmt.Fprintln(out)
		for _, run := range runs {
			status := successStyle.Render(fmt.Sprintf("✓%d", run.Succeeded))
			if run.Failed > 0 {
				status += " " + errorStyle.Render(fmt.Sprintf("✗%d", run.Failed))
			}
			if run.Canceled {
				status += " " + warningStyle.Render("canceled")
			}
			fmt.Fprintf(out, "%s  %-14s  %-8s  %-20s  %s\n",
				shortID(run.ID), humanize.Time(run.StartedAt), run.Format, run.Destination, status)
		}
		return nil
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show every file of a conversion run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		store, err := openHistory()
		if err != nil {
			return err
		}
		if store == nil {
			return fmt.Errorf("run %s: %w", args[0], ledger.ErrNotFound)
		}
		defer store.Close()

		report, err := store.GetRun(commandContext(cmd), args[0])
		if err != nil {
			return err
		}

		fmt.Fprintln(out, sectionStyle.Render("Run "+report.ID))
		fmt.Fprintf(out, "Started:     %s (%s)\n", report.StartedAt.Local().Format(time.DateTime), humanize.Time(report.StartedAt))
		fmt.Fprintf(out, "Duration:    %s\n", report.Duration().Round(time.Millisecond))
		fmt.Fprintf(out, "Format:      %s\n", report.Format)
		fmt.Fprintf(out, "Destination: %s\n", report.Destination)
		fmt.Fprintf(out, "Result:      %d succeeded, %d failed", report.Succeeded, report.Failed)
		if report.Canceled {
			fmt.Fprint(out, ", canceled")
		}
		fmt.Fprintln(out)
		fmt.Fprintln(out)

		for i, res := range report.Results {
			printResult(out, i+1, len(report.Results), res)
		}
		return nil
	},
}

// openHistory opens the ledger read-only. A missing ledger is not an error
// and yields a nil store.
func openHistory() (*ledger.Store, error) {
	if _, err := os.Stat(cfg.LedgerPath); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	store, err := ledger.OpenReadOnly(cfg.LedgerPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open history: %w", err)
	}
	return store, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id + strings.Repeat(" ", 8-len(id))
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of runs to show (0 for all)")
}
