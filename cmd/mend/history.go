package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"mend/internal/history"
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent fix and loop runs for this project",
		Args:  cobra.NoArgs,
		RunE:  runHistory,
	}
	cmd.Flags().Int("limit", 10, "number of runs to show (0 = all)")
	cmd.Flags().String("format", "pretty", "output format (pretty|json)")
	cmd.Flags().Bool("clear", false, "delete the recorded runs")
	return cmd
}

func runHistory(cmd *cobra.Command, args []string) error {
	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return err
	}
	format = strings.ToLower(format)
	if format != "pretty" && format != "json" {
		return fmt.Errorf("unsupported format %q (must be pretty or json)", format)
	}
	clearRuns, err := cmd.Flags().GetBool("clear")
	if err != nil {
		return err
	}

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.finish()

	if !a.cfg.History.Enabled {
		return fmt.Errorf("history is disabled in %s", a.cfg.Path)
	}
	store, err := history.Open("mend", a.cfg.Root())
	if err != nil {
		return err
	}
	if clearRuns {
		if err := store.Clear(); err != nil {
			return err
		}
		a.printf("Cleared %s\n", store.Dir())
		return nil
	}

	snaps, err := store.List(limit)
	if err != nil {
		return err
	}
	if format == "json" {
		enc := json.NewEncoder(a.out)
		enc.SetIndent("", "  ")
		if snaps == nil {
			snaps = []*history.Snapshot{}
		}
		return enc.Encode(snaps)
	}
	if len(snaps) == 0 {
		a.printf("No runs recorded for %s\n", a.cfg.Root())
		return nil
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tCOMMAND\tERRORS\tFILES\tITERATIONS\tRUN")
	for _, s := range snaps {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%s\n",
			s.Time.Local().Format(time.DateTime), s.Command, s.Total, s.FilesChanged, s.Iterations, shortID(s.RunID))
	}
	return tw.Flush()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
