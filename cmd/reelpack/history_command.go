package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"reelpack/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var pruneAfter time.Duration
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent pack and unpack operations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := history.Open(cmd.Context(), cfg.Paths.HistoryDB)
			if err != nil {
				return err
			}
			defer store.Close()

			out := cmd.OutOrStdout()
			if pruneAfter > 0 {
				removed, err := store.Prune(cmd.Context(), time.Now().Add(-pruneAfter))
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Pruned %d record(s) older than %s\n", removed, pruneAfter)
			}

			records, err := store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, records)
			}
			if len(records) == 0 {
				fmt.Fprintln(out, "No operations recorded")
				return nil
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Started", "Kind", "Status", "Images", "Tracks", "Took", "Target", "Result"},
				historyRows(records, time.Now()),
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of records to show")
	cmd.Flags().DurationVar(&pruneAfter, "prune", 0, "Delete records older than this age first (e.g. 720h)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func historyRows(records []history.Record, now time.Time) [][]string {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		took := "-"
		if d := r.Duration(); d > 0 {
			took = d.Round(time.Second).String()
		}
		result := r.Output
		if r.Status == history.StatusFailed {
			result = firstLine(r.ErrorMessage)
			if r.ErrorKind != "" {
				result = r.ErrorKind + ": " + result
			}
		}
		rows = append(rows, []string{
			humanize.RelTime(r.StartedAt, now, "ago", "from now"),
			r.Category,
			string(r.Status),
			countOrDash(r.Images),
			countOrDash(r.Tracks),
			took,
			r.Target,
			result,
		})
	}
	return rows
}

func countOrDash(n int) string {
	if n <= 0 {
		return "-"
	}
	return strconv.Itoa(n)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
