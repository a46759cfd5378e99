// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/pdf-harvest/internal/report"
	"github.com/pdiddy/pdf-harvest/pkg/types"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List past runs or the URLs of one run",
	Long: `History reads the run database kept in the destination directory.

Without flags it lists recent runs. --run selects a run (default: the latest)
and prints its per-URL records; --failed prints only the URLs that produced no
file, one per line, ready to be fed back with "harvest --input".

When the destination has no history database (runs made with --no-history),
the report.csv and summary.yaml of the last run are read instead.`,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().StringP("dest", "d", "downloads", "destination directory of the runs")
	historyCmd.Flags().String("history", "", "SQLite history path (default <dest>/.pdf-harvest/history.db)")
	historyCmd.Flags().String("run", "", "run ID (default: latest run)")
	historyCmd.Flags().Bool("failed", false, "print only failed URLs")
	historyCmd.Flags().Int("limit", 20, "number of runs to list")

	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	dest, _ := cmd.Flags().GetString("dest")
	runID, _ := cmd.Flags().GetString("run")
	failed, _ := cmd.Flags().GetBool("failed")
	limit, _ := cmd.Flags().GetInt("limit")

	path, _ := cmd.Flags().GetString("history")
	explicit := path != ""
	if !explicit {
		path = report.DefaultHistoryPath(dest)
	}
	if _, err := os.Stat(path); err != nil {
		// Runs made with --no-history still leave their report files.
		if !explicit && runID == "" && errors.Is(err, fs.ErrNotExist) {
			return showLastReport(os.Stdout, dest, failed)
		}
		return fmt.Errorf("no history at %s: %w", path, err)
	}

	store, err := report.OpenStore(path)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	if runID == "" && !failed {
		return listRuns(ctx, os.Stdout, store, limit)
	}
	if runID == "" {
		if runID, err = store.LatestRunID(ctx); err != nil {
			return err
		}
	}
	if failed {
		urls, err := store.FailedURLs(ctx, runID)
		if err != nil {
			return err
		}
		for _, u := range urls {
			fmt.Fprintln(os.Stdout, u)
		}
		return nil
	}
	return showRun(ctx, os.Stdout, store, runID)
}

func listRuns(ctx context.Context, w io.Writer, store *report.Store, limit int) error {
	runs, err := store.Runs(ctx, limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(w, "no runs recorded")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSTARTED\tOK\tFAILED\tBYTES\tDEST")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%s\n",
			r.RunID, r.StartedAt.Local().Format(time.DateTime), r.Succeeded, r.Failed, r.Bytes, r.DestDir)
	}
	return tw.Flush()
}

func showRun(ctx context.Context, w io.Writer, store *report.Store, runID string) error {
	recs, err := store.Records(ctx, runID)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		return fmt.Errorf("run %s has no records", runID)
	}
	return printRecords(w, recs)
}

// showLastReport reads the summary and CSV report the last run left in
// dest.
func showLastReport(w io.Writer, dest string, failed bool) error {
	if failed {
		sum, err := report.ReadSummary(filepath.Join(dest, "summary.yaml"))
		if err != nil {
			return err
		}
		for _, u := range sum.FailedURLs {
			fmt.Fprintln(w, u)
		}
		return nil
	}

	recs, err := report.ReadCSV(filepath.Join(dest, "report.csv"))
	if err != nil {
		return err
	}
	return printRecords(w, recs)
}

func printRecords(w io.Writer, recs []types.ReportRecord) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tRESULT\tMETHOD\tFILE\tURL")
	for i, r := range recs {
		result := "ok"
		if !r.Success {
			result = "failed"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", i+1, result, r.Method, r.FileName, r.URL)
	}
	return tw.Flush()
}
