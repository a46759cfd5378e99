// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/pdf-harvest/internal/browser"
	"github.com/pdiddy/pdf-harvest/internal/fetch"
	"github.com/pdiddy/pdf-harvest/internal/harvest"
	"github.com/pdiddy/pdf-harvest/internal/httputil"
	"github.com/pdiddy/pdf-harvest/internal/metrics"
	"github.com/pdiddy/pdf-harvest/internal/portal"
	"github.com/pdiddy/pdf-harvest/internal/report"
	"github.com/pdiddy/pdf-harvest/internal/source"
	"github.com/pdiddy/pdf-harvest/pkg/types"
)

const (
	defaultTimeout     = 60 * time.Second
	defaultHeadTimeout = 20 * time.Second
	defaultNavTimeout  = 90 * time.Second
	defaultThrottle    = 700 * time.Millisecond
)

var harvestCmd = &cobra.Command{
	Use:   "harvest [urls...]",
	Short: "Download the PDF behind every URL",
	Long: `Harvest downloads one PDF per URL into the destination directory.

URLs come from the arguments, from --input (a .xlsx, .csv or .tsv column, or a
.txt list with one URL per line), or both. Each URL is fetched directly first;
with --fallback (the default) a headless Chrome retries URLs the direct fetch
could not download.

Every URL gets one row in the CSV report. Reports that cannot be written are
logged and skipped; the downloads still run. The command exits non-zero when any
URL failed; "pdf-harvest history --failed > retry.txt" lists them for a rerun.`,
	RunE: runHarvest,
}

func init() {
	f := harvestCmd.Flags()
	f.StringP("input", "i", "", "file with URLs (.xlsx, .csv, .tsv, .txt)")
	f.String("column", "", "column header or 1-based index holding the URLs (default: first header containing url/link)")
	f.StringP("dest", "d", "downloads", "destination directory")
	f.Bool("fallback", true, "retry failed URLs in a headless browser")
	f.Bool("headless", true, "run the fallback browser without a window")
	f.String("chrome", "", "Chrome/Chromium executable (default: autodetect)")
	f.String("user-agent", "", "User-Agent for HTTP requests (default: desktop Chrome)")
	f.Duration("timeout", defaultTimeout, "HTTP GET timeout, body included")
	f.Duration("head-timeout", defaultHeadTimeout, "preflight HEAD timeout")
	f.Duration("nav-timeout", defaultNavTimeout, "browser navigation timeout")
	f.Duration("throttle", defaultThrottle, "pause after each direct download")
	f.Int("retries", httputil.DefaultMaxAttempts, "total attempts for 429/5xx responses and connection errors")
	f.Bool("no-preflight", false, "skip the HEAD request before each GET")
	f.String("report", "", "CSV report path (default <dest>/report.csv)")
	f.String("summary", "", "YAML summary path (default <dest>/summary.yaml)")
	f.String("history", "", "SQLite history path (default <dest>/.pdf-harvest/history.db)")
	f.Bool("no-history", false, "do not record the run in the history database")
	f.String("metrics-file", "", "write Prometheus metrics to this textfile after the run")

	viper.BindPFlags(f)
	rootCmd.AddCommand(harvestCmd)
}

// harvestConfig assembles the run configuration from flags, environment
// and config file.
func harvestConfig() types.HarvestConfig {
	dest := viper.GetString("dest")
	ua := viper.GetString("user-agent")
	if ua == "" && loadedSecrets != nil {
		ua = loadedSecrets.Get("user-agent")
	}

	cfg := types.HarvestConfig{
		DestDir:     dest,
		UseFallback: viper.GetBool("fallback"),
		Fetch: types.FetchConfig{
			HTTPConfig: types.HTTPConfig{
				Timeout:     viper.GetDuration("timeout"),
				HeadTimeout: viper.GetDuration("head-timeout"),
				UserAgent:   ua,
				MaxAttempts: viper.GetInt("retries"),
			},
			Preflight:     !viper.GetBool("no-preflight"),
			ThrottleDelay: viper.GetDuration("throttle"),
		},
		Browser: types.BrowserConfig{
			Headless:          viper.GetBool("headless"),
			ExecPath:          viper.GetString("chrome"),
			UserAgent:         ua,
			NavigationTimeout: viper.GetDuration("nav-timeout"),
		},
		ReportPath:  viper.GetString("report"),
		SummaryPath: viper.GetString("summary"),
		HistoryPath: viper.GetString("history"),
		MetricsPath: viper.GetString("metrics-file"),
	}
	if loadedSecrets != nil {
		cfg.Fetch.Cookies = loadedSecrets.Cookies()
	}

	if cfg.ReportPath == "" {
		cfg.ReportPath = filepath.Join(dest, "report.csv")
	}
	if cfg.SummaryPath == "" {
		cfg.SummaryPath = filepath.Join(dest, "summary.yaml")
	}
	if cfg.HistoryPath == "" && !viper.GetBool("no-history") {
		cfg.HistoryPath = report.DefaultHistoryPath(dest)
	}
	return cfg
}

// collectURLs returns the --input entries followed by the arguments, with
// bare DOIs and arXiv IDs resolved to URLs.
func collectURLs(args []string) ([]string, error) {
	var entries []string
	if input := viper.GetString("input"); input != "" {
		loaded, err := source.Load(input, viper.GetString("column"))
		if err != nil {
			return nil, err
		}
		entries = append(entries, loaded...)
	}
	entries = append(entries, args...)

	urls := make([]string, len(entries))
	for i, e := range entries {
		urls[i] = portal.Resolve(e)
	}
	return urls, nil
}

func runHarvest(cmd *cobra.Command, args []string) error {
	urls, err := collectURLs(args)
	if err != nil {
		return err
	}
	if len(urls) == 0 {
		return fmt.Errorf("provide URLs as arguments or with --input")
	}

	cfg := harvestConfig()
	log := newLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	session, err := httputil.NewSession(cfg.Fetch.HTTPConfig)
	if err != nil {
		return err
	}
	defer session.CloseIdle()

	direct := fetch.NewFetcher(session, cfg.Fetch, log)
	fallback := browser.NewFallback(browser.ChromeLauncher{}, cfg.Browser, log)
	orch := harvest.New(direct, fallback, harvest.Options{
		UseFallback: cfg.UseFallback,
		Progress:    printProgress(os.Stdout),
	}, log)

	sum, err := runBatch(ctx, orch, urls, cfg, log, os.Stdout)
	if err != nil {
		return err
	}
	if ctx.Err() != nil {
		return fmt.Errorf("interrupted after %d of %d URL(s)", sum.Total(), len(urls))
	}
	if sum.HasFailures() {
		return fmt.Errorf("%d of %d URL(s) failed", sum.Failed, sum.Total())
	}
	return nil
}

// runBatch drives the orchestrator and writes every report. A report sink
// that cannot be opened or written is logged and skipped, so the per-URL
// outcomes are still produced; an unwritable destination then shows up as
// one failure per URL.
func runBatch(ctx context.Context, orch *harvest.Orchestrator, urls []string, cfg types.HarvestConfig, log *logrus.Logger, w io.Writer) (types.RunSummary, error) {
	csvw, err := report.NewCSVWriter(cfg.ReportPath)
	if err != nil {
		log.WithError(err).Error("opening CSV report")
	} else {
		defer csvw.Close()
	}

	var store *report.Store
	if cfg.HistoryPath != "" {
		if store, err = report.OpenStore(cfg.HistoryPath); err != nil {
			log.WithError(err).Error("opening history")
		} else {
			defer store.Close()
		}
	}

	m := metrics.New()
	started := time.Now()

	var runID string
	if store != nil {
		if runID, err = store.BeginRun(ctx, cfg.DestDir, started); err != nil {
			return types.RunSummary{}, err
		}
	}

	fmt.Fprintf(w, "harvesting %d URL(s) into %s\n", len(urls), cfg.DestDir)

	last := time.Now()
	sum := harvest.Summarize(orch.Run(ctx, urls, cfg.DestDir), func(o types.Outcome) {
		m.Observe(o, time.Since(last))
		last = time.Now()

		printOutcome(w, o, len(urls))

		rec := o.Record()
		if csvw != nil {
			if err := csvw.Write(rec); err != nil {
				log.WithError(err).Error("writing CSV report")
			}
		}
		if store != nil {
			// The run context may be cancelled; the record is still saved.
			if err := store.Save(context.Background(), runID, o.Index, rec); err != nil {
				log.WithError(err).Error("writing history")
			}
		}
	})

	sum.RunID = runID
	sum.DestDir = cfg.DestDir
	sum.StartedAt = started
	sum.FinishedAt = time.Now()

	if store != nil {
		if err := store.FinishRun(context.Background(), sum); err != nil {
			log.WithError(err).Error("finishing history run")
		}
	}
	if err := report.WriteSummary(cfg.SummaryPath, sum); err != nil {
		log.WithError(err).Error("writing run summary")
	}
	if cfg.MetricsPath != "" {
		m.Finish(sum.FinishedAt)
		if err := m.WriteTextfile(cfg.MetricsPath); err != nil {
			log.WithError(err).Error("writing metrics")
		}
	}

	printSummary(w, sum, cfg.ReportPath)
	return sum, nil
}

// printProgress announces the browser fallback, which can take far longer
// than a direct fetch.
func printProgress(w io.Writer) func(types.Progress) {
	return func(p types.Progress) {
		if p.Stage == types.ProgressBrowser {
			fmt.Fprintf(w, "[%d/%d] browser %s (direct fetch failed)\n", p.Index+1, p.Total, p.URL)
		}
	}
}

func printOutcome(w io.Writer, o types.Outcome, total int) {
	if o.Result != nil {
		fmt.Fprintf(w, "[%d/%d] ok      %s -> %s (%s, %d bytes)\n",
			o.Index+1, total, o.URL, o.Result.FileName, o.Result.Method, o.Result.ByteCount)
		return
	}
	fmt.Fprintf(w, "[%d/%d] failed  %s (%s)\n", o.Index+1, total, o.URL, o.Failure.Error())
}

func printSummary(w io.Writer, sum types.RunSummary, reportPath string) {
	fmt.Fprintf(w, "\n%d URL(s): %d downloaded, %d failed\n", sum.Total(), sum.Succeeded, sum.Failed)

	methods := make([]string, 0, len(sum.ByMethod))
	for m := range sum.ByMethod {
		methods = append(methods, string(m))
	}
	sort.Strings(methods)
	for _, m := range methods {
		fmt.Fprintf(w, "  %-17s %d\n", m, sum.ByMethod[types.Method(m)])
	}
	fmt.Fprintf(w, "report: %s\n", reportPath)
}
