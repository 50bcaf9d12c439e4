package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/holdings-cli/internal/model"
	"github.com/sells-group/holdings-cli/internal/runner"
)

var f13SyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Ingest 13F filings for a quarter",
	Long: `Crawl the EDGAR daily-index directory that follows the target quarter and
store the holdings of every 13F-HR filing reporting that quarter.

By default the most recently completed quarter is ingested, and a quarter
that already has stored holdings is skipped. Use --force to crawl anyway.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		log := zap.L().With(zap.String("command", "f13.sync"))

		req := parseSyncRequest(cmd)

		r := newRunner(cfg)
		defer r.Close()

		log.Info("starting 13F sync",
			zap.String("quarter", req.Quarter),
			zap.String("index_url", req.IndexURL),
			zap.Bool("force", req.Force),
		)

		run, err := r.RunSync(ctx, req)
		if run != nil {
			printRunSummary(os.Stdout, run)
		}
		return err
	},
}

func init() {
	f13SyncCmd.Flags().String("quarter", "", "quarter end to ingest as MM-DD-YYYY (default: most recent completed quarter)")
	f13SyncCmd.Flags().String("index-url", "", "override the daily-index directory URL")
	f13SyncCmd.Flags().Bool("force", false, "ingest even if the quarter already has holdings")
	f13SyncCmd.Flags().String("tickers", "", "CUSIP to ticker file (.csv or .xlsx), overrides f13.tickers_file")
	f13Cmd.AddCommand(f13SyncCmd)
}

// parseSyncRequest extracts a runner.Request from the cobra command flags.
func parseSyncRequest(cmd *cobra.Command) runner.Request {
	quarter, _ := cmd.Flags().GetString("quarter")
	indexURL, _ := cmd.Flags().GetString("index-url")
	force, _ := cmd.Flags().GetBool("force")
	tickers, _ := cmd.Flags().GetString("tickers")

	return runner.Request{
		Quarter:     quarter,
		IndexURL:    indexURL,
		Force:       force,
		TickersFile: tickers,
		Trigger:     runner.TriggerCLI,
	}
}

func printRunSummary(out io.Writer, run *model.Run) {
	_, _ = fmt.Fprintf(out, "Run %s: %s (quarter %s)\n", run.ID, run.Status, run.Quarter)
	if run.Error != "" {
		_, _ = fmt.Fprintf(out, "  error: %s\n", run.Error)
	}
	s := run.Summary
	if s == nil {
		return
	}
	if run.Status == model.RunStatusSkipped {
		_, _ = fmt.Fprintf(out, "  %s already has %d holdings; use --force to re-ingest\n", s.Quarter, s.Holdings)
		return
	}
	_, _ = fmt.Fprintf(out, "  daily indexes: %d (%d failed)\n", s.DailyIndexes, s.DailyIndexErrors)
	_, _ = fmt.Fprintf(out, "  filings:       %d processed, %d skipped, %d failed\n", s.Processed, s.Skipped, s.Failed)
	_, _ = fmt.Fprintf(out, "  holdings:      %d\n", s.Holdings)
	_, _ = fmt.Fprintf(out, "  elapsed:       %s\n", s.Elapsed.Round(time.Second))
}
