package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/sells-group/holdings-cli/internal/runner"
)

var f13LatestCmd = &cobra.Command{
	Use:   "latest",
	Short: "Ingest 13F-HR filings from the EDGAR latest-filings feed",
	Long: `Reads the EDGAR latest-filings Atom feed and ingests every 13F-HR filing it
lists that reports the target quarter. Useful for picking up filings between
full index crawls. Quarters with stored holdings are not skipped.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		quarter, _ := cmd.Flags().GetString("quarter")
		tickers, _ := cmd.Flags().GetString("tickers")

		r := newRunner(cfg)
		defer r.Close()

		run, err := r.RunSync(cmd.Context(), runner.Request{
			Quarter:     quarter,
			Latest:      true,
			TickersFile: tickers,
			Trigger:     runner.TriggerCLI,
		})
		if run != nil {
			printRunSummary(os.Stdout, run)
		}
		return err
	},
}

func init() {
	f13LatestCmd.Flags().String("quarter", "", "quarter end to accept as MM-DD-YYYY (default: most recent completed quarter)")
	f13LatestCmd.Flags().String("tickers", "", "CUSIP to ticker file (.csv or .xlsx), overrides f13.tickers_file")
	f13Cmd.AddCommand(f13LatestCmd)
}
