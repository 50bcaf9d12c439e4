package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/holdings-cli/internal/store"
)

var f13HistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the 13F sync log",
	Long:  "Displays recent 13F runs from the sync log, newest first.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		limit, _ := cmd.Flags().GetInt("limit")

		st, err := openStore(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		sl, ok := st.(store.SyncLog)
		if !ok {
			return eris.Errorf("f13 history: store driver %s has no sync log", cfg.Store.Driver)
		}
		entries, err := sl.ListSyncs(ctx, limit)
		if err != nil {
			return eris.Wrap(err, "f13 history")
		}

		if len(entries) == 0 {
			zap.L().Info("no sync entries found, run 'f13 sync' to ingest a quarter")
			return nil
		}

		formatSyncEntries(os.Stdout, entries)
		return nil
	},
}

func init() {
	f13HistoryCmd.Flags().Int("limit", 20, "maximum runs to show")
	f13Cmd.AddCommand(f13HistoryCmd)
}

// formatSyncEntries writes a tabular representation of sync entries to out.
func formatSyncEntries(out io.Writer, entries []store.SyncEntry) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tQUARTER\tTRIGGER\tSTATUS\tSTARTED\tDURATION\tFILINGS\tHOLDINGS\tERROR")
	_, _ = fmt.Fprintln(w, "--\t-------\t-------\t------\t-------\t--------\t-------\t--------\t-----")

	for _, e := range entries {
		dur := "-"
		if e.CompletedAt != nil {
			dur = e.CompletedAt.Sub(e.StartedAt).Round(time.Second).String()
		}
		filings := "-"
		if e.Summary != nil && e.Status != "skipped" {
			filings = fmt.Sprintf("%d", e.Summary.Filings)
		}

		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			e.ID,
			e.Quarter,
			e.Trigger,
			e.Status,
			e.StartedAt.Format("2006-01-02 15:04"),
			dur,
			filings,
			e.Holdings,
			truncate(e.Error, 60),
		)
	}
	_ = w.Flush()
}
