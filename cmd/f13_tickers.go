package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/holdings-cli/internal/f13"
)

var f13TickersCmd = &cobra.Command{
	Use:   "tickers",
	Short: "Manage the CUSIP to ticker reference table",
}

var f13TickersImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Load a CUSIP to ticker file into the database",
	Long: `Reads a .csv or .xlsx file with "Cusip" and "Ticker" columns and upserts it
into f13_data.cusip_tickers. Set f13.tickers_source=db to have sync read the
mapping from the table instead of the file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		path, _ := cmd.Flags().GetString("file")
		if path == "" {
			path = cfg.F13.TickersFile
		}

		tickers, err := f13.LoadTickerFile(ctx, path)
		if err != nil {
			return err
		}

		st, err := openStore(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		n, err := st.UpsertCUSIPTickers(ctx, tickers)
		if err != nil {
			return eris.Wrap(err, "f13 tickers import")
		}

		zap.L().Info("cusip tickers imported", zap.String("file", path), zap.Int64("rows", n))
		fmt.Printf("Imported %d CUSIP mappings from %s\n", n, path)
		return nil
	},
}

func init() {
	f13TickersImportCmd.Flags().String("file", "", "CUSIP to ticker file (default: f13.tickers_file)")
	f13TickersCmd.AddCommand(f13TickersImportCmd)
	f13Cmd.AddCommand(f13TickersCmd)
}
