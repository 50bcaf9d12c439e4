package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/holdings-cli/internal/f13"
	"github.com/sells-group/holdings-cli/internal/model"
)

var f13StatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show stored holdings for a quarter",
	Long:  "Prints the number of stored holdings for a quarter followed by a page of holdings, optionally filtered by ticker or holder.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		quarter, _ := cmd.Flags().GetString("quarter")
		if quarter == "" {
			quarter = f13.CurrentQuarter(time.Now())
		}
		label, err := f13.QuarterLabel(quarter)
		if err != nil {
			return err
		}
		ticker, _ := cmd.Flags().GetString("ticker")
		holder, _ := cmd.Flags().GetString("holder")
		limit, _ := cmd.Flags().GetInt("limit")
		format, _ := cmd.Flags().GetString("format")

		st, err := openStore(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		count, err := st.QuarterCount(ctx, label)
		if err != nil {
			return eris.Wrap(err, "f13 status")
		}
		holdings, err := st.ListHoldings(ctx, model.HoldingFilter{
			Quarter: label,
			Ticker:  ticker,
			Holder:  holder,
			Limit:   limit,
		})
		if err != nil {
			return eris.Wrap(err, "f13 status")
		}

		switch format {
		case "yaml":
			return writeStatusYAML(os.Stdout, label, count, holdings)
		case "table":
			formatHoldings(os.Stdout, label, count, holdings)
			return nil
		default:
			return eris.Errorf("f13 status: unknown format %q (valid: table, yaml)", format)
		}
	},
}

func init() {
	f13StatusCmd.Flags().String("quarter", "", "quarter end as MM-DD-YYYY (default: most recent completed quarter)")
	f13StatusCmd.Flags().String("ticker", "", "only show this ticker")
	f13StatusCmd.Flags().String("holder", "", "only show holders whose name contains this text")
	f13StatusCmd.Flags().Int("limit", 25, "maximum holdings to list")
	f13StatusCmd.Flags().String("format", "table", "output format: table or yaml")
	f13Cmd.AddCommand(f13StatusCmd)
}

// formatHoldings writes a tabular representation of holdings to out.
func formatHoldings(out io.Writer, quarter string, count int64, holdings []model.InstitutionalHolding) {
	_, _ = fmt.Fprintf(out, "%s: %d holdings stored\n\n", quarter, count)
	if len(holdings) == 0 {
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "TICKER\tHOLDER\tSHARES\tFILING DATE")
	_, _ = fmt.Fprintln(w, "------\t------\t------\t-----------")
	for _, h := range holdings {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%s\n",
			h.CompanyTicker,
			truncate(h.HolderName, 50),
			h.Shares,
			h.FilingDate.Format("2006-01-02"),
		)
	}
	_ = w.Flush()
}

type statusDoc struct {
	Quarter  string          `yaml:"quarter"`
	Count    int64           `yaml:"count"`
	Holdings []statusHolding `yaml:"holdings"`
}

type statusHolding struct {
	Ticker     string `yaml:"ticker"`
	Holder     string `yaml:"holder"`
	Shares     int64  `yaml:"shares"`
	FilingDate string `yaml:"filing_date"`
}

func writeStatusYAML(out io.Writer, quarter string, count int64, holdings []model.InstitutionalHolding) error {
	doc := statusDoc{Quarter: quarter, Count: count, Holdings: make([]statusHolding, 0, len(holdings))}
	for _, h := range holdings {
		doc.Holdings = append(doc.Holdings, statusHolding{
			Ticker:     h.CompanyTicker,
			Holder:     h.HolderName,
			Shares:     h.Shares,
			FilingDate: h.FilingDate.Format("2006-01-02"),
		})
	}
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return eris.Wrap(err, "f13 status: encode yaml")
	}
	return eris.Wrap(enc.Close(), "f13 status: encode yaml")
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
