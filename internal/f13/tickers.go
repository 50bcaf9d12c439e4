package f13

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/holdings-cli/internal/fetcher"
)

// Header names required in a CUSIP reference file.
const (
	CUSIPColumn  = "Cusip"
	TickerColumn = "Ticker"
)

// LoadTickerFile reads a CSV or XLSX file with Cusip and Ticker columns into
// a CUSIP to ticker mapping. Rows with an empty CUSIP or ticker are ignored;
// later rows win on duplicate CUSIPs.
func LoadTickerFile(ctx context.Context, path string) (map[string]string, error) {
	header, rows, err := fetcher.ReadTable(ctx, path)
	if err != nil {
		return nil, eris.Wrapf(err, "f13: load tickers from %s", path)
	}

	cusipIdx, tickerIdx := -1, -1
	for i, h := range header {
		switch h {
		case CUSIPColumn:
			cusipIdx = i
		case TickerColumn:
			tickerIdx = i
		}
	}
	if cusipIdx < 0 || tickerIdx < 0 {
		return nil, eris.Errorf("f13: %s must have %q and %q columns, got %v", path, CUSIPColumn, TickerColumn, header)
	}

	out := make(map[string]string, len(rows))
	var skipped int
	for _, row := range rows {
		if cusipIdx >= len(row) || tickerIdx >= len(row) {
			skipped++
			continue
		}
		cusip := NormalizeCUSIP(row[cusipIdx])
		ticker := strings.TrimSpace(row[tickerIdx])
		if cusip == "" || ticker == "" {
			skipped++
			continue
		}
		out[cusip] = ticker
	}
	if len(out) == 0 {
		return nil, eris.Errorf("f13: %s has no usable CUSIP rows", path)
	}

	zap.L().Info("loaded cusip mappings",
		zap.String("file", path),
		zap.Int("mappings", len(out)),
		zap.Int("skipped", skipped),
	)
	return out, nil
}

// NormalizeCUSIP trims and upper-cases a CUSIP so file and filing values compare equal.
func NormalizeCUSIP(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
