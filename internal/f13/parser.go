package f13

import (
	"bytes"
	"io"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/holdings-cli/internal/fetcher"
)

// UnknownManager is recorded when a filing carries no filing manager name.
const UnknownManager = "Unknown Manager"

// ErrNoInformationTable is returned when a filing has no second <xml>
// block holding the information table.
var ErrNoInformationTable = eris.New("f13: filing has no information table")

// Filing is a parsed 13F-HR submission. The first <xml> block is the cover
// document (period of report and manager); the second is the information
// table. Accessors are lazy so rejected filings cost only one lookup.
type Filing struct {
	blocks *goquery.Selection
}

// ParseFiling parses a full-text 13F-HR submission.
func ParseFiling(r io.Reader) (*Filing, error) {
	data, err := fetcher.ReadAllUTF8(r)
	if err != nil {
		return nil, eris.Wrap(err, "f13: read filing")
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, eris.Wrap(err, "f13: parse filing markup")
	}
	return &Filing{blocks: doc.Find("xml")}, nil
}

// Period returns the periodOfReport from the cover document, or "" when absent.
func (f *Filing) Period() string {
	return strings.TrimSpace(f.blocks.Eq(0).Find("filerinfo periodofreport").First().Text())
}

// Manager returns the filing manager name from the cover document.
func (f *Filing) Manager() string {
	cover := f.blocks.Eq(0)
	name := cover.Find("formdata coverpage filingmanager name").First()
	if name.Length() == 0 {
		name = cover.Find("formdata filingmanager name").First()
	}
	if s := strings.TrimSpace(name.Text()); s != "" {
		return s
	}
	return UnknownManager
}

// Positions sums share counts per CUSIP across the information table.
// Principal-amount rows and option rows (any put/call marker) are excluded.
// Rows whose CUSIP or share count cannot be read are skipped.
func (f *Filing) Positions() (map[string]int64, error) {
	if f.blocks.Length() < 2 {
		return nil, ErrNoInformationTable
	}
	table := f.blocks.Eq(1)

	totals := make(map[string]int64)
	probeAll(table, rowNames...).Each(func(i int, row *goquery.Selection) {
		cusip, ok := probeText(row, cusipNames...)
		if !ok || cusip == "" {
			zap.L().Debug("f13: holding row without cusip", zap.Int("row", i))
			return
		}
		amountType, _ := probeText(row, amountTypeName...)
		if amountType != "SH" {
			return
		}
		if probeAll(row, putCallNames...).Length() > 0 {
			return
		}
		raw, _ := probeText(row, amountNames...)
		shares, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			zap.L().Debug("f13: unreadable share count",
				zap.String("cusip", cusip),
				zap.String("value", raw),
			)
			return
		}
		totals[NormalizeCUSIP(cusip)] += shares
	})
	return totals, nil
}
