package fetcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// ReadTable reads a local CSV or XLSX file, chosen by extension, and returns
// its header row and data rows with surrounding whitespace trimmed.
func ReadTable(ctx context.Context, path string) ([]string, [][]string, error) {
	var rows [][]string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		var err error
		rows, err = ReadXLSX(path, XLSXOptions{TrimSpace: true})
		if err != nil {
			return nil, nil, err
		}
	case ".csv", ".txt", "":
		file, err := os.Open(path)
		if err != nil {
			return nil, nil, eris.Wrapf(err, "table: open %s", path)
		}
		defer file.Close() //nolint:errcheck
		rows, err = ReadCSV(ctx, file, CSVOptions{TrimSpace: true, LazyQuotes: true})
		if err != nil {
			return nil, nil, eris.Wrapf(err, "table: read %s", path)
		}
	default:
		return nil, nil, eris.Errorf("table: unsupported file type %q", filepath.Ext(path))
	}

	if len(rows) == 0 {
		return nil, nil, eris.Errorf("table: %s is empty", path)
	}
	return rows[0], rows[1:], nil
}
