package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/holdings-cli/internal/config"
	"github.com/sells-group/holdings-cli/internal/model"
	"github.com/sells-group/holdings-cli/internal/runner"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func TestOpenStore_SQLite(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "holdings.db")
	st, err := openStore(context.Background(), config.StoreConfig{Driver: "sqlite", DatabaseURL: dsn})
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck

	n, err := st.QuarterCount(context.Background(), "Q4-2024")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestOpenStore_Errors(t *testing.T) {
	_, err := openStore(context.Background(), config.StoreConfig{Driver: "mysql"})
	assert.ErrorContains(t, err, "unsupported store driver")

	_, err = openStore(context.Background(), config.StoreConfig{Driver: "postgres"})
	assert.ErrorContains(t, err, "no database_url configured")
}

func TestNewFetcher(t *testing.T) {
	f := newFetcher(config.F13Config{
		UserAgent:      "Test Co test@example.com",
		TimeoutSecs:    5,
		MaxRetries:     2,
		RetryBackoffMs: 10,
		RateLimit:      5,
	})
	assert.NotNil(t, f)
}

func TestParseSyncRequest(t *testing.T) {
	flags := f13SyncCmd.Flags()
	require.NoError(t, flags.Set("quarter", "09-30-2024"))
	require.NoError(t, flags.Set("force", "true"))
	require.NoError(t, flags.Set("tickers", "map.xlsx"))
	t.Cleanup(func() {
		_ = flags.Set("quarter", "")
		_ = flags.Set("force", "false")
		_ = flags.Set("tickers", "")
	})

	req := parseSyncRequest(f13SyncCmd)
	assert.Equal(t, runner.Request{
		Quarter:     "09-30-2024",
		Force:       true,
		TickersFile: "map.xlsx",
		Trigger:     runner.TriggerCLI,
	}, req)
}

func TestPrintRunSummary(t *testing.T) {
	var buf bytes.Buffer
	printRunSummary(&buf, &model.Run{
		ID:      "r1",
		Quarter: "12-31-2024",
		Status:  model.RunStatusComplete,
		Summary: &model.RunSummary{
			Quarter:      "Q4-2024",
			DailyIndexes: 3,
			Processed:    10,
			Skipped:      2,
			Failed:       1,
			Holdings:     420,
			Elapsed:      90 * time.Second,
		},
	})
	out := buf.String()
	assert.Contains(t, out, "Run r1: complete (quarter 12-31-2024)")
	assert.Contains(t, out, "10 processed, 2 skipped, 1 failed")
	assert.Contains(t, out, "holdings:      420")
	assert.Contains(t, out, "1m30s")
}

func TestPrintRunSummary_Skipped(t *testing.T) {
	var buf bytes.Buffer
	printRunSummary(&buf, &model.Run{
		ID:      "r2",
		Status:  model.RunStatusSkipped,
		Summary: &model.RunSummary{Quarter: "Q4-2024", Holdings: 77},
	})
	assert.Contains(t, buf.String(), "Q4-2024 already has 77 holdings")
}

func TestPrintRunSummary_Failed(t *testing.T) {
	var buf bytes.Buffer
	printRunSummary(&buf, &model.Run{ID: "r3", Status: model.RunStatusFailed, Error: "runner: open store"})
	assert.Contains(t, buf.String(), "error: runner: open store")
}
