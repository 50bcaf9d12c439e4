// Package store persists 13F institutional holdings and the CUSIP reference table.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/holdings-cli/internal/model"
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

// ErrTxDone is returned when a FilingTx is used after Commit or Rollback.
var ErrTxDone = eris.New("store: filing transaction already finished")

// HoldingStore defines the persistence interface for the 13F pipeline.
type HoldingStore interface {
	// Holdings
	BeginFiling(ctx context.Context) (FilingTx, error)
	QuarterCount(ctx context.Context, quarter string) (int64, error)
	ListHoldings(ctx context.Context, filter model.HoldingFilter) ([]model.InstitutionalHolding, error)

	// CUSIP reference table
	LoadCUSIPTickers(ctx context.Context) (map[string]string, error)
	UpsertCUSIPTickers(ctx context.Context, tickers map[string]string) (int64, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// FilingTx stages the holdings of a single filing. Nothing is visible to
// readers until Commit returns nil. Rollback after Commit is a no-op.
type FilingTx interface {
	Add(ctx context.Context, h model.InstitutionalHolding) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// clampLimit applies the list default and ceiling.
func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultListLimit
	case limit > maxListLimit:
		return maxListLimit
	default:
		return limit
	}
}
