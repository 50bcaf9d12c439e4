package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/holdings-cli/internal/config"
	"github.com/sells-group/holdings-cli/internal/fetcher"
	"github.com/sells-group/holdings-cli/internal/runner"
	"github.com/sells-group/holdings-cli/internal/store"
)

var f13Cmd = &cobra.Command{
	Use:   "f13",
	Short: "SEC 13F holdings pipeline",
	Long:  "Ingests 13F-HR information tables from EDGAR into f13_data.institutional_holdings, one quarter at a time.",
}

func init() {
	rootCmd.AddCommand(f13Cmd)
}

// openStore opens the configured holdings store and applies migrations.
func openStore(ctx context.Context, sc config.StoreConfig) (store.HoldingStore, error) {
	var (
		st  store.HoldingStore
		err error
	)
	switch sc.Driver {
	case "sqlite":
		dsn := sc.DatabaseURL
		if dsn == "" {
			dsn = "holdings.db"
		}
		st, err = store.NewSQLite(dsn)
	case "postgres":
		if sc.DatabaseURL == "" {
			return nil, eris.New("f13: no database_url configured (set store.database_url or HOLDINGS_STORE_DATABASE_URL)")
		}
		st, err = store.NewPostgres(ctx, sc.DatabaseURL, &store.PoolConfig{
			MaxConns: sc.MaxConns,
			MinConns: sc.MinConns,
		})
	default:
		return nil, eris.Errorf("f13: unsupported store driver: %s", sc.Driver)
	}
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "f13: migrate")
	}
	return st, nil
}

// newFetcher builds the EDGAR HTTP client from configuration.
func newFetcher(fc config.F13Config) *fetcher.HTTPFetcher {
	return fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:        fc.UserAgent,
		Timeout:          time.Duration(fc.TimeoutSecs) * time.Second,
		MaxRetries:       fc.MaxRetries,
		RetryBackoff:     time.Duration(fc.RetryBackoffMs) * time.Millisecond,
		PostSuccessDelay: time.Duration(fc.PostSuccessDelayMs) * time.Millisecond,
		RateLimiters:     fetcher.SECRateLimiters(fc.RateLimit),
	})
}

// newRunner wires a runner that opens a fresh store session per run.
func newRunner(c *config.Config) *runner.Runner {
	return runner.New(c.F13, newFetcher(c.F13), func(ctx context.Context) (store.HoldingStore, error) {
		return openStore(ctx, c.Store)
	})
}
