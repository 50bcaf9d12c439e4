package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/holdings-cli/internal/db"
	"github.com/sells-group/holdings-cli/internal/model"
)

const (
	holdingsTable = "f13_data.institutional_holdings"
	tickersTable  = "f13_data.cusip_tickers"
)

var holdingColumns = []string{"company_ticker", "holder_name", "shares", "filing_date", "quarter"}

// PostgresStore implements HoldingStore using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// The pipeline is sequential, so a small pool is plenty.
	maxConns := int32(4)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

// Migrate applies the embedded f13_data migrations.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	return migratePostgres(ctx, s.pool)
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// BeginFiling opens a transaction for one filing's holdings.
func (s *PostgresStore) BeginFiling(ctx context.Context) (FilingTx, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: begin filing")
	}
	return &pgFilingTx{tx: tx}, nil
}

// pgFilingTx buffers holdings and COPYs them inside the transaction on Commit.
type pgFilingTx struct {
	tx   pgx.Tx
	rows [][]any
	done bool
}

func (t *pgFilingTx) Add(_ context.Context, h model.InstitutionalHolding) error {
	if t.done {
		return ErrTxDone
	}
	t.rows = append(t.rows, []any{h.CompanyTicker, h.HolderName, h.Shares, h.FilingDate, h.Quarter})
	return nil
}

func (t *pgFilingTx) Commit(ctx context.Context) error {
	if t.done {
		return ErrTxDone
	}
	if _, err := db.CopyFrom(ctx, t.tx, holdingsTable, holdingColumns, t.rows); err != nil {
		return eris.Wrap(err, "postgres: stage holdings")
	}
	// pgx closes the transaction whether or not Commit succeeds.
	t.done = true
	if err := t.tx.Commit(ctx); err != nil {
		return eris.Wrap(err, "postgres: commit filing")
	}
	return nil
}

func (t *pgFilingTx) Rollback(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	if err := t.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return eris.Wrap(err, "postgres: rollback filing")
	}
	return nil
}

// QuarterCount returns the number of holdings stored for a quarter label.
func (s *PostgresStore) QuarterCount(ctx context.Context, quarter string) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM f13_data.institutional_holdings WHERE quarter = $1`, quarter,
	).Scan(&n)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: count quarter %s", quarter)
	}
	return n, nil
}

// ListHoldings returns holdings matching the filter, ordered by ticker then holder.
func (s *PostgresStore) ListHoldings(ctx context.Context, filter model.HoldingFilter) ([]model.InstitutionalHolding, error) {
	query := `SELECT company_ticker, holder_name, shares, filing_date, quarter FROM f13_data.institutional_holdings WHERE 1=1`
	var args []any

	if filter.Quarter != "" {
		args = append(args, filter.Quarter)
		query += fmt.Sprintf(" AND quarter = $%d", len(args))
	}
	if filter.Ticker != "" {
		args = append(args, filter.Ticker)
		query += fmt.Sprintf(" AND company_ticker = $%d", len(args))
	}
	if filter.Holder != "" {
		args = append(args, "%"+filter.Holder+"%")
		query += fmt.Sprintf(" AND holder_name ILIKE $%d", len(args))
	}

	query += " ORDER BY company_ticker, holder_name, id"
	args = append(args, clampLimit(filter.Limit))
	query += fmt.Sprintf(" LIMIT $%d", len(args))
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list holdings")
	}
	defer rows.Close()

	var out []model.InstitutionalHolding
	for rows.Next() {
		var h model.InstitutionalHolding
		if err := rows.Scan(&h.CompanyTicker, &h.HolderName, &h.Shares, &h.FilingDate, &h.Quarter); err != nil {
			return nil, eris.Wrap(err, "postgres: scan holding")
		}
		out = append(out, h)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate holdings")
}

// LoadCUSIPTickers reads the full CUSIP reference table.
func (s *PostgresStore) LoadCUSIPTickers(ctx context.Context) (map[string]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT cusip, ticker FROM f13_data.cusip_tickers`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: load cusip tickers")
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var cusip, ticker string
		if err := rows.Scan(&cusip, &ticker); err != nil {
			return nil, eris.Wrap(err, "postgres: scan cusip ticker")
		}
		out[cusip] = ticker
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate cusip tickers")
	}
	return out, nil
}

// UpsertCUSIPTickers bulk-upserts the reference table keyed on CUSIP.
func (s *PostgresStore) UpsertCUSIPTickers(ctx context.Context, tickers map[string]string) (int64, error) {
	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        tickersTable,
		Columns:      []string{"cusip", "ticker"},
		ConflictKeys: []string{"cusip"},
	}, tickerRows(tickers))
	if err != nil {
		return 0, eris.Wrap(err, "postgres: upsert cusip tickers")
	}
	return n, nil
}

// tickerRows flattens the mapping into COPY rows sorted by CUSIP.
func tickerRows(tickers map[string]string) [][]any {
	cusips := make([]string, 0, len(tickers))
	for c := range tickers {
		cusips = append(cusips, c)
	}
	sort.Strings(cusips)

	rows := make([][]any, 0, len(cusips))
	for _, c := range cusips {
		rows = append(rows, []any{c, tickers[c]})
	}
	return rows
}
