package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/holdings-cli/internal/model"
)

// sqliteDateLayout is how filing dates are stored in TEXT columns.
const sqliteDateLayout = "2006-01-02"

// SQLiteStore implements HoldingStore using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS institutional_holdings (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	company_ticker TEXT    NOT NULL,
	holder_name    TEXT    NOT NULL,
	shares         INTEGER NOT NULL,
	filing_date    TEXT    NOT NULL,
	quarter        TEXT    NOT NULL,
	created_at     DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS cusip_tickers (
	cusip      TEXT PRIMARY KEY,
	ticker     TEXT NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_holdings_quarter ON institutional_holdings(quarter);
CREATE INDEX IF NOT EXISTS idx_holdings_ticker ON institutional_holdings(company_ticker, quarter);
CREATE INDEX IF NOT EXISTS idx_holdings_holder ON institutional_holdings(holder_name);

CREATE TABLE IF NOT EXISTS sync_log (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	quarter      TEXT    NOT NULL,
	trigger      TEXT    NOT NULL,
	status       TEXT    NOT NULL,
	started_at   TEXT    NOT NULL,
	completed_at TEXT,
	holdings     INTEGER NOT NULL DEFAULT 0,
	error        TEXT,
	metadata     TEXT
);
`

// Migrate creates the tables if they do not exist.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// BeginFiling opens a transaction for one filing's holdings.
func (s *SQLiteStore) BeginFiling(ctx context.Context) (FilingTx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin filing")
	}
	return &sqliteFilingTx{tx: tx}, nil
}

type sqliteFilingTx struct {
	tx   *sql.Tx
	done bool
}

func (t *sqliteFilingTx) Add(ctx context.Context, h model.InstitutionalHolding) error {
	if t.done {
		return ErrTxDone
	}
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO institutional_holdings (company_ticker, holder_name, shares, filing_date, quarter) VALUES (?, ?, ?, ?, ?)`,
		h.CompanyTicker, h.HolderName, h.Shares, h.FilingDate.Format(sqliteDateLayout), h.Quarter,
	)
	return eris.Wrapf(err, "sqlite: add holding %s", h.CompanyTicker)
}

func (t *sqliteFilingTx) Commit(_ context.Context) error {
	if t.done {
		return ErrTxDone
	}
	t.done = true
	return eris.Wrap(t.tx.Commit(), "sqlite: commit filing")
}

func (t *sqliteFilingTx) Rollback(_ context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return eris.Wrap(err, "sqlite: rollback filing")
	}
	return nil
}

// QuarterCount returns the number of holdings stored for a quarter label.
func (s *SQLiteStore) QuarterCount(ctx context.Context, quarter string) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM institutional_holdings WHERE quarter = ?`, quarter,
	).Scan(&n)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: count quarter %s", quarter)
	}
	return n, nil
}

// ListHoldings returns holdings matching the filter, ordered by ticker then holder.
func (s *SQLiteStore) ListHoldings(ctx context.Context, filter model.HoldingFilter) ([]model.InstitutionalHolding, error) {
	query := `SELECT company_ticker, holder_name, shares, filing_date, quarter FROM institutional_holdings WHERE 1=1`
	var args []any

	if filter.Quarter != "" {
		query += " AND quarter = ?"
		args = append(args, filter.Quarter)
	}
	if filter.Ticker != "" {
		query += " AND company_ticker = ?"
		args = append(args, filter.Ticker)
	}
	if filter.Holder != "" {
		query += " AND holder_name LIKE ?"
		args = append(args, "%"+filter.Holder+"%")
	}

	query += " ORDER BY company_ticker, holder_name, id LIMIT ? OFFSET ?"
	args = append(args, clampLimit(filter.Limit), max(filter.Offset, 0))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list holdings")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.InstitutionalHolding
	for rows.Next() {
		var (
			h    model.InstitutionalHolding
			date string
		)
		if err := rows.Scan(&h.CompanyTicker, &h.HolderName, &h.Shares, &date, &h.Quarter); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan holding")
		}
		h.FilingDate, err = time.Parse(sqliteDateLayout, date)
		if err != nil {
			return nil, eris.Wrapf(err, "sqlite: parse filing date %q", date)
		}
		out = append(out, h)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate holdings")
}

// LoadCUSIPTickers reads the full CUSIP reference table.
func (s *SQLiteStore) LoadCUSIPTickers(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT cusip, ticker FROM cusip_tickers`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: load cusip tickers")
	}
	defer rows.Close() //nolint:errcheck

	out := make(map[string]string)
	for rows.Next() {
		var cusip, ticker string
		if err := rows.Scan(&cusip, &ticker); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan cusip ticker")
		}
		out[cusip] = ticker
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate cusip tickers")
	}
	return out, nil
}

// UpsertCUSIPTickers inserts or replaces reference rows in one transaction.
func (s *SQLiteStore) UpsertCUSIPTickers(ctx context.Context, tickers map[string]string) (int64, error) {
	if len(tickers) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin ticker upsert")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO cusip_tickers (cusip, ticker, updated_at) VALUES (?, ?, datetime('now'))
		ON CONFLICT(cusip) DO UPDATE SET ticker = excluded.ticker, updated_at = excluded.updated_at`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare ticker upsert")
	}
	defer stmt.Close() //nolint:errcheck

	var n int64
	for _, row := range tickerRows(tickers) {
		res, err := stmt.ExecContext(ctx, row...)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: upsert cusip %v", row[0])
		}
		affected, _ := res.RowsAffected()
		n += affected
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit ticker upsert")
	}
	return n, nil
}

// sqliteTimeLayout is how sync log timestamps are stored in TEXT columns.
// Fixed width UTC so that text order is time order.
const sqliteTimeLayout = "2006-01-02 15:04:05.000000000"

// StartSync records the beginning of a run and returns its ID.
func (s *SQLiteStore) StartSync(ctx context.Context, quarter, trigger string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO sync_log (quarter, trigger, status, started_at) VALUES (?, ?, 'running', ?)`,
		quarter, trigger, time.Now().UTC().Format(sqliteTimeLayout),
	)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: start sync for %s", quarter)
	}
	id, err := res.LastInsertId()
	return id, eris.Wrap(err, "sqlite: sync id")
}

// CompleteSync marks a run finished with the given terminal status.
func (s *SQLiteStore) CompleteSync(ctx context.Context, id int64, status model.RunStatus, summary *model.RunSummary) error {
	meta, holdings, err := summaryJSON(summary)
	if err != nil {
		return err
	}
	var metaText *string
	if meta != nil {
		m := string(meta)
		metaText = &m
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE sync_log SET status = ?, completed_at = ?, holdings = ?, metadata = ? WHERE id = ?`,
		string(status), time.Now().UTC().Format(sqliteTimeLayout), holdings, metaText, id,
	)
	return eris.Wrapf(err, "sqlite: complete sync %d", id)
}

// FailSync marks a run as failed with an error message.
func (s *SQLiteStore) FailSync(ctx context.Context, id int64, errMsg string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sync_log SET status = 'failed', completed_at = ?, error = ? WHERE id = ?`,
		time.Now().UTC().Format(sqliteTimeLayout), errMsg, id,
	)
	return eris.Wrapf(err, "sqlite: fail sync %d", id)
}

// ListSyncs returns the most recent runs first.
func (s *SQLiteStore) ListSyncs(ctx context.Context, limit int) ([]SyncEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, quarter, trigger, status, started_at, completed_at, holdings, error, metadata
		 FROM sync_log ORDER BY started_at DESC, id DESC LIMIT ?`,
		clampLimit(limit),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list syncs")
	}
	defer rows.Close() //nolint:errcheck

	var entries []SyncEntry
	for rows.Next() {
		var (
			e                       SyncEntry
			started                 string
			completed, errStr, meta sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.Quarter, &e.Trigger, &e.Status, &started, &completed, &e.Holdings, &errStr, &meta); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan sync entry")
		}
		if e.StartedAt, err = time.Parse(sqliteTimeLayout, started); err != nil {
			return nil, eris.Wrapf(err, "sqlite: parse started_at %q", started)
		}
		if completed.Valid {
			t, err := time.Parse(sqliteTimeLayout, completed.String)
			if err != nil {
				return nil, eris.Wrapf(err, "sqlite: parse completed_at %q", completed.String)
			}
			e.CompletedAt = &t
		}
		e.Error = errStr.String
		if meta.Valid {
			decodeSummary(&e, []byte(meta.String))
		}
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "sqlite: iterate sync entries")
}
