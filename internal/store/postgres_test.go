package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/holdings-cli/internal/model"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func sampleHolding(ticker string, shares int64) model.InstitutionalHolding {
	return model.InstitutionalHolding{
		CompanyTicker: ticker,
		HolderName:    "Example Capital LLC",
		Shares:        shares,
		FilingDate:    time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC),
		Quarter:       "Q4-2024",
	}
}

func TestPostgresStore_FilingTx_Commit(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectCopyFrom(pgx.Identifier{"f13_data", "institutional_holdings"}, holdingColumns).WillReturnResult(2)
	mock.ExpectCommit()

	tx, err := s.BeginFiling(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Add(ctx, sampleHolding("AAPL", 150)))
	require.NoError(t, tx.Add(ctx, sampleHolding("MSFT", 75)))
	require.NoError(t, tx.Commit(ctx))

	// Rollback after a successful commit is a no-op.
	require.NoError(t, tx.Rollback(ctx))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FilingTx_CopyFailsThenRollback(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectCopyFrom(pgx.Identifier{"f13_data", "institutional_holdings"}, holdingColumns).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	tx, err := s.BeginFiling(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Add(ctx, sampleHolding("AAPL", 150)))

	err = tx.Commit(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stage holdings")

	require.NoError(t, tx.Rollback(ctx))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FilingTx_AddAfterFinish(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectRollback()

	tx, err := s.BeginFiling(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Rollback(ctx))

	assert.ErrorIs(t, tx.Add(ctx, sampleHolding("AAPL", 1)), ErrTxDone)
	assert.ErrorIs(t, tx.Commit(ctx), ErrTxDone)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_BeginFiling_Error(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin().WillReturnError(errors.New("connection refused"))

	_, err := s.BeginFiling(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "begin filing")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_QuarterCount(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT count\(\*\) FROM f13_data.institutional_holdings WHERE quarter = \$1`).
		WithArgs("Q4-2024").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(42)))

	n, err := s.QuarterCount(context.Background(), "Q4-2024")
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_QuarterCount_Error(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT count`).
		WithArgs("Q4-2024").
		WillReturnError(errors.New("timeout"))

	_, err := s.QuarterCount(context.Background(), "Q4-2024")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "count quarter Q4-2024")
}

func TestPostgresStore_ListHoldings_Filters(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	date := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`WHERE 1=1 AND quarter = \$1 AND company_ticker = \$2 AND holder_name ILIKE \$3 ORDER BY company_ticker, holder_name, id LIMIT \$4 OFFSET \$5`).
		WithArgs("Q4-2024", "AAPL", "%Vanguard%", 10, 20).
		WillReturnRows(pgxmock.NewRows([]string{"company_ticker", "holder_name", "shares", "filing_date", "quarter"}).
			AddRow("AAPL", "Vanguard Group Inc", int64(1000), date, "Q4-2024"))

	got, err := s.ListHoldings(context.Background(), model.HoldingFilter{
		Quarter: "Q4-2024",
		Ticker:  "AAPL",
		Holder:  "Vanguard",
		Limit:   10,
		Offset:  20,
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Vanguard Group Inc", got[0].HolderName)
	assert.Equal(t, int64(1000), got[0].Shares)
	assert.Equal(t, date, got[0].FilingDate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListHoldings_DefaultLimit(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`ORDER BY company_ticker, holder_name, id LIMIT \$1$`).
		WithArgs(defaultListLimit).
		WillReturnRows(pgxmock.NewRows([]string{"company_ticker", "holder_name", "shares", "filing_date", "quarter"}))

	got, err := s.ListHoldings(context.Background(), model.HoldingFilter{})
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_LoadCUSIPTickers(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT cusip, ticker FROM f13_data.cusip_tickers`).
		WillReturnRows(pgxmock.NewRows([]string{"cusip", "ticker"}).
			AddRow("037833100", "AAPL").
			AddRow("594918104", "MSFT"))

	got, err := s.LoadCUSIPTickers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"037833100": "AAPL", "594918104": "MSFT"}, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertCUSIPTickers(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("CREATE TEMP TABLE").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_f13_data_cusip_tickers"}, []string{"cusip", "ticker"}).WillReturnResult(2)
	mock.ExpectExec("INSERT INTO").WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	n, err := s.UpsertCUSIPTickers(context.Background(), map[string]string{
		"594918104": "MSFT",
		"037833100": "AAPL",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTickerRows_SortedByCUSIP(t *testing.T) {
	rows := tickerRows(map[string]string{"b": "B", "a": "A", "c": "C"})
	assert.Equal(t, [][]any{{"a", "A"}, {"b", "B"}, {"c", "C"}}, rows)
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, defaultListLimit, clampLimit(0))
	assert.Equal(t, defaultListLimit, clampLimit(-5))
	assert.Equal(t, 50, clampLimit(50))
	assert.Equal(t, maxListLimit, clampLimit(maxListLimit+1))
}
