package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/holdings-cli/internal/model"
)

// SyncEntry represents a row in the sync log.
type SyncEntry struct {
	ID          int64             `json:"id" yaml:"id"`
	Quarter     string            `json:"quarter" yaml:"quarter"`
	Trigger     string            `json:"trigger" yaml:"trigger"`
	Status      string            `json:"status" yaml:"status"`
	StartedAt   time.Time         `json:"started_at" yaml:"started_at"`
	CompletedAt *time.Time        `json:"completed_at,omitempty" yaml:"completed_at,omitempty"`
	Holdings    int64             `json:"holdings" yaml:"holdings"`
	Error       string            `json:"error,omitempty" yaml:"error,omitempty"`
	Summary     *model.RunSummary `json:"summary,omitempty" yaml:"-"`
}

// SyncLog records pipeline runs. Stores that persist run history implement
// it alongside HoldingStore.
type SyncLog interface {
	StartSync(ctx context.Context, quarter, trigger string) (int64, error)
	CompleteSync(ctx context.Context, id int64, status model.RunStatus, summary *model.RunSummary) error
	FailSync(ctx context.Context, id int64, errMsg string) error
	ListSyncs(ctx context.Context, limit int) ([]SyncEntry, error)
}

var (
	_ SyncLog = (*PostgresStore)(nil)
	_ SyncLog = (*SQLiteStore)(nil)
)

func summaryJSON(summary *model.RunSummary) ([]byte, int64, error) {
	if summary == nil {
		return nil, 0, nil
	}
	data, err := json.Marshal(summary)
	if err != nil {
		return nil, 0, eris.Wrap(err, "synclog: marshal summary")
	}
	return data, summary.Holdings, nil
}

func decodeSummary(e *SyncEntry, data []byte) {
	if len(data) == 0 {
		return
	}
	var s model.RunSummary
	if json.Unmarshal(data, &s) == nil {
		e.Summary = &s
	}
}

// StartSync records the beginning of a run and returns its ID.
func (s *PostgresStore) StartSync(ctx context.Context, quarter, trigger string) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO f13_data.sync_log (quarter, trigger, status, started_at)
		 VALUES ($1, $2, 'running', now()) RETURNING id`,
		quarter, trigger,
	).Scan(&id)
	if err != nil {
		return 0, eris.Wrapf(err, "synclog: start sync for %s", quarter)
	}
	return id, nil
}

// CompleteSync marks a run finished with the given terminal status.
func (s *PostgresStore) CompleteSync(ctx context.Context, id int64, status model.RunStatus, summary *model.RunSummary) error {
	meta, holdings, err := summaryJSON(summary)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`UPDATE f13_data.sync_log
		 SET status = $1, completed_at = now(), holdings = $2, metadata = $3
		 WHERE id = $4`,
		string(status), holdings, meta, id,
	)
	return eris.Wrapf(err, "synclog: complete sync %d", id)
}

// FailSync marks a run as failed with an error message.
func (s *PostgresStore) FailSync(ctx context.Context, id int64, errMsg string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE f13_data.sync_log
		 SET status = 'failed', completed_at = now(), error = $1
		 WHERE id = $2`,
		errMsg, id,
	)
	return eris.Wrapf(err, "synclog: fail sync %d", id)
}

// ListSyncs returns the most recent runs first.
func (s *PostgresStore) ListSyncs(ctx context.Context, limit int) ([]SyncEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, quarter, trigger, status, started_at, completed_at, holdings, error, metadata
		 FROM f13_data.sync_log ORDER BY started_at DESC, id DESC LIMIT $1`,
		clampLimit(limit),
	)
	if err != nil {
		return nil, eris.Wrap(err, "synclog: list")
	}
	defer rows.Close()

	var entries []SyncEntry
	for rows.Next() {
		var (
			e      SyncEntry
			errStr *string
			meta   []byte
		)
		if err := rows.Scan(&e.ID, &e.Quarter, &e.Trigger, &e.Status, &e.StartedAt, &e.CompletedAt, &e.Holdings, &errStr, &meta); err != nil {
			return nil, eris.Wrap(err, "synclog: scan entry")
		}
		if errStr != nil {
			e.Error = *errStr
		}
		decodeSummary(&e, meta)
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "synclog: iterate entries")
}
