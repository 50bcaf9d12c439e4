// Package storetest provides an in-memory store.HoldingStore for tests.
package storetest

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/sells-group/holdings-cli/internal/model"
	"github.com/sells-group/holdings-cli/internal/store"
)

// Fake is an in-memory HoldingStore that records transaction calls.
// Set the *Err fields to inject failures.
type Fake struct {
	mu sync.Mutex

	Holdings []model.InstitutionalHolding
	Tickers  map[string]string
	Syncs    []store.SyncEntry

	Begins    int
	Commits   int
	Rollbacks int
	Closed    bool
	Migrated  bool

	BeginErr  error
	AddErr    error
	CommitErr error
	CountErr  error
	SyncErr   error
}

var (
	_ store.HoldingStore = (*Fake)(nil)
	_ store.SyncLog      = (*Fake)(nil)
)

// New returns an empty Fake.
func New() *Fake {
	return &Fake{Tickers: make(map[string]string)}
}

// Calls returns the begin, commit and rollback counters.
func (f *Fake) Calls() (begins, commits, rollbacks int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Begins, f.Commits, f.Rollbacks
}

// Committed returns a copy of all committed holdings.
func (f *Fake) Committed() []model.InstitutionalHolding {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.InstitutionalHolding(nil), f.Holdings...)
}

func (f *Fake) BeginFiling(_ context.Context) (store.FilingTx, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Begins++
	if f.BeginErr != nil {
		return nil, f.BeginErr
	}
	return &fakeTx{store: f}, nil
}

func (f *Fake) QuarterCount(_ context.Context, quarter string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CountErr != nil {
		return 0, f.CountErr
	}
	var n int64
	for _, h := range f.Holdings {
		if h.Quarter == quarter {
			n++
		}
	}
	return n, nil
}

func (f *Fake) ListHoldings(_ context.Context, filter model.HoldingFilter) ([]model.InstitutionalHolding, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.InstitutionalHolding
	for _, h := range f.Holdings {
		if filter.Quarter != "" && h.Quarter != filter.Quarter {
			continue
		}
		if filter.Ticker != "" && h.CompanyTicker != filter.Ticker {
			continue
		}
		if filter.Holder != "" && !strings.Contains(strings.ToLower(h.HolderName), strings.ToLower(filter.Holder)) {
			continue
		}
		out = append(out, h)
	}
	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return nil, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (f *Fake) LoadCUSIPTickers(_ context.Context) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]string, len(f.Tickers))
	for k, v := range f.Tickers {
		out[k] = v
	}
	return out, nil
}

func (f *Fake) UpsertCUSIPTickers(_ context.Context, tickers map[string]string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Tickers == nil {
		f.Tickers = make(map[string]string)
	}
	for k, v := range tickers {
		f.Tickers[k] = v
	}
	return int64(len(tickers)), nil
}

func (f *Fake) Migrate(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Migrated = true
	return nil
}

func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

func (f *Fake) StartSync(_ context.Context, quarter, trigger string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SyncErr != nil {
		return 0, f.SyncErr
	}
	id := int64(len(f.Syncs) + 1)
	f.Syncs = append(f.Syncs, store.SyncEntry{
		ID:        id,
		Quarter:   quarter,
		Trigger:   trigger,
		Status:    string(model.RunStatusRunning),
		StartedAt: time.Now(),
	})
	return id, nil
}

func (f *Fake) CompleteSync(_ context.Context, id int64, status model.RunStatus, summary *model.RunSummary) error {
	return f.finishSync(id, func(e *store.SyncEntry) {
		e.Status = string(status)
		if summary != nil {
			s := *summary
			e.Summary = &s
			e.Holdings = s.Holdings
		}
	})
}

func (f *Fake) FailSync(_ context.Context, id int64, errMsg string) error {
	return f.finishSync(id, func(e *store.SyncEntry) {
		e.Status = string(model.RunStatusFailed)
		e.Error = errMsg
	})
}

func (f *Fake) finishSync(id int64, fn func(*store.SyncEntry)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SyncErr != nil {
		return f.SyncErr
	}
	if id < 1 || int(id) > len(f.Syncs) {
		return nil
	}
	e := &f.Syncs[id-1]
	now := time.Now()
	e.CompletedAt = &now
	fn(e)
	return nil
}

// ListSyncs returns entries newest first. limit <= 0 returns all.
func (f *Fake) ListSyncs(_ context.Context, limit int) ([]store.SyncEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]store.SyncEntry, 0, len(f.Syncs))
	for i := len(f.Syncs) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, f.Syncs[i])
	}
	return out, nil
}

type fakeTx struct {
	store   *Fake
	pending []model.InstitutionalHolding
	done    bool
}

func (t *fakeTx) Add(_ context.Context, h model.InstitutionalHolding) error {
	if t.done {
		return store.ErrTxDone
	}
	t.store.mu.Lock()
	err := t.store.AddErr
	t.store.mu.Unlock()
	if err != nil {
		return err
	}
	t.pending = append(t.pending, h)
	return nil
}

func (t *fakeTx) Commit(_ context.Context) error {
	if t.done {
		return store.ErrTxDone
	}
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	t.done = true
	if t.store.CommitErr != nil {
		return t.store.CommitErr
	}
	t.store.Commits++
	t.store.Holdings = append(t.store.Holdings, t.pending...)
	return nil
}

func (t *fakeTx) Rollback(_ context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	t.store.Rollbacks++
	return nil
}
