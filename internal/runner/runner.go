// Package runner coordinates 13F pipeline runs triggered from the CLI, the
// REST API and the scheduler. At most one run is active per process.
package runner

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/holdings-cli/internal/config"
	"github.com/sells-group/holdings-cli/internal/f13"
	"github.com/sells-group/holdings-cli/internal/fetcher"
	"github.com/sells-group/holdings-cli/internal/model"
	"github.com/sells-group/holdings-cli/internal/store"
)

// ErrRunInProgress is returned when a run is requested while another is active.
var ErrRunInProgress = eris.New("runner: a 13F run is already in progress")

// maxHistory bounds the in-memory run history.
const maxHistory = 100

// Trigger names recorded on runs.
const (
	TriggerCLI      = "cli"
	TriggerAPI      = "api"
	TriggerSchedule = "schedule"
)

// Request describes one run.
type Request struct {
	Quarter     string `json:"quarter,omitempty"`   // MM-DD-YYYY; empty = most recent quarter
	IndexURL    string `json:"index_url,omitempty"` // overrides the computed daily-index directory
	Force       bool   `json:"force,omitempty"`     // ignore holdings already stored for the quarter
	Latest      bool   `json:"latest,omitempty"`    // process the latest-filings feed instead of the index
	TickersFile string `json:"-"`
	Trigger     string `json:"-"`
}

// StoreOpener opens a fresh store session for one run. The runner closes it.
type StoreOpener func(ctx context.Context) (store.HoldingStore, error)

// Runner executes pipeline runs and keeps their history in memory.
type Runner struct {
	cfg       config.F13Config
	fetcher   fetcher.Fetcher
	openStore StoreOpener
	now       func() time.Time

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mu     sync.Mutex
	runs   map[string]*model.Run
	order  []string
	active string

	log *zap.Logger
}

// New creates a Runner.
func New(cfg config.F13Config, f fetcher.Fetcher, open StoreOpener) *Runner {
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		cfg:       cfg,
		fetcher:   f,
		openStore: open,
		now:       time.Now,
		baseCtx:   ctx,
		cancel:    cancel,
		runs:      make(map[string]*model.Run),
		log:       zap.L().With(zap.String("component", "runner")),
	}
}

// Start validates the request and runs it in the background. The returned
// run is a snapshot in the queued state.
func (r *Runner) Start(_ context.Context, req Request) (*model.Run, error) {
	run, err := r.begin(req)
	if err != nil {
		return nil, err
	}
	snapshot := cloneRun(run)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		_ = r.execute(r.baseCtx, run, req)
	}()
	return snapshot, nil
}

// RunSync runs the request to completion. The returned error is the run's
// failure, if any; the run itself is returned in every case once started.
func (r *Runner) RunSync(ctx context.Context, req Request) (*model.Run, error) {
	run, err := r.begin(req)
	if err != nil {
		return nil, err
	}
	err = r.execute(ctx, run, req)
	return r.snapshot(run.ID), err
}

// Get returns a snapshot of the run with the given ID.
func (r *Runner) Get(id string) (*model.Run, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[id]
	if !ok {
		return nil, false
	}
	return cloneRun(run), true
}

// List returns snapshots of all known runs, newest first.
func (r *Runner) List() []model.Run {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.Run, 0, len(r.order))
	for i := len(r.order) - 1; i >= 0; i-- {
		out = append(out, *cloneRun(r.runs[r.order[i]]))
	}
	return out
}

// Active returns the ID of the running run, or "".
func (r *Runner) Active() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// Close cancels background runs and waits for them to stop.
func (r *Runner) Close() {
	r.cancel()
	r.wg.Wait()
}

// begin validates req, claims the active slot and records a queued run.
func (r *Runner) begin(req Request) (*model.Run, error) {
	quarter := req.Quarter
	if quarter == "" {
		quarter = r.cfg.TargetQuarter
	}
	if quarter == "" {
		quarter = f13.CurrentQuarter(r.now())
	}
	if !f13.ValidQuarterEnd(quarter) {
		return nil, eris.Wrapf(f13.ErrInvalidQuarterFormat, "runner: quarter %q", quarter)
	}
	trigger := req.Trigger
	if trigger == "" {
		trigger = TriggerCLI
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active != "" {
		return nil, ErrRunInProgress
	}

	now := r.now()
	run := &model.Run{
		ID:        uuid.New().String(),
		Quarter:   quarter,
		Force:     req.Force,
		Trigger:   trigger,
		Status:    model.RunStatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.runs[run.ID] = run
	r.order = append(r.order, run.ID)
	r.active = run.ID
	r.trimLocked()
	return run, nil
}

func (r *Runner) execute(ctx context.Context, run *model.Run, req Request) error {
	log := r.log.With(zap.String("run_id", run.ID), zap.String("quarter", run.Quarter), zap.String("trigger", run.Trigger))
	r.update(run.ID, func(m *model.Run) { m.Status = model.RunStatusRunning })
	log.Info("13F run started", zap.Bool("force", run.Force), zap.Bool("latest", req.Latest))

	summary, skipped, err := r.runPipeline(ctx, run, req)

	r.mu.Lock()
	run.Summary = summary
	run.UpdatedAt = r.now()
	switch {
	case err != nil:
		run.Status = model.RunStatusFailed
		run.Error = err.Error()
	case skipped:
		run.Status = model.RunStatusSkipped
		run.Error = ""
	default:
		run.Status = model.RunStatusComplete
	}
	r.active = ""
	r.mu.Unlock()

	switch {
	case err != nil:
		log.Error("13F run failed", zap.Error(err))
	case skipped:
		log.Info("13F run skipped: quarter already loaded")
	default:
		log.Info("13F run complete",
			zap.Int("filings", summary.Filings),
			zap.Int("processed", summary.Processed),
			zap.Int64("holdings", summary.Holdings),
			zap.Duration("elapsed", summary.Elapsed),
		)
	}
	return err
}

// runPipeline opens a store session, records the run in the sync log when
// the store keeps one, and crawls. skipped reports that the quarter already
// had data.
func (r *Runner) runPipeline(ctx context.Context, run *model.Run, req Request) (summary *model.RunSummary, skipped bool, err error) {
	st, err := r.openStore(ctx)
	if err != nil {
		return nil, false, eris.Wrap(err, "runner: open store")
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			r.log.Warn("close store", zap.Error(cerr))
		}
	}()

	syncLog, _ := st.(store.SyncLog)
	var syncID int64
	if syncLog != nil {
		if syncID, err = syncLog.StartSync(ctx, run.Quarter, run.Trigger); err != nil {
			r.log.Warn("sync log start failed", zap.Error(err))
			syncLog = nil
		}
	}

	summary, skipped, err = r.crawl(ctx, st, run.Quarter, req)

	if syncLog != nil {
		// Record the outcome even when ctx was cancelled mid-crawl.
		logCtx := context.WithoutCancel(ctx)
		var lerr error
		switch {
		case err != nil:
			lerr = syncLog.FailSync(logCtx, syncID, err.Error())
		case skipped:
			lerr = syncLog.CompleteSync(logCtx, syncID, model.RunStatusSkipped, summary)
		default:
			lerr = syncLog.CompleteSync(logCtx, syncID, model.RunStatusComplete, summary)
		}
		if lerr != nil {
			r.log.Warn("sync log update failed", zap.Int64("sync_id", syncID), zap.Error(lerr))
		}
	}
	return summary, skipped, err
}

// crawl applies the idempotency gate, loads the CUSIP mapping and runs the
// pipeline against st.
func (r *Runner) crawl(ctx context.Context, st store.HoldingStore, quarter string, req Request) (*model.RunSummary, bool, error) {
	label, err := f13.QuarterLabel(quarter)
	if err != nil {
		return nil, false, err
	}

	if !req.Force && !req.Latest {
		n, err := st.QuarterCount(ctx, label)
		if err != nil {
			return nil, false, eris.Wrap(err, "runner: check existing holdings")
		}
		if n > 0 {
			return &model.RunSummary{Quarter: label, Holdings: n}, true, nil
		}
	}

	tickers, err := r.loadTickers(ctx, st, req.TickersFile)
	if err != nil {
		return nil, false, err
	}

	p, err := f13.New(r.fetcher, st, tickers, f13.Options{
		TargetQuarter: quarter,
		ArchiveRoot:   r.cfg.ArchiveRoot,
		ProgressEvery: r.cfg.ProgressEvery,
	})
	if err != nil {
		return nil, false, err
	}

	if req.Latest {
		urls, err := f13.LatestFilingURLs(ctx, r.fetcher, r.cfg.FeedURL)
		if err != nil {
			return nil, false, err
		}
		summary, err := p.ProcessURLs(ctx, urls)
		return summary, false, err
	}

	indexURL := req.IndexURL
	if indexURL == "" {
		indexURL, err = f13.QuarterIndexURL(r.cfg.ArchiveRoot, quarter)
		if err != nil {
			return nil, false, err
		}
	}
	summary, err := p.ProcessIndexPage(ctx, indexURL)
	return summary, false, err
}

// loadTickers reads the CUSIP mapping from the reference table or a file.
func (r *Runner) loadTickers(ctx context.Context, st store.HoldingStore, override string) (map[string]string, error) {
	if override == "" && r.cfg.TickersSource == "db" {
		tickers, err := st.LoadCUSIPTickers(ctx)
		if err != nil {
			return nil, eris.Wrap(err, "runner: load cusip tickers")
		}
		if len(tickers) == 0 {
			return nil, eris.New("runner: cusip_tickers table is empty; run `f13 tickers import` first")
		}
		return tickers, nil
	}

	path := override
	if path == "" {
		path = r.cfg.TickersFile
	}
	return f13.LoadTickerFile(ctx, path)
}

func (r *Runner) update(id string, fn func(*model.Run)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if run, ok := r.runs[id]; ok {
		fn(run)
		run.UpdatedAt = r.now()
	}
}

func (r *Runner) snapshot(id string) *model.Run {
	run, _ := r.Get(id)
	return run
}

// trimLocked drops the oldest finished runs beyond maxHistory.
func (r *Runner) trimLocked() {
	for len(r.order) > maxHistory {
		oldest := r.order[0]
		if oldest == r.active {
			return
		}
		delete(r.runs, oldest)
		r.order = r.order[1:]
	}
}

func cloneRun(run *model.Run) *model.Run {
	c := *run
	if run.Summary != nil {
		s := *run.Summary
		c.Summary = &s
	}
	return &c
}
