package f13

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/holdings-cli/internal/fetcher"
	"github.com/sells-group/holdings-cli/internal/model"
	"github.com/sells-group/holdings-cli/internal/store"
)

const (
	// DefaultArchiveRoot is the public EDGAR archive.
	DefaultArchiveRoot   = "https://www.sec.gov/Archives"
	defaultProgressEvery = 200
)

// Options configures a Pipeline.
type Options struct {
	// TargetQuarter is the MM-DD-YYYY quarter end to ingest. Empty selects
	// the most recently completed quarter.
	TargetQuarter string
	ArchiveRoot   string
	ProgressEvery int
	Now           func() time.Time
}

// Pipeline ingests one target quarter. It is not safe for concurrent use.
type Pipeline struct {
	fetcher fetcher.Fetcher
	store   store.HoldingStore
	tickers map[string]string

	target      string // MM-DD-YYYY
	label       string // Q{n}-YYYY
	filingDate  time.Time
	archiveRoot string

	progressEvery int
	now           func() time.Time
	started       time.Time
	summary       model.RunSummary

	log *zap.Logger
}

// New builds a pipeline for the target quarter. The mapping is not copied
// and must not be modified while the pipeline runs. Close releases st for
// callers that hand the session over to the pipeline.
func New(f fetcher.Fetcher, st store.HoldingStore, tickers map[string]string, opts Options) (*Pipeline, error) {
	if f == nil || st == nil {
		return nil, eris.New("f13: fetcher and store are required")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.TargetQuarter == "" {
		opts.TargetQuarter = CurrentQuarter(opts.Now())
	}
	if opts.ArchiveRoot == "" {
		opts.ArchiveRoot = DefaultArchiveRoot
	}
	if opts.ProgressEvery <= 0 {
		opts.ProgressEvery = defaultProgressEvery
	}

	label, err := QuarterLabel(opts.TargetQuarter)
	if err != nil {
		return nil, err
	}
	filingDate, err := ParseQuarterEnd(opts.TargetQuarter)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		fetcher:       f,
		store:         st,
		tickers:       tickers,
		target:        opts.TargetQuarter,
		label:         label,
		filingDate:    filingDate,
		archiveRoot:   opts.ArchiveRoot,
		progressEvery: opts.ProgressEvery,
		now:           opts.Now,
		log: zap.L().With(
			zap.String("component", "f13.pipeline"),
			zap.String("quarter", opts.TargetQuarter),
		),
	}
	p.started = p.now()
	p.summary.Quarter = label
	return p, nil
}

// TargetQuarter returns the MM-DD-YYYY quarter end this pipeline accepts.
func (p *Pipeline) TargetQuarter() string { return p.target }

// QuarterLabel returns the Q{n}-YYYY label written to each holding.
func (p *Pipeline) QuarterLabel() string { return p.label }

// Summary returns a snapshot of the run counters.
func (p *Pipeline) Summary() *model.RunSummary {
	s := p.summary
	s.Elapsed = p.now().Sub(p.started)
	return &s
}

// Close releases the store session.
func (p *Pipeline) Close() error {
	return eris.Wrap(p.store.Close(), "f13: close store")
}

// ProcessIndexPage crawls a daily-index directory listing and processes every
// company index newer than the target quarter in date order. A daily index
// that cannot be fetched is logged and skipped; a directory page that cannot
// be fetched is returned as an error.
func (p *Pipeline) ProcessIndexPage(ctx context.Context, indexURL string) (*model.RunSummary, error) {
	p.started = p.now()
	p.summary.IndexURL = indexURL
	p.log.Info("processing SEC index page", zap.String("url", indexURL))

	body, err := p.fetcher.Download(ctx, indexURL)
	if err != nil {
		return p.Summary(), eris.Wrapf(err, "f13: fetch index page %s", indexURL)
	}
	links, err := dailyIndexLinks(body, indexURL, p.target)
	body.Close() //nolint:errcheck
	if err != nil {
		return p.Summary(), err
	}

	p.log.Info("found daily index files", zap.Int("count", len(links)))

	for _, link := range links {
		if err := ctx.Err(); err != nil {
			return p.Summary(), eris.Wrap(err, "f13: crawl cancelled")
		}

		p.log.Info("processing daily index", zap.String("date", link.date), zap.String("url", link.url))
		p.summary.DailyIndexes++
		if err := p.ProcessDailyIndex(ctx, link.url); err != nil {
			if ctx.Err() != nil {
				return p.Summary(), eris.Wrap(err, "f13: crawl cancelled")
			}
			p.summary.DailyIndexErrors++
			p.log.Error("daily index failed", zap.String("url", link.url), zap.Error(err))
		}
	}

	summary := p.Summary()
	p.log.Info("index crawl complete",
		zap.Int("filings", summary.Filings),
		zap.Int("processed", summary.Processed),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed),
		zap.Int64("holdings", summary.Holdings),
		zap.Duration("elapsed", summary.Elapsed),
	)
	return summary, nil
}

// ProcessDailyIndex fetches one company.idx file and processes its 13F-HR
// filings in document order. A failed filing never stops the rest.
func (p *Pipeline) ProcessDailyIndex(ctx context.Context, url string) error {
	body, err := p.fetcher.Download(ctx, url)
	if err != nil {
		return eris.Wrapf(err, "f13: fetch daily index %s", url)
	}
	data, err := fetcher.ReadAllUTF8(body)
	body.Close() //nolint:errcheck
	if err != nil {
		return eris.Wrapf(err, "f13: read daily index %s", url)
	}

	for _, filingURL := range FilingURLs(p.archiveRoot, bytes.NewReader(data)) {
		if err := ctx.Err(); err != nil {
			return err
		}
		p.record(p.ProcessFiling(ctx, filingURL))
	}
	return nil
}

// ProcessURLs processes an explicit list of filings, such as the latest-filings feed.
func (p *Pipeline) ProcessURLs(ctx context.Context, urls []string) (*model.RunSummary, error) {
	p.started = p.now()
	for _, u := range urls {
		if err := ctx.Err(); err != nil {
			return p.Summary(), eris.Wrap(err, "f13: cancelled")
		}
		p.record(p.ProcessFiling(ctx, u))
	}
	return p.Summary(), nil
}

// ProcessFiling fetches, parses and persists a single filing. Filings for any
// other quarter are skipped without touching the store. Errors are reported
// in the outcome, never returned or panicked.
func (p *Pipeline) ProcessFiling(ctx context.Context, url string) Outcome {
	out := Outcome{URL: url}

	body, err := p.fetcher.Download(ctx, url)
	if err != nil {
		return p.failed(out, eris.Wrap(err, "f13: fetch filing"))
	}
	filing, err := ParseFiling(body)
	body.Close() //nolint:errcheck
	if err != nil {
		return p.failed(out, err)
	}

	period := filing.Period()
	if !ValidQuarterEnd(period) || period != p.target {
		out.Status = StatusSkipped
		out.Reason = fmt.Sprintf("period of report %q is not %s", period, p.target)
		return out
	}

	positions, err := filing.Positions()
	if err != nil {
		return p.failed(out, err)
	}

	holdings := p.resolve(filing.Manager(), positions)
	if err := p.persist(ctx, holdings); err != nil {
		return p.failed(out, err)
	}

	out.Status = StatusCommitted
	out.Holdings = len(holdings)
	return out
}

// resolve maps CUSIP totals to holdings, dropping CUSIPs with no ticker.
// Output is sorted by ticker so writes are deterministic.
func (p *Pipeline) resolve(manager string, positions map[string]int64) []model.InstitutionalHolding {
	holdings := make([]model.InstitutionalHolding, 0, len(positions))
	for cusip, shares := range positions {
		ticker, ok := p.tickers[cusip]
		if !ok {
			continue
		}
		holdings = append(holdings, model.InstitutionalHolding{
			CompanyTicker: ticker,
			HolderName:    manager,
			Shares:        shares,
			FilingDate:    p.filingDate,
			Quarter:       p.label,
		})
	}
	sort.Slice(holdings, func(i, j int) bool {
		if holdings[i].CompanyTicker != holdings[j].CompanyTicker {
			return holdings[i].CompanyTicker < holdings[j].CompanyTicker
		}
		return holdings[i].Shares > holdings[j].Shares
	})
	return holdings
}

// persist writes one filing's holdings in a single transaction.
func (p *Pipeline) persist(ctx context.Context, holdings []model.InstitutionalHolding) (err error) {
	if len(holdings) == 0 {
		return nil
	}

	tx, err := p.store.BeginFiling(ctx)
	if err != nil {
		return eris.Wrap(err, "f13: begin filing")
	}
	defer func() {
		if err == nil {
			return
		}
		// Roll back even when ctx is already cancelled.
		if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil {
			p.log.Warn("rollback failed", zap.Error(rbErr))
		}
	}()

	for _, h := range holdings {
		if err = tx.Add(ctx, h); err != nil {
			return eris.Wrapf(err, "f13: stage %s", h.CompanyTicker)
		}
	}
	if err = tx.Commit(ctx); err != nil {
		return eris.Wrap(err, "f13: commit filing")
	}
	return nil
}

func (p *Pipeline) failed(out Outcome, err error) Outcome {
	out.Status = StatusFailed
	out.Err = err
	p.log.Error("error processing 13F filing", zap.String("url", out.URL), zap.Error(err))
	return out
}

// record counts an outcome and emits a progress report every progressEvery filings.
func (p *Pipeline) record(out Outcome) {
	p.summary.Filings++
	switch out.Status {
	case StatusCommitted:
		p.summary.Processed++
		p.summary.Holdings += int64(out.Holdings)
	case StatusSkipped:
		p.summary.Skipped++
		p.log.Debug("filing skipped", zap.String("url", out.URL), zap.String("reason", out.Reason))
	case StatusFailed:
		p.summary.Failed++
	}

	if p.summary.Filings%p.progressEvery == 0 {
		elapsed := p.now().Sub(p.started)
		p.log.Info("progress update",
			zap.Int("filings", p.summary.Filings),
			zap.Float64("avg_seconds_per_filing", elapsed.Seconds()/float64(p.summary.Filings)),
			zap.Float64("elapsed_minutes", elapsed.Minutes()),
		)
	}
}

// dailyLink is a company.idx file found on a directory listing.
type dailyLink struct {
	date string // YYYYMMDD
	url  string
}

// sortDailyLinks orders links by date, keeping listing order for equal dates.
func sortDailyLinks(links []dailyLink) {
	sort.SliceStable(links, func(i, j int) bool { return links[i].date < links[j].date })
}
