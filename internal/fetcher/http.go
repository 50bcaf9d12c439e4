package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// HTTPOptions configures the HTTP fetcher.
type HTTPOptions struct {
	UserAgent string
	Timeout   time.Duration

	// MaxRetries is the total number of attempts per request. Default: 3.
	MaxRetries int

	// RetryBackoff is multiplied by the attempt number to get the delay
	// before the next attempt (1s, 2s, ...). Default: 1s.
	RetryBackoff time.Duration

	// PostSuccessDelay is slept after every successful response, bounding
	// the request rate regardless of how fast the caller consumes bodies.
	// Default: 100ms. Negative disables it.
	PostSuccessDelay time.Duration

	// RateLimiters optionally throttles requests per host.
	RateLimiters map[string]*rate.Limiter
}

// StatusError is returned when the server answers with a non-2xx status.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetcher: unexpected status %d from %s", e.StatusCode, e.URL)
}

// HTTPFetcher implements Fetcher using net/http with retry and pacing.
type HTTPFetcher struct {
	client   *http.Client
	opts     HTTPOptions
	limiters map[string]*rate.Limiter
	sleep    func(ctx context.Context, d time.Duration) error
}

// SECRateLimiters returns per-host limiters matching the SEC fair-access
// ceiling of 10 requests per second.
func SECRateLimiters(perSecond float64) map[string]*rate.Limiter {
	if perSecond <= 0 {
		return nil
	}
	burst := int(perSecond)
	if burst < 1 {
		burst = 1
	}
	return map[string]*rate.Limiter{
		"www.sec.gov":  rate.NewLimiter(rate.Limit(perSecond), burst),
		"efts.sec.gov": rate.NewLimiter(rate.Limit(perSecond), burst),
	}
}

// NewHTTPFetcher creates a new HTTPFetcher with the given options.
func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.RetryBackoff == 0 {
		opts.RetryBackoff = time.Second
	}
	if opts.PostSuccessDelay == 0 {
		opts.PostSuccessDelay = 100 * time.Millisecond
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "holdings-cli/1.0"
	}
	limiters := make(map[string]*rate.Limiter)
	for k, v := range opts.RateLimiters {
		limiters[k] = v
	}
	transport := &http.Transport{
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
	}
	return &HTTPFetcher{
		client: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		},
		opts:     opts,
		limiters: limiters,
		sleep:    sleepCtx,
	}
}

// sleepCtx waits for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (f *HTTPFetcher) limiterFor(rawURL string) *rate.Limiter {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}
	return f.limiters[u.Host]
}

// doWithRetry sends req up to MaxRetries times. Transport failures and
// non-2xx statuses are retried after RetryBackoff*attempt; the last
// attempt's error is returned as-is.
func (f *HTTPFetcher) doWithRetry(ctx context.Context, req *http.Request) (*http.Response, error) {
	var lastErr error
	for attempt := 1; attempt <= f.opts.MaxRetries; attempt++ {
		if lim := f.limiterFor(req.URL.String()); lim != nil {
			if err := lim.Wait(ctx); err != nil {
				return nil, eris.Wrap(err, "fetcher: rate limiter wait")
			}
		}

		resp, err := f.client.Do(req.Clone(ctx))
		if err == nil && (resp.StatusCode < 200 || resp.StatusCode > 299) {
			_ = resp.Body.Close()
			err = &StatusError{URL: req.URL.String(), StatusCode: resp.StatusCode}
		}

		if err == nil {
			if err := f.sleep(ctx, f.opts.PostSuccessDelay); err != nil {
				_ = resp.Body.Close()
				return nil, eris.Wrap(err, "fetcher: post-request delay")
			}
			return resp, nil
		}

		lastErr = err
		if ctx.Err() != nil || attempt == f.opts.MaxRetries {
			break
		}

		delay := f.opts.RetryBackoff * time.Duration(attempt)
		zap.L().Warn("http request failed, retrying",
			zap.String("url", req.URL.String()),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", delay),
			zap.Error(err),
		)
		if err := f.sleep(ctx, delay); err != nil {
			return nil, lastErr
		}
	}

	zap.L().Warn("http request failed, giving up",
		zap.String("url", req.URL.String()),
		zap.Int("attempts", f.opts.MaxRetries),
		zap.Error(lastErr),
	)
	return nil, lastErr
}

// Download fetches the URL and returns the response body.
func (f *HTTPFetcher) Download(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: create request")
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := f.doWithRetry(ctx, req)
	if err != nil {
		return nil, err
	}

	return resp.Body, nil
}
