package scraper

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/aluiziolira/go-scrape-games/config"
)

// Fetcher issues page fetches through a shared colly collector, applying
// bounded retries with exponential backoff. All network I/O of the pipeline
// funnels through it, so the collector's limit rule is the single place that
// throttles requests against the source.
type Fetcher struct {
	cfg       *config.Config
	collector *colly.Collector
	metrics   *Metrics

	retryCount int64
}

// NewFetcher builds a fetcher configured from cfg.
func NewFetcher(cfg *config.Config, metrics *Metrics) (*Fetcher, error) {
	collector := colly.NewCollector(
		colly.UserAgent(cfg.UserAgent),
		// Retries and poster fetches hit URLs the collector has seen before.
		colly.AllowURLRevisit(),
	)

	collector.SetRequestTimeout(cfg.Timeout)
	collector.IgnoreRobotsTxt = !cfg.RespectRobotsTxt
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	if err := collector.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: cfg.Parallelism,
		Delay:       cfg.Delay,
		RandomDelay: cfg.RandomDelay,
	}); err != nil {
		return nil, fmt.Errorf("configure rate limits: %w", err)
	}

	f := &Fetcher{
		cfg:       cfg,
		collector: collector,
		metrics:   metrics,
	}

	collector.OnRequest(func(r *colly.Request) {
		r.Ctx.Put("start", time.Now())
		f.metrics.IncRequest("started")
	})

	collector.OnResponse(func(r *colly.Response) {
		if start, ok := r.Ctx.GetAny("start").(time.Time); ok {
			f.metrics.ObserveDuration(time.Since(start))
		}
		r.Ctx.Put("status", r.StatusCode)
		r.Ctx.Put("body", r.Body)
	})

	collector.OnError(func(r *colly.Response, err error) {
		if r == nil {
			return
		}
		if start, ok := r.Ctx.GetAny("start").(time.Time); ok {
			f.metrics.ObserveDuration(time.Since(start))
		}
		r.Ctx.Put("status", r.StatusCode)
		if r.Headers != nil {
			r.Ctx.Put("retryAfter", r.Headers.Get("Retry-After"))
		}
	})

	return f, nil
}

// Fetch issues a GET for rawURL and returns the response body. Transient
// failures and 429 responses are retried within the configured budget; other
// client errors fail immediately. Exhausting the budget yields a *FetchError
// with KindExhausted.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	if _, err := url.ParseRequestURI(rawURL); err != nil {
		return nil, &FetchError{Kind: KindNonRetryable, URL: rawURL, Err: err}
	}

	var (
		lastErr    error
		lastStatus int
	)

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		body, status, retryAfter, err := f.do(rawURL)
		if err == nil {
			return body, nil
		}

		f.metrics.IncError(errorTypeLabel(err, status))

		kind := classify(err, status)
		if kind == KindNonRetryable {
			return nil, &FetchError{Kind: KindNonRetryable, URL: rawURL, Status: status, Err: err}
		}

		lastErr = err
		lastStatus = status

		if attempt >= f.cfg.MaxRetries {
			break
		}

		wait := f.backoff(attempt + 1)
		if kind == KindRateLimited {
			wait = f.cfg.RateLimitBackoff
			if hint, ok := parseRetryAfter(retryAfter, time.Now()); ok {
				wait = hint
			}
		}

		atomic.AddInt64(&f.retryCount, 1)
		f.metrics.IncRetries()

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, &FetchError{Kind: KindExhausted, URL: rawURL, Status: lastStatus, Err: lastErr}
}

// do performs a single attempt. A per-request colly context carries the
// response body and status back to the caller; in synchronous mode Request
// returns only after the handlers have run.
func (f *Fetcher) do(rawURL string) (body []byte, status int, retryAfter string, err error) {
	cctx := colly.NewContext()
	err = f.collector.Request(http.MethodGet, rawURL, nil, cctx, nil)

	status, _ = cctx.GetAny("status").(int)
	retryAfter, _ = cctx.GetAny("retryAfter").(string)
	if err != nil {
		return nil, status, retryAfter, err
	}

	body, _ = cctx.GetAny("body").([]byte)
	return body, status, "", nil
}

func (f *Fetcher) backoff(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}

	base := f.cfg.RetryBackoff
	if base <= 0 {
		base = 100 * time.Millisecond
	}

	delay := base * time.Duration(1<<(attempt-1))
	if max := f.cfg.RetryBackoffMax; max > 0 && delay > max {
		delay = max
	}
	return delay
}

// TotalRetries returns the number of retry attempts issued so far.
func (f *Fetcher) TotalRetries() int {
	return int(atomic.LoadInt64(&f.retryCount))
}

// parseRetryAfter interprets a Retry-After header value, either delay
// seconds or an HTTP date.
func parseRetryAfter(value string, now time.Time) (time.Duration, bool) {
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	if at, err := http.ParseTime(value); err == nil {
		if wait := at.Sub(now); wait > 0 {
			return wait, true
		}
	}
	return 0, false
}
