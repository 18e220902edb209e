package scraper

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"

	"github.com/aluiziolira/go-scrape-games/config"
)

func fastFetchConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.MaxRetries = 3
	cfg.RetryBackoff = time.Millisecond
	cfg.RetryBackoffMax = 5 * time.Millisecond
	cfg.RateLimitBackoff = time.Millisecond
	return cfg
}

func newTestFetcher(t *testing.T, cfg *config.Config) (*Fetcher, *httpmock.MockTransport) {
	t.Helper()

	f, err := NewFetcher(cfg, NewMetrics())
	if err != nil {
		t.Fatalf("new fetcher: %v", err)
	}
	transport := httpmock.NewMockTransport()
	f.collector.WithTransport(transport)
	return f, transport
}

func TestFetchRetriesTransientFailures(t *testing.T) {
	f, transport := newTestFetcher(t, fastFetchConfig())

	const pageURL = "http://example.test/page"
	calls := 0
	transport.RegisterResponder(http.MethodGet, pageURL, func(*http.Request) (*http.Response, error) {
		calls++
		if calls <= 2 {
			return httpmock.NewStringResponse(http.StatusInternalServerError, "boom"), nil
		}
		return httpmock.NewStringResponse(http.StatusOK, "page body"), nil
	})

	body, err := f.Fetch(context.Background(), pageURL)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if string(body) != "page body" {
		t.Fatalf("body=%q", body)
	}
	if calls != 3 {
		t.Fatalf("calls=%d, want 3", calls)
	}
	if got := f.TotalRetries(); got != 2 {
		t.Fatalf("retries=%d, want 2", got)
	}
}

func TestFetchHonorsRetryAfterOn429(t *testing.T) {
	f, transport := newTestFetcher(t, fastFetchConfig())

	const pageURL = "http://example.test/limited"
	calls := 0
	transport.RegisterResponder(http.MethodGet, pageURL, func(*http.Request) (*http.Response, error) {
		calls++
		if calls == 1 {
			resp := httpmock.NewStringResponse(http.StatusTooManyRequests, "")
			resp.Header.Set("Retry-After", "0")
			return resp, nil
		}
		return httpmock.NewStringResponse(http.StatusOK, "after backoff"), nil
	})

	body, err := f.Fetch(context.Background(), pageURL)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if string(body) != "after backoff" {
		t.Fatalf("body=%q", body)
	}
	if calls != 2 {
		t.Fatalf("calls=%d, want 2", calls)
	}
}

func TestFetchNonRetryableFailsImmediately(t *testing.T) {
	f, transport := newTestFetcher(t, fastFetchConfig())

	const pageURL = "http://example.test/missing"
	calls := 0
	transport.RegisterResponder(http.MethodGet, pageURL, func(*http.Request) (*http.Response, error) {
		calls++
		return httpmock.NewStringResponse(http.StatusNotFound, ""), nil
	})

	_, err := f.Fetch(context.Background(), pageURL)
	if !IsNonRetryable(err) {
		t.Fatalf("err=%v, want non-retryable", err)
	}
	if calls != 1 {
		t.Fatalf("calls=%d, want a single attempt", calls)
	}
}

func TestFetchExhaustsRetryBudget(t *testing.T) {
	cfg := fastFetchConfig()
	cfg.MaxRetries = 2
	f, transport := newTestFetcher(t, cfg)

	const pageURL = "http://example.test/flaky"
	calls := 0
	transport.RegisterResponder(http.MethodGet, pageURL, func(*http.Request) (*http.Response, error) {
		calls++
		return httpmock.NewStringResponse(http.StatusBadGateway, ""), nil
	})

	_, err := f.Fetch(context.Background(), pageURL)
	if !IsExhausted(err) {
		t.Fatalf("err=%v, want exhausted", err)
	}
	if calls != 3 {
		t.Fatalf("calls=%d, want initial attempt + 2 retries", calls)
	}
}

func TestFetchRejectsMalformedURL(t *testing.T) {
	f, _ := newTestFetcher(t, fastFetchConfig())

	_, err := f.Fetch(context.Background(), "://not-a-url")
	if !IsNonRetryable(err) {
		t.Fatalf("err=%v, want non-retryable", err)
	}
}

func TestFetchStopsOnCancelledContext(t *testing.T) {
	f, transport := newTestFetcher(t, fastFetchConfig())

	const pageURL = "http://example.test/slow"
	transport.RegisterResponder(http.MethodGet, pageURL, httpmock.NewStringResponder(http.StatusOK, "never seen"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := f.Fetch(ctx, pageURL); err != context.Canceled {
		t.Fatalf("err=%v, want context.Canceled", err)
	}
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		value string
		want  time.Duration
		ok    bool
	}{
		{name: "seconds", value: "3", want: 3 * time.Second, ok: true},
		{name: "zero seconds", value: "0", want: 0, ok: true},
		{name: "http date", value: now.Add(10 * time.Second).Format(http.TimeFormat), want: 10 * time.Second, ok: true},
		{name: "past date", value: now.Add(-time.Minute).Format(http.TimeFormat), ok: false},
		{name: "negative", value: "-5", ok: false},
		{name: "garbage", value: "soon", ok: false},
		{name: "empty", value: "", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseRetryAfter(tt.value, now)
			if ok != tt.ok || got != tt.want {
				t.Fatalf("parseRetryAfter(%q)=(%v,%v), want (%v,%v)", tt.value, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestErrorTypeLabel(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		expected string
	}{
		{name: "rate limited", status: http.StatusTooManyRequests, expected: "rate_limited"},
		{name: "forbidden", status: http.StatusForbidden, expected: "forbidden"},
		{name: "not found", status: http.StatusNotFound, expected: "not_found"},
		{name: "server error", status: http.StatusBadGateway, expected: "http_5xx"},
		{name: "client error", status: http.StatusGone, expected: "http_4xx"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errorTypeLabel(nil, tt.status); got != tt.expected {
				t.Fatalf("errorTypeLabel(nil, %d)=%q, want %q", tt.status, got, tt.expected)
			}
		})
	}
}
