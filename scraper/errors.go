package scraper

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// FetchKind classifies a fetch failure.
type FetchKind string

const (
	// KindTransient covers timeouts, connection failures and 5xx responses.
	// These are retried inside the fetcher and never surface.
	KindTransient FetchKind = "transient"

	// KindRateLimited marks a 429 response. Retried after honoring the
	// server's Retry-After hint.
	KindRateLimited FetchKind = "rate_limited"

	// KindNonRetryable covers malformed URLs and 4xx responses other than
	// 429. Fails immediately without touching the retry budget.
	KindNonRetryable FetchKind = "non_retryable"

	// KindExhausted means the retry budget ran out. Fatal to the page, not
	// to the run.
	KindExhausted FetchKind = "exhausted"
)

// FetchError describes a failed page fetch.
type FetchError struct {
	Kind   FetchKind
	URL    string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: %s (status %d): %v", e.URL, e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// IsExhausted reports whether err is a fetch error that ran out of retries.
func IsExhausted(err error) bool {
	var ferr *FetchError
	return errors.As(err, &ferr) && ferr.Kind == KindExhausted
}

// IsNonRetryable reports whether err is a fetch error that was never worth
// retrying.
func IsNonRetryable(err error) bool {
	var ferr *FetchError
	return errors.As(err, &ferr) && ferr.Kind == KindNonRetryable
}

// classify maps a request error and HTTP status to a fetch kind.
func classify(err error, statusCode int) FetchKind {
	switch {
	case statusCode == http.StatusTooManyRequests:
		return KindRateLimited
	case statusCode >= http.StatusInternalServerError:
		return KindTransient
	case statusCode >= http.StatusBadRequest:
		return KindNonRetryable
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return KindTransient
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTransient
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return KindTransient
	}

	return KindTransient
}

// errorTypeLabel buckets a failed request for the error metrics.
func errorTypeLabel(err error, statusCode int) string {
	switch {
	case statusCode == http.StatusTooManyRequests:
		return "rate_limited"
	case statusCode == http.StatusForbidden:
		return "forbidden"
	case statusCode == http.StatusNotFound:
		return "not_found"
	case statusCode >= http.StatusInternalServerError:
		return "http_5xx"
	case statusCode >= http.StatusBadRequest:
		return "http_4xx"
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout"
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return "connection"
	}
	return "other"
}
