// Package fetch retrieves marketplace pages through rotating proxies.
// It offers a lightweight HTTP path and a headless-browser path behind the
// same Fetcher interface, and classifies every response into an explicit
// status so callers make deliberate retry/skip decisions.
package fetch

import (
	"context"
	"net/http"
	"time"

	"github.com/akozlov/ricwatch/internal/proxy"
)

// Status classifies the outcome of a fetch.
type Status string

// Fetch outcome classes threaded through the retry loop.
const (
	StatusOK        Status = "ok"
	StatusBlocked   Status = "blocked"
	StatusNotFound  Status = "not_found"
	StatusTransient Status = "transient_error"
)

// Result is the outcome of fetching one URL. It is owned by the caller and
// never persisted.
type Result struct {
	URL        string
	FinalURL   string
	StatusCode int
	Body       []byte
	Status     Status
	Elapsed    time.Duration
	Rendered   bool
}

// Fetcher fetches a URL through the given proxy (zero-value proxy = direct).
// Implementations perform no retries of their own.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string, px proxy.Proxy) (Result, error)
}

// Config holds the knobs shared by both fetcher implementations.
type Config struct {
	UserAgent       string
	AcceptLanguage  string
	Timeout         time.Duration
	RenderTimeout   time.Duration
	RenderWaitFor   string // CSS selector to wait for before snapshotting
	RenderParallel  int
	RenderHostQPS   float64
	MaxIdleConns    int
	MaxConnsPerHost int
}

// Classify maps an HTTP status code and body onto a fetch Status. Challenge
// pages win over the status code: a 200 with a challenge body is blocked,
// never a valid empty result.
func Classify(statusCode int, body []byte) Status {
	if IsChallenge(body) {
		return StatusBlocked
	}
	switch {
	case statusCode == http.StatusForbidden, statusCode == http.StatusTooManyRequests:
		return StatusBlocked
	case statusCode == http.StatusNotFound, statusCode == http.StatusGone:
		return StatusNotFound
	case statusCode >= 500:
		return StatusTransient
	case statusCode >= 200 && statusCode < 400:
		return StatusOK
	default:
		return StatusTransient
	}
}
