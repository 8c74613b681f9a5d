package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/akozlov/ricwatch/internal/proxy"
)

// Client is the lightweight HTTP fetcher backed by the Colly collector.
type Client struct {
	baseCollector  *colly.Collector
	acceptLanguage string
	logger         *zap.Logger
}

// NewClient constructs a configured Colly-based Fetcher.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	base := colly.NewCollector(
		colly.UserAgent(cfg.UserAgent),
		colly.Async(true),
	)
	base.AllowURLRevisit = true
	base.WithTransport(&http.Transport{
		MaxIdleConns:          maxInt(cfg.MaxIdleConns, 32),
		MaxConnsPerHost:       maxInt(cfg.MaxConnsPerHost, 8),
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: cfg.Timeout,
		ForceAttemptHTTP2:     true,
	})
	base.SetRequestTimeout(cfg.Timeout)

	return &Client{
		baseCollector:  base,
		acceptLanguage: cfg.AcceptLanguage,
		logger:         logger,
	}
}

// Fetch retrieves a page through the given proxy. Transport failures come
// back as StatusTransient with the underlying error; challenge pages and
// deny-status responses come back as StatusBlocked with a nil error so the
// caller can rotate proxies deliberately.
func (c *Client) Fetch(ctx context.Context, rawURL string, px proxy.Proxy) (Result, error) {
	collector := c.baseCollector.Clone()
	if !px.IsDirect() {
		if err := collector.SetProxy(px.URL()); err != nil {
			return Result{URL: rawURL, Status: StatusTransient}, fmt.Errorf("set proxy: %w", err)
		}
	}

	resultCh := make(chan fetchOutcome, 1)
	var once sync.Once
	send := func(out fetchOutcome) {
		once.Do(func() {
			resultCh <- out
		})
	}

	collector.OnRequest(func(r *colly.Request) {
		if c.acceptLanguage != "" {
			r.Headers.Set("Accept-Language", c.acceptLanguage)
		}
		r.Headers.Set("Accept", "text/html,application/json;q=0.9,*/*;q=0.8")
	})

	collector.OnResponse(func(r *colly.Response) {
		send(fetchOutcome{result: Result{
			URL:        rawURL,
			FinalURL:   r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Body:       append([]byte{}, r.Body...),
			Status:     Classify(r.StatusCode, r.Body),
		}})
	})

	collector.OnError(func(r *colly.Response, err error) {
		if err == nil {
			err = errors.New("unknown colly error")
		}
		out := fetchOutcome{err: err, result: Result{URL: rawURL, Status: StatusTransient}}
		if r != nil && r.StatusCode > 0 {
			out.result.StatusCode = r.StatusCode
			out.result.Body = append([]byte{}, r.Body...)
			out.result.Status = Classify(r.StatusCode, r.Body)
			if out.result.Status != StatusTransient {
				out.err = nil
			}
		}
		send(out)
	})

	started := time.Now()
	requestsTotal.Inc()
	if err := collector.Visit(rawURL); err != nil {
		requestErrorsTotal.Inc()
		return Result{URL: rawURL, Status: StatusTransient}, fmt.Errorf("visit %s: %w", rawURL, err)
	}

	done := make(chan struct{})
	go func() {
		collector.Wait()
		close(done)
	}()

	// The in-flight request is abandoned on cancellation; the collector
	// goroutine drains on its own once the transport gives up.
	select {
	case <-ctx.Done():
		requestErrorsTotal.Inc()
		return Result{URL: rawURL, Status: StatusTransient}, ctx.Err()
	case <-done:
	}

	select {
	case out := <-resultCh:
		out.result.Elapsed = time.Since(started)
		c.observe(out.result)
		if out.err != nil {
			requestErrorsTotal.Inc()
			return out.result, fmt.Errorf("fetch %s: %w", rawURL, out.err)
		}
		return out.result, nil
	default:
		requestErrorsTotal.Inc()
		return Result{URL: rawURL, Status: StatusTransient}, errors.New("colly fetch produced no result")
	}
}

func (c *Client) observe(res Result) {
	if res.Status == StatusBlocked {
		blockedTotal.Inc()
		c.logger.Warn("blocked response",
			zap.String("url", res.URL),
			zap.Int("status_code", res.StatusCode),
		)
	}
}

type fetchOutcome struct {
	result Result
	err    error
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
