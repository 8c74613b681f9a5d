package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/akozlov/ricwatch/internal/proxy"
)

// ErrRendererDisabled indicates rendering has been disabled via configuration.
var ErrRendererDisabled = errors.New("renderer disabled")

const defaultWaitSelector = `script#__NEXT_DATA__`

// Renderer fetches pages with headless Chrome via chromedp so that
// client-side hydration payloads are present in the snapshot. Each fetch
// launches its own browser because the proxy is an allocator-level setting
// and rotates per request.
type Renderer struct {
	userAgent    string
	waitFor      string
	timeout      time.Duration
	sem          chan struct{}
	hostQPS      float64
	hostLimiters sync.Map
	logger       *zap.Logger
	newAllocator func(ctx context.Context, px proxy.Proxy) (context.Context, context.CancelFunc)
}

// NewRenderer creates a renderer using the provided configuration.
func NewRenderer(cfg Config, logger *zap.Logger) (*Renderer, error) {
	if cfg.RenderParallel <= 0 {
		return nil, ErrRendererDisabled
	}
	waitFor := cfg.RenderWaitFor
	if waitFor == "" {
		waitFor = defaultWaitSelector
	}
	r := &Renderer{
		userAgent: cfg.UserAgent,
		waitFor:   waitFor,
		timeout:   cfg.RenderTimeout,
		sem:       make(chan struct{}, cfg.RenderParallel),
		hostQPS:   cfg.RenderHostQPS,
		logger:    logger,
	}
	r.newAllocator = r.execAllocator
	return r, nil
}

func (r *Renderer) execAllocator(ctx context.Context, px proxy.Proxy) (context.Context, context.CancelFunc) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.UserAgent(r.userAgent),
	)
	if !px.IsDirect() {
		// Chrome takes the proxy without credentials; authenticated proxies
		// should use the lightweight client instead.
		opts = append(opts, chromedp.ProxyServer(px.Scheme+"://"+px.Host))
	}
	return chromedp.NewExecAllocator(ctx, opts...)
}

// Fetch navigates the URL, waits for the hydration payload to appear, and
// returns the DOM snapshot. A missing hydration script is tolerated: the
// snapshot is taken anyway and classification decides what it is worth.
func (r *Renderer) Fetch(ctx context.Context, rawURL string, px proxy.Proxy) (Result, error) {
	if r == nil {
		return Result{}, ErrRendererDisabled
	}

	release, err := r.acquireSlot(ctx)
	if err != nil {
		return Result{URL: rawURL, Status: StatusTransient}, err
	}
	defer release()

	if waitErr := r.waitHostBudget(ctx, rawURL); waitErr != nil {
		return Result{URL: rawURL, Status: StatusTransient}, fmt.Errorf("render rate limit: %w", waitErr)
	}

	allocCtx, cancelAlloc := r.newAllocator(ctx, px)
	defer cancelAlloc()
	tabCtx, cancelTab := chromedp.NewContext(allocCtx)
	defer cancelTab()

	taskCtx, cancelTask := context.WithTimeout(tabCtx, r.timeout)
	defer cancelTask()

	meta := newResponseMeta()
	r.recordResponse(tabCtx, meta)

	started := time.Now()
	requestsTotal.Inc()
	html, err := r.runChromedp(taskCtx, rawURL)
	elapsed := time.Since(started)
	if err != nil {
		requestErrorsTotal.Inc()
		return Result{URL: rawURL, Status: StatusTransient, Elapsed: elapsed},
			fmt.Errorf("chromedp run: %w", err)
	}

	body := []byte(html)
	statusCode := meta.statusCode
	if statusCode == 0 {
		statusCode = http.StatusOK
	}
	res := Result{
		URL:        rawURL,
		FinalURL:   meta.finalURL(rawURL),
		StatusCode: statusCode,
		Body:       body,
		Status:     Classify(statusCode, body),
		Elapsed:    elapsed,
		Rendered:   true,
	}
	if res.Status == StatusBlocked {
		blockedTotal.Inc()
		r.logger.Warn("challenge page from renderer", zap.String("url", rawURL))
	}
	return res, nil
}

func (r *Renderer) runChromedp(ctx context.Context, rawURL string) (string, error) {
	var html string
	tasks := chromedp.Tasks{
		network.Enable(),
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
	}
	if err := chromedp.Run(ctx, tasks); err != nil {
		return "", err
	}

	// Best-effort wait for the hydration script; pages without one still
	// produce a usable snapshot.
	waitCtx, cancel := context.WithTimeout(ctx, r.timeout/2)
	if err := chromedp.Run(waitCtx, chromedp.WaitReady(r.waitFor, chromedp.ByQuery)); err != nil {
		r.logger.Debug("hydration script did not appear", zap.String("url", rawURL), zap.Error(err))
	}
	cancel()

	if err := chromedp.Run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return html, nil
}

func (r *Renderer) acquireSlot(ctx context.Context) (func(), error) {
	select {
	case r.sem <- struct{}{}:
		return func() { <-r.sem }, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("acquire render slot: %w", ctx.Err())
	}
}

func (r *Renderer) waitHostBudget(ctx context.Context, rawURL string) error {
	if r.hostQPS <= 0 {
		return nil
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parse render url: %w", err)
	}
	host := strings.ToLower(parsed.Host)
	val, _ := r.hostLimiters.LoadOrStore(host, rate.NewLimiter(rate.Limit(r.hostQPS), 1))
	limiter, ok := val.(*rate.Limiter)
	if !ok {
		return fmt.Errorf("unexpected limiter type %T", val)
	}
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("wait limiter: %w", err)
	}
	return nil
}

type responseMeta struct {
	once       sync.Once
	statusCode int
	url        string
}

func newResponseMeta() *responseMeta {
	return &responseMeta{}
}

func (m *responseMeta) finalURL(raw string) string {
	if m.url == "" {
		return raw
	}
	return m.url
}

func (r *Renderer) recordResponse(tabCtx context.Context, meta *responseMeta) {
	chromedp.ListenTarget(tabCtx, func(ev interface{}) {
		resp, ok := ev.(*network.EventResponseReceived)
		if !ok || resp.Type != network.ResourceTypeDocument {
			return
		}
		meta.once.Do(func() {
			meta.statusCode = int(resp.Response.Status)
			meta.url = resp.Response.URL
		})
	})
}
