package market

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/akozlov/ricwatch/internal/extract"
	"github.com/akozlov/ricwatch/internal/fetch"
	"github.com/akozlov/ricwatch/internal/proxy"
)

// Discoverer walks category search results newest-first and returns
// listing candidates published since a cutoff. Every Discover call
// restarts from the first page; there is no cross-call walk state.
type Discoverer struct {
	cfg      Config
	client   fetch.Fetcher
	renderer fetch.Fetcher
	pool     *proxy.Pool
	logger   *zap.Logger
}

// NewDiscoverer wires a discoverer. renderer may be nil, which disables
// the rendered fallback for challenge-walled categories.
func NewDiscoverer(cfg Config, client, renderer fetch.Fetcher, pool *proxy.Pool, logger *zap.Logger) *Discoverer {
	return &Discoverer{
		cfg:      cfg.withDefaults(),
		client:   client,
		renderer: renderer,
		pool:     pool,
		logger:   logger,
	}
}

// Discover returns candidates for the category, expanding the
// all-categories sentinel. A category that fails is skipped with a
// warning; the error surfaces only when no category produced anything.
func (d *Discoverer) Discover(ctx context.Context, cat CategoryRef, cutoff time.Time) ([]RawCandidate, error) {
	var out []RawCandidate
	var lastErr error
	for _, c := range cat.Expand() {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		cands, err := d.discoverCategory(ctx, c, cutoff)
		if err != nil {
			lastErr = err
			d.logger.Warn("category discovery failed",
				zap.String("category", c.Slug),
				zap.Error(err))
			continue
		}
		out = append(out, cands...)
	}
	if len(out) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return out, nil
}

func (d *Discoverer) discoverCategory(ctx context.Context, cat CategoryRef, cutoff time.Time) ([]RawCandidate, error) {
	var out []RawCandidate
	offset := 0
	for page := 0; page < d.cfg.MaxPages; page++ {
		res, err := fetchWithRotation(ctx, d.client, d.pool, d.logger, searchURL(d.cfg, cat, offset))
		if err != nil {
			if page == 0 {
				return d.renderedFallback(ctx, cat, cutoff, err)
			}
			return out, nil
		}
		if res.Status == fetch.StatusNotFound {
			return out, nil
		}
		payload, ok := parseSearchPage(res.Body)
		if !ok {
			if page == 0 {
				return d.renderedFallback(ctx, cat, cutoff, fmt.Errorf("search page for %s: not a JSON payload", cat.Slug))
			}
			return out, nil
		}
		rows := itemsList(payload)
		if len(rows) == 0 {
			return out, nil
		}
		for _, row := range rows {
			cand := candidateFrom(row, d.cfg.BaseURL)
			if beforeCutoff(cand.Published, cutoff) {
				// Descending order: everything after this row is older.
				return out, nil
			}
			if cand.URL == "" {
				continue
			}
			if d.cfg.FixedPriceOnly && !fixedPrice(row) {
				continue
			}
			out = append(out, cand)
		}
		offset = nextOffset(payload, offset, len(rows))
		if offset < 0 {
			return out, nil
		}
	}
	return out, nil
}

// renderedFallback mines the category's human listing page through the
// browser renderer when the search API is walled off or reshaped.
func (d *Discoverer) renderedFallback(ctx context.Context, cat CategoryRef, cutoff time.Time, cause error) ([]RawCandidate, error) {
	if d.renderer == nil {
		return nil, cause
	}
	d.logger.Info("falling back to rendered category page",
		zap.String("category", cat.Slug),
		zap.Error(cause))

	res, err := fetchWithRotation(ctx, d.renderer, d.pool, d.logger, cat.PageURL(d.cfg.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("rendered fallback for %s: %w", cat.Slug, err)
	}
	data, ok := extract.NextData(res.Body)
	if !ok {
		return nil, fmt.Errorf("rendered fallback for %s: no hydration payload", cat.Slug)
	}

	var out []RawCandidate
	for _, hint := range extract.ListingCandidates(data, d.cfg.BaseURL) {
		published := extract.ParseTime(hint.Published)
		if beforeCutoff(published, cutoff) {
			continue
		}
		if d.cfg.FixedPriceOnly && !hint.FixedPrice() {
			continue
		}
		out = append(out, RawCandidate{
			URL:       hint.URL,
			Title:     hint.Title,
			Price:     hint.Price,
			Image:     hint.Image,
			Published: published,
		})
	}
	return out, nil
}
