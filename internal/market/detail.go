package market

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/akozlov/ricwatch/internal/extract"
	"github.com/akozlov/ricwatch/internal/fetch"
	"github.com/akozlov/ricwatch/internal/proxy"
)

// Resolver turns a candidate URL into a normalized Item by fetching the
// detail page and running the extraction strategies in priority order.
type Resolver struct {
	client     fetch.Fetcher
	renderer   fetch.Fetcher
	pool       *proxy.Pool
	strategies []extract.Strategy
	logger     *zap.Logger
}

// NewResolver wires a resolver. renderer may be nil; without it a
// challenge-walled detail page is skipped rather than rendered.
func NewResolver(client, renderer fetch.Fetcher, pool *proxy.Pool, logger *zap.Logger) *Resolver {
	return &Resolver{
		client:     client,
		renderer:   renderer,
		pool:       pool,
		strategies: extract.DefaultStrategies(),
		logger:     logger,
	}
}

// Resolve fetches and extracts one listing. ok is false when the page is
// gone or no strategy recovered a usable item; that is a skip, not an
// error. Seller identity stays empty when the page does not state it.
func (r *Resolver) Resolve(ctx context.Context, candidateURL string) (Item, bool, error) {
	res, err := fetchWithRotation(ctx, r.client, r.pool, r.logger, candidateURL)
	if err != nil {
		if r.renderer == nil {
			return Item{}, false, err
		}
		r.logger.Debug("rendering detail page after plain fetch failed",
			zap.String("url", candidateURL), zap.Error(err))
		res, err = fetchWithRotation(ctx, r.renderer, r.pool, r.logger, candidateURL)
		if err != nil {
			return Item{}, false, err
		}
	}
	if res.Status == fetch.StatusNotFound {
		return Item{}, false, nil
	}

	partial, ok := extract.Resolve(res.Body, r.strategies...)
	if !ok {
		r.logger.Debug("no strategy matched detail page", zap.String("url", candidateURL))
		return Item{}, false, nil
	}

	item := itemFrom(partial, res, candidateURL)
	if item.Title == "" || item.URL == "" {
		return Item{}, false, nil
	}
	return item, true, nil
}

func itemFrom(partial extract.Partial, res fetch.Result, candidateURL string) Item {
	item := Item{
		Title:       partial.Title,
		Price:       partial.Price,
		URL:         res.FinalURL,
		Description: partial.Description,
		SellerName:  partial.SellerName,
		SellerURL:   partial.SellerURL,
		Location:    partial.Location,
		PublishedAt: partial.PublishedAt,
	}
	if item.URL == "" {
		item.URL = candidateURL
	}
	if len(partial.Images) > 0 {
		item.Photo = partial.Images[0]
	}
	if partial.Currency != "" && item.Price != "" {
		item.Price = item.Price + " " + partial.Currency
	}
	return item
}

// Cutoff derives the freshness deadline for a lookback window ending now.
func Cutoff(now time.Time, window time.Duration) time.Time {
	return now.UTC().Add(-window)
}
