// Package watch runs the crawl cycle for each subscriber: discovery,
// resolution, the pipeline gates, batch delivery, and checkpointing, on
// a fixed polling schedule with an overlap guard.
package watch

import (
	"context"
	"time"

	"github.com/akozlov/ricwatch/internal/market"
)

// Clock abstracts time.Now for deterministic cycle tests.
type Clock interface {
	Now() time.Time
}

// Discoverer walks category listings newest-first since a cutoff.
type Discoverer interface {
	Discover(ctx context.Context, cat market.CategoryRef, cutoff time.Time) ([]market.RawCandidate, error)
}

// Resolver turns a candidate URL into a normalized item. ok=false is a
// skip, not a failure.
type Resolver interface {
	Resolve(ctx context.Context, candidateURL string) (market.Item, bool, error)
}

// Sink delivers one finished batch and returns where it went.
type Sink interface {
	Write(ctx context.Context, subscriber string, items []market.Item) (string, error)
}

// Subscriber is one watched query: a category, a freshness window, and a
// delivery quantum.
type Subscriber struct {
	Name           string
	Category       string
	Window         time.Duration
	BatchSize      int
	Interval       time.Duration
	BlockedSellers []string
}

// CycleResult summarizes one crawl cycle for the status surface.
type CycleResult struct {
	Subscriber string
	StartedAt  time.Time
	FinishedAt time.Time
	Discovered int
	NewItems   int
	Batches    []string
	Status     string
	Err        error
}
