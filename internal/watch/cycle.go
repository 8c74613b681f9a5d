package watch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/akozlov/ricwatch/internal/market"
	"github.com/akozlov/ricwatch/internal/pipeline"
	"github.com/akozlov/ricwatch/internal/proxy"
	"github.com/akozlov/ricwatch/internal/state"
)

// RunnerConfig carries the cycle defaults applied when a subscriber
// leaves a knob unset.
type RunnerConfig struct {
	DefaultWindow    time.Duration
	DefaultBatchSize int
	LedgerCap        int
	SharedBlocklist  []string
}

// Runner executes crawl cycles. Per-subscriber pipeline state (dedup
// ledger, batch buffer) lives in memory between cycles and is
// checkpointed through the state store at the end of each clean cycle.
type Runner struct {
	cfg        RunnerConfig
	discoverer Discoverer
	resolver   Resolver
	sink       Sink
	store      state.Store
	pool       *proxy.Pool
	clock      Clock
	logger     *zap.Logger

	mu   sync.Mutex
	subs map[string]*subscriberState
}

type subscriberState struct {
	tracker   *pipeline.Tracker
	buffer    *pipeline.Buffer
	blocklist *pipeline.SellerBlocklist
	freshness pipeline.FreshnessFilter
	loaded    bool
}

// NewRunner wires a cycle runner.
func NewRunner(cfg RunnerConfig, discoverer Discoverer, resolver Resolver, sink Sink, store state.Store, pool *proxy.Pool, clock Clock, logger *zap.Logger) *Runner {
	if cfg.DefaultWindow <= 0 {
		cfg.DefaultWindow = 24 * time.Hour
	}
	if cfg.DefaultBatchSize <= 0 {
		cfg.DefaultBatchSize = pipeline.DefaultBatchSize
	}
	return &Runner{
		cfg:        cfg,
		discoverer: discoverer,
		resolver:   resolver,
		sink:       sink,
		store:      store,
		pool:       pool,
		clock:      clock,
		logger:     logger,
		subs:       make(map[string]*subscriberState),
	}
}

// RunCycle performs one full crawl for the subscriber. A run-level
// failure or an aborted context leaves the persisted state untouched, so
// the next cycle re-discovers the same ground.
func (r *Runner) RunCycle(ctx context.Context, sub Subscriber) CycleResult {
	res := CycleResult{
		Subscriber: sub.Name,
		StartedAt:  r.clock.Now(),
	}
	log := r.logger.With(zap.String("subscriber", sub.Name))

	st, err := r.stateFor(ctx, sub)
	if err != nil {
		return r.fail(res, log, fmt.Errorf("load state: %w", err))
	}

	window := sub.Window
	if window <= 0 {
		window = r.cfg.DefaultWindow
	}
	cutoff := res.StartedAt.Add(-window)

	cands, err := r.discoverer.Discover(ctx, market.ParseCategory(sub.Category), cutoff)
	if err != nil {
		return r.fail(res, log, fmt.Errorf("discover: %w", err))
	}
	res.Discovered = len(cands)
	itemsDiscovered.Add(float64(len(cands)))

	for _, cand := range cands {
		if ctx.Err() != nil {
			return r.fail(res, log, ctx.Err())
		}
		if !st.tracker.IsNew(cand.URL) {
			continue
		}
		item, ok, err := r.resolver.Resolve(ctx, cand.URL)
		if err != nil {
			// Transient; release so a later cycle retries the URL.
			st.tracker.Release([]string{cand.URL})
			log.Warn("resolve failed", zap.String("url", cand.URL), zap.Error(err))
			continue
		}
		if !ok {
			continue
		}
		item = backfillFromCandidate(item, cand)
		if !st.freshness.Accept(item, cutoff) {
			continue
		}
		if st.blocklist.IsBlocked(item.SellerName) {
			log.Debug("seller blocked", zap.String("seller", item.SellerName), zap.String("url", item.URL))
			continue
		}
		st.buffer.Add(item)
		res.NewItems++
		itemsAccepted.Inc()
	}

	for {
		batch, ok := st.buffer.FlushReady()
		if !ok {
			break
		}
		path, err := r.sink.Write(ctx, sub.Name, batch)
		if err != nil {
			// Put the batch back in front of the remainder and stop
			// flushing; nothing was marked delivered.
			st.buffer.RestorePending(append(batch, st.buffer.Pending()...))
			return r.fail(res, log, fmt.Errorf("write batch: %w", err))
		}
		st.tracker.MarkDelivered(itemURLs(batch))
		res.Batches = append(res.Batches, path)
		batchesWritten.Inc()
		log.Info("batch delivered", zap.String("path", path), zap.Int("items", len(batch)))
	}

	if ctx.Err() != nil {
		return r.fail(res, log, ctx.Err())
	}
	if err := r.checkpoint(ctx, sub.Name, st); err != nil {
		return r.fail(res, log, fmt.Errorf("checkpoint: %w", err))
	}

	res.FinishedAt = r.clock.Now()
	if res.NewItems == 0 {
		res.Status = "no new items"
	} else {
		res.Status = fmt.Sprintf("%d new items, %d batches, %d pending", res.NewItems, len(res.Batches), st.buffer.Len())
	}
	log.Info("cycle finished",
		zap.Int("discovered", res.Discovered),
		zap.Int("new_items", res.NewItems),
		zap.Int("batches", len(res.Batches)),
		zap.Int("pending", st.buffer.Len()))
	return res
}

func (r *Runner) fail(res CycleResult, log *zap.Logger, err error) CycleResult {
	res.FinishedAt = r.clock.Now()
	res.Err = err
	res.Status = "crawl failed: " + err.Error()
	cycleFailures.Inc()
	log.Error("cycle failed", zap.Error(err))
	return res
}

// stateFor returns the subscriber's pipeline state, restoring it from
// the store on first use.
func (r *Runner) stateFor(ctx context.Context, sub Subscriber) (*subscriberState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, ok := r.subs[sub.Name]
	if !ok {
		batchSize := sub.BatchSize
		if batchSize <= 0 {
			batchSize = r.cfg.DefaultBatchSize
		}
		st = &subscriberState{
			tracker:   pipeline.NewTracker(r.cfg.LedgerCap),
			buffer:    pipeline.NewBuffer(batchSize),
			blocklist: pipeline.NewSellerBlocklist(r.cfg.SharedBlocklist, sub.BlockedSellers),
		}
		r.subs[sub.Name] = st
	}
	if st.loaded {
		return st, nil
	}

	snap, found, err := r.store.Load(ctx, sub.Name)
	if err != nil {
		return nil, err
	}
	if found {
		st.tracker.Restore(snap.Ledger)
		st.buffer.RestorePending(snap.Pending)
		for _, item := range snap.Pending {
			st.tracker.IsNew(item.URL) // re-reserve buffered URLs
		}
		r.pool.SetCursor(snap.ProxyCursor)
	}
	st.loaded = true
	return st, nil
}

func (r *Runner) checkpoint(ctx context.Context, subscriber string, st *subscriberState) error {
	return r.store.Save(ctx, subscriber, state.Snapshot{
		Ledger:      st.tracker.Snapshot(),
		Pending:     st.buffer.Pending(),
		ProxyCursor: r.pool.Cursor(),
		SavedAt:     r.clock.Now(),
	})
}

// backfillFromCandidate fills fields the detail page did not yield from
// the listing-row hints. Nothing already extracted is overwritten.
func backfillFromCandidate(item market.Item, cand market.RawCandidate) market.Item {
	if item.Title == "" {
		item.Title = cand.Title
	}
	if item.Price == "" {
		item.Price = cand.Price
	}
	if item.Photo == "" {
		item.Photo = cand.Image
	}
	if item.PublishedAt.IsZero() {
		item.PublishedAt = cand.Published
	}
	return item
}

func itemURLs(items []market.Item) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.URL
	}
	return out
}
