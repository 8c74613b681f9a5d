package watch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	itemsDiscovered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ricwatch_items_discovered_total",
		Help: "Listing candidates discovered across all cycles.",
	})
	itemsAccepted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ricwatch_items_accepted_total",
		Help: "Items that passed every pipeline gate.",
	})
	batchesWritten = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ricwatch_batches_written_total",
		Help: "Full batches delivered to the sink.",
	})
	cycleFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ricwatch_cycle_failures_total",
		Help: "Crawl cycles that ended in a run-level failure.",
	})
)
