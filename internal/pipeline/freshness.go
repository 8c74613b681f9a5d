// Package pipeline holds the gates between raw resolved listings and a
// delivered batch: freshness, cross-run dedup, seller blocklists, and
// fixed-size batch accumulation.
package pipeline

import (
	"time"

	"github.com/akozlov/ricwatch/internal/market"
)

// FreshnessFilter rejects items published before a cutoff. Items without
// a publish time are accepted; extraction already did its best and a
// missing timestamp is not the item's fault.
type FreshnessFilter struct{}

// Accept reports whether the item is fresh enough. Comparisons are in
// UTC.
func (FreshnessFilter) Accept(item market.Item, cutoff time.Time) bool {
	if item.PublishedAt.IsZero() {
		return true
	}
	return !item.PublishedAt.UTC().Before(cutoff.UTC())
}
