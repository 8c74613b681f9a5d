// Package state persists the watcher's cross-run memory: the delivered
// ledger, the pending batch remainder, and the proxy rotation cursor.
package state

import (
	"context"
	"time"

	"github.com/akozlov/ricwatch/internal/market"
)

// Snapshot is everything a subscriber's watcher needs to survive a
// restart without re-delivering or losing buffered items.
type Snapshot struct {
	Ledger      []string      `json:"ledger"`
	Pending     []market.Item `json:"pending"`
	ProxyCursor int           `json:"proxy_cursor"`
	SavedAt     time.Time     `json:"saved_at"`
}

// Store loads and saves per-subscriber snapshots. Load's second return
// is false when no snapshot exists yet; that is not an error.
type Store interface {
	Load(ctx context.Context, subscriber string) (Snapshot, bool, error)
	Save(ctx context.Context, subscriber string, snap Snapshot) error
}
