package pipeline

import "sync"

// DefaultLedgerCap bounds the delivered-URL ledger. Oldest entries are
// evicted first once the cap is reached.
const DefaultLedgerCap = 3000

// Tracker is the cross-run dedup ledger keyed by listing URL. Delivered
// URLs and currently pending URLs both count as seen.
type Tracker struct {
	mu      sync.Mutex
	cap     int
	order   []string
	seen    map[string]struct{}
	pending map[string]struct{}
}

// NewTracker builds a tracker with the given ledger cap; a non-positive
// cap falls back to DefaultLedgerCap.
func NewTracker(capacity int) *Tracker {
	if capacity <= 0 {
		capacity = DefaultLedgerCap
	}
	return &Tracker{
		cap:     capacity,
		seen:    make(map[string]struct{}),
		pending: make(map[string]struct{}),
	}
}

// IsNew reports whether the URL has been neither delivered nor buffered,
// and reserves it as pending when it is new.
func (t *Tracker) IsNew(url string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.seen[url]; ok {
		return false
	}
	if _, ok := t.pending[url]; ok {
		return false
	}
	t.pending[url] = struct{}{}
	return true
}

// MarkDelivered moves URLs into the durable ledger, evicting the oldest
// entries past the cap.
func (t *Tracker) MarkDelivered(urls []string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, url := range urls {
		delete(t.pending, url)
		if _, ok := t.seen[url]; ok {
			continue
		}
		t.seen[url] = struct{}{}
		t.order = append(t.order, url)
	}
	for len(t.order) > t.cap {
		delete(t.seen, t.order[0])
		t.order = t.order[1:]
	}
}

// Release drops pending reservations without delivering them, for items
// that fell out of the pipeline after the dedup gate.
func (t *Tracker) Release(urls []string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, url := range urls {
		delete(t.pending, url)
	}
}

// Snapshot returns the delivered ledger oldest-first for persistence.
func (t *Tracker) Snapshot() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}

// Restore replaces the ledger with a persisted one, re-applying the cap.
// Pending reservations are cleared; the buffer restores its own.
func (t *Tracker) Restore(ledger []string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(ledger) > t.cap {
		ledger = ledger[len(ledger)-t.cap:]
	}
	t.order = make([]string, 0, len(ledger))
	t.seen = make(map[string]struct{}, len(ledger))
	t.pending = make(map[string]struct{})
	for _, url := range ledger {
		if _, ok := t.seen[url]; ok {
			continue
		}
		t.seen[url] = struct{}{}
		t.order = append(t.order, url)
	}
}

// Len reports the delivered ledger size.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.order)
}
