package pipeline

import (
	"sync"

	"github.com/akozlov/ricwatch/internal/market"
)

// DefaultBatchSize is the delivery quantum when a subscriber does not
// configure one.
const DefaultBatchSize = 30

// Buffer accumulates items across runs and releases them in fixed-size
// FIFO batches. Undersized remainders stay buffered for the next run.
type Buffer struct {
	mu         sync.Mutex
	targetSize int
	items      []market.Item
}

// NewBuffer builds a buffer; a non-positive target falls back to
// DefaultBatchSize.
func NewBuffer(targetSize int) *Buffer {
	if targetSize <= 0 {
		targetSize = DefaultBatchSize
	}
	return &Buffer{targetSize: targetSize}
}

// Add appends items in arrival order.
func (b *Buffer) Add(items ...market.Item) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items = append(b.items, items...)
}

// FlushReady pops exactly one full batch in FIFO order, or reports false
// when fewer than targetSize items are buffered. Call repeatedly to drain
// multiple full batches.
func (b *Buffer) FlushReady() ([]market.Item, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.items) < b.targetSize {
		return nil, false
	}
	batch := make([]market.Item, b.targetSize)
	copy(batch, b.items[:b.targetSize])
	b.items = b.items[b.targetSize:]
	return batch, true
}

// SetTargetSize changes the batch size and clears the buffer; items
// accumulated under the old size are discarded rather than resliced.
func (b *Buffer) SetTargetSize(n int) {
	if n <= 0 {
		n = DefaultBatchSize
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.targetSize = n
	b.items = nil
}

// TargetSize reports the current batch size.
func (b *Buffer) TargetSize() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.targetSize
}

// Pending returns a copy of the buffered remainder for persistence.
func (b *Buffer) Pending() []market.Item {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]market.Item, len(b.items))
	copy(out, b.items)
	return out
}

// RestorePending replaces the buffer contents from a persisted snapshot.
func (b *Buffer) RestorePending(items []market.Item) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items = make([]market.Item, len(items))
	copy(b.items, items)
}

// Len reports the buffered item count.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}
