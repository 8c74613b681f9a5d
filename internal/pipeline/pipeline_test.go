package pipeline

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/akozlov/ricwatch/internal/market"
)

func makeItems(n int) []market.Item {
	out := make([]market.Item, n)
	for i := range out {
		out[i] = market.Item{
			Title: fmt.Sprintf("item %d", i),
			URL:   fmt.Sprintf("https://www.ricardo.ch/de/a/item-%d/", i),
		}
	}
	return out
}

func TestFreshnessWindow(t *testing.T) {
	now := time.Date(2026, 2, 11, 12, 0, 0, 0, time.UTC)
	item := market.Item{Title: "old enough", PublishedAt: now.Add(-13 * time.Hour)}

	var filter FreshnessFilter
	require.False(t, filter.Accept(item, now.Add(-12*time.Hour)), "13h old item fails a 12h window")
	require.True(t, filter.Accept(item, now.Add(-24*time.Hour)), "13h old item passes a 24h window")
}

func TestFreshnessMissingTimestampAccepted(t *testing.T) {
	var filter FreshnessFilter
	require.True(t, filter.Accept(market.Item{Title: "no date"}, time.Now()))
}

func TestFreshnessExactCutoff(t *testing.T) {
	cutoff := time.Date(2026, 2, 11, 0, 0, 0, 0, time.UTC)
	var filter FreshnessFilter
	require.True(t, filter.Accept(market.Item{PublishedAt: cutoff}, cutoff))
}

func TestTrackerDedup(t *testing.T) {
	tr := NewTracker(0)
	require.True(t, tr.IsNew("https://x/a"))
	require.False(t, tr.IsNew("https://x/a"), "pending counts as seen")

	tr.MarkDelivered([]string{"https://x/a"})
	require.False(t, tr.IsNew("https://x/a"), "delivered counts as seen")
	require.True(t, tr.IsNew("https://x/b"))
}

func TestTrackerRelease(t *testing.T) {
	tr := NewTracker(0)
	require.True(t, tr.IsNew("https://x/a"))
	tr.Release([]string{"https://x/a"})
	require.True(t, tr.IsNew("https://x/a"), "released URLs may be seen again")
}

func TestTrackerCapEvictsOldest(t *testing.T) {
	tr := NewTracker(3)
	tr.MarkDelivered([]string{"u1", "u2", "u3", "u4"})
	require.Equal(t, 3, tr.Len())
	require.Equal(t, []string{"u2", "u3", "u4"}, tr.Snapshot())
	require.True(t, tr.IsNew("u1"), "evicted URL is new again")
}

func TestTrackerSnapshotRestore(t *testing.T) {
	tr := NewTracker(0)
	tr.MarkDelivered([]string{"u1", "u2"})

	restored := NewTracker(0)
	restored.Restore(tr.Snapshot())
	require.False(t, restored.IsNew("u1"))
	require.False(t, restored.IsNew("u2"))
	require.True(t, restored.IsNew("u3"))
}

func TestTrackerRestoreAppliesCap(t *testing.T) {
	tr := NewTracker(2)
	tr.Restore([]string{"u1", "u2", "u3"})
	require.Equal(t, []string{"u2", "u3"}, tr.Snapshot())
}

func TestBufferBatchingRemainder(t *testing.T) {
	buf := NewBuffer(30)
	buf.Add(makeItems(45)...)

	batch, ok := buf.FlushReady()
	require.True(t, ok)
	require.Len(t, batch, 30)
	require.Equal(t, "item 0", batch[0].Title)
	require.Equal(t, "item 29", batch[29].Title)

	_, ok = buf.FlushReady()
	require.False(t, ok, "15 leftovers are below target")
	require.Equal(t, 15, buf.Len())
	require.Equal(t, "item 30", buf.Pending()[0].Title)
}

func TestBufferDrainsMultipleBatches(t *testing.T) {
	buf := NewBuffer(10)
	buf.Add(makeItems(25)...)

	var batches int
	for {
		_, ok := buf.FlushReady()
		if !ok {
			break
		}
		batches++
	}
	require.Equal(t, 2, batches)
	require.Equal(t, 5, buf.Len())
}

func TestBufferSetTargetSizeClears(t *testing.T) {
	buf := NewBuffer(10)
	buf.Add(makeItems(7)...)
	buf.SetTargetSize(5)
	require.Equal(t, 0, buf.Len(), "resize discards accumulated items")
	require.Equal(t, 5, buf.TargetSize())
}

func TestBufferRestorePending(t *testing.T) {
	buf := NewBuffer(10)
	buf.Add(makeItems(4)...)

	restored := NewBuffer(10)
	restored.RestorePending(buf.Pending())
	require.Equal(t, 4, restored.Len())

	restored.Add(makeItems(6)...)
	batch, ok := restored.FlushReady()
	require.True(t, ok)
	require.Equal(t, "item 0", batch[0].Title, "restored items flush first")
}

func TestSellerBlocklist(t *testing.T) {
	bl := NewSellerBlocklist([]string{"Spammer99", "drop*"}, []string{"reseller-hub"})
	require.True(t, bl.IsBlocked("spammer99"))
	require.True(t, bl.IsBlocked("  SPAMMER99 "))
	require.True(t, bl.IsBlocked("dropshipper-ch"))
	require.True(t, bl.IsBlocked("reseller-hub"))
	require.False(t, bl.IsBlocked("honest-seller"))
	require.False(t, bl.IsBlocked(""))
}

func TestSellerBlocklistEmptyIsNil(t *testing.T) {
	var bl *SellerBlocklist
	require.False(t, bl.IsBlocked("anyone"))
	require.Nil(t, NewSellerBlocklist(nil, []string{"  "}))
}
