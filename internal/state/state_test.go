package state

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/akozlov/ricwatch/internal/market"
)

func sampleSnapshot() Snapshot {
	return Snapshot{
		Ledger: []string{"https://www.ricardo.ch/de/a/item-1/", "https://www.ricardo.ch/de/a/item-2/"},
		Pending: []market.Item{
			{Title: "leftover", URL: "https://www.ricardo.ch/de/a/item-3/"},
		},
		ProxyCursor: 2,
		SavedAt:     time.Date(2026, 2, 11, 12, 0, 0, 0, time.UTC),
	}
}

func TestFileStoreRoundtrip(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	_, ok, err := store.Load(ctx, "alice")
	require.NoError(t, err)
	require.False(t, ok, "missing snapshot is not an error")

	want := sampleSnapshot()
	require.NoError(t, store.Save(ctx, "alice", want))

	got, ok, err := store.Load(ctx, "alice")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, want.Ledger, got.Ledger)
	require.Equal(t, want.Pending, got.Pending)
	require.Equal(t, want.ProxyCursor, got.ProxyCursor)
}

func TestFileStoreIsolatesSubscribers(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, store.Save(ctx, "alice", sampleSnapshot()))

	_, ok, err := store.Load(ctx, "bob")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestFileStoreSanitizesSubscriberName(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, store.Save(ctx, "../../etc/passwd", sampleSnapshot()))
	_, ok, err := store.Load(ctx, "../../etc/passwd")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestPGStoreSaveUpsertsRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewPGStoreWithPool(mock, "watch_state")
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO watch_state").
		WithArgs("alice", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.Save(context.Background(), "alice", sampleSnapshot()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPGStoreLoadMissingRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewPGStoreWithPool(mock, "watch_state")
	require.NoError(t, err)

	mock.ExpectQuery("SELECT snapshot FROM watch_state").
		WithArgs("bob").
		WillReturnError(pgx.ErrNoRows)

	_, ok, err := store.Load(context.Background(), "bob")
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPGStoreLoadDecodesRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewPGStoreWithPool(mock, "watch_state")
	require.NoError(t, err)

	raw := []byte(`{"ledger":["u1"],"pending":[],"proxy_cursor":1}`)
	mock.ExpectQuery("SELECT snapshot FROM watch_state").
		WithArgs("alice").
		WillReturnRows(pgxmock.NewRows([]string{"snapshot"}).AddRow(raw))

	snap, ok, err := store.Load(context.Background(), "alice")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []string{"u1"}, snap.Ledger)
	require.Equal(t, 1, snap.ProxyCursor)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPGStoreRejectsBadTableName(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewPGStoreWithPool(mock, "watch_state; DROP TABLE users")
	require.Error(t, err)
}
