package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// PGConfig controls the Postgres connection pool behind a PGStore.
type PGConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type querierCloser interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PGStore keeps snapshots as jsonb rows keyed by subscriber.
type PGStore struct {
	pool  querierCloser
	table string
}

// NewPGStore connects a pool from the config.
func NewPGStore(ctx context.Context, cfg PGConfig) (*PGStore, error) {
	if cfg.DSN == "" {
		return nil, errors.New("state.dsn is required")
	}
	table := cfg.Table
	if table == "" {
		table = "watch_state"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &PGStore{pool: pool, table: table}, nil
}

// NewPGStoreWithPool constructs a store from an existing pool (primarily
// for testing).
func NewPGStoreWithPool(pool querierCloser, table string) (*PGStore, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	if table == "" {
		table = "watch_state"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &PGStore{pool: pool, table: table}, nil
}

// Close releases the underlying pool resources.
func (s *PGStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Load reads the subscriber's snapshot row; ok is false when none exists.
func (s *PGStore) Load(ctx context.Context, subscriber string) (Snapshot, bool, error) {
	query := fmt.Sprintf(`SELECT snapshot FROM %s WHERE subscriber = $1`, s.table)
	var raw []byte
	if err := s.pool.QueryRow(ctx, query, subscriber).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Snapshot{}, false, nil
		}
		return Snapshot{}, false, fmt.Errorf("load state row: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return Snapshot{}, false, fmt.Errorf("decode state row: %w", err)
	}
	return snap, true, nil
}

// Save upserts the subscriber's snapshot row.
func (s *PGStore) Save(ctx context.Context, subscriber string, snap Snapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	query := fmt.Sprintf(`
INSERT INTO %s (subscriber, snapshot, updated_at)
VALUES ($1, $2, $3)
ON CONFLICT (subscriber) DO UPDATE
SET snapshot = EXCLUDED.snapshot, updated_at = EXCLUDED.updated_at`, s.table)
	if _, err := s.pool.Exec(ctx, query, subscriber, raw, time.Now().UTC()); err != nil {
		return fmt.Errorf("upsert state row: %w", err)
	}
	return nil
}
