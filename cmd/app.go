package cmd

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/akozlov/ricwatch/internal/clock/system"
	"github.com/akozlov/ricwatch/internal/config"
	"github.com/akozlov/ricwatch/internal/fetch"
	"github.com/akozlov/ricwatch/internal/logging"
	"github.com/akozlov/ricwatch/internal/market"
	"github.com/akozlov/ricwatch/internal/proxy"
	"github.com/akozlov/ricwatch/internal/state"
	"github.com/akozlov/ricwatch/internal/watch"
)

// app holds every wired service a command needs.
type app struct {
	cfg    config.Config
	logger *zap.Logger
	pool   *proxy.Pool
	runner *watch.Runner
	store  state.Store
	close  func()
}

func newApp(ctx context.Context, cfgPath string) (*app, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	lines, err := cfg.ProxyLines()
	if err != nil {
		return nil, err
	}
	pool := proxy.NewPool(lines)
	logger.Info("proxy pool ready", zap.Int("proxies", pool.Len()))

	fetchCfg := cfg.FetchSettings()
	client := fetch.NewClient(fetchCfg, logger)

	var renderer fetch.Fetcher
	if cfg.Render.Enabled {
		r, err := fetch.NewRenderer(fetchCfg, logger)
		if err != nil && !errors.Is(err, fetch.ErrRendererDisabled) {
			return nil, fmt.Errorf("init renderer: %w", err)
		}
		if r != nil {
			renderer = r
		}
	}

	var store state.Store
	var closeStore func()
	switch cfg.State.Backend {
	case "postgres":
		pg, err := state.NewPGStore(ctx, state.PGConfig{DSN: cfg.State.DSN, Table: cfg.State.Table})
		if err != nil {
			return nil, err
		}
		store = pg
		closeStore = pg.Close
	default:
		fs, err := state.NewFileStore(cfg.State.Dir)
		if err != nil {
			return nil, err
		}
		store = fs
	}

	clock := system.New()
	sink, err := watch.NewFileSink(cfg.Watch.ResultsDir, clock)
	if err != nil {
		return nil, err
	}

	marketCfg := cfg.MarketSettings()
	discoverer := market.NewDiscoverer(marketCfg, client, renderer, pool, logger)
	resolver := market.NewResolver(client, renderer, pool, logger)
	runner := watch.NewRunner(cfg.RunnerSettings(), discoverer, resolver, sink, store, pool, clock, logger)

	return &app{
		cfg:    cfg,
		logger: logger,
		pool:   pool,
		runner: runner,
		store:  store,
		close: func() {
			if closeStore != nil {
				closeStore()
			}
			_ = logger.Sync()
		},
	}, nil
}
