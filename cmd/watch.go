package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/akozlov/ricwatch/internal/api"
	"github.com/akozlov/ricwatch/internal/watch"
)

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Run the polling scheduler and status API until interrupted.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfgFile)
			if err != nil {
				return err
			}
			defer a.close()

			subs := a.cfg.WatchSubscribers()
			if len(subs) == 0 {
				return errors.New("no subscribers configured")
			}

			scheduler := watch.NewScheduler(ctx, a.runner, a.logger)
			for _, sub := range subs {
				if err := scheduler.Add(sub); err != nil {
					return err
				}
			}
			scheduler.Start()
			defer scheduler.Stop()

			server := &http.Server{
				Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
				Handler:           api.NewServer(scheduler, a.pool, a.logger).Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}
			errCh := make(chan error, 1)
			go func() {
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
			}()
			a.logger.Info("watcher running",
				zap.Int("subscribers", len(subs)),
				zap.Int("port", a.cfg.Server.Port))

			select {
			case <-ctx.Done():
			case err := <-errCh:
				return fmt.Errorf("status server: %w", err)
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				a.logger.Warn("status server shutdown", zap.Error(err))
			}
			return nil
		},
	}
}
