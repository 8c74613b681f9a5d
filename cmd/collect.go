package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/akozlov/ricwatch/internal/watch"
)

func newCollectCmd() *cobra.Command {
	var subscriberName string
	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Run one crawl cycle for one subscriber and print the result.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfgFile)
			if err != nil {
				return err
			}
			defer a.close()

			var sub *watch.Subscriber
			for _, s := range a.cfg.WatchSubscribers() {
				if s.Name == subscriberName {
					sub = &s
					break
				}
			}
			if sub == nil {
				return fmt.Errorf("subscriber %q is not configured", subscriberName)
			}

			res := a.runner.RunCycle(ctx, *sub)
			if res.Err != nil {
				return res.Err
			}
			cmd.Printf("%s\n", res.Status)
			for _, path := range res.Batches {
				cmd.Printf("batch: %s\n", path)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&subscriberName, "subscriber", "", "subscriber name from the config")
	_ = cmd.MarkFlagRequired("subscriber")
	return cmd
}
