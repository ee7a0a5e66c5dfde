package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"ytnotify/internal/app"
	"ytnotify/internal/config"
)

func newRunCmd() *cobra.Command {
	var stopTimeout time.Duration

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the watcher until SIGINT or SIGTERM",
		RunE: func(cmd *cobra.Command, args []string) error {
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
			defer signal.Stop(sigCh)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			a, err := app.New(ctx, config.NewManager(configPath))
			if err != nil {
				return fmt.Errorf("init: %w", err)
			}
			if err := a.Start(ctx); err != nil {
				return fmt.Errorf("start: %w", err)
			}

			reason := app.StopUnknown
			select {
			case sig := <-sigCh:
				reason = app.StopSIGINT
				if sig == syscall.SIGTERM {
					reason = app.StopSIGTERM
				}
			case <-a.Done():
				reason = app.StopFatalError
			}

			sctx, scancel := context.WithTimeout(context.Background(), stopTimeout)
			defer scancel()
			_ = a.Stop(sctx, reason)
			if reason == app.StopFatalError {
				return a.Err()
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&stopTimeout, "stop-timeout", 2*time.Minute, "Upper bound for the graceful shutdown")

	return cmd
}
