package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"ytnotify/internal/app"
	"ytnotify/internal/config"
	"ytnotify/internal/source"
	"ytnotify/internal/watcher"
	logx "ytnotify/pkg/logx"
)

func newCheckCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Run a single check cycle and print its outcome",
		Long: `check runs exactly one cycle against the configured state store.
With --dry-run it fetches and decides but neither notifies nor persists.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			cfg, err := config.NewManager(configPath).Load()
			if err != nil {
				return err
			}
			log := logx.NewConsole(cfg.Logging.Level)

			core, err := app.NewCore(ctx, cfg, log, nil)
			if err != nil {
				return err
			}
			defer core.Close()

			if dryRun {
				res, err := core.Watcher.Evaluate(ctx)
				if err != nil {
					return err
				}
				printResult(cmd.OutOrStdout(), res, true)
				return nil
			}
			res := core.Watcher.RunCycle(ctx)
			printResult(cmd.OutOrStdout(), res, false)
			if res.Err != nil && !errors.Is(res.Err, source.ErrNoResult) {
				return res.Err
			}
			return res.SaveErr
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Decide without notifying or saving")

	return cmd
}

func printResult(w io.Writer, res watcher.Result, dryRun bool) {
	mode := ""
	if dryRun {
		mode = " (dry run)"
	}
	fmt.Fprintf(w, "outcome: %s%s\n", res.Outcome, mode)
	if res.Candidate.ID != "" {
		fmt.Fprintf(w, "video:   %s %q\n", res.Candidate.ID, res.Candidate.Title)
		fmt.Fprintf(w, "published: %s\n", res.Candidate.PublishedAt.Format("2006-01-02 15:04:05 MST"))
	}
	if res.Err != nil {
		fmt.Fprintf(w, "error:   %v\n", res.Err)
	}
	if res.SaveErr != nil {
		fmt.Fprintf(w, "save:    %v\n", res.SaveErr)
	}
}
