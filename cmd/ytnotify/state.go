package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"ytnotify/internal/config"
	"ytnotify/internal/storage"
	logx "ytnotify/pkg/logx"
)

func newStateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "state",
		Short: "Print the persisted dedup record",
		RunE: func(cmd *cobra.Command, args []string) error {
			// Only the storage section matters here, so credentials need not
			// be configured.
			m := config.NewManager(configPath)
			cfg, err := m.Parse()
			if err != nil {
				return err
			}
			config.ApplyEnv(cfg, nil)
			config.ApplyDefaults(cfg)

			store, err := storage.Open(storage.Config{
				Driver: cfg.Storage.Driver,
				Path:   cfg.Storage.Path,
			}, logx.Nop())
			if err != nil {
				return err
			}
			defer store.Close()

			st, err := store.Load(context.Background())
			if err != nil {
				return fmt.Errorf("load state: %w", err)
			}
			b, err := storage.MarshalState(st)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(b))
			return nil
		},
	}
}
