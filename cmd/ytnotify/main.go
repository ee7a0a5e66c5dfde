// Package main is the ytnotify command: a daemon that relays new videos of a
// YouTube channel to a Telegram chat, plus one-shot maintenance commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"ytnotify/internal/config"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
)

// Global flags.
var (
	configPath string
	envFiles   []string
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "ytnotify",
		Short: "Relay new YouTube uploads to Telegram",
		Long: `ytnotify polls one YouTube channel and posts every new upload to a
Telegram chat exactly once. The last announced video is kept in a durable
state store so restarts never re-announce old content.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return config.LoadDotEnv(envFiles...)
		},
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a JSON or YAML config file (optional)")
	root.PersistentFlags().StringSliceVar(&envFiles, "env-file", []string{".env"}, "Dotenv files loaded before the environment is read")

	root.AddCommand(newRunCmd())
	root.AddCommand(newCheckCmd())
	root.AddCommand(newStateCmd())
	root.AddCommand(newVersionCmd())

	return root
}

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
