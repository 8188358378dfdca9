// ABOUTME: Root Cobra command and global flags
// ABOUTME: Opens config, store, and sync engine before subcommands run

package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/castsync/castsync/internal/config"
	"github.com/castsync/castsync/internal/engine"
	"github.com/castsync/castsync/internal/storage"
)

var (
	flagDataDir string
	flagVerbose bool

	cfg    *config.Config
	store  storage.Store
	eng    *engine.Engine
	logger *log.Logger
)

var rootCmd = &cobra.Command{
	Use:   "castsync",
	Short: "Offline-first podcast client with gpodder sync",
	Long: `castsync keeps a local podcast library (subscriptions, episodes,
listening progress) in sync with a gpodder-compatible server.

Subscriptions and playback progress are written locally first and pushed
to the server in the background, so nothing ever blocks on the network.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if flagDataDir != "" {
			cfg.DataDir = flagDataDir
		}

		logger = log.New(os.Stderr)
		logger.SetPrefix("castsync")
		if flagVerbose {
			logger.SetLevel(log.DebugLevel)
		} else {
			logger.SetLevel(log.WarnLevel)
		}

		store, err = cfg.OpenStorage()
		if err != nil {
			return fmt.Errorf("failed to open library: %w", err)
		}

		eng = engine.New(store, logger, engine.Options{
			Workers:            cfg.FetchWorkers,
			StalenessThreshold: cfg.StalenessThreshold(),
		})
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if store != nil {
			if err := store.Close(); err != nil {
				return fmt.Errorf("failed to close library: %w", err)
			}
		}
		return nil
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "library directory (default: ~/.local/share/castsync)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
}
