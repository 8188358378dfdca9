// ABOUTME: Sync command running one cycle or a periodic foreground loop
// ABOUTME: Reports succeeded, partially failed, or failed with a summary line

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/castsync/castsync/internal/engine"
	"github.com/castsync/castsync/internal/models"
)

var flagFullSync bool

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Sync the library with the server",
	Long: `Run one sync cycle against the configured gpodder server.

A smart sync pushes queued actions, pulls deltas, and refreshes only stale
feeds. Use --full to re-pull the complete subscription list and action
history and refresh every feed. A smart sync escalates to full on its own
when local state indicates drift.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		mode := engine.ModeSmart
		if flagFullSync {
			mode = engine.ModeFull
		}

		result, err := eng.PerformSync(context.Background(), mode)
		if result == nil && err == nil {
			fmt.Println("A sync is already running.")
			return nil
		}
		printSyncResult(result)
		return err
	},
}

var syncWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Sync periodically in the foreground",
	Long: `Run a full sync, then a smart sync on a fixed interval until
interrupted. The interval is set by sync_interval_minutes in the config.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		scheduler := engine.NewScheduler(eng, cfg.SyncInterval())
		scheduler.Start(context.Background())
		fmt.Printf("Syncing every %s. Press Ctrl-C to stop.\n", cfg.SyncInterval())

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig

		scheduler.Stop()
		fmt.Println("Stopped.")
		return nil
	},
}

func printSyncResult(result *engine.Result) {
	if result == nil {
		return
	}
	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	switch result.Status {
	case models.SyncSucceeded:
		fmt.Printf("%s Sync succeeded (%s)\n", green("v"), result.Mode)
	case models.SyncPartiallyFailed:
		fmt.Printf("%s Sync partially failed (%s): %s\n", yellow("!"), result.Mode, result.LastError)
	case models.SyncFailed:
		fmt.Printf("%s Sync failed (%s): %s\n", red("x"), result.Mode, result.LastError)
	}
	fmt.Printf("  podcasts: %d synced, %d failed\n", result.PodcastsSynced, result.PodcastsFailed)
	if result.ActionsPushed > 0 || result.ActionsApplied > 0 {
		fmt.Printf("  actions: %d pushed, %d applied\n", result.ActionsPushed, result.ActionsApplied)
	}
	if result.SubscriptionsIn > 0 {
		fmt.Printf("  subscriptions adopted from server: %d\n", result.SubscriptionsIn)
	}
}

func init() {
	syncCmd.Flags().BoolVar(&flagFullSync, "full", false, "run a full sync instead of a smart sync")
	syncCmd.AddCommand(syncWatchCmd)
	rootCmd.AddCommand(syncCmd)
}
