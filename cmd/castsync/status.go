// ABOUTME: Status command summarizing sync health
// ABOUTME: Shows server identity, last sync results, and queue depth

package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/castsync/castsync/internal/models"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show sync status",
	Long:  "Show the configured server, the outcome of recent sync cycles, and the queue depth",
	RunE: func(cmd *cobra.Command, args []string) error {
		faint := color.New(color.Faint).SprintFunc()
		green := color.New(color.FgGreen).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()
		red := color.New(color.FgRed).SprintFunc()

		serverCfg, err := store.GetServerConfig()
		if err != nil {
			return fmt.Errorf("failed to read server config: %w", err)
		}
		if serverCfg.Configured() {
			fmt.Printf("%s %s as %s (device %s)\n", faint("Server:"), serverCfg.ServerURL, serverCfg.Username, serverCfg.DeviceID)
		} else {
			fmt.Printf("%s not configured. Run: castsync login <server-url> <username>\n", faint("Server:"))
		}

		state, err := store.GetSyncState()
		if err != nil {
			return fmt.Errorf("failed to read sync state: %w", err)
		}

		switch state.LastResult {
		case models.SyncSucceeded:
			fmt.Printf("%s %s\n", faint("Last sync:"), green("succeeded"))
		case models.SyncPartiallyFailed:
			fmt.Printf("%s %s", faint("Last sync:"), yellow("partially failed"))
			if state.LastError != nil {
				fmt.Printf(" (%s)", *state.LastError)
			}
			fmt.Println()
		case models.SyncFailed:
			fmt.Printf("%s %s", faint("Last sync:"), red("failed"))
			if state.LastError != nil {
				fmt.Printf(" (%s)", *state.LastError)
			}
			fmt.Println()
		default:
			fmt.Printf("%s never\n", faint("Last sync:"))
		}

		if state.IsSyncing {
			fmt.Println("A sync is running now.")
		}
		if state.ConsecutiveFailures > 0 {
			fmt.Printf("%s %d (next smart sync escalates to full after 3)\n", faint("Consecutive failures:"), state.ConsecutiveFailures)
		}
		if state.LastSubscriptionSync != nil {
			fmt.Printf("%s %s\n", faint("Subscriptions synced:"), state.LastSubscriptionSync.Format("02 Jan 2006 15:04"))
		}
		if state.LastProgressSync != nil {
			fmt.Printf("%s %s\n", faint("Progress synced:"), state.LastProgressSync.Format("02 Jan 2006 15:04"))
		}
		if state.LastFullSync != nil {
			fmt.Printf("%s %s\n", faint("Last full sync:"), state.LastFullSync.Format("02 Jan 2006 15:04"))
		}

		stats, err := eng.Queue().Stats()
		if err != nil {
			return fmt.Errorf("failed to read queue: %w", err)
		}
		fmt.Printf("%s %d pending", faint("Queue:"), stats.Pending)
		if stats.Failing > 0 {
			fmt.Printf(", %s", red(fmt.Sprintf("%d failing", stats.Failing)))
		}
		fmt.Println()

		count, err := store.CountUnplayed(nil)
		if err == nil {
			fmt.Printf("%s %d\n", faint("Unplayed episodes:"), count)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
