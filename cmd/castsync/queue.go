// ABOUTME: Queue command for inspecting the offline action queue
// ABOUTME: Shows pending, failing, and acknowledged action counts plus the backlog

package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/castsync/castsync/internal/models"
	"github.com/castsync/castsync/internal/timeutil"
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Show the pending action queue",
	Long: `Show actions waiting to be pushed to the sync server. Actions stay
queued until the server acknowledges them, however many attempts it takes.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		stats, err := eng.Queue().Stats()
		if err != nil {
			return fmt.Errorf("failed to read queue: %w", err)
		}
		fmt.Printf("Queue: %d pending (%d failing)\n", stats.Pending, stats.Failing)

		if stats.Pending == 0 {
			return nil
		}

		pending, err := eng.Queue().Pending(limit)
		if err != nil {
			return fmt.Errorf("failed to read queue: %w", err)
		}

		faint := color.New(color.Faint).SprintFunc()
		red := color.New(color.FgRed).SprintFunc()

		for _, action := range pending {
			fmt.Printf("  %s %s", faint(action.Timestamp.Format("02 Jan 15:04")), action.Type)

			switch action.Type {
			case models.ActionPlay:
				fmt.Printf(" at %s", timeutil.FormatDuration(action.Position))
				if action.Completed {
					fmt.Print(" (completed)")
				}
			default:
				if podcast, err := store.GetPodcast(action.PodcastID); err == nil {
					fmt.Printf(" %s", podcast.FeedURL)
				}
			}

			if action.SyncAttempts > 0 && action.LastSyncError != nil {
				fmt.Printf(" %s", red(fmt.Sprintf("[%d attempts: %s]", action.SyncAttempts, *action.LastSyncError)))
			}
			fmt.Println()
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(queueCmd)

	queueCmd.Flags().IntP("limit", "n", 50, "max actions to show")
}
