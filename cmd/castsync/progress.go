// ABOUTME: Played and progress commands for recording playback locally
// ABOUTME: Writes progress to the library first and queues the sync push

package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/castsync/castsync/internal/timeutil"
)

var playedCmd = &cobra.Command{
	Use:   "played <episode-id>",
	Short: "Mark an episode as played",
	Long: `Mark an episode as played. The change applies locally right away and
is pushed to the sync server on the next sync cycle.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		episode, err := resolveEpisode(args[0])
		if err != nil {
			return err
		}

		position := episode.Position
		if episode.Duration != nil {
			position = *episode.Duration
		}
		if err := eng.RecordProgress(episode.ID, position, true); err != nil {
			return fmt.Errorf("failed to record progress: %w", err)
		}

		green := color.New(color.FgGreen).SprintFunc()
		title := episode.AudioURL
		if episode.Title != nil {
			title = *episode.Title
		}
		fmt.Printf("%s Marked played: %s\n", green("v"), title)
		return nil
	},
}

var progressCmd = &cobra.Command{
	Use:   "progress <episode-id> <position>",
	Short: "Record a playback position",
	Long: `Record a playback position for an episode, given as seconds, MM:SS,
or HH:MM:SS. The position applies locally right away and is pushed to the
sync server on the next sync cycle.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		complete, _ := cmd.Flags().GetBool("complete")

		episode, err := resolveEpisode(args[0])
		if err != nil {
			return err
		}

		position := timeutil.ParseDuration(args[1])
		if position == nil {
			return fmt.Errorf("invalid position %q (use seconds, MM:SS, or HH:MM:SS)", args[1])
		}

		if err := eng.RecordProgress(episode.ID, *position, complete); err != nil {
			return fmt.Errorf("failed to record progress: %w", err)
		}

		title := episode.AudioURL
		if episode.Title != nil {
			title = *episode.Title
		}
		fmt.Printf("Recorded %s at %s\n", title, timeutil.FormatDuration(*position))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(playedCmd)
	rootCmd.AddCommand(progressCmd)

	progressCmd.Flags().Bool("complete", false, "also mark the episode as played")
}
