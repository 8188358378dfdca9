// ABOUTME: Downloaded command for tracking an episode's local media state
// ABOUTME: Download state is local bookkeeping and is never pushed to the server

package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/castsync/castsync/internal/models"
)

var downloadedCmd = &cobra.Command{
	Use:   "downloaded <episode-id>",
	Short: "Mark an episode's media as downloaded",
	Long: `Record that an episode's media file has been downloaded by an external
player or downloader. Use --clear after deleting the file. Download state
stays local; it is never synced and never touched by a feed refresh.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		clearState, _ := cmd.Flags().GetBool("clear")

		episode, err := resolveEpisode(args[0])
		if err != nil {
			return err
		}

		state := models.DownloadComplete
		if clearState {
			state = models.DownloadNone
		}
		if err := store.SetEpisodeDownloadState(episode.ID, state); err != nil {
			return fmt.Errorf("failed to update download state: %w", err)
		}

		title := episode.AudioURL
		if episode.Title != nil {
			title = *episode.Title
		}
		green := color.New(color.FgGreen).SprintFunc()
		if clearState {
			fmt.Printf("Cleared download state for %s\n", title)
		} else {
			fmt.Printf("%s Marked downloaded: %s\n", green("v"), title)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(downloadedCmd)

	downloadedCmd.Flags().Bool("clear", false, "mark the media as not downloaded")
}
