// ABOUTME: Show command for viewing episode show notes
// ABOUTME: Renders HTML show notes as markdown in the terminal

package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/castsync/castsync/internal/content"
	"github.com/castsync/castsync/internal/timeutil"
)

var showCmd = &cobra.Command{
	Use:   "show <episode-id>",
	Short: "Show an episode's details and notes",
	Long:  "Display episode metadata and the full show notes rendered for the terminal",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		episode, err := resolveEpisode(args[0])
		if err != nil {
			return err
		}
		podcast, err := store.GetPodcast(episode.PodcastID)
		if err != nil {
			return fmt.Errorf("failed to get podcast: %w", err)
		}

		bold := color.New(color.Bold).SprintFunc()
		faint := color.New(color.Faint).SprintFunc()
		cyan := color.New(color.FgCyan).SprintFunc()

		fmt.Println(strings.Repeat("─", 60))

		title := "Untitled"
		if episode.Title != nil {
			title = *episode.Title
		}
		fmt.Printf("%s\n\n", bold(title))

		podcastTitle := podcast.FeedURL
		if podcast.Title != nil {
			podcastTitle = *podcast.Title
		}
		fmt.Printf("%s %s\n", faint("Podcast:"), podcastTitle)

		if episode.PublishedAt != nil {
			fmt.Printf("%s %s\n", faint("Published:"), episode.PublishedAt.Format("Mon, 02 Jan 2006 15:04 MST"))
		}
		if episode.Duration != nil {
			fmt.Printf("%s %s\n", faint("Duration:"), timeutil.FormatDuration(*episode.Duration))
		}
		if episode.Played {
			fmt.Printf("%s played\n", faint("Status:"))
		} else if episode.Position > 0 {
			fmt.Printf("%s at %s\n", faint("Status:"), timeutil.FormatDuration(episode.Position))
		}
		fmt.Printf("%s %s\n", faint("Audio:"), cyan(episode.AudioURL))

		fmt.Println(strings.Repeat("─", 60))

		if episode.Description != nil && *episode.Description != "" {
			markdown := content.ToMarkdown(*episode.Description)

			rendered, err := glamour.Render(markdown, "dark")
			if err != nil {
				// Fall back to plain markdown if rendering fails
				fmt.Printf("%s\n", faint("(markdown rendering unavailable, showing plain text)"))
				fmt.Printf("\n%s\n", markdown)
			} else {
				fmt.Print(rendered)
			}
		} else if episode.Summary != nil && *episode.Summary != "" {
			fmt.Printf("\n%s\n", *episode.Summary)
		} else {
			fmt.Println("\n(No show notes available)")
		}

		fmt.Println()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(showCmd)
}
