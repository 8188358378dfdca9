// ABOUTME: Episodes command for browsing the episode library
// ABOUTME: Displays episodes with played status, duration, and publish date

package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/castsync/castsync/internal/storage"
	"github.com/castsync/castsync/internal/timeutil"
)

var episodesCmd = &cobra.Command{
	Use:     "episodes [podcast]",
	Aliases: []string{"eps"},
	Short:   "List episodes",
	Long:    "List episodes across the library or for one podcast, newest first",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")
		limit, _ := cmd.Flags().GetInt("limit")

		filter := &storage.EpisodeFilter{Limit: &limit}
		if !all {
			unplayedOnly := true
			filter.UnplayedOnly = &unplayedOnly
		}
		if len(args) == 1 {
			podcast, err := resolvePodcast(args[0])
			if err != nil {
				return err
			}
			filter.PodcastID = &podcast.ID
		}

		episodes, err := store.ListEpisodes(filter)
		if err != nil {
			return fmt.Errorf("failed to list episodes: %w", err)
		}
		if len(episodes) == 0 {
			fmt.Println("No episodes found")
			return nil
		}

		faint := color.New(color.Faint).SprintFunc()

		for _, episode := range episodes {
			idShort := episode.ID
			if len(idShort) > 8 {
				idShort = idShort[:8]
			}
			fmt.Print(faint(idShort))
			fmt.Print(" ")

			if episode.Played {
				fmt.Print("✓ ")
			} else if episode.Position > 0 {
				fmt.Print("▶ ")
			} else {
				fmt.Print("  ")
			}

			title := "Untitled"
			if episode.Title != nil {
				title = *episode.Title
			}
			fmt.Print(title)

			if episode.Duration != nil {
				fmt.Printf(" %s", faint(timeutil.FormatDuration(*episode.Duration)))
			}
			if episode.PublishedAt != nil {
				fmt.Printf(" %s", faint(episode.PublishedAt.Format("02 Jan 06")))
			}
			fmt.Println()
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(episodesCmd)

	episodesCmd.Flags().BoolP("all", "a", false, "show all episodes including played")
	episodesCmd.Flags().IntP("limit", "n", 20, "max episodes to show")
}
