// ABOUTME: List command for viewing the podcast library
// ABOUTME: Displays per-podcast episode counts, unplayed counts, and fetch errors

package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls", "l"},
	Short:   "List subscribed podcasts",
	Long:    "List podcasts in the library with episode and unplayed counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")

		rows, err := store.GetPodcastStats()
		if err != nil {
			return fmt.Errorf("failed to list podcasts: %w", err)
		}

		faint := color.New(color.Faint).SprintFunc()
		red := color.New(color.FgRed).SprintFunc()

		for _, row := range rows {
			idShort := row.PodcastID
			if len(idShort) > 8 {
				idShort = idShort[:8]
			}
			fmt.Print(faint(idShort))
			fmt.Print(" ")

			title := row.FeedURL
			if row.Title != nil {
				title = *row.Title
			}
			fmt.Print(title)

			fmt.Printf(" %s", faint(fmt.Sprintf("(%d/%d unplayed)", row.UnplayedCount, row.EpisodeCount)))

			if row.ErrorCount > 0 && row.LastError != nil {
				fmt.Printf(" %s", red(fmt.Sprintf("[%d failures: %s]", row.ErrorCount, *row.LastError)))
			}
			fmt.Println()
		}

		shown := len(rows)

		if all {
			podcasts, err := store.ListPodcasts(false)
			if err != nil {
				return fmt.Errorf("failed to list podcasts: %w", err)
			}
			for _, p := range podcasts {
				if p.Subscribed {
					continue
				}
				shown++

				idShort := p.ID
				if len(idShort) > 8 {
					idShort = idShort[:8]
				}
				title := p.FeedURL
				if p.Title != nil {
					title = *p.Title
				}
				fmt.Printf("%s %s %s\n", faint(idShort), title, faint("(unsubscribed)"))
			}
		}

		if shown == 0 {
			fmt.Println("No podcasts found. Subscribe with: castsync subscribe <feed-url>")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().BoolP("all", "a", false, "include unsubscribed podcasts still in the library")
}
