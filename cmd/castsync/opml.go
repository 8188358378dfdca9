// ABOUTME: Import and export commands for OPML subscription lists
// ABOUTME: Import subscribes to each feed; export writes the current list to stdout

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/castsync/castsync/internal/opml"
)

var importCmd = &cobra.Command{
	Use:   "import <opml-file>",
	Short: "Import subscriptions from an OPML file",
	Long: `Subscribe to every feed in an OPML file. Feeds already in the library
are skipped; feeds that fail to fetch are reported and skipped.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := opml.ParseFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to parse OPML: %w", err)
		}
		if len(doc.Subscriptions) == 0 {
			fmt.Println("No feeds found in OPML file")
			return nil
		}

		green := color.New(color.FgGreen).SprintFunc()
		red := color.New(color.FgRed).SprintFunc()
		ctx := context.Background()
		added, failed := 0, 0

		for _, sub := range doc.Subscriptions {
			if existing, err := store.GetPodcastByFeedURL(sub.URL); err == nil && existing.Subscribed {
				continue
			}
			podcast, err := eng.Subscribe(ctx, sub.URL)
			if err != nil {
				failed++
				fmt.Printf("%s %s: %v\n", red("x"), sub.URL, err)
				continue
			}
			added++
			title := podcast.FeedURL
			if podcast.Title != nil {
				title = *podcast.Title
			}
			fmt.Printf("%s %s\n", green("v"), title)
		}

		fmt.Printf("Imported %d feeds (%d failed)\n", added, failed)
		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export subscriptions as OPML to stdout",
	Long:  "Export the subscribed feed list in OPML format to standard output",
	RunE: func(cmd *cobra.Command, args []string) error {
		podcasts, err := store.ListPodcasts(true)
		if err != nil {
			return fmt.Errorf("failed to list podcasts: %w", err)
		}

		doc := opml.NewDocument("castsync subscriptions")
		for _, p := range podcasts {
			title := p.FeedURL
			if p.Title != nil {
				title = *p.Title
			}
			doc.Add(p.FeedURL, title)
		}
		return doc.Write(os.Stdout)
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(exportCmd)
}
