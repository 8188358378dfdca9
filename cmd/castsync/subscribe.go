// ABOUTME: Subscribe and unsubscribe commands
// ABOUTME: Accepts a feed URL or an HTML page URL resolved via feed discovery

package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/castsync/castsync/internal/discover"
	"github.com/castsync/castsync/internal/parse"
)

var subscribeCmd = &cobra.Command{
	Use:   "subscribe <url>",
	Short: "Subscribe to a podcast",
	Long: `Subscribe to a podcast by feed URL.

When the URL is a web page rather than a feed, castsync tries to discover
the feed from the page's link headers and common feed paths.

The feed is fetched and merged immediately; the subscription is pushed to
the sync server on the next sync cycle.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		feedURL := args[0]

		podcast, err := eng.Subscribe(ctx, feedURL)
		if err != nil && (errors.Is(err, parse.ErrInvalidFeed) || isParseError(err)) {
			// Not a feed document; try discovery.
			found, discErr := discover.Discover(ctx, feedURL)
			if discErr != nil {
				return fmt.Errorf("no feed at %s: %w", feedURL, err)
			}
			fmt.Printf("Discovered feed: %s\n", found.URL)
			podcast, err = eng.Subscribe(ctx, found.URL)
		}
		if err != nil {
			return err
		}

		green := color.New(color.FgGreen).SprintFunc()
		title := podcast.FeedURL
		if podcast.Title != nil {
			title = *podcast.Title
		}
		count, _ := store.CountUnplayed(&podcast.ID)
		fmt.Printf("%s Subscribed to %s (%d unplayed)\n", green("v"), title, count)
		return nil
	},
}

var unsubscribeCmd = &cobra.Command{
	Use:   "unsubscribe <feed-url>",
	Short: "Unsubscribe from a podcast",
	Long: `Unsubscribe from a podcast by feed URL.

Episodes and listening history stay in the local library; the change is
pushed to the sync server on the next sync cycle.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := eng.Unsubscribe(args[0]); err != nil {
			return err
		}
		fmt.Printf("Unsubscribed from %s\n", args[0])
		return nil
	},
}

func isParseError(err error) bool {
	var parseErr *parse.ParseError
	return errors.As(err, &parseErr)
}

func init() {
	rootCmd.AddCommand(subscribeCmd)
	rootCmd.AddCommand(unsubscribeCmd)
}
