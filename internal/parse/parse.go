// ABOUTME: RSS/Atom podcast feed parsing using gofeed library
// ABOUTME: Converts gofeed.Feed to a normalized ParsedFeed with playable episodes only

package parse

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/castsync/castsync/internal/content"
	"github.com/castsync/castsync/internal/timeutil"
)

// ErrInvalidFeed means the document parsed but is not a usable podcast feed
// (no title was found).
var ErrInvalidFeed = errors.New("invalid feed: missing title")

// ParseError wraps a malformed-document failure from the underlying parser.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string { return fmt.Sprintf("parse feed: %v", e.Err) }
func (e *ParseError) Unwrap() error { return e.Err }

// ParsedFeed is the normalized in-memory form of one podcast feed.
type ParsedFeed struct {
	Title       string
	Author      string
	Description string
	ImageURL    string
	Categories  []string
	Episodes    []ParsedEpisode
}

// ParsedEpisode is one playable feed item. Items without an audio enclosure
// are dropped during parsing and never appear here.
type ParsedEpisode struct {
	GUID        string
	Title       string
	Description string // Rich show notes; HTML left intact
	Summary     string // Short plain-text summary
	AudioURL    string
	AudioSize   int64
	Duration    *int
	PublishedAt *time.Time
	ImageURL    string // Episode-level artwork; empty when only the podcast has one
}

// Parse parses RSS or Atom feed data and returns a normalized ParsedFeed.
// Malformed documents return a *ParseError; a document without a feed title
// returns ErrInvalidFeed. Missing optional fields are tolerated everywhere.
func Parse(data []byte) (*ParsedFeed, error) {
	parser := gofeed.NewParser()
	feed, err := parser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, &ParseError{Err: err}
	}

	if strings.TrimSpace(feed.Title) == "" {
		return nil, ErrInvalidFeed
	}

	parsed := &ParsedFeed{
		Title:       strings.TrimSpace(feed.Title),
		Description: strings.TrimSpace(feed.Description),
		Categories:  feedCategories(feed),
		Episodes:    make([]ParsedEpisode, 0, len(feed.Items)),
	}

	if feed.Image != nil {
		parsed.ImageURL = feed.Image.URL
	}
	if feed.ITunesExt != nil {
		if parsed.ImageURL == "" {
			parsed.ImageURL = feed.ITunesExt.Image
		}
		parsed.Author = feed.ITunesExt.Author
	}
	if parsed.Author == "" && len(feed.Authors) > 0 && feed.Authors[0] != nil {
		parsed.Author = feed.Authors[0].Name
	}

	for _, item := range feed.Items {
		episode, ok := parseItem(item)
		if !ok {
			// No audio enclosure: not playable, dropped silently.
			continue
		}
		parsed.Episodes = append(parsed.Episodes, episode)
	}

	return parsed, nil
}

// parseItem normalizes one feed item. ok is false when the item carries no
// audio URL.
func parseItem(item *gofeed.Item) (ParsedEpisode, bool) {
	audioURL, audioSize := enclosure(item)
	if audioURL == "" {
		return ParsedEpisode{}, false
	}

	episode := ParsedEpisode{
		Title:     strings.TrimSpace(item.Title),
		AudioURL:  audioURL,
		AudioSize: audioSize,
	}

	// GUID falls back to the audio URL when the feed omits one.
	episode.GUID = strings.TrimSpace(item.GUID)
	if episode.GUID == "" {
		episode.GUID = audioURL
	}

	// Prefer the richer content field for show notes; the summary is the
	// short field with markup stripped.
	rich := item.Content
	if rich == "" {
		rich = item.Description
	}
	episode.Description = strings.TrimSpace(rich)

	short := item.Description
	if short == "" {
		short = item.Content
	}
	episode.Summary = content.StripTags(short)

	episode.PublishedAt = publishedAt(item)

	if item.ITunesExt != nil {
		episode.ImageURL = item.ITunesExt.Image
		episode.Duration = timeutil.ParseDuration(item.ITunesExt.Duration)
		if episode.Summary == "" {
			episode.Summary = content.StripTags(item.ITunesExt.Summary)
		}
	}
	if episode.ImageURL == "" && item.Image != nil {
		episode.ImageURL = item.Image.URL
	}

	return episode, true
}

// enclosure returns the first audio URL and its byte length from the item's
// enclosure elements.
func enclosure(item *gofeed.Item) (string, int64) {
	for _, enc := range item.Enclosures {
		if enc == nil || enc.URL == "" {
			continue
		}
		var size int64
		if enc.Length != "" {
			if n, err := strconv.ParseInt(enc.Length, 10, 64); err == nil && n > 0 {
				size = n
			}
		}
		return enc.URL, size
	}
	return "", 0
}

// publishedAt resolves the item publish date, trying the raw string against
// the known layout families before falling back to the library's parse.
// Unparseable dates resolve to nil, never an error.
func publishedAt(item *gofeed.Item) *time.Time {
	if t := timeutil.ParsePubDate(item.Published); t != nil {
		return t
	}
	if item.PublishedParsed != nil {
		return item.PublishedParsed
	}
	if item.UpdatedParsed != nil {
		return item.UpdatedParsed
	}
	return nil
}

// feedCategories accumulates every category element in feed order,
// duplicates allowed.
func feedCategories(feed *gofeed.Feed) []string {
	var cats []string
	cats = append(cats, feed.Categories...)
	return cats
}
