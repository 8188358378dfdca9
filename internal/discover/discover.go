// ABOUTME: Feed discovery for finding a podcast RSS/Atom feed from a page URL
// ABOUTME: Supports direct feeds, HTML link-rel-alternate headers, and common path probing

package discover

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/castsync/castsync/internal/fetch"
	"github.com/castsync/castsync/internal/parse"
)

// Common feed paths to probe when other discovery methods fail
var commonFeedPaths = []string{
	"/feed.xml",
	"/feed",
	"/rss.xml",
	"/rss",
	"/atom.xml",
	"/podcast.xml",
	"/podcast/feed",
	"/index.xml",
	"/feed/podcast",
}

// Errors returned by discovery functions
var (
	ErrNoFeedFound = errors.New("no podcast feed found at URL")
	ErrInvalidURL  = errors.New("invalid URL")
)

// DiscoveredFeed represents a feed found during discovery
type DiscoveredFeed struct {
	URL   string // Absolute URL of the feed
	Title string // Feed title (from content or link element)
}

// Discover attempts to find a podcast feed from the given URL.
// It tries the following strategies in order:
//  1. Parse URL as a direct feed
//  2. Parse URL as HTML and extract <link rel="alternate"> headers
//  3. Probe common feed URL patterns
//
// Returns the discovered feed, or an error if none found.
func Discover(ctx context.Context, inputURL string) (*DiscoveredFeed, error) {
	parsedURL, err := url.Parse(inputURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, fmt.Errorf("%w: missing scheme or host", ErrInvalidURL)
	}

	// Strategy 1: the URL is the feed itself.
	feed, body, err := tryDirectFeed(ctx, inputURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch URL: %w", err)
	}
	if feed != nil {
		return feed, nil
	}

	// Strategy 2: the URL is an HTML page advertising its feed.
	for _, candidate := range extractFeedLinks(body, parsedURL) {
		verified, _, verifyErr := tryDirectFeed(ctx, candidate.URL)
		if verifyErr == nil && verified != nil {
			if verified.Title == "" && candidate.Title != "" {
				verified.Title = candidate.Title
			}
			return verified, nil
		}
	}

	// Strategy 3: probe common paths on the same host.
	for _, path := range commonFeedPaths {
		candidate := parsedURL.Scheme + "://" + parsedURL.Host + path
		verified, _, verifyErr := tryDirectFeed(ctx, candidate)
		if verifyErr == nil && verified != nil {
			return verified, nil
		}
	}

	return nil, ErrNoFeedFound
}

// tryDirectFeed fetches a URL and attempts to parse it as a podcast feed.
// A fetch failure is an error; a parse failure just means "not a feed" and
// returns the body for HTML inspection.
func tryDirectFeed(ctx context.Context, feedURL string) (*DiscoveredFeed, []byte, error) {
	result, err := fetch.Fetch(ctx, feedURL, nil, nil)
	if err != nil {
		return nil, nil, err
	}

	parsed, err := parse.Parse(result.Body)
	if err != nil {
		return nil, result.Body, nil
	}
	return &DiscoveredFeed{URL: feedURL, Title: parsed.Title}, result.Body, nil
}

// extractFeedLinks pulls rel="alternate" feed links out of an HTML document,
// resolved against the page URL.
func extractFeedLinks(body []byte, base *url.URL) []DiscoveredFeed {
	var feeds []DiscoveredFeed

	tokenizer := html.NewTokenizer(strings.NewReader(string(body)))
	for {
		tt := tokenizer.Next()
		if tt == html.ErrorToken {
			return feeds
		}
		if tt != html.StartTagToken && tt != html.SelfClosingTagToken {
			continue
		}
		token := tokenizer.Token()
		if token.Data != "link" {
			continue
		}

		var rel, typ, href, title string
		for _, attr := range token.Attr {
			switch attr.Key {
			case "rel":
				rel = attr.Val
			case "type":
				typ = attr.Val
			case "href":
				href = attr.Val
			case "title":
				title = attr.Val
			}
		}
		if rel != "alternate" || href == "" {
			continue
		}
		if typ != "application/rss+xml" && typ != "application/atom+xml" {
			continue
		}

		ref, err := url.Parse(href)
		if err != nil {
			continue
		}
		feeds = append(feeds, DiscoveredFeed{
			URL:   base.ResolveReference(ref).String(),
			Title: title,
		})
	}
}
