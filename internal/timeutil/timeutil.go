// ABOUTME: Time utility functions for feed timestamp and duration handling
// ABOUTME: Parses the date and duration shapes found in real-world podcast feeds

package timeutil

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Publish date layouts, tried in order: RFC 822 with a numeric offset,
// RFC 822 with a named zone, then ISO 8601. Feeds disagree on whether the
// day of month is zero-padded, so each family carries both shapes.
var pubDateLayouts = []string{
	time.RFC1123Z,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 MST",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParsePubDate parses a feed publish date. An unparseable or empty string
// resolves to nil rather than an error; a bad date never fails a feed.
func ParsePubDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range pubDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

// ParseDuration parses an episode duration given as SS, MM:SS, or HH:MM:SS
// and returns whole seconds. Any other shape resolves to nil.
func ParseDuration(s string) *int {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return nil
	}

	total := 0
	for _, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n < 0 {
			return nil
		}
		total = total*60 + n
	}
	return &total
}

// FormatDuration renders whole seconds as M:SS or H:MM:SS for display.
func FormatDuration(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// IsStale reports whether a last-updated timestamp is older than the given
// threshold. A nil timestamp is always stale.
func IsStale(lastUpdated *time.Time, threshold time.Duration) bool {
	if lastUpdated == nil {
		return true
	}
	return time.Since(*lastUpdated) > threshold
}
