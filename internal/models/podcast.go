// ABOUTME: Podcast model representing one subscribed RSS/Atom feed with HTTP caching support
// ABOUTME: Tracks remote metadata, subscription state, and sync bookkeeping flags

package models

import (
	"time"

	"github.com/google/uuid"
)

// Podcast represents a podcast feed. Identity is the feed URL, which is
// globally unique; the ID is a stable surrogate key for relationships.
type Podcast struct {
	ID           string     // Unique identifier
	FeedURL      string     // Feed URL (natural key)
	Title        *string    // Podcast title (from feed metadata)
	Author       *string    // Podcast author/owner
	Description  *string    // Podcast-level description
	ImageURL     *string    // Podcast artwork URL
	Categories   []string   // Category labels, in feed order, duplicates allowed
	Subscribed   bool       // Whether the user is subscribed
	NeedsSync    bool       // Subscription change not yet acknowledged by the server
	LastSyncedAt *time.Time // Timestamp of last server acknowledgment
	LastUpdated  *time.Time // Timestamp of last successful feed merge
	ETag         *string    // HTTP ETag header for conditional requests
	LastModified *string    // HTTP Last-Modified header for conditional requests
	LastError    *string    // Last fetch/merge error message (if any)
	ErrorCount   int        // Consecutive error count
	CreatedAt    time.Time  // Record creation timestamp
}

// NewPodcast creates a subscribed Podcast for the given feed URL.
// NeedsSync starts true so the subscription is pushed on the next cycle.
func NewPodcast(feedURL string) *Podcast {
	return &Podcast{
		ID:         uuid.New().String(),
		FeedURL:    feedURL,
		Subscribed: true,
		NeedsSync:  true,
		CreatedAt:  time.Now(),
	}
}

// MarkSynced records a server acknowledgment of the subscription state.
func (p *Podcast) MarkSynced(at time.Time) {
	p.NeedsSync = false
	p.LastSyncedAt = &at
}
