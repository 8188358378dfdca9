// ABOUTME: Reconciles a freshly parsed feed against existing podcast/episode records
// ABOUTME: Overwrites remote-derived fields only; user-owned playback state is never touched

package merge

import (
	"fmt"
	"time"

	"github.com/castsync/castsync/internal/models"
	"github.com/castsync/castsync/internal/parse"
	"github.com/castsync/castsync/internal/storage"
)

// Result reports what one merge changed.
type Result struct {
	Inserted int
	Updated  int
}

// Merger applies parsed feeds to the local store.
type Merger struct {
	store storage.Store
}

// New creates a Merger over the given store.
func New(store storage.Store) *Merger {
	return &Merger{store: store}
}

// Apply reconciles a parsed feed against the local records for podcast.
//
// For each parsed episode the (podcast, guid) key is looked up: absent means
// insert with local-only fields at their defaults, present means overwrite
// remote-derived fields only. Episodes known locally but absent from the
// feed are never deleted; feeds legitimately prune old entries and local
// history must survive. Podcast-level metadata merges the same way: remote
// fields overwritten, local flags like Subscribed untouched.
func (m *Merger) Apply(podcast *models.Podcast, parsed *parse.ParsedFeed) (*Result, error) {
	mergePodcast(podcast, parsed)
	now := time.Now()
	podcast.LastUpdated = &now
	if err := m.store.UpdatePodcast(podcast); err != nil {
		return nil, fmt.Errorf("merge podcast %s: %w", podcast.FeedURL, err)
	}

	result := &Result{}
	for i := range parsed.Episodes {
		pe := &parsed.Episodes[i]

		existing, err := m.store.GetEpisodeByKey(podcast.ID, pe.GUID)
		if err != nil {
			return nil, fmt.Errorf("lookup episode %s: %w", pe.GUID, err)
		}
		if existing != nil {
			mergeEpisode(existing, pe)
			if err := m.store.UpdateEpisodeRemote(existing); err != nil {
				return nil, fmt.Errorf("merge episode %s: %w", pe.GUID, err)
			}
			result.Updated++
			continue
		}

		episode := models.NewEpisode(podcast.ID, pe.GUID, pe.AudioURL)
		mergeEpisode(episode, pe)
		if err := m.store.CreateEpisode(episode); err != nil {
			return nil, fmt.Errorf("insert episode %s: %w", pe.GUID, err)
		}
		result.Inserted++
	}

	return result, nil
}

// mergePodcast copies remote-derived podcast fields from the parsed feed.
func mergePodcast(podcast *models.Podcast, parsed *parse.ParsedFeed) {
	podcast.Title = optional(parsed.Title)
	podcast.Author = optional(parsed.Author)
	podcast.Description = optional(parsed.Description)
	podcast.ImageURL = optional(parsed.ImageURL)
	podcast.Categories = parsed.Categories
}

// mergeEpisode copies remote-derived episode fields. Position, Played, and
// DownloadState stay untouched regardless of feed content.
func mergeEpisode(episode *models.Episode, pe *parse.ParsedEpisode) {
	episode.Title = optional(pe.Title)
	episode.Description = optional(pe.Description)
	episode.Summary = optional(pe.Summary)
	episode.AudioURL = pe.AudioURL
	episode.AudioSize = pe.AudioSize
	episode.Duration = pe.Duration
	episode.PublishedAt = pe.PublishedAt
	episode.ImageURL = optional(pe.ImageURL)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
