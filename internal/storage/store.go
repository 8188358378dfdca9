// ABOUTME: Storage interface and types for castsync data persistence
// ABOUTME: Defines the contract for podcast, episode, action, and sync-state storage

package storage

import (
	"time"

	"github.com/castsync/castsync/internal/models"
)

// EpisodeFilter specifies criteria for listing episodes.
type EpisodeFilter struct {
	PodcastID    *string
	UnplayedOnly *bool
	Limit        *int
}

// PodcastStatsRow represents per-podcast library statistics.
type PodcastStatsRow struct {
	PodcastID     string
	FeedURL       string
	Title         *string
	LastUpdated   *time.Time
	ErrorCount    int
	LastError     *string
	EpisodeCount  int
	UnplayedCount int
}

// QueueStats summarizes the action queue.
type QueueStats struct {
	Pending int
	Synced  int
	Failing int // pending entries with at least one failed attempt
}

// Store defines the storage interface for castsync data.
//
// The episode write surface is split on purpose: UpdateEpisodeRemote touches
// only remote-derived fields and UpdateEpisodeProgress touches only the
// user-owned ones, so a feed merge can never reset listening progress.
type Store interface {
	// Close closes the store and releases resources.
	Close() error

	// Podcast operations

	CreatePodcast(p *models.Podcast) error
	GetPodcast(id string) (*models.Podcast, error)
	GetPodcastByFeedURL(feedURL string) (*models.Podcast, error)
	// ListPodcasts returns podcasts sorted by creation date (newest first).
	// With subscribedOnly, unsubscribed podcasts are omitted.
	ListPodcasts(subscribedOnly bool) ([]*models.Podcast, error)
	UpdatePodcast(p *models.Podcast) error
	// DeletePodcast removes a podcast and all its episodes and actions (cascade).
	DeletePodcast(id string) error
	// UpdatePodcastFetchState records a successful fetch: caching headers,
	// merge time, and cleared error state.
	UpdatePodcastFetchState(id string, etag, lastModified *string, updatedAt time.Time) error
	// UpdatePodcastError records a fetch/merge error against one podcast.
	UpdatePodcastError(id string, errMsg string) error
	// MarkPodcastSynced clears needs_sync after a server acknowledgment.
	MarkPodcastSynced(id string, at time.Time) error

	// Episode operations

	CreateEpisode(e *models.Episode) error
	GetEpisode(id string) (*models.Episode, error)
	// GetEpisodeByKey looks up an episode by its (podcast, guid) identity,
	// returning nil when no such episode exists.
	GetEpisodeByKey(podcastID, guid string) (*models.Episode, error)
	ListEpisodes(filter *EpisodeFilter) ([]*models.Episode, error)
	// UpdateEpisodeRemote overwrites remote-derived fields only.
	UpdateEpisodeRemote(e *models.Episode) error
	// UpdateEpisodeProgress overwrites local-only playback fields only.
	UpdateEpisodeProgress(id string, position int, played bool, playedAt *time.Time) error
	SetEpisodeDownloadState(id, state string) error
	// CountUnplayed counts unplayed episodes, optionally for one podcast.
	CountUnplayed(podcastID *string) (int, error)

	// Action queue operations

	CreateAction(a *models.EpisodeAction) error
	// GetPendingActionForEpisode returns the unsynced play action for an
	// episode, or nil when none is queued.
	GetPendingActionForEpisode(episodeID string) (*models.EpisodeAction, error)
	// UpdateAction rewrites a queued action's mutable fields in place.
	UpdateAction(a *models.EpisodeAction) error
	// ListPendingActions returns unsynced actions in creation order.
	ListPendingActions(limit int) ([]*models.EpisodeAction, error)
	// MarkActionsSynced flags the given actions as acknowledged.
	MarkActionsSynced(ids []string) error
	// RecordActionFailure bumps sync_attempts and stores the error on the
	// given actions; they stay pending.
	RecordActionFailure(ids []string, errMsg string) error
	// DeleteSyncedActions prunes acknowledged actions, returning the count.
	DeleteSyncedActions() (int64, error)
	GetQueueStats() (*QueueStats, error)

	// Singleton rows

	// GetSyncState returns the singleton sync state, creating the default
	// row on first access.
	GetSyncState() (*models.SyncState, error)
	UpdateSyncState(s *models.SyncState) error
	// GetServerConfig returns the server configuration, or nil when the
	// user has not logged in yet.
	GetServerConfig() (*models.ServerConfig, error)
	SaveServerConfig(c *models.ServerConfig) error

	// Statistics

	GetPodcastStats() ([]PodcastStatsRow, error)
}
