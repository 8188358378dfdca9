// ABOUTME: Episode model split into remote-derived and local-only fields
// ABOUTME: Remote fields are overwritten on every merge; local fields never are

package models

import (
	"time"

	"github.com/google/uuid"
)

// Download states for an episode's media file.
const (
	DownloadNone       = "none"
	DownloadQueued     = "queued"
	DownloadInProgress = "downloading"
	DownloadComplete   = "downloaded"
)

// Episode represents a single playable feed item. Identity is the
// (podcast, guid) pair, which stays unique even when two feeds reuse a guid.
//
// Remote-derived fields (Title through ImageURL) are replaced wholesale on
// every feed merge. Local-only fields (Position, Played, DownloadState) are
// owned by the user and never touched by a merge.
type Episode struct {
	ID        string // Unique identifier
	PodcastID string // Owning podcast (episodes are removed with it)
	GUID      string // Feed-supplied id, falling back to the audio URL

	Title       *string    // Episode title
	Description *string    // Rich show notes (may contain HTML)
	Summary     *string    // Short plain-text summary
	AudioURL    string     // Playable media URL from the enclosure
	AudioSize   int64      // Enclosure byte length (0 when unknown)
	Duration    *int       // Duration in seconds
	PublishedAt *time.Time // Publish date
	ImageURL    *string    // Episode artwork, overriding podcast artwork

	Position      int        // Playback position in seconds
	Played        bool       // Completion flag
	PlayedAt      *time.Time // When the episode was completed
	DownloadState string     // One of the Download* constants

	CreatedAt time.Time
}

// NewEpisode creates an Episode with local-only fields at their defaults.
func NewEpisode(podcastID, guid, audioURL string) *Episode {
	return &Episode{
		ID:            uuid.New().String(),
		PodcastID:     podcastID,
		GUID:          guid,
		AudioURL:      audioURL,
		DownloadState: DownloadNone,
		CreatedAt:     time.Now(),
	}
}

// MarkPlayed flags the episode as completed at the given time.
func (e *Episode) MarkPlayed(at time.Time) {
	e.Played = true
	e.PlayedAt = &at
}
