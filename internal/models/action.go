// ABOUTME: EpisodeAction model recording one pending user event for the sync queue
// ABOUTME: Immutable once created except for sync bookkeeping fields

package models

import (
	"time"

	"github.com/google/uuid"
)

// Action types understood by the sync server.
const (
	ActionPlay        = "play"
	ActionSubscribe   = "subscribe"
	ActionUnsubscribe = "unsubscribe"
)

// EpisodeAction is a durable record of one not-yet-acknowledged user event.
// Play actions carry an episode reference and playback fields; subscribe and
// unsubscribe actions carry only the podcast reference.
//
// Only the bookkeeping fields (SyncAttempts, LastSyncError, Synced) change
// after creation, except that a pending play action for the same episode is
// coalesced in place by the queue.
type EpisodeAction struct {
	ID        string
	Type      string    // One of the Action* constants
	PodcastID string    // Owning podcast
	EpisodeID *string   // Referenced episode; nil for subscription actions
	Position  int       // Playback position in seconds
	Duration  int       // Episode duration in seconds (0 when unknown)
	Completed bool      // Whether playback finished
	Timestamp time.Time // When the user event happened

	SyncAttempts  int     // Number of failed push attempts
	LastSyncError *string // Error from the most recent failed push
	Synced        bool    // Set once the server acknowledged the action

	CreatedAt time.Time
}

// NewPlayAction creates a pending playback-progress action.
func NewPlayAction(podcastID, episodeID string, position, duration int, completed bool) *EpisodeAction {
	now := time.Now()
	return &EpisodeAction{
		ID:        uuid.New().String(),
		Type:      ActionPlay,
		PodcastID: podcastID,
		EpisodeID: &episodeID,
		Position:  position,
		Duration:  duration,
		Completed: completed,
		Timestamp: now,
		CreatedAt: now,
	}
}

// NewSubscriptionAction creates a pending subscribe or unsubscribe action.
func NewSubscriptionAction(podcastID, actionType string) *EpisodeAction {
	now := time.Now()
	return &EpisodeAction{
		ID:        uuid.New().String(),
		Type:      actionType,
		PodcastID: podcastID,
		Timestamp: now,
		CreatedAt: now,
	}
}
