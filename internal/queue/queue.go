// ABOUTME: Durable coalescing queue of not-yet-acknowledged user actions
// ABOUTME: Bounds queue growth under once-per-second progress reporting from the player

package queue

import (
	"fmt"
	"time"

	"github.com/castsync/castsync/internal/models"
	"github.com/castsync/castsync/internal/storage"
)

// WriteError is a local persistence failure while queueing an action. It is
// fatal to the current operation and surfaced to the caller.
type WriteError struct {
	Op  string
	Err error
}

func (e *WriteError) Error() string { return fmt.Sprintf("queue %s: %v", e.Op, e.Err) }
func (e *WriteError) Unwrap() error { return e.Err }

// ActionQueue holds pending EpisodeAction entries backed by the store.
type ActionQueue struct {
	store storage.Store
}

// New creates an ActionQueue over the given store.
func New(store storage.Store) *ActionQueue {
	return &ActionQueue{store: store}
}

// EnqueueProgress records a playback-progress action for an episode.
//
// Enqueue policy is coalescing: when an unsynced play action already exists
// for the episode, its position, completed flag, and timestamp are replaced
// in place instead of appending a new entry. The player may report position
// as often as once per second; without coalescing the queue would grow
// unboundedly between syncs.
func (q *ActionQueue) EnqueueProgress(episode *models.Episode, position, duration int, completed bool) (*models.EpisodeAction, error) {
	existing, err := q.store.GetPendingActionForEpisode(episode.ID)
	if err != nil {
		return nil, &WriteError{Op: "lookup", Err: err}
	}

	if existing != nil {
		existing.Position = position
		if duration > 0 {
			existing.Duration = duration
		}
		existing.Completed = completed
		existing.Timestamp = time.Now()
		if err := q.store.UpdateAction(existing); err != nil {
			return nil, &WriteError{Op: "coalesce", Err: err}
		}
		return existing, nil
	}

	action := models.NewPlayAction(episode.PodcastID, episode.ID, position, duration, completed)
	if err := q.store.CreateAction(action); err != nil {
		return nil, &WriteError{Op: "enqueue", Err: err}
	}
	return action, nil
}

// EnqueueSubscription records a subscribe or unsubscribe action for a
// podcast, to be pushed on the next cycle.
func (q *ActionQueue) EnqueueSubscription(podcastID, actionType string) (*models.EpisodeAction, error) {
	action := models.NewSubscriptionAction(podcastID, actionType)
	if err := q.store.CreateAction(action); err != nil {
		return nil, &WriteError{Op: "enqueue", Err: err}
	}
	return action, nil
}

// Pending returns up to limit unsynced actions in creation order. A limit
// of zero returns everything.
func (q *ActionQueue) Pending(limit int) ([]*models.EpisodeAction, error) {
	return q.store.ListPendingActions(limit)
}

// MarkSynced flags the given actions as acknowledged by the server and
// prunes previously acknowledged entries.
func (q *ActionQueue) MarkSynced(actions []*models.EpisodeAction) error {
	ids := actionIDs(actions)
	if err := q.store.MarkActionsSynced(ids); err != nil {
		return &WriteError{Op: "ack", Err: err}
	}
	// Acknowledged entries have served their purpose; keeping them would
	// only grow the table.
	if _, err := q.store.DeleteSyncedActions(); err != nil {
		return &WriteError{Op: "prune", Err: err}
	}
	return nil
}

// RecordFailure bumps the attempt counter and error on the given actions.
// There is no attempt ceiling: a failing action stays queued indefinitely,
// because losing a listening position is worse than a stale queue.
func (q *ActionQueue) RecordFailure(actions []*models.EpisodeAction, cause error) error {
	msg := cause.Error()
	if err := q.store.RecordActionFailure(actionIDs(actions), msg); err != nil {
		return &WriteError{Op: "record failure", Err: err}
	}
	return nil
}

// Stats summarizes the queue for status display.
func (q *ActionQueue) Stats() (*storage.QueueStats, error) {
	return q.store.GetQueueStats()
}

func actionIDs(actions []*models.EpisodeAction) []string {
	ids := make([]string, len(actions))
	for i, a := range actions {
		ids[i] = a.ID
	}
	return ids
}
