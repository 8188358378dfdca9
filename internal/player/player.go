// ABOUTME: Event contract between the external playback engine and the sync core
// ABOUTME: Consumes position/completion events from a channel and records progress

package player

import (
	"context"

	"github.com/charmbracelet/log"
)

// Event is one playback report from the player: a position update or a
// completion. The player may emit these as often as once per second; the
// action queue coalesces them.
type Event struct {
	EpisodeID string
	Position  int // seconds
	Completed bool
}

// ProgressRecorder is the slice of the sync engine the listener needs.
type ProgressRecorder interface {
	RecordProgress(episodeID string, position int, completed bool) error
}

// Listener drains player events into the sync core, decoupling the player's
// internal timer from store writes.
type Listener struct {
	recorder ProgressRecorder
	events   <-chan Event
	logger   *log.Logger
}

// NewListener creates a Listener over an event channel.
func NewListener(recorder ProgressRecorder, events <-chan Event, logger *log.Logger) *Listener {
	return &Listener{recorder: recorder, events: events, logger: logger}
}

// Run consumes events until the channel closes or the context is cancelled.
// A failed write is logged and dropped; the next event for the episode
// carries fresher state anyway.
func (l *Listener) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-l.events:
			if !ok {
				return
			}
			if err := l.recorder.RecordProgress(ev.EpisodeID, ev.Position, ev.Completed); err != nil {
				l.logger.Warn("record playback progress", "episode", ev.EpisodeID, "err", err)
			}
		}
	}
}
