// ABOUTME: Sync engine construction and the direct-write operations subscribe and record-progress
// ABOUTME: All local store mutations are serialized through one writer lock

package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/castsync/castsync/internal/fetch"
	"github.com/castsync/castsync/internal/gpodder"
	"github.com/castsync/castsync/internal/merge"
	"github.com/castsync/castsync/internal/models"
	"github.com/castsync/castsync/internal/parse"
	"github.com/castsync/castsync/internal/queue"
	"github.com/castsync/castsync/internal/storage"
)

// Sync modes.
type Mode string

const (
	// ModeFull re-pulls the complete subscription list and action history
	// and refreshes every subscribed feed.
	ModeFull Mode = "full"
	// ModeSmart pushes the current queue and pulls only deltas, refreshing
	// only stale feeds.
	ModeSmart Mode = "smart"
)

// Options tune the engine. Zero values fall back to defaults.
type Options struct {
	// Workers bounds parallel feed fetches within one cycle.
	Workers int
	// StalenessThreshold is how old a podcast's last merge may be before a
	// smart sync refetches it.
	StalenessThreshold time.Duration
	// EscalationThreshold is how many consecutive smart-sync failures force
	// the next smart sync up to a full one.
	EscalationThreshold int
	// ActionBatchSize caps how many queued actions one push carries.
	ActionBatchSize int
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = 4
	}
	if o.StalenessThreshold <= 0 {
		o.StalenessThreshold = time.Hour
	}
	if o.EscalationThreshold <= 0 {
		o.EscalationThreshold = 3
	}
	if o.ActionBatchSize <= 0 {
		o.ActionBatchSize = 100
	}
	return o
}

// Engine orchestrates sync cycles and owns all writes to the local store.
type Engine struct {
	store    storage.Store
	queue    *queue.ActionQueue
	merger   *merge.Merger
	client   *gpodder.Client
	sessions *gpodder.SessionManager
	logger   *log.Logger
	opts     Options

	// writeMu serializes store mutations: merge application within a cycle
	// and the direct-write operations below. Concurrent calls queue behind
	// it, never interleave at the field level.
	writeMu sync.Mutex

	// syncing is the single-sync-in-flight guard.
	syncing atomic.Bool
}

// New creates an Engine over the given store.
func New(store storage.Store, logger *log.Logger, opts Options) *Engine {
	client := gpodder.New(logger)
	return &Engine{
		store:    store,
		queue:    queue.New(store),
		merger:   merge.New(store),
		client:   client,
		sessions: gpodder.NewSessionManager(store, client),
		logger:   logger,
		opts:     opts.withDefaults(),
	}
}

// Queue exposes the action queue for status display.
func (e *Engine) Queue() *queue.ActionQueue { return e.queue }

// Subscribe fetches, parses, and merges a single feed synchronously,
// creating or reviving the podcast record. The podcast is marked as needing
// sync and a subscription action is queued for the next push.
//
// Returns the podcast, or a typed error: *fetch.NetworkError for transport
// and HTTP failures, parse.ErrInvalidFeed / *parse.ParseError for unusable
// documents.
func (e *Engine) Subscribe(ctx context.Context, feedURL string) (*models.Podcast, error) {
	result, err := fetch.FetchWithRetry(ctx, feedURL, nil, nil)
	if err != nil {
		return nil, err
	}

	parsed, err := parse.Parse(result.Body)
	if err != nil {
		return nil, err
	}

	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	podcast, err := e.store.GetPodcastByFeedURL(feedURL)
	if err != nil {
		// Unknown feed: create the record.
		podcast = models.NewPodcast(feedURL)
		if err := e.store.CreatePodcast(podcast); err != nil {
			return nil, fmt.Errorf("create podcast: %w", err)
		}
	} else {
		podcast.Subscribed = true
		podcast.NeedsSync = true
	}

	if _, err := e.merger.Apply(podcast, parsed); err != nil {
		return nil, err
	}
	if err := e.store.UpdatePodcastFetchState(podcast.ID, optionalStr(result.ETag), optionalStr(result.LastModified), time.Now()); err != nil {
		return nil, err
	}

	if _, err := e.queue.EnqueueSubscription(podcast.ID, models.ActionSubscribe); err != nil {
		return nil, err
	}

	e.logger.Info("subscribed", "feed", feedURL, "episodes", len(parsed.Episodes))
	return podcast, nil
}

// Unsubscribe marks a podcast unsubscribed and queues the change for the
// next push. Episodes and listening history are kept locally.
func (e *Engine) Unsubscribe(feedURL string) error {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	podcast, err := e.store.GetPodcastByFeedURL(feedURL)
	if err != nil {
		return fmt.Errorf("podcast not found: %s", feedURL)
	}

	podcast.Subscribed = false
	podcast.NeedsSync = true
	if err := e.store.UpdatePodcast(podcast); err != nil {
		return err
	}

	_, err = e.queue.EnqueueSubscription(podcast.ID, models.ActionUnsubscribe)
	return err
}

// RecordProgress writes the local-only playback fields immediately and
// enqueues a coalesced episode action. It never blocks on the network.
func (e *Engine) RecordProgress(episodeID string, position int, completed bool) error {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	episode, err := e.store.GetEpisode(episodeID)
	if err != nil {
		return err
	}

	var playedAt *time.Time
	if completed {
		now := time.Now()
		playedAt = &now
	} else if episode.Played {
		// A completed episode stays completed when the player keeps
		// reporting position afterwards.
		completed = true
		playedAt = episode.PlayedAt
	}

	if err := e.store.UpdateEpisodeProgress(episodeID, position, completed, playedAt); err != nil {
		return err
	}

	duration := 0
	if episode.Duration != nil {
		duration = *episode.Duration
	}
	_, err = e.queue.EnqueueProgress(episode, position, duration, completed)
	return err
}

// IsAuthError reports whether err is a credential/session failure.
func IsAuthError(err error) bool {
	var authErr *gpodder.AuthError
	return errors.As(err, &authErr)
}

func optionalStr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
