// ABOUTME: The sync cycle state machine: idle -> syncing -> (succeeded | partiallyFailed | failed)
// ABOUTME: Pushes the action queue, reconciles subscriptions, and refreshes feeds with bounded parallelism

package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/castsync/castsync/internal/fetch"
	"github.com/castsync/castsync/internal/gpodder"
	"github.com/castsync/castsync/internal/models"
	"github.com/castsync/castsync/internal/parse"
	"github.com/castsync/castsync/internal/storage"
	"github.com/castsync/castsync/internal/timeutil"
)

// Result summarizes one completed sync cycle.
type Result struct {
	Mode            Mode
	Status          string // models.SyncSucceeded, SyncPartiallyFailed, or SyncFailed
	PodcastsSynced  int
	PodcastsFailed  int
	ActionsPushed   int
	ActionsApplied  int // remote actions applied locally
	SubscriptionsIn int // remote subscriptions adopted locally
	LastError       string
}

// feedOutcome carries one fetched feed from the worker pool to the
// sequential merge step.
type feedOutcome struct {
	podcast *models.Podcast
	parsed  *parse.ParsedFeed
	etag    string
	lastMod string
	cached  bool
	err     error
}

// PerformSync runs one sync cycle in the given mode.
//
// Entry guard: if a cycle is already in flight the call is a no-op and
// returns (nil, nil) immediately without mutating state. A smart sync
// escalates to full when no full sync has ever completed or too many
// consecutive smart cycles have failed. Per-feed failures are isolated; the
// cycle is partiallyFailed if at least one feed failed and failed only when
// authentication fails or zero podcasts could be synced.
func (e *Engine) PerformSync(ctx context.Context, mode Mode) (*Result, error) {
	if !e.syncing.CompareAndSwap(false, true) {
		return nil, nil
	}
	defer e.syncing.Store(false)

	state, err := e.store.GetSyncState()
	if err != nil {
		return nil, fmt.Errorf("load sync state: %w", err)
	}

	if mode == ModeSmart && e.shouldEscalate(state) {
		e.logger.Info("escalating smart sync to full", "consecutive_failures", state.ConsecutiveFailures)
		mode = ModeFull
	}

	state.IsSyncing = true
	state.SyncAttempts++
	if err := e.store.UpdateSyncState(state); err != nil {
		return nil, fmt.Errorf("persist sync state: %w", err)
	}

	result := e.runCycle(ctx, mode, state)

	state.IsSyncing = false
	state.LastResult = result.Status
	if result.Status == models.SyncFailed {
		state.ConsecutiveFailures++
		state.LastError = &result.LastError
	} else {
		state.ConsecutiveFailures = 0
		state.LastError = nil
		if result.LastError != "" {
			state.LastError = &result.LastError
		}
		if mode == ModeFull && result.Status == models.SyncSucceeded {
			now := time.Now()
			state.LastFullSync = &now
		}
	}
	if err := e.store.UpdateSyncState(state); err != nil {
		return result, fmt.Errorf("persist sync state: %w", err)
	}

	e.logger.Info("sync cycle finished",
		"mode", mode, "status", result.Status,
		"synced", result.PodcastsSynced, "failed", result.PodcastsFailed,
		"actions_pushed", result.ActionsPushed)

	var cycleErr error
	if result.Status == models.SyncFailed {
		cycleErr = errors.New(result.LastError)
	}
	return result, cycleErr
}

func (e *Engine) shouldEscalate(state *models.SyncState) bool {
	return state.LastFullSync == nil || state.ConsecutiveFailures >= e.opts.EscalationThreshold
}

// runCycle executes the phases of one cycle and classifies the outcome.
func (e *Engine) runCycle(ctx context.Context, mode Mode, state *models.SyncState) *Result {
	result := &Result{Mode: mode}

	cfg, err := e.sessions.Session(ctx)
	if err != nil {
		result.Status = models.SyncFailed
		result.LastError = err.Error()
		return result
	}

	var partial bool

	// Subscription phase.
	cfg, err = e.syncSubscriptions(ctx, cfg, mode, state, result)
	if err != nil {
		if IsAuthError(err) || errors.Is(err, gpodder.ErrNotConfigured) {
			result.Status = models.SyncFailed
			result.LastError = err.Error()
			return result
		}
		partial = true
		result.LastError = err.Error()
		e.logger.Warn("subscription sync failed", "err", err)
	}

	// Action push/pull phase.
	cfg, err = e.syncActions(ctx, cfg, mode, state, result)
	if err != nil {
		if IsAuthError(err) {
			result.Status = models.SyncFailed
			result.LastError = err.Error()
			return result
		}
		partial = true
		result.LastError = err.Error()
		e.logger.Warn("action sync failed", "err", err)
	}

	// Feed refresh phase.
	attempted := e.refreshFeeds(ctx, mode, result)
	if result.PodcastsFailed > 0 {
		partial = true
	}

	switch {
	case attempted > 0 && result.PodcastsSynced == 0:
		result.Status = models.SyncFailed
		if result.LastError == "" {
			result.LastError = "no podcasts could be synced"
		}
	case partial:
		result.Status = models.SyncPartiallyFailed
	default:
		result.Status = models.SyncSucceeded
	}
	return result
}

// withAuthRetry runs one server call, refreshing the session exactly once
// when it is rejected with 401/403.
func (e *Engine) withAuthRetry(ctx context.Context, cfg *models.ServerConfig, call func(*models.ServerConfig) error) (*models.ServerConfig, error) {
	err := call(cfg)
	if err == nil || !IsAuthError(err) {
		return cfg, err
	}

	e.logger.Info("session rejected, re-authenticating once")
	fresh, refreshErr := e.sessions.Refresh(ctx)
	if refreshErr != nil {
		return cfg, refreshErr
	}
	return fresh, call(fresh)
}

// syncSubscriptions reconciles the subscription list with the server.
//
// Full mode pulls the complete remote feed-URL list, adopts remote-only
// feeds locally, and pushes local-only unsynced subscriptions. Smart mode
// pushes pending subscription changes and pulls only deltas since the last
// subscription sync.
func (e *Engine) syncSubscriptions(ctx context.Context, cfg *models.ServerConfig, mode Mode, state *models.SyncState, result *Result) (*models.ServerConfig, error) {
	add, remove, pushed, err := e.pendingSubscriptionChanges()
	if err != nil {
		return cfg, err
	}

	if len(add) > 0 || len(remove) > 0 {
		cfg, err = e.withAuthRetry(ctx, cfg, func(c *models.ServerConfig) error {
			return e.client.UploadSubscriptionChanges(ctx, c, add, remove)
		})
		if err != nil {
			if qErr := e.queue.RecordFailure(pushed, err); qErr != nil {
				e.logger.Error("record subscription push failure", "err", qErr)
			}
			return cfg, err
		}
		if err := e.acknowledgeSubscriptionPush(pushed); err != nil {
			return cfg, err
		}
	}

	switch mode {
	case ModeFull:
		var remote []string
		cfg, err = e.withAuthRetry(ctx, cfg, func(c *models.ServerConfig) error {
			var callErr error
			remote, callErr = e.client.GetAllSubscriptions(ctx, c)
			return callErr
		})
		if err != nil {
			return cfg, err
		}
		adopted, err := e.adoptRemoteSubscriptions(remote)
		if err != nil {
			return cfg, err
		}
		result.SubscriptionsIn += adopted
	case ModeSmart:
		since := time.Unix(0, 0)
		if state.LastSubscriptionSync != nil {
			since = *state.LastSubscriptionSync
		}
		var delta *gpodder.SubscriptionDelta
		cfg, err = e.withAuthRetry(ctx, cfg, func(c *models.ServerConfig) error {
			var callErr error
			delta, callErr = e.client.GetSubscriptionChanges(ctx, c, since)
			return callErr
		})
		if err != nil {
			return cfg, err
		}
		adopted, err := e.adoptRemoteSubscriptions(delta.Add)
		if err != nil {
			return cfg, err
		}
		result.SubscriptionsIn += adopted
		if err := e.dropRemoteSubscriptions(delta.Remove); err != nil {
			return cfg, err
		}
	}

	now := time.Now()
	state.LastSubscriptionSync = &now
	return cfg, nil
}

// pendingSubscriptionChanges builds the add/remove lists from queued
// subscription actions plus podcasts still flagged needs_sync.
func (e *Engine) pendingSubscriptionChanges() (add, remove []string, pushed []*models.EpisodeAction, err error) {
	actions, err := e.queue.Pending(0)
	if err != nil {
		return nil, nil, nil, err
	}

	seen := make(map[string]bool)
	for _, a := range actions {
		if a.Type == models.ActionPlay {
			continue
		}
		podcast, getErr := e.store.GetPodcast(a.PodcastID)
		if getErr != nil {
			// Podcast deleted since the action was queued; drop the action.
			pushed = append(pushed, a)
			continue
		}
		if a.Type == models.ActionSubscribe {
			add = append(add, podcast.FeedURL)
		} else {
			remove = append(remove, podcast.FeedURL)
		}
		seen[podcast.ID] = true
		pushed = append(pushed, a)
	}

	// Podcasts flagged needs_sync without a queued action (e.g. adopted
	// from an OPML import) are pushed as well.
	podcasts, err := e.store.ListPodcasts(false)
	if err != nil {
		return nil, nil, nil, err
	}
	for _, p := range podcasts {
		if !p.NeedsSync || seen[p.ID] {
			continue
		}
		if p.Subscribed {
			add = append(add, p.FeedURL)
		} else {
			remove = append(remove, p.FeedURL)
		}
	}
	return add, remove, pushed, nil
}

// acknowledgeSubscriptionPush clears needs_sync and marks the pushed
// actions synced after a confirmed server acknowledgment.
func (e *Engine) acknowledgeSubscriptionPush(pushed []*models.EpisodeAction) error {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	now := time.Now()
	podcasts, err := e.store.ListPodcasts(false)
	if err != nil {
		return err
	}
	for _, p := range podcasts {
		if p.NeedsSync {
			if err := e.store.MarkPodcastSynced(p.ID, now); err != nil {
				return err
			}
		}
	}
	return e.queue.MarkSynced(pushed)
}

// adoptRemoteSubscriptions creates local subscriptions for remote-only feed
// URLs. Adopted podcasts do not need a push back; the server already knows.
func (e *Engine) adoptRemoteSubscriptions(urls []string) (int, error) {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	adopted := 0
	for _, feedURL := range urls {
		if feedURL == "" {
			continue
		}
		existing, err := e.store.GetPodcastByFeedURL(feedURL)
		if err == nil {
			if !existing.Subscribed {
				existing.Subscribed = true
				existing.NeedsSync = false
				if err := e.store.UpdatePodcast(existing); err != nil {
					return adopted, err
				}
				adopted++
			}
			continue
		}
		podcast := models.NewPodcast(feedURL)
		podcast.NeedsSync = false
		if err := e.store.CreatePodcast(podcast); err != nil {
			return adopted, err
		}
		adopted++
	}
	return adopted, nil
}

// dropRemoteSubscriptions applies remote unsubscribes locally. Episodes and
// history are kept.
func (e *Engine) dropRemoteSubscriptions(urls []string) error {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	for _, feedURL := range urls {
		podcast, err := e.store.GetPodcastByFeedURL(feedURL)
		if err != nil {
			continue
		}
		if podcast.Subscribed {
			podcast.Subscribed = false
			podcast.NeedsSync = false
			if err := e.store.UpdatePodcast(podcast); err != nil {
				return err
			}
		}
	}
	return nil
}

// syncActions drains the play-action queue to the server and applies the
// remote action history locally.
func (e *Engine) syncActions(ctx context.Context, cfg *models.ServerConfig, mode Mode, state *models.SyncState, result *Result) (*models.ServerConfig, error) {
	pending, err := e.queue.Pending(e.opts.ActionBatchSize)
	if err != nil {
		return cfg, err
	}

	var batch []*models.EpisodeAction
	var wire []gpodder.Action
	for _, a := range pending {
		if a.Type != models.ActionPlay || a.EpisodeID == nil {
			continue
		}
		record, convErr := e.wireAction(a)
		if convErr != nil {
			e.logger.Warn("skipping unconvertible action", "action", a.ID, "err", convErr)
			continue
		}
		batch = append(batch, a)
		wire = append(wire, record)
	}

	if len(wire) > 0 {
		cfg, err = e.withAuthRetry(ctx, cfg, func(c *models.ServerConfig) error {
			return e.client.UploadEpisodeActions(ctx, c, wire)
		})
		if err != nil {
			if qErr := e.queue.RecordFailure(batch, err); qErr != nil {
				e.logger.Error("record action push failure", "err", qErr)
			}
			return cfg, err
		}
		if err := e.queue.MarkSynced(batch); err != nil {
			return cfg, err
		}
		result.ActionsPushed = len(batch)
	}

	// Pull remote history. Full mode pulls everything; smart mode only
	// deltas since the last progress sync.
	since := time.Unix(0, 0)
	if mode == ModeSmart && state.LastProgressSync != nil {
		since = *state.LastProgressSync
	}
	var delta *gpodder.ActionDelta
	cfg, err = e.withAuthRetry(ctx, cfg, func(c *models.ServerConfig) error {
		var callErr error
		delta, callErr = e.client.GetEpisodeActions(ctx, c, since)
		return callErr
	})
	if err != nil {
		return cfg, err
	}

	applied, err := e.applyRemoteActions(delta.Actions)
	if err != nil {
		return cfg, err
	}
	result.ActionsApplied = applied

	now := time.Now()
	state.LastProgressSync = &now
	return cfg, nil
}

// wireAction converts a queued play action to its bulk-update wire record.
func (e *Engine) wireAction(a *models.EpisodeAction) (gpodder.Action, error) {
	episode, err := e.store.GetEpisode(*a.EpisodeID)
	if err != nil {
		return gpodder.Action{}, err
	}
	podcast, err := e.store.GetPodcast(a.PodcastID)
	if err != nil {
		return gpodder.Action{}, err
	}

	position := a.Position
	total := a.Duration
	record := gpodder.Action{
		Podcast:   podcast.FeedURL,
		Episode:   episode.AudioURL,
		Action:    models.ActionPlay,
		Timestamp: gpodder.WireTimestamp(a.Timestamp),
		Position:  &position,
	}
	if total > 0 {
		record.Total = &total
	}
	record.Completed = a.Completed
	return record, nil
}

// applyRemoteActions folds the server's action history into local episodes.
// Conflict policy is last-writer-wins: a remote action older than a locally
// queued action for the same episode is skipped, since the local one will be
// pushed and win.
func (e *Engine) applyRemoteActions(actions []gpodder.Action) (int, error) {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	applied := 0
	for _, remote := range actions {
		if remote.Action != models.ActionPlay {
			continue
		}
		podcast, err := e.store.GetPodcastByFeedURL(remote.Podcast)
		if err != nil {
			continue // unknown feed locally, nothing to apply to
		}
		episode, err := e.episodeByAudioURL(podcast.ID, remote.Episode)
		if err != nil || episode == nil {
			continue
		}

		remoteTime := gpodder.ParseWireTimestamp(remote.Timestamp)
		local, err := e.store.GetPendingActionForEpisode(episode.ID)
		if err != nil {
			return applied, err
		}
		if local != nil && local.Timestamp.After(remoteTime) {
			continue
		}

		position := episode.Position
		if remote.Position != nil {
			position = *remote.Position
		}
		completed := episode.Played || remote.Completed
		var playedAt *time.Time
		if remote.Total != nil && remote.Position != nil && *remote.Position >= *remote.Total && *remote.Total > 0 {
			completed = true
		}
		if completed {
			if episode.PlayedAt != nil {
				playedAt = episode.PlayedAt
			} else {
				playedAt = &remoteTime
			}
		}
		if err := e.store.UpdateEpisodeProgress(episode.ID, position, completed, playedAt); err != nil {
			return applied, err
		}
		applied++
	}
	return applied, nil
}

// episodeByAudioURL finds a podcast's episode by its media URL, the identity
// the wire protocol uses.
func (e *Engine) episodeByAudioURL(podcastID, audioURL string) (*models.Episode, error) {
	episodes, err := e.store.ListEpisodes(&storage.EpisodeFilter{PodcastID: &podcastID})
	if err != nil {
		return nil, err
	}
	for _, ep := range episodes {
		if ep.AudioURL == audioURL {
			return ep, nil
		}
	}
	return nil, nil
}

// refreshFeeds fetches and merges subscribed feeds with bounded parallelism.
// Fetch and parse run in the worker pool; each merge is applied back to the
// store sequentially to avoid write races. Returns how many feeds were
// attempted.
func (e *Engine) refreshFeeds(ctx context.Context, mode Mode, result *Result) int {
	podcasts, err := e.store.ListPodcasts(true)
	if err != nil {
		e.logger.Error("list podcasts", "err", err)
		result.LastError = err.Error()
		return 0
	}

	if mode == ModeSmart {
		fresh := podcasts[:0]
		for _, p := range podcasts {
			if timeutil.IsStale(p.LastUpdated, e.opts.StalenessThreshold) {
				fresh = append(fresh, p)
			}
		}
		podcasts = fresh
	}
	if len(podcasts) == 0 {
		return 0
	}

	work := make(chan *models.Podcast)
	outcomes := make(chan feedOutcome)

	workers := e.opts.Workers
	if workers > len(podcasts) {
		workers = len(podcasts)
	}
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := range work {
				outcomes <- e.fetchFeed(ctx, p)
			}
		}()
	}

	go func() {
		defer close(work)
		for _, p := range podcasts {
			select {
			case <-ctx.Done():
				return
			case work <- p:
			}
		}
	}()

	// Cancellation stops the feeder, so fewer outcomes than podcasts may
	// arrive; the channel is closed once the workers drain. Undispatched
	// feeds are deferred to the next cycle.
	go func() {
		wg.Wait()
		close(outcomes)
	}()

	// Merges are applied here, one at a time, as workers finish. Work
	// merged before a cancellation stays committed.
	attempted := 0
	for outcome := range outcomes {
		attempted++
		if outcome.err != nil {
			result.PodcastsFailed++
			result.LastError = outcome.err.Error()
			e.logger.Warn("feed sync failed", "feed", outcome.podcast.FeedURL, "err", outcome.err)
			if err := e.store.UpdatePodcastError(outcome.podcast.ID, outcome.err.Error()); err != nil {
				e.logger.Error("record feed error", "err", err)
			}
			continue
		}
		if outcome.cached {
			result.PodcastsSynced++
			continue
		}
		if err := e.applyFeed(outcome); err != nil {
			result.PodcastsFailed++
			result.LastError = err.Error()
			e.logger.Warn("feed merge failed", "feed", outcome.podcast.FeedURL, "err", err)
			continue
		}
		result.PodcastsSynced++
	}

	return attempted
}

// fetchFeed downloads and parses one feed. Runs inside the worker pool and
// must not touch the store.
func (e *Engine) fetchFeed(ctx context.Context, podcast *models.Podcast) feedOutcome {
	outcome := feedOutcome{podcast: podcast}

	res, err := fetch.FetchWithRetry(ctx, podcast.FeedURL, podcast.ETag, podcast.LastModified)
	if err != nil {
		outcome.err = err
		return outcome
	}
	if res.NotModified {
		outcome.cached = true
		return outcome
	}

	parsed, err := parse.Parse(res.Body)
	if err != nil {
		outcome.err = err
		return outcome
	}
	outcome.parsed = parsed
	outcome.etag = res.ETag
	outcome.lastMod = res.LastModified
	return outcome
}

// applyFeed merges one fetched feed under the writer lock.
func (e *Engine) applyFeed(outcome feedOutcome) error {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	if _, err := e.merger.Apply(outcome.podcast, outcome.parsed); err != nil {
		return err
	}
	return e.store.UpdatePodcastFetchState(
		outcome.podcast.ID,
		optionalStr(outcome.etag), optionalStr(outcome.lastMod),
		time.Now(),
	)
}
