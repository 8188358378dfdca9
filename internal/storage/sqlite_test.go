// ABOUTME: Test suite for the SQLite store
// ABOUTME: Covers podcast and episode CRUD, the split episode write surface, queue ops, and singletons

package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/castsync/castsync/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func strPtr(s string) *string { return &s }
func intPtr(n int) *int       { return &n }

func TestPodcastCRUD(t *testing.T) {
	store := newTestStore(t)

	podcast := models.NewPodcast("https://example.com/feed.xml")
	podcast.Title = strPtr("Test Cast")
	podcast.Categories = []string{"Technology", "News"}

	if err := store.CreatePodcast(podcast); err != nil {
		t.Fatalf("CreatePodcast() error = %v", err)
	}

	got, err := store.GetPodcast(podcast.ID)
	if err != nil {
		t.Fatalf("GetPodcast() error = %v", err)
	}
	if got.FeedURL != podcast.FeedURL {
		t.Errorf("FeedURL = %q, want %q", got.FeedURL, podcast.FeedURL)
	}
	if got.Title == nil || *got.Title != "Test Cast" {
		t.Errorf("Title = %v, want Test Cast", got.Title)
	}
	if len(got.Categories) != 2 || got.Categories[0] != "Technology" {
		t.Errorf("Categories = %v, want [Technology News]", got.Categories)
	}
	if !got.Subscribed || !got.NeedsSync {
		t.Errorf("Subscribed = %v, NeedsSync = %v, want both true", got.Subscribed, got.NeedsSync)
	}

	byURL, err := store.GetPodcastByFeedURL(podcast.FeedURL)
	if err != nil {
		t.Fatalf("GetPodcastByFeedURL() error = %v", err)
	}
	if byURL.ID != podcast.ID {
		t.Errorf("GetPodcastByFeedURL() ID = %q, want %q", byURL.ID, podcast.ID)
	}

	// Duplicate feed URL must be rejected.
	dup := models.NewPodcast(podcast.FeedURL)
	if err := store.CreatePodcast(dup); err == nil {
		t.Error("CreatePodcast() with duplicate feed URL succeeded, want error")
	}

	got.Title = strPtr("Renamed")
	got.Subscribed = false
	if err := store.UpdatePodcast(got); err != nil {
		t.Fatalf("UpdatePodcast() error = %v", err)
	}
	updated, _ := store.GetPodcast(podcast.ID)
	if updated.Title == nil || *updated.Title != "Renamed" {
		t.Errorf("Title after update = %v, want Renamed", updated.Title)
	}
	if updated.Subscribed {
		t.Error("Subscribed after update = true, want false")
	}
}

func TestListPodcasts_SubscribedOnly(t *testing.T) {
	store := newTestStore(t)

	sub := models.NewPodcast("https://example.com/a.xml")
	unsub := models.NewPodcast("https://example.com/b.xml")
	unsub.Subscribed = false
	store.CreatePodcast(sub)
	store.CreatePodcast(unsub)

	all, err := store.ListPodcasts(false)
	if err != nil {
		t.Fatalf("ListPodcasts(false) error = %v", err)
	}
	if len(all) != 2 {
		t.Errorf("len(all) = %d, want 2", len(all))
	}

	subscribed, err := store.ListPodcasts(true)
	if err != nil {
		t.Fatalf("ListPodcasts(true) error = %v", err)
	}
	if len(subscribed) != 1 || subscribed[0].ID != sub.ID {
		t.Errorf("ListPodcasts(true) = %d podcasts, want just the subscribed one", len(subscribed))
	}
}

func TestUpdatePodcastFetchState(t *testing.T) {
	store := newTestStore(t)

	podcast := models.NewPodcast("https://example.com/feed.xml")
	store.CreatePodcast(podcast)
	store.UpdatePodcastError(podcast.ID, "boom")
	store.UpdatePodcastError(podcast.ID, "boom again")

	withErr, _ := store.GetPodcast(podcast.ID)
	if withErr.ErrorCount != 2 || withErr.LastError == nil {
		t.Fatalf("ErrorCount = %d, LastError = %v, want 2 and non-nil", withErr.ErrorCount, withErr.LastError)
	}

	now := time.Now()
	if err := store.UpdatePodcastFetchState(podcast.ID, strPtr(`"v2"`), nil, now); err != nil {
		t.Fatalf("UpdatePodcastFetchState() error = %v", err)
	}

	got, _ := store.GetPodcast(podcast.ID)
	if got.ETag == nil || *got.ETag != `"v2"` {
		t.Errorf("ETag = %v, want \"v2\"", got.ETag)
	}
	if got.LastUpdated == nil {
		t.Error("LastUpdated = nil, want set")
	}
	if got.ErrorCount != 0 || got.LastError != nil {
		t.Errorf("error state not cleared: count=%d err=%v", got.ErrorCount, got.LastError)
	}
}

func TestEpisodeIdentity(t *testing.T) {
	store := newTestStore(t)

	p1 := models.NewPodcast("https://example.com/a.xml")
	p2 := models.NewPodcast("https://example.com/b.xml")
	store.CreatePodcast(p1)
	store.CreatePodcast(p2)

	e1 := models.NewEpisode(p1.ID, "shared-guid", "https://example.com/a1.mp3")
	if err := store.CreateEpisode(e1); err != nil {
		t.Fatalf("CreateEpisode() error = %v", err)
	}

	// Same guid under another podcast is a distinct episode.
	e2 := models.NewEpisode(p2.ID, "shared-guid", "https://example.com/b1.mp3")
	if err := store.CreateEpisode(e2); err != nil {
		t.Fatalf("CreateEpisode() same guid other podcast error = %v", err)
	}

	// Same (podcast, guid) pair must be rejected.
	dup := models.NewEpisode(p1.ID, "shared-guid", "https://example.com/a1-dup.mp3")
	if err := store.CreateEpisode(dup); err == nil {
		t.Error("CreateEpisode() with duplicate (podcast, guid) succeeded, want error")
	}

	got, err := store.GetEpisodeByKey(p1.ID, "shared-guid")
	if err != nil {
		t.Fatalf("GetEpisodeByKey() error = %v", err)
	}
	if got == nil || got.ID != e1.ID {
		t.Errorf("GetEpisodeByKey() = %v, want episode %s", got, e1.ID)
	}

	missing, err := store.GetEpisodeByKey(p1.ID, "no-such-guid")
	if err != nil {
		t.Fatalf("GetEpisodeByKey() missing error = %v", err)
	}
	if missing != nil {
		t.Errorf("GetEpisodeByKey() for absent guid = %v, want nil", missing)
	}
}

func TestEpisodeWriteSurfaceSplit(t *testing.T) {
	store := newTestStore(t)

	podcast := models.NewPodcast("https://example.com/feed.xml")
	store.CreatePodcast(podcast)

	episode := models.NewEpisode(podcast.ID, "ep-1", "https://example.com/1.mp3")
	episode.Title = strPtr("Original")
	store.CreateEpisode(episode)

	// Record playback progress.
	playedAt := time.Now()
	if err := store.UpdateEpisodeProgress(episode.ID, 120, true, &playedAt); err != nil {
		t.Fatalf("UpdateEpisodeProgress() error = %v", err)
	}

	// A remote update must not touch the playback fields.
	episode.Title = strPtr("Retitled")
	episode.Duration = intPtr(1800)
	episode.Position = 0 // stale in-memory value; must not be written
	episode.Played = false
	if err := store.UpdateEpisodeRemote(episode); err != nil {
		t.Fatalf("UpdateEpisodeRemote() error = %v", err)
	}

	got, _ := store.GetEpisode(episode.ID)
	if got.Title == nil || *got.Title != "Retitled" {
		t.Errorf("Title = %v, want Retitled", got.Title)
	}
	if got.Duration == nil || *got.Duration != 1800 {
		t.Errorf("Duration = %v, want 1800", got.Duration)
	}
	if got.Position != 120 {
		t.Errorf("Position = %d, want 120 preserved across remote update", got.Position)
	}
	if !got.Played {
		t.Error("Played = false, want true preserved across remote update")
	}
}

func TestListEpisodesAndCounts(t *testing.T) {
	store := newTestStore(t)

	podcast := models.NewPodcast("https://example.com/feed.xml")
	store.CreatePodcast(podcast)

	for i, guid := range []string{"a", "b", "c"} {
		e := models.NewEpisode(podcast.ID, guid, "https://example.com/"+guid+".mp3")
		published := time.Date(2026, 1, i+1, 0, 0, 0, 0, time.UTC)
		e.PublishedAt = &published
		store.CreateEpisode(e)
		if guid == "a" {
			store.UpdateEpisodeProgress(e.ID, 100, true, &published)
		}
	}

	unplayedOnly := true
	episodes, err := store.ListEpisodes(&EpisodeFilter{PodcastID: &podcast.ID, UnplayedOnly: &unplayedOnly})
	if err != nil {
		t.Fatalf("ListEpisodes() error = %v", err)
	}
	if len(episodes) != 2 {
		t.Fatalf("len(episodes) = %d, want 2 unplayed", len(episodes))
	}
	// Newest first.
	if episodes[0].GUID != "c" {
		t.Errorf("episodes[0].GUID = %q, want c (newest first)", episodes[0].GUID)
	}

	count, err := store.CountUnplayed(&podcast.ID)
	if err != nil {
		t.Fatalf("CountUnplayed() error = %v", err)
	}
	if count != 2 {
		t.Errorf("CountUnplayed() = %d, want 2", count)
	}

	limit := 1
	limited, _ := store.ListEpisodes(&EpisodeFilter{Limit: &limit})
	if len(limited) != 1 {
		t.Errorf("len(limited) = %d, want 1", len(limited))
	}
}

func TestDeletePodcastCascades(t *testing.T) {
	store := newTestStore(t)

	podcast := models.NewPodcast("https://example.com/feed.xml")
	store.CreatePodcast(podcast)
	episode := models.NewEpisode(podcast.ID, "ep-1", "https://example.com/1.mp3")
	store.CreateEpisode(episode)

	if err := store.DeletePodcast(podcast.ID); err != nil {
		t.Fatalf("DeletePodcast() error = %v", err)
	}
	if _, err := store.GetEpisode(episode.ID); err == nil {
		t.Error("GetEpisode() after cascade delete succeeded, want error")
	}
}

func TestActionQueueOps(t *testing.T) {
	store := newTestStore(t)

	podcast := models.NewPodcast("https://example.com/feed.xml")
	store.CreatePodcast(podcast)
	episode := models.NewEpisode(podcast.ID, "ep-1", "https://example.com/1.mp3")
	store.CreateEpisode(episode)

	action := models.NewPlayAction(podcast.ID, episode.ID, 60, 1800, false)
	if err := store.CreateAction(action); err != nil {
		t.Fatalf("CreateAction() error = %v", err)
	}

	pending, err := store.GetPendingActionForEpisode(episode.ID)
	if err != nil {
		t.Fatalf("GetPendingActionForEpisode() error = %v", err)
	}
	if pending == nil || pending.ID != action.ID {
		t.Fatalf("GetPendingActionForEpisode() = %v, want action %s", pending, action.ID)
	}

	pending.Position = 300
	pending.Completed = true
	if err := store.UpdateAction(pending); err != nil {
		t.Fatalf("UpdateAction() error = %v", err)
	}
	reread, _ := store.GetPendingActionForEpisode(episode.ID)
	if reread.Position != 300 || !reread.Completed {
		t.Errorf("after UpdateAction: Position = %d, Completed = %v", reread.Position, reread.Completed)
	}

	// Failure bookkeeping keeps the action pending.
	if err := store.RecordActionFailure([]string{action.ID}, "server down"); err != nil {
		t.Fatalf("RecordActionFailure() error = %v", err)
	}
	failed, _ := store.GetPendingActionForEpisode(episode.ID)
	if failed == nil || failed.SyncAttempts != 1 || failed.LastSyncError == nil {
		t.Fatalf("after failure: %+v, want attempts=1 and error set", failed)
	}

	stats, _ := store.GetQueueStats()
	if stats.Pending != 1 || stats.Failing != 1 {
		t.Errorf("QueueStats = %+v, want 1 pending, 1 failing", stats)
	}

	// Acknowledge and prune.
	if err := store.MarkActionsSynced([]string{action.ID}); err != nil {
		t.Fatalf("MarkActionsSynced() error = %v", err)
	}
	none, _ := store.GetPendingActionForEpisode(episode.ID)
	if none != nil {
		t.Errorf("pending action after sync = %v, want nil", none)
	}
	pruned, err := store.DeleteSyncedActions()
	if err != nil {
		t.Fatalf("DeleteSyncedActions() error = %v", err)
	}
	if pruned != 1 {
		t.Errorf("DeleteSyncedActions() = %d, want 1", pruned)
	}
}

func TestListPendingActionsOrder(t *testing.T) {
	store := newTestStore(t)

	podcast := models.NewPodcast("https://example.com/feed.xml")
	store.CreatePodcast(podcast)

	first := models.NewSubscriptionAction(podcast.ID, models.ActionSubscribe)
	first.CreatedAt = time.Now().Add(-time.Minute)
	second := models.NewSubscriptionAction(podcast.ID, models.ActionUnsubscribe)
	store.CreateAction(first)
	store.CreateAction(second)

	pending, err := store.ListPendingActions(10)
	if err != nil {
		t.Fatalf("ListPendingActions() error = %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("len(pending) = %d, want 2", len(pending))
	}
	if pending[0].ID != first.ID {
		t.Errorf("pending[0] = %s, want oldest first", pending[0].ID)
	}
}

func TestSyncStateSingleton(t *testing.T) {
	store := newTestStore(t)

	state, err := store.GetSyncState()
	if err != nil {
		t.Fatalf("GetSyncState() error = %v", err)
	}
	if state.IsSyncing || state.SyncAttempts != 0 {
		t.Errorf("default state = %+v, want zero values", state)
	}

	now := time.Now()
	state.IsSyncing = true
	state.SyncAttempts = 3
	state.ConsecutiveFailures = 1
	state.LastResult = models.SyncPartiallyFailed
	state.LastError = strPtr("one feed failed")
	state.LastFullSync = &now
	if err := store.UpdateSyncState(state); err != nil {
		t.Fatalf("UpdateSyncState() error = %v", err)
	}

	got, _ := store.GetSyncState()
	if !got.IsSyncing || got.SyncAttempts != 3 || got.ConsecutiveFailures != 1 {
		t.Errorf("got = %+v, want persisted values", got)
	}
	if got.LastResult != models.SyncPartiallyFailed || got.LastError == nil {
		t.Errorf("LastResult = %q, LastError = %v", got.LastResult, got.LastError)
	}
	if got.LastFullSync == nil {
		t.Error("LastFullSync = nil, want set")
	}
}

func TestServerConfigSingleton(t *testing.T) {
	store := newTestStore(t)

	cfg, err := store.GetServerConfig()
	if err != nil {
		t.Fatalf("GetServerConfig() error = %v", err)
	}
	if cfg != nil {
		t.Errorf("GetServerConfig() before login = %+v, want nil", cfg)
	}

	saved := &models.ServerConfig{
		ServerURL: "https://gpodder.example.com",
		Username:  "alice",
		Password:  "secret",
		DeviceID:  "castsync-abc12345",
		CreatedAt: time.Now(),
	}
	if err := store.SaveServerConfig(saved); err != nil {
		t.Fatalf("SaveServerConfig() error = %v", err)
	}

	got, _ := store.GetServerConfig()
	if got == nil || got.Username != "alice" || got.DeviceID != "castsync-abc12345" {
		t.Fatalf("GetServerConfig() = %+v, want saved values", got)
	}
	if got.SessionToken != nil {
		t.Errorf("SessionToken = %v, want nil before login", got.SessionToken)
	}

	// Saving again replaces the singleton.
	saved.SessionToken = strPtr("tok-1")
	store.SaveServerConfig(saved)
	again, _ := store.GetServerConfig()
	if again.SessionToken == nil || *again.SessionToken != "tok-1" {
		t.Errorf("SessionToken = %v, want tok-1", again.SessionToken)
	}
}

func TestGetPodcastStats(t *testing.T) {
	store := newTestStore(t)

	podcast := models.NewPodcast("https://example.com/feed.xml")
	podcast.Title = strPtr("Stats Cast")
	store.CreatePodcast(podcast)

	played := models.NewEpisode(podcast.ID, "a", "https://example.com/a.mp3")
	unplayed := models.NewEpisode(podcast.ID, "b", "https://example.com/b.mp3")
	store.CreateEpisode(played)
	store.CreateEpisode(unplayed)
	now := time.Now()
	store.UpdateEpisodeProgress(played.ID, 100, true, &now)

	rows, err := store.GetPodcastStats()
	if err != nil {
		t.Fatalf("GetPodcastStats() error = %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("len(rows) = %d, want 1", len(rows))
	}
	row := rows[0]
	if row.EpisodeCount != 2 || row.UnplayedCount != 1 {
		t.Errorf("stats = %d episodes / %d unplayed, want 2 / 1", row.EpisodeCount, row.UnplayedCount)
	}
	if row.Title == nil || *row.Title != "Stats Cast" {
		t.Errorf("Title = %v, want Stats Cast", row.Title)
	}
}
