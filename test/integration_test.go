// ABOUTME: Integration tests for the full subscribe-and-sync workflow
// ABOUTME: Runs the engine end to end against local feed and gpodder test servers

package test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/castsync/castsync/internal/engine"
	"github.com/castsync/castsync/internal/gpodder"
	"github.com/castsync/castsync/internal/models"
	"github.com/castsync/castsync/internal/opml"
	"github.com/castsync/castsync/internal/storage"
)

const testFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:itunes="http://www.itunes.com/dtds/podcast-1.0.dtd">
  <channel>
    <title>Integration Cast</title>
    <description>end to end</description>
    <item>
      <guid>ep-1</guid>
      <title>Episode One</title>
      <pubDate>Mon, 02 Jan 2006 15:04:05 -0700</pubDate>
      <enclosure url="https://cdn.example.com/ep1.mp3" length="1000" type="audio/mpeg"/>
      <itunes:duration>30:00</itunes:duration>
    </item>
    <item>
      <guid>ep-2</guid>
      <title>Episode Two</title>
      <enclosure url="https://cdn.example.com/ep2.mp3" type="audio/mpeg"/>
    </item>
  </channel>
</rss>`

// gpodderServer is a minimal in-memory sync server.
type gpodderServer struct {
	mu            sync.Mutex
	actionUploads [][]gpodder.Action
	subs          []string
}

func (g *gpodderServer) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/api/2/auth/alice/login.json":
			http.SetCookie(w, &http.Cookie{Name: "sessionid", Value: "tok"})
		case r.URL.Path == "/subscriptions/alice/device-1.json":
			g.mu.Lock()
			subs := append([]string(nil), g.subs...)
			g.mu.Unlock()
			json.NewEncoder(w).Encode(subs)
		case r.URL.Path == "/api/2/subscriptions/alice/device-1.json":
			if r.Method == http.MethodPost {
				var body map[string][]string
				json.NewDecoder(r.Body).Decode(&body)
				g.mu.Lock()
				g.subs = append(g.subs, body["add"]...)
				g.mu.Unlock()
			}
			if r.Method == http.MethodGet {
				json.NewEncoder(w).Encode(gpodder.SubscriptionDelta{Timestamp: time.Now().Unix()})
				return
			}
			json.NewEncoder(w).Encode(map[string]int64{"timestamp": time.Now().Unix()})
		case r.URL.Path == "/api/2/episodes/alice.json":
			if r.Method == http.MethodPost {
				var actions []gpodder.Action
				json.NewDecoder(r.Body).Decode(&actions)
				g.mu.Lock()
				g.actionUploads = append(g.actionUploads, actions)
				g.mu.Unlock()
			}
			g.mu.Lock()
			history := []gpodder.Action{}
			for _, batch := range g.actionUploads {
				history = append(history, batch...)
			}
			g.mu.Unlock()
			json.NewEncoder(w).Encode(gpodder.ActionDelta{Actions: history, Timestamp: time.Now().Unix()})
		default:
			http.NotFound(w, r)
		}
	})
}

func TestSubscribeAndSyncWorkflow(t *testing.T) {
	feedSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, testFeed)
	}))
	defer feedSrv.Close()

	gpo := &gpodderServer{}
	gpoSrv := httptest.NewServer(gpo.handler())
	defer gpoSrv.Close()

	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "castsync.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	if err := store.SaveServerConfig(&models.ServerConfig{
		ServerURL: gpoSrv.URL,
		Username:  "alice",
		Password:  "secret",
		DeviceID:  "device-1",
		CreatedAt: time.Now(),
	}); err != nil {
		t.Fatalf("save server config: %v", err)
	}

	eng := engine.New(store, log.New(io.Discard), engine.Options{})
	ctx := context.Background()

	// Subscribe: feed fetched, parsed, and merged immediately.
	podcast, err := eng.Subscribe(ctx, feedSrv.URL)
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if podcast.Title == nil || *podcast.Title != "Integration Cast" {
		t.Fatalf("podcast title = %v", podcast.Title)
	}
	episodes, err := store.ListEpisodes(&storage.EpisodeFilter{PodcastID: &podcast.ID})
	if err != nil {
		t.Fatalf("list episodes: %v", err)
	}
	if len(episodes) != 2 {
		t.Fatalf("len(episodes) = %d, want 2", len(episodes))
	}

	// Record playback offline.
	episode, err := store.GetEpisodeByKey(podcast.ID, "ep-1")
	if err != nil || episode == nil {
		t.Fatalf("episode lookup: %v", err)
	}
	if err := eng.RecordProgress(episode.ID, 600, false); err != nil {
		t.Fatalf("RecordProgress() error = %v", err)
	}

	// First sync: pushes the subscription and the play action.
	result, err := eng.PerformSync(ctx, engine.ModeFull)
	if err != nil {
		t.Fatalf("PerformSync() error = %v", err)
	}
	if result.Status != models.SyncSucceeded {
		t.Fatalf("sync status = %q (%s)", result.Status, result.LastError)
	}
	if result.ActionsPushed != 1 {
		t.Errorf("ActionsPushed = %d, want 1", result.ActionsPushed)
	}

	gpo.mu.Lock()
	subCount := len(gpo.subs)
	uploadCount := len(gpo.actionUploads)
	gpo.mu.Unlock()
	if subCount != 1 {
		t.Errorf("server subscriptions = %d, want 1", subCount)
	}
	if uploadCount != 1 {
		t.Errorf("server action uploads = %d, want 1", uploadCount)
	}

	// The queue is drained and the subscription acknowledged.
	pending, err := store.ListPendingActions(0)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("pending actions after sync = %d, want 0", len(pending))
	}
	synced, _ := store.GetPodcast(podcast.ID)
	if synced.NeedsSync {
		t.Error("podcast still flagged needs_sync after acknowledged push")
	}

	// A second device's store sees the same state after a full sync.
	otherStore, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "other.db"))
	if err != nil {
		t.Fatalf("open second store: %v", err)
	}
	defer otherStore.Close()
	otherStore.SaveServerConfig(&models.ServerConfig{
		ServerURL: gpoSrv.URL,
		Username:  "alice",
		Password:  "secret",
		DeviceID:  "device-1",
		CreatedAt: time.Now(),
	})

	other := engine.New(otherStore, log.New(io.Discard), engine.Options{})
	otherResult, err := other.PerformSync(ctx, engine.ModeFull)
	if err != nil {
		t.Fatalf("second device sync error = %v", err)
	}
	if otherResult.SubscriptionsIn != 1 {
		t.Errorf("SubscriptionsIn = %d, want 1 adopted subscription", otherResult.SubscriptionsIn)
	}

	// Episodes arrive during the feed-refresh phase, after actions are
	// pulled, so the remote position lands on the following cycle.
	otherResult, err = other.PerformSync(ctx, engine.ModeFull)
	if err != nil {
		t.Fatalf("second device resync error = %v", err)
	}
	if otherResult.ActionsApplied != 1 {
		t.Errorf("ActionsApplied = %d, want the played position applied", otherResult.ActionsApplied)
	}

	adopted, err := otherStore.GetPodcastByFeedURL(feedSrv.URL)
	if err != nil {
		t.Fatalf("adopted podcast lookup: %v", err)
	}
	otherEpisode, err := otherStore.GetEpisodeByKey(adopted.ID, "ep-1")
	if err != nil || otherEpisode == nil {
		t.Fatalf("adopted episode lookup: %v", err)
	}
	if otherEpisode.Position != 600 {
		t.Errorf("second device position = %d, want 600", otherEpisode.Position)
	}
}

func TestOPMLExportImportRoundTrip(t *testing.T) {
	feedSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, testFeed)
	}))
	defer feedSrv.Close()

	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "castsync.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	eng := engine.New(store, log.New(io.Discard), engine.Options{})
	if _, err := eng.Subscribe(context.Background(), feedSrv.URL); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	// Export the library.
	podcasts, err := store.ListPodcasts(true)
	if err != nil {
		t.Fatalf("list podcasts: %v", err)
	}
	doc := opml.NewDocument("castsync subscriptions")
	for _, p := range podcasts {
		title := p.FeedURL
		if p.Title != nil {
			title = *p.Title
		}
		doc.Add(p.FeedURL, title)
	}
	opmlPath := filepath.Join(t.TempDir(), "subs.opml")
	if err := doc.WriteFile(opmlPath); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	// Import into a fresh document.
	back, err := opml.ParseFile(opmlPath)
	if err != nil {
		t.Fatalf("ParseFile() error = %v", err)
	}
	if len(back.Subscriptions) != 1 {
		t.Fatalf("len(Subscriptions) = %d, want 1", len(back.Subscriptions))
	}
	if back.Subscriptions[0].URL != feedSrv.URL {
		t.Errorf("URL = %q, want %q", back.Subscriptions[0].URL, feedSrv.URL)
	}
	if back.Subscriptions[0].Title != "Integration Cast" {
		t.Errorf("Title = %q", back.Subscriptions[0].Title)
	}
}
