// ABOUTME: Test suite for model constructors and state helpers
// ABOUTME: Validates defaults, identity fields, and the configured check

package models

import (
	"testing"
	"time"
)

func TestNewPodcast(t *testing.T) {
	p := NewPodcast("https://example.com/feed.xml")

	if p.ID == "" {
		t.Error("ID is empty")
	}
	if p.FeedURL != "https://example.com/feed.xml" {
		t.Errorf("FeedURL = %q", p.FeedURL)
	}
	if !p.Subscribed {
		t.Error("Subscribed = false, want true")
	}
	if !p.NeedsSync {
		t.Error("NeedsSync = false, want true (push on next cycle)")
	}

	now := time.Now()
	p.MarkSynced(now)
	if p.NeedsSync {
		t.Error("NeedsSync after MarkSynced = true, want false")
	}
	if p.LastSyncedAt == nil || !p.LastSyncedAt.Equal(now) {
		t.Errorf("LastSyncedAt = %v, want %v", p.LastSyncedAt, now)
	}
}

func TestNewEpisode(t *testing.T) {
	e := NewEpisode("pod-1", "guid-1", "https://example.com/1.mp3")

	if e.ID == "" {
		t.Error("ID is empty")
	}
	if e.PodcastID != "pod-1" || e.GUID != "guid-1" {
		t.Errorf("identity = (%q, %q)", e.PodcastID, e.GUID)
	}
	if e.DownloadState != DownloadNone {
		t.Errorf("DownloadState = %q, want %q", e.DownloadState, DownloadNone)
	}
	if e.Position != 0 || e.Played {
		t.Errorf("playback defaults = (%d, %v), want zero values", e.Position, e.Played)
	}

	at := time.Now()
	e.MarkPlayed(at)
	if !e.Played || e.PlayedAt == nil {
		t.Error("MarkPlayed did not set completion")
	}
}

func TestNewPlayAction(t *testing.T) {
	a := NewPlayAction("pod-1", "ep-1", 300, 1800, true)

	if a.Type != ActionPlay {
		t.Errorf("Type = %q, want %q", a.Type, ActionPlay)
	}
	if a.EpisodeID == nil || *a.EpisodeID != "ep-1" {
		t.Errorf("EpisodeID = %v, want ep-1", a.EpisodeID)
	}
	if a.Position != 300 || a.Duration != 1800 || !a.Completed {
		t.Errorf("fields = (%d, %d, %v)", a.Position, a.Duration, a.Completed)
	}
	if a.Synced || a.SyncAttempts != 0 {
		t.Error("new action must start unsynced with zero attempts")
	}
}

func TestNewSubscriptionAction(t *testing.T) {
	a := NewSubscriptionAction("pod-1", ActionUnsubscribe)

	if a.Type != ActionUnsubscribe {
		t.Errorf("Type = %q", a.Type)
	}
	if a.EpisodeID != nil {
		t.Errorf("EpisodeID = %v, want nil for subscription actions", a.EpisodeID)
	}
}

func TestServerConfigConfigured(t *testing.T) {
	var nilCfg *ServerConfig
	if nilCfg.Configured() {
		t.Error("nil config reports configured")
	}
	if (&ServerConfig{}).Configured() {
		t.Error("empty config reports configured")
	}
	if (&ServerConfig{ServerURL: "https://gpo.example.com"}).Configured() {
		t.Error("config without username reports configured")
	}
	cfg := &ServerConfig{ServerURL: "https://gpo.example.com", Username: "alice"}
	if !cfg.Configured() {
		t.Error("complete config reports not configured")
	}
}
