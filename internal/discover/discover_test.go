// ABOUTME: Test suite for podcast feed discovery
// ABOUTME: Exercises the direct, link-alternate, and common-path strategies against httptest

package discover

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

const discoverFeedXML = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Discovered Cast</title>
    <item>
      <guid>ep-1</guid>
      <title>Ep</title>
      <enclosure url="https://cdn.example.com/1.mp3" type="audio/mpeg"/>
    </item>
  </channel>
</rss>`

func TestDiscover_DirectFeed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(discoverFeedXML))
	}))
	defer server.Close()

	feed, err := Discover(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if feed.URL != server.URL {
		t.Errorf("URL = %q, want %q", feed.URL, server.URL)
	}
	if feed.Title != "Discovered Cast" {
		t.Errorf("Title = %q, want Discovered Cast", feed.Title)
	}
}

func TestDiscover_LinkAlternate(t *testing.T) {
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<!DOCTYPE html>
<html><head>
<link rel="alternate" type="application/rss+xml" title="Show Feed" href="/shows/feed.rss">
</head><body>a podcast site</body></html>`)
	})
	mux.HandleFunc("/shows/feed.rss", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(discoverFeedXML))
	})

	feed, err := Discover(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if feed.URL != server.URL+"/shows/feed.rss" {
		t.Errorf("URL = %q, want resolved link href", feed.URL)
	}
	if feed.Title != "Discovered Cast" {
		t.Errorf("Title = %q", feed.Title)
	}
}

func TestDiscover_CommonPath(t *testing.T) {
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/feed.xml" {
			w.Write([]byte(discoverFeedXML))
			return
		}
		w.Write([]byte("<html><head></head><body>no links here</body></html>"))
	})

	feed, err := Discover(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if feed.URL != server.URL+"/feed.xml" {
		t.Errorf("URL = %q, want common-path probe result", feed.URL)
	}
}

func TestDiscover_NoFeed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("<html><head></head><body>nothing to see</body></html>"))
	}))
	defer server.Close()

	_, err := Discover(context.Background(), server.URL)
	if !errors.Is(err, ErrNoFeedFound) {
		t.Errorf("Discover() error = %v, want ErrNoFeedFound", err)
	}
}

func TestDiscover_InvalidURL(t *testing.T) {
	for _, input := range []string{"not a url at all", "/relative/path", ""} {
		_, err := Discover(context.Background(), input)
		if !errors.Is(err, ErrInvalidURL) {
			t.Errorf("Discover(%q) error = %v, want ErrInvalidURL", input, err)
		}
	}
}
