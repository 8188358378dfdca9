// ABOUTME: Test suite for OPML subscription list handling
// ABOUTME: Validates parsing of flat and nested outlines, dedupe, and round-trip writing

package opml

import (
	"bytes"
	"strings"
	"testing"
)

const flatOPML = `<?xml version="1.0" encoding="UTF-8"?>
<opml version="2.0">
  <head><title>Podcasts</title></head>
  <body>
    <outline text="Cast A" type="rss" xmlUrl="https://example.com/a.xml"/>
    <outline text="Cast B" title="Cast B Full Title" type="rss" xmlUrl="https://example.com/b.xml"/>
  </body>
</opml>`

const nestedOPML = `<?xml version="1.0" encoding="UTF-8"?>
<opml version="2.0">
  <head><title>Podcasts</title></head>
  <body>
    <outline text="Tech">
      <outline text="Cast A" type="rss" xmlUrl="https://example.com/a.xml"/>
      <outline text="Deeper">
        <outline text="Cast B" type="rss" xmlUrl="https://example.com/b.xml"/>
      </outline>
    </outline>
    <outline text="Cast C" type="rss" xmlUrl="https://example.com/c.xml"/>
  </body>
</opml>`

func TestParse_Flat(t *testing.T) {
	doc, err := Parse(strings.NewReader(flatOPML))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if doc.Title != "Podcasts" {
		t.Errorf("Title = %q, want Podcasts", doc.Title)
	}
	if len(doc.Subscriptions) != 2 {
		t.Fatalf("len(Subscriptions) = %d, want 2", len(doc.Subscriptions))
	}
	if doc.Subscriptions[0].URL != "https://example.com/a.xml" {
		t.Errorf("Subscriptions[0].URL = %q", doc.Subscriptions[0].URL)
	}
	if doc.Subscriptions[0].Title != "Cast A" {
		t.Errorf("Subscriptions[0].Title = %q, want text attr fallback", doc.Subscriptions[0].Title)
	}
	if doc.Subscriptions[1].Title != "Cast B Full Title" {
		t.Errorf("Subscriptions[1].Title = %q, want title attr preferred", doc.Subscriptions[1].Title)
	}
}

func TestParse_NestedFoldersFlattened(t *testing.T) {
	doc, err := Parse(strings.NewReader(nestedOPML))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(doc.Subscriptions) != 3 {
		t.Fatalf("len(Subscriptions) = %d, want 3 (folders flattened)", len(doc.Subscriptions))
	}
	urls := map[string]bool{}
	for _, s := range doc.Subscriptions {
		urls[s.URL] = true
	}
	for _, want := range []string{
		"https://example.com/a.xml",
		"https://example.com/b.xml",
		"https://example.com/c.xml",
	} {
		if !urls[want] {
			t.Errorf("missing subscription %q", want)
		}
	}
}

func TestParse_Invalid(t *testing.T) {
	if _, err := Parse(strings.NewReader("not xml at all")); err == nil {
		t.Error("Parse() error = nil, want error for invalid document")
	}
}

func TestAdd_Dedupes(t *testing.T) {
	doc := NewDocument("Podcasts")
	if !doc.Add("https://example.com/a.xml", "Cast A") {
		t.Error("first Add() = false, want true")
	}
	if doc.Add("https://example.com/a.xml", "Cast A Again") {
		t.Error("duplicate Add() = true, want false")
	}
	if len(doc.Subscriptions) != 1 {
		t.Errorf("len(Subscriptions) = %d, want 1", len(doc.Subscriptions))
	}
}

func TestWrite_RoundTrip(t *testing.T) {
	doc := NewDocument("My Subscriptions")
	doc.Add("https://example.com/a.xml", "Cast A")
	doc.Add("https://example.com/b.xml", "Cast B")

	var buf bytes.Buffer
	if err := doc.Write(&buf); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, `version="2.0"`) {
		t.Error("output missing OPML version attribute")
	}
	if !strings.Contains(out, `xmlUrl="https://example.com/a.xml"`) {
		t.Error("output missing feed URL")
	}

	back, err := Parse(&buf)
	if err != nil {
		t.Fatalf("Parse(round trip) error = %v", err)
	}
	if back.Title != "My Subscriptions" {
		t.Errorf("round-trip Title = %q", back.Title)
	}
	if len(back.Subscriptions) != 2 {
		t.Fatalf("round-trip len(Subscriptions) = %d, want 2", len(back.Subscriptions))
	}
	if back.Subscriptions[1].URL != "https://example.com/b.xml" || back.Subscriptions[1].Title != "Cast B" {
		t.Errorf("round-trip Subscriptions[1] = %+v", back.Subscriptions[1])
	}
}
