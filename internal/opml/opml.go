// ABOUTME: OPML parsing and writing for podcast subscription lists
// ABOUTME: Flat outline format with round-trip XML serialization

package opml

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
)

// Subscription is one podcast feed in an OPML document.
type Subscription struct {
	URL   string
	Title string
}

// Document represents an OPML subscription list.
type Document struct {
	Title         string
	Subscriptions []Subscription
}

// XML structs for parsing and writing OPML files
type opmlXML struct {
	XMLName xml.Name `xml:"opml"`
	Version string   `xml:"version,attr"`
	Head    headXML  `xml:"head"`
	Body    bodyXML  `xml:"body"`
}

type headXML struct {
	Title string `xml:"title"`
}

type bodyXML struct {
	Outlines []outlineXML `xml:"outline"`
}

type outlineXML struct {
	Text     string       `xml:"text,attr"`
	Title    string       `xml:"title,attr,omitempty"`
	Type     string       `xml:"type,attr,omitempty"`
	XMLURL   string       `xml:"xmlUrl,attr,omitempty"`
	Children []outlineXML `xml:"outline,omitempty"`
}

// NewDocument creates an empty OPML document with the given title.
func NewDocument(title string) *Document {
	return &Document{Title: title}
}

// Parse reads OPML data and returns a Document. Nested folder outlines are
// flattened; only nodes carrying a feed URL become subscriptions.
func Parse(r io.Reader) (*Document, error) {
	var raw opmlXML
	if err := xml.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode OPML: %w", err)
	}

	doc := &Document{Title: raw.Head.Title}
	var walk func(outlines []outlineXML)
	walk = func(outlines []outlineXML) {
		for _, o := range outlines {
			if o.XMLURL != "" {
				title := o.Title
				if title == "" {
					title = o.Text
				}
				doc.Subscriptions = append(doc.Subscriptions, Subscription{
					URL:   o.XMLURL,
					Title: title,
				})
			}
			walk(o.Children)
		}
	}
	walk(raw.Body.Outlines)
	return doc, nil
}

// ParseFile reads an OPML document from a file.
func ParseFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open OPML file: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Add appends a subscription, skipping duplicates by URL.
func (d *Document) Add(url, title string) bool {
	for _, s := range d.Subscriptions {
		if s.URL == url {
			return false
		}
	}
	d.Subscriptions = append(d.Subscriptions, Subscription{URL: url, Title: title})
	return true
}

// Write serializes the document as OPML 2.0.
func (d *Document) Write(w io.Writer) error {
	raw := opmlXML{
		Version: "2.0",
		Head:    headXML{Title: d.Title},
	}
	for _, s := range d.Subscriptions {
		raw.Body.Outlines = append(raw.Body.Outlines, outlineXML{
			Text:   s.Title,
			Title:  s.Title,
			Type:   "rss",
			XMLURL: s.URL,
		})
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(raw); err != nil {
		return fmt.Errorf("encode OPML: %w", err)
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// WriteFile serializes the document to a file.
func (d *Document) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create OPML file: %w", err)
	}
	defer f.Close()
	return d.Write(f)
}
