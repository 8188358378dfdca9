// ABOUTME: Content processing utilities for episode show notes
// ABOUTME: Detects HTML, converts to Markdown for display, and strips tags for summaries

package content

import (
	"regexp"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"golang.org/x/net/html"
)

// htmlTagPattern matches common HTML tags
var htmlTagPattern = regexp.MustCompile(`<\s*(p|div|span|a|br|img|h[1-6]|ul|ol|li|table|tr|td|th|strong|em|b|i|code|pre|blockquote)[^>]*>`)

var whitespacePattern = regexp.MustCompile(`\s+`)

// IsHTML checks if content appears to be HTML
func IsHTML(content string) bool {
	if strings.Contains(content, "<!DOCTYPE") || strings.Contains(content, "<html") {
		return true
	}
	return htmlTagPattern.MatchString(content)
}

// ToMarkdown converts HTML show notes to Markdown.
// If the content doesn't appear to be HTML, returns it unchanged.
func ToMarkdown(content string) string {
	if content == "" || !IsHTML(content) {
		return content
	}

	markdown, err := htmltomarkdown.ConvertString(content)
	if err != nil {
		// If conversion fails, return original content
		return content
	}
	return strings.TrimSpace(markdown)
}

// StripTags reduces HTML to plain text with collapsed whitespace, for the
// short summary field. Non-HTML input passes through trimmed.
func StripTags(content string) string {
	if content == "" {
		return content
	}
	if !IsHTML(content) {
		return strings.TrimSpace(whitespacePattern.ReplaceAllString(content, " "))
	}

	tokenizer := html.NewTokenizer(strings.NewReader(content))
	var b strings.Builder
	for {
		tt := tokenizer.Next()
		if tt == html.ErrorToken {
			break
		}
		if tt == html.TextToken {
			b.WriteString(tokenizer.Token().Data)
			b.WriteByte(' ')
		}
	}
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(b.String(), " "))
}
