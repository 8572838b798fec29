// Package textclean turns provider article text into stored excerpts and
// model premises.
package textclean

import (
	"bytes"
	"html"
	"net/url"
	"regexp"
	"strings"

	readability "codeberg.org/readeck/go-readability/v2"
)

const (
	DefaultMaxContentLength = 300
	ellipsis                = "..."
)

var (
	// NewsAPI cuts content and appends e.g. "[+2345 chars]".
	truncationMarker = regexp.MustCompile(`\s*…?\s*\[\+\d+ chars\]\s*$`)
	tagPattern       = regexp.MustCompile(`(?s)<[^>]*>`)
	fallbackPageURL  = &url.URL{Scheme: "https", Host: "localhost", Path: "/"}
)

// PlainText strips markup and provider artefacts from raw article text.
func PlainText(raw, pageURL string) string {
	text := truncationMarker.ReplaceAllString(strings.TrimSpace(raw), "")
	if !strings.ContainsAny(text, "<&") {
		return CleanText(text)
	}
	if !strings.Contains(text, "<") {
		return CleanText(html.UnescapeString(text))
	}

	if rendered := renderReadable(text, pageURL); rendered != "" {
		return rendered
	}
	return CleanText(html.UnescapeString(tagPattern.ReplaceAllString(text, " ")))
}

func renderReadable(fragment, pageURL string) string {
	base := fallbackPageURL
	if parsed, err := url.Parse(strings.TrimSpace(pageURL)); err == nil && parsed.Scheme != "" && parsed.Host != "" {
		base = parsed
	}

	doc := "<html><body><article>" + fragment + "</article></body></html>"
	article, err := readability.FromReader(strings.NewReader(doc), base)
	if err != nil {
		return ""
	}

	var rendered bytes.Buffer
	if err := article.RenderText(&rendered); err != nil {
		return ""
	}
	return CleanText(rendered.String())
}

// CleanText normalizes line endings and collapses extra in-line whitespace.
func CleanText(raw string) string {
	normalized := strings.ReplaceAll(raw, "\r\n", "\n")
	normalized = strings.ReplaceAll(normalized, "\r", "\n")

	lines := strings.Split(normalized, "\n")
	paragraphs := make([]string, 0, len(lines))
	for _, line := range lines {
		clean := strings.Join(strings.Fields(strings.TrimSpace(line)), " ")
		if clean == "" {
			continue
		}
		paragraphs = append(paragraphs, clean)
	}

	return strings.TrimSpace(strings.Join(paragraphs, "\n\n"))
}

// Truncate clips text to at most maxChars runes, cutting at the last word
// boundary and appending "...". Text that already fits is returned trimmed.
func Truncate(raw string, maxChars int) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	if maxChars <= 0 {
		return trimmed, false
	}

	runes := []rune(trimmed)
	if len(runes) <= maxChars {
		return trimmed, false
	}
	if maxChars <= len(ellipsis) {
		return ellipsis[:maxChars], true
	}

	clipped := string(runes[:maxChars-len(ellipsis)])
	// Only back up to a space when the cut landed inside a word.
	if !isSpace(runes[maxChars-len(ellipsis)]) {
		if idx := strings.LastIndexAny(clipped, " \t\n"); idx > 0 {
			clipped = clipped[:idx]
		}
	}
	clipped = strings.TrimRight(clipped, " \t\n.,;:-")
	if clipped == "" {
		return ellipsis, true
	}
	return clipped + ellipsis, true
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n'
}
