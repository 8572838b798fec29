// Package source searches news providers for articles about a startup.
package source

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNoKeys is returned when every configured API key was rejected.
var ErrNoKeys = errors.New("no usable news api key")

// Article is one search hit as returned by a provider, before cleaning.
type Article struct {
	Title       string
	URL         string
	Description string
	Content     string
	SourceName  string
	PublishedAt time.Time
}

// DedupURL lets articles be filtered by the dedup package.
func (a Article) DedupURL() string { return a.URL }

// Body returns the longest text the provider gave for the article.
func (a Article) Body() string {
	content := strings.TrimSpace(a.Content)
	description := strings.TrimSpace(a.Description)
	if len(content) >= len(description) {
		return content
	}
	return description
}

// Query is a provider-neutral search over [Since, Until).
type Query struct {
	Text  string
	Since time.Time
	Until time.Time
}

// Source is an article provider. Implementations bound every outbound call
// with their own timeout.
type Source interface {
	Name() string
	Search(ctx context.Context, query Query) ([]Article, error)
}

// StatusError is a non-2xx provider response.
type StatusError struct {
	Provider   string
	StatusCode int
	Code       string
	Message    string
}

func (e *StatusError) Error() string {
	msg := e.Message
	if e.Code != "" {
		msg = e.Code + ": " + msg
	}
	return fmt.Sprintf("%s status %d: %s", e.Provider, e.StatusCode, strings.TrimSpace(msg))
}

// Temporary reports whether retrying the same request later may succeed.
func (e *StatusError) Temporary() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}
