package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestBuildQuery(t *testing.T) {
	t.Parallel()

	got := BuildQuery("Swiggy", []string{"swiggy", "Instamart", `  "Swiggy  Genie" `, ""})
	const want = `"Swiggy" OR "Instamart" OR "Swiggy Genie"`
	if got != want {
		t.Fatalf("unexpected query: got %q want %q", got, want)
	}
}

func TestBuildQueryRespectsLengthLimit(t *testing.T) {
	t.Parallel()

	keywords := make([]string, 0, 80)
	for i := 0; i < 80; i++ {
		keywords = append(keywords, fmt.Sprintf("keyword number %02d", i))
	}
	got := BuildQuery("Zepto", keywords)
	if len(got) > MaxQueryLength {
		t.Fatalf("query exceeds limit: %d", len(got))
	}
	if !strings.HasPrefix(got, `"Zepto" OR "keyword number 00"`) {
		t.Fatalf("unexpected query prefix: %q", got)
	}
	for _, term := range strings.Split(got, " OR ") {
		if !strings.HasPrefix(term, `"`) || !strings.HasSuffix(term, `"`) {
			t.Fatalf("term was cut: %q", term)
		}
	}
}

func TestArticleBodyPrefersLongerText(t *testing.T) {
	t.Parallel()

	a := Article{Description: "short", Content: "a much longer content body"}
	if a.Body() != "a much longer content body" {
		t.Fatalf("unexpected body: %q", a.Body())
	}
	a.Content = ""
	if a.Body() != "short" {
		t.Fatalf("unexpected fallback body: %q", a.Body())
	}
}

func newsAPIPage(n, offset int, total int) string {
	items := make([]string, 0, n)
	for i := 0; i < n; i++ {
		items = append(items, fmt.Sprintf(`{"source":{"name":"Mint"},"title":"Story %d","description":"d","url":"https://example.com/%d","publishedAt":"2025-06-01T10:00:00Z","content":"c"}`, offset+i, offset+i))
	}
	return fmt.Sprintf(`{"status":"ok","totalResults":%d,"articles":[%s]}`, total, strings.Join(items, ","))
}

func TestNewsAPIRotatesKeysOnRateLimit(t *testing.T) {
	t.Parallel()

	var (
		mu   sync.Mutex
		keys []string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		keys = append(keys, r.Header.Get("X-Api-Key"))
		mu.Unlock()

		q := r.URL.Query()
		if q.Get("searchIn") != "title,description" || q.Get("sortBy") != "publishedAt" || q.Get("from") != "2025-05-02T00:00:00" {
			t.Errorf("unexpected query params: %s", r.URL.RawQuery)
		}
		if r.Header.Get("X-Api-Key") == "exhausted" {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"status":"error","code":"rateLimited","message":"too many requests"}`))
			return
		}
		_, _ = w.Write([]byte(`{"status":"ok","totalResults":2,"articles":[
			{"source":{"name":"Mint"},"title":"Swiggy expands","url":"https://example.com/a","publishedAt":"2025-06-01T10:00:00Z","content":"Swiggy [+120 chars]"},
			{"source":{"name":""},"title":"[Removed]","url":"https://removed.com","publishedAt":"2025-06-01T10:00:00Z"}
		]}`))
	}))
	defer server.Close()

	client, err := NewNewsAPI(NewsAPIOptions{
		Endpoint:      server.URL,
		Keys:          []string{"exhausted", "good"},
		RatePerSecond: 1000,
		Logger:        zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("new newsapi: %v", err)
	}

	since := time.Date(2025, 5, 2, 0, 0, 0, 0, time.UTC)
	articles, err := client.Search(context.Background(), Query{Text: `"Swiggy"`, Since: since, Until: since.AddDate(0, 0, 30)})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(articles) != 1 || articles[0].Title != "Swiggy expands" || articles[0].SourceName != "Mint" {
		t.Fatalf("unexpected articles: %+v", articles)
	}
	if strings.Join(keys, ",") != "exhausted,good" {
		t.Fatalf("unexpected key order: %v", keys)
	}
}

func TestNewsAPIPagesUntilShortPage(t *testing.T) {
	t.Parallel()

	var pages []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page := r.URL.Query().Get("page")
		pages = append(pages, page)
		switch page {
		case "1":
			_, _ = w.Write([]byte(newsAPIPage(2, 0, 10)))
		case "2":
			_, _ = w.Write([]byte(newsAPIPage(1, 2, 10)))
		default:
			t.Errorf("unexpected page %s", page)
		}
	}))
	defer server.Close()

	client, err := NewNewsAPI(NewsAPIOptions{Endpoint: server.URL, Keys: []string{"k"}, PageSize: 2, MaxPages: 5, RatePerSecond: 1000, Logger: zerolog.Nop()})
	if err != nil {
		t.Fatalf("new newsapi: %v", err)
	}
	articles, err := client.Search(context.Background(), Query{Text: `"CRED"`})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(articles) != 3 || strings.Join(pages, ",") != "1,2" {
		t.Fatalf("unexpected paging: %d articles, pages %v", len(articles), pages)
	}
}

func TestNewsAPIMaximumResultsEndsPaging(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "1" {
			_, _ = w.Write([]byte(newsAPIPage(2, 0, 500)))
			return
		}
		w.WriteHeader(http.StatusUpgradeRequired)
		_, _ = w.Write([]byte(`{"status":"error","code":"maximumResultsReached","message":"developer accounts are limited"}`))
	}))
	defer server.Close()

	client, err := NewNewsAPI(NewsAPIOptions{Endpoint: server.URL, Keys: []string{"k"}, PageSize: 2, MaxPages: 3, RatePerSecond: 1000, Logger: zerolog.Nop()})
	if err != nil {
		t.Fatalf("new newsapi: %v", err)
	}
	articles, err := client.Search(context.Background(), Query{Text: `"Zepto"`})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(articles) != 2 {
		t.Fatalf("unexpected article count: %d", len(articles))
	}
}

func TestNewsAPIErrors(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Header.Get("X-Api-Key") {
		case "bad":
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"status":"error","code":"apiKeyInvalid","message":"invalid"}`))
		default:
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte(`upstream down`))
		}
	}))
	defer server.Close()

	allBad, err := NewNewsAPI(NewsAPIOptions{Endpoint: server.URL, Keys: []string{"bad", " bad "}, RatePerSecond: 1000, Logger: zerolog.Nop()})
	if err != nil {
		t.Fatalf("new newsapi: %v", err)
	}
	if _, err := allBad.Search(context.Background(), Query{Text: "x"}); !errors.Is(err, ErrNoKeys) {
		t.Fatalf("expected ErrNoKeys, got %v", err)
	}

	down, err := NewNewsAPI(NewsAPIOptions{Endpoint: server.URL, Keys: []string{"ok"}, RatePerSecond: 1000, Logger: zerolog.Nop()})
	if err != nil {
		t.Fatalf("new newsapi: %v", err)
	}
	_, err = down.Search(context.Background(), Query{Text: "x"})
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusBadGateway || !statusErr.Temporary() {
		t.Fatalf("expected temporary status error, got %v", err)
	}

	if _, err := NewNewsAPI(NewsAPIOptions{Keys: []string{" "}}); !errors.Is(err, ErrNoKeys) {
		t.Fatalf("expected ErrNoKeys for blank keys, got %v", err)
	}
}

const rssFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
<title>"Swiggy" - Google News</title>
<item>
	<title>Swiggy launches new service - Mint</title>
	<link>https://news.example.com/swiggy-launch</link>
	<pubDate>Mon, 02 Jun 2025 08:00:00 GMT</pubDate>
	<description>&lt;a href="https://news.example.com/swiggy-launch"&gt;Swiggy launches new service&lt;/a&gt;</description>
</item>
<item>
	<title>Old Swiggy story</title>
	<link>https://news.example.com/old</link>
	<pubDate>Mon, 03 Mar 2025 08:00:00 GMT</pubDate>
</item>
<item>
	<title>No link</title>
</item>
</channel>
</rss>`

func TestRSSSearchFiltersWindow(t *testing.T) {
	t.Parallel()

	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(rssFeed))
	}))
	defer server.Close()

	rss := NewRSS(RSSOptions{Endpoint: server.URL, RatePerSecond: 1000})
	since := time.Date(2025, 5, 10, 0, 0, 0, 0, time.UTC)
	articles, err := rss.Search(context.Background(), Query{Text: `"Swiggy"`, Since: since, Until: since.AddDate(0, 0, 30)})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(articles) != 1 || articles[0].URL != "https://news.example.com/swiggy-launch" {
		t.Fatalf("unexpected articles: %+v", articles)
	}
	if !strings.Contains(gotQuery, "after:2025-05-10") || !strings.Contains(gotQuery, "before:2025-06-10") {
		t.Fatalf("unexpected rss query: %q", gotQuery)
	}
}

func TestRSSSearchStatusError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	rss := NewRSS(RSSOptions{Endpoint: server.URL, RatePerSecond: 1000})
	_, err := rss.Search(context.Background(), Query{Text: "x"})
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected status error, got %v", err)
	}
}
