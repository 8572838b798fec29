package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	DefaultNewsAPIEndpoint = "https://newsapi.org/v2/everything"
	DefaultNewsAPIPageSize = 100
	DefaultFetchTimeout    = 15 * time.Second
	newsAPITimeLayout      = "2006-01-02T15:04:05"
	removedMarker          = "[Removed]"
)

type NewsAPIOptions struct {
	Endpoint       string
	Keys           []string
	Language       string
	PageSize       int
	MaxPages       int
	RatePerSecond  float64
	RequestTimeout time.Duration
	HTTPClient     *http.Client
	Logger         zerolog.Logger
}

// NewsAPI searches newsapi.org /v2/everything. Keys are used round robin;
// a key rejected for quota or auth is skipped in favour of the next one.
type NewsAPI struct {
	opts    NewsAPIOptions
	limiter *rate.Limiter

	mu   sync.Mutex
	next int
}

var _ Source = (*NewsAPI)(nil)

func NewNewsAPI(options NewsAPIOptions) (*NewsAPI, error) {
	opts := normalizeNewsAPIOptions(options)
	if len(opts.Keys) == 0 {
		return nil, fmt.Errorf("%w: NEWS_API_KEYS is empty", ErrNoKeys)
	}
	return &NewsAPI{
		opts:    opts,
		limiter: rate.NewLimiter(rate.Limit(opts.RatePerSecond), 1),
	}, nil
}

func (n *NewsAPI) Name() string { return "newsapi" }

type newsAPIResponse struct {
	Status       string `json:"status"`
	Code         string `json:"code"`
	Message      string `json:"message"`
	TotalResults int    `json:"totalResults"`
	Articles     []struct {
		Source struct {
			Name string `json:"name"`
		} `json:"source"`
		Title       string    `json:"title"`
		Description string    `json:"description"`
		URL         string    `json:"url"`
		PublishedAt time.Time `json:"publishedAt"`
		Content     string    `json:"content"`
	} `json:"articles"`
}

var errResultsExhausted = errors.New("newsapi maximum results reached")

// Search pages through results until a short page, the reported total, or
// MaxPages.
func (n *NewsAPI) Search(ctx context.Context, query Query) ([]Article, error) {
	if strings.TrimSpace(query.Text) == "" {
		return nil, fmt.Errorf("newsapi query is empty")
	}

	out := make([]Article, 0, n.opts.PageSize)
	for page := 1; page <= n.opts.MaxPages; page++ {
		articles, total, err := n.fetchPage(ctx, query, page)
		if errors.Is(err, errResultsExhausted) {
			break
		}
		if err != nil {
			return nil, err
		}
		out = append(out, articles...)

		if len(articles) < n.opts.PageSize || len(out) >= total {
			break
		}
	}
	return out, nil
}

func (n *NewsAPI) fetchPage(ctx context.Context, query Query, page int) ([]Article, int, error) {
	var lastErr error
	for attempt := 0; attempt < len(n.opts.Keys); attempt++ {
		key := n.nextKey()

		if err := n.limiter.Wait(ctx); err != nil {
			return nil, 0, err
		}

		articles, total, err := n.doRequest(ctx, key, query, page)
		if err == nil || errors.Is(err, errResultsExhausted) {
			return articles, total, err
		}

		var statusErr *StatusError
		if errors.As(err, &statusErr) && rotatesKey(statusErr) {
			n.opts.Logger.Warn().
				Int("status", statusErr.StatusCode).
				Str("code", statusErr.Code).
				Str("key_suffix", keySuffix(key)).
				Msg("newsapi key rejected, rotating")
			lastErr = err
			continue
		}
		return nil, 0, err
	}
	return nil, 0, fmt.Errorf("%w: %v", ErrNoKeys, lastErr)
}

func (n *NewsAPI) doRequest(ctx context.Context, key string, query Query, page int) ([]Article, int, error) {
	params := url.Values{}
	params.Set("q", query.Text)
	params.Set("searchIn", "title,description")
	params.Set("language", n.opts.Language)
	params.Set("sortBy", "publishedAt")
	params.Set("pageSize", strconv.Itoa(n.opts.PageSize))
	params.Set("page", strconv.Itoa(page))
	if !query.Since.IsZero() {
		params.Set("from", query.Since.UTC().Format(newsAPITimeLayout))
	}
	if !query.Until.IsZero() {
		params.Set("to", query.Until.UTC().Format(newsAPITimeLayout))
	}

	requestCtx, cancel := context.WithTimeout(ctx, n.opts.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(requestCtx, http.MethodGet, n.opts.Endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, 0, fmt.Errorf("build newsapi request: %w", err)
	}
	req.Header.Set("X-Api-Key", key)
	req.Header.Set("Accept", "application/json")

	resp, err := n.opts.HTTPClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("newsapi request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("read newsapi response: %w", err)
	}

	var parsed newsAPIResponse
	decodeErr := json.Unmarshal(body, &parsed)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || parsed.Status == "error" {
		if parsed.Code == "maximumResultsReached" {
			return nil, 0, errResultsExhausted
		}
		msg := parsed.Message
		if decodeErr != nil || msg == "" {
			msg = strings.TrimSpace(string(body))
		}
		return nil, 0, &StatusError{Provider: "newsapi", StatusCode: resp.StatusCode, Code: parsed.Code, Message: msg}
	}
	if decodeErr != nil {
		return nil, 0, fmt.Errorf("decode newsapi response: %w", decodeErr)
	}

	articles := make([]Article, 0, len(parsed.Articles))
	for _, item := range parsed.Articles {
		if strings.TrimSpace(item.Title) == removedMarker || strings.TrimSpace(item.URL) == "" {
			continue
		}
		articles = append(articles, Article{
			Title:       strings.TrimSpace(item.Title),
			URL:         strings.TrimSpace(item.URL),
			Description: item.Description,
			Content:     item.Content,
			SourceName:  item.Source.Name,
			PublishedAt: item.PublishedAt.UTC(),
		})
	}
	return articles, parsed.TotalResults, nil
}

func (n *NewsAPI) nextKey() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	key := n.opts.Keys[n.next%len(n.opts.Keys)]
	n.next++
	return key
}

func rotatesKey(err *StatusError) bool {
	if err.StatusCode == http.StatusUnauthorized || err.StatusCode == http.StatusTooManyRequests {
		return true
	}
	switch err.Code {
	case "apiKeyExhausted", "apiKeyDisabled", "apiKeyInvalid", "rateLimited":
		return true
	}
	return false
}

func keySuffix(key string) string {
	if len(key) <= 4 {
		return "****"
	}
	return "..." + key[len(key)-4:]
}

func normalizeNewsAPIOptions(opts NewsAPIOptions) NewsAPIOptions {
	opts.Endpoint = strings.TrimSpace(opts.Endpoint)
	if opts.Endpoint == "" {
		opts.Endpoint = DefaultNewsAPIEndpoint
	}
	keys := make([]string, 0, len(opts.Keys))
	for _, key := range opts.Keys {
		if key = strings.TrimSpace(key); key != "" {
			keys = append(keys, key)
		}
	}
	opts.Keys = keys
	if strings.TrimSpace(opts.Language) == "" {
		opts.Language = "en"
	}
	if opts.PageSize <= 0 || opts.PageSize > DefaultNewsAPIPageSize {
		opts.PageSize = DefaultNewsAPIPageSize
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = 1
	}
	if opts.RatePerSecond <= 0 {
		opts.RatePerSecond = 1
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = DefaultFetchTimeout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	return opts
}
