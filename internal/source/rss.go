package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"golang.org/x/time/rate"
)

const DefaultRSSEndpoint = "https://news.google.com/rss/search"

type RSSOptions struct {
	Endpoint       string
	Language       string
	Country        string
	RatePerSecond  float64
	RequestTimeout time.Duration
	HTTPClient     *http.Client
}

// RSS searches a Google News style RSS endpoint. The provider only filters
// by day, so items outside the query window are dropped here.
type RSS struct {
	opts    RSSOptions
	limiter *rate.Limiter
}

var _ Source = (*RSS)(nil)

func NewRSS(options RSSOptions) *RSS {
	opts := normalizeRSSOptions(options)
	return &RSS{
		opts:    opts,
		limiter: rate.NewLimiter(rate.Limit(opts.RatePerSecond), 1),
	}
}

func (r *RSS) Name() string { return "rss" }

func (r *RSS) Search(ctx context.Context, query Query) ([]Article, error) {
	if strings.TrimSpace(query.Text) == "" {
		return nil, fmt.Errorf("rss query is empty")
	}
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	requestCtx, cancel := context.WithTimeout(ctx, r.opts.RequestTimeout)
	defer cancel()

	parser := gofeed.NewParser()
	parser.Client = r.opts.HTTPClient
	feed, err := parser.ParseURLWithContext(r.searchURL(query), requestCtx)
	if err != nil {
		var httpErr gofeed.HTTPError
		if errors.As(err, &httpErr) {
			return nil, &StatusError{Provider: "rss", StatusCode: httpErr.StatusCode, Message: httpErr.Status}
		}
		return nil, fmt.Errorf("parse rss feed: %w", err)
	}

	articles := make([]Article, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil || strings.TrimSpace(item.Link) == "" {
			continue
		}
		var published time.Time
		switch {
		case item.PublishedParsed != nil:
			published = item.PublishedParsed.UTC()
		case item.UpdatedParsed != nil:
			published = item.UpdatedParsed.UTC()
		}
		if !published.IsZero() {
			if (!query.Since.IsZero() && published.Before(query.Since)) || (!query.Until.IsZero() && !published.Before(query.Until)) {
				continue
			}
		}
		articles = append(articles, Article{
			Title:       strings.TrimSpace(item.Title),
			URL:         strings.TrimSpace(item.Link),
			Description: item.Description,
			Content:     item.Content,
			SourceName:  feed.Title,
			PublishedAt: published,
		})
	}
	return articles, nil
}

func (r *RSS) searchURL(query Query) string {
	q := query.Text
	if !query.Since.IsZero() {
		q += " after:" + query.Since.UTC().Format("2006-01-02")
	}
	if !query.Until.IsZero() {
		// before: is exclusive of the given day.
		q += " before:" + query.Until.UTC().AddDate(0, 0, 1).Format("2006-01-02")
	}

	params := url.Values{}
	params.Set("q", q)
	params.Set("hl", r.opts.Language+"-"+r.opts.Country)
	params.Set("gl", r.opts.Country)
	params.Set("ceid", r.opts.Country+":"+r.opts.Language)
	return r.opts.Endpoint + "?" + params.Encode()
}

func normalizeRSSOptions(opts RSSOptions) RSSOptions {
	opts.Endpoint = strings.TrimSpace(opts.Endpoint)
	if opts.Endpoint == "" {
		opts.Endpoint = DefaultRSSEndpoint
	}
	if strings.TrimSpace(opts.Language) == "" {
		opts.Language = "en"
	}
	if strings.TrimSpace(opts.Country) == "" {
		opts.Country = "IN"
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
