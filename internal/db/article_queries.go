package db

import (
	"context"
	"fmt"
	"time"
)

// ExistingURLs returns the subset of urls already stored in sentiflow.articles.
func (p *Pool) ExistingURLs(ctx context.Context, urls []string) (map[string]struct{}, error) {
	out := make(map[string]struct{}, len(urls))
	if len(urls) == 0 {
		return out, nil
	}

	rows, err := p.Query(ctx, `SELECT url FROM sentiflow.articles WHERE url = ANY($1)`, urls)
	if err != nil {
		return nil, fmt.Errorf("query existing article urls: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var url string
		if err := rows.Scan(&url); err != nil {
			return nil, fmt.Errorf("scan existing article url: %w", err)
		}
		out[url] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate existing article urls: %w", err)
	}
	return out, nil
}

// ArticleListItem is the read model for recent articles with their startup mentions.
type ArticleListItem struct {
	ID          string              `json:"id"`
	Title       string              `json:"title"`
	URL         string              `json:"url"`
	Content     string              `json:"content"`
	Language    string              `json:"language"`
	PublishedAt *time.Time          `json:"published_at,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
	Sentiments  []ArticleMentionRow `json:"sentiments"`
}

// ArticleMentionRow is one startup sentiment attached to an article.
type ArticleMentionRow struct {
	StartupID   string `json:"startup_id"`
	StartupName string `json:"startup_name"`
	Sentiment   string `json:"sentiment"`
}

// ListRecentArticles lists the newest articles by publication time.
func (p *Pool) ListRecentArticles(ctx context.Context, limit int) ([]ArticleListItem, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be > 0")
	}

	const q = `
SELECT
	a.id::text,
	a.title,
	a.url,
	a.content,
	a.language,
	a.published_at,
	a.created_at
FROM sentiflow.articles a
ORDER BY a.published_at DESC NULLS LAST, a.created_at DESC
LIMIT $1
`

	rows, err := p.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent articles: %w", err)
	}
	defer rows.Close()

	items := make([]ArticleListItem, 0, limit)
	index := make(map[string]int, limit)
	ids := make([]string, 0, limit)
	for rows.Next() {
		var row ArticleListItem
		if err := rows.Scan(&row.ID, &row.Title, &row.URL, &row.Content, &row.Language, &row.PublishedAt, &row.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan recent article: %w", err)
		}
		row.Sentiments = []ArticleMentionRow{}
		index[row.ID] = len(items)
		ids = append(ids, row.ID)
		items = append(items, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recent articles: %w", err)
	}
	if len(ids) == 0 {
		return items, nil
	}

	const mentionsQuery = `
SELECT ase.article_id::text, ase.startup_id, s.name, ase.sentiment
FROM sentiflow.article_sentiments ase
JOIN sentiflow.startups s
	ON s.id = ase.startup_id
WHERE ase.article_id::text = ANY($1)
ORDER BY ase.article_id, s.name
`
	mentionRows, err := p.Query(ctx, mentionsQuery, ids)
	if err != nil {
		return nil, fmt.Errorf("query article mentions: %w", err)
	}
	defer mentionRows.Close()

	for mentionRows.Next() {
		var (
			articleID string
			mention   ArticleMentionRow
		)
		if err := mentionRows.Scan(&articleID, &mention.StartupID, &mention.StartupName, &mention.Sentiment); err != nil {
			return nil, fmt.Errorf("scan article mention: %w", err)
		}
		if i, ok := index[articleID]; ok {
			items[i].Sentiments = append(items[i].Sentiments, mention)
		}
	}
	if err := mentionRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate article mentions: %w", err)
	}
	return items, nil
}

// SentimentListItem is one scored article for a startup.
type SentimentListItem struct {
	ArticleID     string     `json:"article_id"`
	Title         string     `json:"title"`
	URL           string     `json:"url"`
	Content       string     `json:"content"`
	PublishedAt   *time.Time `json:"published_at,omitempty"`
	PositiveScore float64    `json:"positive_score"`
	NeutralScore  float64    `json:"neutral_score"`
	NegativeScore float64    `json:"negative_score"`
	Sentiment     string     `json:"sentiment"`
	ScoredAt      time.Time  `json:"scored_at"`
}

// ListStartupSentiments returns the newest scored articles for one startup.
func (p *Pool) ListStartupSentiments(ctx context.Context, startupID string, limit int) ([]SentimentListItem, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be > 0")
	}

	const q = `
SELECT
	a.id::text,
	a.title,
	a.url,
	a.content,
	a.published_at,
	ase.positive_score,
	ase.neutral_score,
	ase.negative_score,
	ase.sentiment,
	ase.created_at
FROM sentiflow.article_sentiments ase
JOIN sentiflow.articles a
	ON a.id = ase.article_id
WHERE ase.startup_id = $1
ORDER BY a.published_at DESC NULLS LAST, ase.created_at DESC
LIMIT $2
`

	rows, err := p.Query(ctx, q, startupID, limit)
	if err != nil {
		return nil, fmt.Errorf("query startup sentiments: %w", err)
	}
	defer rows.Close()

	items := make([]SentimentListItem, 0, limit)
	for rows.Next() {
		var row SentimentListItem
		if err := rows.Scan(
			&row.ArticleID,
			&row.Title,
			&row.URL,
			&row.Content,
			&row.PublishedAt,
			&row.PositiveScore,
			&row.NeutralScore,
			&row.NegativeScore,
			&row.Sentiment,
			&row.ScoredAt,
		); err != nil {
			return nil, fmt.Errorf("scan startup sentiment: %w", err)
		}
		items = append(items, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate startup sentiments: %w", err)
	}
	return items, nil
}
