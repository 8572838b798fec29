package db

import (
	"context"
	"fmt"
	"time"
)

// PendingFailure is a recorded scoring failure joined with what is needed to
// score it again.
type PendingFailure struct {
	ArticleID    string
	ArticleURL   string
	Title        string
	Content      string
	Language     string
	PublishedAt  *time.Time
	StartupID    string
	StartupName  string
	Reason       string
	Attempts     int
	LastFailedAt time.Time
}

// ListScoringFailures returns pending failures, oldest first, skipping pairs
// that already reached maxAttempts (0 disables the cap).
func (p *Pool) ListScoringFailures(ctx context.Context, limit, maxAttempts int) ([]PendingFailure, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be > 0")
	}

	const q = `
SELECT
	f.article_id::text,
	a.url,
	a.title,
	a.content,
	a.language,
	a.published_at,
	f.startup_id,
	s.name,
	f.reason,
	f.attempts,
	f.updated_at
FROM sentiflow.scoring_failures f
JOIN sentiflow.articles a
	ON a.id = f.article_id
JOIN sentiflow.startups s
	ON s.id = f.startup_id
WHERE ($2 = 0 OR f.attempts < $2)
ORDER BY f.updated_at ASC, f.article_id, f.startup_id
LIMIT $1
`

	rows, err := p.Query(ctx, q, limit, maxAttempts)
	if err != nil {
		return nil, fmt.Errorf("query scoring failures: %w", err)
	}
	defer rows.Close()

	out := make([]PendingFailure, 0, limit)
	for rows.Next() {
		var row PendingFailure
		if err := rows.Scan(
			&row.ArticleID,
			&row.ArticleURL,
			&row.Title,
			&row.Content,
			&row.Language,
			&row.PublishedAt,
			&row.StartupID,
			&row.StartupName,
			&row.Reason,
			&row.Attempts,
			&row.LastFailedAt,
		); err != nil {
			return nil, fmt.Errorf("scan scoring failure: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scoring failures: %w", err)
	}
	return out, nil
}
