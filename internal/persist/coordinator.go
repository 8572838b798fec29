// Package persist writes one article and everything scored for it in a
// single transaction.
package persist

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"horse.fit/sentiflow/internal/db"
	"horse.fit/sentiflow/internal/globaltime"
	"horse.fit/sentiflow/internal/sentiment"
)

// ErrPersistenceConflict means a referenced row disappeared while the cycle
// ran, typically a startup deleted mid-run. The article was rolled back.
var ErrPersistenceConflict = errors.New("persistence conflict")

// TxBeginner is satisfied by *db.Pool.
type TxBeginner interface {
	BeginTx(ctx context.Context, opts db.TxOptions) (db.Tx, error)
}

// Article is the stored form of a fetched article. URL is the canonical URL.
type Article struct {
	Title       string
	URL         string
	Content     string
	Language    string
	PublishedAt time.Time
}

// SentimentRow is one scored (article, startup) pair.
type SentimentRow struct {
	StartupID string
	Scores    sentiment.Scores
	Label     sentiment.Label
}

// Failure is a pair whose scoring failed, kept for a later rescore.
type Failure struct {
	StartupID string
	Reason    string
}

// Outcome reports what Commit wrote.
type Outcome struct {
	ArticleID        string
	ArticleExisted   bool
	SentimentsStored int
	SentimentsKept   int
	FailuresRecorded int
}

type Coordinator struct {
	pool   TxBeginner
	logger zerolog.Logger
	now    func() time.Time
	newID  func() string
}

func NewCoordinator(pool TxBeginner, logger zerolog.Logger) *Coordinator {
	return &Coordinator{
		pool:   pool,
		logger: logger,
		now:    globaltime.UTC,
		newID:  func() string { return uuid.NewString() },
	}
}

const (
	insertArticleSQL = `
INSERT INTO sentiflow.articles (id, title, url, content, language, published_at, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (url) DO NOTHING
RETURNING id::text
`
	selectArticleSQL = `SELECT id::text FROM sentiflow.articles WHERE url = $1`

	insertSentimentSQL = `
INSERT INTO sentiflow.article_sentiments (
	id, article_id, startup_id, positive_score, neutral_score, negative_score, sentiment, created_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (article_id, startup_id) DO NOTHING
`
	clearFailureSQL = `DELETE FROM sentiflow.scoring_failures WHERE article_id = $1 AND startup_id = $2`

	recordFailureSQL = `
INSERT INTO sentiflow.scoring_failures (article_id, startup_id, reason, attempts, created_at, updated_at)
VALUES ($1, $2, $3, 1, $4, $4)
ON CONFLICT (article_id, startup_id) DO UPDATE
SET reason = EXCLUDED.reason,
	attempts = sentiflow.scoring_failures.attempts + 1,
	updated_at = EXCLUDED.updated_at
`
)

// Commit stores article, rows and failures atomically. A duplicate URL is not
// an error: the existing article id is reused and Outcome.ArticleExisted is
// set. A foreign-key violation rolls everything back and wraps
// ErrPersistenceConflict.
func (c *Coordinator) Commit(ctx context.Context, article Article, rows []SentimentRow, failures []Failure) (Outcome, error) {
	if c == nil || c.pool == nil {
		return Outcome{}, fmt.Errorf("persistence coordinator is not initialized")
	}
	if strings.TrimSpace(article.URL) == "" {
		return Outcome{}, fmt.Errorf("article url is required")
	}
	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}

	tx, err := c.pool.BeginTx(ctx, db.TxOptions{})
	if err != nil {
		return Outcome{}, fmt.Errorf("begin article transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	outcome, err := c.write(ctx, tx, article, rows, failures)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return Outcome{}, fmt.Errorf("%w: article %s: %v", ErrPersistenceConflict, article.URL, err)
		}
		return Outcome{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		if db.IsForeignKeyViolation(err) {
			return Outcome{}, fmt.Errorf("%w: commit article %s: %v", ErrPersistenceConflict, article.URL, err)
		}
		return Outcome{}, fmt.Errorf("commit article transaction: %w", err)
	}

	c.logger.Debug().
		Str("article_id", outcome.ArticleID).
		Bool("existed", outcome.ArticleExisted).
		Int("sentiments", outcome.SentimentsStored).
		Int("failures", outcome.FailuresRecorded).
		Msg("article committed")
	return outcome, nil
}

func (c *Coordinator) write(ctx context.Context, tx db.Tx, article Article, rows []SentimentRow, failures []Failure) (Outcome, error) {
	now := c.now()
	language := strings.TrimSpace(article.Language)
	if language == "" {
		language = "und"
	}
	var publishedAt *time.Time
	if !article.PublishedAt.IsZero() {
		ts := article.PublishedAt.UTC()
		publishedAt = &ts
	}

	var outcome Outcome
	err := tx.QueryRow(ctx, insertArticleSQL,
		c.newID(),
		strings.TrimSpace(article.Title),
		article.URL,
		article.Content,
		language,
		publishedAt,
		now,
	).Scan(&outcome.ArticleID)
	switch {
	case err == nil:
	case db.IsNoRows(err):
		outcome.ArticleExisted = true
		if err := tx.QueryRow(ctx, selectArticleSQL, article.URL).Scan(&outcome.ArticleID); err != nil {
			return Outcome{}, fmt.Errorf("load existing article %s: %w", article.URL, err)
		}
	default:
		return Outcome{}, fmt.Errorf("insert article %s: %w", article.URL, err)
	}

	for _, row := range rows {
		tag, err := tx.Exec(ctx, insertSentimentSQL,
			c.newID(),
			outcome.ArticleID,
			row.StartupID,
			row.Scores.Positive,
			row.Scores.Neutral,
			row.Scores.Negative,
			string(row.Label),
			now,
		)
		if err != nil {
			return Outcome{}, fmt.Errorf("insert sentiment for startup %s: %w", row.StartupID, err)
		}
		if tag.RowsAffected() > 0 {
			outcome.SentimentsStored++
		} else {
			outcome.SentimentsKept++
		}
		if _, err := tx.Exec(ctx, clearFailureSQL, outcome.ArticleID, row.StartupID); err != nil {
			return Outcome{}, fmt.Errorf("clear scoring failure for startup %s: %w", row.StartupID, err)
		}
	}

	for _, failure := range failures {
		if _, err := tx.Exec(ctx, recordFailureSQL, outcome.ArticleID, failure.StartupID, failure.Reason, now); err != nil {
			return Outcome{}, fmt.Errorf("record scoring failure for startup %s: %w", failure.StartupID, err)
		}
		outcome.FailuresRecorded++
	}

	return outcome, nil
}
