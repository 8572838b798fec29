package db

import (
	"context"
	"fmt"
	"time"
)

// SentimentTotals counts sentiment rows by label.
type SentimentTotals struct {
	Positive int64 `json:"positive"`
	Neutral  int64 `json:"neutral"`
	Negative int64 `json:"negative"`
}

// LastRun describes the newest pipeline_runs row.
type LastRun struct {
	RunUUID    string     `json:"run_uuid"`
	Command    string     `json:"command"`
	Status     string     `json:"status"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// PipelineStats is the read model returned by the stats command and endpoint.
type PipelineStats struct {
	Day                 string          `json:"day"`
	Sectors             int64           `json:"sectors"`
	Startups            int64           `json:"startups"`
	StartupsWithHistory int64           `json:"startups_with_history"`
	Articles            int64           `json:"articles"`
	ArticlesToday       int64           `json:"articles_today"`
	Sentiments          int64           `json:"sentiments"`
	SentimentsToday     int64           `json:"sentiments_today"`
	PendingFailures     int64           `json:"pending_failures"`
	SentimentByLabel    SentimentTotals `json:"sentiment_by_label"`
	LastRun             *LastRun        `json:"last_run,omitempty"`
}

// QueryPipelineStats returns table totals plus counts for the [dayStart, dayEnd) window.
func (p *Pool) QueryPipelineStats(ctx context.Context, dayStart, dayEnd time.Time) (*PipelineStats, error) {
	startUTC := dayStart.UTC()
	endUTC := dayEnd.UTC()
	if !startUTC.Before(endUTC) {
		return nil, fmt.Errorf("dayStart must be before dayEnd")
	}

	stats := &PipelineStats{Day: startUTC.Format("2006-01-02")}

	const countsQuery = `
SELECT
	(SELECT COUNT(*) FROM sentiflow.sectors) AS sectors,
	(SELECT COUNT(*) FROM sentiflow.startups) AS startups,
	(SELECT COUNT(DISTINCT startup_id) FROM sentiflow.article_sentiments) AS startups_with_history,
	(SELECT COUNT(*) FROM sentiflow.articles) AS articles,
	(SELECT COUNT(*) FROM sentiflow.articles a WHERE a.created_at >= $1 AND a.created_at < $2) AS articles_today,
	(SELECT COUNT(*) FROM sentiflow.article_sentiments) AS sentiments,
	(SELECT COUNT(*) FROM sentiflow.article_sentiments s WHERE s.created_at >= $1 AND s.created_at < $2) AS sentiments_today,
	(SELECT COUNT(*) FROM sentiflow.scoring_failures) AS pending_failures,
	(SELECT COUNT(*) FROM sentiflow.article_sentiments WHERE sentiment = 'positive') AS positive,
	(SELECT COUNT(*) FROM sentiflow.article_sentiments WHERE sentiment = 'neutral') AS neutral,
	(SELECT COUNT(*) FROM sentiflow.article_sentiments WHERE sentiment = 'negative') AS negative
`

	if err := p.QueryRow(ctx, countsQuery, startUTC, endUTC).Scan(
		&stats.Sectors,
		&stats.Startups,
		&stats.StartupsWithHistory,
		&stats.Articles,
		&stats.ArticlesToday,
		&stats.Sentiments,
		&stats.SentimentsToday,
		&stats.PendingFailures,
		&stats.SentimentByLabel.Positive,
		&stats.SentimentByLabel.Neutral,
		&stats.SentimentByLabel.Negative,
	); err != nil {
		return nil, fmt.Errorf("query pipeline counts: %w", err)
	}

	var last LastRun
	err := p.QueryRow(ctx, `
SELECT run_uuid::text, command, status, started_at, finished_at
FROM sentiflow.pipeline_runs
ORDER BY run_id DESC
LIMIT 1
`).Scan(&last.RunUUID, &last.Command, &last.Status, &last.StartedAt, &last.FinishedAt)
	switch {
	case err == nil:
		stats.LastRun = &last
	case IsNoRows(err):
	default:
		return nil, fmt.Errorf("query last pipeline run: %w", err)
	}

	return stats, nil
}
