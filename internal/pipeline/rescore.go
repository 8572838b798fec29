package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"horse.fit/sentiflow/internal/db"
	"horse.fit/sentiflow/internal/globaltime"
	"horse.fit/sentiflow/internal/persist"
	"horse.fit/sentiflow/internal/sentiment"
)

// RescoreSummary reports one pass over recorded scoring failures.
type RescoreSummary struct {
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Pending       int `json:"pending"`
	Articles      int `json:"articles"`
	Recovered     int `json:"recovered"`
	StillFailing  int `json:"still_failing"`
	Batches       int `json:"batches"`
	FailedBatches int `json:"failed_batches"`
	Conflicts     int `json:"conflicts"`
	CommitErrors  int `json:"commit_errors"`

	Status RunStatus `json:"status"`
}

func (r RescoreSummary) ExitCode() int {
	return Summary{Status: r.Status}.ExitCode()
}

type rescoreGroup struct {
	article  persist.Article
	premise  string
	startups []db.PendingFailure
}

// Rescore scores recorded failures again. Successful pairs clear their
// failure row; pairs that fail again bump its attempt counter.
func (s *Service) Rescore(ctx context.Context, limit, maxAttempts int) (RescoreSummary, error) {
	summary := RescoreSummary{StartedAt: globaltime.UTC()}
	if s == nil || s.store == nil || s.scorer == nil || s.committer == nil {
		return summary, fmt.Errorf("%w: pipeline service is not fully initialized", ErrConfiguration)
	}

	pending, err := s.store.ListScoringFailures(ctx, limit, maxAttempts)
	if err != nil {
		summary.Status = RunFailed
		summary.FinishedAt = globaltime.UTC()
		return summary, fmt.Errorf("load scoring failures: %w", err)
	}
	summary.Pending = len(pending)

	groups := groupFailures(pending)
	summary.Articles = len(groups)

	pairs := make([]sentiment.Pair, 0, len(pending))
	refs := make([]scoredPair, 0, len(pending))
	for i, g := range groups {
		for _, f := range g.startups {
			pairs = append(pairs, sentiment.Pair{Premise: g.premise, Entity: f.StartupName})
			refs = append(refs, scoredPair{article: i, startupID: f.StartupID})
		}
	}

	results, stats, err := s.scorer.Score(ctx, pairs)
	if err != nil {
		summary.Status = RunFailed
		summary.FinishedAt = globaltime.UTC()
		return summary, fmt.Errorf("score pairs: %w", err)
	}
	summary.Batches, summary.FailedBatches = stats.Batches, stats.FailedBatches

	rows := make([][]persist.SentimentRow, len(groups))
	failures := make([][]persist.Failure, len(groups))
	for i, res := range results {
		ref := refs[i]
		if res.Err != nil {
			summary.StillFailing++
			failures[ref.article] = append(failures[ref.article], persist.Failure{StartupID: ref.startupID, Reason: res.Err.Error()})
			continue
		}
		rows[ref.article] = append(rows[ref.article], persist.SentimentRow{StartupID: ref.startupID, Scores: res.Scores, Label: res.Label})
	}

	for i, g := range groups {
		if err := ctx.Err(); err != nil {
			summary.Status = RunPartial
			summary.FinishedAt = globaltime.UTC()
			return summary, err
		}
		outcome, err := s.committer.Commit(ctx, g.article, rows[i], failures[i])
		switch {
		case err == nil:
			summary.Recovered += outcome.SentimentsStored + outcome.SentimentsKept
		case errors.Is(err, ErrPersistenceConflict):
			summary.Conflicts++
			s.logger.Warn().Err(err).Str("url", g.article.URL).Msg("rescore rolled back")
		default:
			summary.CommitErrors++
			s.logger.Error().Err(err).Str("url", g.article.URL).Msg("rescore commit failed")
		}
	}

	summary.FinishedAt = globaltime.UTC()
	switch {
	case summary.CommitErrors > 0 && summary.CommitErrors == summary.Articles:
		summary.Status = RunFailed
	case summary.StillFailing+summary.Conflicts+summary.CommitErrors > 0:
		summary.Status = RunPartial
	default:
		summary.Status = RunCompleted
	}

	s.logger.Info().
		Int("pending", summary.Pending).
		Int("recovered", summary.Recovered).
		Int("still_failing", summary.StillFailing).
		Str("status", string(summary.Status)).
		Msg("rescore finished")
	return summary, nil
}

// groupFailures keeps the order in which articles first appear.
func groupFailures(pending []db.PendingFailure) []rescoreGroup {
	byArticle := make(map[string]int, len(pending))
	groups := make([]rescoreGroup, 0, len(pending))
	for _, f := range pending {
		idx, ok := byArticle[f.ArticleID]
		if !ok {
			article := persist.Article{
				Title:    f.Title,
				URL:      f.ArticleURL,
				Content:  f.Content,
				Language: f.Language,
			}
			if f.PublishedAt != nil {
				article.PublishedAt = *f.PublishedAt
			}
			premise := f.Title
			if f.Content != "" {
				if premise != "" {
					premise += ". "
				}
				premise += f.Content
			}
			idx = len(groups)
			byArticle[f.ArticleID] = idx
			groups = append(groups, rescoreGroup{article: article, premise: premise})
		}
		groups[idx].startups = append(groups[idx].startups, f)
	}
	return groups
}
