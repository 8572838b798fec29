// Package pipeline runs the fetch, match, score and persist cycle for every
// tracked startup.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/sentiflow/internal/db"
	"horse.fit/sentiflow/internal/dedup"
	"horse.fit/sentiflow/internal/fetchplan"
	"horse.fit/sentiflow/internal/globaltime"
	"horse.fit/sentiflow/internal/keyword"
	"horse.fit/sentiflow/internal/persist"
	"horse.fit/sentiflow/internal/sentiment"
	"horse.fit/sentiflow/internal/source"
	"horse.fit/sentiflow/internal/textclean"
)

const (
	DefaultFetchRetries = 3
	DefaultFetchBackoff = time.Second
)

// Store is the read side of the database used by the pipeline.
type Store interface {
	ListTrackedStartups(ctx context.Context) ([]db.TrackedStartup, error)
	StartupIDsWithSentiment(ctx context.Context) (map[string]struct{}, error)
	ExistingURLs(ctx context.Context, urls []string) (map[string]struct{}, error)
	ListScoringFailures(ctx context.Context, limit, maxAttempts int) ([]db.PendingFailure, error)
}

// Scorer is satisfied by sentiment.Scorer.
type Scorer interface {
	Score(ctx context.Context, pairs []sentiment.Pair) ([]sentiment.Result, sentiment.Stats, error)
}

// Committer is satisfied by *persist.Coordinator.
type Committer interface {
	Commit(ctx context.Context, article persist.Article, rows []persist.SentimentRow, failures []persist.Failure) (persist.Outcome, error)
}

type Options struct {
	FetchRetries     int
	FetchBackoff     time.Duration
	MaxContentLength int
	ScoreLanguages   textclean.LanguageSet
	DetectLanguage   func(text string) string
	Sleep            func(ctx context.Context, d time.Duration) error
	Observer         func(Transition)
}

type Service struct {
	store     Store
	source    source.Source
	scorer    Scorer
	committer Committer
	planner   fetchplan.Planner
	logger    zerolog.Logger
	opts      Options
}

func NewService(store Store, src source.Source, scorer Scorer, committer Committer, planner fetchplan.Planner, logger zerolog.Logger, options Options) *Service {
	return &Service{
		store:     store,
		source:    src,
		scorer:    scorer,
		committer: committer,
		planner:   planner,
		logger:    logger,
		opts:      normalizeOptions(options),
	}
}

func normalizeOptions(opts Options) Options {
	if opts.FetchRetries <= 0 {
		opts.FetchRetries = DefaultFetchRetries
	}
	if opts.FetchBackoff < 0 {
		opts.FetchBackoff = 0
	}
	if opts.MaxContentLength <= 0 {
		opts.MaxContentLength = textclean.DefaultMaxContentLength
	}
	if opts.DetectLanguage == nil {
		opts.DetectLanguage = textclean.DetectLanguage
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepContext
	}
	return opts
}

// cycle is the state shared by every startup in one run.
type cycle struct {
	index   *keyword.Index
	names   map[string]string
	history map[string]struct{}
	seen    dedup.Set
}

// Run processes every tracked startup once, sequentially. Per-startup errors
// are collected in the summary; the returned error is only set when the
// cycle could not start or ctx was cancelled.
func (s *Service) Run(ctx context.Context) (Summary, error) {
	summary := Summary{StartedAt: globaltime.UTC()}
	if s == nil || s.store == nil || s.source == nil || s.scorer == nil || s.committer == nil {
		return summary, fmt.Errorf("%w: pipeline service is not fully initialized", ErrConfiguration)
	}
	summary.Source = s.source.Name()

	startups, env, err := s.loadCycle(ctx)
	if err != nil {
		summary.Status = RunFailed
		summary.FinishedAt = globaltime.UTC()
		return summary, err
	}

	s.logger.Info().
		Int("startups", len(startups)).
		Int("keywords", env.index.Len()).
		Int("with_history", len(env.history)).
		Str("source", summary.Source).
		Msg("pipeline cycle started")

	for i, st := range startups {
		if ctx.Err() != nil {
			for _, rest := range startups[i:] {
				summary.add(StartupReport{StartupID: rest.ID, Name: rest.Name, Sector: rest.SectorName, Outcome: OutcomeCancelled, Error: ctx.Err().Error()})
			}
			break
		}
		report := s.processStartup(ctx, st, env)
		summary.add(report)
	}

	summary.finish(globaltime.UTC())
	s.logger.Info().
		Str("status", string(summary.Status)).
		Int("succeeded", summary.Succeeded).
		Int("skipped", summary.Skipped).
		Int("failed", summary.Failed).
		Int("articles_persisted", summary.ArticlesPersisted).
		Int("sentiments_stored", summary.SentimentsStored).
		Int("failed_batches", summary.FailedBatches).
		Int("conflicts", summary.Conflicts).
		Dur("elapsed", globaltime.Since(summary.StartedAt)).
		Msg("pipeline cycle finished")

	return summary, ctx.Err()
}

func (s *Service) loadCycle(ctx context.Context) ([]db.TrackedStartup, *cycle, error) {
	startups, err := s.store.ListTrackedStartups(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load startups: %w", err)
	}
	history, err := s.store.StartupIDsWithSentiment(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load startup history: %w", err)
	}

	keywords := make(map[string][]string, len(startups))
	names := make(map[string]string, len(startups))
	for _, st := range startups {
		keywords[st.ID] = append([]string{st.Name}, st.Keywords...)
		names[st.ID] = st.Name
	}

	return startups, &cycle{
		index:   keyword.Build(keywords),
		names:   names,
		history: history,
		seen:    dedup.NewSet(),
	}, nil
}

// scoredPair ties a scorer pair back to its article and startup.
type scoredPair struct {
	article   int
	startupID string
}

func (s *Service) processStartup(ctx context.Context, st db.TrackedStartup, env *cycle) StartupReport {
	report := StartupReport{StartupID: st.ID, Name: st.Name, Sector: st.SectorName}
	log := s.logger.With().Str("startup_id", st.ID).Str("startup", st.Name).Logger()
	m := newMachine(st.ID, s.opts.Observer)
	defer m.reset()

	skip := func(outcome StartupOutcome, err error) StartupReport {
		report.Outcome = outcome
		report.Error = err.Error()
		if outcome == OutcomeCancelled {
			log.Warn().Err(err).Str("state", string(m.state)).Msg("startup cancelled")
		} else {
			log.Error().Err(err).Str("state", string(m.state)).Msg("startup skipped")
		}
		return report
	}

	// Planning
	_ = m.to(StatePlanning)
	_, hasHistory := env.history[st.ID]
	window := s.planner.Plan(st.ID, hasHistory)
	report.Mode, report.Since, report.Until = window.Mode, window.Since, window.Until
	report.Query = source.BuildQuery(st.Name, st.Keywords)
	if report.Query == "" {
		return skip(OutcomeSkipped, errors.New("startup has no usable name or keywords"))
	}

	// Fetching
	_ = m.to(StateFetching)
	articles, attempts, err := s.fetch(ctx, st.ID, source.Query{Text: report.Query, Since: window.Since, Until: window.Until})
	report.FetchAttempts = attempts
	if err != nil {
		if ctx.Err() != nil {
			return skip(OutcomeCancelled, ctx.Err())
		}
		return skip(OutcomeSkipped, err)
	}
	report.Fetched = len(articles)

	fresh, keys := dedup.Filter(articles, env.seen)
	withURL := 0
	for _, a := range articles {
		if _, ok := dedup.CanonicalURL(a.URL); ok {
			withURL++
		}
	}
	report.DroppedInvalid = len(articles) - withURL
	report.AlreadySeen = withURL - len(fresh)

	stored, err := s.store.ExistingURLs(ctx, keys)
	if err != nil {
		if ctx.Err() != nil {
			return skip(OutcomeCancelled, ctx.Err())
		}
		return skip(OutcomeFailed, fmt.Errorf("check stored urls: %w", err))
	}
	env.seen.Add(keys...)

	// Matching
	_ = m.to(StateMatching)
	prepared := make([]preparedArticle, 0, len(fresh))
	matches := make([][]string, 0, len(fresh))
	for i, a := range fresh {
		if _, ok := stored[keys[i]]; ok {
			report.AlreadyStored++
			continue
		}
		p := s.prepare(a, keys[i])
		ids := env.index.Match(p.matchText)
		if len(ids) > 0 {
			report.Matched++
		}
		prepared = append(prepared, p)
		matches = append(matches, ids)
	}
	report.New = len(prepared)

	// Scoring
	_ = m.to(StateScoring)
	pairs := make([]sentiment.Pair, 0, len(prepared))
	refs := make([]scoredPair, 0, len(prepared))
	deferred := make([][]persist.Failure, len(prepared))
	for i, p := range prepared {
		if len(matches[i]) == 0 {
			continue
		}
		if !s.opts.ScoreLanguages.Allows(p.language) {
			// Recorded as failures so rescore can still pick them up.
			report.NotScoredLang++
			reason := fmt.Sprintf("language %q is not scored", p.language)
			for _, id := range matches[i] {
				deferred[i] = append(deferred[i], persist.Failure{StartupID: id, Reason: reason})
			}
			continue
		}
		for _, id := range matches[i] {
			pairs = append(pairs, sentiment.Pair{Premise: p.premise, Entity: env.names[id]})
			refs = append(refs, scoredPair{article: i, startupID: id})
		}
	}
	report.Pairs = len(pairs)

	results, stats, err := s.scorer.Score(ctx, pairs)
	if err != nil {
		if ctx.Err() != nil {
			return skip(OutcomeCancelled, ctx.Err())
		}
		return skip(OutcomeFailed, fmt.Errorf("score pairs: %w", err))
	}
	report.Batches, report.FailedBatches = stats.Batches, stats.FailedBatches

	rows := make([][]persist.SentimentRow, len(prepared))
	failures := deferred
	for i, res := range results {
		ref := refs[i]
		if res.Err != nil {
			report.FailedPairs++
			failures[ref.article] = append(failures[ref.article], persist.Failure{StartupID: ref.startupID, Reason: res.Err.Error()})
			continue
		}
		report.Scored++
		rows[ref.article] = append(rows[ref.article], persist.SentimentRow{StartupID: ref.startupID, Scores: res.Scores, Label: res.Label})
	}

	// Persisting
	_ = m.to(StatePersisting)
	var lastCommitErr error
	for i, p := range prepared {
		if ctx.Err() != nil {
			return skip(OutcomeCancelled, ctx.Err())
		}

		outcome, err := s.committer.Commit(ctx, persist.Article{
			Title:       p.title,
			URL:         p.url,
			Content:     p.excerpt,
			Language:    p.language,
			PublishedAt: p.source.PublishedAt,
		}, rows[i], failures[i])
		switch {
		case err == nil:
			report.Persisted++
			report.SentimentsStored += outcome.SentimentsStored
		case errors.Is(err, ErrPersistenceConflict):
			report.Conflicts++
			log.Warn().Err(err).Str("url", p.url).Msg("article rolled back")
		default:
			report.CommitErrors++
			lastCommitErr = err
			log.Error().Err(err).Str("url", p.url).Msg("article commit failed")
		}
	}

	if lastCommitErr != nil {
		report.Outcome = OutcomeFailed
		report.Error = fmt.Sprintf("%d article commit(s) failed: %v", report.CommitErrors, lastCommitErr)
	} else {
		report.Outcome = OutcomeSucceeded
	}

	log.Info().
		Str("mode", string(report.Mode)).
		Int("fetched", report.Fetched).
		Int("new", report.New).
		Int("matched", report.Matched).
		Int("pairs", report.Pairs).
		Int("failed_pairs", report.FailedPairs).
		Int("persisted", report.Persisted).
		Int("conflicts", report.Conflicts).
		Msg("startup processed")
	return report
}

// fetch retries transient failures with linear backoff.
func (s *Service) fetch(ctx context.Context, startupID string, query source.Query) ([]source.Article, int, error) {
	var lastErr error
	attempt := 0
	for attempt < s.opts.FetchRetries {
		attempt++
		articles, err := s.source.Search(ctx, query)
		if err == nil {
			return articles, attempt, nil
		}
		if ctx.Err() != nil {
			return nil, attempt, ctx.Err()
		}
		lastErr = err
		if !retryable(err) {
			break
		}
		if attempt < s.opts.FetchRetries {
			s.logger.Warn().Err(err).Str("startup_id", startupID).Int("attempt", attempt).Msg("fetch failed, retrying")
			if err := s.opts.Sleep(ctx, time.Duration(attempt)*s.opts.FetchBackoff); err != nil {
				return nil, attempt, err
			}
		}
	}
	return nil, attempt, &FetchError{StartupID: startupID, Attempts: attempt, Err: lastErr}
}

func retryable(err error) bool {
	if errors.Is(err, source.ErrNoKeys) {
		return false
	}
	var statusErr *source.StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Temporary()
	}
	return true
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
