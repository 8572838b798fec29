package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/sentiflow/internal/config"
	"horse.fit/sentiflow/internal/db"
	"horse.fit/sentiflow/internal/fetchplan"
	"horse.fit/sentiflow/internal/inference"
	"horse.fit/sentiflow/internal/persist"
	"horse.fit/sentiflow/internal/pipeline"
	"horse.fit/sentiflow/internal/sentiment"
	"horse.fit/sentiflow/internal/source"
	"horse.fit/sentiflow/internal/textclean"
)

// overrides are per-invocation flag values; zero means "use config".
type overrides struct {
	source           string
	batchSize        int
	fetchTimeout     time.Duration
	inferenceTimeout time.Duration
	maxContentLength int
	backfill         time.Duration
	maintenance      time.Duration
}

func (o overrides) apply(cfg *config.Config) {
	if s := strings.TrimSpace(o.source); s != "" {
		cfg.NewsSource = s
	}
	if o.batchSize > 0 {
		cfg.InferenceBatchSize = o.batchSize
	}
	if o.fetchTimeout > 0 {
		cfg.FetchTimeout = o.fetchTimeout
	}
	if o.inferenceTimeout > 0 {
		cfg.InferenceTimeout = o.inferenceTimeout
	}
	if o.maxContentLength > 0 {
		cfg.MaxContentLength = o.maxContentLength
	}
	if o.backfill > 0 {
		cfg.BackfillWindow = o.backfill
	}
	if o.maintenance > 0 {
		cfg.MaintenanceWindow = o.maintenance
	}
}

// primaryLanguage is what providers are asked for.
func primaryLanguage(cfg *config.Config) string {
	if langs := cfg.ScoreLanguageList(); len(langs) > 0 {
		return langs[0]
	}
	return "en"
}

func newSource(cfg *config.Config, logger zerolog.Logger) (source.Source, error) {
	switch cfg.NormalizedNewsSource() {
	case config.SourceNewsAPI:
		return source.NewNewsAPI(source.NewsAPIOptions{
			Endpoint:       cfg.NewsAPIEndpoint,
			Keys:           cfg.NewsAPIKeyList(),
			Language:       primaryLanguage(cfg),
			PageSize:       cfg.NewsAPIPageSize,
			MaxPages:       cfg.NewsAPIMaxPages,
			RatePerSecond:  cfg.FetchRatePerSec,
			RequestTimeout: cfg.FetchTimeout,
			Logger:         logger,
		})
	case config.SourceRSS:
		return source.NewRSS(source.RSSOptions{
			Endpoint:       cfg.RSSEndpoint,
			Language:       primaryLanguage(cfg),
			RatePerSecond:  cfg.FetchRatePerSec,
			RequestTimeout: cfg.FetchTimeout,
		}), nil
	default:
		return nil, fmt.Errorf("%w: unknown NEWS_SOURCE %q", config.ErrInvalid, cfg.NewsSource)
	}
}

func newScorer(cfg *config.Config) (sentiment.Scorer, error) {
	if strings.TrimSpace(cfg.InferenceEndpoint) == "" {
		return sentiment.Scorer{}, fmt.Errorf("%w: INFERENCE_ENDPOINT is required", config.ErrInvalid)
	}
	client, err := inference.NewClient(inference.Options{
		Endpoint:        cfg.InferenceEndpoint,
		Token:           cfg.InferenceToken,
		Model:           cfg.InferenceModel,
		EntailmentLabel: cfg.InferenceEntailmentLabel,
		MaxLength:       cfg.InferenceMaxLength,
		RequestTimeout:  cfg.InferenceTimeout,
	})
	if err != nil {
		return sentiment.Scorer{}, fmt.Errorf("%w: %v", config.ErrInvalid, err)
	}
	return sentiment.Scorer{Model: client, BatchSize: cfg.InferenceBatchSize}, nil
}

func newPlanner(cfg *config.Config) fetchplan.Planner {
	return fetchplan.New(cfg.BackfillWindow, cfg.MaintenanceWindow)
}

func pipelineOptions(cfg *config.Config) pipeline.Options {
	return pipeline.Options{
		FetchRetries:     cfg.FetchRetries,
		FetchBackoff:     cfg.FetchRetryBackoff,
		MaxContentLength: cfg.MaxContentLength,
		ScoreLanguages:   textclean.NewLanguageSet(cfg.ScoreLanguageList()),
	}
}

// newRunService wires everything a full run needs. cfg must already have
// passed ValidatePipeline.
func newRunService(cfg *config.Config, pool *db.Pool, logger zerolog.Logger) (*pipeline.Service, error) {
	src, err := newSource(cfg, logger)
	if err != nil {
		return nil, err
	}
	scorer, err := newScorer(cfg)
	if err != nil {
		return nil, err
	}
	return pipeline.NewService(pool, src, scorer, persist.NewCoordinator(pool, logger), newPlanner(cfg), logger, pipelineOptions(cfg)), nil
}
