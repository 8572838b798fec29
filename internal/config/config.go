package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// ErrInvalid marks configuration that cannot be used to start a run.
var ErrInvalid = errors.New("invalid configuration")

const (
	SourceNewsAPI = "newsapi"
	SourceRSS     = "rss"
)

type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"local"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	LogFile     string `envconfig:"LOG_FILE" default:""`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	DBMinConns  int32  `envconfig:"DB_MIN_CONNS" default:"1"`
	DBMaxConns  int32  `envconfig:"DB_MAX_CONNS" default:"8"`

	NewsSource        string        `envconfig:"NEWS_SOURCE" default:"newsapi"`
	NewsAPIKeys       string        `envconfig:"NEWS_API_KEYS" default:""`
	NewsAPIEndpoint   string        `envconfig:"NEWS_API_ENDPOINT" default:"https://newsapi.org/v2/everything"`
	NewsAPIPageSize   int           `envconfig:"NEWS_API_PAGE_SIZE" default:"100"`
	NewsAPIMaxPages   int           `envconfig:"NEWS_API_MAX_PAGES" default:"1"`
	RSSEndpoint       string        `envconfig:"RSS_ENDPOINT" default:"https://news.google.com/rss/search"`
	FetchTimeout      time.Duration `envconfig:"FETCH_TIMEOUT" default:"15s"`
	FetchRetries      int           `envconfig:"FETCH_RETRIES" default:"3"`
	FetchRatePerSec   float64       `envconfig:"FETCH_RATE_PER_SECOND" default:"1"`
	FetchRetryBackoff time.Duration `envconfig:"FETCH_RETRY_BACKOFF" default:"1s"`

	InferenceEndpoint        string        `envconfig:"INFERENCE_ENDPOINT" default:""`
	InferenceToken           string        `envconfig:"INFERENCE_TOKEN" default:""`
	InferenceModel           string        `envconfig:"INFERENCE_MODEL" default:"MoritzLaurer/deberta-v3-base-zeroshot-v2.0"`
	InferenceEntailmentLabel string        `envconfig:"INFERENCE_ENTAILMENT_LABEL" default:"entailment"`
	InferenceBatchSize       int           `envconfig:"INFERENCE_BATCH_SIZE" default:"32"`
	InferenceMaxLength       int           `envconfig:"INFERENCE_MAX_LENGTH" default:"256"`
	InferenceTimeout         time.Duration `envconfig:"INFERENCE_TIMEOUT" default:"60s"`

	BackfillWindow    time.Duration `envconfig:"BACKFILL_WINDOW" default:"720h"`
	MaintenanceWindow time.Duration `envconfig:"MAINTENANCE_WINDOW" default:"24h"`
	MaxContentLength  int           `envconfig:"MAX_CONTENT_LENGTH" default:"300"`
	ScoreLanguages    string        `envconfig:"SCORE_LANGUAGES" default:"en"`

	HTTPHost           string `envconfig:"HTTP_HOST" default:"127.0.0.1"`
	HTTPPort           int    `envconfig:"HTTP_PORT" default:"8090"`
	CORSAllowedOrigins string `envconfig:"CORS_ALLOWED_ORIGINS" default:""`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// Validate checks the settings every command needs. Pipeline-only settings
// are checked by ValidatePipeline so read-only commands can run without them.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return invalid("DATABASE_URL is required")
	}
	if c.DBMinConns < 0 {
		return invalid("DB_MIN_CONNS must be >= 0")
	}
	if c.DBMaxConns < 1 {
		return invalid("DB_MAX_CONNS must be >= 1")
	}
	if c.DBMinConns > c.DBMaxConns {
		return invalid("DB_MIN_CONNS (%d) cannot exceed DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if c.MaxContentLength < 1 {
		return invalid("MAX_CONTENT_LENGTH must be >= 1")
	}
	if c.BackfillWindow <= 0 || c.MaintenanceWindow <= 0 {
		return invalid("BACKFILL_WINDOW and MAINTENANCE_WINDOW must be positive")
	}
	if c.MaintenanceWindow > c.BackfillWindow {
		return invalid("MAINTENANCE_WINDOW (%s) cannot exceed BACKFILL_WINDOW (%s)", c.MaintenanceWindow, c.BackfillWindow)
	}
	return nil
}

// ValidatePipeline checks the settings needed before any article is fetched.
func (c *Config) ValidatePipeline() error {
	if err := c.Validate(); err != nil {
		return err
	}

	switch c.NormalizedNewsSource() {
	case SourceNewsAPI:
		if len(c.NewsAPIKeyList()) == 0 {
			return invalid("NEWS_API_KEYS is required when NEWS_SOURCE=newsapi")
		}
		if strings.TrimSpace(c.NewsAPIEndpoint) == "" {
			return invalid("NEWS_API_ENDPOINT is required")
		}
		if c.NewsAPIPageSize < 1 || c.NewsAPIPageSize > 100 {
			return invalid("NEWS_API_PAGE_SIZE must be between 1 and 100")
		}
		if c.NewsAPIMaxPages < 1 {
			return invalid("NEWS_API_MAX_PAGES must be >= 1")
		}
	case SourceRSS:
		if strings.TrimSpace(c.RSSEndpoint) == "" {
			return invalid("RSS_ENDPOINT is required when NEWS_SOURCE=rss")
		}
	default:
		return invalid("NEWS_SOURCE must be %q or %q, got %q", SourceNewsAPI, SourceRSS, c.NewsSource)
	}

	if c.FetchTimeout <= 0 {
		return invalid("FETCH_TIMEOUT must be positive")
	}
	if c.FetchRetries < 1 {
		return invalid("FETCH_RETRIES must be >= 1")
	}
	if c.FetchRatePerSec <= 0 {
		return invalid("FETCH_RATE_PER_SECOND must be positive")
	}
	if strings.TrimSpace(c.InferenceEndpoint) == "" {
		return invalid("INFERENCE_ENDPOINT is required")
	}
	if strings.TrimSpace(c.InferenceEntailmentLabel) == "" {
		return invalid("INFERENCE_ENTAILMENT_LABEL is required")
	}
	if c.InferenceBatchSize < 1 {
		return invalid("INFERENCE_BATCH_SIZE must be >= 1")
	}
	if c.InferenceMaxLength < 1 {
		return invalid("INFERENCE_MAX_LENGTH must be >= 1")
	}
	if c.InferenceTimeout <= 0 {
		return invalid("INFERENCE_TIMEOUT must be positive")
	}
	return nil
}

func (c *Config) NormalizedNewsSource() string {
	return strings.ToLower(strings.TrimSpace(c.NewsSource))
}

func (c *Config) NewsAPIKeyList() []string {
	if c == nil {
		return nil
	}
	return splitList(c.NewsAPIKeys, false)
}

// ScoreLanguageList returns the lowercase ISO 639-1 codes whose articles are scored.
func (c *Config) ScoreLanguageList() []string {
	if c == nil {
		return nil
	}
	return splitList(c.ScoreLanguages, true)
}

func (c *Config) CORSAllowedOriginsList() []string {
	if c == nil {
		return nil
	}
	return splitList(c.CORSAllowedOrigins, false)
}

func splitList(raw string, lower bool) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, part := range parts {
		value := strings.TrimSpace(part)
		if lower {
			value = strings.ToLower(value)
		}
		if value == "" {
			continue
		}
		if _, exists := seen[value]; exists {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}
