package config

import (
	"errors"
	"testing"
	"time"
)

func validConfig() Config {
	return Config{
		DatabaseURL:              "postgres://localhost/sentiflow",
		DBMinConns:               1,
		DBMaxConns:               4,
		NewsSource:               "newsapi",
		NewsAPIKeys:              "k1, k2 ,k1",
		NewsAPIEndpoint:          "https://newsapi.org/v2/everything",
		NewsAPIPageSize:          100,
		NewsAPIMaxPages:          1,
		FetchTimeout:             15 * time.Second,
		FetchRetries:             3,
		FetchRatePerSec:          1,
		InferenceEndpoint:        "http://localhost:8080",
		InferenceEntailmentLabel: "entailment",
		InferenceBatchSize:       32,
		InferenceMaxLength:       256,
		InferenceTimeout:         time.Minute,
		BackfillWindow:           30 * 24 * time.Hour,
		MaintenanceWindow:        24 * time.Hour,
		MaxContentLength:         300,
		ScoreLanguages:           "EN, de",
	}
}

func TestValidatePipelineAcceptsCompleteConfig(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	if err := cfg.ValidatePipeline(); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
}

func TestValidatePipelineRejectsMissingSettings(t *testing.T) {
	t.Parallel()

	cases := map[string]func(*Config){
		"no api keys":        func(c *Config) { c.NewsAPIKeys = " , " },
		"no inference":       func(c *Config) { c.InferenceEndpoint = "" },
		"unknown source":     func(c *Config) { c.NewsSource = "gdelt" },
		"zero batch size":    func(c *Config) { c.InferenceBatchSize = 0 },
		"windows inverted":   func(c *Config) { c.MaintenanceWindow = 40 * 24 * time.Hour },
		"conn bounds":        func(c *Config) { c.DBMinConns = 9 },
		"page size too high": func(c *Config) { c.NewsAPIPageSize = 250 },
	}

	for name, mutate := range cases {
		name, mutate := name, mutate
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			cfg := validConfig()
			mutate(&cfg)
			err := cfg.ValidatePipeline()
			if err == nil {
				t.Fatalf("expected validation error")
			}
			if !errors.Is(err, ErrInvalid) {
				t.Fatalf("expected ErrInvalid, got %v", err)
			}
		})
	}
}

func TestRSSSourceDoesNotNeedAPIKeys(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.NewsSource = " RSS "
	cfg.NewsAPIKeys = ""
	cfg.RSSEndpoint = "https://news.google.com/rss/search"
	if err := cfg.ValidatePipeline(); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
}

func TestListHelpers(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	keys := cfg.NewsAPIKeyList()
	if len(keys) != 2 || keys[0] != "k1" || keys[1] != "k2" {
		t.Fatalf("unexpected key list: %#v", keys)
	}
	langs := cfg.ScoreLanguageList()
	if len(langs) != 2 || langs[0] != "en" || langs[1] != "de" {
		t.Fatalf("unexpected language list: %#v", langs)
	}
}
