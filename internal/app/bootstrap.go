package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/sentiflow/internal/cli"
	"horse.fit/sentiflow/internal/config"
	"horse.fit/sentiflow/internal/db"
	"horse.fit/sentiflow/internal/logging"
)

// runtime is what every database-backed command starts with.
type runtime struct {
	cfg       *config.Config
	logger    zerolog.Logger
	logCloser io.Closer
	pool      *db.Pool
}

func (r *runtime) Close() {
	if r == nil {
		return
	}
	if r.pool != nil {
		_ = r.pool.Close()
	}
	if r.logCloser != nil {
		_ = r.logCloser.Close()
	}
}

func loadConfig(envLoader *cli.EnvLoader) (*config.Config, error) {
	if envLoader != nil {
		if _, err := envLoader.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// bootstrap loads config, builds the logger and connects to the database.
// connectTimeout bounds the ping and schema migration only.
func bootstrap(envLoader *cli.EnvLoader, connectTimeout time.Duration, command string) (*runtime, error) {
	cfg, err := loadConfig(envLoader)
	if err != nil {
		return nil, err
	}
	return connect(cfg, connectTimeout, command)
}

func connect(cfg *config.Config, connectTimeout time.Duration, command string) (*runtime, error) {
	logger, closer, err := logging.New(cfg.Environment, cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger = logger.With().Str("command", command).Logger()

	if connectTimeout <= 0 {
		connectTimeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Error().Err(err).Msg("failed to connect to database")
		_ = closer.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &runtime{cfg: cfg, logger: logger, logCloser: closer, pool: pool}, nil
}
