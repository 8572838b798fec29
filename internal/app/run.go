package app

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"horse.fit/sentiflow/internal/cli"
	"horse.fit/sentiflow/internal/globaltime"
	"horse.fit/sentiflow/internal/persist"
	"horse.fit/sentiflow/internal/pipeline"
)

const summaryTimestampToken = "{ts}"

func runPipeline(args []string) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 0, "Overall run timeout (0 disables)")
	summaryFile := fs.String("summary-file", "", "Write the JSON run summary here; \"{ts}\" is replaced by the start time")
	format := fs.String("format", outputFormatTable, "Output format: table or json")
	var o overrides
	fs.StringVar(&o.source, "source", "", "Override NEWS_SOURCE (newsapi or rss)")
	fs.IntVar(&o.batchSize, "batch-size", 0, "Override INFERENCE_BATCH_SIZE")
	fs.DurationVar(&o.fetchTimeout, "fetch-timeout", 0, "Override FETCH_TIMEOUT")
	fs.DurationVar(&o.inferenceTimeout, "inference-timeout", 0, "Override INFERENCE_TIMEOUT")
	fs.IntVar(&o.maxContentLength, "max-content-length", 0, "Override MAX_CONTENT_LENGTH")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "run does not accept positional arguments")
		return 2
	}
	if *timeout < 0 || o.batchSize < 0 || o.maxContentLength < 0 {
		fmt.Fprintln(os.Stderr, "--timeout, --batch-size and --max-content-length must not be negative")
		return 2
	}
	outputFormat, err := parseOutputFormat(*format, outputFormatTable)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid format: %v\n", err)
		return 2
	}

	cfg, err := loadConfig(envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return pipeline.ExitFailure
	}
	o.apply(cfg)
	if err := cfg.ValidatePipeline(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		return pipeline.ExitFailure
	}

	rt, err := connect(cfg, 30*time.Second, "run")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return pipeline.ExitFailure
	}
	defer rt.Close()

	svc, err := newRunService(cfg, rt.pool, rt.logger)
	if err != nil {
		rt.logger.Error().Err(err).Msg("run setup failed")
		fmt.Fprintf(os.Stderr, "Run setup failed: %v\n", err)
		return pipeline.ExitFailure
	}

	ctx, cancel := commandContext(*timeout)
	defer cancel()

	runID, runUUID, err := rt.pool.InsertRun(ctx, "run")
	if err != nil {
		rt.logger.Error().Err(err).Msg("open run ledger failed")
		fmt.Fprintf(os.Stderr, "Failed to open run ledger: %v\n", err)
		return pipeline.ExitFailure
	}

	summary, runErr := svc.Run(ctx)
	summary.RunID = runUUID

	encoded, err := json.Marshal(summary)
	if err != nil {
		rt.logger.Error().Err(err).Msg("encode run summary failed")
	}
	errMessage := ""
	if runErr != nil {
		errMessage = runErr.Error()
	}
	// The run context may already be done; the ledger row still has to close.
	finishCtx, finishCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer finishCancel()
	if err := rt.pool.FinishRun(finishCtx, runID, string(summary.Status), encoded, errMessage); err != nil {
		rt.logger.Error().Err(err).Int64("run_id", runID).Msg("close run ledger failed")
	}

	if path := strings.TrimSpace(*summaryFile); path != "" {
		written, err := writeSummaryFile(path, summary.StartedAt, summary)
		if err != nil {
			rt.logger.Error().Err(err).Str("path", path).Msg("write summary file failed")
			fmt.Fprintf(os.Stderr, "Failed to write summary file: %v\n", err)
		} else {
			rt.logger.Info().Str("path", written).Msg("summary file written")
		}
	}

	if runErr != nil {
		rt.logger.Error().Err(runErr).Str("run_uuid", runUUID).Msg("run ended early")
		fmt.Fprintf(os.Stderr, "Run ended early: %v\n", runErr)
	}

	if err := printRunSummary(outputFormat, summary); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render summary: %v\n", err)
	}
	return summary.ExitCode()
}

func runPlan(args []string) int {
	fs := flag.NewFlagSet("plan", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 30*time.Second, "Command timeout")
	format := fs.String("format", outputFormatTable, "Output format: table or json")
	var o overrides
	fs.DurationVar(&o.backfill, "backfill-window", 0, "Override BACKFILL_WINDOW")
	fs.DurationVar(&o.maintenance, "maintenance-window", 0, "Override MAINTENANCE_WINDOW")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	outputFormat, err := parseOutputFormat(*format, outputFormatTable)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid format: %v\n", err)
		return 2
	}

	cfg, err := loadConfig(envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	o.apply(cfg)

	rt, err := connect(cfg, *timeout, "plan")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer rt.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	svc := pipeline.NewService(rt.pool, nil, nil, nil, newPlanner(cfg), rt.logger, pipelineOptions(cfg))
	planned, err := svc.Plan(ctx)
	if err != nil {
		rt.logger.Error().Err(err).Msg("plan failed")
		fmt.Fprintf(os.Stderr, "Plan failed: %v\n", err)
		return 1
	}

	if outputFormat == outputFormatJSON {
		if err := printJSON(planned); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			return 1
		}
		return 0
	}

	rows := make([][]string, 0, len(planned))
	for _, p := range planned {
		rows = append(rows, []string{
			p.StartupID,
			truncateForTable(p.Name, 32),
			string(p.Window.Mode),
			formatUTCTimestamp(p.Window.Since),
			formatUTCTimestamp(p.Window.Until),
			truncateForTable(p.Query, 80),
		})
	}
	if err := writeTable([]string{"startup_id", "name", "mode", "since", "until", "query"}, rows); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render plan table: %v\n", err)
		return 1
	}
	return 0
}

func runRescore(args []string) int {
	fs := flag.NewFlagSet("rescore", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 10*time.Minute, "Command timeout")
	limit := fs.Int("limit", 500, "Maximum failed pairs to retry")
	maxAttempts := fs.Int("max-attempts", 5, "Skip pairs that already failed this many times (0 disables)")
	var o overrides
	fs.IntVar(&o.batchSize, "batch-size", 0, "Override INFERENCE_BATCH_SIZE")
	fs.DurationVar(&o.inferenceTimeout, "inference-timeout", 0, "Override INFERENCE_TIMEOUT")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if *limit <= 0 {
		fmt.Fprintln(os.Stderr, "--limit must be > 0")
		return 2
	}
	if *maxAttempts < 0 {
		fmt.Fprintln(os.Stderr, "--max-attempts must be >= 0")
		return 2
	}

	cfg, err := loadConfig(envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	o.apply(cfg)
	scorer, err := newScorer(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		return 1
	}

	rt, err := connect(cfg, 30*time.Second, "rescore")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer rt.Close()

	ctx, cancel := commandContext(*timeout)
	defer cancel()

	svc := pipeline.NewService(rt.pool, nil, scorer, persist.NewCoordinator(rt.pool, rt.logger), newPlanner(cfg), rt.logger, pipelineOptions(cfg))
	summary, err := svc.Rescore(ctx, *limit, *maxAttempts)
	if err != nil {
		rt.logger.Error().Err(err).Msg("rescore failed")
		fmt.Fprintf(os.Stderr, "Rescore failed: %v\n", err)
	}

	fmt.Printf(
		"rescore pending=%d articles=%d recovered=%d still_failing=%d conflicts=%d status=%s\n",
		summary.Pending,
		summary.Articles,
		summary.Recovered,
		summary.StillFailing,
		summary.Conflicts,
		summary.Status,
	)
	return summary.ExitCode()
}

// commandContext is cancelled by SIGINT/SIGTERM and, when timeout > 0, by the deadline.
func commandContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	if timeout <= 0 {
		return ctx, stop
	}
	timed, cancel := context.WithTimeout(ctx, timeout)
	return timed, func() {
		cancel()
		stop()
	}
}

// writeSummaryFile writes summary as indented JSON and returns the final path.
func writeSummaryFile(path string, startedAt time.Time, summary any) (string, error) {
	if startedAt.IsZero() {
		startedAt = globaltime.UTC()
	}
	resolved := strings.ReplaceAll(path, summaryTimestampToken, startedAt.UTC().Format("20060102_150405"))

	if dir := filepath.Dir(resolved); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("create summary directory %s: %w", dir, err)
		}
	}

	encoded, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode summary: %w", err)
	}
	if err := os.WriteFile(resolved, append(encoded, '\n'), 0o644); err != nil {
		return "", fmt.Errorf("write summary %s: %w", resolved, err)
	}
	return resolved, nil
}

func printRunSummary(outputFormat string, summary pipeline.Summary) error {
	if outputFormat == outputFormatJSON {
		return printJSON(summary)
	}

	rows := make([][]string, 0, len(summary.Reports))
	for _, r := range summary.Reports {
		rows = append(rows, []string{
			truncateForTable(r.Name, 28),
			string(r.Outcome),
			string(r.Mode),
			fmt.Sprintf("%d", r.Fetched),
			fmt.Sprintf("%d", r.New),
			fmt.Sprintf("%d", r.Matched),
			fmt.Sprintf("%d", r.SentimentsStored),
			fmt.Sprintf("%d", r.FailedPairs),
			truncateForTable(r.Error, 60),
		})
	}
	if err := writeTable([]string{"startup", "outcome", "mode", "fetched", "new", "matched", "sentiments", "failed", "error"}, rows); err != nil {
		return err
	}

	fmt.Println()
	fmt.Printf(
		"run %s status=%s startups=%d succeeded=%d skipped=%d failed=%d cancelled=%d articles=%d sentiments=%d failed_batches=%d not_scored_language=%d conflicts=%d\n",
		summary.RunID,
		summary.Status,
		summary.Startups,
		summary.Succeeded,
		summary.Skipped,
		summary.Failed,
		summary.Cancelled,
		summary.ArticlesPersisted,
		summary.SentimentsStored,
		summary.FailedBatches,
		summary.NotScoredLang,
		summary.Conflicts,
	)
	return nil
}
