package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"horse.fit/sentiflow/internal/cli"
	"horse.fit/sentiflow/internal/db"
)

func runStats(args []string) int {
	fs := flag.NewFlagSet("stats", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 30*time.Second, "Command timeout")
	format := fs.String("format", outputFormatTable, "Output format: table or json")
	day := fs.String("day", "", "UTC day for the *_today counters (YYYY-MM-DD, default today)")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "stats does not accept positional arguments")
		return 2
	}

	outputFormat, err := parseOutputFormat(*format, outputFormatTable)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid format: %v\n", err)
		return 2
	}

	dayStart := defaultUTCDay()
	if *day != "" {
		parsed, err := parseUTCDate(*day)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid --day: %v\n", err)
			return 2
		}
		dayStart = parsed
	}
	_, dayEnd := utcDayBounds(dayStart)

	rt, err := bootstrap(envLoader, *timeout, "stats")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer rt.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	stats, err := rt.pool.QueryPipelineStats(ctx, dayStart, dayEnd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to query pipeline stats: %v\n", err)
		return 1
	}

	if outputFormat == outputFormatJSON {
		if err := printJSON(stats); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			return 1
		}
		return 0
	}

	if err := writeTable([]string{"metric", "value"}, statsRows(stats)); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render stats table: %v\n", err)
		return 1
	}
	return 0
}

func statsRows(stats *db.PipelineStats) [][]string {
	rows := [][]string{
		{"day", stats.Day},
		{"sectors", fmt.Sprintf("%d", stats.Sectors)},
		{"startups", fmt.Sprintf("%d", stats.Startups)},
		{"startups_with_history", fmt.Sprintf("%d", stats.StartupsWithHistory)},
		{"articles", fmt.Sprintf("%d", stats.Articles)},
		{"articles_today", fmt.Sprintf("%d", stats.ArticlesToday)},
		{"sentiments", fmt.Sprintf("%d", stats.Sentiments)},
		{"sentiments_today", fmt.Sprintf("%d", stats.SentimentsToday)},
		{"positive", fmt.Sprintf("%d", stats.SentimentByLabel.Positive)},
		{"neutral", fmt.Sprintf("%d", stats.SentimentByLabel.Neutral)},
		{"negative", fmt.Sprintf("%d", stats.SentimentByLabel.Negative)},
		{"pending_failures", fmt.Sprintf("%d", stats.PendingFailures)},
	}
	if run := stats.LastRun; run != nil {
		rows = append(rows,
			[]string{"last_run", run.RunUUID},
			[]string{"last_run_status", run.Status},
			[]string{"last_run_started_at", formatUTCTimestamp(run.StartedAt)},
			[]string{"last_run_finished_at", formatUTCTimestampPtr(run.FinishedAt)},
		)
	}
	return rows
}
