package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"horse.fit/sentiflow/internal/cli"
	"horse.fit/sentiflow/internal/db"
	"horse.fit/sentiflow/internal/seed"
)

func runSeedSectors(args []string) int {
	fs := flag.NewFlagSet("seed-sectors", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 30*time.Second, "Command timeout")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	sectors, err := seed.Sectors()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load reference sectors: %v\n", err)
		return 1
	}

	rt, err := bootstrap(envLoader, *timeout, "seed-sectors")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer rt.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	affected, err := rt.pool.UpsertSectors(ctx, sectors)
	if err != nil {
		rt.logger.Error().Err(err).Msg("seed sectors failed")
		fmt.Fprintf(os.Stderr, "Seed sectors failed: %v\n", err)
		return 1
	}

	rt.logger.Info().Int("sectors", len(sectors)).Int64("affected", affected).Msg("sectors seeded")
	fmt.Printf("seed-sectors sectors=%d affected=%d\n", len(sectors), affected)
	return 0
}

func runImportStartups(args []string) int {
	fs := flag.NewFlagSet("import-startups", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 30*time.Second, "Command timeout")
	file := fs.String("file", "", "Startup import JSON file")
	dryRun := fs.Bool("dry-run", false, "Validate and print derived ids without writing")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if strings.TrimSpace(*file) == "" {
		fmt.Fprintln(os.Stderr, "--file is required")
		return 2
	}

	startups, err := loadStartupFile(strings.TrimSpace(*file))
	if err != nil {
		fmt.Fprintf(os.Stderr, "INVALID %s: %v\n", *file, err)
		return 1
	}

	if *dryRun {
		rows := make([][]string, 0, len(startups))
		for _, s := range startups {
			keywords, _ := db.DecodeKeywords(s.FindingKeywords)
			rows = append(rows, []string{s.ID, s.Name, fmt.Sprintf("%d", s.SectorID), fmt.Sprintf("%d", len(keywords))})
		}
		if err := writeTable([]string{"id", "name", "sector_id", "keywords"}, rows); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render table: %v\n", err)
			return 1
		}
		return 0
	}

	rt, err := bootstrap(envLoader, *timeout, "import-startups")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer rt.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	affected, err := rt.pool.UpsertStartups(ctx, startups)
	if err != nil {
		rt.logger.Error().Err(err).Str("file", *file).Msg("import startups failed")
		fmt.Fprintf(os.Stderr, "Import failed: %v\n", err)
		return 1
	}

	rt.logger.Info().Str("file", *file).Int("startups", len(startups)).Int64("affected", affected).Msg("startups imported")
	fmt.Printf("import-startups file=%s startups=%d affected=%d\n", *file, len(startups), affected)
	return 0
}

// loadStartupFile validates a startup import file and resolves it against
// the reference sectors.
func loadStartupFile(path string) ([]db.Startup, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read failed: %w", err)
	}
	parsed, err := seed.ParseStartupFile(raw)
	if err != nil {
		return nil, err
	}
	sectors, err := seed.Sectors()
	if err != nil {
		return nil, fmt.Errorf("load reference sectors: %w", err)
	}
	return seed.BuildStartups(parsed, sectors)
}
