package db

import (
	"context"
	"fmt"
	"strings"
)

// InsertRun opens a pipeline_runs ledger row and returns its ids.
func (p *Pool) InsertRun(ctx context.Context, command string) (int64, string, error) {
	var (
		runID   int64
		runUUID string
	)
	err := p.QueryRow(ctx, `
INSERT INTO sentiflow.pipeline_runs (command, status, started_at)
VALUES ($1, 'running', now())
RETURNING run_id, run_uuid::text
`, strings.TrimSpace(command)).Scan(&runID, &runUUID)
	if err != nil {
		return 0, "", fmt.Errorf("insert pipeline run: %w", err)
	}
	return runID, runUUID, nil
}

// FinishRun closes a ledger row with its final status and JSON summary.
func (p *Pool) FinishRun(ctx context.Context, runID int64, status string, summary []byte, errMessage string) error {
	var errArg any
	if msg := strings.TrimSpace(errMessage); msg != "" {
		errArg = msg
	}
	var summaryArg any
	if len(summary) > 0 {
		summaryArg = string(summary)
	}

	_, err := p.Exec(ctx, `
UPDATE sentiflow.pipeline_runs
SET status = $2,
	finished_at = now(),
	summary = $3::jsonb,
	error_message = $4
WHERE run_id = $1
`, runID, status, summaryArg, errArg)
	if err != nil {
		return fmt.Errorf("finish pipeline run %d: %w", runID, err)
	}
	return nil
}
