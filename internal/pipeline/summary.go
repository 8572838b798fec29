package pipeline

import (
	"time"

	"horse.fit/sentiflow/internal/fetchplan"
)

type StartupOutcome string

const (
	OutcomeSucceeded StartupOutcome = "succeeded"
	OutcomeSkipped   StartupOutcome = "skipped"
	OutcomeFailed    StartupOutcome = "failed"
	OutcomeCancelled StartupOutcome = "cancelled"
)

type RunStatus string

const (
	RunCompleted RunStatus = "completed"
	RunPartial   RunStatus = "partial"
	RunFailed    RunStatus = "failed"
)

// Exit codes returned by the run command.
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitUsage   = 2
	ExitPartial = 3
)

// StartupReport is the per-startup part of a run summary.
type StartupReport struct {
	StartupID string         `json:"startup_id"`
	Name      string         `json:"name"`
	Sector    string         `json:"sector,omitempty"`
	Mode      fetchplan.Mode `json:"mode,omitempty"`
	Since     time.Time      `json:"since"`
	Until     time.Time      `json:"until"`
	Query     string         `json:"query,omitempty"`
	Outcome   StartupOutcome `json:"outcome"`
	Error     string         `json:"error,omitempty"`

	FetchAttempts    int `json:"fetch_attempts"`
	Fetched          int `json:"fetched"`
	DroppedInvalid   int `json:"dropped_invalid"`
	AlreadySeen      int `json:"already_seen"`
	AlreadyStored    int `json:"already_stored"`
	New              int `json:"new"`
	Matched          int `json:"matched"`
	NotScoredLang    int `json:"not_scored_language"`
	Pairs            int `json:"pairs"`
	Scored           int `json:"scored"`
	FailedPairs      int `json:"failed_pairs"`
	Batches          int `json:"batches"`
	FailedBatches    int `json:"failed_batches"`
	Persisted        int `json:"persisted"`
	SentimentsStored int `json:"sentiments_stored"`
	Conflicts        int `json:"conflicts"`
	CommitErrors     int `json:"commit_errors"`
}

// Summary is the result of one pipeline invocation.
type Summary struct {
	RunID      string    `json:"run_id,omitempty"`
	Source     string    `json:"source"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Startups  int `json:"startups"`
	Succeeded int `json:"succeeded"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
	Cancelled int `json:"cancelled"`

	ArticlesFetched   int `json:"articles_fetched"`
	ArticlesNew       int `json:"articles_new"`
	ArticlesPersisted int `json:"articles_persisted"`
	SentimentsStored  int `json:"sentiments_stored"`
	FailedPairs       int `json:"failed_pairs"`
	FailedBatches     int `json:"failed_batches"`
	NotScoredLang     int `json:"not_scored_language"`
	Conflicts         int `json:"conflicts"`

	Status  RunStatus       `json:"status"`
	Reports []StartupReport `json:"reports"`
}

func (s *Summary) add(r StartupReport) {
	s.Reports = append(s.Reports, r)
	s.Startups++
	switch r.Outcome {
	case OutcomeSucceeded:
		s.Succeeded++
	case OutcomeSkipped:
		s.Skipped++
	case OutcomeFailed:
		s.Failed++
	case OutcomeCancelled:
		s.Cancelled++
	}
	s.ArticlesFetched += r.Fetched
	s.ArticlesNew += r.New
	s.ArticlesPersisted += r.Persisted
	s.SentimentsStored += r.SentimentsStored
	s.FailedPairs += r.FailedPairs
	s.FailedBatches += r.FailedBatches
	s.NotScoredLang += r.NotScoredLang
	s.Conflicts += r.Conflicts
}

func (s *Summary) finish(now time.Time) {
	s.FinishedAt = now
	switch {
	case s.Skipped+s.Failed+s.Cancelled > 0 || s.FailedBatches+s.NotScoredLang+s.Conflicts > 0:
		s.Status = RunPartial
	default:
		s.Status = RunCompleted
	}
}

// ExitCode maps the summary to the process exit code.
func (s Summary) ExitCode() int {
	switch s.Status {
	case RunCompleted:
		return ExitOK
	case RunPartial:
		return ExitPartial
	default:
		return ExitFailure
	}
}
