package pipeline

import (
	"errors"
	"fmt"

	"horse.fit/sentiflow/internal/config"
	"horse.fit/sentiflow/internal/persist"
	"horse.fit/sentiflow/internal/sentiment"
)

var (
	// ErrFetch marks a startup whose articles could not be fetched this cycle.
	ErrFetch = errors.New("fetch failed")
	// ErrConfiguration is fatal and reported before any fetch.
	ErrConfiguration = config.ErrInvalid

	ErrInferenceBatch      = sentiment.ErrInferenceBatch
	ErrPersistenceConflict = persist.ErrPersistenceConflict
)

// FetchError is returned after the bounded retries for one startup ran out.
type FetchError struct {
	StartupID string
	Attempts  int
	Err       error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s: startup %s after %d attempt(s): %v", ErrFetch, e.StartupID, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() []error {
	return []error{ErrFetch, e.Err}
}
