// Package sentiment scores (article, startup) pairs with a zero-shot NLI model.
package sentiment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// ErrInferenceBatch marks a pair whose hypotheses were in a failed model batch.
var ErrInferenceBatch = errors.New("inference batch failed")

type Label string

const (
	Positive Label = "positive"
	Neutral  Label = "neutral"
	Negative Label = "negative"
)

// labels is the hypothesis order and also the tie-break order.
var labels = [3]Label{Positive, Neutral, Negative}

const (
	DefaultBatchSize       = 32
	DefaultMaxPremiseRunes = 2000
)

// Hypothesis is one NLI input: does Premise entail Text?
type Hypothesis struct {
	Premise string
	Text    string
}

// Model returns one entailment probability per hypothesis, in order.
type Model interface {
	Entailment(ctx context.Context, batch []Hypothesis) ([]float64, error)
}

// Pair asks how Premise reads for the startup named Entity.
type Pair struct {
	Premise string
	Entity  string
}

// Scores are independent entailment probabilities and need not sum to 1.
type Scores struct {
	Positive float64 `json:"positive"`
	Neutral  float64 `json:"neutral"`
	Negative float64 `json:"negative"`
}

// Label returns the highest scoring label, preferring positive, then
// neutral, then negative on ties.
func (s Scores) Label() Label {
	values := [3]float64{s.Positive, s.Neutral, s.Negative}
	best := 0
	for i := 1; i < len(values); i++ {
		if values[i] > values[best] {
			best = i
		}
	}
	return labels[best]
}

// Result is the outcome for one Pair. Err is non-nil (wrapping
// ErrInferenceBatch) when any of the pair's hypotheses could not be scored.
type Result struct {
	Scores Scores
	Label  Label
	Err    error
}

func (r Result) OK() bool { return r.Err == nil }

// BatchError describes one failed model call.
type BatchError struct {
	Index int
	Start int
	End   int
	Err   error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("%s: batch %d (hypotheses %d-%d): %v", ErrInferenceBatch, e.Index, e.Start, e.End-1, e.Err)
}

func (e *BatchError) Unwrap() []error {
	return []error{ErrInferenceBatch, e.Err}
}

// Scorer flattens hypotheses across pairs and submits them in fixed-size
// batches. Results do not depend on BatchSize.
type Scorer struct {
	Model           Model
	BatchSize       int
	MaxPremiseRunes int
}

// HypothesisFor renders the NLI hypothesis for one label and startup name.
func HypothesisFor(label Label, entity string) string {
	return fmt.Sprintf("The news is %s for %s.", label, strings.TrimSpace(entity))
}

// Stats summarises one Score call.
type Stats struct {
	Hypotheses    int
	Batches       int
	FailedBatches int
}

// Score returns one Result per pair, in input order. It only returns an
// error when ctx is done before any batch could be attempted or when the
// scorer is misconfigured; model failures are reported per pair.
func (s Scorer) Score(ctx context.Context, pairs []Pair) ([]Result, Stats, error) {
	if s.Model == nil {
		return nil, Stats{}, fmt.Errorf("sentiment model is nil")
	}
	batchSize := s.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	maxRunes := s.MaxPremiseRunes
	if maxRunes <= 0 {
		maxRunes = DefaultMaxPremiseRunes
	}

	results := make([]Result, len(pairs))
	if len(pairs) == 0 {
		return results, Stats{}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, Stats{}, err
	}

	hypotheses := make([]Hypothesis, 0, len(pairs)*len(labels))
	for _, pair := range pairs {
		premise := clipRunes(pair.Premise, maxRunes)
		for _, label := range labels {
			hypotheses = append(hypotheses, Hypothesis{Premise: premise, Text: HypothesisFor(label, pair.Entity)})
		}
	}

	stats := Stats{Hypotheses: len(hypotheses)}
	probs := make([]float64, len(hypotheses))
	failed := make([]error, len(hypotheses))

	for start, batchIndex := 0, 0; start < len(hypotheses); start, batchIndex = start+batchSize, batchIndex+1 {
		end := min(start+batchSize, len(hypotheses))
		stats.Batches++

		var batchErr error
		if err := ctx.Err(); err != nil {
			batchErr = err
		} else {
			out, err := s.Model.Entailment(ctx, hypotheses[start:end])
			switch {
			case err != nil:
				batchErr = err
			case len(out) != end-start:
				batchErr = fmt.Errorf("model returned %d scores for %d hypotheses", len(out), end-start)
			default:
				copy(probs[start:end], out)
			}
		}

		if batchErr != nil {
			stats.FailedBatches++
			wrapped := &BatchError{Index: batchIndex, Start: start, End: end, Err: batchErr}
			for i := start; i < end; i++ {
				failed[i] = wrapped
			}
		}
	}

	for i := range pairs {
		base := i * len(labels)
		var pairErr error
		for j := 0; j < len(labels); j++ {
			if failed[base+j] != nil {
				pairErr = failed[base+j]
				break
			}
		}
		if pairErr != nil {
			results[i] = Result{Err: pairErr}
			continue
		}
		scores := Scores{
			Positive: probs[base],
			Neutral:  probs[base+1],
			Negative: probs[base+2],
		}
		results[i] = Result{Scores: scores, Label: scores.Label()}
	}

	return results, stats, nil
}

func clipRunes(text string, limit int) string {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) <= limit {
		return text
	}
	runes := []rune(text)
	return string(runes[:limit])
}
