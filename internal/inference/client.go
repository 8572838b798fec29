// Package inference talks to an NLI sequence-classification server.
//
// The wire format is the text-embeddings-inference /predict API: each input
// is a [premise, hypothesis] pair and each output is the list of label
// scores for that pair.
package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"horse.fit/sentiflow/internal/sentiment"
)

const (
	DefaultEntailmentLabel = "entailment"
	DefaultMaxLength       = 256
	DefaultRequestTimeout  = 60 * time.Second
)

type Options struct {
	Endpoint        string
	Token           string
	Model           string
	EntailmentLabel string
	MaxLength       int
	RequestTimeout  time.Duration
	HTTPClient      *http.Client
}

// Client implements sentiment.Model.
type Client struct {
	opts Options
}

var _ sentiment.Model = (*Client)(nil)

func NewClient(options Options) (*Client, error) {
	opts := normalizeOptions(options)
	if opts.Endpoint == "" {
		return nil, fmt.Errorf("inference endpoint is required")
	}
	if _, err := url.ParseRequestURI(opts.Endpoint); err != nil {
		return nil, fmt.Errorf("parse inference endpoint %q: %w", opts.Endpoint, err)
	}
	return &Client{opts: opts}, nil
}

type predictRequest struct {
	Inputs    [][2]string `json:"inputs"`
	Truncate  bool        `json:"truncate"`
	RawScores bool        `json:"raw_scores"`
	Model     string      `json:"model,omitempty"`
	MaxLength int         `json:"max_length,omitempty"`
}

type labelScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Entailment returns the entailment probability for each hypothesis.
func (c *Client) Entailment(ctx context.Context, batch []sentiment.Hypothesis) ([]float64, error) {
	if len(batch) == 0 {
		return []float64{}, nil
	}

	payload := predictRequest{
		Inputs:    make([][2]string, 0, len(batch)),
		Truncate:  true,
		Model:     c.opts.Model,
		MaxLength: c.opts.MaxLength,
	}
	for _, h := range batch {
		payload.Inputs = append(payload.Inputs, [2]string{h.Premise, h.Text})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal predict request: %w", err)
	}

	requestCtx, cancel := context.WithTimeout(ctx, c.opts.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(requestCtx, http.MethodPost, c.opts.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build predict request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.opts.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.opts.Token)
	}

	resp, err := c.opts.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("predict request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read predict response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("inference service status %d: %s", resp.StatusCode, truncateBody(respBody))
	}

	perInput, err := decodePredictions(respBody, len(batch))
	if err != nil {
		return nil, err
	}

	out := make([]float64, len(perInput))
	for i, scores := range perInput {
		score, ok := pickLabel(scores, c.opts.EntailmentLabel)
		if !ok {
			return nil, fmt.Errorf("prediction %d has no %q label", i, c.opts.EntailmentLabel)
		}
		out[i] = score
	}
	return out, nil
}

func decodePredictions(body []byte, expected int) ([][]labelScore, error) {
	trimmed := bytes.TrimSpace(body)

	var nested [][]labelScore
	if err := json.Unmarshal(trimmed, &nested); err != nil {
		// A single input may come back as a flat list.
		var flat []labelScore
		if flatErr := json.Unmarshal(trimmed, &flat); flatErr != nil {
			return nil, fmt.Errorf("decode predict response: %w", err)
		}
		nested = [][]labelScore{flat}
	}
	if len(nested) != expected {
		return nil, fmt.Errorf("predict response has %d predictions for %d inputs", len(nested), expected)
	}
	return nested, nil
}

func pickLabel(scores []labelScore, label string) (float64, bool) {
	for _, s := range scores {
		if strings.EqualFold(strings.TrimSpace(s.Label), label) {
			return s.Score, true
		}
	}
	return 0, false
}

func truncateBody(body []byte) string {
	text := strings.TrimSpace(string(body))
	if len(text) > 512 {
		return text[:512] + "..."
	}
	return text
}

func normalizeOptions(opts Options) Options {
	opts.Endpoint = strings.TrimSpace(opts.Endpoint)
	if opts.Endpoint != "" && !strings.HasSuffix(strings.TrimRight(opts.Endpoint, "/"), "/predict") {
		opts.Endpoint = strings.TrimRight(opts.Endpoint, "/") + "/predict"
	}
	opts.Token = strings.TrimSpace(opts.Token)
	opts.Model = strings.TrimSpace(opts.Model)
	opts.EntailmentLabel = strings.TrimSpace(opts.EntailmentLabel)
	if opts.EntailmentLabel == "" {
		opts.EntailmentLabel = DefaultEntailmentLabel
	}
	if opts.MaxLength <= 0 {
		opts.MaxLength = DefaultMaxLength
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = DefaultRequestTimeout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	return opts
}
