package pipeline

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/sentiflow/internal/db"
	"horse.fit/sentiflow/internal/dedup"
	"horse.fit/sentiflow/internal/fetchplan"
	"horse.fit/sentiflow/internal/persist"
	"horse.fit/sentiflow/internal/sentiment"
	"horse.fit/sentiflow/internal/source"
	"horse.fit/sentiflow/internal/textclean"
)

var fixedNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

// fakeDB implements Store and Committer over in-memory maps.
type fakeDB struct {
	mu        sync.Mutex
	startups  []db.TrackedStartup
	articles  map[string]persist.Article
	rows      map[string]map[string]sentiment.Label
	failures  map[string]map[string]string
	pending   []db.PendingFailure
	commits   []string
	commitErr map[string]error
}

func newFakeDB(startups ...db.TrackedStartup) *fakeDB {
	return &fakeDB{
		startups:  startups,
		articles:  map[string]persist.Article{},
		rows:      map[string]map[string]sentiment.Label{},
		failures:  map[string]map[string]string{},
		commitErr: map[string]error{},
	}
}

func (f *fakeDB) ListTrackedStartups(context.Context) ([]db.TrackedStartup, error) {
	return append([]db.TrackedStartup(nil), f.startups...), nil
}

func (f *fakeDB) StartupIDsWithSentiment(context.Context) (map[string]struct{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[string]struct{}{}
	for _, byStartup := range f.rows {
		for id := range byStartup {
			out[id] = struct{}{}
		}
	}
	return out, nil
}

func (f *fakeDB) ExistingURLs(_ context.Context, urls []string) (map[string]struct{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[string]struct{}{}
	for _, u := range urls {
		if _, ok := f.articles[u]; ok {
			out[u] = struct{}{}
		}
	}
	return out, nil
}

func (f *fakeDB) ListScoringFailures(_ context.Context, limit, _ int) ([]db.PendingFailure, error) {
	if len(f.pending) > limit {
		return f.pending[:limit], nil
	}
	return f.pending, nil
}

func (f *fakeDB) Commit(_ context.Context, article persist.Article, rows []persist.SentimentRow, failures []persist.Failure) (persist.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commits = append(f.commits, article.URL)
	if err := f.commitErr[article.URL]; err != nil {
		return persist.Outcome{}, err
	}

	_, existed := f.articles[article.URL]
	if !existed {
		f.articles[article.URL] = article
	}
	out := persist.Outcome{ArticleID: article.URL, ArticleExisted: existed}
	for _, row := range rows {
		if f.rows[article.URL] == nil {
			f.rows[article.URL] = map[string]sentiment.Label{}
		}
		if _, ok := f.rows[article.URL][row.StartupID]; ok {
			out.SentimentsKept++
		} else {
			f.rows[article.URL][row.StartupID] = row.Label
			out.SentimentsStored++
		}
		delete(f.failures[article.URL], row.StartupID)
	}
	for _, failure := range failures {
		if f.failures[article.URL] == nil {
			f.failures[article.URL] = map[string]string{}
		}
		f.failures[article.URL][failure.StartupID] = failure.Reason
		out.FailuresRecorded++
	}
	return out, nil
}

type fakeSource struct {
	mu      sync.Mutex
	queries []source.Query
	search  func(ctx context.Context, q source.Query) ([]source.Article, error)
}

func (s *fakeSource) Name() string { return "fake" }

func (s *fakeSource) Search(ctx context.Context, q source.Query) ([]source.Article, error) {
	s.mu.Lock()
	s.queries = append(s.queries, q)
	s.mu.Unlock()
	return s.search(ctx, q)
}

// stubModel favours the label named in sentiments[entity].
type stubModel struct {
	mu         sync.Mutex
	batches    [][]sentiment.Hypothesis
	sentiments map[string]sentiment.Label
	failIf     func(batch []sentiment.Hypothesis) bool
}

func (m *stubModel) Entailment(_ context.Context, batch []sentiment.Hypothesis) ([]float64, error) {
	m.mu.Lock()
	m.batches = append(m.batches, append([]sentiment.Hypothesis(nil), batch...))
	m.mu.Unlock()
	if m.failIf != nil && m.failIf(batch) {
		return nil, errors.New("model server returned 503")
	}
	out := make([]float64, len(batch))
	for i, h := range batch {
		out[i] = 0.1
		for entity, label := range m.sentiments {
			if h.Text == sentiment.HypothesisFor(label, entity) {
				out[i] = 0.9
			}
		}
	}
	return out, nil
}

type harness struct {
	db     *fakeDB
	source *fakeSource
	model  *stubModel
	trace  []Transition
	sleeps []time.Duration
	now    time.Time
}

func (h *harness) service(batchSize int) *Service {
	planner := fetchplan.Planner{
		Backfill:    30 * 24 * time.Hour,
		Maintenance: 24 * time.Hour,
		Now:         func() time.Time { return h.now },
	}
	return NewService(h.db, h.source, sentiment.Scorer{Model: h.model, BatchSize: batchSize}, h.db, planner, zerolog.Nop(), Options{
		FetchRetries:     3,
		FetchBackoff:     time.Second,
		MaxContentLength: 300,
		ScoreLanguages:   textclean.NewLanguageSet([]string{"en"}),
		DetectLanguage:   func(string) string { return "en" },
		Sleep: func(_ context.Context, d time.Duration) error {
			h.sleeps = append(h.sleeps, d)
			return nil
		},
		Observer: func(tr Transition) { h.trace = append(h.trace, tr) },
	})
}

func swiggy() db.TrackedStartup {
	return db.TrackedStartup{ID: "swiggy", Name: "Swiggy", SectorName: "Food Delivery", Keywords: []string{"swiggy", "instamart"}}
}

func zomato() db.TrackedStartup {
	return db.TrackedStartup{ID: "zomato", Name: "Zomato", SectorName: "Food Delivery", Keywords: []string{"zomato", "blinkit"}}
}

const rivalryURL = "https://news.example.com/2025/03/food-delivery-rivalry"

func rivalryArticle(rawURL string) source.Article {
	return source.Article{
		Title:       "Swiggy gains share as Zomato struggles",
		URL:         rawURL,
		Description: "Swiggy reported strong growth while Zomato faced losses in the quarter.",
		PublishedAt: fixedNow.Add(-2 * time.Hour),
	}
}

func newHarness(startups ...db.TrackedStartup) *harness {
	return &harness{
		db: newFakeDB(startups...),
		model: &stubModel{sentiments: map[string]sentiment.Label{
			"Swiggy": sentiment.Positive,
			"Zomato": sentiment.Negative,
		}},
		now: fixedNow,
	}
}

func TestRunScoresBothStartupsInOneArticle(t *testing.T) {
	t.Parallel()

	h := newHarness(swiggy(), zomato())
	h.source = &fakeSource{search: func(_ context.Context, q source.Query) ([]source.Article, error) {
		if strings.Contains(q.Text, `"Swiggy"`) {
			return []source.Article{rivalryArticle(rivalryURL)}, nil
		}
		// Same story, different tracking parameters.
		return []source.Article{rivalryArticle(rivalryURL + "/?utm_source=feed&fbclid=abc")}, nil
	}}

	summary, err := h.service(6).Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected run error: %v", err)
	}
	if summary.Status != RunCompleted || summary.ExitCode() != ExitOK {
		t.Fatalf("unexpected status: got %s (exit %d)", summary.Status, summary.ExitCode())
	}

	if len(h.model.batches) != 1 || len(h.model.batches[0]) != 6 {
		t.Fatalf("expected one batch of 6 hypotheses, got %d batches", len(h.model.batches))
	}
	if len(h.db.commits) != 1 {
		t.Fatalf("expected one commit, got %v", h.db.commits)
	}

	key, _ := dedup.CanonicalURL(rivalryURL)
	got := h.db.rows[key]
	want := map[string]sentiment.Label{"swiggy": sentiment.Positive, "zomato": sentiment.Negative}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected sentiments: got %v want %v", got, want)
	}

	if summary.Reports[1].AlreadySeen != 1 || summary.Reports[1].New != 0 {
		t.Fatalf("expected second startup to see the article as a duplicate: %+v", summary.Reports[1])
	}
	if summary.ArticlesPersisted != 1 || summary.SentimentsStored != 2 {
		t.Fatalf("unexpected totals: persisted=%d sentiments=%d", summary.ArticlesPersisted, summary.SentimentsStored)
	}
}

func TestRunStoresCanonicalURLAndExcerpt(t *testing.T) {
	t.Parallel()

	h := newHarness(swiggy())
	long := strings.Repeat("Swiggy expands grocery delivery to new cities. ", 20)
	h.source = &fakeSource{search: func(context.Context, source.Query) ([]source.Article, error) {
		return []source.Article{{
			Title:   "Swiggy <b>expands</b>",
			URL:     "HTTPS://News.Example.com:443/a/?utm_medium=x",
			Content: long + " [+2345 chars]",
		}}, nil
	}}

	if _, err := h.service(32).Run(context.Background()); err != nil {
		t.Fatalf("unexpected run error: %v", err)
	}

	stored, ok := h.db.articles["https://news.example.com/a"]
	if !ok {
		t.Fatalf("expected canonical url key, got %v", h.db.commits)
	}
	if strings.Contains(stored.Title, "<b>") {
		t.Fatalf("expected markup stripped from title, got %q", stored.Title)
	}
	if n := len([]rune(stored.Content)); n > 300 || !strings.HasSuffix(stored.Content, "...") {
		t.Fatalf("unexpected excerpt (%d runes): %q", n, stored.Content)
	}
}

func TestRunPersistsUnmatchedArticleWithoutSentiments(t *testing.T) {
	t.Parallel()

	h := newHarness(swiggy())
	h.source = &fakeSource{search: func(context.Context, source.Query) ([]source.Article, error) {
		return []source.Article{{Title: "Markets close higher", URL: "https://news.example.com/markets"}}, nil
	}}

	summary, err := h.service(32).Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected run error: %v", err)
	}
	if len(h.model.batches) != 0 {
		t.Fatalf("expected no inference calls, got %d", len(h.model.batches))
	}
	if _, ok := h.db.articles["https://news.example.com/markets"]; !ok {
		t.Fatalf("expected unmatched article to be stored")
	}
	if summary.Reports[0].Matched != 0 || summary.Reports[0].Persisted != 1 {
		t.Fatalf("unexpected report: %+v", summary.Reports[0])
	}
}

func TestRunDefersScoringForOtherLanguages(t *testing.T) {
	t.Parallel()

	h := newHarness(swiggy())
	h.source = &fakeSource{search: func(context.Context, source.Query) ([]source.Article, error) {
		return []source.Article{{Title: "Swiggy wächst weiter", URL: "https://news.example.de/swiggy"}}, nil
	}}
	svc := h.service(32)
	svc.opts.DetectLanguage = func(string) string { return "de" }

	summary, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected run error: %v", err)
	}
	if summary.Reports[0].NotScoredLang != 1 || summary.Reports[0].Pairs != 0 {
		t.Fatalf("unexpected report: %+v", summary.Reports[0])
	}
	if got := h.db.articles["https://news.example.de/swiggy"].Language; got != "de" {
		t.Fatalf("unexpected stored language: got %q want de", got)
	}
	if len(h.db.rows) != 0 {
		t.Fatalf("expected no sentiment rows, got %v", h.db.rows)
	}
	if _, ok := h.db.failures["https://news.example.de/swiggy"]["swiggy"]; !ok {
		t.Fatalf("expected deferred pair recorded as a failure, got %v", h.db.failures)
	}
	if summary.NotScoredLang != 1 || summary.Status != RunPartial || summary.ExitCode() != ExitPartial {
		t.Fatalf("unexpected summary: not_scored=%d status=%s exit=%d", summary.NotScoredLang, summary.Status, summary.ExitCode())
	}
}

func TestRunMatchesStartupNameWithoutKeyword(t *testing.T) {
	t.Parallel()

	st := db.TrackedStartup{ID: "swiggy", Name: "Swiggy", SectorName: "Food Delivery", Keywords: []string{"Instamart"}}
	h := newHarness(st)
	h.source = &fakeSource{search: func(context.Context, source.Query) ([]source.Article, error) {
		return []source.Article{{
			Title:       "Swiggy posts record quarter",
			URL:         "https://news.example.com/record-quarter",
			Description: "Orders grew across all cities.",
		}}, nil
	}}

	summary, err := h.service(32).Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected run error: %v", err)
	}
	if summary.Reports[0].Matched != 1 {
		t.Fatalf("expected the name alone to match: %+v", summary.Reports[0])
	}
	if got := h.db.rows["https://news.example.com/record-quarter"]["swiggy"]; got != sentiment.Positive {
		t.Fatalf("unexpected label: got %q want %q", got, sentiment.Positive)
	}
}

func TestRunKeepsBackfillForStartupScoredEarlierInCycle(t *testing.T) {
	t.Parallel()

	h := newHarness(swiggy(), zomato())
	h.source = &fakeSource{search: func(context.Context, source.Query) ([]source.Article, error) {
		return []source.Article{rivalryArticle(rivalryURL)}, nil
	}}

	summary, err := h.service(32).Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected run error: %v", err)
	}
	key, _ := dedup.CanonicalURL(rivalryURL)
	if _, ok := h.db.rows[key]["zomato"]; !ok {
		t.Fatalf("expected zomato row from the first startup's article, got %v", h.db.rows)
	}
	if summary.Reports[1].Mode != fetchplan.ModeBackfill {
		t.Fatalf("unexpected mode for zomato: got %s want %s", summary.Reports[1].Mode, fetchplan.ModeBackfill)
	}
}

func TestRunFetchFailureSkipsOnlyThatStartup(t *testing.T) {
	t.Parallel()

	h := newHarness(swiggy(), zomato())
	h.source = &fakeSource{search: func(_ context.Context, q source.Query) ([]source.Article, error) {
		if strings.Contains(q.Text, `"Swiggy"`) {
			return nil, &source.StatusError{Provider: "fake", StatusCode: 503, Message: "unavailable"}
		}
		return []source.Article{rivalryArticle(rivalryURL)}, nil
	}}

	summary, err := h.service(32).Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected run error: %v", err)
	}
	if summary.Status != RunPartial || summary.ExitCode() != ExitPartial {
		t.Fatalf("unexpected status: got %s (exit %d)", summary.Status, summary.ExitCode())
	}

	first := summary.Reports[0]
	if first.Outcome != OutcomeSkipped || first.FetchAttempts != 3 {
		t.Fatalf("unexpected skipped report: %+v", first)
	}
	if !strings.Contains(first.Error, ErrFetch.Error()) {
		t.Fatalf("expected fetch error in report, got %q", first.Error)
	}
	if want := []time.Duration{time.Second, 2 * time.Second}; !reflect.DeepEqual(h.sleeps, want) {
		t.Fatalf("unexpected backoff: got %v want %v", h.sleeps, want)
	}

	// The article still mentions both, so both get scored from the second fetch.
	if summary.Reports[1].Outcome != OutcomeSucceeded || summary.SentimentsStored != 2 {
		t.Fatalf("unexpected second report: %+v", summary.Reports[1])
	}
}

func TestFetchDoesNotRetryPermanentErrors(t *testing.T) {
	t.Parallel()

	h := newHarness(swiggy())
	h.source = &fakeSource{search: func(context.Context, source.Query) ([]source.Article, error) {
		return nil, fmt.Errorf("search: %w", source.ErrNoKeys)
	}}

	_, attempts, err := h.service(32).fetch(context.Background(), "swiggy", source.Query{Text: `"Swiggy"`})
	if attempts != 1 {
		t.Fatalf("unexpected attempts: got %d want 1", attempts)
	}
	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) || !errors.Is(err, ErrFetch) || !errors.Is(err, source.ErrNoKeys) {
		t.Fatalf("unexpected error: %v", err)
	}

	h.source.search = func(context.Context, source.Query) ([]source.Article, error) {
		return nil, &source.StatusError{Provider: "fake", StatusCode: 400, Code: "parameterInvalid"}
	}
	if _, attempts, _ := h.service(32).fetch(context.Background(), "swiggy", source.Query{}); attempts != 1 {
		t.Fatalf("unexpected attempts for 400: got %d want 1", attempts)
	}
}

func TestRunUsesBackfillThenMaintenanceWindow(t *testing.T) {
	t.Parallel()

	h := newHarness(swiggy())
	h.source = &fakeSource{search: func(context.Context, source.Query) ([]source.Article, error) {
		return []source.Article{rivalryArticle(rivalryURL)}, nil
	}}

	first, err := h.service(32).Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected first run error: %v", err)
	}
	if first.Reports[0].Mode != fetchplan.ModeBackfill {
		t.Fatalf("unexpected first mode: %s", first.Reports[0].Mode)
	}

	h.now = fixedNow.Add(24 * time.Hour)
	second, err := h.service(32).Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected second run error: %v", err)
	}
	if second.Reports[0].Mode != fetchplan.ModeMaintenance {
		t.Fatalf("unexpected second mode: %s", second.Reports[0].Mode)
	}

	queries := h.source.queries
	if got := queries[0].Until.Sub(queries[0].Since); got != 30*24*time.Hour {
		t.Fatalf("unexpected backfill window: %v", got)
	}
	if got := queries[1].Until.Sub(queries[1].Since); got != 24*time.Hour {
		t.Fatalf("unexpected maintenance window: %v", got)
	}
	if second.Reports[0].AlreadyStored != 1 || len(h.db.commits) != 1 {
		t.Fatalf("expected stored article to be skipped: %+v commits=%v", second.Reports[0], h.db.commits)
	}
}

func TestRunRecordsFailedBatchAsPartial(t *testing.T) {
	t.Parallel()

	h := newHarness(swiggy(), zomato())
	h.model.failIf = func(batch []sentiment.Hypothesis) bool {
		for _, hyp := range batch {
			if strings.HasSuffix(hyp.Text, "for Zomato.") {
				return true
			}
		}
		return false
	}
	h.source = &fakeSource{search: func(context.Context, source.Query) ([]source.Article, error) {
		return []source.Article{rivalryArticle(rivalryURL)}, nil
	}}

	summary, err := h.service(3).Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected run error: %v", err)
	}
	if summary.FailedBatches != 1 || summary.FailedPairs != 1 || summary.Status != RunPartial {
		t.Fatalf("unexpected summary: batches=%d pairs=%d status=%s", summary.FailedBatches, summary.FailedPairs, summary.Status)
	}

	key, _ := dedup.CanonicalURL(rivalryURL)
	if _, ok := h.db.failures[key]["zomato"]; !ok {
		t.Fatalf("expected zomato failure recorded, got %v", h.db.failures)
	}
	if h.db.rows[key]["swiggy"] != sentiment.Positive {
		t.Fatalf("expected swiggy row despite failed batch, got %v", h.db.rows[key])
	}
}

func TestRunCountsPersistenceConflicts(t *testing.T) {
	t.Parallel()

	h := newHarness(swiggy())
	key, _ := dedup.CanonicalURL(rivalryURL)
	h.db.commitErr[key] = fmt.Errorf("%w: startup deleted", ErrPersistenceConflict)
	h.source = &fakeSource{search: func(context.Context, source.Query) ([]source.Article, error) {
		return []source.Article{rivalryArticle(rivalryURL), {Title: "Swiggy IPO", URL: "https://news.example.com/ipo"}}, nil
	}}

	summary, err := h.service(32).Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected run error: %v", err)
	}
	report := summary.Reports[0]
	if report.Conflicts != 1 || report.Persisted != 1 || report.Outcome != OutcomeSucceeded {
		t.Fatalf("unexpected report: %+v", report)
	}
	if summary.Status != RunPartial || summary.ExitCode() != ExitPartial {
		t.Fatalf("unexpected status: got %s (exit %d)", summary.Status, summary.ExitCode())
	}
}

func TestRunStopsOnCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := newHarness(swiggy(), zomato())
	h.source = &fakeSource{search: func(ctx context.Context, _ source.Query) ([]source.Article, error) {
		cancel()
		return nil, ctx.Err()
	}}

	summary, err := h.service(32).Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("unexpected error: got %v want context.Canceled", err)
	}
	if summary.Cancelled != 2 || len(h.source.queries) != 1 {
		t.Fatalf("unexpected summary: cancelled=%d queries=%d", summary.Cancelled, len(h.source.queries))
	}
	if len(h.db.commits) != 0 {
		t.Fatalf("expected no commits, got %v", h.db.commits)
	}
}

func TestRunWalksStateMachine(t *testing.T) {
	t.Parallel()

	h := newHarness(swiggy())
	h.source = &fakeSource{search: func(context.Context, source.Query) ([]source.Article, error) {
		return nil, nil
	}}

	if _, err := h.service(32).Run(context.Background()); err != nil {
		t.Fatalf("unexpected run error: %v", err)
	}

	got := make([]State, 0, len(h.trace))
	for _, tr := range h.trace {
		got = append(got, tr.To)
	}
	want := []State{StatePlanning, StateFetching, StateMatching, StateScoring, StatePersisting, StateIdle}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected trace: got %v want %v", got, want)
	}
}

func TestMachineRejectsSkippedStates(t *testing.T) {
	t.Parallel()

	m := newMachine("x", nil)
	if err := m.to(StateScoring); err == nil {
		t.Fatalf("expected idle -> scoring to be rejected")
	}
	if err := m.to(StatePlanning); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m.reset()
	if m.state != StateIdle {
		t.Fatalf("unexpected state after reset: %s", m.state)
	}
}

func TestRescoreClearsRecoveredFailures(t *testing.T) {
	t.Parallel()

	h := newHarness(swiggy(), zomato())
	h.source = &fakeSource{search: func(context.Context, source.Query) ([]source.Article, error) { return nil, nil }}
	url := "https://news.example.com/a"
	h.db.articles[url] = persist.Article{URL: url, Title: "Swiggy and Zomato"}
	h.db.failures[url] = map[string]string{"swiggy": "timeout", "zomato": "timeout"}
	h.db.pending = []db.PendingFailure{
		{ArticleID: "a1", ArticleURL: url, Title: "Swiggy and Zomato", Content: "Quarterly results.", StartupID: "swiggy", StartupName: "Swiggy", Attempts: 1},
		{ArticleID: "a1", ArticleURL: url, Title: "Swiggy and Zomato", Content: "Quarterly results.", StartupID: "zomato", StartupName: "Zomato", Attempts: 1},
	}

	summary, err := h.service(32).Rescore(context.Background(), 100, 5)
	if err != nil {
		t.Fatalf("unexpected rescore error: %v", err)
	}
	if summary.Articles != 1 || summary.Recovered != 2 || summary.Status != RunCompleted {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if len(h.db.failures[url]) != 0 {
		t.Fatalf("expected failures cleared, got %v", h.db.failures[url])
	}
	if premise := h.model.batches[0][0].Premise; premise != "Swiggy and Zomato. Quarterly results." {
		t.Fatalf("unexpected premise: %q", premise)
	}
}

func TestPlanListsWindowAndQueryPerStartup(t *testing.T) {
	t.Parallel()

	h := newHarness(swiggy(), zomato())
	h.db.rows["https://news.example.com/old"] = map[string]sentiment.Label{"zomato": sentiment.Neutral}

	planned, err := h.service(32).Plan(context.Background())
	if err != nil {
		t.Fatalf("unexpected plan error: %v", err)
	}
	sort.Slice(planned, func(i, j int) bool { return planned[i].StartupID < planned[j].StartupID })

	if planned[0].Window.Mode != fetchplan.ModeBackfill || planned[1].Window.Mode != fetchplan.ModeMaintenance {
		t.Fatalf("unexpected modes: %s %s", planned[0].Window.Mode, planned[1].Window.Mode)
	}
	if planned[0].Query != `"Swiggy" OR "instamart"` {
		t.Fatalf("unexpected query: %q", planned[0].Query)
	}
}
