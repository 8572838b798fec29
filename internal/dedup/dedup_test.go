package dedup

import (
	"reflect"
	"testing"
)

type item struct {
	url string
}

func (i item) DedupURL() string { return i.url }

func TestCanonicalURLNormalizesTrackingAndCase(t *testing.T) {
	t.Parallel()

	got, ok := CanonicalURL("HTTPS://Example.COM:443/a//b/?utm_source=x&b=2&a=1&fbclid=abc#frag")
	if !ok {
		t.Fatalf("expected url to be accepted")
	}
	const want = "https://example.com/a/b?a=1&b=2"
	if got != want {
		t.Fatalf("unexpected canonical url: %q want %q", got, want)
	}
}

func TestCanonicalURLKeepsEscapes(t *testing.T) {
	t.Parallel()

	got, ok := CanonicalURL("https://example.com/news/a%2Fb?q=startup%20funding")
	if !ok {
		t.Fatalf("expected url to be accepted")
	}
	const want = "https://example.com/news/a%2Fb?q=startup+funding"
	if got != want {
		t.Fatalf("unexpected canonical url: %q want %q", got, want)
	}
}

func TestCanonicalURLRejectsUnusable(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"", "   ", "/relative/path", "mailto:someone@example.com", "ftp://example.com/file", "https://"} {
		if got, ok := CanonicalURL(raw); ok {
			t.Fatalf("expected %q to be rejected, got %q", raw, got)
		}
	}
}

func TestFilterDropsSeenAndInBatchDuplicates(t *testing.T) {
	t.Parallel()

	seen := NewSet("https://news.example.com/seen")
	candidates := []item{
		{url: "https://news.example.com/a"},
		{url: "https://news.example.com/seen/"},
		{url: "https://NEWS.example.com/a?utm_medium=email"},
		{url: ""},
		{url: "https://news.example.com/b"},
	}

	fresh, keys := Filter(candidates, seen)
	if len(fresh) != 2 || fresh[0].url != candidates[0].url || fresh[1].url != candidates[4].url {
		t.Fatalf("unexpected fresh candidates: %+v", fresh)
	}
	wantKeys := []string{"https://news.example.com/a", "https://news.example.com/b"}
	if !reflect.DeepEqual(keys, wantKeys) {
		t.Fatalf("unexpected keys: got %v want %v", keys, wantKeys)
	}
	if len(seen) != 1 {
		t.Fatalf("seen set must not be modified, got %v", seen)
	}
}

func TestFilterIsIdempotent(t *testing.T) {
	t.Parallel()

	candidates := []item{
		{url: "https://example.com/1"},
		{url: "https://example.com/2"},
		{url: "https://example.com/1#top"},
	}

	seen := NewSet()
	fresh, keys := Filter(candidates, seen)
	if len(fresh) != 2 {
		t.Fatalf("unexpected first pass size: %d", len(fresh))
	}
	seen.Add(keys...)

	again, againKeys := Filter(candidates, seen)
	if len(again) != 0 || len(againKeys) != 0 {
		t.Fatalf("second pass should yield nothing new, got %v", againKeys)
	}

	// Filtering an already fresh batch with an empty seen set is a no-op.
	refiltered, _ := Filter(fresh, NewSet())
	if !reflect.DeepEqual(refiltered, fresh) {
		t.Fatalf("filtering fresh output changed it: %v vs %v", refiltered, fresh)
	}
}
