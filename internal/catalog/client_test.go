package catalog

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

const hobbitResponse = `{
	"numFound": 2,
	"docs": [
		{
			"title": "The Hobbit",
			"author_name": ["J. R. R. Tolkien"],
			"publisher": ["George Allen & Unwin", "Houghton Mifflin"],
			"subject": ["Fantasy", "Middle Earth", "Dragons", "Quests", "Adventure", "Wizards"],
			"first_publish_year": 1937
		},
		{
			"title": "The Hobbit Companion",
			"author_name": ["David Day"],
			"publisher": ["Pavilion"],
			"subject": ["Reference"],
			"first_publish_year": 1997
		}
	]
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := NewClient(Config{BaseURL: srv.URL, RateLimitPerSec: 1000})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(c.Close)
	return c
}

func TestLookupSelectsBestTitleMatch(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, hobbitResponse)
	})
	md, err := c.Lookup(context.Background(), "The Hobbit", "J. R. R. Tolkien")
	if err != nil {
		t.Fatal(err)
	}
	if md.Title != "The Hobbit" {
		t.Fatalf("expected exact title match preferred, got %q", md.Title)
	}
	if md.PublishedYear != 1937 {
		t.Fatalf("expected first publish year, got %d", md.PublishedYear)
	}
	if len(md.Authors) != 1 || md.Authors[0] != "J. R. R. Tolkien" {
		t.Fatalf("unexpected authors: %v", md.Authors)
	}
	if md.Publisher != "George Allen & Unwin" {
		t.Fatalf("expected first publisher, got %q", md.Publisher)
	}
	if len(md.Categories) != 5 {
		t.Fatalf("expected categories capped at 5, got %d", len(md.Categories))
	}
}

func TestLookupRoutesHostOnlyBaseURLToSearchEndpoint(t *testing.T) {
	// Serving docs only at the search path catches a client that requests
	// the site root when configured with a bare host URL.
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search.json" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, hobbitResponse)
	})
	md, err := c.Lookup(context.Background(), "The Hobbit", "J. R. R. Tolkien")
	if err != nil {
		t.Fatal(err)
	}
	if md.PublishedYear != 1937 {
		t.Fatalf("expected match via search endpoint, got %+v", md)
	}
}

func TestClosedClientAdmitsNoRequests(t *testing.T) {
	c, err := NewClient(Config{BaseURL: "http://example.test/search.json"})
	if err != nil {
		t.Fatal(err)
	}
	c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := c.Lookup(ctx, "The Hobbit", ""); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline after close, got %v", err)
	}
}

func TestNewClientKeepsExplicitPath(t *testing.T) {
	c, err := NewClient(Config{BaseURL: "http://example.test/custom/search"})
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	if c.cfg.BaseURL != "http://example.test/custom/search" {
		t.Fatalf("explicit path must be preserved, got %q", c.cfg.BaseURL)
	}
}

func TestLookupNotFoundOnEmptyDocs(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"numFound": 0, "docs": []}`)
	})
	_, err := c.Lookup(context.Background(), "The Hobbit", "")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if Transient(err) {
		t.Fatal("not-found must never be transient")
	}
}

func TestLookupNotFoundBelowThreshold(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"docs": [{"title": "Completely Unrelated Cookbook Volume Nine"}]}`)
	})
	_, err := c.Lookup(context.Background(), "Moby Dick", "")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for weak matches, got %v", err)
	}
}

func TestLookupServerErrorIsTransient(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	_, err := c.Lookup(context.Background(), "The Hobbit", "")
	if err == nil {
		t.Fatal("expected error")
	}
	if !Transient(err) {
		t.Fatalf("expected 5xx to classify transient, got %v", err)
	}
}

func TestLookupDeterministic(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, hobbitResponse)
	})
	a, err := c.Lookup(context.Background(), "The Hobbit", "J. R. R. Tolkien")
	if err != nil {
		t.Fatal(err)
	}
	b, err := c.Lookup(context.Background(), "The Hobbit", "J. R. R. Tolkien")
	if err != nil {
		t.Fatal(err)
	}
	if a.Title != b.Title || a.Similarity != b.Similarity || a.Strategy != b.Strategy {
		t.Fatalf("lookup not deterministic: %+v vs %+v", a, b)
	}
}

func TestLookupStopsEarlyOnStrongMatch(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		fmt.Fprint(w, hobbitResponse)
	})
	if _, err := c.Lookup(context.Background(), "The Hobbit", "J. R. R. Tolkien"); err != nil {
		t.Fatal(err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected early stop after strong match, got %d calls", calls.Load())
	}
}

func TestMatchRatio(t *testing.T) {
	cases := []struct {
		a, b string
		want float64
	}{
		{"the hobbit", "the hobbit", 1.0},
		{"abc", "xyz", 0.0},
		{"", "anything", 0.0},
	}
	for _, c := range cases {
		if got := matchRatio(c.a, c.b); math.Abs(got-c.want) > 1e-9 {
			t.Fatalf("matchRatio(%q, %q) = %f, want %f", c.a, c.b, got, c.want)
		}
	}
	near := matchRatio("the hobbit", "the hobbit: an unexpected journey")
	far := matchRatio("the hobbit", "war and peace")
	if near <= far {
		t.Fatalf("expected closer title to score higher: near=%f far=%f", near, far)
	}
}

func TestBuildStrategies(t *testing.T) {
	st := buildStrategies("The Lord of the Rings: The Return of the King", "J. R. R. Tolkien, Christopher Tolkien")
	if len(st) != 4 {
		t.Fatalf("expected 4 strategies, got %d: %+v", len(st), st)
	}
	if st[0].name != strategyTitleAuthor {
		t.Fatalf("expected title+author strategy first, got %s", st[0].name)
	}
	if st := buildStrategies("!!", ""); st != nil {
		t.Fatalf("expected no strategies for unusable title, got %+v", st)
	}
}
