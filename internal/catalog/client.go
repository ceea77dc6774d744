// Package catalog looks up book metadata in an OpenLibrary-compatible
// search endpoint. A lookup is keyed by title (optionally author); the best
// candidate is selected deterministically by title similarity, and "nothing
// acceptable found" is a non-error outcome distinct from transport failure.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"

	"github.com/joelkehle/review-refinery/internal/normalize"
)

const (
	DefaultBaseURL          = "https://openlibrary.org/search.json"
	searchPath              = "/search.json"
	DefaultRateLimitPerSec  = 10
	DefaultMatchThreshold   = 0.6
	defaultRequestTimeout   = 10 * time.Second
	searchResultLimit       = 20
	maxAuthors              = 3
	maxCategories           = 5
	authorMatchBonus        = 0.2
	authorSimilarityMinimum = 0.7
	earlyStopSimilarity     = 0.9
	responseFields          = "key,title,author_name,publisher,publish_date,subject,first_publish_year"
	strategyTitleAuthor     = "title_author"
	strategyTitle           = "title"
	strategyGeneral         = "general"
	strategyKeywords        = "keywords"
	minKeywordQueryLength   = 6
	keywordsFromSearchTitle = 3
)

// ErrNotFound marks the terminal, non-transient outcome of a lookup that
// returned no acceptable candidate. Callers must not retry it.
var ErrNotFound = errors.New("no matching catalog record")

type Config struct {
	BaseURL         string
	HTTPClient      *http.Client
	RateLimitPerSec int
	MatchThreshold  float64
}

type Client struct {
	cfg       Config
	ticker    *time.Ticker
	limiterMu sync.Mutex
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid catalog base URL: %w", err)
	}
	// A host-only base URL points at the site root, which does not serve
	// search results; route it to the search endpoint.
	if u.Path == "" || u.Path == "/" {
		u.Path = searchPath
		cfg.BaseURL = u.String()
	}
	if cfg.RateLimitPerSec <= 0 {
		cfg.RateLimitPerSec = DefaultRateLimitPerSec
	}
	if cfg.MatchThreshold <= 0 {
		cfg.MatchThreshold = DefaultMatchThreshold
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: defaultRequestTimeout}
	}
	interval := time.Second / time.Duration(cfg.RateLimitPerSec)
	return &Client{cfg: cfg, ticker: time.NewTicker(interval)}, nil
}

// Close releases the rate-limit ticker.
func (c *Client) Close() {
	c.ticker.Stop()
}

// Metadata is the subset of catalog fields the pipeline merges into a
// BookRecord. Empty fields were absent from the response and must not
// overwrite existing values.
type Metadata struct {
	Title         string
	Authors       []string
	Publisher     string
	Categories    []string
	PublishedYear int
	Similarity    float64
	Strategy      string
}

// apiError is a transport-level failure carrying the HTTP status (0 for
// network errors) so callers can classify it.
type apiError struct {
	status int
	err    error
}

func (e *apiError) Error() string {
	if e.status > 0 {
		return fmt.Sprintf("catalog request failed with status %d: %v", e.status, e.err)
	}
	return fmt.Sprintf("catalog request failed: %v", e.err)
}

func (e *apiError) Unwrap() error { return e.err }

// Transient reports whether err is worth retrying: server errors, rate
// limiting, timeouts and network failures. ErrNotFound is never transient.
func Transient(err error) bool {
	if err == nil || errors.Is(err, ErrNotFound) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	var ae *apiError
	if errors.As(err, &ae) {
		return ae.status == 0 || ae.status == http.StatusTooManyRequests || ae.status >= 500
	}
	return false
}

type strategy struct {
	name  string
	query string
}

func buildStrategies(title, author string) []strategy {
	searchTitle := normalize.SearchTitle(title)
	if searchTitle == "" {
		return nil
	}
	var out []strategy
	searchAuthor := searchAuthorTerm(author)
	if searchAuthor != "" {
		out = append(out, strategy{strategyTitleAuthor, fmt.Sprintf("title:%s author:%s", searchTitle, searchAuthor)})
	}
	out = append(out,
		strategy{strategyTitle, "title:" + searchTitle},
		strategy{strategyGeneral, searchTitle},
	)
	words := strings.Fields(searchTitle)
	if len(words) > keywordsFromSearchTitle {
		kw := strings.Join(words[:keywordsFromSearchTitle], " ")
		if len(kw) > minKeywordQueryLength {
			out = append(out, strategy{strategyKeywords, kw})
		}
	}
	return out
}

func searchAuthorTerm(author string) string {
	// Only the first author; multi-author queries confuse the search index.
	first := strings.SplitN(author, ",", 2)[0]
	norm, ok := normalize.Normalize(first)
	if !ok || len(norm) <= 2 {
		return ""
	}
	return norm
}

// Lookup fetches the best metadata candidate for title. Strategies are tried
// in order (title+author, exact title, general, keywords); within each
// response every candidate is scored by title similarity with an author
// bonus, and the best acceptable candidate wins. Selection is deterministic
// for a fixed response. Returns ErrNotFound when no candidate clears the
// match threshold.
func (c *Client) Lookup(ctx context.Context, title, author string) (Metadata, error) {
	strategies := buildStrategies(title, author)
	if len(strategies) == 0 {
		return Metadata{}, ErrNotFound
	}
	searchAuthor := searchAuthorTerm(author)

	best := Metadata{}
	var lastErr error
	sawResponse := false
	for _, st := range strategies {
		if err := c.waitRateLimit(ctx); err != nil {
			return Metadata{}, err
		}
		body, err := c.fetch(ctx, st.query)
		if err != nil {
			lastErr = err
			continue
		}
		sawResponse = true
		c.selectBest(&best, st.name, body, title, searchAuthor)
		if best.Similarity > earlyStopSimilarity {
			return best, nil
		}
	}
	if !sawResponse && lastErr != nil {
		return Metadata{}, lastErr
	}
	if best.Similarity < c.cfg.MatchThreshold || best.Title == "" {
		return Metadata{}, ErrNotFound
	}
	return best, nil
}

func (c *Client) waitRateLimit(ctx context.Context) error {
	c.limiterMu.Lock()
	defer c.limiterMu.Unlock()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.ticker.C:
		return nil
	}
}

func (c *Client) fetch(ctx context.Context, query string) (string, error) {
	u, _ := url.Parse(c.cfg.BaseURL)
	q := u.Query()
	q.Set("q", query)
	q.Set("limit", fmt.Sprint(searchResultLimit))
	q.Set("fields", responseFields)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", &apiError{err: err}
	}
	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return "", &apiError{err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return "", &apiError{status: resp.StatusCode, err: errors.New(http.StatusText(resp.StatusCode))}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &apiError{err: err}
	}
	return string(body), nil
}

// selectBest scans the docs array of one response and upgrades best in place
// when it finds a higher-similarity candidate above the current one.
func (c *Client) selectBest(best *Metadata, strategyName, body, title, searchAuthor string) {
	lowerTitle := strings.ToLower(title)
	gjson.Get(body, "docs").ForEach(func(_, doc gjson.Result) bool {
		candidateTitle := doc.Get("title").String()
		if candidateTitle == "" {
			return true
		}
		sim := matchRatio(lowerTitle, strings.ToLower(candidateTitle))
		if searchAuthor != "" {
			for _, a := range doc.Get("author_name").Array() {
				if matchRatio(searchAuthor, strings.ToLower(a.String())) > authorSimilarityMinimum {
					sim += authorMatchBonus
					break
				}
			}
		}
		if sim <= best.Similarity {
			return true
		}
		md := Metadata{Title: candidateTitle, Similarity: sim, Strategy: strategyName}
		for i, a := range doc.Get("author_name").Array() {
			if i == maxAuthors {
				break
			}
			md.Authors = append(md.Authors, a.String())
		}
		if pubs := doc.Get("publisher").Array(); len(pubs) > 0 {
			md.Publisher = pubs[0].String()
		}
		for i, s := range doc.Get("subject").Array() {
			if i == maxCategories {
				break
			}
			md.Categories = append(md.Categories, s.String())
		}
		if y := doc.Get("first_publish_year").Int(); y > 0 {
			md.PublishedYear = int(y)
		} else if dates := doc.Get("publish_date").Array(); len(dates) > 0 {
			md.PublishedYear = yearFrom(dates[0].String())
		}
		*best = md
		return best.Similarity <= earlyStopSimilarity
	})
}

func yearFrom(s string) int {
	for i := 0; i+4 <= len(s); i++ {
		if y := parseYear(s[i : i+4]); y > 0 {
			return y
		}
	}
	return 0
}

func parseYear(s string) int {
	y := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0
		}
		y = y*10 + int(r-'0')
	}
	if y < 1000 || y > 2999 {
		return 0
	}
	return y
}
