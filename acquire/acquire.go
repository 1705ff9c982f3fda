package acquire

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/html"
)

const (
	DefaultLimit   = 3
	wordHrefPrefix = "/?word="
)

// Source returns the words observed since the previous call, in order.
type Source interface {
	Fetch(ctx context.Context) ([]string, error)
}

// HTTPSource scrapes word links (<a href="/?word=...">) from a page.
type HTTPSource struct {
	URL    string
	Limit  int
	Client *http.Client
}

func NewHTTPSource(rawURL string, limit int) *HTTPSource {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &HTTPSource{
		URL:    rawURL,
		Limit:  limit,
		Client: &http.Client{},
	}
}

func (s *HTTPSource) Fetch(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("GET %s: status %d", s.URL, resp.StatusCode)
	}
	return ExtractWords(resp.Body, s.Limit)
}

// ExtractWords tokenizes an HTML document and returns up to limit distinct,
// lower-cased words taken from word links.
func ExtractWords(r io.Reader, limit int) ([]string, error) {
	seen := make(map[string]bool)
	var words []string

	z := html.NewTokenizer(r)
	for {
		switch z.Next() {
		case html.ErrorToken:
			if z.Err() == io.EOF {
				return words, nil
			}
			return words, z.Err()

		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			if tok.Data != "a" {
				continue
			}
			for _, attr := range tok.Attr {
				if attr.Key != "href" || !strings.HasPrefix(attr.Val, wordHrefPrefix) {
					continue
				}
				raw := strings.TrimPrefix(attr.Val, wordHrefPrefix)
				if w, err := url.QueryUnescape(raw); err == nil {
					raw = w
				}
				word := strings.ToLower(strings.TrimSpace(raw))
				if word == "" || seen[word] {
					continue
				}
				seen[word] = true
				words = append(words, word)
				if limit > 0 && len(words) == limit {
					return words, nil
				}
			}
		}
	}
}

// MockSource generates word-1, word-2, ... Limit words per call.
type MockSource struct {
	mu     sync.Mutex
	Prefix string
	Limit  int
	next   int
}

func NewMockSource(limit int) *MockSource {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &MockSource{Prefix: "word", Limit: limit}
}

func (m *MockSource) Fetch(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	words := make([]string, m.Limit)
	for i := range words {
		m.next++
		words[i] = fmt.Sprintf("%s-%d", m.Prefix, m.next)
	}
	return words, nil
}

// StaticSource replays fixed batches, then returns nothing.
type StaticSource struct {
	mu      sync.Mutex
	batches [][]string
}

func NewStaticSource(batches ...[]string) *StaticSource {
	return &StaticSource{batches: batches}
}

func (s *StaticSource) Fetch(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.batches) == 0 {
		return nil, nil
	}
	b := s.batches[0]
	s.batches = s.batches[1:]
	return append([]string(nil), b...), nil
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) ([]string, error)

func (f SourceFunc) Fetch(ctx context.Context) ([]string, error) {
	return f(ctx)
}

// FallbackWords builds the deterministic placeholder batch simw<next+1>...
func FallbackWords(nextID, limit int) []string {
	if limit <= 0 {
		limit = DefaultLimit
	}
	words := make([]string, limit)
	for i := range words {
		words[i] = fmt.Sprintf("simw%d", nextID+i+1)
	}
	return words
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
