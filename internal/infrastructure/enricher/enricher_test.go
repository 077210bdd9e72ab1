package enricher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"P3Recon/internal/config"
	"P3Recon/internal/domain"
	"P3Recon/internal/infrastructure/httpcache"
)

const rssFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>search</title>
<item><title>Depot to be redeveloped</title><link>https://news.example/1</link></item>
<item><title>  </title><link>https://news.example/blank</link></item>
<item><title>Council approves facility plan</title><link>https://news.example/2</link></item>
<item><title>Third story</title><link>https://news.example/3</link></item>
<item><title>Fourth story</title><link>https://news.example/4</link></item>
</channel></rss>`

const warnPage = `<html><head><style>.raytown{}</style><script>var city = "Liberty";</script></head>
<body><h1>WARN notices</h1>
<table><tr><td>Acme Corp</td><td>KANSAS   CITY</td></tr></table>
<noscript>Grandview</noscript></body></html>`

func newCache(t *testing.T) *httpcache.Cache {
	t.Helper()
	cache, err := httpcache.New(config.CacheConfig{
		Dir:       t.TempDir(),
		TTL:       time.Hour,
		Timeout:   5 * time.Second,
		UserAgent: "test",
	})
	require.NoError(t, err)
	return cache
}

func TestBuildQueryQuotesPhrases(t *testing.T) {
	t.Parallel()

	q := BuildQuery(domain.Candidate{Name: "North Depot", Town: "Kansas City"}, []string{"tax sale", "foreclosure", " "})
	assert.Equal(t, `North Depot Kansas City "tax sale" foreclosure`, q)
}

func TestFeedEnricherCollectsUpToLimit(t *testing.T) {
	t.Parallel()

	var gotQuery atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery.Store(r.URL.Query().Get("q"))
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(rssFeed))
	}))
	t.Cleanup(srv.Close)

	e := NewFeedEnricher("news", domain.SignalNews, srv.URL+"/rss?q={query}", []string{"redevelopment", "facility"}, 3, newCache(t))
	signals, err := e.Collect(context.Background(), domain.Candidate{Name: "North Depot", Town: "Kansas City"})
	require.NoError(t, err)

	require.Len(t, signals, 3)
	assert.Equal(t, "Depot to be redeveloped", signals[0].Value)
	assert.Equal(t, "https://news.example/1", signals[0].URL)
	assert.Equal(t, "Council approves facility plan", signals[1].Value)
	for _, s := range signals {
		assert.Equal(t, domain.SignalNews, s.Type)
		assert.Zero(t, s.CandidateID)
	}
	assert.Equal(t, "North Depot Kansas City redevelopment facility", gotQuery.Load())
}

func TestFeedEnricherURLIsEscaped(t *testing.T) {
	t.Parallel()

	e := NewFeedEnricher("foreclosure", domain.SignalTaxSale, "https://feed.example/search?q={query}", []string{"tax sale"}, 2, nil)
	raw := e.URLFor(domain.Candidate{Name: "A&B Yard", Town: "Liberty"})

	parsed, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, `A&B Yard Liberty "tax sale"`, parsed.Query().Get("q"))
}

func TestFeedEnricherAppendsQueryParams(t *testing.T) {
	t.Parallel()

	e := NewFeedEnricher("news", domain.SignalNews, "https://feed.example/search?q={query}&hl=fr", nil, 3, nil,
		WithQueryParams(map[string]string{"hl": "en-US", "ceid": "US:en"}))
	parsed, err := url.Parse(e.URLFor(domain.Candidate{Name: "Depot", Town: "Liberty"}))
	require.NoError(t, err)

	q := parsed.Query()
	assert.Equal(t, "Depot Liberty", q.Get("q"))
	assert.Equal(t, "en-US", q.Get("hl"))
	assert.Equal(t, "US:en", q.Get("ceid"))
	assert.Equal(t, "feed.example", parsed.Host)
}

func TestFeedEnricherReportsFailures(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/garbage" {
			_, _ = w.Write([]byte("not a feed"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)
	cache := newCache(t)

	_, err := NewFeedEnricher("news", domain.SignalNews, srv.URL+"/down?q={query}", nil, 3, cache).
		Collect(context.Background(), domain.Candidate{Name: "X", Town: "Y"})
	var fetchErr *domain.FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, http.StatusServiceUnavailable, fetchErr.StatusCode)

	_, err = NewFeedEnricher("news", domain.SignalNews, srv.URL+"/garbage?q={query}", nil, 3, cache).
		Collect(context.Background(), domain.Candidate{Name: "X", Town: "Y"})
	var parseErr *domain.ParseError
	require.True(t, errors.As(err, &parseErr))
}

type sequenceFetcher struct {
	bodies []string
	calls  int
}

func (s *sequenceFetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	body := s.bodies[s.calls%len(s.bodies)]
	s.calls++
	return body, nil
}

func TestPageEnricherKeepsOnlyLatestPageText(t *testing.T) {
	t.Parallel()

	fetcher := &sequenceFetcher{bodies: []string{
		"<html><body>Plant closing in Raytown</body></html>",
		"<html><body>Layoffs announced in Liberty</body></html>",
	}}
	e := NewPageEnricher("warn", domain.SignalWARN, "https://warn.example/list", fetcher)

	signals, err := e.Collect(context.Background(), domain.Candidate{Name: "Hub", Town: "Raytown"})
	require.NoError(t, err)
	require.Len(t, signals, 1)
	assert.Contains(t, e.lastText, "raytown")

	signals, err = e.Collect(context.Background(), domain.Candidate{Name: "Hub", Town: "Raytown"})
	require.NoError(t, err)
	assert.Empty(t, signals, "a changed page is reparsed")
	assert.Contains(t, e.lastText, "liberty")
	assert.NotContains(t, e.lastText, "raytown")
}

func TestExtractTextDropsInvisibleContent(t *testing.T) {
	t.Parallel()

	text, err := ExtractText(warnPage)
	require.NoError(t, err)
	assert.Contains(t, text, "Acme Corp KANSAS CITY")
	assert.NotContains(t, text, "Liberty")
	assert.NotContains(t, text, "Grandview")
	assert.NotContains(t, text, "raytown")
}

func TestPageEnricherMatchesTownCaseInsensitively(t *testing.T) {
	t.Parallel()

	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(warnPage))
	}))
	t.Cleanup(srv.Close)

	e := NewPageEnricher("warn", domain.SignalWARN, srv.URL+"/warn", newCache(t))

	signals, err := e.Collect(context.Background(), domain.Candidate{Name: "Depot", Town: "Kansas City"})
	require.NoError(t, err)
	require.Len(t, signals, 1)
	assert.Equal(t, domain.SignalWARN, signals[0].Type)
	assert.Equal(t, srv.URL+"/warn", signals[0].URL)

	signals, err = e.Collect(context.Background(), domain.Candidate{Name: "Yard", Town: "Liberty"})
	require.NoError(t, err)
	assert.Empty(t, signals, "script text is not visible")

	signals, err = e.Collect(context.Background(), domain.Candidate{Name: "Lot"})
	require.NoError(t, err)
	assert.Empty(t, signals)

	assert.EqualValues(t, 1, hits.Load(), "page is fetched once and served from cache")
	assert.Len(t, e.texts, 1)
}

func TestBuildFromConfig(t *testing.T) {
	t.Parallel()

	reg, err := Build(config.Default().Enrichers, newCache(t), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"news", "warn", "foreclosure"}, reg.Names())

	foreclosure, err := reg.Resolve("foreclosure")
	require.NoError(t, err)
	feed, ok := foreclosure.(*FeedEnricher)
	require.True(t, ok)
	assert.Equal(t, domain.SignalTaxSale, feed.signalType)
	assert.Equal(t, 2, feed.limit)

	parsed, err := url.Parse(feed.URLFor(domain.Candidate{Name: "Depot", Town: "Liberty"}))
	require.NoError(t, err)
	assert.Equal(t, "US", parsed.Query().Get("gl"), "config options become feed query params")

	_, err = Build([]config.EnricherConfig{{Name: "odd", Kind: "carrier-pigeon"}}, nil, nil)
	assert.Error(t, err)
}
