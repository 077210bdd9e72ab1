package httpcache

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"P3Recon/internal/config"
	"P3Recon/internal/domain"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Set(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = t
}

func countingServer(t *testing.T, status int, body string) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server, &calls
}

func testConfig(dir string) config.CacheConfig {
	return config.CacheConfig{
		Dir:       dir,
		TTL:       24 * time.Hour,
		Timeout:   5 * time.Second,
		UserAgent: "P3Recon-test",
	}
}

func TestFetchServesFreshEntryAndRefetchesStale(t *testing.T) {
	t.Parallel()

	server, calls := countingServer(t, http.StatusOK, "payload")
	start := time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)
	clock := &fakeClock{now: start}

	cache, err := New(testConfig(t.TempDir()), WithClock(clock.Now))
	require.NoError(t, err)
	ctx := context.Background()

	body, err := cache.Fetch(ctx, server.URL+"/feed")
	require.NoError(t, err)
	assert.Equal(t, "payload", body)
	assert.EqualValues(t, 1, calls.Load())

	clock.Set(start.Add(24*time.Hour - time.Second))
	body, err = cache.Fetch(ctx, server.URL+"/feed")
	require.NoError(t, err)
	assert.Equal(t, "payload", body)
	assert.EqualValues(t, 1, calls.Load(), "entry inside TTL must not hit the network")

	clock.Set(start.Add(24*time.Hour + time.Second))
	_, err = cache.Fetch(ctx, server.URL+"/feed")
	require.NoError(t, err)
	assert.EqualValues(t, 2, calls.Load(), "stale entry must be refetched")

	stats := cache.Stats()
	assert.EqualValues(t, 1, stats.Hits)
	assert.EqualValues(t, 2, stats.Misses)
	assert.EqualValues(t, 2, stats.Fetched)
}

func TestFetchWritesOneFilePerURL(t *testing.T) {
	t.Parallel()

	server, _ := countingServer(t, http.StatusOK, "x")
	dir := filepath.Join(t.TempDir(), "nested", "cache")

	cache, err := New(testConfig(dir))
	require.NoError(t, err)

	_, err = cache.Fetch(context.Background(), server.URL+"/a")
	require.NoError(t, err)
	_, err = cache.Fetch(context.Background(), server.URL+"/b")
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, Key(server.URL+"/a")+".json"))
	assert.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestFetchNon2xxIsFetchErrorAndNotCached(t *testing.T) {
	t.Parallel()

	server, calls := countingServer(t, http.StatusServiceUnavailable, "down")
	cache, err := New(testConfig(t.TempDir()))
	require.NoError(t, err)

	_, err = cache.Fetch(context.Background(), server.URL)
	var fetchErr *domain.FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, http.StatusServiceUnavailable, fetchErr.StatusCode)

	_, err = cache.Fetch(context.Background(), server.URL)
	require.Error(t, err)
	assert.EqualValues(t, 2, calls.Load())
}

func TestFetchTransportFailure(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	cache, err := New(testConfig(t.TempDir()))
	require.NoError(t, err)

	_, err = cache.Fetch(context.Background(), url)
	var fetchErr *domain.FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Zero(t, fetchErr.StatusCode)
}

func TestFetchSpacesOutboundRequests(t *testing.T) {
	t.Parallel()

	server, _ := countingServer(t, http.StatusOK, "ok")
	cfg := testConfig(t.TempDir())
	cfg.MinInterval = 150 * time.Millisecond

	cache, err := New(cfg)
	require.NoError(t, err)
	ctx := context.Background()

	begin := time.Now()
	_, err = cache.Fetch(ctx, server.URL+"/1")
	require.NoError(t, err)
	_, err = cache.Fetch(ctx, server.URL+"/2")
	require.NoError(t, err)
	_, err = cache.Fetch(ctx, server.URL+"/3")
	require.NoError(t, err)

	assert.GreaterOrEqual(t, time.Since(begin), 280*time.Millisecond)
}

func TestFetchCacheHitSkipsRateLimit(t *testing.T) {
	t.Parallel()

	server, _ := countingServer(t, http.StatusOK, "ok")
	cfg := testConfig(t.TempDir())
	cfg.MinInterval = time.Hour

	cache, err := New(cfg)
	require.NoError(t, err)

	_, err = cache.Fetch(context.Background(), server.URL)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	body, err := cache.Fetch(ctx, server.URL)
	require.NoError(t, err)
	assert.Equal(t, "ok", body)
}

func TestFetchSendsUserAgent(t *testing.T) {
	t.Parallel()

	var got atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.Store(r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	cache, err := New(testConfig(t.TempDir()))
	require.NoError(t, err)

	_, err = cache.Fetch(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, "P3Recon-test", got.Load())
}

func TestKeyIsStable(t *testing.T) {
	t.Parallel()

	assert.Equal(t, Key("https://example.org/a"), Key("https://example.org/a"))
	assert.NotEqual(t, Key("https://example.org/a"), Key("https://example.org/b"))
	assert.Len(t, Key("x"), 64)
}
