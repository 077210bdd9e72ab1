package httpcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"P3Recon/internal/config"
	"P3Recon/internal/domain"
	"P3Recon/internal/ports"
)

const maxBodyBytes = 32 << 20

// Cache is a content-addressed, TTL-gated cache in front of outbound GETs.
// Misses are paced by a process-wide limiter so requests are spaced at least
// MinInterval apart.
type Cache struct {
	dir       string
	ttl       time.Duration
	userAgent string
	client    *http.Client
	limiter   *rate.Limiter
	now       func() time.Time
	logger    *slog.Logger

	hits    atomic.Int64
	misses  atomic.Int64
	fetched atomic.Int64
}

var _ ports.Fetcher = (*Cache)(nil)

// Option configures a Cache.
type Option func(*Cache)

// WithClock replaces time.Now for freshness checks and stored timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// WithHTTPClient swaps the outbound client; its timeout is left untouched.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Cache) {
		c.client = client
	}
}

// WithLogger attaches a logger for hit/miss tracing.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		c.logger = logger
	}
}

// Stats is a point-in-time view of cache counters.
type Stats struct {
	Hits    int64
	Misses  int64
	Fetched int64
}

type entry struct {
	URL       string    `json:"url"`
	FetchedAt time.Time `json:"fetched_at"`
	Body      string    `json:"body"`
}

// New creates the cache directory if needed and returns a ready cache.
func New(cfg config.CacheConfig, opts ...Option) (*Cache, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}

	limit := rate.Inf
	if cfg.MinInterval > 0 {
		limit = rate.Every(cfg.MinInterval)
	}

	c := &Cache{
		dir:       cfg.Dir,
		ttl:       cfg.TTL,
		userAgent: cfg.UserAgent,
		client:    &http.Client{Timeout: cfg.Timeout},
		limiter:   rate.NewLimiter(limit, 1),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Key returns the cache key for a URL.
func Key(rawURL string) string {
	sum := sha256.Sum256([]byte(rawURL))
	return hex.EncodeToString(sum[:])
}

// Fetch returns the body for rawURL, from disk while fresh, otherwise from the network.
func (c *Cache) Fetch(ctx context.Context, rawURL string) (string, error) {
	path := c.path(rawURL)

	if cached, ok := c.lookup(path); ok {
		c.hits.Add(1)
		c.debug("cache hit", "url", rawURL)
		return cached.Body, nil
	}
	c.misses.Add(1)

	if err := c.limiter.Wait(ctx); err != nil {
		return "", &domain.FetchError{URL: rawURL, Err: err}
	}

	body, err := c.download(ctx, rawURL)
	if err != nil {
		return "", err
	}
	c.fetched.Add(1)

	if err := c.store(path, entry{URL: rawURL, FetchedAt: c.now(), Body: body}); err != nil {
		c.warn("cache write failed", "url", rawURL, "error", err)
	}
	c.debug("cache miss fetched", "url", rawURL, "bytes", len(body))

	return body, nil
}

// Stats returns hit, miss and network fetch counters.
func (c *Cache) Stats() Stats {
	return Stats{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Fetched: c.fetched.Load(),
	}
}

func (c *Cache) path(rawURL string) string {
	return filepath.Join(c.dir, Key(rawURL)+".json")
}

func (c *Cache) lookup(path string) (entry, bool) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return entry{}, false
	}

	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		c.debug("cache entry unreadable", "path", path, "error", err)
		return entry{}, false
	}

	if c.now().Sub(e.FetchedAt) >= c.ttl {
		return entry{}, false
	}
	return e, true
}

func (c *Cache) download(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", &domain.FetchError{URL: rawURL, Err: fmt.Errorf("build request: %w", err)}
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", &domain.FetchError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &domain.FetchError{URL: rawURL, StatusCode: resp.StatusCode, Err: errors.New(resp.Status)}
	}

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", &domain.FetchError{URL: rawURL, Err: fmt.Errorf("read body: %w", err)}
	}
	return string(payload), nil
}

// store writes through a temp file so readers never see a partial entry.
func (c *Cache) store(path string, e entry) error {
	raw, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}

	tmp, err := os.CreateTemp(c.dir, ".entry-*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close temp: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("rename entry: %w", err)
	}
	return nil
}

func (c *Cache) debug(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}

func (c *Cache) warn(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Warn(msg, args...)
	}
}
