package enricher

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/mmcdole/gofeed"

	"P3Recon/internal/domain"
	"P3Recon/internal/enrichment"
	"P3Recon/internal/ports"
)

const queryPlaceholder = "{query}"

// FeedEnricher queries a search feed (RSS/Atom) for the candidate and turns
// the top items into signals.
type FeedEnricher struct {
	name       string
	signalType domain.SignalType
	template   string
	keywords   []string
	limit      int
	params     map[string]string
	fetcher    ports.Fetcher
}

// FeedOption customises a FeedEnricher.
type FeedOption func(*FeedEnricher)

// WithQueryParams appends fixed query parameters to every rendered feed URL.
// Parameters already present in the template are overwritten.
func WithQueryParams(params map[string]string) FeedOption {
	return func(f *FeedEnricher) {
		if len(params) == 0 {
			return
		}
		f.params = make(map[string]string, len(params))
		for k, v := range params {
			f.params[k] = v
		}
	}
}

var _ enrichment.Enricher = (*FeedEnricher)(nil)

// NewFeedEnricher wires a fetcher with a URL template containing {query}.
func NewFeedEnricher(name string, signalType domain.SignalType, template string, keywords []string, limit int, fetcher ports.Fetcher, opts ...FeedOption) *FeedEnricher {
	if limit <= 0 {
		limit = 3
	}
	f := &FeedEnricher{
		name:       name,
		signalType: signalType,
		template:   template,
		keywords:   keywords,
		limit:      limit,
		fetcher:    fetcher,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Name identifies the enricher inside the registry.
func (f *FeedEnricher) Name() string {
	return f.name
}

// Collect fetches the feed for the candidate and returns up to limit signals.
func (f *FeedEnricher) Collect(ctx context.Context, c domain.Candidate) ([]domain.Signal, error) {
	feedURL := f.URLFor(c)

	body, err := f.fetcher.Fetch(ctx, feedURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f.name, err)
	}

	feed, err := gofeed.NewParser().ParseString(body)
	if err != nil {
		return nil, &domain.ParseError{Source: f.name, Item: feedURL, Err: err}
	}

	signals := make([]domain.Signal, 0, f.limit)
	for _, item := range feed.Items {
		if len(signals) == f.limit {
			break
		}
		title := strings.TrimSpace(item.Title)
		if title == "" {
			continue
		}
		signals = append(signals, domain.Signal{
			Type:  f.signalType,
			Value: title,
			URL:   strings.TrimSpace(item.Link),
		})
	}
	return signals, nil
}

// URLFor renders the feed URL for a candidate.
func (f *FeedEnricher) URLFor(c domain.Candidate) string {
	rendered := strings.ReplaceAll(f.template, queryPlaceholder, url.QueryEscape(BuildQuery(c, f.keywords)))
	if len(f.params) == 0 {
		return rendered
	}

	u, err := url.Parse(rendered)
	if err != nil {
		return rendered
	}
	q := u.Query()
	for k, v := range f.params {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// BuildQuery joins the candidate name and town with the keywords. Multi-word
// keywords are quoted so the search treats them as phrases.
func BuildQuery(c domain.Candidate, keywords []string) string {
	parts := make([]string, 0, 2+len(keywords))
	if name := strings.TrimSpace(c.Name); name != "" {
		parts = append(parts, name)
	}
	if town := strings.TrimSpace(c.Town); town != "" {
		parts = append(parts, town)
	}
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		if strings.Contains(kw, " ") {
			kw = `"` + kw + `"`
		}
		parts = append(parts, kw)
	}
	return strings.Join(parts, " ")
}
