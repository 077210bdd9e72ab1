package enricher

import (
	"context"
	"crypto/sha256"
	"fmt"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"

	"P3Recon/internal/domain"
	"P3Recon/internal/enrichment"
	"P3Recon/internal/ports"
)

// PageEnricher scans one fixed listing page (e.g. WARN notices) for the
// candidate's town and emits a single signal on a match.
type PageEnricher struct {
	name       string
	signalType domain.SignalType
	pageURL    string
	fetcher    ports.Fetcher

	// The page is the same for every candidate in a pass, so only the most
	// recent body's text is kept.
	mu       sync.Mutex
	lastKey  [sha256.Size]byte
	lastText string
	hasLast  bool
}

var _ enrichment.Enricher = (*PageEnricher)(nil)

// NewPageEnricher wires a fetcher with the page to scan.
func NewPageEnricher(name string, signalType domain.SignalType, pageURL string, fetcher ports.Fetcher) *PageEnricher {
	return &PageEnricher{
		name:       name,
		signalType: signalType,
		pageURL:    pageURL,
		fetcher:    fetcher,
	}
}

// Name identifies the enricher inside the registry.
func (p *PageEnricher) Name() string {
	return p.name
}

// Collect reports the page when it mentions the candidate's town.
func (p *PageEnricher) Collect(ctx context.Context, c domain.Candidate) ([]domain.Signal, error) {
	town := strings.ToLower(strings.TrimSpace(c.Town))
	if town == "" {
		return nil, nil
	}

	body, err := p.fetcher.Fetch(ctx, p.pageURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p.name, err)
	}

	text, err := p.visibleText(body)
	if err != nil {
		return nil, err
	}

	if !strings.Contains(text, town) {
		return nil, nil
	}
	return []domain.Signal{{
		Type:  p.signalType,
		Value: fmt.Sprintf("%s mentioned in %s listing", c.Town, p.name),
		URL:   p.pageURL,
	}}, nil
}

// visibleText returns the lowercased page text, reparsing only when the body
// differs from the previous call.
func (p *PageEnricher) visibleText(body string) (string, error) {
	key := sha256.Sum256([]byte(body))

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.hasLast && p.lastKey == key {
		return p.lastText, nil
	}

	text, err := ExtractText(body)
	if err != nil {
		return "", &domain.ParseError{Source: p.name, Item: p.pageURL, Err: err}
	}
	text = strings.ToLower(text)
	p.lastKey, p.lastText, p.hasLast = key, text, true
	return text, nil
}

// ExtractText drops script, style and noscript content and collapses whitespace.
func ExtractText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("parse document: %w", err)
	}
	doc.Find("script, style, noscript").Remove()
	return strings.Join(strings.Fields(doc.Text()), " "), nil
}
