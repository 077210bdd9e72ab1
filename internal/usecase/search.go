package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"P3Recon/internal/domain"
	"P3Recon/internal/geo"
	"P3Recon/internal/ports"
)

// MinDistinctSignalTypes is the corroboration floor a search hit must reach.
const MinDistinctSignalTypes = 2

// Searcher answers geofenced, threshold-filtered ranked queries.
type Searcher struct {
	repository ports.CandidateRepository
	maxRadius  float64
	logger     *slog.Logger
}

// NewSearcher wires the store; maxRadius <= 0 leaves the radius unbounded.
func NewSearcher(repo ports.CandidateRepository, maxRadius float64, logger *slog.Logger) *Searcher {
	return &Searcher{repository: repo, maxRadius: maxRadius, logger: logger}
}

// Search returns candidates within the radius that pass every threshold and
// carry at least two distinct signal types, best score first.
func (s *Searcher) Search(ctx context.Context, q domain.SearchQuery) ([]domain.RankedResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if s.maxRadius > 0 && q.RadiusMiles > s.maxRadius {
		return nil, fmt.Errorf("%w: radius %.1f exceeds %.1f miles", domain.ErrInvalidQuery, q.RadiusMiles, s.maxRadius)
	}

	box := geo.Box(q.Lat, q.Lon, q.RadiusMiles)
	rows, err := s.repository.Query(ctx, domain.StoreFilter{
		Box:         &box,
		MinAcres:    q.MinAcres,
		MinBldgSqft: q.MinBldgSqft,
		MinScore:    q.MinScore,
	})
	if err != nil {
		return nil, fmt.Errorf("query store: %w", err)
	}

	results := make([]domain.RankedResult, 0, len(rows))
	for _, row := range rows {
		c := row.Candidate
		if !c.MeetsSize(q.MinAcres, q.MinBldgSqft) || row.Score.Total < q.MinScore {
			continue
		}
		distance := geo.DistanceMiles(q.Lat, q.Lon, c.Lat, c.Lon)
		if distance > q.RadiusMiles {
			continue
		}
		if domain.DistinctTypes(row.Signals) < MinDistinctSignalTypes {
			continue
		}
		results = append(results, domain.RankedResult{
			Candidate:     c,
			DistanceMiles: geo.Round2(distance),
			ScoreTotal:    row.Score.Total,
			Breakdown:     row.Score.Breakdown,
			Signals:       row.Signals,
			Corroborated:  domain.HasExternal(row.Signals),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].ScoreTotal > results[j].ScoreTotal
	})

	if s.logger != nil {
		s.logger.Debug("search served", "lat", q.Lat, "lon", q.Lon, "radius", q.RadiusMiles, "prefiltered", len(rows), "results", len(results))
	}
	return results, nil
}

// Candidate returns one candidate with its signals and score. A missing id
// yields domain.ErrNotFound; a candidate without a score has HasScore false.
func (s *Searcher) Candidate(ctx context.Context, id int64) (domain.CandidateDetail, error) {
	c, err := s.repository.ByID(ctx, id)
	if err != nil {
		return domain.CandidateDetail{}, err
	}

	signals, err := s.repository.SignalsFor(ctx, id)
	if err != nil {
		return domain.CandidateDetail{}, fmt.Errorf("load signals: %w", err)
	}

	score, ok, err := s.repository.ScoreFor(ctx, id)
	if err != nil {
		return domain.CandidateDetail{}, fmt.Errorf("load score: %w", err)
	}
	if !ok {
		score = domain.Score{CandidateID: id, Breakdown: domain.Breakdown{}}
	}

	return domain.CandidateDetail{Candidate: c, Signals: signals, Score: score, HasScore: ok}, nil
}
