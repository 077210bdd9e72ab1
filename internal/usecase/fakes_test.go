package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"P3Recon/internal/domain"
)

type memoryRepo struct {
	mu         sync.Mutex
	candidates []domain.Candidate
	signals    map[int64][]domain.Signal
	scores     map[int64]domain.Score
	nextID     int64
	replaceErr error
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{signals: map[int64][]domain.Signal{}, scores: map[int64]domain.Score{}}
}

func (m *memoryRepo) ReplaceAll(ctx context.Context, candidates []domain.Candidate) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.replaceErr != nil {
		return 0, m.replaceErr
	}
	m.candidates = nil
	m.signals = map[int64][]domain.Signal{}
	m.scores = map[int64]domain.Score{}
	for _, c := range domain.Dedupe(candidates) {
		m.nextID++
		c.ID = m.nextID
		m.candidates = append(m.candidates, c)
	}
	return len(m.candidates), nil
}

func (m *memoryRepo) All(ctx context.Context) ([]domain.Candidate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Candidate(nil), m.candidates...), nil
}

func (m *memoryRepo) ByID(ctx context.Context, id int64) (domain.Candidate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.candidates {
		if c.ID == id {
			return c, nil
		}
	}
	return domain.Candidate{}, fmt.Errorf("candidate %d: %w", id, domain.ErrNotFound)
}

func (m *memoryRepo) Count(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.candidates), nil
}

func (m *memoryRepo) ReplaceSignalsAndScores(ctx context.Context, assessments []domain.Assessment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.signals = map[int64][]domain.Signal{}
	m.scores = map[int64]domain.Score{}
	for _, a := range assessments {
		m.signals[a.CandidateID] = a.Signals
		m.scores[a.CandidateID] = a.Score
	}
	return nil
}

func (m *memoryRepo) SignalsFor(ctx context.Context, id int64) ([]domain.Signal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.signals[id], nil
}

func (m *memoryRepo) ScoreFor(ctx context.Context, id int64) (domain.Score, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.scores[id]
	return s, ok, nil
}

// Query returns everything; the searcher must apply the exact filters itself.
func (m *memoryRepo) Query(ctx context.Context, filter domain.StoreFilter) ([]domain.ScoredCandidate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.ScoredCandidate, 0, len(m.candidates))
	for _, c := range m.candidates {
		out = append(out, domain.ScoredCandidate{Candidate: c, Score: m.scores[c.ID], Signals: m.signals[c.ID]})
	}
	return out, nil
}

type fakeDataset struct {
	ds      domain.Dataset
	loads   atomic.Int64
	release chan struct{}
	entered chan struct{}
}

func (f *fakeDataset) Load(ctx context.Context) domain.Dataset {
	f.loads.Add(1)
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.release != nil {
		<-f.release
	}
	return f.ds
}

type stubEnricher struct {
	name    string
	signals []domain.Signal
	err     error
}

func (s stubEnricher) Name() string { return s.name }

func (s stubEnricher) Collect(ctx context.Context, c domain.Candidate) ([]domain.Signal, error) {
	if s.err != nil {
		return nil, s.err
	}
	return append([]domain.Signal(nil), s.signals...), nil
}

var errSourceDown = errors.New("source down")

func kcCandidates() []domain.Candidate {
	return []domain.Candidate{
		{Name: "North Depot", Address: "100 Dock Rd", Town: "Kansas City", Lat: 39.10, Lon: -94.58, Acres: 30, BldgSqft: 200000, LandUse: "Heavy Industrial", Source: "test"},
		{Name: "Small Shop", Address: "8 Elm St", Town: "Kansas City", Lat: 39.11, Lon: -94.57, Acres: 1, BldgSqft: 4000, LandUse: "Commercial", Source: "test"},
		{Name: "Liberty Works", Address: "2 Mill Rd", Town: "Liberty", Lat: 39.24, Lon: -94.42, Acres: 12, BldgSqft: 60000, LandUse: "Warehouse", Source: "test"},
	}
}
