package ports

import (
	"context"
	"time"

	"P3Recon/internal/domain"
)

// Fetcher retrieves the body of a URL, possibly from a local cache.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// DatasetSource produces the raw candidate set for a refresh. It never fails:
// unavailable external data degrades to a fallback dataset.
type DatasetSource interface {
	Load(ctx context.Context) domain.Dataset
}

// CandidateRepository persists candidates together with their signals and scores.
type CandidateRepository interface {
	ReplaceAll(ctx context.Context, candidates []domain.Candidate) (int, error)
	All(ctx context.Context) ([]domain.Candidate, error)
	ByID(ctx context.Context, id int64) (domain.Candidate, error)
	Count(ctx context.Context) (int, error)
	ReplaceSignalsAndScores(ctx context.Context, assessments []domain.Assessment) error
	SignalsFor(ctx context.Context, id int64) ([]domain.Signal, error)
	ScoreFor(ctx context.Context, id int64) (domain.Score, bool, error)
	Query(ctx context.Context, filter domain.StoreFilter) ([]domain.ScoredCandidate, error)
}

// Scheduler controls when recurring refreshes execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
