package domain

import "time"

// Score categories seeded on every breakdown.
const (
	CategoryParcel  = "parcel"
	CategoryNews    = "news"
	CategoryWARN    = "warn"
	CategoryTaxSale = "tax_sale"
	CategorySize    = "size"
)

// Breakdown maps a score category to its integer contribution.
type Breakdown map[string]int

// Sum adds up all contributions.
func (b Breakdown) Sum() int {
	total := 0
	for _, v := range b {
		total += v
	}
	return total
}

// Clone returns an independent copy.
func (b Breakdown) Clone() Breakdown {
	out := make(Breakdown, len(b))
	for k, v := range b {
		out[k] = v
	}
	return out
}

// ScoreResult is the scoring engine's output before it is attached to a candidate.
type ScoreResult struct {
	Total     int
	Breakdown Breakdown
}

// Score is the persisted scoring result for one candidate.
type Score struct {
	CandidateID int64
	Total       int
	Breakdown   Breakdown
	UpdatedAt   time.Time
}

// NewScore derives the total from the breakdown so the two never disagree.
func NewScore(candidateID int64, breakdown Breakdown, updatedAt time.Time) Score {
	b := breakdown.Clone()
	return Score{
		CandidateID: candidateID,
		Total:       b.Sum(),
		Breakdown:   b,
		UpdatedAt:   updatedAt,
	}
}

// Assessment bundles everything a refresh pass produced for one candidate.
type Assessment struct {
	CandidateID int64
	Signals     []Signal
	Score       Score
}
