package httpapi

import (
	"time"

	"P3Recon/internal/domain"
)

type errorResponse struct {
	Error string `json:"error"`
}

type refreshResponse struct {
	Started bool                 `json:"started"`
	Status  domain.RefreshStatus `json:"status"`
}

type queryJSON struct {
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	Radius      float64 `json:"radius"`
	MinAcres    float64 `json:"min_acres"`
	MinBldgSqft float64 `json:"min_bldg_sqft"`
	MinScore    int     `json:"min_score"`
}

type searchResponse struct {
	Query   queryJSON    `json:"query"`
	Results []resultJSON `json:"results"`
}

type candidateJSON struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Lat       float64   `json:"lat"`
	Lon       float64   `json:"lon"`
	Address   string    `json:"address"`
	Town      string    `json:"town"`
	County    string    `json:"county"`
	Acres     float64   `json:"acres"`
	BldgSqft  float64   `json:"bldg_sqft"`
	LandUse   string    `json:"land_use"`
	Owner     string    `json:"owner"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"created_at"`
}

type signalJSON struct {
	Type       string    `json:"signal_type"`
	Value      string    `json:"signal_value"`
	URL        string    `json:"url"`
	ObservedAt time.Time `json:"observed_at"`
}

type resultJSON struct {
	candidateJSON
	DistanceMiles float64          `json:"distance_miles"`
	ScoreTotal    int              `json:"score_total"`
	Breakdown     domain.Breakdown `json:"score_breakdown"`
	Signals       []signalJSON     `json:"signals"`
	Corroborated  bool             `json:"corroborated"`
}

type scoreJSON struct {
	Total     int              `json:"score_total"`
	Breakdown domain.Breakdown `json:"score_breakdown"`
	UpdatedAt *time.Time       `json:"updated_at,omitempty"`
}

type detailJSON struct {
	Candidate candidateJSON `json:"candidate"`
	Signals   []signalJSON  `json:"signals"`
	Score     scoreJSON     `json:"score"`
}

func toCandidateJSON(c domain.Candidate) candidateJSON {
	return candidateJSON{
		ID:        c.ID,
		Name:      c.Name,
		Lat:       c.Lat,
		Lon:       c.Lon,
		Address:   c.Address,
		Town:      c.Town,
		County:    c.County,
		Acres:     c.Acres,
		BldgSqft:  c.BldgSqft,
		LandUse:   c.LandUse,
		Owner:     c.Owner,
		Source:    c.Source,
		CreatedAt: c.CreatedAt,
	}
}

func toSignalsJSON(signals []domain.Signal) []signalJSON {
	out := make([]signalJSON, 0, len(signals))
	for _, s := range signals {
		out = append(out, signalJSON{Type: string(s.Type), Value: s.Value, URL: s.URL, ObservedAt: s.ObservedAt})
	}
	return out
}

func toResultJSON(r domain.RankedResult) resultJSON {
	return resultJSON{
		candidateJSON: toCandidateJSON(r.Candidate),
		DistanceMiles: r.DistanceMiles,
		ScoreTotal:    r.ScoreTotal,
		Breakdown:     r.Breakdown,
		Signals:       toSignalsJSON(r.Signals),
		Corroborated:  r.Corroborated,
	}
}

func toDetailJSON(d domain.CandidateDetail) detailJSON {
	score := scoreJSON{Total: d.Score.Total, Breakdown: d.Score.Breakdown}
	if score.Breakdown == nil {
		score.Breakdown = domain.Breakdown{}
	}
	if d.HasScore {
		updated := d.Score.UpdatedAt
		score.UpdatedAt = &updated
	}
	return detailJSON{
		Candidate: toCandidateJSON(d.Candidate),
		Signals:   toSignalsJSON(d.Signals),
		Score:     score,
	}
}

// SearchPayload renders a search the way GET /api/search returns it.
func SearchPayload(q domain.SearchQuery, results []domain.RankedResult) any {
	resp := searchResponse{
		Query:   queryJSON{Lat: q.Lat, Lon: q.Lon, Radius: q.RadiusMiles, MinAcres: q.MinAcres, MinBldgSqft: q.MinBldgSqft, MinScore: q.MinScore},
		Results: make([]resultJSON, 0, len(results)),
	}
	for _, res := range results {
		resp.Results = append(resp.Results, toResultJSON(res))
	}
	return resp
}

// DetailPayload renders a candidate the way GET /api/candidates/{id} returns it.
func DetailPayload(d domain.CandidateDetail) any {
	return toDetailJSON(d)
}
