package domain

import (
	"fmt"
	"time"
)

// RefreshState enumerates the orchestrator's only two states.
type RefreshState string

const (
	StateIdle    RefreshState = "idle"
	StateRunning RefreshState = "running"
)

// RefreshParams are the caller-supplied size thresholds applied before persisting.
type RefreshParams struct {
	MinAcres    float64 `json:"min_acres"`
	MinBldgSqft float64 `json:"min_bldg_sqft"`
}

// Validate rejects thresholds that no candidate could ever meet. A NaN
// threshold would filter out every row and empty the store.
func (p RefreshParams) Validate() error {
	if !Finite(p.MinAcres) || !Finite(p.MinBldgSqft) {
		return fmt.Errorf("%w: size thresholds must be finite numbers", ErrInvalidQuery)
	}
	if p.MinAcres < 0 || p.MinBldgSqft < 0 {
		return fmt.Errorf("%w: size thresholds must not be negative", ErrInvalidQuery)
	}
	return nil
}

// RefreshSummary describes one completed pipeline pass.
type RefreshSummary struct {
	RunID          string         `json:"run_id"`
	StartedAt      time.Time      `json:"started_at"`
	FinishedAt     time.Time      `json:"finished_at"`
	RuntimeSeconds float64        `json:"runtime_seconds"`
	Origin         DatasetOrigin  `json:"dataset_origin"`
	OriginReason   string         `json:"dataset_origin_reason,omitempty"`
	Loaded         int            `json:"loaded"`
	Candidates     int            `json:"candidates"`
	Signals        int            `json:"signals"`
	Scores         int            `json:"scores"`
	Degraded       bool           `json:"degraded"`
	FailedSources  map[string]int `json:"failed_sources,omitempty"`
}

// RefreshStatus is the process-wide progress snapshot handed to callers.
type RefreshStatus struct {
	State          RefreshState   `json:"state"`
	RunID          string         `json:"run_id,omitempty"`
	LastRefresh    *time.Time     `json:"last_refresh,omitempty"`
	RuntimeSeconds float64        `json:"runtime_seconds"`
	Candidates     int            `json:"candidates"`
	Signals        int            `json:"signals"`
	Scores         int            `json:"scores"`
	Message        string         `json:"message"`
	Origin         DatasetOrigin  `json:"dataset_origin,omitempty"`
	Degraded       bool           `json:"degraded"`
	FailedSources  map[string]int `json:"failed_sources,omitempty"`
	LastError      string         `json:"last_error,omitempty"`
}

// Clone copies the status including its map and pointer fields.
func (s RefreshStatus) Clone() RefreshStatus {
	out := s
	if s.LastRefresh != nil {
		t := *s.LastRefresh
		out.LastRefresh = &t
	}
	if s.FailedSources != nil {
		out.FailedSources = make(map[string]int, len(s.FailedSources))
		for k, v := range s.FailedSources {
			out.FailedSources[k] = v
		}
	}
	return out
}
