package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"P3Recon/internal/domain"
	"P3Recon/internal/enrichment"
	"P3Recon/internal/ports"
	"P3Recon/internal/scoring"
)

// RefreshDeps wires all driven adapters into the refresh pipeline.
type RefreshDeps struct {
	Dataset    ports.DatasetSource
	Repository ports.CandidateRepository
	Enrichers  *enrichment.Registry
	Logger     *slog.Logger
	Clock      func() time.Time
	// OnFinish is called with every completed summary, after the status is updated.
	OnFinish func(domain.RefreshSummary)
}

// Refresher implements the ingest, enrich, score and persist workflow.
// At most one pass runs at a time.
type Refresher struct {
	dataset    ports.DatasetSource
	repository ports.CandidateRepository
	enrichers  *enrichment.Registry
	logger     *slog.Logger
	now        func() time.Time
	onFinish   func(domain.RefreshSummary)

	running atomic.Bool
	wg      sync.WaitGroup

	mu     sync.Mutex
	status domain.RefreshStatus
}

// NewRefresher constructs the orchestration component.
func NewRefresher(deps RefreshDeps) *Refresher {
	now := deps.Clock
	if now == nil {
		now = time.Now
	}
	enrichers := deps.Enrichers
	if enrichers == nil {
		enrichers = enrichment.NewRegistry(deps.Logger)
	}
	return &Refresher{
		dataset:    deps.Dataset,
		repository: deps.Repository,
		enrichers:  enrichers,
		logger:     deps.Logger,
		now:        now,
		onFinish:   deps.OnFinish,
		status:     domain.RefreshStatus{State: domain.StateIdle, Message: "no refresh yet"},
	}
}

// Status returns a snapshot safe to hand to other goroutines.
func (r *Refresher) Status() domain.RefreshStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status.Clone()
}

// Trigger starts a background refresh when idle. It never blocks on the pass
// itself; started is false when a refresh was already running. The pass is
// detached from ctx cancellation and runs to completion. Invalid params are
// rejected before any state changes.
func (r *Refresher) Trigger(ctx context.Context, params domain.RefreshParams) (domain.RefreshStatus, bool, error) {
	if err := params.Validate(); err != nil {
		return r.Status(), false, err
	}
	if !r.running.CompareAndSwap(false, true) {
		r.debug("refresh already running, trigger ignored")
		return r.Status(), false, nil
	}

	runID := r.begin()
	background := context.WithoutCancel(ctx)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if _, err := r.execute(background, runID, params); err != nil {
			r.logError("background refresh failed", "run_id", runID, "error", err)
		}
	}()

	return r.Status(), true, nil
}

// Run executes a refresh synchronously. It returns domain.ErrRefreshInProgress
// when another pass holds the slot and domain.ErrInvalidQuery for unusable params.
func (r *Refresher) Run(ctx context.Context, params domain.RefreshParams) (domain.RefreshSummary, error) {
	if err := params.Validate(); err != nil {
		return domain.RefreshSummary{}, err
	}
	if !r.running.CompareAndSwap(false, true) {
		return domain.RefreshSummary{}, domain.ErrRefreshInProgress
	}
	return r.execute(ctx, r.begin(), params)
}

// EnsureSeeded runs a synchronous refresh when the store holds no candidates.
// seeded reports whether a refresh ran.
func (r *Refresher) EnsureSeeded(ctx context.Context, params domain.RefreshParams) (bool, error) {
	count, err := r.repository.Count(ctx)
	if err != nil {
		return false, fmt.Errorf("count candidates: %w", err)
	}
	if count > 0 {
		r.debug("store already seeded", "candidates", count)
		return false, nil
	}

	r.info("store empty, seeding before serving")
	if _, err := r.Run(ctx, params); err != nil {
		if errors.Is(err, domain.ErrRefreshInProgress) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Wait blocks until a background refresh started by Trigger has finished.
func (r *Refresher) Wait() {
	r.wg.Wait()
}

func (r *Refresher) begin() string {
	runID := uuid.NewString()
	r.mu.Lock()
	r.status.State = domain.StateRunning
	r.status.RunID = runID
	r.status.Message = "refresh started"
	r.status.LastError = ""
	r.mu.Unlock()
	return runID
}

func (r *Refresher) setMessage(format string, args ...any) {
	r.mu.Lock()
	r.status.Message = fmt.Sprintf(format, args...)
	r.mu.Unlock()
}

// execute owns the running slot and always releases it.
func (r *Refresher) execute(ctx context.Context, runID string, params domain.RefreshParams) (domain.RefreshSummary, error) {
	startedAt := r.now()
	r.info("refresh started", "run_id", runID, "min_acres", params.MinAcres, "min_bldg_sqft", params.MinBldgSqft, "enrichers", r.enrichers.Len())

	summary, err := r.pipeline(ctx, runID, params)
	summary.RunID = runID
	summary.StartedAt = startedAt
	summary.FinishedAt = r.now()
	summary.RuntimeSeconds = summary.FinishedAt.Sub(startedAt).Seconds()

	r.finish(summary, err)
	r.running.Store(false)

	if err != nil {
		return summary, err
	}

	r.info("refresh finished",
		"run_id", runID,
		"origin", summary.Origin,
		"candidates", summary.Candidates,
		"signals", summary.Signals,
		"degraded", summary.Degraded,
		"runtime_seconds", summary.RuntimeSeconds,
	)
	if r.onFinish != nil {
		r.onFinish(summary)
	}
	return summary, nil
}

func (r *Refresher) pipeline(ctx context.Context, runID string, params domain.RefreshParams) (domain.RefreshSummary, error) {
	var summary domain.RefreshSummary

	if r.dataset == nil || r.repository == nil {
		return summary, errors.New("refresh is not configured")
	}

	r.setMessage("loading dataset")
	ds := r.dataset.Load(ctx)
	summary.Origin = ds.Origin
	summary.OriginReason = ds.Reason
	summary.Loaded = len(ds.Candidates)

	kept := make([]domain.Candidate, 0, len(ds.Candidates))
	for _, c := range ds.Candidates {
		if c.MeetsSize(params.MinAcres, params.MinBldgSqft) {
			kept = append(kept, c)
		}
	}
	r.debug("size filter applied", "run_id", runID, "loaded", len(ds.Candidates), "kept", len(kept))

	r.setMessage("storing %d candidates", len(kept))
	if _, err := r.repository.ReplaceAll(ctx, kept); err != nil {
		return summary, fmt.Errorf("replace candidates: %w", err)
	}

	stored, err := r.repository.All(ctx)
	if err != nil {
		return summary, fmt.Errorf("reload candidates: %w", err)
	}
	summary.Candidates = len(stored)

	failed := map[string]int{}
	assessments := make([]domain.Assessment, 0, len(stored))
	for i, c := range stored {
		r.setMessage("enriching %d/%d", i+1, len(stored))

		outcomes := r.enrichers.CollectAll(ctx, c)
		for _, outcome := range outcomes {
			if outcome.Err != nil {
				failed[outcome.Source]++
			}
		}
		signals := append(domain.ParcelSignals(c), enrichment.Signals(outcomes)...)

		observedAt := r.now()
		for j := range signals {
			signals[j].CandidateID = c.ID
			signals[j].ObservedAt = observedAt
		}

		result := scoring.Score(c, signals)
		assessments = append(assessments, domain.Assessment{
			CandidateID: c.ID,
			Signals:     signals,
			Score:       domain.NewScore(c.ID, result.Breakdown, observedAt),
		})
		summary.Signals += len(signals)
	}
	summary.Scores = len(assessments)

	if len(failed) > 0 {
		summary.Degraded = true
		summary.FailedSources = failed
		r.warn("signal sources degraded", "run_id", runID, "failed", failed)
	}

	r.setMessage("storing signals and scores")
	if err := r.repository.ReplaceSignalsAndScores(ctx, assessments); err != nil {
		return summary, fmt.Errorf("replace signals and scores: %w", err)
	}

	return summary, nil
}

func (r *Refresher) finish(summary domain.RefreshSummary, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.status.State = domain.StateIdle
	r.status.RuntimeSeconds = summary.RuntimeSeconds
	if err != nil {
		r.status.Message = "refresh failed"
		r.status.LastError = err.Error()
		return
	}

	finished := summary.FinishedAt
	r.status.LastRefresh = &finished
	r.status.Candidates = summary.Candidates
	r.status.Signals = summary.Signals
	r.status.Scores = summary.Scores
	r.status.Origin = summary.Origin
	r.status.Degraded = summary.Degraded
	r.status.FailedSources = summary.FailedSources
	r.status.LastError = ""
	r.status.Message = fmt.Sprintf("refreshed %d candidates", summary.Candidates)
	if summary.Origin == domain.OriginFallback {
		r.status.Message += " from sample data"
	}
}

func (r *Refresher) debug(msg string, args ...any) {
	if r.logger != nil {
		r.logger.Debug(msg, args...)
	}
}

func (r *Refresher) info(msg string, args ...any) {
	if r.logger != nil {
		r.logger.Info(msg, args...)
	}
}

func (r *Refresher) warn(msg string, args ...any) {
	if r.logger != nil {
		r.logger.Warn(msg, args...)
	}
}

func (r *Refresher) logError(msg string, args ...any) {
	if r.logger != nil {
		r.logger.Error(msg, args...)
	}
}
