package usecase

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"P3Recon/internal/domain"
	"P3Recon/internal/enrichment"
)

func newRegistry(enrichers ...enrichment.Enricher) *enrichment.Registry {
	reg := enrichment.NewRegistry(nil)
	for _, e := range enrichers {
		reg.Register(e)
	}
	return reg
}

func TestRunExecutesFullPipeline(t *testing.T) {
	t.Parallel()

	repo := newMemoryRepo()
	clock := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	var finished []domain.RefreshSummary

	r := NewRefresher(RefreshDeps{
		Dataset:    &fakeDataset{ds: domain.Dataset{Origin: domain.OriginExternal, Candidates: kcCandidates()}},
		Repository: repo,
		Enrichers: newRegistry(
			stubEnricher{name: "news", signals: []domain.Signal{{Type: domain.SignalNews, Value: "Depot sold", URL: "https://news.example/1"}}},
			stubEnricher{name: "warn", err: errSourceDown},
		),
		Clock:    func() time.Time { return clock },
		OnFinish: func(s domain.RefreshSummary) { finished = append(finished, s) },
	})

	summary, err := r.Run(context.Background(), domain.RefreshParams{MinAcres: 10})
	require.NoError(t, err)

	assert.NotEmpty(t, summary.RunID)
	assert.Equal(t, domain.OriginExternal, summary.Origin)
	assert.Equal(t, 3, summary.Loaded)
	assert.Equal(t, 2, summary.Candidates)
	assert.Equal(t, 6, summary.Signals)
	assert.Equal(t, 2, summary.Scores)
	assert.True(t, summary.Degraded)
	assert.Equal(t, map[string]int{"warn": 2}, summary.FailedSources)
	require.Len(t, finished, 1)

	all, err := repo.All(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 2)

	depot := all[0]
	score, ok, err := repo.ScoreFor(context.Background(), depot.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 52, score.Total)
	assert.Equal(t, domain.Breakdown{"parcel": 12, "news": 10, "warn": 0, "tax_sale": 0, "size": 30}, score.Breakdown)

	signals, err := repo.SignalsFor(context.Background(), depot.ID)
	require.NoError(t, err)
	require.Len(t, signals, 3)
	for _, s := range signals {
		assert.Equal(t, depot.ID, s.CandidateID)
		assert.True(t, clock.Equal(s.ObservedAt))
	}
	assert.Equal(t, domain.SignalParcelLandUse, signals[0].Type)
	assert.Equal(t, "Heavy Industrial", signals[0].Value)
	assert.Equal(t, "30.00 acres / 200000 sqft", signals[1].Value)

	status := r.Status()
	assert.Equal(t, domain.StateIdle, status.State)
	require.NotNil(t, status.LastRefresh)
	assert.Equal(t, 2, status.Candidates)
	assert.Equal(t, 6, status.Signals)
	assert.True(t, status.Degraded)
	assert.Empty(t, status.LastError)
}

func TestTriggerIsSingleFlight(t *testing.T) {
	t.Parallel()

	ds := &fakeDataset{
		ds:      domain.Dataset{Origin: domain.OriginFallback, Candidates: kcCandidates(), Reason: "offline"},
		release: make(chan struct{}),
		entered: make(chan struct{}, 1),
	}
	r := NewRefresher(RefreshDeps{Dataset: ds, Repository: newMemoryRepo()})

	status, started, err := r.Trigger(context.Background(), domain.RefreshParams{})
	require.NoError(t, err)
	require.True(t, started)
	assert.Equal(t, domain.StateRunning, status.State)
	<-ds.entered

	var wg sync.WaitGroup
	var mu sync.Mutex
	startedCount := 0
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok, _ := r.Trigger(context.Background(), domain.RefreshParams{}); ok {
				mu.Lock()
				startedCount++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Zero(t, startedCount)

	_, err = r.Run(context.Background(), domain.RefreshParams{})
	assert.True(t, errors.Is(err, domain.ErrRefreshInProgress))
	assert.Equal(t, domain.StateRunning, r.Status().State)

	close(ds.release)
	r.Wait()

	assert.EqualValues(t, 1, ds.loads.Load())
	final := r.Status()
	assert.Equal(t, domain.StateIdle, final.State)
	assert.Equal(t, domain.OriginFallback, final.Origin)
	assert.Contains(t, final.Message, "sample data")

	_, started, err = r.Trigger(context.Background(), domain.RefreshParams{})
	require.NoError(t, err)
	assert.True(t, started, "slot is released after completion")
	r.Wait()
}

func TestTriggerSurvivesCallerCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	ds := &fakeDataset{ds: domain.Dataset{Origin: domain.OriginExternal, Candidates: kcCandidates()}, release: make(chan struct{})}
	r := NewRefresher(RefreshDeps{Dataset: ds, Repository: newMemoryRepo()})

	_, started, err := r.Trigger(ctx, domain.RefreshParams{})
	require.NoError(t, err)
	require.True(t, started)
	cancel()
	close(ds.release)
	r.Wait()

	status := r.Status()
	assert.Empty(t, status.LastError)
	assert.Equal(t, 3, status.Candidates)
}

func TestRunFailureReturnsToIdle(t *testing.T) {
	t.Parallel()

	repo := newMemoryRepo()
	repo.replaceErr = errors.New("disk full")
	r := NewRefresher(RefreshDeps{
		Dataset:    &fakeDataset{ds: domain.Dataset{Origin: domain.OriginExternal, Candidates: kcCandidates()}},
		Repository: repo,
	})

	_, err := r.Run(context.Background(), domain.RefreshParams{})
	require.Error(t, err)

	status := r.Status()
	assert.Equal(t, domain.StateIdle, status.State)
	assert.Contains(t, status.LastError, "disk full")
	assert.Nil(t, status.LastRefresh)

	repo.mu.Lock()
	repo.replaceErr = nil
	repo.mu.Unlock()
	_, err = r.Run(context.Background(), domain.RefreshParams{})
	require.NoError(t, err)
	assert.Empty(t, r.Status().LastError)
}

func TestNonFiniteParamsNeverEmptyTheStore(t *testing.T) {
	t.Parallel()

	repo := newMemoryRepo()
	ds := &fakeDataset{ds: domain.Dataset{Origin: domain.OriginExternal, Candidates: kcCandidates()}}
	r := NewRefresher(RefreshDeps{Dataset: ds, Repository: repo})

	_, err := r.Run(context.Background(), domain.RefreshParams{})
	require.NoError(t, err)
	before, err := repo.Count(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, before)

	for _, params := range []domain.RefreshParams{
		{MinAcres: math.NaN()},
		{MinBldgSqft: math.Inf(1)},
		{MinAcres: -1},
	} {
		_, err := r.Run(context.Background(), params)
		assert.True(t, errors.Is(err, domain.ErrInvalidQuery), "%+v", params)

		_, started, err := r.Trigger(context.Background(), params)
		assert.True(t, errors.Is(err, domain.ErrInvalidQuery), "%+v", params)
		assert.False(t, started)
	}
	r.Wait()

	after, err := repo.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.EqualValues(t, 1, ds.loads.Load(), "rejected params never reach the dataset")
	assert.Equal(t, domain.StateIdle, r.Status().State)
}

func TestEnsureSeededOnlyWhenEmpty(t *testing.T) {
	t.Parallel()

	ds := &fakeDataset{ds: domain.Dataset{Origin: domain.OriginExternal, Candidates: kcCandidates()}}
	r := NewRefresher(RefreshDeps{Dataset: ds, Repository: newMemoryRepo()})

	seeded, err := r.EnsureSeeded(context.Background(), domain.RefreshParams{})
	require.NoError(t, err)
	assert.True(t, seeded)

	seeded, err = r.EnsureSeeded(context.Background(), domain.RefreshParams{})
	require.NoError(t, err)
	assert.False(t, seeded)
	assert.EqualValues(t, 1, ds.loads.Load())
}

func TestStatusSnapshotIsIndependent(t *testing.T) {
	t.Parallel()

	r := NewRefresher(RefreshDeps{
		Dataset:    &fakeDataset{ds: domain.Dataset{Origin: domain.OriginExternal, Candidates: kcCandidates()}},
		Repository: newMemoryRepo(),
		Enrichers:  newRegistry(stubEnricher{name: "warn", err: errSourceDown}),
	})
	_, err := r.Run(context.Background(), domain.RefreshParams{})
	require.NoError(t, err)

	snap := r.Status()
	snap.FailedSources["warn"] = 999
	assert.Equal(t, 3, r.Status().FailedSources["warn"])
}

type manualDriver struct {
	job     func(time.Time)
	stopped bool
}

func (m *manualDriver) Start(ctx context.Context, job func(time.Time)) error {
	m.job = job
	return nil
}

func (m *manualDriver) Stop(ctx context.Context) error {
	m.stopped = true
	return nil
}

func TestSchedulerTicksTriggerRefresh(t *testing.T) {
	t.Parallel()

	ds := &fakeDataset{ds: domain.Dataset{Origin: domain.OriginExternal, Candidates: kcCandidates()}}
	r := NewRefresher(RefreshDeps{Dataset: ds, Repository: newMemoryRepo()})
	driver := &manualDriver{}
	s := NewScheduler(driver, r, domain.RefreshParams{MinAcres: 10})

	require.NoError(t, s.Start(context.Background()))
	require.NotNil(t, driver.job)

	driver.job(time.Now())
	r.Wait()
	assert.EqualValues(t, 1, ds.loads.Load())
	assert.Equal(t, 2, r.Status().Candidates)

	require.NoError(t, s.Stop(context.Background()))
	assert.True(t, driver.stopped)
}
