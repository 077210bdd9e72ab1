package usecase

import (
	"context"
	"time"

	"P3Recon/internal/domain"
	"P3Recon/internal/ports"
)

// Scheduler wires the cron driver with the refresh use case.
type Scheduler struct {
	driver    ports.Scheduler
	refresher *Refresher
	params    domain.RefreshParams
}

// NewScheduler returns a helper to start/stop recurring refreshes.
func NewScheduler(driver ports.Scheduler, refresher *Refresher, params domain.RefreshParams) *Scheduler {
	return &Scheduler{driver: driver, refresher: refresher, params: params}
}

// Start registers the refresh trigger with the provided scheduler. Ticks that
// land while a refresh is running are dropped by the single-flight guard.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.refresher == nil {
		return nil
	}

	job := func(time.Time) {
		if _, _, err := s.refresher.Trigger(ctx, s.params); err != nil {
			s.refresher.logError("scheduled refresh rejected", "error", err)
		}
	}

	return s.driver.Start(ctx, job)
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}
