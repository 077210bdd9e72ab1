package enricher

import (
	"fmt"
	"log/slog"

	"P3Recon/internal/config"
	"P3Recon/internal/domain"
	"P3Recon/internal/enrichment"
	"P3Recon/internal/ports"
)

// Build creates a registry holding one enricher per configured entry, in order.
func Build(cfgs []config.EnricherConfig, fetcher ports.Fetcher, logger *slog.Logger) (*enrichment.Registry, error) {
	reg := enrichment.NewRegistry(logger)
	for _, cfg := range cfgs {
		e, err := New(cfg, fetcher)
		if err != nil {
			return nil, err
		}
		reg.Register(e)
	}
	return reg, nil
}

// New builds a single enricher from its config entry.
func New(cfg config.EnricherConfig, fetcher ports.Fetcher) (enrichment.Enricher, error) {
	signalType := domain.SignalType(cfg.SignalType)
	if signalType == "" {
		signalType = domain.SignalType(cfg.Name)
	}

	switch cfg.Kind {
	case config.KindFeed:
		return NewFeedEnricher(cfg.Name, signalType, cfg.URL, cfg.Keywords, cfg.Limit, fetcher, WithQueryParams(cfg.Options)), nil
	case config.KindPage:
		return NewPageEnricher(cfg.Name, signalType, cfg.URL, fetcher), nil
	default:
		return nil, fmt.Errorf("enricher %s: unknown kind %q", cfg.Name, cfg.Kind)
	}
}
