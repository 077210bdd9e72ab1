package dataset

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"P3Recon/internal/config"
	"P3Recon/internal/domain"
	"P3Recon/internal/ports"
)

const externalSource = "dataset"

// Ingestor obtains the parcel CSV once, parses it and filters it down to
// permitted land uses. It falls back to built-in samples instead of failing.
type Ingestor struct {
	fetcher   ports.Fetcher
	url       string
	localPath string
	logger    *slog.Logger
}

var _ ports.DatasetSource = (*Ingestor)(nil)

// NewIngestor wires the cache-backed fetcher with dataset settings.
func NewIngestor(fetcher ports.Fetcher, cfg config.DatasetConfig, logger *slog.Logger) *Ingestor {
	return &Ingestor{
		fetcher:   fetcher,
		url:       cfg.URL,
		localPath: cfg.LocalPath,
		logger:    logger,
	}
}

// Load returns external candidates when any survive parsing and filtering,
// otherwise the sample set with the reason recorded.
func (i *Ingestor) Load(ctx context.Context) domain.Dataset {
	raw, err := i.ensureLocalCopy(ctx)
	if err != nil {
		return i.fallback(fmt.Sprintf("dataset unavailable: %v", err))
	}

	result, err := Parse(strings.NewReader(raw), externalSource)
	if err != nil {
		return i.fallback(fmt.Sprintf("dataset unreadable: %v", err))
	}

	i.debug("dataset parsed",
		"rows", result.Rows,
		"kept", len(result.Candidates),
		"filtered_land_use", result.FilteredLandUse,
		"missing_coordinates", result.MissingCoordinates,
		"malformed", len(result.Malformed),
	)
	for _, perr := range result.Malformed {
		i.debug("dataset row skipped", "error", perr)
	}

	if len(result.Candidates) == 0 {
		return i.fallback("dataset produced no usable candidates")
	}

	return domain.Dataset{Origin: domain.OriginExternal, Candidates: result.Candidates}
}

// ensureLocalCopy reads the local CSV, fetching it once when absent. An
// existing copy is never refreshed.
func (i *Ingestor) ensureLocalCopy(ctx context.Context) (string, error) {
	raw, err := os.ReadFile(i.localPath)
	if err == nil {
		return string(raw), nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("read local dataset: %w", err)
	}

	if i.url == "" {
		return "", errors.New("no local copy and no dataset url configured")
	}
	if i.fetcher == nil {
		return "", errors.New("no fetcher configured")
	}

	body, err := i.fetcher.Fetch(ctx, i.url)
	if err != nil {
		return "", err
	}

	if dir := filepath.Dir(i.localPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("create dataset dir: %w", err)
		}
	}
	if err := os.WriteFile(i.localPath, []byte(body), 0o644); err != nil {
		return "", fmt.Errorf("persist dataset: %w", err)
	}
	i.info("dataset downloaded", "url", i.url, "path", i.localPath, "bytes", len(body))

	return body, nil
}

func (i *Ingestor) fallback(reason string) domain.Dataset {
	i.warn("using sample candidates", "reason", reason)
	return domain.Dataset{
		Origin:     domain.OriginFallback,
		Candidates: SampleCandidates(),
		Reason:     reason,
	}
}

func (i *Ingestor) debug(msg string, args ...any) {
	if i.logger != nil {
		i.logger.Debug(msg, args...)
	}
}

func (i *Ingestor) info(msg string, args ...any) {
	if i.logger != nil {
		i.logger.Info(msg, args...)
	}
}

func (i *Ingestor) warn(msg string, args ...any) {
	if i.logger != nil {
		i.logger.Warn(msg, args...)
	}
}
