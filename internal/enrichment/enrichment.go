package enrichment

import (
	"context"
	"fmt"
	"log/slog"

	"P3Recon/internal/domain"
)

// Enricher captures a single signal source (news feed, WARN listing, etc.).
// Returned signals carry Type, Value and URL only.
type Enricher interface {
	Name() string
	Collect(ctx context.Context, c domain.Candidate) ([]domain.Signal, error)
}

// Outcome is the result of one enricher for one candidate.
type Outcome struct {
	Source  string
	Signals []domain.Signal
	Err     error
}

// Registry keeps enrichers by name in registration order.
type Registry struct {
	order     []string
	enrichers map[string]Enricher
	logger    *slog.Logger
}

// NewRegistry builds an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{enrichers: map[string]Enricher{}, logger: logger}
}

// Register adds or replaces an enricher. A replacement keeps its original slot.
func (r *Registry) Register(e Enricher) {
	if r.enrichers == nil {
		r.enrichers = map[string]Enricher{}
	}
	name := e.Name()
	if _, exists := r.enrichers[name]; !exists {
		r.order = append(r.order, name)
	}
	r.enrichers[name] = e
}

// Resolve returns an enricher by name or an error if it is absent.
func (r *Registry) Resolve(name string) (Enricher, error) {
	if e, ok := r.enrichers[name]; ok {
		return e, nil
	}
	return nil, fmt.Errorf("enricher %s is not registered", name)
}

// Names lists registered enrichers in the order they run.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Len returns the number of registered enrichers.
func (r *Registry) Len() int {
	return len(r.order)
}

// CollectAll runs every enricher against the candidate in registration order.
// A failing enricher contributes an Outcome with Err set and no signals.
func (r *Registry) CollectAll(ctx context.Context, c domain.Candidate) []Outcome {
	outcomes := make([]Outcome, 0, len(r.order))
	for _, name := range r.order {
		signals, err := r.enrichers[name].Collect(ctx, c)
		if err != nil {
			r.debug("enricher failed", "enricher", name, "candidate", c.Name, "error", err)
			outcomes = append(outcomes, Outcome{Source: name, Err: err})
			continue
		}
		outcomes = append(outcomes, Outcome{Source: name, Signals: signals})
	}
	return outcomes
}

// Signals flattens successful outcomes in order.
func Signals(outcomes []Outcome) []domain.Signal {
	var out []domain.Signal
	for _, o := range outcomes {
		if o.Err == nil {
			out = append(out, o.Signals...)
		}
	}
	return out
}

func (r *Registry) debug(msg string, args ...any) {
	if r.logger != nil {
		r.logger.Debug(msg, args...)
	}
}
