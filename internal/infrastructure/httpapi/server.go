package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"P3Recon/internal/domain"
)

// Refresher is the part of the refresh use case the API drives.
type Refresher interface {
	Trigger(ctx context.Context, params domain.RefreshParams) (domain.RefreshStatus, bool, error)
	Status() domain.RefreshStatus
}

// Searcher answers ranked searches and single-candidate lookups.
type Searcher interface {
	Search(ctx context.Context, q domain.SearchQuery) ([]domain.RankedResult, error)
	Candidate(ctx context.Context, id int64) (domain.CandidateDetail, error)
}

// Settings carries listener and request defaults.
type Settings struct {
	Addr               string
	DefaultRadiusMiles float64
	DefaultParams      domain.RefreshParams
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
}

// Server exposes refresh, status, search and candidate lookup as JSON over HTTP.
type Server struct {
	settings  Settings
	refresher Refresher
	searcher  Searcher
	logger    *slog.Logger

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
}

// NewServer wires the use cases behind the HTTP routes.
func NewServer(settings Settings, refresher Refresher, searcher Searcher, logger *slog.Logger) *Server {
	if settings.DefaultRadiusMiles <= 0 {
		settings.DefaultRadiusMiles = 10
	}
	if settings.ReadTimeout <= 0 {
		settings.ReadTimeout = 15 * time.Second
	}
	if settings.WriteTimeout <= 0 {
		settings.WriteTimeout = 30 * time.Second
	}
	return &Server{settings: settings, refresher: refresher, searcher: searcher, logger: logger}
}

// Handler returns the route table; useful for tests and embedding.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/refresh", s.handleRefresh)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/search", s.handleSearch)
	mux.HandleFunc("GET /api/candidates/{id}", s.handleCandidate)
	return mux
}

// Start binds the listener and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return errors.New("httpapi: server already started")
	}

	listener, err := net.Listen("tcp", s.settings.Addr)
	if err != nil {
		return fmt.Errorf("httpapi: listen %s: %w", s.settings.Addr, err)
	}

	server := &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.settings.ReadTimeout,
		WriteTimeout: s.settings.WriteTimeout,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}
	s.listener = listener
	s.server = server

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logError("serve failed", "error", err)
		}
	}()
	s.info("listening", "addr", listener.Addr().String())
	return nil
}

// Addr returns the bound address once started.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server == nil {
		return nil
	}
	err := s.server.Shutdown(ctx)
	s.server = nil
	s.listener = nil
	return err
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	params := s.settings.DefaultParams
	var err error
	if params.MinAcres, err = floatParam(r, "min_acres", params.MinAcres); err != nil {
		s.writeError(w, err)
		return
	}
	if params.MinBldgSqft, err = floatParam(r, "min_bldg_sqft", params.MinBldgSqft); err != nil {
		s.writeError(w, err)
		return
	}

	status, started, err := s.refresher.Trigger(r.Context(), params)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, refreshResponse{Started: started, Status: status})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.refresher.Status())
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q, err := s.parseSearch(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	results, err := s.searcher.Search(r.Context(), q)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, SearchPayload(q, results))
}

func (s *Server) handleCandidate(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		s.writeError(w, fmt.Errorf("%w: candidate id must be a positive integer", domain.ErrInvalidQuery))
		return
	}

	detail, err := s.searcher.Candidate(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, DetailPayload(detail))
}

func (s *Server) parseSearch(r *http.Request) (domain.SearchQuery, error) {
	var (
		q   domain.SearchQuery
		err error
	)
	if q.Lat, err = requiredFloat(r, "lat"); err != nil {
		return q, err
	}
	if q.Lon, err = requiredFloat(r, "lon"); err != nil {
		return q, err
	}
	if q.RadiusMiles, err = floatParam(r, "radius", s.settings.DefaultRadiusMiles); err != nil {
		return q, err
	}
	if q.MinAcres, err = floatParam(r, "min_acres", 0); err != nil {
		return q, err
	}
	if q.MinBldgSqft, err = floatParam(r, "min_bldg_sqft", 0); err != nil {
		return q, err
	}
	if raw := r.URL.Query().Get("min_score"); raw != "" {
		if q.MinScore, err = strconv.Atoi(raw); err != nil {
			return q, fmt.Errorf("%w: min_score must be an integer", domain.ErrInvalidQuery)
		}
	}
	return q, nil
}

func requiredFloat(r *http.Request, name string) (float64, error) {
	if r.URL.Query().Get(name) == "" {
		return 0, fmt.Errorf("%w: %s is required", domain.ErrInvalidQuery, name)
	}
	return floatParam(r, name, 0)
}

func floatParam(r *http.Request, name string, fallback float64) (float64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || !domain.Finite(v) {
		return 0, fmt.Errorf("%w: %s must be a finite number", domain.ErrInvalidQuery, name)
	}
	return v, nil
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrInvalidQuery):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	default:
		s.logError("request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (s *Server) info(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Info(msg, args...)
	}
}

func (s *Server) logError(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Error(msg, args...)
	}
}
