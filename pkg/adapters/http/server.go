// Package http exposes a read-only inspection API over a ports.Catalog and
// streams engine lifecycle events to subscribers.
package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/aretw0/weave/internal/logging"
	"github.com/aretw0/weave/pkg/domain"
	"github.com/aretw0/weave/pkg/ports"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server serves run, step and node records.
type Server struct {
	catalog  ports.Catalog
	streams  *StreamManager
	gatherer prometheus.Gatherer
	logger   *slog.Logger
	version  string
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// WithGatherer exposes the metrics of g on /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// WithStreams shares an existing stream manager, e.g. one already wired into an engine.
func WithStreams(sm *StreamManager) Option {
	return func(s *Server) {
		s.streams = sm
	}
}

// WithVersion sets the version reported by /healthz.
func WithVersion(v string) Option {
	return func(s *Server) {
		s.version = v
	}
}

// New creates a Server reading from catalog.
func New(catalog ports.Catalog, opts ...Option) *Server {
	s := &Server{
		catalog: catalog,
		streams: NewStreamManager(),
		logger:  logging.NewNop(),
		version: "dev",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Streams returns the event stream manager fed by Hooks.
func (s *Server) Streams() *StreamManager {
	return s.streams
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(enableCORS)

	r.Get("/healthz", s.health)
	r.Route("/runs", func(r chi.Router) {
		r.Get("/", s.listRuns)
		r.Get("/{runID}", s.getRun)
		r.Get("/{runID}/steps/{position}", s.getStep)
		r.Get("/{runID}/events", s.subscribeEvents)
	})
	r.Get("/nodes/{nodeID}", s.getNode)
	r.Get("/nodes/{nodeID}/lineage", s.getLineage)
	if s.gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// StepView is a step record with the nodes it consumed and produced.
type StepView struct {
	Step    domain.Step   `json:"step"`
	Inputs  []domain.Node `json:"inputs"`
	Outputs []domain.Node `json:"outputs"`
}

// LineageView is a node with its lineage edges in pipeline order.
type LineageView struct {
	Node  domain.Node   `json:"node"`
	Edges []domain.Edge `json:"edges"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": s.version})
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.catalog.ListRuns(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, runs)
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.catalog.LoadRun(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, run)
}

func (s *Server) getStep(w http.ResponseWriter, r *http.Request) {
	pos, err := strconv.Atoi(chi.URLParam(r, "position"))
	if err != nil || pos < 1 {
		http.Error(w, "position must be a positive integer", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	run, err := s.catalog.LoadRun(ctx, chi.URLParam(r, "runID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	step := run.Step(pos)
	if step == nil {
		http.Error(w, "step not found", http.StatusNotFound)
		return
	}

	view := StepView{Step: *step}
	if view.Inputs, err = s.catalog.StepInputs(ctx, *step); err != nil {
		s.writeError(w, r, err)
		return
	}
	if view.Outputs, err = s.catalog.StepOutputs(ctx, *step); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, view)
}

func (s *Server) getNode(w http.ResponseWriter, r *http.Request) {
	node, err := s.catalog.GetNode(r.Context(), chi.URLParam(r, "nodeID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, node)
}

func (s *Server) getLineage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	nodeID := chi.URLParam(r, "nodeID")
	node, err := s.catalog.GetNode(ctx, nodeID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	edges, err := s.catalog.Lineage(ctx, nodeID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, LineageView{Node: node, Edges: edges})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", "err", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, domain.ErrNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	s.logger.Error("request failed", "path", r.URL.Path, "err", err)
	http.Error(w, "internal error", http.StatusInternalServerError)
}
