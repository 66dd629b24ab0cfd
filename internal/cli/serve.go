package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/telariq/loomgraph/pkg/config"
	"github.com/telariq/loomgraph/pkg/delta"
	"github.com/telariq/loomgraph/pkg/graph"
	"github.com/telariq/loomgraph/pkg/observability"
	"github.com/telariq/loomgraph/pkg/store"
)

// shutdownTimeout bounds graceful server shutdown.
const shutdownTimeout = 5 * time.Second

// serveCommand creates the serve command.
func (c *CLI) serveCommand() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the dev HTTP server with a live reconciliation store",
		Long: `Serve exposes the engine over HTTP for development. Extraction batches
posted to /v1/extractions are resolved and merged into an in-memory store,
and the current graph, layout, and renderer projection are readable at any
time. Prometheus metrics are exported at /metrics.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Serve.Addr = addr
			}
			registerMetrics()

			srv := newServer(cfg, c.Logger)
			return srv.run(cmd.Context(), cfg.Serve.Addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")

	return cmd
}

// =============================================================================
// Server
// =============================================================================

// server bundles the reconciliation store with its delta builder.
//
// The builder reuses internal buffers across calls, so batch ingestion is
// serialized with applyMu. Reads go straight to the store, which has its own
// locking.
type server struct {
	logger  *log.Logger
	store   *store.Store
	builder *delta.Builder
	applyMu sync.Mutex
}

// newServer wires the store and builder from the loaded configuration.
func newServer(cfg config.Config, logger *log.Logger) *server {
	st := store.New(store.Options{
		Engine:            cfg.NewEngine(),
		Policy:            mergePolicy(cfg),
		HighlightDuration: time.Duration(cfg.Store.HighlightMillis) * time.Millisecond,
		Logger:            logger,
	})
	return &server{
		logger:  logger,
		store:   st,
		builder: delta.NewWithThreshold(cfg.Resolver.FuzzyThreshold),
	}
}

// run serves until ctx is cancelled, then shuts down gracefully.
func (s *server) run(ctx context.Context, addr string) error {
	httpSrv := &http.Server{
		Addr:    addr,
		Handler: s.routes(),
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

// routes builds the router.
func (s *server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/extractions", s.handleExtractions)
		r.Get("/graph", s.handleGraph)
		r.Get("/layout", s.handleLayout)
		r.Get("/projection", s.handleProjection)
		r.Post("/reorganize", s.handleReorganize)
		r.Post("/reset", s.handleReset)
	})

	return r
}

// requestLogger logs one line per request at debug level.
func (s *server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start).Round(time.Microsecond))
	})
}

// =============================================================================
// Handlers
// =============================================================================

// extractionResponse is the body returned after an ingested batch.
type extractionResponse struct {
	Version       int              `json:"version"`
	Committed     bool             `json:"committed"`
	Incremental   bool             `json:"incremental"`
	AddedEntities int              `json:"addedEntities"`
	AddedRels     int              `json:"addedRelations"`
	Warnings      []warningPayload `json:"warnings,omitempty"`
}

// warningPayload is the wire form of a dropped-record or merge warning.
type warningPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (s *server) handleExtractions(w http.ResponseWriter, r *http.Request) {
	var batch graph.ExtractionResult
	if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("parse batch: %w", err))
		return
	}

	s.applyMu.Lock()
	buildStart := time.Now()
	built := s.builder.Build(batch, s.store.Snapshot())
	observability.Engine().OnDeltaBuilt(r.Context(),
		len(built.Delta.AddedEntities), len(built.Delta.AddedRelations),
		len(built.Warnings), time.Since(buildStart))
	applied, err := s.store.ApplyDelta(built.Delta)
	s.applyMu.Unlock()
	if err != nil {
		writeError(w, http.StatusConflict, err)
		return
	}

	resp := extractionResponse{
		Version:       applied.Version,
		Committed:     applied.Committed,
		Incremental:   applied.Incremental,
		AddedEntities: len(built.Delta.AddedEntities),
		AddedRels:     len(built.Delta.AddedRelations),
	}
	for _, bw := range built.Warnings {
		resp.Warnings = append(resp.Warnings, warningPayload{Code: string(bw.Code), Message: bw.Message})
	}
	for _, mw := range applied.MergeWarnings {
		resp.Warnings = append(resp.Warnings, warningPayload{Code: string(mw.Code), Message: mw.Message})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *server) handleGraph(w http.ResponseWriter, r *http.Request) {
	data, err := graph.MarshalSnapshot(s.store.Snapshot())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (s *server) handleLayout(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"version":   s.store.Version(),
		"positions": s.store.Positions(),
	})
}

func (s *server) handleProjection(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Projection())
}

func (s *server) handleReorganize(w http.ResponseWriter, r *http.Request) {
	warnings := s.store.Reorganize()
	resp := map[string]any{"version": s.store.Version()}
	if len(warnings) > 0 {
		payload := make([]warningPayload, 0, len(warnings))
		for _, lw := range warnings {
			payload = append(payload, warningPayload{Code: string(lw.Code), Message: lw.Message})
		}
		resp["warnings"] = payload
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.store.Reset()
	writeJSON(w, http.StatusOK, map[string]any{"version": 0})
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// Response Helpers
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
