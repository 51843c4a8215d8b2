// Package httpapi serves the backtest HTTP API: strategy discovery, run
// submission, and retrieval of stored runs.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"marlin/internal/backtest"
	"marlin/internal/report"
	"marlin/internal/store"
	"marlin/internal/strategy"
)

// Server serves the backtest HTTP API. Runs execute synchronously inside
// the request; the engine is stateless per run, so concurrent requests are
// safe.
type Server struct {
	engine   *backtest.Engine
	registry *strategy.Registry
	runs     store.RunStore
	log      *slog.Logger
}

// NewServer creates a Server around the given engine, strategy registry,
// and run store.
func NewServer(engine *backtest.Engine, registry *strategy.Registry, runs store.RunStore, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		engine:   engine,
		registry: registry,
		runs:     runs,
		log:      log.With("component", "httpapi"),
	}
}

// RegisterRoutes registers all API routes on the given mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/strategies", s.handleStrategies)
	mux.HandleFunc("POST /api/v1/backtests", s.handleRunBacktest)
	mux.HandleFunc("GET /api/v1/backtests", s.handleListBacktests)
	mux.HandleFunc("GET /api/v1/backtests/{id}", s.handleGetBacktest)
	mux.HandleFunc("GET /api/v1/backtests/{id}/trades.csv", s.handleTradesCSV)
}

// Handler returns an http.Handler with CORS middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return corsMiddleware(mux)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleStrategies(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string][]string{"strategies": s.registry.List()})
}

func (s *Server) handleRunBacktest(w http.ResponseWriter, r *http.Request) {
	var req BacktestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("decoding request: %v", err))
		return
	}

	cfg, err := req.ToConfig()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.engine.Run(r.Context(), cfg)
	if err != nil {
		// Config and data errors are the caller's problem; anything the
		// engine refuses to start is a 400 here.
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.runs.SaveRun(r.Context(), result); err != nil {
		s.log.Error("saving run", "id", result.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "saving run failed")
		return
	}

	s.log.Info("backtest complete", "id", result.ID, "strategy", cfg.Strategy, "trades", len(result.Trades))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(toBacktestResponse(result)); err != nil {
		s.log.Error("encoding JSON response", "error", err)
	}
}

func (s *Server) handleListBacktests(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.runs.ListRuns(r.Context())
	if err != nil {
		s.log.Error("listing runs", "error", err)
		writeError(w, http.StatusInternalServerError, "listing runs failed")
		return
	}

	out := make([]RunSummaryResponse, 0, len(summaries))
	for _, sum := range summaries {
		out = append(out, toRunSummaryResponse(sum))
	}
	writeJSON(w, map[string][]RunSummaryResponse{"backtests": out})
}

func (s *Server) handleGetBacktest(w http.ResponseWriter, r *http.Request) {
	result, ok := s.loadRun(w, r)
	if !ok {
		return
	}
	writeJSON(w, toBacktestResponse(result))
}

func (s *Server) handleTradesCSV(w http.ResponseWriter, r *http.Request) {
	result, ok := s.loadRun(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", result.ID+"-trades.csv"))
	if err := report.WriteTradesCSV(w, result.Trades); err != nil {
		s.log.Error("writing trades csv", "id", result.ID, "error", err)
	}
}

func (s *Server) loadRun(w http.ResponseWriter, r *http.Request) (*backtest.Result, bool) {
	id := r.PathValue("id")
	result, err := s.runs.GetRun(r.Context(), id)
	if errors.Is(err, store.ErrRunNotFound) {
		writeError(w, http.StatusNotFound, fmt.Sprintf("run %s not found", id))
		return nil, false
	}
	if err != nil {
		s.log.Error("reading run", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "reading run failed")
		return nil, false
	}
	return result, true
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
