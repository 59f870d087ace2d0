package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ledgerflow/twopc/pkg/auth"
	"github.com/ledgerflow/twopc/pkg/model"
)

// Server is the Coordinator's HTTP surface: the authenticated transfer
// endpoint, read-only transaction lookups, the websocket event feed, the
// admin GraphQL console, and the usual healthz/metrics pair.
type Server struct {
	cfg     *Config
	co      *Coordinator
	verify  *auth.Verifier
	router  *chi.Mux
	httpSrv *http.Server
	hub     *StreamHub
}

// NewServer wires the router the same way pkg/participant does: request
// id, real ip, panic recovery, request logging, bounded timeout.
func NewServer(cfg *Config, co *Coordinator, verify *auth.Verifier, hub *StreamHub) (*Server, error) {
	s := &Server{cfg: cfg, co: co, verify: verify, router: chi.NewRouter(), hub: hub}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Timeout(30 * time.Second))

	s.router.Get("/healthz", s.handleHealthz)
	s.router.Get("/metrics", s.handleMetrics)
	s.router.Get("/stream", hub.ServeHTTP)

	gqlHandler, err := newGraphQLHandler(co)
	if err != nil {
		return nil, fmt.Errorf("build graphql schema: %w", err)
	}
	s.router.Post("/graphql", gqlHandler.ServeHTTP)
	s.router.Get("/graphql/console", graphiQLPlayground())

	s.router.Group(func(r chi.Router) {
		r.Use(verify.Middleware)
		r.Post("/transfer", s.handleTransfer)
		r.Get("/transactions/{txn_id}", s.handleGetTransaction)
		r.Get("/transactions", s.handleListTransactions)
	})

	s.httpSrv = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s, nil
}

// Router exposes the underlying chi.Mux, primarily for tests.
func (s *Server) Router() *chi.Mux { return s.router }

// ListenAndServe blocks serving HTTP until the server is closed.
func (s *Server) ListenAndServe() error {
	return s.httpSrv.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown() error {
	return s.httpSrv.Shutdown(context.Background())
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	requests, commits, rollbacks, hits, latency := s.co.metrics.Snapshot()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	fmt.Fprintf(w, "transfer_requests_total %d\n", requests)
	fmt.Fprintf(w, "transfer_commits_total %d\n", commits)
	fmt.Fprintf(w, "transfer_rollbacks_total %d\n", rollbacks)
	fmt.Fprintf(w, "transfer_idempotent_hits_total %d\n", hits)
	fmt.Fprintf(w, "transfer_latency_ms_avg %.2f\n", latency)
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var req model.TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "invalid body"})
		return
	}

	resp, err := s.co.Transfer(r.Context(), req)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, resp)
	case errors.Is(err, model.ErrValidation):
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": err.Error()})
	case errors.Is(err, model.ErrPairBusy):
		writeJSON(w, http.StatusLocked, map[string]string{"detail": err.Error()})
	case errors.Is(err, model.ErrTransactionAborted):
		writeJSON(w, http.StatusConflict, map[string]string{"detail": err.Error()})
	case errors.Is(err, model.ErrDependency):
		writeJSON(w, http.StatusBadGateway, map[string]string{"detail": err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": err.Error()})
	}
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	txnID := chi.URLParam(r, "txn_id")
	rec, err := s.co.GetTransaction(r.Context(), txnID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"detail": "transaction not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	state := model.TxnState(r.URL.Query().Get("state"))
	if state == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "state query parameter is required"})
		return
	}
	recs, err := s.co.ListTransactions(r.Context(), state)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
