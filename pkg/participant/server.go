package participant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ledgerflow/twopc/pkg/model"
)

// Server is the Participant's HTTP surface: /prepare, /commit, /rollback,
// /balance, /healthz, /metrics.
type Server struct {
	cfg     *Config
	svc     *Service
	router  *chi.Mux
	httpSrv *http.Server
	start   time.Time
}

// NewServer wires the chi router and middleware stack the same way every
// HTTP-facing service in this codebase does: request id, real ip, panic
// recovery, request logging, then a bounded timeout.
func NewServer(cfg *Config, svc *Service) *Server {
	s := &Server{cfg: cfg, svc: svc, router: chi.NewRouter(), start: time.Now()}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Timeout(10 * time.Second))

	s.router.Get("/healthz", s.handleHealthz)
	s.router.Get("/metrics", s.handleMetrics)
	s.router.Get("/balance", s.handleBalance)
	s.router.Post("/prepare", s.handlePrepare)
	s.router.Post("/commit", s.handleCommit)
	s.router.Post("/rollback", s.handleRollback)

	s.httpSrv = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
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
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "account": s.svc.Account()})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	prepares, commits, rollbacks := s.svc.Metrics().Snapshot()
	bal := s.svc.Balance()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	fmt.Fprintf(w, "prepares_total %d\n", prepares)
	fmt.Fprintf(w, "commits_total %d\n", commits)
	fmt.Fprintf(w, "rollbacks_total %d\n", rollbacks)
	fmt.Fprintf(w, "balance %d\n", bal.Balance)
	fmt.Fprintf(w, "holds %d\n", len(bal.Holds))
	fmt.Fprintf(w, "pendings %d\n", len(bal.Pendings))
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Balance())
}

func (s *Server) handlePrepare(w http.ResponseWriter, r *http.Request) {
	var req model.PrepareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "invalid body"})
		return
	}
	if !req.Direction.Valid() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "direction invalid"})
		return
	}

	err := s.svc.Prepare(req.TransactionID, req.Amount, req.Direction, req.CrashAfterPrepare)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]bool{"prepared": true})
	case errors.Is(err, ErrSimulatedCrash):
		// The hold/pending is already durably flushed. Exit abnormally
		// before acknowledging, simulating a crash between write and reply.
		os.Exit(1)
	case errors.Is(err, model.ErrInsufficientFunds):
		writeJSON(w, http.StatusConflict, map[string]string{"detail": "insufficient funds"})
	case errors.Is(err, model.ErrValidation), errors.Is(err, model.ErrInvalidDirection):
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": err.Error()})
	}
}

func (s *Server) handleCommit(w http.ResponseWriter, r *http.Request) {
	var req model.TxnIDRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "invalid body"})
		return
	}
	if err := s.svc.Commit(req.TransactionID); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"committed": true})
}

func (s *Server) handleRollback(w http.ResponseWriter, r *http.Request) {
	var req model.TxnIDRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "invalid body"})
		return
	}
	if err := s.svc.Rollback(req.TransactionID); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"rolled_back": true})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
