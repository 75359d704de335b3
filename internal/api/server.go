// Package api exposes the operator command surface over HTTP. Every route
// is a thin translation to a supervisor or runner call; no business logic
// lives here.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/hoodx/roulettebot/internal/domain"
	"github.com/hoodx/roulettebot/internal/operator"
)

// Server handles the operator HTTP API.
type Server struct {
	sup *operator.Supervisor
	log *slog.Logger
}

// NewServer creates the API server.
func NewServer(sup *operator.Supervisor, log *slog.Logger) *Server {
	return &Server{sup: sup, log: log.With("component", "api")}
}

// Router builds the chi router with all operator routes mounted.
func (s *Server) Router(allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Route("/users/{userID}", func(r chi.Router) {
		r.Post("/connect", s.handleConnect)
		r.Post("/disconnect", s.handleDisconnect)
		r.Post("/start", s.handleStart)
		r.Post("/stop", s.handleStop)
		r.Post("/select", s.handleSelect)
		r.Post("/stake", s.handleStake)
		r.Post("/report/reset", s.handleResetReport)
		r.Get("/status", s.handleStatus)
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type connectRequest struct {
	Token       string            `json:"token"`
	UserAgent   string            `json:"user_agent,omitempty"`
	Language    string            `json:"language,omitempty"`
	Fingerprint map[string]string `json:"fingerprint,omitempty"`
	BaseStake   float64           `json:"base_stake,omitempty"`
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var req connectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Token == "" {
		respondError(w, http.StatusBadRequest, "token is required")
		return
	}

	src := domain.SourceCredential{
		Token:       req.Token,
		UserAgent:   req.UserAgent,
		Language:    req.Language,
		Fingerprint: req.Fingerprint,
	}
	if err := s.sup.Connect(r.Context(), userID, src, req.BaseStake); err != nil {
		s.log.Warn("connect failed", "user", userID, "error", err)
		respondError(w, statusFor(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "connected", "user_id": userID})
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if err := s.sup.Disconnect(userID); err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "disconnected", "user_id": userID})
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	s.runnerOp(w, r, func(run *operator.Runner) error { return run.StartBetting() })
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.runnerOp(w, r, func(run *operator.Runner) error { return run.StopBetting() })
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Selection domain.Selection `json:"selection"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !req.Selection.Valid() {
		respondError(w, http.StatusBadRequest, "unknown selection")
		return
	}
	s.runnerOp(w, r, func(run *operator.Runner) error { return run.Select(req.Selection) })
}

func (s *Server) handleStake(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount float64 `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Amount <= 0 {
		respondError(w, http.StatusBadRequest, "amount must be positive")
		return
	}
	s.runnerOp(w, r, func(run *operator.Runner) error { return run.UpdateStake(req.Amount) })
}

func (s *Server) handleResetReport(w http.ResponseWriter, r *http.Request) {
	s.runnerOp(w, r, func(run *operator.Runner) error { return run.ResetReport() })
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	run, err := s.sup.Runner(userID)
	if err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}
	info, err := run.Status()
	if err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, info)
}

// runnerOp resolves the user's runner and applies op to it.
func (s *Server) runnerOp(w http.ResponseWriter, r *http.Request, op func(*operator.Runner) error) {
	userID := chi.URLParam(r, "userID")
	run, err := s.sup.Runner(userID)
	if err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}
	if err := op(run); err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok", "user_id": userID})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInsufficientBalance):
		return http.StatusPaymentRequired
	case domain.IsPermanentAuth(err):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}
