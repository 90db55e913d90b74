// Package server exposes the orchestration engine over a thin JSON HTTP API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"github.com/questlabs/interviewd/internal/interview"
)

// Server wraps the HTTP listener around the engine.
type Server struct {
	engine *interview.Engine
	logger *zap.Logger
	http   *http.Server
}

// New creates a server listening on addr.
func New(addr string, engine *interview.Engine, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{engine: engine, logger: logger}
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Router builds the route table. Exposed separately for tests.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)
	r.Get("/status", s.handleStatus)
	r.Post("/start_interview", s.handleStart)
	r.Post("/match_score", s.handleMatchScore)
	r.Post("/submit_answer", s.handleSubmit)
	r.Post("/generate_report", s.handleReport)

	return r
}

// ListenAndServe blocks serving requests until Shutdown or a listener error.
func (s *Server) ListenAndServe() error {
	s.logger.Info("http server listening", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

type startRequest struct {
	ResumeText string `json:"resume_text"`
	JDText     string `json:"jd_text"`
	Mode       string `json:"mode"`
}

type matchRequest struct {
	ResumeText string `json:"resume_text"`
	JDText     string `json:"jd_text"`
}

type submitRequest struct {
	SessionID string `json:"session_id"`
	Question  string `json:"question"`
	Answer    string `json:"answer"`
}

type reportRequest struct {
	SessionID string `json:"session_id"`
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	status := s.engine.ProviderStatus()
	writeJSON(w, http.StatusOK, map[string]any{
		"message":          "interviewd: multi-round interview orchestration",
		"current_provider": status.Active,
		"failover_count":   status.FailoverCount,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	status := s.engine.ProviderStatus()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "healthy",
		"provider":       status.Active,
		"failover_count": status.FailoverCount,
	})
}

// handleStatus returns the full provider failover state plus per-agent usage
// counters.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	payload := make(map[string]any)
	if err := mapstructure.Decode(s.engine.ProviderStatus(), &payload); err != nil {
		s.logger.Error("encoding provider status", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to encode status")
		return
	}
	payload["agents"] = s.engine.AgentStats()

	writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if !decode(w, r, &req) {
		return
	}

	mode := interview.Mode(strings.TrimSpace(req.Mode))
	if mode == "" {
		mode = interview.ModeExperience
	}

	result, err := s.engine.CreateSession(r.Context(), req.ResumeText, req.JDText, mode)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleMatchScore(w http.ResponseWriter, r *http.Request) {
	var req matchRequest
	if !decode(w, r, &req) {
		return
	}

	writeJSON(w, http.StatusOK, s.engine.MatchScore(r.Context(), req.ResumeText, req.JDText))
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if !decode(w, r, &req) {
		return
	}

	result, err := s.engine.SubmitAnswer(r.Context(), req.SessionID, req.Question, req.Answer)
	if err != nil {
		if errors.Is(err, interview.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	var req reportRequest
	if !decode(w, r, &req) {
		return
	}

	result, err := s.engine.GenerateReport(r.Context(), req.SessionID)
	if err != nil {
		if errors.Is(err, interview.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
