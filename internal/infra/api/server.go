package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"startup-analysis-pipeline/internal/config"
	"startup-analysis-pipeline/internal/domain"
	"startup-analysis-pipeline/internal/domain/model"
	"startup-analysis-pipeline/internal/domain/ports/adapter"
	"startup-analysis-pipeline/internal/usecase"
)

// Server wires the analysis endpoints to the use cases.
type Server struct {
	submitUC *usecase.SubmitUseCase
	statusUC *usecase.StatusUseCase
	store    *usecase.ContextStore
	bus      adapter.ProgressBroadcaster
	auth     *AuthManager
	stream   config.StreamConfig
	topK     int
	log      *zerolog.Logger
}

func NewServer(
	submitUC *usecase.SubmitUseCase,
	statusUC *usecase.StatusUseCase,
	store *usecase.ContextStore,
	bus adapter.ProgressBroadcaster,
	auth *AuthManager,
	stream config.StreamConfig,
	topK int,
	logger *zerolog.Logger,
) *Server {
	l := logger.With().Str("component", "APIServer").Logger()
	if topK <= 0 {
		topK = 5
	}
	return &Server{
		submitUC: submitUC, statusUC: statusUC, store: store, bus: bus,
		auth: auth, stream: stream, topK: topK, log: &l,
	}
}

// Register attaches all routes to the provided router.
func (s *Server) Register(r chi.Router) {
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/analyses", s.handleSubmit)
		r.Get("/analyses/{jobKey}", s.handleStatus)
		r.Get("/analyses/{jobKey}/events", s.handleEvents)

		r.Post("/context/{sessionID}", s.handleIndex)
		r.Post("/context/{sessionID}/search", s.handleSearch)

		r.Post("/admin/session", s.handleAdminSession)
		r.With(s.auth.RequireAdmin).
			Post("/admin/analyses/{jobKey}/requeue", s.handleRequeue)
	})
}

type submitRequest struct {
	JobKey  string                `json:"job_key"`
	Payload model.AnalysisPayload `json:"payload"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.JobKey == "" {
		writeError(w, http.StatusBadRequest, "job_key is required")
		return
	}
	attemptID, err := s.submitUC.Submit(r.Context(), model.JobRequest{
		JobKey:      req.JobKey,
		Payload:     req.Payload,
		SubmittedAt: time.Now(),
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"attempt_id": attemptID,
		"job_key":    req.JobKey,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	jobKey := chi.URLParam(r, "jobKey")
	snap, err := s.statusUC.Snapshot(r.Context(), jobKey)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

type indexRequest struct {
	Text   string `json:"text"`
	Source string `json:"source"`
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	var req indexRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}
	n, err := s.store.Index(r.Context(), sessionID, req.Text, req.Source)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"chunks": n})
}

type searchRequest struct {
	Query string `json:"query"`
	K     int    `json:"k"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}
	if req.K <= 0 {
		req.K = s.topK
	}
	hits, err := s.store.Retrieve(r.Context(), sessionID, req.Query, req.K)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": hits})
}

type adminSessionRequest struct {
	APIKey string `json:"api_key"`
}

func (s *Server) handleAdminSession(w http.ResponseWriter, r *http.Request) {
	var req adminSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	token, err := s.auth.Mint(req.APIKey)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (s *Server) handleRequeue(w http.ResponseWriter, r *http.Request) {
	jobKey := chi.URLParam(r, "jobKey")
	attemptID, err := s.submitUC.Requeue(r.Context(), jobKey)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"attempt_id": attemptID,
		"job_key":    jobKey,
	})
}

func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrInvalidArgument),
		errors.Is(err, domain.ErrInvalidPayload),
		errors.Is(err, domain.ErrSessionRequired),
		errors.Is(err, domain.ErrUnknownMode),
		errors.Is(err, domain.ErrNoDimensions):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrJobNotRequeueable):
		writeError(w, http.StatusConflict, err.Error())
	default:
		s.log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
