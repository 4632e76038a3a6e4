// Package httpapi provides the REST endpoint of the projection service.
//
// It exposes the same operations as the gRPC API for callers that prefer
// plain JSON over HTTP: sessions under /api/v1/auth, models under
// /api/v1/models. All model routes require a Bearer session token.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/opaque/principal/internal/service"
	"github.com/opaque/principal/internal/session"
	"github.com/opaque/principal/pkg/pca"
)

// Server handles REST API requests for the projection service.
type Server struct {
	svc *service.ProjectionService

	httpServer *http.Server
	mux        *http.ServeMux
}

// Config holds server configuration.
type Config struct {
	// Address to listen on (e.g., ":8080")
	Address string

	// Read/write timeouts
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig returns sensible defaults for local development.
func DefaultConfig() Config {
	return Config{
		Address:      ":8080",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second, // fits on large batches take a while
	}
}

// New creates a new server instance over the given projection service.
func New(cfg Config, svc *service.ProjectionService) *Server {
	s := &Server{
		svc: svc,
		mux: http.NewServeMux(),
	}

	s.registerRoutes()

	s.httpServer = &http.Server{
		Addr:         cfg.Address,
		Handler:      s.mux,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s
}

// registerRoutes sets up all API endpoints.
func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)

	s.mux.HandleFunc("POST /api/v1/auth/login", s.handleLogin)
	s.mux.HandleFunc("POST /api/v1/auth/refresh", s.handleRefresh)

	s.mux.HandleFunc("POST /api/v1/models/{name}/fit", s.withAuth(s.handleFit))
	s.mux.HandleFunc("POST /api/v1/models/{name}/transform", s.withAuth(s.handleTransform))
	s.mux.HandleFunc("POST /api/v1/models/{name}/inverse", s.withAuth(s.handleInverse))
	s.mux.HandleFunc("POST /api/v1/models/{name}/error", s.withAuth(s.handleReconstructionError))
	s.mux.HandleFunc("GET /api/v1/models/{name}/cumsum", s.withAuth(s.handleCumsum))
	s.mux.HandleFunc("GET /api/v1/models/{name}", s.withAuth(s.handleDescribe))
	s.mux.HandleFunc("GET /api/v1/models", s.withAuth(s.handleList))
	s.mux.HandleFunc("DELETE /api/v1/models/{name}", s.withAuth(s.handleDelete))
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	log.Printf("REST server starting on %s", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// withAuth wraps a handler with session validation.
func (s *Server) withAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeError(w, http.StatusUnauthorized, "missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			writeError(w, http.StatusUnauthorized, "invalid authorization header format")
			return
		}
		token := parts[1]

		if err := s.svc.ValidateSession(r.Context(), token); err != nil {
			writeError(w, http.StatusUnauthorized, "invalid or expired session")
			return
		}

		ctx := context.WithValue(r.Context(), tokenKey, token)
		next(w, r.WithContext(ctx))
	}
}

// Context key for the session token
type contextKey string

const tokenKey contextKey = "token"

// tokenFrom retrieves the validated session token from context.
func tokenFrom(ctx context.Context) string {
	token, _ := ctx.Value(tokenKey).(string)
	return token
}

// Health check handler
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	healthy, msg, sessions, models := s.svc.HealthCheck(r.Context())
	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{
		"status":          msg,
		"time":            time.Now().UTC().Format(time.RFC3339),
		"active_sessions": sessions,
		"models":          models,
	})
}

// Login request/response
type LoginRequest struct {
	APIKey string `json:"api_key"`
}

type SessionResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.APIKey == "" {
		writeError(w, http.StatusBadRequest, "api_key is required")
		return
	}

	sess, err := s.svc.Login(r.Context(), req.APIKey)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "authentication failed")
		return
	}

	writeJSON(w, http.StatusOK, SessionResponse{
		Token:     sess.Token,
		ExpiresAt: sess.ExpiresAt,
	})
}

// Refresh token handler
type RefreshRequest struct {
	Token string `json:"token"`
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sess, err := s.svc.RefreshSession(r.Context(), req.Token)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, SessionResponse{
		Token:     sess.Token,
		ExpiresAt: sess.ExpiresAt,
	})
}

// Fit handler
type FitRequest struct {
	Rows       [][]float64 `json:"rows"`
	Components int         `json:"components"`
	Refit      bool        `json:"refit"`
}

type ModelResponse struct {
	Name       string    `json:"name"`
	CreatedAt  time.Time `json:"created_at"`
	Components int       `json:"components"`
	Features   int       `json:"features"`
	Samples    int       `json:"samples"`
	Ratio      []float64 `json:"explained_variance_ratio"`
}

func modelResponse(info *service.ModelInfo) ModelResponse {
	return ModelResponse{
		Name:       info.Name,
		CreatedAt:  info.CreatedAt,
		Components: info.Components,
		Features:   info.Features,
		Samples:    info.Samples,
		Ratio:      info.Ratio,
	}
}

func (s *Server) handleFit(w http.ResponseWriter, r *http.Request) {
	var req FitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	info, err := s.svc.Fit(r.Context(), tokenFrom(r.Context()), r.PathValue("name"), req.Rows, req.Components, req.Refit)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, modelResponse(info))
}

// Matrix request/response, shared by transform, inverse, and error routes
type RowsRequest struct {
	Rows [][]float64 `json:"rows"`
}

type RowsResponse struct {
	Rows [][]float64 `json:"rows"`
}

func (s *Server) handleTransform(w http.ResponseWriter, r *http.Request) {
	var req RowsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	rows, err := s.svc.Transform(r.Context(), tokenFrom(r.Context()), r.PathValue("name"), req.Rows)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, RowsResponse{Rows: rows})
}

func (s *Server) handleInverse(w http.ResponseWriter, r *http.Request) {
	var req RowsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	rows, err := s.svc.InverseTransform(r.Context(), tokenFrom(r.Context()), r.PathValue("name"), req.Rows)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, RowsResponse{Rows: rows})
}

type ReconstructionErrorResponse struct {
	MSE float64 `json:"mse"`
}

func (s *Server) handleReconstructionError(w http.ResponseWriter, r *http.Request) {
	var req RowsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	mse, err := s.svc.ReconstructionError(r.Context(), tokenFrom(r.Context()), r.PathValue("name"), req.Rows)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ReconstructionErrorResponse{MSE: mse})
}

type CumsumResponse struct {
	Values []float64 `json:"values"`
}

func (s *Server) handleCumsum(w http.ResponseWriter, r *http.Request) {
	values, err := s.svc.Cumsum(r.Context(), tokenFrom(r.Context()), r.PathValue("name"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, CumsumResponse{Values: values})
}

func (s *Server) handleDescribe(w http.ResponseWriter, r *http.Request) {
	info, err := s.svc.Describe(r.Context(), tokenFrom(r.Context()), r.PathValue("name"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, modelResponse(info))
}

type ListResponse struct {
	Models []ModelResponse `json:"models"`
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	infos, err := s.svc.List(r.Context(), tokenFrom(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	resp := ListResponse{Models: make([]ModelResponse, len(infos))}
	for i := range infos {
		resp.Models[i] = modelResponse(&infos[i])
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Delete(r.Context(), tokenFrom(r.Context()), r.PathValue("name")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Helper functions
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeServiceError maps service-layer errors to HTTP status codes.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrInvalidSession),
		errors.Is(err, session.ErrSessionExpired),
		errors.Is(err, session.ErrBadAPIKey):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, session.ErrNotRefreshable),
		errors.Is(err, service.ErrModelExists):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrModelNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrInvalidRequest),
		errors.Is(err, pca.ErrShapeMismatch),
		errors.Is(err, pca.ErrInvalidComponents),
		errors.Is(err, pca.ErrNotFitted):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
