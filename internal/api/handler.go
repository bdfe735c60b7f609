// internal/api/handler.go
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	apperrors "github-analyzer/internal/errors"
	"github-analyzer/internal/model"
	"github-analyzer/internal/store"
)

const maxLimit = 1000

// Handler is the container for API dependencies.
type Handler struct {
	store  store.Store
	logger *slog.Logger
}

// NewRouter creates and configures a new chi router with all API routes.
func NewRouter(st store.Store, logger *slog.Logger) http.Handler {
	h := &Handler{
		store:  st,
		logger: logger,
	}

	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", h.healthCheck)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/repositories", h.listRepositories)
		r.Get("/repos/{owner}/{name}", h.getRepository)
		r.Get("/repos/{owner}/{name}/contributors", h.getContributors)
		r.Get("/topics", h.listTopics)
		r.Get("/stats", h.getStats)
	})

	return r
}

// healthCheck reports whether the store is reachable.
func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		h.logger.Error("Health check failed", "error", err)
		respondWithJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// listRepositories handles GET /v1/repositories?topic=T&language=L&limit=N
func (h *Handler) listRepositories(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r, store.DefaultListLimit)
	if !ok {
		return
	}

	repos, err := h.store.ListRepositories(r.Context(), model.RepositoryFilter{
		Topic:    r.URL.Query().Get("topic"),
		Language: r.URL.Query().Get("language"),
		Limit:    limit,
	})
	if err != nil {
		h.respondWithStoreError(w, "Failed to list repositories", err)
		return
	}
	respondWithJSON(w, http.StatusOK, repos)
}

// getRepository handles GET /v1/repos/{owner}/{name}
func (h *Handler) getRepository(w http.ResponseWriter, r *http.Request) {
	repo, err := h.store.GetRepository(r.Context(), repoKey(r))
	if err != nil {
		h.respondWithStoreError(w, "Failed to get repository", err)
		return
	}
	respondWithJSON(w, http.StatusOK, repo)
}

// getContributors handles GET /v1/repos/{owner}/{name}/contributors?limit=N
func (h *Handler) getContributors(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r, 10)
	if !ok {
		return
	}

	key := repoKey(r)
	if _, err := h.store.GetRepository(r.Context(), key); err != nil {
		h.respondWithStoreError(w, "Failed to get repository", err)
		return
	}

	contributors, err := h.store.TopContributors(r.Context(), key, limit)
	if err != nil {
		h.respondWithStoreError(w, "Failed to get top contributors", err)
		return
	}
	respondWithJSON(w, http.StatusOK, contributors)
}

// listTopics handles GET /v1/topics?limit=N
func (h *Handler) listTopics(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r, store.DefaultListLimit)
	if !ok {
		return
	}

	topics, err := h.store.ListTopics(r.Context(), limit)
	if err != nil {
		h.respondWithStoreError(w, "Failed to list topics", err)
		return
	}
	respondWithJSON(w, http.StatusOK, topics)
}

func (h *Handler) getStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.Stats(r.Context())
	if err != nil {
		h.respondWithStoreError(w, "Failed to compute stats", err)
		return
	}
	respondWithJSON(w, http.StatusOK, stats)
}

func repoKey(r *http.Request) model.RepoKey {
	return model.RepoKey{Owner: chi.URLParam(r, "owner"), Name: chi.URLParam(r, "name")}
}

// parseLimit reads the optional 'limit' query parameter and writes a 400 when it is invalid.
func parseLimit(w http.ResponseWriter, r *http.Request, def int) (int, bool) {
	limitStr := r.URL.Query().Get("limit")
	if limitStr == "" {
		return def, true
	}
	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit <= 0 || limit > maxLimit {
		respondWithError(w, http.StatusBadRequest, "Invalid 'limit' parameter. Must be an integer between 1 and 1000.")
		return 0, false
	}
	return limit, true
}

func (h *Handler) respondWithStoreError(w http.ResponseWriter, msg string, err error) {
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		respondWithError(w, http.StatusNotFound, "Repository not found")
	case errors.Is(err, apperrors.ErrStoreUnavailable):
		h.logger.Error(msg, "error", err)
		respondWithError(w, http.StatusServiceUnavailable, "Store unavailable")
	default:
		h.logger.Error(msg, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(response)
}
