package httphandler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/ericfisherdev/kubehub/internal/application"
	"github.com/ericfisherdev/kubehub/internal/domain/model"
)

// Handler is the HTTP driving adapter that serves the REST API. Topic and
// count are fixed for the lifetime of the process.
type Handler struct {
	repoSvc *application.RepositoryService
	topic   string
	count   int
	logger  *slog.Logger
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(repoSvc *application.RepositoryService, topic string, count int, logger *slog.Logger) *Handler {
	return &Handler{
		repoSvc: repoSvc,
		topic:   topic,
		count:   count,
		logger:  logger,
	}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with logging and recovery middleware.
func NewServeMux(h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", h.Health)
	mux.HandleFunc("GET /api/"+h.topic, h.ListRepositories)
	mux.HandleFunc("GET /api/popularity/"+h.topic, h.ListByPopularity)
	mux.HandleFunc("GET /api/activity/"+h.topic, h.ListByActivity)

	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, mux)
	wrapped = loggingMiddleware(logger, wrapped)

	return wrapped
}

// ListRepositories returns the topic's repositories in cache order.
func (h *Handler) ListRepositories(w http.ResponseWriter, r *http.Request) {
	h.listSorted(w, r, "", false)
}

// ListByPopularity returns the topic's repositories, most starred first.
func (h *Handler) ListByPopularity(w http.ResponseWriter, r *http.Request) {
	h.listSorted(w, r, application.SortByStargazersCount, true)
}

// ListByActivity returns the topic's repositories, most recently updated first.
func (h *Handler) ListByActivity(w http.ResponseWriter, r *http.Request) {
	h.listSorted(w, r, application.SortByUpdatedAt, true)
}

// listSorted loads the topic's repositories and, when field is non-empty,
// sorts them. The request context is detached so a client disconnect does not
// abort a cache refill halfway through.
func (h *Handler) listSorted(w http.ResponseWriter, r *http.Request, field application.SortField, descending bool) {
	ctx := context.WithoutCancel(r.Context())

	repos, err := h.repoSvc.GetByTopic(ctx, h.topic, h.count)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	if field != "" {
		repos, err = application.SortRepositories(repos, field, descending)
		if err != nil {
			h.writeServiceError(w, r, err)
			return
		}
	}

	writeJSON(w, http.StatusOK, toRepoResponses(repos))
}

// Health reports whether the cache backend is reachable.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC().Format(time.RFC3339)

	if err := h.repoSvc.CacheAvailable(r.Context()); err != nil {
		h.logger.Warn("health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "unavailable", Time: now})
		return
	}

	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Time: now})
}

func toRepoResponses(repos []model.Repository) []RepoResponse {
	resp := make([]RepoResponse, 0, len(repos))
	for _, repo := range repos {
		resp = append(resp, toRepoResponse(repo))
	}
	return resp
}
