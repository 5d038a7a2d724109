// Package handler provides the HTTP handlers for the todo server.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stevemurr/simple-todo-server/model"
	"github.com/stevemurr/simple-todo-server/repository"
)

// Todos is the set of repository operations the handler dispatches to.
type Todos interface {
	Create(ctx context.Context, content string) (model.Item, error)
	ListQuery(ctx context.Context, rawPage, rawLimit string) (model.Page, error)
	Get(ctx context.Context, id string) (model.Item, error)
	UpdateByID(ctx context.Context, id string, patch model.Patch) (model.Item, error)
	ToggleDone(ctx context.Context, id string) (model.Item, error)
	DeleteByID(ctx context.Context, id string) error
	Ping(ctx context.Context) error
}

var _ Todos = (*repository.Repository)(nil)

// Options configures the middleware around the routes.
type Options struct {
	// AllowedOrigins for CORS. "*" allows everything; empty disables CORS headers.
	AllowedOrigins []string

	Logger *slog.Logger

	// Registry receives the HTTP metrics and is served at /metrics.
	// Nil disables both.
	Registry *prometheus.Registry
}

// Handler holds the server dependencies and registers routes.
type Handler struct {
	todos  Todos
	mux    *http.ServeMux
	logger *slog.Logger
	chain  http.Handler
}

// New creates a Handler and wires up all routes.
func New(todos Todos, opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{todos: todos, mux: http.NewServeMux(), logger: logger}
	h.routes()

	var chain http.Handler = h.mux
	if opts.Registry != nil {
		h.mux.Handle("GET /metrics", promhttp.HandlerFor(opts.Registry, promhttp.HandlerOpts{}))
		chain = instrument(chain, NewMetrics(opts.Registry))
	}
	chain = accessLog(chain, logger)
	if len(opts.AllowedOrigins) > 0 {
		chain = corsMiddleware(chain, opts.AllowedOrigins)
	}
	h.chain = chain
	return h
}

// ServeHTTP makes Handler an http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.chain.ServeHTTP(w, r)
}

func (h *Handler) routes() {
	// Health / status
	h.mux.HandleFunc("GET /", h.root)
	h.mux.HandleFunc("GET /health", h.health)

	h.mux.HandleFunc("GET /api/todos", h.listTodos)
	h.mux.HandleFunc("POST /api/todos", h.createTodo)
	h.mux.HandleFunc("GET /api/todos/{id}", h.getTodo)
	h.mux.HandleFunc("PATCH /api/todos/{id}", h.updateTodo)
	h.mux.HandleFunc("PUT /api/todos/{id}/toggle-done", h.toggleDone)
	h.mux.HandleFunc("DELETE /api/todos/{id}", h.deleteTodo)
}

// ---------- helpers ----------

// Error codes
const (
	ErrCodeBadRequest       = "BAD_REQUEST"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeRequestTooLarge  = "REQUEST_TOO_LARGE"
	ErrCodeStoreUnavailable = "STORE_UNAVAILABLE"
	ErrCodeInternalError    = "INTERNAL_ERROR"
)

// APIError is the body of every error response: {"error": {...}}.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type todoResponse struct {
	Todo model.Item `json:"todo"`
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn("Failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, code, msg string) {
	h.writeJSON(w, status, map[string]APIError{"error": {Code: code, Message: msg}})
}

// writeRepoError maps repository failures onto status codes.
func (h *Handler) writeRepoError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, model.ErrValidation):
		h.writeError(w, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	case errors.Is(err, model.ErrNotFound):
		h.writeError(w, http.StatusNotFound, ErrCodeNotFound, err.Error())
	case errors.Is(err, model.ErrStoreUnavailable):
		h.logger.Error("store unavailable", "method", r.Method, "path", r.URL.Path, "error", err)
		h.writeError(w, http.StatusServiceUnavailable, ErrCodeStoreUnavailable, "Store unavailable")
	default:
		h.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		h.writeError(w, http.StatusInternalServerError, ErrCodeInternalError, "Internal server error")
	}
}

// ---------- status endpoints ----------

func (h *Handler) root(w http.ResponseWriter, r *http.Request) {
	// Only match exact root path
	if r.URL.Path != "/" {
		h.writeError(w, http.StatusNotFound, ErrCodeNotFound, "not found")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "Simple Todo Server",
	})
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if err := h.todos.Ping(r.Context()); err != nil {
		h.logger.Warn("health check failed", "error", err)
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// ---------- todos ----------

func (h *Handler) listTodos(w http.ResponseWriter, r *http.Request) {
	q, err := decodeListQuery(r)
	if err != nil {
		h.logger.Warn("List: invalid query parameters", "error", err)
		h.writeError(w, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}
	page, err := h.todos.ListQuery(r.Context(), q.Page, q.Limit)
	if err != nil {
		h.writeRepoError(w, r, err)
		return
	}
	page.Items = repository.FilterByContent(q.Query, page.Items)
	h.writeJSON(w, http.StatusOK, page)
}

func (h *Handler) createTodo(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	item, err := h.todos.Create(r.Context(), req.Content)
	if err != nil {
		h.writeRepoError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, todoResponse{Todo: item})
}

func (h *Handler) getTodo(w http.ResponseWriter, r *http.Request) {
	item, err := h.todos.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeRepoError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, todoResponse{Todo: item})
}

func (h *Handler) updateTodo(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	item, err := h.todos.UpdateByID(r.Context(), r.PathValue("id"), req.patch())
	if err != nil {
		h.writeRepoError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, todoResponse{Todo: item})
}

func (h *Handler) toggleDone(w http.ResponseWriter, r *http.Request) {
	item, err := h.todos.ToggleDone(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeRepoError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, todoResponse{Todo: item})
}

func (h *Handler) deleteTodo(w http.ResponseWriter, r *http.Request) {
	if err := h.todos.DeleteByID(r.Context(), r.PathValue("id")); err != nil {
		h.writeRepoError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
