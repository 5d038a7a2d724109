package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stevemurr/simple-todo-server/handler"
	"github.com/stevemurr/simple-todo-server/model"
	"github.com/stevemurr/simple-todo-server/repository"
	"github.com/stevemurr/simple-todo-server/store"
)

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func setup(t *testing.T) (*httptest.Server, *repository.Repository) {
	t.Helper()
	repo := repository.New(store.NewMemoryStore(), repository.WithLogger(quietLogger))
	ts := httptest.NewServer(handler.New(repo, handler.Options{
		AllowedOrigins: []string{"*"},
		Logger:         quietLogger,
		Registry:       prometheus.NewRegistry(),
	}))
	t.Cleanup(ts.Close)
	return ts, repo
}

func do(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, url, r)
	require.NoError(t, err)
	if r != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

type todoBody struct {
	Todo model.Item `json:"todo"`
}

type errorBody struct {
	Error handler.APIError `json:"error"`
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func createTodo(t *testing.T, ts *httptest.Server, content string) model.Item {
	t.Helper()
	resp := do(t, http.MethodPost, ts.URL+"/api/todos", map[string]any{"content": content})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decode[todoBody](t, resp).Todo
}

func TestRootAndHealth(t *testing.T) {
	ts, _ := setup(t)

	resp := do(t, http.MethodGet, ts.URL+"/", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", decode[map[string]string](t, resp)["status"])

	resp = do(t, http.MethodGet, ts.URL+"/health", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", decode[map[string]string](t, resp)["status"])

	resp = do(t, http.MethodGet, ts.URL+"/nope", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestTodosCRUD(t *testing.T) {
	ts, _ := setup(t)

	// GET /api/todos - empty
	resp := do(t, http.MethodGet, ts.URL+"/api/todos", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	page := decode[model.Page](t, resp)
	assert.Empty(t, page.Items)
	assert.Equal(t, 0, page.Pages)

	created := createTodo(t, ts, "  Buy milk ")
	assert.Equal(t, "Buy milk", created.Content)
	assert.False(t, created.Done)

	// GET /api/todos/{id}
	resp = do(t, http.MethodGet, ts.URL+"/api/todos/"+created.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, created.ID, decode[todoBody](t, resp).Todo.ID)

	// PATCH content only
	resp = do(t, http.MethodPatch, ts.URL+"/api/todos/"+created.ID, map[string]any{"content": "Buy oat milk"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	updated := decode[todoBody](t, resp).Todo
	assert.Equal(t, "Buy oat milk", updated.Content)
	assert.False(t, updated.Done)
	assert.True(t, created.CreatedAt.Equal(updated.CreatedAt))

	// PUT toggle-done
	resp = do(t, http.MethodPut, ts.URL+"/api/todos/"+created.ID+"/toggle-done", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, decode[todoBody](t, resp).Todo.Done)

	// DELETE
	resp = do(t, http.MethodDelete, ts.URL+"/api/todos/"+created.ID, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	// Second delete and lookups are 404
	for _, req := range []struct{ method, path string }{
		{http.MethodDelete, "/api/todos/" + created.ID},
		{http.MethodGet, "/api/todos/" + created.ID},
		{http.MethodPut, "/api/todos/" + created.ID + "/toggle-done"},
	} {
		resp = do(t, req.method, ts.URL+req.path, nil)
		require.Equal(t, http.StatusNotFound, resp.StatusCode, "%s %s", req.method, req.path)
		assert.Equal(t, handler.ErrCodeNotFound, decode[errorBody](t, resp).Error.Code)
	}
	resp = do(t, http.MethodPatch, ts.URL+"/api/todos/"+created.ID, map[string]any{"done": true})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestListPaginationMostRecentFirst(t *testing.T) {
	ts, _ := setup(t)
	for _, c := range []string{"Buy milk", "Walk dog", "Pay bills"} {
		createTodo(t, ts, c)
	}

	resp := do(t, http.MethodGet, ts.URL+"/api/todos?page=1&limit=2", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	page := decode[model.Page](t, resp)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "Pay bills", page.Items[0].Content)
	assert.Equal(t, "Walk dog", page.Items[1].Content)
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, 2, page.Pages)

	resp = do(t, http.MethodGet, ts.URL+"/api/todos?page=2&limit=2", nil)
	page = decode[model.Page](t, resp)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Buy milk", page.Items[0].Content)

	resp = do(t, http.MethodGet, ts.URL+"/api/todos?page=9&limit=2", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	page = decode[model.Page](t, resp)
	assert.Empty(t, page.Items)
	assert.Equal(t, 3, page.Total)
}

func TestListFilterNarrowsPage(t *testing.T) {
	ts, _ := setup(t)
	for _, c := range []string{"Buy milk", "Walk dog", "Buy bread"} {
		createTodo(t, ts, c)
	}

	resp := do(t, http.MethodGet, ts.URL+"/api/todos?q=BUY", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	page := decode[model.Page](t, resp)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "Buy bread", page.Items[0].Content)
	assert.Equal(t, 3, page.Total, "total describes the unfiltered collection")
}

func TestListRejectsBadQuery(t *testing.T) {
	ts, _ := setup(t)
	for _, qs := range []string{"page=abc", "limit=-1", "page=1.5", "q=" + strings.Repeat("x", 201)} {
		resp := do(t, http.MethodGet, ts.URL+"/api/todos?"+qs, nil)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode, qs)
		assert.Equal(t, handler.ErrCodeBadRequest, decode[errorBody](t, resp).Error.Code)
	}
}

func TestCreateRejectsInvalidBodies(t *testing.T) {
	ts, repo := setup(t)

	cases := map[string]any{
		"empty content":   map[string]any{"content": ""},
		"blank content":   map[string]any{"content": "   "},
		"missing content": map[string]any{},
		"wrong type":      map[string]any{"content": 42},
		"unknown field":   map[string]any{"content": "x", "done": true},
		"malformed":       `{"content":`,
		"trailing data":   `{"content":"x"} {}`,
		"too long":        map[string]any{"content": strings.Repeat("x", model.MaxContentBytes+1)},
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			resp := do(t, http.MethodPost, ts.URL+"/api/todos", body)
			require.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, handler.ErrCodeBadRequest, decode[errorBody](t, resp).Error.Code)
		})
	}

	page, err := repo.List(context.Background(), 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, page.Total)
}

func TestCreateRejectsHugeBody(t *testing.T) {
	ts, _ := setup(t)
	body := fmt.Sprintf(`{"content":%q}`, strings.Repeat("x", handler.MaxBodyBytes))
	resp := do(t, http.MethodPost, ts.URL+"/api/todos", body)
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
}

func TestPatchCannotTouchIdentity(t *testing.T) {
	ts, _ := setup(t)
	created := createTodo(t, ts, "Walk dog")

	resp := do(t, http.MethodPatch, ts.URL+"/api/todos/"+created.ID, map[string]any{"id": "other", "done": true})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, http.MethodPatch, ts.URL+"/api/todos/"+created.ID, map[string]any{"done": "true"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, http.MethodPatch, ts.URL+"/api/todos/"+created.ID, map[string]any{"content": " "})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, http.MethodGet, ts.URL+"/api/todos/"+created.ID, nil)
	assert.Equal(t, created, decode[todoBody](t, resp).Todo)
}

func TestCORS(t *testing.T) {
	ts, _ := setup(t)
	resp := do(t, http.MethodOptions, ts.URL+"/api/todos", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestMetricsEndpoint(t *testing.T) {
	ts, _ := setup(t)
	createTodo(t, ts, "x")

	resp := do(t, http.MethodGet, ts.URL+"/metrics", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `todo_http_requests_total{method="POST",route="POST /api/todos",status="201"} 1`)
}

// brokenTodos fails every call with the configured error.
type brokenTodos struct{ err error }

func (b brokenTodos) Create(context.Context, string) (model.Item, error) { return model.Item{}, b.err }
func (b brokenTodos) ListQuery(context.Context, string, string) (model.Page, error) {
	return model.Page{}, b.err
}
func (b brokenTodos) Get(context.Context, string) (model.Item, error) { return model.Item{}, b.err }
func (b brokenTodos) UpdateByID(context.Context, string, model.Patch) (model.Item, error) {
	return model.Item{}, b.err
}
func (b brokenTodos) ToggleDone(context.Context, string) (model.Item, error) {
	return model.Item{}, b.err
}
func (b brokenTodos) DeleteByID(context.Context, string) error { return b.err }
func (b brokenTodos) Ping(context.Context) error               { return b.err }

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{model.Unavailable("read", io.ErrUnexpectedEOF), http.StatusServiceUnavailable, handler.ErrCodeStoreUnavailable},
		{fmt.Errorf("boom"), http.StatusInternalServerError, handler.ErrCodeInternalError},
		{&model.ValidationError{Field: "page", Reason: "bad"}, http.StatusBadRequest, handler.ErrCodeBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			ts := httptest.NewServer(handler.New(brokenTodos{tc.err}, handler.Options{Logger: quietLogger}))
			defer ts.Close()

			resp := do(t, http.MethodGet, ts.URL+"/api/todos", nil)
			require.Equal(t, tc.status, resp.StatusCode)
			assert.Equal(t, tc.code, decode[errorBody](t, resp).Error.Code)
		})
	}

	ts := httptest.NewServer(handler.New(brokenTodos{model.Unavailable("read", io.EOF)}, handler.Options{Logger: quietLogger}))
	defer ts.Close()
	resp := do(t, http.MethodGet, ts.URL+"/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
