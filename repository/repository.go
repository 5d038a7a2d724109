// Package repository implements pagination, ordering and update semantics
// over a store.Store.
//
// Every operation reads the whole collection, changes it in memory and
// writes it back. A Repository serialises its own operations with a mutex,
// so concurrent requests served by one process cannot lose each other's
// writes. Two processes sharing the same medium still can.
package repository

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/stevemurr/simple-todo-server/model"
	"github.com/stevemurr/simple-todo-server/store"
)

// DefaultLimit is the page size used when none is given.
const DefaultLimit = 10

// Repository is the only writer of its store.
type Repository struct {
	mu           sync.Mutex
	store        store.Store
	now          func() time.Time
	newID        func() string
	defaultLimit int
	maxLimit     int
	logger       *slog.Logger
}

// Option customises a Repository.
type Option func(*Repository)

// WithClock overrides the creation timestamp source.
func WithClock(now func() time.Time) Option {
	return func(r *Repository) { r.now = now }
}

// WithIDGenerator overrides id generation.
func WithIDGenerator(newID func() string) Option {
	return func(r *Repository) { r.newID = newID }
}

// WithDefaultLimit sets the page size used when List gets limit <= 0.
func WithDefaultLimit(limit int) Option {
	return func(r *Repository) {
		if limit > 0 {
			r.defaultLimit = limit
		}
	}
}

// WithMaxLimit caps the page size List accepts. Zero means no cap.
func WithMaxLimit(limit int) Option {
	return func(r *Repository) {
		if limit >= 0 {
			r.maxLimit = limit
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Repository) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// New creates a Repository over s.
func New(s store.Store, opts ...Option) *Repository {
	r := &Repository{
		store:        s,
		now:          time.Now,
		newID:        uuid.NewString,
		defaultLimit: DefaultLimit,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// DefaultPageSize reports the limit applied when List receives none.
func (r *Repository) DefaultPageSize() int { return r.defaultLimit }

// Create stores a new todo with the given content.
func (r *Repository) Create(ctx context.Context, content string) (model.Item, error) {
	content, err := model.NormalizeContent(content)
	if err != nil {
		return model.Item{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	items, err := r.store.ReadAll(ctx)
	if err != nil {
		return model.Item{}, fmt.Errorf("create: %w", err)
	}
	item := model.Item{
		ID:        r.newID(),
		CreatedAt: r.now().UTC().Round(0),
		Content:   content,
		Done:      false,
	}
	if err := r.store.WriteAll(ctx, append(items, item)); err != nil {
		return model.Item{}, fmt.Errorf("create: %w", err)
	}
	r.logger.Debug("todo created", "id", item.ID)
	return item, nil
}

// List returns one page of todos, most recent first. page <= 0 means 1 and
// limit <= 0 means the default limit. A page past the end is empty.
func (r *Repository) List(ctx context.Context, page, limit int) (model.Page, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = r.defaultLimit
	}
	if r.maxLimit > 0 && limit > r.maxLimit {
		return model.Page{}, &model.ValidationError{Field: "limit", Reason: fmt.Sprintf("must not exceed %d", r.maxLimit)}
	}

	r.mu.Lock()
	items, err := r.store.ReadAll(ctx)
	r.mu.Unlock()
	if err != nil {
		return model.Page{}, fmt.Errorf("list: %w", err)
	}

	total := len(items)
	out := model.Page{
		Items: []model.Item{},
		Total: total,
		Pages: total / limit,
	}
	if total%limit != 0 {
		out.Pages++
	}
	// Guard the multiplication against absurd page numbers.
	if page-1 >= out.Pages {
		return out, nil
	}
	start := (page - 1) * limit
	end := total
	if limit < total-start {
		end = start + limit
	}
	// Newest first: position p in the view is stored index total-1-p.
	for p := start; p < end; p++ {
		out.Items = append(out.Items, items[total-1-p])
	}
	return out, nil
}

// ListQuery is List for raw query-string values. An empty string means the
// parameter was not supplied; anything else must be a non-negative integer.
func (r *Repository) ListQuery(ctx context.Context, rawPage, rawLimit string) (model.Page, error) {
	page, err := parseCount("page", rawPage)
	if err != nil {
		return model.Page{}, err
	}
	limit, err := parseCount("limit", rawLimit)
	if err != nil {
		return model.Page{}, err
	}
	return r.List(ctx, page, limit)
}

func parseCount(field, raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, &model.ValidationError{Field: field, Reason: fmt.Sprintf("%q is not a non-negative integer", raw)}
	}
	return n, nil
}

// Get returns the todo with the given id.
func (r *Repository) Get(ctx context.Context, id string) (model.Item, error) {
	r.mu.Lock()
	items, err := r.store.ReadAll(ctx)
	r.mu.Unlock()
	if err != nil {
		return model.Item{}, fmt.Errorf("get: %w", err)
	}
	i := indexOf(items, id)
	if i < 0 {
		return model.Item{}, &model.NotFoundError{ID: id}
	}
	return items[i], nil
}

// UpdateByID merges the non-nil fields of patch into the stored todo.
// id and createdAt never change.
func (r *Repository) UpdateByID(ctx context.Context, id string, patch model.Patch) (model.Item, error) {
	if patch.Content != nil {
		content, err := model.NormalizeContent(*patch.Content)
		if err != nil {
			return model.Item{}, err
		}
		patch.Content = &content
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.update(ctx, id, func(model.Item) model.Patch { return patch })
}

// ToggleDone flips the done flag of the todo.
func (r *Repository) ToggleDone(ctx context.Context, id string) (model.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.update(ctx, id, func(cur model.Item) model.Patch {
		done := !cur.Done
		return model.Patch{Done: &done}
	})
}

// update applies the patch derived from the current record. Callers hold mu.
func (r *Repository) update(ctx context.Context, id string, derive func(model.Item) model.Patch) (model.Item, error) {
	items, err := r.store.ReadAll(ctx)
	if err != nil {
		return model.Item{}, fmt.Errorf("update: %w", err)
	}
	i := indexOf(items, id)
	if i < 0 {
		return model.Item{}, &model.NotFoundError{ID: id}
	}

	patch := derive(items[i])
	if patch.Empty() {
		return items[i], nil
	}
	if patch.Content != nil {
		items[i].Content = *patch.Content
	}
	if patch.Done != nil {
		items[i].Done = *patch.Done
	}
	if err := r.store.WriteAll(ctx, items); err != nil {
		return model.Item{}, fmt.Errorf("update: %w", err)
	}
	return items[i], nil
}

// DeleteByID removes the todo. Deleting an unknown id is a NotFoundError.
func (r *Repository) DeleteByID(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	items, err := r.store.ReadAll(ctx)
	if err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	i := indexOf(items, id)
	if i < 0 {
		return &model.NotFoundError{ID: id}
	}
	items = append(items[:i], items[i+1:]...)
	if err := r.store.WriteAll(ctx, items); err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	r.logger.Debug("todo deleted", "id", id)
	return nil
}

// Clear removes every todo.
func (r *Repository) Clear(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.store.Clear(ctx); err != nil {
		return fmt.Errorf("clear: %w", err)
	}
	r.logger.Info("todos cleared")
	return nil
}

// Ping checks that the store can be read.
func (r *Repository) Ping(ctx context.Context) error {
	_, err := r.store.ReadAll(ctx)
	return err
}

func indexOf(items []model.Item, id string) int {
	for i := range items {
		if items[i].ID == id {
			return i
		}
	}
	return -1
}
