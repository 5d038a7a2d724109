// Package store defines the backing store interface and implementations.
package store

import (
	"context"
	"fmt"

	"github.com/stevemurr/simple-todo-server/model"
	"github.com/stevemurr/simple-todo-server/schema"
)

// Store persists the todo collection as a whole. Implementations never
// expose a half-written collection to ReadAll, and wrap medium failures in
// *model.StoreUnavailableError.
//
// A payload that is present but does not match the item schema is reported
// as unavailable rather than read as empty.
type Store interface {
	// ReadAll returns every item in stored (insertion) order. An empty or
	// missing medium yields an empty slice.
	ReadAll(ctx context.Context) ([]model.Item, error)

	// WriteAll atomically replaces the collection with items.
	WriteAll(ctx context.Context, items []model.Item) error

	// Clear empties the collection.
	Clear(ctx context.Context) error

	// Close releases the medium.
	Close() error
}

func cloneItems(items []model.Item) []model.Item {
	out := make([]model.Item, len(items))
	copy(out, items)
	return out
}

// checkWrite refuses collections that would break id uniqueness.
func checkWrite(items []model.Item) error {
	if err := schema.CheckUnique(items); err != nil {
		return fmt.Errorf("store write: %w", err)
	}
	return nil
}
