// Package model defines the todo record and the error vocabulary shared by
// the store, repository and handler packages.
package model

import (
	"strings"
	"time"
)

// MaxContentBytes bounds the length of a todo's text.
const MaxContentBytes = 1000

// Item is a single todo record.
type Item struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	Content   string    `json:"content"`
	Done      bool      `json:"done"`
}

// Patch is a partial update. Nil fields are left untouched.
type Patch struct {
	Content *string
	Done    *bool
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Content == nil && p.Done == nil
}

// Page is one window of a paginated listing.
type Page struct {
	Items []Item `json:"todos"`
	Total int    `json:"total"`
	Pages int    `json:"pages"`
}

// NormalizeContent trims content and checks it is storable.
func NormalizeContent(content string) (string, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return "", &ValidationError{Field: "content", Reason: "must not be empty"}
	}
	if len(trimmed) > MaxContentBytes {
		return "", &ValidationError{Field: "content", Reason: "must be at most 1000 bytes"}
	}
	return trimmed, nil
}
