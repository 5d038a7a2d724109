package repository

import (
	"strings"

	"github.com/stevemurr/simple-todo-server/model"
)

// FilterByContent keeps the items whose content contains query,
// ignoring case. An empty query returns items unchanged. It never touches
// the store; it narrows a page that was already fetched.
func FilterByContent(query string, items []model.Item) []model.Item {
	if query == "" {
		return items
	}
	needle := strings.ToLower(query)
	out := make([]model.Item, 0, len(items))
	for _, it := range items {
		if strings.Contains(strings.ToLower(it.Content), needle) {
			out = append(out, it)
		}
	}
	return out
}
