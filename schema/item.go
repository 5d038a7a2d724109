package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/stevemurr/simple-todo-server/model"
)

// ItemSchema describes one persisted todo record.
var ItemSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"id":        map[string]any{"type": "string", "minLength": 1},
		"createdAt": map[string]any{"type": "string", "format": "date-time"},
		"content":   map[string]any{"type": "string", "minLength": 1, "maxLength": model.MaxContentBytes, "pattern": `\S`},
		"done":      map[string]any{"type": "boolean"},
	},
	"required":             []any{"id", "createdAt", "content", "done"},
	"additionalProperties": false,
}

// CollectionSchema describes the JSON file layout: {"todos": [...]}.
var CollectionSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"todos": map[string]any{"type": "array", "items": ItemSchema},
	},
	"required": []any{"todos"},
}

// DecodeItem validates raw against ItemSchema and decodes it.
func DecodeItem(raw []byte) (model.Item, error) {
	var doc any
	if err := unmarshal(raw, &doc); err != nil {
		return model.Item{}, err
	}
	if err := Validate(ItemSchema, doc); err != nil {
		return model.Item{}, err
	}
	var item model.Item
	if err := json.Unmarshal(raw, &item); err != nil {
		return model.Item{}, err
	}
	return item, nil
}

// CheckItem validates a record read from a typed medium (SQL row, BSON
// document) against ItemSchema, so every backend rejects the same records.
func CheckItem(item model.Item) error {
	raw, err := json.Marshal(item)
	if err != nil {
		return err
	}
	var doc any
	if err := unmarshal(raw, &doc); err != nil {
		return err
	}
	return Validate(ItemSchema, doc)
}

// DecodeCollection validates raw against CollectionSchema and decodes the
// records in stored order. Duplicate ids are rejected.
func DecodeCollection(raw []byte) ([]model.Item, error) {
	var doc any
	if err := unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	if err := Validate(CollectionSchema, doc); err != nil {
		return nil, err
	}
	var wrapper struct {
		Todos []model.Item `json:"todos"`
	}
	if err := json.Unmarshal(raw, &wrapper); err != nil {
		return nil, err
	}
	if err := CheckUnique(wrapper.Todos); err != nil {
		return nil, err
	}
	if wrapper.Todos == nil {
		wrapper.Todos = []model.Item{}
	}
	return wrapper.Todos, nil
}

// CheckUnique rejects collections in which two records share an id.
func CheckUnique(items []model.Item) error {
	seen := make(map[string]int, len(items))
	for i, it := range items {
		if j, dup := seen[it.ID]; dup {
			return &Error{Path: fmt.Sprintf("$.todos[%d].id", i), Reason: fmt.Sprintf("duplicates id of $.todos[%d]", j)}
		}
		seen[it.ID] = i
	}
	return nil
}

func unmarshal(raw []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if _, err := dec.Token(); err != io.EOF {
		return errors.New("unexpected data after JSON document")
	}
	return nil
}
