package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/stevemurr/simple-todo-server/model"
	"github.com/stevemurr/simple-todo-server/schema"
)

const jsonFileName = "todos.json"

// JsonFileStore keeps the collection in a single JSON file.
//
// Layout:
//
//	data_dir/
//	  todos.json   # {"todos": [ ...items in insertion order... ]}
//
// Writes go to a temporary file in the same directory which is synced and
// renamed over todos.json, so a reader sees either the old or the new file.
type JsonFileStore struct {
	mu   sync.RWMutex
	dir  string
	path string
}

func NewJsonFileStore(dir string) (*JsonFileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, model.Unavailable("open", err)
	}
	return &JsonFileStore{dir: dir, path: filepath.Join(dir, jsonFileName)}, nil
}

// Path returns the location of the collection file.
func (s *JsonFileStore) Path() string { return s.path }

func (s *JsonFileStore) ReadAll(_ context.Context) ([]model.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []model.Item{}, nil
		}
		return nil, model.Unavailable("read", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return []model.Item{}, nil
	}
	items, err := schema.DecodeCollection(data)
	if err != nil {
		return nil, model.Unavailable("decode "+s.path, err)
	}
	return items, nil
}

func (s *JsonFileStore) WriteAll(_ context.Context, items []model.Item) error {
	if err := checkWrite(items); err != nil {
		return err
	}
	if items == nil {
		items = []model.Item{}
	}
	b, err := json.MarshalIndent(struct {
		Todos []model.Item `json:"todos"`
	}{items}, "", "  ")
	if err != nil {
		return model.Unavailable("encode", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return model.Unavailable("write", s.replaceFile(b))
}

func (s *JsonFileStore) Clear(ctx context.Context) error {
	return s.WriteAll(ctx, nil)
}

func (s *JsonFileStore) Close() error { return nil }

func (s *JsonFileStore) replaceFile(data []byte) error {
	tmp, err := os.CreateTemp(s.dir, "."+jsonFileName+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return err
	}
	committed = true
	return nil
}
