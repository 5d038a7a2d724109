package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/stevemurr/simple-todo-server/model"
	"github.com/stevemurr/simple-todo-server/schema"
)

// SqliteStore keeps the collection in a single SQLite table.
//
// Table:
//
//	todos(position, id, created_at, content, done)  PRIMARY KEY (position), UNIQUE (id)
//
// created_at is RFC 3339 text with nanoseconds; done is 0/1.
type SqliteStore struct {
	mu sync.RWMutex
	db *sql.DB
}

func NewSqliteStore(dbPath string) (*SqliteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, model.Unavailable("open", err)
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, model.Unavailable("open", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, model.Unavailable("open", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS todos (
		position INTEGER PRIMARY KEY,
		id TEXT NOT NULL UNIQUE,
		created_at TEXT NOT NULL,
		content TEXT NOT NULL,
		done INTEGER NOT NULL CHECK (done IN (0, 1))
	)`); err != nil {
		db.Close()
		return nil, model.Unavailable("open", err)
	}
	return &SqliteStore{db: db}, nil
}

func (s *SqliteStore) Close() error {
	return s.db.Close()
}

func (s *SqliteStore) ReadAll(ctx context.Context) ([]model.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.QueryContext(ctx, "SELECT id, created_at, content, done FROM todos ORDER BY position")
	if err != nil {
		return nil, model.Unavailable("read", err)
	}
	defer rows.Close()
	items := []model.Item{}
	for rows.Next() {
		var (
			it      model.Item
			created string
		)
		if err := rows.Scan(&it.ID, &created, &it.Content, &it.Done); err != nil {
			return nil, model.Unavailable("read", err)
		}
		if it.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return nil, model.Unavailable("decode", fmt.Errorf("row %q: created_at: %w", it.ID, err))
		}
		if err := schema.CheckItem(it); err != nil {
			return nil, model.Unavailable("decode", fmt.Errorf("row %q: %w", it.ID, err))
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, model.Unavailable("read", err)
	}
	return items, nil
}

func (s *SqliteStore) WriteAll(ctx context.Context, items []model.Item) error {
	if err := checkWrite(items); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Unavailable("write", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM todos"); err != nil {
		return model.Unavailable("write", err)
	}
	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO todos (position, id, created_at, content, done) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return model.Unavailable("write", err)
	}
	defer stmt.Close()
	for i, it := range items {
		if _, err := stmt.ExecContext(ctx, i, it.ID, it.CreatedAt.Format(time.RFC3339Nano), it.Content, it.Done); err != nil {
			return model.Unavailable("write", err)
		}
	}
	return model.Unavailable("write", tx.Commit())
}

func (s *SqliteStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, "DELETE FROM todos")
	return model.Unavailable("clear", err)
}
