package store

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"
)

// Config selects and configures a backend.
type Config struct {
	Backend string       `yaml:"backend"`
	DataDir string       `yaml:"data_dir"`
	Mongo   MongoConfig  `yaml:"mongo"`
	Badger  BadgerConfig `yaml:"badger"`
}

// MongoConfig locates the document that holds the collection.
type MongoConfig struct {
	URI        string        `yaml:"uri"`
	Database   string        `yaml:"database"`
	Collection string        `yaml:"collection"`
	Timeout    time.Duration `yaml:"timeout"`
}

// BadgerConfig tunes the embedded badger database.
type BadgerConfig struct {
	SyncWrites bool `yaml:"sync_writes"`
	InMemory   bool `yaml:"in_memory"`
}

// DefaultConfig returns the JSON file backend under ./data.
func DefaultConfig() Config {
	return Config{
		Backend: "json",
		DataDir: "./data",
		Mongo: MongoConfig{
			URI:        "mongodb://localhost:27017",
			Database:   "todos",
			Collection: "todos",
			Timeout:    5 * time.Second,
		},
		Badger: BadgerConfig{SyncWrites: true},
	}
}

// Backends lists the names accepted by New.
var Backends = []string{"json", "sqlite", "badger", "mongo", "memory"}

// New creates a Store based on cfg.Backend.
//
// Supported backends:
//
//	"json"   - dataDir/todos.json (default)
//	"sqlite" - SQLite database at dataDir/todos.db
//	"badger" - BadgerDB directory at dataDir/badger
//	"mongo"  - a single document in cfg.Mongo.Database/Collection
//	"memory" - In-memory (ephemeral, for testing)
func New(ctx context.Context, cfg Config, logger *slog.Logger) (Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.Backend {
	case "json", "":
		return NewJsonFileStore(cfg.DataDir)
	case "sqlite":
		return NewSqliteStore(filepath.Join(cfg.DataDir, "todos.db"))
	case "badger":
		return NewBadgerStore(BadgerOptions{
			Path:       filepath.Join(cfg.DataDir, "badger"),
			InMemory:   cfg.Badger.InMemory,
			SyncWrites: cfg.Badger.SyncWrites,
			Logger:     logger.With("component", "badger"),
		})
	case "mongo":
		return NewMongoStore(ctx, cfg.Mongo)
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store backend: %q (supported: %v)", cfg.Backend, Backends)
	}
}
