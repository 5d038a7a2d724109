package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/dgraph-io/badger/v4"

	"github.com/stevemurr/simple-todo-server/model"
	"github.com/stevemurr/simple-todo-server/schema"
)

// badgerPrefix namespaces item keys; the suffix is the zero-padded stored
// position so that badger's key order is insertion order.
const badgerPrefix = "todo/"

// BadgerOptions configures NewBadgerStore.
type BadgerOptions struct {
	// Path is the database directory. Ignored when InMemory is true.
	Path string

	// InMemory keeps everything in RAM. Useful for testing.
	InMemory bool

	// SyncWrites fsyncs every commit.
	SyncWrites bool

	// Logger receives badger's internal messages. Nil silences them.
	Logger *slog.Logger
}

// BadgerStore keeps one key per item in an embedded BadgerDB. WriteAll runs
// in a single transaction, so readers see either the old or the new
// collection.
type BadgerStore struct {
	db *badger.DB
}

// badgerLogger adapts slog.Logger to badger.Logger.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func NewBadgerStore(opts BadgerOptions) (*BadgerStore, error) {
	if !opts.InMemory && opts.Path == "" {
		return nil, errors.New("badger: path is required for persistent database")
	}

	var bo badger.Options
	if opts.InMemory {
		bo = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(opts.Path, 0o750); err != nil {
			return nil, model.Unavailable("open", err)
		}
		bo = badger.DefaultOptions(opts.Path)
	}
	bo = bo.WithSyncWrites(opts.SyncWrites).WithNumVersionsToKeep(1)
	if opts.Logger != nil {
		bo = bo.WithLogger(&badgerLogger{logger: opts.Logger})
	} else {
		bo = bo.WithLogger(nil)
	}

	db, err := badger.Open(bo)
	if err != nil {
		return nil, model.Unavailable("open", err)
	}
	return &BadgerStore{db: db}, nil
}

// DB exposes the underlying database.
func (s *BadgerStore) DB() *badger.DB {
	return s.db
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}

func badgerKey(pos int) []byte {
	return []byte(fmt.Sprintf("%s%016d", badgerPrefix, pos))
}

func (s *BadgerStore) ReadAll(_ context.Context) ([]model.Item, error) {
	items := []model.Item{}
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(badgerPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			entry := it.Item()
			raw, err := entry.ValueCopy(nil)
			if err != nil {
				return err
			}
			item, err := schema.DecodeItem(raw)
			if err != nil {
				return fmt.Errorf("key %s: %w", entry.Key(), err)
			}
			items = append(items, item)
		}
		return nil
	})
	if err != nil {
		return nil, model.Unavailable("read", err)
	}
	if err := schema.CheckUnique(items); err != nil {
		return nil, model.Unavailable("decode", err)
	}
	return items, nil
}

func (s *BadgerStore) WriteAll(_ context.Context, items []model.Item) error {
	if err := checkWrite(items); err != nil {
		return err
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		if err := deletePrefix(txn); err != nil {
			return err
		}
		for i, item := range items {
			raw, err := json.Marshal(item)
			if err != nil {
				return err
			}
			if err := txn.Set(badgerKey(i), raw); err != nil {
				return err
			}
		}
		return nil
	})
	return model.Unavailable("write", err)
}

func (s *BadgerStore) Clear(_ context.Context) error {
	return model.Unavailable("clear", s.db.Update(deletePrefix))
}

func deletePrefix(txn *badger.Txn) error {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)
	var keys [][]byte
	prefix := []byte(badgerPrefix)
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}
	it.Close()
	for _, k := range keys {
		if err := txn.Delete(k); err != nil {
			return err
		}
	}
	return nil
}
