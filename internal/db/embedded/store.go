// Package embedded implements db.Store on an embedded badger key-value store.
//
// Hashes are stored as JSON objects. There is no query engine: filters are evaluated in-process
// over a key-prefix iteration and full-text search is unsupported.
package embedded

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"

	"github.com/kailas-cloud/shopsight/internal/db"
)

// Compile-time check: Store implements db.Store.
var _ db.Store = (*Store)(nil)

// indexKeyPrefix namespaces stored index definitions away from document keys.
const indexKeyPrefix = "\x00idx:"

// Config holds options for the embedded store.
type Config struct {
	// Path is the badger data directory. Ignored when InMemory is set.
	Path     string
	InMemory bool
	Logger   *zap.Logger
}

// Store implements db.Store on badger.
type Store struct {
	bdb *badger.DB
}

// NewStore opens (or creates) a badger database.
func NewStore(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, fmt.Errorf("path is required unless in-memory")
	}

	opts := badger.DefaultOptions(cfg.Path)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{s: cfg.Logger.Named("badger").Sugar()})
	} else {
		opts = opts.WithLogger(nil)
	}

	bdb, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &Store{bdb: bdb}, nil
}

// Ping reports an error once the database is closed.
func (s *Store) Ping(_ context.Context) error {
	if s.bdb.IsClosed() {
		return errors.New("ping: badger is closed")
	}
	return nil
}

// Close releases the database.
func (s *Store) Close() {
	_ = s.bdb.Close()
}

// WaitForReady returns immediately: an opened embedded store is ready.
func (s *Store) WaitForReady(ctx context.Context, _ time.Duration) error {
	return s.Ping(ctx)
}

// --- hashes ---

// HSet merges fields into the hash at key.
func (s *Store) HSet(_ context.Context, key string, fields map[string]string) error {
	err := s.bdb.Update(func(txn *badger.Txn) error {
		return hset(txn, key, fields)
	})
	if err != nil {
		return &db.Error{Op: db.OpHSet, Err: err}
	}
	return nil
}

// HSetMulti merges several hashes in one transaction.
func (s *Store) HSetMulti(_ context.Context, items []db.HashSetItem) error {
	if len(items) == 0 {
		return nil
	}
	err := s.bdb.Update(func(txn *badger.Txn) error {
		for _, item := range items {
			if err := hset(txn, item.Key, item.Fields); err != nil {
				return fmt.Errorf("key %s: %w", item.Key, err)
			}
		}
		return nil
	})
	if err != nil {
		return &db.Error{Op: db.OpHSet, Err: err}
	}
	return nil
}

// HGetAll returns all fields of a hash; a missing key yields an empty map.
func (s *Store) HGetAll(_ context.Context, key string) (map[string]string, error) {
	var out map[string]string
	err := s.bdb.View(func(txn *badger.Txn) error {
		m, err := hget(txn, key)
		out = m
		return err
	})
	if err != nil {
		return nil, &db.Error{Op: db.OpHGetAll, Err: err}
	}
	return out, nil
}

// HGetAllMulti fetches several hashes from one read transaction.
func (s *Store) HGetAllMulti(_ context.Context, keys []string) ([]map[string]string, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	out := make([]map[string]string, len(keys))
	err := s.bdb.View(func(txn *badger.Txn) error {
		for i, key := range keys {
			m, err := hget(txn, key)
			if err != nil {
				return fmt.Errorf("key %s: %w", key, err)
			}
			out[i] = m
		}
		return nil
	})
	if err != nil {
		return nil, &db.Error{Op: db.OpHGetAll, Err: err}
	}
	return out, nil
}

// Del deletes a key. Deleting a missing key is not an error.
func (s *Store) Del(_ context.Context, key string) error {
	err := s.bdb.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err != nil {
		return &db.Error{Op: db.OpDel, Err: err}
	}
	return nil
}

// Exists checks if a key exists.
func (s *Store) Exists(_ context.Context, key string) (bool, error) {
	found := false
	err := s.bdb.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	if err != nil {
		return false, &db.Error{Op: db.OpExists, Err: err}
	}
	return found, nil
}

// Scan returns keys matching a glob pattern in key order. The literal part before the first
// wildcard is used as an iteration prefix; path.Match semantics apply to the rest.
func (s *Store) Scan(_ context.Context, pattern string) ([]string, error) {
	prefix := pattern
	if i := strings.IndexAny(pattern, "*?["); i >= 0 {
		prefix = pattern[:i]
	}

	var keys []string
	err := s.bdb.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)); it.Next() {
			key := string(it.Item().KeyCopy(nil))
			if strings.HasPrefix(key, indexKeyPrefix) {
				continue
			}
			ok, err := path.Match(pattern, key)
			if err != nil {
				return fmt.Errorf("bad pattern %q: %w", pattern, err)
			}
			if ok {
				keys = append(keys, key)
			}
		}
		return nil
	})
	if err != nil {
		return nil, &db.Error{Op: db.OpScan, Err: err}
	}
	return keys, nil
}

func hget(txn *badger.Txn, key string) (map[string]string, error) {
	item, err := txn.Get([]byte(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, err
	}
	raw, err := item.ValueCopy(nil)
	if err != nil {
		return nil, err
	}
	m := make(map[string]string)
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("decode hash: %w", err)
	}
	return m, nil
}

func hset(txn *badger.Txn, key string, fields map[string]string) error {
	current, err := hget(txn, key)
	if err != nil {
		return err
	}
	for k, v := range fields {
		current[k] = v
	}
	raw, err := json.Marshal(current)
	if err != nil {
		return fmt.Errorf("encode hash: %w", err)
	}
	return txn.Set([]byte(key), raw)
}

// badgerLogger adapts zap to badger.Logger.
type badgerLogger struct {
	s *zap.SugaredLogger
}

func (l *badgerLogger) Errorf(f string, v ...any)   { l.s.Errorf(strings.TrimSpace(f), v...) }
func (l *badgerLogger) Warningf(f string, v ...any) { l.s.Warnf(strings.TrimSpace(f), v...) }
func (l *badgerLogger) Infof(f string, v ...any)    { l.s.Debugf(strings.TrimSpace(f), v...) }
func (l *badgerLogger) Debugf(f string, v ...any)   { l.s.Debugf(strings.TrimSpace(f), v...) }
