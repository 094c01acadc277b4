package embedded

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/kailas-cloud/shopsight/internal/db"
)

// CreateIndex records the definition so IndexExists can answer. No secondary index is built.
func (s *Store) CreateIndex(_ context.Context, def *db.IndexDefinition) error {
	if err := def.Validate(); err != nil {
		return err
	}
	raw, err := json.Marshal(def)
	if err != nil {
		return fmt.Errorf("encode index: %w", err)
	}

	err = s.bdb.Update(func(txn *badger.Txn) error {
		key := []byte(indexKeyPrefix + def.Name)
		if _, err := txn.Get(key); err == nil {
			return db.ErrIndexExists
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set(key, raw)
	})
	if errors.Is(err, db.ErrIndexExists) {
		return err
	}
	if err != nil {
		return &db.Error{Op: db.OpCreateIndex, Err: err}
	}
	return nil
}

// DropIndex forgets an index definition.
func (s *Store) DropIndex(_ context.Context, name string) error {
	err := s.bdb.Update(func(txn *badger.Txn) error {
		key := []byte(indexKeyPrefix + name)
		if _, err := txn.Get(key); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return db.ErrIndexNotFound
			}
			return err
		}
		return txn.Delete(key)
	})
	if errors.Is(err, db.ErrIndexNotFound) {
		return err
	}
	if err != nil {
		return &db.Error{Op: db.OpDropIndex, Err: err}
	}
	return nil
}

// IndexExists reports whether a definition was recorded under name.
func (s *Store) IndexExists(ctx context.Context, name string) (bool, error) {
	ok, err := s.Exists(ctx, indexKeyPrefix+name)
	if err != nil {
		return false, &db.Error{Op: db.OpIndexInfo, Err: err}
	}
	return ok, nil
}

// SupportsTextSearch returns false: the embedded store has no query engine.
func (s *Store) SupportsTextSearch(_ context.Context) bool {
	return false
}

// SearchBM25 is not available on the embedded store.
func (s *Store) SearchBM25(_ context.Context, _ *db.TextQuery) (*db.SearchResult, error) {
	return nil, &db.Error{Op: db.OpSearch, Err: db.ErrTextSearchUnsupported}
}

// SearchFilter iterates hashes under q.KeyPrefix in key order and keeps those matching q.Filters.
func (s *Store) SearchFilter(_ context.Context, q *db.FilterQuery) (*db.SearchResult, error) {
	if q.KeyPrefix == "" {
		return nil, fmt.Errorf("key prefix is required")
	}
	if q.Limit <= 0 {
		return nil, fmt.Errorf("limit must be positive")
	}

	res := &db.SearchResult{}
	err := s.iterate(q, func(key string, fields map[string]string) {
		if res.Total >= q.Offset && len(res.Entries) < q.Limit {
			res.Entries = append(res.Entries, db.SearchEntry{
				Key:    key,
				Fields: db.Project(fields, q.ReturnFields),
			})
		}
		res.Total++
	})
	if err != nil {
		return nil, &db.Error{Op: db.OpSearch, Err: err}
	}
	return res, nil
}

// SearchCount counts hashes under q.KeyPrefix matching q.Filters.
func (s *Store) SearchCount(_ context.Context, q *db.FilterQuery) (int, error) {
	if q.KeyPrefix == "" {
		return 0, fmt.Errorf("key prefix is required")
	}
	n := 0
	if err := s.iterate(q, func(string, map[string]string) { n++ }); err != nil {
		return 0, &db.Error{Op: db.OpSearch, Err: err}
	}
	return n, nil
}

func (s *Store) iterate(q *db.FilterQuery, fn func(key string, fields map[string]string)) error {
	prefix := []byte(q.KeyPrefix)
	return s.bdb.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			raw, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			fields := make(map[string]string)
			if err := json.Unmarshal(raw, &fields); err != nil {
				continue // not a hash
			}
			if !q.Filters.Matches(fields) {
				continue
			}
			fn(string(item.KeyCopy(nil)), fields)
		}
		return nil
	})
}
