package catalog

import (
	"context"
	"testing"

	"github.com/kailas-cloud/shopsight/internal/db"
	"github.com/kailas-cloud/shopsight/internal/domain"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	hsetFn             func(ctx context.Context, key string, fields map[string]string) error
	hsetMultiFn        func(ctx context.Context, items []db.HashSetItem) error
	hgetAllFn          func(ctx context.Context, key string) (map[string]string, error)
	delFn              func(ctx context.Context, key string) error
	scanFn             func(ctx context.Context, pattern string) ([]string, error)
	createIndexFn      func(ctx context.Context, def *db.IndexDefinition) error
	dropIndexFn        func(ctx context.Context, name string) error
	indexExistsFn      func(ctx context.Context, name string) (bool, error)
	searchBM25Fn       func(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error)
	searchFilterFn     func(ctx context.Context, q *db.FilterQuery) (*db.SearchResult, error)
	searchCountFn      func(ctx context.Context, q *db.FilterQuery) (int, error)
	supportsTextSearch bool
}

func (m *mockStore) HSet(ctx context.Context, key string, fields map[string]string) error {
	if m.hsetFn != nil {
		return m.hsetFn(ctx, key, fields)
	}
	return nil
}

func (m *mockStore) HSetMulti(ctx context.Context, items []db.HashSetItem) error {
	if m.hsetMultiFn != nil {
		return m.hsetMultiFn(ctx, items)
	}
	return nil
}

func (m *mockStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	if m.hgetAllFn != nil {
		return m.hgetAllFn(ctx, key)
	}
	return map[string]string{}, nil
}

func (m *mockStore) Del(ctx context.Context, key string) error {
	if m.delFn != nil {
		return m.delFn(ctx, key)
	}
	return nil
}

func (m *mockStore) Scan(ctx context.Context, pattern string) ([]string, error) {
	if m.scanFn != nil {
		return m.scanFn(ctx, pattern)
	}
	return nil, nil
}

func (m *mockStore) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	if m.createIndexFn != nil {
		return m.createIndexFn(ctx, def)
	}
	return nil
}

func (m *mockStore) DropIndex(ctx context.Context, name string) error {
	if m.dropIndexFn != nil {
		return m.dropIndexFn(ctx, name)
	}
	return nil
}

func (m *mockStore) IndexExists(ctx context.Context, name string) (bool, error) {
	if m.indexExistsFn != nil {
		return m.indexExistsFn(ctx, name)
	}
	return false, nil
}

func (m *mockStore) SupportsTextSearch(_ context.Context) bool {
	return m.supportsTextSearch
}

func (m *mockStore) SearchBM25(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error) {
	if m.searchBM25Fn != nil {
		return m.searchBM25Fn(ctx, q)
	}
	return &db.SearchResult{}, nil
}

func (m *mockStore) SearchFilter(ctx context.Context, q *db.FilterQuery) (*db.SearchResult, error) {
	if m.searchFilterFn != nil {
		return m.searchFilterFn(ctx, q)
	}
	return &db.SearchResult{}, nil
}

func (m *mockStore) SearchCount(ctx context.Context, q *db.FilterQuery) (int, error) {
	if m.searchCountFn != nil {
		return m.searchCountFn(ctx, q)
	}
	return 0, nil
}

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{}
	repo := New(ms, Config{KeyPrefix: "shopsight:", Language: "portuguese"})
	return repo, ms
}

// pagedFilter serves entries through SearchFilter honoring Offset and Limit, and records the
// offsets requested.
func pagedFilter(entries []db.SearchEntry, offsets *[]int) func(context.Context, *db.FilterQuery) (*db.SearchResult, error) {
	return func(_ context.Context, q *db.FilterQuery) (*db.SearchResult, error) {
		if offsets != nil {
			*offsets = append(*offsets, q.Offset)
		}
		res := &db.SearchResult{Total: len(entries)}
		if q.Offset < len(entries) {
			res.Entries = entries[q.Offset:min(q.Offset+q.Limit, len(entries))]
		}
		return res, nil
	}
}

func f64(v float64) *float64 { return &v }

func testProduct(id, title, description string) domain.Product {
	return domain.Product{
		ID:          id,
		Title:       title,
		Description: description,
		Category:    "Sala de Estar",
		Type:        "Sofá",
		Price:       2499.9,
		Width:       f64(220),
	}
}

func entry(p domain.Product) db.SearchEntry {
	return db.SearchEntry{Key: "shopsight:product:" + p.ID, Fields: productToHash(p)}
}
