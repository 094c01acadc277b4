package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/kailas-cloud/shopsight/internal/db"
	"github.com/kailas-cloud/shopsight/internal/domain"
	"github.com/kailas-cloud/shopsight/internal/domain/filter"
)

// --- EnsureIndex ---

func TestEnsureIndex_Creates(t *testing.T) {
	repo, ms := newTestRepo(t)

	var got *db.IndexDefinition
	ms.createIndexFn = func(_ context.Context, def *db.IndexDefinition) error {
		got = def
		return nil
	}

	created, err := repo.EnsureIndex(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !created {
		t.Error("expected index to be created")
	}
	if got == nil || got.Name != "shopsight:catalog:idx" {
		t.Fatalf("unexpected index definition: %+v", got)
	}
	if len(got.Prefixes) != 1 || got.Prefixes[0] != "shopsight:product:" {
		t.Errorf("unexpected prefixes: %v", got.Prefixes)
	}
	if got.Language != "portuguese" {
		t.Errorf("expected portuguese stemming, got %q", got.Language)
	}
	if !got.HasTextFields() {
		t.Error("expected TEXT fields in catalog index")
	}
}

func TestEnsureIndex_AlreadyPresent(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.indexExistsFn = func(_ context.Context, _ string) (bool, error) { return true, nil }
	ms.createIndexFn = func(_ context.Context, _ *db.IndexDefinition) error {
		t.Fatal("CreateIndex must not be called")
		return nil
	}

	created, err := repo.EnsureIndex(context.Background())
	if err != nil || created {
		t.Fatalf("expected (false, nil), got (%v, %v)", created, err)
	}
}

func TestEnsureIndex_RaceOnCreate(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.createIndexFn = func(_ context.Context, _ *db.IndexDefinition) error { return db.ErrIndexExists }

	created, err := repo.EnsureIndex(context.Background())
	if err != nil || created {
		t.Fatalf("expected (false, nil), got (%v, %v)", created, err)
	}
}

func TestRebuildIndex_IgnoresMissing(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.dropIndexFn = func(_ context.Context, _ string) error { return db.ErrIndexNotFound }

	var createCalled bool
	ms.createIndexFn = func(_ context.Context, _ *db.IndexDefinition) error {
		createCalled = true
		return nil
	}

	if err := repo.RebuildIndex(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !createCalled {
		t.Error("expected CreateIndex after drop")
	}
}

func TestRebuildIndex_DropError(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.dropIndexFn = func(_ context.Context, _ string) error { return errors.New("connection reset") }

	if err := repo.RebuildIndex(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

// --- Upsert ---

func TestUpsert_WritesHash(t *testing.T) {
	repo, ms := newTestRepo(t)
	p := testProduct("p1", "Sofá Minimalista Velvet", "Sofá em veludo")

	var key string
	var fields map[string]string
	ms.hsetFn = func(_ context.Context, k string, f map[string]string) error {
		key, fields = k, f
		return nil
	}

	if err := repo.Upsert(context.Background(), p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key != "shopsight:product:p1" {
		t.Errorf("unexpected key: %s", key)
	}
	if fields["price"] != "2499.9" || fields["width"] != "220" {
		t.Errorf("unexpected numeric fields: %v", fields)
	}
	if _, ok := fields["height"]; ok {
		t.Error("absent dimension must not be written")
	}
}

func TestUpsert_RejectsInvalid(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.hsetFn = func(_ context.Context, _ string, _ map[string]string) error {
		t.Fatal("HSet must not be called for an invalid product")
		return nil
	}

	err := repo.Upsert(context.Background(), domain.Product{ID: "p1"})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestUpsertMany_ValidatesBeforeWriting(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.hsetMultiFn = func(_ context.Context, _ []db.HashSetItem) error {
		t.Fatal("HSetMulti must not be called when any product is invalid")
		return nil
	}

	products := []domain.Product{
		testProduct("p1", "Sofá", ""),
		{ID: "p2", Title: "Mesa"},
	}
	if err := repo.UpsertMany(context.Background(), products); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestUpsertMany_Pipelines(t *testing.T) {
	repo, ms := newTestRepo(t)

	var n int
	ms.hsetMultiFn = func(_ context.Context, items []db.HashSetItem) error {
		n = len(items)
		return nil
	}

	products := []domain.Product{testProduct("p1", "Sofá", ""), testProduct("p2", "Poltrona", "")}
	if err := repo.UpsertMany(context.Background(), products); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 items, got %d", n)
	}
}

// --- Point queries ---

func TestFindByID(t *testing.T) {
	repo, ms := newTestRepo(t)
	p := testProduct("p1", "Sofá Minimalista Velvet", "")
	ms.hgetAllFn = func(_ context.Context, key string) (map[string]string, error) {
		if key != "shopsight:product:p1" {
			return map[string]string{}, nil
		}
		return productToHash(p), nil
	}

	got, err := repo.FindByID(context.Background(), "p1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Title != p.Title || got.Width == nil || *got.Width != 220 {
		t.Errorf("unexpected product: %+v", got)
	}

	_, err = repo.FindByID(context.Background(), "missing")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFindByTitle_IgnoresCase(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.searchFilterFn = func(_ context.Context, _ *db.FilterQuery) (*db.SearchResult, error) {
		return &db.SearchResult{Total: 2, Entries: []db.SearchEntry{
			entry(testProduct("p1", "Poltrona Eames", "")),
			entry(testProduct("p2", "Sofá Minimalista Velvet", "")),
		}}, nil
	}

	got, err := repo.FindByTitle(context.Background(), "sofá minimalista velvet")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != "p2" {
		t.Errorf("expected p2, got %s", got.ID)
	}

	if _, err := repo.FindByTitle(context.Background(), "Mesa"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

// --- Count ---

func TestCount_FallsBackToScan(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.searchCountFn = func(_ context.Context, _ *db.FilterQuery) (int, error) {
		return 0, db.ErrIndexNotFound
	}
	ms.scanFn = func(_ context.Context, pattern string) ([]string, error) {
		if pattern != "shopsight:product:*" {
			t.Errorf("unexpected pattern: %s", pattern)
		}
		return []string{"a", "b", "c"}, nil
	}

	n, err := repo.Count(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3, got %d", n)
	}
}

// --- SearchText ---

func TestSearchText_Unsupported(t *testing.T) {
	repo, _ := newTestRepo(t)

	_, err := repo.SearchText(context.Background(), []string{"veludo"}, 10)
	if !errors.Is(err, domain.ErrTextSearchUnavailable) {
		t.Fatalf("expected ErrTextSearchUnavailable, got %v", err)
	}
}

func TestSearchText_MissingIndexIsSoft(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.supportsTextSearch = true
	ms.searchBM25Fn = func(_ context.Context, _ *db.TextQuery) (*db.SearchResult, error) {
		return nil, &db.Error{Op: db.OpSearch, Err: db.ErrIndexNotFound}
	}

	_, err := repo.SearchText(context.Background(), []string{"veludo"}, 10)
	if !errors.Is(err, domain.ErrTextSearchUnavailable) {
		t.Fatalf("expected ErrTextSearchUnavailable, got %v", err)
	}
}

func TestSearchText_OtherErrorsAreHard(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.supportsTextSearch = true
	ms.searchBM25Fn = func(_ context.Context, _ *db.TextQuery) (*db.SearchResult, error) {
		return nil, errors.New("i/o timeout")
	}

	_, err := repo.SearchText(context.Background(), []string{"veludo"}, 10)
	if err == nil || errors.Is(err, domain.ErrTextSearchUnavailable) {
		t.Fatalf("expected hard error, got %v", err)
	}
}

func TestSearchText_QueryShape(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.supportsTextSearch = true

	var got *db.TextQuery
	ms.searchBM25Fn = func(_ context.Context, q *db.TextQuery) (*db.SearchResult, error) {
		got = q
		return &db.SearchResult{Total: 1, Entries: []db.SearchEntry{
			entry(testProduct("p1", "Sofá Minimalista Velvet", "veludo azul")),
		}}, nil
	}

	products, err := repo.SearchText(context.Background(), []string{"veludo", "azul"}, 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(products) != 1 || products[0].ID != "p1" {
		t.Fatalf("unexpected products: %+v", products)
	}
	if got.TopK != 7 || len(got.Terms) != 2 || len(got.Fields) != 2 {
		t.Errorf("unexpected query: %+v", got)
	}
}

// --- Find ---

func TestFind_KeywordContains(t *testing.T) {
	repo, ms := newTestRepo(t)

	var gotFilter filter.Expression
	ms.searchFilterFn = func(_ context.Context, q *db.FilterQuery) (*db.SearchResult, error) {
		gotFilter = q.Filters
		return &db.SearchResult{Total: 3, Entries: []db.SearchEntry{
			entry(testProduct("p1", "Sofá Minimalista Velvet", "Estrutura em madeira")),
			entry(testProduct("p2", "Sofá Retrátil", "Tecido de VELUDO cinza")),
			entry(testProduct("p3", "Sofá de Couro", "Couro legítimo")),
		}}, nil
	}

	must, _ := filter.NewMatch("category", "Sala de Estar")
	expr, _ := filter.NewExpression([]filter.Condition{must}, nil, nil)

	products, err := repo.Find(context.Background(), domain.ProductQuery{
		Filter:   expr,
		Keywords: []string{"velvet", "veludo"},
		Limit:    10,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(products) != 2 || products[0].ID != "p1" || products[1].ID != "p2" {
		t.Fatalf("unexpected products: %+v", products)
	}
	if len(gotFilter.Must()) != 1 {
		t.Errorf("expected filter to reach the store, got %s", gotFilter)
	}
}

func TestFind_CapsAtLimit(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.searchFilterFn = func(_ context.Context, _ *db.FilterQuery) (*db.SearchResult, error) {
		return &db.SearchResult{Total: 3, Entries: []db.SearchEntry{
			entry(testProduct("p1", "A", "")),
			entry(testProduct("p2", "B", "")),
			entry(testProduct("p3", "C", "")),
		}}, nil
	}

	products, err := repo.Find(context.Background(), domain.ProductQuery{Limit: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(products) != 2 {
		t.Errorf("expected 2 products, got %d", len(products))
	}
}

func TestFind_DropsInvalidDocuments(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.searchFilterFn = func(_ context.Context, _ *db.FilterQuery) (*db.SearchResult, error) {
		return &db.SearchResult{Total: 3, Entries: []db.SearchEntry{
			{Key: "shopsight:product:bad1", Fields: map[string]string{"title": "Sem categoria"}},
			{Key: "shopsight:product:bad2", Fields: map[string]string{
				"title": "Preço quebrado", "category": "Quarto", "type": "Cama", "price": "abc",
			}},
			entry(testProduct("p1", "Sofá", "")),
		}}, nil
	}

	products, err := repo.Find(context.Background(), domain.ProductQuery{Limit: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(products) != 1 || products[0].ID != "p1" {
		t.Fatalf("expected only p1, got %+v", products)
	}
}

func TestFind_StoreError(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.searchFilterFn = func(_ context.Context, _ *db.FilterQuery) (*db.SearchResult, error) {
		return nil, errors.New("connection refused")
	}

	if _, err := repo.Find(context.Background(), domain.ProductQuery{Limit: 10}); err == nil {
		t.Fatal("expected error")
	}
}

func TestFind_WalksPastPoolSize(t *testing.T) {
	ms := &mockStore{}
	repo := New(ms, Config{KeyPrefix: "shopsight:", PoolSize: 2})

	var offsets []int
	ms.searchFilterFn = pagedFilter([]db.SearchEntry{
		entry(testProduct("p1", "Mesa", "madeira")),
		entry(testProduct("p2", "Cadeira", "metal")),
		entry(testProduct("p3", "Estante", "mdf")),
		entry(testProduct("p4", "Sofá Velvet", "veludo cinza")),
		entry(testProduct("p5", "Poltrona", "veludo azul")),
	}, &offsets)

	products, err := repo.Find(context.Background(), domain.ProductQuery{
		Keywords: []string{"veludo"},
		Limit:    1,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(products) != 1 || products[0].ID != "p4" {
		t.Fatalf("expected p4, got %+v", products)
	}
	if len(offsets) != 2 || offsets[0] != 0 || offsets[1] != 2 {
		t.Errorf("expected pages at offsets [0 2], got %v", offsets)
	}
}

func TestFind_StopsWhenMatchesRunOut(t *testing.T) {
	ms := &mockStore{}
	repo := New(ms, Config{KeyPrefix: "shopsight:", PoolSize: 2})

	var offsets []int
	ms.searchFilterFn = pagedFilter([]db.SearchEntry{
		entry(testProduct("p1", "Mesa", "madeira")),
		entry(testProduct("p2", "Cadeira", "metal")),
	}, &offsets)

	products, err := repo.Find(context.Background(), domain.ProductQuery{
		Keywords: []string{"veludo"},
		Limit:    10,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(products) != 0 {
		t.Fatalf("expected no products, got %+v", products)
	}
	if len(offsets) != 1 {
		t.Errorf("expected a single page, got offsets %v", offsets)
	}
}

func TestFindByTitle_SearchesEveryPage(t *testing.T) {
	ms := &mockStore{}
	repo := New(ms, Config{KeyPrefix: "shopsight:", PoolSize: 1})
	ms.searchFilterFn = pagedFilter([]db.SearchEntry{
		entry(testProduct("p1", "Poltrona Eames", "")),
		entry(testProduct("p2", "Mesa de Centro", "")),
		entry(testProduct("p3", "Sofá Minimalista Velvet", "")),
	}, nil)

	got, err := repo.FindByTitle(context.Background(), "  Sofá Minimalista Velvet ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != "p3" {
		t.Errorf("expected p3, got %s", got.ID)
	}
}

// --- Delete ---

func TestDelete(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.hgetAllFn = func(_ context.Context, _ string) (map[string]string, error) {
		return productToHash(testProduct("p1", "Sofá", "")), nil
	}
	var deleted string
	ms.delFn = func(_ context.Context, key string) error {
		deleted = key
		return nil
	}

	if err := repo.Delete(context.Background(), "p1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deleted != "shopsight:product:p1" {
		t.Errorf("unexpected key: %s", deleted)
	}
}

func TestDelete_NotFound(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.delFn = func(_ context.Context, _ string) error {
		t.Fatal("del must not run for a missing product")
		return nil
	}

	if err := repo.Delete(context.Background(), "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

// --- List ---

func TestList_BuildsFilter(t *testing.T) {
	repo, ms := newTestRepo(t)

	var got *db.FilterQuery
	ms.searchFilterFn = func(_ context.Context, q *db.FilterQuery) (*db.SearchResult, error) {
		got = q
		return &db.SearchResult{Total: 7, Entries: []db.SearchEntry{
			entry(testProduct("p1", "Sofá", "")),
		}}, nil
	}

	products, total, err := repo.List(context.Background(), ListFilter{
		Category:     "Sala de Estar",
		ExcludeTypes: []string{"Poltrona"},
		MinPrice:     f64(100),
		MaxPrice:     f64(3000),
		Offset:       5,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(products) != 1 || total != 7 {
		t.Fatalf("unexpected page: %d products, total %d", len(products), total)
	}
	if got.Offset != 5 || got.Limit != defaultListLimit {
		t.Errorf("unexpected paging: offset %d limit %d", got.Offset, got.Limit)
	}

	must := got.Filters.Must()
	if len(must) != 2 || !must[1].IsRange() {
		t.Fatalf("expected category match and price range, got %s", got.Filters)
	}
	rng := must[1].Range()
	if *rng.GTE() != 100 || *rng.LTE() != 3000 {
		t.Errorf("unexpected range: %s", rng)
	}
	if len(got.Filters.MustNot()) != 1 || got.Filters.MustNot()[0].Match() != "Poltrona" {
		t.Errorf("expected excluded type, got %s", got.Filters)
	}
}

func TestList_RejectsInvertedPriceRange(t *testing.T) {
	repo, _ := newTestRepo(t)

	_, _, err := repo.List(context.Background(), ListFilter{MinPrice: f64(500), MaxPrice: f64(100)})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}
