package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/shopsight/internal/db"
	"github.com/kailas-cloud/shopsight/internal/domain"
	"github.com/kailas-cloud/shopsight/internal/logger"
)

// store is the consumer interface for the catalog (ISP).
//
//nolint:interfacebloat // catalog repo needs hash, index and search operations
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	Del(ctx context.Context, key string) error
	Scan(ctx context.Context, pattern string) ([]string, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	DropIndex(ctx context.Context, name string) error
	IndexExists(ctx context.Context, name string) (bool, error)
	SupportsTextSearch(ctx context.Context) bool
	SearchBM25(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error)
	SearchFilter(ctx context.Context, q *db.FilterQuery) (*db.SearchResult, error)
	SearchCount(ctx context.Context, q *db.FilterQuery) (int, error)
}

// Config holds repository settings.
type Config struct {
	// KeyPrefix namespaces every key (e.g. "shopsight:").
	KeyPrefix string
	// PoolSize is the page size used when walking filter matches.
	PoolSize int
	// Language is the FT index stemming language.
	Language string
}

// Repo is the product catalog backed by db.Store.
type Repo struct {
	store     store
	keyPrefix string
	poolSize  int
	language  string
}

// New creates a catalog repository.
func New(s store, cfg Config) *Repo {
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = 1000
	}
	return &Repo{
		store:     s,
		keyPrefix: cfg.KeyPrefix,
		poolSize:  cfg.PoolSize,
		language:  cfg.Language,
	}
}

// EnsureIndex creates the catalog index if missing. Reports whether it was created.
func (r *Repo) EnsureIndex(ctx context.Context) (bool, error) {
	exists, err := r.store.IndexExists(ctx, r.indexName())
	if err != nil {
		return false, fmt.Errorf("check index: %w", err)
	}
	if exists {
		return false, nil
	}
	if err := r.store.CreateIndex(ctx, r.buildIndex()); err != nil {
		if errors.Is(err, db.ErrIndexExists) {
			return false, nil
		}
		return false, fmt.Errorf("create index: %w", err)
	}
	return true, nil
}

// RebuildIndex drops and recreates the catalog index. Documents are kept.
func (r *Repo) RebuildIndex(ctx context.Context) error {
	if err := r.store.DropIndex(ctx, r.indexName()); err != nil && !errors.Is(err, db.ErrIndexNotFound) {
		return fmt.Errorf("drop index: %w", err)
	}
	if err := r.store.CreateIndex(ctx, r.buildIndex()); err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	return nil
}

// Upsert validates and stores a product.
func (r *Repo) Upsert(ctx context.Context, p domain.Product) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if err := r.store.HSet(ctx, r.productKey(p.ID), productToHash(p)); err != nil {
		return fmt.Errorf("hset product %s: %w", p.ID, err)
	}
	return nil
}

// UpsertMany validates every product first and then stores them in one pipeline.
func (r *Repo) UpsertMany(ctx context.Context, products []domain.Product) error {
	items := make([]db.HashSetItem, 0, len(products))
	for i := range products {
		if err := products[i].Validate(); err != nil {
			return fmt.Errorf("product %d (%s): %w", i, products[i].ID, err)
		}
		items = append(items, db.HashSetItem{
			Key:    r.productKey(products[i].ID),
			Fields: productToHash(products[i]),
		})
	}
	if err := r.store.HSetMulti(ctx, items); err != nil {
		return fmt.Errorf("hset products: %w", err)
	}
	return nil
}

// FindByID returns a product by id.
func (r *Repo) FindByID(ctx context.Context, id string) (domain.Product, error) {
	m, err := r.store.HGetAll(ctx, r.productKey(id))
	if err != nil {
		return domain.Product{}, fmt.Errorf("hgetall product %s: %w", id, err)
	}
	if len(m) == 0 {
		return domain.Product{}, domain.ErrNotFound
	}
	p, err := productFromHash(m, id)
	if err != nil {
		return domain.Product{}, fmt.Errorf("decode product %s: %w", id, err)
	}
	return p, nil
}

// FindByTitle returns the first product whose title equals title, ignoring case.
func (r *Repo) FindByTitle(ctx context.Context, title string) (domain.Product, error) {
	title = strings.TrimSpace(title)

	var (
		found domain.Product
		ok    bool
	)
	err := r.walk(ctx, db.FilterQuery{}, func(p domain.Product) bool {
		if strings.EqualFold(p.Title, title) {
			found, ok = p, true
		}
		return !ok
	})
	if err != nil {
		return domain.Product{}, err
	}
	if !ok {
		return domain.Product{}, domain.ErrNotFound
	}
	return found, nil
}

// Delete removes a product by id.
func (r *Repo) Delete(ctx context.Context, id string) error {
	if _, err := r.FindByID(ctx, id); err != nil {
		return err
	}
	if err := r.store.Del(ctx, r.productKey(id)); err != nil {
		return fmt.Errorf("del product %s: %w", id, err)
	}
	return nil
}

// Count returns the number of stored products. Falls back to a key scan when the index is
// unavailable.
func (r *Repo) Count(ctx context.Context) (int, error) {
	n, err := r.store.SearchCount(ctx, &db.FilterQuery{
		IndexName: r.indexName(),
		KeyPrefix: r.productPrefix(),
	})
	if err == nil {
		return n, nil
	}
	logger.FromContext(ctx).Debug("catalog count via index failed, scanning keys", zap.Error(err))

	keys, scanErr := r.store.Scan(ctx, r.productPrefix()+"*")
	if scanErr != nil {
		return 0, fmt.Errorf("count products: %w", errors.Join(err, scanErr))
	}
	return len(keys), nil
}

// SearchText runs a BM25 keyword search over title and description. Fails with
// domain.ErrTextSearchUnavailable when the driver or index cannot serve it.
func (r *Repo) SearchText(ctx context.Context, keywords []string, limit int) ([]domain.Product, error) {
	if !r.store.SupportsTextSearch(ctx) {
		return nil, domain.ErrTextSearchUnavailable
	}

	sr, err := r.store.SearchBM25(ctx, &db.TextQuery{
		IndexName:    r.indexName(),
		Terms:        keywords,
		Fields:       textFields,
		TopK:         limit,
		ReturnFields: returnFields,
	})
	if err != nil {
		if errors.Is(err, db.ErrIndexNotFound) || errors.Is(err, db.ErrTextSearchUnsupported) {
			return nil, fmt.Errorf("%w: %w", domain.ErrTextSearchUnavailable, err)
		}
		return nil, fmt.Errorf("search text: %w", err)
	}
	return r.decode(ctx, sr), nil
}

// Find runs an exact-field filter query and keeps products containing any of q.Keywords
// (case-insensitive substring of title or description). Filter matches are walked page by page
// until q.Limit products are kept or the matches run out.
func (r *Repo) Find(ctx context.Context, q domain.ProductQuery) ([]domain.Product, error) {
	needles := lowerAll(q.Keywords)
	out := make([]domain.Product, 0, min(r.poolSize, max(q.Limit, 0)))

	err := r.walk(ctx, db.FilterQuery{Filters: q.Filter}, func(p domain.Product) bool {
		if len(needles) > 0 && !containsAny(p, needles) {
			return true
		}
		out = append(out, p)
		return q.Limit <= 0 || len(out) < q.Limit
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// List returns one page of products matching f, plus the total number of matches.
func (r *Repo) List(ctx context.Context, f ListFilter) ([]domain.Product, int, error) {
	expr, err := f.expression()
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %w", domain.ErrValidation, err)
	}
	limit := f.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	sr, err := r.store.SearchFilter(ctx, &db.FilterQuery{
		IndexName:    r.indexName(),
		KeyPrefix:    r.productPrefix(),
		Filters:      expr,
		Offset:       max(f.Offset, 0),
		Limit:        limit,
		ReturnFields: returnFields,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("search filter %s: %w", expr, err)
	}
	return r.decode(ctx, sr), sr.Total, nil
}

// walk pages through the filter matches of q, poolSize documents per round-trip, handing each
// valid product to visit until visit returns false or the matches run out.
func (r *Repo) walk(ctx context.Context, q db.FilterQuery, visit func(domain.Product) bool) error {
	q.IndexName = r.indexName()
	q.KeyPrefix = r.productPrefix()
	q.Limit = r.poolSize
	q.ReturnFields = returnFields

	for q.Offset = 0; ; q.Offset += r.poolSize {
		sr, err := r.store.SearchFilter(ctx, &q)
		if err != nil {
			return fmt.Errorf("search filter %s: %w", q.Filters, err)
		}
		for _, p := range r.decode(ctx, sr) {
			if !visit(p) {
				return nil
			}
		}
		if sr == nil || len(sr.Entries) < r.poolSize || q.Offset+r.poolSize >= sr.Total {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
}

// decode converts entries into validated products. Invalid documents are logged and dropped.
func (r *Repo) decode(ctx context.Context, sr *db.SearchResult) []domain.Product {
	if sr == nil || len(sr.Entries) == 0 {
		return nil
	}
	log := logger.FromContext(ctx)
	prefix := r.productPrefix()

	out := make([]domain.Product, 0, len(sr.Entries))
	for _, e := range sr.Entries {
		id := strings.TrimPrefix(e.Key, prefix)
		p, err := productFromHash(e.Fields, id)
		if err == nil {
			err = p.Validate()
		}
		if err != nil {
			log.Warn("dropping invalid catalog document", zap.String("key", e.Key), zap.Error(err))
			continue
		}
		out = append(out, p)
	}
	return out
}

func lowerAll(list []string) []string {
	out := make([]string, 0, len(list))
	for _, s := range list {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func containsAny(p domain.Product, needles []string) bool {
	title := strings.ToLower(p.Title)
	desc := strings.ToLower(p.Description)
	for _, n := range needles {
		if strings.Contains(title, n) || strings.Contains(desc, n) {
			return true
		}
	}
	return false
}
