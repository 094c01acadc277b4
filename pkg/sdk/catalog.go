package shopsight

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/shopsight/internal/catalogseed"
	"github.com/kailas-cloud/shopsight/internal/domain"
)

const seedWorkers = 2

// SeedResult summarizes a seed run.
type SeedResult struct {
	Existing int
	Written  int
	// Skipped is set when the catalog already had products and force was off.
	Skipped bool
}

// CatalogService manages catalog products.
type CatalogService struct {
	repo catalogStore
	obs  *observer
}

// Upsert writes a product. An empty ID is derived from the title.
func (s *CatalogService) Upsert(ctx context.Context, p Product) (err error) {
	start := time.Now()
	defer func() { s.obs.observe("catalog_upsert", start, err) }()

	d := toDomainProduct(p)
	if d.ID == "" {
		d.ID = catalogseed.ProductID(d.Title)
	}
	if err = d.Validate(); err != nil {
		return fmt.Errorf("upsert product: %w", err)
	}
	if err = s.repo.Upsert(ctx, d); err != nil {
		return fmt.Errorf("upsert product: %w", err)
	}
	return nil
}

// Get returns a product by ID. Returns ErrNotFound when absent.
func (s *CatalogService) Get(ctx context.Context, id string) (Product, error) {
	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return Product{}, fmt.Errorf("get product: %w", err)
	}
	return fromDomainProduct(p), nil
}

// Count returns the number of stored products.
func (s *CatalogService) Count(ctx context.Context) (int, error) {
	n, err := s.repo.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	return n, nil
}

// Seed writes products when the catalog is empty, or always when force is set.
// Products without an ID get one derived from the title.
func (s *CatalogService) Seed(ctx context.Context, products []Product, force bool) (SeedResult, error) {
	items := make([]domain.Product, len(products))
	for i, p := range products {
		items[i] = toDomainProduct(p)
		if items[i].ID == "" {
			items[i].ID = catalogseed.ProductID(items[i].Title)
		}
	}
	return s.seed(ctx, items, force)
}

// SeedDemo writes the bundled demo catalog into an empty catalog.
func (s *CatalogService) SeedDemo(ctx context.Context) (SeedResult, error) {
	return s.seed(ctx, catalogseed.Demo(), false)
}

func (s *CatalogService) seed(ctx context.Context, products []domain.Product, force bool) (_ SeedResult, err error) {
	start := time.Now()
	defer func() { s.obs.observe("catalog_seed", start, err) }()

	res, err := catalogseed.NewSeeder(s.repo, seedWorkers, zap.NewNop()).Seed(ctx, products, force)
	if err != nil {
		return SeedResult{}, fmt.Errorf("seed catalog: %w", err)
	}
	return SeedResult{Existing: res.Existing, Written: res.Written, Skipped: res.Skipped}, nil
}
