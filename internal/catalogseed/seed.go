package catalogseed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/kailas-cloud/shopsight/internal/domain"
)

// DefaultBatchSize is the number of products written per pipelined call.
const DefaultBatchSize = 50

// catalog is the consumer interface for seeding (ISP).
type catalog interface {
	Count(ctx context.Context) (int, error)
	EnsureIndex(ctx context.Context) (bool, error)
	UpsertMany(ctx context.Context, products []domain.Product) error
}

// Result summarizes a seed run.
type Result struct {
	Existing     int  `json:"existing"`
	Written      int  `json:"written"`
	Skipped      bool `json:"skipped"`
	IndexCreated bool `json:"indexCreated"`
}

// Seeder writes products into the catalog using a bounded worker pool.
type Seeder struct {
	catalog   catalog
	workers   int
	batchSize int
	logger    *zap.Logger
}

// NewSeeder creates a Seeder. Non-positive workers use a single worker.
func NewSeeder(c catalog, workers int, logger *zap.Logger) *Seeder {
	if workers <= 0 {
		workers = 1
	}
	return &Seeder{catalog: c, workers: workers, batchSize: DefaultBatchSize, logger: logger}
}

// WithBatchSize overrides the per-call batch size.
func (s *Seeder) WithBatchSize(n int) *Seeder {
	if n > 0 {
		s.batchSize = n
	}
	return s
}

// Seed ensures the index and writes products. A non-empty catalog is left alone unless force is set.
func (s *Seeder) Seed(ctx context.Context, products []domain.Product, force bool) (Result, error) {
	existing, err := s.catalog.Count(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("count catalog: %w", err)
	}
	res := Result{Existing: existing}
	if existing > 0 && !force {
		s.logger.Info("catalog already populated, skipping seed", zap.Int("existing", existing))
		res.Skipped = true
		return res, nil
	}

	created, err := s.catalog.EnsureIndex(ctx)
	if err != nil {
		return res, fmt.Errorf("ensure index: %w", err)
	}
	res.IndexCreated = created

	for i := range products {
		if err := products[i].Validate(); err != nil {
			return res, fmt.Errorf("product %d (%q): %w", i, products[i].Title, err)
		}
	}

	written, err := s.write(ctx, products)
	res.Written = written
	if err != nil {
		return res, err
	}

	s.logger.Info("catalog seeded",
		zap.Int("written", written),
		zap.Bool("index_created", created),
		zap.Bool("forced", force),
	)
	return res, nil
}

func (s *Seeder) write(ctx context.Context, products []domain.Product) (int, error) {
	pool, err := ants.NewPool(s.workers)
	if err != nil {
		return 0, fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		written int
		errs    []error
	)

	for start := 0; start < len(products); start += s.batchSize {
		batch := products[start:min(start+s.batchSize, len(products))]
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			err := s.catalog.UpsertMany(ctx, batch)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			written += len(batch)
		})
		if submitErr != nil {
			wg.Done()
			mu.Lock()
			errs = append(errs, fmt.Errorf("submit batch: %w", submitErr))
			mu.Unlock()
		}
	}
	wg.Wait()

	return written, errors.Join(errs...)
}

// fileProduct is the JSON shape of a seed file entry. The id is optional.
type fileProduct struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Type        string   `json:"type"`
	Price       float64  `json:"price"`
	Width       *float64 `json:"width"`
	Height      *float64 `json:"height"`
	Depth       *float64 `json:"depth"`
}

// LoadFile reads a JSON array of products. Entries without an id get the deterministic
// title-derived one.
func LoadFile(fs afero.Fs, path string) ([]domain.Product, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var raw []fileProduct
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	products := make([]domain.Product, 0, len(raw))
	for _, fp := range raw {
		id := fp.ID
		if id == "" {
			id = ProductID(fp.Title)
		}
		products = append(products, domain.Product{
			ID:          id,
			Title:       fp.Title,
			Description: fp.Description,
			Category:    fp.Category,
			Type:        fp.Type,
			Price:       fp.Price,
			Width:       fp.Width,
			Height:      fp.Height,
			Depth:       fp.Depth,
		})
	}
	return products, nil
}
