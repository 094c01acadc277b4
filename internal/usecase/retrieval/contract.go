package retrieval

import (
	"context"

	"github.com/kailas-cloud/shopsight/internal/domain"
)

// Catalog defines the product store contract for candidate retrieval.
type Catalog interface {
	// SearchText runs the full-text primitive. Fails with domain.ErrTextSearchUnavailable when the
	// store has no usable text index.
	SearchText(ctx context.Context, keywords []string, limit int) ([]domain.Product, error)
	// Find runs an exact-field set query with an optional keyword-contains clause.
	Find(ctx context.Context, q domain.ProductQuery) ([]domain.Product, error)
}
