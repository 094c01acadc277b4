package retrieval

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/shopsight/internal/domain"
	"github.com/kailas-cloud/shopsight/internal/logger"
)

const (
	// DefaultLimit caps every ladder step when the criteria carry no limit.
	DefaultLimit = 50
	// DefaultMinCandidates is the short-circuit threshold when the criteria carry none.
	DefaultMinCandidates = 5
)

// Service plans candidate retrieval against the catalog.
type Service struct {
	catalog Catalog
	ladder  []strategy
}

// New creates a retrieval planner.
func New(catalog Catalog) *Service {
	return &Service{catalog: catalog, ladder: ladder}
}

// FindCandidates walks the ladder until a step yields at least MinCandidates products. When none
// does, the largest set seen is returned, tagged with the step that produced it. No results is not
// an error: the worst case is an empty list with PlanD. An error is returned only when every
// attempted step failed, or the context ended before any step produced a result.
func (s *Service) FindCandidates(
	ctx context.Context, criteria domain.SearchCriteria,
) ([]domain.Product, domain.RetrievalPlan, error) {
	limit := criteria.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	minCandidates := criteria.MinCandidates
	if minCandidates <= 0 {
		minCandidates = DefaultMinCandidates
	}

	log := logger.FromContext(ctx)

	var (
		best     []domain.Product
		bestPlan = domain.PlanD
		attempts int
		errs     []error
	)

	for _, st := range s.ladder {
		if !st.applies(criteria) {
			continue
		}
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		start := time.Now()
		products, err := s.run(ctx, st, criteria, limit)
		if errors.Is(err, domain.ErrTextSearchUnavailable) {
			log.Debug("retrieval step skipped", zap.String("plan", string(st.plan)), zap.Error(err))
			continue
		}
		attempts++
		if err != nil {
			log.Warn("retrieval step failed",
				zap.String("plan", string(st.plan)),
				zap.Error(err),
			)
			errs = append(errs, fmt.Errorf("plan %s: %w", st.plan, err))
			continue
		}

		log.Debug("retrieval step",
			zap.String("plan", string(st.plan)),
			zap.Int("count", len(products)),
			zap.Duration("duration", time.Since(start)),
		)

		if len(products) >= minCandidates {
			return products, st.plan, nil
		}
		if len(products) > len(best) {
			best, bestPlan = products, st.plan
		}
	}

	if len(best) == 0 && len(errs) > 0 && len(errs) >= attempts {
		return nil, domain.PlanD, fmt.Errorf("find candidates: %w", errors.Join(errs...))
	}
	if best == nil {
		best = []domain.Product{}
	}
	return best, bestPlan, nil
}

func (s *Service) run(
	ctx context.Context, st strategy, criteria domain.SearchCriteria, limit int,
) ([]domain.Product, error) {
	q, err := st.build(criteria)
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	q.Limit = limit

	if st.text {
		return s.catalog.SearchText(ctx, q.Keywords, limit)
	}
	return s.catalog.Find(ctx, q)
}
