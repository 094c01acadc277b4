package retrieval

import (
	"fmt"

	"github.com/kailas-cloud/shopsight/internal/domain"
	"github.com/kailas-cloud/shopsight/internal/domain/filter"
)

// Catalog field names the ladder filters on.
const (
	fieldCategory = "category"
	fieldType     = "type"
)

// strategy is one rung of the ladder. text strategies go through Catalog.SearchText, the rest
// through Catalog.Find with the built query.
type strategy struct {
	plan    domain.RetrievalPlan
	text    bool
	applies func(c domain.SearchCriteria) bool
	build   func(c domain.SearchCriteria) (domain.ProductQuery, error)
}

// ladder is ordered from most to least precise.
var ladder = []strategy{
	{
		plan:    domain.PlanText,
		text:    true,
		applies: hasKeywords,
		build: func(c domain.SearchCriteria) (domain.ProductQuery, error) {
			return domain.ProductQuery{Keywords: c.Keywords}, nil
		},
	},
	{
		plan: domain.PlanA,
		applies: func(c domain.SearchCriteria) bool {
			return c.Category != "" && c.Type != "" && hasKeywords(c)
		},
		build: func(c domain.SearchCriteria) (domain.ProductQuery, error) {
			return mustQuery(c, match(fieldCategory, c.Category), match(fieldType, c.Type))
		},
	},
	{
		plan: domain.PlanB,
		applies: func(c domain.SearchCriteria) bool {
			return c.Category != "" && hasKeywords(c)
		},
		build: func(c domain.SearchCriteria) (domain.ProductQuery, error) {
			return mustQuery(c, match(fieldCategory, c.Category))
		},
	},
	{
		plan:    domain.PlanC,
		applies: hasKeywords,
		build: func(c domain.SearchCriteria) (domain.ProductQuery, error) {
			return domain.ProductQuery{Keywords: c.Keywords}, nil
		},
	},
	{
		plan: domain.PlanD,
		applies: func(c domain.SearchCriteria) bool {
			return c.Category != "" || c.Type != ""
		},
		build: func(c domain.SearchCriteria) (domain.ProductQuery, error) {
			var should []condSpec
			if c.Category != "" {
				should = append(should, match(fieldCategory, c.Category))
			}
			if c.Type != "" {
				should = append(should, match(fieldType, c.Type))
			}
			conds, err := conditions(should)
			if err != nil {
				return domain.ProductQuery{}, err
			}
			expr, err := filter.NewExpression(nil, conds, nil)
			if err != nil {
				return domain.ProductQuery{}, fmt.Errorf("plan D filter: %w", err)
			}
			return domain.ProductQuery{Filter: expr}, nil
		},
	},
}

func hasKeywords(c domain.SearchCriteria) bool {
	for _, k := range c.Keywords {
		if k != "" {
			return true
		}
	}
	return false
}

type condSpec struct{ key, value string }

func match(key, value string) condSpec { return condSpec{key: key, value: value} }

func conditions(specs []condSpec) ([]filter.Condition, error) {
	out := make([]filter.Condition, 0, len(specs))
	for _, s := range specs {
		cond, err := filter.NewMatch(s.key, s.value)
		if err != nil {
			return nil, fmt.Errorf("filter %s: %w", s.key, err)
		}
		out = append(out, cond)
	}
	return out, nil
}

// mustQuery ANDs the given field matches with the criteria keywords.
func mustQuery(c domain.SearchCriteria, specs ...condSpec) (domain.ProductQuery, error) {
	must, err := conditions(specs)
	if err != nil {
		return domain.ProductQuery{}, err
	}
	expr, err := filter.NewExpression(must, nil, nil)
	if err != nil {
		return domain.ProductQuery{}, err
	}
	return domain.ProductQuery{Filter: expr, Keywords: c.Keywords}, nil
}
