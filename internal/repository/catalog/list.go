package catalog

import (
	"fmt"

	"github.com/kailas-cloud/shopsight/internal/domain/filter"
)

const defaultListLimit = 20

// ListFilter narrows a catalog listing. Zero values are ignored; price bounds are inclusive.
type ListFilter struct {
	Category     string
	Type         string
	ExcludeTypes []string
	MinPrice     *float64
	MaxPrice     *float64
	Offset       int
	Limit        int
}

func (f ListFilter) expression() (filter.Expression, error) {
	var must, mustNot []filter.Condition

	add := func(dst *[]filter.Condition, key, value string) error {
		if value == "" {
			return nil
		}
		c, err := filter.NewMatch(key, value)
		if err != nil {
			return err
		}
		*dst = append(*dst, c)
		return nil
	}
	if err := add(&must, fieldCategory, f.Category); err != nil {
		return filter.Expression{}, err
	}
	if err := add(&must, fieldType, f.Type); err != nil {
		return filter.Expression{}, err
	}
	for _, t := range f.ExcludeTypes {
		if err := add(&mustNot, fieldType, t); err != nil {
			return filter.Expression{}, err
		}
	}

	if f.MinPrice != nil || f.MaxPrice != nil {
		if f.MinPrice != nil && f.MaxPrice != nil && *f.MinPrice > *f.MaxPrice {
			return filter.Expression{}, fmt.Errorf("min price %g exceeds max price %g", *f.MinPrice, *f.MaxPrice)
		}
		rng, err := filter.NewRangeFilter(nil, f.MinPrice, nil, f.MaxPrice)
		if err != nil {
			return filter.Expression{}, err
		}
		c, err := filter.NewRange(fieldPrice, rng)
		if err != nil {
			return filter.Expression{}, err
		}
		must = append(must, c)
	}

	return filter.NewExpression(must, nil, mustNot)
}
