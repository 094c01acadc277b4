// Package filter describes exact-field product filters with must/should/must_not semantics.
//
// Expressions are translated into FT.SEARCH pre-filters by drivers that have an index, and
// evaluated in-process with Matches by drivers that scan.
package filter

import (
	"fmt"
	"strconv"
	"strings"
)

// MaxConditionsPerGroup is the maximum number of conditions per filter group.
const MaxConditionsPerGroup = 32

// Expression is a structured filter with must/should/must_not boolean semantics.
type Expression struct {
	must    []Condition
	should  []Condition
	mustNot []Condition
}

// NewExpression validates and creates a filter Expression.
func NewExpression(must, should, mustNot []Condition) (Expression, error) {
	if len(must) > MaxConditionsPerGroup {
		return Expression{}, fmt.Errorf("too many must conditions (max %d)", MaxConditionsPerGroup)
	}
	if len(should) > MaxConditionsPerGroup {
		return Expression{}, fmt.Errorf("too many should conditions (max %d)", MaxConditionsPerGroup)
	}
	if len(mustNot) > MaxConditionsPerGroup {
		return Expression{}, fmt.Errorf("too many must_not conditions (max %d)", MaxConditionsPerGroup)
	}
	return Expression{must: must, should: should, mustNot: mustNot}, nil
}

// Must returns the must conditions.
func (e Expression) Must() []Condition { return e.must }

// Should returns the should conditions.
func (e Expression) Should() []Condition { return e.should }

// MustNot returns the must-not conditions.
func (e Expression) MustNot() []Condition { return e.mustNot }

// IsEmpty reports whether the expression has no conditions.
func (e Expression) IsEmpty() bool {
	return len(e.must) == 0 && len(e.should) == 0 && len(e.mustNot) == 0
}

// Matches evaluates the expression against a flat field map.
// An empty should group places no constraint; a non-empty one needs at least one hit.
func (e Expression) Matches(fields map[string]string) bool {
	for _, c := range e.must {
		if !c.Matches(fields) {
			return false
		}
	}
	for _, c := range e.mustNot {
		if c.Matches(fields) {
			return false
		}
	}
	if len(e.should) == 0 {
		return true
	}
	for _, c := range e.should {
		if c.Matches(fields) {
			return true
		}
	}
	return false
}

// String renders the expression for logs.
func (e Expression) String() string {
	if e.IsEmpty() {
		return "*"
	}
	var parts []string
	for _, c := range e.must {
		parts = append(parts, c.String())
	}
	if len(e.should) > 0 {
		alts := make([]string, 0, len(e.should))
		for _, c := range e.should {
			alts = append(alts, c.String())
		}
		parts = append(parts, "("+strings.Join(alts, " OR ")+")")
	}
	for _, c := range e.mustNot {
		parts = append(parts, "NOT "+c.String())
	}
	return strings.Join(parts, " AND ")
}

// Condition is a single filter clause: either a tag match or a numeric range.
type Condition struct {
	key       string
	match     string
	rangeExpr *Range
}

// NewMatch creates an exact tag match condition.
func NewMatch(key, match string) (Condition, error) {
	if key == "" {
		return Condition{}, fmt.Errorf("filter key is required")
	}
	if match == "" {
		return Condition{}, fmt.Errorf("match value is required for key %q", key)
	}
	return Condition{key: key, match: match}, nil
}

// NewRange creates a numeric range condition.
func NewRange(key string, r Range) (Condition, error) {
	if key == "" {
		return Condition{}, fmt.Errorf("filter key is required")
	}
	return Condition{key: key, rangeExpr: &r}, nil
}

// Key returns the field name.
func (c Condition) Key() string { return c.key }

// Match returns the exact match value.
func (c Condition) Match() string { return c.match }

// Range returns the numeric range expression.
func (c Condition) Range() *Range { return c.rangeExpr }

// IsMatch reports whether this is a match condition.
func (c Condition) IsMatch() bool { return c.match != "" }

// IsRange reports whether this is a range condition.
func (c Condition) IsRange() bool { return c.rangeExpr != nil }

// Matches evaluates the condition against a field map. Tag matches are case-insensitive,
// mirroring the default TAG field behavior of the search index.
func (c Condition) Matches(fields map[string]string) bool {
	v, ok := fields[c.key]
	if !ok {
		return false
	}
	if c.IsMatch() {
		return strings.EqualFold(strings.TrimSpace(v), c.match)
	}
	if c.IsRange() {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return false
		}
		return c.rangeExpr.Contains(f)
	}
	return false
}

func (c Condition) String() string {
	if c.IsMatch() {
		return fmt.Sprintf("%s=%q", c.key, c.match)
	}
	if c.IsRange() {
		return c.key + " in " + c.rangeExpr.String()
	}
	return c.key
}

// Range is a numeric range with gt/gte/lt/lte boundaries.
type Range struct {
	gt  *float64
	gte *float64
	lt  *float64
	lte *float64
}

// NewRangeFilter validates and creates a Range.
// At least one boundary required. gt/gte and lt/lte are mutually exclusive.
func NewRangeFilter(gt, gte, lt, lte *float64) (Range, error) {
	if gt == nil && gte == nil && lt == nil && lte == nil {
		return Range{}, fmt.Errorf("at least one range boundary is required")
	}
	if gt != nil && gte != nil {
		return Range{}, fmt.Errorf("cannot specify both gt and gte")
	}
	if lt != nil && lte != nil {
		return Range{}, fmt.Errorf("cannot specify both lt and lte")
	}
	return Range{gt: gt, gte: gte, lt: lt, lte: lte}, nil
}

// GT returns the lower exclusive bound.
func (r Range) GT() *float64 { return r.gt }

// GTE returns the lower inclusive bound.
func (r Range) GTE() *float64 { return r.gte }

// LT returns the upper exclusive bound.
func (r Range) LT() *float64 { return r.lt }

// LTE returns the upper inclusive bound.
func (r Range) LTE() *float64 { return r.lte }

// Contains reports whether v satisfies every boundary.
func (r Range) Contains(v float64) bool {
	switch {
	case r.gt != nil && v <= *r.gt:
		return false
	case r.gte != nil && v < *r.gte:
		return false
	case r.lt != nil && v >= *r.lt:
		return false
	case r.lte != nil && v > *r.lte:
		return false
	}
	return true
}

func (r Range) String() string {
	lo, hi := "[-inf", "+inf]"
	if r.gt != nil {
		lo = fmt.Sprintf("(%g", *r.gt)
	} else if r.gte != nil {
		lo = fmt.Sprintf("[%g", *r.gte)
	}
	if r.lt != nil {
		hi = fmt.Sprintf("%g)", *r.lt)
	} else if r.lte != nil {
		hi = fmt.Sprintf("%g]", *r.lte)
	}
	return lo + ", " + hi
}
