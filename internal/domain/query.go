package domain

import "github.com/kailas-cloud/shopsight/internal/domain/filter"

// ProductQuery is a set query against the catalog: exact-field filters plus an optional
// "any keyword contained in title or description" clause.
type ProductQuery struct {
	Filter   filter.Expression
	Keywords []string
	Limit    int
}

// String renders the query for logs.
func (q ProductQuery) String() string {
	s := q.Filter.String()
	if len(q.Keywords) > 0 {
		s += " AND keywords~" + joinQuoted(q.Keywords)
	}
	return s
}

func joinQuoted(list []string) string {
	out := "["
	for i, v := range list {
		if i > 0 {
			out += ","
		}
		out += `"` + v + `"`
	}
	return out + "]"
}
