package db

import "github.com/kailas-cloud/shopsight/internal/domain/filter"

// TextQuery is the input for BM25 text search.
// Terms are OR-joined and escaped individually; Query is escaped as a single phrase.
// When both are set Terms wins. Fields restricts matching to the named TEXT fields.
type TextQuery struct {
	IndexName    string
	Query        string
	Terms        []string
	Fields       []string
	Filters      filter.Expression
	TopK         int
	ReturnFields []string
}

// HasText reports whether the query carries any searchable text.
func (q *TextQuery) HasText() bool {
	if q.Query != "" {
		return true
	}
	for _, t := range q.Terms {
		if t != "" {
			return true
		}
	}
	return false
}

// FilterQuery is the input for an exact-field filter search.
// KeyPrefix is used by drivers that evaluate Filters by scanning instead of querying an index.
type FilterQuery struct {
	IndexName    string
	KeyPrefix    string
	Filters      filter.Expression
	Offset       int
	Limit        int
	ReturnFields []string
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single document hit from a search.
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}

// Project returns a copy of fields restricted to names. Empty names keeps everything.
func Project(fields map[string]string, names []string) map[string]string {
	if len(names) == 0 {
		return fields
	}
	out := make(map[string]string, len(names))
	for _, n := range names {
		if v, ok := fields[n]; ok {
			out[n] = v
		}
	}
	return out
}
