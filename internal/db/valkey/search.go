package valkey

import (
	"context"
	"fmt"
	"sort"

	"github.com/kailas-cloud/shopsight/internal/db"
)

const scanFetchBatch = 100

// SearchBM25 is not available on valkey-search.
func (s *Store) SearchBM25(_ context.Context, _ *db.TextQuery) (*db.SearchResult, error) {
	return nil, &db.Error{Op: db.OpSearch, Err: db.ErrTextSearchUnsupported}
}

// SearchFilter evaluates the filter in-process over hashes under q.KeyPrefix.
// Keys are visited in sorted order so paging is deterministic.
func (s *Store) SearchFilter(ctx context.Context, q *db.FilterQuery) (*db.SearchResult, error) {
	if q.KeyPrefix == "" {
		return nil, fmt.Errorf("key prefix is required")
	}
	if q.Limit <= 0 {
		return nil, fmt.Errorf("limit must be positive")
	}

	matched, err := s.scanMatching(ctx, q)
	if err != nil {
		return nil, err
	}

	total := len(matched)
	if q.Offset >= total {
		return &db.SearchResult{Total: total}, nil
	}
	end := min(q.Offset+q.Limit, total)

	page := matched[q.Offset:end]
	for i := range page {
		page[i].Fields = db.Project(page[i].Fields, q.ReturnFields)
	}
	return &db.SearchResult{Total: total, Entries: page}, nil
}

// SearchCount counts hashes under q.KeyPrefix matching the filter.
func (s *Store) SearchCount(ctx context.Context, q *db.FilterQuery) (int, error) {
	if q.KeyPrefix == "" {
		return 0, fmt.Errorf("key prefix is required")
	}
	if q.Filters.IsEmpty() {
		keys, err := s.Scan(ctx, q.KeyPrefix+"*")
		if err != nil {
			return 0, fmt.Errorf("scan for count: %w", err)
		}
		return len(keys), nil
	}
	matched, err := s.scanMatching(ctx, q)
	if err != nil {
		return 0, err
	}
	return len(matched), nil
}

func (s *Store) scanMatching(ctx context.Context, q *db.FilterQuery) ([]db.SearchEntry, error) {
	keys, err := s.Scan(ctx, q.KeyPrefix+"*")
	if err != nil {
		return nil, fmt.Errorf("scan for filter: %w", err)
	}
	sort.Strings(keys)

	var out []db.SearchEntry
	for start := 0; start < len(keys); start += scanFetchBatch {
		batch := keys[start:min(start+scanFetchBatch, len(keys))]
		docs, err := s.HGetAllMulti(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("fetch for filter: %w", err)
		}
		for i, fields := range docs {
			if len(fields) == 0 {
				continue // deleted between SCAN and HGETALL
			}
			if !q.Filters.Matches(fields) {
				continue
			}
			out = append(out, db.SearchEntry{Key: batch[i], Fields: fields})
		}
	}
	return out, nil
}
