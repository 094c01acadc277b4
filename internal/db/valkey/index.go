package valkey

import (
	"context"
	"errors"
	"strconv"

	"github.com/kailas-cloud/shopsight/internal/db"
	"github.com/kailas-cloud/shopsight/internal/db/rkv"
)

// CreateIndex creates an FT index. TEXT fields are dropped because valkey-search does not
// support them; a definition with nothing left is a no-op.
func (s *Store) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	args, ok, err := buildCreateArgs(def)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	cmd := s.B().Arbitrary("FT.CREATE").Args(args...).Build()
	if err := s.Do(ctx, cmd).Error(); err != nil {
		if rkv.IsServerErr(err, "already exists") {
			return db.ErrIndexExists
		}
		return &db.Error{Op: db.OpCreateIndex, Err: err}
	}
	return nil
}

// DropIndex removes an FT index by name.
func (s *Store) DropIndex(ctx context.Context, name string) error {
	cmd := s.B().Arbitrary("FT.DROPINDEX").Args(name).Build()
	if err := s.Do(ctx, cmd).Error(); err != nil {
		if indexMissing(err) {
			return db.ErrIndexNotFound
		}
		return &db.Error{Op: db.OpDropIndex, Err: err}
	}
	return nil
}

// IndexExists probes index existence via FT.INFO.
func (s *Store) IndexExists(ctx context.Context, name string) (bool, error) {
	cmd := s.B().Arbitrary("FT.INFO").Args(name).Build()
	if err := s.Do(ctx, cmd).Error(); err != nil {
		if indexMissing(err) {
			return false, nil
		}
		return false, &db.Error{Op: db.OpIndexInfo, Err: err}
	}
	return true, nil
}

// SupportsTextSearch returns false: valkey-search has no TEXT fields or BM25.
func (s *Store) SupportsTextSearch(_ context.Context) bool {
	return false
}

// buildCreateArgs reports ok=false when no indexable field survives.
func buildCreateArgs(idx *db.IndexDefinition) ([]string, bool, error) {
	if idx.Name == "" {
		return nil, false, errors.New("index name is required")
	}

	var schema []string
	for i := range idx.Fields {
		f := &idx.Fields[i]
		switch f.Type {
		case db.IndexFieldTag:
			schema = append(schema, f.Name, "TAG")
			if f.TagSeparator != "" {
				schema = append(schema, "SEPARATOR", f.TagSeparator)
			}
			if f.TagCaseSensitive {
				schema = append(schema, "CASESENSITIVE")
			}
		case db.IndexFieldNumeric:
			schema = append(schema, f.Name, "NUMERIC")
		case db.IndexFieldText:
			continue
		default:
			return nil, false, errors.New("unknown field type")
		}
	}
	if len(schema) == 0 {
		return nil, false, nil
	}

	args := []string{idx.Name, "ON", string(db.StorageHash)}
	if len(idx.Prefixes) > 0 {
		args = append(args, "PREFIX", strconv.Itoa(len(idx.Prefixes)))
		args = append(args, idx.Prefixes...)
	}
	args = append(args, "SCHEMA")
	return append(args, schema...), true, nil
}
