package redis

import (
	"fmt"

	"github.com/kailas-cloud/shopsight/internal/db"
	"github.com/kailas-cloud/shopsight/internal/db/rkv"
)

// Compile-time check: Store implements db.Store.
var _ db.Store = (*Store)(nil)

// Config holds connection parameters for a Redis store.
type Config = rkv.Config

// Store implements db.Store for Redis 8+, whose query engine serves TEXT, TAG and NUMERIC fields.
// Hash commands come from the embedded rkv.Conn.
type Store struct {
	rkv.Conn
}

// NewStore creates a Redis store.
func NewStore(cfg Config) (*Store, error) {
	client, err := rkv.Dial(cfg)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	return &Store{Conn: rkv.Conn{Client: client}}, nil
}

// indexMissing matches the error text Redis returns for an absent FT index.
func indexMissing(err error) bool {
	return rkv.IsServerErr(err, "unknown index name", "no such index")
}
