package valkey

import (
	"fmt"

	"github.com/kailas-cloud/shopsight/internal/db"
	"github.com/kailas-cloud/shopsight/internal/db/rkv"
)

// Compile-time check: Store implements db.Store.
var _ db.Store = (*Store)(nil)

// Config holds connection parameters for a Valkey store.
type Config = rkv.Config

// Store implements db.Store for Valkey with the valkey-search module.
// valkey-search has no TEXT fields and no bare filter queries, so searches scan hashes by prefix.
type Store struct {
	rkv.Conn
}

// NewStore creates a Valkey store.
func NewStore(cfg Config) (*Store, error) {
	client, err := rkv.Dial(cfg)
	if err != nil {
		return nil, fmt.Errorf("valkey: %w", err)
	}
	return &Store{Conn: rkv.Conn{Client: client}}, nil
}

// indexMissing matches the error text valkey-search returns for an absent index.
func indexMissing(err error) bool {
	return rkv.IsServerErr(err, "not found", "unknown index name")
}
