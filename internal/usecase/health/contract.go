package health

import "context"

// DBPinger checks store availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// CatalogCounter reports how many products are searchable.
type CatalogCounter interface {
	Count(ctx context.Context) (int, error)
}

// ProviderChecker checks model provider availability.
type ProviderChecker interface {
	HealthCheck(ctx context.Context) error
}
