package health

import (
	"context"
	"sort"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates searches still run but with reduced quality.
	Degraded Status = "degraded"
	// Unhealthy indicates the store is unreachable.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckEmpty indicates a reachable catalog with no products.
	CheckEmpty CheckResult = "empty"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Report aggregates health check results.
type Report struct {
	Status   Status                 `json:"status"`
	Checks   map[string]CheckResult `json:"checks"`
	Products int                    `json:"products"`
}

// Provider is a named model provider check.
type Provider struct {
	Name    string
	Checker ProviderChecker
}

// Service coordinates health checks.
type Service struct {
	db        DBPinger
	catalog   CatalogCounter
	providers []Provider
}

// New creates a Service. catalog can be nil; providers with a nil checker are skipped.
func New(db DBPinger, catalog CatalogCounter, providers ...Provider) *Service {
	ps := make([]Provider, 0, len(providers))
	for _, p := range providers {
		if p.Checker != nil {
			ps = append(ps, p)
		}
	}
	sort.SliceStable(ps, func(i, j int) bool { return ps[i].Name < ps[j].Name })
	return &Service{db: db, catalog: catalog, providers: ps}
}

// Check runs health checks against all components. A store failure is Unhealthy; any other
// failing check, or an empty catalog, is Degraded.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)
	r := Report{Status: Healthy, Checks: checks}

	if err := s.db.Ping(ctx); err != nil {
		checks["database"] = CheckError
		r.Status = Unhealthy
	} else {
		checks["database"] = CheckOK
	}

	if s.catalog != nil && r.Status != Unhealthy {
		n, err := s.catalog.Count(ctx)
		switch {
		case err != nil:
			checks["catalog"] = CheckError
		case n == 0:
			checks["catalog"] = CheckEmpty
		default:
			checks["catalog"] = CheckOK
		}
		r.Products = n
	}

	for _, p := range s.providers {
		if _, done := checks[p.Name]; done {
			continue
		}
		if err := p.Checker.HealthCheck(ctx); err != nil {
			checks[p.Name] = CheckError
		} else {
			checks[p.Name] = CheckOK
		}
	}

	if r.Status == Healthy {
		for _, v := range checks {
			if v != CheckOK {
				r.Status = Degraded
				break
			}
		}
	}

	return r
}
