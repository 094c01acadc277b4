package imagesearch

import (
	"context"

	"github.com/kailas-cloud/shopsight/internal/domain"
	"github.com/kailas-cloud/shopsight/internal/domain/settings"
)

// Extractor turns the uploaded image into signals.
type Extractor interface {
	Extract(ctx context.Context, image domain.Image, prompt string) (domain.ImageSignals, error)
}

// Retriever plans candidate retrieval.
type Retriever interface {
	FindCandidates(ctx context.Context, criteria domain.SearchCriteria) ([]domain.Product, domain.RetrievalPlan, error)
}

// Reranker reorders the head of the scored list.
type Reranker interface {
	Rerank(
		ctx context.Context, signals domain.ImageSignals, candidates []domain.ScoredCandidate,
		prompt string, opts *domain.RerankOptions,
	) (domain.RerankResult, error)
}

// ConfigProvider supplies the active tuning.
type ConfigProvider interface {
	Get() settings.AdminConfig
}

// Recorder stores telemetry events.
type Recorder interface {
	Record(e domain.TelemetryEvent)
}
