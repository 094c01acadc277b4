package shopsight

import (
	"context"
	"errors"
	"fmt"

	"github.com/kailas-cloud/shopsight/internal/domain"
	extractionuc "github.com/kailas-cloud/shopsight/internal/usecase/extraction"
)

// Extractor turns an image and an optional prompt into signals.
// Implement it to plug a custom vision model into the pipeline.
type Extractor interface {
	Extract(ctx context.Context, image Image, prompt string) (Signals, error)
}

// extractorAdapter bridges the public Extractor to the internal pipeline. Output is normalized
// and validated the same way model output is.
type extractorAdapter struct {
	inner Extractor
}

func (a *extractorAdapter) Extract(
	ctx context.Context, image domain.Image, prompt string,
) (domain.ImageSignals, error) {
	s, err := a.inner.Extract(ctx, Image{Data: image.Data, MimeType: image.MimeType}, prompt)
	if err != nil {
		var de *domain.Error
		if errors.As(err, &de) {
			return domain.ImageSignals{}, err
		}
		return domain.ImageSignals{}, fmt.Errorf("custom extractor: %w", err)
	}

	signals := toDomainSignals(s)
	extractionuc.Normalize(&signals)
	if err := signals.Validate(); err != nil {
		return domain.ImageSignals{}, domain.NewError(domain.ErrProviderInvalidResponse,
			"extractor returned invalid signals", err)
	}
	return signals, nil
}

// noopExtractor is used when neither a provider nor a custom extractor is configured. Searches
// then succeed only with fallback signals.
type noopExtractor struct{}

func (noopExtractor) Extract(context.Context, domain.Image, string) (domain.ImageSignals, error) {
	return domain.ImageSignals{}, errors.New("no extractor configured (use WithOpenAI, WithGemini or WithExtractor)")
}
