package extraction

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/shopsight/internal/domain"
	"github.com/kailas-cloud/shopsight/internal/logger"
)

// InstrumentedExtractor wraps an Extractor with request logging.
// Transport metrics (requests, duration, tokens) are recorded in the provider adapters.
type InstrumentedExtractor struct {
	inner    Extractor
	provider string
	model    string
}

// NewInstrumentedExtractor wraps an extractor with logging.
func NewInstrumentedExtractor(inner Extractor, provider, model string) *InstrumentedExtractor {
	return &InstrumentedExtractor{inner: inner, provider: provider, model: model}
}

// Extract delegates to the inner extractor and logs the outcome.
func (e *InstrumentedExtractor) Extract(
	ctx context.Context, image domain.Image, prompt string,
) (domain.ImageSignals, error) {
	log := logger.FromContext(ctx)
	start := time.Now()

	signals, err := e.inner.Extract(ctx, image, prompt)
	duration := time.Since(start)

	if err != nil {
		log.Error("Signal extraction failed",
			zap.String("provider", e.provider),
			zap.String("model", e.model),
			zap.Duration("duration", duration),
			zap.String("code", string(domain.CodeOf(err))),
			zap.Error(err),
		)
		return domain.ImageSignals{}, err
	}

	log.Debug("Signal extraction completed",
		zap.String("provider", e.provider),
		zap.String("model", e.model),
		zap.Duration("duration", duration),
		zap.Int("image_bytes", len(image.Data)),
		zap.String("category", signals.CategoryGuess.Value),
		zap.String("type", signals.TypeGuess.Value),
		zap.Strings("keywords", signals.Keywords),
	)
	return signals, nil
}
