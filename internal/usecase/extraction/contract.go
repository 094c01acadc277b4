package extraction

import (
	"context"

	"github.com/kailas-cloud/shopsight/internal/domain"
)

// Extractor turns an image and an optional prompt into structured signals.
type Extractor interface {
	Extract(ctx context.Context, image domain.Image, prompt string) (domain.ImageSignals, error)
}
