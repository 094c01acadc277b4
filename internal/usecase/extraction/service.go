// Package extraction converts an uploaded image into ImageSignals through a vision-capable model.
package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kailas-cloud/shopsight/internal/domain"
)

// Generation defaults for the vision call.
const (
	DefaultTemperature float32 = 0.2
	DefaultMaxTokens           = 1024
)

// Service is an Extractor backed by a multimodal domain.Generator.
type Service struct {
	gen domain.Generator
}

// New creates a vision extractor.
func New(gen domain.Generator) *Service {
	return &Service{gen: gen}
}

// Extract sends the image to the model and validates the returned signals. Output that is not
// JSON or fails validation is reported as ErrProviderInvalidResponse.
func (s *Service) Extract(ctx context.Context, image domain.Image, prompt string) (domain.ImageSignals, error) {
	if len(image.Data) == 0 || image.MimeType == "" {
		return domain.ImageSignals{}, domain.NewError(domain.ErrValidation, "image is required", nil)
	}

	g, err := s.gen.Generate(ctx, domain.GenerateRequest{
		Operation:   "extract",
		System:      systemPrompt,
		Prompt:      buildPrompt(prompt),
		Images:      []domain.Image{image},
		Temperature: DefaultTemperature,
		MaxTokens:   DefaultMaxTokens,
		SchemaName:  signalsSchemaName,
		Schema:      signalsSchema,
	})
	if err != nil {
		return domain.ImageSignals{}, fmt.Errorf("extract signals: %w", err)
	}

	signals, err := ParseSignals(g.Text)
	if err != nil {
		return domain.ImageSignals{}, domain.NewError(domain.ErrProviderInvalidResponse,
			"vision model returned invalid signals", err)
	}
	return signals, nil
}

// ParseSignals decodes, normalizes and validates signals JSON (optionally fenced in markdown).
func ParseSignals(raw string) (domain.ImageSignals, error) {
	text := strings.TrimSpace(raw)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	var signals domain.ImageSignals
	if err := json.Unmarshal([]byte(text), &signals); err != nil {
		return domain.ImageSignals{}, fmt.Errorf("decode signals: %w", err)
	}
	Normalize(&signals)
	if err := signals.Validate(); err != nil {
		return domain.ImageSignals{}, err
	}
	return signals, nil
}

// Normalize trims every string, drops blank keywords and attributes, and removes non-positive
// intent values.
func Normalize(s *domain.ImageSignals) {
	s.CategoryGuess.Value = strings.TrimSpace(s.CategoryGuess.Value)
	s.TypeGuess.Value = strings.TrimSpace(s.TypeGuess.Value)
	s.Keywords = compact(s.Keywords)
	s.Attributes.Style = compact(s.Attributes.Style)
	s.Attributes.Material = compact(s.Attributes.Material)
	s.Attributes.Color = compact(s.Attributes.Color)

	if in := s.Intent; in != nil {
		for _, v := range []**float64{
			&in.PriceMin, &in.PriceMax, &in.PreferredWidth, &in.PreferredHeight, &in.PreferredDepth,
		} {
			if *v != nil && **v <= 0 {
				*v = nil
			}
		}
		if !in.HasPrice() && !in.HasDimensions() {
			s.Intent = nil
		}
	}
}

func compact(list []string) []string {
	out := make([]string, 0, len(list))
	for _, v := range list {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
