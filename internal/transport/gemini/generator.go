// Package gemini adapts the Google Gen AI SDK to domain.Generator.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/kailas-cloud/shopsight/internal/domain"
	"github.com/kailas-cloud/shopsight/internal/metrics"
)

// Config holds the provider settings.
type Config struct {
	APIKey string
	// BaseURL overrides the Gemini API endpoint. Empty uses the SDK default.
	BaseURL  string
	Model    string
	Provider string
	Logger   *zap.Logger
}

// Generator calls Gemini models through the Gemini API backend.
type Generator struct {
	client   *genai.Client
	model    string
	provider string
	logger   *zap.Logger
}

// NewGenerator creates a Gemini generator.
func NewGenerator(ctx context.Context, cfg *Config) (*Generator, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	provider := cfg.Provider
	if provider == "" {
		provider = "gemini"
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return &Generator{client: client, model: cfg.Model, provider: provider, logger: log}, nil
}

// Model returns the configured model name.
func (g *Generator) Model() string { return g.model }

// Generate implements domain.Generator with transport-level metrics.
func (g *Generator) Generate(ctx context.Context, req domain.GenerateRequest) (domain.Generation, error) {
	parts := make([]*genai.Part, 0, len(req.Images)+1)
	for _, img := range req.Images {
		parts = append(parts, genai.NewPartFromBytes(img.Data, img.MimeType))
	}
	parts = append(parts, genai.NewPartFromText(req.Prompt))
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	temp := req.Temperature
	genCfg := &genai.GenerateContentConfig{
		Temperature:     &temp,
		MaxOutputTokens: int32(req.MaxTokens),
	}
	if req.System != "" {
		genCfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.Schema != nil {
		genCfg.ResponseMIMEType = "application/json"
		genCfg.ResponseSchema = toSchema(req.Schema)
	}

	start := time.Now()
	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, genCfg)
	duration := time.Since(start)

	if err != nil {
		metrics.LLMRequestsTotal.WithLabelValues(g.provider, g.model, req.Operation, "error").Inc()
		classified := parseAPIError(err)
		metrics.LLMErrorsTotal.WithLabelValues(g.provider, g.model, req.Operation, errorType(classified)).Inc()
		return domain.Generation{}, classified
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		metrics.LLMRequestsTotal.WithLabelValues(g.provider, g.model, req.Operation, "error").Inc()
		metrics.LLMErrorsTotal.WithLabelValues(g.provider, g.model, req.Operation, "empty_response").Inc()
		return domain.Generation{}, domain.NewError(domain.ErrProviderInvalidResponse,
			"model returned an empty response", fmt.Errorf("block reason %q", blockReason(resp)))
	}

	var promptTokens, completionTokens int
	if u := resp.UsageMetadata; u != nil {
		promptTokens = int(u.PromptTokenCount)
		completionTokens = int(u.CandidatesTokenCount)
	}

	metrics.LLMRequestsTotal.WithLabelValues(g.provider, g.model, req.Operation, "success").Inc()
	metrics.LLMRequestDuration.WithLabelValues(g.provider, g.model, req.Operation).Observe(duration.Seconds())
	if promptTokens+completionTokens > 0 {
		metrics.LLMTokensTotal.WithLabelValues(g.provider, g.model, "prompt").Add(float64(promptTokens))
		metrics.LLMTokensTotal.WithLabelValues(g.provider, g.model, "completion").Add(float64(completionTokens))
	}

	g.logger.Debug("generate content",
		zap.String("provider", g.provider),
		zap.String("model", g.model),
		zap.String("operation", req.Operation),
		zap.Duration("duration", duration),
		zap.Int("prompt_tokens", promptTokens),
		zap.Int("completion_tokens", completionTokens),
	)

	model := resp.ModelVersion
	if model == "" {
		model = g.model
	}
	return domain.Generation{
		Text:             text,
		Model:            model,
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
	}, nil
}

// HealthCheck verifies API availability by fetching the configured model's metadata.
func (g *Generator) HealthCheck(ctx context.Context) error {
	if _, err := g.client.Models.Get(ctx, g.model, nil); err != nil {
		return fmt.Errorf("get model: %w", err)
	}
	return nil
}

func blockReason(resp *genai.GenerateContentResponse) string {
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return string(resp.PromptFeedback.BlockReason)
	}
	if len(resp.Candidates) > 0 && resp.Candidates[0] != nil {
		return string(resp.Candidates[0].FinishReason)
	}
	return ""
}

var schemaTypes = map[domain.SchemaType]genai.Type{
	domain.SchemaObject:  genai.TypeObject,
	domain.SchemaArray:   genai.TypeArray,
	domain.SchemaString:  genai.TypeString,
	domain.SchemaNumber:  genai.TypeNumber,
	domain.SchemaBoolean: genai.TypeBoolean,
}

func toSchema(s *domain.Schema) *genai.Schema {
	out := &genai.Schema{
		Type:        schemaTypes[s.Type],
		Description: s.Description,
		Enum:        s.Enum,
		Required:    s.Required,
		Minimum:     s.Minimum,
		Maximum:     s.Maximum,
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for name, p := range s.Properties {
			out.Properties[name] = toSchema(p)
		}
	}
	if s.Items != nil {
		out.Items = toSchema(s.Items)
	}
	return out
}

// parseAPIError classifies a Gemini API failure by HTTP status.
func parseAPIError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return domain.NewError(domain.ErrInternal, "model provider timed out", err)
	}

	var apiErr genai.APIError
	var apiErrPtr *genai.APIError
	switch {
	case errors.As(err, &apiErr):
	case errors.As(err, &apiErrPtr) && apiErrPtr != nil:
		apiErr = *apiErrPtr
	default:
		return domain.NewError(domain.ErrInternal, "model provider request failed", err)
	}

	cause := fmt.Errorf("gemini API error %d %s: %w", apiErr.Code, apiErr.Status, err)
	switch apiErr.Code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return domain.NewError(domain.ErrProviderAuth, "invalid provider credentials", cause)
	case http.StatusBadRequest:
		// Gemini reports an invalid key as 400 API_KEY_INVALID.
		if strings.Contains(apiErr.Message, "API key") || strings.Contains(apiErr.Status, "API_KEY") {
			return domain.NewError(domain.ErrProviderAuth, "invalid provider credentials", cause)
		}
		return domain.NewError(domain.ErrInternal, "model provider request failed", cause)
	case http.StatusTooManyRequests:
		return domain.NewError(domain.ErrProviderRateLimit, "provider quota exceeded", cause)
	default:
		return domain.NewError(domain.ErrInternal, "model provider request failed", cause)
	}
}

func errorType(err error) string {
	switch domain.CodeOf(err) {
	case domain.CodeProviderAuth:
		return "auth"
	case domain.CodeProviderRateLimit:
		return "rate_limit"
	default:
		return "api_error"
	}
}
