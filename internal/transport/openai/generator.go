package openai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"
	"go.uber.org/zap"

	"github.com/kailas-cloud/shopsight/internal/domain"
	"github.com/kailas-cloud/shopsight/internal/metrics"
)

// Generator is a structured-output chat provider using the OpenAI-compatible API.
type Generator struct {
	client   *openai.Client
	model    string
	detail   openai.ImageURLDetail
	provider string
	logger   *zap.Logger
}

// Config holds the provider settings.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	// ImageDetail is "low", "high" or "auto" (default).
	ImageDetail string
	Provider    string
	Logger      *zap.Logger
}

// NewGenerator creates an OpenAI-compatible generator.
func NewGenerator(cfg *Config) *Generator {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	detail := openai.ImageURLDetail(cfg.ImageDetail)
	if detail == "" {
		detail = openai.ImageURLDetailAuto
	}
	provider := cfg.Provider
	if provider == "" {
		provider = "openai"
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return &Generator{
		client:   openai.NewClientWithConfig(clientCfg),
		model:    cfg.Model,
		detail:   detail,
		provider: provider,
		logger:   log,
	}
}

// Model returns the configured model name.
func (g *Generator) Model() string { return g.model }

// Generate implements domain.Generator with transport-level metrics.
func (g *Generator) Generate(ctx context.Context, req domain.GenerateRequest) (domain.Generation, error) {
	chatReq := openai.ChatCompletionRequest{
		Model:               g.model,
		Messages:            g.messages(req),
		Temperature:         req.Temperature,
		MaxCompletionTokens: req.MaxTokens,
	}
	// temperature is omitempty on the wire; a literal 0 would fall back to the server default.
	if chatReq.Temperature == 0 {
		chatReq.Temperature = math.SmallestNonzeroFloat32
	}
	if req.Schema != nil {
		def := toDefinition(req.Schema)
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   schemaName(req.SchemaName),
				Schema: &def,
			},
		}
	}

	start := time.Now()
	resp, err := g.client.CreateChatCompletion(ctx, chatReq)
	duration := time.Since(start)

	if err != nil {
		metrics.LLMRequestsTotal.WithLabelValues(g.provider, g.model, req.Operation, "error").Inc()
		classified := parseAPIError(err)
		metrics.LLMErrorsTotal.WithLabelValues(g.provider, g.model, req.Operation, errorType(classified)).Inc()
		return domain.Generation{}, classified
	}

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		metrics.LLMRequestsTotal.WithLabelValues(g.provider, g.model, req.Operation, "error").Inc()
		metrics.LLMErrorsTotal.WithLabelValues(g.provider, g.model, req.Operation, "empty_response").Inc()
		reason := ""
		if len(resp.Choices) > 0 {
			reason = string(resp.Choices[0].FinishReason)
		}
		return domain.Generation{}, domain.NewError(domain.ErrProviderInvalidResponse,
			"model returned an empty response", fmt.Errorf("finish reason %q", reason))
	}

	metrics.LLMRequestsTotal.WithLabelValues(g.provider, g.model, req.Operation, "success").Inc()
	metrics.LLMRequestDuration.WithLabelValues(g.provider, g.model, req.Operation).Observe(duration.Seconds())
	if resp.Usage.TotalTokens > 0 {
		metrics.LLMTokensTotal.WithLabelValues(g.provider, g.model, "prompt").Add(float64(resp.Usage.PromptTokens))
		metrics.LLMTokensTotal.WithLabelValues(g.provider, g.model, "completion").Add(float64(resp.Usage.CompletionTokens))
	}

	g.logger.Debug("chat completion",
		zap.String("provider", g.provider),
		zap.String("model", g.model),
		zap.String("operation", req.Operation),
		zap.Duration("duration", duration),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
	)

	model := resp.Model
	if model == "" {
		model = g.model
	}
	return domain.Generation{
		Text:             resp.Choices[0].Message.Content,
		Model:            model,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}, nil
}

// HealthCheck verifies API availability via ListModels (free endpoint).
func (g *Generator) HealthCheck(ctx context.Context) error {
	if _, err := g.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

func (g *Generator) messages(req domain.GenerateRequest) []openai.ChatCompletionMessage {
	msgs := make([]openai.ChatCompletionMessage, 0, 2)
	if req.System != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}

	if len(req.Images) == 0 {
		return append(msgs, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleUser,
			Content: req.Prompt,
		})
	}

	parts := make([]openai.ChatMessagePart, 0, len(req.Images)+1)
	parts = append(parts, openai.ChatMessagePart{
		Type: openai.ChatMessagePartTypeText,
		Text: req.Prompt,
	})
	for _, img := range req.Images {
		parts = append(parts, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{
				URL:    dataURI(img),
				Detail: g.detail,
			},
		})
	}
	return append(msgs, openai.ChatCompletionMessage{
		Role:         openai.ChatMessageRoleUser,
		MultiContent: parts,
	})
}

func dataURI(img domain.Image) string {
	return "data:" + img.MimeType + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
}

func schemaName(name string) string {
	if name == "" {
		return "response"
	}
	return name
}

// toDefinition translates the neutral schema. Numeric bounds have no slot in Definition and are
// folded into the description.
func toDefinition(s *domain.Schema) jsonschema.Definition {
	def := jsonschema.Definition{
		Type:        jsonschema.DataType(s.Type),
		Description: s.Description,
		Enum:        s.Enum,
		Required:    s.Required,
	}
	if s.Minimum != nil || s.Maximum != nil {
		def.Description = strings.TrimSpace(def.Description + " " + boundsHint(s.Minimum, s.Maximum))
	}
	if len(s.Properties) > 0 {
		def.Properties = make(map[string]jsonschema.Definition, len(s.Properties))
		for name, p := range s.Properties {
			def.Properties[name] = toDefinition(p)
		}
	}
	if s.Items != nil {
		items := toDefinition(s.Items)
		def.Items = &items
	}
	return def
}

func boundsHint(minV, maxV *float64) string {
	switch {
	case minV != nil && maxV != nil:
		return fmt.Sprintf("(between %g and %g)", *minV, *maxV)
	case minV != nil:
		return fmt.Sprintf("(at least %g)", *minV)
	default:
		return fmt.Sprintf("(at most %g)", *maxV)
	}
}

// parseAPIError classifies an API failure. Provider payloads stay in the cause, never in the
// public message.
func parseAPIError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return domain.NewError(domain.ErrInternal, "model provider timed out", err)
	}

	status, detail := 0, ""

	var reqErr *openai.RequestError
	var apiErr *openai.APIError
	switch {
	case errors.As(err, &apiErr):
		status, detail = apiErr.HTTPStatusCode, apiErr.Message
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
		detail = extractDetail(reqErr.Body)
		if detail == "" {
			detail = string(reqErr.Body)
		}
	}

	cause := fmt.Errorf("chat API error %d: %s: %w", status, detail, err)
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return domain.NewError(domain.ErrProviderAuth, "invalid provider credentials", cause)
	case http.StatusTooManyRequests:
		return domain.NewError(domain.ErrProviderRateLimit, "provider quota exceeded", cause)
	case 0:
		return domain.NewError(domain.ErrInternal, "model provider request failed", err)
	default:
		return domain.NewError(domain.ErrInternal, "model provider request failed", cause)
	}
}

// extractDetail extracts the "detail" field from a JSON error body (Nebius error format).
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
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
