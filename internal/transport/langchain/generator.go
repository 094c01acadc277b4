// Package langchain adapts any langchaingo llms.Model to domain.Generator. It backs the local
// OpenAI-compatible provider (Ollama, LM Studio, vLLM) where native JSON-schema output is not
// available: the schema is inlined into the prompt and the model runs in JSON mode.
package langchain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	lcopenai "github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/shopsight/internal/domain"
	"github.com/kailas-cloud/shopsight/internal/metrics"
)

// Config holds the local provider settings.
type Config struct {
	BaseURL string
	// Token may be empty for servers without authentication.
	Token    string
	Model    string
	Provider string
	Logger   *zap.Logger
}

// Generator wraps an llms.Model.
type Generator struct {
	llm      llms.Model
	model    string
	provider string
	mapper   *llms.ErrorMapper
	logger   *zap.Logger
}

// NewOpenAICompatible creates a generator against an OpenAI-compatible endpoint.
func NewOpenAICompatible(cfg *Config) (*Generator, error) {
	token := cfg.Token
	if token == "" {
		token = "none"
	}
	llm, err := lcopenai.New(
		lcopenai.WithBaseURL(cfg.BaseURL),
		lcopenai.WithToken(token),
		lcopenai.WithModel(cfg.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("create langchain client: %w", err)
	}
	return New(llm, cfg.Model, cfg.Provider, cfg.Logger), nil
}

// New wraps an existing model.
func New(llm llms.Model, model, provider string, log *zap.Logger) *Generator {
	if provider == "" {
		provider = "local"
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Generator{
		llm:      llm,
		model:    model,
		provider: provider,
		mapper:   llms.OpenAIErrorMapper(),
		logger:   log,
	}
}

// Model returns the configured model name.
func (g *Generator) Model() string { return g.model }

// Generate implements domain.Generator.
func (g *Generator) Generate(ctx context.Context, req domain.GenerateRequest) (domain.Generation, error) {
	prompt, err := withSchema(req.Prompt, req.Schema)
	if err != nil {
		return domain.Generation{}, domain.NewError(domain.ErrInternal, "invalid output schema", err)
	}

	parts := make([]llms.ContentPart, 0, len(req.Images)+1)
	parts = append(parts, llms.TextPart(prompt))
	for _, img := range req.Images {
		parts = append(parts, llms.BinaryPart(img.MimeType, img.Data))
	}

	messages := make([]llms.MessageContent, 0, 2)
	if req.System != "" {
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, req.System))
	}
	messages = append(messages, llms.MessageContent{Role: llms.ChatMessageTypeHuman, Parts: parts})

	opts := []llms.CallOption{llms.WithTemperature(float64(req.Temperature))}
	if req.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(req.MaxTokens))
	}
	if req.Schema != nil {
		opts = append(opts, llms.WithJSONMode())
	}

	start := time.Now()
	resp, err := g.llm.GenerateContent(ctx, messages, opts...)
	duration := time.Since(start)

	if err != nil {
		metrics.LLMRequestsTotal.WithLabelValues(g.provider, g.model, req.Operation, "error").Inc()
		classified := g.classify(err)
		metrics.LLMErrorsTotal.WithLabelValues(g.provider, g.model, req.Operation, errorType(classified)).Inc()
		return domain.Generation{}, classified
	}
	if resp == nil || len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Content) == "" {
		metrics.LLMRequestsTotal.WithLabelValues(g.provider, g.model, req.Operation, "error").Inc()
		metrics.LLMErrorsTotal.WithLabelValues(g.provider, g.model, req.Operation, "empty_response").Inc()
		return domain.Generation{}, domain.NewError(domain.ErrProviderInvalidResponse,
			"model returned an empty response", nil)
	}

	choice := resp.Choices[0]
	promptTokens := intInfo(choice.GenerationInfo, "PromptTokens")
	completionTokens := intInfo(choice.GenerationInfo, "CompletionTokens")

	metrics.LLMRequestsTotal.WithLabelValues(g.provider, g.model, req.Operation, "success").Inc()
	metrics.LLMRequestDuration.WithLabelValues(g.provider, g.model, req.Operation).Observe(duration.Seconds())
	if promptTokens+completionTokens > 0 {
		metrics.LLMTokensTotal.WithLabelValues(g.provider, g.model, "prompt").Add(float64(promptTokens))
		metrics.LLMTokensTotal.WithLabelValues(g.provider, g.model, "completion").Add(float64(completionTokens))
	}

	g.logger.Debug("langchain generate",
		zap.String("provider", g.provider),
		zap.String("model", g.model),
		zap.String("operation", req.Operation),
		zap.Duration("duration", duration),
		zap.String("stop_reason", choice.StopReason),
	)

	return domain.Generation{
		Text:             choice.Content,
		Model:            g.model,
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
	}, nil
}

// HealthCheck sends a one-token prompt.
func (g *Generator) HealthCheck(ctx context.Context) error {
	if _, err := llms.GenerateFromSinglePrompt(ctx, g.llm, "ping", llms.WithMaxTokens(1)); err != nil {
		return fmt.Errorf("ping model: %w", err)
	}
	return nil
}

func withSchema(prompt string, schema *domain.Schema) (string, error) {
	if schema == nil {
		return prompt, nil
	}
	raw, err := json.Marshal(schema)
	if err != nil {
		return "", err
	}
	return prompt + "\n\nRespond with a single JSON value matching this JSON schema:\n" + string(raw), nil
}

// classify maps langchaingo error codes onto domain errors.
func (g *Generator) classify(err error) error {
	wrapped := g.mapper.WrapError(err)

	var lerr *llms.Error
	if !errors.As(wrapped, &lerr) {
		return domain.NewError(domain.ErrInternal, "model provider request failed", err)
	}

	switch lerr.Code {
	case llms.ErrCodeAuthentication:
		return domain.NewError(domain.ErrProviderAuth, "invalid provider credentials", wrapped)
	case llms.ErrCodeRateLimit, llms.ErrCodeQuotaExceeded:
		return domain.NewError(domain.ErrProviderRateLimit, "provider quota exceeded", wrapped)
	case llms.ErrCodeTimeout, llms.ErrCodeCanceled:
		return domain.NewError(domain.ErrInternal, "model provider timed out", wrapped)
	default:
		return domain.NewError(domain.ErrInternal, "model provider request failed", wrapped)
	}
}

func intInfo(info map[string]any, key string) int {
	switch v := info[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
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
