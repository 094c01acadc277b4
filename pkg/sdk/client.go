package shopsight

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/kailas-cloud/shopsight/internal/db"
	dbEmbedded "github.com/kailas-cloud/shopsight/internal/db/embedded"
	dbRedis "github.com/kailas-cloud/shopsight/internal/db/redis"
	dbValkey "github.com/kailas-cloud/shopsight/internal/db/valkey"
	"github.com/kailas-cloud/shopsight/internal/domain"
	domset "github.com/kailas-cloud/shopsight/internal/domain/settings"
	catalogrepo "github.com/kailas-cloud/shopsight/internal/repository/catalog"
	geminiGen "github.com/kailas-cloud/shopsight/internal/transport/gemini"
	openaiGen "github.com/kailas-cloud/shopsight/internal/transport/openai"
	extractionuc "github.com/kailas-cloud/shopsight/internal/usecase/extraction"
	healthuc "github.com/kailas-cloud/shopsight/internal/usecase/health"
	"github.com/kailas-cloud/shopsight/internal/usecase/imagesearch"
	rerankuc "github.com/kailas-cloud/shopsight/internal/usecase/rerank"
	retrievaluc "github.com/kailas-cloud/shopsight/internal/usecase/retrieval"
	settingsuc "github.com/kailas-cloud/shopsight/internal/usecase/settings"
	telemetryuc "github.com/kailas-cloud/shopsight/internal/usecase/telemetry"
)

const (
	defaultReadinessTimeout  = 10 * time.Second
	defaultKeyPrefix         = "shopsight:"
	defaultLanguage          = "portuguese"
	defaultTelemetryCapacity = 50
	maxPromptRunes           = 500
)

// Internal interfaces, swapped out in tests.
type searchUseCase interface {
	Search(ctx context.Context, in imagesearch.Input) (*imagesearch.Output, error)
}

type catalogStore interface {
	Count(ctx context.Context) (int, error)
	EnsureIndex(ctx context.Context) (bool, error)
	Upsert(ctx context.Context, p domain.Product) error
	UpsertMany(ctx context.Context, products []domain.Product) error
	FindByID(ctx context.Context, id string) (domain.Product, error)
}

type feedbackUseCase interface {
	AddFeedback(requestID string, fb domain.Feedback) error
}

// modelClient is what the SDK needs from a provider adapter.
type modelClient interface {
	domain.Generator
	Model() string
	HealthCheck(ctx context.Context) error
}

// Client is the shopsight SDK entry point. Safe for concurrent use.
type Client struct {
	store     db.Store
	catalog   catalogStore
	searchSvc searchUseCase
	feedback  feedbackUseCase
	healthSvc healthUseCase
	obs       *observer
}

// New creates a Client, connects to the store and ensures the catalog index.
// The provided context is used for the readiness check and index creation.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{
		keyPrefix:         defaultKeyPrefix,
		language:          defaultLanguage,
		telemetryCapacity: defaultTelemetryCapacity,
	}
	for _, o := range opts {
		o.apply(cfg)
	}

	if cfg.driver == "" {
		return nil, errors.New("shopsight: store required (use WithRedis, WithValkey or WithEmbedded)")
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	model, err := createModel(ctx, cfg)
	if err != nil {
		return nil, err
	}

	store, err := createStore(cfg)
	if err != nil {
		return nil, err
	}

	if err := store.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
		store.Close()
		return nil, fmt.Errorf("shopsight: database not ready: %w", err)
	}

	c, err := wireClient(ctx, store, model, cfg, obs)
	if err != nil {
		store.Close()
		return nil, err
	}
	return c, nil
}

func createStore(cfg *clientConfig) (db.Store, error) {
	switch cfg.driver {
	case "valkey":
		s, err := dbValkey.NewStore(dbValkey.Config{
			Addrs:    cfg.addrs,
			Password: cfg.password,
		})
		if err != nil {
			return nil, fmt.Errorf("shopsight: create valkey store: %w", err)
		}
		return s, nil
	case "redis":
		s, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.addrs,
			Password: cfg.password,
		})
		if err != nil {
			return nil, fmt.Errorf("shopsight: create redis store: %w", err)
		}
		return s, nil
	case "embedded":
		s, err := dbEmbedded.NewStore(dbEmbedded.Config{
			Path:     cfg.path,
			InMemory: cfg.path == "",
		})
		if err != nil {
			return nil, fmt.Errorf("shopsight: create embedded store: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("shopsight: unknown driver %q", cfg.driver)
	}
}

// createModel returns nil when no provider is configured.
func createModel(ctx context.Context, cfg *clientConfig) (modelClient, error) {
	switch cfg.provider {
	case "":
		return nil, nil
	case "openai":
		return openaiGen.NewGenerator(&openaiGen.Config{
			APIKey: cfg.apiKey,
			Model:  cfg.model,
		}), nil
	case "gemini":
		g, err := geminiGen.NewGenerator(ctx, &geminiGen.Config{
			APIKey: cfg.apiKey,
			Model:  cfg.model,
		})
		if err != nil {
			return nil, fmt.Errorf("shopsight: create gemini client: %w", err)
		}
		return g, nil
	default:
		return nil, fmt.Errorf("shopsight: unknown provider %q", cfg.provider)
	}
}

func wireClient(
	ctx context.Context, store db.Store, model modelClient, cfg *clientConfig, obs *observer,
) (*Client, error) {
	catalog := catalogrepo.New(store, catalogrepo.Config{
		KeyPrefix: cfg.keyPrefix,
		PoolSize:  cfg.poolSize,
		Language:  cfg.language,
	})
	if _, err := catalog.EnsureIndex(ctx); err != nil {
		return nil, fmt.Errorf("shopsight: ensure catalog index: %w", err)
	}

	var extractor imagesearch.Extractor = noopExtractor{}
	switch {
	case cfg.extractor != nil:
		extractor = &extractorAdapter{inner: cfg.extractor}
	case model != nil:
		extractor = extractionuc.New(model)
	}

	tuning := domset.Defaults()
	// Pass a nil interface (not a typed nil pointer) when reranking is off.
	var reranker imagesearch.Reranker
	if model != nil && !cfg.disableRerank {
		reranker = rerankuc.New(model, model)
	} else {
		tuning.EnableLLMRerank = false
	}
	settingsSvc, err := settingsuc.New(tuning)
	if err != nil {
		return nil, fmt.Errorf("shopsight: tuning: %w", err)
	}
	telemetrySvc := telemetryuc.New(cfg.telemetryCapacity)

	var providers []healthuc.Provider
	if model != nil {
		providers = append(providers, healthuc.Provider{Name: "provider_" + cfg.provider, Checker: model})
	}

	return &Client{
		store:   store,
		catalog: catalog,
		searchSvc: imagesearch.New(
			extractor, retrievaluc.New(catalog), reranker, settingsSvc, telemetrySvc,
		),
		feedback:  telemetrySvc,
		healthSvc: healthuc.New(store, catalog, providers...),
		obs:       obs,
	}, nil
}

// Close releases all resources.
func (c *Client) Close() {
	if c.store != nil {
		c.store.Close()
	}
}

// Ping checks database connectivity.
func (c *Client) Ping(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("ping", start, err) }()

	if err = c.store.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Catalog returns the catalog management service.
func (c *Client) Catalog() *CatalogService {
	return &CatalogService{repo: c.catalog, obs: c.obs}
}

// SearchRequest is one image search.
type SearchRequest struct {
	// Image is a JPEG, PNG or WebP file.
	Image  []byte
	Prompt string
	// RequestID correlates feedback with the search. Generated when empty.
	RequestID string
	// Fallback signals are used when extraction fails. Nil makes extraction failures terminal.
	Fallback *Signals
}

// Search ranks catalog products against the image.
func (c *Client) Search(ctx context.Context, req SearchRequest) (resp *SearchResponse, err error) {
	start := time.Now()
	defer func() { c.obs.observe("search", start, err) }()

	in, err := buildInput(req)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	out, err := c.searchSvc.Search(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	resp = fromOutput(out)
	c.obs.observeSearch(resp)
	return resp, nil
}

// Feedback records a rating for a product returned by the search requestID.
// Returns ErrNotFound once the search has left the telemetry buffer.
func (c *Client) Feedback(_ context.Context, requestID, productID string, thumbsUp bool) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("feedback", start, err) }()

	rating := domain.RatingDown
	if thumbsUp {
		rating = domain.RatingUp
	}
	if err = c.feedback.AddFeedback(requestID, domain.Feedback{ProductID: productID, Rating: rating}); err != nil {
		return fmt.Errorf("feedback: %w", err)
	}
	return nil
}

func buildInput(req SearchRequest) (imagesearch.Input, error) {
	if len(req.Image) == 0 {
		return imagesearch.Input{}, domain.NewError(domain.ErrValidation, "image is required", nil)
	}
	mime := http.DetectContentType(req.Image)
	switch mime {
	case "image/jpeg", "image/png", "image/webp":
	default:
		return imagesearch.Input{}, domain.NewError(domain.ErrValidation,
			"unsupported image type "+mime+": allowed types are image/jpeg, image/png, image/webp", nil)
	}

	prompt := strings.TrimSpace(req.Prompt)
	if utf8.RuneCountInString(prompt) > maxPromptRunes {
		return imagesearch.Input{}, domain.NewError(domain.ErrValidation,
			fmt.Sprintf("prompt exceeds %d characters", maxPromptRunes), nil)
	}

	id := req.RequestID
	if id == "" {
		id = uuid.NewString()
	}

	in := imagesearch.Input{
		Image:     domain.Image{Data: req.Image, MimeType: mime},
		Prompt:    prompt,
		RequestID: id,
	}
	if req.Fallback != nil {
		s := toDomainSignals(*req.Fallback)
		extractionuc.Normalize(&s)
		if err := s.Validate(); err != nil {
			return imagesearch.Input{}, err
		}
		in.FallbackSignals = &s
	}
	return in, nil
}
