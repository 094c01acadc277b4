package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/shopsight/internal/catalogseed"
	"github.com/kailas-cloud/shopsight/internal/config"
	"github.com/kailas-cloud/shopsight/internal/db"
	dbEmbedded "github.com/kailas-cloud/shopsight/internal/db/embedded"
	dbRedis "github.com/kailas-cloud/shopsight/internal/db/redis"
	dbValkey "github.com/kailas-cloud/shopsight/internal/db/valkey"
	"github.com/kailas-cloud/shopsight/internal/domain"
	logpkg "github.com/kailas-cloud/shopsight/internal/logger"
	"github.com/kailas-cloud/shopsight/internal/metrics"
	catalogrepo "github.com/kailas-cloud/shopsight/internal/repository/catalog"
	chiTransport "github.com/kailas-cloud/shopsight/internal/transport/chi"
	geminiGen "github.com/kailas-cloud/shopsight/internal/transport/gemini"
	lcGen "github.com/kailas-cloud/shopsight/internal/transport/langchain"
	openaiGen "github.com/kailas-cloud/shopsight/internal/transport/openai"
	extractionuc "github.com/kailas-cloud/shopsight/internal/usecase/extraction"
	healthuc "github.com/kailas-cloud/shopsight/internal/usecase/health"
	"github.com/kailas-cloud/shopsight/internal/usecase/imagesearch"
	rerankuc "github.com/kailas-cloud/shopsight/internal/usecase/rerank"
	retrievaluc "github.com/kailas-cloud/shopsight/internal/usecase/retrieval"
	settingsuc "github.com/kailas-cloud/shopsight/internal/usecase/settings"
	telemetryuc "github.com/kailas-cloud/shopsight/internal/usecase/telemetry"
	"github.com/kailas-cloud/shopsight/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting shopsight API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("db_driver", cfg.Database.Driver),
		zap.String("extractor_provider", cfg.Pipeline.ExtractorProvider),
		zap.String("rerank_provider", cfg.Pipeline.RerankProvider),
	)

	ctx := context.Background()

	store, err := openStore(cfg.Database, logger)
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	// Register pipeline metrics explicitly (HTTP metrics register in init())
	metrics.RegisterLLMMetrics()
	metrics.RegisterPipelineMetrics()

	catalog := catalogrepo.New(store, catalogrepo.Config{
		KeyPrefix: cfg.Catalog.KeyPrefix,
		PoolSize:  cfg.Catalog.PoolSize,
		Language:  cfg.Catalog.Language,
	})
	if _, err := catalog.EnsureIndex(ctx); err != nil {
		logger.Fatal("Failed to ensure catalog index", zap.Error(err))
	}
	if cfg.Catalog.SeedDemo {
		res, err := catalogseed.NewSeeder(catalog, 2, logger).Seed(ctx, catalogseed.Demo(), false)
		if err != nil {
			logger.Fatal("Failed to seed demo catalog", zap.Error(err))
		}
		logger.Info("Demo catalog", zap.Int("written", res.Written), zap.Bool("skipped", res.Skipped))
	}

	// Model providers: one client per (provider, role), built lazily so an unused provider needs
	// no credentials.
	models := newModelRegistry(ctx, cfg.Providers, logger)

	extractorClient, err := models.get(cfg.Pipeline.ExtractorProvider, roleVision)
	if err != nil {
		logger.Fatal("Failed to create extractor provider", zap.Error(err))
	}
	extractor := extractionuc.NewInstrumentedExtractor(
		extractionuc.New(extractorClient), cfg.Pipeline.ExtractorProvider, extractorClient.Model(),
	)

	// Pass a nil interface (not a typed nil pointer) when reranking is disabled.
	var reranker imagesearch.Reranker
	if cfg.Pipeline.RerankProvider != "" {
		primary, err := models.get(cfg.Pipeline.RerankProvider, roleRerank)
		if err != nil {
			logger.Fatal("Failed to create rerank provider", zap.Error(err))
		}
		repair, err := models.get(cfg.Pipeline.RepairProvider, roleRerank)
		if err != nil {
			logger.Fatal("Failed to create repair provider", zap.Error(err))
		}
		reranker = rerankuc.New(primary, repair)
	}

	bootTuning, err := cfg.BootAdminConfig()
	if err != nil {
		logger.Fatal("Invalid boot tuning", zap.Error(err))
	}
	settingsSvc, err := settingsuc.New(bootTuning)
	if err != nil {
		logger.Fatal("Invalid boot tuning", zap.Error(err))
	}
	telemetrySvc := telemetryuc.New(cfg.Telemetry.Capacity)

	searchSvc := imagesearch.New(
		extractor,
		retrievaluc.New(catalog),
		reranker,
		settingsSvc,
		telemetrySvc,
	)

	healthSvc := healthuc.New(store, catalog, models.healthProviders()...)

	server := chiTransport.NewServer(searchSvc, settingsSvc, telemetrySvc, healthSvc, logger, chiTransport.Options{
		AdminToken:     cfg.Admin.Token,
		MaxUploadBytes: cfg.Upload.MaxBytes,
	})
	if cfg.Admin.Token == "" {
		logger.Warn("admin.token is empty: admin routes will reject every request")
	}

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      server.Router(),
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// openStore creates the database store for the configured driver.
func openStore(cfg config.DatabaseConfig, logger *zap.Logger) (db.Store, error) {
	switch cfg.Driver {
	case config.DriverValkey:
		return dbValkey.NewStore(dbValkey.Config{
			Addrs:    cfg.Addrs,
			Password: cfg.Password,
		})
	case config.DriverRedis:
		return dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Addrs,
			Password: cfg.Password,
		})
	case config.DriverEmbedded:
		return dbEmbedded.NewStore(dbEmbedded.Config{
			Path:     cfg.Path,
			InMemory: cfg.Path == "",
			Logger:   logger,
		})
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

type role int

const (
	roleVision role = iota
	roleRerank
)

// modelClient is what the composition root needs from every provider adapter.
type modelClient interface {
	domain.Generator
	Model() string
	HealthCheck(ctx context.Context) error
}

type modelKey struct {
	provider string
	role     role
}

// modelRegistry builds and caches provider clients.
type modelRegistry struct {
	ctx     context.Context
	cfg     config.ProvidersConfig
	logger  *zap.Logger
	clients map[modelKey]modelClient
	order   []modelKey
}

func newModelRegistry(ctx context.Context, cfg config.ProvidersConfig, logger *zap.Logger) *modelRegistry {
	return &modelRegistry{ctx: ctx, cfg: cfg, logger: logger, clients: map[modelKey]modelClient{}}
}

func (m *modelRegistry) get(provider string, r role) (modelClient, error) {
	key := modelKey{provider: provider, role: r}
	if c, ok := m.clients[key]; ok {
		return c, nil
	}

	var (
		c   modelClient
		err error
	)
	switch provider {
	case config.ProviderOpenAI:
		model := m.cfg.OpenAI.VisionModel
		if r == roleRerank {
			model = m.cfg.OpenAI.RerankModel
		}
		c = openaiGen.NewGenerator(&openaiGen.Config{
			APIKey:      m.cfg.OpenAI.APIKey,
			BaseURL:     m.cfg.OpenAI.BaseURL,
			Model:       model,
			ImageDetail: m.cfg.OpenAI.ImageDetail,
			Provider:    provider,
			Logger:      m.logger,
		})
	case config.ProviderGemini:
		model := m.cfg.Gemini.VisionModel
		if r == roleRerank {
			model = m.cfg.Gemini.RerankModel
		}
		c, err = geminiGen.NewGenerator(m.ctx, &geminiGen.Config{
			APIKey:   m.cfg.Gemini.APIKey,
			BaseURL:  m.cfg.Gemini.BaseURL,
			Model:    model,
			Provider: provider,
			Logger:   m.logger,
		})
	case config.ProviderLocal:
		c, err = lcGen.NewOpenAICompatible(&lcGen.Config{
			BaseURL:  m.cfg.Local.BaseURL,
			Token:    m.cfg.Local.Token,
			Model:    m.cfg.Local.Model,
			Provider: provider,
			Logger:   m.logger,
		})
	default:
		err = fmt.Errorf("unknown provider %q", provider)
	}
	if err != nil {
		return nil, err
	}

	m.clients[key] = c
	m.order = append(m.order, key)
	m.logger.Info("Model provider created",
		zap.String("provider", provider),
		zap.String("model", c.Model()),
	)
	return c, nil
}

// healthProviders returns one health check per distinct provider in use.
func (m *modelRegistry) healthProviders() []healthuc.Provider {
	seen := map[string]bool{}
	var out []healthuc.Provider
	for _, key := range m.order {
		if seen[key.provider] {
			continue
		}
		seen[key.provider] = true
		out = append(out, healthuc.Provider{Name: "provider_" + key.provider, Checker: m.clients[key]})
	}
	return out
}
