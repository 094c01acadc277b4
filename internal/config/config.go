package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	domset "github.com/kailas-cloud/shopsight/internal/domain/settings"
)

// Database drivers.
const (
	DriverRedis    = "redis"
	DriverValkey   = "valkey"
	DriverEmbedded = "embedded"
)

// Model providers.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
	ProviderLocal  = "local"
)

// Config holds the shopsight boot configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Providers ProvidersConfig `yaml:"providers"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Timeouts  TimeoutsConfig  `yaml:"timeouts"`
	Admin     AdminConfig     `yaml:"admin"`
	Upload    UploadConfig    `yaml:"upload"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Driver           string   `yaml:"driver"` // redis, valkey, embedded (default: redis)
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
	Path             string   `yaml:"path"` // embedded only; empty means in-memory
}

// CatalogConfig holds product catalog settings.
type CatalogConfig struct {
	KeyPrefix string `yaml:"key_prefix"`
	PoolSize  int    `yaml:"pool_size"`
	Language  string `yaml:"language"`
	SeedDemo  bool   `yaml:"seed_demo"` // seed the demo catalog at boot when empty
}

// ProvidersConfig holds model provider credentials.
type ProvidersConfig struct {
	OpenAI OpenAIConfig `yaml:"openai"`
	Gemini GeminiConfig `yaml:"gemini"`
	Local  LocalConfig  `yaml:"local"`
}

// OpenAIConfig holds OpenAI-compatible API settings.
type OpenAIConfig struct {
	APIKey      string `yaml:"api_key"`
	BaseURL     string `yaml:"base_url"`
	VisionModel string `yaml:"vision_model"`
	RerankModel string `yaml:"rerank_model"`
	ImageDetail string `yaml:"image_detail"`
}

// GeminiConfig holds Gemini API settings.
type GeminiConfig struct {
	APIKey      string `yaml:"api_key"`
	BaseURL     string `yaml:"base_url"`
	VisionModel string `yaml:"vision_model"`
	RerankModel string `yaml:"rerank_model"`
}

// LocalConfig holds a local OpenAI-compatible model server (llama.cpp, ollama, vLLM).
type LocalConfig struct {
	BaseURL string `yaml:"base_url"`
	Token   string `yaml:"token"`
	Model   string `yaml:"model"`
}

// PipelineConfig selects which provider serves each model call.
type PipelineConfig struct {
	ExtractorProvider string `yaml:"extractor_provider"`
	RerankProvider    string `yaml:"rerank_provider"`  // empty disables the reranker
	RepairProvider    string `yaml:"repair_provider"`  // empty reuses the rerank provider
}

// TimeoutsConfig holds the boot values of the per-stage budgets in milliseconds.
type TimeoutsConfig struct {
	Stage1Ms    int `yaml:"stage1_ms"`
	RetrievalMs int `yaml:"retrieval_ms"`
	Stage2Ms    int `yaml:"stage2_ms"`
	TotalMs     int `yaml:"total_ms"`
}

// AdminConfig holds admin surface settings.
type AdminConfig struct {
	Token string `yaml:"token"`
}

// UploadConfig holds image upload limits.
type UploadConfig struct {
	MaxBytes int64 `yaml:"max_bytes"`
}

// TelemetryConfig holds telemetry buffer settings.
type TelemetryConfig struct {
	Capacity int `yaml:"capacity"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
// A .env file in the working directory is loaded first when present.
func Load(env string) (Config, error) {
	if err := LoadDotEnv(".env"); err != nil {
		return Config{}, err
	}

	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	return Parse(data)
}

// Parse decodes YAML config data, expanding ${VAR} references and applying defaults and
// env overrides.
func Parse(data []byte) (Config, error) {
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()
	if err := cfg.applyEnvOverrides(); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// LoadDotEnv loads variables from path without overriding ones already set. A missing file is
// not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 3000
	}
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 30
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 60
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.Driver == "" {
		c.Database.Driver = DriverRedis
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Catalog.KeyPrefix == "" {
		c.Catalog.KeyPrefix = "shopsight:"
	}
	if c.Catalog.PoolSize <= 0 {
		c.Catalog.PoolSize = 1000
	}
	if c.Catalog.Language == "" {
		c.Catalog.Language = "portuguese"
	}
	if c.Pipeline.ExtractorProvider == "" {
		c.Pipeline.ExtractorProvider = ProviderOpenAI
	}
	if c.Pipeline.RepairProvider == "" {
		c.Pipeline.RepairProvider = c.Pipeline.RerankProvider
	}
	if c.Providers.OpenAI.VisionModel == "" {
		c.Providers.OpenAI.VisionModel = "gpt-4o-mini"
	}
	if c.Providers.OpenAI.RerankModel == "" {
		c.Providers.OpenAI.RerankModel = c.Providers.OpenAI.VisionModel
	}
	if c.Providers.Gemini.VisionModel == "" {
		c.Providers.Gemini.VisionModel = "gemini-2.5-flash"
	}
	if c.Providers.Gemini.RerankModel == "" {
		c.Providers.Gemini.RerankModel = c.Providers.Gemini.VisionModel
	}

	d := domset.Defaults().TimeoutsMs
	if c.Timeouts.Stage1Ms <= 0 {
		c.Timeouts.Stage1Ms = d.Stage1
	}
	if c.Timeouts.RetrievalMs <= 0 {
		c.Timeouts.RetrievalMs = d.Retrieval
	}
	if c.Timeouts.Stage2Ms <= 0 {
		c.Timeouts.Stage2Ms = d.Stage2
	}
	if c.Timeouts.TotalMs <= 0 {
		c.Timeouts.TotalMs = d.Total
	}
	if c.Upload.MaxBytes <= 0 {
		c.Upload.MaxBytes = 10 << 20
	}
	if c.Telemetry.Capacity <= 0 {
		c.Telemetry.Capacity = 50
	}
}

// envTimeouts maps env variables onto the stage budgets they override.
var envTimeouts = []struct {
	name string
	dst  func(c *Config) *int
}{
	{"STAGE1_TIMEOUT_MS", func(c *Config) *int { return &c.Timeouts.Stage1Ms }},
	{"RETRIEVAL_TIMEOUT_MS", func(c *Config) *int { return &c.Timeouts.RetrievalMs }},
	{"STAGE2_TIMEOUT_MS", func(c *Config) *int { return &c.Timeouts.Stage2Ms }},
	{"TOTAL_TIMEOUT_MS", func(c *Config) *int { return &c.Timeouts.TotalMs }},
}

func (c *Config) applyEnvOverrides() error {
	for _, e := range envTimeouts {
		raw := os.Getenv(e.name)
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			return fmt.Errorf("%s must be a positive integer, got %q", e.name, raw)
		}
		*e.dst(c) = v
	}
	return nil
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	switch c.Database.Driver {
	case DriverRedis, DriverValkey:
		if len(c.Database.Addrs) == 0 {
			return fmt.Errorf("database.addrs is required for driver %q", c.Database.Driver)
		}
	case DriverEmbedded:
	default:
		return fmt.Errorf("database.driver must be redis, valkey or embedded, got %q", c.Database.Driver)
	}
	if err := validProvider("pipeline.extractor_provider", c.Pipeline.ExtractorProvider, false); err != nil {
		return err
	}
	if err := validProvider("pipeline.rerank_provider", c.Pipeline.RerankProvider, true); err != nil {
		return err
	}
	if err := validProvider("pipeline.repair_provider", c.Pipeline.RepairProvider, true); err != nil {
		return err
	}
	if _, err := c.BootAdminConfig(); err != nil {
		return fmt.Errorf("timeouts: %w", err)
	}
	return nil
}

func validProvider(field, name string, optional bool) error {
	switch name {
	case ProviderOpenAI, ProviderGemini, ProviderLocal:
		return nil
	case "":
		if optional {
			return nil
		}
	}
	return fmt.Errorf("%s must be openai, gemini or local, got %q", field, name)
}

// BootAdminConfig returns the shipped ranking defaults with the boot timeouts applied. The
// runtime configuration provider resets to this value.
func (c *Config) BootAdminConfig() (domset.AdminConfig, error) {
	ac := domset.Defaults()
	ac.TimeoutsMs = domset.Timeouts{
		Stage1:    c.Timeouts.Stage1Ms,
		Retrieval: c.Timeouts.RetrievalMs,
		Stage2:    c.Timeouts.Stage2Ms,
		Total:     c.Timeouts.TotalMs,
	}
	if c.Pipeline.RerankProvider == "" {
		ac.EnableLLMRerank = false
	}
	if err := ac.Validate(); err != nil {
		return domset.AdminConfig{}, err
	}
	return ac, nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
