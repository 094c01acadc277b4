package shopsight

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	driver   string // "valkey", "redis" or "embedded"
	addrs    []string
	password string
	path     string

	keyPrefix string
	poolSize  int
	language  string

	provider      string // "openai" or "gemini"
	apiKey        string
	model         string
	extractor     Extractor
	disableRerank bool

	telemetryCapacity int

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

// WithValkey stores the catalog in a Valkey instance with the search module.
func WithValkey(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "valkey"
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithRedis stores the catalog in a Redis 8+ instance.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "redis"
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithEmbedded stores the catalog in a badger database at path.
// An empty path keeps everything in memory.
func WithEmbedded(path string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "embedded"
		c.path = path
	})
}

// WithKeyPrefix namespaces catalog keys. Default: "shopsight:".
func WithKeyPrefix(prefix string) Option {
	return optionFunc(func(c *clientConfig) {
		c.keyPrefix = prefix
	})
}

// WithLanguage sets the stemming language of the text index. Default: "portuguese".
func WithLanguage(lang string) Option {
	return optionFunc(func(c *clientConfig) {
		c.language = lang
	})
}

// WithOpenAI uses an OpenAI vision model for extraction and reranking.
func WithOpenAI(apiKey, model string) Option {
	return optionFunc(func(c *clientConfig) {
		c.provider = "openai"
		c.apiKey = apiKey
		c.model = model
	})
}

// WithGemini uses a Gemini model for extraction and reranking.
func WithGemini(apiKey, model string) Option {
	return optionFunc(func(c *clientConfig) {
		c.provider = "gemini"
		c.apiKey = apiKey
		c.model = model
	})
}

// WithExtractor replaces the model-backed extractor. Reranking still uses the model provider
// when one is configured.
func WithExtractor(e Extractor) Option {
	return optionFunc(func(c *clientConfig) {
		c.extractor = e
	})
}

// WithoutRerank skips the second stage even when a model provider is configured.
func WithoutRerank() Option {
	return optionFunc(func(c *clientConfig) {
		c.disableRerank = true
	})
}

// WithTelemetryCapacity sizes the in-memory search event buffer. Default: 50.
func WithTelemetryCapacity(n int) Option {
	return optionFunc(func(c *clientConfig) {
		c.telemetryCapacity = n
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default).
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
