package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const minimalYAML = `
http:
  port: 3000
database:
  driver: redis
  addrs: ["${TEST_REDIS_ADDR:-localhost:6379}"]
pipeline:
  extractor_provider: openai
  rerank_provider: gemini
providers:
  openai:
    api_key: ${TEST_OPENAI_KEY}
`

func TestParse_DefaultsAndExpansion(t *testing.T) {
	t.Setenv("TEST_OPENAI_KEY", "sk-test")

	cfg, err := Parse([]byte(minimalYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if got := cfg.Database.Addrs[0]; got != "localhost:6379" {
		t.Errorf("addr = %q, want default", got)
	}
	if cfg.Providers.OpenAI.APIKey != "sk-test" {
		t.Errorf("api key = %q", cfg.Providers.OpenAI.APIKey)
	}
	if cfg.Pipeline.RepairProvider != ProviderGemini {
		t.Errorf("repair provider = %q, want rerank provider", cfg.Pipeline.RepairProvider)
	}
	if cfg.Catalog.KeyPrefix != "shopsight:" || cfg.Catalog.PoolSize != 1000 {
		t.Errorf("catalog defaults = %+v", cfg.Catalog)
	}
	if cfg.Timeouts.Stage1Ms != 15000 || cfg.Timeouts.TotalMs != 30000 {
		t.Errorf("timeouts = %+v", cfg.Timeouts)
	}
	if cfg.Upload.MaxBytes != 10<<20 {
		t.Errorf("upload max = %d", cfg.Upload.MaxBytes)
	}
}

func TestParse_EnvTimeoutOverrides(t *testing.T) {
	t.Setenv("STAGE1_TIMEOUT_MS", "5000")
	t.Setenv("STAGE2_TIMEOUT_MS", "4000")
	t.Setenv("TOTAL_TIMEOUT_MS", "12000")

	cfg, err := Parse([]byte(minimalYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	ac, err := cfg.BootAdminConfig()
	if err != nil {
		t.Fatalf("BootAdminConfig: %v", err)
	}
	if ac.TimeoutsMs.Stage1 != 5000 || ac.TimeoutsMs.Stage2 != 4000 || ac.TimeoutsMs.Total != 12000 {
		t.Errorf("timeouts = %+v", ac.TimeoutsMs)
	}
	if ac.TimeoutsMs.Retrieval != 3000 {
		t.Errorf("retrieval = %d, want default", ac.TimeoutsMs.Retrieval)
	}
}

func TestParse_BadEnvTimeout(t *testing.T) {
	t.Setenv("TOTAL_TIMEOUT_MS", "soon")

	_, err := Parse([]byte(minimalYAML))
	if err == nil || !strings.Contains(err.Error(), "TOTAL_TIMEOUT_MS") {
		t.Fatalf("expected TOTAL_TIMEOUT_MS error, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		c := Config{
			Database: DatabaseConfig{Addrs: []string{"localhost:6379"}},
			Pipeline: PipelineConfig{RerankProvider: ProviderOpenAI},
		}
		c.ApplyDefaults()
		return c
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"bad port", func(c *Config) { c.HTTP.Port = 70000 }, "http.port"},
		{"redis without addrs", func(c *Config) { c.Database.Addrs = nil }, "database.addrs"},
		{"embedded without addrs", func(c *Config) { c.Database.Driver = DriverEmbedded; c.Database.Addrs = nil }, ""},
		{"unknown driver", func(c *Config) { c.Database.Driver = "mongo" }, "database.driver"},
		{"unknown extractor", func(c *Config) { c.Pipeline.ExtractorProvider = "acme" }, "extractor_provider"},
		{"rerank disabled", func(c *Config) { c.Pipeline.RerankProvider = ""; c.Pipeline.RepairProvider = "" }, ""},
		{"total below stage1", func(c *Config) { c.Timeouts.TotalMs = 200; c.Timeouts.Stage1Ms = 5000 }, "timeouts"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("error = %v, want containing %q", err, tc.wantErr)
			}
		})
	}
}

func TestBootAdminConfig_NoRerankProviderDisablesRerank(t *testing.T) {
	cfg := Config{Database: DatabaseConfig{Driver: DriverEmbedded}}
	cfg.ApplyDefaults()

	ac, err := cfg.BootAdminConfig()
	if err != nil {
		t.Fatalf("BootAdminConfig: %v", err)
	}
	if ac.EnableLLMRerank {
		t.Error("rerank must be disabled without a rerank provider")
	}
}

func TestLoadDotEnv(t *testing.T) {
	if err := LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("missing file should be ignored: %v", err)
	}

	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("SHOPSIGHT_TEST_DOTENV=from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SHOPSIGHT_TEST_DOTENV", "")
	_ = os.Unsetenv("SHOPSIGHT_TEST_DOTENV")

	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	if got := os.Getenv("SHOPSIGHT_TEST_DOTENV"); got != "from-file" {
		t.Errorf("env = %q", got)
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("SHOPSIGHT_SET", "value")

	got := string(expandEnvVars([]byte("a=${SHOPSIGHT_SET} b=${SHOPSIGHT_UNSET:-fallback} c=${SHOPSIGHT_UNSET}")))
	want := "a=value b=fallback c="
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
