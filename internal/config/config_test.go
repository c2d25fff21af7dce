package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const minimalConfig = `
database:
  url: postgres://localhost:5432/knowdeck
openai:
  api_key: test-key
`

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if cfg.Server.WriteTimeout != 300*time.Second {
		t.Errorf("write timeout = %s", cfg.Server.WriteTimeout)
	}
	if cfg.OpenAI.LLMModel != "gpt-4o" {
		t.Errorf("llm model = %q", cfg.OpenAI.LLMModel)
	}
	if cfg.OpenAI.EmbeddingDimension != 1536 {
		t.Errorf("embedding dimension = %d", cfg.OpenAI.EmbeddingDimension)
	}
	if cfg.Ingestion.ChunkSize != 800 || cfg.Ingestion.ChunkOverlap != 100 {
		t.Errorf("chunking = %d/%d", cfg.Ingestion.ChunkSize, cfg.Ingestion.ChunkOverlap)
	}
	if cfg.Ingestion.EmbedBatchSize != 10 {
		t.Errorf("embed batch size = %d", cfg.Ingestion.EmbedBatchSize)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("logging = %s/%s", cfg.Logging.Level, cfg.Logging.Format)
	}
	if cfg.Redis.Enabled || cfg.Kafka.Enabled {
		t.Error("optional backends enabled by default")
	}
}

func TestLoadExpandsEnv(t *testing.T) {
	t.Setenv("TEST_DATABASE_URL", "postgres://db.internal:5432/knowdeck")
	cfg, err := Load(writeConfig(t, `
database:
  url: ${TEST_DATABASE_URL}
openai:
  api_key: test-key
`))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Database.URL != "postgres://db.internal:5432/knowdeck" {
		t.Errorf("url = %q", cfg.Database.URL)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing database url", func(c *Config) { c.Database.URL = "" }},
		{"non-postgres url", func(c *Config) { c.Database.URL = "mysql://x" }},
		{"missing api key", func(c *Config) { c.OpenAI.APIKey = "" }},
		{"zero embedding dimension", func(c *Config) { c.OpenAI.EmbeddingDimension = -1 }},
		{"bad port", func(c *Config) { c.Server.Port = 99999 }},
		{"kafka enabled without brokers", func(c *Config) { c.Kafka.Enabled = true; c.Kafka.Brokers = nil }},
		{"kafka broker without port", func(c *Config) { c.Kafka.Enabled = true; c.Kafka.Brokers = []string{"broker1"} }},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, minimalConfig))
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
