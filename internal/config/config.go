package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	OpenAI    OpenAIConfig    `yaml:"openai"`
	Ingestion IngestionConfig `yaml:"ingestion"`
	Redis     RedisConfig     `yaml:"redis"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig represents the HTTP gateway configuration
type ServerConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	IdleTimeout    time.Duration `yaml:"idle_timeout"`
	EnableCORS     bool          `yaml:"enable_cors"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
	MaxRequestSize int64         `yaml:"max_request_size"`
}

// DatabaseConfig represents the Postgres connection configuration
type DatabaseConfig struct {
	URL          string        `yaml:"url"`
	MaxConns     int32         `yaml:"max_conns"`
	MinConns     int32         `yaml:"min_conns"`
	ConnTimeout  time.Duration `yaml:"conn_timeout"`
	QueryTimeout time.Duration `yaml:"query_timeout"`
}

// OpenAIConfig represents the embedding and language model gateways
type OpenAIConfig struct {
	APIKey             string        `yaml:"api_key"`
	BaseURL            string        `yaml:"base_url"`
	LLMModel           string        `yaml:"llm_model"`
	EmbeddingModel     string        `yaml:"embedding_model"`
	EmbeddingDimension int           `yaml:"embedding_dimension"`
	RequestTimeout     time.Duration `yaml:"request_timeout"`
}

// IngestionConfig represents text splitting and embedding batch settings
type IngestionConfig struct {
	ChunkSize      int    `yaml:"chunk_size"`
	ChunkOverlap   int    `yaml:"chunk_overlap"`
	EmbedBatchSize int    `yaml:"embed_batch_size"`
	UploadDir      string `yaml:"upload_dir"`
}

// RedisConfig represents the optional query-embedding cache
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	Prefix   string        `yaml:"prefix"`
	TTL      time.Duration `yaml:"ttl"`
}

// KafkaConfig represents the optional domain event publisher
type KafkaConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Brokers  []string      `yaml:"brokers"`
	ClientID string        `yaml:"client_id"`
	Timeout  time.Duration `yaml:"timeout"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json or console
}

// Load reads the YAML configuration at path, expanding ${ENV} references
// and applying defaults. A .env file next to the process, when present,
// is loaded first so local development needs no exported variables.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 30 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		// Streaming endpoints hold the response open; keep this generous.
		c.Server.WriteTimeout = 300 * time.Second
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 120 * time.Second
	}
	if len(c.Server.AllowedOrigins) == 0 {
		c.Server.AllowedOrigins = []string{"*"}
	}
	if c.Server.MaxRequestSize == 0 {
		c.Server.MaxRequestSize = 50 << 20 // 50MB uploads
	}

	if c.Database.MaxConns == 0 {
		c.Database.MaxConns = 10
	}
	if c.Database.ConnTimeout == 0 {
		c.Database.ConnTimeout = 5 * time.Second
	}
	if c.Database.QueryTimeout == 0 {
		c.Database.QueryTimeout = 15 * time.Second
	}

	if c.OpenAI.LLMModel == "" {
		c.OpenAI.LLMModel = "gpt-4o"
	}
	if c.OpenAI.EmbeddingModel == "" {
		c.OpenAI.EmbeddingModel = "text-embedding-3-small"
	}
	if c.OpenAI.EmbeddingDimension == 0 {
		c.OpenAI.EmbeddingDimension = 1536
	}
	if c.OpenAI.RequestTimeout == 0 {
		c.OpenAI.RequestTimeout = 120 * time.Second
	}

	if c.Ingestion.ChunkSize == 0 {
		c.Ingestion.ChunkSize = 800
	}
	if c.Ingestion.ChunkOverlap == 0 {
		c.Ingestion.ChunkOverlap = 100
	}
	if c.Ingestion.EmbedBatchSize == 0 {
		c.Ingestion.EmbedBatchSize = 10
	}
	if c.Ingestion.UploadDir == "" {
		c.Ingestion.UploadDir = "uploads"
	}

	if c.Redis.Prefix == "" {
		c.Redis.Prefix = "knowdeck"
	}
	if c.Redis.TTL == 0 {
		c.Redis.TTL = 24 * time.Hour
	}

	if c.Kafka.ClientID == "" {
		c.Kafka.ClientID = "knowdeck"
	}
	if c.Kafka.Timeout == 0 {
		c.Kafka.Timeout = 10 * time.Second
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
}
