package config

import (
	"fmt"
	"strings"
)

// Validate checks the configuration for values that would only fail at
// first use.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return fmt.Errorf("server config error: %w", err)
	}
	if err := c.validateDatabase(); err != nil {
		return fmt.Errorf("database config error: %w", err)
	}
	if err := c.validateOpenAI(); err != nil {
		return fmt.Errorf("openai config error: %w", err)
	}
	if err := c.validateKafka(); err != nil {
		return fmt.Errorf("kafka config error: %w", err)
	}
	if err := c.validateLogging(); err != nil {
		return fmt.Errorf("logging config error: %w", err)
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	return nil
}

func (c *Config) validateDatabase() error {
	if c.Database.URL == "" {
		return fmt.Errorf("url is required")
	}
	if !strings.HasPrefix(c.Database.URL, "postgres://") && !strings.HasPrefix(c.Database.URL, "postgresql://") {
		return fmt.Errorf("url must be a postgres connection string")
	}
	return nil
}

func (c *Config) validateOpenAI() error {
	if c.OpenAI.APIKey == "" {
		return fmt.Errorf("api_key is required")
	}
	if c.OpenAI.EmbeddingDimension < 1 {
		return fmt.Errorf("embedding_dimension must be positive")
	}
	return nil
}

func (c *Config) validateKafka() error {
	if !c.Kafka.Enabled {
		return nil
	}
	if len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("brokers is required when kafka is enabled")
	}
	for _, broker := range c.Kafka.Brokers {
		if !strings.Contains(broker, ":") {
			return fmt.Errorf("invalid broker format: %s (expected host:port)", broker)
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid level: %s", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("invalid format: %s", c.Logging.Format)
	}
	return nil
}
