package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/knowdeck/internal/config"
)

// TextEmbedder is the single-text embedding contract the cache wraps.
type TextEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// CachedEmbedder memoizes query embeddings in Redis. Repeated questions
// against the same knowledge bases are common, and embedding the same
// text twice buys nothing. Cache failures degrade to a direct gateway
// call; they never fail the request.
type CachedEmbedder struct {
	inner  TextEmbedder
	client *redis.Client
	prefix string
	ttl    time.Duration
	model  string
	logger *zap.Logger
}

// NewCachedEmbedder wraps inner with a Redis lookaside cache.
func NewCachedEmbedder(inner TextEmbedder, cfg config.RedisConfig, model string, logger *zap.Logger) *CachedEmbedder {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,

		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	return &CachedEmbedder{
		inner:  inner,
		client: client,
		prefix: cfg.Prefix,
		ttl:    cfg.TTL,
		model:  model,
		logger: logger,
	}
}

// Embed returns the cached vector for text when present, otherwise calls
// through and stores the result.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := c.key(text)

	data, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var vec []float32
		if err := json.Unmarshal(data, &vec); err == nil && len(vec) > 0 {
			return vec, nil
		}
	} else if err != redis.Nil {
		c.logger.Warn("embedding cache get failed", zap.Error(err))
	}

	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(vec); err == nil {
		if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
			c.logger.Warn("embedding cache set failed", zap.Error(err))
		}
	}
	return vec, nil
}

// Close releases the Redis connection.
func (c *CachedEmbedder) Close() error { return c.client.Close() }

func (c *CachedEmbedder) key(text string) string {
	sum := sha256.Sum256([]byte(c.model + "\x00" + text))
	return c.prefix + ":emb:" + hex.EncodeToString(sum[:])
}
