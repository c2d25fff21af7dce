package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/knowdeck/internal/config"
)

// ErrEmptyText is returned when there is nothing to embed.
var ErrEmptyText = errors.New("llm: empty text")

const embedBatchSize = 10

// Embedder is the embedding gateway: text in, fixed-dimension vector out.
type Embedder struct {
	api       *openai.Client
	model     openai.EmbeddingModel
	dimension int
	logger    *zap.Logger
}

// NewEmbedder builds an embedding gateway from configuration.
func NewEmbedder(cfg config.OpenAIConfig, logger *zap.Logger) *Embedder {
	apiCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = cfg.BaseURL
	}
	return &Embedder{
		api:       openai.NewClientWithConfig(apiCfg),
		model:     openai.EmbeddingModel(cfg.EmbeddingModel),
		dimension: cfg.EmbeddingDimension,
		logger:    logger,
	}
}

// Dimension returns the vector width the gateway is configured for.
func (e *Embedder) Dimension() int { return e.dimension }

// Embed converts one text into a vector.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}
	resp, err := e.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      []string{text},
		Model:      e.model,
		Dimensions: e.dimension,
	})
	if err != nil {
		return nil, fmt.Errorf("create embedding: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("create embedding: no data in response")
	}
	return resp.Data[0].Embedding, nil
}

// EmbedBatch converts texts into vectors, preserving order. Requests are
// chunked so a large document does not exceed provider input limits.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[start:end]
		resp, err := e.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input:      batch,
			Model:      e.model,
			Dimensions: e.dimension,
		})
		if err != nil {
			return nil, fmt.Errorf("create embeddings (batch %d, size %d): %w", start/embedBatchSize+1, len(batch), err)
		}
		if len(resp.Data) != len(batch) {
			return nil, fmt.Errorf("create embeddings: got %d vectors for %d inputs", len(resp.Data), len(batch))
		}
		for _, item := range resp.Data {
			out = append(out, item.Embedding)
		}
	}
	return out, nil
}
