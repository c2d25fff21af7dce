// Package retrieval turns a user query into the top-K most relevant
// document chunks across a set of knowledge bases.
package retrieval

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/knowdeck/internal/apperrors"
	"github.com/knowdeck/pkg/models"
)

// DefaultTopK is used when the caller leaves top_k unspecified.
const DefaultTopK = 5

// QueryEmbedder converts a query into a fixed-dimension vector.
type QueryEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ChunkSearcher answers nearest-neighbor queries scoped to knowledge
// bases, over chunks that have a vector.
type ChunkSearcher interface {
	Nearest(ctx context.Context, kbIDs []string, queryVec []float32, topK int) ([]models.RetrievedChunk, error)
}

// Engine is the retrieval engine. Read-only: it never mutates the store.
type Engine struct {
	embedder QueryEmbedder
	chunks   ChunkSearcher
	logger   *zap.Logger
}

func NewEngine(embedder QueryEmbedder, chunks ChunkSearcher, logger *zap.Logger) *Engine {
	return &Engine{embedder: embedder, chunks: chunks, logger: logger}
}

// Retrieve embeds the query and returns up to topK chunks from the given
// knowledge bases ranked by ascending cosine distance. topK zero means
// DefaultTopK. An empty result is valid; the caller decides what "no
// context" means. There is no degraded text-only fallback: when the
// embedding gateway is down the call fails with RetrievalUnavailable.
func (e *Engine) Retrieve(ctx context.Context, query string, kbIDs []string, topK int) ([]models.RetrievedChunk, error) {
	const op = "retrieval.retrieve"

	if strings.TrimSpace(query) == "" {
		return nil, apperrors.New(apperrors.KindInvalidArgument, op, "query must not be empty")
	}
	if len(kbIDs) == 0 {
		return nil, apperrors.New(apperrors.KindInvalidArgument, op, "kb_ids must not be empty")
	}
	if topK == 0 {
		topK = DefaultTopK
	}
	if topK < 1 {
		return nil, apperrors.New(apperrors.KindInvalidArgument, op, "top_k must be >= 1")
	}

	queryVec, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindRetrievalUnavailable, op, err)
	}

	results, err := e.chunks.Nearest(ctx, kbIDs, queryVec, topK)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, op, err)
	}

	e.logger.Debug("retrieved chunks",
		zap.Int("count", len(results)),
		zap.Int("top_k", topK),
		zap.Strings("kb_ids", kbIDs))
	return results, nil
}
