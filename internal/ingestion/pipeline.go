// Package ingestion turns extracted document text into stored chunks.
// Embedding failure at ingestion time is tolerated: chunks land
// text-only and a later backfill pass fills in the vectors. This is the
// only place partial success is accepted; retrieval never degrades.
package ingestion

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"go.uber.org/zap"

	"github.com/knowdeck/internal/apperrors"
	"github.com/knowdeck/pkg/models"
)

// BatchEmbedder is the embedding gateway contract used at ingestion.
type BatchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// ChunkWriter persists chunks and supports the backfill pass.
type ChunkWriter interface {
	InsertBatch(ctx context.Context, chunks []*models.DocumentChunk) error
	ListMissingEmbeddings(ctx context.Context, limit int) ([]*models.DocumentChunk, error)
	UpdateEmbedding(ctx context.Context, id string, vec []float32) error
}

// DocumentUpdater moves a document between pending/ready/failed.
type DocumentUpdater interface {
	UpdateStatus(ctx context.Context, id string, status models.DocumentStatus) error
}

// Publisher emits domain events; nil disables publishing.
type Publisher interface {
	Publish(ctx context.Context, event models.DomainEvent)
}

// Pipeline is the document ingestion pipeline.
type Pipeline struct {
	embedder     BatchEmbedder
	chunks       ChunkWriter
	docs         DocumentUpdater
	events       Publisher
	chunkSize    int
	chunkOverlap int
	logger       *zap.Logger
}

func NewPipeline(embedder BatchEmbedder, chunks ChunkWriter, docs DocumentUpdater, events Publisher, chunkSize, chunkOverlap int, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		embedder:     embedder,
		chunks:       chunks,
		docs:         docs,
		events:       events,
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		logger:       logger,
	}
}

// Ingest splits the extracted text blocks of one document, embeds them
// and stores the chunks. When the embedding gateway is unavailable the
// chunks are stored text-only and the document is still marked ready;
// the vectors arrive via Backfill.
func (p *Pipeline) Ingest(ctx context.Context, kbID, documentID, sourceFilename string, textBlocks []string) (int, error) {
	const op = "ingestion.ingest"

	texts := SplitBlocks(textBlocks, p.chunkSize, p.chunkOverlap)
	if len(texts) == 0 {
		p.markStatus(ctx, documentID, models.DocumentFailed)
		return 0, apperrors.New(apperrors.KindInvalidArgument, op, "document has no extractable text")
	}

	vectors, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		p.logger.Warn("embedding failed at ingestion, storing text-only chunks",
			zap.String("document_id", documentID),
			zap.Int("chunk_count", len(texts)),
			zap.Error(err))
		vectors = nil
	}
	if vectors != nil && len(vectors) != len(texts) {
		p.logger.Warn("embedding count mismatch, storing text-only chunks",
			zap.Int("vectors", len(vectors)), zap.Int("chunks", len(texts)))
		vectors = nil
	}

	now := time.Now().UTC()
	chunks := make([]*models.DocumentChunk, 0, len(texts))
	for i, text := range texts {
		chunk := &models.DocumentChunk{
			ID:         uuid.NewString(),
			KBID:       kbID,
			DocumentID: documentID,
			Content:    text,
			Metadata: map[string]string{
				"source":      sourceFilename,
				"chunk_index": strconv.Itoa(i),
			},
			CreatedAt: now,
		}
		if vectors != nil {
			vec := pgvector.NewVector(vectors[i])
			chunk.Embedding = &vec
		}
		chunks = append(chunks, chunk)
	}

	if err := p.chunks.InsertBatch(ctx, chunks); err != nil {
		p.markStatus(ctx, documentID, models.DocumentFailed)
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	p.markStatus(ctx, documentID, models.DocumentReady)

	if p.events != nil {
		p.events.Publish(ctx, models.DomainEvent{
			ID:        uuid.NewString(),
			Type:      models.EventDocumentIngested,
			Source:    "ingestion",
			Timestamp: time.Now().UTC(),
			Data: map[string]string{
				"kb_id":       kbID,
				"document_id": documentID,
				"filename":    sourceFilename,
				"chunk_count": strconv.Itoa(len(chunks)),
				"embedded":    strconv.FormatBool(vectors != nil),
			},
		})
	}

	p.logger.Info("document ingested",
		zap.String("document_id", documentID),
		zap.Int("chunk_count", len(chunks)),
		zap.Bool("embedded", vectors != nil))
	return len(chunks), nil
}

// Backfill embeds up to limit text-only chunks. Returns how many chunks
// got their vector. Individual failures stop the pass so the caller can
// rerun it once the gateway recovers.
func (p *Pipeline) Backfill(ctx context.Context, limit int) (int, error) {
	const op = "ingestion.backfill"

	pending, err := p.chunks.ListMissingEmbeddings(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	texts := make([]string, len(pending))
	for i, chunk := range pending {
		texts[i] = chunk.Content
	}
	vectors, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.KindRetrievalUnavailable, op, err)
	}
	if len(vectors) != len(pending) {
		return 0, fmt.Errorf("%s: got %d vectors for %d chunks", op, len(vectors), len(pending))
	}

	done := 0
	for i, chunk := range pending {
		if err := p.chunks.UpdateEmbedding(ctx, chunk.ID, vectors[i]); err != nil {
			return done, fmt.Errorf("%s: %w", op, err)
		}
		done++
	}
	p.logger.Info("backfilled chunk embeddings", zap.Int("count", done))
	return done, nil
}

func (p *Pipeline) markStatus(ctx context.Context, documentID string, status models.DocumentStatus) {
	if err := p.docs.UpdateStatus(ctx, documentID, status); err != nil {
		p.logger.Warn("failed to update document status",
			zap.String("document_id", documentID),
			zap.String("status", string(status)),
			zap.Error(err))
	}
}
