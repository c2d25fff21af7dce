package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/knowdeck/internal/apperrors"
	"github.com/knowdeck/pkg/models"
)

// ChunkStore persists document chunks and answers both access patterns:
// cosine-distance nearest-neighbor search over embedded chunks and
// uniform random sampling over all content chunks.
type ChunkStore struct {
	pool *pgxpool.Pool
}

func NewChunkStore(pool *pgxpool.Pool) *ChunkStore {
	return &ChunkStore{pool: pool}
}

const chunkColumns = `id, kb_id, document_id, content, embedding, metadata, created_at`

// InsertBatch stores chunks in one transaction. Chunks without a vector
// are stored as-is; they stay out of similarity search until backfill.
func (s *ChunkStore) InsertBatch(ctx context.Context, chunks []*models.DocumentChunk) error {
	const op = "chunkstore.insert_batch"
	if len(chunks) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer tx.Rollback(ctx)

	for _, chunk := range chunks {
		_, err := tx.Exec(ctx,
			`INSERT INTO document_chunks (`+chunkColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			chunk.ID, chunk.KBID, chunk.DocumentID, chunk.Content, chunk.Embedding, chunk.Metadata, chunk.CreatedAt)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// DeleteByDocument removes every chunk of a document.
func (s *ChunkStore) DeleteByDocument(ctx context.Context, documentID string) error {
	const op = "chunkstore.delete_by_document"
	if _, err := s.pool.Exec(ctx, `DELETE FROM document_chunks WHERE document_id = $1`, documentID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ListByDocument returns a document's chunks in insertion order.
func (s *ChunkStore) ListByDocument(ctx context.Context, documentID string) ([]*models.DocumentChunk, error) {
	const op = "chunkstore.list_by_document"
	rows, err := s.pool.Query(ctx,
		`SELECT `+chunkColumns+` FROM document_chunks WHERE document_id = $1 ORDER BY created_at ASC, id ASC`,
		documentID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()
	return scanChunks(rows, op)
}

// Nearest returns the topK embedded chunks in the given knowledge bases
// ranked by ascending cosine distance to queryVec, ties broken by
// earlier creation time so results are reproducible.
func (s *ChunkStore) Nearest(ctx context.Context, kbIDs []string, queryVec []float32, topK int) ([]models.RetrievedChunk, error) {
	const op = "chunkstore.nearest"
	rows, err := s.pool.Query(ctx,
		`SELECT `+chunkColumns+`, embedding <=> $1 AS distance
		 FROM document_chunks
		 WHERE kb_id = ANY($2) AND embedding IS NOT NULL
		 ORDER BY distance ASC, created_at ASC, id ASC
		 LIMIT $3`,
		pgvector.NewVector(queryVec), kbIDs, topK)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var out []models.RetrievedChunk
	for rows.Next() {
		var rc models.RetrievedChunk
		if err := rows.Scan(&rc.Chunk.ID, &rc.Chunk.KBID, &rc.Chunk.DocumentID, &rc.Chunk.Content,
			&rc.Chunk.Embedding, &rc.Chunk.Metadata, &rc.Chunk.CreatedAt, &rc.Distance); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		out = append(out, rc)
	}
	return out, rows.Err()
}

// SampleRandom draws one chunk uniformly at random from the given
// knowledge bases, skipping chunks shorter than minLength and any id in
// exclude. Vector-less chunks are eligible: sampling does not need
// similarity. Returns nil when no candidate exists.
func (s *ChunkStore) SampleRandom(ctx context.Context, kbIDs []string, minLength int, exclude []string) (*models.DocumentChunk, error) {
	const op = "chunkstore.sample_random"
	if exclude == nil {
		exclude = []string{}
	}
	chunk := &models.DocumentChunk{}
	err := s.pool.QueryRow(ctx,
		`SELECT `+chunkColumns+`
		 FROM document_chunks
		 WHERE kb_id = ANY($1) AND length(content) >= $2 AND NOT (id = ANY($3))
		 ORDER BY random()
		 LIMIT 1`,
		kbIDs, minLength, exclude).
		Scan(&chunk.ID, &chunk.KBID, &chunk.DocumentID, &chunk.Content,
			&chunk.Embedding, &chunk.Metadata, &chunk.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return chunk, nil
}

// ListMissingEmbeddings returns up to limit text-only chunks for backfill.
func (s *ChunkStore) ListMissingEmbeddings(ctx context.Context, limit int) ([]*models.DocumentChunk, error) {
	const op = "chunkstore.list_missing_embeddings"
	rows, err := s.pool.Query(ctx,
		`SELECT `+chunkColumns+` FROM document_chunks WHERE embedding IS NULL ORDER BY created_at ASC LIMIT $1`,
		limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()
	return scanChunks(rows, op)
}

// UpdateEmbedding backfills the vector of a text-only chunk.
func (s *ChunkStore) UpdateEmbedding(ctx context.Context, id string, vec []float32) error {
	const op = "chunkstore.update_embedding"
	tag, err := s.pool.Exec(ctx,
		`UPDATE document_chunks SET embedding = $2 WHERE id = $1`, id, pgvector.NewVector(vec))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.New(apperrors.KindNotFound, op, "chunk not found: "+id)
	}
	return nil
}

func scanChunks(rows pgx.Rows, op string) ([]*models.DocumentChunk, error) {
	var out []*models.DocumentChunk
	for rows.Next() {
		chunk := &models.DocumentChunk{}
		if err := rows.Scan(&chunk.ID, &chunk.KBID, &chunk.DocumentID, &chunk.Content,
			&chunk.Embedding, &chunk.Metadata, &chunk.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		out = append(out, chunk)
	}
	return out, rows.Err()
}
