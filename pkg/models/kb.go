package models

import (
	"time"

	"github.com/pgvector/pgvector-go"
)

// DefaultOwner marks knowledge bases shared by every user.
const DefaultOwner = "system"

// DocumentStatus reflects whether chunking/embedding of a document finished.
type DocumentStatus string

const (
	DocumentPending DocumentStatus = "pending"
	DocumentReady   DocumentStatus = "ready"
	DocumentFailed  DocumentStatus = "failed"
)

// KnowledgeBase is a named collection of documents scoped to an owner.
type KnowledgeBase struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Owner     string    `json:"owner"`
	CreatedAt time.Time `json:"created_at"`
}

// Document is one uploaded file inside a knowledge base.
type Document struct {
	ID         string         `json:"id"`
	KBID       string         `json:"kb_id"`
	Filename   string         `json:"filename"`
	StoredPath string         `json:"stored_path"`
	Status     DocumentStatus `json:"status"`
	CreatedAt  time.Time      `json:"created_at"`
}

// DocumentChunk is the atomic retrieval and quiz-sampling grain. The
// embedding is nullable: a chunk stored while the embedding gateway was
// down stays text-only until backfill, invisible to similarity search
// but still eligible for quiz sampling.
type DocumentChunk struct {
	ID         string            `json:"id"`
	KBID       string            `json:"kb_id"`
	DocumentID string            `json:"document_id"`
	Content    string            `json:"content"`
	Embedding  *pgvector.Vector  `json:"-"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}

// HasEmbedding reports whether the chunk participates in similarity search.
func (c *DocumentChunk) HasEmbedding() bool {
	return c.Embedding != nil
}

// RetrievedChunk pairs a chunk with its cosine distance to a query.
type RetrievedChunk struct {
	Chunk    DocumentChunk `json:"chunk"`
	Distance float64       `json:"distance"`
}
