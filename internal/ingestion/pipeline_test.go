package ingestion

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/knowdeck/internal/apperrors"
	"github.com/knowdeck/pkg/models"
)

type fakeEmbedder struct {
	err   error
	calls int
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = []float32{float32(i), 1.0}
	}
	return vectors, nil
}

type fakeChunkWriter struct {
	inserted  []*models.DocumentChunk
	insertErr error

	pending   []*models.DocumentChunk
	updated   map[string][]float32
	updateErr error
}

func (f *fakeChunkWriter) InsertBatch(_ context.Context, chunks []*models.DocumentChunk) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.inserted = append(f.inserted, chunks...)
	return nil
}

func (f *fakeChunkWriter) ListMissingEmbeddings(_ context.Context, limit int) ([]*models.DocumentChunk, error) {
	if limit < len(f.pending) {
		return f.pending[:limit], nil
	}
	return f.pending, nil
}

func (f *fakeChunkWriter) UpdateEmbedding(_ context.Context, id string, vec []float32) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	if f.updated == nil {
		f.updated = make(map[string][]float32)
	}
	f.updated[id] = vec
	return nil
}

type fakeDocUpdater struct {
	statuses map[string]models.DocumentStatus
}

func (f *fakeDocUpdater) UpdateStatus(_ context.Context, id string, status models.DocumentStatus) error {
	if f.statuses == nil {
		f.statuses = make(map[string]models.DocumentStatus)
	}
	f.statuses[id] = status
	return nil
}

type capturePublisher struct {
	events []models.DomainEvent
}

func (c *capturePublisher) Publish(_ context.Context, event models.DomainEvent) {
	c.events = append(c.events, event)
}

func newTestPipeline(embedder BatchEmbedder, chunks ChunkWriter, docs DocumentUpdater, events Publisher) *Pipeline {
	return NewPipeline(embedder, chunks, docs, events, 800, 100, zap.NewNop())
}

func TestIngestStoresEmbeddedChunks(t *testing.T) {
	writer := &fakeChunkWriter{}
	docs := &fakeDocUpdater{}
	pub := &capturePublisher{}
	p := newTestPipeline(&fakeEmbedder{}, writer, docs, pub)

	n, err := p.Ingest(context.Background(), "kb-1", "doc-1", "notes.md",
		[]string{"first block of text", "second block of text"})
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if n != 2 || len(writer.inserted) != 2 {
		t.Fatalf("expected 2 chunks, got n=%d inserted=%d", n, len(writer.inserted))
	}
	for i, chunk := range writer.inserted {
		if !chunk.HasEmbedding() {
			t.Errorf("chunk %d missing embedding", i)
		}
		if chunk.KBID != "kb-1" || chunk.DocumentID != "doc-1" {
			t.Errorf("chunk %d has wrong parents: %+v", i, chunk)
		}
		if chunk.Metadata["source"] != "notes.md" {
			t.Errorf("chunk %d missing source metadata", i)
		}
	}
	if docs.statuses["doc-1"] != models.DocumentReady {
		t.Errorf("document status = %q", docs.statuses["doc-1"])
	}
	if len(pub.events) != 1 || pub.events[0].Type != models.EventDocumentIngested {
		t.Errorf("unexpected events: %+v", pub.events)
	}
}

func TestIngestEmbeddingFailureStoresTextOnly(t *testing.T) {
	writer := &fakeChunkWriter{}
	docs := &fakeDocUpdater{}
	p := newTestPipeline(&fakeEmbedder{err: errors.New("gateway down")}, writer, docs, nil)

	n, err := p.Ingest(context.Background(), "kb-1", "doc-1", "notes.md",
		[]string{"some text to chunk"})
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 chunk, got %d", n)
	}
	if writer.inserted[0].HasEmbedding() {
		t.Error("chunk stored with embedding despite gateway failure")
	}
	if docs.statuses["doc-1"] != models.DocumentReady {
		t.Errorf("document status = %q, want ready", docs.statuses["doc-1"])
	}
}

func TestIngestEmptyDocumentFails(t *testing.T) {
	writer := &fakeChunkWriter{}
	docs := &fakeDocUpdater{}
	p := newTestPipeline(&fakeEmbedder{}, writer, docs, nil)

	_, err := p.Ingest(context.Background(), "kb-1", "doc-1", "blank.md", []string{"   "})
	if !apperrors.IsKind(err, apperrors.KindInvalidArgument) {
		t.Fatalf("expected InvalidArgument, got %v", err)
	}
	if docs.statuses["doc-1"] != models.DocumentFailed {
		t.Errorf("document status = %q, want failed", docs.statuses["doc-1"])
	}
	if len(writer.inserted) != 0 {
		t.Error("chunks persisted for empty document")
	}
}

func TestIngestInsertFailureMarksFailed(t *testing.T) {
	writer := &fakeChunkWriter{insertErr: errors.New("constraint violation")}
	docs := &fakeDocUpdater{}
	p := newTestPipeline(&fakeEmbedder{}, writer, docs, nil)

	_, err := p.Ingest(context.Background(), "kb-1", "doc-1", "notes.md", []string{"text"})
	if err == nil {
		t.Fatal("expected error")
	}
	if docs.statuses["doc-1"] != models.DocumentFailed {
		t.Errorf("document status = %q, want failed", docs.statuses["doc-1"])
	}
}

func TestBackfillFillsVectors(t *testing.T) {
	writer := &fakeChunkWriter{pending: []*models.DocumentChunk{
		{ID: "c1", Content: "first"},
		{ID: "c2", Content: "second"},
	}}
	p := newTestPipeline(&fakeEmbedder{}, writer, &fakeDocUpdater{}, nil)

	done, err := p.Backfill(context.Background(), 100)
	if err != nil {
		t.Fatalf("Backfill failed: %v", err)
	}
	if done != 2 {
		t.Fatalf("done = %d, want 2", done)
	}
	if len(writer.updated) != 2 {
		t.Errorf("updated %d chunks", len(writer.updated))
	}
}

func TestBackfillNothingPending(t *testing.T) {
	embedder := &fakeEmbedder{}
	p := newTestPipeline(embedder, &fakeChunkWriter{}, &fakeDocUpdater{}, nil)

	done, err := p.Backfill(context.Background(), 100)
	if err != nil || done != 0 {
		t.Fatalf("done=%d err=%v", done, err)
	}
	if embedder.calls != 0 {
		t.Error("embedder called with nothing pending")
	}
}

func TestBackfillGatewayFailure(t *testing.T) {
	writer := &fakeChunkWriter{pending: []*models.DocumentChunk{{ID: "c1", Content: "text"}}}
	p := newTestPipeline(&fakeEmbedder{err: errors.New("gateway down")}, writer, &fakeDocUpdater{}, nil)

	_, err := p.Backfill(context.Background(), 100)
	if !apperrors.IsKind(err, apperrors.KindRetrievalUnavailable) {
		t.Fatalf("expected RetrievalUnavailable, got %v", err)
	}
	if len(writer.updated) != 0 {
		t.Error("vectors written despite gateway failure")
	}
}
