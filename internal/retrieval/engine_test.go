package retrieval

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/knowdeck/internal/apperrors"
	"github.com/knowdeck/pkg/models"
)

type fakeEmbedder struct {
	vec []float32
	err error
}

func (f *fakeEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	return f.vec, f.err
}

type fakeSearcher struct {
	results []models.RetrievedChunk
	err     error

	gotKBIDs []string
	gotVec   []float32
	gotTopK  int
}

func (f *fakeSearcher) Nearest(_ context.Context, kbIDs []string, queryVec []float32, topK int) ([]models.RetrievedChunk, error) {
	f.gotKBIDs = kbIDs
	f.gotVec = queryVec
	f.gotTopK = topK
	return f.results, f.err
}

func chunkResult(id string, distance float64) models.RetrievedChunk {
	return models.RetrievedChunk{
		Chunk:    models.DocumentChunk{ID: id, Content: "content " + id},
		Distance: distance,
	}
}

func TestRetrieveRejectsEmptyQuery(t *testing.T) {
	e := NewEngine(&fakeEmbedder{}, &fakeSearcher{}, zap.NewNop())
	_, err := e.Retrieve(context.Background(), "  ", []string{"kb-1"}, 0)
	if !apperrors.IsKind(err, apperrors.KindInvalidArgument) {
		t.Fatalf("expected InvalidArgument, got %v", err)
	}
}

func TestRetrieveRejectsEmptyKBIDs(t *testing.T) {
	e := NewEngine(&fakeEmbedder{}, &fakeSearcher{}, zap.NewNop())
	_, err := e.Retrieve(context.Background(), "what is x", nil, 0)
	if !apperrors.IsKind(err, apperrors.KindInvalidArgument) {
		t.Fatalf("expected InvalidArgument, got %v", err)
	}
}

func TestRetrieveRejectsNegativeTopK(t *testing.T) {
	e := NewEngine(&fakeEmbedder{vec: []float32{0.1}}, &fakeSearcher{}, zap.NewNop())
	_, err := e.Retrieve(context.Background(), "what is x", []string{"kb-1"}, -1)
	if !apperrors.IsKind(err, apperrors.KindInvalidArgument) {
		t.Fatalf("expected InvalidArgument, got %v", err)
	}
}

func TestRetrieveDefaultsTopK(t *testing.T) {
	searcher := &fakeSearcher{}
	e := NewEngine(&fakeEmbedder{vec: []float32{0.1, 0.2}}, searcher, zap.NewNop())

	_, err := e.Retrieve(context.Background(), "what is x", []string{"kb-1", "kb-2"}, 0)
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if searcher.gotTopK != DefaultTopK {
		t.Errorf("topK = %d, want %d", searcher.gotTopK, DefaultTopK)
	}
	if len(searcher.gotKBIDs) != 2 {
		t.Errorf("kb ids not forwarded: %v", searcher.gotKBIDs)
	}
	if len(searcher.gotVec) != 2 {
		t.Errorf("query vector not forwarded: %v", searcher.gotVec)
	}
}

func TestRetrieveEmbedderFailureIsUnavailable(t *testing.T) {
	e := NewEngine(&fakeEmbedder{err: errors.New("gateway timeout")},
		&fakeSearcher{}, zap.NewNop())

	_, err := e.Retrieve(context.Background(), "what is x", []string{"kb-1"}, 3)
	if !apperrors.IsKind(err, apperrors.KindRetrievalUnavailable) {
		t.Fatalf("expected RetrievalUnavailable, got %v", err)
	}
}

func TestRetrieveReturnsRankedResults(t *testing.T) {
	searcher := &fakeSearcher{results: []models.RetrievedChunk{
		chunkResult("a", 0.1),
		chunkResult("b", 0.2),
		chunkResult("c", 0.2),
	}}
	e := NewEngine(&fakeEmbedder{vec: []float32{0.5}}, searcher, zap.NewNop())

	got, err := e.Retrieve(context.Background(), "what is x", []string{"kb-1"}, 3)
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if len(got) != 3 || got[0].Chunk.ID != "a" {
		t.Errorf("unexpected results: %+v", got)
	}
}

func TestRetrieveEmptyResultIsNotAnError(t *testing.T) {
	e := NewEngine(&fakeEmbedder{vec: []float32{0.5}}, &fakeSearcher{}, zap.NewNop())

	got, err := e.Retrieve(context.Background(), "what is x", []string{"kb-1"}, 5)
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty result, got %+v", got)
	}
}

func TestRetrieveSearchFailureIsInternal(t *testing.T) {
	e := NewEngine(&fakeEmbedder{vec: []float32{0.5}},
		&fakeSearcher{err: errors.New("connection reset")}, zap.NewNop())

	_, err := e.Retrieve(context.Background(), "what is x", []string{"kb-1"}, 5)
	if !apperrors.IsKind(err, apperrors.KindInternal) {
		t.Fatalf("expected Internal, got %v", err)
	}
}
