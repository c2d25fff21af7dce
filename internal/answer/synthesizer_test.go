package answer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/knowdeck/internal/apperrors"
	"github.com/knowdeck/pkg/models"
)

type fakeRetriever struct {
	refs []models.RetrievedChunk
	err  error

	gotQuery string
	gotTopK  int
}

func (f *fakeRetriever) Retrieve(_ context.Context, query string, _ []string, topK int) ([]models.RetrievedChunk, error) {
	f.gotQuery = query
	f.gotTopK = topK
	return f.refs, f.err
}

type fakeGenerator struct {
	reply     string
	err       error
	gotPrompt string
}

func (f *fakeGenerator) Generate(_ context.Context, prompt string, _ float32) (string, error) {
	f.gotPrompt = prompt
	return f.reply, f.err
}

func (f *fakeGenerator) GenerateStream(_ context.Context, prompt string, _ float32, sink func(string) error) (string, error) {
	f.gotPrompt = prompt
	if f.err != nil {
		return "", f.err
	}
	for _, fragment := range []string{f.reply[:len(f.reply)/2], f.reply[len(f.reply)/2:]} {
		if err := sink(fragment); err != nil {
			return "", err
		}
	}
	return f.reply, nil
}

func refsFixture() []models.RetrievedChunk {
	return []models.RetrievedChunk{
		{
			Chunk: models.DocumentChunk{
				ID:       "c1",
				Content:  "Photosynthesis converts light into chemical energy.",
				Metadata: map[string]string{"source": "biology.md", "chunk_index": "0"},
			},
			Distance: 0.12,
		},
		{
			Chunk: models.DocumentChunk{
				ID:      "c2",
				Content: "Chlorophyll absorbs red and blue light.",
			},
			Distance: 0.31,
		},
	}
}

func TestAnswerGroundsPromptOnRetrievedChunks(t *testing.T) {
	retriever := &fakeRetriever{refs: refsFixture()}
	gen := &fakeGenerator{reply: "Plants convert light into energy."}
	s := NewSynthesizer(retriever, gen, zap.NewNop())

	res, err := s.Answer(context.Background(), "how do plants make energy?", []string{"kb-1"}, 0)
	if err != nil {
		t.Fatalf("Answer failed: %v", err)
	}
	if res.Answer != gen.reply {
		t.Errorf("answer = %q", res.Answer)
	}
	if len(res.References) != 2 {
		t.Errorf("expected 2 references, got %d", len(res.References))
	}
	for _, want := range []string{
		"how do plants make energy?",
		"[Fragment 1 | biology.md #0]",
		"Photosynthesis converts light",
		"[Fragment 2]",
		"Chlorophyll absorbs",
	} {
		if !strings.Contains(gen.gotPrompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestAnswerForwardsTopK(t *testing.T) {
	retriever := &fakeRetriever{}
	s := NewSynthesizer(retriever, &fakeGenerator{reply: "no idea"}, zap.NewNop())

	if _, err := s.Answer(context.Background(), "q", []string{"kb-1"}, 7); err != nil {
		t.Fatalf("Answer failed: %v", err)
	}
	if retriever.gotTopK != 7 {
		t.Errorf("topK = %d, want 7", retriever.gotTopK)
	}
}

func TestAnswerEmptyContextIsExplicit(t *testing.T) {
	gen := &fakeGenerator{reply: "I could not find that in the knowledge base."}
	s := NewSynthesizer(&fakeRetriever{}, gen, zap.NewNop())

	res, err := s.Answer(context.Background(), "unknown topic", []string{"kb-1"}, 0)
	if err != nil {
		t.Fatalf("Answer failed: %v", err)
	}
	if !strings.Contains(gen.gotPrompt, "(no matching context found)") {
		t.Error("empty-context marker missing from prompt")
	}
	if len(res.References) != 0 {
		t.Errorf("expected no references, got %d", len(res.References))
	}
}

func TestAnswerRetrievalErrorPassesThrough(t *testing.T) {
	retriever := &fakeRetriever{
		err: apperrors.New(apperrors.KindRetrievalUnavailable, "retrieval.retrieve", "gateway down"),
	}
	s := NewSynthesizer(retriever, &fakeGenerator{}, zap.NewNop())

	_, err := s.Answer(context.Background(), "q", []string{"kb-1"}, 0)
	if !apperrors.IsKind(err, apperrors.KindRetrievalUnavailable) {
		t.Fatalf("expected RetrievalUnavailable untouched, got %v", err)
	}
}

func TestAnswerGeneratorFailure(t *testing.T) {
	s := NewSynthesizer(&fakeRetriever{refs: refsFixture()},
		&fakeGenerator{err: errors.New("model overloaded")}, zap.NewNop())

	_, err := s.Answer(context.Background(), "q", []string{"kb-1"}, 0)
	if !apperrors.IsKind(err, apperrors.KindGenerationFailed) {
		t.Fatalf("expected GenerationFailed, got %v", err)
	}
}

func TestStreamAnswerDeliversFragmentsAndFullText(t *testing.T) {
	gen := &fakeGenerator{reply: "Plants convert light into chemical energy."}
	s := NewSynthesizer(&fakeRetriever{refs: refsFixture()}, gen, zap.NewNop())

	var streamed strings.Builder
	res, err := s.StreamAnswer(context.Background(), "q", []string{"kb-1"}, 0, func(fragment string) error {
		streamed.WriteString(fragment)
		return nil
	})
	if err != nil {
		t.Fatalf("StreamAnswer failed: %v", err)
	}
	if streamed.String() != gen.reply {
		t.Errorf("streamed %q, want %q", streamed.String(), gen.reply)
	}
	if res.Answer != gen.reply {
		t.Errorf("full answer = %q", res.Answer)
	}
}

func TestStreamAnswerGeneratorFailure(t *testing.T) {
	s := NewSynthesizer(&fakeRetriever{refs: refsFixture()},
		&fakeGenerator{err: errors.New("stream broke")}, zap.NewNop())

	_, err := s.StreamAnswer(context.Background(), "q", []string{"kb-1"}, 0, func(string) error { return nil })
	if !apperrors.IsKind(err, apperrors.KindGenerationFailed) {
		t.Fatalf("expected GenerationFailed, got %v", err)
	}
}
