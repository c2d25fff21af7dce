// Package answer composes retrieved chunks with a user query into a
// grounded, model-generated answer.
package answer

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/knowdeck/internal/apperrors"
	"github.com/knowdeck/pkg/models"
)

const answerTemperature = 0.2

const answerPromptTemplate = `You are a knowledge base assistant. Answer the user's question using ONLY the supplied context. If the context is empty or does not contain the information needed, say so explicitly instead of guessing. Keep the answer concise.

User question: %s

Context:
%s`

// Retriever is the retrieval engine contract the synthesizer consumes.
type Retriever interface {
	Retrieve(ctx context.Context, query string, kbIDs []string, topK int) ([]models.RetrievedChunk, error)
}

// Generator is the language model gateway contract.
type Generator interface {
	Generate(ctx context.Context, prompt string, temperature float32) (string, error)
	GenerateStream(ctx context.Context, prompt string, temperature float32, sink func(fragment string) error) (string, error)
}

// Result is a grounded answer plus the chunks it was grounded on.
type Result struct {
	Answer     string                  `json:"answer"`
	References []models.RetrievedChunk `json:"references"`
}

// Synthesizer builds the grounding prompt and invokes the model.
type Synthesizer struct {
	retriever Retriever
	generator Generator
	logger    *zap.Logger
}

func NewSynthesizer(retriever Retriever, generator Generator, logger *zap.Logger) *Synthesizer {
	return &Synthesizer{retriever: retriever, generator: generator, logger: logger}
}

// Answer retrieves the top chunks for query and generates one grounded
// answer. topK zero means the retrieval default of 5. Model failure or
// empty output surfaces as GenerationFailed; there is no silent
// fallback to raw snippets.
func (s *Synthesizer) Answer(ctx context.Context, query string, kbIDs []string, topK int) (*Result, error) {
	const op = "answer.answer"

	refs, err := s.retriever.Retrieve(ctx, query, kbIDs, topK)
	if err != nil {
		return nil, err
	}

	text, err := s.generator.Generate(ctx, buildPrompt(query, refs), answerTemperature)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindGenerationFailed, op, err)
	}
	return &Result{Answer: text, References: refs}, nil
}

// StreamAnswer is Answer with incremental delivery: fragments go to sink
// as they arrive and the full text is returned at the end.
func (s *Synthesizer) StreamAnswer(ctx context.Context, query string, kbIDs []string, topK int, sink func(fragment string) error) (*Result, error) {
	const op = "answer.stream_answer"

	refs, err := s.retriever.Retrieve(ctx, query, kbIDs, topK)
	if err != nil {
		return nil, err
	}

	text, err := s.generator.GenerateStream(ctx, buildPrompt(query, refs), answerTemperature, sink)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindGenerationFailed, op, err)
	}
	return &Result{Answer: text, References: refs}, nil
}

// buildPrompt concatenates chunk contents in ranked order, each tagged
// with its source metadata.
func buildPrompt(query string, refs []models.RetrievedChunk) string {
	if len(refs) == 0 {
		return fmt.Sprintf(answerPromptTemplate, query, "(no matching context found)")
	}

	var b strings.Builder
	for i, ref := range refs {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(fmt.Sprintf("[Fragment %d%s] %s", i+1, sourceTag(ref.Chunk), strings.TrimSpace(ref.Chunk.Content)))
	}
	return fmt.Sprintf(answerPromptTemplate, query, b.String())
}

func sourceTag(chunk models.DocumentChunk) string {
	source := chunk.Metadata["source"]
	if source == "" {
		return ""
	}
	if idx, ok := chunk.Metadata["chunk_index"]; ok {
		return fmt.Sprintf(" | %s #%s", source, idx)
	}
	return " | " + source
}
