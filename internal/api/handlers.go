package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/knowdeck/pkg/models"
)

// Knowledge base handlers

type createKBRequest struct {
	Name  string `json:"name"`
	Owner string `json:"owner,omitempty"`
}

func (g *Gateway) handleCreateKB(w http.ResponseWriter, r *http.Request) {
	var req createKBRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Name == "" {
		writeBadRequest(w, "name is required")
		return
	}

	kb, err := g.kbs.Create(r.Context(), req.Name, req.Owner)
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, "knowledge base created", kb)
}

func (g *Gateway) handleListKBs(w http.ResponseWriter, r *http.Request) {
	kbs, err := g.kbs.List(r.Context(), r.URL.Query().Get("owner"))
	if err != nil {
		writeError(w, err)
		return
	}
	if kbs == nil {
		kbs = []*models.KnowledgeBase{}
	}
	writeSuccess(w, "ok", kbs)
}

func (g *Gateway) handleGetKB(w http.ResponseWriter, r *http.Request) {
	kb, err := g.kbs.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, "ok", kb)
}

func (g *Gateway) handleDeleteKB(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := g.kbs.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, "knowledge base deleted", map[string]string{"id": id})
}

// Document handlers

type ingestDocumentRequest struct {
	Filename   string   `json:"filename"`
	TextBlocks []string `json:"text_blocks"`
}

// handleIngestDocument accepts extracted text blocks for one document
// and runs the ingestion pipeline synchronously. Raw file parsing lives
// outside this service.
func (g *Gateway) handleIngestDocument(w http.ResponseWriter, r *http.Request) {
	kbID := mux.Vars(r)["id"]

	var req ingestDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Filename == "" {
		writeBadRequest(w, "filename is required")
		return
	}
	if len(req.TextBlocks) == 0 {
		writeBadRequest(w, "text_blocks must not be empty")
		return
	}

	if _, err := g.kbs.Get(r.Context(), kbID); err != nil {
		writeError(w, err)
		return
	}

	doc, err := g.documents.Create(r.Context(), kbID, req.Filename, "inline")
	if err != nil {
		writeError(w, err)
		return
	}

	chunkCount, err := g.ingestor.Ingest(r.Context(), kbID, doc.ID, req.Filename, req.TextBlocks)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, "document ingested", map[string]any{
		"document":    doc,
		"chunk_count": chunkCount,
	})
}

func (g *Gateway) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := g.documents.ListByKB(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	if docs == nil {
		docs = []*models.Document{}
	}
	writeSuccess(w, "ok", docs)
}

func (g *Gateway) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := g.documents.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, "ok", doc)
}

func (g *Gateway) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := g.chunks.DeleteByDocument(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	if err := g.documents.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, "document deleted", map[string]string{"id": id})
}

func (g *Gateway) handleListChunks(w http.ResponseWriter, r *http.Request) {
	chunks, err := g.chunks.ListByDocument(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	if chunks == nil {
		chunks = []*models.DocumentChunk{}
	}
	writeSuccess(w, "ok", chunks)
}

// Chat handler

type chatRequest struct {
	Query  string   `json:"query"`
	KBIDs  []string `json:"kb_ids"`
	TopK   int      `json:"top_k,omitempty"`
	Stream *bool    `json:"stream,omitempty"`
}

func (g *Gateway) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Query == "" {
		writeBadRequest(w, "query is required")
		return
	}
	if req.TopK < 0 || req.TopK > 20 {
		writeBadRequest(w, "top_k must be between 1 and 20")
		return
	}
	stream := true
	if req.Stream != nil {
		stream = *req.Stream
	}

	if !stream {
		result, err := g.answerer.Answer(r.Context(), req.Query, req.KBIDs, req.TopK)
		if err != nil {
			writeError(w, err)
			return
		}
		writeSuccess(w, "ok", map[string]any{
			"query":      req.Query,
			"kb_ids":     req.KBIDs,
			"answer":     result.Answer,
			"references": result.References,
		})
		return
	}

	sse := newSSEWriter(w)
	result, err := g.answerer.StreamAnswer(r.Context(), req.Query, req.KBIDs, req.TopK,
		func(fragment string) error {
			return sse.send(map[string]any{"type": "delta", "content": fragment})
		})
	if err != nil {
		if !sse.started {
			writeError(w, err)
			return
		}
		_ = sse.send(map[string]any{"type": "error", "message": err.Error()})
		return
	}
	_ = sse.send(map[string]any{"type": "references", "references": result.References})
	_ = sse.send(map[string]any{"type": "done"})
}

// Quiz handlers

type createQuizRequest struct {
	Owner      string   `json:"owner,omitempty"`
	KBIDs      []string `json:"kb_ids"`
	Difficulty string   `json:"difficulty,omitempty"`
}

func (g *Gateway) handleCreateQuiz(w http.ResponseWriter, r *http.Request) {
	var req createQuizRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	q, err := g.quizzes.Create(r.Context(), req.Owner, req.KBIDs, models.QuizDifficulty(req.Difficulty))
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, "quiz created", q)
}

func (g *Gateway) handleStartQuiz(w http.ResponseWriter, r *http.Request) {
	quizID := mux.Vars(r)["id"]

	// Standard answers and source chunks are excluded from the JSON
	// serialization of QuizQuestion; only the question text goes out.
	questions, err := g.quizzes.Start(r.Context(), quizID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, "quiz started", map[string]any{
		"quiz_id":   quizID,
		"questions": questions,
	})
}

type submitAnswerRequest struct {
	QuestionID string `json:"question_id"`
	Answer     string `json:"answer"`
}

func (g *Gateway) handleSubmitAnswer(w http.ResponseWriter, r *http.Request) {
	quizID := mux.Vars(r)["id"]

	var req submitAnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.QuestionID == "" {
		writeBadRequest(w, "question_id is required")
		return
	}

	result, err := g.quizzes.Submit(r.Context(), quizID, req.QuestionID, req.Answer)
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, "answer graded", result)
}

func (g *Gateway) handleQuizSummary(w http.ResponseWriter, r *http.Request) {
	quizID := mux.Vars(r)["id"]

	sse := newSSEWriter(w)
	result, err := g.quizzes.Summary(r.Context(), quizID, func(fragment string) error {
		return sse.send(map[string]any{"type": "delta", "content": fragment})
	})
	if err != nil {
		if !sse.started {
			writeError(w, err)
			return
		}
		_ = sse.send(map[string]any{"type": "error", "message": err.Error()})
		return
	}
	_ = sse.send(map[string]any{"type": "summary", "total_score": result.TotalScore})
	_ = sse.send(map[string]any{"type": "done"})
}

// Health handler

func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := g.db.Ping(r.Context()); err != nil {
		g.logger.Warn("health check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, envelope{
			Code:    http.StatusServiceUnavailable,
			Message: "database unreachable",
		})
		return
	}
	writeSuccess(w, "ok", map[string]string{"status": "healthy"})
}
