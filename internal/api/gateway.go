// Package api exposes the HTTP surface: knowledge base and document
// management, retrieval-augmented chat, and the quiz operations. Every
// response uses the uniform {code, message, data} envelope; chat and
// quiz summary stream over SSE.
package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/knowdeck/internal/answer"
	"github.com/knowdeck/internal/config"
	"github.com/knowdeck/internal/quiz"
	"github.com/knowdeck/pkg/models"
)

// KBStore is the knowledge base persistence contract.
type KBStore interface {
	Create(ctx context.Context, name, owner string) (*models.KnowledgeBase, error)
	Get(ctx context.Context, id string) (*models.KnowledgeBase, error)
	List(ctx context.Context, owner string) ([]*models.KnowledgeBase, error)
	Delete(ctx context.Context, id string) error
}

// DocumentStore is the document persistence contract.
type DocumentStore interface {
	Create(ctx context.Context, kbID, filename, storedPath string) (*models.Document, error)
	Get(ctx context.Context, id string) (*models.Document, error)
	ListByKB(ctx context.Context, kbID string) ([]*models.Document, error)
	Delete(ctx context.Context, id string) error
}

// ChunkStore is the chunk read/delete contract the API needs.
type ChunkStore interface {
	ListByDocument(ctx context.Context, documentID string) ([]*models.DocumentChunk, error)
	DeleteByDocument(ctx context.Context, documentID string) error
}

// Ingestor runs the ingestion pipeline for one document.
type Ingestor interface {
	Ingest(ctx context.Context, kbID, documentID, sourceFilename string, textBlocks []string) (int, error)
}

// Answerer is the answer synthesizer contract.
type Answerer interface {
	Answer(ctx context.Context, query string, kbIDs []string, topK int) (*answer.Result, error)
	StreamAnswer(ctx context.Context, query string, kbIDs []string, topK int, sink func(fragment string) error) (*answer.Result, error)
}

// QuizService is the quiz orchestrator contract.
type QuizService interface {
	Create(ctx context.Context, owner string, kbIDs []string, difficulty models.QuizDifficulty) (*models.Quiz, error)
	Start(ctx context.Context, quizID string) ([]*models.QuizQuestion, error)
	Submit(ctx context.Context, quizID, questionID, userAnswer string) (*quiz.SubmitResult, error)
	Summary(ctx context.Context, quizID string, sink func(fragment string) error) (*quiz.SummaryResult, error)
}

// Pinger reports backing store health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Gateway is the HTTP gateway.
type Gateway struct {
	server    *http.Server
	router    *mux.Router
	kbs       KBStore
	documents DocumentStore
	chunks    ChunkStore
	ingestor  Ingestor
	answerer  Answerer
	quizzes   QuizService
	db        Pinger
	config    config.ServerConfig
	logger    *zap.Logger
}

// NewGateway wires routes and middleware and prepares the HTTP server.
func NewGateway(cfg config.ServerConfig, kbs KBStore, documents DocumentStore, chunks ChunkStore,
	ingestor Ingestor, answerer Answerer, quizzes QuizService, db Pinger, logger *zap.Logger) *Gateway {

	g := &Gateway{
		router:    mux.NewRouter(),
		kbs:       kbs,
		documents: documents,
		chunks:    chunks,
		ingestor:  ingestor,
		answerer:  answerer,
		quizzes:   quizzes,
		db:        db,
		config:    cfg,
		logger:    logger,
	}
	g.setupRoutes()

	var handler http.Handler = g.router
	if cfg.EnableCORS {
		handler = cors.New(cors.Options{
			AllowedOrigins:   cfg.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"*"},
			AllowCredentials: true,
		}).Handler(handler)
	}
	handler = g.loggingMiddleware(handler)

	g.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      http.MaxBytesHandler(handler, cfg.MaxRequestSize),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return g
}

func (g *Gateway) setupRoutes() {
	api := g.router.PathPrefix("/api/v1").Subrouter()

	// Knowledge base routes
	kb := api.PathPrefix("/kb").Subrouter()
	kb.HandleFunc("", g.handleListKBs).Methods("GET")
	kb.HandleFunc("", g.handleCreateKB).Methods("POST")
	kb.HandleFunc("/{id}", g.handleGetKB).Methods("GET")
	kb.HandleFunc("/{id}", g.handleDeleteKB).Methods("DELETE")
	kb.HandleFunc("/{id}/documents", g.handleListDocuments).Methods("GET")
	kb.HandleFunc("/{id}/documents", g.handleIngestDocument).Methods("POST")

	// Document routes
	docs := api.PathPrefix("/documents").Subrouter()
	docs.HandleFunc("/{id}", g.handleGetDocument).Methods("GET")
	docs.HandleFunc("/{id}", g.handleDeleteDocument).Methods("DELETE")
	docs.HandleFunc("/{id}/chunks", g.handleListChunks).Methods("GET")

	// Chat route
	api.HandleFunc("/chat/completions", g.handleChat).Methods("POST")

	// Quiz routes
	quizzes := api.PathPrefix("/quiz").Subrouter()
	quizzes.HandleFunc("", g.handleCreateQuiz).Methods("POST")
	quizzes.HandleFunc("/{id}/start", g.handleStartQuiz).Methods("POST")
	quizzes.HandleFunc("/{id}/submit", g.handleSubmitAnswer).Methods("POST")
	quizzes.HandleFunc("/{id}/summary", g.handleQuizSummary).Methods("GET")

	api.HandleFunc("/health", g.handleHealth).Methods("GET")
}

func (g *Gateway) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r)
		g.logger.Debug("request handled",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path))
	})
}

// Start begins serving; blocks until shutdown or listener failure.
func (g *Gateway) Start() error {
	g.logger.Info("starting API gateway", zap.String("addr", g.server.Addr))
	return g.server.ListenAndServe()
}

// Stop drains in-flight requests and shuts the server down.
func (g *Gateway) Stop(ctx context.Context) error {
	g.logger.Info("stopping API gateway")
	return g.server.Shutdown(ctx)
}
