package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/knowdeck/internal/answer"
	"github.com/knowdeck/internal/api"
	"github.com/knowdeck/internal/config"
	"github.com/knowdeck/internal/events"
	"github.com/knowdeck/internal/ingestion"
	"github.com/knowdeck/internal/llm"
	"github.com/knowdeck/internal/logging"
	"github.com/knowdeck/internal/quiz"
	"github.com/knowdeck/internal/retrieval"
	"github.com/knowdeck/internal/store"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	var (
		configFile  = flag.String("config", "config/config.yaml", "Configuration file path")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("knowdeck version %s (commit: %s)\n", version, commit)
		return
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting knowdeck", zap.String("version", version), zap.String("commit", commit))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := store.NewPool(ctx, cfg.Database)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	if err := store.EnsureSchema(ctx, pool, cfg.OpenAI.EmbeddingDimension); err != nil {
		logger.Fatal("failed to ensure schema", zap.Error(err))
	}

	kbStore := store.NewKBStore(pool)
	docStore := store.NewDocumentStore(pool)
	chunkStore := store.NewChunkStore(pool)
	quizStore := store.NewQuizStore(pool)

	llmClient := llm.NewClient(cfg.OpenAI, logger)
	embedder := llm.NewEmbedder(cfg.OpenAI, logger)

	var queryEmbedder retrieval.QueryEmbedder = embedder
	if cfg.Redis.Enabled {
		cached := llm.NewCachedEmbedder(embedder, cfg.Redis, cfg.OpenAI.EmbeddingModel, logger)
		defer cached.Close()
		queryEmbedder = cached
		logger.Info("query embedding cache enabled", zap.String("addr", cfg.Redis.Addr))
	}

	var publisher *events.KafkaPublisher
	var quizEvents quiz.Publisher
	var ingestEvents ingestion.Publisher
	if cfg.Kafka.Enabled {
		publisher = events.NewKafkaPublisher(cfg.Kafka, logger)
		defer publisher.Close()
		quizEvents = publisher
		ingestEvents = publisher
		logger.Info("event publishing enabled", zap.Strings("brokers", cfg.Kafka.Brokers))
	}

	engine := retrieval.NewEngine(queryEmbedder, chunkStore, logger)
	synthesizer := answer.NewSynthesizer(engine, llmClient, logger)
	pipeline := ingestion.NewPipeline(embedder, chunkStore, docStore, ingestEvents,
		cfg.Ingestion.ChunkSize, cfg.Ingestion.ChunkOverlap, logger)
	orchestrator := quiz.NewOrchestrator(quizStore, chunkStore, kbStore, llmClient, quizEvents, logger)

	gateway := api.NewGateway(cfg.Server, kbStore, docStore, chunkStore,
		pipeline, synthesizer, orchestrator, pool, logger)

	errCh := make(chan error, 1)
	go func() {
		if err := gateway.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		logger.Error("gateway failed", zap.Error(err))
	case sig := <-sigCh:
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := gateway.Stop(shutdownCtx); err != nil {
		logger.Error("gateway shutdown failed", zap.Error(err))
	}
	logger.Info("knowdeck stopped")
}
