// Command backfill-embeddings re-embeds chunks stored text-only while
// the embedding gateway was unavailable. Run it after the gateway
// recovers; it batches until no null-vector chunks remain.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/knowdeck/internal/config"
	"github.com/knowdeck/internal/ingestion"
	"github.com/knowdeck/internal/llm"
	"github.com/knowdeck/internal/logging"
	"github.com/knowdeck/internal/store"
)

func main() {
	var (
		configFile = flag.String("config", "config/config.yaml", "Configuration file path")
		batchSize  = flag.Int("batch", 100, "Chunks to backfill per pass")
	)
	flag.Parse()

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

	ctx := context.Background()

	pool, err := store.NewPool(ctx, cfg.Database)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	chunkStore := store.NewChunkStore(pool)
	docStore := store.NewDocumentStore(pool)
	embedder := llm.NewEmbedder(cfg.OpenAI, logger)
	pipeline := ingestion.NewPipeline(embedder, chunkStore, docStore, nil,
		cfg.Ingestion.ChunkSize, cfg.Ingestion.ChunkOverlap, logger)

	total := 0
	for {
		done, err := pipeline.Backfill(ctx, *batchSize)
		if err != nil {
			logger.Fatal("backfill failed", zap.Int("completed", total), zap.Error(err))
		}
		total += done
		if done < *batchSize {
			break
		}
	}
	logger.Info("backfill complete", zap.Int("chunks", total))
}
