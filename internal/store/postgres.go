// Package store persists knowledge bases, documents, chunks and quizzes
// in Postgres. The chunk table carries a pgvector column for similarity
// search; quiz mutations are compare-and-set statements so concurrent
// calls settle on exactly one winner.
package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/knowdeck/internal/config"
)

// NewPool opens a pgx connection pool with pgvector types registered.
func NewPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.ConnConfig.ConnectTimeout = cfg.ConnTimeout
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// EnsureSchema creates the vector extension and all tables when missing.
// Idempotent; safe to run on every boot.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool, embeddingDimension int) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS knowledge_bases (
			id         TEXT PRIMARY KEY,
			name       TEXT NOT NULL,
			owner      TEXT NOT NULL DEFAULT 'system',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS documents (
			id          TEXT PRIMARY KEY,
			kb_id       TEXT NOT NULL REFERENCES knowledge_bases(id) ON DELETE CASCADE,
			filename    TEXT NOT NULL,
			stored_path TEXT NOT NULL,
			status      TEXT NOT NULL DEFAULT 'pending',
			created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS document_chunks (
			id          TEXT PRIMARY KEY,
			kb_id       TEXT NOT NULL REFERENCES knowledge_bases(id) ON DELETE CASCADE,
			document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
			content     TEXT NOT NULL,
			embedding   vector(%d),
			metadata    JSONB,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, embeddingDimension),
		`CREATE INDEX IF NOT EXISTS idx_document_chunks_kb_id ON document_chunks (kb_id)`,
		`CREATE INDEX IF NOT EXISTS idx_document_chunks_document_id ON document_chunks (document_id)`,
		`CREATE TABLE IF NOT EXISTS quizzes (
			id           TEXT PRIMARY KEY,
			owner        TEXT NOT NULL,
			kb_ids       JSONB NOT NULL,
			difficulty   TEXT NOT NULL DEFAULT 'easy',
			status       TEXT NOT NULL DEFAULT 'created',
			total_score  INT,
			summary      TEXT,
			created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
			completed_at TIMESTAMPTZ
		)`,
		`CREATE TABLE IF NOT EXISTS quiz_questions (
			id              TEXT PRIMARY KEY,
			quiz_id         TEXT NOT NULL REFERENCES quizzes(id) ON DELETE CASCADE,
			question_number INT NOT NULL,
			chunk_content   TEXT NOT NULL,
			question        TEXT NOT NULL,
			standard_answer TEXT NOT NULL,
			user_answer     TEXT,
			score           INT,
			feedback        TEXT,
			created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
			UNIQUE (quiz_id, question_number)
		)`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
