package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/knowdeck/internal/apperrors"
	"github.com/knowdeck/pkg/models"
)

// DocumentStore persists document records inside a knowledge base.
type DocumentStore struct {
	pool *pgxpool.Pool
}

func NewDocumentStore(pool *pgxpool.Pool) *DocumentStore {
	return &DocumentStore{pool: pool}
}

// Create inserts a document in pending state.
func (s *DocumentStore) Create(ctx context.Context, kbID, filename, storedPath string) (*models.Document, error) {
	const op = "docstore.create"
	doc := &models.Document{
		ID:         uuid.NewString(),
		KBID:       kbID,
		Filename:   filename,
		StoredPath: storedPath,
		Status:     models.DocumentPending,
		CreatedAt:  time.Now().UTC(),
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO documents (id, kb_id, filename, stored_path, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		doc.ID, doc.KBID, doc.Filename, doc.StoredPath, doc.Status, doc.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return doc, nil
}

// Get returns one document by id.
func (s *DocumentStore) Get(ctx context.Context, id string) (*models.Document, error) {
	const op = "docstore.get"
	doc := &models.Document{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, kb_id, filename, stored_path, status, created_at FROM documents WHERE id = $1`, id).
		Scan(&doc.ID, &doc.KBID, &doc.Filename, &doc.StoredPath, &doc.Status, &doc.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.New(apperrors.KindNotFound, op, "document not found: "+id)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return doc, nil
}

// ListByKB returns the documents of one knowledge base, newest first.
func (s *DocumentStore) ListByKB(ctx context.Context, kbID string) ([]*models.Document, error) {
	const op = "docstore.list_by_kb"
	rows, err := s.pool.Query(ctx,
		`SELECT id, kb_id, filename, stored_path, status, created_at
		 FROM documents WHERE kb_id = $1 ORDER BY created_at DESC`, kbID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var out []*models.Document
	for rows.Next() {
		doc := &models.Document{}
		if err := rows.Scan(&doc.ID, &doc.KBID, &doc.Filename, &doc.StoredPath, &doc.Status, &doc.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

// UpdateStatus moves a document to ready or failed after ingestion.
func (s *DocumentStore) UpdateStatus(ctx context.Context, id string, status models.DocumentStatus) error {
	const op = "docstore.update_status"
	tag, err := s.pool.Exec(ctx, `UPDATE documents SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.New(apperrors.KindNotFound, op, "document not found: "+id)
	}
	return nil
}

// Delete removes a document; its chunks cascade.
func (s *DocumentStore) Delete(ctx context.Context, id string) error {
	const op = "docstore.delete"
	tag, err := s.pool.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.New(apperrors.KindNotFound, op, "document not found: "+id)
	}
	return nil
}
