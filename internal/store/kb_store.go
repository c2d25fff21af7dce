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

// KBStore persists knowledge base records. Deleting a knowledge base
// cascades to its documents and chunks through foreign keys.
type KBStore struct {
	pool *pgxpool.Pool
}

func NewKBStore(pool *pgxpool.Pool) *KBStore {
	return &KBStore{pool: pool}
}

// Create inserts a knowledge base. An empty owner falls back to the
// shared "system" owner.
func (s *KBStore) Create(ctx context.Context, name, owner string) (*models.KnowledgeBase, error) {
	const op = "kbstore.create"
	if owner == "" {
		owner = models.DefaultOwner
	}
	kb := &models.KnowledgeBase{
		ID:        uuid.NewString(),
		Name:      name,
		Owner:     owner,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO knowledge_bases (id, name, owner, created_at) VALUES ($1, $2, $3, $4)`,
		kb.ID, kb.Name, kb.Owner, kb.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return kb, nil
}

// Get returns one knowledge base by id.
func (s *KBStore) Get(ctx context.Context, id string) (*models.KnowledgeBase, error) {
	const op = "kbstore.get"
	kb := &models.KnowledgeBase{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, owner, created_at FROM knowledge_bases WHERE id = $1`, id).
		Scan(&kb.ID, &kb.Name, &kb.Owner, &kb.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.New(apperrors.KindNotFound, op, "knowledge base not found: "+id)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return kb, nil
}

// List returns knowledge bases, optionally filtered by owner.
func (s *KBStore) List(ctx context.Context, owner string) ([]*models.KnowledgeBase, error) {
	const op = "kbstore.list"
	query := `SELECT id, name, owner, created_at FROM knowledge_bases ORDER BY created_at DESC`
	args := []any{}
	if owner != "" {
		query = `SELECT id, name, owner, created_at FROM knowledge_bases WHERE owner = $1 ORDER BY created_at DESC`
		args = append(args, owner)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var out []*models.KnowledgeBase
	for rows.Next() {
		kb := &models.KnowledgeBase{}
		if err := rows.Scan(&kb.ID, &kb.Name, &kb.Owner, &kb.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		out = append(out, kb)
	}
	return out, rows.Err()
}

// Delete removes a knowledge base; documents and chunks go with it.
func (s *KBStore) Delete(ctx context.Context, id string) error {
	const op = "kbstore.delete"
	tag, err := s.pool.Exec(ctx, `DELETE FROM knowledge_bases WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.New(apperrors.KindNotFound, op, "knowledge base not found: "+id)
	}
	return nil
}

// ResolveIDs checks that every id exists, returning the ids that do not.
func (s *KBStore) ResolveIDs(ctx context.Context, ids []string) (missing []string, err error) {
	const op = "kbstore.resolve_ids"
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, `SELECT id FROM knowledge_bases WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	found := make(map[string]bool, len(ids))
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		found[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	for _, id := range ids {
		if !found[id] {
			missing = append(missing, id)
		}
	}
	return missing, nil
}
