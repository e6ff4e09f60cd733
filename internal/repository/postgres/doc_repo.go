package postgres

import (
	"context"
	"encoding/json"

	"github.com/gofrs/uuid/v5"

	"costtracker/internal/errs"
	"costtracker/internal/model"
)

// NamespaceRepo implements NamespaceRepository using PostgreSQL.
type NamespaceRepo struct{ db *DB }

// NewNamespaceRepo constructs a namespace repository.
func NewNamespaceRepo(db *DB) *NamespaceRepo { return &NamespaceRepo{db: db} }

// Upsert creates the namespace root or refreshes last_seen only. Existing
// documents are never touched, which keeps re-provisioning harmless.
func (r *NamespaceRepo) Upsert(ctx context.Context, userID uuid.UUID) error {
	const q = `
INSERT INTO namespaces (user_id, created_at, last_seen)
VALUES ($1, now(), now())
ON CONFLICT (user_id) DO UPDATE SET last_seen = now()`
	_, err := r.db.Pool.Exec(ctx, q, userID)
	return err
}

// DocRepo implements DocumentRepository using PostgreSQL. Documents are stored
// as jsonb; the collection name and owning user scope every statement.
type DocRepo struct{ db *DB }

// NewDocRepo constructs a document repository.
func NewDocRepo(db *DB) *DocRepo { return &DocRepo{db: db} }

// List returns documents ordered by a top-level JSON key, ties broken by id
// so the order is stable across fetches.
func (r *DocRepo) List(ctx context.Context, userID uuid.UUID, collection, orderBy string) ([]model.Document, error) {
	const q = `
SELECT id, doc
FROM documents
WHERE user_id=$1 AND collection=$2
ORDER BY doc->>$3 ASC, id ASC`
	rows, err := r.db.Pool.Query(ctx, q, userID, collection, orderBy)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Document{}
	for rows.Next() {
		var (
			id  uuid.UUID
			doc []byte
		)
		if err = rows.Scan(&id, &doc); err != nil {
			return nil, err
		}
		out = append(out, model.Document{ID: id, Doc: json.RawMessage(doc)})
	}
	return out, rows.Err()
}

// Create stores a new document under a fresh server-assigned id.
func (r *DocRepo) Create(ctx context.Context, userID uuid.UUID, collection string, doc []byte) (uuid.UUID, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return uuid.Nil, err
	}
	const q = `
INSERT INTO documents (id, user_id, collection, doc)
VALUES ($1, $2, $3, $4)`
	if _, err := r.db.Pool.Exec(ctx, q, id, userID, collection, doc); err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

// Replace overwrites the document body in full.
func (r *DocRepo) Replace(ctx context.Context, userID uuid.UUID, collection string, id uuid.UUID, doc []byte) error {
	const q = `
UPDATE documents SET doc=$4, updated_at=now()
WHERE id=$1 AND user_id=$2 AND collection=$3`
	tag, err := r.db.Pool.Exec(ctx, q, id, userID, collection, doc)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// Remove deletes the document.
func (r *DocRepo) Remove(ctx context.Context, userID uuid.UUID, collection string, id uuid.UUID) error {
	const q = `DELETE FROM documents WHERE id=$1 AND user_id=$2 AND collection=$3`
	tag, err := r.db.Pool.Exec(ctx, q, id, userID, collection)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}
