package repository

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"costtracker/internal/model"
)

// NamespaceRepository manages the per-user root record.
type NamespaceRepository interface {
	// Upsert creates the namespace root for the user or, when it already
	// exists, refreshes only the last-seen timestamp. Idempotent.
	Upsert(ctx context.Context, userID uuid.UUID) error
}

// DocumentRepository provides CRUD access to one user's document collections.
type DocumentRepository interface {
	// List returns all documents of a collection ordered by the given
	// top-level JSON key (ties broken by id).
	List(ctx context.Context, userID uuid.UUID, collection, orderBy string) ([]model.Document, error)

	// Create stores a new document and returns its store-assigned id.
	Create(ctx context.Context, userID uuid.UUID, collection string, doc []byte) (uuid.UUID, error)

	// Replace overwrites a document in full. Returns errs.ErrNotFound when
	// the id does not exist in this user's collection.
	Replace(ctx context.Context, userID uuid.UUID, collection string, id uuid.UUID, doc []byte) error

	// Remove deletes a document. Returns errs.ErrNotFound when absent.
	Remove(ctx context.Context, userID uuid.UUID, collection string, id uuid.UUID) error
}
