package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/gofrs/uuid/v5"

	"costtracker/internal/errs"
	"costtracker/internal/model"
	"costtracker/internal/repository"
)

// collectionSchemas declares the tracked collections and their document
// shapes. A document must carry exactly these fields; strings are non-empty,
// cents are non-negative integers.
var collectionSchemas = map[string]map[string]fieldKind{
	"items":      {"name": fieldString, "cost_cents": fieldCents},
	"otherCosts": {"description": fieldString, "amount_cents": fieldCents},
}

type fieldKind int

const (
	fieldString fieldKind = iota
	fieldCents
)

// DocService defines the per-user document store operations.
type DocService interface {
	// EnsureNamespace idempotently creates/touches the user's namespace root.
	EnsureNamespace(ctx context.Context, userID uuid.UUID) error
	// List returns all documents of a collection ordered by orderBy.
	List(ctx context.Context, userID uuid.UUID, collection, orderBy string) ([]model.Document, error)
	// Create validates fields and stores a new document.
	Create(ctx context.Context, userID uuid.UUID, collection string, fields map[string]any) (model.Document, error)
	// Replace validates fields and overwrites a document in full.
	Replace(ctx context.Context, userID uuid.UUID, collection string, id uuid.UUID, fields map[string]any) error
	// Remove deletes a document.
	Remove(ctx context.Context, userID uuid.UUID, collection string, id uuid.UUID) error
}

type DocServiceImpl struct {
	namespaces repository.NamespaceRepository
	docs       repository.DocumentRepository
}

// NewDocService constructs DocService over the given repositories.
func NewDocService(namespaces repository.NamespaceRepository, docs repository.DocumentRepository) *DocServiceImpl {
	return &DocServiceImpl{namespaces: namespaces, docs: docs}
}

// EnsureNamespace upserts the namespace root; safe to call repeatedly.
func (s *DocServiceImpl) EnsureNamespace(ctx context.Context, userID uuid.UUID) error {
	if userID == uuid.Nil {
		return fmt.Errorf("validation: empty userID: %w", errs.ErrValidation)
	}
	return s.namespaces.Upsert(ctx, userID)
}

// List returns the ordered documents of one collection.
func (s *DocServiceImpl) List(ctx context.Context, userID uuid.UUID, collection, orderBy string) ([]model.Document, error) {
	schema, err := schemaFor(userID, collection)
	if err != nil {
		return nil, err
	}
	if _, ok := schema[orderBy]; !ok {
		return nil, fmt.Errorf("validation: unknown sort key %q: %w", orderBy, errs.ErrValidation)
	}
	return s.docs.List(ctx, userID, collection, orderBy)
}

// Create validates the document against the collection schema and stores it.
func (s *DocServiceImpl) Create(ctx context.Context, userID uuid.UUID, collection string, fields map[string]any) (model.Document, error) {
	doc, err := marshalValidated(userID, collection, fields)
	if err != nil {
		return model.Document{}, err
	}
	id, err := s.docs.Create(ctx, userID, collection, doc)
	if err != nil {
		return model.Document{}, err
	}
	return model.Document{ID: id, Doc: doc}, nil
}

// Replace validates the document and overwrites the stored one in full.
func (s *DocServiceImpl) Replace(ctx context.Context, userID uuid.UUID, collection string, id uuid.UUID, fields map[string]any) error {
	if id == uuid.Nil {
		return fmt.Errorf("validation: empty id: %w", errs.ErrValidation)
	}
	doc, err := marshalValidated(userID, collection, fields)
	if err != nil {
		return err
	}
	return s.docs.Replace(ctx, userID, collection, id, doc)
}

// Remove deletes a document by id.
func (s *DocServiceImpl) Remove(ctx context.Context, userID uuid.UUID, collection string, id uuid.UUID) error {
	if _, err := schemaFor(userID, collection); err != nil {
		return err
	}
	if id == uuid.Nil {
		return fmt.Errorf("validation: empty id: %w", errs.ErrValidation)
	}
	return s.docs.Remove(ctx, userID, collection, id)
}

func schemaFor(userID uuid.UUID, collection string) (map[string]fieldKind, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("validation: empty userID: %w", errs.ErrValidation)
	}
	schema, ok := collectionSchemas[collection]
	if !ok {
		return nil, fmt.Errorf("validation: unknown collection %q: %w", collection, errs.ErrValidation)
	}
	return schema, nil
}

// marshalValidated checks the fields against the collection schema and
// returns the canonical document bytes.
func marshalValidated(userID uuid.UUID, collection string, fields map[string]any) ([]byte, error) {
	schema, err := schemaFor(userID, collection)
	if err != nil {
		return nil, err
	}
	for name := range fields {
		if _, ok := schema[name]; !ok {
			return nil, fmt.Errorf("validation: unexpected field %q: %w", name, errs.ErrValidation)
		}
	}
	for name, kind := range schema {
		v, ok := fields[name]
		if !ok {
			return nil, fmt.Errorf("validation: missing field %q: %w", name, errs.ErrValidation)
		}
		switch kind {
		case fieldString:
			s, ok := v.(string)
			if !ok || strings.TrimSpace(s) == "" {
				return nil, fmt.Errorf("validation: field %q must be a non-empty string: %w", name, errs.ErrValidation)
			}
		case fieldCents:
			f, ok := v.(float64)
			if !ok || f < 0 || f != math.Trunc(f) || f > 1<<53 {
				return nil, fmt.Errorf("validation: field %q must be non-negative integer cents: %w", name, errs.ErrValidation)
			}
		}
	}
	return json.Marshal(fields)
}
