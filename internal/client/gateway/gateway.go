// Package gateway wraps the remote document store's per-collection CRUD
// primitives. A Collection holds no state; every call is a fresh round trip.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gofrs/uuid/v5"

	clientapi "costtracker/internal/client/api"
	"costtracker/internal/errs"
	"costtracker/internal/model"
)

// Collection accesses one named collection of the per-user namespace.
// T is the full record (id plus fields), F the caller-supplied fields.
type Collection[T any, F any] struct {
	api     *clientapi.Client
	name    string
	orderBy string
}

// NewCollection constructs a gateway for one collection with its declared
// sort key.
func NewCollection[T any, F any](api *clientapi.Client, name, orderBy string) *Collection[T, F] {
	return &Collection[T, F]{api: api, name: name, orderBy: orderBy}
}

// NewItems returns the gateway for the "items" collection, sorted by name.
func NewItems(api *clientapi.Client) *Collection[model.CostItem, model.CostItemFields] {
	return NewCollection[model.CostItem, model.CostItemFields](api, "items", "name")
}

// NewOtherCosts returns the gateway for the "otherCosts" collection, sorted
// by description.
func NewOtherCosts(api *clientapi.Client) *Collection[model.OtherCost, model.OtherCostFields] {
	return NewCollection[model.OtherCost, model.OtherCostFields](api, "otherCosts", "description")
}

// Name returns the collection name.
func (c *Collection[T, F]) Name() string { return c.name }

func (c *Collection[T, F]) collectionPath(userID uuid.UUID) string {
	return fmt.Sprintf("/api/v1/users/%s/%s", userID, c.name)
}

func (c *Collection[T, F]) documentPath(userID, id uuid.UUID) string {
	return fmt.Sprintf("/api/v1/users/%s/%s/%s", userID, c.name, id)
}

// List returns all records ordered by the declared sort key.
func (c *Collection[T, F]) List(ctx context.Context, userID uuid.UUID) ([]T, error) {
	var resp struct {
		Documents []T `json:"documents"`
	}
	path := c.collectionPath(userID) + "?orderBy=" + c.orderBy
	if err := c.api.Do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, storeErr(err)
	}
	if resp.Documents == nil {
		resp.Documents = []T{}
	}
	return resp.Documents, nil
}

// Create stores a new record and returns it with the store-assigned id.
func (c *Collection[T, F]) Create(ctx context.Context, userID uuid.UUID, fields F) (T, error) {
	var rec T
	if err := c.api.Do(ctx, http.MethodPost, c.collectionPath(userID), fields, &rec); err != nil {
		return rec, storeErr(err)
	}
	return rec, nil
}

// Replace overwrites the record in full. Returns ErrNotFound for stale ids.
func (c *Collection[T, F]) Replace(ctx context.Context, userID, id uuid.UUID, fields F) error {
	return storeErr(c.api.Do(ctx, http.MethodPut, c.documentPath(userID, id), fields, nil))
}

// Remove deletes the record. Returns ErrNotFound for stale ids.
func (c *Collection[T, F]) Remove(ctx context.Context, userID, id uuid.UUID) error {
	return storeErr(c.api.Do(ctx, http.MethodDelete, c.documentPath(userID, id), nil, nil))
}

// storeErr reshapes API errors into the store contract: an auth failure from
// the store is a transient condition (token refresh via re-login), and a
// rate-limit response is a quota rejection.
func storeErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, errs.ErrUnauthorized):
		return fmt.Errorf("%w: %v", errs.ErrRemoteUnavailable, err)
	case errors.Is(err, errs.ErrRateLimited):
		return fmt.Errorf("%w: %v", errs.ErrRemoteRejected, err)
	default:
		return err
	}
}
