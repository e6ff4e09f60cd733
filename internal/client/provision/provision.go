// Package provision ensures the per-user namespace exists on the server
// before any collection traffic runs against it.
package provision

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gofrs/uuid/v5"

	clientapi "costtracker/internal/client/api"
	"costtracker/internal/errs"
)

// Provisioner performs the idempotent namespace upsert.
type Provisioner struct {
	api *clientapi.Client
}

// New constructs a provisioner over the shared API client.
func New(api *clientapi.Client) *Provisioner {
	return &Provisioner{api: api}
}

// Ensure creates or refreshes the user's namespace. Safe to call on every
// sign-in; the server treats repeats as a metadata touch. Failures wrap
// ErrProvision with the underlying cause preserved for errors.Is checks.
func (p *Provisioner) Ensure(ctx context.Context, userID uuid.UUID) error {
	path := fmt.Sprintf("/api/v1/users/%s", userID)
	if err := p.api.Do(ctx, http.MethodPut, path, nil, nil); err != nil {
		return fmt.Errorf("%w: %w", errs.ErrProvision, err)
	}
	return nil
}
