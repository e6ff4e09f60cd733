// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"

	"costtracker/internal/model"
)

// UserRepository provides account storage for the identity endpoints.
type UserRepository interface {
	// Create inserts a new user. Returns errs.ErrAlreadyExists on duplicate email.
	Create(ctx context.Context, u *model.User) error
	// GetByEmail loads a user by email. Returns errs.ErrNotFound when absent.
	GetByEmail(ctx context.Context, email string) (*model.User, error)
}
