// Package repository persists users and their identities.
package repository

import (
	"context"

	"modelplane/authcore/internal/identity/domain"
)

// UserRepo is the user persistence surface.
type UserRepo interface {
	// Create persists a new user.
	Create(ctx context.Context, u *domain.User) error
	// GetByID returns the user for id, or nil if not found.
	GetByID(ctx context.Context, id string) (*domain.User, error)
	// GetByEmail returns the user for email, or nil if not found.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}

// IdentityRepo is the identity persistence surface.
type IdentityRepo interface {
	// Create persists a new identity.
	Create(ctx context.Context, i *domain.Identity) error
	// GetByUserAndProvider returns the user's identity for provider, or nil.
	GetByUserAndProvider(ctx context.Context, userID string, provider domain.Provider) (*domain.Identity, error)
}
