package repository

import (
	"context"

	"github.com/google/uuid"
)

// Store defines repository persistence operations.
type Store interface {
	// Save persists a repository (insert or update by ID).
	Save(ctx context.Context, repo Repository) error

	// Get returns a repository by ID.
	Get(ctx context.Context, id uuid.UUID) (Repository, error)

	// GetByURL returns a repository by its canonical URL.
	GetByURL(ctx context.Context, url string) (Repository, error)

	// Find returns repositories matching the given options.
	Find(ctx context.Context, opts ...Option) ([]Repository, error)

	// Exists checks whether a repository with the given ID exists.
	Exists(ctx context.Context, id uuid.UUID) (bool, error)

	// Count returns the number of repositories matching the options.
	Count(ctx context.Context, opts ...Option) (int64, error)

	// Delete removes a repository by ID.
	Delete(ctx context.Context, id uuid.UUID) error
}
