// Package store owns the file-backed product collection: a single JSON
// document rewritten in full on every mutation, one backup generation for
// recovery, and a short-lived in-memory read cache.
package store

import (
	"context"

	"catalog-api/internal/domain"
)

// Store defines the interface for product collection persistence
type Store interface {
	// LoadAll returns the current collection, serving from the cache while
	// it is fresh and falling back to backup recovery when the primary file
	// is unreadable.
	LoadAll(ctx context.Context) ([]domain.Product, error)

	// Persist replaces the entire on-disk collection with products and
	// refreshes the cache to match. The previous primary content is copied
	// to the backup location first, best-effort.
	Persist(ctx context.Context, products []domain.Product) error

	// InvalidateCache forces the next LoadAll to re-read from disk.
	InvalidateCache()
}
