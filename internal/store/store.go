// Package store provides an interface for product storage operations.
package store

import (
	"context"

	"github.com/abgdnv/catalog/internal/domain"
)

// ProductStore is an interface for product storage operations.
// Implementations return copies; callers never hold a reference into the store.
type ProductStore interface {
	// Create adds a new product keyed by its ID.
	// Returns ErrProductConflict if a product with the same ID already exists.
	Create(ctx context.Context, product domain.Product) error

	// FindByID retrieves a single product by its unique identifier.
	// Returns ErrProductNotFound if no product exists with the given ID.
	FindByID(ctx context.Context, id string) (domain.Product, error)

	// FindAll returns a point-in-time snapshot of all products.
	// Returns an empty slice if no products exist.
	FindAll(ctx context.Context) ([]domain.Product, error)

	// Update merges the fields present in patch into an existing product and returns the result.
	// Returns ErrProductNotFound if no product exists with the given ID.
	Update(ctx context.Context, id string, patch domain.ProductPatch) (domain.Product, error)

	// DeleteByID removes a product by its ID.
	// Returns ErrProductNotFound if no product exists with the given ID.
	DeleteByID(ctx context.Context, id string) error

	// Count returns the number of stored products.
	Count(ctx context.Context) int
}
