package store

import (
	"context"
	"sort"
	"sync"

	"github.com/abgdnv/catalog/internal/domain"
	"github.com/abgdnv/catalog/internal/errors"
	"github.com/google/uuid"
)

// InMemory implements ProductStore using a map guarded by a single RWMutex.
// Every operation holds the lock for its whole lookup and mutation.
type InMemory struct {
	mu       sync.RWMutex
	products map[string]entry
	nextSeq  uint64
}

// entry pairs a product with its insertion sequence, which orders snapshots.
type entry struct {
	product domain.Product
	seq     uint64
}

// NewInMemoryStore creates a new empty in-memory product store.
func NewInMemoryStore() *InMemory {
	return &InMemory{
		products: make(map[string]entry),
	}
}

// Create inserts product under its canonical ID.
// Returns ErrProductConflict if the ID is already taken.
func (s *InMemory) Create(_ context.Context, product domain.Product) error {
	key := product.Key()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.products[key]; exists {
		return errors.ErrProductConflict
	}
	s.nextSeq++
	s.products[key] = entry{product: product, seq: s.nextSeq}
	return nil
}

// FindByID retrieves a product by its ID.
func (s *InMemory) FindByID(_ context.Context, id string) (domain.Product, error) {
	key := canonicalKey(id)

	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.products[key]
	if !ok {
		return domain.Product{}, errors.ErrProductNotFound
	}
	return e.product, nil
}

// FindAll retrieves all products in insertion order.
func (s *InMemory) FindAll(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	entries := make([]entry, 0, len(s.products))
	for _, e := range s.products {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })
	list := make([]domain.Product, len(entries))
	for i, e := range entries {
		list[i] = e.product
	}
	return list, nil
}

// Update merges patch into the stored product and returns the merged copy.
func (s *InMemory) Update(_ context.Context, id string, patch domain.ProductPatch) (domain.Product, error) {
	key := canonicalKey(id)

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.products[key]
	if !ok {
		return domain.Product{}, errors.ErrProductNotFound
	}
	e.product = patch.Apply(e.product)
	s.products[key] = e
	return e.product, nil
}

// DeleteByID deletes a product by its ID.
func (s *InMemory) DeleteByID(_ context.Context, id string) error {
	key := canonicalKey(id)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.products[key]; !exists {
		return errors.ErrProductNotFound
	}
	delete(s.products, key)
	return nil
}

// Count returns the number of stored products.
func (s *InMemory) Count(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.products)
}

// canonicalKey normalises a UUID to its lower-case hyphenated form.
// Strings that are not UUIDs are returned as-is and simply never match.
func canonicalKey(id string) string {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return id
	}
	return parsed.String()
}
