// Package service provides the implementation of product-related business logic.
package service

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	"github.com/abgdnv/catalog/internal/domain"
	perrors "github.com/abgdnv/catalog/internal/errors"
	"github.com/abgdnv/catalog/internal/store"
	"github.com/abgdnv/catalog/pkg/messaging"
	"github.com/abgdnv/catalog/pkg/messaging/events"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ProductService defines the methods for managing products.
// It abstracts the underlying business logic and data access.
type ProductService interface {
	// Create stores a validated product.
	// Returns ErrProductConflict if a product with the same ID exists.
	Create(ctx context.Context, product domain.Product) (*domain.Product, error)

	// FindByID retrieves a single product by its unique identifier.
	// Returns ErrProductNotFound if no product exists with the given ID.
	FindByID(ctx context.Context, id string) (*domain.Product, error)

	// FindAll returns all products in insertion order.
	// Returns an empty slice if no products exist.
	FindAll(ctx context.Context) ([]domain.Product, error)

	// Update merges a validated patch into an existing product.
	// Returns ErrProductNotFound if no product exists with the given ID.
	Update(ctx context.Context, id uuid.UUID, patch domain.ProductPatch) (*domain.Product, error)

	// DeleteByID removes a product by its ID.
	// Returns ErrProductNotFound if no product exists with the given ID.
	DeleteByID(ctx context.Context, id string) error

	// Count returns the number of stored products.
	Count(ctx context.Context) int
}

// Operation outcomes recorded by the operations counter.
const (
	outcomeOK       = "ok"
	outcomeNotFound = "not_found"
	outcomeConflict = "conflict"
	outcomeError    = "error"
)

// keyStripes is the number of locks that serialise writes per product.
const keyStripes = 64

// Service implements ProductService and provides methods to manage products.
// Writes to one product and the publishing of their events happen under the same
// striped lock, so events for a product leave in the order the store applied them.
type Service struct {
	repository store.ProductStore
	publisher  messaging.Publisher
	logger     *slog.Logger
	operations metric.Int64Counter
	now        func() time.Time
	writes     [keyStripes]sync.Mutex
}

// NewService creates a new instance of ProductService. Metrics are registered on meter,
// lifecycle events go to publisher.
func NewService(repo store.ProductStore, publisher messaging.Publisher, meter metric.Meter, logger *slog.Logger) (*Service, error) {
	operations, err := meter.Int64Counter("catalog_product_operations",
		metric.WithDescription("Product store operations by operation and outcome"))
	if err != nil {
		return nil, fmt.Errorf("failed to create operations counter: %w", err)
	}
	_, err = meter.Int64ObservableGauge("catalog_products_stored",
		metric.WithDescription("Number of products currently stored"),
		metric.WithInt64Callback(func(ctx context.Context, o metric.Int64Observer) error {
			o.Observe(int64(repo.Count(ctx)))
			return nil
		}))
	if err != nil {
		return nil, fmt.Errorf("failed to create stored products gauge: %w", err)
	}
	return &Service{
		repository: repo,
		publisher:  publisher,
		logger:     logger,
		operations: operations,
		now:        time.Now,
	}, nil
}

// lockKey locks the stripe owning id and returns its unlock.
func (s *Service) lockKey(id string) func() {
	if parsed, err := uuid.Parse(id); err == nil {
		id = parsed.String()
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	mu := &s.writes[h.Sum32()%keyStripes]
	mu.Lock()
	return mu.Unlock
}

func (s *Service) Create(ctx context.Context, product domain.Product) (*domain.Product, error) {
	defer s.lockKey(product.Key())()
	err := s.repository.Create(ctx, product)
	s.record(ctx, "create", err)
	if err != nil {
		return nil, fmt.Errorf("failed to create product %s: %w", product.ID, err)
	}

	s.publish(ctx, events.ProductCreatedEvent{
		Product:    snapshot(product),
		OccurredAt: s.now().UTC(),
	})
	return &product, nil
}

func (s *Service) FindByID(ctx context.Context, id string) (*domain.Product, error) {
	product, err := s.repository.FindByID(ctx, id)
	s.record(ctx, "find", err)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch product by ID %s: %w", id, err)
	}
	return &product, nil
}

func (s *Service) FindAll(ctx context.Context) ([]domain.Product, error) {
	products, err := s.repository.FindAll(ctx)
	s.record(ctx, "find_all", err)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch products: %w", err)
	}
	return products, nil
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, patch domain.ProductPatch) (*domain.Product, error) {
	defer s.lockKey(id.String())()
	updated, err := s.repository.Update(ctx, id.String(), patch)
	s.record(ctx, "update", err)
	if err != nil {
		return nil, fmt.Errorf("failed to update product %s: %w", id, err)
	}

	s.publish(ctx, events.ProductUpdatedEvent{
		Product:    snapshot(updated),
		Fields:     patchedFields(patch),
		OccurredAt: s.now().UTC(),
	})
	return &updated, nil
}

func (s *Service) DeleteByID(ctx context.Context, id string) error {
	defer s.lockKey(id)()
	err := s.repository.DeleteByID(ctx, id)
	s.record(ctx, "delete", err)
	if err != nil {
		return fmt.Errorf("failed to delete product %s: %w", id, err)
	}

	// only known ids reach this point, so the parse cannot fail
	productID, _ := uuid.Parse(id)
	s.publish(ctx, events.ProductDeletedEvent{
		ProductID:  productID,
		OccurredAt: s.now().UTC(),
	})
	return nil
}

func (s *Service) Count(ctx context.Context) int {
	return s.repository.Count(ctx)
}

// publish never fails the caller: the mutation has already happened.
func (s *Service) publish(ctx context.Context, event messaging.Event) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish event", "subject", event.Subject(), "key", event.Key(), "error", err)
		return
	}
	s.logger.DebugContext(ctx, "Event published", "subject", event.Subject(), "key", event.Key())
}

func (s *Service) record(ctx context.Context, operation string, err error) {
	s.operations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("outcome", outcome(err)),
	))
}

func outcome(err error) string {
	switch {
	case err == nil:
		return outcomeOK
	case errors.Is(err, perrors.ErrProductNotFound):
		return outcomeNotFound
	case errors.Is(err, perrors.ErrProductConflict):
		return outcomeConflict
	default:
		return outcomeError
	}
}

func snapshot(p domain.Product) events.ProductSnapshot {
	return events.ProductSnapshot{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		Quantity:    p.Quantity,
		Category:    string(p.Category),
	}
}

func patchedFields(p domain.ProductPatch) []string {
	fields := make([]string, 0, 5)
	if p.Name != nil {
		fields = append(fields, "name")
	}
	if p.Description != nil {
		fields = append(fields, "description")
	}
	if p.Price != nil {
		fields = append(fields, "price")
	}
	if p.Quantity != nil {
		fields = append(fields, "quantity")
	}
	if p.Category != nil {
		fields = append(fields, "category")
	}
	return fields
}
